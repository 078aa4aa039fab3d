package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hanoutiya/hanoutiya-core/internal/apperrors"
	"github.com/hanoutiya/hanoutiya-core/internal/core/ports"
	"github.com/hanoutiya/hanoutiya-core/internal/models"
	"github.com/shopspring/decimal"
)

// Remaining collection paths (the ledger-owned ones live in
// ledger_service.go).
const (
	TransactionsCollection    = "transactions"
	CashWithdrawalsCollection = "cashWithdrawals"
)

// settingsEntity adapts the singleton StoreSettings document to the
// collection mirror, which needs an id per entity.
type settingsEntity struct {
	ID string `json:"-"`
	models.StoreSettings
}

// StoreService is the operation API of the core: five live collection
// mirrors, the optimistic mutation engine over them, and the ledger
// reconciliation layer for everything that moves a balance. Presentation
// code talks to this and to nothing below it.
type StoreService struct {
	store    ports.DocumentStore
	notifier ports.FailureNotifier
	logger   *slog.Logger
	ledger   *LedgerService
	now      func() time.Time

	products     *Collection[models.Product]
	customers    *Collection[models.Customer]
	transactions *Collection[models.Transaction]
	withdrawals  *Collection[models.CashWithdrawal]
	suppliers    *Collection[models.Supplier]
	settings     *Collection[settingsEntity]
}

// NewStoreService wires the mirrors and the ledger over the given store.
// Call Open before use and Close on teardown.
func NewStoreService(store ports.DocumentStore, notifier ports.FailureNotifier, logger *slog.Logger) *StoreService {
	s := &StoreService{
		store:    store,
		notifier: notifier,
		logger:   logger,
		ledger:   NewLedgerService(store, notifier, logger),
		now:      time.Now,
	}

	s.products = NewCollection(ProductsCollection, store, notifier, logger,
		func(p models.Product) string { return p.ID },
		func(p models.Product, id string) models.Product { p.ID = id; return p })
	s.customers = NewCollection(CustomersCollection, store, notifier, logger,
		func(c models.Customer) string { return c.ID },
		func(c models.Customer, id string) models.Customer { c.ID = id; return c })
	s.transactions = NewCollection(TransactionsCollection, store, notifier, logger,
		func(t models.Transaction) string { return t.ID },
		func(t models.Transaction, id string) models.Transaction { t.ID = id; return t })
	s.withdrawals = NewCollection(CashWithdrawalsCollection, store, notifier, logger,
		func(w models.CashWithdrawal) string { return w.ID },
		func(w models.CashWithdrawal, id string) models.CashWithdrawal { w.ID = id; return w })
	s.suppliers = NewCollection(SuppliersCollection, store, notifier, logger,
		func(sp models.Supplier) string { return sp.ID },
		func(sp models.Supplier, id string) models.Supplier { sp.ID = id; return sp })
	s.settings = NewCollection(models.SettingsCollection, store, notifier, logger,
		func(e settingsEntity) string { return e.ID },
		func(e settingsEntity, id string) settingsEntity { e.ID = id; return e })

	return s
}

// Open starts every live subscription.
func (s *StoreService) Open(ctx context.Context) error {
	openers := []func(context.Context) error{
		s.products.Open, s.customers.Open, s.transactions.Open,
		s.withdrawals.Open, s.suppliers.Open, s.settings.Open,
	}
	for _, open := range openers {
		if err := open(ctx); err != nil {
			s.Close()
			return err
		}
	}
	return nil
}

// Close tears every subscription down. In-flight mutations are not
// cancelled.
func (s *StoreService) Close() {
	s.products.Close()
	s.customers.Close()
	s.transactions.Close()
	s.withdrawals.Close()
	s.suppliers.Close()
	s.settings.Close()
}

// Mirror accessors for read-only consumers.

func (s *StoreService) Products() *Collection[models.Product]           { return s.products }
func (s *StoreService) Customers() *Collection[models.Customer]         { return s.customers }
func (s *StoreService) Transactions() *Collection[models.Transaction]   { return s.transactions }
func (s *StoreService) Withdrawals() *Collection[models.CashWithdrawal] { return s.withdrawals }
func (s *StoreService) Suppliers() *Collection[models.Supplier]         { return s.suppliers }

// --- Products ---

// AddProduct creates a product and returns its store-assigned id.
func (s *StoreService) AddProduct(ctx context.Context, p models.Product) (string, error) {
	if p.Name == "" {
		return "", fmt.Errorf("product name is required: %w", apperrors.ErrValidation)
	}
	if p.Stock < 0 {
		return "", fmt.Errorf("product stock cannot be negative: %w", apperrors.ErrValidation)
	}
	if p.CostPrice.IsNegative() || p.SellingPrice.IsNegative() {
		return "", fmt.Errorf("product prices cannot be negative: %w", apperrors.ErrValidation)
	}
	return s.products.Create(ctx, p)
}

// UpdateProduct applies a partial-field merge to a product.
func (s *StoreService) UpdateProduct(ctx context.Context, id string, patch models.ProductPatch) error {
	return s.products.Update(ctx, id, patch)
}

// DeleteProduct removes a product. Past transaction line items keep their
// productId references; they are intentionally not cleaned up.
func (s *StoreService) DeleteProduct(ctx context.Context, id string) error {
	return s.products.Delete(ctx, id)
}

// AdjustProductsStock applies a batch of signed stock deltas atomically.
func (s *StoreService) AdjustProductsStock(ctx context.Context, deltas []models.StockDelta) error {
	return s.ledger.AdjustProductsStock(ctx, deltas)
}

// --- Customers ---

// AddCustomer creates a customer, optionally with an opening debt, and
// returns the store-assigned id.
func (s *StoreService) AddCustomer(ctx context.Context, c models.Customer) (string, error) {
	if c.Name == "" {
		return "", fmt.Errorf("customer name is required: %w", apperrors.ErrValidation)
	}
	if c.TotalDebt.IsNegative() {
		return "", fmt.Errorf("customer debt cannot be negative: %w", apperrors.ErrValidation)
	}
	return s.customers.Create(ctx, c)
}

// UpdateCustomer applies a partial-field merge to a customer. Debt is not
// reachable through this path; use AdjustCustomerDebt.
func (s *StoreService) UpdateCustomer(ctx context.Context, id string, patch models.CustomerPatch) error {
	return s.customers.Update(ctx, id, patch)
}

// DeleteCustomer removes a customer record entirely.
func (s *StoreService) DeleteCustomer(ctx context.Context, id string) error {
	return s.customers.Delete(ctx, id)
}

// AdjustCustomerDebt moves a customer's balance by delta through the atomic
// ledger path.
func (s *StoreService) AdjustCustomerDebt(ctx context.Context, customerID string, delta decimal.Decimal) error {
	return s.ledger.AdjustCustomerDebt(ctx, customerID, delta)
}

// DebtorCustomers is the "customers with outstanding debt" view: everyone
// whose balance exceeds the settlement epsilon. Settled customers stay in
// the customers collection but disappear from this view.
func (s *StoreService) DebtorCustomers() []models.Customer {
	all := s.customers.Snapshot()
	debtors := all[:0:0]
	for _, c := range all {
		if c.HasOutstandingDebt() {
			debtors = append(debtors, c)
		}
	}
	return debtors
}

// --- Suppliers ---

// AddSupplier creates a supplier and returns the store-assigned id.
func (s *StoreService) AddSupplier(ctx context.Context, sp models.Supplier) (string, error) {
	if sp.Name == "" {
		return "", fmt.Errorf("supplier name is required: %w", apperrors.ErrValidation)
	}
	return s.suppliers.Create(ctx, sp)
}

// UpdateSupplier applies a partial-field merge to a supplier. Debt moves
// only through RecordSupplierTransaction.
func (s *StoreService) UpdateSupplier(ctx context.Context, id string, patch models.SupplierPatch) error {
	return s.suppliers.Update(ctx, id, patch)
}

// DeleteSupplier removes a supplier. Its ledger sub-collection is left in
// place until a reset; recording against the deleted supplier fails with
// NotFound.
func (s *StoreService) DeleteSupplier(ctx context.Context, id string) error {
	return s.suppliers.Delete(ctx, id)
}

// RecordSupplierTransaction appends a purchase or payment to the supplier's
// ledger and adjusts its debt, atomically.
func (s *StoreService) RecordSupplierTransaction(ctx context.Context, supplierID string, txType models.SupplierTransactionType, amount decimal.Decimal, description string) error {
	return s.ledger.RecordSupplierTransaction(ctx, supplierID, txType, amount, description)
}

// SupplierTransactions lists a supplier's ledger sub-collection. These are
// read on demand rather than mirrored: only one supplier's history is open
// at a time.
func (s *StoreService) SupplierTransactions(ctx context.Context, supplierID string) ([]models.SupplierTransaction, error) {
	docs, err := s.store.List(ctx, SupplierTransactionsPath(supplierID))
	if err != nil {
		return nil, err
	}
	records := make([]models.SupplierTransaction, 0, len(docs))
	for _, doc := range docs {
		var record models.SupplierTransaction
		if err := json.Unmarshal(doc.Data, &record); err != nil {
			s.logger.Error("dropping undecodable supplier transaction",
				slog.String("id", doc.ID), slog.String("error", err.Error()))
			continue
		}
		record.ID = doc.ID
		records = append(records, record)
	}
	return records, nil
}

// --- Transactions and cash box ---

// AddTransaction records a sale or debt-payment transaction.
func (s *StoreService) AddTransaction(ctx context.Context, t models.Transaction) (string, error) {
	if len(t.Items) == 0 {
		return "", fmt.Errorf("transaction needs at least one line item: %w", apperrors.ErrValidation)
	}
	if t.PaymentMethod != models.PaymentCash && t.PaymentMethod != models.PaymentCredit {
		return "", fmt.Errorf("payment method %q: %w", t.PaymentMethod, apperrors.ErrValidation)
	}
	if t.Kind == "" {
		t.Kind = models.KindSale
	}
	if t.Date.IsZero() {
		t.Date = s.now().UTC()
	}
	return s.transactions.Create(ctx, t)
}

// AddCashWithdrawal records money taken out of the cash box.
func (s *StoreService) AddCashWithdrawal(ctx context.Context, w models.CashWithdrawal) (string, error) {
	if !w.Amount.IsPositive() {
		return "", fmt.Errorf("withdrawal amount must be positive: %w", apperrors.ErrValidation)
	}
	if w.Date.IsZero() {
		w.Date = s.now().UTC()
	}
	return s.withdrawals.Create(ctx, w)
}

// CashInBox derives the current cash balance: initial cash plus every
// cash-method transaction total minus every withdrawal. Debt payments are
// cash inflows and count here, even though they are excluded from sales
// figures.
func (s *StoreService) CashInBox() decimal.Decimal {
	cash := s.StoreSettings().InitialCash
	for _, t := range s.transactions.Snapshot() {
		if t.PaymentMethod == models.PaymentCash {
			cash = cash.Add(t.Total)
		}
	}
	for _, w := range s.withdrawals.Snapshot() {
		cash = cash.Sub(w.Amount)
	}
	return cash
}

// SalesTotal sums goods-sale revenue across all transactions. Debt
// payments are excluded: they are cash inflows, not sales.
func (s *StoreService) SalesTotal() decimal.Decimal {
	total := decimal.Zero
	for _, t := range s.transactions.Snapshot() {
		if t.IsDebtPayment() {
			continue
		}
		total = total.Add(t.Total)
	}
	return total
}

// ProfitOfSales derives gross profit over goods sales: selling price minus
// the product's current cost price per line item. Line items referencing a
// deleted product count with zero cost. Debt payments are excluded.
func (s *StoreService) ProfitOfSales() decimal.Decimal {
	profit := decimal.Zero
	for _, t := range s.transactions.Snapshot() {
		if t.IsDebtPayment() {
			continue
		}
		for _, item := range t.Items {
			cost := decimal.Zero
			if product, ok := s.products.Get(item.ProductID); ok {
				cost = product.CostPrice
			}
			margin := item.Price.Sub(cost).Mul(decimal.NewFromInt(item.Quantity))
			profit = profit.Add(margin)
		}
	}
	return profit
}

// --- Settings ---

// StoreSettings returns the current configuration document, or the pristine
// state when onboarding has not happened yet.
func (s *StoreService) StoreSettings() models.StoreSettings {
	if e, ok := s.settings.Get(models.SettingsDocID); ok {
		return e.StoreSettings
	}
	return models.PristineSettings()
}

// SettingsLoading reports whether the settings document is still being
// fetched for the first time.
func (s *StoreService) SettingsLoading() bool {
	return s.settings.Loading()
}

// SetStoreSettings writes the configuration document whole.
func (s *StoreService) SetStoreSettings(ctx context.Context, settings models.StoreSettings) error {
	return s.settings.Set(ctx, models.SettingsDocID, settingsEntity{StoreSettings: settings})
}

// --- Composite operations ---

// RecordSale is the checkout flow: record the transaction, decrement stock
// for every line item, and, for a credit sale, raise the customer's debt.
// The steps mirror how the till composes the primitives; the transaction
// record persists even if a later reconciliation step fails, and the first
// failure is returned after being reported through the usual channel.
func (s *StoreService) RecordSale(ctx context.Context, items []models.LineItem, method models.PaymentMethod, customerID string) (string, error) {
	total := decimal.Zero
	deltas := make([]models.StockDelta, 0, len(items))
	for _, item := range items {
		if item.Quantity <= 0 {
			return "", fmt.Errorf("line item quantity must be positive: %w", apperrors.ErrValidation)
		}
		total = total.Add(item.Price.Mul(decimal.NewFromInt(item.Quantity)))
		deltas = append(deltas, models.StockDelta{ProductID: item.ProductID, Quantity: -item.Quantity})
	}

	txn := models.Transaction{
		Kind:          models.KindSale,
		Items:         items,
		Total:         total,
		PaymentMethod: method,
		CustomerID:    customerID,
	}
	if customerID != "" {
		if customer, ok := s.customers.Get(customerID); ok {
			txn.CustomerName = customer.Name
		}
	}
	if method == models.PaymentCredit && customerID == "" {
		return "", fmt.Errorf("credit sale needs a customer: %w", apperrors.ErrValidation)
	}

	id, err := s.AddTransaction(ctx, txn)
	if err != nil {
		return "", err
	}
	if err := s.ledger.AdjustProductsStock(ctx, deltas); err != nil {
		return id, err
	}
	if method == models.PaymentCredit {
		if err := s.ledger.AdjustCustomerDebt(ctx, customerID, total); err != nil {
			return id, err
		}
	}
	return id, nil
}

// RecordDebtPayment takes a cash payment against a customer's balance:
// a debt-payment transaction (cash inflow) plus the atomic debt decrease.
// Overpayment is rejected here, before anything reaches the engine; the
// engine itself never clamps debt.
func (s *StoreService) RecordDebtPayment(ctx context.Context, customerID string, amount decimal.Decimal) (string, error) {
	if !amount.IsPositive() {
		return "", fmt.Errorf("payment amount must be positive: %w", apperrors.ErrValidation)
	}
	customer, ok := s.customers.Get(customerID)
	if !ok {
		return "", fmt.Errorf("customer %s: %w", customerID, apperrors.ErrNotFound)
	}
	if amount.GreaterThan(customer.TotalDebt) {
		return "", fmt.Errorf("payment %s exceeds debt %s: %w",
			amount, customer.TotalDebt, apperrors.ErrValidation)
	}

	txn := models.Transaction{
		Kind: models.KindDebtPayment,
		Items: []models.LineItem{{
			ProductID:   models.DebtPaymentProductID,
			ProductName: fmt.Sprintf("Debt payment - %s", customer.Name),
			Quantity:    1,
			Price:       amount,
		}},
		Total:         amount,
		PaymentMethod: models.PaymentCash, // debt is always settled in cash
		CustomerID:    customer.ID,
		CustomerName:  customer.Name,
	}
	id, err := s.AddTransaction(ctx, txn)
	if err != nil {
		return "", err
	}
	if err := s.ledger.AdjustCustomerDebt(ctx, customerID, amount.Neg()); err != nil {
		return id, err
	}
	return id, nil
}

// --- Reset ---

// ResetStore destroys every collection's documents, including each
// supplier's ledger sub-collection, then rewrites the settings document to
// its pristine not-yet-onboarded state. A failure aborts the whole
// operation and propagates; partially-deleted collections are not
// compensated.
func (s *StoreService) ResetStore(ctx context.Context) error {
	collections := []string{
		ProductsCollection,
		CustomersCollection,
		TransactionsCollection,
		CashWithdrawalsCollection,
		SuppliersCollection, // covers suppliers/<id>/transactions
	}
	for _, col := range collections {
		if err := s.store.DeleteAll(ctx, col); err != nil {
			return fmt.Errorf("reset: clear %s: %w", col, err)
		}
	}
	pristine := settingsEntity{StoreSettings: models.PristineSettings()}
	data, err := json.Marshal(pristine)
	if err != nil {
		return fmt.Errorf("reset: encode pristine settings: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("reset: encode pristine settings: %w", err)
	}
	if err := s.store.Put(ctx, models.SettingsCollection, models.SettingsDocID, doc); err != nil {
		return fmt.Errorf("reset: rewrite settings: %w", err)
	}
	s.logger.Info("store reset to pristine state")
	return nil
}
