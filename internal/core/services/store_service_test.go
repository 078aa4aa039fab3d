package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/hanoutiya/hanoutiya-core/internal/adapters/database/memstore"
	"github.com/hanoutiya/hanoutiya-core/internal/apperrors"
	"github.com/hanoutiya/hanoutiya-core/internal/core/services"
	"github.com/hanoutiya/hanoutiya-core/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type StoreServiceTestSuite struct {
	suite.Suite
	ctx      context.Context
	store    *memstore.Store
	notifier *services.Notifier
	service  *services.StoreService
}

func (s *StoreServiceTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = memstore.New()
	s.notifier = services.NewNotifier(32, testLogger())
	s.service = services.NewStoreService(s.store, s.notifier, testLogger())
	s.Require().NoError(s.service.Open(s.ctx))
}

func (s *StoreServiceTestSuite) TearDownTest() {
	s.service.Close()
}

func (s *StoreServiceTestSuite) addProduct(name string, stock int64, price int64) string {
	id, err := s.service.AddProduct(s.ctx, models.Product{
		Name: name, Stock: stock, SellingPrice: decimal.NewFromInt(price),
	})
	s.Require().NoError(err)
	return id
}

func (s *StoreServiceTestSuite) addCustomer(name string, debt decimal.Decimal) string {
	id, err := s.service.AddCustomer(s.ctx, models.Customer{Name: name, TotalDebt: debt})
	s.Require().NoError(err)
	return id
}

func (s *StoreServiceTestSuite) customerDebt(id string) decimal.Decimal {
	customer, ok := s.service.Customers().Get(id)
	s.Require().True(ok)
	return customer.TotalDebt
}

// --- Products ---

func (s *StoreServiceTestSuite) TestAddProduct_Validation() {
	_, err := s.service.AddProduct(s.ctx, models.Product{Name: ""})
	s.ErrorIs(err, apperrors.ErrValidation)

	_, err = s.service.AddProduct(s.ctx, models.Product{Name: "x", Stock: -1})
	s.ErrorIs(err, apperrors.ErrValidation)

	_, err = s.service.AddProduct(s.ctx, models.Product{
		Name: "x", CostPrice: decimal.NewFromInt(-1),
	})
	s.ErrorIs(err, apperrors.ErrValidation)
}

func (s *StoreServiceTestSuite) TestUpdateProduct_DoesNotTouchOtherFields() {
	id := s.addProduct("Riz", 20, 120)
	barcode := "6130000000017"
	s.Require().NoError(s.service.UpdateProduct(s.ctx, id, models.ProductPatch{Barcode: &barcode}))

	got, ok := s.service.Products().Get(id)
	s.Require().True(ok)
	s.Equal("Riz", got.Name)
	s.Equal(int64(20), got.Stock)
	s.Equal("6130000000017", got.Barcode)
}

// --- Sales ---

func (s *StoreServiceTestSuite) TestRecordSale_CashDecrementsStockAndFillsCashBox() {
	productID := s.addProduct("Pain", 10, 15)

	txnID, err := s.service.RecordSale(s.ctx, []models.LineItem{
		{ProductID: productID, ProductName: "Pain", Quantity: 3, Price: decimal.NewFromInt(15)},
	}, models.PaymentCash, "")
	s.Require().NoError(err)

	product, _ := s.service.Products().Get(productID)
	s.Equal(int64(7), product.Stock)

	txn, ok := s.service.Transactions().Get(txnID)
	s.Require().True(ok)
	s.Equal(models.KindSale, txn.Kind)
	s.False(txn.IsDebtPayment())
	s.True(txn.Total.Equal(decimal.NewFromInt(45)))
	s.False(txn.Date.IsZero())

	s.True(s.service.CashInBox().Equal(decimal.NewFromInt(45)))
}

func (s *StoreServiceTestSuite) TestRecordSale_CreditRaisesDebtNotCash() {
	productID := s.addProduct("Huile 5L", 4, 700)
	customerID := s.addCustomer("Khaled", decimal.Zero)

	_, err := s.service.RecordSale(s.ctx, []models.LineItem{
		{ProductID: productID, Quantity: 1, Price: decimal.NewFromInt(700)},
	}, models.PaymentCredit, customerID)
	s.Require().NoError(err)

	s.True(s.customerDebt(customerID).Equal(decimal.NewFromInt(700)))
	s.True(s.service.CashInBox().IsZero())

	debtors := s.service.DebtorCustomers()
	s.Require().Len(debtors, 1)
	s.Equal(customerID, debtors[0].ID)
}

func (s *StoreServiceTestSuite) TestRecordSale_CreditWithoutCustomerRejected() {
	productID := s.addProduct("Sel", 5, 3)
	_, err := s.service.RecordSale(s.ctx, []models.LineItem{
		{ProductID: productID, Quantity: 1, Price: decimal.NewFromInt(3)},
	}, models.PaymentCredit, "")
	s.ErrorIs(err, apperrors.ErrValidation)
}

func (s *StoreServiceTestSuite) TestRecordSale_InsufficientStockKeepsTransaction() {
	productID := s.addProduct("Beurre", 2, 50)

	txnID, err := s.service.RecordSale(s.ctx, []models.LineItem{
		{ProductID: productID, Quantity: 5, Price: decimal.NewFromInt(50)},
	}, models.PaymentCash, "")
	s.Require().ErrorIs(err, apperrors.ErrInsufficientStock)

	// The transaction record survives; only the reconciliation aborted.
	_, ok := s.service.Transactions().Get(txnID)
	s.True(ok)
	product, _ := s.service.Products().Get(productID)
	s.Equal(int64(2), product.Stock)
}

// --- Cash box ---

func (s *StoreServiceTestSuite) TestCashInBox_DerivedFromEvents() {
	s.Require().NoError(s.service.SetStoreSettings(s.ctx, models.StoreSettings{
		StoreName:        "Hanout El Baraka",
		InitialCash:      decimal.NewFromInt(100),
		InitialSetupDone: true,
	}))
	productID := s.addProduct("Yaourt", 50, 5)
	customerID := s.addCustomer("Nadia", decimal.NewFromInt(80))

	// Cash sale of 50 and a debt payment of 20 flow in; credit sales do not.
	_, err := s.service.RecordSale(s.ctx, []models.LineItem{
		{ProductID: productID, Quantity: 10, Price: decimal.NewFromInt(5)},
	}, models.PaymentCash, "")
	s.Require().NoError(err)
	_, err = s.service.RecordSale(s.ctx, []models.LineItem{
		{ProductID: productID, Quantity: 4, Price: decimal.NewFromInt(5)},
	}, models.PaymentCredit, customerID)
	s.Require().NoError(err)
	_, err = s.service.RecordDebtPayment(s.ctx, customerID, decimal.NewFromInt(20))
	s.Require().NoError(err)

	_, err = s.service.AddCashWithdrawal(s.ctx, models.CashWithdrawal{Amount: decimal.NewFromInt(30)})
	s.Require().NoError(err)

	// 100 + 50 + 20 - 30
	s.True(s.service.CashInBox().Equal(decimal.NewFromInt(140)))
}

func (s *StoreServiceTestSuite) TestSalesFigures_ExcludeDebtPayments() {
	productID, err := s.service.AddProduct(s.ctx, models.Product{
		Name:         "Camembert",
		Stock:        10,
		CostPrice:    decimal.NewFromInt(20),
		SellingPrice: decimal.NewFromInt(30),
	})
	s.Require().NoError(err)
	customerID := s.addCustomer("Farid", decimal.NewFromInt(100))

	_, err = s.service.RecordSale(s.ctx, []models.LineItem{
		{ProductID: productID, Quantity: 2, Price: decimal.NewFromInt(30)},
	}, models.PaymentCash, "")
	s.Require().NoError(err)
	_, err = s.service.RecordSale(s.ctx, []models.LineItem{
		{ProductID: productID, Quantity: 1, Price: decimal.NewFromInt(30)},
	}, models.PaymentCredit, customerID)
	s.Require().NoError(err)
	_, err = s.service.RecordDebtPayment(s.ctx, customerID, decimal.NewFromInt(50))
	s.Require().NoError(err)

	// 60 cash + 30 credit; the 50 debt payment is a cash inflow, not a sale.
	s.True(s.service.SalesTotal().Equal(decimal.NewFromInt(90)))
	// (30-20)*2 + (30-20)*1
	s.True(s.service.ProfitOfSales().Equal(decimal.NewFromInt(30)))
}

func (s *StoreServiceTestSuite) TestProfitOfSales_DeletedProductCountsZeroCost() {
	productID, err := s.service.AddProduct(s.ctx, models.Product{
		Name:         "Galette",
		Stock:        5,
		CostPrice:    decimal.NewFromInt(5),
		SellingPrice: decimal.NewFromInt(8),
	})
	s.Require().NoError(err)

	_, err = s.service.RecordSale(s.ctx, []models.LineItem{
		{ProductID: productID, Quantity: 1, Price: decimal.NewFromInt(8)},
	}, models.PaymentCash, "")
	s.Require().NoError(err)
	s.True(s.service.ProfitOfSales().Equal(decimal.NewFromInt(3)))

	s.Require().NoError(s.service.DeleteProduct(s.ctx, productID))
	s.True(s.service.ProfitOfSales().Equal(decimal.NewFromInt(8)))
}

func (s *StoreServiceTestSuite) TestAddCashWithdrawal_Validation() {
	_, err := s.service.AddCashWithdrawal(s.ctx, models.CashWithdrawal{Amount: decimal.Zero})
	s.ErrorIs(err, apperrors.ErrValidation)
}

// --- Debt payments ---

func (s *StoreServiceTestSuite) TestRecordDebtPayment_SettlesInInstallments() {
	customerID := s.addCustomer("Samir", decimal.NewFromInt(1500))

	_, err := s.service.RecordDebtPayment(s.ctx, customerID, decimal.NewFromInt(750))
	s.Require().NoError(err)
	s.True(s.customerDebt(customerID).Equal(decimal.NewFromInt(750)))

	txnID, err := s.service.RecordDebtPayment(s.ctx, customerID, decimal.NewFromInt(750))
	s.Require().NoError(err)
	s.True(s.customerDebt(customerID).IsZero())
	s.Empty(s.service.DebtorCustomers())

	// The record is tagged and carries the sentinel line item.
	txn, ok := s.service.Transactions().Get(txnID)
	s.Require().True(ok)
	s.True(txn.IsDebtPayment())
	s.Equal(models.PaymentCash, txn.PaymentMethod)
	s.Require().Len(txn.Items, 1)
	s.Equal(models.DebtPaymentProductID, txn.Items[0].ProductID)

	// A third payment against a settled balance is refused before anything
	// is written.
	_, err = s.service.RecordDebtPayment(s.ctx, customerID, decimal.NewFromInt(100))
	s.Require().ErrorIs(err, apperrors.ErrValidation)
	s.True(s.customerDebt(customerID).IsZero())
}

func (s *StoreServiceTestSuite) TestRecordDebtPayment_Guards() {
	_, err := s.service.RecordDebtPayment(s.ctx, "ghost", decimal.NewFromInt(10))
	s.ErrorIs(err, apperrors.ErrNotFound)

	customerID := s.addCustomer("Lina", decimal.NewFromInt(50))
	_, err = s.service.RecordDebtPayment(s.ctx, customerID, decimal.Zero)
	s.ErrorIs(err, apperrors.ErrValidation)
	_, err = s.service.RecordDebtPayment(s.ctx, customerID, decimal.NewFromInt(60))
	s.ErrorIs(err, apperrors.ErrValidation)
}

func (s *StoreServiceTestSuite) TestDebtorView_EpsilonSettlement() {
	// A residual of a thousandth counts as settled, a centime does not.
	settledID := s.addCustomer("Reste 0.001", decimal.NewFromFloat(0.001))
	owingID := s.addCustomer("Reste 0.01", decimal.NewFromFloat(0.01))

	debtors := s.service.DebtorCustomers()
	s.Require().Len(debtors, 1)
	s.Equal(owingID, debtors[0].ID)

	settled, _ := s.service.Customers().Get(settledID)
	s.False(settled.HasOutstandingDebt())
}

// --- Suppliers ---

func (s *StoreServiceTestSuite) TestSupplierLifecycle() {
	supplierID, err := s.service.AddSupplier(s.ctx, models.Supplier{Name: "Semoulerie"})
	s.Require().NoError(err)

	err = s.service.RecordSupplierTransaction(s.ctx, supplierID,
		models.SupplierPurchase, decimal.NewFromInt(5000), "semoule")
	s.Require().NoError(err)
	err = s.service.RecordSupplierTransaction(s.ctx, supplierID,
		models.SupplierPayment, decimal.NewFromInt(2000), "")
	s.Require().NoError(err)

	supplier, ok := s.service.Suppliers().Get(supplierID)
	s.Require().True(ok)
	s.True(supplier.TotalDebt.Equal(decimal.NewFromInt(3000)))

	history, err := s.service.SupplierTransactions(s.ctx, supplierID)
	s.Require().NoError(err)
	s.Require().Len(history, 2)
	s.NotEmpty(history[0].ID)

	s.Require().NoError(s.service.DeleteSupplier(s.ctx, supplierID))
	err = s.service.RecordSupplierTransaction(s.ctx, supplierID,
		models.SupplierPayment, decimal.NewFromInt(1), "")
	s.ErrorIs(err, apperrors.ErrNotFound)
}

// --- Settings and reset ---

func (s *StoreServiceTestSuite) TestStoreSettings_PristineUntilOnboarded() {
	settings := s.service.StoreSettings()
	s.False(settings.InitialSetupDone)
	s.True(settings.InitialCash.IsZero())

	s.Require().NoError(s.service.SetStoreSettings(s.ctx, models.StoreSettings{
		StoreName: "Chez Moussa", InitialCash: decimal.NewFromInt(500), InitialSetupDone: true,
	}))
	settings = s.service.StoreSettings()
	s.True(settings.InitialSetupDone)
	s.Equal("Chez Moussa", settings.StoreName)
}

func (s *StoreServiceTestSuite) TestResetStore_ClearsEverything() {
	s.Require().NoError(s.service.SetStoreSettings(s.ctx, models.StoreSettings{
		StoreName: "Avant reset", InitialCash: decimal.NewFromInt(200), InitialSetupDone: true,
	}))
	productID := s.addProduct("Eau 1.5L", 24, 4)
	customerID := s.addCustomer("Walid", decimal.NewFromInt(100))
	supplierID, err := s.service.AddSupplier(s.ctx, models.Supplier{Name: "Limonaderie"})
	s.Require().NoError(err)
	s.Require().NoError(s.service.RecordSupplierTransaction(s.ctx, supplierID,
		models.SupplierPurchase, decimal.NewFromInt(900), ""))
	_, err = s.service.RecordSale(s.ctx, []models.LineItem{
		{ProductID: productID, Quantity: 6, Price: decimal.NewFromInt(4)},
	}, models.PaymentCash, "")
	s.Require().NoError(err)
	_, err = s.service.AddCashWithdrawal(s.ctx, models.CashWithdrawal{Amount: decimal.NewFromInt(10)})
	s.Require().NoError(err)

	s.Require().NoError(s.service.ResetStore(s.ctx))

	s.Empty(s.service.Products().Snapshot())
	s.Empty(s.service.Customers().Snapshot())
	_, ok := s.service.Customers().Get(customerID)
	s.False(ok)
	s.Empty(s.service.Transactions().Snapshot())
	s.Empty(s.service.Withdrawals().Snapshot())
	s.Empty(s.service.Suppliers().Snapshot())

	history, err := s.service.SupplierTransactions(s.ctx, supplierID)
	s.Require().NoError(err)
	s.Empty(history)

	settings := s.service.StoreSettings()
	s.False(settings.InitialSetupDone)
	s.Empty(settings.StoreName)
	s.True(settings.InitialCash.IsZero())
	s.True(s.service.CashInBox().IsZero())
}

func (s *StoreServiceTestSuite) TestResetStore_AbortsOnFailure() {
	s.addProduct("Reste", 1, 1)
	boom := errors.New("store offline")
	s.store.FailNext("deleteAll", services.CustomersCollection, boom)

	err := s.service.ResetStore(s.ctx)
	s.Require().ErrorIs(err, boom)
}

func TestStoreServiceTestSuite(t *testing.T) {
	suite.Run(t, new(StoreServiceTestSuite))
}
