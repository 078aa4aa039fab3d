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

// Collection paths owned by the ledger.
const (
	ProductsCollection  = "products"
	CustomersCollection = "customers"
	SuppliersCollection = "suppliers"
)

// SupplierTransactionsPath is the per-supplier ledger sub-collection.
func SupplierTransactionsPath(supplierID string) string {
	return fmt.Sprintf("%s/%s/transactions", SuppliersCollection, supplierID)
}

// LedgerService keeps secondary balances consistent with primary events.
// Every balance it touches moves through a store-level atomic block:
// read the current balance, compute the new one, write it, and create any
// paired ledger record, all committing as one unit. The store's
// serializable-transaction retry absorbs contention, so concurrent
// operations against the same customer or supplier can never lose an
// update.
type LedgerService struct {
	store    ports.DocumentStore
	notifier ports.FailureNotifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewLedgerService creates a LedgerService over the given store.
func NewLedgerService(store ports.DocumentStore, notifier ports.FailureNotifier, logger *slog.Logger) *LedgerService {
	return &LedgerService{
		store:    store,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// AdjustProductsStock applies a batch of signed stock deltas inside one
// atomic block: each product's stock is read, the delta applied, and the
// result written, with the whole batch committing or aborting together.
// A delta that would drive any product's stock below zero aborts the batch
// with ErrInsufficientStock; absolute corrections go through a product
// update instead.
func (s *LedgerService) AdjustProductsStock(ctx context.Context, deltas []models.StockDelta) error {
	if len(deltas) == 0 {
		return nil
	}
	opCtx := apperrors.OperationContext{Path: ProductsCollection, Operation: "atomic", Payload: deltas}

	err := s.store.RunAtomic(ctx, func(tx ports.AtomicTxn) error {
		for _, delta := range deltas {
			doc, err := tx.Get(ctx, ProductsCollection, delta.ProductID)
			if err != nil {
				return fmt.Errorf("read product %s: %w", delta.ProductID, err)
			}
			stock, err := intField(doc.Data, "stock")
			if err != nil {
				return fmt.Errorf("product %s: %w", delta.ProductID, err)
			}
			newStock := stock + delta.Quantity
			if newStock < 0 {
				return fmt.Errorf("product %s has %d in stock, delta %d: %w",
					delta.ProductID, stock, delta.Quantity, apperrors.ErrInsufficientStock)
			}
			if err := tx.Merge(ctx, ProductsCollection, delta.ProductID, map[string]any{"stock": newStock}); err != nil {
				return fmt.Errorf("write product %s stock: %w", delta.ProductID, err)
			}
		}
		return nil
	})
	if err != nil {
		return s.fail(opCtx, err)
	}
	return nil
}

// AdjustCustomerDebt moves a customer's balance by delta (positive for a
// credit sale, negative for a payment) inside an atomic block. The engine
// does not clamp the result; callers guard against overpayment before
// invoking it.
func (s *LedgerService) AdjustCustomerDebt(ctx context.Context, customerID string, delta decimal.Decimal) error {
	opCtx := apperrors.OperationContext{Path: CustomersCollection, Operation: "atomic", Payload: delta}

	err := s.store.RunAtomic(ctx, func(tx ports.AtomicTxn) error {
		doc, err := tx.Get(ctx, CustomersCollection, customerID)
		if err != nil {
			return fmt.Errorf("read customer %s: %w", customerID, err)
		}
		debt, err := decimalField(doc.Data, "totalDebt")
		if err != nil {
			return fmt.Errorf("customer %s: %w", customerID, err)
		}
		return tx.Merge(ctx, CustomersCollection, customerID, map[string]any{
			"totalDebt": debt.Add(delta),
		})
	})
	if err != nil {
		return s.fail(opCtx, err)
	}
	return nil
}

// RecordSupplierTransaction appends a purchase or payment to the supplier's
// ledger sub-collection and applies the matching debt delta to the parent
// supplier, both inside one atomic block. Recording against a deleted
// supplier returns ErrNotFound.
func (s *LedgerService) RecordSupplierTransaction(ctx context.Context, supplierID string, txType models.SupplierTransactionType, amount decimal.Decimal, description string) error {
	if txType != models.SupplierPurchase && txType != models.SupplierPayment {
		return fmt.Errorf("supplier transaction type %q: %w", txType, apperrors.ErrValidation)
	}
	if !amount.IsPositive() {
		return fmt.Errorf("supplier transaction amount must be positive: %w", apperrors.ErrValidation)
	}

	record := models.SupplierTransaction{
		SupplierID:  supplierID,
		Date:        s.now().UTC(),
		Type:        txType,
		Amount:      amount,
		Description: description,
	}
	opCtx := apperrors.OperationContext{
		Path:      SupplierTransactionsPath(supplierID),
		Operation: "atomic",
		Payload:   record,
	}

	err := s.store.RunAtomic(ctx, func(tx ports.AtomicTxn) error {
		doc, err := tx.Get(ctx, SuppliersCollection, supplierID)
		if err != nil {
			return fmt.Errorf("read supplier %s: %w", supplierID, err)
		}
		debt, err := decimalField(doc.Data, "totalDebt")
		if err != nil {
			return fmt.Errorf("supplier %s: %w", supplierID, err)
		}
		newDebt := debt.Add(record.DebtDelta())
		if err := tx.Merge(ctx, SuppliersCollection, supplierID, map[string]any{"totalDebt": newDebt}); err != nil {
			return fmt.Errorf("write supplier %s debt: %w", supplierID, err)
		}
		if _, err := tx.Create(ctx, SupplierTransactionsPath(supplierID), encodeRecord(record)); err != nil {
			return fmt.Errorf("append supplier %s ledger record: %w", supplierID, err)
		}
		return nil
	})
	if err != nil {
		return s.fail(opCtx, err)
	}
	return nil
}

func (s *LedgerService) fail(opCtx apperrors.OperationContext, err error) error {
	classified := err
	if !isClassified(err) {
		classified = apperrors.NewTransientError(opCtx, err)
	}
	s.logger.Warn("ledger operation aborted",
		slog.String("path", opCtx.Path), slog.String("error", classified.Error()))
	s.notifier.Publish(ports.FailureEvent{Context: opCtx, Err: classified})
	return classified
}

func encodeRecord(record models.SupplierTransaction) map[string]any {
	return map[string]any{
		"supplierId":  record.SupplierID,
		"date":        record.Date.Format(time.RFC3339Nano),
		"type":        record.Type,
		"amount":      record.Amount,
		"description": record.Description,
	}
}

// intField extracts an integer field from a raw document payload.
func intField(data json.RawMessage, field string) (int64, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return 0, fmt.Errorf("decode document: %w", err)
	}
	raw, ok := doc[field]
	if !ok {
		return 0, fmt.Errorf("field %q missing", field)
	}
	var v int64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, fmt.Errorf("field %q: %w", field, err)
	}
	return v, nil
}

// decimalField extracts a decimal field from a raw document payload.
// Missing fields read as zero so that documents created before the field
// existed still reconcile.
func decimalField(data json.RawMessage, field string) (decimal.Decimal, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return decimal.Zero, fmt.Errorf("decode document: %w", err)
	}
	raw, ok := doc[field]
	if !ok {
		return decimal.Zero, nil
	}
	var v decimal.Decimal
	if err := json.Unmarshal(raw, &v); err != nil {
		return decimal.Zero, fmt.Errorf("field %q: %w", field, err)
	}
	return v, nil
}
