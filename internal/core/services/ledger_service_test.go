package services_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/hanoutiya/hanoutiya-core/internal/adapters/database/memstore"
	"github.com/hanoutiya/hanoutiya-core/internal/apperrors"
	"github.com/hanoutiya/hanoutiya-core/internal/core/services"
	"github.com/hanoutiya/hanoutiya-core/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type LedgerServiceTestSuite struct {
	suite.Suite
	store    *memstore.Store
	notifier *services.Notifier
	ledger   *services.LedgerService
}

func (s *LedgerServiceTestSuite) SetupTest() {
	s.store = memstore.New()
	s.notifier = services.NewNotifier(16, testLogger())
	s.ledger = services.NewLedgerService(s.store, s.notifier, testLogger())
}

func (s *LedgerServiceTestSuite) seedProduct(id string, stock int64) {
	s.Require().NoError(s.store.Put(context.Background(), services.ProductsCollection, id,
		map[string]any{"name": id, "stock": stock}))
}

func (s *LedgerServiceTestSuite) seedCustomer(id string, debt decimal.Decimal) {
	s.Require().NoError(s.store.Put(context.Background(), services.CustomersCollection, id,
		map[string]any{"name": id, "totalDebt": debt}))
}

func (s *LedgerServiceTestSuite) seedSupplier(id string, debt decimal.Decimal) {
	s.Require().NoError(s.store.Put(context.Background(), services.SuppliersCollection, id,
		map[string]any{"name": id, "totalDebt": debt}))
}

func (s *LedgerServiceTestSuite) productStock(id string) int64 {
	doc, err := s.store.Get(context.Background(), services.ProductsCollection, id)
	s.Require().NoError(err)
	var payload struct {
		Stock int64 `json:"stock"`
	}
	s.Require().NoError(json.Unmarshal(doc.Data, &payload))
	return payload.Stock
}

func (s *LedgerServiceTestSuite) balance(collection, id string) decimal.Decimal {
	doc, err := s.store.Get(context.Background(), collection, id)
	s.Require().NoError(err)
	var payload struct {
		TotalDebt decimal.Decimal `json:"totalDebt"`
	}
	s.Require().NoError(json.Unmarshal(doc.Data, &payload))
	return payload.TotalDebt
}

func (s *LedgerServiceTestSuite) TestAdjustProductsStock_BatchApplied() {
	s.seedProduct("p1", 10)
	s.seedProduct("p2", 4)

	err := s.ledger.AdjustProductsStock(context.Background(), []models.StockDelta{
		{ProductID: "p1", Quantity: -3},
		{ProductID: "p2", Quantity: 6},
	})
	s.Require().NoError(err)
	s.Equal(int64(7), s.productStock("p1"))
	s.Equal(int64(10), s.productStock("p2"))
}

func (s *LedgerServiceTestSuite) TestAdjustProductsStock_EmptyBatchIsNoop() {
	s.NoError(s.ledger.AdjustProductsStock(context.Background(), nil))
}

func (s *LedgerServiceTestSuite) TestAdjustProductsStock_InsufficientStockAbortsWholeBatch() {
	s.seedProduct("p1", 10)
	s.seedProduct("p2", 2)

	err := s.ledger.AdjustProductsStock(context.Background(), []models.StockDelta{
		{ProductID: "p1", Quantity: -3},
		{ProductID: "p2", Quantity: -5},
	})
	s.Require().ErrorIs(err, apperrors.ErrInsufficientStock)

	// Neither write lands, including the one that would have succeeded.
	s.Equal(int64(10), s.productStock("p1"))
	s.Equal(int64(2), s.productStock("p2"))

	event := <-s.notifier.Events()
	s.Equal(services.ProductsCollection, event.Context.Path)
}

func (s *LedgerServiceTestSuite) TestAdjustProductsStock_MissingProduct() {
	err := s.ledger.AdjustProductsStock(context.Background(), []models.StockDelta{
		{ProductID: "ghost", Quantity: -1},
	})
	s.ErrorIs(err, apperrors.ErrNotFound)
}

func (s *LedgerServiceTestSuite) TestAdjustCustomerDebt_ReadComputeWrite() {
	s.seedCustomer("c1", decimal.NewFromInt(100))

	s.Require().NoError(s.ledger.AdjustCustomerDebt(context.Background(), "c1", decimal.NewFromInt(40)))
	s.Require().NoError(s.ledger.AdjustCustomerDebt(context.Background(), "c1", decimal.NewFromInt(-90)))

	s.True(s.balance(services.CustomersCollection, "c1").Equal(decimal.NewFromInt(50)))
}

func (s *LedgerServiceTestSuite) TestAdjustCustomerDebt_ConcurrentDeltasAllLand() {
	s.seedCustomer("c1", decimal.Zero)

	deltas := []int64{10, 25, -5, 40, -15, 30, 5, -20}
	expected := int64(0)
	for _, d := range deltas {
		expected += d
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(deltas))
	for _, d := range deltas {
		wg.Add(1)
		go func(delta int64) {
			defer wg.Done()
			errs <- s.ledger.AdjustCustomerDebt(context.Background(), "c1", decimal.NewFromInt(delta))
		}(d)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.Require().NoError(err)
	}

	s.True(s.balance(services.CustomersCollection, "c1").Equal(decimal.NewFromInt(expected)))
}

func (s *LedgerServiceTestSuite) TestRecordSupplierTransaction_PurchaseAndPayment() {
	s.seedSupplier("s1", decimal.NewFromInt(200))

	err := s.ledger.RecordSupplierTransaction(context.Background(), "s1",
		models.SupplierPurchase, decimal.NewFromInt(300), "flour delivery")
	s.Require().NoError(err)
	err = s.ledger.RecordSupplierTransaction(context.Background(), "s1",
		models.SupplierPayment, decimal.NewFromInt(150), "")
	s.Require().NoError(err)

	s.True(s.balance(services.SuppliersCollection, "s1").Equal(decimal.NewFromInt(350)))

	docs, err := s.store.List(context.Background(), services.SupplierTransactionsPath("s1"))
	s.Require().NoError(err)
	s.Require().Len(docs, 2)

	var record models.SupplierTransaction
	s.Require().NoError(json.Unmarshal(docs[0].Data, &record))
	s.Equal("s1", record.SupplierID)
	s.Equal(models.SupplierPurchase, record.Type)
	s.True(record.Amount.Equal(decimal.NewFromInt(300)))
	s.Equal("flour delivery", record.Description)
	s.False(record.Date.IsZero())
}

func (s *LedgerServiceTestSuite) TestRecordSupplierTransaction_ConcurrentRecordsAllLand() {
	s.seedSupplier("s1", decimal.NewFromInt(100))

	type entry struct {
		txType models.SupplierTransactionType
		amount int64
	}
	entries := []entry{
		{models.SupplierPurchase, 200},
		{models.SupplierPayment, 50},
		{models.SupplierPurchase, 300},
		{models.SupplierPayment, 120},
		{models.SupplierPurchase, 80},
		{models.SupplierPayment, 10},
	}
	expected := decimal.NewFromInt(100)
	for _, e := range entries {
		record := models.SupplierTransaction{Type: e.txType, Amount: decimal.NewFromInt(e.amount)}
		expected = expected.Add(record.DebtDelta())
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(entries))
	for _, e := range entries {
		wg.Add(1)
		go func(e entry) {
			defer wg.Done()
			errs <- s.ledger.RecordSupplierTransaction(context.Background(), "s1",
				e.txType, decimal.NewFromInt(e.amount), "")
		}(e)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.Require().NoError(err)
	}

	// Every debt delta lands and every call leaves exactly one ledger
	// record, regardless of interleaving.
	s.True(s.balance(services.SuppliersCollection, "s1").Equal(expected))
	docs, err := s.store.List(context.Background(), services.SupplierTransactionsPath("s1"))
	s.Require().NoError(err)
	s.Len(docs, len(entries))
}

func (s *LedgerServiceTestSuite) TestRecordSupplierTransaction_DeletedSupplier() {
	err := s.ledger.RecordSupplierTransaction(context.Background(), "gone",
		models.SupplierPayment, decimal.NewFromInt(10), "")
	s.Require().ErrorIs(err, apperrors.ErrNotFound)

	// No orphan ledger record may appear.
	docs, err := s.store.List(context.Background(), services.SupplierTransactionsPath("gone"))
	s.Require().NoError(err)
	s.Empty(docs)
}

func (s *LedgerServiceTestSuite) TestRecordSupplierTransaction_Validation() {
	s.seedSupplier("s1", decimal.Zero)

	err := s.ledger.RecordSupplierTransaction(context.Background(), "s1",
		"refund", decimal.NewFromInt(10), "")
	s.ErrorIs(err, apperrors.ErrValidation)

	err = s.ledger.RecordSupplierTransaction(context.Background(), "s1",
		models.SupplierPayment, decimal.Zero, "")
	s.ErrorIs(err, apperrors.ErrValidation)
}

func TestLedgerServiceTestSuite(t *testing.T) {
	suite.Run(t, new(LedgerServiceTestSuite))
}
