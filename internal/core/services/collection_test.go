package services_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/hanoutiya/hanoutiya-core/internal/adapters/database/memstore"
	"github.com/hanoutiya/hanoutiya-core/internal/apperrors"
	"github.com/hanoutiya/hanoutiya-core/internal/core/services"
	"github.com/hanoutiya/hanoutiya-core/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type CollectionTestSuite struct {
	suite.Suite
	store    *memstore.Store
	notifier *services.Notifier
	products *services.Collection[models.Product]
}

func (s *CollectionTestSuite) SetupTest() {
	s.store = memstore.New()
	s.notifier = services.NewNotifier(16, testLogger())
	s.products = services.NewCollection(services.ProductsCollection, s.store, s.notifier, testLogger(),
		func(p models.Product) string { return p.ID },
		func(p models.Product, id string) models.Product { p.ID = id; return p })
	s.Require().NoError(s.products.Open(context.Background()))
}

func (s *CollectionTestSuite) TearDownTest() {
	s.products.Close()
}

func (s *CollectionTestSuite) TestOpenClearsLoadingFlag() {
	s.False(s.products.Loading())
	s.Empty(s.products.Snapshot())
}

func (s *CollectionTestSuite) TestCreate_ReconcilesStoreAssignedID() {
	id, err := s.products.Create(context.Background(), models.Product{
		Name: "Sucre 1kg", Stock: 10, SellingPrice: decimal.NewFromInt(9),
	})
	s.Require().NoError(err)
	s.NotEmpty(id)
	s.False(strings.HasPrefix(id, "temp-"))

	got, ok := s.products.Get(id)
	s.Require().True(ok)
	s.Equal("Sucre 1kg", got.Name)
	s.Equal(id, got.ID)

	// The remote document carries the data but not the id field.
	doc, err := s.store.Get(context.Background(), services.ProductsCollection, id)
	s.Require().NoError(err)
	s.NotContains(string(doc.Data), `"id"`)
}

func (s *CollectionTestSuite) TestCreate_RollbackRemovesTempEntry() {
	before := s.products.Snapshot()
	s.store.FailNext("create", services.ProductsCollection, errors.New("socket closed"))

	_, err := s.products.Create(context.Background(), models.Product{Name: "Lait"})
	s.Require().Error(err)

	var te *apperrors.TransientError
	s.Require().ErrorAs(err, &te)
	s.Equal("create", te.Context.Operation)
	s.Equal(before, s.products.Snapshot())

	select {
	case event := <-s.notifier.Events():
		s.Equal(services.ProductsCollection, event.Context.Path)
		s.False(event.PermissionDenied())
	default:
		s.Fail("expected a failure event")
	}
}

func (s *CollectionTestSuite) TestCreate_PermissionErrorKeptAsIs() {
	opCtx := apperrors.OperationContext{Path: services.ProductsCollection, Operation: "create"}
	s.store.FailNext("create", services.ProductsCollection,
		apperrors.NewPermissionError(opCtx, errors.New("rules rejected write")))

	_, err := s.products.Create(context.Background(), models.Product{Name: "Huile"})
	s.Require().Error(err)
	s.True(apperrors.IsPermissionDenied(err))

	event := <-s.notifier.Events()
	s.True(event.PermissionDenied())
}

func (s *CollectionTestSuite) TestUpdate_AppliesLocallyAndRemotely() {
	id, err := s.products.Create(context.Background(), models.Product{Name: "Farine", Stock: 5})
	s.Require().NoError(err)

	name := "Farine 2kg"
	stock := int64(8)
	err = s.products.Update(context.Background(), id, models.ProductPatch{Name: &name, Stock: &stock})
	s.Require().NoError(err)

	got, ok := s.products.Get(id)
	s.Require().True(ok)
	s.Equal("Farine 2kg", got.Name)
	s.Equal(int64(8), got.Stock)
}

func (s *CollectionTestSuite) TestUpdate_RollbackRestoresSnapshot() {
	id, err := s.products.Create(context.Background(), models.Product{Name: "Tomates", Stock: 3})
	s.Require().NoError(err)
	before := s.products.Snapshot()

	s.store.FailNext("merge", services.ProductsCollection, errors.New("timeout"))
	name := "Tomates pelees"
	err = s.products.Update(context.Background(), id, models.ProductPatch{Name: &name})
	s.Require().Error(err)

	s.Equal(before, s.products.Snapshot())
	got, _ := s.products.Get(id)
	s.Equal("Tomates", got.Name)
}

func (s *CollectionTestSuite) TestUpdate_UnknownID() {
	name := "x"
	err := s.products.Update(context.Background(), "missing", models.ProductPatch{Name: &name})
	s.ErrorIs(err, apperrors.ErrNotFound)
}

func (s *CollectionTestSuite) TestDelete_RollbackRestoresSnapshot() {
	id, err := s.products.Create(context.Background(), models.Product{Name: "Cafe"})
	s.Require().NoError(err)
	before := s.products.Snapshot()

	s.store.FailNext("delete", services.ProductsCollection, errors.New("timeout"))
	s.Require().Error(s.products.Delete(context.Background(), id))
	s.Equal(before, s.products.Snapshot())

	s.Require().NoError(s.products.Delete(context.Background(), id))
	_, ok := s.products.Get(id)
	s.False(ok)
}

// concurrentWritePatch lands an out-of-band write on the shared store
// between the local apply and the remote merge, standing in for another
// client racing the mutation.
type concurrentWritePatch struct {
	models.ProductPatch
	store *memstore.Store
	id    string
	data  map[string]any
}

func (p concurrentWritePatch) Changes() map[string]any {
	_ = p.store.Put(context.Background(), services.ProductsCollection, p.id, p.data)
	return p.ProductPatch.Changes()
}

func (s *CollectionTestSuite) TestStaleRollbackYieldsToFreshSnapshot() {
	id, err := s.products.Create(context.Background(), models.Product{Name: "Savon", Stock: 1})
	s.Require().NoError(err)

	// Another client rewrites the document while our merge is in flight,
	// which refreshes the mirror; when the merge then fails, the rollback
	// must not resurrect the pre-race state.
	s.store.FailNext("merge", services.ProductsCollection, errors.New("timeout"))
	name := "Savon noir"
	err = s.products.Update(context.Background(), id, concurrentWritePatch{
		ProductPatch: models.ProductPatch{Name: &name},
		store:        s.store,
		id:           id,
		data:         map[string]any{"name": "Savon liquide", "stock": 7},
	})
	s.Require().Error(err)

	got, ok := s.products.Get(id)
	s.Require().True(ok)
	s.Equal("Savon liquide", got.Name)
	s.Equal(int64(7), got.Stock)
}

func (s *CollectionTestSuite) TestSubscriptionRefreshReplacesSnapshotWholesale() {
	_, err := s.products.Create(context.Background(), models.Product{Name: "The"})
	s.Require().NoError(err)

	// An out-of-band delete plus create must fully replace the mirror.
	s.Require().NoError(s.store.DeleteAll(context.Background(), services.ProductsCollection))
	s.Empty(s.products.Snapshot())

	_, err = s.store.Create(context.Background(), services.ProductsCollection, map[string]any{
		"name": "Menthe", "stock": 2,
	})
	s.Require().NoError(err)
	snapshot := s.products.Snapshot()
	s.Require().Len(snapshot, 1)
	s.Equal("Menthe", snapshot[0].Name)
}

func TestCollectionTestSuite(t *testing.T) {
	suite.Run(t, new(CollectionTestSuite))
}
