package ports

import (
	"context"
	"encoding/json"
)

// RawDocument is a store document as the adapter hands it over: the
// store-assigned id plus the JSON payload. The id lives outside the payload;
// decoding layers stamp it back onto the entity.
type RawDocument struct {
	ID   string
	Data json.RawMessage
}

// Unsubscribe tears down a live subscription. Safe to call more than once.
type Unsubscribe func()

// AtomicTxn is the transactional context handed to a RunAtomic block. Reads
// observe a serializable snapshot; writes are buffered and commit as one
// unit or not at all.
type AtomicTxn interface {
	// Get reads a document inside the transaction. Returns
	// apperrors.ErrNotFound when the document does not exist.
	Get(ctx context.Context, collection, id string) (*RawDocument, error)
	// Create inserts a new document and returns its store-assigned id.
	Create(ctx context.Context, collection string, data any) (string, error)
	// Merge applies a partial update to an existing document.
	Merge(ctx context.Context, collection, id string, patch map[string]any) error
	// Delete removes a document.
	Delete(ctx context.Context, collection, id string) error
}

// DocumentStore is the remote boundary: a transactional document database
// addressed by collection path and document id. Collection paths may be
// nested ("suppliers/<id>/transactions"); DeleteAll covers a collection and
// everything beneath it.
//
// Implementations perform no business logic. All failures surface as
// apperrors types: permission refusals as *apperrors.PermissionError,
// everything else as *apperrors.TransientError or apperrors.ErrNotFound.
type DocumentStore interface {
	// Get reads one document. Returns apperrors.ErrNotFound when absent.
	Get(ctx context.Context, collection, id string) (*RawDocument, error)
	// List reads every document of a collection in creation order.
	List(ctx context.Context, collection string) ([]RawDocument, error)
	// Create inserts a document and returns the store-assigned id.
	Create(ctx context.Context, collection string, data any) (string, error)
	// Put writes a document at a known id, creating or replacing it whole.
	// Used for the singleton settings document.
	Put(ctx context.Context, collection, id string, data any) error
	// Merge applies a partial update. Returns apperrors.ErrNotFound when
	// the document does not exist.
	Merge(ctx context.Context, collection, id string, patch map[string]any) error
	// Delete removes one document. Deleting an absent document is not an
	// error.
	Delete(ctx context.Context, collection, id string) error
	// DeleteAll removes every document of a collection and of all its
	// sub-collections.
	DeleteAll(ctx context.Context, collection string) error
	// RunAtomic executes fn with read-then-write semantics across multiple
	// documents under serializable isolation. The store retries fn on
	// contention; fn must therefore be safe to re-run. Any error returned
	// by fn aborts the block and is returned unchanged (after
	// classification of store-originated causes).
	RunAtomic(ctx context.Context, fn func(tx AtomicTxn) error) error
	// Subscribe registers a live mirror of a collection. onChange fires
	// once with the initial contents and again after every committed
	// change; the slice it receives is the authoritative snapshot, not a
	// diff. onError receives classified subscription failures. The
	// returned Unsubscribe stops delivery.
	Subscribe(ctx context.Context, collection string, onChange func([]RawDocument), onError func(error)) (Unsubscribe, error)
}
