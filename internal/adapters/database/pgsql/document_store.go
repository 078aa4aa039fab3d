// Package pgsql implements the document store port on PostgreSQL: one
// documents table keyed by (collection, id) with a JSONB payload. Atomic
// blocks run as serializable transactions retried on contention, and live
// subscriptions ride on LISTEN/NOTIFY fed by a row trigger.
package pgsql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/hanoutiya/hanoutiya-core/internal/apperrors"
	"github.com/hanoutiya/hanoutiya-core/internal/core/ports"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	// notifyChannel matches the trigger installed by the migrations.
	notifyChannel = "documents_changed"

	maxAtomicAttempts = 10
)

// PostgreSQL error codes the adapter classifies on.
const (
	codeSerializationFailure  = "40001"
	codeDeadlockDetected      = "40P01"
	codeInsufficientPrivilege = "42501"
)

// DocumentStore is the PostgreSQL-backed DocumentStore.
type DocumentStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var _ ports.DocumentStore = (*DocumentStore)(nil)

// NewDocumentStore creates a store over an established pool.
func NewDocumentStore(pool *pgxpool.Pool, logger *slog.Logger) *DocumentStore {
	return &DocumentStore{pool: pool, logger: logger}
}

// Get reads one document.
func (s *DocumentStore) Get(ctx context.Context, collection, id string) (*ports.RawDocument, error) {
	query := `SELECT data FROM documents WHERE collection = $1 AND id = $2;`
	var data json.RawMessage
	err := s.pool.QueryRow(ctx, query, collection, id).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s/%s: %w", collection, id, apperrors.ErrNotFound)
		}
		return nil, classify(apperrors.OperationContext{Path: collection, Operation: "get"}, err)
	}
	return &ports.RawDocument{ID: id, Data: data}, nil
}

// List reads a collection in creation order.
func (s *DocumentStore) List(ctx context.Context, collection string) ([]ports.RawDocument, error) {
	query := `SELECT id, data FROM documents WHERE collection = $1 ORDER BY created_at, id;`
	rows, err := s.pool.Query(ctx, query, collection)
	if err != nil {
		return nil, classify(apperrors.OperationContext{Path: collection, Operation: "list"}, err)
	}
	defer rows.Close()

	var docs []ports.RawDocument
	for rows.Next() {
		var doc ports.RawDocument
		if err := rows.Scan(&doc.ID, &doc.Data); err != nil {
			return nil, fmt.Errorf("scan document in %s: %w", collection, err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(apperrors.OperationContext{Path: collection, Operation: "list"}, err)
	}
	return docs, nil
}

// Create inserts a document under a store-generated id.
func (s *DocumentStore) Create(ctx context.Context, collection string, data any) (string, error) {
	query := `
		INSERT INTO documents (collection, id, data)
		VALUES ($1, gen_random_uuid()::text, $2)
		RETURNING id;`
	var id string
	if err := s.pool.QueryRow(ctx, query, collection, jsonArg(data)).Scan(&id); err != nil {
		return "", classify(apperrors.OperationContext{Path: collection, Operation: "create", Payload: data}, err)
	}
	return id, nil
}

// Put writes a document whole at a known id.
func (s *DocumentStore) Put(ctx context.Context, collection, id string, data any) error {
	query := `
		INSERT INTO documents (collection, id, data)
		VALUES ($1, $2, $3)
		ON CONFLICT (collection, id)
		DO UPDATE SET data = EXCLUDED.data, updated_at = now();`
	if _, err := s.pool.Exec(ctx, query, collection, id, jsonArg(data)); err != nil {
		return classify(apperrors.OperationContext{Path: collection, Operation: "put", Payload: data}, err)
	}
	return nil
}

// Merge applies a partial update via JSONB concatenation.
func (s *DocumentStore) Merge(ctx context.Context, collection, id string, patch map[string]any) error {
	query := `
		UPDATE documents SET data = data || $3, updated_at = now()
		WHERE collection = $1 AND id = $2;`
	tag, err := s.pool.Exec(ctx, query, collection, id, jsonArg(patch))
	if err != nil {
		return classify(apperrors.OperationContext{Path: collection, Operation: "update", Payload: patch}, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, apperrors.ErrNotFound)
	}
	return nil
}

// Delete removes one document. Absent documents are not an error.
func (s *DocumentStore) Delete(ctx context.Context, collection, id string) error {
	query := `DELETE FROM documents WHERE collection = $1 AND id = $2;`
	if _, err := s.pool.Exec(ctx, query, collection, id); err != nil {
		return classify(apperrors.OperationContext{Path: collection, Operation: "delete"}, err)
	}
	return nil
}

// DeleteAll removes a collection and every sub-collection beneath it.
func (s *DocumentStore) DeleteAll(ctx context.Context, collection string) error {
	query := `DELETE FROM documents WHERE collection = $1 OR collection LIKE $1 || '/%';`
	if _, err := s.pool.Exec(ctx, query, collection); err != nil {
		return classify(apperrors.OperationContext{Path: collection, Operation: "deleteAll"}, err)
	}
	return nil
}

// RunAtomic executes fn inside a serializable transaction, retrying on
// serialization failures and deadlocks with jittered backoff. Errors
// returned by fn abort the block and propagate unchanged.
func (s *DocumentStore) RunAtomic(ctx context.Context, fn func(tx ports.AtomicTxn) error) error {
	opCtx := apperrors.OperationContext{Operation: "atomic"}
	var lastErr error
	for attempt := 1; attempt <= maxAtomicAttempts; attempt++ {
		err := s.runAtomicOnce(ctx, fn)
		if err == nil {
			return nil
		}
		if !isSerializationFailure(err) {
			return err
		}
		lastErr = err
		s.logger.Debug("atomic block lost serialization race, retrying",
			slog.Int("attempt", attempt))
		select {
		case <-time.After(backoff(attempt)):
		case <-ctx.Done():
			return classify(opCtx, ctx.Err())
		}
	}
	return apperrors.NewTransientError(opCtx, fmt.Errorf("contention retry limit: %w", lastErr))
}

func (s *DocumentStore) runAtomicOnce(ctx context.Context, fn func(tx ports.AtomicTxn) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return classify(apperrors.OperationContext{Operation: "atomic"}, err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(&atomicTxn{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		if isSerializationFailure(err) {
			return err
		}
		return classify(apperrors.OperationContext{Operation: "atomic"}, err)
	}
	return nil
}

// atomicTxn adapts a pgx serializable transaction to the port.
type atomicTxn struct {
	tx pgx.Tx
}

var _ ports.AtomicTxn = (*atomicTxn)(nil)

func (t *atomicTxn) Get(ctx context.Context, collection, id string) (*ports.RawDocument, error) {
	query := `SELECT data FROM documents WHERE collection = $1 AND id = $2;`
	var data json.RawMessage
	err := t.tx.QueryRow(ctx, query, collection, id).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s/%s: %w", collection, id, apperrors.ErrNotFound)
		}
		return nil, err
	}
	return &ports.RawDocument{ID: id, Data: data}, nil
}

func (t *atomicTxn) Create(ctx context.Context, collection string, data any) (string, error) {
	query := `
		INSERT INTO documents (collection, id, data)
		VALUES ($1, gen_random_uuid()::text, $2)
		RETURNING id;`
	var id string
	if err := t.tx.QueryRow(ctx, query, collection, jsonArg(data)).Scan(&id); err != nil {
		return "", err
	}
	return id, nil
}

func (t *atomicTxn) Merge(ctx context.Context, collection, id string, patch map[string]any) error {
	query := `
		UPDATE documents SET data = data || $3, updated_at = now()
		WHERE collection = $1 AND id = $2;`
	tag, err := t.tx.Exec(ctx, query, collection, id, jsonArg(patch))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, apperrors.ErrNotFound)
	}
	return nil
}

func (t *atomicTxn) Delete(ctx context.Context, collection, id string) error {
	query := `DELETE FROM documents WHERE collection = $1 AND id = $2;`
	_, err := t.tx.Exec(ctx, query, collection, id)
	return err
}

// Subscribe LISTENs on the documents trigger channel from a dedicated
// pooled connection and re-lists the collection after every matching
// notification. The first snapshot is delivered before Subscribe returns
// control to the listener goroutine's first wait.
func (s *DocumentStore) Subscribe(ctx context.Context, collection string, onChange func([]ports.RawDocument), onError func(error)) (ports.Unsubscribe, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, classify(apperrors.OperationContext{Path: collection, Operation: "list"}, err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		conn.Release()
		return nil, classify(apperrors.OperationContext{Path: collection, Operation: "list"}, err)
	}

	subCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	go func() {
		defer conn.Release()

		docs, err := s.List(subCtx, collection)
		if err != nil {
			onError(err)
			return
		}
		onChange(docs)

		for {
			notification, err := conn.Conn().WaitForNotification(subCtx)
			if err != nil {
				if subCtx.Err() != nil {
					return // unsubscribed
				}
				onError(classify(apperrors.OperationContext{Path: collection, Operation: "list"}, err))
				return
			}
			if notification.Payload != collection {
				continue
			}
			docs, err := s.List(subCtx, collection)
			if err != nil {
				onError(err)
				continue
			}
			onChange(docs)
		}
	}()

	return func() { cancel() }, nil
}

// classify maps store-level failures onto the application error taxonomy.
func classify(opCtx apperrors.OperationContext, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == codeInsufficientPrivilege {
		return apperrors.NewPermissionError(opCtx, err)
	}
	return apperrors.NewTransientError(opCtx, err)
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == codeSerializationFailure || pgErr.Code == codeDeadlockDetected
}

func backoff(attempt int) time.Duration {
	base := time.Duration(attempt) * 5 * time.Millisecond
	return base + time.Duration(rand.Int63n(int64(5*time.Millisecond)))
}

// jsonArg marshals payloads once so pgx sends them as JSONB regardless of
// the caller's concrete type.
func jsonArg(data any) json.RawMessage {
	raw, err := json.Marshal(data)
	if err != nil {
		// Payloads come from our own models; a marshal failure is a bug.
		return json.RawMessage(`{}`)
	}
	return raw
}
