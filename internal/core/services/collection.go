package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hanoutiya/hanoutiya-core/internal/apperrors"
	"github.com/hanoutiya/hanoutiya-core/internal/core/ports"
)

// Patch is a typed partial update against an entity. Apply merges the patch
// into a local copy for the optimistic path; Changes is the partial document
// sent to the remote store. The two must describe the same mutation.
type Patch[T any] interface {
	Apply(T) T
	Changes() map[string]any
}

// Collection is a live mirror of one remote collection plus the optimistic
// mutation engine over it.
//
// Every mutation is applied to the local snapshot before the remote write is
// issued, so callers observe the effect synchronously. The call itself
// returns only once the remote operation has committed (create ids
// reconciled in place) or failed (local state rolled back and the failure
// published once on the notifier).
//
// The snapshot is shared state written by both the mutation path and the
// subscription callback; a mutex per collection stands in for the
// single-threaded host the original design assumed. A monotonic generation
// counter, bumped each time the subscription replaces the snapshot
// wholesale, lets a late rollback detect that the authoritative snapshot
// has already superseded it and drop itself instead of restoring stale
// state.
type Collection[T any] struct {
	path     string
	store    ports.DocumentStore
	notifier ports.FailureNotifier
	logger   *slog.Logger

	entityID func(T) string
	withID   func(T, string) T

	mu       sync.RWMutex
	snapshot []T
	loading  bool
	subErr   error
	gen      uint64
	unsub    ports.Unsubscribe
}

// NewCollection builds an unopened mirror for path. entityID and withID
// give the engine access to the opaque id field without reflection.
func NewCollection[T any](
	path string,
	store ports.DocumentStore,
	notifier ports.FailureNotifier,
	logger *slog.Logger,
	entityID func(T) string,
	withID func(T, string) T,
) *Collection[T] {
	return &Collection[T]{
		path:     path,
		store:    store,
		notifier: notifier,
		logger:   logger.With(slog.String("collection", path)),
		entityID: entityID,
		withID:   withID,
		loading:  true,
	}
}

// Open starts the live subscription. The loading flag stays true until the
// first snapshot arrives.
func (c *Collection[T]) Open(ctx context.Context) error {
	unsub, err := c.store.Subscribe(ctx, c.path, c.onSnapshot, c.onSubscribeError)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", c.path, err)
	}
	c.mu.Lock()
	c.unsub = unsub
	c.mu.Unlock()
	return nil
}

// Close tears the subscription down. In-flight mutations are not cancelled;
// they commit or roll back on their own.
func (c *Collection[T]) Close() {
	c.mu.Lock()
	unsub := c.unsub
	c.unsub = nil
	c.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

// onSnapshot replaces the local snapshot wholesale with the authoritative
// remote state. No diffing against prior state happens here.
func (c *Collection[T]) onSnapshot(docs []ports.RawDocument) {
	entities := make([]T, 0, len(docs))
	for _, doc := range docs {
		entity, err := c.decode(doc)
		if err != nil {
			c.logger.Error("dropping undecodable document",
				slog.String("id", doc.ID), slog.String("error", err.Error()))
			continue
		}
		entities = append(entities, entity)
	}
	c.mu.Lock()
	c.snapshot = entities
	c.loading = false
	c.subErr = nil
	c.gen++
	c.mu.Unlock()
}

func (c *Collection[T]) onSubscribeError(err error) {
	c.logger.Error("subscription failed", slog.String("error", err.Error()))
	c.mu.Lock()
	c.subErr = err
	c.loading = false
	c.mu.Unlock()
	c.notifier.Publish(ports.FailureEvent{
		Context: apperrors.OperationContext{Path: c.path, Operation: "list"},
		Err:     err,
	})
}

// Snapshot returns a copy of the current local view.
func (c *Collection[T]) Snapshot() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]T, len(c.snapshot))
	copy(out, c.snapshot)
	return out
}

// Loading reports whether the first subscription snapshot is still pending.
func (c *Collection[T]) Loading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loading
}

// Err returns the last subscription error, if any.
func (c *Collection[T]) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.subErr
}

// Get returns the entity with the given id from the local snapshot.
func (c *Collection[T]) Get(id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, e := range c.snapshot {
		if c.entityID(e) == id {
			return e, true
		}
	}
	var zero T
	return zero, false
}

// Create appends the entity locally under a temporary clock-based id, then
// issues the remote create. On success the temporary id is replaced in
// place by the store-assigned one; on failure the temporary entry is
// removed and the classified error returned.
func (c *Collection[T]) Create(ctx context.Context, entity T) (string, error) {
	tempID := fmt.Sprintf("temp-%d", time.Now().UnixNano())
	local := c.withID(entity, tempID)

	c.mu.Lock()
	c.snapshot = append(c.snapshot, local)
	c.mu.Unlock()

	data, err := c.encode(entity)
	if err != nil {
		c.removeByID(tempID)
		return "", c.fail("create", entity, err)
	}

	id, err := c.store.Create(ctx, c.path, data)
	if err != nil {
		// The authoritative snapshot can never contain the temporary id,
		// so stripping it is safe regardless of interleaved refreshes.
		c.removeByID(tempID)
		return "", c.fail("create", entity, err)
	}

	c.mu.Lock()
	for i, e := range c.snapshot {
		if c.entityID(e) == tempID {
			c.snapshot[i] = c.withID(e, id)
			break
		}
	}
	c.mu.Unlock()
	return id, nil
}

// Set writes the entity whole at a known id, creating or replacing it.
// Used for singleton documents whose id is fixed rather than assigned by
// the store. The optimistic protocol matches Update: local first, full
// rollback on remote failure.
func (c *Collection[T]) Set(ctx context.Context, id string, entity T) error {
	local := c.withID(entity, id)

	c.mu.Lock()
	prev, gen := c.copySnapshotLocked()
	replaced := false
	for i, e := range c.snapshot {
		if c.entityID(e) == id {
			c.snapshot[i] = local
			replaced = true
			break
		}
	}
	if !replaced {
		c.snapshot = append(c.snapshot, local)
	}
	c.mu.Unlock()

	data, err := c.encode(entity)
	if err != nil {
		c.restore(prev, gen)
		return c.fail("set", entity, err)
	}
	if err := c.store.Put(ctx, c.path, id, data); err != nil {
		c.restore(prev, gen)
		return c.fail("set", entity, err)
	}
	return nil
}

// Update merges the patch into the local snapshot, keeping a copy of the
// pre-mutation state, then issues the remote merge. On failure the saved
// snapshot is restored whole, unless a subscription refresh already
// superseded it.
func (c *Collection[T]) Update(ctx context.Context, id string, patch Patch[T]) error {
	c.mu.Lock()
	prev, gen := c.copySnapshotLocked()
	found := false
	for i, e := range c.snapshot {
		if c.entityID(e) == id {
			c.snapshot[i] = c.withID(patch.Apply(e), id)
			found = true
			break
		}
	}
	c.mu.Unlock()
	if !found {
		return fmt.Errorf("update %s/%s: %w", c.path, id, apperrors.ErrNotFound)
	}

	if err := c.store.Merge(ctx, c.path, id, patch.Changes()); err != nil {
		c.restore(prev, gen)
		return c.fail("update", patch.Changes(), err)
	}
	return nil
}

// Delete removes the entity locally, keeping a copy of the pre-mutation
// state, then issues the remote delete. On failure the saved snapshot is
// restored whole, unless a subscription refresh already superseded it.
func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	prev, gen := c.copySnapshotLocked()
	kept := c.snapshot[:0:0]
	for _, e := range c.snapshot {
		if c.entityID(e) != id {
			kept = append(kept, e)
		}
	}
	c.snapshot = kept
	c.mu.Unlock()

	if err := c.store.Delete(ctx, c.path, id); err != nil {
		c.restore(prev, gen)
		return c.fail("delete", id, err)
	}
	return nil
}

func (c *Collection[T]) copySnapshotLocked() ([]T, uint64) {
	prev := make([]T, len(c.snapshot))
	copy(prev, c.snapshot)
	return prev, c.gen
}

// restore rolls the snapshot back, but only if no subscription refresh
// landed in between: the refresh is authoritative and already reflects the
// remote outcome, so restoring over it would resurrect stale state.
func (c *Collection[T]) restore(prev []T, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		c.logger.Debug("dropping stale rollback", slog.Uint64("generation", gen))
		return
	}
	c.snapshot = prev
}

func (c *Collection[T]) removeByID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.snapshot[:0:0]
	for _, e := range c.snapshot {
		if c.entityID(e) != id {
			kept = append(kept, e)
		}
	}
	c.snapshot = kept
}

// fail classifies, publishes and returns the error for a rolled-back
// mutation. Exactly one event per failure; no automatic retry.
func (c *Collection[T]) fail(op string, payload any, err error) error {
	opCtx := apperrors.OperationContext{Path: c.path, Operation: op, Payload: payload}
	classified := err
	if !isClassified(err) {
		classified = apperrors.NewTransientError(opCtx, err)
	}
	c.logger.Warn("mutation rolled back",
		slog.String("operation", op), slog.String("error", classified.Error()))
	c.notifier.Publish(ports.FailureEvent{Context: opCtx, Err: classified})
	return classified
}

func isClassified(err error) bool {
	var pe *apperrors.PermissionError
	var te *apperrors.TransientError
	return errors.As(err, &pe) || errors.As(err, &te)
}

// encode marshals the entity into the document payload, dropping the id
// field: the id lives in the document key, not the data.
func (c *Collection[T]) encode(entity T) (map[string]any, error) {
	raw, err := json.Marshal(entity)
	if err != nil {
		return nil, fmt.Errorf("encode %s entity: %w", c.path, err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("encode %s entity: %w", c.path, err)
	}
	delete(m, "id")
	return m, nil
}

func (c *Collection[T]) decode(doc ports.RawDocument) (T, error) {
	var entity T
	if err := json.Unmarshal(doc.Data, &entity); err != nil {
		return entity, fmt.Errorf("decode %s/%s: %w", c.path, doc.ID, err)
	}
	return c.withID(entity, doc.ID), nil
}
