// Package memstore is the in-memory driver for the document store port.
// It backs tests and demo runs without PostgreSQL, and doubles as the
// failure-injection fake for exercising rollback paths.
//
// RunAtomic is implemented with optimistic concurrency: reads record the
// document versions they saw, writes are buffered, and commit re-checks
// every recorded version under the store lock, retrying the whole block on
// conflict. That reproduces the serializable-with-retry semantics the
// PostgreSQL driver gets from the database itself.
package memstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/hanoutiya/hanoutiya-core/internal/apperrors"
	"github.com/hanoutiya/hanoutiya-core/internal/core/ports"
)

// ErrContention is the cause wrapped into the TransientError returned when
// an atomic block keeps losing version checks.
var ErrContention = errors.New("atomic retry limit exhausted")

const maxAtomicAttempts = 8

type document struct {
	data    map[string]any
	version uint64
	seq     uint64 // creation order, for stable listing
}

type subscription struct {
	id         int
	collection string
	onChange   func([]ports.RawDocument)
}

// Store is an in-memory DocumentStore.
type Store struct {
	mu        sync.Mutex
	cols      map[string]map[string]*document
	subs      []*subscription
	seq       uint64
	nextSubID int
	failures  map[string]error
}

var _ ports.DocumentStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		cols:     make(map[string]map[string]*document),
		failures: make(map[string]error),
	}
}

// FailNext arranges for the next operation of the given kind against the
// given collection to fail with err instead of executing. One-shot.
// Operation kinds: "get", "list", "create", "put", "merge", "delete",
// "deleteAll", and "atomic" (which ignores the collection; pass "").
func (s *Store) FailNext(operation, collection string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[operation+" "+collection] = err
}

func (s *Store) takeFailureLocked(operation, collection string) error {
	key := operation + " " + collection
	if err, ok := s.failures[key]; ok {
		delete(s.failures, key)
		return err
	}
	return nil
}

// Get reads one document.
func (s *Store) Get(ctx context.Context, collection, id string) (*ports.RawDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailureLocked("get", collection); err != nil {
		return nil, err
	}
	return s.getLocked(collection, id)
}

func (s *Store) getLocked(collection, id string) (*ports.RawDocument, error) {
	doc, ok := s.cols[collection][id]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, apperrors.ErrNotFound)
	}
	raw, err := json.Marshal(doc.data)
	if err != nil {
		return nil, fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	return &ports.RawDocument{ID: id, Data: raw}, nil
}

// List reads a collection in creation order.
func (s *Store) List(ctx context.Context, collection string) ([]ports.RawDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailureLocked("list", collection); err != nil {
		return nil, err
	}
	return s.listLocked(collection)
}

func (s *Store) listLocked(collection string) ([]ports.RawDocument, error) {
	col := s.cols[collection]
	ids := make([]string, 0, len(col))
	for id := range col {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return col[ids[i]].seq < col[ids[j]].seq })

	docs := make([]ports.RawDocument, 0, len(ids))
	for _, id := range ids {
		raw, err := json.Marshal(col[id].data)
		if err != nil {
			return nil, fmt.Errorf("encode %s/%s: %w", collection, id, err)
		}
		docs = append(docs, ports.RawDocument{ID: id, Data: raw})
	}
	return docs, nil
}

// Create inserts a document under a fresh id.
func (s *Store) Create(ctx context.Context, collection string, data any) (string, error) {
	payload, err := normalize(data)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	if err := s.takeFailureLocked("create", collection); err != nil {
		s.mu.Unlock()
		return "", err
	}
	id := uuid.NewString()
	s.putLocked(collection, id, payload)
	s.mu.Unlock()

	s.notify(collection)
	return id, nil
}

// Put writes a document whole at a known id.
func (s *Store) Put(ctx context.Context, collection, id string, data any) error {
	payload, err := normalize(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	if err := s.takeFailureLocked("put", collection); err != nil {
		s.mu.Unlock()
		return err
	}
	s.putLocked(collection, id, payload)
	s.mu.Unlock()

	s.notify(collection)
	return nil
}

func (s *Store) putLocked(collection, id string, payload map[string]any) {
	col, ok := s.cols[collection]
	if !ok {
		col = make(map[string]*document)
		s.cols[collection] = col
	}
	s.seq++
	if existing, ok := col[id]; ok {
		existing.data = payload
		existing.version++
		return
	}
	col[id] = &document{data: payload, version: 1, seq: s.seq}
}

// Merge applies a partial update to an existing document.
func (s *Store) Merge(ctx context.Context, collection, id string, patch map[string]any) error {
	s.mu.Lock()
	if err := s.takeFailureLocked("merge", collection); err != nil {
		s.mu.Unlock()
		return err
	}
	if err := s.mergeLocked(collection, id, patch); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	s.notify(collection)
	return nil
}

func (s *Store) mergeLocked(collection, id string, patch map[string]any) error {
	doc, ok := s.cols[collection][id]
	if !ok {
		return fmt.Errorf("%s/%s: %w", collection, id, apperrors.ErrNotFound)
	}
	normalized, err := normalize(patch)
	if err != nil {
		return err
	}
	for k, v := range normalized {
		doc.data[k] = v
	}
	doc.version++
	return nil
}

// Delete removes one document. Absent documents are not an error.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	if err := s.takeFailureLocked("delete", collection); err != nil {
		s.mu.Unlock()
		return err
	}
	delete(s.cols[collection], id)
	s.mu.Unlock()

	s.notify(collection)
	return nil
}

// DeleteAll removes a collection and every sub-collection beneath it.
func (s *Store) DeleteAll(ctx context.Context, collection string) error {
	s.mu.Lock()
	if err := s.takeFailureLocked("deleteAll", collection); err != nil {
		s.mu.Unlock()
		return err
	}
	cleared := []string{}
	for path := range s.cols {
		if path == collection || strings.HasPrefix(path, collection+"/") {
			delete(s.cols, path)
			cleared = append(cleared, path)
		}
	}
	s.mu.Unlock()

	for _, path := range cleared {
		s.notify(path)
	}
	return nil
}

// Subscribe registers a live mirror. The initial snapshot is delivered
// synchronously; later changes are delivered from the goroutine that
// committed them, after the store lock is released.
func (s *Store) Subscribe(ctx context.Context, collection string, onChange func([]ports.RawDocument), onError func(error)) (ports.Unsubscribe, error) {
	s.mu.Lock()
	if err := s.takeFailureLocked("list", collection); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	docs, err := s.listLocked(collection)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.nextSubID++
	sub := &subscription{id: s.nextSubID, collection: collection, onChange: onChange}
	s.subs = append(s.subs, sub)
	s.mu.Unlock()

	onChange(docs)

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, candidate := range s.subs {
			if candidate.id == sub.id {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				return
			}
		}
	}, nil
}

func (s *Store) notify(collection string) {
	s.mu.Lock()
	targets := make([]*subscription, 0, 2)
	for _, sub := range s.subs {
		if sub.collection == collection {
			targets = append(targets, sub)
		}
	}
	var docs []ports.RawDocument
	var err error
	if len(targets) > 0 {
		docs, err = s.listLocked(collection)
	}
	s.mu.Unlock()

	if err != nil {
		return
	}
	for _, sub := range targets {
		sub.onChange(docs)
	}
}

// --- Atomic blocks ---

type readRecord struct {
	collection string
	id         string
	version    uint64
}

type bufferedWrite struct {
	kind       string // "create", "merge", "delete"
	collection string
	id         string
	data       map[string]any
}

type atomicTxn struct {
	store  *Store
	reads  []readRecord
	writes []bufferedWrite
}

var _ ports.AtomicTxn = (*atomicTxn)(nil)

func (t *atomicTxn) Get(ctx context.Context, collection, id string) (*ports.RawDocument, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	doc, ok := t.store.cols[collection][id]
	version := uint64(0)
	if ok {
		version = doc.version
	}
	t.reads = append(t.reads, readRecord{collection: collection, id: id, version: version})
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, apperrors.ErrNotFound)
	}
	raw, err := json.Marshal(doc.data)
	if err != nil {
		return nil, fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	return &ports.RawDocument{ID: id, Data: raw}, nil
}

func (t *atomicTxn) Create(ctx context.Context, collection string, data any) (string, error) {
	payload, err := normalize(data)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	t.writes = append(t.writes, bufferedWrite{kind: "create", collection: collection, id: id, data: payload})
	return id, nil
}

func (t *atomicTxn) Merge(ctx context.Context, collection, id string, patch map[string]any) error {
	payload, err := normalize(patch)
	if err != nil {
		return err
	}
	t.writes = append(t.writes, bufferedWrite{kind: "merge", collection: collection, id: id, data: payload})
	return nil
}

func (t *atomicTxn) Delete(ctx context.Context, collection, id string) error {
	t.writes = append(t.writes, bufferedWrite{kind: "delete", collection: collection, id: id})
	return nil
}

// RunAtomic executes fn with buffered writes and commits only if every
// document fn read is still at the version it saw. On conflict the block
// is re-run from scratch, up to the attempt limit.
func (s *Store) RunAtomic(ctx context.Context, fn func(tx ports.AtomicTxn) error) error {
	s.mu.Lock()
	if err := s.takeFailureLocked("atomic", ""); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	for attempt := 1; attempt <= maxAtomicAttempts; attempt++ {
		txn := &atomicTxn{store: s}
		if err := fn(txn); err != nil {
			return err
		}
		committed, touched, err := s.commit(txn)
		if err != nil {
			return err
		}
		if committed {
			for _, collection := range touched {
				s.notify(collection)
			}
			return nil
		}
	}
	return apperrors.NewTransientError(
		apperrors.OperationContext{Operation: "atomic"}, ErrContention)
}

func (s *Store) commit(txn *atomicTxn) (bool, []string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, read := range txn.reads {
		current := uint64(0)
		if doc, ok := s.cols[read.collection][read.id]; ok {
			current = doc.version
		}
		if current != read.version {
			return false, nil, nil
		}
	}

	// Validate every write against the store plus the writes buffered
	// before it, so a bad write aborts before anything is applied. A
	// commit is all or nothing.
	exists := map[string]bool{}
	for _, w := range txn.writes {
		key := w.collection + "/" + w.id
		present, seen := exists[key]
		if !seen {
			_, present = s.cols[w.collection][w.id]
		}
		switch w.kind {
		case "create":
			exists[key] = true
		case "merge":
			if !present {
				return false, nil, fmt.Errorf("%s/%s: %w", w.collection, w.id, apperrors.ErrNotFound)
			}
			exists[key] = true
		case "delete":
			exists[key] = false
		}
	}

	touched := map[string]bool{}
	for _, w := range txn.writes {
		switch w.kind {
		case "create":
			s.putLocked(w.collection, w.id, w.data)
		case "merge":
			if err := s.mergeLocked(w.collection, w.id, w.data); err != nil {
				return false, nil, err
			}
		case "delete":
			delete(s.cols[w.collection], w.id)
		}
		touched[w.collection] = true
	}

	paths := make([]string, 0, len(touched))
	for path := range touched {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return true, paths, nil
}

// normalize round-trips data through JSON so the store holds plain maps
// regardless of what concrete type the caller handed over.
func normalize(data any) (map[string]any, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode document payload: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("document payload must be an object: %w", err)
	}
	return m, nil
}
