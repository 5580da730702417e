// Package application contains the record stores and the coordination logic
// that keeps the per-domain configuration cache consistent with the active
// storage key.
package application

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/ericfisherdev/cookiesync/internal/domain/model"
	"github.com/ericfisherdev/cookiesync/internal/domain/port/driven"
)

// maxCommitAttempts bounds how often a write is rebuilt on top of a value
// another process committed in the meantime.
const maxCommitAttempts = 3

// Listener receives the committed value of a record.
type Listener[T any] func(value T)

// RecordStore is a reactive, durably backed container for one record. Reads
// are served from memory; Update and Reset write through to the repository
// and only change the in-memory value once the write has succeeded.
//
// Writes are serialized per store. Listeners run synchronously, in commit
// order, after the value lock is released; they may call Get but must not
// call Update, Reset, Refresh or Subscribe on the same store.
type RecordStore[T model.Record[T], P model.Patch[T]] struct {
	name     string
	repo     driven.RecordRepo[T]
	defaults func() T
	logger   *slog.Logger

	commitMu sync.Mutex // serializes Init, Update, Reset and Refresh

	mu        sync.RWMutex
	value     T
	revision  string
	listeners map[int]Listener[T]
	nextID    int

	readyOnce sync.Once
	ready     chan struct{}
	loaded    bool
}

// NewRecordStore creates a store named name over repo. defaults produces the
// value returned while nothing is stored and written by Reset.
func NewRecordStore[T model.Record[T], P model.Patch[T]](
	name string,
	repo driven.RecordRepo[T],
	defaults func() T,
	logger *slog.Logger,
) *RecordStore[T, P] {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecordStore[T, P]{
		name:      name,
		repo:      repo,
		defaults:  defaults,
		logger:    logger.With("record", name),
		value:     defaults(),
		listeners: make(map[int]Listener[T]),
		ready:     make(chan struct{}),
	}
}

// Name returns the record name used in logs and errors.
func (s *RecordStore[T, P]) Name() string {
	return s.name
}

// Init loads the stored value once. Subsequent calls after a successful load
// are no-ops; a failed load can be retried.
func (s *RecordStore[T, P]) Init(ctx context.Context) error {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	if s.loaded {
		return nil
	}

	value, revision, ok, err := s.repo.Load(ctx)
	if err != nil {
		return &PersistenceError{Record: s.name, Op: "load", Err: err}
	}
	if !ok {
		value = s.defaults()
	}

	s.mu.Lock()
	s.value = value
	s.revision = revision
	s.mu.Unlock()

	s.loaded = true
	s.readyOnce.Do(func() { close(s.ready) })
	s.logger.Debug("record loaded", "stored", ok, "revision", revision)
	return nil
}

// Ready returns a channel that is closed after the first successful Init.
func (s *RecordStore[T, P]) Ready() <-chan struct{} {
	return s.ready
}

// Wait blocks until the store has loaded or ctx is done.
func (s *RecordStore[T, P]) Wait(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Get returns a copy of the current committed value, or the default when
// nothing has been stored.
func (s *RecordStore[T, P]) Get() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value.Clone()
}

// Revision returns the revision of the current committed value; "" means the
// value has never been stored.
func (s *RecordStore[T, P]) Revision() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// Update merges patch into the current value, persists the result and
// notifies listeners. An empty patch rewrites the unchanged value.
//
// If another process committed the record since it was last read, the store
// reloads it, publishes the reloaded value and applies patch again on top of
// it, so fields the patch does not name keep the other process's values.
func (s *RecordStore[T, P]) Update(ctx context.Context, patch P) error {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	return s.commit(ctx, "update", patch.Apply)
}

// Reset persists the default value and notifies listeners.
func (s *RecordStore[T, P]) Reset(ctx context.Context) error {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	return s.commit(ctx, "reset", func(T) T { return s.defaults() })
}

// Refresh reloads the record from the repository and notifies listeners when
// another process has committed a different revision. It reports whether the
// in-memory value changed.
func (s *RecordStore[T, P]) Refresh(ctx context.Context) (bool, error) {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	changed, err := s.reload(ctx, nil)
	if err != nil {
		return false, &PersistenceError{Record: s.name, Op: "refresh", Err: err}
	}
	return changed, nil
}

// RefreshWith is Refresh with a step that runs after a changed value has been
// read and before it is published. If prepare fails the new value is not
// published and the error is returned; the next refresh reads it again.
func (s *RecordStore[T, P]) RefreshWith(ctx context.Context, prepare func(context.Context) error) (bool, error) {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	changed, err := s.reload(ctx, prepare)
	if err != nil {
		return false, &PersistenceError{Record: s.name, Op: "refresh", Err: err}
	}
	return changed, nil
}

// reload reads the stored record and publishes it when its revision differs
// from the cached one. A store whose Init failed becomes ready on the first
// successful reload. Callers hold commitMu.
func (s *RecordStore[T, P]) reload(ctx context.Context, prepare func(context.Context) error) (bool, error) {
	value, revision, ok, err := s.repo.Load(ctx)
	if err != nil {
		return false, err
	}
	if !ok {
		value = s.defaults()
	}

	if !s.loaded {
		s.loaded = true
		s.readyOnce.Do(func() { close(s.ready) })
	}

	if revision == s.Revision() {
		return false, nil
	}
	if prepare != nil {
		if err := prepare(ctx); err != nil {
			return false, err
		}
	}

	s.mu.Lock()
	s.value = value
	s.revision = revision
	listeners := s.snapshotListeners()
	s.mu.Unlock()

	s.logger.Debug("record refreshed", "revision", revision)
	s.notify(listeners, value)
	return true, nil
}

// Subscribe registers fn and immediately calls it with the current value.
// fn is then called after every commit until the returned function is called.
// Subscribe must not be called from inside a listener.
func (s *RecordStore[T, P]) Subscribe(fn Listener[T]) (unsubscribe func()) {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	current := s.value.Clone()
	s.mu.Unlock()

	fn(current)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// commit builds the next value from the current one, writes it through to
// the repository against the cached revision and publishes it. A revision
// conflict reloads the record and builds the value again. Callers hold
// commitMu.
func (s *RecordStore[T, P]) commit(ctx context.Context, op string, build func(T) T) error {
	var (
		value    T
		revision string
		err      error
	)
	for attempt := 1; ; attempt++ {
		value = build(s.Get())
		revision, err = s.repo.Save(ctx, value, s.Revision())
		if err == nil {
			break
		}
		if !errors.Is(err, driven.ErrRevisionConflict) || attempt == maxCommitAttempts {
			return &PersistenceError{Record: s.name, Op: op, Err: err}
		}

		s.logger.Info("record changed by another process, retrying", "op", op, "attempt", attempt)
		if _, rerr := s.reload(ctx, nil); rerr != nil {
			return &PersistenceError{Record: s.name, Op: op, Err: errors.Join(err, rerr)}
		}
	}

	s.mu.Lock()
	s.value = value
	s.revision = revision
	listeners := s.snapshotListeners()
	s.mu.Unlock()

	s.logger.Debug("record committed", "op", op, "revision", revision)
	s.notify(listeners, value)
	return nil
}

// snapshotListeners copies the listener set in registration order. Callers
// hold mu.
func (s *RecordStore[T, P]) snapshotListeners() []Listener[T] {
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	out := make([]Listener[T], 0, len(ids))
	for _, id := range ids {
		out = append(out, s.listeners[id])
	}
	return out
}

func (s *RecordStore[T, P]) notify(listeners []Listener[T], value T) {
	for _, fn := range listeners {
		fn(value.Clone())
	}
}
