package application_test

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/ericfisherdev/cookiesync/internal/domain/model"
	"github.com/ericfisherdev/cookiesync/internal/domain/port/driven"
)

var errDiskFull = errors.New("disk full")

// fakeRecordRepo is an in-memory driven.RecordRepo with failure injection.
type fakeRecordRepo[T any] struct {
	mu       sync.Mutex
	value    T
	stored   bool
	revision int
	saves    int
	loadErr  error
	saveErr  error
	onSave   func(T)
	onLoad   func() // runs before the load reads, without the lock held
}

func (f *fakeRecordRepo[T]) Load(_ context.Context) (T, string, bool, error) {
	if f.onLoad != nil {
		f.onLoad()
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	var zero T
	if f.loadErr != nil {
		return zero, "", false, f.loadErr
	}
	if !f.stored {
		return zero, "", false, nil
	}
	return f.value, f.currentRevision(), true, nil
}

func (f *fakeRecordRepo[T]) Save(_ context.Context, value T, expected string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.saveErr != nil {
		return "", f.saveErr
	}
	if current := f.currentRevision(); current != expected {
		return "", fmt.Errorf("at %q, expected %q: %w", current, expected, driven.ErrRevisionConflict)
	}
	f.value = value
	f.stored = true
	f.revision++
	f.saves++
	if f.onSave != nil {
		f.onSave(value)
	}
	return strconv.Itoa(f.revision), nil
}

// currentRevision is "" while nothing is stored. Callers hold mu.
func (f *fakeRecordRepo[T]) currentRevision() string {
	if !f.stored {
		return ""
	}
	return strconv.Itoa(f.revision)
}

// put stores value as if another process had written it.
func (f *fakeRecordRepo[T]) put(value T) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.value = value
	f.stored = true
	f.revision++
}

func (f *fakeRecordRepo[T]) setLoadErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loadErr = err
}

func (f *fakeRecordRepo[T]) setSaveErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saveErr = err
}

func (f *fakeRecordRepo[T]) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saves
}

func (f *fakeRecordRepo[T]) current() T {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value
}

type (
	fakeCredentialRepo   = fakeRecordRepo[model.Credential]
	fakeSettingsRepo     = fakeRecordRepo[model.Settings]
	fakeDomainConfigRepo = fakeRecordRepo[model.DomainConfigs]
)

// callLog records the order of operations across repositories and listeners.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(call string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

func (l *callLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func ptr[T any](v T) *T {
	return &v
}
