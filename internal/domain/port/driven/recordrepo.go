// Package driven defines secondary port interfaces for external adapters.
package driven

import (
	"context"
	"errors"
)

// ErrRevisionConflict is returned by RecordRepo.Save when the stored revision
// is not the one the caller based its value on, meaning another process has
// committed in between.
var ErrRevisionConflict = errors.New("record revision conflict")

// RecordRepo defines the driven port for durable persistence of a single
// record value. Each save produces a new opaque revision identifier that
// other processes can compare to detect changes.
type RecordRepo[T any] interface {
	// Load returns the stored value and its revision. ok is false when nothing
	// has been stored yet; callers apply defaults in that case.
	Load(ctx context.Context) (value T, revision string, ok bool, err error)

	// Save durably replaces the stored value and returns the new revision.
	// expected is the revision the value was derived from ("" when nothing
	// was stored); if the stored revision differs, nothing is written and
	// ErrRevisionConflict is returned. The value must not be considered
	// committed unless err is nil.
	Save(ctx context.Context, value T, expected string) (revision string, err error)
}
