package application

import "fmt"

// PersistenceError reports a durable read or write failure for a record. The
// in-memory value of the store is left as it was before the operation.
type PersistenceError struct {
	Record string
	Op     string
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Record, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Transition steps reported by StateTransitionError.
const (
	StepResetDomains      = "reset domain configs"
	StepNormalizeSettings = "normalize settings"
)

// StateTransitionError reports a storage key transition that did not
// complete. The coordinator keeps its previous key, so retrying the same
// commit starts from the same state.
type StateTransitionError struct {
	From string
	To   string
	Step string
	Err  error
}

func (e *StateTransitionError) Error() string {
	return fmt.Sprintf("storage key %q -> %q: %s: %v", e.From, e.To, e.Step, e.Err)
}

func (e *StateTransitionError) Unwrap() error {
	return e.Err
}
