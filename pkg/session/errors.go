package session

import "fmt"

// InvalidNameError is returned for owner ids and session names that cannot
// address a session safely.
type InvalidNameError struct {
	Kind   string
	Value  string
	Reason string
}

func (e *InvalidNameError) Error() string {
	return fmt.Sprintf("invalid %s name %q: %s", e.Kind, e.Value, e.Reason)
}

// PersistenceError wraps a storage failure. The caller's in-memory state is
// still valid; only the write (or delete) did not happen.
type PersistenceError struct {
	Op    string
	Owner string
	Name  string
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s session %s/%s: %v", e.Op, e.Owner, e.Name, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
