package oncegate

import "errors"

var (
	// ErrNeverAdmitted indicates that Release was called on a Gate that has
	// never admitted anyone.
	ErrNeverAdmitted = errors.New("never admitted")

	// ErrNotOwner indicates that Release was called from a goroutine other
	// than the one that won the admission.
	ErrNotOwner = errors.New("not the admission owner")

	// ErrReentrantAdmission indicates that the goroutine holding the open
	// admission tried to admit itself again. Reported immediately since the
	// goroutine would otherwise deadlock waiting for its own Release.
	ErrReentrantAdmission = errors.New("reentrant admission")
)
