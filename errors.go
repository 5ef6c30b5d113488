package extgateway

import "fmt"

// ErrExtensionUnknown is returned when no registered service claims an
// extension id.
type ErrExtensionUnknown struct {
	ID string
}

func (err ErrExtensionUnknown) Error() string {
	return fmt.Sprintf("no extension service registered for %s", err.ID)
}

// ErrExtensionIDInvalid is returned when an extension id contains
// characters outside of [A-Za-z0-9_-].
type ErrExtensionIDInvalid struct {
	ID string
}

func (err ErrExtensionIDInvalid) Error() string {
	return fmt.Sprintf("invalid extension id: %q", err.ID)
}
