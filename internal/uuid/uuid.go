// Package uuid generates the identifiers used for gateway instances,
// requests and events.
package uuid

import (
	"github.com/google/uuid"
)

// NewString returns a new V7 UUID string. V7 UUIDs are time-ordered, which
// keeps event ids sortable by creation time. It panics if the random source
// fails.
func NewString() string {
	return uuid.Must(uuid.NewV7()).String()
}
