// Package uid implements the colon-segmented identifiers used to name typed
// entities across the platform.
//
// Grammar
//
//	uid      := segment [ ":" segment ]*
//	segment  := /[A-Za-z0-9_-]*/
//
// Every kind of identifier declares how many segments it requires. The
// constraint is enforced when the identifier is parsed or constructed, so a
// UID value that exists is always valid for its kind.
package uid

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Separator joins the segments of a UID.
const Separator = ":"

var (
	// SegmentRegexp matches a single valid segment.
	SegmentRegexp = regexp.MustCompile(`^[A-Za-z0-9_-]*$`)

	// ErrEmpty is returned when parsing an empty string.
	ErrEmpty = errors.New("uid: must not be empty")
)

// Kind describes the structural constraints of one kind of identifier.
type Kind struct {
	// Name is used in error messages.
	Name string

	// MinSegments is the minimal number of segments.
	MinSegments int

	// MaxSegments is the maximal number of segments. Zero means unbounded.
	MaxSegments int
}

// ErrSegmentCount is returned when a UID has the wrong number of segments
// for its kind.
type ErrSegmentCount struct {
	Kind  Kind
	Count int
}

func (err ErrSegmentCount) Error() string {
	if err.Kind.MaxSegments == err.Kind.MinSegments {
		return fmt.Sprintf("uid: %s must have exactly %d segments, got %d", err.Kind.Name, err.Kind.MinSegments, err.Count)
	}
	if err.Count < err.Kind.MinSegments {
		return fmt.Sprintf("uid: %s must have at least %d segments, got %d", err.Kind.Name, err.Kind.MinSegments, err.Count)
	}
	return fmt.Sprintf("uid: %s must have at most %d segments, got %d", err.Kind.Name, err.Kind.MaxSegments, err.Count)
}

// ErrSegmentInvalid is returned when a segment contains characters outside
// of [A-Za-z0-9_-].
type ErrSegmentInvalid struct {
	Segment string
}

func (err ErrSegmentInvalid) Error() string {
	return fmt.Sprintf("uid: segment %q contains invalid characters, each segment must match %s", err.Segment, SegmentRegexp.String())
}

// UID is an immutable, colon-segmented identifier. The zero value is the
// empty UID, which is not valid for any kind.
type UID struct {
	value string
}

// Parse parses s as a UID of the given kind.
func Parse(kind Kind, s string) (UID, error) {
	if s == "" {
		return UID{}, ErrEmpty
	}

	return New(kind, strings.Split(s, Separator)...)
}

// New joins the segments into a UID of the given kind.
func New(kind Kind, segments ...string) (UID, error) {
	if err := kind.validate(segments); err != nil {
		return UID{}, err
	}

	return UID{value: strings.Join(segments, Separator)}, nil
}

// MustParse is like Parse but panics on error.
func MustParse(kind Kind, s string) UID {
	u, err := Parse(kind, s)
	if err != nil {
		panic(err)
	}
	return u
}

func (kind Kind) validate(segments []string) error {
	n := len(segments)
	if n < kind.MinSegments || (kind.MaxSegments > 0 && n > kind.MaxSegments) {
		return ErrSegmentCount{Kind: kind, Count: n}
	}

	for _, segment := range segments {
		if !SegmentRegexp.MatchString(segment) {
			return ErrSegmentInvalid{Segment: segment}
		}
	}

	return nil
}

// Segments returns a copy of the segments of the UID.
func (u UID) Segments() []string {
	if u.value == "" {
		return nil
	}
	return strings.Split(u.value, Separator)
}

// Segment returns the segment at index i, or the empty string if the UID has
// fewer segments.
func (u UID) Segment(i int) string {
	segments := u.Segments()
	if i < 0 || i >= len(segments) {
		return ""
	}
	return segments[i]
}

// IsZero reports whether u is the empty UID.
func (u UID) IsZero() bool {
	return u.value == ""
}

// Equal reports whether both UIDs have the same segments.
func (u UID) Equal(other UID) bool {
	return u.value == other.value
}

func (u UID) String() string {
	return u.value
}

// MarshalText implements encoding.TextMarshaler.
func (u UID) MarshalText() ([]byte, error) {
	return []byte(u.value), nil
}
