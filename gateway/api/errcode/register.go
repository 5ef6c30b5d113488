package errcode

import (
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"
)

const group = "errcode"

var (
	mu      sync.Mutex
	next    = ErrorCode(1000)
	byCode  = map[ErrorCode]ErrorDescriptor{}
	byValue = map[string]ErrorDescriptor{}
	groups  = map[string][]ErrorDescriptor{}
)

// Codes shared by every route of the gateway.
var (
	// ErrorCodeUnknown is served when an error carries no api code.
	ErrorCodeUnknown = Register(group, ErrorDescriptor{
		Value:          "UNKNOWN",
		Message:        "unknown error",
		Description:    "The gateway failed the request for a reason it could not classify.",
		HTTPStatusCode: http.StatusInternalServerError,
	})

	// ErrorCodeUnsupported is served for a method the route does not
	// implement.
	ErrorCodeUnsupported = Register(group, ErrorDescriptor{
		Value:          "UNSUPPORTED",
		Message:        "The operation is unsupported.",
		Description:    "The route exists but does not accept the request method.",
		HTTPStatusCode: http.StatusMethodNotAllowed,
	})

	ErrorCodeUnauthorized = Register(group, ErrorDescriptor{
		Value:   "UNAUTHORIZED",
		Message: "authentication required",
		Description: `The access controller could not authenticate the
		client. The response carries a WWW-Authenticate challenge.`,
		HTTPStatusCode: http.StatusUnauthorized,
	})

	ErrorCodeDenied = Register(group, ErrorDescriptor{
		Value:          "DENIED",
		Message:        "requested access to the resource is denied",
		Description:    "The client is authenticated but lacks the administrative role.",
		HTTPStatusCode: http.StatusForbidden,
	})

	// ErrorCodeUnavailable is served while the gateway is shutting down.
	ErrorCodeUnavailable = Register(group, ErrorDescriptor{
		Value:          "UNAVAILABLE",
		Message:        "service unavailable",
		Description:    "The gateway no longer accepts lifecycle operations.",
		HTTPStatusCode: http.StatusServiceUnavailable,
	})
)

// Register assigns the next free ErrorCode to descriptor and records it under
// group. It panics when descriptor.Value is taken.
func Register(group string, descriptor ErrorDescriptor) ErrorCode {
	mu.Lock()
	defer mu.Unlock()

	if _, ok := byValue[descriptor.Value]; ok {
		panic(fmt.Sprintf("error value %q is already registered", descriptor.Value))
	}

	descriptor.Code = next
	next++

	byCode[descriptor.Code] = descriptor
	byValue[descriptor.Value] = descriptor
	groups[group] = append(groups[group], descriptor)

	return descriptor.Code
}

// Group returns the descriptors registered under name, ordered by value.
func Group(name string) []ErrorDescriptor {
	mu.Lock()
	defer mu.Unlock()

	descriptors := slices.Clone(groups[name])
	slices.SortFunc(descriptors, func(a, b ErrorDescriptor) int {
		return strings.Compare(a.Value, b.Value)
	})
	return descriptors
}
