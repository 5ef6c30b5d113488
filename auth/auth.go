// Package auth defines a standard interface for request access controllers.
//
// An access controller has a simple interface with a single `Authorized`
// method which checks that a given request is authorized to perform one or
// more actions on one or more resources. This method should return a non-nil
// error if the request is not authorized.
//
// An implementation registers its access controller by name with a
// constructor which accepts an options map for configuring the access
// controller.
//
//	options := map[string]any{"realm": "extgateway", "path": "/etc/extgateway/htpasswd"}
//	accessController, _ := auth.GetAccessController("htpasswd", options)
//
// This `accessController` can then be used in a request handler like so:
//
//	func installExtension(w http.ResponseWriter, r *http.Request) {
//		access := auth.Access{
//			Resource: auth.Resource{Type: "extension", Name: id},
//			Action:   "install",
//		}
//
//		ctx, err := accessController.Authorized(dcontext.WithRequest(ctx, r), access)
//		if err != nil {
//			if challenge, ok := err.(auth.Challenge); ok {
//				// Let the challenge set its headers.
//				challenge.SetHeaders(r, w)
//			}
//			...
//		}
//	}
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
)

const (
	// UserKey is used to get the user object from
	// a user context
	UserKey = "auth.user"

	// UserNameKey is used to get the user name from
	// a user context
	UserNameKey = "auth.user.name"

	// RoleAdmin is the role required to manage extensions.
	RoleAdmin = "admin"
)

var (
	// ErrInvalidCredential is returned when the auth token does not authenticate correctly.
	ErrInvalidCredential = errors.New("invalid authorization credential")

	// ErrAuthenticationFailure returned when authentication fails.
	ErrAuthenticationFailure = errors.New("authentication failure")

	// ErrForbidden is returned when an authenticated user lacks the role
	// required for the requested access.
	ErrForbidden = errors.New("insufficient privileges")
)

// UserInfo carries information about
// an authenticated/authorized client.
type UserInfo struct {
	Name  string
	Roles []string
}

// HasRole reports whether the user was granted role.
func (u UserInfo) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Resource describes a resource by type and name.
type Resource struct {
	Type string
	Name string
}

// Access describes a specific action that is
// requested or allowed for a given resource.
type Access struct {
	Resource
	Action string
}

// Challenge is a special error type which is used for HTTP 401 Unauthorized
// responses and is able to write the response with WWW-Authenticate challenge
// header values based on the error.
type Challenge interface {
	error

	// SetHeaders prepares the request to conduct a challenge response by
	// adding an HTTP challenge header on the response message. Callers
	// are expected to set the appropriate HTTP status code (e.g. 401)
	// themselves.
	SetHeaders(r *http.Request, w http.ResponseWriter)
}

// AccessController controls access to gateway resources based on a request
// and required access levels for a request. Implementations can support both
// complete denial and http authorization challenges.
type AccessController interface {
	// Authorized returns a non-nil error if the context is granted access and
	// returns a new authorized context. If one or more Access structs are
	// provided, the requested access will be compared with what is available
	// to the context. The given context will contain a "http.request" key with
	// a `*http.Request` value. If the error is non-nil, access should always
	// be denied. The error may be of type Challenge, in which case the caller
	// may have the Challenge handle the request or choose what action to take
	// based on the Challenge header or response status. The returned context
	// object should have a "auth.user" value set to a UserInfo struct.
	Authorized(ctx context.Context, access ...Access) (context.Context, error)
}

// WithUser returns a context with the authorized user info.
func WithUser(ctx context.Context, user UserInfo) context.Context {
	return userInfoContext{
		Context: ctx,
		user:    user,
	}
}

type userInfoContext struct {
	context.Context
	user UserInfo
}

func (uic userInfoContext) Value(key any) any {
	switch key {
	case UserKey:
		return uic.user
	case UserNameKey:
		return uic.user.Name
	}

	return uic.Context.Value(key)
}

// InitFunc is the type of an AccessController factory function and is used
// to register the constructor for different AccessController backends.
type InitFunc func(options map[string]any) (AccessController, error)

var (
	mu                sync.RWMutex
	accessControllers = make(map[string]InitFunc)
)

// Register is used to register an InitFunc for
// an AccessController backend with the given name.
func Register(name string, initFunc InitFunc) error {
	mu.Lock()
	defer mu.Unlock()

	if _, exists := accessControllers[name]; exists {
		return fmt.Errorf("name already registered: %s", name)
	}

	accessControllers[name] = initFunc

	return nil
}

// GetAccessController constructs an AccessController
// with the given options using the named backend.
func GetAccessController(name string, options map[string]any) (AccessController, error) {
	mu.RLock()
	initFunc, exists := accessControllers[name]
	mu.RUnlock()

	if exists {
		return initFunc(options)
	}

	return nil, fmt.Errorf("no access controller registered with name: %s", name)
}
