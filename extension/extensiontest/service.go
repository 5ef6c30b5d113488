// Package extensiontest provides an in-memory extension service for tests.
package extensiontest

import (
	"context"
	"sync"

	"golang.org/x/text/language"

	"github.com/smarthome/extgateway"
)

// Call records a lifecycle call.
type Call struct {
	Action string
	ID     string
}

// Service is an in-memory ExtensionService. Use New and the With methods
// to configure it before registering it.
type Service struct {
	mu         sync.Mutex
	extensions []extgateway.Extension
	types      []extgateway.ExtensionType
	noDetails  map[string]bool
	listErr    error
	opErr      error
	opPanic    any
	calls      []Call
	done       chan Call
}

var _ extgateway.ExtensionService = &Service{}

// New returns a service advertising extensions.
func New(extensions ...extgateway.Extension) *Service {
	return &Service{
		extensions: extensions,
		noDetails:  make(map[string]bool),
		done:       make(chan Call, 64),
	}
}

// WithTypes sets the extension types of the service.
func (s *Service) WithTypes(types ...extgateway.ExtensionType) *Service {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.types = types
	return s
}

// WithoutDetails makes Extension report no details for ids.
func (s *Service) WithoutDetails(ids ...string) *Service {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.noDetails[id] = true
	}
	return s
}

// FailListing makes Extensions and Types return err.
func (s *Service) FailListing(err error) *Service {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listErr = err
	return s
}

// FailLifecycle makes Install and Uninstall return err.
func (s *Service) FailLifecycle(err error) *Service {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opErr = err
	return s
}

// PanicLifecycle makes Install and Uninstall panic with v.
func (s *Service) PanicLifecycle(v any) *Service {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opPanic = v
	return s
}

// Calls returns the lifecycle calls received so far.
func (s *Service) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// Done delivers every lifecycle call once it has been handled.
func (s *Service) Done() <-chan Call {
	return s.done
}

func (s *Service) Extensions(ctx context.Context, locale language.Tag) ([]extgateway.Extension, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listErr != nil {
		return nil, s.listErr
	}
	return append([]extgateway.Extension(nil), s.extensions...), nil
}

func (s *Service) Types(ctx context.Context, locale language.Tag) ([]extgateway.ExtensionType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listErr != nil {
		return nil, s.listErr
	}
	return append([]extgateway.ExtensionType(nil), s.types...), nil
}

func (s *Service) Extension(ctx context.Context, id string, locale language.Tag) (*extgateway.Extension, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.noDetails[id] {
		return nil, nil
	}
	for _, extension := range s.extensions {
		if extension.ID == id {
			e := extension
			return &e, nil
		}
	}
	return nil, nil
}

func (s *Service) Install(ctx context.Context, id string) error {
	return s.lifecycle("install", id)
}

func (s *Service) Uninstall(ctx context.Context, id string) error {
	return s.lifecycle("uninstall", id)
}

func (s *Service) lifecycle(action, id string) error {
	call := Call{Action: action, ID: id}

	s.mu.Lock()
	s.calls = append(s.calls, call)
	opErr, opPanic := s.opErr, s.opPanic
	s.mu.Unlock()

	defer func() {
		select {
		case s.done <- call:
		default:
		}
	}()

	if opPanic != nil {
		panic(opPanic)
	}
	return opErr
}
