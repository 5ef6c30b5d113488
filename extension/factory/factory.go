// Package factory creates extension services by name. Service
// implementations call Register from their init function to become
// available to the gateway configuration.
package factory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/smarthome/extgateway"
	"github.com/smarthome/extgateway/notifications"
)

var (
	mu        sync.RWMutex
	factories = make(map[string]ServiceFactory)
)

// ServiceFactory creates extension services.
type ServiceFactory interface {
	// Create returns a new extension service configured with parameters.
	// Parameters vary by service and may be ignored. Lifecycle events
	// produced by the service are reported to listener, which may be nil.
	Create(ctx context.Context, parameters map[string]any, listener notifications.Listener) (extgateway.ExtensionService, error)
}

// FactoryFunc adapts a function to a ServiceFactory.
type FactoryFunc func(ctx context.Context, parameters map[string]any, listener notifications.Listener) (extgateway.ExtensionService, error)

// Create calls f.
func (f FactoryFunc) Create(ctx context.Context, parameters map[string]any, listener notifications.Listener) (extgateway.ExtensionService, error) {
	return f(ctx, parameters, listener)
}

// Register makes a service factory available by the provided name.
// If Register is called twice with the same name or if factory is nil, it
// panics.
func Register(name string, factory ServiceFactory) {
	if factory == nil {
		panic("Must not provide nil ServiceFactory")
	}

	mu.Lock()
	defer mu.Unlock()

	if _, registered := factories[name]; registered {
		panic(fmt.Sprintf("ServiceFactory named %s already registered", name))
	}

	factories[name] = factory
}

// Create a new extension service with the given name and parameters. The
// factory must have been registered under name, otherwise an
// InvalidServiceError is returned.
func Create(ctx context.Context, name string, parameters map[string]any, listener notifications.Listener) (extgateway.ExtensionService, error) {
	mu.RLock()
	f, ok := factories[name]
	mu.RUnlock()

	if !ok {
		return nil, InvalidServiceError{Name: name}
	}

	service, err := f.Create(ctx, parameters, listener)
	if err != nil {
		return nil, fmt.Errorf("unable to create extension service %q: %w", name, err)
	}

	return service, nil
}

// Names returns the registered factory names in sorted order.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// InvalidServiceError records an attempt to construct an unregistered
// extension service.
type InvalidServiceError struct {
	Name string
}

func (err InvalidServiceError) Error() string {
	return fmt.Sprintf("ExtensionService not registered: %s", err.Name)
}
