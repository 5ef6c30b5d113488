package extension

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"golang.org/x/text/language"

	"github.com/smarthome/extgateway"
	"github.com/smarthome/extgateway/internal/dcontext"
	"github.com/smarthome/extgateway/internal/locale"
)

// Services is the set of registered extension services. Services may be
// added and removed at any time; readers operate on an immutable snapshot
// and never block writers.
type Services struct {
	mu       sync.Mutex // serializes writers
	services atomic.Pointer[[]extgateway.ExtensionService]
	locale   language.Tag
}

// NewServices returns an empty registry. The default locale is used to list
// extensions when resolving the service that owns an id.
func NewServices(defaultLocale language.Tag) *Services {
	s := &Services{locale: defaultLocale}
	s.services.Store(&[]extgateway.ExtensionService{})
	return s
}

// Add registers service. It returns false if the service was already
// registered.
func (s *Services) Add(service extgateway.ExtensionService) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := *s.services.Load()
	for _, existing := range current {
		if existing == service {
			return false
		}
	}

	next := make([]extgateway.ExtensionService, len(current), len(current)+1)
	copy(next, current)
	next = append(next, service)
	s.services.Store(&next)

	registeredGauge.Set(float64(len(next)))
	return true
}

// Remove unregisters service. It returns false if the service was not
// registered.
func (s *Services) Remove(service extgateway.ExtensionService) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := *s.services.Load()
	for i, existing := range current {
		if existing != service {
			continue
		}

		next := make([]extgateway.ExtensionService, 0, len(current)-1)
		next = append(next, current[:i]...)
		next = append(next, current[i+1:]...)
		s.services.Store(&next)

		registeredGauge.Set(float64(len(next)))
		return true
	}

	return false
}

// Snapshot returns the registered services in registration order. The
// returned slice must not be modified.
func (s *Services) Snapshot() []extgateway.ExtensionService {
	return *s.services.Load()
}

// Len returns the number of registered services.
func (s *Services) Len() int {
	return len(s.Snapshot())
}

// Satisfied reports whether at least one service is registered.
func (s *Services) Satisfied() bool {
	return s.Len() > 0
}

// Extensions concatenates the extensions of all services in registration
// order. A service that fails to list its extensions is logged and skipped.
func (s *Services) Extensions(ctx context.Context, tag language.Tag) []extgateway.Extension {
	result := []extgateway.Extension{}

	for _, service := range s.Snapshot() {
		extensions, err := service.Extensions(ctx, tag)
		if err != nil {
			dcontext.GetLogger(ctx).Errorf("error listing extensions of %T: %v", service, err)
			listingErrors.WithValues("extensions").Inc(1)
			continue
		}

		result = append(result, extensions...)
	}

	return result
}

// Types merges the extension types of all services. The result is ordered
// by label under the collation of tag; types whose labels collate equal
// ignoring case and accents are reported once, the first one registered
// wins.
func (s *Services) Types(ctx context.Context, tag language.Tag) []extgateway.ExtensionType {
	collator := locale.Collator(tag)
	result := []extgateway.ExtensionType{}

	for _, service := range s.Snapshot() {
		types, err := service.Types(ctx, tag)
		if err != nil {
			dcontext.GetLogger(ctx).Errorf("error listing extension types of %T: %v", service, err)
			listingErrors.WithValues("types").Inc(1)
			continue
		}

		for _, t := range types {
			i := sort.Search(len(result), func(i int) bool {
				return collator.CompareString(result[i].Label, t.Label) >= 0
			})
			if i < len(result) && collator.CompareString(result[i].Label, t.Label) == 0 {
				continue
			}

			result = append(result, extgateway.ExtensionType{})
			copy(result[i+1:], result[i:])
			result[i] = t
		}
	}

	return result
}

// Resolve returns the service whose extensions, listed under the default
// locale, contain id. It returns ErrExtensionUnknown when no service claims
// the id.
func (s *Services) Resolve(ctx context.Context, id string) (extgateway.ExtensionService, error) {
	if !extgateway.ExtensionIDRegexp.MatchString(id) {
		return nil, extgateway.ErrExtensionIDInvalid{ID: id}
	}

	for _, service := range s.Snapshot() {
		extensions, err := service.Extensions(ctx, s.locale)
		if err != nil {
			dcontext.GetLogger(ctx).Errorf("error listing extensions of %T: %v", service, err)
			listingErrors.WithValues("resolve").Inc(1)
			continue
		}

		for _, extension := range extensions {
			if extension.ID == id {
				return service, nil
			}
		}
	}

	return nil, extgateway.ErrExtensionUnknown{ID: id}
}

// Extension returns the details of the extension with the given id from the
// service that claims it. A nil extension with a nil error means the
// service has no details for the id.
func (s *Services) Extension(ctx context.Context, id string, tag language.Tag) (*extgateway.Extension, error) {
	service, err := s.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}

	return service.Extension(ctx, id, tag)
}
