package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mitchellh/mapstructure"
	"golang.org/x/text/language"

	"github.com/smarthome/extgateway"
	"github.com/smarthome/extgateway/extension/factory"
	"github.com/smarthome/extgateway/internal/dcontext"
	"github.com/smarthome/extgateway/notifications"
)

const serviceName = "catalog"

var (
	// ErrAlreadyInstalled is returned when installing an installed
	// extension.
	ErrAlreadyInstalled = errors.New("extension already installed")
	// ErrNotInstalled is returned when uninstalling an extension that is
	// not installed.
	ErrNotInstalled = errors.New("extension not installed")
)

func init() {
	factory.Register(serviceName, &catalogFactory{})
}

type catalogFactory struct{}

func (f *catalogFactory) Create(ctx context.Context, parameters map[string]any, listener notifications.Listener) (extgateway.ExtensionService, error) {
	params, err := fromParameters(parameters)
	if err != nil {
		return nil, err
	}

	c, err := Load(params.Path)
	if err != nil {
		return nil, err
	}

	s, err := New(c, params.StateFile, listener)
	if err != nil {
		return nil, err
	}

	dcontext.GetLogger(ctx).Infof("loaded catalog %s with %d extensions", params.Path, len(c.Extensions))
	return s, nil
}

// Parameters configures a catalog service.
type Parameters struct {
	Path      string `mapstructure:"path"`
	StateFile string `mapstructure:"statefile"`
}

func fromParameters(parameters map[string]any) (Parameters, error) {
	var params Parameters
	if err := mapstructure.Decode(parameters, &params); err != nil {
		return Parameters{}, err
	}

	if params.Path == "" {
		return Parameters{}, fmt.Errorf("no path parameter provided")
	}

	return params, nil
}

// Service is an extension service serving the extensions of a catalog.
type Service struct {
	catalog  *Catalog
	state    *stateFile
	listener notifications.Listener

	mu        sync.RWMutex
	installed map[string]bool
}

var _ extgateway.ExtensionService = &Service{}

// New returns a service for catalog. When statefile is not empty, the
// installed extensions are read from and saved to it; otherwise the
// installed flags of the catalog are used and changes are kept in memory.
// Installation events are reported to listener, which may be nil.
func New(c *Catalog, statefile string, listener notifications.Listener) (*Service, error) {
	s := &Service{
		catalog:   c,
		listener:  listener,
		installed: make(map[string]bool),
	}

	for _, e := range c.Extensions {
		if e.Installed {
			s.installed[e.ID] = true
		}
	}

	if statefile != "" {
		s.state = &stateFile{path: statefile}

		ids, ok, err := s.state.load()
		if err != nil {
			return nil, err
		}
		if ok {
			s.installed = make(map[string]bool, len(ids))
			for _, id := range ids {
				if _, known := c.Entry(id); known {
					s.installed[id] = true
				}
			}
		}
	}

	return s, nil
}

func (s *Service) Extensions(ctx context.Context, tag language.Tag) ([]extgateway.Extension, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	extensions := make([]extgateway.Extension, 0, len(s.catalog.Extensions))
	for _, e := range s.catalog.Extensions {
		extensions = append(extensions, e.Localize(tag, s.installed[e.ID]))
	}

	return extensions, nil
}

func (s *Service) Types(ctx context.Context, tag language.Tag) ([]extgateway.ExtensionType, error) {
	types := make([]extgateway.ExtensionType, 0, len(s.catalog.Types))
	for _, t := range s.catalog.Types {
		types = append(types, t.Localize(tag))
	}

	return types, nil
}

func (s *Service) Extension(ctx context.Context, id string, tag language.Tag) (*extgateway.Extension, error) {
	e, ok := s.catalog.Entry(id)
	if !ok {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	extension := e.Localize(tag, s.installed[id])
	return &extension, nil
}

func (s *Service) Install(ctx context.Context, id string) error {
	if err := s.setInstalled(id, true); err != nil {
		return err
	}

	if s.listener != nil {
		if err := s.listener.ExtensionInstalled(ctx, id); err != nil {
			dcontext.GetLogger(ctx).Errorf("error publishing installed event for %s: %v", id, err)
		}
	}

	return nil
}

func (s *Service) Uninstall(ctx context.Context, id string) error {
	if err := s.setInstalled(id, false); err != nil {
		return err
	}

	if s.listener != nil {
		if err := s.listener.ExtensionUninstalled(ctx, id); err != nil {
			dcontext.GetLogger(ctx).Errorf("error publishing uninstalled event for %s: %v", id, err)
		}
	}

	return nil
}

// Installed returns whether the extension with the given id is installed.
func (s *Service) Installed(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.installed[id]
}

func (s *Service) setInstalled(id string, installed bool) error {
	if _, ok := s.catalog.Entry(id); !ok {
		return extgateway.ErrExtensionUnknown{ID: id}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.installed[id] == installed {
		if installed {
			return ErrAlreadyInstalled
		}
		return ErrNotInstalled
	}

	if installed {
		s.installed[id] = true
	} else {
		delete(s.installed, id)
	}

	if s.state == nil {
		return nil
	}

	if err := s.state.save(s.installedIDs()); err != nil {
		// keep memory consistent with the file
		if installed {
			delete(s.installed, id)
		} else {
			s.installed[id] = true
		}
		return fmt.Errorf("saving state: %w", err)
	}

	return nil
}

// installedIDs returns the installed ids in catalog order. The caller must
// hold mu.
func (s *Service) installedIDs() []string {
	ids := []string{}
	for _, e := range s.catalog.Extensions {
		if s.installed[e.ID] {
			ids = append(ids, e.ID)
		}
	}
	return ids
}
