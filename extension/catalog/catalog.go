// Package catalog provides an extension service backed by a YAML catalog
// file. The catalog lists extension types and extensions with optional
// localized labels; installing or uninstalling an extension flips its
// installed flag, which may be persisted to a state file.
//
// The service is registered under the name "catalog" and is configured with
// the following parameters:
//
//	extensions:
//	  catalog:
//	    path: /etc/extgateway/catalog.yml
//	    statefile: /var/lib/extgateway/installed.yml
package catalog

import (
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v2"

	"github.com/smarthome/extgateway"
	"github.com/smarthome/extgateway/internal/locale"
)

// Catalog is the content of a catalog file.
type Catalog struct {
	Types      []TypeEntry `yaml:"types" validate:"dive"`
	Extensions []Entry     `yaml:"extensions" validate:"dive"`
}

// TypeEntry declares an extension type.
type TypeEntry struct {
	ID     string            `yaml:"id" validate:"required,extensionid"`
	Label  string            `yaml:"label" validate:"required"`
	Labels map[string]string `yaml:"labels,omitempty" validate:"omitempty,dive,keys,bcp47_language_tag,endkeys,required"`
}

// Entry declares an extension.
type Entry struct {
	ID              string            `yaml:"id" validate:"required,extensionid"`
	Label           string            `yaml:"label" validate:"required"`
	Labels          map[string]string `yaml:"labels,omitempty" validate:"omitempty,dive,keys,bcp47_language_tag,endkeys,required"`
	Version         string            `yaml:"version,omitempty"`
	Type            string            `yaml:"type" validate:"required"`
	Description     string            `yaml:"description,omitempty"`
	Descriptions    map[string]string `yaml:"descriptions,omitempty" validate:"omitempty,dive,keys,bcp47_language_tag,endkeys,required"`
	Link            string            `yaml:"link,omitempty" validate:"omitempty,url"`
	Installed       bool              `yaml:"installed,omitempty"`
	BackgroundColor string            `yaml:"backgroundColor,omitempty" validate:"omitempty,hexcolor"`
	ImageLink       string            `yaml:"imageLink,omitempty" validate:"omitempty,url"`
}

// Localize returns the extension as reported for tag.
func (e Entry) Localize(tag language.Tag, installed bool) extgateway.Extension {
	return extgateway.Extension{
		ID:              e.ID,
		Label:           localized(e.Label, e.Labels, tag),
		Version:         e.Version,
		Type:            e.Type,
		Description:     localized(e.Description, e.Descriptions, tag),
		Link:            e.Link,
		Installed:       installed,
		BackgroundColor: e.BackgroundColor,
		ImageLink:       e.ImageLink,
	}
}

// Localize returns the extension type as reported for tag.
func (t TypeEntry) Localize(tag language.Tag) extgateway.ExtensionType {
	return extgateway.ExtensionType{
		ID:    t.ID,
		Label: localized(t.Label, t.Labels, tag),
	}
}

func localized(fallback string, values map[string]string, tag language.Tag) string {
	if v, ok := locale.Match(values, tag); ok {
		return v
	}
	return fallback
}

// Load reads and validates the catalog file at path.
func Load(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Parse(f)
}

// Parse reads and validates a catalog.
func Parse(rd io.Reader) (*Catalog, error) {
	in, err := io.ReadAll(rd)
	if err != nil {
		return nil, err
	}

	var c Catalog
	if err := yaml.UnmarshalStrict(in, &c); err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return &c, nil
}

// Validate checks the entries of the catalog. Ids must be unique and every
// extension must refer to a declared type.
func (c *Catalog) Validate() error {
	if err := validatorInstance().Struct(c); err != nil {
		return convertValidationError(err)
	}

	types := make(map[string]struct{}, len(c.Types))
	for i, t := range c.Types {
		if _, ok := types[t.ID]; ok {
			return fmt.Errorf("catalog: types[%d]: duplicate type id %q", i, t.ID)
		}
		types[t.ID] = struct{}{}
	}

	ids := make(map[string]struct{}, len(c.Extensions))
	for i, e := range c.Extensions {
		if _, ok := ids[e.ID]; ok {
			return fmt.Errorf("catalog: extensions[%d]: duplicate extension id %q", i, e.ID)
		}
		ids[e.ID] = struct{}{}

		if _, ok := types[e.Type]; !ok {
			return fmt.Errorf("catalog: extensions[%d]: unknown type %q", i, e.Type)
		}
	}

	return nil
}

// Entry returns the extension with the given id.
func (c *Catalog) Entry(id string) (Entry, bool) {
	for _, e := range c.Extensions {
		if e.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}

var (
	validatorOnce sync.Once
	validateInst  *validator.Validate
)

func validatorInstance() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New()

		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})

		_ = v.RegisterValidation("extensionid", func(fl validator.FieldLevel) bool {
			return extgateway.ExtensionIDRegexp.MatchString(fl.Field().String())
		})

		validateInst = v
	})

	return validateInst
}

// convertValidationError reports the first failing field by its path in the
// catalog file.
func convertValidationError(err error) error {
	ves, ok := err.(validator.ValidationErrors)
	if !ok || len(ves) == 0 {
		return fmt.Errorf("catalog: %w", err)
	}

	fe := ves[0]
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}

	return fmt.Errorf("catalog: %s failed validation for tag '%s'", field, fe.Tag())
}
