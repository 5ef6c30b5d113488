package extgateway

import (
	"context"
	"regexp"

	"golang.org/x/text/language"
)

// ExtensionIDRegexp matches the ids accepted for extensions. The empty id is
// syntactically valid but is never claimed by a well-behaved service.
var ExtensionIDRegexp = regexp.MustCompile(`^[A-Za-z0-9_-]*$`)

// Extension describes an installable unit as reported by an
// ExtensionService. The gateway only interprets the ID; all other fields are
// forwarded to clients as they were returned by the service.
type Extension struct {
	ID              string `json:"id"`
	Label           string `json:"label"`
	Version         string `json:"version,omitempty"`
	Type            string `json:"type,omitempty"`
	Description     string `json:"description,omitempty"`
	Link            string `json:"link,omitempty"`
	Installed       bool   `json:"installed"`
	BackgroundColor string `json:"backgroundColor,omitempty"`
	ImageLink       string `json:"imageLink,omitempty"`
}

// ExtensionType is a category used to group extensions for display.
type ExtensionType struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// ExtensionService provides access to the extensions of one provider.
//
// Implementations are registered with the gateway at runtime and may be
// removed at any time. They must be comparable (typically a pointer) so that
// they can be identified for removal.
type ExtensionService interface {
	// Extensions returns all extensions known to the service, with labels
	// localized for the given tag where possible.
	Extensions(ctx context.Context, locale language.Tag) ([]Extension, error)

	// Types returns the extension types offered by the service.
	Types(ctx context.Context, locale language.Tag) ([]ExtensionType, error)

	// Extension returns the extension with the given id. A nil extension
	// with a nil error means the service knows the id but has no details
	// to report.
	Extension(ctx context.Context, id string, locale language.Tag) (*Extension, error)

	// Install installs the extension with the given id. It may block for
	// as long as the installation takes.
	Install(ctx context.Context, id string) error

	// Uninstall removes the extension with the given id.
	Uninstall(ctx context.Context, id string) error
}
