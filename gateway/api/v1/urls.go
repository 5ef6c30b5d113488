package v1

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/mux"
)

// URLBuilder creates gateway api urls from a single base endpoint. It can be
// used to create urls for use in a gateway client or server.
//
// All urls will be created from the given base, including the api version.
// For example, if a root of "/foo/" is provided, urls generated will fall
// under "/foo/extensions/...".
type URLBuilder struct {
	root     *url.URL // url root (ie http://localhost/)
	router   *mux.Router
	relative bool
}

// NewURLBuilder creates a URLBuilder with provided root url object.
func NewURLBuilder(root *url.URL, relative bool) *URLBuilder {
	base := *root
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	return &URLBuilder{
		root:     &base,
		router:   Router(),
		relative: relative,
	}
}

// NewURLBuilderFromString workes identically to NewURLBuilder except it takes
// a string argument for the root, returning an error if it is not a valid
// url.
func NewURLBuilderFromString(root string, relative bool) (*URLBuilder, error) {
	u, err := url.Parse(root)
	if err != nil {
		return nil, err
	}

	return NewURLBuilder(u, relative), nil
}

// NewURLBuilderFromRequest uses information from an *http.Request to
// construct the root url. The prefix is the configured api prefix, since the
// request path cannot tell it apart from the route.
func NewURLBuilderFromRequest(r *http.Request, prefix string, relative bool) *URLBuilder {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	host := r.Host

	if forwardedProto := r.Header.Get("X-Forwarded-Proto"); len(forwardedProto) > 0 {
		scheme = forwardedProto
	}
	if forwardedHost := r.Header.Get("X-Forwarded-Host"); len(forwardedHost) > 0 {
		// According to the Apache mod_proxy docs, X-Forwarded-Host can be a
		// comma-separated list of hosts, to which each proxy appends the
		// requested host. We want to grab the first from this comma-separated
		// list.
		host, _, _ = strings.Cut(forwardedHost, ",")
		host = strings.TrimSpace(host)
	}

	u := &url.URL{
		Scheme: scheme,
		Host:   host,
		Path:   prefix,
	}

	return NewURLBuilder(u, relative)
}

// BuildExtensionsURL constructs the url for the extension list.
func (ub *URLBuilder) BuildExtensionsURL() (string, error) {
	return ub.build(RouteNameExtensions)
}

// BuildTypesURL constructs the url for the extension type list.
func (ub *URLBuilder) BuildTypesURL() (string, error) {
	return ub.build(RouteNameTypes)
}

// BuildExtensionURL constructs the url for a single extension.
func (ub *URLBuilder) BuildExtensionURL(id string) (string, error) {
	return ub.build(RouteNameExtension, "id", id)
}

// BuildInstallURL constructs the url that installs an extension.
func (ub *URLBuilder) BuildInstallURL(id string) (string, error) {
	return ub.build(RouteNameInstall, "id", id)
}

// BuildUninstallURL constructs the url that uninstalls an extension.
func (ub *URLBuilder) BuildUninstallURL(id string) (string, error) {
	return ub.build(RouteNameUninstall, "id", id)
}

func (ub *URLBuilder) build(name string, pairs ...string) (string, error) {
	route := ub.cloneRoute(name)

	u, err := route.URL(pairs...)
	if err != nil {
		return "", err
	}

	return u.String(), nil
}

// cloneRoute returns a clone of the named route from the router. Routes
// must be cloned to avoid modifying them during url generation.
func (ub *URLBuilder) cloneRoute(name string) clonedRoute {
	route := new(mux.Route)
	root := new(url.URL)

	*route = *ub.router.GetRoute(name) // clone the route
	*root = *ub.root

	return clonedRoute{Route: route, root: root, relative: ub.relative}
}

type clonedRoute struct {
	*mux.Route
	root     *url.URL
	relative bool
}

func (cr clonedRoute) URL(pairs ...string) (*url.URL, error) {
	routeURL, err := cr.Route.URL(pairs...)
	if err != nil {
		return nil, fmt.Errorf("building url for route %q: %w", cr.GetName(), err)
	}

	// Resolve relative to the root so that its path acts as a prefix.
	routeURL.Path = strings.TrimPrefix(routeURL.Path, "/")

	url := cr.root.ResolveReference(routeURL)
	if cr.relative {
		url.Scheme = ""
		url.User = nil
		url.Host = ""
		return url, nil
	}

	url.Scheme = cr.root.Scheme
	return url, nil
}
