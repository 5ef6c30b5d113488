package v1

import "github.com/gorilla/mux"

// The following are definitions of the name under which all gateway routes
// are registered. These symbols can be used to look up a route based on the
// name.
const (
	RouteNameExtensions = "extensions"
	RouteNameTypes      = "extension-types"
	RouteNameExtension  = "extension"
	RouteNameInstall    = "extension-install"
	RouteNameUninstall  = "extension-uninstall"
)

// Router builds a gorilla router with named routes for the various API
// methods. This can be used directly by both server implementations and
// clients.
func Router() *mux.Router {
	return RouterWithPrefix("")
}

// RouterWithPrefix builds a gorilla router with a configured prefix
// on all routes.
//
// Routes are registered in descriptor order, so /extensions/types takes
// precedence over an extension with the id "types".
func RouterWithPrefix(prefix string) *mux.Router {
	rootRouter := mux.NewRouter()
	router := rootRouter
	if prefix != "" {
		router = router.PathPrefix(prefix).Subrouter()
	}

	for _, descriptor := range routeDescriptors {
		router.Path(descriptor.Path).Name(descriptor.Name)
	}

	return rootRouter
}
