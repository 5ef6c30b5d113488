// Package extgateway defines the interfaces shared by the components of the
// extension gateway. The gateway is an administrative REST surface in front
// of a dynamic set of extension services. Each service owns some subset of
// the installable extensions (bindings, add-ons) and knows how to list,
// describe, install and uninstall them.
//
// ExtensionService
//
// The central abstraction is the ExtensionService. The gateway never
// installs anything on its own; it resolves the service that claims an
// extension id and delegates to it. Extension ids are unique across all
// registered services.
//
// Locale
//
// Listing operations take a language.Tag so that services may return
// localized labels. The gateway resolves the tag from the Accept-Language
// header of the request, falling back to the configured default.
package extgateway
