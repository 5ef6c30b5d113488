package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/handlers"

	"github.com/smarthome/extgateway"
	"github.com/smarthome/extgateway/extension"
	"github.com/smarthome/extgateway/gateway/api/errcode"
	v1 "github.com/smarthome/extgateway/gateway/api/v1"
	"github.com/smarthome/extgateway/internal/dcontext"
)

// extensionsDispatcher constructs the handler listing all extensions.
func extensionsDispatcher(ctx *Context, r *http.Request) http.Handler {
	extensionsHandler := &extensionsHandler{
		Context: ctx,
	}

	return handlers.MethodHandler{
		http.MethodGet: http.HandlerFunc(extensionsHandler.GetExtensions),
	}
}

// typesDispatcher constructs the handler listing the extension types.
func typesDispatcher(ctx *Context, r *http.Request) http.Handler {
	extensionsHandler := &extensionsHandler{
		Context: ctx,
	}

	return handlers.MethodHandler{
		http.MethodGet: http.HandlerFunc(extensionsHandler.GetTypes),
	}
}

// extensionDispatcher constructs the handler for a single extension.
func extensionDispatcher(ctx *Context, r *http.Request) http.Handler {
	extensionHandler := &extensionHandler{
		Context: ctx,
		ID:      getExtensionID(ctx),
	}

	return handlers.MethodHandler{
		http.MethodGet: http.HandlerFunc(extensionHandler.GetExtension),
	}
}

// installDispatcher constructs the handler scheduling an installation.
func installDispatcher(ctx *Context, r *http.Request) http.Handler {
	extensionHandler := &extensionHandler{
		Context: ctx,
		ID:      getExtensionID(ctx),
	}

	return handlers.MethodHandler{
		http.MethodPost: http.HandlerFunc(extensionHandler.Install),
	}
}

// uninstallDispatcher constructs the handler scheduling a removal.
func uninstallDispatcher(ctx *Context, r *http.Request) http.Handler {
	extensionHandler := &extensionHandler{
		Context: ctx,
		ID:      getExtensionID(ctx),
	}

	return handlers.MethodHandler{
		http.MethodPost: http.HandlerFunc(extensionHandler.Uninstall),
	}
}

// extensionsHandler handles requests for lists of extensions and types.
type extensionsHandler struct {
	*Context
}

// GetExtensions returns the extensions of all registered services in
// registration order.
func (eh *extensionsHandler) GetExtensions(w http.ResponseWriter, r *http.Request) {
	extensions := eh.services.Extensions(eh, eh.locale)

	if err := serveLocalized(w, eh.locale, extensions); err != nil {
		eh.Errors = append(eh.Errors, errcode.ErrorCodeUnknown.WithDetail(err))
	}
}

// GetTypes returns the extension types of all registered services, sorted
// by label.
func (eh *extensionsHandler) GetTypes(w http.ResponseWriter, r *http.Request) {
	types := eh.services.Types(eh, eh.locale)

	if err := serveLocalized(w, eh.locale, types); err != nil {
		eh.Errors = append(eh.Errors, errcode.ErrorCodeUnknown.WithDetail(err))
	}
}

// extensionHandler handles requests for a single extension.
type extensionHandler struct {
	*Context

	ID string
}

// GetExtension returns the details of the extension. It responds 404 with an
// empty body when the owning service has no details.
func (eh *extensionHandler) GetExtension(w http.ResponseWriter, r *http.Request) {
	dcontext.GetLogger(eh).Debug("GetExtension")

	ext, err := eh.services.Extension(eh, eh.ID, eh.locale)
	if err != nil {
		eh.appendExtensionError(err)
		return
	}

	if ext == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	if location, err := eh.urlBuilder.BuildExtensionURL(eh.ID); err == nil {
		w.Header().Set("Content-Location", location)
	}

	if err := serveLocalized(w, eh.locale, ext); err != nil {
		eh.Errors = append(eh.Errors, errcode.ErrorCodeUnknown.WithDetail(err))
	}
}

// Install schedules the installation of the extension. The response is sent
// before the operation runs; failures are published as events.
func (eh *extensionHandler) Install(w http.ResponseWriter, r *http.Request) {
	dcontext.GetLogger(eh).Debug("Install")

	if err := eh.lifecycle.Install(eh, eh.ID); err != nil {
		eh.appendLifecycleError(err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// Uninstall schedules the removal of the extension.
func (eh *extensionHandler) Uninstall(w http.ResponseWriter, r *http.Request) {
	dcontext.GetLogger(eh).Debug("Uninstall")

	if err := eh.lifecycle.Uninstall(eh, eh.ID); err != nil {
		eh.appendLifecycleError(err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (eh *extensionHandler) appendExtensionError(err error) {
	var unknown extgateway.ErrExtensionUnknown
	var invalid extgateway.ErrExtensionIDInvalid

	switch {
	case errors.As(err, &unknown):
		eh.Errors = append(eh.Errors, v1.ErrorCodeExtensionUnknown.WithDetail(map[string]string{"id": unknown.ID}))
	case errors.As(err, &invalid):
		eh.Errors = append(eh.Errors, v1.ErrorCodeExtensionIDInvalid.WithDetail(map[string]string{"id": invalid.ID}))
	default:
		eh.Errors = append(eh.Errors, errcode.ErrorCodeUnknown.WithDetail(err))
	}
}

func (eh *extensionHandler) appendLifecycleError(err error) {
	if errors.Is(err, extension.ErrExecutorClosed) {
		eh.Errors = append(eh.Errors, errcode.ErrorCodeUnavailable.WithDetail("gateway is shutting down"))
		return
	}

	eh.Errors = append(eh.Errors, errcode.ErrorCodeUnknown.WithDetail(err))
}
