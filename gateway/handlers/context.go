package handlers

import (
	"context"

	"golang.org/x/text/language"

	"github.com/smarthome/extgateway/gateway/api/errcode"
	v1 "github.com/smarthome/extgateway/gateway/api/v1"
	"github.com/smarthome/extgateway/internal/dcontext"
)

// Context should contain the request specific context for use in across
// handlers. Resources that don't need to be shared across handlers should not
// be on this object.
type Context struct {
	// App points to the application structure that created this context.
	*App
	context.Context

	// Errors is a collection of errors encountered during the request to be
	// returned to the client API. If errors are added to the collection, the
	// handler *must not* start the response via http.ResponseWriter.
	Errors errcode.Errors

	// locale is the locale resolved from the Accept-Language header.
	locale language.Tag

	urlBuilder *v1.URLBuilder
}

// Value overrides context.Context.Value to ensure that calls are routed to
// correct context.
func (ctx *Context) Value(key any) any {
	return ctx.Context.Value(key)
}

func getExtensionID(ctx context.Context) string {
	return dcontext.GetStringValue(ctx, "vars.id")
}

type errCodeKey struct{}

func (errCodeKey) String() string { return "err.code" }

type errMessageKey struct{}

func (errMessageKey) String() string { return "err.message" }

type errDetailKey struct{}

func (errDetailKey) String() string { return "err.detail" }
