package v1

import (
	"net/http"

	"github.com/smarthome/extgateway/gateway/api/errcode"
)

const errGroup = "gateway.api.v1"

var (
	// ErrorCodeExtensionUnknown is returned when no registered extension
	// service claims the requested extension id.
	ErrorCodeExtensionUnknown = errcode.Register(errGroup, errcode.ErrorDescriptor{
		Value:   "EXTENSION_UNKNOWN",
		Message: "extension unknown to gateway",
		Description: `This is returned if the extension id is not advertised
		by any of the registered extension services.`,
		HTTPStatusCode: http.StatusNotFound,
	})

	// ErrorCodeExtensionIDInvalid is returned when an extension id does not
	// match the id grammar.
	ErrorCodeExtensionIDInvalid = errcode.Register(errGroup, errcode.ErrorDescriptor{
		Value:   "EXTENSION_ID_INVALID",
		Message: "invalid extension id",
		Description: `Extension ids may only contain letters, digits,
		underscores and dashes.`,
		HTTPStatusCode: http.StatusBadRequest,
	})
)
