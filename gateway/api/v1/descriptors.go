package v1

import (
	"net/http"

	"github.com/smarthome/extgateway/gateway/api/errcode"
)

var (
	idParameterDescriptor = ParameterDescriptor{
		Name:        "id",
		Type:        "string",
		Format:      idPattern,
		Required:    true,
		Description: `Id of the target extension.`,
	}

	acceptLanguageHeader = ParameterDescriptor{
		Name:        "Accept-Language",
		Type:        "string",
		Description: "RFC 7231 language preference used to localize labels. The gateway default locale applies when absent.",
		Format:      "<language-range>[;q=<weight>], ...",
		Examples:    []string{"de-CH, de;q=0.9, en;q=0.5"},
	}

	authHeader = ParameterDescriptor{
		Name:        "Authorization",
		Type:        "string",
		Description: "rfc7235 compliant authorization header.",
		Format:      "<scheme> <token>",
		Examples:    []string{"Basic YWRtaW46c2VjcmV0"},
	}

	authChallengeHeader = ParameterDescriptor{
		Name:        "WWW-Authenticate",
		Type:        "string",
		Description: "An RFC7235 compliant authentication challenge header.",
		Format:      `<scheme> realm="<realm>"`,
		Examples:    []string{`Basic realm="smarthome"`},
	}

	unauthorizedResponseDescriptor = ResponseDescriptor{
		Name:        "Authentication Required",
		StatusCode:  http.StatusUnauthorized,
		Description: "The client is not authenticated.",
		Headers:     []ParameterDescriptor{authChallengeHeader},
		Body: BodyDescriptor{
			ContentType: "application/json",
			Format:      errorsBody,
		},
		ErrorCodes: []errcode.ErrorCode{
			errcode.ErrorCodeUnauthorized,
		},
	}

	deniedResponseDescriptor = ResponseDescriptor{
		Name:        "Access Denied",
		StatusCode:  http.StatusForbidden,
		Description: "The client does not hold the administrative role.",
		Body: BodyDescriptor{
			ContentType: "application/json",
			Format:      errorsBody,
		},
		ErrorCodes: []errcode.ErrorCode{
			errcode.ErrorCodeDenied,
		},
	}

	acceptedResponseDescriptor = ResponseDescriptor{
		Description: "The request was accepted and runs in the background. Failures are reported as ExtensionFailureEvent.",
		StatusCode:  http.StatusOK,
	}
)

const (
	extensionBody = `{
    "id": <id>,
    "label": <localized label>,
    "version": <version>,
    "type": <type id>,
    "description": <description>,
    "link": <link>,
    "installed": <bool>,
    "backgroundColor": <color>,
    "imageLink": <link>
}`

	errorsBody = `{
	"errors:" [
	    {
            "code": <error code>,
            "message": "<error message>",
            "detail": ...
        },
        ...
    ]
}`
)

// idPattern is the mux pattern of the id path variable. It must accept the
// same ids as extgateway.ExtensionIDRegexp.
const idPattern = `[A-Za-z0-9_-]*`

// APIDescriptor exports descriptions of the layout of the gateway api.
var APIDescriptor = struct {
	// RouteDescriptors provides a list of the routes available in the API.
	RouteDescriptors []RouteDescriptor
}{
	RouteDescriptors: routeDescriptors,
}

// RouteDescriptor describes a route specified by name.
type RouteDescriptor struct {
	// Name is the name of the route, as specified in RouteNameXXX exports.
	// These names should be considered a unique reference for a route. If
	// the route is registered with gorilla, this is the name that will be
	// used.
	Name string

	// Path is a gorilla/mux-compatible regexp that can be used to match the
	// route. For any incoming method and path, only one route descriptor
	// should match.
	Path string

	// Entity should be a short, human-readable description of the object
	// targeted by the endpoint.
	Entity string

	// Description should provide an accurate overview of the functionality
	// provided by the route.
	Description string

	// Methods should describe the various HTTP methods that may be used on
	// this route, including request and response formats.
	Methods []MethodDescriptor
}

// MethodDescriptor provides a description of the requests that may be
// conducted with the target method.
type MethodDescriptor struct {
	// Method is an HTTP method, such as GET or POST.
	Method string

	// Description should provide an overview of the functionality provided by
	// the covered method, suitable for use in documentation.
	Description string

	// Requests is a slice of request descriptors enumerating how this
	// endpoint may be used.
	Requests []RequestDescriptor
}

// RequestDescriptor covers a particular set of headers and parameters that
// can be carried out with the parent method.
type RequestDescriptor struct {
	// Name provides a short identifier for the request.
	Name string

	// Description should cover the requests purpose.
	Description string

	// Headers describes headers that must be used with the HTTP request.
	Headers []ParameterDescriptor

	// PathParameters enumerate the parameterized path components for the
	// given request, as defined in the route's regular expression.
	PathParameters []ParameterDescriptor

	// Successes enumerates the possible responses that are considered to be
	// the result of a successful request.
	Successes []ResponseDescriptor

	// Failures covers the possible failures from this particular request.
	Failures []ResponseDescriptor
}

// ResponseDescriptor describes the components of an API response.
type ResponseDescriptor struct {
	// Name provides a short identifier for the response.
	Name string

	// Description should provide a brief overview of the role of the
	// response.
	Description string

	// StatusCode specifies the status received by this particular response.
	StatusCode int

	// Headers covers any headers that may be returned from the response.
	Headers []ParameterDescriptor

	// ErrorCodes enumerates the error codes that may be returned along with
	// the response.
	ErrorCodes []errcode.ErrorCode

	// Body describes the body of the response, if any.
	Body BodyDescriptor
}

// BodyDescriptor describes a request body and its expected content type.
type BodyDescriptor struct {
	ContentType string
	Format      string
}

// ParameterDescriptor describes the format of a request parameter, which may
// be a header or path parameter.
type ParameterDescriptor struct {
	// Name is the name of the parameter.
	Name string

	// Type specifies the type of the parameter, such as string, integer, etc.
	Type string

	// Description provides a human-readable description of the parameter.
	Description string

	// Required means the field is required when set.
	Required bool

	// Format is a specifying the string format accepted by this parameter.
	Format string

	// Examples provides multiple examples for the values that might be valid
	// for this parameter.
	Examples []string
}

var routeDescriptors = []RouteDescriptor{
	{
		Name:        RouteNameExtensions,
		Path:        "/extensions",
		Entity:      "Extensions",
		Description: "Lists the extensions of all registered extension services.",
		Methods: []MethodDescriptor{
			{
				Method:      http.MethodGet,
				Description: "Concatenate the extensions of every registered service, in registration order.",
				Requests: []RequestDescriptor{
					{
						Headers: []ParameterDescriptor{authHeader, acceptLanguageHeader},
						Successes: []ResponseDescriptor{
							{
								Description: "The extension list. Empty when no service is registered.",
								StatusCode:  http.StatusOK,
								Body: BodyDescriptor{
									ContentType: "application/json",
									Format:      "[" + extensionBody + ", ...]",
								},
							},
						},
						Failures: []ResponseDescriptor{
							unauthorizedResponseDescriptor,
							deniedResponseDescriptor,
						},
					},
				},
			},
		},
	},
	{
		Name:        RouteNameTypes,
		Path:        "/extensions/types",
		Entity:      "Types",
		Description: "Lists the extension types of all registered extension services.",
		Methods: []MethodDescriptor{
			{
				Method:      http.MethodGet,
				Description: "Merge the types of every registered service, ordered by localized label. Labels that collate equal ignoring case and accents are reported once.",
				Requests: []RequestDescriptor{
					{
						Headers: []ParameterDescriptor{authHeader, acceptLanguageHeader},
						Successes: []ResponseDescriptor{
							{
								StatusCode: http.StatusOK,
								Body: BodyDescriptor{
									ContentType: "application/json",
									Format:      `[{"id": <id>, "label": <localized label>}, ...]`,
								},
							},
						},
						Failures: []ResponseDescriptor{
							unauthorizedResponseDescriptor,
							deniedResponseDescriptor,
						},
					},
				},
			},
		},
	},
	{
		Name:        RouteNameExtension,
		Path:        "/extensions/{id:" + idPattern + "}",
		Entity:      "Extension",
		Description: "Retrieve the details of a single extension.",
		Methods: []MethodDescriptor{
			{
				Method:      http.MethodGet,
				Description: "Fetch the extension from the service that claims its id.",
				Requests: []RequestDescriptor{
					{
						Headers:        []ParameterDescriptor{authHeader, acceptLanguageHeader},
						PathParameters: []ParameterDescriptor{idParameterDescriptor},
						Successes: []ResponseDescriptor{
							{
								StatusCode: http.StatusOK,
								Body: BodyDescriptor{
									ContentType: "application/json",
									Format:      extensionBody,
								},
							},
						},
						Failures: []ResponseDescriptor{
							{
								Name:        "Extension Unknown",
								Description: "No registered service claims the id.",
								StatusCode:  http.StatusNotFound,
								ErrorCodes:  []errcode.ErrorCode{ErrorCodeExtensionUnknown},
								Body: BodyDescriptor{
									ContentType: "application/json",
									Format:      errorsBody,
								},
							},
							{
								Name:        "No Details",
								Description: "The owning service has no details for the extension. The body is empty.",
								StatusCode:  http.StatusNotFound,
							},
							unauthorizedResponseDescriptor,
							deniedResponseDescriptor,
						},
					},
				},
			},
		},
	},
	{
		Name:        RouteNameInstall,
		Path:        "/extensions/{id:" + idPattern + "}/install",
		Entity:      "Install",
		Description: "Install an extension in the background.",
		Methods: []MethodDescriptor{
			{
				Method:      http.MethodPost,
				Description: "Schedule the installation of the extension on the service that claims its id.",
				Requests: []RequestDescriptor{
					{
						Headers:        []ParameterDescriptor{authHeader},
						PathParameters: []ParameterDescriptor{idParameterDescriptor},
						Successes:      []ResponseDescriptor{acceptedResponseDescriptor},
						Failures: []ResponseDescriptor{
							unauthorizedResponseDescriptor,
							deniedResponseDescriptor,
						},
					},
				},
			},
		},
	},
	{
		Name:        RouteNameUninstall,
		Path:        "/extensions/{id:" + idPattern + "}/uninstall",
		Entity:      "Uninstall",
		Description: "Uninstall an extension in the background.",
		Methods: []MethodDescriptor{
			{
				Method:      http.MethodPost,
				Description: "Schedule the removal of the extension on the service that claims its id.",
				Requests: []RequestDescriptor{
					{
						Headers:        []ParameterDescriptor{authHeader},
						PathParameters: []ParameterDescriptor{idParameterDescriptor},
						Successes:      []ResponseDescriptor{acceptedResponseDescriptor},
						Failures: []ResponseDescriptor{
							unauthorizedResponseDescriptor,
							deniedResponseDescriptor,
						},
					},
				},
			},
		},
	},
}
