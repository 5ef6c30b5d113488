package client

import (
	"net/http"
)

// RequestModifier represents an object which will do an inplace
// modification of an HTTP request.
type RequestModifier interface {
	ModifyRequest(*http.Request) error
}

type headerModifier http.Header

// NewHeaderRequestModifier returns a new RequestModifier which will
// add the given headers to a request.
func NewHeaderRequestModifier(header http.Header) RequestModifier {
	return headerModifier(header)
}

func (h headerModifier) ModifyRequest(req *http.Request) error {
	for k, s := range http.Header(h) {
		req.Header[k] = append(req.Header[k], s...)
	}

	return nil
}

type basicAuthModifier struct {
	username, password string
}

// NewBasicAuthRequestModifier returns a RequestModifier setting the basic
// authentication credentials of a request.
func NewBasicAuthRequestModifier(username, password string) RequestModifier {
	return basicAuthModifier{username: username, password: password}
}

func (b basicAuthModifier) ModifyRequest(req *http.Request) error {
	req.SetBasicAuth(b.username, b.password)
	return nil
}

// NewTransport creates a new transport which will apply modifiers to
// the request on a RoundTrip call.
func NewTransport(base http.RoundTripper, modifiers ...RequestModifier) http.RoundTripper {
	return &transport{
		Modifiers: modifiers,
		Base:      base,
	}
}

// transport is an http.RoundTripper that makes HTTP requests after
// copying and modifying the request
type transport struct {
	Modifiers []RequestModifier
	Base      http.RoundTripper
}

// RoundTrip applies the modifiers to a copy of req and sends it.
func (t *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	req2 := req.Clone(req.Context())
	for _, modifier := range t.Modifiers {
		if err := modifier.ModifyRequest(req2); err != nil {
			return nil, err
		}
	}

	return t.base().RoundTrip(req2)
}

func (t *transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}
