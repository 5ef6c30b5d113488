package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/smarthome/extgateway/gateway/api/errcode"
)

// ErrNoErrorsInBody is returned for an error response whose JSON envelope
// lists no errors.
var ErrNoErrorsInBody = errors.New("no error details found in HTTP response body")

// UnexpectedHTTPStatusError is returned for a status outside 200-599.
type UnexpectedHTTPStatusError struct {
	Status string
}

func (e *UnexpectedHTTPStatusError) Error() string {
	return fmt.Sprintf("received unexpected HTTP status: %s", e.Status)
}

// UnexpectedHTTPResponseError is returned when a response body cannot be
// decoded.
type UnexpectedHTTPResponseError struct {
	ParseErr   error
	StatusCode int
	Response   []byte
}

func (e *UnexpectedHTTPResponseError) Error() string {
	return fmt.Sprintf("error parsing HTTP %d response body: %v: %q", e.StatusCode, e.ParseErr, e.Response)
}

func (e *UnexpectedHTTPResponseError) Unwrap() error {
	return e.ParseErr
}

// HandleHTTPResponseError returns nil for statuses 200-399. For 400-599 it
// returns the errcode.Errors of a JSON body, or an errcode.Error derived from
// the status when the body carries none.
func HandleHTTPResponseError(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 400:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 600:
	default:
		return &UnexpectedHTTPStatusError{Status: resp.Status}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if !isJSON(resp.Header) || len(body) == 0 {
		return statusError(resp.StatusCode, string(body))
	}

	var errs errcode.Errors
	err = json.Unmarshal(body, &errs)
	if err == nil && len(errs) > 0 {
		return errs
	}
	if err == nil {
		err = ErrNoErrorsInBody
	}

	// challenges may come with any body
	if resp.StatusCode == http.StatusUnauthorized {
		return errcode.ErrorCodeUnauthorized.WithDetail(body)
	}
	return &UnexpectedHTTPResponseError{
		ParseErr:   err,
		StatusCode: resp.StatusCode,
		Response:   body,
	}
}

func isJSON(header http.Header) bool {
	mediatype, _, err := mime.ParseMediaType(header.Get("Content-Type"))
	return err == nil && mediatype == "application/json"
}

func statusError(status int, message string) error {
	code := errcode.ErrorCodeUnknown
	switch status {
	case http.StatusUnauthorized:
		code = errcode.ErrorCodeUnauthorized
	case http.StatusForbidden:
		code = errcode.ErrorCodeDenied
	case http.StatusServiceUnavailable:
		code = errcode.ErrorCodeUnavailable
	}
	return code.WithMessage(message)
}
