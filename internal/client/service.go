// Package client implements an extension service on top of the api of a
// remote gateway.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/language"

	"github.com/smarthome/extgateway"
	"github.com/smarthome/extgateway/gateway/api/errcode"
	v1 "github.com/smarthome/extgateway/gateway/api/v1"
)

// Options configures the http client of a Service.
type Options struct {
	// Transport sends the requests. Defaults to http.DefaultTransport.
	Transport http.RoundTripper

	// Timeout bounds every attempt of a request. Zero means no timeout.
	Timeout time.Duration

	// Retries is the number of times a failed request is retried.
	Retries int
}

// Service is an ExtensionService proxying the extensions of a remote
// gateway. Install and uninstall return once the remote gateway has accepted
// the operation; failures are reported by the events of the remote gateway.
type Service struct {
	ub     *v1.URLBuilder
	client *http.Client
}

var _ extgateway.ExtensionService = &Service{}

// NewService returns a service for the gateway serving its api under
// baseURL, for example http://hub.local:8080/rest.
func NewService(baseURL string, opts Options) (*Service, error) {
	ub, err := v1.NewURLBuilderFromString(baseURL, false)
	if err != nil {
		return nil, fmt.Errorf("invalid gateway url %q: %w", baseURL, err)
	}

	client := retryablehttp.NewClient()
	client.HTTPClient = &http.Client{
		Transport: opts.Transport,
		Timeout:   opts.Timeout,
	}
	client.RetryMax = opts.Retries
	client.RetryWaitMin = 50 * time.Millisecond
	client.RetryWaitMax = time.Second
	client.CheckRetry = retryReads
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	client.Logger = logrus.WithField("client.url", baseURL)

	return &Service{
		ub:     ub,
		client: client.StandardClient(),
	}, nil
}

func (s *Service) Extensions(ctx context.Context, locale language.Tag) ([]extgateway.Extension, error) {
	u, err := s.ub.BuildExtensionsURL()
	if err != nil {
		return nil, err
	}

	var extensions []extgateway.Extension
	if err := s.get(ctx, u, locale, &extensions); err != nil {
		return nil, err
	}
	return extensions, nil
}

func (s *Service) Types(ctx context.Context, locale language.Tag) ([]extgateway.ExtensionType, error) {
	u, err := s.ub.BuildTypesURL()
	if err != nil {
		return nil, err
	}

	var types []extgateway.ExtensionType
	if err := s.get(ctx, u, locale, &types); err != nil {
		return nil, err
	}
	return types, nil
}

// Extension returns the details of the extension. A remote 404 with an empty
// body means the remote service has no details and yields nil, nil.
func (s *Service) Extension(ctx context.Context, id string, locale language.Tag) (*extgateway.Extension, error) {
	u, err := s.ub.BuildExtensionURL(id)
	if err != nil {
		return nil, extgateway.ErrExtensionIDInvalid{ID: id}
	}

	var extension extgateway.Extension
	if err := s.get(ctx, u, locale, &extension); err != nil {
		if errors.Is(err, errNoDetails) {
			return nil, nil
		}
		return nil, translateError(err, id)
	}
	return &extension, nil
}

func (s *Service) Install(ctx context.Context, id string) error {
	u, err := s.ub.BuildInstallURL(id)
	if err != nil {
		return extgateway.ErrExtensionIDInvalid{ID: id}
	}
	return translateError(s.post(ctx, u), id)
}

func (s *Service) Uninstall(ctx context.Context, id string) error {
	u, err := s.ub.BuildUninstallURL(id)
	if err != nil {
		return extgateway.ErrExtensionIDInvalid{ID: id}
	}
	return translateError(s.post(ctx, u), id)
}

var errNoDetails = errors.New("no extension details")

type readKey struct{}

// retryReads applies the default retry policy to requests sent by get.
// Install and uninstall are sent once.
func retryReads(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Value(readKey{}) == nil {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

func (s *Service) get(ctx context.Context, u string, locale language.Tag, v any) error {
	req, err := http.NewRequestWithContext(context.WithValue(ctx, readKey{}, true), http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", locale.String())

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound && resp.ContentLength == 0 {
		return errNoDetails
	}

	if err := HandleHTTPResponseError(resp); err != nil {
		return err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, v); err != nil {
		return &UnexpectedHTTPResponseError{
			ParseErr:   err,
			StatusCode: resp.StatusCode,
			Response:   body,
		}
	}
	return nil
}

func (s *Service) post(ctx context.Context, u string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return HandleHTTPResponseError(resp)
}

// translateError maps the gateway error codes of the extension routes back
// to their domain errors.
func translateError(err error, id string) error {
	var errs errcode.Errors
	if !errors.As(err, &errs) {
		return err
	}

	for _, e := range errs {
		coder, ok := e.(errcode.ErrorCoder)
		if !ok {
			continue
		}

		switch coder.ErrorCode() {
		case v1.ErrorCodeExtensionUnknown:
			return extgateway.ErrExtensionUnknown{ID: id}
		case v1.ErrorCodeExtensionIDInvalid:
			return extgateway.ErrExtensionIDInvalid{ID: id}
		}
	}
	return err
}
