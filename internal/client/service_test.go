package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/smarthome/extgateway"
	"github.com/smarthome/extgateway/configuration"
	"github.com/smarthome/extgateway/extension/extensiontest"
	"github.com/smarthome/extgateway/gateway/api/errcode"
	v1 "github.com/smarthome/extgateway/gateway/api/v1"
	"github.com/smarthome/extgateway/gateway/handlers"
	"github.com/smarthome/extgateway/internal/dcontext"
)

func newRemote(t *testing.T, config *configuration.Configuration, services ...extgateway.ExtensionService) string {
	t.Helper()

	if config == nil {
		config = &configuration.Configuration{}
	}

	app := handlers.NewApp(dcontext.Background(), config)
	for _, service := range services {
		app.Services().Add(service)
	}

	server := httptest.NewServer(app)
	t.Cleanup(func() {
		server.Close()
		_ = app.Shutdown(context.Background())
	})

	return server.URL + config.HTTP.Prefix
}

func TestServiceListings(t *testing.T) {
	base := newRemote(t, nil,
		extensiontest.New(
			extgateway.Extension{ID: "binding-hue", Label: "Hue", Type: "binding"},
			extgateway.Extension{ID: "ui-basic", Label: "Basic UI", Type: "ui"},
		).WithTypes(
			extgateway.ExtensionType{ID: "binding", Label: "Bindings"},
			extgateway.ExtensionType{ID: "ui", Label: "User Interfaces"},
		),
	)

	s, err := NewService(base, Options{})
	require.NoError(t, err)

	extensions, err := s.Extensions(context.Background(), language.German)
	require.NoError(t, err)
	require.Equal(t, []extgateway.Extension{
		{ID: "binding-hue", Label: "Hue", Type: "binding"},
		{ID: "ui-basic", Label: "Basic UI", Type: "ui"},
	}, extensions)

	types, err := s.Types(context.Background(), language.German)
	require.NoError(t, err)
	require.Len(t, types, 2)
}

func TestServiceExtension(t *testing.T) {
	config := &configuration.Configuration{}
	config.HTTP.Prefix = "/rest"

	base := newRemote(t, config,
		extensiontest.New(
			extgateway.Extension{ID: "binding-hue", Label: "Hue"},
			extgateway.Extension{ID: "binding-zwave", Label: "Z-Wave"},
		).WithoutDetails("binding-zwave"),
	)

	s, err := NewService(base, Options{})
	require.NoError(t, err)

	ext, err := s.Extension(context.Background(), "binding-hue", language.English)
	require.NoError(t, err)
	require.Equal(t, &extgateway.Extension{ID: "binding-hue", Label: "Hue"}, ext)

	ext, err = s.Extension(context.Background(), "binding-zwave", language.English)
	require.NoError(t, err)
	require.Nil(t, ext)

	_, err = s.Extension(context.Background(), "binding-sonos", language.English)
	require.Equal(t, extgateway.ErrExtensionUnknown{ID: "binding-sonos"}, err)

	_, err = s.Extension(context.Background(), "binding:sonos", language.English)
	require.Equal(t, extgateway.ErrExtensionIDInvalid{ID: "binding:sonos"}, err)
}

func TestServiceLifecycle(t *testing.T) {
	service := extensiontest.New(extgateway.Extension{ID: "binding-hue"})
	base := newRemote(t, nil, service)

	s, err := NewService(base, Options{})
	require.NoError(t, err)

	require.NoError(t, s.Install(context.Background(), "binding-hue"))
	require.Equal(t, extensiontest.Call{Action: "install", ID: "binding-hue"}, <-service.Done())

	require.NoError(t, s.Uninstall(context.Background(), "binding-hue"))
	require.Equal(t, extensiontest.Call{Action: "uninstall", ID: "binding-hue"}, <-service.Done())

	require.Equal(t, extgateway.ErrExtensionIDInvalid{ID: "a/b"}, s.Install(context.Background(), "a/b"))
}

func TestServiceTransportModifiers(t *testing.T) {
	var seen atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, password, _ := r.BasicAuth()
		seen.Store([]string{user, password, r.Header.Get("X-Hub"), r.Header.Get("Accept-Language")})
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("[]"))
	}))
	defer server.Close()

	transport := NewTransport(nil,
		NewHeaderRequestModifier(http.Header{"X-Hub": []string{"living-room"}}),
		NewBasicAuthRequestModifier("admin", "secret"),
	)

	s, err := NewService(server.URL, Options{Transport: transport})
	require.NoError(t, err)

	extensions, err := s.Extensions(context.Background(), language.MustParse("de-CH"))
	require.NoError(t, err)
	require.Empty(t, extensions)
	require.Equal(t, []string{"admin", "secret", "living-room", "de-CH"}, seen.Load())
}

func TestServiceErrors(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		switch r.URL.Path {
		case "/extensions":
			_ = errcode.ServeJSON(w, errcode.ErrorCodeDenied)
		case "/extensions/types":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte("{not json"))
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("maintenance"))
		}
	}))
	defer server.Close()

	s, err := NewService(server.URL, Options{Retries: 1})
	require.NoError(t, err)

	_, err = s.Extensions(context.Background(), language.English)
	var errs errcode.Errors
	require.True(t, errors.As(err, &errs))
	require.Equal(t, errcode.ErrorCodeDenied, errs[0].(errcode.ErrorCoder).ErrorCode())

	_, err = s.Types(context.Background(), language.English)
	var unexpected *UnexpectedHTTPResponseError
	require.True(t, errors.As(err, &unexpected))
	require.Equal(t, http.StatusOK, unexpected.StatusCode)

	attempts.Store(0)
	err = s.Install(context.Background(), "binding-hue")
	var ec errcode.Error
	require.True(t, errors.As(err, &ec))
	require.Equal(t, errcode.ErrorCodeUnavailable, ec.Code)
	require.Equal(t, int32(1), attempts.Load(), "install must not be retried")

	attempts.Store(0)
	_, err = s.Extension(context.Background(), "binding-hue", language.English)
	require.Error(t, err)
	require.Equal(t, int32(2), attempts.Load(), "reads are retried")

	_, err = NewService("://", Options{})
	require.Error(t, err)
}

func TestHandleHTTPResponseError(t *testing.T) {
	for _, tc := range []struct {
		status      int
		contentType string
		body        string
		check       func(t *testing.T, err error)
	}{
		{
			status: http.StatusOK,
			check:  func(t *testing.T, err error) { require.NoError(t, err) },
		},
		{
			status: http.StatusUnauthorized,
			check: func(t *testing.T, err error) {
				require.Equal(t, errcode.ErrorCodeUnauthorized, err.(errcode.Error).Code)
			},
		},
		{
			status:      http.StatusUnauthorized,
			contentType: "application/json",
			body:        `{"errors":[]}`,
			check: func(t *testing.T, err error) {
				require.Equal(t, errcode.ErrorCodeUnauthorized, err.(errcode.Error).Code)
			},
		},
		{
			status:      http.StatusForbidden,
			contentType: "text/plain",
			body:        "go away",
			check: func(t *testing.T, err error) {
				require.Equal(t, errcode.ErrorCodeDenied.WithMessage("go away"), err)
			},
		},
		{
			status:      http.StatusBadRequest,
			contentType: "application/json",
			body:        `{"errors":[]}`,
			check: func(t *testing.T, err error) {
				require.ErrorIs(t, err, ErrNoErrorsInBody)
			},
		},
		{
			status: 600,
			check: func(t *testing.T, err error) {
				require.IsType(t, &UnexpectedHTTPStatusError{}, err)
			},
		},
	} {
		resp := httptest.NewRecorder()
		if tc.contentType != "" {
			resp.Header().Set("Content-Type", tc.contentType)
		}
		resp.WriteHeader(tc.status)
		_, _ = resp.WriteString(tc.body)

		tc.check(t, HandleHTTPResponseError(resp.Result()))
	}
}

func TestServiceTranslatesBareErrorCodes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_ = errcode.ServeJSON(w, v1.ErrorCodeExtensionUnknown)
		default:
			_ = errcode.ServeJSON(w, v1.ErrorCodeExtensionIDInvalid)
		}
	}))
	defer server.Close()

	s, err := NewService(server.URL, Options{})
	require.NoError(t, err)

	ext, err := s.Extension(context.Background(), "binding-hue", language.English)
	require.Nil(t, ext)
	require.Equal(t, extgateway.ErrExtensionUnknown{ID: "binding-hue"}, err)

	err = s.Install(context.Background(), "binding-hue")
	require.Equal(t, extgateway.ErrExtensionIDInvalid{ID: "binding-hue"}, err)
}
