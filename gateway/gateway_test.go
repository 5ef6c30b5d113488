package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/smarthome/extgateway"
	"github.com/smarthome/extgateway/configuration"
	"github.com/smarthome/extgateway/extension/extensiontest"
	"github.com/smarthome/extgateway/internal/dcontext"
	"github.com/smarthome/extgateway/version"
)

func testConfig() *configuration.Configuration {
	config := &configuration.Configuration{}
	config.HTTP.Addr = "127.0.0.1:0"
	config.HTTP.DrainTimeout = 10 * time.Second
	config.Log.AccessLog.Disabled = true
	return config
}

func newTestGateway(t *testing.T, config *configuration.Configuration) *Gateway {
	t.Helper()

	gw, err := NewGateway(context.Background(), config)
	require.NoError(t, err)

	t.Cleanup(func() {
		gw.ln.Close()
		if gw.debugLn != nil {
			gw.debugLn.Close()
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = gw.app.Shutdown(ctx)
	})

	return gw
}

func TestGracefulShutdown(t *testing.T) {
	gw, err := NewGateway(context.Background(), testConfig())
	require.NoError(t, err)

	service := extensiontest.New(extgateway.Extension{ID: "binding-hue"})
	gw.app.Services().Add(service)

	errchan := make(chan error, 1)
	go func() {
		errchan <- gw.ListenAndServe()
	}()

	base := fmt.Sprintf("http://%s", gw.Addr())

	resp, err := http.Get(base + "/extensions")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// send an incomplete request
	conn, err := net.Dial("tcp", gw.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	fmt.Fprintf(conn, "POST /extensions/binding-hue/install ")

	// give the server a moment to read the partial request line
	time.Sleep(100 * time.Millisecond)

	quit <- os.Interrupt

	// make sure the earlier request is not disconnected and completes
	fmt.Fprintf(conn, "HTTP/1.1\r\nHost: 127.0.0.1\r\nContent-Length: 0\r\n\r\n")

	select {
	case err := <-errchan:
		require.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("gateway did not stop")
	}

	_, err = net.Dial("tcp", gw.Addr().String())
	require.Error(t, err, "managed to connect after stopping")

	require.Equal(t, []extensiontest.Call{{Action: "install", ID: "binding-hue"}}, service.Calls())
}

func TestServeError(t *testing.T) {
	gw, err := NewGateway(context.Background(), testConfig())
	require.NoError(t, err)
	defer gw.app.Shutdown(context.Background())

	gw.ln.Close()
	require.Error(t, gw.ListenAndServe())
}

func TestAlive(t *testing.T) {
	gw := newTestGateway(t, testConfig())

	w := httptest.NewRecorder()
	gw.server.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "no-cache", w.Header().Get("Cache-Control"))
	require.Empty(t, w.Body.Bytes())
}

func TestHealthGate(t *testing.T) {
	down := filepath.Join(t.TempDir(), "down")
	require.NoError(t, os.WriteFile(down, nil, 0o600))

	config := testConfig()
	config.HTTP.Debug.Addr = "127.0.0.1:0"
	config.Health.FileCheckers = []configuration.FileChecker{
		{File: down, Interval: 10 * time.Millisecond},
	}
	config.Health.Extensions.Enabled = true
	config.Health.Extensions.Interval = 10 * time.Millisecond

	gw := newTestGateway(t, config)
	gw.app.Services().Add(extensiontest.New())

	get := func(h http.Handler, path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w
	}

	require.Eventually(t, func() bool {
		return get(gw.server.Handler, "/extensions").Code == http.StatusServiceUnavailable
	}, 5*time.Second, 10*time.Millisecond)

	w := get(gw.debugServer.Handler, "/debug/health")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var checks map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &checks))
	require.Contains(t, checks, down)

	require.NoError(t, os.Remove(down))
	require.Eventually(t, func() bool {
		return get(gw.server.Handler, "/extensions").Code == http.StatusOK &&
			get(gw.debugServer.Handler, "/debug/health").Code == http.StatusOK
	}, 5*time.Second, 10*time.Millisecond)
}

func TestReadinessDoesNotGateRoutes(t *testing.T) {
	config := testConfig()
	config.HTTP.Debug.Addr = "127.0.0.1:0"
	config.Health.Extensions.Enabled = true
	config.Health.Extensions.Interval = 10 * time.Millisecond

	gw := newTestGateway(t, config)

	require.Eventually(t, func() bool {
		w := httptest.NewRecorder()
		gw.debugServer.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/debug/health", nil))
		return w.Code == http.StatusServiceUnavailable
	}, 5*time.Second, 10*time.Millisecond)

	w := httptest.NewRecorder()
	gw.server.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/extensions", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "[]\n", w.Body.String())
}

func TestDebugServer(t *testing.T) {
	config := testConfig()
	config.HTTP.Debug.Addr = "127.0.0.1:0"
	config.HTTP.Debug.Prometheus.Enabled = true

	gw := newTestGateway(t, config)
	require.NotNil(t, gw.DebugAddr())

	for _, path := range []string{"/debug/vars", "/debug/health"} {
		w := httptest.NewRecorder()
		gw.debugServer.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, w.Code, path)
	}

	w := httptest.NewRecorder()
	gw.debugServer.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Contains(t, w.Body.String(), "extgateway_extensions_services")

	require.Nil(t, newTestGateway(t, testConfig()).DebugAddr())
}

func TestPanicHandler(t *testing.T) {
	handler := panicHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/extensions", nil))
	require.Equal(t, http.StatusInternalServerError, w.Code)

	aborting := panicHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	require.PanicsWithValue(t, http.ErrAbortHandler, func() {
		aborting.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestConfigureLogging(t *testing.T) {
	defer logrus.SetFormatter(&logrus.TextFormatter{})
	defer logrus.SetLevel(logrus.InfoLevel)

	config := testConfig()
	config.Log.Formatter = "json"
	config.Log.Level = "debug"
	config.Log.Fields = map[string]any{"environment": "test"}

	ctx, err := configureLogging(dcontext.Background(), config)
	require.NoError(t, err)
	require.Equal(t, "test", ctx.Value("environment"))

	config.Log.Formatter = "logstash"
	_, err = configureLogging(dcontext.Background(), config)
	require.NoError(t, err)

	config.Log.Formatter = "xml"
	_, err = configureLogging(dcontext.Background(), config)
	require.EqualError(t, err, `unsupported logging formatter: "xml"`)

	_, err = NewGateway(context.Background(), config)
	require.Error(t, err)
}

func TestResolveConfiguration(t *testing.T) {
	_, err := resolveConfiguration(nil)
	require.EqualError(t, err, "configuration path unspecified")

	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("version: 0.1\nhttp:\n  prefix: /rest\n"), 0o600))

	config, err := resolveConfiguration([]string{path})
	require.NoError(t, err)
	require.Equal(t, "/rest", config.HTTP.Prefix)

	t.Setenv("EXTGATEWAY_CONFIGURATION_PATH", path)
	config, err = resolveConfiguration(nil)
	require.NoError(t, err)
	require.Equal(t, "/rest", config.HTTP.Prefix)

	require.NoError(t, os.WriteFile(path, []byte("version: 9.9\n"), 0o600))
	_, err = resolveConfiguration([]string{path})
	require.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	RootCmd.SetOut(&buf)
	RootCmd.SetArgs([]string{"version"})
	defer RootCmd.SetArgs(nil)

	require.NoError(t, RootCmd.Execute())

	out, err := io.ReadAll(&buf)
	require.NoError(t, err)
	require.Contains(t, string(out), version.Package())
}

func TestConfigureReportingDisabled(t *testing.T) {
	gw := newTestGateway(t, testConfig())

	handler, err := configureReporting(gw.app)
	require.NoError(t, err)
	require.True(t, handler == http.Handler(gw.app))
}
