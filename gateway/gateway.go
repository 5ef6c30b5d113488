// Package gateway assembles the extension gateway server: the api
// application wrapped in its health, logging and recovery handlers, plus the
// debug listener.
package gateway

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	logrus_bugsnag "github.com/Shopify/logrus-bugsnag"
	logstash "github.com/bshuster-repo/logrus-logstash-hook"
	"github.com/bugsnag/bugsnag-go"
	gorhandlers "github.com/gorilla/handlers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/yvasiyarov/gorelic"

	"github.com/smarthome/extgateway/configuration"
	"github.com/smarthome/extgateway/gateway/handlers"
	"github.com/smarthome/extgateway/health"
	"github.com/smarthome/extgateway/internal/dcontext"
	"github.com/smarthome/extgateway/version"

	_ "github.com/smarthome/extgateway/auth/htpasswd"
	_ "github.com/smarthome/extgateway/extension/catalog"
	_ "github.com/smarthome/extgateway/extension/remote"
)

// defaultDrainTimeout bounds the graceful shutdown when the configuration
// does not set one.
const defaultDrainTimeout = 30 * time.Second

// quit receives the signals that stop the gateway.
var quit = make(chan os.Signal, 1)

// A Gateway represents a complete instance of the extension gateway.
type Gateway struct {
	config      *configuration.Configuration
	app         *handlers.App
	server      *http.Server
	debugServer *http.Server
	ln          net.Listener
	debugLn     net.Listener
}

// NewGateway creates a new gateway from a context and configuration struct.
func NewGateway(ctx context.Context, config *configuration.Configuration) (*Gateway, error) {
	ctx = dcontext.WithVersion(ctx, version.Version())

	var err error
	ctx, err = configureLogging(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("error configuring logger: %w", err)
	}

	app := handlers.NewApp(ctx, config)

	status := health.NewRegistry()
	gate := health.NewRegistry()
	app.RegisterHealthChecks(status, gate)

	handler, err := configureReporting(app)
	if err != nil {
		return nil, fmt.Errorf("error configuring reporting: %w", err)
	}
	handler = alive("/", handler)
	handler = gate.Handler(handler)
	handler = panicHandler(handler)
	if !config.Log.AccessLog.Disabled {
		handler = gorhandlers.CombinedLoggingHandler(os.Stdout, handler)
	}

	ln, err := net.Listen("tcp", config.HTTP.Addr)
	if err != nil {
		return nil, err
	}
	dcontext.GetLogger(app).Infof("listening on %v", ln.Addr())

	gw := &Gateway{
		config: config,
		app:    app,
		server: &http.Server{Handler: handler},
		ln:     ln,
	}

	if config.HTTP.Debug.Addr != "" {
		gw.debugLn, err = net.Listen("tcp", config.HTTP.Debug.Addr)
		if err != nil {
			ln.Close()
			return nil, fmt.Errorf("error listening on debug interface: %w", err)
		}
		gw.debugServer = &http.Server{Handler: debugHandler(config, status)}
		dcontext.GetLogger(app).Infof("debug server listening %v", gw.debugLn.Addr())
	}

	return gw, nil
}

// Addr returns the address of the api listener.
func (gw *Gateway) Addr() net.Addr {
	return gw.ln.Addr()
}

// DebugAddr returns the address of the debug listener, nil when the debug
// server is disabled.
func (gw *Gateway) DebugAddr() net.Addr {
	if gw.debugLn == nil {
		return nil
	}
	return gw.debugLn.Addr()
}

// ListenAndServe runs the gateway's HTTP server(s) until one of them fails
// or the process receives SIGINT or SIGTERM. On a signal it drains in-flight
// requests and the queued lifecycle operations before returning.
func (gw *Gateway) ListenAndServe() error {
	config := gw.config

	serveErr := make(chan error, 2)
	go func() {
		serveErr <- gw.server.Serve(gw.ln)
	}()

	if gw.debugServer != nil {
		go func() {
			serveErr <- gw.debugServer.Serve(gw.debugLn)
		}()
	}

	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-serveErr:
		return err
	case <-quit:
		drainTimeout := config.HTTP.DrainTimeout
		if drainTimeout == 0 {
			drainTimeout = defaultDrainTimeout
		}

		ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		defer cancel()

		dcontext.GetLogger(gw.app).Infof("stopping server gracefully, draining connections for %s", drainTimeout)

		var errs []error
		if err := gw.server.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		if gw.debugServer != nil {
			if err := gw.debugServer.Shutdown(ctx); err != nil {
				errs = append(errs, err)
			}
		}
		if err := gw.app.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}

		return errors.Join(errs...)
	}
}

// configureReporting wraps the app in the configured error reporters.
func configureReporting(app *handlers.App) (http.Handler, error) {
	var handler http.Handler = app

	if app.Config.Reporting.Bugsnag.APIKey != "" {
		bugsnagConfig := bugsnag.Configuration{
			APIKey:     app.Config.Reporting.Bugsnag.APIKey,
			AppVersion: version.Version(),
		}
		if app.Config.Reporting.Bugsnag.ReleaseStage != "" {
			bugsnagConfig.ReleaseStage = app.Config.Reporting.Bugsnag.ReleaseStage
		}
		if app.Config.Reporting.Bugsnag.Endpoint != "" {
			bugsnagConfig.Endpoint = app.Config.Reporting.Bugsnag.Endpoint
		}
		bugsnag.Configure(bugsnagConfig)

		// report errors logged by the gateway as well
		hook, err := logrus_bugsnag.NewBugsnagHook()
		if err != nil {
			return nil, err
		}
		logrus.AddHook(hook)

		handler = bugsnag.Handler(handler)
	}

	if app.Config.Reporting.NewRelic.LicenseKey != "" {
		agent := gorelic.NewAgent()
		agent.NewrelicLicense = app.Config.Reporting.NewRelic.LicenseKey
		if app.Config.Reporting.NewRelic.Name != "" {
			agent.NewrelicName = app.Config.Reporting.NewRelic.Name
		}
		agent.CollectHTTPStat = true
		agent.Verbose = app.Config.Reporting.NewRelic.Verbose
		if err := agent.Run(); err != nil {
			return nil, err
		}

		handler = agent.WrapHTTPHandler(handler)
	}

	return handler, nil
}

// debugHandler serves the health status of every check, expvar and, when
// enabled, the prometheus metrics.
func debugHandler(config *configuration.Configuration, status *health.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/health", status.StatusHandler)
	mux.Handle("/debug/vars", expvar.Handler())

	if config.HTTP.Debug.Prometheus.Enabled {
		path := config.HTTP.Debug.Prometheus.Path
		if path == "" {
			path = "/metrics"
		}
		logrus.Info("providing prometheus metrics on ", path)
		mux.Handle(path, promhttp.InstrumentMetricHandler(
			prometheus.DefaultRegisterer,
			promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{}),
		))
	}

	return mux
}

// configureLogging prepares the context with a logger using the
// configuration.
func configureLogging(ctx context.Context, config *configuration.Configuration) (context.Context, error) {
	logrus.SetLevel(logLevel(config.Log.Level))

	formatter := config.Log.Formatter
	if formatter == "" {
		formatter = "text" // default formatter
	}

	switch formatter {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat:   time.RFC3339Nano,
			DisableHTMLEscape: true,
		})
	case "text":
		logrus.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339Nano,
		})
	case "logstash":
		logrus.SetFormatter(&logstash.LogstashFormatter{
			Formatter: &logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano},
		})
	default:
		return ctx, fmt.Errorf("unsupported logging formatter: %q", config.Log.Formatter)
	}

	logrus.Debugf("using %q logging formatter", formatter)

	if len(config.Log.Fields) > 0 {
		// build up the static fields, if present.
		var fields []any
		for k := range config.Log.Fields {
			fields = append(fields, k)
		}

		ctx = dcontext.WithValues(ctx, config.Log.Fields)
		ctx = dcontext.WithLogger(ctx, dcontext.GetLogger(ctx, fields...))
	}

	return ctx, nil
}

func logLevel(level configuration.Loglevel) logrus.Level {
	if level == "" {
		return logrus.InfoLevel
	}

	l, err := logrus.ParseLevel(string(level))
	if err != nil {
		l = logrus.InfoLevel
		logrus.Warnf("error parsing level %q: %v, using %q", level, err, l)
	}

	return l
}

// panicHandler recovers panics of the wrapped handler and answers 500.
func panicHandler(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				if err == http.ErrAbortHandler {
					panic(err)
				}
				dcontext.GetLogger(r.Context()).Errorf("panic serving %s %s: %v", r.Method, r.URL.Path, err)
				w.WriteHeader(http.StatusInternalServerError)
			}
		}()
		handler.ServeHTTP(w, r)
	})
}

// alive simply wraps the handler with a route that always returns an http 200
// response when the path is matched. If the path is not matched, the request
// is passed to the provided handler. There is no guarantee of anything but
// that the server is up.
func alive(path string, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == path {
			w.Header().Set("Cache-Control", "no-cache")
			w.WriteHeader(http.StatusOK)
			return
		}

		handler.ServeHTTP(w, r)
	})
}
