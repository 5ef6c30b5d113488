package handlers

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	events "github.com/docker/go-events"
	"github.com/gomodule/redigo/redis"
	"github.com/gorilla/mux"
	"golang.org/x/text/language"

	"github.com/smarthome/extgateway/auth"
	"github.com/smarthome/extgateway/configuration"
	"github.com/smarthome/extgateway/extension"
	"github.com/smarthome/extgateway/extension/factory"
	"github.com/smarthome/extgateway/gateway/api/errcode"
	v1 "github.com/smarthome/extgateway/gateway/api/v1"
	"github.com/smarthome/extgateway/health"
	"github.com/smarthome/extgateway/health/checks"
	"github.com/smarthome/extgateway/internal/dcontext"
	"github.com/smarthome/extgateway/internal/locale"
	"github.com/smarthome/extgateway/internal/uuid"
	"github.com/smarthome/extgateway/notifications"
)

// defaultCheckInterval is the default time in between health checks
const defaultCheckInterval = 10 * time.Second

// App is a global gateway application object. Shared resources can be placed
// on this object that will be accessible from all requests. Any writable
// fields should be protected.
type App struct {
	context.Context

	Config *configuration.Configuration

	// InstanceID is a unique id assigned to the application on each creation.
	// Provides information in the logs and context to identify restarts.
	InstanceID string

	router           *mux.Router           // main application router, configured with dispatchers
	services         *extension.Services   // registered extension services
	executor         *extension.Executor   // runs install and uninstall operations
	lifecycle        *extension.Lifecycle  // dispatches lifecycle operations to services
	resolver         *locale.Resolver      // maps Accept-Language to a locale
	accessController auth.AccessController // main access controller for application

	// events contains notification related configuration.
	events struct {
		sink     events.Sink
		source   notifications.SourceRecord
		listener notifications.Listener
	}

	redis *redis.Pool

	// cancel stops the periodic health checks.
	cancel context.CancelFunc
}

// Value intercepts calls context.Context.Value, returning the current app id,
// if requested.
func (app *App) Value(key any) any {
	switch key {
	case "app.id":
		return app.InstanceID
	}

	return app.Context.Value(key)
}

// NewApp takes a configuration and returns a configured app, ready to serve
// requests. The app only implements ServeHTTP and can be wrapped in other
// handlers accordingly.
func NewApp(ctx context.Context, config *configuration.Configuration) *App {
	app := &App{
		Config:     config,
		Context:    ctx,
		InstanceID: uuid.NewString(),
		router:     v1.RouterWithPrefix(config.HTTP.Prefix),
	}

	app.Context, app.cancel = context.WithCancel(app.Context)
	app.Context = dcontext.WithLogger(app.Context, dcontext.GetLogger(app, "app.id"))

	// Register the handler dispatchers.
	app.register(v1.RouteNameExtensions, extensionsDispatcher)
	app.register(v1.RouteNameTypes, typesDispatcher)
	app.register(v1.RouteNameExtension, extensionDispatcher)
	app.register(v1.RouteNameInstall, installDispatcher)
	app.register(v1.RouteNameUninstall, uninstallDispatcher)

	defaultLocale := language.English
	if config.Locale.Default != "" {
		tag, err := language.Parse(config.Locale.Default)
		if err != nil {
			panic(fmt.Sprintf("invalid default locale %q: %v", config.Locale.Default, err))
		}
		defaultLocale = tag
	}
	app.resolver = locale.NewResolver(defaultLocale)
	app.services = extension.NewServices(app.resolver.Default())

	app.configureRedis(config)
	app.configureEvents(config)

	app.executor = extension.NewExecutor(config.Executor.Workers)
	app.lifecycle = extension.NewLifecycle(app.services, app.executor, app.events.listener)

	authType := config.Auth.Type()
	if authType != "" {
		accessController, err := auth.GetAccessController(authType, config.Auth.Parameters())
		if err != nil {
			panic(fmt.Sprintf("unable to configure authorization (%s): %v", authType, err))
		}
		app.accessController = accessController
		dcontext.GetLogger(app).Debugf("configured %q access controller", authType)
	}

	for _, name := range config.Extensions.Names() {
		service, err := factory.Create(app, name, config.Extensions[name], app.events.listener)
		if err != nil {
			panic(fmt.Sprintf("unable to configure extension service (%s): %v", name, err))
		}
		app.services.Add(service)
		dcontext.GetLogger(app).Infof("registered extension service %q", name)
	}

	return app
}

// Services returns the registry of extension services. Services may be added
// and removed while the app is serving.
func (app *App) Services() *extension.Services {
	return app.services
}

// RegisterHealthChecks registers the configured health checks. Every check
// is reported by status. Checks other than the extensions readiness check
// are also registered with gate, which takes the gateway out of rotation
// while they fail; the extension routes stay served without any service.
func (app *App) RegisterHealthChecks(status, gate *health.Registry) {
	both := func(name string, check health.Checker) {
		status.Register(name, check)
		gate.Register(name, check)
	}

	if app.Config.Health.Extensions.Enabled {
		interval := app.Config.Health.Extensions.Interval
		if interval == 0 {
			interval = defaultCheckInterval
		}

		status.RegisterPeriodicThresholdFunc(app, "extensions", checks.ExtensionsChecker(app.services).Check, interval, app.Config.Health.Extensions.Threshold)
	}

	if app.Config.Health.Redis.Enabled {
		if app.redis == nil {
			panic("redis configuration required to use for redis health check")
		}

		interval := app.Config.Health.Redis.Interval
		if interval == 0 {
			interval = defaultCheckInterval
		}

		u := health.NewThresholdStatusUpdater(app.Config.Health.Redis.Threshold)
		go health.Poll(app, u, health.CheckFunc(app.pingRedis), interval)
		both("redis", u)
	}

	for _, fileChecker := range app.Config.Health.FileCheckers {
		interval := fileChecker.Interval
		if interval == 0 {
			interval = defaultCheckInterval
		}
		dcontext.GetLogger(app).Infof("configuring file health check path=%s, interval=%d", fileChecker.File, interval/time.Second)

		u := health.NewThresholdStatusUpdater(fileChecker.Threshold)
		go health.Poll(app, u, checks.FileChecker(fileChecker.File), interval)
		both(fileChecker.File, u)
	}

	for _, httpChecker := range app.Config.Health.HTTPCheckers {
		interval := httpChecker.Interval
		if interval == 0 {
			interval = defaultCheckInterval
		}

		statusCode := httpChecker.StatusCode
		if statusCode == 0 {
			statusCode = 200
		}

		checker := checks.HTTPChecker(httpChecker.URI, statusCode, httpChecker.Timeout, httpChecker.Headers)

		dcontext.GetLogger(app).Infof("configuring HTTP health check uri=%s, interval=%d, threshold=%d", httpChecker.URI, interval/time.Second, httpChecker.Threshold)

		u := health.NewThresholdStatusUpdater(httpChecker.Threshold)
		go health.Poll(app, u, checker, interval)
		both(httpChecker.URI, u)
	}
}

// register a handler with the application, by route name. The handler will be
// passed through the application filters and context will be constructed at
// request time.
func (app *App) register(routeName string, dispatch dispatchFunc) {
	app.router.GetRoute(routeName).Handler(app.dispatcher(dispatch))
}

// configureEvents prepares the event sink for action.
func (app *App) configureEvents(config *configuration.Configuration) {
	// Configure all of the endpoint sinks.
	var sinks []events.Sink
	for _, endpoint := range config.Notifications.Endpoints {
		if endpoint.Disabled {
			dcontext.GetLogger(app).Infof("endpoint %s disabled, skipping", endpoint.Name)
			continue
		}

		dcontext.GetLogger(app).Infof("configuring endpoint %v (%v), timeout=%s, headers=%v", endpoint.Name, endpoint.URL, endpoint.Timeout, endpoint.Headers)
		endpoint := notifications.NewEndpoint(endpoint.Name, endpoint.URL, notifications.EndpointConfig{
			Timeout:       endpoint.Timeout,
			Threshold:     endpoint.Threshold,
			Backoff:       endpoint.Backoff,
			Headers:       endpoint.Headers,
			IgnoredEvents: endpoint.IgnoredEvents,
		})

		sinks = append(sinks, endpoint)
	}

	if app.redis != nil {
		channel := config.Notifications.Redis.Channel
		if channel == "" {
			channel = notifications.TopicPrefix
		}
		dcontext.GetLogger(app).Infof("publishing events to redis channel %q", channel)
		sinks = append(sinks, notifications.NewRedisSink(app.redis, channel))
	}

	if len(sinks) > 0 {
		app.events.sink = events.NewBroadcaster(sinks...)
	}

	// Populate gateway event source
	hostname := config.Notifications.EventConfig.Source
	if hostname == "" {
		var err error
		hostname, err = os.Hostname()
		if err != nil {
			hostname = config.HTTP.Addr
		} else {
			// try to pick the port off the config
			_, port, err := net.SplitHostPort(config.HTTP.Addr)
			if err == nil {
				hostname = net.JoinHostPort(hostname, port)
			}
		}
	}

	app.events.source = notifications.SourceRecord{
		Addr:       hostname,
		InstanceID: app.InstanceID,
	}

	app.events.listener = notifications.NewBridge(app.events.source, app.events.sink)
}

// configureRedis creates the connection pool of the redis publisher.
func (app *App) configureRedis(config *configuration.Configuration) {
	if config.Notifications.Redis.Addr == "" {
		dcontext.GetLogger(app).Infof("redis not configured")
		return
	}

	redisConfig := config.Notifications.Redis

	pool := &redis.Pool{
		Dial: func() (redis.Conn, error) {
			startedAt := time.Now()

			conn, err := redis.Dial("tcp",
				redisConfig.Addr,
				redis.DialConnectTimeout(redisConfig.DialTimeout),
				redis.DialReadTimeout(redisConfig.ReadTimeout),
				redis.DialWriteTimeout(redisConfig.WriteTimeout),
				redis.DialPassword(redisConfig.Password),
				redis.DialDatabase(redisConfig.DB))

			logger := dcontext.GetLoggerWithField(app, "redis.connect.duration", time.Since(startedAt))
			if err != nil {
				logger.Errorf("redis: error connecting to %s: %v", redisConfig.Addr, err)
				return nil, err
			}

			logger.Infof("redis: connect %v", redisConfig.Addr)
			return conn, nil
		},
		MaxIdle:     redisConfig.Pool.MaxIdle,
		MaxActive:   redisConfig.Pool.MaxActive,
		IdleTimeout: redisConfig.Pool.IdleTimeout,
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			_, err := c.Do("PING")
			return err
		},
		Wait: false, // if a connection is not available, fail the publish.
	}

	app.redis = pool

	// setup expvar
	gateway := expvar.Get("extgateway")
	if gateway == nil {
		gateway = expvar.NewMap("extgateway")
	}

	gateway.(*expvar.Map).Set("redis", expvar.Func(func() any {
		return map[string]any{
			"Addr":    redisConfig.Addr,
			"Channel": redisConfig.Channel,
			"Active":  app.redis.ActiveCount(),
		}
	}))
}

func (app *App) pingRedis(ctx context.Context) error {
	conn, err := app.redis.GetContext(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	_, err = conn.Do("PING")
	return err
}

// Shutdown stops accepting lifecycle operations, waits for the queued ones
// to finish and closes the event sink. Events of operations still running
// when ctx is done may be lost.
func (app *App) Shutdown(ctx context.Context) error {
	defer app.cancel()

	done := make(chan error, 1)
	go func() {
		done <- app.executor.Close()
	}()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, extension.ErrExecutorClosed) {
			return err
		}
	case <-ctx.Done():
		return fmt.Errorf("waiting for lifecycle operations: %w", ctx.Err())
	}

	if app.events.sink != nil {
		if err := app.events.sink.Close(); err != nil {
			return fmt.Errorf("closing event sink: %w", err)
		}
	}

	return nil
}

func (app *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close() // ensure that request body is always closed.

	// Prepare the context with our own little decorations.
	ctx := r.Context()
	ctx = dcontext.WithLogger(ctx, dcontext.GetLogger(app))
	ctx = dcontext.WithRequest(ctx, r)
	ctx = dcontext.WithLogger(ctx, dcontext.GetRequestLogger(ctx))
	r = r.WithContext(ctx)

	// Set any configured headers on all responses.
	for headerName, headerValues := range app.Config.HTTP.Headers {
		for _, value := range headerValues {
			w.Header().Add(headerName, value)
		}
	}

	app.router.ServeHTTP(w, r)
}

// dispatchFunc takes a context and request and returns a constructed handler
// for the route. The dispatcher will use this to dynamically create request
// specific handlers for each endpoint without creating a new router for each
// request.
type dispatchFunc func(ctx *Context, r *http.Request) http.Handler

// singleStatusResponseWriter only allows the first status to be written to be
// the valid request status.
type singleStatusResponseWriter struct {
	http.ResponseWriter
	status int
}

func (ssrw *singleStatusResponseWriter) WriteHeader(status int) {
	if ssrw.status != 0 {
		return
	}
	ssrw.status = status
	ssrw.ResponseWriter.WriteHeader(status)
}

func (ssrw *singleStatusResponseWriter) Write(p []byte) (int, error) {
	if ssrw.status == 0 {
		ssrw.status = http.StatusOK
	}
	return ssrw.ResponseWriter.Write(p)
}

// dispatcher returns a handler that constructs a request specific context and
// handler, using the dispatch factory function.
func (app *App) dispatcher(dispatch dispatchFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		context := app.context(w, r)

		defer func() {
			dcontext.GetLogger(context).Debugf("response completed")
		}()

		if err := app.authorized(w, r, context); err != nil {
			dcontext.GetLogger(context).Warnf("error authorizing context: %v", err)
			return
		}

		handler := dispatch(context, r)

		ssrw := &singleStatusResponseWriter{ResponseWriter: w}
		handler.ServeHTTP(ssrw, r)

		// Automated error response handling here. Handlers may return their
		// own errors if they need different behavior.
		if context.Errors.Len() > 0 {
			if ssrw.status == 0 {
				_ = errcode.ServeJSON(w, context.Errors)
			}
			app.logError(context, context.Errors)
		}
	})
}

func (app *App) logError(ctx context.Context, errors errcode.Errors) {
	for _, e1 := range errors {
		var c context.Context

		switch e := e1.(type) {
		case errcode.Error:
			c = context.WithValue(ctx, errCodeKey{}, e.Code)
			c = context.WithValue(c, errMessageKey{}, e.Message)
			c = context.WithValue(c, errDetailKey{}, e.Detail)
		case errcode.ErrorCode:
			c = context.WithValue(ctx, errCodeKey{}, e)
			c = context.WithValue(c, errMessageKey{}, e.Message())
		default:
			// just normal go 'error'
			c = context.WithValue(ctx, errCodeKey{}, errcode.ErrorCodeUnknown)
			c = context.WithValue(c, errMessageKey{}, e.Error())
		}

		c = dcontext.WithLogger(c, dcontext.GetLogger(c,
			errCodeKey{},
			errMessageKey{},
			errDetailKey{}))
		dcontext.GetLogger(c).Errorf("response completed with error")
	}
}

// context constructs the context object for the application. This only be
// called once per request.
func (app *App) context(w http.ResponseWriter, r *http.Request) *Context {
	ctx := r.Context()
	ctx = dcontext.WithVars(ctx, r)
	ctx = dcontext.WithLogger(ctx, dcontext.GetLogger(ctx, "vars.id"))

	tag := app.resolver.Resolve(r.Header.Get("Accept-Language"))

	return &Context{
		App:        app,
		Context:    ctx,
		locale:     tag,
		urlBuilder: v1.NewURLBuilderFromRequest(r, app.Config.HTTP.Prefix, true),
	}
}

// authorized checks if the request can proceed with the requested access.
// If it succeeds, the context carries the authorized user. An error will be
// returned if access is not available.
func (app *App) authorized(w http.ResponseWriter, r *http.Request, context *Context) error {
	if app.accessController == nil {
		return nil // access controller is not enabled.
	}

	dcontext.GetLogger(context).Debug("authorizing request")

	accessRecords := appendAccessRecords(nil, r, getExtensionID(context))

	ctx, err := app.accessController.Authorized(context.Context, accessRecords...)
	if err != nil {
		switch err := err.(type) {
		case auth.Challenge:
			// Add the appropriate WWW-Auth header
			err.SetHeaders(r, w)

			if err := errcode.ServeJSON(w, errcode.ErrorCodeUnauthorized.WithDetail(accessRecords)); err != nil {
				dcontext.GetLogger(context).Errorf("error serving error json: %v (from %v)", err, context.Errors)
			}
		default:
			if errors.Is(err, auth.ErrForbidden) {
				if err := errcode.ServeJSON(w, errcode.ErrorCodeDenied.WithDetail(accessRecords)); err != nil {
					dcontext.GetLogger(context).Errorf("error serving error json: %v (from %v)", err, context.Errors)
				}
				return err
			}

			// This condition is a potential security problem either in
			// the configuration or whatever is backing the access
			// controller. Just return a bad request with no information
			// to avoid exposure. The request should not proceed.
			dcontext.GetLogger(context).Errorf("error checking authorization: %v", err)
			w.WriteHeader(http.StatusBadRequest)
		}

		return err
	}

	dcontext.GetLogger(ctx, auth.UserNameKey).Info("authorized request")
	context.Context = ctx

	return nil
}

// appendAccessRecords adds the access record of the route matched by r.
func appendAccessRecords(records []auth.Access, r *http.Request, id string) []auth.Access {
	resource := auth.Resource{
		Type: "extension",
		Name: id,
	}

	var action string
	if route := mux.CurrentRoute(r); route != nil {
		switch route.GetName() {
		case v1.RouteNameExtensions, v1.RouteNameTypes:
			action = "list"
		case v1.RouteNameExtension:
			action = "read"
		case v1.RouteNameInstall:
			action = "install"
		case v1.RouteNameUninstall:
			action = "uninstall"
		}
	}

	return append(records, auth.Access{
		Resource: resource,
		Action:   action,
	})
}
