package configuration

import (
	"fmt"
	"io"
	"net/http"
	"reflect"
	"sort"
	"strings"
	"time"
)

// Configuration is a versioned gateway configuration, intended to be
// provided by a yaml file, and optionally modified by environment variables.
//
// Note that yaml field names should never include _ characters, since this is
// the separator used in environment variable names.
type Configuration struct {
	// Version is the version which defines the format of the rest of the configuration
	Version Version `yaml:"version"`

	// Log supports setting various parameters related to the logging
	// subsystem.
	Log struct {
		// AccessLog configures access logging.
		AccessLog struct {
			// Disabled disables access logging.
			Disabled bool `yaml:"disabled,omitempty"`
		} `yaml:"accesslog,omitempty"`

		// Level is the granularity at which operations are logged.
		Level Loglevel `yaml:"level,omitempty"`

		// Formatter overrides the default formatter with another. Options
		// include "text", "json" and "logstash". The default is "text".
		Formatter string `yaml:"formatter,omitempty"`

		// Fields allows users to specify static string fields to include in
		// the logger context.
		Fields map[string]any `yaml:"fields,omitempty"`
	} `yaml:"log"`

	// HTTP contains configuration parameters for the gateway's http
	// interface.
	HTTP HTTP `yaml:"http,omitempty"`

	// Locale configures locale resolution for requests that do not carry an
	// Accept-Language header.
	Locale struct {
		// Default is the BCP 47 tag used when a request does not specify
		// one. Defaults to "en".
		Default string `yaml:"default,omitempty"`
	} `yaml:"locale,omitempty"`

	// Auth allows configuration of the access controller that gates the
	// administrative routes.
	Auth Auth `yaml:"auth,omitempty"`

	// Executor configures the worker pool running install and uninstall
	// operations.
	Executor struct {
		// Workers is the number of concurrent lifecycle operations.
		Workers int `yaml:"workers,omitempty"`
	} `yaml:"executor,omitempty"`

	// Notifications specifies configuration about various endpoint to which
	// extension events are dispatched.
	Notifications Notifications `yaml:"notifications,omitempty"`

	// Extensions configures the extension services created at start-up,
	// keyed by factory name.
	Extensions Extensions `yaml:"extensions,omitempty"`

	// Health provides the configuration section for health checks.
	Health Health `yaml:"health,omitempty"`

	// Reporting is the configuration for error reporting
	Reporting Reporting `yaml:"reporting,omitempty"`
}

// HTTP contains configuration parameters for the gateway's http interface.
type HTTP struct {
	// Addr specifies the bind address for the gateway instance.
	Addr string `yaml:"addr,omitempty"`

	// Prefix specifies the path prefix under which the api is served,
	// for example "/rest".
	Prefix string `yaml:"prefix,omitempty"`

	// DrainTimeout is the amount of time to wait for connections to drain
	// before shutting down when the gateway receives a stop signal.
	DrainTimeout time.Duration `yaml:"draintimeout,omitempty"`

	// Headers is a set of headers to include in HTTP responses. A common
	// use case for this would be security headers such as
	// X-Content-Type-Options.
	Headers http.Header `yaml:"headers,omitempty"`

	// Debug configures the http debug interface, if specified. This can
	// include services such as pprof, expvar and other data that should
	// not be exposed externally. Left disabled by default.
	Debug struct {
		// Addr specifies the bind address for the debug server.
		Addr string `yaml:"addr,omitempty"`
		// Prometheus configures the Prometheus telemetry endpoint.
		Prometheus struct {
			Enabled bool   `yaml:"enabled,omitempty"`
			Path    string `yaml:"path,omitempty"`
		} `yaml:"prometheus,omitempty"`
	} `yaml:"debug,omitempty"`
}

// Health provides the configuration section for health checks.
type Health struct {
	// Extensions configures the readiness check that fails while no
	// extension service is registered.
	Extensions struct {
		// Enabled turns the check on.
		Enabled bool `yaml:"enabled,omitempty"`
		// Interval is the duration in between checks.
		Interval time.Duration `yaml:"interval,omitempty"`
		// Threshold is the number of times a check must fail to trigger
		// an unhealthy state.
		Threshold int `yaml:"threshold,omitempty"`
	} `yaml:"extensions,omitempty"`
	// FileCheckers is a list of paths to check
	FileCheckers []FileChecker `yaml:"file,omitempty"`
	// HTTPCheckers is a list of URIs to check
	HTTPCheckers []HTTPChecker `yaml:"http,omitempty"`
	// Redis configures the health check of the redis publisher.
	Redis struct {
		// Enabled turns the check on.
		Enabled bool `yaml:"enabled,omitempty"`
		// Interval is the duration in between checks.
		Interval time.Duration `yaml:"interval,omitempty"`
		// Threshold is the number of times a check must fail to trigger
		// an unhealthy state.
		Threshold int `yaml:"threshold,omitempty"`
	} `yaml:"redis,omitempty"`
}

// Reporting defines error reporting methods.
type Reporting struct {
	// Bugsnag configures error reporting for Bugsnag (bugsnag.com).
	Bugsnag BugsnagReporting `yaml:"bugsnag,omitempty"`
	// NewRelic configures error reporting for NewRelic (newrelic.com)
	NewRelic NewRelicReporting `yaml:"newrelic,omitempty"`
}

// BugsnagReporting configures error reporting for Bugsnag (bugsnag.com).
type BugsnagReporting struct {
	// APIKey is the Bugsnag api key.
	APIKey string `yaml:"apikey,omitempty"`
	// ReleaseStage tracks where the gateway is deployed, for example
	// production, staging, development
	ReleaseStage string `yaml:"releasestage,omitempty"`
	// Endpoint is used for specifying an enterprise Bugsnag endpoint.
	Endpoint string `yaml:"endpoint,omitempty"`
}

// NewRelicReporting configures error reporting for NewRelic (newrelic.com)
type NewRelicReporting struct {
	// LicenseKey is the NewRelic user license key
	LicenseKey string `yaml:"licensekey,omitempty"`
	// Name is the component name of the gateway in NewRelic
	Name string `yaml:"name,omitempty"`
	// Verbose configures debug output to STDOUT
	Verbose bool `yaml:"verbose,omitempty"`
}

// FileChecker is a type of entry in the health section for checking files.
type FileChecker struct {
	// Interval is the duration in between checks
	Interval time.Duration `yaml:"interval,omitempty"`
	// File is the path to check
	File string `yaml:"file,omitempty"`
	// Threshold is the number of times a check must fail to trigger an
	// unhealthy state
	Threshold int `yaml:"threshold,omitempty"`
}

// HTTPChecker is a type of entry in the health section for checking HTTP URIs.
type HTTPChecker struct {
	// Timeout is the duration to wait before timing out the HTTP request
	Timeout time.Duration `yaml:"timeout,omitempty"`
	// StatusCode is the expected status code
	StatusCode int `yaml:"statuscode,omitempty"`
	// Interval is the duration in between checks
	Interval time.Duration `yaml:"interval,omitempty"`
	// URI is the HTTP URI to check
	URI string `yaml:"uri,omitempty"`
	// Headers lists static headers that should be added to all requests
	Headers http.Header `yaml:"headers"`
	// Threshold is the number of times a check must fail to trigger an
	// unhealthy state
	Threshold int `yaml:"threshold,omitempty"`
}

// Notifications configures multiple http endpoints and an optional redis
// publisher.
type Notifications struct {
	// EventConfig is the configuration for the event format that is sent
	// to each Endpoint.
	EventConfig Events `yaml:"events,omitempty"`
	// Endpoints is a list of http configurations for endpoints that
	// respond to webhook notifications. In the future, we may allow other
	// kinds of endpoints, such as external queues.
	Endpoints []Endpoint `yaml:"endpoints,omitempty"`
	// Redis publishes events to a redis channel.
	Redis Redis `yaml:"redis,omitempty"`
}

// Events configures notification events.
type Events struct {
	// Source is reported as the event source. Defaults to the hostname.
	Source string `yaml:"source,omitempty"`
}

// Endpoint describes the configuration of an http webhook notification
// endpoint.
type Endpoint struct {
	Name          string        `yaml:"name"`          // identifies the endpoint in the gateway instance.
	Disabled      bool          `yaml:"disabled"`      // disables the endpoint
	URL           string        `yaml:"url"`           // post url for the endpoint.
	Headers       http.Header   `yaml:"headers"`       // static headers that should be added to all requests
	Timeout       time.Duration `yaml:"timeout"`       // HTTP timeout
	Threshold     int           `yaml:"threshold"`     // circuit breaker threshold before backing off on failure
	Backoff       time.Duration `yaml:"backoff"`       // backoff duration
	IgnoredEvents []string      `yaml:"ignoredevents"` // event types that are not sent to the endpoint
}

// Redis configures the redis publisher for events.
type Redis struct {
	// Addr specifies the the redis instance available to the gateway.
	Addr string `yaml:"addr,omitempty"`

	// Password string to use when making a connection.
	Password string `yaml:"password,omitempty"`

	// DB specifies the database to connect to on the redis instance.
	DB int `yaml:"db,omitempty"`

	// Channel is the channel events are published to. Defaults to
	// "smarthome/extensions".
	Channel string `yaml:"channel,omitempty"`

	DialTimeout  time.Duration `yaml:"dialtimeout,omitempty"`  // timeout for connect
	ReadTimeout  time.Duration `yaml:"readtimeout,omitempty"`  // timeout for reads of data
	WriteTimeout time.Duration `yaml:"writetimeout,omitempty"` // timeout for writes of data

	// Pool configures the behavior of the redis connection pool.
	Pool struct {
		// MaxIdle sets the maximum number of idle connections.
		MaxIdle int `yaml:"maxidle,omitempty"`

		// MaxActive sets the maximum number of connections that should be
		// opened before blocking a connection request.
		MaxActive int `yaml:"maxactive,omitempty"`

		// IdleTimeout sets the amount time to wait before closing
		// inactive connections.
		IdleTimeout time.Duration `yaml:"idletimeout,omitempty"`
	} `yaml:"pool,omitempty"`
}

// v0_1Configuration is a Version 0.1 Configuration struct
// This is currently aliased to Configuration, as it is the current version
type v0_1Configuration Configuration

// UnmarshalYAML implements the yaml.Unmarshaler interface
// Unmarshals a string of the form X.Y into a Version, validating that X and Y can represent unsigned integers
func (version *Version) UnmarshalYAML(unmarshal func(any) error) error {
	var versionString string
	err := unmarshal(&versionString)
	if err != nil {
		return err
	}

	newVersion := Version(versionString)
	if _, err := newVersion.major(); err != nil {
		return err
	}

	if _, err := newVersion.minor(); err != nil {
		return err
	}

	*version = newVersion
	return nil
}

// CurrentVersion is the most recent Version that can be parsed
var CurrentVersion = MajorMinorVersion(0, 1)

// Loglevel is the level at which operations are logged
// This can be error, warn, info, or debug
type Loglevel string

// UnmarshalYAML implements the yaml.Umarshaler interface
// Unmarshals a string into a Loglevel, lowercasing the string and validating that it represents a
// valid loglevel
func (loglevel *Loglevel) UnmarshalYAML(unmarshal func(any) error) error {
	var loglevelString string
	err := unmarshal(&loglevelString)
	if err != nil {
		return err
	}

	loglevelString = strings.ToLower(loglevelString)
	switch loglevelString {
	case "error", "warn", "info", "debug":
	default:
		return fmt.Errorf("invalid loglevel %s Must be one of [error, warn, info, debug]", loglevelString)
	}

	*loglevel = Loglevel(loglevelString)
	return nil
}

// Parameters defines a key-value parameters mapping
type Parameters map[string]any

// Auth defines the configuration for gateway authorization.
type Auth map[string]Parameters

// Type returns the access controller type, such as htpasswd.
func (auth Auth) Type() string {
	// Return only key in this map
	for k := range auth {
		return k
	}
	return ""
}

// Parameters returns the Parameters map for an Auth configuration
func (auth Auth) Parameters() Parameters {
	return auth[auth.Type()]
}

// UnmarshalYAML implements the yaml.Unmarshaler interface
// Unmarshals a single item map into an Auth or a string into an Auth type
// with no parameters
func (auth *Auth) UnmarshalYAML(unmarshal func(any) error) error {
	var m map[string]Parameters
	err := unmarshal(&m)
	if err == nil {
		if len(m) > 1 {
			types := make([]string, 0, len(m))
			for k := range m {
				types = append(types, k)
			}

			return fmt.Errorf("must provide exactly one type. Provided: %v", types)
		}
		*auth = m
		return nil
	}

	var authType string
	err = unmarshal(&authType)
	if err == nil {
		*auth = Auth{authType: Parameters{}}
		return nil
	}

	return err
}

// MarshalYAML implements the yaml.Marshaler interface
func (auth Auth) MarshalYAML() (any, error) {
	if auth.Parameters() == nil {
		return auth.Type(), nil
	}
	return map[string]Parameters(auth), nil
}

// Extensions maps extension service factory names to their parameters.
type Extensions map[string]Parameters

// Names returns the configured factory names in sorted order. Services are
// registered in this order.
func (extensions Extensions) Names() []string {
	names := make([]string, 0, len(extensions))
	for k := range extensions {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// UnmarshalYAML implements the yaml.Unmarshaler interface. Besides a map of
// parameter maps, a list of factory names is accepted for services that need
// no parameters.
func (extensions *Extensions) UnmarshalYAML(unmarshal func(any) error) error {
	var m map[string]Parameters
	err := unmarshal(&m)
	if err == nil {
		for k, v := range m {
			if v == nil {
				m[k] = Parameters{}
			}
		}
		*extensions = m
		return nil
	}

	var names []string
	if err := unmarshal(&names); err != nil {
		return err
	}

	m = make(map[string]Parameters, len(names))
	for _, name := range names {
		m[name] = Parameters{}
	}
	*extensions = m
	return nil
}

// Parse parses an input configuration yaml document into a Configuration struct
// This should generally be capable of handling old configuration format versions
//
// Environment variables may be used to override configuration parameters other than version,
// following the scheme below:
// Configuration.Abc may be replaced by the value of EXTGATEWAY_ABC,
// Configuration.Abc.Xyz may be replaced by the value of EXTGATEWAY_ABC_XYZ, and so forth
func Parse(rd io.Reader) (*Configuration, error) {
	in, err := io.ReadAll(rd)
	if err != nil {
		return nil, err
	}

	p := NewParser("extgateway", []VersionedParseInfo{
		{
			Version: MajorMinorVersion(0, 1),
			ParseAs: reflect.TypeOf(v0_1Configuration{}),
			ConversionFunc: func(c any) (any, error) {
				if v0_1, ok := c.(*v0_1Configuration); ok {
					if v0_1.Log.Level == Loglevel("") {
						v0_1.Log.Level = Loglevel("info")
					}
					if v0_1.HTTP.Addr == "" {
						v0_1.HTTP.Addr = ":8080"
					}
					if v0_1.Locale.Default == "" {
						v0_1.Locale.Default = "en"
					}
					if v0_1.Executor.Workers < 0 {
						return nil, fmt.Errorf("executor workers must not be negative: %d", v0_1.Executor.Workers)
					}
					if v0_1.Executor.Workers == 0 {
						v0_1.Executor.Workers = 4
					}
					if v0_1.HTTP.Debug.Prometheus.Enabled && v0_1.HTTP.Debug.Prometheus.Path == "" {
						v0_1.HTTP.Debug.Prometheus.Path = "/metrics"
					}
					return (*Configuration)(v0_1), nil
				}
				return nil, fmt.Errorf("expected *v0_1Configuration, received %#v", c)
			},
		},
	})

	config := new(Configuration)
	err = p.Parse(in, config)
	if err != nil {
		return nil, err
	}

	return config, nil
}
