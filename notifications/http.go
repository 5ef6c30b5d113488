package notifications

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	events "github.com/docker/go-events"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
)

// httpSink implements a single-flight, http notification endpoint. Each
// write is attempted a bounded number of times by the retrying client.
// Reliability beyond that should be provided by the caller.
type httpSink struct {
	url string

	mu        sync.Mutex
	closed    bool
	client    *retryablehttp.Client
	listeners []httpStatusListener
	headers   http.Header
}

// newHTTPSink returns an unreliable, single-flight http sink. Wrap in other
// sinks for increased reliability.
func newHTTPSink(u string, timeout time.Duration, retries int, headers http.Header, transport *http.Transport, listeners ...httpStatusListener) *httpSink {
	if transport == nil {
		transport = http.DefaultTransport.(*http.Transport)
	}

	client := retryablehttp.NewClient()
	client.HTTPClient = &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
	client.RetryMax = retries
	client.RetryWaitMin = 50 * time.Millisecond
	client.RetryWaitMax = time.Second
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	client.Logger = retryLogger{logrus.WithField("notifications.url", u)}

	return &httpSink{
		url:       u,
		listeners: listeners,
		client:    client,
		headers:   headers,
	}
}

// httpStatusListener is called on various outcomes of sending notifications.
type httpStatusListener interface {
	success(status int, event events.Event)
	failure(status int, event events.Event)
	err(err error, event events.Event)
}

// Write accepts an event and notifies the endpoint, returning an error if
// the event is not accepted.
func (hs *httpSink) Write(event events.Event) error {
	hs.mu.Lock()
	defer hs.mu.Unlock()
	defer hs.client.HTTPClient.CloseIdleConnections()

	if hs.closed {
		return ErrSinkClosed
	}

	e, ok := event.(Event)
	if !ok {
		err := fmt.Errorf("%v: unexpected event type %T", hs, event)
		for _, listener := range hs.listeners {
			listener.err(err, event)
		}
		return err
	}

	envelope := Envelope{
		Events: []Event{e},
	}

	p, err := json.MarshalIndent(envelope, "", "   ")
	if err != nil {
		for _, listener := range hs.listeners {
			listener.err(err, event)
		}
		return fmt.Errorf("%v: error marshaling event envelope: %v", hs, err)
	}

	req, err := retryablehttp.NewRequest(http.MethodPost, hs.url, p)
	if err != nil {
		for _, listener := range hs.listeners {
			listener.err(err, event)
		}
		return fmt.Errorf("%v: error creating request: %v", hs, err)
	}

	for k, v := range hs.headers {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", EventsMediaType+"; charset=utf-8")

	resp, err := hs.client.Do(req)
	if err != nil {
		for _, listener := range hs.listeners {
			listener.err(err, event)
		}

		return fmt.Errorf("%v: error posting: %v", hs, err)
	}
	defer resp.Body.Close()

	// The notifier will treat any 2xx or 3xx response as accepted by the
	// endpoint.
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 400:
		for _, listener := range hs.listeners {
			listener.success(resp.StatusCode, event)
		}

		return nil
	default:
		for _, listener := range hs.listeners {
			listener.failure(resp.StatusCode, event)
		}
		return fmt.Errorf("%v: response status %v unaccepted", hs, resp.Status)
	}
}

// Close the endpoint
func (hs *httpSink) Close() error {
	hs.mu.Lock()
	defer hs.mu.Unlock()

	if hs.closed {
		return fmt.Errorf("httpsink: already closed")
	}

	hs.closed = true
	return nil
}

func (hs *httpSink) String() string {
	return fmt.Sprintf("httpSink{%s}", hs.url)
}

// retryLogger adapts logrus to the leveled logger of the retrying client.
type retryLogger struct {
	entry *logrus.Entry
}

var _ retryablehttp.LeveledLogger = retryLogger{}

func (l retryLogger) with(keysAndValues []any) *logrus.Entry {
	fields := logrus.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return l.entry.WithFields(fields)
}

func (l retryLogger) Error(msg string, keysAndValues ...any) {
	l.with(keysAndValues).Error(msg)
}

func (l retryLogger) Info(msg string, keysAndValues ...any) {
	l.with(keysAndValues).Info(msg)
}

func (l retryLogger) Debug(msg string, keysAndValues ...any) {
	l.with(keysAndValues).Debug(msg)
}

func (l retryLogger) Warn(msg string, keysAndValues ...any) {
	l.with(keysAndValues).Warn(msg)
}
