package notifications

import (
	"crypto/tls"
	"encoding/json"
	"mime"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	events "github.com/docker/go-events"
	"github.com/stretchr/testify/require"
)

// TestHTTPSink mocks out an http endpoint and notifies it under a couple of
// conditions, ensuring correct behavior.
func TestHTTPSink(t *testing.T) {
	serverHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		// Extract the content type and make sure it matches
		contentType := r.Header.Get("Content-Type")
		mediaType, _, err := mime.ParseMediaType(contentType)
		if err != nil || mediaType != EventsMediaType {
			w.WriteHeader(http.StatusUnsupportedMediaType)
			return
		}

		var envelope Envelope
		if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil || len(envelope.Events) != 1 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		// Let caller choose the status
		status, err := strconv.Atoi(r.FormValue("status"))
		if err != nil {
			// May just be empty, set status to 200
			status = http.StatusOK
		}

		w.WriteHeader(status)
	})
	server := httptest.NewTLSServer(serverHandler)
	defer server.Close()

	metrics := newSinkMetrics("")
	sink := newHTTPSink(server.URL, 0, 0, nil, nil, metrics)

	// first make sure that the default transport gives x509 untrusted cert error
	event := createTestEvent(EventTypeInstalled, "binding-hue")
	err := sink.Write(event)
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "x509") || strings.Contains(err.Error(), "unknown ca"),
		"TLS server with default transport should give unknown CA error: %v", err)
	require.NoError(t, sink.Close())

	// make sure that passing in the transport no longer gives this error
	tr := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	}
	sink = newHTTPSink(server.URL, 0, 0, nil, tr, metrics)
	require.NoError(t, sink.Write(event))

	// reset server to standard http server and sink to a basic sink
	metrics = newSinkMetrics("")
	plain := httptest.NewServer(serverHandler)
	defer plain.Close()
	sink = newHTTPSink(plain.URL, 0, 0, nil, nil, metrics)
	var expectedMetrics EndpointMetrics
	expectedMetrics.Statuses = make(map[string]int)

	closeL, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)
	defer closeL.Close()
	go func() {
		for {
			c, err := closeL.Accept()
			if err != nil {
				return
			}
			c.Close()
		}
	}()

	for _, tc := range []struct {
		event      events.Event // events to send
		url        string
		isFailure  bool // true if there should be a failure.
		isError    bool // true if the request returns an error
		statusCode int  // if not set, no status code should be incremented.
	}{
		{
			statusCode: http.StatusOK,
			event:      event,
		},
		{
			statusCode: http.StatusTemporaryRedirect,
			event:      event,
		},
		{
			statusCode: http.StatusBadRequest,
			event:      event,
			isFailure:  true,
		},
		{
			// Case where connection is immediately closed
			url:     "http://" + closeL.Addr().String(),
			isError: true,
			event:   event,
		},
		{
			// Events of a foreign type are rejected
			isError: true,
			event:   "not an event",
		},
	} {
		if tc.isFailure {
			expectedMetrics.Failures++
		} else if tc.isError {
			expectedMetrics.Errors++
		} else {
			expectedMetrics.Successes++
		}

		if tc.statusCode > 0 {
			expectedMetrics.Statuses[strconv.Itoa(tc.statusCode)+" "+http.StatusText(tc.statusCode)]++
		}

		url := tc.url
		if url == "" {
			url = plain.URL + "/"
		}
		// setup endpoint to respond with expected status code.
		url += "?status=" + strconv.Itoa(tc.statusCode)
		sink.url = url

		err := sink.Write(tc.event)
		if !tc.isFailure && !tc.isError {
			require.NoError(t, err)
		} else {
			require.Error(t, err)
		}

		require.Equal(t, expectedMetrics, metrics.snapshot())
	}

	require.NoError(t, sink.Close())

	// double close returns error
	require.Error(t, sink.Close())
}

func TestHTTPSinkHeaders(t *testing.T) {
	received := make(chan http.Header, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received <- r.Header.Clone()
	}))
	defer server.Close()

	headers := http.Header{"Authorization": []string{"Bearer secret"}}
	sink := newHTTPSink(server.URL, 0, 0, headers, nil)
	require.NoError(t, sink.Write(createTestEvent(EventTypeFailure, "binding-hue")))

	h := <-received
	require.Equal(t, "Bearer secret", h.Get("Authorization"))
	require.True(t, strings.HasPrefix(h.Get("Content-Type"), EventsMediaType))
}
