package notifications

import (
	"sync"
	"testing"
	"time"

	events "github.com/docker/go-events"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestEventQueue(t *testing.T) {
	const nevents = 1000
	var ts testSink
	metrics := newSinkMetrics("")
	eq := newEventQueue(
		// delayed sync simulates destination slower than channel comms
		&delayedSink{
			Sink:  &ts,
			delay: time.Millisecond * 1,
		}, metrics)

	var wg sync.WaitGroup
	for i := 1; i <= nevents; i++ {
		event := createTestEvent(EventTypeInstalled, "binding-hue")
		wg.Add(1)
		go func(event events.Event) {
			defer wg.Done()
			if err := eq.Write(event); err != nil {
				t.Errorf("error writing event block: %v", err)
			}
		}(event)
	}

	wg.Wait()
	if t.Failed() {
		t.FailNow()
	}
	checkClose(t, eq)

	ts.mu.Lock()
	defer ts.mu.Unlock()

	require.Equal(t, nevents, ts.count, "events did not make it to the sink")
	require.True(t, ts.closed, "sink should have been closed")

	m := metrics.snapshot()
	require.Equal(t, nevents, m.Events, "unexpected ingress count")
	require.Equal(t, 0, m.Pending, "unexpected egress count")
}

func TestIgnoredSink(t *testing.T) {
	installed := createTestEvent(EventTypeInstalled, "binding-hue")
	failed := createTestEvent(EventTypeFailure, "binding-hue")

	type testcase struct {
		ignored  []string
		event    Event
		expected events.Event
	}

	tests := []testcase{
		{event: installed, expected: installed},
		{ignored: []string{"other"}, event: installed, expected: installed},
		{ignored: []string{EventTypeInstalled}, event: installed},
		{ignored: []string{EventTypeInstalled}, event: failed, expected: failed},
		{ignored: []string{EventTypeInstalled, EventTypeFailure}, event: failed},
	}

	for _, tc := range tests {
		ts := &testSink{}
		s := newIgnoredSink(ts, tc.ignored)

		require.NoError(t, s.Write(tc.event))

		ts.mu.Lock()
		require.Equal(t, tc.expected, ts.event)
		ts.mu.Unlock()
	}
}

func createTestEvent(eventType, id string) Event {
	return Event{
		ID:        "event-" + id,
		Timestamp: time.Unix(0, 0).UTC(),
		Type:      eventType,
		Topic:     Topic(eventType, id),
		Payload:   Payload{ExtensionID: id},
	}
}

type testSink struct {
	event  events.Event
	events []events.Event
	count  int
	mu     sync.Mutex
	closed bool
}

func (ts *testSink) Write(event events.Event) error {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.event = event
	ts.events = append(ts.events, event)
	ts.count++
	return nil
}

func (ts *testSink) Close() error {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.closed = true

	logrus.Infof("closing testSink")
	return nil
}

type delayedSink struct {
	events.Sink
	delay time.Duration
}

func (ds *delayedSink) Write(event events.Event) error {
	time.Sleep(ds.delay)
	return ds.Sink.Write(event)
}

func checkClose(t *testing.T, sink events.Sink) {
	t.Helper()

	require.NoError(t, sink.Close())

	// second close should not crash but should return an error.
	require.Error(t, sink.Close(), "no error on double close")

	// Write after closed should be an error
	require.ErrorIs(t, sink.Write(Event{}), ErrSinkClosed)
}
