package notifications

import (
	"errors"
	"sync"

	events "github.com/docker/go-events"
)

// ErrSinkClosed is returned by writes to a closed sink.
var ErrSinkClosed = events.ErrSinkClosed

var errQueueClosed = errors.New("notifications: queue already closed")

// eventQueueListener observes events entering and leaving a queue.
type eventQueueListener interface {
	ingress(event events.Event)
	egress(event events.Event)
}

// eventQueue buffers events for a slower sink in an unbounded go-events
// queue. Close flushes the queue and closes the sink.
type eventQueue struct {
	queue    *events.Queue
	listener eventQueueListener

	mu     sync.Mutex
	closed bool
}

func newEventQueue(sink events.Sink, listener eventQueueListener) *eventQueue {
	return &eventQueue{
		queue:    events.NewQueue(&egressSink{Sink: sink, listener: listener}),
		listener: listener,
	}
}

// Write enqueues event. It fails only once the queue is closed.
func (eq *eventQueue) Write(event events.Event) error {
	eq.mu.Lock()
	defer eq.mu.Unlock()

	if eq.closed {
		return ErrSinkClosed
	}

	eq.listener.ingress(event)
	return eq.queue.Write(event)
}

func (eq *eventQueue) Close() error {
	eq.mu.Lock()
	if eq.closed {
		eq.mu.Unlock()
		return errQueueClosed
	}
	eq.closed = true
	eq.mu.Unlock()

	return eq.queue.Close()
}

// egressSink reports every event the queue hands to the sink, delivered or
// not. The queue logs delivery errors.
type egressSink struct {
	events.Sink
	listener eventQueueListener
}

func (es *egressSink) Write(event events.Event) error {
	defer es.listener.egress(event)
	return es.Sink.Write(event)
}

// newIgnoredSink drops events whose type is in ignored.
func newIgnoredSink(sink events.Sink, ignored []string) events.Sink {
	if len(ignored) == 0 {
		return sink
	}

	types := make(map[string]struct{}, len(ignored))
	for _, t := range ignored {
		types[t] = struct{}{}
	}

	return events.NewFilter(sink, events.MatcherFunc(func(event events.Event) bool {
		e, ok := event.(Event)
		if !ok {
			return true
		}
		_, drop := types[e.Type]
		return !drop
	}))
}
