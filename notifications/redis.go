package notifications

import (
	"encoding/json"
	"fmt"
	"sync"

	events "github.com/docker/go-events"
	"github.com/gomodule/redigo/redis"
)

// redisSink publishes each event on a redis channel. Without a configured
// channel, events are published on their own topic.
type redisSink struct {
	pool    *redis.Pool
	channel string

	mu        sync.Mutex
	closed    bool
	listeners []httpStatusListener
}

// NewRedisSink returns a queued sink that publishes events through the pool.
// Closing the sink flushes the queue and closes the pool.
func NewRedisSink(pool *redis.Pool, channel string) events.Sink {
	metrics := newSinkMetrics("redis")
	sink := &redisSink{
		pool:      pool,
		channel:   channel,
		listeners: []httpStatusListener{metrics},
	}

	return newEventQueue(sink, metrics)
}

func (rs *redisSink) Write(event events.Event) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.closed {
		return ErrSinkClosed
	}

	e, ok := event.(Event)
	if !ok {
		err := fmt.Errorf("%v: unexpected event type %T", rs, event)
		rs.notifyErr(err, event)
		return err
	}

	p, err := json.Marshal(e)
	if err != nil {
		rs.notifyErr(err, event)
		return fmt.Errorf("%v: error marshaling event: %v", rs, err)
	}

	channel := rs.channel
	if channel == "" {
		channel = e.Topic
	}

	conn := rs.pool.Get()
	defer conn.Close()

	if _, err := redis.Int(conn.Do("PUBLISH", channel, p)); err != nil {
		rs.notifyErr(err, event)
		return fmt.Errorf("%v: error publishing: %v", rs, err)
	}

	for _, listener := range rs.listeners {
		listener.success(0, event)
	}
	return nil
}

func (rs *redisSink) notifyErr(err error, event events.Event) {
	for _, listener := range rs.listeners {
		listener.err(err, event)
	}
}

func (rs *redisSink) Close() error {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.closed {
		return fmt.Errorf("redissink: already closed")
	}

	rs.closed = true
	return rs.pool.Close()
}

func (rs *redisSink) String() string {
	return fmt.Sprintf("redisSink{%s}", rs.channel)
}
