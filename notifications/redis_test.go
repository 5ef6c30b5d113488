package notifications

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/gomodule/redigo/redis"
	"github.com/stretchr/testify/require"
)

type publish struct {
	channel string
	payload []byte
}

// fakeConn records PUBLISH commands.
type fakeConn struct {
	mu        sync.Mutex
	published []publish
	err       error
}

func (c *fakeConn) Close() error { return nil }
func (c *fakeConn) Err() error   { return nil }

func (c *fakeConn) Do(cmd string, args ...any) (any, error) {
	if cmd == "" {
		return nil, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err != nil {
		return nil, c.err
	}
	if cmd != "PUBLISH" || len(args) != 2 {
		return nil, errors.New("unexpected command")
	}

	c.published = append(c.published, publish{
		channel: args[0].(string),
		payload: args[1].([]byte),
	})
	return int64(1), nil
}

func (c *fakeConn) Send(cmd string, args ...any) error { return nil }
func (c *fakeConn) Flush() error                       { return nil }
func (c *fakeConn) Receive() (any, error)              { return nil, nil }

func newFakePool(conn *fakeConn) *redis.Pool {
	return &redis.Pool{
		Dial: func() (redis.Conn, error) {
			return conn, nil
		},
	}
}

func TestRedisSinkPublishesOnTopic(t *testing.T) {
	conn := &fakeConn{}
	sink := NewRedisSink(newFakePool(conn), "")

	event := createTestEvent(EventTypeFailure, "binding-hue")
	event.Payload.Message = "boom"
	require.NoError(t, sink.Write(event))
	require.NoError(t, sink.Close())

	conn.mu.Lock()
	defer conn.mu.Unlock()
	require.Len(t, conn.published, 1)
	require.Equal(t, "smarthome/extensions/binding-hue/failed", conn.published[0].channel)

	var decoded Event
	require.NoError(t, json.Unmarshal(conn.published[0].payload, &decoded))
	require.True(t, event.Timestamp.Equal(decoded.Timestamp))
	decoded.Timestamp = event.Timestamp
	require.Equal(t, event, decoded)
}

func TestRedisSinkPublishesOnChannel(t *testing.T) {
	conn := &fakeConn{}
	sink := NewRedisSink(newFakePool(conn), "smarthome/extensions")

	require.NoError(t, sink.Write(createTestEvent(EventTypeInstalled, "binding-hue")))
	require.NoError(t, sink.Write(createTestEvent(EventTypeUninstalled, "binding-hue")))
	require.NoError(t, sink.Close())

	conn.mu.Lock()
	defer conn.mu.Unlock()
	require.Len(t, conn.published, 2)
	for _, p := range conn.published {
		require.Equal(t, "smarthome/extensions", p.channel)
	}
}

func TestRedisSinkError(t *testing.T) {
	conn := &fakeConn{err: errors.New("connection refused")}
	metrics := newSinkMetrics("redis-test")
	sink := &redisSink{
		pool:      newFakePool(conn),
		listeners: []httpStatusListener{metrics},
	}

	require.Error(t, sink.Write(createTestEvent(EventTypeInstalled, "binding-hue")))
	require.Error(t, sink.Write("not an event"))
	require.NoError(t, sink.Close())
	require.ErrorIs(t, sink.Write(createTestEvent(EventTypeInstalled, "binding-hue")), ErrSinkClosed)

	require.Equal(t, 2, metrics.snapshot().Errors)
}
