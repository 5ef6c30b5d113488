package notifications

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBridge(t *testing.T) {
	ctx := context.Background()
	source := SourceRecord{Addr: "gateway.local:8080", InstanceID: "instance"}
	ts := &testSink{}
	l := NewBridge(source, ts)

	require.NoError(t, l.ExtensionInstalled(ctx, "binding-hue"))
	require.NoError(t, l.ExtensionUninstalled(ctx, "binding-hue"))
	require.NoError(t, l.ExtensionFailed(ctx, "binding-zwave", "download failed"))

	ts.mu.Lock()
	defer ts.mu.Unlock()
	require.Len(t, ts.events, 3)

	expected := []struct {
		eventType string
		topic     string
		id        string
		message   string
	}{
		{EventTypeInstalled, "smarthome/extensions/binding-hue/installed", "binding-hue", ""},
		{EventTypeUninstalled, "smarthome/extensions/binding-hue/uninstalled", "binding-hue", ""},
		{EventTypeFailure, "smarthome/extensions/binding-zwave/failed", "binding-zwave", "download failed"},
	}

	for i, e := range expected {
		event, ok := ts.events[i].(Event)
		require.True(t, ok)
		require.Equal(t, e.eventType, event.Type)
		require.Equal(t, e.topic, event.Topic)
		require.Equal(t, e.id, event.Payload.ExtensionID)
		require.Equal(t, e.message, event.Payload.Message)
		require.Equal(t, source, event.Source)
		require.NotEmpty(t, event.ID)
		require.False(t, event.Timestamp.IsZero())
	}
}

func TestBridgeNilSink(t *testing.T) {
	l := NewBridge(SourceRecord{}, nil)
	require.NoError(t, l.ExtensionFailed(context.Background(), "binding-hue", "boom"))
}
