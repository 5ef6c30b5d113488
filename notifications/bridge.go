package notifications

import (
	"context"
	"time"

	events "github.com/docker/go-events"

	"github.com/smarthome/extgateway/internal/dcontext"
	"github.com/smarthome/extgateway/internal/uuid"
)

// Listener is notified of extension lifecycle outcomes.
type Listener interface {
	// ExtensionInstalled is called after an extension was installed.
	ExtensionInstalled(ctx context.Context, id string) error

	// ExtensionUninstalled is called after an extension was removed.
	ExtensionUninstalled(ctx context.Context, id string) error

	// ExtensionFailed is called when an install or uninstall operation
	// failed. The message describes the failure.
	ExtensionFailed(ctx context.Context, id, message string) error
}

type bridge struct {
	source SourceRecord
	sink   events.Sink
}

var _ Listener = &bridge{}

// NewBridge returns a notification listener that writes events to sink,
// using the source. A nil sink drops every event.
func NewBridge(source SourceRecord, sink events.Sink) Listener {
	return &bridge{
		source: source,
		sink:   sink,
	}
}

func (b *bridge) ExtensionInstalled(ctx context.Context, id string) error {
	return b.write(ctx, b.createEvent(EventTypeInstalled, id, ""))
}

func (b *bridge) ExtensionUninstalled(ctx context.Context, id string) error {
	return b.write(ctx, b.createEvent(EventTypeUninstalled, id, ""))
}

func (b *bridge) ExtensionFailed(ctx context.Context, id, message string) error {
	return b.write(ctx, b.createEvent(EventTypeFailure, id, message))
}

func (b *bridge) createEvent(eventType, id, message string) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Type:      eventType,
		Topic:     Topic(eventType, id),
		Payload: Payload{
			ExtensionID: id,
			Message:     message,
		},
		Source: b.source,
	}
}

func (b *bridge) write(ctx context.Context, event *Event) error {
	if b.sink == nil {
		return nil
	}

	dcontext.GetLoggerWithFields(ctx, map[any]any{
		"event.id":    event.ID,
		"event.type":  event.Type,
		"event.topic": event.Topic,
	}).Debug("publishing event")

	return b.sink.Write(*event)
}
