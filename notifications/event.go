package notifications

import (
	"fmt"
	"time"

	events "github.com/docker/go-events"
)

// EventsMediaType is the mediatype for the json event envelope. If the Event
// or Envelope struct changes, the version number should be incremented.
const EventsMediaType = "application/vnd.smarthome.extensions.events.v1+json"

// Event types published for extensions. The values match the event type
// names used on the platform event bus.
const (
	EventTypeInstalled   = "ExtensionInstalledEvent"
	EventTypeUninstalled = "ExtensionUninstalledEvent"
	EventTypeFailure     = "ExtensionFailureEvent"
)

// TopicPrefix is the prefix of the topics events are published under.
const TopicPrefix = "smarthome/extensions"

// Envelope defines the fields of a json event envelope message that can hold
// one or more events.
type Envelope struct {
	// Events make up the contents of the envelope. Events present in a
	// single envelope are not necessarily related.
	Events []Event `json:"events,omitempty"`
}

// Event provides the fields required to describe an extension lifecycle
// event.
type Event struct {
	// ID provides a unique identifier for the event.
	ID string `json:"id,omitempty"`

	// Timestamp is the time at which the event occurred.
	Timestamp time.Time `json:"timestamp,omitempty"`

	// Type is one of the EventType constants.
	Type string `json:"type,omitempty"`

	// Topic is the bus topic of the event, for example
	// smarthome/extensions/binding-hue/installed.
	Topic string `json:"topic,omitempty"`

	// Payload carries the event data.
	Payload Payload `json:"payload"`

	// Source identifies the gateway instance that generated the event.
	Source SourceRecord `json:"source,omitempty"`
}

// Payload is the data of an extension event.
type Payload struct {
	// ExtensionID is the id of the extension the event refers to.
	ExtensionID string `json:"extensionId"`

	// Message describes a failure. It is only set on failure events.
	Message string `json:"message,omitempty"`
}

// SourceRecord identifies the gateway instance that generated an event.
type SourceRecord struct {
	// Addr contains the ip or hostname and the port of the gateway node
	// that generated the event.
	Addr string `json:"addr,omitempty"`

	// InstanceID identifies a running instance of the gateway. This
	// changes after each restart.
	InstanceID string `json:"instanceID,omitempty"`
}

var _ events.Event = Event{}

// Topic returns the bus topic for an event type and extension id.
func Topic(eventType, extensionID string) string {
	var suffix string
	switch eventType {
	case EventTypeInstalled:
		suffix = "installed"
	case EventTypeUninstalled:
		suffix = "uninstalled"
	case EventTypeFailure:
		suffix = "failed"
	default:
		suffix = "unknown"
	}

	return fmt.Sprintf("%s/%s/%s", TopicPrefix, extensionID, suffix)
}
