package notifications

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTopic(t *testing.T) {
	require.Equal(t, "smarthome/extensions/binding-hue/installed", Topic(EventTypeInstalled, "binding-hue"))
	require.Equal(t, "smarthome/extensions/binding-hue/uninstalled", Topic(EventTypeUninstalled, "binding-hue"))
	require.Equal(t, "smarthome/extensions/binding-hue/failed", Topic(EventTypeFailure, "binding-hue"))
	require.Equal(t, "smarthome/extensions/binding-hue/unknown", Topic("Other", "binding-hue"))
}

func TestFailurePayloadFields(t *testing.T) {
	p, err := json.Marshal(Payload{ExtensionID: "binding-hue", Message: "boom"})
	require.NoError(t, err)
	require.JSONEq(t, `{"extensionId":"binding-hue","message":"boom"}`, string(p))
}
