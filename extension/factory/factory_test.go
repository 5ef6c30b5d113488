package factory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/smarthome/extgateway"
	"github.com/smarthome/extgateway/extension/extensiontest"
	"github.com/smarthome/extgateway/notifications"
)

func TestCreate(t *testing.T) {
	var received map[string]any
	Register("factory-test", FactoryFunc(func(ctx context.Context, parameters map[string]any, listener notifications.Listener) (extgateway.ExtensionService, error) {
		received = parameters
		return extensiontest.New(), nil
	}))

	service, err := Create(context.Background(), "factory-test", map[string]any{"path": "/tmp/catalog.yml"}, nil)
	require.NoError(t, err)
	require.IsType(t, &extensiontest.Service{}, service)
	require.Equal(t, map[string]any{"path": "/tmp/catalog.yml"}, received)
	require.Contains(t, Names(), "factory-test")
}

func TestCreateUnregistered(t *testing.T) {
	_, err := Create(context.Background(), "factory-missing", nil, nil)
	require.Equal(t, InvalidServiceError{Name: "factory-missing"}, err)
}

func TestCreateFailure(t *testing.T) {
	cause := errors.New("bad parameters")
	Register("factory-failing", FactoryFunc(func(context.Context, map[string]any, notifications.Listener) (extgateway.ExtensionService, error) {
		return nil, cause
	}))

	_, err := Create(context.Background(), "factory-failing", nil, nil)
	require.ErrorIs(t, err, cause)
}

func TestRegisterTwicePanics(t *testing.T) {
	f := FactoryFunc(func(context.Context, map[string]any, notifications.Listener) (extgateway.ExtensionService, error) {
		return extensiontest.New(), nil
	})
	Register("factory-twice", f)

	require.Panics(t, func() { Register("factory-twice", f) })
	require.Panics(t, func() { Register("factory-nil", nil) })
}
