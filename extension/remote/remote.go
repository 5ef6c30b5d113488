// Package remote registers the "remote" extension service, which serves the
// extensions of another gateway.
package remote

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/smarthome/extgateway"
	"github.com/smarthome/extgateway/extension/factory"
	"github.com/smarthome/extgateway/internal/client"
	"github.com/smarthome/extgateway/internal/dcontext"
	"github.com/smarthome/extgateway/notifications"
)

const serviceName = "remote"

func init() {
	factory.Register(serviceName, factory.FactoryFunc(create))
}

// Parameters configures a remote service.
type Parameters struct {
	URL      string              `mapstructure:"url"`
	Username string              `mapstructure:"username"`
	Password string              `mapstructure:"password"`
	Headers  map[string][]string `mapstructure:"headers"`
	Timeout  time.Duration       `mapstructure:"timeout"`
	Retries  int                 `mapstructure:"retries"`
}

func fromParameters(parameters map[string]any) (Parameters, error) {
	params := Parameters{
		Timeout: 10 * time.Second,
		Retries: 2,
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Result:           &params,
	})
	if err != nil {
		return Parameters{}, err
	}

	if err := decoder.Decode(parameters); err != nil {
		return Parameters{}, err
	}

	if params.URL == "" {
		return Parameters{}, fmt.Errorf("no url parameter provided")
	}

	return params, nil
}

// create builds the service. Lifecycle events are published by the remote
// gateway, so listener is unused.
func create(ctx context.Context, parameters map[string]any, listener notifications.Listener) (extgateway.ExtensionService, error) {
	params, err := fromParameters(parameters)
	if err != nil {
		return nil, err
	}

	var modifiers []client.RequestModifier
	if len(params.Headers) > 0 {
		modifiers = append(modifiers, client.NewHeaderRequestModifier(http.Header(params.Headers)))
	}
	if params.Username != "" {
		modifiers = append(modifiers, client.NewBasicAuthRequestModifier(params.Username, params.Password))
	}

	s, err := client.NewService(params.URL, client.Options{
		Transport: client.NewTransport(http.DefaultTransport, modifiers...),
		Timeout:   params.Timeout,
		Retries:   params.Retries,
	})
	if err != nil {
		return nil, err
	}

	dcontext.GetLogger(ctx).Infof("proxying extensions of %s", params.URL)
	return s, nil
}
