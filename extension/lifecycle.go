package extension

import (
	"context"
	"fmt"
	"time"

	"github.com/smarthome/extgateway/internal/dcontext"
	"github.com/smarthome/extgateway/notifications"
)

// Action is a lifecycle operation.
type Action string

// Lifecycle actions.
const (
	ActionInstall   Action = "install"
	ActionUninstall Action = "uninstall"
)

// Lifecycle dispatches install and uninstall requests to the service that
// claims an extension. Requests run on the executor; the caller only learns
// whether the request was accepted. Failures are logged and reported to the
// listener.
type Lifecycle struct {
	services *Services
	executor *Executor
	listener notifications.Listener
}

// NewLifecycle returns a Lifecycle running operations on executor. The
// listener may be nil, in which case failures are only logged.
func NewLifecycle(services *Services, executor *Executor, listener notifications.Listener) *Lifecycle {
	return &Lifecycle{
		services: services,
		executor: executor,
		listener: listener,
	}
}

// Install schedules the installation of the extension with the given id.
func (l *Lifecycle) Install(ctx context.Context, id string) error {
	return l.submit(ctx, ActionInstall, id)
}

// Uninstall schedules the removal of the extension with the given id.
func (l *Lifecycle) Uninstall(ctx context.Context, id string) error {
	return l.submit(ctx, ActionUninstall, id)
}

func (l *Lifecycle) submit(ctx context.Context, action Action, id string) error {
	ctx = dcontext.WithValues(ctx, map[string]any{
		"extension.id":     id,
		"extension.action": string(action),
	})

	return l.executor.Submit(ctx, func(ctx context.Context) {
		l.run(ctx, action, id)
	})
}

// run performs one operation and reports its outcome.
func (l *Lifecycle) run(ctx context.Context, action Action, id string) {
	logger := dcontext.GetLogger(ctx, "extension.id", "extension.action")
	start := time.Now()

	err := l.do(ctx, action, id)
	operationsTimer.WithValues(string(action)).UpdateSince(start)

	if err == nil {
		operationsCounter.WithValues(string(action), "success").Inc(1)
		logger.Infof("%s of extension %s completed", action, id)
		return
	}

	operationsCounter.WithValues(string(action), "failure").Inc(1)

	message := err.Error()
	if message == "" {
		message = fmt.Sprintf("%s of extension %s failed", action, id)
	}
	logger.Errorf("%s of extension %s failed: %s", action, id, message)

	if l.listener == nil {
		return
	}
	if err := l.listener.ExtensionFailed(ctx, id, message); err != nil {
		logger.Errorf("error publishing failure event: %v", err)
	}
}

// do resolves the owning service and calls it. A panicking service is
// reported as a failure.
func (l *Lifecycle) do(ctx context.Context, action Action, id string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s of extension %s panicked: %v", action, id, r)
		}
	}()

	service, err := l.services.Resolve(ctx, id)
	if err != nil {
		return err
	}

	switch action {
	case ActionInstall:
		return service.Install(ctx, id)
	case ActionUninstall:
		return service.Uninstall(ctx, id)
	default:
		return fmt.Errorf("unknown action %q", action)
	}
}
