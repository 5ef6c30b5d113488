package dcontext

import "context"

// DetachedContext returns a context that keeps the values of ctx, such as
// the logger and request id, but is never canceled. Lifecycle operations
// outlive the request that scheduled them and run on a detached context.
func DetachedContext(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}
