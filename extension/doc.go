// Package extension aggregates the registered extension services and runs
// their lifecycle operations.
//
// Services is the registry: a copy-on-write set that readers snapshot
// without locking. Lifecycle dispatches install and uninstall requests to
// the service that claims an extension id, on a dedicated Executor, and
// reports failures to a notifications.Listener.
package extension
