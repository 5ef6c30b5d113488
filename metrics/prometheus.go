package metrics

import "github.com/docker/go-metrics"

const (
	// NamespacePrefix is the namespace of prometheus metrics
	NamespacePrefix = "extgateway"
)

var (
	// ExtensionsNamespace is the prometheus namespace of extension lifecycle
	// operations and the service registry.
	ExtensionsNamespace = metrics.NewNamespace(NamespacePrefix, "extensions", nil)

	// NotificationsNamespace is the prometheus namespace of notification
	// related metrics.
	NotificationsNamespace = metrics.NewNamespace(NamespacePrefix, "notifications", nil)
)
