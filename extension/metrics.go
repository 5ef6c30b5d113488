package extension

import (
	"github.com/docker/go-metrics"

	prometheus "github.com/smarthome/extgateway/metrics"
)

var (
	// operationsCounter counts lifecycle operations by action and outcome
	operationsCounter = prometheus.ExtensionsNamespace.NewLabeledCounter("operations", "The number of lifecycle operations", "action", "outcome")
	// operationsTimer measures the duration of lifecycle operations
	operationsTimer = prometheus.ExtensionsNamespace.NewLabeledTimer("operation", "The duration of lifecycle operations", "action")
	// pendingGauge measures the tasks waiting for a worker
	pendingGauge = prometheus.ExtensionsNamespace.NewGauge("pending", "The number of lifecycle operations waiting for a worker", metrics.Total)
	// registeredGauge tracks the number of registered extension services
	registeredGauge = prometheus.ExtensionsNamespace.NewGauge("services", "The number of registered extension services", metrics.Total)
	// listingErrors counts services skipped because they failed to list
	listingErrors = prometheus.ExtensionsNamespace.NewLabeledCounter("listing_errors", "The number of failed service listings", "listing")
)

func init() {
	metrics.Register(prometheus.ExtensionsNamespace)
}
