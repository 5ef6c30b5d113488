package notifications

import (
	"expvar"
	"fmt"
	"net/http"
	"sync"

	events "github.com/docker/go-events"
	"github.com/docker/go-metrics"

	prometheus "github.com/smarthome/extgateway/metrics"
)

var (
	eventsCounter = prometheus.NotificationsNamespace.NewLabeledCounter("events", "Events by outcome", "type", "endpoint")
	pendingGauge  = prometheus.NotificationsNamespace.NewLabeledGauge("pending", "Events queued for delivery", metrics.Total, "endpoint")
	statusCounter = prometheus.NotificationsNamespace.NewLabeledCounter("status", "Deliveries by response status", "code", "endpoint")
)

// EndpointMetrics counts the events handled by one sink.
type EndpointMetrics struct {
	Pending   int            // queued, not yet handed to the sink
	Events    int            // accepted by the queue
	Successes int            // delivered
	Failures  int            // rejected by the receiver
	Errors    int            // not delivered
	Statuses  map[string]int // deliveries per status line
}

// sinkMetrics is the listener of a sink and its queue. It mirrors every
// update into the prometheus namespace, labeled with the sink name.
type sinkMetrics struct {
	name string

	mu sync.Mutex
	EndpointMetrics
}

var (
	_ httpStatusListener = &sinkMetrics{}
	_ eventQueueListener = &sinkMetrics{}
)

func newSinkMetrics(name string) *sinkMetrics {
	return &sinkMetrics{
		name:            name,
		EndpointMetrics: EndpointMetrics{Statuses: map[string]int{}},
	}
}

func (sm *sinkMetrics) snapshot() EndpointMetrics {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	m := sm.EndpointMetrics
	m.Statuses = make(map[string]int, len(sm.Statuses))
	for k, v := range sm.Statuses {
		m.Statuses[k] = v
	}
	return m
}

func (sm *sinkMetrics) status(code int) {
	line := fmt.Sprintf("%d %s", code, http.StatusText(code))
	sm.Statuses[line]++
	statusCounter.WithValues(line, sm.name).Inc(1)
}

func (sm *sinkMetrics) success(code int, event events.Event) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.Successes++
	// redis deliveries have no status
	if code != 0 {
		sm.status(code)
	}
	eventsCounter.WithValues("Successes", sm.name).Inc(1)
}

func (sm *sinkMetrics) failure(code int, event events.Event) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.Failures++
	sm.status(code)
	eventsCounter.WithValues("Failures", sm.name).Inc(1)
}

func (sm *sinkMetrics) err(err error, event events.Event) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.Errors++
	eventsCounter.WithValues("Errors", sm.name).Inc(1)
}

func (sm *sinkMetrics) ingress(event events.Event) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.Events++
	sm.Pending++
	eventsCounter.WithValues("Events", sm.name).Inc(1)
	pendingGauge.WithValues(sm.name).Inc(1)
}

func (sm *sinkMetrics) egress(event events.Event) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.Pending--
	pendingGauge.WithValues(sm.name).Dec(1)
}

// endpoints is global registry of endpoints used to report metrics to expvar
var endpoints struct {
	registered []*Endpoint
	mu         sync.Mutex
}

// register places the endpoint into expvar so that stats are tracked.
func register(e *Endpoint) {
	endpoints.mu.Lock()
	defer endpoints.mu.Unlock()

	endpoints.registered = append(endpoints.registered, e)
}

func init() {
	// Realtime queue state is reported through expvar next to the
	// prometheus counters.
	gateway := expvar.Get("extgateway")

	if gateway == nil {
		gateway = expvar.NewMap("extgateway")
	}

	var notifications expvar.Map
	notifications.Init()
	notifications.Set("endpoints", expvar.Func(func() any {
		endpoints.mu.Lock()
		defer endpoints.mu.Unlock()

		var names []any
		for _, v := range endpoints.registered {
			var epjson struct {
				Name string `json:"name"`
				URL  string `json:"url"`
				EndpointConfig

				Metrics EndpointMetrics
			}

			epjson.Name = v.Name()
			epjson.URL = v.URL()
			epjson.EndpointConfig = v.EndpointConfig

			v.ReadMetrics(&epjson.Metrics)

			names = append(names, epjson)
		}

		return names
	}))

	gateway.(*expvar.Map).Set("notifications", &notifications)

	// register prometheus metrics
	metrics.Register(prometheus.NotificationsNamespace)
}
