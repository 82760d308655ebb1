package observability

import (
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/yungbote/retroboard-backend/internal/platform/logger"
)

type Metrics struct {
	apiRequests   *CounterVec
	apiLatency    *HistogramVec
	apiInflight   *GaugeVec
	storeOps      *CounterVec
	storeLatency  *HistogramVec
	storeRetries  *CounterVec
	mutations     *CounterVec
	busPublished  *CounterVec
	busDelivered  *CounterVec
	busDropped    *CounterVec
	busSubscribed *GaugeVec
}

var (
	initOnce sync.Once
	instance *Metrics
)

// Init installs the process-wide metrics registry. It returns nil when
// metrics are disabled; every Metrics method is nil-safe.
func Init(log *logger.Logger, enabled bool) *Metrics {
	if !enabled {
		return nil
	}
	initOnce.Do(func() {
		instance = NewMetrics()
		if log != nil {
			log.Info("metrics enabled")
		}
	})
	return instance
}

func Current() *Metrics {
	return instance
}

func NewMetrics() *Metrics {
	return &Metrics{
		apiRequests:   NewCounterVec("retro_api_requests_total", "HTTP requests by method, route and status.", []string{"method", "route", "status"}),
		apiLatency:    NewHistogramVec("retro_api_request_duration_seconds", "HTTP request latency.", []string{"method", "route"}, nil),
		apiInflight:   NewGaugeVec("retro_api_inflight_requests", "HTTP requests in flight.", nil),
		storeOps:      NewCounterVec("retro_store_operations_total", "Store operations by backend, operation and status.", []string{"backend", "operation", "status"}),
		storeLatency:  NewHistogramVec("retro_store_operation_duration_seconds", "Store operation latency.", []string{"backend", "operation"}, nil),
		storeRetries:  NewCounterVec("retro_store_retries_total", "Retried store operations.", []string{"operation"}),
		mutations:     NewCounterVec("retro_mutations_total", "Retro service operations by operation and outcome.", []string{"operation", "status"}),
		busPublished:  NewCounterVec("retro_bus_published_total", "Events published per topic.", []string{"topic"}),
		busDelivered:  NewCounterVec("retro_bus_delivered_total", "Events enqueued to subscribers per topic.", []string{"topic"}),
		busDropped:    NewCounterVec("retro_bus_dropped_total", "Events dropped for lagging subscribers per topic.", []string{"topic"}),
		busSubscribed: NewGaugeVec("retro_bus_subscribers", "Live subscribers per topic.", []string{"topic"}),
	}
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Add(1)
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Add(-1)
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route)
}

func (m *Metrics) ObserveStoreOperation(backend, operation, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.storeOps.Inc(backend, operation, status)
	m.storeLatency.Observe(dur.Seconds(), backend, operation)
}

func (m *Metrics) IncStoreRetry(operation string) {
	if m == nil {
		return
	}
	m.storeRetries.Inc(operation)
}

func (m *Metrics) IncMutation(operation, status string) {
	if m == nil {
		return
	}
	m.mutations.Inc(operation, status)
}

func (m *Metrics) IncBusPublished(topic string) {
	if m == nil {
		return
	}
	m.busPublished.Inc(topic)
}

func (m *Metrics) IncBusDelivered(topic string) {
	if m == nil {
		return
	}
	m.busDelivered.Inc(topic)
}

func (m *Metrics) IncBusDropped(topic string) {
	if m == nil {
		return
	}
	m.busDropped.Inc(topic)
}

func (m *Metrics) AddBusSubscribers(topic string, delta int) {
	if m == nil {
		return
	}
	m.busSubscribed.Add(float64(delta), topic)
}

func (m *Metrics) BusDropped(topic string) float64 {
	if m == nil {
		return 0
	}
	return m.busDropped.Value(topic)
}

func (m *Metrics) StoreOperations(backend, operation, status string) float64 {
	if m == nil {
		return 0
	}
	return m.storeOps.Value(backend, operation, status)
}

func (m *Metrics) Mutations(operation, status string) float64 {
	if m == nil {
		return 0
	}
	return m.mutations.Value(operation, status)
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	families := []interface{ WritePrometheus(io.Writer) error }{
		m.apiRequests,
		m.apiLatency,
		m.apiInflight,
		m.storeOps,
		m.storeLatency,
		m.storeRetries,
		m.mutations,
		m.busPublished,
		m.busDelivered,
		m.busDropped,
		m.busSubscribed,
	}
	for _, f := range families {
		if err := f.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}
