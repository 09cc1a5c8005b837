package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rl1809/stock-ledger/internal/core/domain"
)

// Metrics groups every collector the service exports. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	adjustments     *prometheus.CounterVec
	lockRetries     prometheus.Counter
	syncDropped     prometheus.Counter
	productQuantity *prometheus.GaugeVec
	gatherer        prometheus.Gatherer
}

// New registers the collectors on reg. Pass prometheus.NewRegistry() in tests
// to avoid duplicate registration on the default registry.
func New(reg *prometheus.Registry, namespace string) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		requestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		requestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		adjustments: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_adjustments_total",
			Help:      "Stock adjustments by direction and outcome",
		}, []string{"direction", "outcome"}),
		lockRetries: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_optimistic_retries_total",
			Help:      "Adjust attempts retried after a version conflict",
		}),
		syncDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_sync_dropped_total",
			Help:      "Stock mirror updates dropped because the sync queue was full",
		}),
		productQuantity: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stock_product_quantity",
			Help:      "Last committed quantity per product",
		}, []string{"product_id"}),
		gatherer: reg,
	}
}

func (m *Metrics) ObserveRequest(method, path string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

// ObserveAdjust counts one adjust call; outcome is "ok" or the error kind.
// Unknown directions share the "invalid" label.
func (m *Metrics) ObserveAdjust(direction domain.Direction, err error) {
	if m == nil {
		return
	}
	label := string(direction)
	if !direction.Valid() {
		label = "invalid"
	}
	outcome := "ok"
	if err != nil {
		outcome = string(domain.KindOf(err))
	}
	m.adjustments.WithLabelValues(label, outcome).Inc()
}

func (m *Metrics) ObserveRetry() {
	if m == nil {
		return
	}
	m.lockRetries.Inc()
}

func (m *Metrics) ObserveSyncDrop() {
	if m == nil {
		return
	}
	m.syncDropped.Inc()
}

func (m *Metrics) SetQuantity(productID int64, quantity int) {
	if m == nil {
		return
	}
	m.productQuantity.WithLabelValues(strconv.FormatInt(productID, 10)).Set(float64(quantity))
}

func (m *Metrics) DeleteQuantity(productID int64) {
	if m == nil {
		return
	}
	m.productQuantity.DeleteLabelValues(strconv.FormatInt(productID, 10))
}

// Handler exposes the registry in the prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
