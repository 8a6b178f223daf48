package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of the admin service and bot.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	DirectoryRefreshTotal *prometheus.CounterVec
	DirectoryRecords      prometheus.Gauge
	UsernameProbes        prometheus.Histogram

	AccountsCreatedTotal   *prometheus.CounterVec
	WebhookDeliveriesTotal *prometheus.CounterVec
}

// New creates and registers all collectors on registry.
func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: registry,
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authentik_admin_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "authentik_admin_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		DirectoryRefreshTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authentik_admin_directory_refresh_total",
				Help: "Directory refreshes by result",
			},
			[]string{"result"},
		),
		DirectoryRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "authentik_admin_directory_records",
			Help: "Records in the current directory snapshot",
		}),
		UsernameProbes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "authentik_admin_username_probes",
			Help:    "Suffix probes needed to find a free username",
			Buckets: []float64{0, 1, 2, 3, 5, 10, 25},
		}),
		AccountsCreatedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authentik_admin_accounts_created_total",
				Help: "Accounts provisioned by origin",
			},
			[]string{"origin"},
		),
		WebhookDeliveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authentik_admin_webhook_deliveries_total",
				Help: "Webhook deliveries by event and result",
			},
			[]string{"event", "result"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.DirectoryRefreshTotal,
		m.DirectoryRecords,
		m.UsernameProbes,
		m.AccountsCreatedTotal,
		m.WebhookDeliveriesTotal,
	)

	return m
}

// NewNop returns collectors registered on a private registry, for tests and tools.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// The recording helpers below accept a nil receiver so components can run
// without metrics.

// ObserveRequest records one served HTTP request under its route pattern.
func (m *Metrics) ObserveRequest(method, route string, status int, latency time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(latency.Seconds())
}

func (m *Metrics) RefreshSucceeded(records int) {
	if m == nil {
		return
	}
	m.DirectoryRefreshTotal.WithLabelValues("ok").Inc()
	m.DirectoryRecords.Set(float64(records))
}

func (m *Metrics) RefreshFailed(reason string) {
	if m == nil {
		return
	}
	m.DirectoryRefreshTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) SnapshotSize(records int) {
	if m == nil {
		return
	}
	m.DirectoryRecords.Set(float64(records))
}

func (m *Metrics) Resolved(probes int) {
	if m == nil {
		return
	}
	m.UsernameProbes.Observe(float64(probes))
}

func (m *Metrics) AccountCreated(origin string) {
	if m == nil {
		return
	}
	m.AccountsCreatedTotal.WithLabelValues(origin).Inc()
}

func (m *Metrics) WebhookDelivered(event string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.WebhookDeliveriesTotal.WithLabelValues(event, result).Inc()
}
