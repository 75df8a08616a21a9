package infra

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Live-канал: поток событий и здоровье соединения
	EventsTotal     *prometheus.CounterVec // по kind
	FramesDropped   prometheus.Counter     // битые кадры
	Reconnects      prometheus.Counter
	ConnectionState prometheus.Gauge // 0 - disconnected, 1 - connecting, 2 - connected

	// Поллер: латентность и отказы по ресурсам
	FetchDuration *prometheus.HistogramVec // ресурс + статус
	FetchErrors   *prometheus.CounterVec
	TicksSkipped  *prometheus.CounterVec // тик пришел при незавершенном запросе

	// Saturation: состояние Circuit Breaker фетчера (0 - ок, 1 - выбило)
	CircuitBreakerState *prometheus.GaugeVec

	// Уведомления и журнал
	NotificationsTotal *prometheus.CounterVec // по severity
	AuditBufferFill    prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern - Если рег не передан, используем локальный, который никуда не подключен
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		EventsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "pulse_channel_events_total",
			Help: "Total number of parsed live channel events.",
		}, []string{"kind"}),

		FramesDropped: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "pulse_channel_frames_dropped_total",
			Help: "Total number of malformed frames dropped.",
		}),

		Reconnects: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "pulse_channel_reconnects_total",
			Help: "Total number of live channel reconnect cycles.",
		}),

		ConnectionState: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "pulse_channel_connection_state",
			Help: "Current connection state (0=disconnected, 1=connecting, 2=connected).",
		}),

		FetchDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pulse_poller_fetch_duration_seconds",
			Help:    "Histogram of resource fetch latencies.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"resource", "status"}),

		FetchErrors: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "pulse_poller_fetch_errors_total",
			Help: "Total number of failed resource fetches.",
		}, []string{"resource"}),

		TicksSkipped: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "pulse_poller_ticks_skipped_total",
			Help: "Ticks skipped because the previous fetch was still in flight.",
		}, []string{"resource"}),

		CircuitBreakerState: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "pulse_poller_circuit_breaker_state",
			Help: "Current state of the fetcher circuit breaker (0=closed, 1=open).",
		}, []string{"resource"}),

		NotificationsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "pulse_notifications_total",
			Help: "Total number of raised notifications by severity.",
		}, []string{"severity"}),

		AuditBufferFill: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "pulse_audit_buffer_utilization",
			Help: "Current number of events in the audit buffer.",
		}),
	}
}
