package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	WebhookMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_messages_received_total",
			Help: "Total number of inbound messages stored, by message type",
		},
		[]string{"type"},
	)

	WebhookStatuses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_status_updates_total",
			Help: "Total number of delivery status notifications observed",
		},
		[]string{"status"},
	)

	WebhookRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_rejected_total",
			Help: "Webhook callbacks, messages or status lists that were not processed",
		},
		[]string{"reason"},
	)

	OutboundSends = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbound_messages_total",
			Help: "Outbound send attempts relayed to the Graph API, by result",
		},
		[]string{"result"},
	)

	OutboundLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "outbound_request_duration_seconds",
			Help:    "Latency of Graph API send requests",
			Buckets: prometheus.DefBuckets,
		},
	)

	HistorySize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "history_messages",
			Help: "Number of messages currently held in memory",
		},
	)
)

// Init registers metrics with Prometheus
func Init() {
	prometheus.MustRegister(WebhookMessages)
	prometheus.MustRegister(WebhookStatuses)
	prometheus.MustRegister(WebhookRejected)
	prometheus.MustRegister(OutboundSends)
	prometheus.MustRegister(OutboundLatency)
	prometheus.MustRegister(HistorySize)
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
