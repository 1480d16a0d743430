package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "wa_webhook_deliveries_total", Help: "Webhook deliveries by outcome"},
		[]string{"outcome"},
	)
	InboundMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "wa_inbound_messages_total", Help: "Ingested inbound messages"},
		[]string{"type", "result"},
	)
	OutboundSends = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "wa_outbound_sends_total", Help: "Outbound send outcomes"},
		[]string{"kind", "result"},
	)
	WindowRejections = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "wa_window_rejections_total", Help: "Free-form sends rejected outside the messaging window"},
	)
	MediaFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "wa_media_fetches_total", Help: "Media fetch-and-persist outcomes"},
		[]string{"result"},
	)
	SendLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "wa_send_latency_seconds", Help: "Provider send latency"},
	)
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(WebhookDeliveries, InboundMessages, OutboundSends, WindowRejections, MediaFetches, SendLatency)
}
