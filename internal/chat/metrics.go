package chat

import "github.com/prometheus/client_golang/prometheus"

var (
	ConnectedClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chat_connected_clients",
		Help: "Number of clients with a registered name",
	})

	MessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_messages_total",
		Help: "Total lines fanned out by type",
	}, []string{"type"})

	NameRejections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_name_rejections_total",
		Help: "Name proposals refused during negotiation",
	}, []string{"reason"})

	OutboxOverflows = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_outbox_overflows_total",
		Help: "Clients disconnected for letting their outbox exceed its limit",
	})

	AcceptErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_accept_errors_total",
		Help: "Non-fatal errors returned by the listener",
	})

	DeliveryDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chat_delivery_seconds",
		Help:    "Time to fan a line out to its recipients",
		Buckets: prometheus.DefBuckets,
	}, []string{"type"})
)

func init() {
	prometheus.MustRegister(ConnectedClients)
	prometheus.MustRegister(MessagesTotal)
	prometheus.MustRegister(NameRejections)
	prometheus.MustRegister(OutboxOverflows)
	prometheus.MustRegister(AcceptErrors)
	prometheus.MustRegister(DeliveryDuration)
}
