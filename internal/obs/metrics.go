package obs

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// WebhookEvents counts deliveries by event kind and outcome
	// (accepted, unauthorized, skipped, failed).
	WebhookEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_webhook_events_total",
		Help: "Webhook deliveries by event kind and outcome.",
	}, []string{"kind", "outcome"})

	// WebhookDuration observes end-to-end webhook handling time.
	WebhookDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bridge_webhook_duration_seconds",
		Help:    "Webhook handling duration.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	// AuthTransitions counts challenge state machine results
	// (code_sent, verified, mismatch, expired, locked_out, tenant_selected, logout).
	AuthTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_auth_transitions_total",
		Help: "Auth challenge transitions by result.",
	}, []string{"result"})

	// BridgeWrites counts conversation records by origin.
	BridgeWrites = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_conversation_writes_total",
		Help: "Conversation log writes by origin.",
	}, []string{"origin"})

	// DedupHits counts inbound deliveries suppressed by the dedup window.
	DedupHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bridge_dedup_hits_total",
		Help: "Duplicate transport message ids suppressed.",
	})

	// TokensMinted counts business tokens issued.
	TokensMinted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bridge_business_tokens_minted_total",
		Help: "Business tokens minted.",
	})

	initOnce sync.Once
)

// Init registers all collectors with the default registry.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			WebhookEvents,
			WebhookDuration,
			AuthTransitions,
			BridgeWrites,
			DedupHits,
			TokensMinted,
		)
	})
}

// Handler serves the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
