// Package metrics exposes Prometheus metrics for the secure-link core.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics
type Metrics struct {
	CredentialsMinted     *prometheus.CounterVec
	CredentialsClaimed    prometheus.Counter
	CredentialsRedeemed   prometheus.Counter
	RedemptionsDenied     *prometheus.CounterVec
	InsufficientInventory prometheus.Counter
	FulfillmentReplays    prometheus.Counter
	NotificationFailures  prometheus.Counter
}

// New creates and registers all metrics on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CredentialsMinted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "securelink_credentials_minted_total",
			Help: "Total credentials minted, by class",
		}, []string{"class"}),
		CredentialsClaimed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "securelink_credentials_claimed_total",
			Help: "Total pool credentials claimed for customer purchases",
		}),
		CredentialsRedeemed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "securelink_credentials_redeemed_total",
			Help: "Total successful redemptions",
		}),
		RedemptionsDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "securelink_redemptions_denied_total",
			Help: "Redemption attempts denied, by reason",
		}, []string{"reason"}),
		InsufficientInventory: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "securelink_insufficient_inventory_total",
			Help: "Allocations rejected because the pool could not satisfy the quantity",
		}),
		FulfillmentReplays: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "securelink_fulfillment_replays_total",
			Help: "Webhook deliveries answered from the idempotency ledger",
		}),
		NotificationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "securelink_notification_failures_total",
			Help: "Fulfillment emails that could not be dispatched",
		}),
	}

	reg.MustRegister(
		m.CredentialsMinted,
		m.CredentialsClaimed,
		m.CredentialsRedeemed,
		m.RedemptionsDenied,
		m.InsufficientInventory,
		m.FulfillmentReplays,
		m.NotificationFailures,
	)

	return m
}

// NewNop returns metrics registered on a throwaway registry, for tests.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
