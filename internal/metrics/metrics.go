// Package metrics exposes the bot's Prometheus counters. They are registered
// on the default registry and served by the app's /metrics endpoint.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CodesIssued counts newly issued promo codes (idempotent repeats are
	// not counted).
	CodesIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "promobot_codes_issued_total",
		Help: "Number of promo codes issued.",
	})

	// CodesRedeemed counts successful first redemptions.
	CodesRedeemed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "promobot_codes_redeemed_total",
		Help: "Number of promo codes redeemed.",
	})

	// RedemptionsRejected counts redemption attempts that ended in a
	// business rejection, labeled by reason (not_found, already_redeemed).
	RedemptionsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "promobot_redemptions_rejected_total",
		Help: "Number of rejected redemption attempts by reason.",
	}, []string{"reason"})

	// SweepUnsubscribed counts users stamped as unsubscribed by the
	// reconciliation sweep.
	SweepUnsubscribed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "promobot_sweep_unsubscribed_total",
		Help: "Number of users marked unsubscribed by the reconciliation sweep.",
	})

	// UpdatesHandled counts inbound Telegram updates by kind.
	UpdatesHandled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "promobot_updates_handled_total",
		Help: "Number of Telegram updates handled by kind.",
	}, []string{"kind"})
)

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
