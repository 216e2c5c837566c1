// Package metrics registers the fulfillment Prometheus collectors.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	OrderTransitions *prometheus.CounterVec   // from, to
	RefundsTotal     *prometheus.CounterVec   // method, trigger, result
	PromoValidations *prometheus.CounterVec   // result
	WalletEntries    *prometheus.CounterVec   // type, reason
	GatewayDuration  *prometheus.HistogramVec // op, result
	ReconcileRuns    *prometheus.CounterVec   // result
}

var (
	once sync.Once
	m    *Metrics
)

// Get returns the process-wide collectors, registering them on first use.
func Get() *Metrics {
	once.Do(func() {
		m = &Metrics{
			OrderTransitions: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "fulfillment_order_transitions_total",
					Help: "Committed order status transitions",
				},
				[]string{"from", "to"},
			),
			RefundsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "fulfillment_refunds_total",
					Help: "Refund attempts by method, trigger and result",
				},
				[]string{"method", "trigger", "result"},
			),
			PromoValidations: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "fulfillment_promo_validations_total",
					Help: "Promo code validations by result",
				},
				[]string{"result"},
			),
			WalletEntries: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "fulfillment_wallet_entries_total",
					Help: "Wallet ledger entries appended",
				},
				[]string{"type", "reason"},
			),
			GatewayDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "fulfillment_gateway_request_duration_seconds",
					Help:    "Payment gateway call latency",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"op", "result"},
			),
			ReconcileRuns: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "fulfillment_reconcile_orders_total",
					Help: "Orders visited by the refund reconciler by outcome",
				},
				[]string{"result"},
			),
		}
	})
	return m
}

func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
