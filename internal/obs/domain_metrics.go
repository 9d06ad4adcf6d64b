package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// OrdersFinalizedTotal counts order finalization outcomes by result
	// (created, already_finalized, no_cart, error).
	OrdersFinalizedTotal *prometheus.CounterVec
	// PaymentWebhookTotal counts inbound payment webhook processing outcomes.
	PaymentWebhookTotal *prometheus.CounterVec
	// OrderTotalMismatchTotal counts finalizations whose computed total
	// diverged from the processor-reported charged amount.
	OrderTotalMismatchTotal prometheus.Counter
	// VendorPricingTotal counts outbound vendor pricing call outcomes.
	VendorPricingTotal *prometheus.CounterVec
	// LoyaltyAdjustTotal counts wallet adjustments by result.
	LoyaltyAdjustTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		OrdersFinalizedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_finalized_total",
			Help:      "Count of order finalization attempts by outcome.",
		}, []string{"result"})
		PaymentWebhookTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_webhook_total",
			Help:      "Count of processed payment webhooks by outcome.",
		}, []string{"provider", "result"})
		OrderTotalMismatchTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_total_mismatch_total",
			Help:      "Finalizations where the computed total differed from the charged amount.",
		})
		VendorPricingTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vendor_pricing_total",
			Help:      "Count of vendor pricing API calls by outcome.",
		}, []string{"result"})
		LoyaltyAdjustTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loyalty_adjust_total",
			Help:      "Count of loyalty wallet adjustments by outcome.",
		}, []string{"result"})

		registerDomainCollector(reg, OrdersFinalizedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				OrdersFinalizedTotal = v
			}
		})
		registerDomainCollector(reg, PaymentWebhookTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				PaymentWebhookTotal = v
			}
		})
		registerDomainCollector(reg, OrderTotalMismatchTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				OrderTotalMismatchTotal = v
			}
		})
		registerDomainCollector(reg, VendorPricingTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				VendorPricingTotal = v
			}
		})
		registerDomainCollector(reg, LoyaltyAdjustTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				LoyaltyAdjustTotal = v
			}
		})
	})
}

func registerDomainCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
