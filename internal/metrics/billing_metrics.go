package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/souldream/billing-service/pkg/logger"
)

// BillingMetrics интерфейс для метрик биллинга
type BillingMetrics interface {
	IncWebhookEvent(eventType, outcome string)
	IncSubscriptionTransition(status string)
	ObservePaymentAmount(amount float64, currency string)
}

type billingMetrics struct {
	log                     *logger.Logger
	webhookEvents           *prometheus.CounterVec
	subscriptionTransitions *prometheus.CounterVec
	paymentsAmount          *prometheus.HistogramVec
}

// NewBillingMetrics создает новые метрики биллинга
func NewBillingMetrics(registry *prometheus.Registry, log *logger.Logger) BillingMetrics {
	webhookEvents := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "The total number of processed webhook events by type and outcome",
		},
		[]string{"type", "outcome"},
	)

	subscriptionTransitions := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscription_transitions_total",
			Help: "The total number of subscription status transitions",
		},
		[]string{"status"},
	)

	paymentsAmount := promauto.With(registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payments_amount",
			Help:    "Payment amounts distribution",
			Buckets: prometheus.ExponentialBuckets(1, 10, 5),
		},
		[]string{"currency"},
	)

	return &billingMetrics{
		log:                     log,
		webhookEvents:           webhookEvents,
		subscriptionTransitions: subscriptionTransitions,
		paymentsAmount:          paymentsAmount,
	}
}

// IncWebhookEvent увеличивает счетчик вебхук-событий
func (m *billingMetrics) IncWebhookEvent(eventType, outcome string) {
	m.webhookEvents.WithLabelValues(eventType, outcome).Inc()
}

// IncSubscriptionTransition увеличивает счетчик переходов подписок
func (m *billingMetrics) IncSubscriptionTransition(status string) {
	m.subscriptionTransitions.WithLabelValues(status).Inc()
}

// ObservePaymentAmount записывает сумму платежа
func (m *billingMetrics) ObservePaymentAmount(amount float64, currency string) {
	m.paymentsAmount.WithLabelValues(currency).Observe(amount)
}
