package service

import (
	"context"

	"github.com/souldream/billing-service/internal/domain"
	"github.com/souldream/billing-service/internal/integration/paypal"
)

// ProviderGateway операции платежного провайдера, нужные жизненному
// циклу подписок. Реализуется клиентом PayPal; в тестах подменяется.
type ProviderGateway interface {
	CreateProduct(ctx context.Context, plan domain.Plan) (string, error)
	CreatePlan(ctx context.Context, plan domain.Plan, productID string) (string, error)
	CreateSubscription(ctx context.Context, params paypal.CreateSubscriptionParams) (*paypal.SubscriptionResponse, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*paypal.SubscriptionResponse, error)
	CancelSubscription(ctx context.Context, subscriptionID, reason string) error
	SuspendSubscription(ctx context.Context, subscriptionID, reason string) error
	ActivateSubscription(ctx context.Context, subscriptionID string) error
}

// OrderGateway операции провайдера для разовых платежей
type OrderGateway interface {
	CreateOrder(ctx context.Context, amount float64, currency, description string) (*paypal.OrderResponse, error)
	CaptureOrder(ctx context.Context, orderID string) (*paypal.OrderResponse, error)
}

// WebhookVerifier проверка подлинности вебхук-событий провайдера
type WebhookVerifier interface {
	VerifyWebhookSignature(ctx context.Context, headers domain.WebhookHeaders, body []byte) (bool, error)
}
