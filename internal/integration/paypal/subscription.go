package paypal

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// CreateSubscriptionParams параметры создания подписки PayPal
type CreateSubscriptionParams struct {
	ProviderPlanID string
	UserID         uuid.UUID
	PlanID         uuid.UUID
	ReturnURL      string
	CancelURL      string
}

// applicationContext настройки страницы подтверждения PayPal
type applicationContext struct {
	BrandName          string `json:"brand_name,omitempty"`
	UserAction         string `json:"user_action,omitempty"`
	ReturnURL          string `json:"return_url"`
	CancelURL          string `json:"cancel_url"`
	ShippingPreference string `json:"shipping_preference,omitempty"`
}

// subscriptionRequest запрос на создание подписки
type subscriptionRequest struct {
	PlanID             string             `json:"plan_id"`
	CustomID           string             `json:"custom_id,omitempty"`
	ApplicationContext applicationContext `json:"application_context"`
}

// reasonRequest тело запросов cancel и suspend
type reasonRequest struct {
	Reason string `json:"reason,omitempty"`
}

// CreateSubscription создает подписку PayPal в статусе APPROVAL_PENDING.
// Заголовок PayPal-Request-Id детерминирован относительно пары
// пользователь-план: повторная попытка оформить ту же подписку
// не породит дубликат у провайдера.
func (c *Client) CreateSubscription(ctx context.Context, params CreateSubscriptionParams) (*SubscriptionResponse, error) {
	c.log.Debug("Creating PayPal subscription: plan %s, user %s", params.ProviderPlanID, params.UserID)

	req := subscriptionRequest{
		PlanID:   params.ProviderPlanID,
		CustomID: params.UserID.String(),
		ApplicationContext: applicationContext{
			BrandName:          c.brandName,
			UserAction:         "SUBSCRIBE_NOW",
			ReturnURL:          params.ReturnURL,
			CancelURL:          params.CancelURL,
			ShippingPreference: "NO_SHIPPING",
		},
	}

	var resp SubscriptionResponse
	requestID := "sub-" + params.UserID.String() + "-" + params.PlanID.String()
	if err := c.doJSON(ctx, http.MethodPost, "/v1/billing/subscriptions", requestID, req, &resp); err != nil {
		return nil, err
	}

	c.log.Info("PayPal subscription created: %s, status: %s", resp.ID, resp.Status)
	return &resp, nil
}

// GetSubscription возвращает текущее состояние подписки PayPal
func (c *Client) GetSubscription(ctx context.Context, subscriptionID string) (*SubscriptionResponse, error) {
	var resp SubscriptionResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v1/billing/subscriptions/"+subscriptionID, "", nil, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

// CancelSubscription отменяет подписку PayPal. Успешный ответ — 204 без тела.
func (c *Client) CancelSubscription(ctx context.Context, subscriptionID, reason string) error {
	c.log.Debug("Cancelling PayPal subscription: %s", subscriptionID)

	if reason == "" {
		reason = "Cancelled by user"
	}

	path := "/v1/billing/subscriptions/" + subscriptionID + "/cancel"
	if err := c.doJSON(ctx, http.MethodPost, path, "", reasonRequest{Reason: reason}, nil); err != nil {
		return err
	}

	c.log.Info("PayPal subscription cancelled: %s", subscriptionID)
	return nil
}

// SuspendSubscription приостанавливает подписку PayPal
func (c *Client) SuspendSubscription(ctx context.Context, subscriptionID, reason string) error {
	c.log.Debug("Suspending PayPal subscription: %s", subscriptionID)

	if reason == "" {
		reason = "Suspended by user"
	}

	path := "/v1/billing/subscriptions/" + subscriptionID + "/suspend"
	if err := c.doJSON(ctx, http.MethodPost, path, "", reasonRequest{Reason: reason}, nil); err != nil {
		return err
	}

	c.log.Info("PayPal subscription suspended: %s", subscriptionID)
	return nil
}

// ActivateSubscription возобновляет приостановленную подписку PayPal
func (c *Client) ActivateSubscription(ctx context.Context, subscriptionID string) error {
	c.log.Debug("Activating PayPal subscription: %s", subscriptionID)

	path := "/v1/billing/subscriptions/" + subscriptionID + "/activate"
	if err := c.doJSON(ctx, http.MethodPost, path, "", reasonRequest{Reason: "Reactivated by user"}, nil); err != nil {
		return err
	}

	c.log.Info("PayPal subscription activated: %s", subscriptionID)
	return nil
}
