package paypal

import (
	"context"
	"net/http"
	"strconv"
	"strings"
)

// purchaseUnit единица заказа в запросе на создание
type purchaseUnit struct {
	Amount      Money  `json:"amount"`
	Description string `json:"description,omitempty"`
}

// orderRequest запрос на создание заказа
type orderRequest struct {
	Intent        string         `json:"intent"`
	PurchaseUnits []purchaseUnit `json:"purchase_units"`
}

// CreateOrder создает разовый заказ с intent CAPTURE
func (c *Client) CreateOrder(ctx context.Context, amount float64, currency, description string) (*OrderResponse, error) {
	c.log.Debug("Creating PayPal order: %.2f %s", amount, currency)

	req := orderRequest{
		Intent: "CAPTURE",
		PurchaseUnits: []purchaseUnit{
			{
				Amount: Money{
					CurrencyCode: strings.ToUpper(currency),
					Value:        strconv.FormatFloat(amount, 'f', 2, 64),
				},
				Description: description,
			},
		},
	}

	var resp OrderResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v2/checkout/orders", "", req, &resp); err != nil {
		return nil, err
	}

	c.log.Info("PayPal order created: %s, status: %s", resp.ID, resp.Status)
	return &resp, nil
}

// CaptureOrder списывает средства по подтвержденному заказу.
// Повторное списание того же заказа идемпотентно благодаря
// детерминированному PayPal-Request-Id.
func (c *Client) CaptureOrder(ctx context.Context, orderID string) (*OrderResponse, error) {
	c.log.Debug("Capturing PayPal order: %s", orderID)

	var resp OrderResponse
	requestID := "capture-" + orderID
	if err := c.doJSON(ctx, http.MethodPost, "/v2/checkout/orders/"+orderID+"/capture", requestID, struct{}{}, &resp); err != nil {
		return nil, err
	}

	c.log.Info("PayPal order captured: %s, status: %s", resp.ID, resp.Status)
	return &resp, nil
}
