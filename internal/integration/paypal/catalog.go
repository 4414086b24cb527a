package paypal

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/souldream/billing-service/internal/domain"
)

// productRequest запрос на создание товара каталога
type productRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Type        string `json:"type"`
	Category    string `json:"category"`
}

// billingCycle платежный цикл тарифного плана
type billingCycle struct {
	Frequency     frequency     `json:"frequency"`
	TenureType    string        `json:"tenure_type"`
	Sequence      int           `json:"sequence"`
	TotalCycles   int           `json:"total_cycles"`
	PricingScheme pricingScheme `json:"pricing_scheme"`
}

type frequency struct {
	IntervalUnit  string `json:"interval_unit"`
	IntervalCount int    `json:"interval_count"`
}

type pricingScheme struct {
	FixedPrice Money `json:"fixed_price"`
}

// paymentPreferences настройки списаний тарифного плана
type paymentPreferences struct {
	AutoBillOutstanding     bool `json:"auto_bill_outstanding"`
	PaymentFailureThreshold int  `json:"payment_failure_threshold"`
}

// planRequest запрос на создание тарифного плана
type planRequest struct {
	ProductID          string             `json:"product_id"`
	Name               string             `json:"name"`
	Description        string             `json:"description,omitempty"`
	Status             string             `json:"status"`
	BillingCycles      []billingCycle     `json:"billing_cycles"`
	PaymentPreferences paymentPreferences `json:"payment_preferences"`
}

// CreateProduct создает товар каталога для тарифного плана.
// Заголовок PayPal-Request-Id детерминирован относительно плана:
// параллельные запросы на один план сойдутся в один товар.
func (c *Client) CreateProduct(ctx context.Context, plan domain.Plan) (string, error) {
	c.log.Debug("Creating PayPal product for plan %s", plan.ID)

	req := productRequest{
		Name:        plan.Name,
		Description: plan.Description,
		Type:        "SERVICE",
		Category:    "SOFTWARE",
	}

	var resp ProductResponse
	requestID := "product-" + plan.ID.String()
	if err := c.doJSON(ctx, http.MethodPost, "/v1/catalogs/products", requestID, req, &resp); err != nil {
		return "", err
	}

	c.log.Info("PayPal product created: %s for plan %s", resp.ID, plan.ID)
	return resp.ID, nil
}

// CreatePlan создает тарифный план в биллинге PayPal
func (c *Client) CreatePlan(ctx context.Context, plan domain.Plan, productID string) (string, error) {
	c.log.Debug("Creating PayPal billing plan for plan %s", plan.ID)

	intervalUnit := "MONTH"
	if plan.Interval == domain.PlanIntervalYear {
		intervalUnit = "YEAR"
	}

	req := planRequest{
		ProductID:   productID,
		Name:        plan.Name,
		Description: plan.Description,
		Status:      "ACTIVE",
		BillingCycles: []billingCycle{
			{
				Frequency:  frequency{IntervalUnit: intervalUnit, IntervalCount: 1},
				TenureType: "REGULAR",
				Sequence:   1,
				// 0 означает списания до отмены подписки
				TotalCycles: 0,
				PricingScheme: pricingScheme{
					FixedPrice: Money{
						CurrencyCode: strings.ToUpper(plan.Currency),
						Value:        strconv.FormatFloat(plan.Price, 'f', 2, 64),
					},
				},
			},
		},
		PaymentPreferences: paymentPreferences{
			AutoBillOutstanding:     true,
			PaymentFailureThreshold: 3,
		},
	}

	var resp PlanResponse
	requestID := "plan-" + plan.ID.String()
	if err := c.doJSON(ctx, http.MethodPost, "/v1/billing/plans", requestID, req, &resp); err != nil {
		return "", err
	}

	c.log.Info("PayPal billing plan created: %s for plan %s", resp.ID, plan.ID)
	return resp.ID, nil
}
