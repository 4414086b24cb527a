package paypal

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/souldream/billing-service/internal/domain"
)

func TestCreateSubscriptionSendsDeterministicRequestID(t *testing.T) {
	userID := uuid.New()
	planID := uuid.New()

	var requestID string
	client, _ := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		require.Equal(t, "/v1/billing/subscriptions", r.URL.Path)
		requestID = r.Header.Get("PayPal-Request-Id")
		return jsonResponse(http.StatusCreated, `{
			"id": "I-ABC123",
			"status": "APPROVAL_PENDING",
			"links": [
				{"href": "https://www.sandbox.paypal.com/approve?token=1", "rel": "approve", "method": "GET"},
				{"href": "https://api.sandbox.paypal.com/v1/billing/subscriptions/I-ABC123", "rel": "self", "method": "GET"}
			]
		}`), nil
	})

	resp, err := client.CreateSubscription(context.Background(), CreateSubscriptionParams{
		ProviderPlanID: "P-1",
		UserID:         userID,
		PlanID:         planID,
		ReturnURL:      "https://app.example.com/return",
		CancelURL:      "https://app.example.com/cancel",
	})

	require.NoError(t, err)
	assert.Equal(t, "I-ABC123", resp.ID)
	assert.Equal(t, "https://www.sandbox.paypal.com/approve?token=1", resp.ApprovalURL())
	assert.Equal(t, "sub-"+userID.String()+"-"+planID.String(), requestID)
}

func TestCreateProductAndPlanRequestIDs(t *testing.T) {
	plan := domain.Plan{
		ID:       uuid.New(),
		Name:     "pro",
		Price:    9.99,
		Currency: "usd",
		Interval: domain.PlanIntervalYear,
	}

	var productRequestID, planRequestID string
	var planBody map[string]interface{}
	client, _ := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		switch r.URL.Path {
		case "/v1/catalogs/products":
			productRequestID = r.Header.Get("PayPal-Request-Id")
			return jsonResponse(http.StatusCreated, `{"id":"PROD-1","name":"pro"}`), nil
		case "/v1/billing/plans":
			planRequestID = r.Header.Get("PayPal-Request-Id")
			body, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			require.NoError(t, json.Unmarshal(body, &planBody))
			return jsonResponse(http.StatusCreated, `{"id":"P-1","status":"ACTIVE"}`), nil
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
			return nil, nil
		}
	})

	productID, err := client.CreateProduct(context.Background(), plan)
	require.NoError(t, err)
	assert.Equal(t, "PROD-1", productID)
	assert.Equal(t, "product-"+plan.ID.String(), productRequestID)

	providerPlanID, err := client.CreatePlan(context.Background(), plan, productID)
	require.NoError(t, err)
	assert.Equal(t, "P-1", providerPlanID)
	assert.Equal(t, "plan-"+plan.ID.String(), planRequestID)

	// Цена форматируется в строку с двумя знаками, валюта в верхнем регистре
	cycles := planBody["billing_cycles"].([]interface{})
	pricing := cycles[0].(map[string]interface{})["pricing_scheme"].(map[string]interface{})
	fixedPrice := pricing["fixed_price"].(map[string]interface{})
	assert.Equal(t, "9.99", fixedPrice["value"])
	assert.Equal(t, "USD", fixedPrice["currency_code"])
}

func TestCaptureOrderRequestID(t *testing.T) {
	var requestID string
	client, _ := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		require.Equal(t, "/v2/checkout/orders/ORDER-1/capture", r.URL.Path)
		requestID = r.Header.Get("PayPal-Request-Id")
		return jsonResponse(http.StatusCreated, `{
			"id": "ORDER-1",
			"status": "COMPLETED",
			"purchase_units": [
				{"payments": {"captures": [{"id": "CAP-1", "status": "COMPLETED", "amount": {"currency_code": "USD", "value": "5.00"}}]}}
			]
		}`), nil
	})

	order, err := client.CaptureOrder(context.Background(), "ORDER-1")

	require.NoError(t, err)
	assert.Equal(t, "capture-ORDER-1", requestID)
	require.NotNil(t, order.FirstCapture())
	assert.Equal(t, "CAP-1", order.FirstCapture().ID)
}

func TestAPIErrorMapping(t *testing.T) {
	client, _ := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusUnprocessableEntity, `{"name":"UNPROCESSABLE_ENTITY","message":"The requested action could not be performed."}`), nil
	})

	_, err := client.GetSubscription(context.Background(), "I-MISSING")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
	assert.Equal(t, "UNPROCESSABLE_ENTITY", apiErr.Code)
	assert.Contains(t, apiErr.Error(), "UNPROCESSABLE_ENTITY")
}

func TestCancelSubscriptionAcceptsNoContent(t *testing.T) {
	client, _ := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		require.Equal(t, "/v1/billing/subscriptions/I-ABC123/cancel", r.URL.Path)
		return jsonResponse(http.StatusNoContent, ""), nil
	})

	err := client.CancelSubscription(context.Background(), "I-ABC123", "too expensive")
	assert.NoError(t, err)
}
