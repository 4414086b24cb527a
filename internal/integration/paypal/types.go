package paypal

import (
	"fmt"
	"time"
)

// APIError ошибка API PayPal
type APIError struct {
	Status  int
	Code    string
	Message string
}

// Error возвращает строковое представление ошибки
func (e *APIError) Error() string {
	return fmt.Sprintf("paypal: %d %s: %s", e.Status, e.Code, e.Message)
}

// errorResponse тело ошибки REST API PayPal
type errorResponse struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// Link HATEOAS-ссылка в ответах PayPal
type Link struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method"`
}

// Money денежная сумма в запросах и ответах PayPal
type Money struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

// ProductResponse ответ на создание товара каталога
type ProductResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PlanResponse ответ на создание тарифного плана
type PlanResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// SubscriptionBillingInfo платежная информация подписки
type SubscriptionBillingInfo struct {
	NextBillingTime *time.Time `json:"next_billing_time,omitempty"`
}

// SubscriptionResponse ответ API подписок PayPal
type SubscriptionResponse struct {
	ID          string                   `json:"id"`
	Status      string                   `json:"status"`
	PlanID      string                   `json:"plan_id,omitempty"`
	BillingInfo *SubscriptionBillingInfo `json:"billing_info,omitempty"`
	Links       []Link                   `json:"links,omitempty"`
}

// ApprovalURL возвращает ссылку на страницу подтверждения подписки.
// Пустая строка означает, что PayPal не вернул ссылку approve.
func (s *SubscriptionResponse) ApprovalURL() string {
	for _, link := range s.Links {
		if link.Rel == "approve" {
			return link.Href
		}
	}
	return ""
}

// CaptureDetails списание в составе заказа
type CaptureDetails struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Amount *Money `json:"amount,omitempty"`
}

// PaymentsDetails платежи по единице заказа
type PaymentsDetails struct {
	Captures []CaptureDetails `json:"captures,omitempty"`
}

// PurchaseUnitResponse единица заказа в ответе PayPal
type PurchaseUnitResponse struct {
	Payments *PaymentsDetails `json:"payments,omitempty"`
}

// OrderResponse ответ API заказов PayPal
type OrderResponse struct {
	ID            string                 `json:"id"`
	Status        string                 `json:"status"`
	PurchaseUnits []PurchaseUnitResponse `json:"purchase_units,omitempty"`
	Links         []Link                 `json:"links,omitempty"`
}

// ApprovalURL возвращает ссылку на страницу подтверждения заказа
func (o *OrderResponse) ApprovalURL() string {
	for _, link := range o.Links {
		if link.Rel == "approve" || link.Rel == "payer-action" {
			return link.Href
		}
	}
	return ""
}

// FirstCapture возвращает первое списание заказа, если оно есть
func (o *OrderResponse) FirstCapture() *CaptureDetails {
	for _, unit := range o.PurchaseUnits {
		if unit.Payments != nil && len(unit.Payments.Captures) > 0 {
			return &unit.Payments.Captures[0]
		}
	}
	return nil
}
