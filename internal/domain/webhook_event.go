package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Типы событий PayPal, которые обрабатывает сервис.
// Неизвестные типы подтверждаются без обработки.
const (
	EventTypeSubscriptionCreated   = "BILLING.SUBSCRIPTION.CREATED"
	EventTypeSubscriptionActivated = "BILLING.SUBSCRIPTION.ACTIVATED"
	EventTypeSubscriptionCancelled = "BILLING.SUBSCRIPTION.CANCELLED"
	EventTypeSubscriptionSuspended = "BILLING.SUBSCRIPTION.SUSPENDED"
	EventTypeSubscriptionExpired   = "BILLING.SUBSCRIPTION.EXPIRED"
	EventTypePaymentSaleCompleted  = "PAYMENT.SALE.COMPLETED"
	EventTypeCaptureCompleted      = "PAYMENT.CAPTURE.COMPLETED"
)

// ProviderEvent входящий конверт события PayPal
type ProviderEvent struct {
	ID         string          `json:"id"`
	EventType  string          `json:"event_type"`
	CreateTime time.Time       `json:"create_time"`
	Resource   json.RawMessage `json:"resource"`
}

// WebhookHeaders заголовки PayPal, необходимые для проверки подписи.
// Все пять значений обязательны: при отсутствии любого из них проверка
// завершается отказом без обращения к сети.
type WebhookHeaders struct {
	TransmissionID   string
	TransmissionTime string
	TransmissionSig  string
	CertURL          string
	AuthAlgo         string
}

// Complete сообщает, присутствуют ли все обязательные заголовки
func (h WebhookHeaders) Complete() bool {
	return h.TransmissionID != "" &&
		h.TransmissionTime != "" &&
		h.TransmissionSig != "" &&
		h.CertURL != "" &&
		h.AuthAlgo != ""
}

// Money денежная сумма в ответах PayPal
type Money struct {
	Value        string `json:"value"`
	CurrencyCode string `json:"currency_code"`
}

// LastPayment последний списанный платеж подписки
type LastPayment struct {
	Amount Money      `json:"amount"`
	Time   *time.Time `json:"time,omitempty"`
}

// BillingInfo платежная информация подписки PayPal
type BillingInfo struct {
	NextBillingTime *time.Time   `json:"next_billing_time,omitempty"`
	LastPayment     *LastPayment `json:"last_payment,omitempty"`
}

// SubscriptionResource ресурс события подписки
type SubscriptionResource struct {
	ID          string       `json:"id"`
	Status      string       `json:"status"`
	PlanID      string       `json:"plan_id,omitempty"`
	BillingInfo *BillingInfo `json:"billing_info,omitempty"`
}

// RelatedIDs связанные идентификаторы платежного события
type RelatedIDs struct {
	SubscriptionID string `json:"subscription_id,omitempty"`
	OrderID        string `json:"order_id,omitempty"`
}

// SupplementaryData дополнительные данные платежного события
type SupplementaryData struct {
	RelatedIDs      *RelatedIDs `json:"related_ids,omitempty"`
	NextBillingDate *time.Time  `json:"next_billing_date,omitempty"`
}

// PaymentResource ресурс события платежа (sale или capture).
// Для событий sale идентификатор подписки лежит в billing_agreement_id,
// для capture — в supplementary_data.related_ids.
type PaymentResource struct {
	ID                 string             `json:"id"`
	Amount             *Money             `json:"amount,omitempty"`
	BillingAgreementID string             `json:"billing_agreement_id,omitempty"`
	SupplementaryData  *SupplementaryData `json:"supplementary_data,omitempty"`
}

// SubscriptionID возвращает идентификатор подписки PayPal,
// к которой относится платеж, либо пустую строку.
func (p *PaymentResource) SubscriptionID() string {
	if p.BillingAgreementID != "" {
		return p.BillingAgreementID
	}
	if p.SupplementaryData != nil && p.SupplementaryData.RelatedIDs != nil {
		return p.SupplementaryData.RelatedIDs.SubscriptionID
	}
	return ""
}

// WebhookEventStatus статус обработки события в журнале
type WebhookEventStatus string

const (
	WebhookEventStatusProcessed WebhookEventStatus = "processed"
	WebhookEventStatusSkipped   WebhookEventStatus = "skipped"
	WebhookEventStatusFailed    WebhookEventStatus = "failed"
)

// WebhookEvent запись журнала обработанных вебхук-событий.
// Журнал ведется для аудита; идемпотентность обработки обеспечивается
// абсолютными переходами состояния, а не поиском по журналу.
type WebhookEvent struct {
	ID           uuid.UUID          `json:"id"`
	ExternalID   string             `json:"external_id"`
	Type         string             `json:"type"`
	Status       WebhookEventStatus `json:"status"`
	ResourceID   string             `json:"resource_id"`
	Payload      []byte             `json:"-"`
	ErrorMessage string             `json:"error_message,omitempty"`
	ProcessedAt  *time.Time         `json:"processed_at,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
}
