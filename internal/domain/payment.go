package domain

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus статус платежа
type PaymentStatus string

const (
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// PaymentRecord представляет собой запись журнала платежей.
// Журнал append-only: записи создаются и никогда не изменяются.
type PaymentRecord struct {
	ID                uuid.UUID     `json:"id"`
	UserID            uuid.UUID     `json:"user_id"`
	SubscriptionID    *uuid.UUID    `json:"subscription_id,omitempty"`
	ProviderPaymentID string        `json:"provider_payment_id"`
	Amount            float64       `json:"amount"`
	Currency          string        `json:"currency"`
	Status            PaymentStatus `json:"status"`
	Method            string        `json:"method"`
	RawPayload        []byte        `json:"-"`
	CreatedAt         time.Time     `json:"created_at"`
}

// CreateOrderRequest запрос на создание разового платежа
type CreateOrderRequest struct {
	Amount      float64 `json:"amount" binding:"required,gt=0"`
	Currency    string  `json:"currency" binding:"required,len=3"`
	Description string  `json:"description,omitempty"`
}
