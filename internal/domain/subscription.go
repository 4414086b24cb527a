package domain

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus статус подписки
type SubscriptionStatus string

const (
	SubscriptionStatusPending   SubscriptionStatus = "pending"
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusSuspended SubscriptionStatus = "suspended"
)

// PaymentProvider платежный провайдер подписки
type PaymentProvider string

const (
	PaymentProviderNone   PaymentProvider = "none"
	PaymentProviderPayPal PaymentProvider = "paypal"
)

// Subscription представляет собой отношение пользователя к плану
// в рамках одного жизненного цикла. Записи никогда не удаляются,
// только переводятся между статусами.
type Subscription struct {
	ID                     uuid.UUID          `json:"id"`
	UserID                 uuid.UUID          `json:"user_id"`
	PlanID                 uuid.UUID          `json:"plan_id"`
	Status                 SubscriptionStatus `json:"status"`
	Provider               PaymentProvider    `json:"provider"`
	ProviderSubscriptionID *string            `json:"provider_subscription_id,omitempty"`
	CurrentPeriodStart     time.Time          `json:"current_period_start"`
	CurrentPeriodEnd       time.Time          `json:"current_period_end"`
	CancelAtPeriodEnd      bool               `json:"cancel_at_period_end"`
	CanceledAt             *time.Time         `json:"canceled_at,omitempty"`
	CreatedAt              time.Time          `json:"created_at"`
	UpdatedAt              time.Time          `json:"updated_at"`
}

// CreateSubscriptionRequest запрос на оформление подписки
type CreateSubscriptionRequest struct {
	PlanID    string `json:"plan_id" binding:"required,uuid4"`
	ReturnURL string `json:"return_url" binding:"required,url"`
	CancelURL string `json:"cancel_url" binding:"required,url"`
}

// CreateSubscriptionResponse результат оформления подписки
type CreateSubscriptionResponse struct {
	ID          string             `json:"id"`
	Status      SubscriptionStatus `json:"status"`
	ApprovalURL string             `json:"approval_url"`
}

// CancelSubscriptionRequest запрос на отмену текущей подписки
type CancelSubscriptionRequest struct {
	Reason string `json:"reason,omitempty"`
}

// SuspendSubscriptionRequest запрос на приостановку текущей подписки
type SuspendSubscriptionRequest struct {
	Reason string `json:"reason,omitempty"`
}
