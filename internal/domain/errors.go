package domain

import "errors"

// Application errors
var (
	// ErrPlanNotFound план не найден
	ErrPlanNotFound = errors.New("subscription plan not found")

	// ErrSubscriptionNotFound подписка не найдена
	ErrSubscriptionNotFound = errors.New("subscription not found")

	// ErrNoActiveSubscription у пользователя нет активной подписки
	ErrNoActiveSubscription = errors.New("no active subscription")

	// ErrSubscriptionExists у пользователя уже есть активная подписка
	ErrSubscriptionExists = errors.New("active subscription already exists")

	// ErrUnauthenticated пользователь не аутентифицирован
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrWebhookVerificationFailed не удалось проверить подпись вебхука
	ErrWebhookVerificationFailed = errors.New("webhook signature verification failed")

	// ErrInvalidOperation неверная операция для текущего состояния
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrInvalidInput неверные входные данные
	ErrInvalidInput = errors.New("invalid input data")
)
