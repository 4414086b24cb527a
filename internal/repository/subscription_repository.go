package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/souldream/billing-service/internal/domain"
	"github.com/souldream/billing-service/pkg/logger"
)

// SubscriptionRepository интерфейс для работы с подписками
type SubscriptionRepository interface {
	Create(ctx context.Context, subscription domain.Subscription) (domain.Subscription, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Subscription, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Subscription, error)
	// GetActiveByUserID возвращает активную подписку пользователя.
	// У пользователя не бывает более одной активной подписки.
	GetActiveByUserID(ctx context.Context, userID uuid.UUID) (domain.Subscription, error)
	// GetByProviderSubscriptionID возвращает подписку по внешнему
	// идентификатору PayPal. Основной путь поиска для вебхуков.
	GetByProviderSubscriptionID(ctx context.Context, providerID string) (domain.Subscription, error)
	Update(ctx context.Context, subscription domain.Subscription) error
}

// InMemorySubscriptionRepository реализация репозитория подписок в памяти
type InMemorySubscriptionRepository struct {
	subscriptions map[uuid.UUID]domain.Subscription
	mutex         sync.RWMutex
	log           *logger.Logger
}

// NewInMemorySubscriptionRepository создает новый репозиторий подписок в памяти
func NewInMemorySubscriptionRepository(log *logger.Logger) *InMemorySubscriptionRepository {
	return &InMemorySubscriptionRepository{
		subscriptions: make(map[uuid.UUID]domain.Subscription),
		log:           log,
	}
}

// Create создает новую подписку
func (r *InMemorySubscriptionRepository) Create(ctx context.Context, subscription domain.Subscription) (domain.Subscription, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if subscription.ID == uuid.Nil {
		subscription.ID = uuid.New()
	}
	if _, exists := r.subscriptions[subscription.ID]; exists {
		return domain.Subscription{}, ErrDuplicate
	}

	now := time.Now()
	subscription.CreatedAt = now
	subscription.UpdatedAt = now
	r.subscriptions[subscription.ID] = subscription

	return subscription, nil
}

// GetByID возвращает подписку по ID
func (r *InMemorySubscriptionRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Subscription, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	subscription, exists := r.subscriptions[id]
	if !exists {
		return domain.Subscription{}, ErrNotFound
	}

	return subscription, nil
}

// GetByUserID возвращает все подписки пользователя
func (r *InMemorySubscriptionRepository) GetByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Subscription, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var subscriptions []domain.Subscription
	for _, subscription := range r.subscriptions {
		if subscription.UserID == userID {
			subscriptions = append(subscriptions, subscription)
		}
	}

	return subscriptions, nil
}

// GetActiveByUserID возвращает активную подписку пользователя
func (r *InMemorySubscriptionRepository) GetActiveByUserID(ctx context.Context, userID uuid.UUID) (domain.Subscription, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	for _, subscription := range r.subscriptions {
		if subscription.UserID == userID && subscription.Status == domain.SubscriptionStatusActive {
			return subscription, nil
		}
	}

	return domain.Subscription{}, ErrNotFound
}

// GetByProviderSubscriptionID возвращает подписку по идентификатору PayPal
func (r *InMemorySubscriptionRepository) GetByProviderSubscriptionID(ctx context.Context, providerID string) (domain.Subscription, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	for _, subscription := range r.subscriptions {
		if subscription.ProviderSubscriptionID != nil && *subscription.ProviderSubscriptionID == providerID {
			return subscription, nil
		}
	}

	return domain.Subscription{}, ErrNotFound
}

// Update обновляет существующую подписку
func (r *InMemorySubscriptionRepository) Update(ctx context.Context, subscription domain.Subscription) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.subscriptions[subscription.ID]; !exists {
		return ErrNotFound
	}

	subscription.UpdatedAt = time.Now()
	r.subscriptions[subscription.ID] = subscription

	return nil
}
