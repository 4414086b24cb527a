package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/souldream/billing-service/internal/domain"
	"github.com/souldream/billing-service/pkg/logger"
)

// CachedSubscriptionRepository реализует SubscriptionRepository с кешированием.
// Ошибки кеша не прерывают выполнение: при любой проблеме с Redis
// запрос уходит в основное хранилище.
type CachedSubscriptionRepository struct {
	repo  SubscriptionRepository
	cache *RedisCacheRepository
	log   *logger.Logger
}

// NewCachedSubscriptionRepository создает новый репозиторий с кешированием
func NewCachedSubscriptionRepository(
	repo SubscriptionRepository,
	cache *RedisCacheRepository,
	log *logger.Logger,
) SubscriptionRepository {
	return &CachedSubscriptionRepository{
		repo:  repo,
		cache: cache,
		log:   log,
	}
}

// Create сохраняет подписку в БД и кеширует ее
func (r *CachedSubscriptionRepository) Create(ctx context.Context, sub domain.Subscription) (domain.Subscription, error) {
	created, err := r.repo.Create(ctx, sub)
	if err != nil {
		return domain.Subscription{}, err
	}

	if err := r.cache.CacheSubscription(ctx, created); err != nil {
		r.log.Warn("Failed to cache subscription %s after creation: %v", created.ID, err)
	}

	return created, nil
}

// GetByID получает подписку по ID (сначала из кеша, потом из БД)
func (r *CachedSubscriptionRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Subscription, error) {
	return r.cachedGet(ctx, subscriptionKeyPrefix+id.String(), func() (domain.Subscription, error) {
		return r.repo.GetByID(ctx, id)
	})
}

// GetByUserID возвращает все подписки пользователя.
// Списки не кешируются: история запрашивается редко.
func (r *CachedSubscriptionRepository) GetByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Subscription, error) {
	return r.repo.GetByUserID(ctx, userID)
}

// GetActiveByUserID возвращает активную подписку пользователя
func (r *CachedSubscriptionRepository) GetActiveByUserID(ctx context.Context, userID uuid.UUID) (domain.Subscription, error) {
	return r.cachedGet(ctx, activeSubscriptionKeyPrefix+userID.String(), func() (domain.Subscription, error) {
		return r.repo.GetActiveByUserID(ctx, userID)
	})
}

// GetByProviderSubscriptionID возвращает подписку по идентификатору PayPal
func (r *CachedSubscriptionRepository) GetByProviderSubscriptionID(ctx context.Context, providerID string) (domain.Subscription, error) {
	return r.cachedGet(ctx, providerSubscriptionKeyPrefix+providerID, func() (domain.Subscription, error) {
		return r.repo.GetByProviderSubscriptionID(ctx, providerID)
	})
}

// Update обновляет подписку в БД и сбрасывает кеш.
// Сброс вместо перезаписи: переход статуса меняет набор ключей,
// под которыми подписка лежит в кеше.
func (r *CachedSubscriptionRepository) Update(ctx context.Context, sub domain.Subscription) error {
	if err := r.repo.Update(ctx, sub); err != nil {
		return err
	}

	if err := r.cache.InvalidateSubscription(ctx, sub); err != nil {
		r.log.Warn("Failed to invalidate subscription %s cache after update: %v", sub.ID, err)
	}

	return nil
}

func (r *CachedSubscriptionRepository) cachedGet(ctx context.Context, key string, fetch func() (domain.Subscription, error)) (domain.Subscription, error) {
	cached, found, err := r.cache.GetCachedSubscription(ctx, key)
	if err != nil {
		r.log.Warn("Error getting subscription from cache by %s: %v", key, err)
	}
	if found {
		return cached, nil
	}

	sub, err := fetch()
	if err != nil {
		return domain.Subscription{}, err
	}

	if err := r.cache.CacheSubscription(ctx, sub); err != nil {
		r.log.Warn("Failed to cache subscription %s after fetching: %v", sub.ID, err)
	}

	return sub, nil
}
