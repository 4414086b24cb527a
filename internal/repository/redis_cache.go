package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/souldream/billing-service/internal/domain"
	"github.com/souldream/billing-service/pkg/logger"
)

const (
	// Префиксы ключей для различных типов данных
	subscriptionKeyPrefix         = "subscription:"
	providerSubscriptionKeyPrefix = "provider_subscription:"
	activeSubscriptionKeyPrefix   = "active_subscription:"

	// TTL для кэша
	defaultCacheTTL = 15 * time.Minute
)

// RedisCacheRepository реализует кеширование для репозиториев с использованием Redis
type RedisCacheRepository struct {
	client *redis.Client
	log    *logger.Logger
}

// NewRedisCacheRepository создает новый экземпляр Redis репозитория
func NewRedisCacheRepository(redisAddr, redisPassword string, redisDB int, log *logger.Logger) (*RedisCacheRepository, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       redisDB,
	})

	// Проверяем соединение с Redis
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Error("Failed to connect to Redis: %v", err)
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info("Connected to Redis successfully: %s", redisAddr)
	return &RedisCacheRepository{
		client: client,
		log:    log,
	}, nil
}

// Close закрывает соединение с Redis
func (r *RedisCacheRepository) Close() error {
	return r.client.Close()
}

// CacheSubscription кеширует подписку под всеми ее ключами
func (r *RedisCacheRepository) CacheSubscription(ctx context.Context, sub domain.Subscription) error {
	data, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("failed to marshal subscription: %w", err)
	}

	keys := []string{subscriptionKeyPrefix + sub.ID.String()}
	if sub.ProviderSubscriptionID != nil {
		keys = append(keys, providerSubscriptionKeyPrefix+*sub.ProviderSubscriptionID)
	}
	if sub.Status == domain.SubscriptionStatusActive {
		keys = append(keys, activeSubscriptionKeyPrefix+sub.UserID.String())
	}

	for _, key := range keys {
		if err := r.client.Set(ctx, key, data, defaultCacheTTL).Err(); err != nil {
			r.log.Error("Failed to cache subscription %s under %s: %v", sub.ID, key, err)
			return fmt.Errorf("failed to cache subscription: %w", err)
		}
	}

	r.log.Debug("Subscription %s cached", sub.ID)
	return nil
}

// GetCachedSubscription получает подписку из кеша по произвольному ключу.
// Отсутствие ключа не считается ошибкой: возвращается found=false.
func (r *RedisCacheRepository) GetCachedSubscription(ctx context.Context, key string) (domain.Subscription, bool, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Subscription{}, false, nil
		}
		return domain.Subscription{}, false, fmt.Errorf("failed to get subscription from cache: %w", err)
	}

	var sub domain.Subscription
	if err := json.Unmarshal(data, &sub); err != nil {
		return domain.Subscription{}, false, fmt.Errorf("failed to unmarshal cached subscription: %w", err)
	}

	return sub, true, nil
}

// InvalidateSubscription удаляет подписку из кеша по всем ее ключам
func (r *RedisCacheRepository) InvalidateSubscription(ctx context.Context, sub domain.Subscription) error {
	keys := []string{
		subscriptionKeyPrefix + sub.ID.String(),
		activeSubscriptionKeyPrefix + sub.UserID.String(),
	}
	if sub.ProviderSubscriptionID != nil {
		keys = append(keys, providerSubscriptionKeyPrefix+*sub.ProviderSubscriptionID)
	}

	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		r.log.Error("Failed to invalidate subscription %s cache: %v", sub.ID, err)
		return fmt.Errorf("failed to invalidate subscription cache: %w", err)
	}

	r.log.Debug("Subscription %s cache invalidated", sub.ID)
	return nil
}
