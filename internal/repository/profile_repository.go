package repository

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/souldream/billing-service/internal/domain"
	"github.com/souldream/billing-service/pkg/logger"
)

// ProfileRepository интерфейс для работы с уровнем подписки профиля
type ProfileRepository interface {
	GetTier(ctx context.Context, userID uuid.UUID) (string, error)
	UpdateTier(ctx context.Context, userID uuid.UUID, tier string) error
}

// InMemoryProfileRepository реализация репозитория профилей в памяти
type InMemoryProfileRepository struct {
	tiers map[uuid.UUID]string
	mutex sync.RWMutex
	log   *logger.Logger
}

// NewInMemoryProfileRepository создает новый репозиторий профилей в памяти
func NewInMemoryProfileRepository(log *logger.Logger) *InMemoryProfileRepository {
	return &InMemoryProfileRepository{
		tiers: make(map[uuid.UUID]string),
		log:   log,
	}
}

// GetTier возвращает уровень подписки пользователя
func (r *InMemoryProfileRepository) GetTier(ctx context.Context, userID uuid.UUID) (string, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	tier, exists := r.tiers[userID]
	if !exists {
		return domain.TierFree, nil
	}

	return tier, nil
}

// UpdateTier устанавливает уровень подписки пользователя
func (r *InMemoryProfileRepository) UpdateTier(ctx context.Context, userID uuid.UUID, tier string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.tiers[userID] = tier

	return nil
}
