package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/souldream/billing-service/internal/domain"
	"github.com/souldream/billing-service/pkg/logger"
)

// WebhookEventRepository интерфейс журнала вебхук-событий
type WebhookEventRepository interface {
	Create(ctx context.Context, event domain.WebhookEvent) (domain.WebhookEvent, error)
	GetRecent(ctx context.Context, limit int) ([]domain.WebhookEvent, error)
}

// InMemoryWebhookEventRepository реализация журнала вебхук-событий в памяти
type InMemoryWebhookEventRepository struct {
	events []domain.WebhookEvent
	mutex  sync.RWMutex
	log    *logger.Logger
}

// NewInMemoryWebhookEventRepository создает новый журнал вебхук-событий в памяти
func NewInMemoryWebhookEventRepository(log *logger.Logger) *InMemoryWebhookEventRepository {
	return &InMemoryWebhookEventRepository{
		log: log,
	}
}

// Create добавляет запись в журнал
func (r *InMemoryWebhookEventRepository) Create(ctx context.Context, event domain.WebhookEvent) (domain.WebhookEvent, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	event.CreatedAt = time.Now()
	r.events = append(r.events, event)

	return event, nil
}

// GetRecent возвращает последние записи журнала, новые первыми
func (r *InMemoryWebhookEventRepository) GetRecent(ctx context.Context, limit int) ([]domain.WebhookEvent, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	events := make([]domain.WebhookEvent, len(r.events))
	copy(events, r.events)
	sort.Slice(events, func(i, j int) bool { return events[i].CreatedAt.After(events[j].CreatedAt) })

	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}

	return events, nil
}
