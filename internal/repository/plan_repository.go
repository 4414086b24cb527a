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

// PlanRepository интерфейс для работы с тарифными планами
type PlanRepository interface {
	GetAll(ctx context.Context) ([]domain.Plan, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Plan, error)
	Create(ctx context.Context, plan domain.Plan) (domain.Plan, error)
	// SetProviderIDs сохраняет идентификаторы каталога PayPal после
	// ленивой материализации плана у провайдера.
	SetProviderIDs(ctx context.Context, id uuid.UUID, productID, providerPlanID string) error
}

// InMemoryPlanRepository реализация репозитория планов в памяти
type InMemoryPlanRepository struct {
	plans map[uuid.UUID]domain.Plan
	mutex sync.RWMutex
	log   *logger.Logger
}

// NewInMemoryPlanRepository создает новый репозиторий планов в памяти
func NewInMemoryPlanRepository(log *logger.Logger) *InMemoryPlanRepository {
	return &InMemoryPlanRepository{
		plans: make(map[uuid.UUID]domain.Plan),
		log:   log,
	}
}

// GetAll возвращает все планы
func (r *InMemoryPlanRepository) GetAll(ctx context.Context) ([]domain.Plan, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	plans := make([]domain.Plan, 0, len(r.plans))
	for _, plan := range r.plans {
		plans = append(plans, plan)
	}
	sort.Slice(plans, func(i, j int) bool { return plans[i].Price < plans[j].Price })

	return plans, nil
}

// GetByID возвращает план по ID
func (r *InMemoryPlanRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Plan, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	plan, exists := r.plans[id]
	if !exists {
		return domain.Plan{}, ErrNotFound
	}

	return plan, nil
}

// Create создает новый план
func (r *InMemoryPlanRepository) Create(ctx context.Context, plan domain.Plan) (domain.Plan, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if plan.ID == uuid.Nil {
		plan.ID = uuid.New()
	}
	if _, exists := r.plans[plan.ID]; exists {
		return domain.Plan{}, ErrDuplicate
	}

	now := time.Now()
	plan.CreatedAt = now
	plan.UpdatedAt = now
	r.plans[plan.ID] = plan

	return plan, nil
}

// SetProviderIDs сохраняет идентификаторы каталога PayPal
func (r *InMemoryPlanRepository) SetProviderIDs(ctx context.Context, id uuid.UUID, productID, providerPlanID string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	plan, exists := r.plans[id]
	if !exists {
		return ErrNotFound
	}

	plan.PayPalProductID = &productID
	plan.PayPalPlanID = &providerPlanID
	plan.UpdatedAt = time.Now()
	r.plans[id] = plan

	return nil
}
