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

// PaymentRepository интерфейс для работы с журналом платежей.
// Журнал append-only, операций обновления нет.
type PaymentRepository interface {
	// Create добавляет запись о платеже. Повторная запись с тем же
	// provider_payment_id возвращает ErrDuplicate.
	Create(ctx context.Context, payment domain.PaymentRecord) (domain.PaymentRecord, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) ([]domain.PaymentRecord, error)
}

// InMemoryPaymentRepository реализация журнала платежей в памяти
type InMemoryPaymentRepository struct {
	payments   map[uuid.UUID]domain.PaymentRecord
	byProvider map[string]uuid.UUID
	mutex      sync.RWMutex
	log        *logger.Logger
}

// NewInMemoryPaymentRepository создает новый журнал платежей в памяти
func NewInMemoryPaymentRepository(log *logger.Logger) *InMemoryPaymentRepository {
	return &InMemoryPaymentRepository{
		payments:   make(map[uuid.UUID]domain.PaymentRecord),
		byProvider: make(map[string]uuid.UUID),
		log:        log,
	}
}

// Create добавляет запись о платеже
func (r *InMemoryPaymentRepository) Create(ctx context.Context, payment domain.PaymentRecord) (domain.PaymentRecord, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.byProvider[payment.ProviderPaymentID]; exists {
		return domain.PaymentRecord{}, ErrDuplicate
	}

	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	payment.CreatedAt = time.Now()
	r.payments[payment.ID] = payment
	r.byProvider[payment.ProviderPaymentID] = payment.ID

	return payment, nil
}

// GetByUserID возвращает платежи пользователя, новые первыми
func (r *InMemoryPaymentRepository) GetByUserID(ctx context.Context, userID uuid.UUID) ([]domain.PaymentRecord, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var payments []domain.PaymentRecord
	for _, payment := range r.payments {
		if payment.UserID == userID {
			payments = append(payments, payment)
		}
	}
	sort.Slice(payments, func(i, j int) bool { return payments[i].CreatedAt.After(payments[j].CreatedAt) })

	return payments, nil
}
