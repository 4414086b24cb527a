package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/souldream/billing-service/internal/domain"
	"github.com/souldream/billing-service/internal/repository"
	"github.com/souldream/billing-service/pkg/logger"
)

// PostgresPaymentRepository реализация журнала платежей через PostgreSQL
type PostgresPaymentRepository struct {
	db  *pgxpool.Pool
	log *logger.Logger
}

// NewPostgresPaymentRepository создает новый журнал платежей через PostgreSQL
func NewPostgresPaymentRepository(db *pgxpool.Pool, log *logger.Logger) *PostgresPaymentRepository {
	return &PostgresPaymentRepository{
		db:  db,
		log: log,
	}
}

// Create добавляет запись о платеже.
// Уникальный индекс по provider_payment_id защищает журнал от
// повторной доставки одного и того же события.
func (r *PostgresPaymentRepository) Create(ctx context.Context, payment domain.PaymentRecord) (domain.PaymentRecord, error) {
	query := `
		INSERT INTO payments (id, user_id, subscription_id, provider_payment_id,
		                      amount, currency, status, method, raw_payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at
	`

	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}

	err := r.db.QueryRow(
		ctx,
		query,
		payment.ID,
		payment.UserID,
		payment.SubscriptionID,
		payment.ProviderPaymentID,
		payment.Amount,
		payment.Currency,
		payment.Status,
		payment.Method,
		payment.RawPayload,
		time.Now(),
	).Scan(&payment.ID, &payment.CreatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == "23505" {
				return domain.PaymentRecord{}, repository.ErrDuplicate
			}
		}
		return domain.PaymentRecord{}, fmt.Errorf("failed to create payment record: %w", err)
	}

	return payment, nil
}

// GetByUserID возвращает платежи пользователя, новые первыми
func (r *PostgresPaymentRepository) GetByUserID(ctx context.Context, userID uuid.UUID) ([]domain.PaymentRecord, error) {
	query := `
		SELECT id, user_id, subscription_id, provider_payment_id,
		       amount, currency, status, method, raw_payload, created_at
		FROM payments
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var payments []domain.PaymentRecord
	for rows.Next() {
		var payment domain.PaymentRecord
		err := rows.Scan(
			&payment.ID,
			&payment.UserID,
			&payment.SubscriptionID,
			&payment.ProviderPaymentID,
			&payment.Amount,
			&payment.Currency,
			&payment.Status,
			&payment.Method,
			&payment.RawPayload,
			&payment.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, payment)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payments: %w", err)
	}

	return payments, nil
}
