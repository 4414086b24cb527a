package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/souldream/billing-service/internal/domain"
	"github.com/souldream/billing-service/internal/repository"
	"github.com/souldream/billing-service/pkg/logger"
)

// PostgresPlanRepository реализация репозитория планов через PostgreSQL
type PostgresPlanRepository struct {
	db  *pgxpool.Pool
	log *logger.Logger
}

// NewPostgresPlanRepository создает новый репозиторий планов через PostgreSQL
func NewPostgresPlanRepository(db *pgxpool.Pool, log *logger.Logger) *PostgresPlanRepository {
	return &PostgresPlanRepository{
		db:  db,
		log: log,
	}
}

// GetAll возвращает все планы
func (r *PostgresPlanRepository) GetAll(ctx context.Context) ([]domain.Plan, error) {
	query := `
		SELECT id, name, description, price, currency, interval,
		       paypal_product_id, paypal_plan_id, created_at, updated_at
		FROM plans
		ORDER BY price ASC
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query plans: %w", err)
	}
	defer rows.Close()

	var plans []domain.Plan
	for rows.Next() {
		var plan domain.Plan
		err := rows.Scan(
			&plan.ID,
			&plan.Name,
			&plan.Description,
			&plan.Price,
			&plan.Currency,
			&plan.Interval,
			&plan.PayPalProductID,
			&plan.PayPalPlanID,
			&plan.CreatedAt,
			&plan.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		plans = append(plans, plan)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating plans: %w", err)
	}

	return plans, nil
}

// GetByID возвращает план по ID
func (r *PostgresPlanRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Plan, error) {
	query := `
		SELECT id, name, description, price, currency, interval,
		       paypal_product_id, paypal_plan_id, created_at, updated_at
		FROM plans
		WHERE id = $1
	`

	var plan domain.Plan
	err := r.db.QueryRow(ctx, query, id).Scan(
		&plan.ID,
		&plan.Name,
		&plan.Description,
		&plan.Price,
		&plan.Currency,
		&plan.Interval,
		&plan.PayPalProductID,
		&plan.PayPalPlanID,
		&plan.CreatedAt,
		&plan.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Plan{}, repository.ErrNotFound
		}
		return domain.Plan{}, fmt.Errorf("failed to get plan: %w", err)
	}

	return plan, nil
}

// Create создает новый план
func (r *PostgresPlanRepository) Create(ctx context.Context, plan domain.Plan) (domain.Plan, error) {
	query := `
		INSERT INTO plans (id, name, description, price, currency, interval,
		                   paypal_product_id, paypal_plan_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at
	`

	if plan.ID == uuid.Nil {
		plan.ID = uuid.New()
	}
	now := time.Now()

	err := r.db.QueryRow(
		ctx,
		query,
		plan.ID,
		plan.Name,
		plan.Description,
		plan.Price,
		plan.Currency,
		plan.Interval,
		plan.PayPalProductID,
		plan.PayPalPlanID,
		now,
		now,
	).Scan(&plan.ID, &plan.CreatedAt, &plan.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == "23505" {
				return domain.Plan{}, repository.ErrDuplicate
			}
		}
		return domain.Plan{}, fmt.Errorf("failed to create plan: %w", err)
	}

	return plan, nil
}

// SetProviderIDs сохраняет идентификаторы каталога PayPal
func (r *PostgresPlanRepository) SetProviderIDs(ctx context.Context, id uuid.UUID, productID, providerPlanID string) error {
	query := `
		UPDATE plans
		SET paypal_product_id = $1, paypal_plan_id = $2, updated_at = $3
		WHERE id = $4
	`

	result, err := r.db.Exec(ctx, query, productID, providerPlanID, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to set plan provider ids: %w", err)
	}

	if result.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}
