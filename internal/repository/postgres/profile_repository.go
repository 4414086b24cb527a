package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/souldream/billing-service/internal/repository"
	"github.com/souldream/billing-service/pkg/logger"
)

// PostgresProfileRepository реализация репозитория профилей через PostgreSQL.
// Сервис владеет только полем subscription_tier, остальные поля профиля
// принадлежат сервису аккаунтов.
type PostgresProfileRepository struct {
	db  *pgxpool.Pool
	log *logger.Logger
}

// NewPostgresProfileRepository создает новый репозиторий профилей через PostgreSQL
func NewPostgresProfileRepository(db *pgxpool.Pool, log *logger.Logger) *PostgresProfileRepository {
	return &PostgresProfileRepository{
		db:  db,
		log: log,
	}
}

// GetTier возвращает уровень подписки пользователя
func (r *PostgresProfileRepository) GetTier(ctx context.Context, userID uuid.UUID) (string, error) {
	query := `SELECT subscription_tier FROM profiles WHERE user_id = $1`

	var tier string
	err := r.db.QueryRow(ctx, query, userID).Scan(&tier)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", repository.ErrNotFound
		}
		return "", fmt.Errorf("failed to get profile tier: %w", err)
	}

	return tier, nil
}

// UpdateTier устанавливает уровень подписки пользователя
func (r *PostgresProfileRepository) UpdateTier(ctx context.Context, userID uuid.UUID, tier string) error {
	query := `UPDATE profiles SET subscription_tier = $1, updated_at = $2 WHERE user_id = $3`

	result, err := r.db.Exec(ctx, query, tier, time.Now(), userID)
	if err != nil {
		return fmt.Errorf("failed to update profile tier: %w", err)
	}

	if result.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}
