package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/souldream/billing-service/internal/domain"
	"github.com/souldream/billing-service/pkg/logger"
)

// PostgresWebhookEventRepository реализация журнала вебхук-событий через PostgreSQL
type PostgresWebhookEventRepository struct {
	db  *pgxpool.Pool
	log *logger.Logger
}

// NewPostgresWebhookEventRepository создает новый журнал вебхук-событий через PostgreSQL
func NewPostgresWebhookEventRepository(db *pgxpool.Pool, log *logger.Logger) *PostgresWebhookEventRepository {
	return &PostgresWebhookEventRepository{
		db:  db,
		log: log,
	}
}

// Create добавляет запись в журнал
func (r *PostgresWebhookEventRepository) Create(ctx context.Context, event domain.WebhookEvent) (domain.WebhookEvent, error) {
	query := `
		INSERT INTO webhook_events (id, external_id, type, status, resource_id,
		                            payload, error_message, processed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}

	err := r.db.QueryRow(
		ctx,
		query,
		event.ID,
		event.ExternalID,
		event.Type,
		event.Status,
		event.ResourceID,
		event.Payload,
		event.ErrorMessage,
		event.ProcessedAt,
		time.Now(),
	).Scan(&event.ID, &event.CreatedAt)

	if err != nil {
		return domain.WebhookEvent{}, fmt.Errorf("failed to create webhook event: %w", err)
	}

	return event, nil
}

// GetRecent возвращает последние записи журнала, новые первыми
func (r *PostgresWebhookEventRepository) GetRecent(ctx context.Context, limit int) ([]domain.WebhookEvent, error) {
	query := `
		SELECT id, external_id, type, status, resource_id,
		       payload, error_message, processed_at, created_at
		FROM webhook_events
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query webhook events: %w", err)
	}
	defer rows.Close()

	var events []domain.WebhookEvent
	for rows.Next() {
		var event domain.WebhookEvent
		err := rows.Scan(
			&event.ID,
			&event.ExternalID,
			&event.Type,
			&event.Status,
			&event.ResourceID,
			&event.Payload,
			&event.ErrorMessage,
			&event.ProcessedAt,
			&event.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan webhook event: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating webhook events: %w", err)
	}

	return events, nil
}
