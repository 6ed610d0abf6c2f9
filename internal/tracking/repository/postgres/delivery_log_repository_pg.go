package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Edness1/ColorCompete-sub001/internal/tracking/domain"
)

// PgDeliveryLogRepository implements domain.DeliveryLogRepository on
// PostgreSQL. Open and click histories are JSONB arrays appended to in
// SQL so concurrent event consumers cannot lose entries.
type PgDeliveryLogRepository struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

func NewPgDeliveryLogRepository(db *pgxpool.Pool, logger *slog.Logger) *PgDeliveryLogRepository {
	return &PgDeliveryLogRepository{db: db, logger: logger}
}

const deliveryLogColumns = `
	id, campaign_id, automation_id, member_id, email, subject, status,
	provider_message_id, error_message, opens, clicks, sent_at, updated_at
`

func (r *PgDeliveryLogRepository) Create(ctx context.Context, log *domain.DeliveryLog) error {
	opens, err := json.Marshal(log.Opens)
	if err != nil {
		return err
	}
	clicks, err := json.Marshal(log.Clicks)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO delivery_logs (` + deliveryLogColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err = r.db.Exec(ctx, query,
		log.ID, log.CampaignID, log.AutomationID, log.MemberID, log.Email, log.Subject, log.Status,
		nullableString(log.ProviderMessageID), nullableString(log.ErrorMessage), opens, clicks,
		log.SentAt, log.UpdatedAt,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error creating delivery log", "error", err, "delivery_log_id", log.ID)
		return err
	}
	return nil
}

func (r *PgDeliveryLogRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.DeliveryLog, error) {
	query := `SELECT ` + deliveryLogColumns + ` FROM delivery_logs WHERE id = $1`
	log, err := r.scanDeliveryLog(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Error getting delivery log by ID", "error", err, "delivery_log_id", id)
		return nil, err
	}
	return log, nil
}

func (r *PgDeliveryLogRepository) GetByProviderMessageID(ctx context.Context, providerMessageID string) (*domain.DeliveryLog, error) {
	query := `SELECT ` + deliveryLogColumns + ` FROM delivery_logs WHERE provider_message_id = $1`
	log, err := r.scanDeliveryLog(r.db.QueryRow(ctx, query, providerMessageID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Error getting delivery log by provider message ID",
			"error", err, "provider_message_id", providerMessageID)
		return nil, err
	}
	return log, nil
}

func (r *PgDeliveryLogRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.DeliveryStatus, errorMessage string, updatedAt time.Time) error {
	// The rank CASE mirrors DeliveryStatus.CanAdvanceTo so that two
	// consumers racing on the same log cannot move the status backward
	// or out of a terminal state.
	query := `
		UPDATE delivery_logs
		SET status = $1, error_message = $2, updated_at = $3
		WHERE id = $4
		  AND status NOT IN ('bounced', 'failed')
		  AND CASE status
		        WHEN 'sent' THEN 1 WHEN 'delivered' THEN 2
		        WHEN 'opened' THEN 3 WHEN 'clicked' THEN 4 ELSE 5
		      END <
		      CASE $1::text
		        WHEN 'sent' THEN 1 WHEN 'delivered' THEN 2
		        WHEN 'opened' THEN 3 WHEN 'clicked' THEN 4 ELSE 5
		      END
	`
	tag, err := r.db.Exec(ctx, query, status, nullableString(errorMessage), updatedAt, id)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error updating delivery log status", "error", err, "delivery_log_id", id)
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM delivery_logs WHERE id = $1)`, id).Scan(&exists); err != nil {
			r.logger.ErrorContext(ctx, "Error checking delivery log existence", "error", err, "delivery_log_id", id)
			return err
		}
		if !exists {
			return domain.ErrNotFound
		}
		return domain.ErrStaleStatus
	}
	return nil
}

func (r *PgDeliveryLogRepository) AppendOpen(ctx context.Context, id uuid.UUID, event domain.EngagementEvent) error {
	return r.appendEvent(ctx, id, "opens", event)
}

func (r *PgDeliveryLogRepository) AppendClick(ctx context.Context, id uuid.UUID, event domain.EngagementEvent) error {
	return r.appendEvent(ctx, id, "clicks", event)
}

func (r *PgDeliveryLogRepository) appendEvent(ctx context.Context, id uuid.UUID, column string, event domain.EngagementEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	// column is one of the two fixed names above, never caller input.
	query := `
		UPDATE delivery_logs
		SET ` + column + ` = COALESCE(` + column + `, '[]'::jsonb) || $1::jsonb,
		    updated_at = $2
		WHERE id = $3
	`
	tag, err := r.db.Exec(ctx, query, payload, time.Now().UTC(), id)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error appending engagement event", "error", err, "delivery_log_id", id, "column", column)
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PgDeliveryLogRepository) scanDeliveryLog(row pgx.Row) (*domain.DeliveryLog, error) {
	log := &domain.DeliveryLog{}
	var providerMessageID, errorMessage *string
	var opensJSON, clicksJSON []byte

	err := row.Scan(
		&log.ID, &log.CampaignID, &log.AutomationID, &log.MemberID, &log.Email, &log.Subject, &log.Status,
		&providerMessageID, &errorMessage, &opensJSON, &clicksJSON, &log.SentAt, &log.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if providerMessageID != nil {
		log.ProviderMessageID = *providerMessageID
	}
	if errorMessage != nil {
		log.ErrorMessage = *errorMessage
	}
	if len(opensJSON) > 0 {
		if err := json.Unmarshal(opensJSON, &log.Opens); err != nil {
			return nil, err
		}
	}
	if len(clicksJSON) > 0 {
		if err := json.Unmarshal(clicksJSON, &log.Clicks); err != nil {
			return nil, err
		}
	}
	return log, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

var _ domain.DeliveryLogRepository = (*PgDeliveryLogRepository)(nil)
