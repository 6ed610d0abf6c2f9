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

	"github.com/Edness1/ColorCompete-sub001/internal/campaign/domain"
)

// PgCampaignRepository implements domain.CampaignRepository on PostgreSQL.
// Template and audience are stored as JSONB; counters live in plain
// integer columns so they can be incremented atomically in SQL.
type PgCampaignRepository struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

func NewPgCampaignRepository(db *pgxpool.Pool, logger *slog.Logger) *PgCampaignRepository {
	return &PgCampaignRepository{db: db, logger: logger}
}

const campaignColumns = `
	id, name, template, audience, status,
	recipients_count, sent_count, delivered_count, opened_count, clicked_count, bounced_count,
	created_at, updated_at
`

func (r *PgCampaignRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id = $1`
	c, err := r.scanCampaign(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Error getting campaign by ID", "error", err, "campaign_id", id)
		return nil, err
	}
	return c, nil
}

func (r *PgCampaignRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to domain.CampaignStatus) error {
	if !from.CanTransitionTo(to) {
		return domain.ErrInvalidTransition
	}
	// Compare-and-set on the previous status: a zero-row update means a
	// concurrent dispatcher got there first.
	query := `UPDATE campaigns SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`
	tag, err := r.db.Exec(ctx, query, to, time.Now().UTC(), id, from)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error transitioning campaign status", "error", err, "campaign_id", id, "from", from, "to", to)
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM campaigns WHERE id = $1)`, id).Scan(&exists); err == nil && !exists {
			return domain.ErrNotFound
		}
		return domain.ErrInvalidTransition
	}
	return nil
}

func (r *PgCampaignRepository) IncrementCounters(ctx context.Context, id uuid.UUID, delta domain.CounterDelta) error {
	query := `
		UPDATE campaigns
		SET recipients_count = recipients_count + $1,
		    sent_count       = sent_count + $2,
		    delivered_count  = delivered_count + $3,
		    opened_count     = opened_count + $4,
		    clicked_count    = clicked_count + $5,
		    bounced_count    = bounced_count + $6,
		    updated_at       = $7
		WHERE id = $8
	`
	tag, err := r.db.Exec(ctx, query,
		delta.Recipients, delta.Sent, delta.Delivered, delta.Opened, delta.Clicked, delta.Bounced,
		time.Now().UTC(), id)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error incrementing campaign counters", "error", err, "campaign_id", id)
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PgCampaignRepository) RaiseCounters(ctx context.Context, id uuid.UUID, delivered, opened, clicked, bounced int) error {
	// GREATEST keeps local event-driven counts when they already run
	// ahead of the provider's aggregates.
	query := `
		UPDATE campaigns
		SET delivered_count = GREATEST(delivered_count, $1),
		    opened_count    = GREATEST(opened_count, $2),
		    clicked_count   = GREATEST(clicked_count, $3),
		    bounced_count   = GREATEST(bounced_count, $4),
		    updated_at      = $5
		WHERE id = $6
	`
	tag, err := r.db.Exec(ctx, query, delivered, opened, clicked, bounced, time.Now().UTC(), id)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error raising campaign counters", "error", err, "campaign_id", id)
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PgCampaignRepository) ListDispatched(ctx context.Context) ([]*domain.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE status IN ($1, $2) ORDER BY updated_at DESC`
	rows, err := r.db.Query(ctx, query, domain.StatusSending, domain.StatusSent)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error listing dispatched campaigns", "error", err)
		return nil, err
	}
	defer rows.Close()

	var campaigns []*domain.Campaign
	for rows.Next() {
		c, err := r.scanCampaign(rows)
		if err != nil {
			r.logger.ErrorContext(ctx, "Error scanning campaign row", "error", err)
			return nil, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

func (r *PgCampaignRepository) scanCampaign(row pgx.Row) (*domain.Campaign, error) {
	c := &domain.Campaign{}
	var templateJSON, audienceJSON []byte

	err := row.Scan(
		&c.ID, &c.Name, &templateJSON, &audienceJSON, &c.Status,
		&c.Counters.Recipients, &c.Counters.Sent, &c.Counters.Delivered,
		&c.Counters.Opened, &c.Counters.Clicked, &c.Counters.Bounced,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(templateJSON, &c.Template); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(audienceJSON, &c.Audience); err != nil {
		return nil, err
	}
	return c, nil
}

var _ domain.CampaignRepository = (*PgCampaignRepository)(nil)
