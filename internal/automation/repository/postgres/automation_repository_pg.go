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

	"github.com/Edness1/ColorCompete-sub001/internal/automation/domain"
)

// PgAutomationRepository implements domain.AutomationRepository on
// PostgreSQL. Template, schedule and reward settings are stored as JSONB.
type PgAutomationRepository struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

func NewPgAutomationRepository(db *pgxpool.Pool, logger *slog.Logger) *PgAutomationRepository {
	return &PgAutomationRepository{db: db, logger: logger}
}

const automationColumns = `
	id, name, is_active, trigger_type, template, schedule, reward_settings,
	total_sent, last_triggered, created_at, updated_at
`

func (r *PgAutomationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Automation, error) {
	query := `SELECT ` + automationColumns + ` FROM automations WHERE id = $1`
	a, err := r.scanAutomation(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Error getting automation by ID", "error", err, "automation_id", id)
		return nil, err
	}
	return a, nil
}

func (r *PgAutomationRepository) GetByTrigger(ctx context.Context, trigger domain.TriggerType) (*domain.Automation, error) {
	// Duplicate trigger types are a caller error; the most recently
	// updated active automation is canonical.
	query := `
		SELECT ` + automationColumns + `
		FROM automations
		WHERE trigger_type = $1 AND is_active = TRUE
		ORDER BY updated_at DESC
		LIMIT 1
	`
	a, err := r.scanAutomation(r.db.QueryRow(ctx, query, trigger))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Error getting automation by trigger", "error", err, "trigger_type", trigger)
		return nil, err
	}
	return a, nil
}

func (r *PgAutomationRepository) ListActive(ctx context.Context) ([]*domain.Automation, error) {
	query := `SELECT ` + automationColumns + ` FROM automations WHERE is_active = TRUE ORDER BY created_at ASC`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error listing active automations", "error", err)
		return nil, err
	}
	defer rows.Close()

	var automations []*domain.Automation
	for rows.Next() {
		a, err := r.scanAutomation(rows)
		if err != nil {
			r.logger.ErrorContext(ctx, "Error scanning automation row", "error", err)
			return nil, err
		}
		automations = append(automations, a)
	}
	return automations, rows.Err()
}

func (r *PgAutomationRepository) RecordSend(ctx context.Context, id uuid.UUID, sentCount int, triggeredAt time.Time) error {
	query := `
		UPDATE automations
		SET total_sent = total_sent + $1, last_triggered = $2, updated_at = $3
		WHERE id = $4
	`
	tag, err := r.db.Exec(ctx, query, sentCount, triggeredAt, time.Now().UTC(), id)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error recording automation send", "error", err, "automation_id", id)
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// scanAutomation reads one automation row from either a pgx.Row or
// pgx.Rows (both satisfy the scanner below).
func (r *PgAutomationRepository) scanAutomation(row pgx.Row) (*domain.Automation, error) {
	a := &domain.Automation{}
	var templateJSON, scheduleJSON []byte
	var rewardJSON *[]byte
	var lastTriggered *time.Time

	err := row.Scan(
		&a.ID, &a.Name, &a.IsActive, &a.TriggerType, &templateJSON, &scheduleJSON, &rewardJSON,
		&a.TotalSent, &lastTriggered, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(templateJSON, &a.Template); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(scheduleJSON, &a.Schedule); err != nil {
		return nil, err
	}
	if rewardJSON != nil && len(*rewardJSON) > 0 {
		var rs domain.RewardSettings
		if err := json.Unmarshal(*rewardJSON, &rs); err != nil {
			return nil, err
		}
		a.RewardSettings = &rs
	}
	a.LastTriggered = lastTriggered
	return a, nil
}

var _ domain.AutomationRepository = (*PgAutomationRepository)(nil)
