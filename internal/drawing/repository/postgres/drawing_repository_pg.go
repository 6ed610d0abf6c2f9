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

	"github.com/Edness1/ColorCompete-sub001/internal/drawing/domain"
)

// PgDrawingRepository implements domain.DrawingRepository on PostgreSQL.
// The (month, year, tier) unique constraint backs InsertIfAbsent;
// participants, winner and gift card details are JSONB.
type PgDrawingRepository struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

func NewPgDrawingRepository(db *pgxpool.Pool, logger *slog.Logger) *PgDrawingRepository {
	return &PgDrawingRepository{db: db, logger: logger}
}

const drawingColumns = `
	id, month, year, tier, prize_amount, participants, winner, gift_card,
	is_completed, created_at, updated_at
`

func (r *PgDrawingRepository) InsertIfAbsent(ctx context.Context, drawing *domain.MonthlyDrawing) (*domain.MonthlyDrawing, bool, error) {
	query := `
		INSERT INTO monthly_drawings (id, month, year, tier, prize_amount, is_completed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, FALSE, $6, $7)
		ON CONFLICT (month, year, tier) DO NOTHING
	`
	tag, err := r.db.Exec(ctx, query,
		drawing.ID, int(drawing.Month), drawing.Year, drawing.Tier, drawing.PrizeAmount,
		drawing.CreatedAt, drawing.UpdatedAt)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error inserting drawing", "error", err, "period", drawing.Period())
		return nil, false, err
	}

	created := tag.RowsAffected() == 1
	// Fetch either way: the stored row is canonical whether we won the
	// insert or a concurrent run did.
	stored, err := r.GetByPeriod(ctx, drawing.Month, drawing.Year, drawing.Tier)
	if err != nil {
		return nil, false, err
	}
	return stored, created, nil
}

func (r *PgDrawingRepository) GetByPeriod(ctx context.Context, month time.Month, year int, tier string) (*domain.MonthlyDrawing, error) {
	query := `SELECT ` + drawingColumns + ` FROM monthly_drawings WHERE month = $1 AND year = $2 AND tier = $3`
	d, err := r.scanDrawing(r.db.QueryRow(ctx, query, int(month), year, tier))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Error getting drawing by period",
			"error", err, "month", month, "year", year, "tier", tier)
		return nil, err
	}
	return d, nil
}

func (r *PgDrawingRepository) SetWinner(ctx context.Context, id uuid.UUID, participants []domain.Participant, winner *domain.Winner, updatedAt time.Time) error {
	participantsJSON, err := json.Marshal(participants)
	if err != nil {
		return err
	}
	winnerJSON, err := json.Marshal(winner)
	if err != nil {
		return err
	}

	// Guarded on is_completed so a late writer cannot disturb a
	// finished drawing.
	query := `
		UPDATE monthly_drawings
		SET participants = $1, winner = $2, updated_at = $3
		WHERE id = $4 AND is_completed = FALSE
	`
	tag, err := r.db.Exec(ctx, query, participantsJSON, winnerJSON, updatedAt, id)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error setting drawing winner", "error", err, "drawing_id", id)
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PgDrawingRepository) Complete(ctx context.Context, id uuid.UUID, giftCard *domain.GiftCardDetails, updatedAt time.Time) error {
	giftCardJSON, err := json.Marshal(giftCard)
	if err != nil {
		return err
	}

	query := `
		UPDATE monthly_drawings
		SET gift_card = $1, is_completed = TRUE, updated_at = $2
		WHERE id = $3 AND is_completed = FALSE
	`
	tag, err := r.db.Exec(ctx, query, giftCardJSON, updatedAt, id)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error completing drawing", "error", err, "drawing_id", id)
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PgDrawingRepository) scanDrawing(row pgx.Row) (*domain.MonthlyDrawing, error) {
	d := &domain.MonthlyDrawing{}
	var month int
	var participantsJSON, winnerJSON, giftCardJSON []byte

	err := row.Scan(
		&d.ID, &month, &d.Year, &d.Tier, &d.PrizeAmount, &participantsJSON, &winnerJSON, &giftCardJSON,
		&d.IsCompleted, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	d.Month = time.Month(month)

	if len(participantsJSON) > 0 {
		if err := json.Unmarshal(participantsJSON, &d.Participants); err != nil {
			return nil, err
		}
	}
	if len(winnerJSON) > 0 {
		var w domain.Winner
		if err := json.Unmarshal(winnerJSON, &w); err != nil {
			return nil, err
		}
		d.Winner = &w
	}
	if len(giftCardJSON) > 0 {
		var g domain.GiftCardDetails
		if err := json.Unmarshal(giftCardJSON, &g); err != nil {
			return nil, err
		}
		d.GiftCard = &g
	}
	return d, nil
}

var _ domain.DrawingRepository = (*PgDrawingRepository)(nil)
