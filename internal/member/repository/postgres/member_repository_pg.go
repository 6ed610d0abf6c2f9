package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Edness1/ColorCompete-sub001/internal/member/domain"
)

type PgMemberRepository struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

func NewPgMemberRepository(db *pgxpool.Pool, logger *slog.Logger) *PgMemberRepository {
	return &PgMemberRepository{db: db, logger: logger}
}

const memberColumns = `id, email, name, tier, is_active, email_opt_out, reward_opt_out, created_at`

func (r *PgMemberRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE id = $1`
	m, err := scanMember(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Error getting member by ID", "error", err, "member_id", id)
		return nil, err
	}
	return m, nil
}

func (r *PgMemberRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.Member, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + memberColumns + ` FROM members WHERE id = ANY($1)`
	return r.queryMembers(ctx, query, ids)
}

func (r *PgMemberRepository) ListActive(ctx context.Context) ([]*domain.Member, error) {
	query := `
		SELECT ` + memberColumns + `
		FROM members
		WHERE is_active = TRUE AND email_opt_out = FALSE
		ORDER BY created_at ASC
	`
	return r.queryMembers(ctx, query)
}

func (r *PgMemberRepository) ListByTiers(ctx context.Context, tiers []string) ([]*domain.Member, error) {
	if len(tiers) == 0 {
		return nil, nil
	}
	query := `
		SELECT ` + memberColumns + `
		FROM members
		WHERE is_active = TRUE AND email_opt_out = FALSE AND tier = ANY($1)
		ORDER BY created_at ASC
	`
	return r.queryMembers(ctx, query, tiers)
}

func (r *PgMemberRepository) ListRewardEligible(ctx context.Context, tier string) ([]*domain.Member, error) {
	query := `
		SELECT ` + memberColumns + `
		FROM members
		WHERE is_active = TRUE
		  AND reward_opt_out = FALSE
		  AND tier = $1
		  AND email LIKE '_%@_%'
		ORDER BY created_at ASC
	`
	return r.queryMembers(ctx, query, tier)
}

func (r *PgMemberRepository) SetEmailOptOut(ctx context.Context, id uuid.UUID, optOut bool) error {
	query := `UPDATE members SET email_opt_out = $1 WHERE id = $2`
	tag, err := r.db.Exec(ctx, query, optOut, id)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error updating member email opt-out", "error", err, "member_id", id)
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	r.logger.InfoContext(ctx, "Member email opt-out updated", "member_id", id, "opt_out", optOut)
	return nil
}

func (r *PgMemberRepository) queryMembers(ctx context.Context, query string, args ...any) ([]*domain.Member, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error querying members", "error", err)
		return nil, err
	}
	defer rows.Close()

	var members []*domain.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func scanMember(row pgx.Row) (*domain.Member, error) {
	m := &domain.Member{}
	err := row.Scan(&m.ID, &m.Email, &m.Name, &m.Tier, &m.IsActive, &m.EmailOptOut, &m.RewardOptOut, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return m, nil
}

var _ domain.MemberRepository = (*PgMemberRepository)(nil)
