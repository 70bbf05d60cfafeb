package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/referral-service/internal/domain"
)

// ConstraintReferralReferred guards the one-referral-per-referred-user rule.
const ConstraintReferralReferred = "referrals_referred_id_key"

// ReferralRepository encapsulates referral edge persistence.
type ReferralRepository interface {
	Create(ctx context.Context, referral *domain.Referral) error
	ListByReferrer(ctx context.Context, referrerID string) ([]domain.Referral, error)
	ListByReferred(ctx context.Context, referredID string) ([]domain.Referral, error)
	MarkSuccessful(ctx context.Context, id int64) error
	ListAll(ctx context.Context) ([]domain.Referral, error)
}

type referralRepository struct {
	db DB
}

// NewReferralRepository returns a Postgres-backed implementation.
func NewReferralRepository(db DB) ReferralRepository {
	return &referralRepository{db: db}
}

func (r *referralRepository) Create(ctx context.Context, referral *domain.Referral) error {
	const query = `
        INSERT INTO referrals (referrer_id, referred_id, successful)
        VALUES ($1, $2, $3)
        RETURNING id, created_at, updated_at`

	return r.db.QueryRow(ctx, query,
		referral.ReferrerID,
		referral.ReferredID,
		referral.Successful,
	).Scan(&referral.ID, &referral.CreatedAt, &referral.UpdatedAt)
}

func (r *referralRepository) ListByReferrer(ctx context.Context, referrerID string) ([]domain.Referral, error) {
	const query = `
        SELECT id, referrer_id, referred_id, successful, created_at, updated_at
        FROM referrals WHERE referrer_id=$1 ORDER BY id`
	return r.list(ctx, query, referrerID)
}

func (r *referralRepository) ListByReferred(ctx context.Context, referredID string) ([]domain.Referral, error) {
	const query = `
        SELECT id, referrer_id, referred_id, successful, created_at, updated_at
        FROM referrals WHERE referred_id=$1 ORDER BY id`
	return r.list(ctx, query, referredID)
}

func (r *referralRepository) ListAll(ctx context.Context) ([]domain.Referral, error) {
	const query = `
        SELECT id, referrer_id, referred_id, successful, created_at, updated_at
        FROM referrals ORDER BY id`
	return r.list(ctx, query)
}

func (r *referralRepository) list(ctx context.Context, query string, args ...any) ([]domain.Referral, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReferrals(rows)
}

func (r *referralRepository) MarkSuccessful(ctx context.Context, id int64) error {
	const query = `
        UPDATE referrals SET successful=TRUE, updated_at=NOW()
        WHERE id=$1`

	cmd, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanReferrals(rows pgx.Rows) ([]domain.Referral, error) {
	var result []domain.Referral
	for rows.Next() {
		var referral domain.Referral
		if err := rows.Scan(
			&referral.ID,
			&referral.ReferrerID,
			&referral.ReferredID,
			&referral.Successful,
			&referral.CreatedAt,
			&referral.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, referral)
	}
	return result, rows.Err()
}
