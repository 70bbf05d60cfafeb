package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/referral-service/internal/domain"
)

// Constraint names enforced by the users table.
const (
	ConstraintUserPK           = "users_pkey"
	ConstraintUserReferralCode = "users_referral_code_key"
)

// UserRepository defines persistence access for user accounts. Exactly the
// lookups the engine needs: by id and by referral code.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, userID string) (*domain.User, error)
	GetByReferralCode(ctx context.Context, code string) (*domain.User, error)
	MarkProfileCompleted(ctx context.Context, userID string) error
}

type userRepository struct {
	db DB
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(db DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (user_id, password_hash, referral_code, profile_completed, role)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING created_at, updated_at`

	return r.db.QueryRow(ctx, query,
		user.UserID,
		user.PasswordHash,
		user.ReferralCode,
		user.ProfileCompleted,
		user.Role,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
}

func (r *userRepository) GetByID(ctx context.Context, userID string) (*domain.User, error) {
	const query = `
        SELECT user_id, password_hash, referral_code, profile_completed, role, created_at, updated_at
        FROM users WHERE user_id=$1`
	return r.fetchSingle(ctx, query, userID)
}

func (r *userRepository) GetByReferralCode(ctx context.Context, code string) (*domain.User, error) {
	const query = `
        SELECT user_id, password_hash, referral_code, profile_completed, role, created_at, updated_at
        FROM users WHERE referral_code=$1`
	return r.fetchSingle(ctx, query, code)
}

func (r *userRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.User, error) {
	var user domain.User
	if err := r.db.QueryRow(ctx, query, arg).Scan(
		&user.UserID,
		&user.PasswordHash,
		&user.ReferralCode,
		&user.ProfileCompleted,
		&user.Role,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) MarkProfileCompleted(ctx context.Context, userID string) error {
	const query = `
        UPDATE users SET profile_completed=TRUE, updated_at=NOW()
        WHERE user_id=$1`

	cmd, err := r.db.Exec(ctx, query, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
