package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// TxManager runs a function against transaction-scoped repositories, so
// multi-write sequences commit or roll back as a unit.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(users UserRepository, referrals ReferralRepository) error) error
}

type pgxTxManager struct {
	pool *pgxpool.Pool
}

// NewTxManager returns a pgx-backed transaction manager.
func NewTxManager(pool *pgxpool.Pool) TxManager {
	return &pgxTxManager{pool: pool}
}

func (m *pgxTxManager) WithinTx(ctx context.Context, fn func(users UserRepository, referrals ReferralRepository) error) error {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(NewUserRepository(tx), NewReferralRepository(tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
