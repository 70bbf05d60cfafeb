package service

import (
	"context"
	"sort"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/referral-service/internal/domain"
	"github.com/spec-kit/referral-service/internal/repository"
)

// memStore is an in-memory stand-in for the two tables, enforcing the same
// uniqueness constraints the real schema does.
type memStore struct {
	mu        sync.Mutex
	users     map[string]*domain.User
	referrals map[int64]*domain.Referral
	nextID    int64
}

func newMemStore() *memStore {
	return &memStore{
		users:     make(map[string]*domain.User),
		referrals: make(map[int64]*domain.Referral),
	}
}

func uniqueViolation(constraint string) error {
	return &pgconn.PgError{Code: "23505", ConstraintName: constraint}
}

type fakeUserRepo struct {
	store *memStore
}

func (f *fakeUserRepo) Create(ctx context.Context, user *domain.User) error {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	if _, ok := f.store.users[user.UserID]; ok {
		return uniqueViolation(repository.ConstraintUserPK)
	}
	for _, existing := range f.store.users {
		if existing.ReferralCode == user.ReferralCode {
			return uniqueViolation(repository.ConstraintUserReferralCode)
		}
	}
	clone := *user
	f.store.users[user.UserID] = &clone
	return nil
}

func (f *fakeUserRepo) GetByID(ctx context.Context, userID string) (*domain.User, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	user, ok := f.store.users[userID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *user
	return &clone, nil
}

func (f *fakeUserRepo) GetByReferralCode(ctx context.Context, code string) (*domain.User, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	for _, user := range f.store.users {
		if user.ReferralCode == code {
			clone := *user
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeUserRepo) MarkProfileCompleted(ctx context.Context, userID string) error {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	user, ok := f.store.users[userID]
	if !ok {
		return pgx.ErrNoRows
	}
	user.ProfileCompleted = true
	return nil
}

type fakeReferralRepo struct {
	store *memStore
}

func (f *fakeReferralRepo) Create(ctx context.Context, referral *domain.Referral) error {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	for _, existing := range f.store.referrals {
		if existing.ReferredID == referral.ReferredID {
			return uniqueViolation(repository.ConstraintReferralReferred)
		}
	}
	f.store.nextID++
	referral.ID = f.store.nextID
	clone := *referral
	f.store.referrals[referral.ID] = &clone
	return nil
}

func (f *fakeReferralRepo) ListByReferrer(ctx context.Context, referrerID string) ([]domain.Referral, error) {
	return f.list(func(r *domain.Referral) bool { return r.ReferrerID == referrerID })
}

func (f *fakeReferralRepo) ListByReferred(ctx context.Context, referredID string) ([]domain.Referral, error) {
	return f.list(func(r *domain.Referral) bool { return r.ReferredID == referredID })
}

func (f *fakeReferralRepo) ListAll(ctx context.Context) ([]domain.Referral, error) {
	return f.list(func(*domain.Referral) bool { return true })
}

func (f *fakeReferralRepo) list(match func(*domain.Referral) bool) ([]domain.Referral, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	var result []domain.Referral
	for _, referral := range f.store.referrals {
		if match(referral) {
			result = append(result, *referral)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (f *fakeReferralRepo) MarkSuccessful(ctx context.Context, id int64) error {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	referral, ok := f.store.referrals[id]
	if !ok {
		return pgx.ErrNoRows
	}
	referral.Successful = true
	return nil
}

type fakeTxManager struct {
	store *memStore
}

func (f *fakeTxManager) WithinTx(ctx context.Context, fn func(users repository.UserRepository, referrals repository.ReferralRepository) error) error {
	return fn(&fakeUserRepo{store: f.store}, &fakeReferralRepo{store: f.store})
}
