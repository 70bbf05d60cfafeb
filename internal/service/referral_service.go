package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/referral-service/internal/auth"
	"github.com/spec-kit/referral-service/internal/config"
	"github.com/spec-kit/referral-service/internal/domain"
	"github.com/spec-kit/referral-service/internal/events"
	"github.com/spec-kit/referral-service/internal/repository"
	apperrors "github.com/spec-kit/referral-service/pkg/util"
)

const (
	referralCodeLength = 8
	// The code space is 16^8; a bounded retry protects against pathological
	// exhaustion without ever triggering in practice.
	maxCodeAttempts = 16
)

// ReferralService coordinates signup, login, profile completion and
// referral queries. It is the only component holding business logic.
type ReferralService struct {
	users      repository.UserRepository
	referrals  repository.ReferralRepository
	tx         repository.TxManager
	tokenMgr   *auth.TokenManager
	dispatcher events.Dispatcher
	logger     *zap.Logger
	bcryptCost int

	newCode func() string
}

// Dependencies encapsulates store and infrastructure requirements.
type Dependencies struct {
	Users      repository.UserRepository
	Referrals  repository.ReferralRepository
	Tx         repository.TxManager
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewReferralService builds the service.
func NewReferralService(cfg config.Config, deps Dependencies) *ReferralService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReferralService{
		users:      deps.Users,
		referrals:  deps.Referrals,
		tx:         deps.Tx,
		tokenMgr:   auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL()),
		dispatcher: deps.Dispatcher,
		logger:     logger,
		bcryptCost: cfg.Auth.BcryptCost,
		newCode:    func() string { return uuid.NewString()[:referralCodeLength] },
	}
}

// Signup creates a new user with a fresh unique referral code and, when a
// referral code argument is supplied, links a referral to the code's owner.
// The user insert and the referral insert commit in a single transaction.
func (s *ReferralService) Signup(ctx context.Context, userID, password, referralCode string) (*domain.User, error) {
	// Fast-path existence check; the primary-key constraint is the
	// authoritative guard against concurrent signups.
	if _, err := s.users.GetByID(ctx, userID); err == nil {
		return nil, apperrors.NewUserAlreadyExists(userID)
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	var referrer *domain.User
	if referralCode != "" {
		owner, err := s.users.GetByReferralCode(ctx, referralCode)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewInvalidReferralCode(referralCode)
		} else if err != nil {
			return nil, err
		}
		referrer = owner
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		user := &domain.User{
			UserID:           userID,
			PasswordHash:     hash,
			ReferralCode:     s.newCode(),
			ProfileCompleted: false,
			Role:             domain.RoleUser,
		}

		if taken, err := s.codeTaken(ctx, user.ReferralCode); err != nil {
			return nil, err
		} else if taken {
			continue
		}

		var referral *domain.Referral
		err = s.tx.WithinTx(ctx, func(users repository.UserRepository, referrals repository.ReferralRepository) error {
			if err := users.Create(ctx, user); err != nil {
				return err
			}
			if referrer != nil {
				referral = &domain.Referral{
					ReferrerID: referrer.UserID,
					ReferredID: user.UserID,
					Successful: false,
				}
				return referrals.Create(ctx, referral)
			}
			return nil
		})
		if err != nil {
			if repository.IsUniqueViolation(err, repository.ConstraintUserReferralCode) {
				// Lost a race for the code; regenerate and retry.
				continue
			}
			if repository.IsUniqueViolation(err, repository.ConstraintUserPK) {
				return nil, apperrors.NewUserAlreadyExists(userID)
			}
			return nil, err
		}

		s.publishEvent(ctx, events.Event{
			Type:    events.EventUserRegistered,
			UserID:  user.UserID,
			Payload: events.UserRegisteredPayload{ReferralCode: user.ReferralCode},
		})
		if referral != nil {
			s.publishEvent(ctx, events.Event{
				Type:   events.EventReferralLinked,
				UserID: user.UserID,
				Payload: events.ReferralLinkedPayload{
					ReferralID: referral.ID,
					ReferrerID: referral.ReferrerID,
					ReferredID: referral.ReferredID,
				},
			})
		}
		return user, nil
	}

	s.logger.Error("referral code space exhausted", zap.Int("attempts", maxCodeAttempts))
	return nil, apperrors.NewReferralCodeExhausted(maxCodeAttempts)
}

func (s *ReferralService) codeTaken(ctx context.Context, code string) (bool, error) {
	_, err := s.users.GetByReferralCode(ctx, code)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return false, err
}

// Login authenticates a user and issues a signed bearer token carrying the
// user id and role.
func (s *ReferralService) Login(ctx context.Context, userID, password string) (string, time.Time, error) {
	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", time.Time{}, apperrors.NewUserNotFound(userID)
	} else if err != nil {
		return "", time.Time{}, err
	}

	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return "", time.Time{}, apperrors.NewAuthenticationFailed()
	}

	return s.tokenMgr.GenerateToken(user.UserID, user.Role)
}

// CompleteProfile marks the user's profile completed and flips every
// inbound referral to successful. Both mutations are idempotent, so a
// repeated call yields the same final state.
func (s *ReferralService) CompleteProfile(ctx context.Context, userID string) error {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewUserNotFound(userID)
		}
		return err
	}

	if err := s.users.MarkProfileCompleted(ctx, userID); err != nil {
		return err
	}

	inbound, err := s.referrals.ListByReferred(ctx, userID)
	if err != nil {
		return err
	}
	for _, referral := range inbound {
		if referral.Successful {
			continue
		}
		if err := s.referrals.MarkSuccessful(ctx, referral.ID); err != nil {
			return err
		}
		s.publishEvent(ctx, events.Event{
			Type:   events.EventReferralConverted,
			UserID: userID,
			Payload: events.ReferralConvertedPayload{
				ReferralID: referral.ID,
				ReferrerID: referral.ReferrerID,
			},
		})
	}
	return nil
}

// GetReferrals returns the user's outbound referrals in store order.
func (s *ReferralService) GetReferrals(ctx context.Context, userID string) ([]domain.Referral, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewUserNotFound(userID)
		}
		return nil, err
	}
	return s.referrals.ListByReferrer(ctx, userID)
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *ReferralService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *ReferralService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}
