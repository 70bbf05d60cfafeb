package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/referral-service/internal/domain"
	"github.com/spec-kit/referral-service/internal/observability"
	"github.com/spec-kit/referral-service/internal/repository"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller.
type Principal struct {
	User *domain.User
}

// IdentityMiddleware resolves bearer tokens into principals. A missing or
// invalid token leaves the request unauthenticated rather than rejecting
// it; handlers that need an identity check for one explicitly.
type IdentityMiddleware struct {
	tokens *TokenManager
	users  repository.UserRepository
}

// NewIdentityMiddleware constructs middleware.
func NewIdentityMiddleware(tokens *TokenManager, users repository.UserRepository) *IdentityMiddleware {
	return &IdentityMiddleware{tokens: tokens, users: users}
}

// Handle attaches the caller's identity when a valid bearer token is present.
func (m *IdentityMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return c.Next()
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return c.Next()
	}

	tokenStr := parts[1]
	if !m.tokens.Validate(tokenStr) {
		return c.Next()
	}

	userID, err := m.tokens.ExtractUserID(tokenStr)
	if err != nil {
		return c.Next()
	}

	user, err := m.users.GetByID(c.Context(), userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Next()
		}
		return err
	}

	c.Locals(principalKey, &Principal{User: user})
	c.Locals(observability.RequestUserKey, user.UserID)
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
