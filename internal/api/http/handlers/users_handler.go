package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/referral-service/internal/api/dto"
	"github.com/spec-kit/referral-service/internal/service"
	apperrors "github.com/spec-kit/referral-service/pkg/util"
)

// UsersHandler exposes signup, login, profile completion and referral
// listing endpoints.
type UsersHandler struct {
	engine *service.ReferralService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(engine *service.ReferralService) *UsersHandler {
	return &UsersHandler{engine: engine}
}

// Signup handles POST /api/users/signup.
func (h *UsersHandler) Signup(c *fiber.Ctx) error {
	var req dto.SignupRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.UserID == "" || req.Password == "" {
		return apperrors.NewValidationError("userId and password required", nil)
	}

	user, err := h.engine.Signup(c.Context(), req.UserID, req.Password, req.ReferralCode)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(dto.NewUserResponse(user))
}

// Login handles POST /api/auth/login.
func (h *UsersHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.UserID == "" || req.Password == "" {
		return apperrors.NewValidationError("userId and password required", nil)
	}

	token, _, err := h.engine.Login(c.Context(), req.UserID, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(dto.TokenResponse{Token: token})
}

// CompleteProfile handles POST /api/users/profile.
func (h *UsersHandler) CompleteProfile(c *fiber.Ctx) error {
	var req dto.CompleteProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.UserID == "" {
		return apperrors.NewValidationError("userId required", nil)
	}

	if err := h.engine.CompleteProfile(c.Context(), req.UserID); err != nil {
		return err
	}
	c.Status(http.StatusOK)
	return nil
}

// ListReferrals handles GET /api/users/:userId/referrals.
func (h *UsersHandler) ListReferrals(c *fiber.Ctx) error {
	userID := c.Params("userId")
	referrals, err := h.engine.GetReferrals(c.Context(), userID)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewReferralResponses(referrals))
}
