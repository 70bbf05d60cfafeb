package dto

import "github.com/spec-kit/referral-service/internal/domain"

// SignupRequest payload for new users.
type SignupRequest struct {
	UserID       string `json:"userId"`
	Password     string `json:"password"`
	ReferralCode string `json:"referralCode"`
}

// LoginRequest payload for login.
type LoginRequest struct {
	UserID   string `json:"userId"`
	Password string `json:"password"`
}

// TokenResponse carries the issued bearer token.
type TokenResponse struct {
	Token string `json:"token"`
}

// CompleteProfileRequest payload for profile completion.
type CompleteProfileRequest struct {
	UserID string `json:"userId"`
}

// UserResponse is the outward user representation. The password hash is
// deliberately absent.
type UserResponse struct {
	UserID           string      `json:"userId"`
	ReferralCode     string      `json:"referralCode"`
	ProfileCompleted bool        `json:"profileCompleted"`
	Role             domain.Role `json:"role"`
}

// NewUserResponse maps a domain user to its API shape.
func NewUserResponse(user *domain.User) UserResponse {
	return UserResponse{
		UserID:           user.UserID,
		ReferralCode:     user.ReferralCode,
		ProfileCompleted: user.ProfileCompleted,
		Role:             user.Role,
	}
}
