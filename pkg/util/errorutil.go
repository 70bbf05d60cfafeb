package util

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError("VALIDATION_FAILED", message, http.StatusBadRequest, details)
}

// NewUserNotFound reports a lookup miss for the given user id.
func NewUserNotFound(userID string) error {
	return NewDomainError("USER_NOT_FOUND", fmt.Sprintf("user not found: %s", userID),
		http.StatusNotFound, map[string]any{"userId": userID})
}

// NewUserAlreadyExists reports a signup against a taken user id.
func NewUserAlreadyExists(userID string) error {
	return NewDomainError("USER_ALREADY_EXISTS", fmt.Sprintf("user already exists: %s", userID),
		http.StatusConflict, map[string]any{"userId": userID})
}

// NewInvalidReferralCode reports a signup citing a code no user owns.
func NewInvalidReferralCode(code string) error {
	return NewDomainError("INVALID_REFERRAL_CODE", fmt.Sprintf("invalid referral code: %s", code),
		http.StatusBadRequest, map[string]any{"referralCode": code})
}

// NewAuthenticationFailed reports a password mismatch at login.
func NewAuthenticationFailed() error {
	return NewDomainError("AUTHENTICATION_FAILED", "invalid credentials", http.StatusUnauthorized, nil)
}

// NewReferralCodeExhausted reports that code generation ran out of retries.
func NewReferralCodeExhausted(attempts int) error {
	return NewDomainError("REFERRAL_CODE_EXHAUSTED",
		fmt.Sprintf("could not generate a unique referral code after %d attempts", attempts),
		http.StatusInternalServerError, nil)
}

func NewUnauthorized(message string) error {
	return NewDomainError("UNAUTHORIZED", message, http.StatusUnauthorized, nil)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return &DomainError{
			Code:       "NOT_FOUND",
			Message:    "resource not found",
			HTTPStatus: http.StatusNotFound,
		}
	}
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}
