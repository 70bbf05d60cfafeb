package events

import "time"

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventUserRegistered    EventType = "user_registered"
	EventReferralLinked    EventType = "referral_linked"
	EventReferralConverted EventType = "referral_converted"
)

// Event represents a domain event emitted by the referral engine.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	UserID    string      `json:"user_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// UserRegisteredPayload payload.
type UserRegisteredPayload struct {
	ReferralCode string `json:"referral_code"`
}

// ReferralLinkedPayload payload.
type ReferralLinkedPayload struct {
	ReferralID int64  `json:"referral_id"`
	ReferrerID string `json:"referrer_id"`
	ReferredID string `json:"referred_id"`
}

// ReferralConvertedPayload payload.
type ReferralConvertedPayload struct {
	ReferralID int64  `json:"referral_id"`
	ReferrerID string `json:"referrer_id"`
}
