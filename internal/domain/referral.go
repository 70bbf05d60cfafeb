package domain

import "time"

// Referral links a referrer to the user they invited. Successful flips to
// true exactly once, when the referred user completes their profile, and
// never reverts.
type Referral struct {
	ID         int64
	ReferrerID string
	ReferredID string
	Successful bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
