package dto

import "github.com/spec-kit/referral-service/internal/domain"

// ReferralResponse is the outward referral representation.
type ReferralResponse struct {
	ID         int64  `json:"id"`
	ReferrerID string `json:"referrerId"`
	ReferredID string `json:"referredId"`
	Successful bool   `json:"successful"`
}

// NewReferralResponses maps domain referrals to their API shape.
func NewReferralResponses(referrals []domain.Referral) []ReferralResponse {
	items := make([]ReferralResponse, 0, len(referrals))
	for _, referral := range referrals {
		items = append(items, ReferralResponse{
			ID:         referral.ID,
			ReferrerID: referral.ReferrerID,
			ReferredID: referral.ReferredID,
			Successful: referral.Successful,
		})
	}
	return items
}
