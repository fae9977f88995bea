package models

import "strings"

// Tier identifies a membership level independently of its display title.
type Tier string

const (
	TierFree Tier = "free"
	TierPaid Tier = "paid"
)

// LegacyFreeTitle is the title the platform used for the free tier before
// subscriptions carried an explicit tier.
const LegacyFreeTitle = "Free Membership"

type Subscription struct {
	Title       string `json:"title"`
	Price       string `json:"price"`
	PlanID      string `json:"planId"`
	Validity    string `json:"validity"`
	Description string `json:"description"`
	Image       string `json:"image"`
	Tier        Tier   `json:"tier,omitempty"`
}

// ResolveTier returns the tier of the subscription. An explicit tier from the
// API always wins; otherwise only the legacy title marks the free tier. A zero
// price does not, since trial plans are paid plans.
func (s Subscription) ResolveTier() Tier {
	switch Tier(strings.ToLower(strings.TrimSpace(string(s.Tier)))) {
	case TierFree:
		return TierFree
	case TierPaid:
		return TierPaid
	}
	if strings.TrimSpace(s.Title) == LegacyFreeTitle {
		return TierFree
	}
	return TierPaid
}

// Membership describes the plan the user currently holds. The API sends it
// either as a bare title or as an object; both decode into this struct.
type Membership struct {
	Title          string `json:"title"`
	PlanID         string `json:"planId,omitempty"`
	SubscriptionID string `json:"subscriptionId,omitempty"`
	NextBilling    string `json:"nextBilling,omitempty"`
	Status         string `json:"status,omitempty"`
	Tier           Tier   `json:"tier,omitempty"`
}

func (m Membership) IsZero() bool {
	return m.Title == "" && m.PlanID == "" && m.SubscriptionID == ""
}

// Holds reports whether the membership refers to the given subscription.
func (m Membership) Holds(s Subscription) bool {
	if m.PlanID != "" && s.PlanID != "" {
		return m.PlanID == s.PlanID
	}
	return m.Title != "" && strings.EqualFold(strings.TrimSpace(m.Title), strings.TrimSpace(s.Title))
}

// SelectedPlan is the paid tier picked for checkout.
type SelectedPlan struct {
	Price  string `json:"price"`
	PlanID string `json:"planId"`
}

// SponsorRequest is the payload of a sponsor code redemption.
type SponsorRequest struct {
	Code         string `json:"code"`
	Duration     string `json:"duration"`
	DurationPick string `json:"durationPick"`
}
