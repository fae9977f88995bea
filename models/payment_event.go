package models

import "time"

type PaymentEventKind string

const (
	EventPaymentApproved     PaymentEventKind = "approved"
	EventPaymentAPIFailed    PaymentEventKind = "api_failed"
	EventProviderError       PaymentEventKind = "provider_error"
	EventPaymentCancelled    PaymentEventKind = "cancelled"
	EventMembershipCancelled PaymentEventKind = "membership_cancelled"
	EventSponsorRedeemed     PaymentEventKind = "sponsor_redeemed"
	EventSponsorFailed       PaymentEventKind = "sponsor_failed"
)

// PaymentEvent is one entry of the checkout audit ledger.
type PaymentEvent struct {
	ID             string           `json:"id"`
	UserID         string           `json:"user_id"`
	Kind           PaymentEventKind `json:"kind"`
	PlanID         string           `json:"plan_id,omitempty"`
	OrderID        string           `json:"order_id,omitempty"`
	SubscriptionID string           `json:"subscription_id,omitempty"`
	Message        string           `json:"message,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}
