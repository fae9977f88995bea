package paypal

import (
	"context"
	"errors"
)

var (
	ErrSubscriptionNotFound = errors.New("subscription not found at payment provider")
	ErrMissingCredentials   = errors.New("payment provider credentials are not configured")
)

// SubscriptionDetails are the fields of a provider subscription the platform needs.
type SubscriptionDetails struct {
	ID              string
	PlanID          string
	Status          string
	StartTime       string
	NextBillingTime string
}

// DetailsFetcher looks up an approved subscription at the payment provider.
type DetailsFetcher interface {
	GetSubscription(ctx context.Context, subscriptionID string) (*SubscriptionDetails, error)
}
