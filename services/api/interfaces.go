package api

import (
	"context"

	"megatrade-web/models"
)

// AdminAPI is the admin half of the platform API.
type AdminAPI interface {
	CreateSubscriptions(ctx context.Context, req CreateSubscriptionsRequest) (*Result, error)
}

// UserAPI is the user half of the platform API.
type UserAPI interface {
	FetchSubscriptions(ctx context.Context, userID string) (*SubscriptionsData, error)
	CreateSubscription(ctx context.Context, req CreateSubscriptionRequest) (*Result, error)
	CancelSubscription(ctx context.Context, userID string) (*Result, error)
	GetSponsor(ctx context.Context, req GetSponsorRequest) (*Result, error)
}

type CreateSubscriptionsRequest struct {
	AdminID     string `json:"adminId"`
	Image       string `json:"image"`
	Price       string `json:"price"`
	Title       string `json:"title"`
	PlanID      string `json:"planId"`
	Validity    string `json:"validity"`
	Description string `json:"description"`
}

type CreateSubscriptionRequest struct {
	UserID         string `json:"userId"`
	PlanID         string `json:"planId"`
	OrderID        string `json:"orderId"`
	StartTime      string `json:"startTime"`
	SubscriptionID string `json:"subscriptionId"`
	NextBilling    string `json:"nextBilling"`
}

type GetSponsorRequest struct {
	UserID       string `json:"userId"`
	Code         string `json:"code"`
	Duration     string `json:"duration"`
	DurationPick string `json:"durationPick"`
}

// SubscriptionsData is the decoded payload of fetchSubscriptions.
type SubscriptionsData struct {
	Message       string
	Subscriptions []models.Subscription
	Membership    models.Membership
}
