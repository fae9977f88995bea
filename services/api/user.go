package api

import (
	"context"

	"github.com/tidwall/gjson"

	"megatrade-web/models"
)

func (c *Client) FetchSubscriptions(ctx context.Context, userID string) (*SubscriptionsData, error) {
	res, err := c.post(ctx, "fetch_subscriptions", "/user/subscriptions", map[string]string{"userId": userID})
	if err != nil {
		return nil, err
	}

	return &SubscriptionsData{
		Message:       res.Message,
		Subscriptions: decodeSubscriptions(res.Data.Get("subscriptions")),
		Membership:    decodeMembership(res.Data.Get("userMembership")),
	}, nil
}

func (c *Client) CreateSubscription(ctx context.Context, req CreateSubscriptionRequest) (*Result, error) {
	return c.post(ctx, "create_subscription", "/user/subscription", req)
}

func (c *Client) CancelSubscription(ctx context.Context, userID string) (*Result, error) {
	return c.post(ctx, "cancel_subscription", "/user/subscription/cancel", map[string]string{"userId": userID})
}

func (c *Client) GetSponsor(ctx context.Context, req GetSponsorRequest) (*Result, error) {
	return c.post(ctx, "get_sponsor", "/user/sponsor", req)
}

// decodeSubscriptions reads each tier field by field so that numeric prices
// and object image references survive as strings.
func decodeSubscriptions(list gjson.Result) []models.Subscription {
	subscriptions := []models.Subscription{}
	if !list.IsArray() {
		return subscriptions
	}
	list.ForEach(func(_, item gjson.Result) bool {
		image := item.Get("image")
		imageRef := image.String()
		if image.IsObject() {
			imageRef = firstNonEmpty(image.Get("url").String(), image.Get("path").String(), image.Raw)
		}
		subscriptions = append(subscriptions, models.Subscription{
			Title:       item.Get("title").String(),
			Price:       item.Get("price").String(),
			PlanID:      item.Get("planId").String(),
			Validity:    item.Get("validity").String(),
			Description: item.Get("description").String(),
			Image:       imageRef,
			Tier:        models.Tier(item.Get("tier").String()),
		})
		return true
	})
	return subscriptions
}

func decodeMembership(value gjson.Result) models.Membership {
	switch {
	case value.Type == gjson.String:
		return models.Membership{Title: value.String()}
	case value.IsObject():
		return models.Membership{
			Title:          firstNonEmpty(value.Get("title").String(), value.Get("name").String()),
			PlanID:         value.Get("planId").String(),
			SubscriptionID: value.Get("subscriptionId").String(),
			NextBilling:    value.Get("nextBilling").String(),
			Status:         value.Get("status").String(),
			Tier:           models.Tier(value.Get("tier").String()),
		}
	default:
		return models.Membership{}
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
