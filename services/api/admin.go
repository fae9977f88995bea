package api

import "context"

// CreateSubscriptions creates a new subscription tier on behalf of an admin.
func (c *Client) CreateSubscriptions(ctx context.Context, req CreateSubscriptionsRequest) (*Result, error) {
	return c.post(ctx, "create_subscriptions", "/admin/subscriptions", req)
}
