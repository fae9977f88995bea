package paypal

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"megatrade-web/metrics"
)

const (
	SandboxEndpoint    = "https://api-m.sandbox.paypal.com"
	ProductionEndpoint = "https://api-m.paypal.com"
	RequestTimeout     = 20 * time.Second

	// tokens are refreshed this long before PayPal expires them
	tokenSkew = time.Minute
)

type Client struct {
	clientID     string
	clientSecret string
	baseURL      string
	client       *http.Client

	mutex       sync.Mutex
	accessToken string
	expiresAt   time.Time
}

func NewClient(clientID, clientSecret, environment string) *Client {
	endpoint := SandboxEndpoint
	if environment == "production" || environment == "live" {
		endpoint = ProductionEndpoint
	}
	return NewClientWithBaseURL(clientID, clientSecret, endpoint, &http.Client{Timeout: RequestTimeout})
}

func NewClientWithBaseURL(clientID, clientSecret, baseURL string, httpClient *http.Client) *Client {
	return &Client{
		clientID:     clientID,
		clientSecret: clientSecret,
		baseURL:      strings.TrimRight(baseURL, "/"),
		client:       httpClient,
	}
}

// token returns a cached OAuth2 access token, requesting a new one when needed.
func (c *Client) token(ctx context.Context) (string, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.accessToken != "" && time.Now().Before(c.expiresAt) {
		return c.accessToken, nil
	}
	if c.clientID == "" || c.clientSecret == "" {
		return "", ErrMissingCredentials
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	started := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		metrics.ObserveUpstream("paypal_token", "transport_error", started)
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		metrics.ObserveUpstream("paypal_token", "api_error", started)
		return "", fmt.Errorf("token request rejected with status %d: %s",
			resp.StatusCode, gjson.GetBytes(body, "error_description").String())
	}

	parsed := gjson.ParseBytes(body)
	c.accessToken = parsed.Get("access_token").String()
	if c.accessToken == "" {
		return "", fmt.Errorf("token response did not contain an access token")
	}
	ttl := time.Duration(parsed.Get("expires_in").Int()) * time.Second
	c.expiresAt = time.Now().Add(ttl - tokenSkew)

	metrics.ObserveUpstream("paypal_token", "ok", started)
	return c.accessToken, nil
}

// GetSubscription reads an approved subscription so that its plan and billing
// dates can be forwarded to the platform.
func (c *Client) GetSubscription(ctx context.Context, subscriptionID string) (*SubscriptionDetails, error) {
	subscriptionID = strings.TrimSpace(subscriptionID)
	if subscriptionID == "" {
		return nil, fmt.Errorf("subscription id is required")
	}

	accessToken, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	endpoint := c.baseURL + "/v1/billing/subscriptions/" + url.PathEscape(subscriptionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build subscription request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("PayPal-Request-Id", uuid.New().String())

	started := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		metrics.ObserveUpstream("paypal_get_subscription", "transport_error", started)
		return nil, fmt.Errorf("subscription request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read subscription response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		metrics.ObserveUpstream("paypal_get_subscription", "not_found", started)
		return nil, ErrSubscriptionNotFound
	case resp.StatusCode == http.StatusUnauthorized:
		c.mutex.Lock()
		c.accessToken = ""
		c.mutex.Unlock()
		metrics.ObserveUpstream("paypal_get_subscription", "api_error", started)
		return nil, fmt.Errorf("payment provider rejected the access token")
	case resp.StatusCode != http.StatusOK:
		metrics.ObserveUpstream("paypal_get_subscription", "api_error", started)
		return nil, fmt.Errorf("subscription request failed with status %d: %s",
			resp.StatusCode, gjson.GetBytes(body, "message").String())
	}

	parsed := gjson.ParseBytes(body)
	details := &SubscriptionDetails{
		ID:              parsed.Get("id").String(),
		PlanID:          parsed.Get("plan_id").String(),
		Status:          parsed.Get("status").String(),
		StartTime:       parsed.Get("start_time").String(),
		NextBillingTime: parsed.Get("billing_info.next_billing_time").String(),
	}

	metrics.ObserveUpstream("paypal_get_subscription", "ok", started)
	log.WithFields(log.Fields{
		"subscription_id": details.ID,
		"plan_id":         details.PlanID,
		"status":          details.Status,
	}).Info("Fetched provider subscription")

	return details, nil
}
