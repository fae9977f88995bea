package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"megatrade-web/metrics"
)

const (
	RequestTimeout = 15 * time.Second
	maxBodyBytes   = 4 << 20

	// DefaultErrorMessage is shown when the platform could not be reached or
	// answered with something other than a result envelope.
	DefaultErrorMessage = "Something went wrong, please try again later"
)

// Result is a successful platform response.
type Result struct {
	Message string
	Data    gjson.Result
}

// Error is a failure reported by the platform itself ({"error": true}).
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("platform api error (status %d): %s", e.StatusCode, e.Message)
}

// UserMessage returns the message to show the user for err: the server message
// for platform failures, a generic message for anything else.
func UserMessage(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && strings.TrimSpace(apiErr.Message) != "" {
		return apiErr.Message
	}
	return DefaultErrorMessage
}

type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = RequestTimeout
	}
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

// NewClientWithHTTP builds a client over a caller supplied http.Client.
func NewClientWithHTTP(baseURL string, httpClient *http.Client) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), client: httpClient}
}

// post sends payload to path and decodes the {error, message, data} envelope.
func (c *Client) post(ctx context.Context, operation, path string, payload interface{}) (*Result, error) {
	started := time.Now()
	requestID := uuid.New().String()
	logger := log.WithFields(log.Fields{"operation": operation, "request_id": requestID})

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s request: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	resp, err := c.client.Do(req)
	if err != nil {
		metrics.ObserveUpstream(operation, "transport_error", started)
		logger.Printf("Error calling platform api: %v", err)
		return nil, fmt.Errorf("%s request failed: %w", operation, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		metrics.ObserveUpstream(operation, "transport_error", started)
		return nil, fmt.Errorf("failed to read %s response: %w", operation, err)
	}

	if !gjson.ValidBytes(raw) {
		metrics.ObserveUpstream(operation, "invalid_response", started)
		logger.Printf("Platform api returned non-JSON body with status %d", resp.StatusCode)
		return nil, fmt.Errorf("%s: invalid response body (status %d)", operation, resp.StatusCode)
	}

	envelope := gjson.ParseBytes(raw)
	message := envelope.Get("message").String()

	if envelope.Get("error").Bool() || resp.StatusCode >= http.StatusBadRequest {
		metrics.ObserveUpstream(operation, "api_error", started)
		logger.Printf("Platform api reported failure (status %d): %s", resp.StatusCode, message)
		return nil, &Error{StatusCode: resp.StatusCode, Message: message}
	}

	metrics.ObserveUpstream(operation, "ok", started)
	logger.Debugf("Platform api call succeeded in %v", time.Since(started))

	return &Result{Message: message, Data: envelope.Get("data")}, nil
}
