// Package authority implements the HTTP client for the remote
// trial/subscription service. Every endpoint call retries transport errors
// and non-2xx answers a fixed number of times with exponential backoff;
// exhaustion surfaces as domain.ErrNetwork. Explicit refusals inside a 2xx
// body are domain.ErrDenied and are never retried.
package authority

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/threadlens/entitlement-service/internal/domain"
	"github.com/threadlens/entitlement-service/internal/ports"
)

// Config controls endpoint location and retry policy.
type Config struct {
	BaseURL        string
	HTTPClient     *http.Client
	MaxAttempts    int
	InitialBackoff time.Duration
	Logger         *slog.Logger
}

type Client struct {
	baseURL        string
	httpClient     *http.Client
	maxAttempts    int
	initialBackoff time.Duration
	logger         *slog.Logger
}

var _ ports.AuthorityClient = (*Client)(nil)

func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	backoff := cfg.InitialBackoff
	if backoff <= 0 {
		backoff = time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:     httpClient,
		maxAttempts:    maxAttempts,
		initialBackoff: backoff,
		logger:         logger.With("module", "authority", "layer", "adapter"),
	}
}

type subscriptionResponse struct {
	Active   bool       `json:"active"`
	Plan     string     `json:"plan"`
	RenewsAt *time.Time `json:"renewsAt"`
}

func (c *Client) CheckSubscription(ctx context.Context, deviceToken string) (ports.SubscriptionCheck, error) {
	var out subscriptionResponse
	q := url.Values{"token": {deviceToken}}
	if err := c.do(ctx, http.MethodGet, "/check?"+q.Encode(), nil, &out); err != nil {
		return ports.SubscriptionCheck{}, err
	}
	return ports.SubscriptionCheck{Active: out.Active, Plan: out.Plan, RenewsAt: out.RenewsAt}, nil
}

// The trial endpoints address the device as "deviceToken" in request
// bodies; the query-string endpoints use the shorter "token". Both spellings
// are the authority's, not ours.
func (c *Client) TrialAllowance(ctx context.Context, deviceToken string) (ports.TrialAllowance, error) {
	var out ports.TrialAllowance
	body := map[string]string{"deviceToken": deviceToken}
	if err := c.do(ctx, http.MethodPost, "/trial/check", body, &out); err != nil {
		return ports.TrialAllowance{}, err
	}
	return out, nil
}

type registerResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func (c *Client) RegisterTrial(ctx context.Context, deviceToken string, trialEndsAt time.Time) error {
	body := map[string]string{
		"deviceToken": deviceToken,
		"trialEndsAt": trialEndsAt.UTC().Format(time.RFC3339),
	}
	var out registerResponse
	if err := c.do(ctx, http.MethodPost, "/trial/register", body, &out); err != nil {
		return err
	}
	if !out.Success {
		return fmt.Errorf("%w: trial registration refused: %s", domain.ErrDenied, out.Error)
	}
	return nil
}

func (c *Client) TrialStatus(ctx context.Context, deviceToken string) (ports.TrialState, error) {
	var out ports.TrialState
	body := map[string]string{"deviceToken": deviceToken}
	if err := c.do(ctx, http.MethodPost, "/trial/status", body, &out); err != nil {
		return ports.TrialState{}, err
	}
	return out, nil
}

func (c *Client) Restore(ctx context.Context, email string) (ports.RestoreResult, error) {
	var out ports.RestoreResult
	q := url.Values{"email": {email}}
	if err := c.do(ctx, http.MethodGet, "/restore?"+q.Encode(), nil, &out); err != nil {
		return ports.RestoreResult{}, err
	}
	return out, nil
}

func (c *Client) Link(ctx context.Context, deviceToken, email string) error {
	body := map[string]string{"token": deviceToken, "email": email}
	return c.do(ctx, http.MethodPost, "/link", body, nil)
}

// notificationsResponse mirrors the pending-activation shape: the
// subscription sits one level down inside "notification".
type notificationsResponse struct {
	HasNotification bool `json:"hasNotification"`
	Notification    *struct {
		Subscription *subscriptionResponse `json:"subscription"`
	} `json:"notification"`
}

func (c *Client) Notifications(ctx context.Context, deviceToken string) (ports.ActivationNotice, error) {
	var out notificationsResponse
	q := url.Values{"token": {deviceToken}}
	if err := c.do(ctx, http.MethodGet, "/notifications?"+q.Encode(), nil, &out); err != nil {
		return ports.ActivationNotice{}, err
	}
	notice := ports.ActivationNotice{HasNotification: out.HasNotification}
	if out.Notification != nil && out.Notification.Subscription != nil {
		sub := out.Notification.Subscription
		notice.Subscription = &ports.SubscriptionCheck{
			Active:   sub.Active,
			Plan:     sub.Plan,
			RenewsAt: sub.RenewsAt,
		}
	}
	return notice, nil
}

// TrackAnalytics is fire-and-forget: one attempt, no retries, failures
// logged at debug and swallowed.
func (c *Client) TrackAnalytics(ctx context.Context, deviceToken, action string, metadata map[string]string) {
	body := map[string]any{"token": deviceToken, "action": action}
	if len(metadata) > 0 {
		body["metadata"] = metadata
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analytics", bytes.NewReader(raw))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.DebugContext(ctx, "analytics delivery failed",
			"operation", "track_analytics", "error", err)
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
}

// do runs one logical call with uniform retry. Any transport error or
// non-2xx status counts as a retryable failure; the schedule is
// initialBackoff * 2^(attempt-1). The Content-Type header is set on every
// request, GETs included, because the authority rejects requests without it.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		payload = raw
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			backoff := c.initialBackoff << (attempt - 2)
			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", domain.ErrNetwork, ctx.Err())
			case <-time.After(backoff):
			}
		}

		lastErr = c.once(ctx, method, path, payload, out)
		if lastErr == nil {
			return nil
		}
		c.logger.WarnContext(ctx, "authority call failed",
			"operation", method+" "+path,
			"attempt", attempt,
			"max_attempts", c.maxAttempts,
			"error", lastErr,
		)
	}
	return fmt.Errorf("%w: %s %s after %d attempts: %v",
		domain.ErrNetwork, method, path, c.maxAttempts, lastErr)
}

func (c *Client) once(ctx context.Context, method, path string, payload []byte, out any) error {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
