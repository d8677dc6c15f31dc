// Package lookup resolves usernames against the authoritative profile service.
package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/yossiovadia/premium-check/internal/constant"
	"github.com/yossiovadia/premium-check/internal/logger"
	"github.com/yossiovadia/premium-check/internal/metrics"
)

// maxAttempts bounds a lookup to the first request plus one retry after a rate limit.
const maxAttempts = 2

// Client performs profile lookups. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retryDelay time.Duration
	userAgent  string
	metrics    *metrics.Metrics
	logger     *logger.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default pooled client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRetryDelay sets the fixed wait before retrying a rate-limited lookup.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) { c.retryDelay = d }
}

// WithUserAgent sets the User-Agent header sent with every lookup.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithMetrics records attempt outcomes and latencies on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient creates a client for the profile service rooted at baseURL.
func NewClient(log *logger.Logger, baseURL string, opts ...Option) *Client {
	if log == nil {
		log = logger.Production()
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: NewHTTPClient(DefaultTransportConfig(constant.DefaultLookupTimeout)),
		retryDelay: constant.DefaultRetryDelay,
		userAgent:  constant.DefaultUserAgent,
		logger:     log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup resolves username to its canonical profile.
//
// A rate-limited answer is retried exactly once after the configured delay;
// whatever the second attempt returns is final. Not-found and transient
// failures are returned as-is without retrying.
func (c *Client) Lookup(ctx context.Context, username string) Outcome {
	backoff := wait.Backoff{
		Steps:    maxAttempts,
		Duration: c.retryDelay,
		Factor:   1.0,
	}

	outcome := Outcome{Status: StatusTransientFailure}
	attempts := 0

	err := wait.ExponentialBackoffWithContext(ctx, backoff, func(ctx context.Context) (bool, error) {
		attempts++
		outcome = c.fetchProfile(ctx, username)
		if outcome.Status == StatusRateLimited && attempts < maxAttempts {
			c.logger.Debug("Profile lookup rate limited, retrying",
				"username", username,
				"delay", c.retryDelay,
			)
		}
		return outcome.Status != StatusRateLimited, nil
	})
	if err != nil {
		log := c.logger.WithError(err)
		if outcome.Status == StatusRateLimited {
			log.Warn("Profile lookup still rate limited after retry",
				"username", username,
				"attempts", attempts,
			)
		} else {
			log.Debug("Profile lookup ended without a final answer",
				"username", username,
				"attempts", attempts,
				"status", outcome.Status.String(),
			)
		}
	}

	return outcome
}

type profileResponse struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

func (c *Client) profileURL(username string) string {
	return c.baseURL + fmt.Sprintf(constant.ProfilePathFormat, url.PathEscape(username))
}

func (c *Client) fetchProfile(ctx context.Context, username string) (outcome Outcome) {
	start := time.Now()
	defer func() {
		c.metrics.ObserveLookup(outcome.Status.String(), time.Since(start))
	}()

	endpoint := c.profileURL(username)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		c.logger.WithError(err).Debug("Failed to create profile request", "username", username)
		return Outcome{Status: StatusTransientFailure}
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WithError(err).Debug("Profile request failed", "username", username)
		return Outcome{Status: StatusTransientFailure}
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, constant.MaxProfileResponseBytes))
		resp.Body.Close()
	}()

	c.logger.Debug("Profile lookup response",
		"username", username,
		"statusCode", resp.StatusCode,
	)

	switch resp.StatusCode {
	case http.StatusOK:
		profile, parseErr := parseProfile(resp.Body)
		if parseErr != nil {
			c.logger.WithError(parseErr).Debug("Failed to parse profile response", "username", username)
			return Outcome{Status: StatusTransientFailure}
		}
		return Found(profile.Name, profile.ID)

	case http.StatusNoContent, http.StatusNotFound:
		return Outcome{Status: StatusNotFound}

	case http.StatusTooManyRequests:
		return Outcome{Status: StatusRateLimited}

	default:
		return Outcome{Status: StatusTransientFailure}
	}
}

func parseProfile(body io.Reader) (*profileResponse, error) {
	// Read max+1 so an oversized body is detected instead of silently truncated.
	data, err := io.ReadAll(io.LimitReader(body, constant.MaxProfileResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read profile body: %w", err)
	}
	if int64(len(data)) > constant.MaxProfileResponseBytes {
		return nil, fmt.Errorf("profile response too large (> %d bytes)", constant.MaxProfileResponseBytes)
	}

	var profile profileResponse
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile: %w", err)
	}
	if profile.Name == "" || profile.ID == "" {
		return nil, errors.New("profile response missing name or id")
	}
	return &profile, nil
}
