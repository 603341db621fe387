package biz

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"sellersync/internal/model"
	"sellersync/pkg/signer"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

const (
	// maxTransientAttempts bounds retries of 5xx/network failures.
	maxTransientAttempts = 3
	// maxRateLimitRetries bounds Retry-After waits before surfacing a
	// RateLimitError.
	maxRateLimitRetries = 2

	// transientBackoffBase is the first transient retry delay; subsequent
	// delays double with +/-25% jitter.
	transientBackoffBase = 500 * time.Millisecond
	transientBackoffMax  = 10 * time.Second

	// defaultRetryAfter is used when a 429 omits the Retry-After header.
	defaultRetryAfter = 2 * time.Second
)

// Response is the decoded outcome of one pipeline request.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Latency    time.Duration
}

// Client is the request pipeline for one tenant: token ensure → rate-limit
// wait → sign → execute under the circuit breaker → classify/retry. One
// instance exists per active tenant; it is safe for concurrent use because
// the limiter and breaker are internally synchronized.
type Client struct {
	tenantID      string
	marketplaceID string
	endpoint      Endpoint

	creds   *model.Credentials
	tokens  *TokenManager
	limiter *RateLimiter
	breaker *CircuitBreaker
	signer  *signer.RequestSigner
	http    *http.Client
	metrics MetricsRecorder
	logger  *log.Helper

	// sleep is injectable for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient builds the pipeline for one tenant. The limiter and breaker are
// created fresh: their state is ephemeral and dies with the handle.
func NewClient(creds *model.Credentials, tokens *TokenManager, sg *signer.RequestSigner, metrics MetricsRecorder, timeout time.Duration, logger log.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		tenantID:      creds.TenantID,
		marketplaceID: creds.MarketplaceID,
		endpoint:      EndpointForMarketplace(creds.MarketplaceID),
		creds:         creds,
		tokens:        tokens,
		limiter:       NewRateLimiter(creds.TenantID, logger),
		breaker:       NewCircuitBreaker(creds.TenantID, logger),
		signer:        sg,
		http:          &http.Client{Timeout: timeout},
		metrics:       metrics,
		logger:        log.NewHelper(logger),
		sleep:         sleepCtx,
	}
}

// TenantID returns the owning tenant.
func (c *Client) TenantID() string { return c.tenantID }

// MarketplaceID returns the tenant's marketplace.
func (c *Client) MarketplaceID() string { return c.marketplaceID }

// Breaker exposes the circuit breaker for health reporting.
func (c *Client) Breaker() *CircuitBreaker { return c.breaker }

// Limiter exposes the rate limiter for health reporting.
func (c *Client) Limiter() *RateLimiter { return c.limiter }

// Get performs a signed GET.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.Request(ctx, http.MethodGet, path, query, nil)
}

// Post performs a signed POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, query url.Values, body []byte) (*Response, error) {
	return c.Request(ctx, http.MethodPost, path, query, body)
}

// Request runs the full pipeline for one logical call. Retries are an
// explicit state machine: a 401 forces exactly one token refresh and replay,
// a 429 honors Retry-After up to maxRateLimitRetries times, and transient
// failures back off exponentially up to maxTransientAttempts. Every terminal
// outcome emits one metrics record.
func (c *Client) Request(ctx context.Context, method, path string, query url.Values, body []byte) (*Response, error) {
	requestID := uuid.NewString()
	category := CategoryForPath(path)
	start := time.Now()

	var (
		transientAttempts int
		rateLimitRetries  int
		retried401        bool
	)

	for {
		resp, err := c.attempt(ctx, method, path, query, body, category)
		if err == nil {
			switch {
			case resp.StatusCode == http.StatusUnauthorized:
				if !retried401 {
					// Token may have been revoked upstream; force one
					// refresh and replay the call exactly once.
					retried401 = true
					c.logger.Infow("401 received, forcing token refresh",
						"tenant_id", c.tenantID,
						"request_id", requestID,
						"path", path)
					if _, rerr := c.tokens.ForceRefresh(ctx, c.tenantID); rerr != nil {
						return nil, c.finish(ctx, method, path, start, resp.StatusCode, rerr)
					}
					continue
				}
				authErr := &PermanentAuthError{TenantID: c.tenantID, Reason: "still unauthorized after forced token refresh"}
				return nil, c.finish(ctx, method, path, start, resp.StatusCode, authErr)

			case resp.StatusCode == http.StatusTooManyRequests:
				wait := retryAfter(resp.Header)
				if rateLimitRetries < maxRateLimitRetries {
					rateLimitRetries++
					c.logger.Warnw("rate limited by upstream, honoring Retry-After",
						"tenant_id", c.tenantID,
						"request_id", requestID,
						"path", path,
						"retry_after", wait)
					if serr := c.sleep(ctx, wait); serr != nil {
						return nil, c.finish(ctx, method, path, start, resp.StatusCode, serr)
					}
					continue
				}
				rlErr := &RateLimitError{TenantID: c.tenantID, RetryAfter: wait}
				return nil, c.finish(ctx, method, path, start, resp.StatusCode, rlErr)

			case resp.StatusCode >= 400:
				apiErr := &APIError{StatusCode: resp.StatusCode, Body: truncate(string(resp.Body), 256)}
				return nil, c.finish(ctx, method, path, start, resp.StatusCode, apiErr)

			default:
				c.finish(ctx, method, path, start, resp.StatusCode, nil)
				return resp, nil
			}
		}

		var transErr *TransientError
		if errors.As(err, &transErr) {
			transientAttempts++
			if transientAttempts < maxTransientAttempts {
				delay := transientBackoff(transientAttempts)
				c.logger.Warnw("transient failure, backing off",
					"tenant_id", c.tenantID,
					"request_id", requestID,
					"path", path,
					"attempt", transientAttempts,
					"backoff", delay,
					"error", err)
				if serr := c.sleep(ctx, delay); serr != nil {
					return nil, c.finish(ctx, method, path, start, transErr.StatusCode, serr)
				}
				continue
			}
		}

		// Circuit open, permanent auth, context cancellation, or exhausted
		// transient retries: terminal.
		return nil, c.finish(ctx, method, path, start, 0, err)
	}
}

// attempt performs one signed round-trip: token, rate-limit wait, sign,
// execute under the breaker. It returns a *TransientError for 5xx/network
// failures so the breaker counts them; other statuses are classified by the
// caller.
func (c *Client) attempt(ctx context.Context, method, path string, query url.Values, body []byte, category string) (*Response, error) {
	token, err := c.tokens.GetValidToken(ctx, c.tenantID)
	if err != nil {
		return nil, err
	}

	if err := c.limiter.WaitForToken(ctx, category); err != nil {
		return nil, err
	}

	req, err := c.buildRequest(ctx, method, path, query, body, token)
	if err != nil {
		return nil, err
	}

	var resp *Response
	execErr := c.breaker.Execute(ctx, func(ctx context.Context) error {
		attemptStart := time.Now()
		httpResp, doErr := c.http.Do(req)
		if doErr != nil {
			return &TransientError{Err: doErr}
		}
		respBody, readErr := io.ReadAll(httpResp.Body)
		_ = httpResp.Body.Close()
		if readErr != nil {
			return &TransientError{Err: fmt.Errorf("failed to read response body: %w", readErr)}
		}
		if httpResp.StatusCode >= 500 {
			return &TransientError{StatusCode: httpResp.StatusCode}
		}
		resp = &Response{
			StatusCode: httpResp.StatusCode,
			Header:     httpResp.Header,
			Body:       respBody,
			Latency:    time.Since(attemptStart),
		}
		return nil
	})
	if execErr != nil {
		return nil, execErr
	}
	return resp, nil
}

// buildRequest constructs and signs one outbound request.
func (c *Client) buildRequest(ctx context.Context, method, path string, query url.Values, body []byte, token string) (*http.Request, error) {
	u := c.endpoint.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if len(body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("x-amz-access-token", token)

	if err := c.signer.Sign(ctx, req, body, c.creds.ClientID, c.creds.ClientSecret, "", c.endpoint.Region); err != nil {
		return nil, fmt.Errorf("failed to sign request: %w", err)
	}

	return req, nil
}

// finish emits the metrics record for a terminal outcome and returns err
// unchanged so call sites can `return c.finish(...)`.
func (c *Client) finish(ctx context.Context, method, path string, start time.Time, status int, err error) error {
	if c.metrics != nil {
		c.metrics.RecordRequest(ctx, &model.RequestMetric{
			TenantID:   c.tenantID,
			Endpoint:   path,
			Method:     method,
			StatusCode: status,
			Latency:    time.Since(start),
			Success:    err == nil,
			ErrorClass: ClassifyError(err),
			At:         time.Now().UTC(),
		})
	}
	return err
}

// retryAfter parses the Retry-After header (seconds), falling back to the
// default wait.
func retryAfter(h http.Header) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return defaultRetryAfter
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return defaultRetryAfter
	}
	return time.Duration(secs) * time.Second
}

// transientBackoff returns the jittered exponential delay for an attempt.
func transientBackoff(attempt int) time.Duration {
	delay := float64(transientBackoffBase) * math.Pow(2, float64(attempt-1))
	if delay > float64(transientBackoffMax) {
		delay = float64(transientBackoffMax)
	}
	// +/-25% jitter
	jitter := delay * 0.25
	delay += (rand.Float64()*2 - 1) * jitter
	return time.Duration(delay)
}

// sleepCtx sleeps for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// truncate shortens s for error messages and logs.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
