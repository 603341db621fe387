package biz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"sellersync/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
	"golang.org/x/net/proxy"
	"golang.org/x/sync/singleflight"
)

const (
	// TokenExpiryMargin is the safety window before expiry inside which a
	// cached token is considered stale and refreshed.
	TokenExpiryMargin = 5 * time.Minute

	// tokenRefreshTimeout bounds one refresh round-trip.
	tokenRefreshTimeout = 30 * time.Second
)

// refreshBackoffs are the waits between transient refresh retries.
var refreshBackoffs = []time.Duration{
	1 * time.Second,
	2 * time.Second,
	4 * time.Second,
}

// ErrTokenCacheMiss is returned by TokenCache implementations when no token
// is cached for the tenant.
var ErrTokenCacheMiss = errors.New("token cache: miss")

// tokenResponse is the identity provider's 200 payload.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// tokenErrorResponse is the identity provider's 4xx payload.
type tokenErrorResponse struct {
	ErrorCode        string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// cachedToken is one tenant's in-memory token entry.
type cachedToken struct {
	token  string
	expiry time.Time
}

// TokenManager obtains and refreshes OAuth2 access tokens per tenant.
// Refreshes are single-flighted per tenant: concurrent callers that observe a
// stale token share one in-flight refresh instead of storming the identity
// provider.
type TokenManager struct {
	repo     CredentialRepo
	cache    TokenCache // optional, may be nil
	endpoint string
	client   *http.Client
	logger   *log.Helper

	sf singleflight.Group

	mu     sync.RWMutex
	tokens map[string]cachedToken

	// now is injectable for tests.
	now func() time.Time
}

// NewTokenManager creates a TokenManager against the configured token
// endpoint. cache may be nil.
func NewTokenManager(repo CredentialRepo, cache TokenCache, mc *conf.Marketplace, logger log.Logger) (*TokenManager, error) {
	client, err := newTokenHTTPClient(mc.ProxyURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create token HTTP client: %w", err)
	}

	return &TokenManager{
		repo:     repo,
		cache:    cache,
		endpoint: mc.TokenEndpoint,
		client:   client,
		logger:   log.NewHelper(logger),
		tokens:   make(map[string]cachedToken),
		now:      time.Now,
	}, nil
}

// GetValidToken returns a usable access token for the tenant, refreshing it
// when the cached one is inside the expiry margin.
func (m *TokenManager) GetValidToken(ctx context.Context, tenantID string) (string, error) {
	if token, ok := m.cachedValid(tenantID); ok {
		return token, nil
	}

	// Check the shared cache before hitting the identity provider: another
	// process may have refreshed already.
	if m.cache != nil {
		token, expiry, err := m.cache.GetToken(ctx, tenantID)
		if err == nil && expiry.After(m.now().Add(TokenExpiryMargin)) {
			m.store(tenantID, token, expiry)
			return token, nil
		}
		if err != nil && !errors.Is(err, ErrTokenCacheMiss) {
			m.logger.Warnw("token cache lookup failed",
				"tenant_id", tenantID,
				"error", err)
		}
	}

	return m.refresh(ctx, tenantID)
}

// ForceRefresh discards any cached token and performs a refresh. Used by the
// client pipeline after a 401.
func (m *TokenManager) ForceRefresh(ctx context.Context, tenantID string) (string, error) {
	m.Invalidate(ctx, tenantID)
	return m.refresh(ctx, tenantID)
}

// Invalidate drops the cached token for a tenant.
func (m *TokenManager) Invalidate(ctx context.Context, tenantID string) {
	m.mu.Lock()
	delete(m.tokens, tenantID)
	m.mu.Unlock()

	if m.cache != nil {
		if err := m.cache.DeleteToken(ctx, tenantID); err != nil {
			m.logger.Warnw("token cache invalidation failed",
				"tenant_id", tenantID,
				"error", err)
		}
	}
}

// cachedValid returns the in-memory token if it is outside the expiry margin.
func (m *TokenManager) cachedValid(tenantID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.tokens[tenantID]
	if !ok {
		return "", false
	}
	if !entry.expiry.After(m.now().Add(TokenExpiryMargin)) {
		return "", false
	}
	return entry.token, true
}

func (m *TokenManager) store(tenantID, token string, expiry time.Time) {
	m.mu.Lock()
	m.tokens[tenantID] = cachedToken{token: token, expiry: expiry}
	m.mu.Unlock()
}

// refresh performs a single-flighted refresh for the tenant. Concurrent
// callers share the first caller's result.
func (m *TokenManager) refresh(ctx context.Context, tenantID string) (string, error) {
	v, err, _ := m.sf.Do(tenantID, func() (interface{}, error) {
		return m.doRefresh(ctx, tenantID)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// doRefresh exchanges the stored refresh token for a new access token,
// persists it, and classifies failures.
func (m *TokenManager) doRefresh(ctx context.Context, tenantID string) (string, error) {
	creds, err := m.repo.Get(ctx, tenantID)
	if err != nil {
		return "", fmt.Errorf("failed to load credentials for tenant %s: %w", tenantID, err)
	}
	if creds.RefreshToken == "" {
		return "", &PermanentAuthError{TenantID: tenantID, Reason: "no refresh token on record"}
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", creds.RefreshToken)
	form.Set("client_id", creds.ClientID)
	form.Set("client_secret", creds.ClientSecret)
	body := form.Encode()

	var lastErr error
	for attempt := 0; attempt <= len(refreshBackoffs); attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(refreshBackoffs[attempt-1]):
			}
		}

		token, expiry, err := m.exchangeOnce(ctx, body)
		if err == nil {
			m.store(tenantID, token, expiry)
			if err := m.repo.UpdateAccessToken(ctx, tenantID, token, expiry); err != nil {
				// The token is still valid for this process; persistence is
				// retried on the next refresh.
				m.logger.Warnw("failed to persist refreshed access token",
					"tenant_id", tenantID,
					"error", err)
			}
			if m.cache != nil {
				if err := m.cache.SetToken(ctx, tenantID, token, expiry); err != nil {
					m.logger.Warnw("failed to mirror token to cache",
						"tenant_id", tenantID,
						"error", err)
				}
			}
			m.logger.Infow("access token refreshed",
				"tenant_id", tenantID,
				"expires_at", expiry)
			return token, nil
		}

		var authErr *PermanentAuthError
		if errors.As(err, &authErr) {
			authErr.TenantID = tenantID
			m.logger.Errorw("refresh token rejected",
				"tenant_id", tenantID,
				"reason", authErr.Reason)
			return "", authErr
		}

		// Transient: retry with backoff.
		lastErr = err
		m.logger.Warnw("token refresh attempt failed",
			"tenant_id", tenantID,
			"attempt", attempt+1,
			"error", err)
	}

	return "", &TransientError{Err: fmt.Errorf("token refresh retries exhausted: %w", lastErr)}
}

// exchangeOnce performs one refresh_token grant round-trip.
func (m *TokenManager) exchangeOnce(ctx context.Context, form string) (string, time.Time, error) {
	ctx, cancel := context.WithTimeout(ctx, tokenRefreshTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, strings.NewReader(form))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to create refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.client.Do(req)
	if err != nil {
		return "", time.Time{}, &TransientError{Err: err}
	}

	respBody, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return "", time.Time{}, &TransientError{Err: fmt.Errorf("failed to read refresh response: %w", err)}
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		var tr tokenResponse
		if err := json.Unmarshal(respBody, &tr); err != nil {
			return "", time.Time{}, &TransientError{Err: fmt.Errorf("failed to parse refresh response: %w", err)}
		}
		if tr.AccessToken == "" {
			return "", time.Time{}, &TransientError{Err: errors.New("invalid refresh response: missing access_token")}
		}
		if tr.ExpiresIn <= 0 {
			return "", time.Time{}, &TransientError{Err: errors.New("invalid refresh response: invalid expires_in")}
		}
		expiry := m.now().UTC().Add(time.Duration(tr.ExpiresIn) * time.Second)
		return tr.AccessToken, expiry, nil

	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		// Classify via the structured error field, not message text.
		var te tokenErrorResponse
		if err := json.Unmarshal(respBody, &te); err == nil && te.ErrorCode == "invalid_grant" {
			reason := te.ErrorDescription
			if reason == "" {
				reason = "refresh token rejected (invalid_grant)"
			}
			return "", time.Time{}, &PermanentAuthError{Reason: reason}
		}
		return "", time.Time{}, &TransientError{StatusCode: resp.StatusCode, Err: fmt.Errorf("token endpoint returned HTTP %d: %s", resp.StatusCode, string(respBody))}

	default:
		return "", time.Time{}, &TransientError{StatusCode: resp.StatusCode}
	}
}

// newTokenHTTPClient builds the identity-provider HTTP client, optionally
// routed through a SOCKS5 or HTTP proxy.
func newTokenHTTPClient(proxyURL string) (*http.Client, error) {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	if proxyURL != "" {
		parsed, err := url.Parse(proxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %w", err)
		}

		switch parsed.Scheme {
		case "socks5", "socks5h":
			dialer, err := socks5Dialer(parsed)
			if err != nil {
				return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
			}
			transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
				return dialer.Dial(network, addr)
			}

		case "http", "https":
			transport.Proxy = func(req *http.Request) (*url.URL, error) {
				return parsed, nil
			}

		default:
			return nil, fmt.Errorf("unsupported proxy scheme: %s (supported: socks5, http, https)", parsed.Scheme)
		}
	}

	return &http.Client{
		Transport: transport,
		Timeout:   tokenRefreshTimeout,
	}, nil
}

// socks5Dialer builds a SOCKS5 dialer from a parsed proxy URL.
func socks5Dialer(parsed *url.URL) (proxy.Dialer, error) {
	var auth *proxy.Auth
	if parsed.User != nil {
		password, _ := parsed.User.Password()
		auth = &proxy.Auth{
			User:     parsed.User.Username(),
			Password: password,
		}
	}

	host := parsed.Host
	if !strings.Contains(host, ":") {
		host += ":1080"
	}

	return proxy.SOCKS5("tcp", host, auth, proxy.Direct)
}
