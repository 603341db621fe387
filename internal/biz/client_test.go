package biz

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"sellersync/internal/conf"
	"sellersync/pkg/signer"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// newTestClient builds a pipeline against a local marketplace stub. The
// token manager starts with a valid in-memory token so only the 401 path
// exercises refresh.
func newTestClient(t *testing.T, apiURL string, repo CredentialRepo, tokenURL string, metrics MetricsRecorder) (*Client, *[]time.Duration) {
	t.Helper()

	if tokenURL == "" {
		tokenURL = "http://127.0.0.1:1/token"
	}
	tm, err := NewTokenManager(repo, nil, &conf.Marketplace{TokenEndpoint: tokenURL}, log.NewStdLogger(os.Stdout))
	require.NoError(t, err)
	tm.store("tenant-1", "valid-token", time.Now().Add(time.Hour))

	c := NewClient(testCredentials(), tm, signer.New("execute-api"), metrics, 5*time.Second, log.NewStdLogger(os.Stdout))
	c.endpoint.BaseURL = apiURL

	var sleeps []time.Duration
	c.sleep = func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}
	return c, &sleeps
}

// Test Request - successful calls are signed and carry the access token
func TestRequest_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "valid-token", r.Header.Get("x-amz-access-token"))
		assert.NotEmpty(t, r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Amz-Content-Sha256"))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL, new(MockCredentialRepo), "", nil)

	resp, err := c.Get(context.Background(), "/orders/v0/orders", url.Values{"MaxResultsPerPage": {"10"}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"ok":true}`, string(resp.Body))
}

// Test Request - a 401 forces one token refresh and replays the call
func TestRequest_401RefreshOnce(t *testing.T) {
	repo := new(MockCredentialRepo)
	repo.On("Get", mock.Anything, "tenant-1").Return(testCredentials(), nil)
	repo.On("UpdateAccessToken", mock.Anything, "tenant-1", "new-token", mock.Anything).Return(nil)

	var tokenHits atomic.Int64
	tokenSrv := tokenEndpoint(t, &tokenHits, 0)
	defer tokenSrv.Close()

	var apiHits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if apiHits.Add(1) == 1 {
			assert.Equal(t, "valid-token", r.Header.Get("x-amz-access-token"))
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		// The replay must carry the refreshed token.
		assert.Equal(t, "new-token", r.Header.Get("x-amz-access-token"))
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL, repo, tokenSrv.URL, nil)

	resp, err := c.Get(context.Background(), "/orders/v0/orders", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2, apiHits.Load())
	assert.EqualValues(t, 1, tokenHits.Load())
}

// Test Request - a second 401 after refresh is a permanent auth failure
func TestRequest_401TwiceIsPermanent(t *testing.T) {
	repo := new(MockCredentialRepo)
	repo.On("Get", mock.Anything, "tenant-1").Return(testCredentials(), nil)
	repo.On("UpdateAccessToken", mock.Anything, "tenant-1", "new-token", mock.Anything).Return(nil)

	var tokenHits atomic.Int64
	tokenSrv := tokenEndpoint(t, &tokenHits, 0)
	defer tokenSrv.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL, repo, tokenSrv.URL, nil)

	_, err := c.Get(context.Background(), "/orders/v0/orders", nil)
	var authErr *PermanentAuthError
	require.ErrorAs(t, err, &authErr)
	assert.EqualValues(t, 1, tokenHits.Load(), "refresh must happen exactly once")
}

// Test Request - 429 waits for Retry-After and replays
func TestRequest_429HonorsRetryAfter(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.Header().Set("Retry-After", "3")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c, sleeps := newTestClient(t, srv.URL, new(MockCredentialRepo), "", nil)

	resp, err := c.Get(context.Background(), "/orders/v0/orders", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, *sleeps, 1)
	assert.Equal(t, 3*time.Second, (*sleeps)[0])
}

// Test Request - persistent 429 surfaces a RateLimitError after bounded waits
func TestRequest_429Exhausted(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c, sleeps := newTestClient(t, srv.URL, new(MockCredentialRepo), "", nil)

	_, err := c.Get(context.Background(), "/orders/v0/orders", nil)
	var rlErr *RateLimitError
	require.ErrorAs(t, err, &rlErr)
	// Missing Retry-After falls back to the default wait.
	assert.Equal(t, defaultRetryAfter, rlErr.RetryAfter)
	assert.Len(t, *sleeps, maxRateLimitRetries)
	assert.EqualValues(t, maxRateLimitRetries+1, hits.Load())
}

// Test Request - persistent 5xx is retried with backoff then surfaced as
// transient, and counts toward the breaker
func TestRequest_5xxTransient(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, sleeps := newTestClient(t, srv.URL, new(MockCredentialRepo), "", nil)

	_, err := c.Get(context.Background(), "/orders/v0/orders", nil)
	var transErr *TransientError
	require.ErrorAs(t, err, &transErr)
	assert.Equal(t, http.StatusServiceUnavailable, transErr.StatusCode)
	assert.EqualValues(t, maxTransientAttempts, hits.Load())
	assert.Len(t, *sleeps, maxTransientAttempts-1)
	assert.Equal(t, maxTransientAttempts, c.Breaker().ConsecutiveFailures())
}

// Test Request - enough transient failures open the breaker and later calls
// fail fast without I/O
func TestRequest_BreakerOpensAndFailsFast(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL, new(MockCredentialRepo), "", nil)

	// Two logical requests produce enough consecutive failures to open.
	_, err := c.Get(context.Background(), "/orders/v0/orders", nil)
	require.Error(t, err)
	_, err = c.Get(context.Background(), "/orders/v0/orders", nil)
	require.Error(t, err)
	require.Equal(t, BreakerOpen, c.Breaker().State())

	before := hits.Load()
	_, err = c.Get(context.Background(), "/orders/v0/orders", nil)
	var openErr *CircuitOpenError
	require.ErrorAs(t, err, &openErr)
	assert.Equal(t, before, hits.Load(), "open breaker must not reach the network")
}

// Test Request - other 4xx responses are terminal API errors, not retried
func TestRequest_4xxTerminal(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"errors":[{"code":"Forbidden"}]}`))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL, new(MockCredentialRepo), "", nil)

	_, err := c.Get(context.Background(), "/orders/v0/orders", nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "Forbidden")
	assert.EqualValues(t, 1, hits.Load())
}

// Test Request - exactly one metric is emitted per logical request
func TestRequest_MetricsPerTerminalOutcome(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	metrics := new(MockMetricsRecorder)
	metrics.On("RecordRequest", mock.Anything, mock.Anything).Return()

	c, _ := newTestClient(t, srv.URL, new(MockCredentialRepo), "", metrics)

	_, err := c.Get(context.Background(), "/fba/inventory/v1/summaries", nil)
	require.NoError(t, err)

	metrics.AssertNumberOfCalls(t, "RecordRequest", 1)
}
