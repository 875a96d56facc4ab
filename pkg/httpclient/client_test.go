package httpclient

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fastClient builds a Client with near-zero delays so retry paths run in
// test time.
func fastClient(opts ...Option) *Client {
	base := []Option{
		WithBaseDelay(time.Millisecond),
		WithMaxDelay(5 * time.Millisecond),
	}
	return New(append(base, opts...)...)
}

func TestNewDefaults(t *testing.T) {
	c := New()
	assert.Equal(t, 5, c.maxRetries)
	assert.Equal(t, 2*time.Second, c.baseDelay)
	assert.Equal(t, 60*time.Second, c.maxDelay)
	assert.Equal(t, 120*time.Second, c.client.Timeout)
	require.NotNil(t, c.strategyFunc)
}

func TestOptions(t *testing.T) {
	hc := &http.Client{Timeout: 30 * time.Second}
	parser := ParseOpenAIHeaders
	c := New(
		WithHTTPClient(hc),
		WithMaxRetries(3),
		WithBaseDelay(time.Second),
		WithMaxDelay(10*time.Second),
		WithHeaderParser(parser),
	)
	assert.Same(t, hc, c.client)
	assert.Equal(t, 3, c.maxRetries)
	assert.Equal(t, time.Second, c.baseDelay)
	assert.Equal(t, 10*time.Second, c.maxDelay)
	require.NotNil(t, c.headerParser)
}

func TestDefaultStrategy(t *testing.T) {
	smart := []int{http.StatusTooManyRequests, http.StatusServiceUnavailable}
	conservative := []int{
		http.StatusRequestTimeout, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusGatewayTimeout,
	}
	none := []int{http.StatusOK, http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound}

	for _, code := range smart {
		assert.Equal(t, SmartRetry, DefaultStrategy(code), "status %d", code)
	}
	for _, code := range conservative {
		assert.Equal(t, ConservativeRetry, DefaultStrategy(code), "status %d", code)
	}
	for _, code := range none {
		assert.Equal(t, NoRetry, DefaultStrategy(code), "status %d", code)
	}
}

func TestDoSuccessNoRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := fastClient().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, int32(1), calls.Load())
}

func TestDoRetriesServerErrorThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := fastClient().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(2), calls.Load())
}

func TestDoReplaysRequestBodyOnRetry(t *testing.T) {
	var calls atomic.Int32
	var bodies [][]byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		bodies = append(bodies, body)
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	payload := []byte(`{"model":"test","messages":[]}`)
	req, err := http.NewRequest(http.MethodPost, srv.URL, bytes.NewReader(payload))
	require.NoError(t, err)

	resp, err := fastClient().Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	require.Len(t, bodies, 2)
	assert.Equal(t, payload, bodies[0])
	assert.Equal(t, payload, bodies[1], "retried request must carry the full body again")
}

func TestDoConservativeGivesUpAfterTwoRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := fastClient(WithMaxRetries(10)).Do(req)
	require.Error(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	// 1 initial + conservativeRetryCap retries, despite maxRetries=10.
	assert.Equal(t, int32(1+conservativeRetryCap), calls.Load())
}

func TestDoNoRetryOn4xx(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := fastClient().Do(req)
	require.Error(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDoExhaustsRetriesIntoRetryableError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := fastClient(WithMaxRetries(2)).Do(req)
	require.Error(t, err)
	if resp != nil {
		resp.Body.Close()
	}

	var retryErr *RetryableError
	require.ErrorAs(t, err, &retryErr)
	assert.Equal(t, http.StatusTooManyRequests, retryErr.StatusCode)
	assert.True(t, retryErr.IsRetryable())
}

func TestDoHonorsRetryAfterHeader(t *testing.T) {
	var calls atomic.Int32
	var firstRetryAt time.Time
	start := time.Now()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			firstRetryAt = time.Now()
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	c := fastClient(WithHeaderParser(ParseOpenAIHeaders))
	resp, err := c.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.GreaterOrEqual(t, firstRetryAt.Sub(start), time.Second,
		"retry must wait at least the Retry-After duration")
}

func TestDoTransportErrorIsNotRetried(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, "http://127.0.0.1:1", nil)
	require.NoError(t, err)

	resp, err := fastClient().Do(req)
	require.Error(t, err)
	assert.Nil(t, resp)
	var retryErr *RetryableError
	assert.False(t, errors.As(err, &retryErr), "transport errors surface raw, not as RetryableError")
}
