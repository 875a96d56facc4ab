package httpclient

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryableErrorMessage(t *testing.T) {
	withRetryAfter := &RetryableError{
		StatusCode: 429,
		Message:    "Rate limit exceeded",
		RetryAfter: 30 * time.Second,
	}
	assert.Equal(t, "HTTP 429: Rate limit exceeded (retry after 30s)", withRetryAfter.Error())

	withoutRetryAfter := &RetryableError{
		StatusCode: 500,
		Message:    "Internal server error",
	}
	assert.Equal(t, "HTTP 500: Internal server error", withoutRetryAfter.Error())
}

func TestRetryableErrorUnwrap(t *testing.T) {
	cause := errors.New("HTTP 503")
	err := &RetryableError{StatusCode: 503, Message: "max retries (5) exceeded", Err: cause}

	assert.ErrorIs(t, err, cause)
	assert.Nil(t, (&RetryableError{}).Unwrap())
}

func TestRetryableErrorIsRetryable(t *testing.T) {
	assert.True(t, (&RetryableError{StatusCode: 429}).IsRetryable())
}
