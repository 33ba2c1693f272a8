package fetch

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestLinearRetryPolicyBackoff(t *testing.T) {
	t.Parallel()

	p := NewLinearRetryPolicy(4, 2*time.Second, false)
	require.Equal(t, 2*time.Second, p.Backoff(0))
	require.Equal(t, 4*time.Second, p.Backoff(1))
	require.Equal(t, 8*time.Second, p.Backoff(3))
	require.Equal(t, 4, p.MaxAttempts())
}

func TestLinearRetryPolicyClassifier(t *testing.T) {
	t.Parallel()

	strict := NewLinearRetryPolicy(3, time.Second, false)
	lenient := NewLinearRetryPolicy(3, time.Second, true)
	failure := errors.New("status error")

	require.True(t, strict.Retryable(http.StatusTooManyRequests, failure))
	require.False(t, strict.Retryable(http.StatusServiceUnavailable, failure))
	require.True(t, lenient.Retryable(http.StatusServiceUnavailable, failure))
	require.False(t, lenient.Retryable(http.StatusNotFound, failure))
	require.False(t, lenient.Retryable(http.StatusForbidden, failure))
	require.True(t, lenient.Retryable(0, timeoutErr{}))
	require.False(t, lenient.Retryable(0, errors.New("connection refused")))
	require.False(t, lenient.Retryable(0, context.Canceled))
}

func TestNewLinearRetryPolicyClampsAttempts(t *testing.T) {
	t.Parallel()

	p := NewLinearRetryPolicy(0, -time.Second, false)
	require.Equal(t, 1, p.MaxAttempts())
	require.Zero(t, p.Backoff(2))
}

func TestTimerPauseControllerHonorsContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pauser := &timerPauseController{}
	start := time.Now()
	pauser.Pause(ctx, 5*time.Second)
	require.Less(t, time.Since(start), time.Second, "pause should exit immediately when context is done")
}
