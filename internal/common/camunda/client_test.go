package camunda

import (
	"context"
	"errors"
	"testing"
	"time"

	"mlops-agent/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(n int) RetryConfig {
	return RetryConfig{MaxRetries: n, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestRetryWithBackoff_SucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := RetryWithBackoff(context.Background(), fastRetry(5), logger.NewTestLogger(t), "dial", func() error {
		attempts++
		if attempts < 3 {
			return errors.New("rpc error: code = Unavailable desc = connection refused")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryWithBackoff_StopsOnPermanentError(t *testing.T) {
	attempts := 0
	err := RetryWithBackoff(context.Background(), fastRetry(5), logger.NewTestLogger(t), "dial", func() error {
		attempts++
		return errors.New("permission denied")
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.Contains(t, err.Error(), "permission denied")
}

func TestRetryWithBackoff_GivesUp(t *testing.T) {
	attempts := 0
	err := RetryWithBackoff(context.Background(), fastRetry(3), logger.NewNoOpLogger(), "dial", func() error {
		attempts++
		return errors.New("context deadline exceeded")
	})

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryWithBackoff_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	retry := RetryConfig{MaxRetries: 5, BaseDelay: time.Hour}
	err := RetryWithBackoff(ctx, retry, logger.NewNoOpLogger(), "dial", func() error {
		return errors.New("connection reset by peer")
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsRetryableZeebeError(t *testing.T) {
	assert.True(t, isRetryableZeebeError(errors.New("Unavailable: broker unreachable")))
	assert.True(t, isRetryableZeebeError(errors.New("i/o timeout")))
	assert.False(t, isRetryableZeebeError(errors.New("invalid job type")))
}

func TestDecodeVariables(t *testing.T) {
	job := entities.Job{ActivatedJob: &pb.ActivatedJob{Variables: `{"query":"COVID in Spain"}`}}

	var vars struct {
		Query string `json:"query"`
	}
	require.NoError(t, DecodeVariables(job, &vars))
	assert.Equal(t, "COVID in Spain", vars.Query)
}
