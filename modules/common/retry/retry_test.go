package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"product-studio-server/modules/common/apierr"
	"product-studio-server/modules/common/config"
)

func fastPolicy(maxRetries int, retryable func(error) bool) Policy {
	return Policy{Name: "test", MaxRetries: maxRetries, Delay: time.Millisecond, Retryable: retryable}
}

func TestDoExhaustsRetryBudget(t *testing.T) {
	for _, maxRetries := range []int{0, 1, 2, 4} {
		calls := 0
		_, err := Do(context.Background(), fastPolicy(maxRetries, apierr.IsRetryable), func(context.Context) (string, error) {
			calls++
			return "", apierr.FromResponse("process", 504, nil)
		})

		require.Error(t, err)
		assert.Equal(t, 1+maxRetries, calls)
		assert.Equal(t, apierr.KindGateway, apierr.KindOf(err))
	}
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastPolicy(3, apierr.IsRetryable), func(context.Context) (int, error) {
		calls++
		return 0, apierr.Validation("process", "invalid operation")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, apierr.KindValidation, apierr.KindOf(err))
}

func TestDoRetriesEverythingWithoutClassifier(t *testing.T) {
	calls := 0
	v, err := Do(context.Background(), fastPolicy(2, nil), func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("storage hiccup")
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 3, calls)
}

func TestDoWaitsFixedDelay(t *testing.T) {
	p := Policy{Name: "delay", MaxRetries: 2, Delay: 20 * time.Millisecond}
	start := time.Now()
	_, _ = Do(context.Background(), p, func(context.Context) (int, error) {
		return 0, errors.New("always")
	})
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestDefaultPolicies(t *testing.T) {
	cfg := &config.Config{
		UploadMaxRetries:  2,
		UploadRetryDelay:  time.Second,
		ProcessMaxRetries: 2,
		ProcessRetryDelay: 3 * time.Second,
	}

	up := UploadPolicy(cfg)
	assert.Nil(t, up.Retryable)
	assert.Equal(t, time.Second, up.Delay)

	proc := ProcessPolicy(cfg)
	require.NotNil(t, proc.Retryable)
	assert.True(t, proc.Retryable(apierr.FromResponse("p", 502, nil)))
	assert.False(t, proc.Retryable(apierr.FromResponse("p", 400, nil)))
	assert.Equal(t, 3*time.Second, proc.Delay)
}
