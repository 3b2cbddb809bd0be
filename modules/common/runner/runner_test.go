package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type result struct {
	item int
	err  error
}

func TestRunCardinality(t *testing.T) {
	for n := 1; n <= 8; n++ {
		for limit := 1; limit <= n; limit++ {
			t.Run(fmt.Sprintf("n=%d/limit=%d", n, limit), func(t *testing.T) {
				items := make([]int, n)
				for i := range items {
					items[i] = i
				}

				got := Run(context.Background(), items, limit, func(_ context.Context, i int) result {
					if i%3 == 0 {
						return result{item: i, err: errors.New("worker failed")}
					}
					return result{item: i}
				}, nil)

				require.Len(t, got, n)
				seen := make(map[int]bool, n)
				for _, r := range got {
					assert.False(t, seen[r.item], "item %d returned twice", r.item)
					seen[r.item] = true
				}
			})
		}
	}
}

func TestRunConcurrencyBound(t *testing.T) {
	const (
		n     = 20
		limit = 3
	)
	var inflight, peak int32

	items := make([]int, n)
	Run(context.Background(), items, limit, func(_ context.Context, _ int) struct{} {
		cur := atomic.AddInt32(&inflight, 1)
		for {
			old := atomic.LoadInt32(&peak)
			if cur <= old || atomic.CompareAndSwapInt32(&peak, old, cur) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		atomic.AddInt32(&inflight, -1)
		return struct{}{}
	}, nil)

	assert.LessOrEqual(t, int(peak), limit)
	assert.Greater(t, int(peak), 0)
}

func TestRunProgress(t *testing.T) {
	var (
		mu    sync.Mutex
		calls []int
	)
	items := []string{"a", "b", "c", "d", "e"}

	Run(context.Background(), items, 2, func(_ context.Context, s string) string { return s },
		func(completed, total int) {
			mu.Lock()
			defer mu.Unlock()
			assert.Equal(t, len(items), total)
			calls = append(calls, completed)
		})

	assert.Equal(t, []int{1, 2, 3, 4, 5}, calls)
}

func TestRunEmpty(t *testing.T) {
	called := false
	got := Run(context.Background(), []int{}, 3, func(_ context.Context, i int) int { return i },
		func(int, int) { called = true })

	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.False(t, called)
}

func TestRunCancelledContextKeepsCardinality(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got := Run(ctx, []int{1, 2, 3, 4}, 1, func(ctx context.Context, i int) error {
		return ctx.Err()
	}, nil)

	require.Len(t, got, 4)
	for _, err := range got {
		assert.ErrorIs(t, err, context.Canceled)
	}
}

func TestRunZeroLimitTreatedAsOne(t *testing.T) {
	var inflight, peak int32
	Run(context.Background(), []int{1, 2, 3}, 0, func(_ context.Context, _ int) int {
		cur := atomic.AddInt32(&inflight, 1)
		if cur > atomic.LoadInt32(&peak) {
			atomic.StoreInt32(&peak, cur)
		}
		time.Sleep(time.Millisecond)
		atomic.AddInt32(&inflight, -1)
		return 0
	}, nil)
	assert.Equal(t, int32(1), peak)
}
