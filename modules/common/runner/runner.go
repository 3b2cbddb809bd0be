package runner

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// ProgressFunc - 작업 하나가 끝날 때마다 호출 (completed: 지금까지 완료된 개수)
type ProgressFunc func(completed, total int)

// Run - items를 최대 limit개까지 동시에 worker로 처리하고 결과를 완료 순서대로 반환
// worker는 실패도 결과 값으로 돌려줘야 함 (runner는 결과를 해석하지 않음)
func Run[T, R any](ctx context.Context, items []T, limit int, worker func(context.Context, T) R, onProgress ProgressFunc) []R {
	results := make([]R, 0, len(items))
	if len(items) == 0 {
		return results
	}
	if limit < 1 {
		limit = 1
	}

	sem := semaphore.NewWeighted(int64(limit))
	// ctx가 취소돼도 모든 item이 worker에 전달되도록 슬롯 획득은 취소와 분리
	acquireCtx := context.WithoutCancel(ctx)

	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		completed int
		total     = len(items)
	)

	for _, item := range items {
		// 취소되지 않는 컨텍스트라 에러 없음
		_ = sem.Acquire(acquireCtx, 1)

		wg.Add(1)
		go func(item T) {
			defer wg.Done()

			result := worker(ctx, item)

			// 진행률 콜백이 끝난 뒤에 슬롯 반환 → 다음 item 투입
			mu.Lock()
			results = append(results, result)
			completed++
			if onProgress != nil {
				onProgress(completed, total)
			}
			mu.Unlock()

			sem.Release(1)
		}(item)
	}

	wg.Wait()
	return results
}
