package batch

import (
	"strconv"
	"sync"
	"time"
)

// NewBatchID - "batch-" + epoch millis
func NewBatchID(now time.Time) string {
	return "batch-" + strconv.FormatInt(now.UnixMilli(), 10)
}

// IDClock - 프로세스 내에서 단조 증가하는 배치 id 발급
// 같은 밀리초에 들어온 제출은 다음 밀리초 값을 받음
type IDClock struct {
	mu   sync.Mutex
	last int64
}

// Next - now 이후이면서 이전 발급값보다 큰 id
func (c *IDClock) Next(now time.Time) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ms := now.UnixMilli()
	if ms <= c.last {
		ms = c.last + 1
	}
	c.last = ms
	return NewBatchID(time.UnixMilli(ms))
}
