package processing

import (
	"sync"
	"time"

	"product-studio-server/modules/common/model"
)

// extractedTTL - 재시도가 끝내 오지 않은 항목 정리 기준
const extractedTTL = time.Hour

// extractedEntry - 요청 1건에서 이미 등록된 PDF 추출 에셋
type extractedEntry struct {
	assets   []model.UploadedAsset
	complete bool
	touched  time.Time
}

// extractedCache - Process 재시도 사이에 추출 에셋을 유지 (같은 이미지를 두 번 등록하지 않도록)
type extractedCache struct {
	mu      sync.Mutex
	entries map[string]*extractedEntry
	now     func() time.Time
}

func newExtractedCache() *extractedCache {
	return &extractedCache{entries: map[string]*extractedEntry{}, now: time.Now}
}

func extractedKey(req model.ProcessingRequest) string {
	return req.AssetID + "|" + req.SourceURL
}

// get - 등록된 에셋 복사본과 완료 여부
func (c *extractedCache) get(key string) ([]model.UploadedAsset, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return append([]model.UploadedAsset(nil), e.assets...), e.complete
}

func (c *extractedCache) add(key string, asset model.UploadedAsset) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pruneLocked()
	e, ok := c.entries[key]
	if !ok {
		e = &extractedEntry{}
		c.entries[key] = e
	}
	e.assets = append(e.assets, asset)
	e.touched = c.now()
}

func (c *extractedCache) markComplete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		e.complete = true
		e.touched = c.now()
	}
}

func (c *extractedCache) forget(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

func (c *extractedCache) pruneLocked() {
	cutoff := c.now().Add(-extractedTTL)
	for k, e := range c.entries {
		if e.touched.Before(cutoff) {
			delete(c.entries, k)
		}
	}
}

func (c *extractedCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
