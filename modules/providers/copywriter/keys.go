package copywriter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

const maxRetriesPerKey = 3

// keyRing - 429 에러 시 여러 API 키로 돌아가며 재시도
type keyRing struct {
	keys []string
	wait time.Duration
}

func newKeyRing(raw string) *keyRing {
	r := &keyRing{wait: 2 * time.Second}
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			r.keys = append(r.keys, k)
		}
	}
	return r
}

func (r *keyRing) len() int {
	if r == nil {
		return 0
	}
	return len(r.keys)
}

// generate - 키당 최대 3번, 429가 아닌 에러는 바로 반환
func (r *keyRing) generate(
	ctx context.Context,
	model string,
	contents []*genai.Content,
	config *genai.GenerateContentConfig,
) (*genai.GenerateContentResponse, error) {
	if r.len() == 0 {
		return nil, fmt.Errorf("no API keys provided")
	}

	var lastErr error
	for keyIndex, apiKey := range r.keys {
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  apiKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			log.Warn().Err(err).Int("key", keyIndex+1).Msg("⚠️  [Gemini] Failed to create client")
			lastErr = err
			continue
		}

		for attempt := 1; attempt <= maxRetriesPerKey; attempt++ {
			result, err := client.Models.GenerateContent(ctx, model, contents, config)
			if err == nil {
				return result, nil
			}
			lastErr = err
			if !is429Error(err) {
				return nil, err
			}

			log.Warn().Int("key", keyIndex+1).Int("attempt", attempt).Msg("⚠️  [Gemini] Rate limited")
			if attempt < maxRetriesPerKey {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(r.wait):
				}
			}
		}
	}
	return nil, fmt.Errorf("all %d API keys exhausted, last error: %w", len(r.keys), lastErr)
}

// is429Error - 429 Rate Limit 에러인지 확인
func is429Error(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "quota")
}
