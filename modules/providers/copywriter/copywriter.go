package copywriter

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"product-studio-server/modules/common/apierr"
)

// Copy - infographic 용 헤드라인과 특징 문구
type Copy struct {
	Headline string   `json:"headline"`
	Callouts []string `json:"callouts"`
}

// Lines - 오버레이 순서 (callout 먼저, headline 마지막 = 가장 위)
func (c Copy) Lines() []string {
	lines := make([]string, 0, len(c.Callouts)+1)
	for i := len(c.Callouts) - 1; i >= 0; i-- {
		lines = append(lines, c.Callouts[i])
	}
	if c.Headline != "" {
		lines = append(lines, c.Headline)
	}
	return lines
}

// Writer - 라벨 목록으로 카피 생성
type Writer interface {
	Write(ctx context.Context, productName string, labels []string) (Copy, error)
}

// GeminiWriter - Gemini 기반 카피라이터
type GeminiWriter struct {
	keys     *keyRing
	model    string
	fallback Writer
}

// NewGemini - apiKeys는 콤마 구분 목록 허용
func NewGemini(apiKeys, model string) *GeminiWriter {
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &GeminiWriter{
		keys:     newKeyRing(apiKeys),
		model:    model,
		fallback: TemplateWriter{},
	}
}

func (w *GeminiWriter) Configured() bool {
	return w != nil && w.keys.len() > 0
}

func buildPrompt(productName string, labels []string) string {
	return fmt.Sprintf(`You write e-commerce infographic copy.
Product: %s
Detected attributes: %s

Respond with exactly 4 lines and nothing else:
line 1: a headline of at most 6 words
lines 2-4: short feature callouts of at most 5 words each`, productName, strings.Join(labels, ", "))
}

// Write - Gemini 호출 후 결과가 비거나 실패하면 템플릿 카피로 대체
func (w *GeminiWriter) Write(ctx context.Context, productName string, labels []string) (Copy, error) {
	if !w.Configured() {
		return w.fallback.Write(ctx, productName, labels)
	}

	contents := []*genai.Content{{Parts: []*genai.Part{genai.NewPartFromText(buildPrompt(productName, labels))}}}
	result, err := w.keys.generate(ctx, w.model, contents, &genai.GenerateContentConfig{
		Temperature: floatPtr(0.6),
	})
	if err != nil {
		classified := classify(err)
		if apierr.IsRetryable(classified) {
			return Copy{}, classified
		}
		log.Warn().Err(err).Msg("⚠️  [Copywriter] Gemini failed, using template copy")
		return w.fallback.Write(ctx, productName, labels)
	}

	out := parseCopy(extractText(result))
	if out.Headline == "" {
		log.Warn().Msg("⚠️  [Copywriter] Empty Gemini copy, using template copy")
		return w.fallback.Write(ctx, productName, labels)
	}
	log.Debug().Str("headline", out.Headline).Msg("✅ [Copywriter] Copy generated")
	return out, nil
}

func extractText(result *genai.GenerateContentResponse) string {
	if result == nil {
		return ""
	}
	for _, candidate := range result.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part.Text != "" {
				return part.Text
			}
		}
	}
	return ""
}

func parseCopy(text string) Copy {
	var c Copy
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-*•0123456789.)"))
		line = strings.Trim(line, `"`)
		if line == "" {
			continue
		}
		if c.Headline == "" {
			c.Headline = line
			continue
		}
		if len(c.Callouts) < 3 {
			c.Callouts = append(c.Callouts, line)
		}
	}
	return c
}

func classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apierr.FromResponse("copywriter.generate", apiErr.Code, []byte(apiErr.Message))
	}
	return apierr.FromTransport("copywriter.generate", err)
}

func floatPtr(f float32) *float32 {
	return &f
}

// TemplateWriter - 라벨만으로 만드는 결정적 카피
type TemplateWriter struct{}

func (TemplateWriter) Write(_ context.Context, productName string, labels []string) (Copy, error) {
	headline := strings.TrimSpace(productName)
	if headline == "" && len(labels) > 0 {
		headline = labels[0]
	}
	if headline == "" {
		headline = "Product Highlights"
	}

	c := Copy{Headline: headline}
	for _, l := range labels {
		if len(c.Callouts) == 3 {
			break
		}
		if strings.EqualFold(l, headline) {
			continue
		}
		c.Callouts = append(c.Callouts, "✓ "+l)
	}
	return c, nil
}
