package bgremoval

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"product-studio-server/modules/common/apierr"
)

const defaultEndpoint = "https://api.remove.bg/v1.0/removebg"

// Client - 배경 제거 provider (remove.bg 호환 API)
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

type removeRequest struct {
	ImageURL string `json:"image_url"`
	Size     string `json:"size"`
	Format   string `json:"format"`
}

func New(endpoint, apiKey string) *Client {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	return &Client{
		endpoint:   strings.TrimRight(endpoint, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 90 * time.Second},
	}
}

func (c *Client) Configured() bool {
	return c != nil && c.apiKey != ""
}

// Remove - 이미지 URL의 배경을 제거한 PNG 바이너리 반환
func (c *Client) Remove(ctx context.Context, imageURL string) ([]byte, error) {
	if !c.Configured() {
		return nil, apierr.Validation("bgremoval.remove", "background removal provider is not configured")
	}

	body, err := json.Marshal(removeRequest{ImageURL: imageURL, Size: "auto", Format: "png"})
	if err != nil {
		return nil, apierr.Wrap(apierr.KindUnknown, "bgremoval.remove", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, apierr.Validation("bgremoval.remove", "failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "image/png")
	req.Header.Set("X-Api-Key", c.apiKey)

	log.Debug().Str("image_url", imageURL).Msg("🚀 [BgRemoval] Requesting background removal")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apierr.FromTransport("bgremoval.remove", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apierr.FromTransport("bgremoval.remove", err)
	}
	if err := apierr.FromResponse("bgremoval.remove", resp.StatusCode, data); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, apierr.New(apierr.KindUnknown, "bgremoval.remove", "empty response body")
	}

	log.Debug().Int("bytes", len(data)).Msg("✅ [BgRemoval] Background removed")
	return data, nil
}
