package cdn

import (
	"context"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"product-studio-server/modules/common/apierr"
)

// Config - CDN/transform provider 설정
type Config struct {
	BaseURL   string // https://res.cloudinary.com
	CloudName string
	APISecret string
	Sign      bool
}

// Transformation - "/"로 이어지는 변환 토큰 목록 (각 토큰은 "c_fit,w_400,h_300" 형태)
type Transformation []string

func (t Transformation) String() string {
	return strings.Join(t, "/")
}

// Client - fetch 모드로 원본 URL을 변환하는 CDN 클라이언트
type Client struct {
	cfg        Config
	httpClient *http.Client
}

func New(cfg Config) *Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Configured - cloud name이 있어야 사용 가능
func (c *Client) Configured() bool {
	return c != nil && c.cfg.CloudName != ""
}

// DeriveURL - 결정적(deterministic) 변환 URL 생성
func (c *Client) DeriveURL(sourceURL string, t Transformation) string {
	transform := t.String()
	parts := []string{c.cfg.BaseURL, c.cfg.CloudName, "image", "fetch"}
	if c.cfg.Sign && c.cfg.APISecret != "" {
		parts = append(parts, sign(transform, sourceURL, c.cfg.APISecret))
	}
	if transform != "" {
		parts = append(parts, transform)
	}
	parts = append(parts, url.QueryEscape(sourceURL))
	return strings.Join(parts, "/")
}

// sign - s--XXXXXXXX-- (sha1(transform/source + secret)의 base64url 앞 8자)
func sign(transform, source, secret string) string {
	toSign := source
	if transform != "" {
		toSign = transform + "/" + source
	}
	sum := sha1.Sum([]byte(toSign + secret))
	enc := base64.RawURLEncoding.EncodeToString(sum[:])
	return "s--" + enc[:8] + "--"
}

// Validate - HEAD 요청으로 변환 URL이 실제로 응답하는지 확인
func (c *Client) Validate(ctx context.Context, derivedURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, derivedURL, nil)
	if err != nil {
		return apierr.Validation("cdn.validate", "bad derived url: %v", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apierr.FromTransport("cdn.validate", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		// HEAD는 본문이 없으므로 Cloudinary x-cld-error 헤더를 메시지로 사용
		return apierr.FromResponse("cdn.validate", resp.StatusCode, []byte(resp.Header.Get("X-Cld-Error")))
	}
	return nil
}

// Transform - URL 생성 후 검증까지 마친 URL 반환
func (c *Client) Transform(ctx context.Context, sourceURL string, t Transformation) (string, error) {
	if !c.Configured() {
		return "", apierr.Validation("cdn.transform", "CDN is not configured")
	}
	derived := c.DeriveURL(sourceURL, t)
	if err := c.Validate(ctx, derived); err != nil {
		return "", err
	}
	log.Debug().Str("transform", t.String()).Msg("✅ [CDN] Derived URL validated")
	return derived, nil
}

func Resize(width, height int) Transformation {
	return Transformation{fmt.Sprintf("c_fit,w_%d,h_%d", width, height)}
}

// Compress - quality 0이면 q_auto
func Compress(quality int) Transformation {
	q := "q_auto"
	if quality > 0 {
		q = fmt.Sprintf("q_%d", quality)
	}
	return Transformation{q + ",f_auto"}
}

func Crop() Transformation {
	return Transformation{"c_crop,g_auto,ar_1:1"}
}

func Retouch() Transformation {
	return Transformation{"e_improve", "e_sharpen"}
}

func Lifestyle() Transformation {
	return Transformation{"e_gen_background_replace"}
}

func Recolor(hex string) Transformation {
	return Transformation{"e_gen_recolor:prompt_product;to-color_" + strings.TrimPrefix(hex, "#")}
}

func LineDiagram() Transformation {
	return Transformation{"e_vectorize:colors:2:detail:0.6", "f_svg"}
}

// TextOverlay - 하단 중앙 텍스트 레이어 (infographic 카피)
func TextOverlay(lines []string) Transformation {
	t := Transformation{}
	for i, line := range lines {
		t = append(t, fmt.Sprintf("l_text:Arial_36_bold:%s,co_rgb:222222,g_south,y_%d", escapeText(line), 40+i*56))
	}
	return t
}

// escapeText - 레이어 텍스트는 ","와 "/"를 이중 인코딩해야 함
func escapeText(s string) string {
	s = url.PathEscape(s)
	s = strings.ReplaceAll(s, ",", "%252C")
	s = strings.ReplaceAll(s, "%2F", "%252F")
	return s
}
