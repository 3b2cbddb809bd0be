package vision

import (
	"context"
	"encoding/base64"
	"errors"
	"math"
	"sort"

	"github.com/rs/zerolog/log"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	vision "google.golang.org/api/vision/v1"

	"product-studio-server/modules/common/apierr"
	"product-studio-server/modules/common/model"
	"product-studio-server/modules/common/utils"
)

// Label - 이미지 라벨
type Label struct {
	Description string  `json:"description"`
	Score       float64 `json:"score"`
}

// Color - dominant color
type Color struct {
	Hex           string  `json:"hex"`
	R, G, B       uint8   `json:"-"`
	Score         float64 `json:"score"`
	PixelFraction float64 `json:"pixel_fraction"`
}

// Box - 정규화된 bounding box (0..1)
type Box struct {
	MinX, MinY, MaxX, MaxY float64
}

func (b Box) Area() float64 {
	return math.Max(0, b.MaxX-b.MinX) * math.Max(0, b.MaxY-b.MinY)
}

// Object - localized object
type Object struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
	Box   Box     `json:"-"`
}

// Analysis - vision 분석 결과
type Analysis struct {
	Labels  []Label  `json:"labels"`
	Colors  []Color  `json:"colors"`
	Objects []Object `json:"objects"`
}

// Client - Google Cloud Vision 클라이언트
type Client struct {
	svc *vision.Service
}

// New - API key 기반 Vision 서비스 생성
func New(ctx context.Context, apiKey string, opts ...option.ClientOption) (*Client, error) {
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	svc, err := vision.NewService(ctx, opts...)
	if err != nil {
		return nil, err
	}
	log.Info().Msg("✅ [Vision] Client initialized")
	return &Client{svc: svc}, nil
}

func features() []*vision.Feature {
	return []*vision.Feature{
		{Type: "LABEL_DETECTION", MaxResults: 10},
		{Type: "IMAGE_PROPERTIES"},
		{Type: "OBJECT_LOCALIZATION", MaxResults: 5},
	}
}

// Analyze - 이미지 바이너리 분석
func (c *Client) Analyze(ctx context.Context, data []byte) (*Analysis, error) {
	return c.annotate(ctx, &vision.Image{Content: base64.StdEncoding.EncodeToString(data)})
}

// AnalyzeURL - 공개 URL 이미지 분석
func (c *Client) AnalyzeURL(ctx context.Context, imageURL string) (*Analysis, error) {
	return c.annotate(ctx, &vision.Image{Source: &vision.ImageSource{ImageUri: imageURL}})
}

func (c *Client) annotate(ctx context.Context, img *vision.Image) (*Analysis, error) {
	const op = "vision.annotate"
	if c == nil || c.svc == nil {
		return nil, apierr.Validation(op, "vision provider is not configured")
	}

	req := &vision.BatchAnnotateImagesRequest{
		Requests: []*vision.AnnotateImageRequest{{Image: img, Features: features()}},
	}
	resp, err := c.svc.Images.Annotate(req).Context(ctx).Do()
	if err != nil {
		return nil, classify(op, err)
	}
	return FromResponse(resp)
}

func classify(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return apierr.FromResponse(op, gerr.Code, []byte(gerr.Message))
	}
	return apierr.FromTransport(op, err)
}

// FromResponse - Vision 응답을 Analysis로 변환
func FromResponse(resp *vision.BatchAnnotateImagesResponse) (*Analysis, error) {
	const op = "vision.annotate"
	if resp == nil || len(resp.Responses) == 0 || resp.Responses[0] == nil {
		return nil, apierr.New(apierr.KindUnknown, op, "empty annotate response")
	}
	r := resp.Responses[0]
	if r.Error != nil && r.Error.Message != "" {
		// 이미지 단위 에러 (읽을 수 없는 이미지 등)
		return nil, apierr.Validation(op, "%s", r.Error.Message)
	}

	a := &Analysis{}
	for _, l := range r.LabelAnnotations {
		if l == nil {
			continue
		}
		a.Labels = append(a.Labels, Label{Description: l.Description, Score: l.Score})
	}

	if r.ImagePropertiesAnnotation != nil && r.ImagePropertiesAnnotation.DominantColors != nil {
		for _, ci := range r.ImagePropertiesAnnotation.DominantColors.Colors {
			if ci == nil || ci.Color == nil {
				continue
			}
			red, green, blue := channel(ci.Color.Red), channel(ci.Color.Green), channel(ci.Color.Blue)
			a.Colors = append(a.Colors, Color{
				Hex:           utils.HexColor(red, green, blue),
				R:             red,
				G:             green,
				B:             blue,
				Score:         ci.Score,
				PixelFraction: ci.PixelFraction,
			})
		}
		sort.SliceStable(a.Colors, func(i, j int) bool { return a.Colors[i].Score > a.Colors[j].Score })
	}

	for _, o := range r.LocalizedObjectAnnotations {
		if o == nil || o.BoundingPoly == nil || len(o.BoundingPoly.NormalizedVertices) == 0 {
			continue
		}
		box := Box{MinX: 1, MinY: 1}
		for _, v := range o.BoundingPoly.NormalizedVertices {
			if v == nil {
				continue
			}
			box.MinX = math.Min(box.MinX, v.X)
			box.MinY = math.Min(box.MinY, v.Y)
			box.MaxX = math.Max(box.MaxX, v.X)
			box.MaxY = math.Max(box.MaxY, v.Y)
		}
		a.Objects = append(a.Objects, Object{Name: o.Name, Score: o.Score, Box: box})
	}
	return a, nil
}

func channel(v float64) uint8 {
	return uint8(math.Round(math.Min(255, math.Max(0, v))))
}

// Palette - 상위 n개 색상 hex
func (a *Analysis) Palette(n int) []string {
	out := make([]string, 0, n)
	for _, c := range a.Colors {
		if len(out) == n {
			break
		}
		out = append(out, c.Hex)
	}
	return out
}

// LabelNames - score 임계값 이상의 라벨
func (a *Analysis) LabelNames(minScore float64) []string {
	var out []string
	for _, l := range a.Labels {
		if l.Score >= minScore {
			out = append(out, l.Description)
		}
	}
	return out
}

// Confidence - 문제 검출 신뢰도 (값이 클수록 해당 수정이 필요)
//
//	bg_clean: 흰 배경 비율이 50% 미만일수록 증가
//	shadow:   채도 낮은 중간 밝기 픽셀 비율 (25% 이상이면 1)
//	crop:     주 객체가 프레임의 85%를 채우지 못할수록 증가 (객체 없음은 0.5)
func (a *Analysis) Confidence() model.Confidence {
	var white, gray float64
	for _, c := range a.Colors {
		lo := min(c.R, c.G, c.B)
		hi := max(c.R, c.G, c.B)
		switch {
		case lo >= 235:
			white += c.PixelFraction
		case hi-lo <= 24 && hi >= 60 && hi <= 180:
			gray += c.PixelFraction
		}
	}

	crop := 0.5
	if len(a.Objects) > 0 {
		primary := a.Objects[0]
		for _, o := range a.Objects[1:] {
			if o.Score > primary.Score {
				primary = o
			}
		}
		crop = clamp01((0.85 - primary.Box.Area()) / 0.85)
	}

	return model.Confidence{
		BgClean: round2(clamp01(1 - white/0.5)),
		Shadow:  round2(clamp01(gray / 0.25)),
		Crop:    round2(crop),
	}
}

func clamp01(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
