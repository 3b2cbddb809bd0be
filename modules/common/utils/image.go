package utils

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"  // GIF 디코더 등록
	_ "image/jpeg" // JPEG 디코더 등록
	_ "image/png"  // PNG 디코더 등록
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/kolesa-team/go-webp/decoder"
	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"
	"github.com/rs/zerolog/log"
)

// DecodeImage - PNG/JPEG/GIF/WebP 자동 감지 디코딩
func DecodeImage(data []byte) (image.Image, error) {
	if isWebP(data) {
		img, err := webp.Decode(bytes.NewReader(data), &decoder.Options{})
		if err != nil {
			return nil, fmt.Errorf("failed to decode WebP: %w", err)
		}
		return img, nil
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// EncodeWebP - 이미지를 lossy WebP로 인코딩 (알파 유지)
func EncodeWebP(img image.Image, quality float32) ([]byte, error) {
	options, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, quality)
	if err != nil {
		return nil, fmt.Errorf("failed to create WebP encoder options: %w", err)
	}

	var webpBuffer bytes.Buffer
	if err := webp.Encode(&webpBuffer, img, options); err != nil {
		return nil, fmt.Errorf("failed to encode WebP: %w", err)
	}
	return webpBuffer.Bytes(), nil
}

// ConvertToWebP - PNG/JPEG 바이너리를 WebP로 변환 (이미 WebP면 그대로)
func ConvertToWebP(data []byte, quality float32) ([]byte, error) {
	if isWebP(data) {
		return data, nil
	}
	img, err := DecodeImage(data)
	if err != nil {
		return nil, err
	}
	webpData, err := EncodeWebP(img, quality)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Int("from_bytes", len(data)).
		Int("to_bytes", len(webpData)).
		Msg("🔄 Converted image to WebP")
	return webpData, nil
}

// ProbeDimensions - 전체 디코딩 없이 크기 확인 (WebP는 디코딩 필요)
func ProbeDimensions(data []byte) (width, height int, ok bool) {
	if len(data) == 0 {
		return 0, 0, false
	}
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		return cfg.Width, cfg.Height, true
	}
	if isWebP(data) {
		img, err := webp.Decode(bytes.NewReader(data), &decoder.Options{})
		if err == nil {
			b := img.Bounds()
			return b.Dx(), b.Dy(), true
		}
	}
	return 0, 0, false
}

// DetectContentType - 선언된 타입이 없거나 generic하면 바이트로 판별
func DetectContentType(data []byte, declared string) string {
	declared = strings.TrimSpace(strings.Split(declared, ";")[0])
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	if isWebP(data) {
		return "image/webp"
	}
	return http.DetectContentType(data)
}

// ExtensionFor - content type → 확장자
func ExtensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return "png"
	case "image/jpeg":
		return "jpg"
	case "image/gif":
		return "gif"
	case "image/webp":
		return "webp"
	case "application/pdf":
		return "pdf"
	}
	return "bin"
}

func isWebP(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP"
}

// ParseHexColor - "#rrggbb" → RGBA
func ParseHexColor(hex string) (color.RGBA, error) {
	hex = strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if len(hex) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid hex color: %q", hex)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid hex color: %q", hex)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}

// HexColor - RGB → "#rrggbb"
func HexColor(r, g, b uint8) string {
	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}

// RenderSwatch - 팔레트 색상을 grid 방식으로 배치한 스와치 이미지
func RenderSwatch(palette []string, cellSize int) (image.Image, error) {
	if len(palette) == 0 {
		return nil, fmt.Errorf("no colors to render")
	}
	if cellSize < 1 {
		cellSize = 128
	}

	colors := make([]color.RGBA, 0, len(palette))
	for _, hex := range palette {
		c, err := ParseHexColor(hex)
		if err != nil {
			log.Warn().Str("color", hex).Msg("⚠️  Skipping invalid palette color")
			continue
		}
		colors = append(colors, c)
	}
	if len(colors) == 0 {
		return nil, fmt.Errorf("no valid colors to render")
	}

	// Grid 방식으로 배치 (2x2, 2x3 등)
	cols := int(math.Ceil(math.Sqrt(float64(len(colors)))))
	rows := int(math.Ceil(float64(len(colors)) / float64(cols)))

	swatch := image.NewRGBA(image.Rect(0, 0, cols*cellSize, rows*cellSize))
	draw.Draw(swatch, swatch.Bounds(), image.White, image.Point{}, draw.Src)

	for idx, c := range colors {
		x := (idx % cols) * cellSize
		y := (idx / cols) * cellSize
		draw.Draw(swatch, image.Rect(x, y, x+cellSize, y+cellSize), &image.Uniform{C: c}, image.Point{}, draw.Src)
	}
	return swatch, nil
}
