package pdfextract

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"product-studio-server/modules/common/apierr"
)

const defaultEndpoint = "https://v2.convertapi.com/convert/pdf/to/extract-images"

// Image - PDF에서 추출된 이미지 1장
type Image struct {
	Name        string
	Data        []byte
	ContentType string
}

type parameter struct {
	Name      string     `json:"Name"`
	Value     any        `json:"Value,omitempty"`
	FileValue *fileValue `json:"FileValue,omitempty"`
}

type fileValue struct {
	Name string `json:"Name"`
	Data string `json:"Data"`
}

type convertRequest struct {
	Parameters []parameter `json:"Parameters"`
}

type convertResponse struct {
	Files []struct {
		FileName string `json:"FileName"`
		FileExt  string `json:"FileExt"`
		FileData string `json:"FileData"`
		URL      string `json:"Url"`
	} `json:"Files"`
}

// Client - PDF 이미지 추출 provider (ConvertAPI 호환)
type Client struct {
	endpoint   string
	secret     string
	httpClient *http.Client
}

func New(endpoint, secret string) *Client {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	return &Client{
		endpoint:   strings.TrimRight(endpoint, "/"),
		secret:     secret,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

func (c *Client) Configured() bool {
	return c != nil && c.secret != ""
}

// Extract - PDF 바이너리에서 포함된 이미지를 모두 추출
func (c *Client) Extract(ctx context.Context, name string, pdf []byte) ([]Image, error) {
	const op = "pdfextract.extract"
	if !c.Configured() {
		return nil, apierr.Validation(op, "PDF extraction provider is not configured")
	}
	if len(pdf) == 0 {
		return nil, apierr.Validation(op, "empty document")
	}

	payload, err := json.Marshal(convertRequest{Parameters: []parameter{
		{Name: "File", FileValue: &fileValue{Name: name, Data: base64.StdEncoding.EncodeToString(pdf)}},
		{Name: "StoreFile", Value: false},
	}})
	if err != nil {
		return nil, apierr.Wrap(apierr.KindUnknown, op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, apierr.Validation(op, "failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.secret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apierr.FromTransport(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apierr.FromTransport(op, err)
	}
	if err := apierr.FromResponse(op, resp.StatusCode, body); err != nil {
		return nil, err
	}

	var result convertResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, apierr.Wrap(apierr.KindUnknown, op, fmt.Errorf("failed to unmarshal response: %w", err))
	}

	images := make([]Image, 0, len(result.Files))
	for _, f := range result.Files {
		var data []byte
		switch {
		case f.FileData != "":
			data, err = base64.StdEncoding.DecodeString(f.FileData)
			if err != nil {
				log.Warn().Str("file", f.FileName).Err(err).Msg("⚠️  [PDFExtract] Skipping undecodable image")
				continue
			}
		case f.URL != "":
			data, err = c.download(ctx, f.URL)
			if err != nil {
				return nil, err
			}
		default:
			continue
		}
		images = append(images, Image{Name: f.FileName, Data: data, ContentType: contentTypeFor(f.FileExt)})
	}

	log.Info().Str("document", name).Int("images", len(images)).Msg("✅ [PDFExtract] Images extracted")
	return images, nil
}

func (c *Client) download(ctx context.Context, url string) ([]byte, error) {
	const op = "pdfextract.download"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apierr.Validation(op, "bad file url: %v", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apierr.FromTransport(op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apierr.FromTransport(op, err)
	}
	if err := apierr.FromResponse(op, resp.StatusCode, data); err != nil {
		return nil, err
	}
	return data, nil
}

func contentTypeFor(ext string) string {
	switch strings.ToLower(ext) {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	}
	return "application/octet-stream"
}
