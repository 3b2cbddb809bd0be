package upload

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"product-studio-server/modules/common/apierr"
	"product-studio-server/modules/common/utils"
)

// HTTPFetcher - http(s) URL 다운로드 (크기 제한)
type HTTPFetcher struct {
	client   *http.Client
	maxBytes int64
}

func NewHTTPFetcher(maxBytes int64) *HTTPFetcher {
	return &HTTPFetcher{
		client:   &http.Client{Timeout: 60 * time.Second},
		maxBytes: maxBytes,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	const op = "upload.fetch"

	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, "", apierr.Validation(op, "unsupported url: %q", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, "", apierr.Validation(op, "failed to create request: %v", err)
	}
	req.Header.Set("User-Agent", "product-studio-server/1.0")
	req.Header.Set("Accept", "image/*,application/pdf;q=0.9,*/*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", apierr.FromTransport(op, err)
	}
	defer resp.Body.Close()

	reader := io.Reader(resp.Body)
	if f.maxBytes > 0 {
		reader = io.LimitReader(resp.Body, f.maxBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, "", apierr.FromTransport(op, err)
	}
	if err := apierr.FromResponse(op, resp.StatusCode, data); err != nil {
		return nil, "", err
	}
	if f.maxBytes > 0 && int64(len(data)) > f.maxBytes {
		return nil, "", apierr.Validation(op, "remote file exceeds %d bytes", f.maxBytes)
	}
	if len(data) == 0 {
		return nil, "", apierr.Validation(op, "remote file is empty")
	}

	return data, utils.DetectContentType(data, resp.Header.Get("Content-Type")), nil
}
