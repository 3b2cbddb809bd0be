package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"product-studio-server/modules/common/apierr"
)

// SupabaseStore - Supabase Storage REST API
type SupabaseStore struct {
	baseURL    string
	serviceKey string
	bucket     string
	httpClient *http.Client
}

// NewSupabaseStore - Storage 클라이언트 생성
func NewSupabaseStore(supabaseURL, serviceKey, bucket string) *SupabaseStore {
	return &SupabaseStore{
		baseURL:    supabaseURL,
		serviceKey: serviceKey,
		bucket:     bucket,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (s *SupabaseStore) objectURL(key string) string {
	return fmt.Sprintf("%s/storage/v1/object/%s/%s", s.baseURL, s.bucket, key)
}

// PublicURL - public bucket 기준 URL
func (s *SupabaseStore) PublicURL(objectPath string) string {
	key, err := sanitizeKey(objectPath)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, s.bucket, key)
}

// Put - 업로드 (x-upsert로 덮어쓰기 허용)
func (s *SupabaseStore) Put(ctx context.Context, objectPath string, data []byte, contentType string) (string, error) {
	key, err := sanitizeKey(objectPath)
	if err != nil {
		return "", apierr.Validation("storage.put", "%v", err)
	}

	log.Debug().Str("key", key).Int("bytes", len(data)).Msg("📤 Uploading object to storage")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.objectURL(key), bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "true")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", apierr.FromTransport("storage.put", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return "", apierr.FromResponse("storage.put", resp.StatusCode, body)
	}

	log.Debug().Str("key", key).Msg("✅ Object uploaded")
	return s.PublicURL(key), nil
}

// Fetch - 서비스 키로 객체 다운로드
func (s *SupabaseStore) Fetch(ctx context.Context, objectPath string) ([]byte, error) {
	key, err := sanitizeKey(objectPath)
	if err != nil {
		return nil, apierr.Validation("storage.fetch", "%v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.objectURL(key), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, apierr.FromTransport("storage.fetch", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apierr.FromTransport("storage.fetch", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apierr.FromResponse("storage.fetch", resp.StatusCode, body)
	}
	return body, nil
}

// Delete - 객체 삭제
func (s *SupabaseStore) Delete(ctx context.Context, objectPath string) error {
	key, err := sanitizeKey(objectPath)
	if err != nil {
		return apierr.Validation("storage.delete", "%v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.objectURL(key), nil)
	if err != nil {
		return fmt.Errorf("failed to create delete request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return apierr.FromTransport("storage.delete", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(resp.Body)
		return apierr.FromResponse("storage.delete", resp.StatusCode, body)
	}
	log.Info().Str("key", key).Msg("🗑️  Object deleted")
	return nil
}
