package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"product-studio-server/modules/common/apierr"
)

// FileStore - 로컬 파일시스템 저장소 (개발/테스트용)
// FS_PUBLIC_BASE_URL 아래에서 정적 파일로 서빙된다고 가정
type FileStore struct {
	basePath   string
	publicBase string
}

func NewFileStore(basePath, publicBase string) (*FileStore, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("storage: base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure base path: %w", err)
	}
	return &FileStore{basePath: basePath, publicBase: publicBase}, nil
}

// BasePath - 정적 파일 서빙용 루트
func (s *FileStore) BasePath() string {
	return s.basePath
}

func (s *FileStore) PublicURL(objectPath string) string {
	key, err := sanitizeKey(objectPath)
	if err != nil {
		return ""
	}
	return joinURL(s.publicBase, key)
}

func (s *FileStore) Put(ctx context.Context, objectPath string, data []byte, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key, err := sanitizeKey(objectPath)
	if err != nil {
		return "", apierr.Validation("storage.put", "%v", err)
	}
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("storage: ensure directory: %w", err)
	}
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return "", fmt.Errorf("storage: write file: %w", err)
	}
	return s.PublicURL(key), nil
}

func (s *FileStore) Fetch(ctx context.Context, objectPath string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key, err := sanitizeKey(objectPath)
	if err != nil {
		return nil, apierr.Validation("storage.fetch", "%v", err)
	}
	data, err := os.ReadFile(filepath.Join(s.basePath, filepath.FromSlash(key)))
	if errors.Is(err, os.ErrNotExist) {
		return nil, apierr.New(apierr.KindValidation, "storage.fetch", "object not found: "+key)
	}
	return data, err
}

func (s *FileStore) Delete(ctx context.Context, objectPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key, err := sanitizeKey(objectPath)
	if err != nil {
		return apierr.Validation("storage.delete", "%v", err)
	}
	err = os.Remove(filepath.Join(s.basePath, filepath.FromSlash(key)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("storage: delete file: %w", err)
	}
	return nil
}
