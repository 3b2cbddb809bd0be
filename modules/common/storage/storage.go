package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"product-studio-server/modules/common/config"
)

// ObjectStore - 에셋 바이너리 저장소
// Put은 같은 경로가 있으면 덮어씀 (재처리 시 upsert)
type ObjectStore interface {
	Put(ctx context.Context, objectPath string, data []byte, contentType string) (publicURL string, err error)
	Fetch(ctx context.Context, objectPath string) ([]byte, error)
	Delete(ctx context.Context, objectPath string) error
	PublicURL(objectPath string) string
}

// New - STORAGE_DRIVER에 맞는 ObjectStore 생성
func New(cfg *config.Config) (ObjectStore, error) {
	switch cfg.StorageDriver {
	case "supabase", "":
		return NewSupabaseStore(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.SupabaseStorageBucket), nil
	case "s3":
		return NewS3Store(cfg.AWSRegion, cfg.S3Bucket, cfg.S3PublicBaseURL)
	case "oss":
		return NewOSSStore(cfg.OSSEndpoint, cfg.OSSAccessKeyID, cfg.OSSAccessSecret, cfg.OSSBucket, cfg.OSSPublicBaseURL)
	case "filesystem":
		return NewFileStore(cfg.FSRoot, cfg.FSPublicBaseURL)
	}
	return nil, fmt.Errorf("unknown storage driver: %s", cfg.StorageDriver)
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// SafeFileName - 저장 경로에 쓸 수 있는 파일명으로 정리
func SafeFileName(name string) string {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	base = unsafeChars.ReplaceAllString(base, "_")
	base = strings.Trim(base, "._")
	if base == "" {
		base = "asset"
	}
	if len(base) > 120 {
		base = base[len(base)-120:]
	}
	return base
}

// UploadPath - uploads/user-{id}/{millis}_{key}_{name}
// key는 업로드마다 고유해야 함 (같은 이름 파일이 동시에 올라와도 객체가 겹치지 않도록)
func UploadPath(userID, key, name string, now time.Time) string {
	return fmt.Sprintf("uploads/user-%s/%d_%s_%s", userID, now.UnixMilli(), key, SafeFileName(name))
}

// ProcessedPath - processed/{assetId}/{operation}.{ext} (재처리 시 같은 경로로 upsert)
func ProcessedPath(assetID, operation, ext string) string {
	return fmt.Sprintf("processed/%s/%s.%s", assetID, operation, strings.TrimPrefix(ext, "."))
}

// sanitizeKey - 키 정규화, 루트 밖으로 나가는 경로 차단
func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("storage: key is required")
	}
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimPrefix(key, "./")
	key = strings.TrimLeft(key, "/")
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", errors.New("storage: invalid key")
	}
	return cleaned, nil
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}
