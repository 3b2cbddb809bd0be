package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"

	"product-studio-server/modules/common/apierr"
)

// OSSStore - 阿里云 OSS 버킷 (public-read 버킷 기준)
type OSSStore struct {
	bucket     *oss.Bucket
	publicBase string
}

func NewOSSStore(endpoint, accessKeyID, accessSecret, bucketName, publicBase string) (*OSSStore, error) {
	client, err := oss.New(endpoint, accessKeyID, accessSecret)
	if err != nil {
		return nil, fmt.Errorf("init oss client failed: %w", err)
	}
	bucket, err := client.Bucket(bucketName)
	if err != nil {
		return nil, fmt.Errorf("open oss bucket failed: %w", err)
	}
	if publicBase == "" {
		publicBase = fmt.Sprintf("https://%s.%s", bucketName, endpoint)
	}
	return &OSSStore{bucket: bucket, publicBase: publicBase}, nil
}

func (s *OSSStore) PublicURL(objectPath string) string {
	key, err := sanitizeKey(objectPath)
	if err != nil {
		return ""
	}
	return joinURL(s.publicBase, key)
}

func (s *OSSStore) Put(ctx context.Context, objectPath string, data []byte, contentType string) (string, error) {
	key, err := sanitizeKey(objectPath)
	if err != nil {
		return "", apierr.Validation("storage.put", "%v", err)
	}
	if err := s.bucket.PutObject(key, bytes.NewReader(data), oss.ContentType(contentType), oss.WithContext(ctx)); err != nil {
		return "", classifyOSS("storage.put", err)
	}
	return s.PublicURL(key), nil
}

func (s *OSSStore) Fetch(ctx context.Context, objectPath string) ([]byte, error) {
	key, err := sanitizeKey(objectPath)
	if err != nil {
		return nil, apierr.Validation("storage.fetch", "%v", err)
	}
	body, err := s.bucket.GetObject(key, oss.WithContext(ctx))
	if err != nil {
		return nil, classifyOSS("storage.fetch", err)
	}
	defer body.Close()
	return io.ReadAll(body)
}

func (s *OSSStore) Delete(ctx context.Context, objectPath string) error {
	key, err := sanitizeKey(objectPath)
	if err != nil {
		return apierr.Validation("storage.delete", "%v", err)
	}
	if err := s.bucket.DeleteObject(key, oss.WithContext(ctx)); err != nil {
		return classifyOSS("storage.delete", err)
	}
	return nil
}

func classifyOSS(op string, err error) error {
	var svcErr oss.ServiceError
	if errors.As(err, &svcErr) {
		return apierr.FromResponse(op, svcErr.StatusCode, []byte(svcErr.Code+": "+svcErr.Message))
	}
	return apierr.FromTransport(op, err)
}
