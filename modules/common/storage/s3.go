package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"product-studio-server/modules/common/apierr"
)

// S3Store - AWS S3 버킷
type S3Store struct {
	client     *s3.S3
	bucket     string
	publicBase string
}

// NewS3Store - 기본 credential chain 사용
func NewS3Store(region, bucket, publicBase string) (*S3Store, error) {
	if bucket == "" {
		return nil, errors.New("storage: s3 bucket is required")
	}
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(region),
	})
	if err != nil {
		return nil, fmt.Errorf("storage: create aws session: %w", err)
	}
	if publicBase == "" {
		publicBase = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", bucket, region)
	}
	return &S3Store{
		client:     s3.New(sess),
		bucket:     bucket,
		publicBase: publicBase,
	}, nil
}

func (s *S3Store) PublicURL(objectPath string) string {
	key, err := sanitizeKey(objectPath)
	if err != nil {
		return ""
	}
	return joinURL(s.publicBase, key)
}

func (s *S3Store) Put(ctx context.Context, objectPath string, data []byte, contentType string) (string, error) {
	key, err := sanitizeKey(objectPath)
	if err != nil {
		return "", apierr.Validation("storage.put", "%v", err)
	}
	_, err = s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", classifyAWS("storage.put", err)
	}
	return s.PublicURL(key), nil
}

func (s *S3Store) Fetch(ctx context.Context, objectPath string) ([]byte, error) {
	key, err := sanitizeKey(objectPath)
	if err != nil {
		return nil, apierr.Validation("storage.fetch", "%v", err)
	}
	out, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, classifyAWS("storage.fetch", err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func (s *S3Store) Delete(ctx context.Context, objectPath string) error {
	key, err := sanitizeKey(objectPath)
	if err != nil {
		return apierr.Validation("storage.delete", "%v", err)
	}
	_, err = s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return classifyAWS("storage.delete", err)
	}
	return nil
}

func classifyAWS(op string, err error) error {
	var reqErr awserr.RequestFailure
	if errors.As(err, &reqErr) {
		return apierr.FromResponse(op, reqErr.StatusCode(), []byte(reqErr.Message()))
	}
	return apierr.FromTransport(op, err)
}
