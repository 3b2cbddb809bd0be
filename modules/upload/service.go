package upload

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"product-studio-server/modules/common/apierr"
	"product-studio-server/modules/common/model"
	"product-studio-server/modules/common/storage"
	"product-studio-server/modules/common/utils"
)

// Uploader - 후보 1건을 저장소 + 메타데이터 레코드로 영속화
type Uploader struct {
	store    storage.ObjectStore
	records  AssetRecords
	fetcher  Fetcher
	maxBytes int64
	now      func() time.Time
	newKey   func() string
}

// NewUploader - Uploader 생성
func NewUploader(store storage.ObjectStore, records AssetRecords, fetcher Fetcher, maxBytes int64) *Uploader {
	return &Uploader{
		store:    store,
		records:  records,
		fetcher:  fetcher,
		maxBytes: maxBytes,
		now:      time.Now,
		newKey:   uuid.NewString,
	}
}

// Upload - payload가 없으면 SourceURL에서 가져온 뒤 저장
func (u *Uploader) Upload(ctx context.Context, userID string, c *model.AssetCandidate) (*model.UploadedAsset, error) {
	if c == nil {
		return nil, &UploadError{Err: apierr.Validation("upload", "candidate is nil")}
	}

	if !c.HasPayload() {
		if c.SourceURL == "" {
			return nil, &UploadError{Candidate: c, Err: apierr.Validation("upload", "candidate has neither payload nor url")}
		}
		if u.fetcher == nil {
			return nil, &UploadError{Candidate: c, Err: apierr.Validation("upload", "no fetcher for url candidates")}
		}
		data, contentType, err := u.fetcher.Fetch(ctx, c.SourceURL)
		if err != nil {
			return nil, &UploadError{Candidate: c, Err: err}
		}
		c.Resolve(data, contentType)
		if c.Name == "" {
			c.Name = nameFromURL(c.SourceURL)
		}
	}

	asset, err := u.persist(ctx, userID, c.Name, c.Payload, c.ContentType, c.Source, c.Width, c.Height)
	if err != nil {
		return nil, &UploadError{Candidate: c, Err: err}
	}
	asset.CandidateID = c.ID
	return asset, nil
}

// UploadBytes - 처리 결과로 생긴 에셋(PDF 추출 이미지 등) 저장
func (u *Uploader) UploadBytes(ctx context.Context, userID, name string, data []byte, contentType string, source model.SourceKind) (*model.UploadedAsset, error) {
	return u.persist(ctx, userID, name, data, contentType, source, 0, 0)
}

func (u *Uploader) persist(ctx context.Context, userID, name string, data []byte, contentType string, source model.SourceKind, width, height int) (*model.UploadedAsset, error) {
	const op = "upload.persist"

	if userID == "" {
		return nil, apierr.Validation(op, "user id is required")
	}
	if len(data) == 0 {
		return nil, apierr.Validation(op, "empty payload")
	}
	if u.maxBytes > 0 && int64(len(data)) > u.maxBytes {
		return nil, apierr.Validation(op, "payload exceeds %d bytes", u.maxBytes)
	}

	contentType = utils.DetectContentType(data, contentType)
	if !strings.HasPrefix(contentType, "image/") && contentType != "application/pdf" {
		return nil, apierr.Validation(op, "unsupported content type %q", contentType)
	}
	if width == 0 || height == 0 {
		if w, h, ok := utils.ProbeDimensions(data); ok {
			width, height = w, h
		}
	}
	if name == "" {
		name = "asset." + utils.ExtensionFor(contentType)
	}

	objectPath := storage.UploadPath(userID, u.newKey(), name, u.now())
	publicURL, err := u.store.Put(ctx, objectPath, data, contentType)
	if err != nil {
		return nil, err
	}

	rec := model.AssetRecord{
		UserID:      userID,
		Name:        name,
		StoragePath: objectPath,
		URL:         publicURL,
		ContentType: contentType,
		SizeBytes:   int64(len(data)),
		Source:      string(source),
	}
	if width > 0 && height > 0 {
		rec.Width, rec.Height = &width, &height
	}

	created, err := u.records.CreateAsset(ctx, rec)
	if err != nil {
		// 레코드 없이 남는 객체 정리
		if delErr := u.store.Delete(context.WithoutCancel(ctx), objectPath); delErr != nil {
			log.Error().Err(delErr).Str("path", objectPath).Msg("❌ [Upload] Failed to remove orphaned object")
		}
		return nil, err
	}

	log.Debug().
		Str("asset_id", created.ID).
		Str("path", objectPath).
		Int("bytes", len(data)).
		Msg("✅ [Upload] Asset stored")

	return &model.UploadedAsset{
		ID:          created.ID,
		Name:        name,
		URL:         publicURL,
		StoragePath: objectPath,
		ContentType: contentType,
		Width:       width,
		Height:      height,
	}, nil
}

func nameFromURL(rawURL string) string {
	p := rawURL
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	base := path.Base(p)
	if base == "." || base == "/" || strings.Contains(base, ":") {
		return ""
	}
	return base
}
