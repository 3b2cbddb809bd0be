package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"product-studio-server/modules/common/apierr"
	"product-studio-server/modules/common/model"
)

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
	putErr  error
}

func newMemStore() *memStore { return &memStore{objects: map[string][]byte{}} }

func (s *memStore) Put(_ context.Context, p string, data []byte, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return "", s.putErr
	}
	s.objects[p] = data
	return s.PublicURL(p), nil
}

func (s *memStore) Fetch(_ context.Context, p string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.objects[p], nil
}

func (s *memStore) Delete(_ context.Context, p string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, p)
	s.deleted = append(s.deleted, p)
	return nil
}

func (s *memStore) PublicURL(p string) string { return "https://cdn.test/" + p }

type memRecords struct {
	mu      sync.Mutex
	records []model.AssetRecord
	err     error
}

func (r *memRecords) CreateAsset(_ context.Context, rec model.AssetRecord) (*model.AssetRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	rec.ID = fmt.Sprintf("asset-%d", len(r.records)+1)
	r.records = append(r.records, rec)
	return &rec, nil
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func newTestUploader(store *memStore, records *memRecords, maxBytes int64) *Uploader {
	u := NewUploader(store, records, NewHTTPFetcher(maxBytes), maxBytes)
	u.now = func() time.Time { return time.UnixMilli(1700000000000) }
	var seq atomic.Int64
	u.newKey = func() string { return fmt.Sprintf("k%d", seq.Add(1)) }
	return u
}

func TestUploadFileCandidate(t *testing.T) {
	store, records := newMemStore(), &memRecords{}
	u := newTestUploader(store, records, 1<<20)

	c := &model.AssetCandidate{ID: "c1", Name: "red mug.png", Payload: pngBytes(t, 800, 600), Source: model.SourceFile}
	asset, err := u.Upload(context.Background(), "u1", c)
	require.NoError(t, err)

	assert.Equal(t, "asset-1", asset.ID)
	assert.Equal(t, "c1", asset.CandidateID)
	assert.Equal(t, "uploads/user-u1/1700000000000_k1_red_mug.png", asset.StoragePath)
	assert.Equal(t, "https://cdn.test/"+asset.StoragePath, asset.URL)
	assert.Equal(t, 800, asset.Width)
	assert.Equal(t, 600, asset.Height)
	assert.Equal(t, "image/png", asset.ContentType)

	require.Len(t, records.records, 1)
	rec := records.records[0]
	assert.Equal(t, "file", rec.Source)
	require.NotNil(t, rec.Width)
	assert.Equal(t, 800, *rec.Width)
	assert.Len(t, store.objects, 1)
}

func TestUploadURLCandidate(t *testing.T) {
	img := pngBytes(t, 20, 10)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/mug.png":
			w.Header().Set("Content-Type", "image/png")
			w.Write(img)
		case "/busy.png":
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	store, records := newMemStore(), &memRecords{}
	u := newTestUploader(store, records, 1<<20)
	ctx := context.Background()

	c := &model.AssetCandidate{ID: "c1", SourceURL: srv.URL + "/mug.png?v=1", Source: model.SourceURL}
	asset, err := u.Upload(ctx, "u1", c)
	require.NoError(t, err)
	assert.Equal(t, "mug.png", asset.Name)
	assert.Equal(t, 20, asset.Width)
	assert.True(t, c.HasPayload())

	_, err = u.Upload(ctx, "u1", &model.AssetCandidate{ID: "c2", SourceURL: srv.URL + "/busy.png", Source: model.SourceURL})
	var upErr *UploadError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, "c2", upErr.Candidate.ID)
	assert.Equal(t, apierr.KindGateway, apierr.KindOf(err))

	_, err = u.Upload(ctx, "u1", &model.AssetCandidate{ID: "c3", SourceURL: srv.URL + "/missing.png"})
	assert.Equal(t, apierr.KindValidation, apierr.KindOf(err))

	_, err = u.Upload(ctx, "u1", &model.AssetCandidate{ID: "c4", SourceURL: "ftp://files.test/a.png"})
	assert.Equal(t, apierr.KindValidation, apierr.KindOf(err))

	assert.Len(t, records.records, 1)
}

func TestUploadRemovesObjectWhenRecordFails(t *testing.T) {
	store := newMemStore()
	records := &memRecords{err: errors.New("insert failed")}
	u := newTestUploader(store, records, 1<<20)

	_, err := u.Upload(context.Background(), "u1", &model.AssetCandidate{ID: "c1", Name: "a.png", Payload: pngBytes(t, 2, 2)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert failed")
	assert.Empty(t, store.objects)
	assert.Equal(t, []string{"uploads/user-u1/1700000000000_k1_a.png"}, store.deleted)
}

func TestUploadRejectsBadPayloads(t *testing.T) {
	store, records := newMemStore(), &memRecords{}
	u := newTestUploader(store, records, 64)
	ctx := context.Background()

	_, err := u.Upload(ctx, "u1", &model.AssetCandidate{Name: "big.png", Payload: pngBytes(t, 300, 300)})
	assert.Equal(t, apierr.KindValidation, apierr.KindOf(err))

	_, err = u.Upload(ctx, "u1", &model.AssetCandidate{Name: "notes.txt", Payload: []byte("hello")})
	assert.Equal(t, apierr.KindValidation, apierr.KindOf(err))
	assert.True(t, strings.Contains(err.Error(), "unsupported content type"))

	_, err = u.Upload(ctx, "", &model.AssetCandidate{Name: "a.png", Payload: []byte("x")})
	assert.Equal(t, apierr.KindValidation, apierr.KindOf(err))

	_, err = u.Upload(ctx, "u1", &model.AssetCandidate{Name: "empty"})
	assert.Equal(t, apierr.KindValidation, apierr.KindOf(err))

	assert.Empty(t, store.objects)
	assert.Empty(t, records.records)
}

func TestUploadBytes(t *testing.T) {
	store, records := newMemStore(), &memRecords{}
	u := newTestUploader(store, records, 1<<20)

	asset, err := u.UploadBytes(context.Background(), "u1", "page-1.png", pngBytes(t, 4, 3), "", model.SourceDerived)
	require.NoError(t, err)
	assert.Equal(t, 4, asset.Width)
	assert.Equal(t, "derived", records.records[0].Source)
}

func TestUploadSameNameKeepsSeparateObjects(t *testing.T) {
	store, records := newMemStore(), &memRecords{}
	u := newTestUploader(store, records, 1<<20)
	ctx := context.Background()

	a := &model.AssetCandidate{ID: "c1", Name: "photo.png", Payload: pngBytes(t, 4, 4), Source: model.SourceFile}
	b := &model.AssetCandidate{ID: "c2", Name: "photo.png", Payload: pngBytes(t, 8, 8), Source: model.SourceFile}

	ra, err := u.Upload(ctx, "u1", a)
	require.NoError(t, err)
	rb, err := u.Upload(ctx, "u1", b)
	require.NoError(t, err)

	assert.NotEqual(t, ra.StoragePath, rb.StoragePath)
	assert.NotEqual(t, ra.URL, rb.URL)
	assert.Len(t, store.objects, 2)
	assert.Len(t, records.records, 2)
	assert.Equal(t, a.Payload, store.objects[ra.StoragePath])
	assert.Equal(t, b.Payload, store.objects[rb.StoragePath])
}

func TestUploadFailedRecordKeepsSiblingObject(t *testing.T) {
	store, records := newMemStore(), &memRecords{}
	u := newTestUploader(store, records, 1<<20)
	ctx := context.Background()

	ra, err := u.Upload(ctx, "u1", &model.AssetCandidate{ID: "c1", Name: "상품.png", Payload: pngBytes(t, 2, 2)})
	require.NoError(t, err)

	records.err = errors.New("insert failed")
	_, err = u.Upload(ctx, "u1", &model.AssetCandidate{ID: "c2", Name: "사진.png", Payload: pngBytes(t, 2, 2)})
	require.Error(t, err)

	require.Len(t, store.deleted, 1)
	assert.NotEqual(t, ra.StoragePath, store.deleted[0])
	assert.Contains(t, store.objects, ra.StoragePath)
}
