package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"product-studio-server/modules/common/apierr"
)

func TestSanitizeKey(t *testing.T) {
	good := map[string]string{
		"uploads/a.png":   "uploads/a.png",
		"/uploads//b.png": "uploads/b.png",
		"./x/../y.png":    "y.png",
		"dir\\file.webp":  "dir/file.webp",
	}
	for in, want := range good {
		got, err := sanitizeKey(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	for _, bad := range []string{"", "  ", "../etc/passwd", "a/../../b", "."} {
		_, err := sanitizeKey(bad)
		assert.Error(t, err, bad)
	}
}

func TestSafeFileNameAndPaths(t *testing.T) {
	assert.Equal(t, "red_shoe_1_.jpg", SafeFileName("red shoe (1).jpg"))
	assert.Equal(t, "passwd", SafeFileName("../../etc/passwd"))
	assert.Equal(t, "asset", SafeFileName("   "))

	now := time.UnixMilli(1700000000000)
	assert.Equal(t, "uploads/user-u1/1700000000000_k1_mug.png", UploadPath("u1", "k1", "mug.png", now))
	assert.NotEqual(t, UploadPath("u1", "k1", "상품.jpg", now), UploadPath("u1", "k2", "사진.jpg", now))
	assert.Equal(t, "processed/a1/bg-remove.webp", ProcessedPath("a1", "bg-remove", ".webp"))
}

func TestFileStoreRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "http://localhost:8080/files/")
	require.NoError(t, err)
	ctx := context.Background()

	url, err := store.Put(ctx, "uploads/user-1/a.png", []byte("one"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/files/uploads/user-1/a.png", url)

	// upsert
	_, err = store.Put(ctx, "uploads/user-1/a.png", []byte("two"), "image/png")
	require.NoError(t, err)
	data, err := store.Fetch(ctx, "uploads/user-1/a.png")
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))

	require.NoError(t, store.Delete(ctx, "uploads/user-1/a.png"))
	_, err = store.Fetch(ctx, "uploads/user-1/a.png")
	assert.Equal(t, apierr.KindValidation, apierr.KindOf(err))

	// 이미 없는 객체 삭제는 에러 아님
	assert.NoError(t, store.Delete(ctx, "uploads/user-1/a.png"))
}

func TestSupabaseStore(t *testing.T) {
	var (
		mu      sync.Mutex
		objects = map[string]string{}
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer svc" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		key := strings.TrimPrefix(r.URL.Path, "/storage/v1/object/assets/")
		mu.Lock()
		defer mu.Unlock()
		switch r.Method {
		case http.MethodPost:
			assert.Equal(t, "true", r.Header.Get("x-upsert"))
			body, _ := io.ReadAll(r.Body)
			objects[key] = string(body)
			w.WriteHeader(http.StatusOK)
		case http.MethodGet:
			body, ok := objects[key]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			io.WriteString(w, body)
		case http.MethodDelete:
			delete(objects, key)
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()

	store := NewSupabaseStore(srv.URL, "svc", "assets")
	ctx := context.Background()

	url, err := store.Put(ctx, "uploads/x.png", []byte("png-bytes"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/storage/v1/object/public/assets/uploads/x.png", url)

	data, err := store.Fetch(ctx, "uploads/x.png")
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	require.NoError(t, store.Delete(ctx, "uploads/x.png"))
	_, err = store.Fetch(ctx, "uploads/x.png")
	assert.Equal(t, apierr.KindValidation, apierr.KindOf(err))

	bad := NewSupabaseStore(srv.URL, "wrong", "assets")
	_, err = bad.Put(ctx, "uploads/y.png", []byte("x"), "image/png")
	assert.Equal(t, apierr.KindValidation, apierr.KindOf(err))
}

func TestSupabaseStoreGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewSupabaseStore(srv.URL, "svc", "assets").Put(context.Background(), "a.png", []byte("x"), "image/png")
	assert.True(t, apierr.IsRetryable(err))
}
