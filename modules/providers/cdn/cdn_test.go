package cdn

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"product-studio-server/modules/common/apierr"
)

func TestDeriveURLIsDeterministic(t *testing.T) {
	c := New(Config{BaseURL: "https://res.cloudinary.com/", CloudName: "demo"})
	src := "https://store.test/assets/mug.png?v=2"

	got := c.DeriveURL(src, Resize(400, 300))
	assert.Equal(t, "https://res.cloudinary.com/demo/image/fetch/c_fit,w_400,h_300/https%3A%2F%2Fstore.test%2Fassets%2Fmug.png%3Fv%3D2", got)
	assert.Equal(t, got, c.DeriveURL(src, Resize(400, 300)))
}

func TestDeriveURLSigned(t *testing.T) {
	c := New(Config{BaseURL: "https://res.cloudinary.com", CloudName: "demo", APISecret: "secret", Sign: true})
	u := c.DeriveURL("https://store.test/a.png", Compress(80))

	parts := strings.Split(strings.TrimPrefix(u, "https://res.cloudinary.com/demo/image/fetch/"), "/")
	require.Len(t, parts, 3)
	assert.Regexp(t, `^s--[A-Za-z0-9_-]{8}--$`, parts[0])
	assert.Equal(t, "q_80,f_auto", parts[1])

	// 다른 변환이면 서명도 달라짐
	other := c.DeriveURL("https://store.test/a.png", Compress(70))
	assert.NotEqual(t, parts[0], strings.Split(strings.TrimPrefix(other, "https://res.cloudinary.com/demo/image/fetch/"), "/")[0])
}

func TestTransformationTokens(t *testing.T) {
	assert.Equal(t, "q_auto,f_auto", Compress(0).String())
	assert.Equal(t, "e_improve/e_sharpen", Retouch().String())
	assert.Equal(t, "e_gen_recolor:prompt_product;to-color_ff8800", Recolor("#ff8800").String())
	assert.Contains(t, TextOverlay([]string{"Dishwasher safe, 12oz"}).String(), "Dishwasher%20safe%252C%2012oz")
}

func TestTransformValidatesWithHead(t *testing.T) {
	var method string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		if strings.Contains(r.URL.Path, "w_9999") {
			w.Header().Set("X-Cld-Error", "Invalid width")
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if strings.Contains(r.URL.Path, "w_504") {
			w.WriteHeader(http.StatusGatewayTimeout)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, CloudName: "demo"})
	ctx := context.Background()

	u, err := c.Transform(ctx, "https://store.test/a.png", Resize(100, 100))
	require.NoError(t, err)
	assert.Equal(t, http.MethodHead, method)
	assert.True(t, strings.HasPrefix(u, srv.URL+"/demo/image/fetch/"))

	_, err = c.Transform(ctx, "https://store.test/a.png", Resize(9999, 1))
	assert.Equal(t, apierr.KindValidation, apierr.KindOf(err))
	assert.Contains(t, err.Error(), "Invalid width")

	_, err = c.Transform(ctx, "https://store.test/a.png", Resize(504, 1))
	assert.True(t, apierr.IsRetryable(err))

	_, err = New(Config{}).Transform(ctx, "https://store.test/a.png", Crop())
	assert.Equal(t, apierr.KindValidation, apierr.KindOf(err))
}
