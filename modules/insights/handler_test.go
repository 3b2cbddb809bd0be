package insights

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"product-studio-server/modules/common/apierr"
	"product-studio-server/modules/providers/cdn"
	"product-studio-server/modules/providers/vision"
)

type fakeAnalyzer struct {
	analysis *vision.Analysis
	err      error
	calls    int
}

func (f *fakeAnalyzer) AnalyzeURL(context.Context, string) (*vision.Analysis, error) {
	f.calls++
	return f.analysis, f.err
}

type fakeCDN struct {
	last cdn.Transformation
}

func (f *fakeCDN) Transform(_ context.Context, src string, t cdn.Transformation) (string, error) {
	f.last = t
	return "https://res.test/poster/" + t.String(), nil
}

func mugAnalysis() *vision.Analysis {
	return &vision.Analysis{
		Labels: []vision.Label{
			{Description: "Mug", Score: 0.95},
			{Description: "Ceramic", Score: 0.88},
			{Description: "Tableware", Score: 0.4},
		},
		Colors: []vision.Color{
			{Hex: "#1e3a8a", R: 30, G: 58, B: 138, Score: 0.6, PixelFraction: 0.5},
			{Hex: "#ffffff", R: 255, G: 255, B: 255, Score: 0.3, PixelFraction: 0.4},
		},
	}
}

func post(t *testing.T, h *Handler, body string) (*httptest.ResponseRecorder, PosterResponse) {
	t.Helper()
	r := mux.NewRouter()
	h.RegisterRoutes(r)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/insights/poster", strings.NewReader(body)))
	var resp PosterResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp
}

func TestPosterWithTemplateCopy(t *testing.T) {
	h := NewHandler(&fakeAnalyzer{analysis: mugAnalysis()}, nil, nil)

	w, resp := post(t, h, `{"imageUrl":"https://shop.test/mug.png"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)
	assert.Equal(t, "Mug", resp.Headline)
	assert.Equal(t, []string{"✓ Ceramic"}, resp.Callouts)
	assert.Equal(t, []string{"#1e3a8a", "#ffffff"}, resp.Palette)
	assert.Equal(t, []string{"Mug", "Ceramic"}, resp.Labels)
	require.NotNil(t, resp.Confidence)
	assert.Equal(t, 0.2, resp.Confidence.BgClean)
	assert.Empty(t, resp.PosterURL)
}

func TestPosterRender(t *testing.T) {
	transformer := &fakeCDN{}
	h := NewHandler(&fakeAnalyzer{analysis: mugAnalysis()}, nil, transformer)

	_, resp := post(t, h, `{"imageUrl":"https://shop.test/mug.png","productName":"Harbor Mug","render":true}`)
	assert.Equal(t, "Harbor Mug", resp.Headline)
	require.NotEmpty(t, transformer.last)
	assert.Equal(t, "c_pad,w_1080,h_1350,b_rgb:1e3a8a", transformer.last[0])
	assert.True(t, strings.HasPrefix(resp.PosterURL, "https://res.test/poster/"))
}

func TestPosterErrors(t *testing.T) {
	w, resp := post(t, NewHandler(&fakeAnalyzer{}, nil, nil), `{"imageUrl":"not a url"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.False(t, resp.Success)

	w, _ = post(t, NewHandler(nil, nil, nil), `{"imageUrl":"https://shop.test/mug.png"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	analyzer := &fakeAnalyzer{err: apierr.Validation("vision", "image could not be decoded")}
	w, _ = post(t, NewHandler(analyzer, nil, nil), `{"imageUrl":"https://shop.test/mug.png"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, 1, analyzer.calls, "validation errors are not retried")
}
