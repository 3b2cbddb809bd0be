package collect

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"product-studio-server/modules/common/apierr"
	"product-studio-server/modules/common/model"
)

func urls(cs []*model.AssetCandidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.SourceURL
	}
	return out
}

func names(cs []*model.AssetCandidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Name
	}
	return out
}

func TestParseURLList(t *testing.T) {
	cs := ParseURLList("https://a.test/mug.png\nhttps://a.test/mug.png, http://b.test/img/cup%20blue.jpg\r\nftp://c.test/x.png\nnot a url\n\n")
	assert.Equal(t, []string{"https://a.test/mug.png", "http://b.test/img/cup%20blue.jpg"}, urls(cs))
	assert.Equal(t, []string{"mug.png", "cup blue.jpg"}, names(cs))
	for _, c := range cs {
		assert.Equal(t, model.SourceURL, c.Source)
		assert.NotEmpty(t, c.ID)
		assert.False(t, c.HasPayload())
	}
	assert.NotEqual(t, cs[0].ID, cs[1].ID)
	assert.Empty(t, ParseURLList("  \n "))
}

func TestParseCSVWithHeader(t *testing.T) {
	csv := "SKU,Image URL,price\nMUG-1,https://a.test/1.png,10\nMUG-2,,12\nMUG-3,https://a.test/3.png,9\nMUG-1,https://a.test/1.png,10\n"
	cs, err := ParseCSV(strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.test/1.png", "https://a.test/3.png"}, urls(cs))
	assert.Equal(t, []string{"MUG-1", "MUG-3"}, names(cs))
	assert.Equal(t, model.SourceCSV, cs[0].Source)
}

func TestParseCSVHeaderless(t *testing.T) {
	cs, err := ParseCSV(strings.NewReader("https://a.test/1.png,Mug\nhttps://a.test/2.png\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.test/1.png", "https://a.test/2.png"}, urls(cs))
	assert.Equal(t, []string{"1.png", "2.png"}, names(cs))
}

func TestParseSpreadsheet(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetCellValue(sheet, "A1", "title"))
	require.NoError(t, f.SetCellValue(sheet, "B1", "image_url"))
	require.NoError(t, f.SetCellValue(sheet, "A2", "Blue Mug"))
	require.NoError(t, f.SetCellValue(sheet, "B2", "https://a.test/blue.png"))
	require.NoError(t, f.SetCellValue(sheet, "A3", "Red Mug"))
	require.NoError(t, f.SetCellValue(sheet, "B3", "https://a.test/red.png"))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	cs, err := ParseSpreadsheet(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, []string{"Blue Mug", "Red Mug"}, names(cs))
	assert.Equal(t, []string{"https://a.test/blue.png", "https://a.test/red.png"}, urls(cs))

	_, err = ParseSpreadsheet(strings.NewReader("not a zip"))
	assert.Error(t, err)
}

func TestFromFiles(t *testing.T) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, f := range []struct{ name, data string }{{"a.png", "PNGDATA"}, {"b.jpg", strings.Repeat("x", 32)}} {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="files"; filename="`+f.name+`"`)
		h.Set("Content-Type", "image/png")
		w, err := mw.CreatePart(h)
		require.NoError(t, err)
		w.Write([]byte(f.data))
	}
	require.NoError(t, mw.Close())

	form, err := multipart.NewReader(&body, mw.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)

	cs, err := FromFiles(form.File["files"], 16)
	require.NoError(t, err)
	require.Len(t, cs, 2)
	assert.Equal(t, "a.png", cs[0].Name)
	assert.Equal(t, []byte("PNGDATA"), cs[0].Payload)
	assert.Equal(t, "image/png", cs[0].ContentType)
	assert.Equal(t, model.SourceFile, cs[0].Source)
	// 제한+1 바이트까지만 읽음
	assert.Len(t, cs[1].Payload, 17)
}

const productPage = `<!doctype html><html><head>
<meta property="og:image" content="/media/hero.jpg">
<meta name="twitter:image" content="https://shop.test/media/hero.jpg">
<link rel="image_src" href="https://cdn.shop.test/alt.png">
</head><body>
<img src="/static/logo.svg">
<img data-src="/media/side.jpg" src="data:image/gif;base64,R0lGOD">
<img src="//cdn.shop.test/media/back.png#zoom">
<img src="/media/tracking-pixel.gif">
</body></html>`

func TestFromProductPage(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/gone" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(strings.ReplaceAll(productPage, "https://shop.test", srv.URL)))
	}))
	defer srv.Close()

	cs, err := FromProductPage(context.Background(), srv.Client(), srv.URL+"/products/mug")
	require.NoError(t, err)
	assert.Equal(t, []string{
		srv.URL + "/media/hero.jpg",
		"https://cdn.shop.test/alt.png",
		srv.URL + "/media/side.jpg",
		"http://cdn.shop.test/media/back.png",
	}, urls(cs))
	assert.Equal(t, model.SourceProductPage, cs[0].Source)

	_, err = FromProductPage(context.Background(), srv.Client(), srv.URL+"/gone")
	assert.Equal(t, apierr.KindValidation, apierr.KindOf(err))

	_, err = FromProductPage(context.Background(), nil, "mailto:a@b.test")
	assert.Equal(t, apierr.KindValidation, apierr.KindOf(err))
}
