package collect

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"

	"product-studio-server/modules/common/apierr"
	"product-studio-server/modules/common/model"
)

const maxPageBytes = 5 << 20

// FromProductPage - 상품 페이지에서 이미지 URL 수집 (og:image / twitter:image 먼저, 그다음 <img>)
func FromProductPage(ctx context.Context, client *http.Client, pageURL string) ([]*model.AssetCandidate, error) {
	const op = "collect.product_page"

	base, err := url.Parse(pageURL)
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") {
		return nil, apierr.Validation(op, "unsupported page url: %q", pageURL)
	}
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base.String(), nil)
	if err != nil {
		return nil, apierr.Validation(op, "failed to create request: %v", err)
	}
	req.Header.Set("Accept", "text/html")
	req.Header.Set("User-Agent", "product-studio-server/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return nil, apierr.FromTransport(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, apierr.FromResponse(op, resp.StatusCode, body)
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, apierr.Validation(op, "failed to parse html: %v", err)
	}

	metaURLs, imgURLs := extractImageURLs(doc)
	seen := map[string]bool{}
	var candidates []*model.AssetCandidate
	for _, raw := range append(metaURLs, imgURLs...) {
		u, ok := normalizeURL(raw, base)
		if !ok || seen[u] {
			continue
		}
		seen[u] = true
		candidates = append(candidates, urlCandidate(u, "", model.SourceProductPage))
	}

	log.Info().Str("page", pageURL).Int("images", len(candidates)).Msg("🔍 [Collect] Product page scanned")
	return candidates, nil
}

func extractImageURLs(doc *html.Node) (meta, imgs []string) {
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "meta":
				key := strings.ToLower(attr(n, "property"))
				if key == "" {
					key = strings.ToLower(attr(n, "name"))
				}
				switch key {
				case "og:image", "og:image:url", "og:image:secure_url", "twitter:image", "twitter:image:src":
					meta = append(meta, attr(n, "content"))
				}
			case "link":
				if strings.EqualFold(attr(n, "rel"), "image_src") {
					meta = append(meta, attr(n, "href"))
				}
			case "img":
				src := attr(n, "data-src")
				if src == "" {
					src = attr(n, "src")
				}
				if src != "" && !isDecorative(src) {
					imgs = append(imgs, src)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return meta, imgs
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

// isDecorative - 아이콘/추적 픽셀 제외
func isDecorative(src string) bool {
	s := strings.ToLower(src)
	return strings.HasSuffix(s, ".svg") ||
		strings.Contains(s, "sprite") ||
		strings.Contains(s, "pixel") ||
		strings.Contains(s, "favicon")
}
