package collect

import (
	"net/url"
	"path"
	"strings"

	"github.com/google/uuid"

	"product-studio-server/modules/common/model"
)

// ParseURLList - 줄바꿈/콤마로 구분된 URL 목록 (http(s)만, 중복 제거)
func ParseURLList(text string) []*model.AssetCandidate {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == '\n' || r == '\r' || r == ',' || r == ' ' || r == '\t'
	})

	seen := make(map[string]bool, len(fields))
	var candidates []*model.AssetCandidate
	for _, f := range fields {
		u, ok := normalizeURL(f, nil)
		if !ok || seen[u] {
			continue
		}
		seen[u] = true
		candidates = append(candidates, urlCandidate(u, "", model.SourceURL))
	}
	return candidates
}

// normalizeURL - http(s) 절대 URL로 정리 (base가 있으면 상대경로 해석)
func normalizeURL(raw string, base *url.URL) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "data:") {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", false
	}
	u.Fragment = ""
	return u.String(), true
}

func urlCandidate(rawURL, name string, source model.SourceKind) *model.AssetCandidate {
	if name == "" {
		name = nameFromURL(rawURL)
	}
	return &model.AssetCandidate{
		ID:        uuid.NewString(),
		Name:      name,
		SourceURL: rawURL,
		Source:    source,
	}
}

func nameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "image"
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" || base == "" {
		return u.Host
	}
	if unescaped, err := url.PathUnescape(base); err == nil {
		return unescaped
	}
	return base
}
