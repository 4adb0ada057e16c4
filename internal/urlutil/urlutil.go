package urlutil

import (
	"net/url"
	"path"
	"sort"
	"strings"
)

var staticExtensions = map[string]struct{}{
	".css":   {},
	".gif":   {},
	".ico":   {},
	".jpeg":  {},
	".jpg":   {},
	".js":    {},
	".mp3":   {},
	".mp4":   {},
	".pdf":   {},
	".png":   {},
	".svg":   {},
	".ttf":   {},
	".webp":  {},
	".woff":  {},
	".woff2": {},
	".zip":   {},
}

// trackingParams are dropped from query strings; listing sites append them
// per impression so the same listing shows up under many URLs.
var trackingParams = map[string]struct{}{
	"gclid":      {},
	"fbclid":     {},
	"ref":        {},
	"refid":      {},
	"source":     {},
	"trackingid": {},
	"trk":        {},
	"_trkparms":  {},
	"_trksid":    {},
	"hash":       {},
	"position":   {},
	"pagenum":    {},
	"amdata":     {},
	"epid":       {},
	"hash_key":   {},
}

// Normalize returns a canonical form of raw and its hostname.
func Normalize(raw string) (string, string, error) {
	raw = strings.TrimSpace(raw)
	if raw != "" && !strings.Contains(raw, "://") && !strings.HasPrefix(raw, "/") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", err
	}
	if u.Scheme == "" {
		u.Scheme = "https"
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme == "http" {
		u.Scheme = "https"
	}
	u.Fragment = ""
	u.RawFragment = ""
	u.Host = normalizeHost(u.Host)
	u.Path = normalizePath(u.Path)
	u.RawPath = ""
	u.RawQuery = normalizeQuery(u.RawQuery)
	return u.String(), u.Hostname(), nil
}

// Key is the dedup form of raw: Normalize without scheme. Unparseable input
// falls back to the lowercased trimmed string.
func Key(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	normalized, host, err := Normalize(raw)
	if err != nil || host == "" {
		return strings.ToLower(raw)
	}
	return strings.TrimPrefix(normalized, "https://")
}

// Resolve makes href absolute against base. mailto:, tel: and javascript:
// links resolve to "".
func Resolve(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	lower := strings.ToLower(href)
	if strings.HasPrefix(lower, "mailto:") || strings.HasPrefix(lower, "tel:") || strings.HasPrefix(lower, "javascript:") {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if u.Scheme == "" {
		u.Scheme = "https"
	}
	return u.String()
}

func IsCrawlable(raw string) bool {
	normalized, host, err := Normalize(raw)
	if err != nil || host == "" {
		return false
	}
	u, err := url.Parse(normalized)
	if err != nil {
		return false
	}
	return !isStaticAssetPath(u.Path)
}

func normalizeHost(host string) string {
	host = strings.ToLower(host)
	host = strings.TrimPrefix(host, "www.")
	host = strings.TrimSuffix(host, ":443")
	return host
}

func normalizePath(p string) string {
	if p == "" {
		return ""
	}
	clean := path.Clean(p)
	if clean == "." || clean == "/" {
		return ""
	}
	return strings.TrimSuffix(clean, "/")
}

func normalizeQuery(raw string) string {
	if raw == "" {
		return ""
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return ""
	}
	for key := range values {
		lk := strings.ToLower(key)
		if strings.HasPrefix(lk, "utm_") {
			delete(values, key)
			continue
		}
		if _, ok := trackingParams[lk]; ok {
			delete(values, key)
		}
	}
	if len(values) == 0 {
		return ""
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	normalized := url.Values{}
	for _, k := range keys {
		normalized[k] = values[k]
	}
	return normalized.Encode()
}

func isStaticAssetPath(p string) bool {
	ext := strings.ToLower(path.Ext(p))
	if ext == "" {
		return false
	}
	_, ok := staticExtensions[ext]
	return ok
}
