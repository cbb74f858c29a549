// Package urlnorm turns a raw request target into the canonical URL string
// stored with every capture.
package urlnorm

import (
	"net/http"
	"regexp"
	"strings"
)

// FaviconPath is requested unconditionally by browsers and never captured.
const FaviconPath = "favicon.ico"

var (
	schemeHostPrefix = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.\-]*://[^/?#]+(/|$)`)

	controlEscaper = strings.NewReplacer("\n", `\n`, "\r", `\r`)
)

// Normalize strips baseURL (or any scheme://host[:port]/ prefix) from rawURL
// and escapes line breaks so the result is safe to store and render.
// The returned path carries no leading slash: "/a/b?x=1" becomes "a/b?x=1".
func Normalize(rawURL, baseURL string) string {
	rest := rawURL
	switch {
	case baseURL != "" && strings.HasPrefix(rest, baseURL):
		rest = rest[len(baseURL):]
	case schemeHostPrefix.MatchString(rest):
		rest = rest[len(schemeHostPrefix.FindString(rest)):]
	default:
		rest = strings.TrimPrefix(rest, "/")
	}

	path, query, _ := strings.Cut(rest, "?")
	path = controlEscaper.Replace(path)
	if query == "" {
		return path
	}
	return path + "?" + controlEscaper.Replace(query)
}

// IsExcluded reports whether a normalized URL must not be captured. Only the
// path is compared; any query string is ignored.
func IsExcluded(normalized string) bool {
	path, _, _ := strings.Cut(normalized, "?")
	return path == FaviconPath
}

// FromRequest rebuilds the absolute request URL and its base (scheme://host/)
// from r. Path is the decoded path, so percent-encoded line breaks survive
// until Normalize escapes them.
func FromRequest(r *http.Request) (rawURL, baseURL string) {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	host := r.Host
	if host == "" {
		host = r.URL.Host
	}
	baseURL = scheme + "://" + host + "/"

	path := r.URL.Path
	if path == "" {
		path = "/"
	}
	rawURL = scheme + "://" + host + path
	if r.URL.RawQuery != "" {
		rawURL += "?" + r.URL.RawQuery
	}
	return rawURL, baseURL
}
