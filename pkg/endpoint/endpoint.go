// Package endpoint derives the addresses a connection talks to: the resolved
// base URL, the negotiate URL and the identity-qualified connect URL.
package endpoint

import (
	"net/url"
	"strings"

	rterrors "github.com/ajitpratap0/rtconn-go/pkg/errors"
)

// Resolve normalizes raw into an absolute http(s) URL. Absolute http and https
// addresses are returned unchanged. Relative, path-only and network-path
// addresses are resolved against document; without one they cannot be resolved.
func Resolve(raw string, document *url.URL) (string, error) {
	if raw == "" {
		return "", rterrors.InvalidArgument("url", raw, "must not be empty")
	}

	lower := strings.ToLower(raw)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return raw, nil
	}

	ref, err := url.Parse(raw)
	if err != nil || ref.IsAbs() || document == nil || !document.IsAbs() {
		return "", rterrors.UnresolvableURL(raw)
	}

	return document.ResolveReference(ref).String(), nil
}

// NegotiateURL strips the query, ensures a trailing separator, appends
// "negotiate" and re-appends the original query.
func NegotiateURL(base string) string {
	path, query := splitQuery(base)
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	path += "negotiate"
	if query != "" {
		path += "?" + query
	}
	return path
}

// ConnectURL appends id=<connectionID> to u, preserving any existing query.
// u is returned unchanged when connectionID is empty.
func ConnectURL(u, connectionID string) string {
	if connectionID == "" {
		return u
	}
	sep := "?"
	if strings.Contains(u, "?") {
		sep = "&"
	}
	return u + sep + "id=" + url.QueryEscape(connectionID)
}

// WebSocketURL rewrites an http(s) URL to the matching ws(s) scheme.
func WebSocketURL(u string) string {
	lower := strings.ToLower(u)
	switch {
	case strings.HasPrefix(lower, "https://"):
		return "wss://" + u[len("https://"):]
	case strings.HasPrefix(lower, "http://"):
		return "ws://" + u[len("http://"):]
	default:
		return u
	}
}

func splitQuery(u string) (path, query string) {
	if i := strings.IndexByte(u, '?'); i >= 0 {
		return u[:i], u[i+1:]
	}
	return u, ""
}
