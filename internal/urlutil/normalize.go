// Package urlutil provides URL resolution and host helpers used when
// following links discovered by a parse callback.
package urlutil

import (
	"net/url"
	"strings"
)

// ExtractHost extracts the lowercased host (including port, if any) from a URL.
func ExtractHost(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	return strings.ToLower(u.Host), nil
}

// IsAbsoluteURL checks if a URL is absolute.
func IsAbsoluteURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return u.IsAbs()
}

// ResolveURL resolves a possibly relative URL against a base URL. A ref
// that is already absolute is returned as-is without parsing base, the
// common case for a parse callback that yields both relative links and
// fully-qualified ones discovered on the page.
func ResolveURL(base, ref string) (string, error) {
	if IsAbsoluteURL(ref) {
		return ref, nil
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return "", err
	}

	refURL, err := url.Parse(ref)
	if err != nil {
		return "", err
	}

	resolved := baseURL.ResolveReference(refURL)
	return resolved.String(), nil
}

// IsSameHost checks if two URLs have the same host.
func IsSameHost(url1, url2 string) bool {
	host1, err1 := ExtractHost(url1)
	host2, err2 := ExtractHost(url2)
	if err1 != nil || err2 != nil {
		return false
	}
	return host1 == host2
}
