package discovery

import (
	"fmt"
	"net/url"
	"strings"
)

// NormalizeURL standardizes a URL so variants compare cleanly. It lowercases
// the scheme and host, strips default ports and fragments, and sorts query
// parameters.
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	if u.Scheme == "http" {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	u.Fragment = ""
	u.RawQuery = u.Query().Encode()

	return u.String(), nil
}

// AMPVariant derives an AMP-style URL for the candidate. Publishers expose AMP
// pages either on their own subdomain or under an /amp/ path segment; we prefer
// the path form because it needs no DNS guess for apex domains.
// Returns "" when no distinct variant can be derived.
func AMPVariant(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	if strings.HasPrefix(host, "amp.") || strings.Contains(u.Path, "/amp/") || strings.HasSuffix(u.Path, "/amp") {
		return ""
	}

	variant := *u
	path := u.Path
	if path == "" || path == "/" {
		// Nothing to prefix; fall back to the amp subdomain.
		variant.Host = replaceHost(u, "amp."+stripWWW(host))
	} else {
		variant.Path = "/amp" + path
	}

	out := variant.String()
	if out == rawURL {
		return ""
	}
	return out
}

// MobileVariant derives the m.-prefixed hostname variant, or "" when the host
// already looks mobile or the variant would be identical.
func MobileVariant(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	if strings.HasPrefix(host, "m.") || strings.HasPrefix(host, "mobile.") {
		return ""
	}

	variant := *u
	variant.Host = replaceHost(u, "m."+stripWWW(host))

	out := variant.String()
	if out == rawURL {
		return ""
	}
	return out
}

// FaviconURL points at the conventional favicon location for the page's host.
func FaviconURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	scheme := u.Scheme
	if scheme == "" {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/favicon.ico", scheme, u.Host)
}

// Hostname extracts the lowercase host, or "" for unparseable input.
func Hostname(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

func stripWWW(host string) string {
	return strings.TrimPrefix(host, "www.")
}

func replaceHost(u *url.URL, newHost string) string {
	if port := u.Port(); port != "" {
		return newHost + ":" + port
	}
	return newHost
}
