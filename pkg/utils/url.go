package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
)

// HashKey creates a SHA256 hash of a string.
// This is useful for creating consistent, safe keys for Redis.
func HashKey(s string) string {
	h := sha256.New()
	h.Write([]byte(s))
	return hex.EncodeToString(h.Sum(nil))
}

// ResolveHref turns a job card href into an absolute URL.
// Absolute http(s) hrefs are returned unchanged; other schemes such as
// javascript: or mailto: are rejected. Scheme-relative hrefs take the
// listing URL's scheme. Anything else is appended to the listing URL with its
// query and fragment stripped, so "/jobs/1" on "https://x.com/search?q=a"
// becomes "https://x.com/search/jobs/1".
func ResolveHref(listingURL, href string) (string, error) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", fmt.Errorf("empty href")
	}

	base, err := url.Parse(listingURL)
	if err != nil {
		return "", fmt.Errorf("parse listing url %q: %w", listingURL, err)
	}
	if !base.IsAbs() || base.Host == "" {
		return "", fmt.Errorf("listing url %q is not absolute", listingURL)
	}
	if !isHTTP(base.Scheme) {
		return "", fmt.Errorf("listing url %q is not http(s)", listingURL)
	}

	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("parse href %q: %w", href, err)
	}
	if ref.IsAbs() {
		if !isHTTP(ref.Scheme) {
			return "", fmt.Errorf("unsupported href scheme %q", ref.Scheme)
		}
		return ref.String(), nil
	}
	if strings.HasPrefix(href, "//") {
		ref.Scheme = base.Scheme
		return ref.String(), nil
	}

	base.RawQuery = ""
	base.ForceQuery = false
	base.Fragment = ""
	prefix := strings.TrimRight(base.String(), "/")
	return prefix + "/" + strings.TrimLeft(href, "/"), nil
}

func isHTTP(scheme string) bool {
	scheme = strings.ToLower(scheme)
	return scheme == "http" || scheme == "https"
}
