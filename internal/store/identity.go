package store

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// CanonicalURL normalizes a page address so equivalent spellings share one
// identity. Scheme and host are lower-cased, the fragment is dropped and an
// empty path becomes "/". Addresses without a scheme are treated as https.
func CanonicalURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("empty url")
	}
	if !strings.Contains(trimmed, "://") && !strings.HasPrefix(trimmed, "about:") && !strings.HasPrefix(trimmed, "data:") {
		trimmed = "https://" + trimmed
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", raw, err)
	}
	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""
	parsed.RawFragment = ""
	if parsed.Host != "" && parsed.Path == "" && parsed.RawPath == "" {
		parsed.Path = "/"
	}
	if parsed.Scheme == "http" || parsed.Scheme == "https" {
		if parsed.Host == "" {
			return "", fmt.Errorf("url %q has no host", raw)
		}
	}
	return parsed.String(), nil
}

// IdentityFor derives the stable thumbnail identity for a page address.
func IdentityFor(raw string) (string, error) {
	canonical, err := CanonicalURL(raw)
	if err != nil {
		return "", err
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(canonical)).String(), nil
}
