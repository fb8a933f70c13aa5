package crawler

import (
	"fmt"
	"net/url"
	"strings"
)

// SiteRoot returns scheme://host[:port] for a website URL. Bare hosts are
// treated as http.
func SiteRoot(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme == "" {
		u, err = url.Parse("http://" + strings.TrimSpace(rawURL))
		if err != nil {
			return "", fmt.Errorf("parse url: %w", err)
		}
	}
	if u.Host == "" {
		return "", fmt.Errorf("url %q has no host", rawURL)
	}
	return fmt.Sprintf("%s://%s", strings.ToLower(u.Scheme), u.Host), nil
}

// ResolveReference resolves href against base and drops the fragment. Only
// http(s) results are accepted.
func ResolveReference(base, href string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base: %w", err)
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", fmt.Errorf("parse href: %w", err)
	}
	resolved := b.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", resolved.Scheme)
	}
	resolved.Fragment = ""
	return resolved.String(), nil
}
