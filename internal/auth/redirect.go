package auth

import (
	"net/url"
	"strings"
)

// SafeRedirect returns where a post sign-in redirect to target may go. A relative path is resolved
// against baseURL, an absolute URL is kept only when it has the same origin as baseURL, and anything
// else yields baseURL.
func SafeRedirect(target, baseURL string) string {
	base := strings.TrimSuffix(baseURL, "/")
	if strings.HasPrefix(target, "/") && !strings.HasPrefix(target, "//") && !strings.HasPrefix(target, "/\\") {
		return base + target
	}

	u, err := url.Parse(target)
	if err != nil {
		return base
	}
	b, err := url.Parse(base)
	if err != nil {
		return base
	}
	if u.Scheme != "" && u.Scheme == b.Scheme && u.Host == b.Host {
		return target
	}
	return base
}

func isHTTPS(baseURL string) bool {
	u, err := url.Parse(baseURL)
	return err == nil && u.Scheme == "https"
}
