// Package links resolves link and image references found in fetched pages into
// absolute URLs.
package links

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrNoBase is returned when neither an explicit base nor a usable reference
// URL is available for resolving a relative fragment.
var ErrNoBase = errors.New("no base url available")

// Origin returns the scheme://host portion of rawURL. Ports are preserved
// because they are part of the host.
func Origin(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%w: %q has no scheme or host", ErrNoBase, rawURL)
	}
	return strings.ToLower(u.Scheme) + "://" + u.Host, nil
}

// IsAbsolute reports whether rawURL starts with scheme://host. It does not
// require the rest of the URL to be well formed.
func IsAbsolute(rawURL string) bool {
	rawURL = strings.TrimSpace(rawURL)
	i := strings.Index(rawURL, "://")
	if i <= 0 || !validScheme(rawURL[:i]) {
		return false
	}
	rest := rawURL[i+3:]
	return rest != "" && !strings.ContainsAny(rest[:1], "/?#")
}

func validScheme(s string) bool {
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && (r >= '0' && r <= '9' || r == '+' || r == '-' || r == '.'):
		default:
			return false
		}
	}
	return true
}

// escapeStrayPercent rewrites every '%' not followed by two hex digits as %25.
func escapeStrayPercent(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && (i+2 >= len(s) || !isHex(s[i+1]) || !isHex(s[i+2])) {
			b.WriteString("%25")
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func isHex(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F'
}

// Resolve turns fragment into an absolute URL. When base is non-empty it is
// used directly; otherwise the origin of reference is used. Absolute fragments
// are returned unchanged.
func Resolve(base, reference, fragment string) (string, error) {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return "", errors.New("empty url fragment")
	}
	if IsAbsolute(fragment) {
		return fragment, nil
	}
	ref, err := url.Parse(escapeStrayPercent(fragment))
	if err != nil {
		return "", fmt.Errorf("parse fragment: %w", err)
	}

	base = strings.TrimSpace(base)
	if base == "" {
		origin, err := Origin(reference)
		if err != nil {
			return "", err
		}
		base = origin
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base: %w", err)
	}
	if baseURL.Scheme == "" || baseURL.Host == "" {
		return "", fmt.Errorf("%w: base %q is not absolute", ErrNoBase, base)
	}
	return baseURL.ResolveReference(ref).String(), nil
}
