package mimic

import (
	"fmt"
	"net/http"
	"net/url"
)

// maxRedirects caps the hop count of a single call, matching the common
// client default.
const maxRedirects = 20

func isRedirect(status int) bool {
	switch status {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

// redirectTarget resolves the Location header against the current URL.
func redirectTarget(current *url.URL, headers http.Header) (*url.URL, error) {
	loc := headers.Get("Location")
	if loc == "" {
		return nil, fmt.Errorf("%w: redirect without Location header", ErrProtocolViolation)
	}
	next, err := current.Parse(loc)
	if err != nil {
		return nil, fmt.Errorf("%w: redirect location %q: %v", ErrProtocolViolation, loc, err)
	}
	switch next.Scheme {
	case "http", "https":
	default:
		return nil, fmt.Errorf("%w: redirect to scheme %q", ErrUnsupportedScheme, next.Scheme)
	}
	return next, nil
}

// redirectMethod applies the standard method rewrite: 303 always becomes
// GET (HEAD stays HEAD), and browsers also downgrade POST on 301/302. The
// body is dropped whenever the method changes.
func redirectMethod(method string, status int) (string, bool) {
	switch status {
	case http.StatusSeeOther:
		if method != http.MethodHead {
			return http.MethodGet, true
		}
	case http.StatusMovedPermanently, http.StatusFound:
		if method == http.MethodPost {
			return http.MethodGet, true
		}
	}
	return method, false
}

// stripSensitiveHeaders removes credentials when a redirect leaves the
// original host.
func stripSensitiveHeaders(headers map[string]string) {
	deleteHeader(headers, "Authorization")
	deleteHeader(headers, "Proxy-Authorization")
	deleteHeader(headers, "Cookie")
}
