package mimic

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-querystring/query"
)

// RequestSpec describes one request. A fresh spec per call; the session
// never retains it.
type RequestSpec struct {
	// URL is the absolute target. http and https only.
	URL string

	// Headers carries unique header keys. HeaderOrder controls transmit
	// order; keys not listed follow in lexical order. When HeaderOrder is
	// empty the session profile's order applies.
	Headers     map[string]string
	HeaderOrder []string

	Cookies []*http.Cookie
	Body    []byte

	// Query values are appended to the URL's query string. QueryStruct, if
	// set, is encoded with `url` struct tags and merged the same way.
	Query       url.Values
	QueryStruct any

	// Proxy overrides the session proxy for this request.
	// http, https, socks5, and socks5h schemes are supported.
	Proxy string

	// TimeoutSeconds bounds the whole call including every redirect hop.
	// Zero means the session default.
	TimeoutSeconds int

	// Auth, when set, writes its credential header unless the caller
	// already supplied one.
	Auth AuthMethod

	AllowRedirects     bool
	InsecureSkipVerify bool
}

// wireRequest is the resolved, ready-to-transmit form of a RequestSpec hop.
type wireRequest struct {
	method  string
	url     *url.URL
	host    string
	headers []headerPair
	body    []byte
}

// resolveRequestURL parses the target and folds in Query and QueryStruct.
func resolveRequestURL(spec *RequestSpec) (*url.URL, error) {
	if spec.URL == "" {
		return nil, fmt.Errorf("%w: empty url", ErrInvalidRequest)
	}
	u, err := url.Parse(spec.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: url %q: %v", ErrInvalidRequest, spec.URL, err)
	}
	switch u.Scheme {
	case "http", "https":
	default:
		return nil, fmt.Errorf("%w: scheme %q", ErrUnsupportedScheme, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: url %q has no host", ErrInvalidRequest, spec.URL)
	}

	if spec.Query != nil || spec.QueryStruct != nil {
		values := u.Query()
		for k, vs := range spec.Query {
			for _, v := range vs {
				values.Add(k, v)
			}
		}
		if spec.QueryStruct != nil {
			sv, err := query.Values(spec.QueryStruct)
			if err != nil {
				return nil, fmt.Errorf("%w: query struct: %v", ErrInvalidRequest, err)
			}
			for k, vs := range sv {
				for _, v := range vs {
					values.Add(k, v)
				}
			}
		}
		u.RawQuery = values.Encode()
	}
	return u, nil
}

// initialHeaders builds the mutable header map for a call. Cookies collapse
// into a single Cookie header; the profile's user agent fills in when the
// caller set none. The map survives across redirect hops so credential
// stripping on a cross-host hop sticks.
func initialHeaders(spec *RequestSpec, p *FingerprintProfile) map[string]string {
	headers := make(map[string]string, len(spec.Headers)+2)
	for k, v := range spec.Headers {
		headers[k] = v
	}
	if !hasHeader(headers, "user-agent") && p.UserAgent != "" {
		headers["user-agent"] = p.UserAgent
	}
	if len(spec.Cookies) > 0 && !hasHeader(headers, "cookie") {
		headers["cookie"] = cookieHeaderValue(spec.Cookies)
	}
	if spec.Auth != nil && !hasHeader(headers, "authorization") {
		spec.Auth.applyAuth(headers)
	}
	return headers
}

// newWireRequest assembles one hop from the call's current state.
func newWireRequest(method string, u *url.URL, headers map[string]string, order []string, body []byte) *wireRequest {
	host := u.Host
	if h := headerValue(headers, "host"); h != "" {
		host = h
	}
	return &wireRequest{
		method:  strings.ToUpper(method),
		url:     u,
		host:    host,
		headers: orderHeaders(headers, order),
		body:    body,
	}
}
