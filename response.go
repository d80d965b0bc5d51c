package mimic

import (
	"net/http"
	"net/url"

	"github.com/bytedance/sonic"
)

// wireResponse is what a protocol layer hands back from one exchange.
type wireResponse struct {
	status   int
	headers  http.Header
	body     []byte
	protocol string
}

// ResponseRecord is the normalized result of a request. StatusCode 0 means
// no HTTP response was obtained at all (dial, proxy, handshake, or timeout
// failure); real HTTP error statuses come back as ordinary records.
type ResponseRecord struct {
	StatusCode   int
	Body         []byte
	Headers      http.Header
	Cookies      []*http.Cookie
	Target       string
	UsedProtocol string
}

// IsSuccess reports whether the status code is in the 2xx range.
func (r *ResponseRecord) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode <= 299
}

// IsError reports whether the status code is in the 4xx or 5xx range.
func (r *ResponseRecord) IsError() bool {
	return r.StatusCode >= 400
}

// String returns the body as a string.
func (r *ResponseRecord) String() string {
	return string(r.Body)
}

// JSON unmarshals the body into v.
func (r *ResponseRecord) JSON(v any) error {
	return sonic.Unmarshal(r.Body, v)
}

// newResponseRecord converts a wire response for the given final URL.
// Set-Cookie headers are parsed with the standard library's cookie parser.
func newResponseRecord(res *wireResponse, target *url.URL) *ResponseRecord {
	return &ResponseRecord{
		StatusCode:   res.status,
		Body:         res.body,
		Headers:      res.headers,
		Cookies:      parseSetCookies(res.headers),
		Target:       target.String(),
		UsedProtocol: res.protocol,
	}
}

func parseSetCookies(headers http.Header) []*http.Cookie {
	lines := headers.Values("Set-Cookie")
	if len(lines) == 0 {
		return nil
	}
	resp := http.Response{Header: headers}
	return resp.Cookies()
}

// failedRecord is the status-0 record paired with a transport-level error.
func failedRecord(target string) *ResponseRecord {
	return &ResponseRecord{StatusCode: 0, Target: target}
}
