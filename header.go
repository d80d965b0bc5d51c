package mimic

import (
	"net/http"
	"sort"
	"strings"
)

// headerPair is a single header in transmit position. Order is significant:
// header sequence is part of the fingerprint surface.
type headerPair struct {
	name  string
	value string
}

// orderHeaders arranges a header map into the declared order. Matching is
// case-insensitive; headers absent from the order list follow in lexical
// order so the tail is deterministic.
func orderHeaders(headers map[string]string, order []string) []headerPair {
	lower := make(map[string]string, len(headers))
	for name := range headers {
		lower[strings.ToLower(name)] = name
	}

	out := make([]headerPair, 0, len(headers))
	seen := make(map[string]bool, len(headers))
	for _, want := range order {
		name, ok := lower[strings.ToLower(want)]
		if !ok || seen[name] {
			continue
		}
		out = append(out, headerPair{name: name, value: headers[name]})
		seen[name] = true
	}

	rest := make([]string, 0, len(headers))
	for name := range headers {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	for _, name := range rest {
		out = append(out, headerPair{name: name, value: headers[name]})
	}
	return out
}

// cookieHeaderValue joins cookies into a single Cookie header value the way
// browsers send them.
func cookieHeaderValue(cookies []*http.Cookie) string {
	var b strings.Builder
	for i, c := range cookies {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(c.Name)
		b.WriteByte('=')
		b.WriteString(c.Value)
	}
	return b.String()
}

// hasHeader reports whether the map carries the named header under any
// casing.
func hasHeader(headers map[string]string, name string) bool {
	for k := range headers {
		if strings.EqualFold(k, name) {
			return true
		}
	}
	return false
}

// headerValue returns the value for name under any casing.
func headerValue(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// deleteHeader removes every casing variant of name.
func deleteHeader(headers map[string]string, name string) {
	for k := range headers {
		if strings.EqualFold(k, name) {
			delete(headers, k)
		}
	}
}
