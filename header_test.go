package mimic

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderHeaders(t *testing.T) {
	headers := map[string]string{
		"Accept":          "*/*",
		"User-Agent":      "test-agent",
		"X-Custom":        "1",
		"Accept-Encoding": "gzip",
	}

	t.Run("declared order first, lexical tail", func(t *testing.T) {
		got := orderHeaders(headers, []string{"user-agent", "accept"})
		assert.Equal(t, []headerPair{
			{name: "User-Agent", value: "test-agent"},
			{name: "Accept", value: "*/*"},
			{name: "Accept-Encoding", value: "gzip"},
			{name: "X-Custom", value: "1"},
		}, got)
	})

	t.Run("empty order is fully lexical", func(t *testing.T) {
		got := orderHeaders(headers, nil)
		assert.Equal(t, []headerPair{
			{name: "Accept", value: "*/*"},
			{name: "Accept-Encoding", value: "gzip"},
			{name: "User-Agent", value: "test-agent"},
			{name: "X-Custom", value: "1"},
		}, got)
	})

	t.Run("order entries without a header are skipped", func(t *testing.T) {
		got := orderHeaders(map[string]string{"b": "2"}, []string{"a", "b"})
		assert.Equal(t, []headerPair{{name: "b", value: "2"}}, got)
	})
}

func TestCookieHeaderValue(t *testing.T) {
	cookies := []*http.Cookie{
		{Name: "session", Value: "abc"},
		{Name: "theme", Value: "dark"},
	}
	assert.Equal(t, "session=abc; theme=dark", cookieHeaderValue(cookies))
	assert.Equal(t, "", cookieHeaderValue(nil))
}

func TestHeaderMapHelpers(t *testing.T) {
	headers := map[string]string{"Content-Type": "text/plain", "cookie": "a=1"}

	assert.True(t, hasHeader(headers, "content-type"))
	assert.False(t, hasHeader(headers, "authorization"))
	assert.Equal(t, "a=1", headerValue(headers, "Cookie"))
	assert.Equal(t, "", headerValue(headers, "Accept"))

	deleteHeader(headers, "CONTENT-TYPE")
	assert.NotContains(t, headers, "Content-Type")
	assert.Contains(t, headers, "cookie")
}
