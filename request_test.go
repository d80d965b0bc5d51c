package mimic

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveRequestURL(t *testing.T) {
	t.Run("plain url", func(t *testing.T) {
		u, err := resolveRequestURL(&RequestSpec{URL: "https://example.com/a?x=1"})
		require.NoError(t, err)
		assert.Equal(t, "https://example.com/a?x=1", u.String())
	})

	t.Run("query values merge with existing ones", func(t *testing.T) {
		u, err := resolveRequestURL(&RequestSpec{
			URL:   "https://example.com/search?q=go",
			Query: url.Values{"page": []string{"2"}},
		})
		require.NoError(t, err)
		assert.Equal(t, "2", u.Query().Get("page"))
		assert.Equal(t, "go", u.Query().Get("q"))
	})

	t.Run("query struct", func(t *testing.T) {
		params := struct {
			Page  int    `url:"page"`
			Order string `url:"order"`
			Empty string `url:"empty,omitempty"`
		}{Page: 3, Order: "desc"}

		u, err := resolveRequestURL(&RequestSpec{
			URL:         "https://example.com/list",
			QueryStruct: params,
		})
		require.NoError(t, err)
		assert.Equal(t, "3", u.Query().Get("page"))
		assert.Equal(t, "desc", u.Query().Get("order"))
		assert.False(t, u.Query().Has("empty"))
	})

	t.Run("rejects bad input", func(t *testing.T) {
		_, err := resolveRequestURL(&RequestSpec{})
		assert.ErrorIs(t, err, ErrInvalidRequest)

		_, err = resolveRequestURL(&RequestSpec{URL: "gopher://example.com"})
		assert.ErrorIs(t, err, ErrUnsupportedScheme)

		_, err = resolveRequestURL(&RequestSpec{URL: "https://"})
		assert.ErrorIs(t, err, ErrInvalidRequest)
	})
}

func TestInitialHeaders(t *testing.T) {
	p, err := ResolveProfile("chrome_120")
	require.NoError(t, err)

	t.Run("profile user agent fills in", func(t *testing.T) {
		headers := initialHeaders(&RequestSpec{}, p)
		assert.Equal(t, p.UserAgent, headers["user-agent"])
	})

	t.Run("caller user agent wins", func(t *testing.T) {
		headers := initialHeaders(&RequestSpec{
			Headers: map[string]string{"User-Agent": "custom/1.0"},
		}, p)
		assert.Equal(t, "custom/1.0", headers["User-Agent"])
		assert.NotContains(t, headers, "user-agent")
	})

	t.Run("cookies collapse into one header", func(t *testing.T) {
		headers := initialHeaders(&RequestSpec{
			Cookies: []*http.Cookie{{Name: "a", Value: "1"}, {Name: "b", Value: "2"}},
		}, p)
		assert.Equal(t, "a=1; b=2", headers["cookie"])
	})

	t.Run("basic auth", func(t *testing.T) {
		headers := initialHeaders(&RequestSpec{
			Auth: BasicAuth{Username: "user", Password: "secret"},
		}, p)
		assert.Equal(t, "Basic dXNlcjpzZWNyZXQ=", headers["authorization"])
	})

	t.Run("bearer auth", func(t *testing.T) {
		headers := initialHeaders(&RequestSpec{Auth: BearerAuth{Token: "tok"}}, p)
		assert.Equal(t, "Bearer tok", headers["authorization"])
	})

	t.Run("custom auth header", func(t *testing.T) {
		headers := initialHeaders(&RequestSpec{
			Auth: CustomAuth{Header: "X-Api-Key", Value: "k-123"},
		}, p)
		assert.Equal(t, "k-123", headers["X-Api-Key"])
	})

	t.Run("explicit authorization wins over auth method", func(t *testing.T) {
		headers := initialHeaders(&RequestSpec{
			Headers: map[string]string{"Authorization": "Bearer mine"},
			Auth:    BasicAuth{Username: "user", Password: "secret"},
		}, p)
		assert.Equal(t, "Bearer mine", headers["Authorization"])
		assert.NotContains(t, headers, "authorization")
	})
}

func TestNewWireRequest(t *testing.T) {
	u, err := url.Parse("https://example.com/path")
	require.NoError(t, err)

	t.Run("method is uppercased", func(t *testing.T) {
		wire := newWireRequest("post", u, map[string]string{}, nil, nil)
		assert.Equal(t, "POST", wire.method)
		assert.Equal(t, "example.com", wire.host)
	})

	t.Run("host header overrides authority", func(t *testing.T) {
		wire := newWireRequest("GET", u, map[string]string{"Host": "spoofed.example.org"}, nil, nil)
		assert.Equal(t, "spoofed.example.org", wire.host)
	})
}
