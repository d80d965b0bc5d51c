package mimic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveProfile(t *testing.T) {
	t.Run("every registered profile is complete", func(t *testing.T) {
		ids := Profiles()
		require.NotEmpty(t, ids)
		for _, id := range ids {
			p, err := ResolveProfile(id)
			require.NoError(t, err, id)
			assert.Equal(t, id, p.Identifier)
			assert.NotEmpty(t, p.CipherSuites, id)
			assert.NotEmpty(t, p.Extensions, id)
			assert.NotEmpty(t, p.Curves, id)
			assert.NotEmpty(t, p.Versions, id)
			assert.NotEmpty(t, p.H2Settings, id)
			assert.NoError(t, validateProfile(p), id)
		}
	})

	t.Run("default identifier resolves", func(t *testing.T) {
		p, err := ResolveProfile(DefaultProfileIdentifier)
		require.NoError(t, err)
		assert.Equal(t, DefaultProfileIdentifier, p.Identifier)
	})

	t.Run("unknown identifier", func(t *testing.T) {
		_, err := ResolveProfile("netscape_4")
		assert.ErrorIs(t, err, ErrUnknownProfile)
	})

	t.Run("resolved profiles are independent copies", func(t *testing.T) {
		a, err := ResolveProfile("chrome_120")
		require.NoError(t, err)
		b, err := ResolveProfile("chrome_120")
		require.NoError(t, err)

		a.CipherSuites[0] = 9999
		a.H2Settings[0].Value = 1
		assert.NotEqual(t, a.CipherSuites[0], b.CipherSuites[0])
		assert.NotEqual(t, a.H2Settings[0].Value, b.H2Settings[0].Value)
	})
}

func TestProfileClone(t *testing.T) {
	p, err := ResolveProfile("firefox_120")
	require.NoError(t, err)

	c := p.Clone()
	c.Extensions[0] = 12345
	c.PriorityFrames[0].Weight = 7
	c.HeaderOrder[0] = "x-other"

	assert.NotEqual(t, c.Extensions[0], p.Extensions[0])
	assert.NotEqual(t, c.PriorityFrames[0].Weight, p.PriorityFrames[0].Weight)
	assert.NotEqual(t, c.HeaderOrder[0], p.HeaderOrder[0])
}

func TestProfilesSorted(t *testing.T) {
	ids := Profiles()
	for i := 1; i < len(ids); i++ {
		assert.Less(t, ids[i-1], ids[i])
	}
	assert.Contains(t, ids, "chrome_120")
	assert.Contains(t, ids, "firefox_120")
	assert.Contains(t, ids, "safari_16_0")
}
