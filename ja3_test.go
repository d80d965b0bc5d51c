package mimic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chromeJA3 = "771,4865-4866-4867-49195-49199-49196-49200-52393-52392-49171-49172-156-157-47-53,0-23-65281-10-11-35-16-5-13-18-51-45-43-27-17513-21,29-23-24,0"

func TestParseJA3(t *testing.T) {
	t.Run("valid chrome string", func(t *testing.T) {
		spec, err := ParseJA3(chromeJA3)
		require.NoError(t, err)
		assert.Equal(t, uint16(771), spec.Version)
		assert.Len(t, spec.CipherSuites, 15)
		assert.Equal(t, uint16(4865), spec.CipherSuites[0])
		assert.Len(t, spec.Extensions, 16)
		assert.Equal(t, []uint16{29, 23, 24}, spec.EllipticCurves)
		assert.Equal(t, []uint8{0}, spec.EllipticCurvePoints)
	})

	t.Run("round trip", func(t *testing.T) {
		spec, err := ParseJA3(chromeJA3)
		require.NoError(t, err)
		assert.Equal(t, chromeJA3, spec.String())
	})

	t.Run("empty point formats", func(t *testing.T) {
		spec, err := ParseJA3("771,4865,0-43,29,")
		require.NoError(t, err)
		assert.Empty(t, spec.EllipticCurvePoints)
	})

	t.Run("wrong field count", func(t *testing.T) {
		_, err := ParseJA3("771,4865,0,29")
		assert.ErrorIs(t, err, ErrInvalidProfileField)
	})

	t.Run("non numeric cipher", func(t *testing.T) {
		_, err := ParseJA3("771,4865-abc,0,29,0")
		assert.ErrorIs(t, err, ErrInvalidProfileField)
	})

	t.Run("cipher out of range", func(t *testing.T) {
		_, err := ParseJA3("771,70000,0,29,0")
		assert.ErrorIs(t, err, ErrInvalidProfileField)
	})
}

func TestJA3Versions(t *testing.T) {
	cases := []struct {
		name string
		ja3  string
		want []string
	}{
		{"tls13 record version", "772,4865,0,29,0", []string{"1.3", "1.2"}},
		{"tls12 with supported versions ext", "771,4865,0-43,29,0", []string{"1.3", "1.2"}},
		{"tls12 without supported versions ext", "771,4865,0,29,0", []string{"1.2"}},
		{"tls11", "770,4865,0,29,0", []string{"1.1"}},
		{"tls10", "769,4865,0,29,0", []string{"1.0"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			spec, err := ParseJA3(tc.ja3)
			require.NoError(t, err)
			assert.Equal(t, tc.want, spec.versions())
		})
	}
}

func TestJA3ApplyTo(t *testing.T) {
	base, err := ResolveProfile("chrome_120")
	require.NoError(t, err)

	spec, err := ParseJA3("771,4865-4866,0-43-51,29-23,0")
	require.NoError(t, err)
	spec.applyTo(base)

	assert.Equal(t, []uint16{4865, 4866}, base.CipherSuites)
	assert.Equal(t, []uint16{0, 43, 51}, base.Extensions)
	assert.Equal(t, []string{"29", "23"}, base.Curves)
	assert.Equal(t, []string{"29"}, base.KeyShareCurves)
	assert.Equal(t, []string{"1.3", "1.2"}, base.Versions)

	// HTTP/2 shape is outside JA3's vocabulary.
	assert.NotEmpty(t, base.H2Settings)
	assert.Equal(t, uint32(15663105), base.ConnectionFlow)
}
