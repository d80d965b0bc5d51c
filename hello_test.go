package mimic

import (
	"reflect"
	"testing"

	utls "github.com/refraction-networking/utls"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeProfile(t *testing.T) {
	base, err := ResolveProfile("chrome_120")
	require.NoError(t, err)

	t.Run("nil overrides keep profile values", func(t *testing.T) {
		merged, err := MergeProfile(base, nil)
		require.NoError(t, err)
		assert.Equal(t, base.CipherSuites, merged.CipherSuites)
		assert.Equal(t, base.H2Settings, merged.H2Settings)
		assert.Equal(t, base.ConnectionFlow, merged.ConnectionFlow)
	})

	t.Run("every override wins over the profile", func(t *testing.T) {
		ov := &Overrides{
			H2Settings:          map[string]uint32{"ENABLE_PUSH": 1, "HEADER_TABLE_SIZE": 4096},
			H2SettingsOrder:     []string{"ENABLE_PUSH", "HEADER_TABLE_SIZE"},
			SignatureAlgorithms: []string{"PSSWithSHA256"},
			Versions:            []string{"1.2"},
			KeyShareCurves:      []string{"P256"},
			CertCompression:     "zstd",
			PseudoHeaderOrder:   []string{":method", ":path", ":authority", ":scheme"},
			PriorityFrames:      []PriorityFrame{{StreamID: 3, Weight: 99}},
			HeaderOrder:         []string{"x-first", "x-second"},
			ConnectionFlow:      42,
		}
		merged, err := MergeProfile(base, ov)
		require.NoError(t, err)

		assert.Equal(t, []H2Setting{
			{Name: "ENABLE_PUSH", Value: 1},
			{Name: "HEADER_TABLE_SIZE", Value: 4096},
		}, merged.H2Settings)
		assert.Equal(t, []string{"PSSWithSHA256"}, merged.SignatureAlgorithms)
		assert.Equal(t, []string{"1.2"}, merged.Versions)
		assert.Equal(t, []string{"P256"}, merged.KeyShareCurves)
		assert.Equal(t, "zstd", merged.CertCompression)
		assert.Equal(t, []string{":method", ":path", ":authority", ":scheme"}, merged.PseudoHeaderOrder)
		assert.Equal(t, []PriorityFrame{{StreamID: 3, Weight: 99}}, merged.PriorityFrames)
		assert.Equal(t, []string{"x-first", "x-second"}, merged.HeaderOrder)
		assert.Equal(t, uint32(42), merged.ConnectionFlow)

		// Untouched fields keep the profile's values.
		assert.Equal(t, base.CipherSuites, merged.CipherSuites)
		assert.Equal(t, base.Extensions, merged.Extensions)
	})

	t.Run("explicit field wins over ja3", func(t *testing.T) {
		merged, err := MergeProfile(base, &Overrides{
			JA3:            "771,4865-4866,0-43-51,29,0",
			KeyShareCurves: []string{"P384"},
		})
		require.NoError(t, err)
		assert.Equal(t, []uint16{4865, 4866}, merged.CipherSuites)
		assert.Equal(t, []string{"P384"}, merged.KeyShareCurves)
	})

	t.Run("base is never mutated", func(t *testing.T) {
		before := base.Clone()
		_, err := MergeProfile(base, &Overrides{ConnectionFlow: 7, Versions: []string{"1.2"}})
		require.NoError(t, err)
		assert.Equal(t, before, base)
	})

	t.Run("unparseable values fail", func(t *testing.T) {
		cases := []*Overrides{
			{KeyShareCurves: []string{"P999"}},
			{SignatureAlgorithms: []string{"RSAWithMD5"}},
			{Versions: []string{"1.4"}},
			{CertCompression: "lz4"},
			{H2Settings: map[string]uint32{"NO_SUCH_SETTING": 1}},
			{PseudoHeaderOrder: []string{":verb"}},
			{PseudoHeaderOrder: []string{":method", ":path"}},
			{PseudoHeaderOrder: []string{":method", ":method", ":authority", ":scheme", ":path"}},
			{JA3: "not,a,ja3"},
		}
		for _, ov := range cases {
			_, err := MergeProfile(base, ov)
			assert.ErrorIs(t, err, ErrInvalidProfileField)
		}
	})
}

func TestBuildClientHello(t *testing.T) {
	t.Run("chrome extension list maps one to one", func(t *testing.T) {
		p, err := ResolveProfile("chrome_120")
		require.NoError(t, err)
		spec, err := BuildClientHello(p, false)
		require.NoError(t, err)

		require.Len(t, spec.Extensions, len(p.Extensions))
		assert.Equal(t, p.CipherSuites, spec.CipherSuites)
		assert.Equal(t, uint16(utls.VersionTLS12), spec.TLSVersMin)
		assert.Equal(t, uint16(utls.VersionTLS13), spec.TLSVersMax)

		assert.IsType(t, &utls.UtlsGREASEExtension{}, spec.Extensions[0])
		assert.IsType(t, &utls.SNIExtension{}, spec.Extensions[1])
		assert.IsType(t, &utls.UtlsPaddingExtension{}, spec.Extensions[len(spec.Extensions)-1])
	})

	t.Run("fresh spec per call", func(t *testing.T) {
		p, err := ResolveProfile("chrome_120")
		require.NoError(t, err)
		a, err := BuildClientHello(p, false)
		require.NoError(t, err)
		b, err := BuildClientHello(p, false)
		require.NoError(t, err)
		assert.NotSame(t, a.Extensions[1], b.Extensions[1])
	})

	t.Run("firefox record size limit and delegated credentials", func(t *testing.T) {
		p, err := ResolveProfile("firefox_120")
		require.NoError(t, err)
		spec, err := BuildClientHello(p, false)
		require.NoError(t, err)

		var sawLimit, sawDelegated bool
		for _, e := range spec.Extensions {
			switch e.(type) {
			case *utls.FakeRecordSizeLimitExtension:
				sawLimit = true
			case *utls.DelegatedCredentialsExtension:
				sawDelegated = true
			}
		}
		assert.True(t, sawLimit)
		assert.True(t, sawDelegated)
	})

	t.Run("firefox ffdhe groups parse into the curve list", func(t *testing.T) {
		p, err := ResolveProfile("firefox_120")
		require.NoError(t, err)
		spec, err := BuildClientHello(p, false)
		require.NoError(t, err)

		for _, e := range spec.Extensions {
			if curves, ok := e.(*utls.SupportedCurvesExtension); ok {
				assert.Contains(t, curves.Curves, utls.CurveID(utls.FakeFFDHE2048))
				assert.Contains(t, curves.Curves, utls.CurveID(utls.FakeFFDHE3072))
				return
			}
		}
		t.Fatal("no supported curves extension built")
	})

	t.Run("unknown extension id becomes generic", func(t *testing.T) {
		p, err := ResolveProfile("chrome_120")
		require.NoError(t, err)
		p.Extensions = []uint16{0, 43, 62222}
		spec, err := BuildClientHello(p, false)
		require.NoError(t, err)
		assert.IsType(t, &utls.GenericExtension{}, spec.Extensions[2])
	})
}

func TestShuffleExtensions(t *testing.T) {
	p, err := ResolveProfile("chrome_120")
	require.NoError(t, err)

	plain, err := BuildClientHello(p, false)
	require.NoError(t, err)

	greaseHead := 0
	greaseTail := len(p.Extensions) - 2
	padding := len(p.Extensions) - 1

	for i := 0; i < 25; i++ {
		spec, err := BuildClientHello(p, true)
		require.NoError(t, err)

		// Same set of extensions, pinned entries in place.
		require.Len(t, spec.Extensions, len(plain.Extensions))
		assert.Equal(t, typeSet(plain.Extensions), typeSet(spec.Extensions))
		assert.IsType(t, &utls.UtlsGREASEExtension{}, spec.Extensions[greaseHead])
		assert.IsType(t, &utls.UtlsGREASEExtension{}, spec.Extensions[greaseTail])
		assert.IsType(t, &utls.UtlsPaddingExtension{}, spec.Extensions[padding])

		// Cipher and curve order are never permuted by the flag.
		assert.Equal(t, p.CipherSuites, spec.CipherSuites)
		for _, e := range spec.Extensions {
			if curves, ok := e.(*utls.SupportedCurvesExtension); ok {
				assert.Equal(t, []utls.CurveID{
					utls.GREASE_PLACEHOLDER, utls.X25519, utls.CurveP256, utls.CurveP384,
				}, curves.Curves)
			}
		}
	}
}

func typeSet(exts []utls.TLSExtension) map[string]int {
	set := make(map[string]int, len(exts))
	for _, e := range exts {
		set[reflect.TypeOf(e).String()]++
	}
	return set
}
