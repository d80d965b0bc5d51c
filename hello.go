package mimic

import (
	"fmt"
	"math/rand"
	"sort"
	"strconv"

	utls "github.com/refraction-networking/utls"
)

// Overrides carries the per-session values that take precedence over the
// named profile. A zero field means "use the profile's value"; a set field
// always wins, including over a JA3 string (JA3 is applied first).
type Overrides struct {
	JA3                 string
	H2Settings          map[string]uint32
	H2SettingsOrder     []string
	SignatureAlgorithms []string
	Versions            []string
	KeyShareCurves      []string
	CertCompression     string
	PseudoHeaderOrder   []string
	PriorityFrames      []PriorityFrame
	HeaderOrder         []string
	ConnectionFlow      uint32
}

// MergeProfile returns a new profile with every override applied over the
// base. The base profile is never mutated. Fails with ErrInvalidProfileField
// if any override value cannot be parsed into its typed representation.
func MergeProfile(base *FingerprintProfile, ov *Overrides) (*FingerprintProfile, error) {
	p := base.Clone()
	if ov == nil {
		return p, validateProfile(p)
	}

	if ov.JA3 != "" {
		spec, err := ParseJA3(ov.JA3)
		if err != nil {
			return nil, err
		}
		spec.applyTo(p)
	}
	if ov.H2Settings != nil {
		settings, err := orderedH2Settings(ov.H2Settings, ov.H2SettingsOrder)
		if err != nil {
			return nil, err
		}
		p.H2Settings = settings
	}
	if ov.SignatureAlgorithms != nil {
		p.SignatureAlgorithms = append([]string(nil), ov.SignatureAlgorithms...)
	}
	if ov.Versions != nil {
		p.Versions = append([]string(nil), ov.Versions...)
	}
	if ov.KeyShareCurves != nil {
		p.KeyShareCurves = append([]string(nil), ov.KeyShareCurves...)
	}
	if ov.CertCompression != "" {
		p.CertCompression = ov.CertCompression
	}
	if ov.PseudoHeaderOrder != nil {
		p.PseudoHeaderOrder = append([]string(nil), ov.PseudoHeaderOrder...)
	}
	if ov.PriorityFrames != nil {
		p.PriorityFrames = append([]PriorityFrame(nil), ov.PriorityFrames...)
	}
	if ov.HeaderOrder != nil {
		p.HeaderOrder = append([]string(nil), ov.HeaderOrder...)
	}
	if ov.ConnectionFlow != 0 {
		p.ConnectionFlow = ov.ConnectionFlow
	}
	return p, validateProfile(p)
}

// orderedH2Settings arranges a settings map into the declared order; names
// missing from the order list follow in lexical map-key order so the result
// is deterministic.
func orderedH2Settings(settings map[string]uint32, order []string) ([]H2Setting, error) {
	out := make([]H2Setting, 0, len(settings))
	seen := make(map[string]bool, len(settings))
	for _, name := range order {
		v, ok := settings[name]
		if !ok {
			continue
		}
		out = append(out, H2Setting{Name: name, Value: v})
		seen[name] = true
	}
	rest := make([]string, 0, len(settings))
	for name := range settings {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	for _, name := range rest {
		out = append(out, H2Setting{Name: name, Value: settings[name]})
	}
	for _, s := range out {
		if _, err := h2SettingID(s.Name); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// validateProfile parses every symbolic field once so a bad value fails at
// session creation instead of mid-request.
func validateProfile(p *FingerprintProfile) error {
	for _, c := range p.Curves {
		if _, err := parseCurve(c); err != nil {
			return err
		}
	}
	for _, c := range p.KeyShareCurves {
		if _, err := parseCurve(c); err != nil {
			return err
		}
	}
	for _, s := range p.SignatureAlgorithms {
		if _, err := parseSignatureScheme(s); err != nil {
			return err
		}
	}
	for _, v := range p.Versions {
		if _, err := parseVersion(v); err != nil {
			return err
		}
	}
	if _, err := parseCertCompression(p.CertCompression); err != nil {
		return err
	}
	for _, s := range p.H2Settings {
		if _, err := h2SettingID(s.Name); err != nil {
			return err
		}
	}
	if len(p.PseudoHeaderOrder) > 0 {
		seen := make(map[string]bool, 4)
		for _, ph := range p.PseudoHeaderOrder {
			switch ph {
			case ":method", ":authority", ":scheme", ":path":
			default:
				return fmt.Errorf("%w: pseudo header %q", ErrInvalidProfileField, ph)
			}
			if seen[ph] {
				return fmt.Errorf("%w: duplicate pseudo header %q", ErrInvalidProfileField, ph)
			}
			seen[ph] = true
		}
		// A partial order would drop pseudo headers from the HEADERS block.
		if len(seen) != 4 {
			return fmt.Errorf("%w: pseudo header order must list all of :method, :authority, :scheme and :path", ErrInvalidProfileField)
		}
	}
	return nil
}

type helloOptions struct {
	randomize      bool
	alpn           []string
	sessionTickets bool
}

// BuildClientHello produces a fresh utls ClientHelloSpec from the merged
// profile. The transform is pure: a new spec is built on every call, so
// per-connection state inside utls extensions is never shared.
func BuildClientHello(p *FingerprintProfile, randomize bool) (*utls.ClientHelloSpec, error) {
	return buildClientHelloSpec(p, helloOptions{
		randomize:      randomize,
		alpn:           []string{"h2", "http/1.1"},
		sessionTickets: true,
	})
}

func buildClientHelloSpec(p *FingerprintProfile, o helloOptions) (*utls.ClientHelloSpec, error) {
	minVer, maxVer, versions, err := parseVersions(p.Versions)
	if err != nil {
		return nil, err
	}

	exts, extIDs, err := buildExtensions(p, o, versions)
	if err != nil {
		return nil, err
	}
	if o.randomize {
		shuffleExtensions(extIDs, exts)
	}

	return &utls.ClientHelloSpec{
		CipherSuites:       append([]uint16(nil), p.CipherSuites...),
		CompressionMethods: []uint8{0},
		Extensions:         exts,
		TLSVersMin:         minVer,
		TLSVersMax:         maxVer,
	}, nil
}

// shuffleExtensions permutes the extension order with the process-local
// random source. GREASE placeholders, padding, and pre_shared_key keep their
// positions: browsers pin those, and pre_shared_key must stay last on the
// wire. The extension set itself is never changed.
func shuffleExtensions(ids []uint16, exts []utls.TLSExtension) {
	movable := make([]int, 0, len(exts))
	for i, id := range ids {
		switch id {
		case extGREASE, 21, 41:
			continue
		}
		movable = append(movable, i)
	}
	rand.Shuffle(len(movable), func(a, b int) {
		exts[movable[a]], exts[movable[b]] = exts[movable[b]], exts[movable[a]]
	})
}

// buildExtensions maps the profile's extension IDs onto utls extension
// values. The returned ID slice is parallel to the extension slice; session
// ticket extensions (35, 41) are dropped from both when tickets are off.
func buildExtensions(p *FingerprintProfile, o helloOptions, versions []uint16) ([]utls.TLSExtension, []uint16, error) {
	curves, err := parseCurves(p.Curves)
	if err != nil {
		return nil, nil, err
	}
	sigAlgs, err := parseSignatureSchemes(p.SignatureAlgorithms)
	if err != nil {
		return nil, nil, err
	}
	keyShares, err := buildKeyShares(p.KeyShareCurves)
	if err != nil {
		return nil, nil, err
	}
	points := pointFormats(p.PointFormats)

	exts := make([]utls.TLSExtension, 0, len(p.Extensions))
	ids := make([]uint16, 0, len(p.Extensions))
	for _, id := range p.Extensions {
		var ext utls.TLSExtension
		switch id {
		case extGREASE:
			ext = &utls.UtlsGREASEExtension{}
		case 0:
			ext = &utls.SNIExtension{}
		case 5:
			ext = &utls.StatusRequestExtension{}
		case 10:
			ext = &utls.SupportedCurvesExtension{Curves: curves}
		case 11:
			ext = &utls.SupportedPointsExtension{SupportedPoints: points}
		case 13:
			ext = &utls.SignatureAlgorithmsExtension{SupportedSignatureAlgorithms: sigAlgs}
		case 16:
			ext = &utls.ALPNExtension{AlpnProtocols: append([]string(nil), o.alpn...)}
		case 18:
			ext = &utls.SCTExtension{}
		case 21:
			ext = &utls.UtlsPaddingExtension{GetPaddingLen: utls.BoringPaddingStyle}
		case 23:
			ext = &utls.ExtendedMasterSecretExtension{}
		case 27:
			algo, err := parseCertCompression(p.CertCompression)
			if err != nil {
				return nil, nil, err
			}
			if algo == nil {
				// Extension declared without an algorithm; parrot Chrome's
				// brotli-only choice.
				algo = []utls.CertCompressionAlgo{utls.CertCompressionBrotli}
			}
			ext = &utls.UtlsCompressCertExtension{Algorithms: algo}
		case 28:
			ext = &utls.FakeRecordSizeLimitExtension{Limit: 0x4001}
		case 34:
			ext = &utls.DelegatedCredentialsExtension{SupportedSignatureAlgorithms: sigAlgs}
		case 35:
			if !o.sessionTickets {
				continue
			}
			ext = &utls.SessionTicketExtension{}
		case 41:
			if !o.sessionTickets {
				continue
			}
			ext = &utls.UtlsPreSharedKeyExtension{}
		case 43:
			ext = &utls.SupportedVersionsExtension{Versions: versions}
		case 45:
			ext = &utls.PSKKeyExchangeModesExtension{Modes: []uint8{utls.PskModeDHE}}
		case 51:
			ext = &utls.KeyShareExtension{KeyShares: keyShares}
		case 17513:
			ext = &utls.ApplicationSettingsExtension{SupportedProtocols: []string{"h2"}}
		case 65037:
			ext = utls.BoringGREASEECH()
		case 65281:
			ext = &utls.RenegotiationInfoExtension{Renegotiation: utls.RenegotiateOnceAsClient}
		default:
			ext = &utls.GenericExtension{Id: id}
		}
		exts = append(exts, ext)
		ids = append(ids, id)
	}
	return exts, ids, nil
}

// pointFormats narrows the profile's point format values to the wire's
// uint8 range; uncompressed (0) when the profile declares none.
func pointFormats(values []uint16) []uint8 {
	if len(values) == 0 {
		return []uint8{0}
	}
	out := make([]uint8, len(values))
	for i, v := range values {
		out[i] = uint8(v)
	}
	return out
}

func buildKeyShares(names []string) ([]utls.KeyShare, error) {
	if len(names) == 0 {
		names = []string{"X25519"}
	}
	shares := make([]utls.KeyShare, 0, len(names))
	for _, name := range names {
		curve, err := parseCurve(name)
		if err != nil {
			return nil, err
		}
		ks := utls.KeyShare{Group: curve}
		if curve == utls.GREASE_PLACEHOLDER {
			ks.Data = []byte{0}
		}
		shares = append(shares, ks)
	}
	return shares, nil
}

func parseCurves(names []string) ([]utls.CurveID, error) {
	curves := make([]utls.CurveID, 0, len(names))
	for _, name := range names {
		c, err := parseCurve(name)
		if err != nil {
			return nil, err
		}
		curves = append(curves, c)
	}
	return curves, nil
}

func parseCurve(name string) (utls.CurveID, error) {
	switch name {
	case "GREASE":
		return utls.GREASE_PLACEHOLDER, nil
	case "X25519":
		return utls.X25519, nil
	case "P256":
		return utls.CurveP256, nil
	case "P384":
		return utls.CurveP384, nil
	case "P521":
		return utls.CurveP521, nil
	case "X25519Kyber768":
		return utls.X25519Kyber768Draft00, nil
	case "FFDHE2048":
		return utls.CurveID(utls.FakeFFDHE2048), nil
	case "FFDHE3072":
		return utls.CurveID(utls.FakeFFDHE3072), nil
	}
	if n, err := strconv.ParseUint(name, 10, 16); err == nil {
		return utls.CurveID(n), nil
	}
	return 0, fmt.Errorf("%w: curve %q", ErrInvalidProfileField, name)
}

func parseSignatureSchemes(names []string) ([]utls.SignatureScheme, error) {
	out := make([]utls.SignatureScheme, 0, len(names))
	for _, name := range names {
		s, err := parseSignatureScheme(name)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func parseSignatureScheme(name string) (utls.SignatureScheme, error) {
	switch name {
	case "PKCS1WithSHA256":
		return utls.PKCS1WithSHA256, nil
	case "PKCS1WithSHA384":
		return utls.PKCS1WithSHA384, nil
	case "PKCS1WithSHA512":
		return utls.PKCS1WithSHA512, nil
	case "PSSWithSHA256":
		return utls.PSSWithSHA256, nil
	case "PSSWithSHA384":
		return utls.PSSWithSHA384, nil
	case "PSSWithSHA512":
		return utls.PSSWithSHA512, nil
	case "ECDSAWithP256AndSHA256":
		return utls.ECDSAWithP256AndSHA256, nil
	case "ECDSAWithP384AndSHA384":
		return utls.ECDSAWithP384AndSHA384, nil
	case "ECDSAWithP521AndSHA512":
		return utls.ECDSAWithP521AndSHA512, nil
	case "PKCS1WithSHA1":
		return utls.PKCS1WithSHA1, nil
	case "ECDSAWithSHA1":
		return utls.ECDSAWithSHA1, nil
	case "Ed25519":
		return utls.Ed25519, nil
	}
	return 0, fmt.Errorf("%w: signature algorithm %q", ErrInvalidProfileField, name)
}

func parseVersion(name string) (uint16, error) {
	switch name {
	case "":
		return 0, fmt.Errorf("%w: empty tls version", ErrInvalidProfileField)
	case "GREASE":
		return utls.GREASE_PLACEHOLDER, nil
	case "1.3":
		return utls.VersionTLS13, nil
	case "1.2":
		return utls.VersionTLS12, nil
	case "1.1":
		return utls.VersionTLS11, nil
	case "1.0":
		return utls.VersionTLS10, nil
	}
	return 0, fmt.Errorf("%w: tls version %q", ErrInvalidProfileField, name)
}

// parseVersions returns the min/max real versions plus the full ordered list
// (GREASE included) for the supported_versions extension.
func parseVersions(names []string) (minVer, maxVer uint16, all []uint16, err error) {
	if len(names) == 0 {
		names = []string{"1.3", "1.2"}
	}
	all = make([]uint16, 0, len(names))
	for _, name := range names {
		v, perr := parseVersion(name)
		if perr != nil {
			return 0, 0, nil, perr
		}
		all = append(all, v)
		if v == utls.GREASE_PLACEHOLDER {
			continue
		}
		if minVer == 0 || v < minVer {
			minVer = v
		}
		if v > maxVer {
			maxVer = v
		}
	}
	if maxVer == 0 {
		return 0, 0, nil, fmt.Errorf("%w: no usable tls version", ErrInvalidProfileField)
	}
	return minVer, maxVer, all, nil
}

func parseCertCompression(name string) ([]utls.CertCompressionAlgo, error) {
	switch name {
	case "":
		return nil, nil
	case "zlib":
		return []utls.CertCompressionAlgo{utls.CertCompressionZlib}, nil
	case "brotli":
		return []utls.CertCompressionAlgo{utls.CertCompressionBrotli}, nil
	case "zstd":
		return []utls.CertCompressionAlgo{utls.CertCompressionZstd}, nil
	}
	return nil, fmt.Errorf("%w: cert compression %q", ErrInvalidProfileField, name)
}
