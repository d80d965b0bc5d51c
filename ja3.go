package mimic

import (
	"fmt"
	"strconv"
	"strings"
)

// JA3Spec is the decoded form of a JA3 fingerprint string:
// version,ciphers,extensions,curves,pointFormats.
type JA3Spec struct {
	Version             uint16
	CipherSuites        []uint16
	Extensions          []uint16
	EllipticCurves      []uint16
	EllipticCurvePoints []uint8
}

// ParseJA3 parses a JA3 string into its typed representation.
func ParseJA3(ja3 string) (*JA3Spec, error) {
	parts := strings.Split(ja3, ",")
	if len(parts) != 5 {
		return nil, fmt.Errorf("%w: ja3 string needs 5 comma-separated fields, got %d", ErrInvalidProfileField, len(parts))
	}

	version, err := strconv.ParseUint(parts[0], 10, 16)
	if err != nil {
		return nil, fmt.Errorf("%w: ja3 version %q", ErrInvalidProfileField, parts[0])
	}

	ciphers, err := parseUint16List(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: ja3 ciphers: %v", ErrInvalidProfileField, err)
	}
	extensions, err := parseUint16List(parts[2])
	if err != nil {
		return nil, fmt.Errorf("%w: ja3 extensions: %v", ErrInvalidProfileField, err)
	}
	curves, err := parseUint16List(parts[3])
	if err != nil {
		return nil, fmt.Errorf("%w: ja3 curves: %v", ErrInvalidProfileField, err)
	}

	var points []uint8
	for _, p := range splitDash(parts[4]) {
		point, err := strconv.ParseUint(p, 10, 8)
		if err != nil {
			return nil, fmt.Errorf("%w: ja3 point format %q", ErrInvalidProfileField, p)
		}
		points = append(points, uint8(point))
	}

	return &JA3Spec{
		Version:             uint16(version),
		CipherSuites:        ciphers,
		Extensions:          extensions,
		EllipticCurves:      curves,
		EllipticCurvePoints: points,
	}, nil
}

// String serializes back into JA3 string form.
func (s *JA3Spec) String() string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(int(s.Version)))
	b.WriteByte(',')
	b.WriteString(joinUint16(s.CipherSuites))
	b.WriteByte(',')
	b.WriteString(joinUint16(s.Extensions))
	b.WriteByte(',')
	b.WriteString(joinUint16(s.EllipticCurves))
	b.WriteByte(',')
	for i, p := range s.EllipticCurvePoints {
		if i > 0 {
			b.WriteByte('-')
		}
		b.WriteString(strconv.Itoa(int(p)))
	}
	return b.String()
}

// applyTo overrides the TLS-shape fields of p with the JA3 values. HTTP/2
// fields are untouched; JA3 does not describe them.
func (s *JA3Spec) applyTo(p *FingerprintProfile) {
	p.CipherSuites = append([]uint16(nil), s.CipherSuites...)
	p.Extensions = append([]uint16(nil), s.Extensions...)
	curves := make([]string, len(s.EllipticCurves))
	for i, c := range s.EllipticCurves {
		curves[i] = strconv.Itoa(int(c))
	}
	p.Curves = curves
	p.KeyShareCurves = nil
	for _, c := range s.EllipticCurves {
		// Key shares only for curves we can generate on the fly.
		if c == 29 || c == 23 {
			p.KeyShareCurves = append(p.KeyShareCurves, strconv.Itoa(int(c)))
			break
		}
	}
	p.PointFormats = make([]uint16, len(s.EllipticCurvePoints))
	for i, pf := range s.EllipticCurvePoints {
		p.PointFormats[i] = uint16(pf)
	}
	p.Versions = s.versions()
}

// versions derives the supported-versions list. JA3 carries only the legacy
// record version; the presence of the supported_versions extension (43) is
// what actually signals TLS 1.3.
func (s *JA3Spec) versions() []string {
	switch {
	case s.Version >= 772:
		return []string{"1.3", "1.2"}
	case s.Version == 771:
		for _, e := range s.Extensions {
			if e == 43 {
				return []string{"1.3", "1.2"}
			}
		}
		return []string{"1.2"}
	case s.Version == 770:
		return []string{"1.1"}
	default:
		return []string{"1.0"}
	}
}

func splitDash(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "-")
}

func parseUint16List(s string) ([]uint16, error) {
	parts := splitDash(s)
	out := make([]uint16, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseUint(p, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("invalid value %q", p)
		}
		out = append(out, uint16(n))
	}
	return out, nil
}

func joinUint16(vals []uint16) string {
	var b strings.Builder
	for i, v := range vals {
		if i > 0 {
			b.WriteByte('-')
		}
		b.WriteString(strconv.Itoa(int(v)))
	}
	return b.String()
}
