package mimic

import (
	"fmt"
	"sort"
	"sync"
)

// H2Setting is a single HTTP/2 SETTINGS parameter. The engine writes the
// SETTINGS frame parameters in slice order, so the order of a profile's
// H2Settings is part of the observable fingerprint.
type H2Setting struct {
	Name  string `json:"name" yaml:"name"`
	Value uint32 `json:"value" yaml:"value"`
}

// PriorityFrame describes one HTTP/2 PRIORITY frame sent ahead of the
// request stream.
type PriorityFrame struct {
	StreamID  uint32 `json:"streamID" yaml:"streamID"`
	Weight    uint8  `json:"weight" yaml:"weight"`
	StreamDep uint32 `json:"streamDep" yaml:"streamDep"`
	Exclusive bool   `json:"exclusive" yaml:"exclusive"`
}

// FingerprintProfile bundles every TLS and HTTP/2 parameter needed to
// reproduce a named client's observable fingerprint.
//
// Every slice field is ordered: the sequence is serialized verbatim into the
// corresponding protocol structure, and reordering changes the fingerprint.
// The registry's profiles are immutable; ResolveProfile hands out copies.
type FingerprintProfile struct {
	Identifier string `yaml:"identifier"`

	// TLS ClientHello shape. Optional fields carry omitempty so a profile
	// dumped to YAML and loaded back compares equal to the original.
	CipherSuites        []uint16 `yaml:"cipherSuites"`
	Extensions          []uint16 `yaml:"extensions"`
	Curves              []string `yaml:"curves,omitempty"`
	PointFormats        []uint16 `yaml:"pointFormats,omitempty"`
	SignatureAlgorithms []string `yaml:"signatureAlgorithms,omitempty"`
	Versions            []string `yaml:"versions,omitempty"`
	KeyShareCurves      []string `yaml:"keyShareCurves,omitempty"`
	CertCompression     string   `yaml:"certCompression,omitempty"`

	// HTTP/2 framing shape.
	H2Settings        []H2Setting     `yaml:"h2Settings,omitempty"`
	ConnectionFlow    uint32          `yaml:"connectionFlow,omitempty"`
	PseudoHeaderOrder []string        `yaml:"pseudoHeaderOrder,omitempty"`
	PriorityFrames    []PriorityFrame `yaml:"priorityFrames,omitempty"`

	// Regular header shape.
	HeaderOrder []string `yaml:"headerOrder,omitempty"`
	UserAgent   string   `yaml:"userAgent,omitempty"`
}

// Clone returns a deep copy of the profile.
func (p *FingerprintProfile) Clone() *FingerprintProfile {
	c := *p
	c.CipherSuites = append([]uint16(nil), p.CipherSuites...)
	c.Extensions = append([]uint16(nil), p.Extensions...)
	c.Curves = append([]string(nil), p.Curves...)
	c.PointFormats = append([]uint16(nil), p.PointFormats...)
	c.SignatureAlgorithms = append([]string(nil), p.SignatureAlgorithms...)
	c.Versions = append([]string(nil), p.Versions...)
	c.KeyShareCurves = append([]string(nil), p.KeyShareCurves...)
	c.H2Settings = append([]H2Setting(nil), p.H2Settings...)
	c.PseudoHeaderOrder = append([]string(nil), p.PseudoHeaderOrder...)
	c.PriorityFrames = append([]PriorityFrame(nil), p.PriorityFrames...)
	c.HeaderOrder = append([]string(nil), p.HeaderOrder...)
	return &c
}

// DefaultProfileIdentifier is used when a session names no client.
const DefaultProfileIdentifier = "chrome_120"

// extGREASE is the sentinel extension ID for a GREASE placeholder. JA3
// strings omit GREASE values, so builtin profiles name them explicitly.
const extGREASE uint16 = 2570

var (
	registryOnce sync.Once
	registry     map[string]*FingerprintProfile
)

// ResolveProfile returns the registered profile for identifier. The registry
// is built once and never mutated afterwards, so concurrent resolution is
// always safe.
func ResolveProfile(identifier string) (*FingerprintProfile, error) {
	registryOnce.Do(buildRegistry)
	p, ok := registry[identifier]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProfile, identifier)
	}
	// Hand out a copy so callers can never reach the registry's instance.
	return p.Clone(), nil
}

// Profiles returns the sorted identifiers of every registered profile.
func Profiles() []string {
	registryOnce.Do(buildRegistry)
	ids := make([]string, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func buildRegistry() {
	registry = make(map[string]*FingerprintProfile)
	for _, p := range builtinProfiles() {
		registry[p.Identifier] = p
	}
}

// Chrome-family HTTP/2 shape, shared by Chrome, Opera, and OkHttp-era
// profiles that parrot it.
func chromeH2() []H2Setting {
	return []H2Setting{
		{Name: "HEADER_TABLE_SIZE", Value: 65536},
		{Name: "ENABLE_PUSH", Value: 0},
		{Name: "MAX_CONCURRENT_STREAMS", Value: 1000},
		{Name: "INITIAL_WINDOW_SIZE", Value: 6291456},
		{Name: "MAX_HEADER_LIST_SIZE", Value: 262144},
	}
}

func chromeSignatureAlgorithms() []string {
	return []string{
		"ECDSAWithP256AndSHA256",
		"PSSWithSHA256",
		"PKCS1WithSHA256",
		"ECDSAWithP384AndSHA384",
		"PSSWithSHA384",
		"PKCS1WithSHA384",
		"PSSWithSHA512",
		"PKCS1WithSHA512",
	}
}

func chromeHeaderOrder() []string {
	return []string{
		"cache-control", "sec-ch-ua", "sec-ch-ua-mobile", "sec-ch-ua-platform",
		"upgrade-insecure-requests", "user-agent", "accept", "sec-fetch-site",
		"sec-fetch-mode", "sec-fetch-user", "sec-fetch-dest", "accept-encoding",
		"accept-language", "cookie", "priority",
	}
}

func chromeProfile(identifier, userAgent string, extensions []uint16) *FingerprintProfile {
	return &FingerprintProfile{
		Identifier: identifier,
		CipherSuites: []uint16{
			4865, 4866, 4867, 49195, 49199, 49196, 49200,
			52393, 52392, 49171, 49172, 156, 157, 47, 53,
		},
		Extensions:          extensions,
		Curves:              []string{"GREASE", "X25519", "P256", "P384"},
		PointFormats:        []uint16{0},
		SignatureAlgorithms: chromeSignatureAlgorithms(),
		Versions:            []string{"GREASE", "1.3", "1.2"},
		KeyShareCurves:      []string{"GREASE", "X25519"},
		CertCompression:     "brotli",
		H2Settings:          chromeH2(),
		ConnectionFlow:      15663105,
		PseudoHeaderOrder:   []string{":method", ":authority", ":scheme", ":path"},
		HeaderOrder:         chromeHeaderOrder(),
		UserAgent:           userAgent,
	}
}

func builtinProfiles() []*FingerprintProfile {
	// Chrome extension order; GREASE placeholders open and close the list,
	// padding stays last before the trailing GREASE.
	chromeExt := []uint16{
		extGREASE, 0, 23, 65281, 10, 11, 35, 16, 5, 13, 18, 51, 45, 43, 27,
		17513, extGREASE, 21,
	}
	chromeExt120 := []uint16{
		extGREASE, 0, 23, 65281, 10, 11, 35, 16, 5, 13, 18, 51, 45, 43, 27,
		17513, 65037, extGREASE, 21,
	}

	firefox := &FingerprintProfile{
		Identifier: "firefox_120",
		CipherSuites: []uint16{
			4865, 4867, 4866, 49195, 49199, 52393, 52392, 49196, 49200,
			49162, 49161, 49171, 49172, 156, 157, 47, 53,
		},
		Extensions:   []uint16{0, 23, 65281, 10, 11, 16, 5, 34, 51, 43, 13, 45, 28},
		Curves:       []string{"X25519", "P256", "P384", "P521", "FFDHE2048", "FFDHE3072"},
		PointFormats: []uint16{0},
		SignatureAlgorithms: []string{
			"ECDSAWithP256AndSHA256",
			"ECDSAWithP384AndSHA384",
			"ECDSAWithP521AndSHA512",
			"PSSWithSHA256",
			"PSSWithSHA384",
			"PSSWithSHA512",
			"PKCS1WithSHA256",
			"PKCS1WithSHA384",
			"PKCS1WithSHA512",
			"ECDSAWithSHA1",
			"PKCS1WithSHA1",
		},
		Versions:       []string{"1.3", "1.2"},
		KeyShareCurves: []string{"X25519", "P256"},
		H2Settings: []H2Setting{
			{Name: "HEADER_TABLE_SIZE", Value: 65536},
			{Name: "INITIAL_WINDOW_SIZE", Value: 131072},
			{Name: "MAX_FRAME_SIZE", Value: 16384},
		},
		ConnectionFlow:    12517377,
		PseudoHeaderOrder: []string{":method", ":path", ":authority", ":scheme"},
		PriorityFrames: []PriorityFrame{
			{StreamID: 3, Weight: 200, StreamDep: 0},
			{StreamID: 5, Weight: 100, StreamDep: 0},
			{StreamID: 7, Weight: 0, StreamDep: 0},
			{StreamID: 9, Weight: 0, StreamDep: 7},
			{StreamID: 11, Weight: 0, StreamDep: 3},
			{StreamID: 13, Weight: 240, StreamDep: 0},
		},
		HeaderOrder: []string{
			"user-agent", "accept", "accept-language", "accept-encoding",
			"referer", "cookie", "upgrade-insecure-requests",
			"sec-fetch-dest", "sec-fetch-mode", "sec-fetch-site", "sec-fetch-user",
		},
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:120.0) Gecko/20100101 Firefox/120.0",
	}

	firefox117 := firefox.Clone()
	firefox117.Identifier = "firefox_117"
	firefox117.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:117.0) Gecko/20100101 Firefox/117.0"

	safari := &FingerprintProfile{
		Identifier: "safari_16_0",
		CipherSuites: []uint16{
			4865, 4866, 4867, 49196, 49195, 52393, 49200, 49199, 52392,
			49162, 49161, 49171, 49172, 156, 157, 47, 53,
		},
		Extensions:   []uint16{extGREASE, 0, 23, 65281, 10, 11, 16, 5, 13, 18, 51, 45, 43, 27, extGREASE, 21},
		Curves:       []string{"GREASE", "X25519", "P256", "P384", "P521"},
		PointFormats: []uint16{0},
		SignatureAlgorithms: []string{
			"ECDSAWithP256AndSHA256",
			"PSSWithSHA256",
			"PKCS1WithSHA256",
			"ECDSAWithP384AndSHA384",
			"ECDSAWithSHA1",
			"PSSWithSHA384",
			"PKCS1WithSHA384",
			"PSSWithSHA512",
			"PKCS1WithSHA512",
			"PKCS1WithSHA1",
		},
		Versions:        []string{"GREASE", "1.3", "1.2", "1.1", "1.0"},
		KeyShareCurves:  []string{"GREASE", "X25519"},
		CertCompression: "zlib",
		H2Settings: []H2Setting{
			{Name: "HEADER_TABLE_SIZE", Value: 4096},
			{Name: "MAX_CONCURRENT_STREAMS", Value: 100},
			{Name: "INITIAL_WINDOW_SIZE", Value: 2097152},
			{Name: "MAX_FRAME_SIZE", Value: 16384},
			{Name: "MAX_HEADER_LIST_SIZE", Value: 8192},
		},
		ConnectionFlow:    10485760,
		PseudoHeaderOrder: []string{":method", ":scheme", ":path", ":authority"},
		HeaderOrder: []string{
			"user-agent", "accept", "accept-language", "accept-encoding", "cookie",
		},
		UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.0 Safari/605.1.15",
	}

	safariIOS := safari.Clone()
	safariIOS.Identifier = "safari_ios_16_0"
	safariIOS.UserAgent = "Mozilla/5.0 (iPhone; CPU iPhone OS 16_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.0 Mobile/15E148 Safari/604.1"

	okhttp := &FingerprintProfile{
		Identifier: "okhttp4_android_13",
		CipherSuites: []uint16{
			4865, 4866, 4867, 49195, 49199, 49196, 49200,
			52393, 52392, 49171, 49172, 156, 157, 47, 53,
		},
		Extensions:          []uint16{0, 23, 65281, 10, 11, 35, 16, 5, 13, 51, 45, 43, 21},
		Curves:              []string{"X25519", "P256", "P384"},
		PointFormats:        []uint16{0},
		SignatureAlgorithms: chromeSignatureAlgorithms(),
		Versions:            []string{"1.3", "1.2"},
		KeyShareCurves:      []string{"X25519"},
		H2Settings: []H2Setting{
			{Name: "HEADER_TABLE_SIZE", Value: 4096},
			{Name: "ENABLE_PUSH", Value: 0},
			{Name: "INITIAL_WINDOW_SIZE", Value: 16777216},
			{Name: "MAX_FRAME_SIZE", Value: 16384},
		},
		ConnectionFlow:    16711681,
		PseudoHeaderOrder: []string{":method", ":path", ":authority", ":scheme"},
		HeaderOrder:       []string{"user-agent", "accept-encoding", "cookie"},
		UserAgent:         "okhttp/4.10.0",
	}

	chrome120 := chromeProfile("chrome_120",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		chromeExt120)
	chrome117 := chromeProfile("chrome_117",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
		chromeExt)
	chrome112 := chromeProfile("chrome_112",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/112.0.0.0 Safari/537.36",
		chromeExt)
	chrome103 := chromeProfile("chrome_103",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/103.0.0.0 Safari/537.36",
		chromeExt)

	opera91 := chromeProfile("opera_91",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/105.0.0.0 Safari/537.36 OPR/91.0.4516.20",
		chromeExt)

	return []*FingerprintProfile{
		chrome103, chrome112, chrome117, chrome120,
		firefox117, firefox,
		safari, safariIOS,
		opera91, okhttp,
	}
}
