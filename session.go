package mimic

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"

	"golang.org/x/exp/slog"
)

// defaultTimeout bounds a call when neither the session nor the request
// sets one.
const defaultTimeout = 30 * time.Second

// SessionConfig fixes a session's fingerprint and defaults. It is read at
// NewSession and never again; changing fingerprint shape means creating a
// new session.
type SessionConfig struct {
	// ClientIdentifier names a registry profile. Empty selects
	// DefaultProfileIdentifier.
	ClientIdentifier string

	// Profile supplies a complete fingerprint directly (e.g. parsed with
	// ProfileFromYAML) and takes precedence over ClientIdentifier.
	Profile *FingerprintProfile

	// JA3 overrides the TLS shape of the named profile. The remaining
	// fields override individual profile values and win over JA3.
	JA3                          string
	H2Settings                   map[string]uint32
	H2SettingsOrder              []string
	SupportedSignatureAlgorithms []string
	SupportedVersions            []string
	KeyShareCurves               []string
	CertCompressionAlgo          string
	PseudoHeaderOrder            []string
	PriorityFrames               []PriorityFrame
	HeaderOrder                  []string
	ConnectionFlow               uint32

	RandomTLSExtensionOrder bool
	ForceHTTP1              bool
	Debug                   bool
	CatchPanics             bool

	// Proxy is the session default; RequestSpec.Proxy overrides it.
	Proxy string

	// DisableSessionTickets opts this session out of the shared ticket
	// cache and drops the session-ticket extensions from the hello.
	DisableSessionTickets bool

	// Timeout is the session default for the whole call.
	Timeout time.Duration

	Logger Logger
}

// Session issues fingerprinted requests. Safe for concurrent use: the
// merged profile is immutable and every call opens its own connection.
type Session struct {
	profile  *FingerprintProfile
	config   SessionConfig
	proxyURL *url.URL
	logger   Logger
}

// NewSession resolves and merges the fingerprint configuration once.
// Profile and override errors surface here, not at request time.
func NewSession(config SessionConfig) (*Session, error) {
	base := config.Profile
	if base == nil {
		id := config.ClientIdentifier
		if id == "" {
			id = DefaultProfileIdentifier
		}
		var err error
		base, err = ResolveProfile(id)
		if err != nil {
			return nil, err
		}
	}

	profile, err := MergeProfile(base, &Overrides{
		JA3:                 config.JA3,
		H2Settings:          config.H2Settings,
		H2SettingsOrder:     config.H2SettingsOrder,
		SignatureAlgorithms: config.SupportedSignatureAlgorithms,
		Versions:            config.SupportedVersions,
		KeyShareCurves:      config.KeyShareCurves,
		CertCompression:     config.CertCompressionAlgo,
		PseudoHeaderOrder:   config.PseudoHeaderOrder,
		PriorityFrames:      config.PriorityFrames,
		HeaderOrder:         config.HeaderOrder,
		ConnectionFlow:      config.ConnectionFlow,
	})
	if err != nil {
		return nil, err
	}

	var proxyURL *url.URL
	if config.Proxy != "" {
		proxyURL, err = parseProxyURL(config.Proxy)
		if err != nil {
			return nil, err
		}
	}

	logger := config.Logger
	if logger == nil {
		if config.Debug {
			logger = NewSlogLogger(os.Stderr, slog.LevelDebug)
		} else {
			logger = DefaultLogger
		}
	}

	return &Session{
		profile:  profile,
		config:   config,
		proxyURL: proxyURL,
		logger:   logger,
	}, nil
}

// Profile returns a copy of the session's merged fingerprint profile.
func (s *Session) Profile() *FingerprintProfile {
	return s.profile.Clone()
}

// Get issues a GET request.
func (s *Session) Get(ctx context.Context, spec *RequestSpec) (*ResponseRecord, error) {
	return s.Do(ctx, http.MethodGet, spec)
}

// Post issues a POST request.
func (s *Session) Post(ctx context.Context, spec *RequestSpec) (*ResponseRecord, error) {
	return s.Do(ctx, http.MethodPost, spec)
}

// Put issues a PUT request.
func (s *Session) Put(ctx context.Context, spec *RequestSpec) (*ResponseRecord, error) {
	return s.Do(ctx, http.MethodPut, spec)
}

// Patch issues a PATCH request.
func (s *Session) Patch(ctx context.Context, spec *RequestSpec) (*ResponseRecord, error) {
	return s.Do(ctx, http.MethodPatch, spec)
}

// Delete issues a DELETE request.
func (s *Session) Delete(ctx context.Context, spec *RequestSpec) (*ResponseRecord, error) {
	return s.Do(ctx, http.MethodDelete, spec)
}

// Head issues a HEAD request.
func (s *Session) Head(ctx context.Context, spec *RequestSpec) (*ResponseRecord, error) {
	return s.Do(ctx, http.MethodHead, spec)
}

// Options issues an OPTIONS request.
func (s *Session) Options(ctx context.Context, spec *RequestSpec) (*ResponseRecord, error) {
	return s.Do(ctx, http.MethodOptions, spec)
}

// Do issues a request with an explicit method. A transport-level failure
// returns a status-0 record alongside the error; HTTP error statuses are
// ordinary records with a nil error.
func (s *Session) Do(ctx context.Context, method string, spec *RequestSpec) (rec *ResponseRecord, err error) {
	if s.config.CatchPanics {
		target := ""
		if spec != nil {
			target = spec.URL
		}
		defer func() {
			if r := recover(); r != nil {
				s.logger.Errorf("recovered panic during %s %s: %v", method, target, r)
				rec = failedRecord(target)
				err = fmt.Errorf("%w: %v", ErrInternalPanic, r)
			}
		}()
	}
	return s.do(ctx, method, spec)
}

func (s *Session) do(ctx context.Context, method string, spec *RequestSpec) (*ResponseRecord, error) {
	u, err := resolveRequestURL(spec)
	if err != nil {
		return failedRecord(spec.URL), err
	}

	timeout := s.config.Timeout
	if spec.TimeoutSeconds > 0 {
		timeout = time.Duration(spec.TimeoutSeconds) * time.Second
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	// One budget for the whole call; redirect hops do not reset it.
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	proxyURL := s.proxyURL
	if spec.Proxy != "" {
		proxyURL, err = parseProxyURL(spec.Proxy)
		if err != nil {
			return failedRecord(u.String()), err
		}
	}

	headers := initialHeaders(spec, s.profile)
	order := spec.HeaderOrder
	if len(order) == 0 {
		order = s.profile.HeaderOrder
	}
	body := spec.Body

	for hop := 0; ; hop++ {
		wire := newWireRequest(method, u, headers, order, body)
		res, err := s.exchange(ctx, u, proxyURL, spec.InsecureSkipVerify, wire)
		if err != nil {
			return failedRecord(u.String()), err
		}
		if !spec.AllowRedirects || !isRedirect(res.status) {
			return newResponseRecord(res, u), nil
		}
		if hop+1 >= maxRedirects {
			return failedRecord(u.String()), fmt.Errorf("%w: stopped after %d hops", ErrTooManyRedirects, maxRedirects)
		}

		next, err := redirectTarget(u, res.headers)
		if err != nil {
			return failedRecord(u.String()), err
		}
		var dropBody bool
		method, dropBody = redirectMethod(method, res.status)
		if dropBody {
			body = nil
			deleteHeader(headers, "content-type")
			deleteHeader(headers, "content-length")
		}
		if next.Host != u.Host {
			stripSensitiveHeaders(headers)
		}
		s.logger.Debugf("following %d redirect to %s", res.status, next)
		u = next
	}
}

// exchange runs one hop on a fresh connection.
func (s *Session) exchange(ctx context.Context, u *url.URL, proxyURL *url.URL, insecure bool, wire *wireRequest) (*wireResponse, error) {
	cfg := &dialConfig{
		profile:            s.profile,
		proxyURL:           proxyURL,
		serverName:         u.Hostname(),
		addr:               hostPort(u),
		insecureSkipVerify: insecure,
		forceHTTP1:         s.config.ForceHTTP1,
		randomizeOrder:     s.config.RandomTLSExtensionOrder,
		disableTickets:     s.config.DisableSessionTickets,
		logger:             s.logger,
	}

	if u.Scheme == "http" {
		conn, err := dialRaw(ctx, cfg)
		if err != nil {
			return nil, err
		}
		defer conn.Close()
		return roundTripHTTP1(ctx, conn, wire)
	}

	conn, protocol, err := dialTLS(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	if protocol == "h2" {
		return roundTripHTTP2(ctx, conn, s.profile, wire, s.logger)
	}
	return roundTripHTTP1(ctx, conn, wire)
}

func hostPort(u *url.URL) string {
	if u.Port() != "" {
		return u.Host
	}
	if u.Scheme == "http" {
		return net.JoinHostPort(u.Hostname(), "80")
	}
	return net.JoinHostPort(u.Hostname(), "443")
}
