package mimic

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"

	utls "github.com/refraction-networking/utls"
)

var noDeadline time.Time

// dialConfig is everything a single connection needs. One connection serves
// exactly one request/response exchange and is then closed.
type dialConfig struct {
	profile            *FingerprintProfile
	proxyURL           *url.URL
	serverName         string
	addr               string
	insecureSkipVerify bool
	forceHTTP1         bool
	randomizeOrder     bool
	disableTickets     bool
	logger             Logger
}

// dialRaw opens the TCP leg, through the proxy when one is set.
func dialRaw(ctx context.Context, cfg *dialConfig) (net.Conn, error) {
	if cfg.proxyURL != nil {
		return dialProxied(ctx, cfg.proxyURL, cfg.addr)
	}
	d := &net.Dialer{}
	conn, err := d.DialContext(ctx, "tcp", cfg.addr)
	if err != nil {
		if IsTimeout(err) {
			return nil, fmt.Errorf("%w: dial %s: %v", ErrTimeout, cfg.addr, err)
		}
		return nil, fmt.Errorf("%w: dial %s: %v", ErrConnectionFailure, cfg.addr, err)
	}
	return conn, nil
}

// dialTLS performs the fingerprinted handshake and returns the connection
// plus the ALPN-negotiated protocol ("h2" or "http/1.1").
func dialTLS(ctx context.Context, cfg *dialConfig) (net.Conn, string, error) {
	raw, err := dialRaw(ctx, cfg)
	if err != nil {
		return nil, "", err
	}

	alpn := []string{"h2", "http/1.1"}
	if cfg.forceHTTP1 {
		alpn = []string{"http/1.1"}
	}
	spec, err := buildClientHelloSpec(cfg.profile, helloOptions{
		randomize:      cfg.randomizeOrder,
		alpn:           alpn,
		sessionTickets: !cfg.disableTickets,
	})
	if err != nil {
		raw.Close()
		return nil, "", err
	}

	tlsCfg := &utls.Config{
		ServerName:         cfg.serverName,
		InsecureSkipVerify: cfg.insecureSkipVerify,
		OmitEmptyPsk:       true,
		// Profiles without a pre_shared_key extension must not resume from
		// the ticket cache; utls refuses to inject the PSK into a spec that
		// never declared extension 41.
		PreferSkipResumptionOnNilExtension: true,
	}
	if !cfg.disableTickets {
		tlsCfg.ClientSessionCache = globalTicketCache
	}

	uconn := utls.UClient(raw, tlsCfg, utls.HelloCustom)
	if err := uconn.ApplyPreset(spec); err != nil {
		raw.Close()
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidProfileField, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		uconn.SetDeadline(deadline)
	}
	if err := uconn.HandshakeContext(ctx); err != nil {
		raw.Close()
		return nil, "", classifyHandshakeError(cfg.addr, err)
	}
	uconn.SetDeadline(noDeadline)

	state := uconn.ConnectionState()
	if err := checkNegotiated(cfg.profile, state.Version, state.CipherSuite); err != nil {
		uconn.Close()
		return nil, "", err
	}

	protocol := state.NegotiatedProtocol
	if protocol == "" {
		protocol = "http/1.1"
	}
	cfg.logger.Debugf("handshake with %s complete: version=%x cipher=%x alpn=%s",
		cfg.addr, state.Version, state.CipherSuite, protocol)
	return uconn, protocol, nil
}

// checkNegotiated rejects connections where the server picked a cipher or
// protocol version the ClientHello never offered. A well-behaved server
// cannot do this; seeing it means an interception box rewrote the hello and
// the fingerprint on the wire is no longer ours.
func checkNegotiated(p *FingerprintProfile, version, cipher uint16) error {
	offeredCipher := false
	for _, c := range p.CipherSuites {
		if c == cipher {
			offeredCipher = true
			break
		}
	}
	if !offeredCipher {
		return fmt.Errorf("%w: server selected unoffered cipher suite 0x%04x", ErrHandshakeMismatch, cipher)
	}

	offeredVersion := false
	for _, name := range p.Versions {
		v, err := parseVersion(name)
		if err != nil || v == utls.GREASE_PLACEHOLDER {
			continue
		}
		if v == version {
			offeredVersion = true
			break
		}
	}
	if len(p.Versions) == 0 {
		offeredVersion = version == utls.VersionTLS13 || version == utls.VersionTLS12
	}
	if !offeredVersion {
		return fmt.Errorf("%w: server selected unoffered protocol version 0x%04x", ErrHandshakeMismatch, version)
	}
	return nil
}

func classifyHandshakeError(addr string, err error) error {
	var (
		unknownAuthority x509.UnknownAuthorityError
		certInvalid      x509.CertificateInvalidError
		hostnameErr      x509.HostnameError
	)
	switch {
	case errors.As(err, &unknownAuthority), errors.As(err, &certInvalid), errors.As(err, &hostnameErr):
		return fmt.Errorf("%w: %s: %v", ErrCertVerification, addr, err)
	case IsTimeout(err):
		return fmt.Errorf("%w: handshake with %s: %v", ErrTimeout, addr, err)
	default:
		return fmt.Errorf("%w: %s: %v", ErrHandshakeFailure, addr, err)
	}
}
