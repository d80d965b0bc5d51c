package mimic

import (
	"context"
	"errors"
	"net"
)

var (
	// ErrUnknownProfile is returned when a client identifier is not registered.
	ErrUnknownProfile = errors.New("unknown client profile")

	// ErrInvalidProfileField is returned when a profile or override field cannot
	// be parsed into its typed representation.
	ErrInvalidProfileField = errors.New("invalid profile field")

	// ErrHandshakeMismatch is returned when the server selects a cipher suite or
	// protocol version the client never offered.
	ErrHandshakeMismatch = errors.New("handshake parameter mismatch")

	// ErrHandshakeFailure is returned when the TLS handshake fails. Fatal, never
	// retried by the engine.
	ErrHandshakeFailure = errors.New("tls handshake failed")

	// ErrCertVerification is returned when the server certificate chain does not
	// verify. Suppressed when the request sets InsecureSkipVerify.
	ErrCertVerification = errors.New("certificate verification failed")

	// ErrProtocolViolation is returned on a malformed frame, status line, or
	// otherwise broken response. Fatal for the request.
	ErrProtocolViolation = errors.New("protocol violation")

	// ErrTooManyRedirects is returned when a redirect chain exceeds the cap.
	ErrTooManyRedirects = errors.New("too many redirects")

	// ErrTimeout is returned when the whole call exceeds its timeout budget.
	ErrTimeout = errors.New("request timed out")

	// ErrConnectionFailure is returned on DNS, TCP, or proxy level failures,
	// before any HTTP response was obtained. The response status is zero.
	ErrConnectionFailure = errors.New("connection failure")

	// ErrUnsupportedScheme is returned for target or redirect URLs outside
	// http/https.
	ErrUnsupportedScheme = errors.New("unsupported url scheme")

	// ErrInvalidRequest is returned when a request spec cannot be normalized,
	// e.g. an unparseable target URL.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrInternalPanic reports a recovered panic when CatchPanics is enabled.
	ErrInternalPanic = errors.New("internal panic")
)

// IsTimeout reports whether err is or wraps a timeout error.
// It checks for context.DeadlineExceeded and net.Error timeout errors.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// IsConnectionError reports whether err is a connection-level failure
// (DNS resolution, TCP connect, proxy dial).
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConnectionFailure) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
