package mimic

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	xproxy "golang.org/x/net/proxy"
)

// parseProxyURL validates a proxy URL. Bare host:port strings are accepted
// and treated as an HTTP proxy.
func parseProxyURL(raw string) (*url.URL, error) {
	if !hasScheme(raw) {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: proxy url %q: %v", ErrInvalidRequest, raw, err)
	}
	switch u.Scheme {
	case "http", "https", "socks5", "socks5h":
	default:
		return nil, fmt.Errorf("%w: proxy scheme %q", ErrInvalidRequest, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: proxy url %q has no host", ErrInvalidRequest, raw)
	}
	return u, nil
}

func hasScheme(raw string) bool {
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c == ':' {
			return i+2 < len(raw) && raw[i+1] == '/' && raw[i+2] == '/'
		}
		if !('a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9' || c == '+' || c == '-' || c == '.') {
			return false
		}
	}
	return false
}

// dialProxied opens a TCP tunnel to addr through the proxy. The returned
// conn is the raw tunnel; TLS to the origin is layered on top by the caller.
func dialProxied(ctx context.Context, proxyURL *url.URL, addr string) (net.Conn, error) {
	switch proxyURL.Scheme {
	case "socks5", "socks5h":
		return dialSOCKS5(ctx, proxyURL, addr)
	default:
		return dialConnect(ctx, proxyURL, addr)
	}
}

func dialSOCKS5(ctx context.Context, proxyURL *url.URL, addr string) (net.Conn, error) {
	var auth *xproxy.Auth
	if u := proxyURL.User; u != nil {
		pass, _ := u.Password()
		auth = &xproxy.Auth{User: u.Username(), Password: pass}
	}
	dialer, err := xproxy.SOCKS5("tcp", proxyURL.Host, auth, &net.Dialer{})
	if err != nil {
		return nil, fmt.Errorf("%w: socks5 proxy: %v", ErrConnectionFailure, err)
	}
	var conn net.Conn
	if cd, ok := dialer.(xproxy.ContextDialer); ok {
		conn, err = cd.DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.Dial("tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: socks5 proxy %s: %v", ErrConnectionFailure, proxyURL.Host, err)
	}
	return conn, nil
}

// dialConnect tunnels through an HTTP proxy with a CONNECT request. An
// https proxy gets a standard TLS hop first; the origin handshake on top of
// the tunnel is the one that carries the fingerprint.
func dialConnect(ctx context.Context, proxyURL *url.URL, addr string) (net.Conn, error) {
	d := &net.Dialer{}
	conn, err := d.DialContext(ctx, "tcp", proxyURL.Host)
	if err != nil {
		return nil, fmt.Errorf("%w: proxy %s: %v", ErrConnectionFailure, proxyURL.Host, err)
	}
	if proxyURL.Scheme == "https" {
		host, _, splitErr := net.SplitHostPort(proxyURL.Host)
		if splitErr != nil {
			host = proxyURL.Host
		}
		tlsConn := tls.Client(conn, &tls.Config{ServerName: host})
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			conn.Close()
			return nil, fmt.Errorf("%w: proxy %s tls: %v", ErrConnectionFailure, proxyURL.Host, err)
		}
		conn = tlsConn
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	req := "CONNECT " + addr + " HTTP/1.1\r\nHost: " + addr + "\r\n"
	if u := proxyURL.User; u != nil {
		pass, _ := u.Password()
		cred := base64.StdEncoding.EncodeToString([]byte(u.Username() + ":" + pass))
		req += "Proxy-Authorization: Basic " + cred + "\r\n"
	}
	req += "\r\n"
	if _, err := conn.Write([]byte(req)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: proxy connect write: %v", ErrConnectionFailure, err)
	}

	resp, err := http.ReadResponse(bufio.NewReader(conn), &http.Request{Method: http.MethodConnect})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: proxy connect read: %v", ErrConnectionFailure, err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		conn.Close()
		return nil, fmt.Errorf("%w: proxy connect refused: %s", ErrConnectionFailure, resp.Status)
	}
	conn.SetDeadline(time.Time{})
	return conn, nil
}
