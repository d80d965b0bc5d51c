package mimic

import "encoding/base64"

// AuthMethod injects credentials into a request's headers before transmit.
// Credentials set this way are stripped on cross-host redirects like any
// explicit Authorization header.
type AuthMethod interface {
	applyAuth(headers map[string]string)
}

// BasicAuth performs HTTP basic authentication.
type BasicAuth struct {
	Username string
	Password string
}

func (a BasicAuth) applyAuth(headers map[string]string) {
	cred := base64.StdEncoding.EncodeToString([]byte(a.Username + ":" + a.Password))
	headers["authorization"] = "Basic " + cred
}

// BearerAuth sends a bearer token.
type BearerAuth struct {
	Token string
}

func (a BearerAuth) applyAuth(headers map[string]string) {
	headers["authorization"] = "Bearer " + a.Token
}

// CustomAuth sets an arbitrary credential header, for APIs that use their
// own scheme (e.g. X-Api-Key).
type CustomAuth struct {
	Header string
	Value  string
}

func (a CustomAuth) applyAuth(headers map[string]string) {
	if a.Header == "" {
		return
	}
	headers[a.Header] = a.Value
}
