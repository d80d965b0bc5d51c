package mimic

import (
	"context"
	"net/http"

	"github.com/bytedance/sonic"
)

// requestMessage is the JSON request shape for callers that talk to the
// engine through an encoded message instead of the typed API. Session
// options and request options ride in one flat object.
// allowRedirects and insecureSkipVerify are distinct keys and are never
// collapsed into one another.
type requestMessage struct {
	ClientIdentifier             string            `json:"clientIdentifier"`
	JA3String                    string            `json:"ja3String"`
	H2Settings                   map[string]uint32 `json:"h2Settings"`
	H2SettingsOrder              []string          `json:"h2SettingsOrder"`
	SupportedSignatureAlgorithms []string          `json:"supportedSignatureAlgorithms"`
	SupportedVersions            []string          `json:"supportedVersions"`
	KeyShareCurves               []string          `json:"keyShareCurves"`
	CertCompressionAlgo          string            `json:"certCompressionAlgo"`
	PseudoHeaderOrder            []string          `json:"pseudoHeaderOrder"`
	PriorityFrames               []PriorityFrame   `json:"priorityFrames"`
	ConnectionFlow               uint32            `json:"connectionFlow"`
	RandomTLSExtensionOrder      bool              `json:"randomTlsExtensionOrder"`
	ForceHTTP1                   bool              `json:"forceHttp1"`
	Debug                        bool              `json:"debug"`
	CatchPanics                  bool              `json:"catchPanics"`

	RequestURL         string            `json:"requestUrl"`
	RequestMethod      string            `json:"requestMethod"`
	RequestBody        string            `json:"requestBody"`
	RequestCookies     []cookieMessage   `json:"requestCookies"`
	Headers            map[string]string `json:"headers"`
	HeaderOrder        []string          `json:"headerOrder"`
	ProxyURL           string            `json:"proxyUrl"`
	TimeoutSeconds     int               `json:"timeoutSeconds"`
	AllowRedirects     bool              `json:"allowRedirects"`
	InsecureSkipVerify bool              `json:"insecureSkipVerify"`
}

type cookieMessage struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type responseMessage struct {
	Status       int                 `json:"status"`
	Body         string              `json:"body"`
	Headers      map[string][]string `json:"headers"`
	Cookies      map[string]string   `json:"cookies"`
	Target       string              `json:"target"`
	UsedProtocol string              `json:"usedProtocol"`
	Error        string              `json:"error,omitempty"`
}

// HandleRequest executes one JSON-encoded request and returns the
// JSON-encoded response. Transport failures come back as status 0 with the
// error field set; the function itself never fails.
func HandleRequest(ctx context.Context, payload []byte) []byte {
	var msg requestMessage
	if err := sonic.Unmarshal(payload, &msg); err != nil {
		return marshalResponse(&responseMessage{Error: "invalid request message: " + err.Error()})
	}

	session, err := NewSession(SessionConfig{
		ClientIdentifier:             msg.ClientIdentifier,
		JA3:                          msg.JA3String,
		H2Settings:                   msg.H2Settings,
		H2SettingsOrder:              msg.H2SettingsOrder,
		SupportedSignatureAlgorithms: msg.SupportedSignatureAlgorithms,
		SupportedVersions:            msg.SupportedVersions,
		KeyShareCurves:               msg.KeyShareCurves,
		CertCompressionAlgo:          msg.CertCompressionAlgo,
		PseudoHeaderOrder:            msg.PseudoHeaderOrder,
		PriorityFrames:               msg.PriorityFrames,
		HeaderOrder:                  msg.HeaderOrder,
		ConnectionFlow:               msg.ConnectionFlow,
		RandomTLSExtensionOrder:      msg.RandomTLSExtensionOrder,
		ForceHTTP1:                   msg.ForceHTTP1,
		Debug:                        msg.Debug,
		CatchPanics:                  msg.CatchPanics,
	})
	if err != nil {
		return marshalResponse(&responseMessage{Target: msg.RequestURL, Error: err.Error()})
	}

	cookies := make([]*http.Cookie, 0, len(msg.RequestCookies))
	for _, c := range msg.RequestCookies {
		cookies = append(cookies, &http.Cookie{Name: c.Name, Value: c.Value})
	}
	var body []byte
	if msg.RequestBody != "" {
		body = []byte(msg.RequestBody)
	}

	method := msg.RequestMethod
	if method == "" {
		method = http.MethodGet
	}
	rec, err := session.Do(ctx, method, &RequestSpec{
		URL:                msg.RequestURL,
		Headers:            msg.Headers,
		HeaderOrder:        msg.HeaderOrder,
		Cookies:            cookies,
		Body:               body,
		Proxy:              msg.ProxyURL,
		TimeoutSeconds:     msg.TimeoutSeconds,
		AllowRedirects:     msg.AllowRedirects,
		InsecureSkipVerify: msg.InsecureSkipVerify,
	})

	out := &responseMessage{Target: msg.RequestURL}
	if rec != nil {
		out.Status = rec.StatusCode
		out.Body = string(rec.Body)
		out.Headers = rec.Headers
		out.Target = rec.Target
		out.UsedProtocol = rec.UsedProtocol
		out.Cookies = make(map[string]string, len(rec.Cookies))
		for _, c := range rec.Cookies {
			out.Cookies[c.Name] = c.Value
		}
	}
	if err != nil {
		out.Error = err.Error()
	}
	return marshalResponse(out)
}

func marshalResponse(msg *responseMessage) []byte {
	out, err := sonic.Marshal(msg)
	if err != nil {
		return []byte(`{"status":0,"error":"response encoding failed"}`)
	}
	return out
}
