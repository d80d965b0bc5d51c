package mimic

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/hpack"
)

const (
	h2MaxFrameSize      = 16384
	h2InitialWindowSize = 65535
)

// h2SettingID maps a profile's symbolic SETTINGS name to its wire ID.
func h2SettingID(name string) (http2.SettingID, error) {
	switch name {
	case "HEADER_TABLE_SIZE":
		return http2.SettingHeaderTableSize, nil
	case "ENABLE_PUSH":
		return http2.SettingEnablePush, nil
	case "MAX_CONCURRENT_STREAMS":
		return http2.SettingMaxConcurrentStreams, nil
	case "INITIAL_WINDOW_SIZE":
		return http2.SettingInitialWindowSize, nil
	case "MAX_FRAME_SIZE":
		return http2.SettingMaxFrameSize, nil
	case "MAX_HEADER_LIST_SIZE":
		return http2.SettingMaxHeaderListSize, nil
	}
	return 0, fmt.Errorf("%w: h2 setting %q", ErrInvalidProfileField, name)
}

// requestStreamID returns the stream for the request: the smallest odd ID
// above every PRIORITY frame the profile emits first.
func requestStreamID(frames []PriorityFrame) uint32 {
	var maxID uint32
	for _, f := range frames {
		if f.StreamID > maxID {
			maxID = f.StreamID
		}
	}
	id := maxID + 1
	if id%2 == 0 {
		id++
	}
	return id
}

// roundTripHTTP2 drives one exchange over a fresh connection with the
// profile's exact frame shape: SETTINGS parameters in declared order, the
// connection-level WINDOW_UPDATE, any PRIORITY frames, then the request
// stream. The connection is not reused afterwards.
func roundTripHTTP2(ctx context.Context, conn net.Conn, p *FingerprintProfile, req *wireRequest, logger Logger) (*wireResponse, error) {
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	bw := bufio.NewWriter(conn)
	fr := http2.NewFramer(bw, bufio.NewReader(conn))
	fr.ReadMetaHeaders = hpack.NewDecoder(4096, nil)

	if _, err := bw.WriteString(http2.ClientPreface); err != nil {
		return nil, classifyTransportError("write preface", err)
	}
	settings := make([]http2.Setting, 0, len(p.H2Settings))
	for _, s := range p.H2Settings {
		id, err := h2SettingID(s.Name)
		if err != nil {
			return nil, err
		}
		settings = append(settings, http2.Setting{ID: id, Val: s.Value})
	}
	if err := fr.WriteSettings(settings...); err != nil {
		return nil, classifyTransportError("write settings", err)
	}
	if p.ConnectionFlow > 0 {
		if err := fr.WriteWindowUpdate(0, p.ConnectionFlow); err != nil {
			return nil, classifyTransportError("write window update", err)
		}
	}
	for _, f := range p.PriorityFrames {
		err := fr.WritePriority(f.StreamID, http2.PriorityParam{
			StreamDep: f.StreamDep,
			Exclusive: f.Exclusive,
			Weight:    f.Weight,
		})
		if err != nil {
			return nil, classifyTransportError("write priority", err)
		}
	}

	streamID := requestStreamID(p.PriorityFrames)
	block := encodeHeaderBlock(p, req)
	err := fr.WriteHeaders(http2.HeadersFrameParam{
		StreamID:      streamID,
		BlockFragment: block,
		EndHeaders:    true,
		EndStream:     len(req.body) == 0,
	})
	if err != nil {
		return nil, classifyTransportError("write headers", err)
	}
	if err := bw.Flush(); err != nil {
		return nil, classifyTransportError("flush request", err)
	}

	st := &h2Stream{
		id:            streamID,
		connSend:      h2InitialWindowSize,
		streamSend:    h2InitialWindowSize,
		serverInitial: h2InitialWindowSize,
		res:           &wireResponse{protocol: "HTTP/2"},
	}

	// The send loop obeys both flow-control windows; when they are spent it
	// reads frames until the server's SETTINGS or WINDOW_UPDATE opens them.
	for body := req.body; len(body) > 0 && !st.done; {
		if st.connSend <= 0 || st.streamSend <= 0 {
			if err := readH2Frame(fr, bw, st); err != nil {
				return nil, err
			}
			continue
		}
		chunk := len(body)
		if chunk > h2MaxFrameSize {
			chunk = h2MaxFrameSize
		}
		if int64(chunk) > st.connSend {
			chunk = int(st.connSend)
		}
		if int64(chunk) > st.streamSend {
			chunk = int(st.streamSend)
		}
		if err := fr.WriteData(streamID, chunk == len(body), body[:chunk]); err != nil {
			return nil, classifyTransportError("write data", err)
		}
		if err := bw.Flush(); err != nil {
			return nil, classifyTransportError("flush data", err)
		}
		st.connSend -= int64(chunk)
		st.streamSend -= int64(chunk)
		body = body[chunk:]
	}
	logger.Debugf("h2 request sent on stream %d (%d priority frames)", streamID, len(p.PriorityFrames))

	for !st.done {
		if err := readH2Frame(fr, bw, st); err != nil {
			return nil, err
		}
	}
	return finishHTTP2(st.res, st.body.Bytes())
}

// h2Stream is the mutable state of the single request stream: the peer's
// remaining send windows and the response as it accumulates.
type h2Stream struct {
	id            uint32
	connSend      int64
	streamSend    int64
	serverInitial int64
	headersDone   bool
	done          bool
	res           *wireResponse
	body          bytes.Buffer
}

// readH2Frame consumes one frame, answering connection-management frames and
// folding response frames into the stream state. done is set once the server
// half-closes the stream.
func readH2Frame(fr *http2.Framer, bw *bufio.Writer, st *h2Stream) error {
	frame, err := fr.ReadFrame()
	if err != nil {
		return classifyTransportError("read frame", err)
	}
	switch f := frame.(type) {
	case *http2.SettingsFrame:
		if f.IsAck() {
			break
		}
		if v, ok := f.Value(http2.SettingInitialWindowSize); ok {
			// The delta applies to the already-open stream window.
			st.streamSend += int64(v) - st.serverInitial
			st.serverInitial = int64(v)
		}
		fr.WriteSettingsAck()
		bw.Flush()
	case *http2.PingFrame:
		if !f.IsAck() {
			fr.WritePing(true, f.Data)
			bw.Flush()
		}
	case *http2.WindowUpdateFrame:
		switch f.StreamID {
		case 0:
			st.connSend += int64(f.Increment)
		case st.id:
			st.streamSend += int64(f.Increment)
		}
	case *http2.MetaHeadersFrame:
		if f.StreamID != st.id {
			break
		}
		if !st.headersDone {
			code, err := strconv.Atoi(f.PseudoValue("status"))
			if err != nil {
				return fmt.Errorf("%w: missing :status pseudo header", ErrProtocolViolation)
			}
			// 1xx interim responses precede the real one.
			if code >= 100 && code < 200 {
				break
			}
			st.res.status = code
			st.res.headers = make(http.Header, len(f.RegularFields()))
			for _, hf := range f.RegularFields() {
				st.res.headers.Add(hf.Name, hf.Value)
			}
			st.headersDone = true
		}
		if f.StreamEnded() {
			st.done = true
		}
	case *http2.DataFrame:
		if f.StreamID != st.id {
			break
		}
		st.body.Write(f.Data())
		if n := len(f.Data()); n > 0 {
			fr.WriteWindowUpdate(st.id, uint32(n))
			fr.WriteWindowUpdate(0, uint32(n))
			bw.Flush()
		}
		if f.StreamEnded() {
			st.done = true
		}
	case *http2.RSTStreamFrame:
		if f.StreamID == st.id {
			return fmt.Errorf("%w: stream reset by server: %v", ErrProtocolViolation, f.ErrCode)
		}
	case *http2.GoAwayFrame:
		return fmt.Errorf("%w: server sent GOAWAY before response: %v", ErrProtocolViolation, f.ErrCode)
	}
	return nil
}

func finishHTTP2(res *wireResponse, raw []byte) (*wireResponse, error) {
	if res.headers == nil {
		return nil, fmt.Errorf("%w: stream ended without headers", ErrProtocolViolation)
	}
	body, err := decodeBody(res.headers.Get("Content-Encoding"), raw)
	if err != nil {
		return nil, err
	}
	res.body = body
	return res, nil
}

// encodeHeaderBlock builds the HPACK block: pseudo headers in the profile's
// order, then regular headers in request order, all lowercased.
func encodeHeaderBlock(p *FingerprintProfile, req *wireRequest) []byte {
	var buf bytes.Buffer
	enc := hpack.NewEncoder(&buf)

	pseudoOrder := p.PseudoHeaderOrder
	if len(pseudoOrder) == 0 {
		pseudoOrder = []string{":method", ":authority", ":scheme", ":path"}
	}
	for _, name := range pseudoOrder {
		var value string
		switch name {
		case ":method":
			value = req.method
		case ":authority":
			value = req.host
		case ":scheme":
			value = req.url.Scheme
		case ":path":
			value = req.url.RequestURI()
		default:
			continue
		}
		enc.WriteField(hpack.HeaderField{Name: name, Value: value})
	}

	wroteLength := false
	for _, h := range req.headers {
		name := strings.ToLower(h.name)
		switch name {
		case "host", "connection", "proxy-connection", "keep-alive", "transfer-encoding", "upgrade":
			continue
		case "content-length":
			wroteLength = true
		}
		enc.WriteField(hpack.HeaderField{Name: name, Value: h.value})
	}
	if len(req.body) > 0 && !wroteLength {
		enc.WriteField(hpack.HeaderField{Name: "content-length", Value: strconv.Itoa(len(req.body))})
	}
	return buf.Bytes()
}
