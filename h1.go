package mimic

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
)

// roundTripHTTP1 performs one request/response exchange over conn with the
// headers written in their declared order. The connection is single-use and
// is closed by the caller once the body has been read.
func roundTripHTTP1(ctx context.Context, conn net.Conn, req *wireRequest) (*wireResponse, error) {
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	buf := GetBuffer()
	defer PutBuffer(buf)

	buf.WriteString(req.method)
	buf.WriteString(" ")
	buf.WriteString(req.url.RequestURI())
	buf.WriteString(" HTTP/1.1\r\n")
	buf.WriteString("Host: ")
	buf.WriteString(req.host)
	buf.WriteString("\r\n")

	wroteLength := false
	for _, h := range req.headers {
		if strings.EqualFold(h.name, "host") {
			continue
		}
		if strings.EqualFold(h.name, "content-length") {
			wroteLength = true
		}
		buf.WriteString(h.name)
		buf.WriteString(": ")
		buf.WriteString(h.value)
		buf.WriteString("\r\n")
	}
	if len(req.body) > 0 && !wroteLength {
		buf.WriteString("Content-Length: ")
		buf.WriteString(strconv.Itoa(len(req.body)))
		buf.WriteString("\r\n")
	}
	buf.WriteString("\r\n")
	buf.Write(req.body)

	if _, err := conn.Write(buf.B); err != nil {
		return nil, classifyTransportError("write request", err)
	}

	resp, err := http.ReadResponse(bufio.NewReader(conn), &http.Request{Method: req.method})
	if err != nil {
		return nil, classifyTransportError("read response", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransportError("read body", err)
	}
	body, err := decodeBody(resp.Header.Get("Content-Encoding"), raw)
	if err != nil {
		return nil, err
	}

	return &wireResponse{
		status:   resp.StatusCode,
		headers:  resp.Header,
		body:     body,
		protocol: "HTTP/1.1",
	}, nil
}

func classifyTransportError(op string, err error) error {
	var opErr *net.OpError
	switch {
	case IsTimeout(err):
		return fmt.Errorf("%w: %s: %v", ErrTimeout, op, err)
	case errors.As(err, &opErr), errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		return fmt.Errorf("%w: %s: %v", ErrConnectionFailure, op, err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %s: %v", ErrConnectionFailure, op, err)
	default:
		return fmt.Errorf("%w: %s: %v", ErrProtocolViolation, op, err)
	}
}
