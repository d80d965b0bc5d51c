package mimic

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
)

// decodeBody reverses the response Content-Encoding. Identity and unknown
// encodings pass through untouched; a recognized encoding that fails to
// decode is a protocol violation.
func decodeBody(encoding string, body []byte) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "identity":
		return body, nil
	case "gzip":
		r, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("%w: gzip body: %v", ErrProtocolViolation, err)
		}
		defer r.Close()
		return readDecoded(r, "gzip")
	case "deflate":
		// Servers disagree on whether deflate means zlib-wrapped or raw.
		if r, err := zlib.NewReader(bytes.NewReader(body)); err == nil {
			defer r.Close()
			return readDecoded(r, "deflate")
		}
		r := flate.NewReader(bytes.NewReader(body))
		defer r.Close()
		return readDecoded(r, "deflate")
	case "br":
		return readDecoded(brotli.NewReader(bytes.NewReader(body)), "brotli")
	case "zstd":
		r, err := zstd.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("%w: zstd body: %v", ErrProtocolViolation, err)
		}
		defer r.Close()
		return readDecoded(io.Reader(r), "zstd")
	default:
		return body, nil
	}
}

func readDecoded(r io.Reader, name string) ([]byte, error) {
	buf := GetBuffer()
	defer PutBuffer(buf)
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("%w: %s body: %v", ErrProtocolViolation, name, err)
	}
	out := make([]byte, len(buf.B))
	copy(out, buf.B)
	return out, nil
}
