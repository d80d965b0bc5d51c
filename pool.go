package mimic

import (
	"github.com/valyala/bytebufferpool"
)

var bufferPool bytebufferpool.Pool

// GetBuffer retrieves a buffer from the pool.
func GetBuffer() *bytebufferpool.ByteBuffer {
	return bufferPool.Get()
}

// PutBuffer returns a buffer to the pool.
func PutBuffer(b *bytebufferpool.ByteBuffer) {
	bufferPool.Put(b)
}
