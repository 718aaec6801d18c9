package protocol

import (
	"bytes"
	"sync"
)

// Most frames on the service bus are small control messages; pooling the
// encode buffers keeps WriteFrame allocation-free on the hot path.

// MaxPooledBuffer is the largest buffer returned to the pool. A frame can
// never exceed MaxMessageSize, so anything larger came from buffer growth
// and is not worth keeping.
const MaxPooledBuffer = 2 * MaxMessageSize

// bufferPool is a sync.Pool for reusing byte buffers to reduce allocations.
var bufferPool = sync.Pool{
	New: func() interface{} {
		return new(bytes.Buffer)
	},
}

// GetBuffer retrieves a buffer from the pool.
// The buffer is reset and ready for use.
func GetBuffer() *bytes.Buffer {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// GetBufferWithSize retrieves a buffer from the pool and grows it to the
// specified size hint to avoid reallocations when the frame size is known.
func GetBufferWithSize(sizeHint int) *bytes.Buffer {
	buf := GetBuffer()
	if sizeHint > 0 && buf.Cap() < sizeHint {
		buf.Grow(sizeHint)
	}
	return buf
}

// PutBuffer returns a buffer to the pool.
// Oversized buffers are dropped to prevent memory bloat.
func PutBuffer(buf *bytes.Buffer) {
	if buf == nil {
		return
	}
	if buf.Cap() > MaxPooledBuffer {
		return
	}
	buf.Reset()
	bufferPool.Put(buf)
}
