package protocol

import (
	"errors"
	"fmt"
)

// Frame-level and channel-level failures.
var (
	// ErrDisconnected reports a clean or abrupt loss of the service channel.
	ErrDisconnected = errors.New("service disconnected")

	// ErrMalformed reports a frame header that violates the wire format.
	ErrMalformed = errors.New("malformed frame")

	// ErrTruncated reports a stream that ended inside a declared frame.
	ErrTruncated = errors.New("truncated frame")

	// ErrFrameTooLarge reports a frame whose total length does not fit the
	// u16 length field.
	ErrFrameTooLarge = errors.New("frame exceeds maximum message size")

	// ErrInvalidUTF8 reports a wire string that is not valid UTF-8.
	ErrInvalidUTF8 = errors.New("string is not valid utf-8")
)

// UnexpectedMessageTypeError reports a structurally valid frame whose type
// the current protocol state does not accept. Seeing one means either a
// daemon incompatibility or a client bug; it is never silently recovered.
type UnexpectedMessageTypeError struct {
	Type uint16
}

func (e *UnexpectedMessageTypeError) Error() string {
	return fmt.Sprintf("unexpected message type %d", e.Type)
}

// NameTooLongError reports a caller-supplied name rejected before any I/O.
type NameTooLongError struct {
	Name string
}

func (e *NameTooLongError) Error() string {
	name := e.Name
	if len(name) > 64 {
		name = name[:64] + "..."
	}
	return fmt.Sprintf("name %q is too long", name)
}
