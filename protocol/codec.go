package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"unicode/utf8"
)

// Wire format: [2 bytes total length][2 bytes message type][body]
// Both header fields are big-endian and the length includes the 4-byte
// header itself, so a valid frame always declares at least 4 bytes.

// EncodeFrame builds one frame for the given message type and body.
func EncodeFrame(msgType uint16, body []byte) ([]byte, error) {
	total := len(body) + HeaderSize
	if total > MaxMessageSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, total)
	}

	frame := make([]byte, total)
	binary.BigEndian.PutUint16(frame[0:], uint16(total))
	binary.BigEndian.PutUint16(frame[2:], msgType)
	copy(frame[HeaderSize:], body)
	return frame, nil
}

// WriteFrame encodes and writes one frame using buffer pooling to reduce
// allocations. Header and body reach the writer in a single Write call so a
// frame is never interleaved with another sender's bytes.
func WriteFrame(w io.Writer, msgType uint16, body []byte) error {
	total := len(body) + HeaderSize
	if total > MaxMessageSize {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, total)
	}

	buf := GetBufferWithSize(total)
	defer PutBuffer(buf)

	var header [HeaderSize]byte
	binary.BigEndian.PutUint16(header[0:], uint16(total))
	binary.BigEndian.PutUint16(header[2:], msgType)
	buf.Write(header[:])
	buf.Write(body)

	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// ReadFrame decodes the next frame from the stream. It reads exactly one
// header and exactly the declared body, buffering nothing beyond the frame.
//
// A clean EOF before the first header byte is ErrDisconnected; a stream that
// ends anywhere inside a frame is ErrTruncated; a declared length below
// HeaderSize is ErrMalformed.
func ReadFrame(r io.Reader) (msgType uint16, body []byte, err error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		switch err {
		case io.EOF:
			return 0, nil, ErrDisconnected
		case io.ErrUnexpectedEOF:
			return 0, nil, fmt.Errorf("%w: stream ended inside header", ErrTruncated)
		default:
			return 0, nil, fmt.Errorf("read frame header: %w", err)
		}
	}

	total := binary.BigEndian.Uint16(header[0:])
	if total < HeaderSize {
		return 0, nil, fmt.Errorf("%w: declared length %d", ErrMalformed, total)
	}
	msgType = binary.BigEndian.Uint16(header[2:])

	body = make([]byte, int(total)-HeaderSize)
	if _, err := io.ReadFull(r, body); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return 0, nil, fmt.Errorf("%w: stream ended inside body", ErrTruncated)
		}
		return 0, nil, fmt.Errorf("read frame body: %w", err)
	}
	return msgType, body, nil
}

// CString decodes a NUL-terminated UTF-8 string from the front of b.
// It returns the string and the number of bytes consumed including the NUL.
func CString(b []byte) (string, int, error) {
	i := bytes.IndexByte(b, 0)
	if i < 0 {
		return "", 0, fmt.Errorf("%w: missing string terminator", ErrMalformed)
	}
	if !utf8.Valid(b[:i]) {
		return "", 0, ErrInvalidUTF8
	}
	return string(b[:i]), i + 1, nil
}
