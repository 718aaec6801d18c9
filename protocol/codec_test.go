package protocol

import (
	"bytes"
	"errors"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		msgType uint16
		body    []byte
	}{
		{"empty body", MsgTypeIdentityStart, nil},
		{"small body", MsgTypeGNSLookup, []byte{1, 2, 3, 4}},
		{"text body", MsgTypeIdentityUpdate, []byte("gns-master\x00")},
		{"max body", MsgTypeHello, bytes.Repeat([]byte{0xab}, MaxMessageSize-HeaderSize)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := WriteFrame(&buf, tt.msgType, tt.body); err != nil {
				t.Fatalf("WriteFrame failed: %v", err)
			}

			gotType, gotBody, err := ReadFrame(&buf)
			if err != nil {
				t.Fatalf("ReadFrame failed: %v", err)
			}
			if gotType != tt.msgType {
				t.Errorf("message type = %d, want %d", gotType, tt.msgType)
			}
			if !bytes.Equal(gotBody, tt.body) {
				t.Errorf("body mismatch: got %d bytes, want %d bytes", len(gotBody), len(tt.body))
			}
		})
	}
}

func TestEncodeFrame_HeaderLayout(t *testing.T) {
	frame, err := EncodeFrame(0x0102, []byte{0xaa, 0xbb, 0xcc})
	if err != nil {
		t.Fatalf("EncodeFrame failed: %v", err)
	}

	want := []byte{0x00, 0x07, 0x01, 0x02, 0xaa, 0xbb, 0xcc}
	if !bytes.Equal(frame, want) {
		t.Errorf("frame = %x, want %x", frame, want)
	}
}

func TestWriteFrame_TooLarge(t *testing.T) {
	var buf bytes.Buffer
	body := make([]byte, MaxMessageSize-HeaderSize+1)

	err := WriteFrame(&buf, MsgTypeGNSLookup, body)
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("error = %v, want ErrFrameTooLarge", err)
	}
	if buf.Len() != 0 {
		t.Errorf("oversized frame wrote %d bytes", buf.Len())
	}
}

func TestReadFrame_MalformedLength(t *testing.T) {
	for length := 0; length < HeaderSize; length++ {
		header := []byte{byte(length >> 8), byte(length), 0x00, 0x11}
		_, _, err := ReadFrame(bytes.NewReader(header))
		if !errors.Is(err, ErrMalformed) {
			t.Errorf("declared length %d: error = %v, want ErrMalformed", length, err)
		}
	}
}

func TestReadFrame_CleanEOF(t *testing.T) {
	_, _, err := ReadFrame(bytes.NewReader(nil))
	if !errors.Is(err, ErrDisconnected) {
		t.Fatalf("error = %v, want ErrDisconnected", err)
	}
}

func TestReadFrame_Truncated(t *testing.T) {
	frame, err := EncodeFrame(MsgTypeGNSLookupResult, []byte("partial frame body"))
	if err != nil {
		t.Fatalf("EncodeFrame failed: %v", err)
	}

	for cut := 1; cut < len(frame); cut++ {
		_, _, err := ReadFrame(bytes.NewReader(frame[:cut]))
		if !errors.Is(err, ErrTruncated) {
			t.Errorf("cut at %d: error = %v, want ErrTruncated", cut, err)
		}
	}
}

func TestCString(t *testing.T) {
	tests := []struct {
		name    string
		input   []byte
		want    string
		wantN   int
		wantErr error
	}{
		{"simple", []byte("gns-master\x00"), "gns-master", 11, nil},
		{"empty string", []byte{0}, "", 1, nil},
		{"trailing bytes ignored", []byte("abc\x00def"), "abc", 4, nil},
		{"missing terminator", []byte("abc"), "", 0, ErrMalformed},
		{"invalid utf-8", []byte{0xff, 0xfe, 0x00}, "", 0, ErrInvalidUTF8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, n, err := CString(tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("CString failed: %v", err)
			}
			if got != tt.want || n != tt.wantN {
				t.Errorf("CString = (%q, %d), want (%q, %d)", got, n, tt.want, tt.wantN)
			}
		})
	}
}
