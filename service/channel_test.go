package service

import (
	"bytes"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/gnunet-go/gnunet/protocol"
	"github.com/rs/zerolog"
)

// newPipeChannel returns a channel over one side of an in-memory pipe and the
// raw remote side for the test to drive.
func newPipeChannel(t *testing.T) (*Channel, net.Conn) {
	t.Helper()
	local, remote := net.Pipe()
	ch := NewChannel(local, "test", zerolog.Nop())
	t.Cleanup(func() {
		ch.Close()
		remote.Close()
	})
	return ch, remote
}

func TestChannel_SendAndRead(t *testing.T) {
	ch, remote := newPipeChannel(t)

	go func() {
		if err := ch.Send(protocol.MsgTypeGNSLookup, []byte{1, 2, 3}); err != nil {
			t.Errorf("Send failed: %v", err)
		}
	}()

	msgType, body, err := protocol.ReadFrame(remote)
	if err != nil {
		t.Fatalf("remote read failed: %v", err)
	}
	if msgType != protocol.MsgTypeGNSLookup || !bytes.Equal(body, []byte{1, 2, 3}) {
		t.Errorf("remote got (%d, %x)", msgType, body)
	}

	go func() {
		if err := protocol.WriteFrame(remote, protocol.MsgTypeGNSLookupResult, []byte{9}); err != nil {
			t.Errorf("remote write failed: %v", err)
		}
	}()

	msgType, body, err = ch.ReadNext()
	if err != nil {
		t.Fatalf("ReadNext failed: %v", err)
	}
	if msgType != protocol.MsgTypeGNSLookupResult || !bytes.Equal(body, []byte{9}) {
		t.Errorf("ReadNext got (%d, %x)", msgType, body)
	}
}

func TestChannel_RemoteClose(t *testing.T) {
	ch, remote := newPipeChannel(t)
	remote.Close()

	_, _, err := ch.ReadNext()
	if !errors.Is(err, protocol.ErrDisconnected) {
		t.Fatalf("error = %v, want ErrDisconnected", err)
	}
}

func TestChannel_ConcurrentSendsDoNotInterleave(t *testing.T) {
	ch, remote := newPipeChannel(t)

	const senders = 8
	const framesEach = 20

	var wg sync.WaitGroup
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			body := bytes.Repeat([]byte{byte(n)}, 64)
			for j := 0; j < framesEach; j++ {
				if err := ch.Send(uint16(100+n), body); err != nil {
					t.Errorf("sender %d: %v", n, err)
					return
				}
			}
		}(i)
	}

	for i := 0; i < senders*framesEach; i++ {
		msgType, body, err := protocol.ReadFrame(remote)
		if err != nil {
			t.Fatalf("frame %d: read failed: %v", i, err)
		}
		n := int(msgType) - 100
		if n < 0 || n >= senders {
			t.Fatalf("frame %d: unexpected type %d", i, msgType)
		}
		if len(body) != 64 {
			t.Fatalf("frame %d: body length %d", i, len(body))
		}
		for _, b := range body {
			if b != byte(n) {
				t.Fatalf("frame %d: interleaved body for sender %d", i, n)
			}
		}
	}
	wg.Wait()
}

func TestChannel_CloseIdempotent(t *testing.T) {
	ch, _ := newPipeChannel(t)

	first := ch.Close()
	second := ch.Close()
	if second != first {
		t.Errorf("second Close = %v, want %v", second, first)
	}
}

func TestChannel_SendAfterClose(t *testing.T) {
	ch, remote := newPipeChannel(t)
	remote.Close()
	ch.Close()

	// Avoid hanging on a dead pipe if the write were attempted anyway.
	done := make(chan error, 1)
	go func() {
		done <- ch.Send(protocol.MsgTypeGNSLookup, nil)
	}()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("Send after close succeeded")
		}
	case <-time.After(time.Second):
		t.Fatal("Send after close blocked")
	}
}
