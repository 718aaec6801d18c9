package transport

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/gnunet-go/gnunet/config"
	"github.com/gnunet-go/gnunet/crypto"
	"github.com/gnunet-go/gnunet/protocol"
	"github.com/rs/zerolog"
)

// fakeDaemon listens on a unix socket in a temp dir and serves exactly one
// connection with handle.
func fakeDaemon(t *testing.T, serviceName string, handle func(conn net.Conn)) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), serviceName+".sock")
	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		handle(conn)
	}()

	return &config.Config{
		Services: map[string]config.ServiceEndpoint{
			serviceName: {UnixPath: path},
		},
	}
}

func testPeer(seed byte) crypto.PeerIdentity {
	b := make([]byte, crypto.KeySize)
	b[0] = seed
	p, err := crypto.PeerIdentityFromBytes(b)
	if err != nil {
		panic(err)
	}
	return p
}

func helloBody(friendOnly bool, peer crypto.PeerIdentity, addresses []byte) []byte {
	body := make([]byte, 4, 4+crypto.KeySize+len(addresses))
	if friendOnly {
		binary.BigEndian.PutUint32(body[0:4], 1)
	}
	body = append(body, peer[:]...)
	return append(body, addresses...)
}

func TestSelfHello(t *testing.T) {
	peer := testPeer(3)
	addresses := []byte("opaque address blob")

	cfg := fakeDaemon(t, "transport", func(conn net.Conn) {
		msgType, body, err := protocol.ReadFrame(conn)
		if err != nil || msgType != protocol.MsgTypeTransportStart {
			t.Errorf("daemon: start frame = (%d, %v)", msgType, err)
			return
		}
		if !bytes.Equal(body, make([]byte, 4+crypto.KeySize)) {
			t.Errorf("daemon: start body not zeroed: %x", body)
			return
		}
		protocol.WriteFrame(conn, protocol.MsgTypeHello, helloBody(false, peer, addresses))
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	h, err := SelfHello(ctx, cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("SelfHello failed: %v", err)
	}
	if h.Peer != peer {
		t.Errorf("peer = %s, want %s", h.Peer, peer)
	}
	if h.FriendOnly {
		t.Error("friend-only flag set")
	}
	if !bytes.Equal(h.Addresses, addresses) {
		t.Errorf("addresses = %q", h.Addresses)
	}
}

func TestSelfID(t *testing.T) {
	peer := testPeer(9)
	cfg := fakeDaemon(t, "transport", func(conn net.Conn) {
		protocol.ReadFrame(conn)
		protocol.WriteFrame(conn, protocol.MsgTypeHello, helloBody(true, peer, nil))
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	id, err := SelfID(ctx, cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("SelfID failed: %v", err)
	}
	if id != peer {
		t.Errorf("id = %s, want %s", id, peer)
	}
}

func TestSelfHello_UnexpectedReply(t *testing.T) {
	cfg := fakeDaemon(t, "transport", func(conn net.Conn) {
		protocol.ReadFrame(conn)
		protocol.WriteFrame(conn, protocol.MsgTypeGNSLookupResult, nil)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := SelfHello(ctx, cfg, zerolog.Nop())

	var unexpected *protocol.UnexpectedMessageTypeError
	if !errors.As(err, &unexpected) || unexpected.Type != protocol.MsgTypeGNSLookupResult {
		t.Fatalf("error = %v, want UnexpectedMessageTypeError", err)
	}
}

func TestSelfHello_ContextExpiryUnblocksStalledDaemon(t *testing.T) {
	cfg := fakeDaemon(t, "transport", func(conn net.Conn) {
		// Consume the START and never answer.
		protocol.ReadFrame(conn)
		time.Sleep(time.Second)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := SelfHello(ctx, cfg, zerolog.Nop())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v, want DeadlineExceeded", err)
	}
}

func TestDeserializeHello(t *testing.T) {
	peer := testPeer(1)

	h, err := DeserializeHello(helloBody(true, peer, []byte{0xaa}))
	if err != nil {
		t.Fatalf("DeserializeHello failed: %v", err)
	}
	if !h.FriendOnly || h.Peer != peer || !bytes.Equal(h.Addresses, []byte{0xaa}) {
		t.Errorf("hello = %+v", h)
	}

	if _, err := DeserializeHello(make([]byte, 4+crypto.KeySize-1)); !errors.Is(err, protocol.ErrMalformed) {
		t.Errorf("short body error = %v, want ErrMalformed", err)
	}
}
