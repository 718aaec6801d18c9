// Package transport holds the one-shot transport service helpers. They ride
// the same framing as the core protocols but need no correlation: one START,
// one HELLO back.
package transport

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/gnunet-go/gnunet/config"
	"github.com/gnunet-go/gnunet/crypto"
	"github.com/gnunet-go/gnunet/protocol"
	"github.com/gnunet-go/gnunet/service"
	"github.com/rs/zerolog"
)

// Hello describes how a peer can be reached. The address blob is carried
// opaquely; this client only needs the peer identity.
type Hello struct {
	FriendOnly bool
	Peer       crypto.PeerIdentity
	Addresses  []byte
}

func (h Hello) String() string {
	return h.Peer.String()
}

// DeserializeHello decodes a HELLO message body: friend-only flag (u32),
// peer identity, then the opaque address list.
func DeserializeHello(body []byte) (Hello, error) {
	if len(body) < 4+crypto.KeySize {
		return Hello{}, fmt.Errorf("%w: hello too short", protocol.ErrMalformed)
	}

	peer, err := crypto.PeerIdentityFromBytes(body[4 : 4+crypto.KeySize])
	if err != nil {
		return Hello{}, err
	}

	h := Hello{
		FriendOnly: binary.BigEndian.Uint32(body[0:4]) != 0,
		Peer:       peer,
	}
	if rest := body[4+crypto.KeySize:]; len(rest) > 0 {
		h.Addresses = append([]byte(nil), rest...)
	}
	return h, nil
}

// SelfHello asks the transport service for our own HELLO. The START body
// carries zeroed options and a zeroed self identity; the first reply must be
// a HELLO frame. Context expiry closes the channel so a silent daemon cannot
// hang the call.
func SelfHello(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (Hello, error) {
	ch, err := service.Connect(ctx, cfg, "transport", logger)
	if err != nil {
		return Hello{}, err
	}
	defer ch.Close()

	stop := context.AfterFunc(ctx, func() { ch.Close() })
	defer stop()

	body := make([]byte, 4+crypto.KeySize)
	if err := ch.Send(protocol.MsgTypeTransportStart, body); err != nil {
		return Hello{}, err
	}

	msgType, reply, err := ch.ReadNext()
	if err != nil {
		if ctx.Err() != nil {
			return Hello{}, ctx.Err()
		}
		return Hello{}, err
	}
	if msgType != protocol.MsgTypeHello {
		return Hello{}, &protocol.UnexpectedMessageTypeError{Type: msgType}
	}
	return DeserializeHello(reply)
}

// SelfID returns the local peer's identity.
func SelfID(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (crypto.PeerIdentity, error) {
	h, err := SelfHello(ctx, cfg, logger)
	if err != nil {
		return crypto.PeerIdentity{}, err
	}
	return h.Peer, nil
}
