// Package peerinfo lists the peers known to the local peerinfo service:
// a GET_ALL request followed by a stream of INFO frames up to INFO_END.
package peerinfo

import (
	"context"
	"fmt"

	"github.com/gnunet-go/gnunet/config"
	"github.com/gnunet-go/gnunet/crypto"
	"github.com/gnunet-go/gnunet/protocol"
	"github.com/gnunet-go/gnunet/service"
	"github.com/rs/zerolog"
)

// PeerInfo is one known peer, with the raw HELLO payload when the daemon
// included one.
type PeerInfo struct {
	Peer  crypto.PeerIdentity
	Hello []byte
}

func (p PeerInfo) String() string {
	return p.Peer.String()
}

// ListPeers returns every peer the peerinfo service knows about. Context
// expiry closes the channel so a stalled INFO stream cannot hang the call.
func ListPeers(ctx context.Context, cfg *config.Config, logger zerolog.Logger) ([]PeerInfo, error) {
	ch, err := service.Connect(ctx, cfg, "peerinfo", logger)
	if err != nil {
		return nil, err
	}
	defer ch.Close()

	stop := context.AfterFunc(ctx, func() { ch.Close() })
	defer stop()

	// include_friend_only = 0
	if err := ch.Send(protocol.MsgTypePeerinfoGetAll, make([]byte, 4)); err != nil {
		return nil, err
	}

	var peers []PeerInfo
	for {
		msgType, body, err := ch.ReadNext()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, err
		}

		switch msgType {
		case protocol.MsgTypePeerinfoInfo:
			if len(body) < 4+crypto.KeySize {
				return nil, fmt.Errorf("%w: peer info too short", protocol.ErrMalformed)
			}
			peer, err := crypto.PeerIdentityFromBytes(body[4 : 4+crypto.KeySize])
			if err != nil {
				return nil, err
			}
			info := PeerInfo{Peer: peer}
			if rest := body[4+crypto.KeySize:]; len(rest) > 0 {
				info.Hello = append([]byte(nil), rest...)
			}
			peers = append(peers, info)

		case protocol.MsgTypePeerinfoInfoEnd:
			return peers, nil

		default:
			return nil, &protocol.UnexpectedMessageTypeError{Type: msgType}
		}
	}
}
