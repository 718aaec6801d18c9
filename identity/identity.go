// Package identity talks to the GNUnet identity service: it mirrors the
// daemon's named egos at connect time and answers "default identity for
// service X" queries from that mirror.
package identity

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"

	"github.com/gnunet-go/gnunet/config"
	"github.com/gnunet-go/gnunet/crypto"
	"github.com/gnunet-go/gnunet/protocol"
	"github.com/gnunet-go/gnunet/service"
	"github.com/rs/zerolog"
)

var (
	// ErrInvalidResponse reports a structurally valid but semantically
	// incoherent reply from the identity service.
	ErrInvalidResponse = errors.New("incoherent response from identity service")

	// ErrInvalidName reports an ego name on the wire that is not valid
	// UTF-8. Seeing it is a daemon bug.
	ErrInvalidName = errors.New("ego name is not valid utf-8")
)

// ServiceError is an explicit error payload returned by the daemon itself.
type ServiceError struct {
	Code    uint32
	Message string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("identity service error %d: %s", e.Code, e.Message)
}

// Ego is a named local identity: a private key, its derived public key and
// a display name, mirrored from the identity service.
type Ego struct {
	key  crypto.EcdsaPrivateKey
	name string
	id   crypto.HashCode
}

// Anonymous returns the global, unnamed anonymous ego.
func Anonymous() Ego {
	key := crypto.AnonymousPrivateKey()
	return Ego{
		key: key,
		id:  key.Public().Hash(),
	}
}

// PrivateKey returns the ego's private key.
func (e Ego) PrivateKey() crypto.EcdsaPrivateKey {
	return e.key
}

// PublicKey derives the ego's public key.
func (e Ego) PublicKey() crypto.EcdsaPublicKey {
	return e.key.Public()
}

// Name returns the ego's display name, empty for the anonymous ego.
func (e Ego) Name() string {
	return e.name
}

// ID returns the hash of the ego's public key.
func (e Ego) ID() crypto.HashCode {
	return e.id
}

func (e Ego) String() string {
	name := e.name
	if name == "" {
		name = "<anonymous>"
	}
	return fmt.Sprintf("%s (%s)", name, e.id)
}

// Service is a handle to the identity daemon plus the authoritative local
// mirror of its egos, built once during the connect-time sync.
type Service struct {
	ch     *service.Channel
	egos   map[crypto.HashCode]Ego
	logger zerolog.Logger
}

// Connect opens a channel to the identity service and runs the streaming
// handshake: a START control frame, then one UPDATE per ego until the
// end-of-list terminator.
func Connect(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Service, error) {
	ch, err := service.Connect(ctx, cfg, "identity", logger)
	if err != nil {
		return nil, err
	}

	s := newService(ch, logger)
	if err := s.sync(ctx); err != nil {
		ch.Close()
		return nil, err
	}
	return s, nil
}

func newService(ch *service.Channel, logger zerolog.Logger) *Service {
	return &Service{
		ch:     ch,
		egos:   make(map[crypto.HashCode]Ego),
		logger: logger.With().Str("component", "identity").Logger(),
	}
}

// sync populates the ego mirror. An empty list is valid: a terminator before
// any UPDATE yields zero egos. Context expiry closes the channel, so a stalled
// daemon cannot hang the handshake.
func (s *Service) sync(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { s.ch.Close() })
	defer stop()

	if err := s.ch.Send(protocol.MsgTypeIdentityStart, nil); err != nil {
		return fmt.Errorf("send identity start: %w", err)
	}

	for {
		msgType, body, err := s.ch.ReadNext()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if msgType != protocol.MsgTypeIdentityUpdate {
			return &protocol.UnexpectedMessageTypeError{Type: msgType}
		}

		end, err := s.applyUpdate(body)
		if err != nil {
			return err
		}
		if end {
			s.logger.Debug().Int("egos", len(s.egos)).Msg("ego mirror synchronized")
			return nil
		}
	}
}

// UPDATE body: name_len u16, end_of_list u16, private key, NUL-terminated
// name. The terminator only carries the end_of_list flag; any trailing bytes
// on it are not parsed.
func (s *Service) applyUpdate(body []byte) (end bool, err error) {
	if len(body) < 4 {
		return false, fmt.Errorf("%w: identity update too short", protocol.ErrMalformed)
	}
	if endOfList := binary.BigEndian.Uint16(body[2:4]); endOfList != 0 {
		return true, nil
	}
	if len(body) < 4+crypto.KeySize {
		return false, fmt.Errorf("%w: identity update missing key", protocol.ErrMalformed)
	}

	key, err := crypto.PrivateKeyFromBytes(body[4 : 4+crypto.KeySize])
	if err != nil {
		return false, err
	}
	name, _, err := protocol.CString(body[4+crypto.KeySize:])
	if err != nil {
		if errors.Is(err, protocol.ErrInvalidUTF8) {
			return false, ErrInvalidName
		}
		return false, err
	}

	id := key.Public().Hash()
	s.egos[id] = Ego{key: key, name: name, id: id}
	return false, nil
}

// Egos returns the mirrored egos, sorted by name.
func (s *Service) Egos() []Ego {
	egos := make([]Ego, 0, len(s.egos))
	for _, e := range s.egos {
		egos = append(egos, e)
	}
	sort.Slice(egos, func(i, j int) bool { return egos[i].name < egos[j].name })
	return egos
}

// EgoByID looks an ego up by the hash of its public key.
func (s *Service) EgoByID(id crypto.HashCode) (Ego, bool) {
	e, ok := s.egos[id]
	return e, ok
}

// GetDefaultEgo asks the daemon for the default identity associated with a
// service name and answers with the matching ego from the local mirror.
// Context expiry closes the channel; the handle is unusable afterwards.
func (s *Service) GetDefaultEgo(ctx context.Context, name string) (Ego, error) {
	body, err := encodeGetDefault(name)
	if err != nil {
		return Ego{}, err
	}

	stop := context.AfterFunc(ctx, func() { s.ch.Close() })
	defer stop()

	if err := s.ch.Send(protocol.MsgTypeIdentityGetDefault, body); err != nil {
		return Ego{}, err
	}

	msgType, reply, err := s.ch.ReadNext()
	if err != nil {
		if ctx.Err() != nil {
			return Ego{}, ctx.Err()
		}
		return Ego{}, err
	}

	switch msgType {
	case protocol.MsgTypeIdentityResultCode:
		if len(reply) < 4 {
			return Ego{}, fmt.Errorf("%w: result code too short", protocol.ErrMalformed)
		}
		code := binary.BigEndian.Uint32(reply[:4])
		msg, _, err := protocol.CString(reply[4:])
		if err != nil {
			return Ego{}, err
		}
		return Ego{}, &ServiceError{Code: code, Message: msg}

	case protocol.MsgTypeIdentitySetDefault:
		return s.decodeSetDefault(name, reply)

	default:
		return Ego{}, fmt.Errorf("%w: message type %d", ErrInvalidResponse, msgType)
	}
}

// GET_DEFAULT body: name length incl. NUL (u16), reserved (u16), name, NUL.
func encodeGetDefault(name string) ([]byte, error) {
	if protocol.HeaderSize+4+len(name)+1 > protocol.MaxMessageSize {
		return nil, &protocol.NameTooLongError{Name: name}
	}

	body := make([]byte, 4, 4+len(name)+1)
	binary.BigEndian.PutUint16(body[0:2], uint16(len(name)+1))
	body = append(body, name...)
	body = append(body, 0)
	return body, nil
}

// SET_DEFAULT body: name length incl. NUL (u16), reserved (u16), private
// key, name. The returned ego comes from the local mirror keyed by the hash
// of the derived public key, not from the wire payload.
func (s *Service) decodeSetDefault(want string, reply []byte) (Ego, error) {
	if len(reply) < 4+crypto.KeySize {
		return Ego{}, fmt.Errorf("%w: set-default reply too short", protocol.ErrMalformed)
	}
	nameLen := binary.BigEndian.Uint16(reply[0:2])
	if nameLen == 0 {
		return Ego{}, ErrInvalidResponse
	}
	if reserved := binary.BigEndian.Uint16(reply[2:4]); reserved != 0 {
		return Ego{}, ErrInvalidResponse
	}

	key, err := crypto.PrivateKeyFromBytes(reply[4 : 4+crypto.KeySize])
	if err != nil {
		return Ego{}, err
	}

	nameEnd := 4 + crypto.KeySize + int(nameLen) - 1
	if len(reply) < nameEnd {
		return Ego{}, fmt.Errorf("%w: set-default reply truncated name", protocol.ErrMalformed)
	}
	if string(reply[4+crypto.KeySize:nameEnd]) != want {
		return Ego{}, fmt.Errorf("%w: name mismatch", ErrInvalidResponse)
	}

	ego, ok := s.egos[key.Public().Hash()]
	if !ok {
		return Ego{}, fmt.Errorf("%w: default ego not in local mirror", ErrInvalidResponse)
	}
	return ego, nil
}

// Close closes the channel to the identity service.
func (s *Service) Close() error {
	return s.ch.Close()
}

// GetDefaultEgo is the one-shot form: connect, query, disconnect. Use a
// Service handle instead when issuing several queries.
func GetDefaultEgo(ctx context.Context, cfg *config.Config, name string, logger zerolog.Logger) (Ego, error) {
	s, err := Connect(ctx, cfg, logger)
	if err != nil {
		return Ego{}, err
	}
	defer s.Close()
	return s.GetDefaultEgo(ctx, name)
}
