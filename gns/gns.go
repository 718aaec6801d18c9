// Package gns resolves names through the GNU Name System service. A batch of
// lookups travels as correlated requests over a single channel; results
// stream back in any order and are reassembled in query order.
package gns

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/gnunet-go/gnunet/config"
	"github.com/gnunet-go/gnunet/crypto"
	"github.com/gnunet-go/gnunet/identity"
	"github.com/gnunet-go/gnunet/protocol"
	"github.com/gnunet-go/gnunet/service"
	"github.com/rs/zerolog"
)

// MaxNameLength is the longest name the GNS protocol accepts.
const MaxNameLength = 253

// ErrNoRecords is returned by the single-record helpers when the service
// answered with a terminal empty result.
var ErrNoRecords = errors.New("no records found")

// LocalOptions controls how far a lookup may reach.
type LocalOptions int16

const (
	// OptionsDefault looks in the local cache, then in the DHT.
	OptionsDefault LocalOptions = 0
	// OptionsNoDHT keeps the request to the local cache.
	OptionsNoDHT LocalOptions = 1
	// OptionsLocalMaster goes to the DHT only for names outside our
	// master zone.
	OptionsLocalMaster LocalOptions = 2
)

// LookupQuery describes one name resolution.
type LookupQuery struct {
	Name    string
	Zone    crypto.EcdsaPublicKey
	Type    RecordType
	Options LocalOptions

	// Shorten, when set, asks the service to cache the result under this
	// zone for faster future lookups.
	Shorten *crypto.EcdsaPrivateKey
}

// Client is a handle to the GNS service.
type Client struct {
	disp   *service.Dispatcher
	logger zerolog.Logger
}

// Connect opens a channel to the GNS service.
func Connect(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Client, error) {
	ch, err := service.Connect(ctx, cfg, "gns", logger)
	if err != nil {
		return nil, err
	}
	return newClient(ch, logger), nil
}

func newClient(ch *service.Channel, logger zerolog.Logger) *Client {
	c := &Client{
		logger: logger.With().Str("component", "gns").Logger(),
	}
	c.disp = service.NewDispatcher(ch, classifyResult, c.logger)
	return c
}

// Close tears down the channel; outstanding lookups fail with a
// disconnection error.
func (c *Client) Close() error {
	return c.disp.Close()
}

// Lookup issues every query as its own correlated request on the shared
// channel and blocks until each has a terminal answer. Results come back in
// query order regardless of arrival order; an empty list means the service
// explicitly reported no records for that query.
//
// An oversized name fails the whole batch before anything is sent.
func (c *Client) Lookup(ctx context.Context, queries []LookupQuery) ([][]Record, error) {
	for i, q := range queries {
		if len(q.Name) > MaxNameLength {
			return nil, fmt.Errorf("query %d: %w", i, &protocol.NameTooLongError{Name: q.Name})
		}
	}

	requests := make([]*service.PendingRequest, len(queries))
	for i, q := range queries {
		q := q
		req, err := c.disp.Issue(func(id uint32) (uint16, []byte, error) {
			return protocol.MsgTypeGNSLookup, encodeLookup(id, q), nil
		})
		if err != nil {
			for _, r := range requests[:i] {
				r.Cancel()
			}
			return nil, fmt.Errorf("query %d: %w", i, err)
		}
		requests[i] = req
	}

	results := make([][]Record, len(queries))
	for i, req := range requests {
		v, err := req.Await(ctx)
		if err != nil {
			for _, r := range requests {
				r.Cancel()
			}
			return nil, fmt.Errorf("query %d: %w", i, err)
		}
		req.Cancel() // no further results expected for this id
		results[i] = v.([]Record)
	}

	c.logger.Debug().Int("queries", len(queries)).Msg("lookup batch complete")
	return results, nil
}

// classifyResult extracts the correlation id from a LOOKUP_RESULT frame and
// decodes its records for routing. Any other message type on this channel is
// a protocol desync.
func classifyResult(msgType uint16, body []byte) service.Disposition {
	if msgType != protocol.MsgTypeGNSLookupResult {
		return service.Disposition{
			Verdict: service.VerdictReconnect,
			Err:     &protocol.UnexpectedMessageTypeError{Type: msgType},
		}
	}
	id, records, err := parseLookupResult(body)
	if err != nil {
		return service.Disposition{Verdict: service.VerdictReconnect, Err: err}
	}
	return service.Disposition{Verdict: service.VerdictDeliver, ID: id, Value: records}
}

// LOOKUP_RESULT body: id u32, record count u32, then the records.
func parseLookupResult(body []byte) (uint32, []Record, error) {
	if len(body) < 8 {
		return 0, nil, fmt.Errorf("%w: lookup result too short", protocol.ErrMalformed)
	}
	id := binary.BigEndian.Uint32(body[0:4])
	count := binary.BigEndian.Uint32(body[4:8])

	// Each record needs at least a header, so the count is bounded by the
	// body. A larger claim is hostile or corrupt; reject it before sizing
	// any allocation after it.
	if uint64(count) > uint64(len(body)-8)/recordHeaderSize {
		return 0, nil, fmt.Errorf("%w: record count %d exceeds body", protocol.ErrMalformed, count)
	}

	records := make([]Record, 0, count)
	off := 8
	for i := uint32(0); i < count; i++ {
		rec, n, err := parseRecord(body[off:])
		if err != nil {
			return 0, nil, err
		}
		records = append(records, rec)
		off += n
	}
	return id, records, nil
}

// LOOKUP body: id u32, zone key, options i16, have-shorten-key i16, record
// type i32, shorten key (zeros when absent), NUL-terminated name.
func encodeLookup(id uint32, q LookupQuery) []byte {
	body := make([]byte, 0, 4+crypto.KeySize+8+crypto.KeySize+len(q.Name)+1)

	body = binary.BigEndian.AppendUint32(body, id)
	body = append(body, q.Zone.Bytes()...)

	haveKey := uint16(0)
	shorten := make([]byte, crypto.KeySize)
	if q.Shorten != nil {
		haveKey = 1
		copy(shorten, q.Shorten.Bytes())
	}
	body = binary.BigEndian.AppendUint16(body, uint16(q.Options))
	body = binary.BigEndian.AppendUint16(body, haveKey)
	body = binary.BigEndian.AppendUint32(body, uint32(q.Type))
	body = append(body, shorten...)

	body = append(body, q.Name...)
	return append(body, 0)
}

// lookupOne runs a single-query batch and unwraps its first record.
func lookupOne(ctx context.Context, c *Client, q LookupQuery) (Record, error) {
	results, err := c.Lookup(ctx, []LookupQuery{q})
	if err != nil {
		return Record{}, err
	}
	if len(results[0]) == 0 {
		return Record{}, ErrNoRecords
	}
	return results[0][0], nil
}

// LookupRecord is the one-shot form: connect, resolve one query, disconnect.
// Use a Client when issuing several lookups. The service gives no deadline
// of its own; bound ctx externally.
func LookupRecord(ctx context.Context, cfg *config.Config, q LookupQuery, logger zerolog.Logger) (Record, error) {
	c, err := Connect(ctx, cfg, logger)
	if err != nil {
		return Record{}, err
	}
	defer c.Close()
	return lookupOne(ctx, c, q)
}

// LookupInMaster resolves a name in the zone of the default "gns-master"
// ego. Two-label ".gnu" names stay out of the DHT; everything else uses the
// local-master policy.
func LookupInMaster(ctx context.Context, cfg *config.Config, name string, rtype RecordType, shorten *crypto.EcdsaPrivateKey, logger zerolog.Logger) (Record, error) {
	ego, err := identity.GetDefaultEgo(ctx, cfg, "gns-master", logger)
	if err != nil {
		return Record{}, err
	}

	opts := OptionsLocalMaster
	if labels := strings.Split(name, "."); len(labels) == 2 && labels[1] == "gnu" {
		opts = OptionsNoDHT
	}

	return LookupRecord(ctx, cfg, LookupQuery{
		Name:    name,
		Zone:    ego.PublicKey(),
		Type:    rtype,
		Options: opts,
		Shorten: shorten,
	}, logger)
}
