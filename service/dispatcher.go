package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gnunet-go/gnunet/protocol"
	"github.com/rs/zerolog"
)

// ErrCancelled is returned by Await after the request was cancelled.
var ErrCancelled = errors.New("request cancelled")

// Verdict tells the read-dispatch loop what to do with a classified frame.
type Verdict int

const (
	// VerdictContinue: frame consumed by the classifier, keep reading.
	VerdictContinue Verdict = iota
	// VerdictDeliver: route Value to the pending request matching ID.
	VerdictDeliver
	// VerdictReconnect: protocol desync; tear the channel down and fail
	// every pending request.
	VerdictReconnect
	// VerdictShutdown: graceful end of the read loop.
	VerdictShutdown
)

// Disposition is a classifier's decision about one inbound frame.
type Disposition struct {
	Verdict Verdict
	ID      uint32
	Value   any
	Err     error // cause attached to VerdictReconnect
}

// pendingResultBuffer is how many routed results a pending request may hold
// before the read loop blocks on its consumer. Replies arriving out of issue
// order must not stall the loop while the caller still awaits an earlier id.
const pendingResultBuffer = 8

// Classifier decodes one protocol frame and extracts the correlation id
// embedded in its payload. The dispatcher itself never parses
// protocol-specific bodies.
type Classifier func(msgType uint16, body []byte) Disposition

// Dispatcher multiplexes correlated request/response exchanges over one
// Channel. It assigns per-channel correlation ids, owns the pending-request
// table and runs the read-dispatch loop for the channel's lifetime.
type Dispatcher struct {
	ch       *Channel
	classify Classifier
	logger   zerolog.Logger

	mu      sync.Mutex
	nextID  uint32
	pending map[uint32]*PendingRequest
	closed  bool
	cause   error

	// closed when the read loop exits
	done chan struct{}
}

// PendingRequest is the caller's handle for results correlated to one
// issued request.
type PendingRequest struct {
	id uint32
	d  *Dispatcher

	results chan any
	done    chan struct{}
	err     error // set before done is closed, by the single closer
}

// NewDispatcher starts the read-dispatch loop for ch. The dispatcher owns
// the channel from here on; tear both down with Close.
func NewDispatcher(ch *Channel, classify Classifier, logger zerolog.Logger) *Dispatcher {
	d := &Dispatcher{
		ch:       ch,
		classify: classify,
		logger:   logger.With().Str("component", "dispatcher").Logger(),
		pending:  make(map[uint32]*PendingRequest),
		done:     make(chan struct{}),
	}
	go d.readLoop()
	return d
}

// Issue allocates the next correlation id, lets build embed it in the
// request payload, registers the pending entry and sends the frame. The
// entry is registered before the send so a reply can never race past it.
func (d *Dispatcher) Issue(build func(id uint32) (msgType uint16, body []byte, err error)) (*PendingRequest, error) {
	d.mu.Lock()
	if d.closed {
		cause := d.cause
		d.mu.Unlock()
		return nil, cause
	}
	id := d.nextID
	d.nextID++
	if _, exists := d.pending[id]; exists {
		d.mu.Unlock()
		panic(fmt.Sprintf("service: correlation id %d already pending", id))
	}
	p := &PendingRequest{
		id:      id,
		d:       d,
		results: make(chan any, pendingResultBuffer),
		done:    make(chan struct{}),
	}
	d.pending[id] = p
	d.mu.Unlock()

	msgType, body, err := build(id)
	if err != nil {
		p.Cancel()
		return nil, err
	}
	if err := d.ch.Send(msgType, body); err != nil {
		p.Cancel()
		return nil, err
	}
	return p, nil
}

// Err returns the terminal error once the read loop has ended, nil before.
func (d *Dispatcher) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cause
}

// Close tears down the channel, fails every outstanding request with
// ErrDisconnected and waits for the read loop to exit.
func (d *Dispatcher) Close() error {
	err := d.ch.Close()
	<-d.done
	return err
}

func (d *Dispatcher) readLoop() {
	defer close(d.done)
	for {
		msgType, body, err := d.ch.ReadNext()
		if err != nil {
			d.logger.Debug().Err(err).Msg("read loop ended")
			d.failAll(disconnected(err))
			return
		}

		disp := d.classify(msgType, body)
		switch disp.Verdict {
		case VerdictContinue:

		case VerdictDeliver:
			d.route(disp.ID, disp.Value)

		case VerdictReconnect:
			cause := disp.Err
			if cause == nil {
				cause = &protocol.UnexpectedMessageTypeError{Type: msgType}
			}
			d.logger.Error().Err(cause).Uint16("msg_type", msgType).Msg("protocol desync, tearing down channel")
			d.ch.Close()
			d.failAll(disconnected(cause))
			return

		case VerdictShutdown:
			d.logger.Debug().Msg("dispatcher shutdown requested")
			d.ch.Close()
			d.failAll(protocol.ErrDisconnected)
			return
		}
	}
}

// route hands a decoded value to the pending request matching id. A late
// result for a completed or cancelled request is dropped silently.
func (d *Dispatcher) route(id uint32, v any) {
	d.mu.Lock()
	p := d.pending[id]
	d.mu.Unlock()

	if p == nil {
		d.logger.Debug().Uint32("id", id).Msg("dropping result with no pending request")
		return
	}

	select {
	case p.results <- v:
	case <-p.done:
	}
}

// failAll removes every pending entry and resolves it with err. Idempotent.
func (d *Dispatcher) failAll(err error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.cause = err
	pending := d.pending
	d.pending = make(map[uint32]*PendingRequest)
	d.mu.Unlock()

	for _, p := range pending {
		p.err = err
		close(p.done)
	}
	if len(pending) > 0 {
		d.logger.Debug().Int("pending", len(pending)).Err(err).Msg("failed pending requests")
	}
}

func disconnected(cause error) error {
	if errors.Is(cause, protocol.ErrDisconnected) {
		return cause
	}
	return fmt.Errorf("%w: %w", protocol.ErrDisconnected, cause)
}

// ID returns the correlation id assigned to this request.
func (p *PendingRequest) ID() uint32 {
	return p.id
}

// Await blocks for the next result routed to this request's id. Context
// expiry cancels the request as a side effect, so a later matching frame is
// dropped rather than delivered to a waiter that gave up.
func (p *PendingRequest) Await(ctx context.Context) (any, error) {
	// A result routed before teardown still counts; drain it first.
	select {
	case v := <-p.results:
		return v, nil
	default:
	}

	select {
	case v := <-p.results:
		return v, nil
	case <-p.done:
		return nil, p.err
	case <-ctx.Done():
		p.Cancel()
		return nil, ctx.Err()
	}
}

// Cancel removes the pending entry: subsequent frames for this id are
// dropped silently, the shared channel and other pending requests are
// unaffected. Safe to call more than once.
func (p *PendingRequest) Cancel() {
	p.d.mu.Lock()
	if _, ok := p.d.pending[p.id]; !ok {
		// already cancelled, completed or failed by teardown
		p.d.mu.Unlock()
		return
	}
	delete(p.d.pending, p.id)
	p.d.mu.Unlock()

	p.err = ErrCancelled
	close(p.done)
}
