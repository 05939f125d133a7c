// Package port owns one bus attachment end to end: it serializes
// exchanges, enforces the inter-packet timing budget, and captures
// protocol log events for every packet that crosses the line.
package port

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rdm-protocol/rdm-go/pkg/log"
	"github.com/rdm-protocol/rdm-go/pkg/timing"
	"github.com/rdm-protocol/rdm-go/pkg/transport"
)

// DefaultResponseTimeout is the generic wait for a response when the
// protocol's early response-lost deadline does not apply.
const DefaultResponseTimeout = 30 * time.Millisecond

// Port errors.
var (
	// ErrTimeout indicates no response arrived within the deadline.
	ErrTimeout = errors.New("response timeout")

	// ErrClosed indicates an exchange on a closed port.
	ErrClosed = errors.New("port closed")
)

// Expectation states what an exchange waits for after sending.
type Expectation uint8

const (
	// ExpectNone is a broadcast or other fire-and-forget send.
	ExpectNone Expectation = iota

	// ExpectResponse is a unicast request that should draw a response.
	ExpectResponse

	// ExpectDiscResponse is a discovery branch probe; silence is an
	// expected outcome and gets the long post-discovery spacing.
	ExpectDiscResponse
)

// Config configures a Port.
type Config struct {
	// Transport is the bus attachment. Required.
	Transport transport.Transport

	// Clock overrides the timing source. Nil uses the runtime clock.
	Clock timing.Clock

	// Logger receives protocol events. Nil disables capture.
	Logger log.Logger

	// ResponseTimeout overrides DefaultResponseTimeout.
	ResponseTimeout time.Duration

	// Role tags log events with the local endpoint's role.
	Role log.Role
}

// Port is one bus attachment. All exchanges on a port are serialized;
// RDM is half-duplex and a second request cannot overlap the first
// exchange's response window.
type Port struct {
	id      string
	tr      transport.Transport
	budget  *timing.Budget
	logger  log.Logger
	timeout time.Duration
	role    log.Role

	mu     sync.Mutex // serializes exchanges
	closed bool
}

// Open wraps a transport in a Port.
func Open(cfg Config) *Port {
	clock := cfg.Clock
	if clock == nil {
		clock = timing.NewSystemClock()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NoopLogger{}
	}
	timeout := cfg.ResponseTimeout
	if timeout == 0 {
		timeout = DefaultResponseTimeout
	}
	return &Port{
		id:      uuid.NewString(),
		tr:      cfg.Transport,
		budget:  timing.NewBudget(clock),
		logger:  logger,
		timeout: timeout,
		role:    cfg.Role,
	}
}

// ID returns the port's unique identifier.
func (p *Port) ID() string { return p.id }

// Close shuts the port and its transport down.
func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.tr.Close()
}

// Exchange performs one request/response turn: wait out the timing
// budget, drive the line, and collect at most one response. For
// ExpectNone the returned packet is always nil. A nil packet with a
// nil error never happens for ExpectResponse; silence is ErrTimeout.
func (p *Port) Exchange(ctx context.Context, request []byte, expect Expectation) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrClosed
	}

	if err := p.budget.WaitTurnaround(ctx); err != nil {
		return nil, err
	}

	// Anything still queued belongs to a previous exchange.
	p.drain()

	if err := p.tr.Send(request, true); err != nil {
		return nil, err
	}
	p.budget.MarkSent(sendCategory(expect))
	p.logPacket(log.DirectionOut, request)

	if expect == ExpectNone {
		return nil, nil
	}

	deadline := timing.ResponseDeadline(true, p.timeout)
	timer := time.NewTimer(deadline)
	defer timer.Stop()

	select {
	case pkt, ok := <-p.tr.Packets():
		if !ok {
			return nil, ErrClosed
		}
		p.budget.MarkReceived()
		p.logPacket(log.DirectionIn, pkt)
		return pkt, nil
	case <-timer.C:
		return nil, ErrTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// sendCategory picks the spacing category recorded at send time. A
// received response upgrades it to the short turnaround.
func sendCategory(expect Expectation) timing.Category {
	switch expect {
	case ExpectDiscResponse:
		return timing.CategoryDiscNoResponse
	case ExpectResponse:
		return timing.CategoryRequestNoResponse
	default:
		return timing.CategoryBroadcast
	}
}

// drain discards stale inbound packets. Exchanges always start from an
// empty receive queue.
func (p *Port) drain() {
	for {
		select {
		case pkt, ok := <-p.tr.Packets():
			if !ok {
				return
			}
			p.logDropped(pkt)
		default:
			return
		}
	}
}

func (p *Port) logPacket(dir log.Direction, data []byte) {
	p.logger.Log(log.Event{
		Timestamp: time.Now(),
		PortID:    p.id,
		Direction: dir,
		Layer:     log.LayerLine,
		Category:  log.CategoryMessage,
		LocalRole: p.role,
		Frame: &log.FrameEvent{
			Size: len(data),
			Data: data,
		},
	})
}

func (p *Port) logDropped(data []byte) {
	p.logger.Log(log.Event{
		Timestamp: time.Now(),
		PortID:    p.id,
		Direction: log.DirectionIn,
		Layer:     log.LayerLine,
		Category:  log.CategoryError,
		LocalRole: p.role,
		Error: &log.ErrorEventData{
			Layer:   log.LayerLine,
			Message: "stale packet discarded",
			Context: "exchange start",
		},
	})
}
