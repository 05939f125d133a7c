// Package busharness provides a deterministic in-memory DMX512 line
// for tests. Responders attach as synchronous packet handlers; the
// controller attaches through a Tap that satisfies the transport
// interface. When several responders answer the same request at once,
// the harness delivers the bitwise OR of their line output, which is
// what a real receiver sees during a discovery collision.
package busharness

import (
	"sync"

	"github.com/rdm-protocol/rdm-go/pkg/transport"
)

// Responder is the synchronous handler side of a simulated device.
// HandlePacket consumes one inbound packet and reports whether the
// device drives the line in reply.
type Responder interface {
	HandlePacket(data []byte) (resp []byte, breakBefore bool, ok bool)
}

// Bus is one simulated line. The zero value is not usable; call NewBus.
type Bus struct {
	mu         sync.Mutex
	responders []Responder
	taps       []*Tap

	// DropResponses swallows all responder output while set, simulating
	// a cut line.
	DropResponses bool
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Attach adds a responder to the line.
func (b *Bus) Attach(r Responder) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.responders = append(b.responders, r)
}

// NewTap attaches a controller-side transport to the line.
func (b *Bus) NewTap() *Tap {
	b.mu.Lock()
	defer b.mu.Unlock()
	t := &Tap{
		bus:     b,
		packets: make(chan []byte, 16),
	}
	b.taps = append(b.taps, t)
	return t
}

// dispatch delivers one request to every responder and merges whatever
// they drive back onto the line.
func (b *Bus) dispatch(from *Tap, data []byte) {
	b.mu.Lock()
	responders := append([]Responder(nil), b.responders...)
	drop := b.DropResponses
	b.mu.Unlock()

	var merged []byte
	answered := 0
	for _, r := range responders {
		resp, _, ok := r.HandlePacket(data)
		if !ok {
			continue
		}
		answered++
		merged = orMerge(merged, resp)
	}

	if answered == 0 || drop {
		return
	}
	from.deliver(merged)
}

// orMerge overlays b onto a the way two transmitters overlay on a
// wired-OR line.
func orMerge(a, b []byte) []byte {
	if len(b) > len(a) {
		a, b = b, a
	}
	out := append([]byte(nil), a...)
	for i := range b {
		out[i] |= b[i]
	}
	return out
}

// Tap is the controller-side attachment. It satisfies the transport
// interface: sends run the whole request/response turn synchronously,
// and any line response is waiting on Packets before Send returns.
type Tap struct {
	bus *Bus

	mu      sync.Mutex
	closed  bool
	packets chan []byte
}

// Send drives the line with one packet.
func (t *Tap) Send(data []byte, breakBefore bool) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return transport.ErrClosed
	}
	t.mu.Unlock()

	if len(data) > transport.MaxPacketSize {
		return transport.ErrPacketTooLarge
	}

	pkt := append([]byte(nil), data...)
	t.bus.dispatch(t, pkt)
	return nil
}

// Packets delivers line responses.
func (t *Tap) Packets() <-chan []byte {
	return t.packets
}

// Close detaches the tap.
func (t *Tap) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	close(t.packets)
	return nil
}

func (t *Tap) deliver(data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	select {
	case t.packets <- data:
	default:
		// Receiver overrun: the line does not wait.
	}
}

// Compile-time interface satisfaction check.
var _ transport.Transport = (*Tap)(nil)
