package transport

import (
	"errors"
	"time"
)

// Transport errors.
var (
	// ErrClosed indicates an operation on a closed transport.
	ErrClosed = errors.New("transport closed")

	// ErrPacketTooLarge indicates a write larger than one RDM packet
	// can be.
	ErrPacketTooLarge = errors.New("packet too large")
)

// MaxPacketSize bounds a single write. Nothing on an RDM line is
// larger than a full normal packet.
const MaxPacketSize = 257

// Transport is one half-duplex bus attachment.
//
// Send drives the line; the packet is written in one piece, preceded
// by a break condition when breakBefore is set. Normal packets require
// the break; discovery responses are sent without one.
//
// Packets delivers completed inbound packets. The channel is closed
// when the transport closes. Delivered slices are owned by the
// receiver.
type Transport interface {
	Send(data []byte, breakBefore bool) error
	Packets() <-chan []byte
	Close() error
}

// DefaultInterSlotTimeout is the receive lull that marks the end of an
// inbound packet when its length cannot be known up front. The RDM
// inter-slot budget is 2.1 ms; anything quieter than that for longer
// is a finished packet.
const DefaultInterSlotTimeout = 2100 * time.Microsecond

// assembler turns a byte stream into packets. Bytes accumulate until
// either the frame is self-evidently complete or the line goes quiet;
// the owner reports quiet periods by calling Flush.
//
// assembler is not safe for concurrent use; each transport owns one
// and feeds it from its receive loop.
type assembler struct {
	buf []byte
	out chan<- []byte
}

func newAssembler(out chan<- []byte) *assembler {
	return &assembler{out: out}
}

// Write appends received bytes and emits a packet as soon as the
// buffer holds a complete, self-describing frame.
func (a *assembler) Write(data []byte) {
	a.buf = append(a.buf, data...)
	for {
		n := completeFrameLen(a.buf)
		if n == 0 {
			return
		}
		a.emit(n)
	}
}

// Flush emits whatever has accumulated. Called when the line has been
// quiet past the inter-slot budget, or when a break marks a new frame.
func (a *assembler) Flush() {
	if len(a.buf) > 0 {
		a.emit(len(a.buf))
	}
}

func (a *assembler) emit(n int) {
	pkt := make([]byte, n)
	copy(pkt, a.buf[:n])
	a.buf = a.buf[:copy(a.buf, a.buf[n:])]
	a.out <- pkt
}

// completeFrameLen returns the length of a finished frame at the head
// of buf, or 0 if more bytes are needed. Normal RDM packets declare
// their length in slot 2; discovery responses are recognized by their
// preamble and have a fixed encoded size after the delimiter.
func completeFrameLen(buf []byte) int {
	if len(buf) == 0 {
		return 0
	}

	if buf[0] == 0xcc {
		if len(buf) < 3 {
			return 0
		}
		total := int(buf[2]) + 2 // message length plus checksum
		if len(buf) >= total && total >= 3 {
			return total
		}
		return 0
	}

	if buf[0] == 0xfe || buf[0] == 0xaa {
		for i := 0; i <= 7 && i < len(buf); i++ {
			if buf[i] == 0xaa {
				if total := i + 1 + 16; len(buf) >= total {
					return total
				}
				return 0
			}
		}
		if len(buf) > 8 {
			// Preamble with no delimiter inside the scan window:
			// surface it and let the decoder reject it.
			return len(buf)
		}
		return 0
	}

	// Not RDM traffic. Wait for the quiet-line flush.
	return 0
}
