package transport

import (
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial.v1"
)

// DMX line settings: 250 kbaud, 8 data bits, no parity, 2 stop bits.
var dmxMode = &serial.Mode{
	BaudRate: 250000,
	DataBits: 8,
	Parity:   serial.NoParity,
	StopBits: serial.TwoStopBits,
}

// breakMode is used to emulate the break condition on adapters without
// native break support: one zero byte at this rate holds the line low
// for roughly 198 us, comfortably past the 88 us minimum, and the stop
// bits supply the mark-after-break.
var breakMode = &serial.Mode{
	BaudRate: 45455,
	DataBits: 8,
	Parity:   serial.NoParity,
	StopBits: serial.TwoStopBits,
}

// SerialTransport drives an RS-485 adapter as one RDM bus attachment.
type SerialTransport struct {
	mu      sync.Mutex
	port    serial.Port
	closed  bool
	packets chan []byte

	// interSlotTimeout is the quiet period that ends an inbound packet.
	interSlotTimeout time.Duration
}

// OpenSerial opens the named serial device at DMX line settings and
// starts the receive loop.
func OpenSerial(name string) (*SerialTransport, error) {
	port, err := serial.Open(name, dmxMode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}

	t := &SerialTransport{
		port:             port,
		packets:          make(chan []byte, 8),
		interSlotTimeout: DefaultInterSlotTimeout,
	}
	chunks := make(chan []byte, 8)
	go t.readLoop(chunks)
	go t.assembleLoop(chunks)
	return t, nil
}

// Send writes one packet to the line, preceded by a break condition
// when breakBefore is set.
func (t *SerialTransport) Send(data []byte, breakBefore bool) error {
	if len(data) > MaxPacketSize {
		return fmt.Errorf("%w: %d bytes", ErrPacketTooLarge, len(data))
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}

	if breakBefore {
		if err := t.sendBreak(); err != nil {
			return err
		}
	}
	_, err := t.port.Write(data)
	return err
}

// sendBreak emulates a break by sending a zero byte at a slower rate.
// Callers hold t.mu.
func (t *SerialTransport) sendBreak() error {
	if err := t.port.SetMode(breakMode); err != nil {
		return err
	}
	if _, err := t.port.Write([]byte{0x00}); err != nil {
		return err
	}
	return t.port.SetMode(dmxMode)
}

// Packets delivers completed inbound packets.
func (t *SerialTransport) Packets() <-chan []byte {
	return t.packets
}

// Close shuts the port down. The packets channel closes once the
// receive loop drains.
func (t *SerialTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	return t.port.Close()
}

// readLoop pulls raw bytes off the adapter until the port closes.
func (t *SerialTransport) readLoop(chunks chan<- []byte) {
	defer close(chunks)
	buf := make([]byte, 256)
	for {
		n, err := t.port.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			chunks <- chunk
		}
		if err != nil {
			return
		}
	}
}

// assembleLoop packetizes the byte stream. A frame ends when it is
// self-describing and complete, or when the line stays quiet past the
// inter-slot budget.
func (t *SerialTransport) assembleLoop(chunks <-chan []byte) {
	defer close(t.packets)

	asm := newAssembler(t.packets)
	timer := time.NewTimer(t.interSlotTimeout)
	defer timer.Stop()

	for {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				asm.Flush()
				return
			}
			asm.Write(chunk)
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(t.interSlotTimeout)
		case <-timer.C:
			asm.Flush()
			timer.Reset(t.interSlotTimeout)
		}
	}
}

// Compile-time interface satisfaction check.
var _ Transport = (*SerialTransport)(nil)
