package port

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rdm-protocol/rdm-go/pkg/log"
	"github.com/rdm-protocol/rdm-go/pkg/transport"
)

// echoTransport answers every send with a canned packet.
type echoTransport struct {
	packets  chan []byte
	sent     [][]byte
	breaks   []bool
	response []byte
	closed   bool
}

func newEchoTransport(response []byte) *echoTransport {
	return &echoTransport{
		packets:  make(chan []byte, 4),
		response: response,
	}
}

func (t *echoTransport) Send(data []byte, breakBefore bool) error {
	t.sent = append(t.sent, data)
	t.breaks = append(t.breaks, breakBefore)
	if t.response != nil {
		t.packets <- t.response
	}
	return nil
}

func (t *echoTransport) Packets() <-chan []byte { return t.packets }

func (t *echoTransport) Close() error {
	if !t.closed {
		t.closed = true
		close(t.packets)
	}
	return nil
}

func TestExchangeResponse(t *testing.T) {
	tr := newEchoTransport([]byte{0xcc, 0x01})
	p := Open(Config{Transport: tr})

	got, err := p.Exchange(context.Background(), []byte{0x01}, ExpectResponse)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xcc, 0x01}, got)

	require.Len(t, tr.sent, 1)
	assert.True(t, tr.breaks[0], "requests are sent with a break")
}

func TestExchangeBroadcast(t *testing.T) {
	tr := newEchoTransport(nil)
	p := Open(Config{Transport: tr})

	got, err := p.Exchange(context.Background(), []byte{0x01}, ExpectNone)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestExchangeTimeout(t *testing.T) {
	tr := newEchoTransport(nil)
	p := Open(Config{Transport: tr, ResponseTimeout: 5 * time.Millisecond})

	start := time.Now()
	_, err := p.Exchange(context.Background(), []byte{0x01}, ExpectResponse)
	assert.ErrorIs(t, err, ErrTimeout)

	// The protocol response-lost deadline beats the generic timeout.
	assert.Less(t, time.Since(start), 5*time.Millisecond)
}

func TestExchangeDrainsStalePackets(t *testing.T) {
	tr := newEchoTransport([]byte{0x02})
	p := Open(Config{Transport: tr})

	// A leftover from a previous exchange must not be mistaken for the
	// next response.
	tr.packets <- []byte{0xff}

	got, err := p.Exchange(context.Background(), []byte{0x01}, ExpectResponse)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x02}, got)
}

func TestExchangeAfterClose(t *testing.T) {
	tr := newEchoTransport(nil)
	p := Open(Config{Transport: tr})
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	_, err := p.Exchange(context.Background(), []byte{0x01}, ExpectNone)
	assert.ErrorIs(t, err, ErrClosed)
	assert.True(t, tr.closed)
}

func TestExchangeCancelled(t *testing.T) {
	tr := newEchoTransport(nil)
	p := Open(Config{Transport: tr})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Exchange(ctx, []byte{0x01}, ExpectResponse)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExchangeLogsTraffic(t *testing.T) {
	var events []log.Event
	capture := loggerFunc(func(e log.Event) { events = append(events, e) })

	tr := newEchoTransport([]byte{0x02})
	p := Open(Config{Transport: tr, Logger: capture, Role: log.RoleController})

	_, err := p.Exchange(context.Background(), []byte{0x01}, ExpectResponse)
	require.NoError(t, err)

	require.Len(t, events, 2)
	assert.Equal(t, log.DirectionOut, events[0].Direction)
	assert.Equal(t, log.DirectionIn, events[1].Direction)
	assert.Equal(t, p.ID(), events[0].PortID)
	assert.Equal(t, log.RoleController, events[0].LocalRole)
}

// loggerFunc adapts a function to the log.Logger interface.
type loggerFunc func(log.Event)

func (f loggerFunc) Log(e log.Event) { f(e) }

var _ transport.Transport = (*echoTransport)(nil)
