// Package timing enforces the inter-packet spacing the RDM physical
// layer mandates. A Budget tracks the last bus event per port and
// blocks a sender until the minimum gap for the previous packet's
// category has elapsed; it also supplies the early response-lost
// deadline used to shorten discovery.
package timing

import (
	"context"
	"time"
)

// Spacing categories. The gap required before the next transmission
// depends on what the previous packet was and whether it drew a
// response.
type Category uint8

const (
	// CategoryNone means no packet has been seen yet; no gap applies.
	CategoryNone Category = iota

	// CategoryDiscNoResponse follows a discovery request that drew no
	// response.
	CategoryDiscNoResponse

	// CategoryBroadcast follows a broadcast packet, which never draws
	// a response.
	CategoryBroadcast

	// CategoryRequestNoResponse follows a unicast request that drew no
	// response.
	CategoryRequestNoResponse

	// CategoryResponded follows a packet whose exchange completed with
	// a received response.
	CategoryResponded
)

// Protocol timing constants, in microseconds, from ANSI E1.20.
const (
	// SpacingDiscNoResponse is the wait after an unanswered discovery
	// request before the line may be driven again.
	SpacingDiscNoResponse = 5800 * time.Microsecond

	// SpacingBroadcast is the wait after a broadcast packet.
	SpacingBroadcast = 176 * time.Microsecond

	// SpacingRequestNoResponse is the wait after an unanswered unicast
	// request.
	SpacingRequestNoResponse = 3000 * time.Microsecond

	// SpacingResponded is the wait after receiving a response before
	// the next packet.
	SpacingResponded = 176 * time.Microsecond

	// ResponseLostAfter is how long a controller waits for the first
	// response byte before declaring the response lost. Used as an
	// early-wake deadline instead of a generic I/O timeout.
	ResponseLostAfter = 2800 * time.Microsecond
)

// Spacing returns the minimum gap required after a packet of the given
// category.
func Spacing(c Category) time.Duration {
	switch c {
	case CategoryDiscNoResponse:
		return SpacingDiscNoResponse
	case CategoryBroadcast:
		return SpacingBroadcast
	case CategoryRequestNoResponse:
		return SpacingRequestNoResponse
	case CategoryResponded:
		return SpacingResponded
	default:
		return 0
	}
}

// Clock abstracts the monotonic microsecond timestamp source and the
// one-shot alarm the transport collaborator provides. The default
// implementation is backed by the runtime clock; tests substitute a
// manual clock.
type Clock interface {
	// NowMicros returns a monotonic timestamp in microseconds.
	NowMicros() int64

	// SleepMicros blocks until d microseconds have elapsed or ctx is
	// done, whichever is first.
	SleepMicros(ctx context.Context, d int64) error
}

// SystemClock is the runtime-backed Clock.
type SystemClock struct {
	base time.Time
}

// NewSystemClock returns a Clock backed by the runtime's monotonic
// clock.
func NewSystemClock() *SystemClock {
	return &SystemClock{base: time.Now()}
}

// NowMicros returns microseconds since the clock was created.
func (c *SystemClock) NowMicros() int64 {
	return time.Since(c.base).Microseconds()
}

// SleepMicros arms a one-shot timer for d microseconds.
func (c *SystemClock) SleepMicros(ctx context.Context, d int64) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(time.Duration(d) * time.Microsecond)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Budget tracks the last bus event on one port and enforces spacing
// before the next transmission. Budget is not safe for concurrent use;
// the port serializes exchanges around it.
type Budget struct {
	clock Clock

	lastEvent    int64 // microseconds, valid when lastCategory != CategoryNone
	lastCategory Category
}

// NewBudget returns a Budget using the given clock.
func NewBudget(clock Clock) *Budget {
	return &Budget{clock: clock}
}

// MarkSent records a transmission and the category that governs the
// gap before the next one.
func (b *Budget) MarkSent(c Category) {
	b.lastEvent = b.clock.NowMicros()
	b.lastCategory = c
}

// MarkReceived records a received packet; the next transmission only
// needs the post-response turnaround gap.
func (b *Budget) MarkReceived() {
	b.lastEvent = b.clock.NowMicros()
	b.lastCategory = CategoryResponded
}

// Remaining returns how much of the required gap is still outstanding.
// Zero means the line may be driven immediately.
func (b *Budget) Remaining() time.Duration {
	if b.lastCategory == CategoryNone {
		return 0
	}
	elapsed := b.clock.NowMicros() - b.lastEvent
	required := Spacing(b.lastCategory).Microseconds()
	if elapsed >= required {
		return 0
	}
	return time.Duration(required-elapsed) * time.Microsecond
}

// WaitTurnaround blocks until the required gap since the last bus
// event has elapsed. If it already has, it returns immediately without
// arming an alarm.
func (b *Budget) WaitTurnaround(ctx context.Context) error {
	remaining := b.Remaining()
	if remaining <= 0 {
		return ctx.Err()
	}
	return b.clock.SleepMicros(ctx, remaining.Microseconds())
}

// ResponseDeadline returns the wait budget for the first byte of a
// response to a just-sent request. Requests and discovery branches use
// the early response-lost deadline; fallback is the caller's generic
// timeout.
func ResponseDeadline(expectingResponse bool, fallback time.Duration) time.Duration {
	if expectingResponse && ResponseLostAfter < fallback {
		return ResponseLostAfter
	}
	return fallback
}
