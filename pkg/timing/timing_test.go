package timing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// manualClock is a hand-cranked Clock for tests.
type manualClock struct {
	now   int64
	slept []int64
}

func (c *manualClock) NowMicros() int64 { return c.now }

func (c *manualClock) SleepMicros(ctx context.Context, d int64) error {
	c.slept = append(c.slept, d)
	c.now += d
	return ctx.Err()
}

func TestSpacingTable(t *testing.T) {
	assert.Equal(t, time.Duration(0), Spacing(CategoryNone))
	assert.Equal(t, 5800*time.Microsecond, Spacing(CategoryDiscNoResponse))
	assert.Equal(t, 176*time.Microsecond, Spacing(CategoryBroadcast))
	assert.Equal(t, 3000*time.Microsecond, Spacing(CategoryRequestNoResponse))
	assert.Equal(t, 176*time.Microsecond, Spacing(CategoryResponded))
}

func TestWaitTurnaroundArmsAlarmForDelta(t *testing.T) {
	clock := &manualClock{}
	b := NewBudget(clock)

	b.MarkSent(CategoryRequestNoResponse)
	clock.now += 1000 // 1 ms of the 3 ms gap already gone

	require.NoError(t, b.WaitTurnaround(context.Background()))
	require.Len(t, clock.slept, 1)
	assert.Equal(t, int64(2000), clock.slept[0])
}

func TestWaitTurnaroundFastPath(t *testing.T) {
	clock := &manualClock{}
	b := NewBudget(clock)

	// No previous event: no gap at all.
	require.NoError(t, b.WaitTurnaround(context.Background()))
	assert.Empty(t, clock.slept)

	// Gap already elapsed: no alarm armed.
	b.MarkSent(CategoryBroadcast)
	clock.now += 500
	require.NoError(t, b.WaitTurnaround(context.Background()))
	assert.Empty(t, clock.slept)
}

func TestMarkReceivedUsesTurnaroundSpacing(t *testing.T) {
	clock := &manualClock{}
	b := NewBudget(clock)

	b.MarkSent(CategoryDiscNoResponse)
	b.MarkReceived()

	assert.Equal(t, 176*time.Microsecond, b.Remaining())
}

func TestResponseDeadline(t *testing.T) {
	generic := 50 * time.Millisecond

	// Expecting a response: wake early at the response-lost point.
	assert.Equal(t, ResponseLostAfter, ResponseDeadline(true, generic))

	// Broadcast or fire-and-forget: the generic timeout stands.
	assert.Equal(t, generic, ResponseDeadline(false, generic))

	// Never extend a caller deadline shorter than the protocol one.
	assert.Equal(t, time.Millisecond, ResponseDeadline(true, time.Millisecond))
}

func TestWaitTurnaroundCancelled(t *testing.T) {
	clock := &manualClock{}
	b := NewBudget(clock)
	b.MarkSent(CategoryDiscNoResponse)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, b.WaitTurnaround(ctx), context.Canceled)
}
