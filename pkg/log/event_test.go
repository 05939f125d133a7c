package log

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEvent() Event {
	rt := uint8(0x02)
	nr := uint16(0x0006)
	return Event{
		Timestamp: time.Now().UTC(),
		PortID:    uuid.NewString(),
		Direction: DirectionIn,
		Layer:     LayerFrame,
		Category:  CategoryMessage,
		LocalRole: RoleController,
		DeviceUID: "05e0:00000042",
		Message: &MessageEvent{
			TN:           7,
			CC:           0x21,
			PID:          0x0060,
			ResponseType: &rt,
			NackReason:   &nr,
			PDL:          2,
		},
	}
}

func TestEventRoundTrip(t *testing.T) {
	event := testEvent()

	data, err := EncodeEvent(event)
	require.NoError(t, err)

	got, err := DecodeEvent(data)
	require.NoError(t, err)

	assert.True(t, event.Timestamp.Equal(got.Timestamp))
	assert.Equal(t, event.PortID, got.PortID)
	assert.Equal(t, event.Direction, got.Direction)
	assert.Equal(t, event.Layer, got.Layer)
	assert.Equal(t, event.Category, got.Category)
	assert.Equal(t, event.DeviceUID, got.DeviceUID)
	require.NotNil(t, got.Message)
	assert.Equal(t, event.Message.TN, got.Message.TN)
	assert.Equal(t, event.Message.CC, got.Message.CC)
	assert.Equal(t, event.Message.PID, got.Message.PID)
	require.NotNil(t, got.Message.NackReason)
	assert.Equal(t, uint16(0x0006), *got.Message.NackReason)
}

func TestDiscoveryEventRoundTrip(t *testing.T) {
	event := Event{
		Timestamp: time.Now().UTC(),
		PortID:    uuid.NewString(),
		Direction: DirectionOut,
		Layer:     LayerEngine,
		Category:  CategoryDiscovery,
		Discovery: &DiscoveryEvent{
			Outcome: DiscoveryCollision,
			Lower:   "0000:00000000",
			Upper:   "ffff:fffffffe",
		},
	}

	data, err := EncodeEvent(event)
	require.NoError(t, err)

	got, err := DecodeEvent(data)
	require.NoError(t, err)
	require.NotNil(t, got.Discovery)
	assert.Equal(t, DiscoveryCollision, got.Discovery.Outcome)
	assert.Equal(t, "ffff:fffffffe", got.Discovery.Upper)
	assert.Empty(t, got.Discovery.Found)
}

func TestEnumStrings(t *testing.T) {
	assert.Equal(t, "IN", DirectionIn.String())
	assert.Equal(t, "OUT", DirectionOut.String())
	assert.Equal(t, "LINE", LayerLine.String())
	assert.Equal(t, "FRAME", LayerFrame.String())
	assert.Equal(t, "ENGINE", LayerEngine.String())
	assert.Equal(t, "DISCOVERY", CategoryDiscovery.String())
	assert.Equal(t, "RESPONDER", RoleResponder.String())
	assert.Equal(t, "COLLISION", DiscoveryCollision.String())
	assert.Equal(t, "UNKNOWN", Layer(99).String())
	assert.Equal(t, "UNKNOWN", DiscoveryOutcome(99).String())
}

func TestDecodeEventBadData(t *testing.T) {
	_, err := DecodeEvent([]byte{0xff, 0x00, 0x01})
	assert.Error(t, err)
}
