package persistence

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rdm-protocol/rdm-go/pkg/uid"
)

func TestDeviceStateRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "device.json")
	store := NewDeviceStateStore(path)

	saved := &DeviceState{
		StartAddress: 42,
		Personality:  2,
		DeviceLabel:  "stage left wash",
	}
	require.NoError(t, store.Save(saved))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, StateVersion, loaded.Version)
	assert.Equal(t, uint16(42), loaded.StartAddress)
	assert.Equal(t, uint8(2), loaded.Personality)
	assert.Equal(t, "stage left wash", loaded.DeviceLabel)
	assert.False(t, loaded.SavedAt.IsZero())
}

func TestDeviceStateLoadMissing(t *testing.T) {
	store := NewDeviceStateStore(filepath.Join(t.TempDir(), "missing.json"))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestDeviceStateClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device.json")
	store := NewDeviceStateStore(path)

	require.NoError(t, store.Save(&DeviceState{StartAddress: 1}))
	require.NoError(t, store.Clear())

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, loaded)

	// Clearing twice is fine.
	require.NoError(t, store.Clear())
}

func TestControllerStateRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "controller.json")
	store := NewControllerStateStore(path)

	device := uid.New(0x05e0, 0x00000042)
	saved := &ControllerState{
		Devices: []KnownDevice{
			{
				UID:     device.String(),
				Model:   0x0521,
				Label:   "dimmer rack 3",
				FoundAt: time.Now(),
			},
		},
	}
	require.NoError(t, store.Save(saved))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Len(t, loaded.Devices, 1)
	assert.Equal(t, uint16(0x0521), loaded.Devices[0].Model)

	parsed, err := loaded.Devices[0].ParseUID()
	require.NoError(t, err)
	assert.Equal(t, device, parsed)
}

func TestKnownDeviceBadUID(t *testing.T) {
	d := &KnownDevice{UID: "not-a-uid"}
	_, err := d.ParseUID()
	assert.Error(t, err)
}
