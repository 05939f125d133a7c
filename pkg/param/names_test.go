package param

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPIDName(t *testing.T) {
	assert.Equal(t, "DEVICE_INFO", PIDName(PIDDeviceInfo))
	assert.Equal(t, "DISC_UNIQUE_BRANCH", PIDName(PIDDiscUniqueBranch))
	assert.Equal(t, "", PIDName(PID(0x8001)), "manufacturer parameters have no fixed name")
}

func TestResolvePIDName(t *testing.T) {
	pid, ok := ResolvePIDName("device_info")
	require.True(t, ok)
	assert.Equal(t, PIDDeviceInfo, pid)

	pid, ok = ResolvePIDName("DMX_START_ADDRESS")
	require.True(t, ok)
	assert.Equal(t, PIDDMXStartAddress, pid)

	_, ok = ResolvePIDName("no_such_parameter")
	assert.False(t, ok)
}
