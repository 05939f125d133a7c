package uid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrdering(t *testing.T) {
	ordered := []UID{
		Null,
		{0x0000, 0x00000001},
		{0x0000, 0xffffffff},
		{0x0001, 0x00000000},
		{0x05e0, 0x00000001},
		{0x05e0, 0x00000002},
		{0x05e1, 0x00000000},
		Max,
		BroadcastAll,
	}

	for i, a := range ordered {
		for j, b := range ordered {
			switch {
			case i < j:
				assert.True(t, a.Less(b), "%v < %v", a, b)
				assert.Equal(t, -1, a.Compare(b))
			case i == j:
				assert.False(t, a.Less(b))
				assert.True(t, a.LessOrEqual(b))
				assert.Equal(t, 0, a.Compare(b))
			default:
				assert.False(t, a.Less(b), "%v >= %v", a, b)
				assert.Equal(t, 1, a.Compare(b))
			}
		}
	}
}

func TestIsTarget(t *testing.T) {
	self := UID{0x05e0, 0x12345678}

	tests := []struct {
		name string
		dest UID
		want bool
	}{
		{"exact match", self, true},
		{"broadcast all", BroadcastAll, true},
		{"manufacturer broadcast matching", Broadcast(0x05e0), true},
		{"manufacturer broadcast other", Broadcast(0x05e1), false},
		{"other unicast", UID{0x05e0, 0x12345679}, false},
		{"other manufacturer unicast", UID{0x05e1, 0x12345678}, false},
		{"null", Null, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, self.IsTarget(tt.dest))
		})
	}
}

func TestPredicates(t *testing.T) {
	assert.True(t, Null.IsNull())
	assert.False(t, Null.IsBroadcast())
	assert.True(t, BroadcastAll.IsBroadcast())
	assert.True(t, BroadcastAll.IsBroadcastAll())
	assert.True(t, Broadcast(0x1234).IsBroadcast())
	assert.False(t, Broadcast(0x1234).IsBroadcastAll())
	assert.False(t, Max.IsBroadcast())

	assert.True(t, UID{0x05e0, 1}.IsValidDeviceAddress())
	assert.True(t, Max.IsValidDeviceAddress())
	assert.False(t, Null.IsValidDeviceAddress())
	assert.False(t, BroadcastAll.IsValidDeviceAddress())
	assert.False(t, Broadcast(0x05e0).IsValidDeviceAddress())
}

func TestWireRoundTrip(t *testing.T) {
	u := UID{0x05e0, 0xdeadbeef}
	data := u.Marshal(nil)
	require.Equal(t, []byte{0x05, 0xe0, 0xde, 0xad, 0xbe, 0xef}, data)

	got, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, u, got)

	_, err = Unmarshal(data[:5])
	assert.ErrorIs(t, err, ErrBadUID)
}

func TestUint64RoundTrip(t *testing.T) {
	for _, u := range []UID{Null, {0x05e0, 0x12345678}, Max, BroadcastAll} {
		assert.Equal(t, u, FromUint64(u.Uint64()))
	}
	assert.Equal(t, uint64(0xfffffffffffe), Max.Uint64())
}

func TestParse(t *testing.T) {
	u := UID{0x05e0, 0x00000001}
	got, err := Parse(u.String())
	require.NoError(t, err)
	assert.Equal(t, u, got)

	for _, bad := range []string{"", "05e0", "xyz:00000001", "05e0:xyz", "fffff:00000001"} {
		_, err := Parse(bad)
		assert.ErrorIs(t, err, ErrBadUID, "input %q", bad)
	}
}
