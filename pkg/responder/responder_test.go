package responder

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rdm-protocol/rdm-go/pkg/frame"
	"github.com/rdm-protocol/rdm-go/pkg/param"
	"github.com/rdm-protocol/rdm-go/pkg/pd"
	"github.com/rdm-protocol/rdm-go/pkg/persistence"
	"github.com/rdm-protocol/rdm-go/pkg/uid"
)

var (
	deviceUID     = uid.New(0x05e0, 0x00000042)
	controllerUID = uid.New(0x6574, 0x00000001)
)

func testConfig() Config {
	return Config{
		UID:                  deviceUID,
		ModelID:              0x0521,
		ProductCategory:      param.ProductCategoryFixture,
		SoftwareVersionID:    0x01000000,
		SoftwareVersionLabel: "1.0.0",
		ManufacturerLabel:    "Example Lighting",
		DeviceLabel:          "wash 1",
		Personalities: []Personality{
			{Footprint: 4, Description: "4-channel RGBW"},
			{Footprint: 9, Description: "9-channel extended"},
		},
		StartAddress: 1,
	}
}

func newTestDevice(t *testing.T) *Device {
	t.Helper()
	d, err := New(testConfig())
	require.NoError(t, err)
	return d
}

func request(t *testing.T, dest uid.UID, cc param.CommandClass, pid param.PID, sub param.SubDevice, data []byte) []byte {
	t.Helper()
	pkt, err := frame.Encode(&frame.Header{
		DestUID:   dest,
		SrcUID:    controllerUID,
		TN:        9,
		PortID:    1,
		SubDevice: sub,
		CC:        cc,
		PID:       pid,
	}, data)
	require.NoError(t, err)
	return pkt
}

// exchange runs one packet through the device and decodes the response.
func exchange(t *testing.T, d *Device, pkt []byte) (*frame.Header, []byte) {
	t.Helper()
	resp, breakBefore, ok := d.HandlePacket(pkt)
	require.True(t, ok, "expected a response")
	require.True(t, breakBefore, "normal responses need a break")

	h, pdData, err := frame.Decode(resp)
	require.NoError(t, err)
	return h, pdData
}

func TestGetDeviceInfo(t *testing.T) {
	d := newTestDevice(t)
	pkt := request(t, deviceUID, param.CCGetCommand, param.PIDDeviceInfo, param.SubDeviceRoot, nil)

	h, pdData := exchange(t, d, pkt)
	assert.Equal(t, param.ResponseAck, h.ResponseType)
	assert.Equal(t, param.CCGetCommandResponse, h.CC)
	assert.Equal(t, controllerUID, h.DestUID)
	assert.Equal(t, deviceUID, h.SrcUID)
	assert.Equal(t, uint8(9), h.TN)

	info, err := param.DecodeDeviceInfo(pdData)
	require.NoError(t, err)
	assert.Equal(t, uint16(4), info.Footprint)
	assert.Equal(t, uint8(1), info.CurrentPersonality)
	assert.Equal(t, uint8(2), info.PersonalityCount)
	assert.Equal(t, uint16(1), info.StartAddress)
	assert.Equal(t, uint16(0x0521), info.ModelID)
}

func TestUnknownPID(t *testing.T) {
	d := newTestDevice(t)
	pkt := request(t, deviceUID, param.CCGetCommand, 0x7fff, param.SubDeviceRoot, nil)

	h, pdData := exchange(t, d, pkt)
	assert.Equal(t, param.ResponseNackReason, h.ResponseType)

	reason, err := param.DecodeNackReason(pdData)
	require.NoError(t, err)
	assert.Equal(t, param.NackUnknownPID, reason)
}

func TestUnsupportedCommandClass(t *testing.T) {
	d := newTestDevice(t)

	// DEVICE_INFO is get-only.
	pkt := request(t, deviceUID, param.CCSetCommand, param.PIDDeviceInfo, param.SubDeviceRoot, []byte{0x00})
	h, pdData := exchange(t, d, pkt)
	assert.Equal(t, param.ResponseNackReason, h.ResponseType)
	reason, _ := param.DecodeNackReason(pdData)
	assert.Equal(t, param.NackUnsupportedCommandClass, reason)

	// RESET_DEVICE is set-only.
	pkt = request(t, deviceUID, param.CCGetCommand, param.PIDResetDevice, param.SubDeviceRoot, nil)
	_, pdData = exchange(t, d, pkt)
	reason, _ = param.DecodeNackReason(pdData)
	assert.Equal(t, param.NackUnsupportedCommandClass, reason)
}

func TestSubDeviceOutOfRange(t *testing.T) {
	d := newTestDevice(t)

	pkt := request(t, deviceUID, param.CCGetCommand, param.PIDDeviceInfo, 3, nil)
	_, pdData := exchange(t, d, pkt)
	reason, err := param.DecodeNackReason(pdData)
	require.NoError(t, err)
	assert.Equal(t, param.NackSubDeviceOutOfRange, reason)

	// The all-sub-devices address is legal for SET.
	addr, _ := param.FormatWord.EncodeRecord(uint16(10))
	pkt = request(t, deviceUID, param.CCSetCommand, param.PIDDMXStartAddress, param.SubDeviceAll, addr)
	h, _ := exchange(t, d, pkt)
	assert.Equal(t, param.ResponseAck, h.ResponseType)
	assert.Equal(t, uint16(10), d.StartAddress())
}

func TestFormatErrors(t *testing.T) {
	d := newTestDevice(t)

	// GET DEVICE_INFO carries no parameter data.
	pkt := request(t, deviceUID, param.CCGetCommand, param.PIDDeviceInfo, param.SubDeviceRoot, []byte{0x01})
	_, pdData := exchange(t, d, pkt)
	reason, _ := param.DecodeNackReason(pdData)
	assert.Equal(t, param.NackFormatError, reason)

	// SET DMX_START_ADDRESS wants exactly two bytes.
	pkt = request(t, deviceUID, param.CCSetCommand, param.PIDDMXStartAddress, param.SubDeviceRoot, []byte{0x01})
	_, pdData = exchange(t, d, pkt)
	reason, _ = param.DecodeNackReason(pdData)
	assert.Equal(t, param.NackFormatError, reason)

	pkt = request(t, deviceUID, param.CCSetCommand, param.PIDDMXStartAddress, param.SubDeviceRoot, []byte{0x00, 0x01, 0x02})
	_, pdData = exchange(t, d, pkt)
	reason, _ = param.DecodeNackReason(pdData)
	assert.Equal(t, param.NackFormatError, reason)
}

func TestSetStartAddress(t *testing.T) {
	d := newTestDevice(t)

	addr, _ := param.FormatWord.EncodeRecord(uint16(100))
	pkt := request(t, deviceUID, param.CCSetCommand, param.PIDDMXStartAddress, param.SubDeviceRoot, addr)
	h, _ := exchange(t, d, pkt)
	assert.Equal(t, param.ResponseAck, h.ResponseType)
	assert.Equal(t, uint16(100), d.StartAddress())

	// Footprint 4 from slot 510 would run past slot 512.
	addr, _ = param.FormatWord.EncodeRecord(uint16(510))
	pkt = request(t, deviceUID, param.CCSetCommand, param.PIDDMXStartAddress, param.SubDeviceRoot, addr)
	_, pdData := exchange(t, d, pkt)
	reason, _ := param.DecodeNackReason(pdData)
	assert.Equal(t, param.NackDataOutOfRange, reason)
	assert.Equal(t, uint16(100), d.StartAddress())

	addr, _ = param.FormatWord.EncodeRecord(uint16(0))
	pkt = request(t, deviceUID, param.CCSetCommand, param.PIDDMXStartAddress, param.SubDeviceRoot, addr)
	_, pdData = exchange(t, d, pkt)
	reason, _ = param.DecodeNackReason(pdData)
	assert.Equal(t, param.NackDataOutOfRange, reason)
}

func TestIdentify(t *testing.T) {
	d := newTestDevice(t)

	pkt := request(t, deviceUID, param.CCSetCommand, param.PIDIdentifyDevice, param.SubDeviceRoot, []byte{0x01})
	h, _ := exchange(t, d, pkt)
	assert.Equal(t, param.ResponseAck, h.ResponseType)
	assert.True(t, d.Identify())

	pkt = request(t, deviceUID, param.CCGetCommand, param.PIDIdentifyDevice, param.SubDeviceRoot, nil)
	_, pdData := exchange(t, d, pkt)
	assert.Equal(t, []byte{0x01}, pdData)

	pkt = request(t, deviceUID, param.CCSetCommand, param.PIDIdentifyDevice, param.SubDeviceRoot, []byte{0x02})
	_, pdData = exchange(t, d, pkt)
	reason, _ := param.DecodeNackReason(pdData)
	assert.Equal(t, param.NackDataOutOfRange, reason)
	assert.True(t, d.Identify(), "failed set leaves state alone")
}

func TestPersonalityChangeClampsAddress(t *testing.T) {
	d := newTestDevice(t)

	addr, _ := param.FormatWord.EncodeRecord(uint16(509))
	pkt := request(t, deviceUID, param.CCSetCommand, param.PIDDMXStartAddress, param.SubDeviceRoot, addr)
	exchange(t, d, pkt)

	// Switching to the 9-channel personality would overrun slot 512
	// from address 509.
	pkt = request(t, deviceUID, param.CCSetCommand, param.PIDDMXPersonality, param.SubDeviceRoot, []byte{0x02})
	h, _ := exchange(t, d, pkt)
	assert.Equal(t, param.ResponseAck, h.ResponseType)
	assert.Equal(t, uint8(2), d.CurrentPersonality())
	assert.Equal(t, uint16(504), d.StartAddress())

	pkt = request(t, deviceUID, param.CCSetCommand, param.PIDDMXPersonality, param.SubDeviceRoot, []byte{0x03})
	_, pdData := exchange(t, d, pkt)
	reason, _ := param.DecodeNackReason(pdData)
	assert.Equal(t, param.NackDataOutOfRange, reason)
}

func TestPersonalityDescription(t *testing.T) {
	d := newTestDevice(t)

	pkt := request(t, deviceUID, param.CCGetCommand, param.PIDDMXPersonalityDescription, param.SubDeviceRoot, []byte{0x02})
	h, pdData := exchange(t, d, pkt)
	require.Equal(t, param.ResponseAck, h.ResponseType)

	rec, err := formatPersonalityDescription.DecodeRecord(pdData)
	require.NoError(t, err)
	assert.Equal(t, uint8(2), rec[0])
	assert.Equal(t, uint16(9), rec[1])
	assert.Equal(t, "9-channel extended", rec[2])
}

func TestBroadcastSetSilent(t *testing.T) {
	d := newTestDevice(t)

	addr, _ := param.FormatWord.EncodeRecord(uint16(77))
	pkt := request(t, uid.BroadcastAll, param.CCSetCommand, param.PIDDMXStartAddress, param.SubDeviceRoot, addr)
	_, _, ok := d.HandlePacket(pkt)
	assert.False(t, ok, "broadcasts draw no response")
	assert.Equal(t, uint16(77), d.StartAddress(), "broadcast SET is still processed")
}

func TestIgnoresForeignTraffic(t *testing.T) {
	d := newTestDevice(t)

	// Unicast to someone else.
	pkt := request(t, uid.New(0x05e0, 0x00000099), param.CCGetCommand, param.PIDDeviceInfo, param.SubDeviceRoot, nil)
	_, _, ok := d.HandlePacket(pkt)
	assert.False(t, ok)

	// Other-manufacturer broadcast.
	pkt = request(t, uid.Broadcast(0x1234), param.CCGetCommand, param.PIDDeviceInfo, param.SubDeviceRoot, nil)
	_, _, ok = d.HandlePacket(pkt)
	assert.False(t, ok)

	// Response command classes and damaged packets.
	pkt = request(t, deviceUID, param.CCGetCommandResponse, param.PIDDeviceInfo, param.SubDeviceRoot, nil)
	_, _, ok = d.HandlePacket(pkt)
	assert.False(t, ok)

	_, _, ok = d.HandlePacket([]byte{0xcc, 0x01, 0x05})
	assert.False(t, ok)
}

func TestDiscoveryBranchResponse(t *testing.T) {
	d := newTestDevice(t)

	branch := &param.DiscUniqueBranch{Lower: uid.Null, Upper: uid.Max}
	pdData, err := branch.Encode()
	require.NoError(t, err)
	pkt := request(t, uid.BroadcastAll, param.CCDiscCommand, param.PIDDiscUniqueBranch, param.SubDeviceRoot, pdData)

	resp, breakBefore, ok := d.HandlePacket(pkt)
	require.True(t, ok)
	assert.False(t, breakBefore, "discovery responses carry no break")

	got, err := frame.DecodeDiscResponse(resp)
	require.NoError(t, err)
	assert.Equal(t, deviceUID, got)
}

func TestDiscoverySilences(t *testing.T) {
	d := newTestDevice(t)

	outOfRange := &param.DiscUniqueBranch{
		Lower: uid.New(0x05e0, 0x00001000),
		Upper: uid.Max,
	}
	pdData, err := outOfRange.Encode()
	require.NoError(t, err)
	pkt := request(t, uid.BroadcastAll, param.CCDiscCommand, param.PIDDiscUniqueBranch, param.SubDeviceRoot, pdData)
	_, _, ok := d.HandlePacket(pkt)
	assert.False(t, ok, "out of range branch")

	inRange := &param.DiscUniqueBranch{Lower: uid.Null, Upper: uid.Max}
	pdData, err = inRange.Encode()
	require.NoError(t, err)

	// Truncated branch bounds never draw a NACK, only silence.
	pkt = request(t, uid.BroadcastAll, param.CCDiscCommand, param.PIDDiscUniqueBranch, param.SubDeviceRoot, pdData[:10])
	_, _, ok = d.HandlePacket(pkt)
	assert.False(t, ok, "malformed branch")

	d.SetMuted(true)
	pkt = request(t, uid.BroadcastAll, param.CCDiscCommand, param.PIDDiscUniqueBranch, param.SubDeviceRoot, pdData)
	_, _, ok = d.HandlePacket(pkt)
	assert.False(t, ok, "muted device")
}

func TestMuteAndUnMute(t *testing.T) {
	d := newTestDevice(t)

	pkt := request(t, deviceUID, param.CCDiscCommand, param.PIDDiscMute, param.SubDeviceRoot, nil)
	resp, breakBefore, ok := d.HandlePacket(pkt)
	require.True(t, ok)
	assert.True(t, breakBefore)
	assert.True(t, d.Muted())

	h, pdData, err := frame.Decode(resp)
	require.NoError(t, err)
	assert.Equal(t, param.CCDiscCommandResponse, h.CC)

	mute, err := param.DecodeDiscMute(pdData)
	require.NoError(t, err)
	assert.Equal(t, uid.Null, mute.BindingUID)

	// Broadcast un-mute is processed silently.
	pkt = request(t, uid.BroadcastAll, param.CCDiscCommand, param.PIDDiscUnMute, param.SubDeviceRoot, nil)
	_, _, ok = d.HandlePacket(pkt)
	assert.False(t, ok)
	assert.False(t, d.Muted())
}

func TestMuteBindingUID(t *testing.T) {
	cfg := testConfig()
	cfg.BindingUID = uid.New(0x05e0, 0x00000040)
	d, err := New(cfg)
	require.NoError(t, err)

	pkt := request(t, deviceUID, param.CCDiscCommand, param.PIDDiscMute, param.SubDeviceRoot, nil)
	resp, _, ok := d.HandlePacket(pkt)
	require.True(t, ok)

	_, pdData, err := frame.Decode(resp)
	require.NoError(t, err)
	mute, err := param.DecodeDiscMute(pdData)
	require.NoError(t, err)
	assert.Equal(t, cfg.BindingUID, mute.BindingUID)
}

func TestSupportedParameters(t *testing.T) {
	d := newTestDevice(t)

	pkt := request(t, deviceUID, param.CCGetCommand, param.PIDSupportedParameters, param.SubDeviceRoot, nil)
	h, pdData := exchange(t, d, pkt)
	require.Equal(t, param.ResponseAck, h.ResponseType)

	pids, err := param.DecodePIDList(pdData)
	require.NoError(t, err)
	assert.Contains(t, pids, param.PIDDeviceLabel)
	assert.Contains(t, pids, param.PIDDMXPersonality)
	assert.NotContains(t, pids, param.PIDDeviceInfo, "required parameters are not listed")
	assert.NotContains(t, pids, param.PIDDiscUniqueBranch)
	assert.IsIncreasing(t, pids)
}

func TestManufacturerParameter(t *testing.T) {
	d := newTestDevice(t)

	fmtDWord := pd.MustCompile("d")
	require.NoError(t, d.Register(&Definition{
		PID:         0x8001,
		Get:         true,
		GetResponse: fmtDWord,
		Description: &param.ParameterDescription{
			PID:          0x8001,
			PDLSize:      4,
			DataType:     param.DSUnsignedDWord,
			CommandClass: 0x01,
			Description:  "Lamp Hours",
		},
		Handler: func(*Request) *Reply {
			data, _ := fmtDWord.EncodeRecord(uint32(1234))
			return Ack(data)
		},
	}))

	pkt := request(t, deviceUID, param.CCGetCommand, 0x8001, param.SubDeviceRoot, nil)
	h, pdData := exchange(t, d, pkt)
	assert.Equal(t, param.ResponseAck, h.ResponseType)
	rec, err := fmtDWord.DecodeRecord(pdData)
	require.NoError(t, err)
	assert.Equal(t, uint32(1234), rec[0])

	// PARAMETER_DESCRIPTION serves the registered metadata.
	pidReq, _ := param.FormatWord.EncodeRecord(uint16(0x8001))
	pkt = request(t, deviceUID, param.CCGetCommand, param.PIDParameterDescription, param.SubDeviceRoot, pidReq)
	_, pdData = exchange(t, d, pkt)
	desc, err := param.DecodeParameterDescription(pdData)
	require.NoError(t, err)
	assert.Equal(t, "Lamp Hours", desc.Description)

	// Asking about a built-in PID is out of range.
	pidReq, _ = param.FormatWord.EncodeRecord(uint16(param.PIDDeviceInfo))
	pkt = request(t, deviceUID, param.CCGetCommand, param.PIDParameterDescription, param.SubDeviceRoot, pidReq)
	_, pdData = exchange(t, d, pkt)
	reason, _ := param.DecodeNackReason(pdData)
	assert.Equal(t, param.NackDataOutOfRange, reason)
}

func TestRegisterErrors(t *testing.T) {
	d := newTestDevice(t)

	err := d.Register(&Definition{PID: 0x8002})
	assert.ErrorIs(t, err, ErrNoHandler)

	handler := func(*Request) *Reply { return Ack(nil) }
	require.NoError(t, d.Register(&Definition{PID: 0x8002, Set: true, Handler: handler}))
	err = d.Register(&Definition{PID: 0x8002, Set: true, Handler: handler})
	assert.ErrorIs(t, err, ErrDuplicatePID)
}

func TestOutputPolicing(t *testing.T) {
	d := newTestDevice(t)

	// The handler promises a dword but returns three bytes.
	require.NoError(t, d.Register(&Definition{
		PID:         0x8003,
		Get:         true,
		GetResponse: pd.MustCompile("d"),
		Handler: func(*Request) *Reply {
			return Ack([]byte{0x01, 0x02, 0x03})
		},
	}))

	pkt := request(t, deviceUID, param.CCGetCommand, 0x8003, param.SubDeviceRoot, nil)
	h, pdData := exchange(t, d, pkt)
	assert.Equal(t, param.ResponseNackReason, h.ResponseType)
	reason, _ := param.DecodeNackReason(pdData)
	assert.Equal(t, param.NackHardwareFault, reason)
	assert.True(t, d.HardwareFault())

	// RESET_DEVICE clears the fault flag.
	pkt = request(t, deviceUID, param.CCSetCommand, param.PIDResetDevice, param.SubDeviceRoot, []byte{0x01})
	h, _ = exchange(t, d, pkt)
	assert.Equal(t, param.ResponseAck, h.ResponseType)
	assert.False(t, d.HardwareFault())
}

func TestMalformedRequestNacks(t *testing.T) {
	d := newTestDevice(t)

	encode := func(src uid.UID, portID uint8, pid param.PID) []byte {
		pkt, err := frame.Encode(&frame.Header{
			DestUID:   deviceUID,
			SrcUID:    src,
			TN:        4,
			PortID:    portID,
			SubDevice: param.SubDeviceRoot,
			CC:        param.CCGetCommand,
			PID:       pid,
		}, nil)
		require.NoError(t, err)
		return pkt
	}

	// A request never carries a broadcast source address.
	h, pdData := exchange(t, d, encode(uid.BroadcastAll, 1, param.PIDDeviceInfo))
	assert.Equal(t, param.ResponseNackReason, h.ResponseType)
	reason, err := param.DecodeNackReason(pdData)
	require.NoError(t, err)
	assert.Equal(t, param.NackFormatError, reason)

	// Port IDs start at 1.
	h, pdData = exchange(t, d, encode(controllerUID, 0, param.PIDDeviceInfo))
	assert.Equal(t, param.ResponseNackReason, h.ResponseType)
	reason, err = param.DecodeNackReason(pdData)
	require.NoError(t, err)
	assert.Equal(t, param.NackFormatError, reason)

	// Message-level validity is judged before the parameter lookup: a
	// malformed request naming an unknown PID still gets FORMAT_ERROR.
	_, pdData = exchange(t, d, encode(controllerUID, 0, 0x7fff))
	reason, err = param.DecodeNackReason(pdData)
	require.NoError(t, err)
	assert.Equal(t, param.NackFormatError, reason)
}

func TestInvalidResponseTypeDowngraded(t *testing.T) {
	d := newTestDevice(t)

	// The handler answers with a response type that does not exist.
	require.NoError(t, d.Register(&Definition{
		PID: 0x8004,
		Get: true,
		Handler: func(*Request) *Reply {
			return &Reply{Type: param.ResponseType(0x07)}
		},
	}))

	pkt := request(t, deviceUID, param.CCGetCommand, 0x8004, param.SubDeviceRoot, nil)
	h, pdData := exchange(t, d, pkt)
	assert.Equal(t, param.ResponseNackReason, h.ResponseType)
	reason, _ := param.DecodeNackReason(pdData)
	assert.Equal(t, param.NackHardwareFault, reason)
	assert.True(t, d.HardwareFault())
}

func TestDeviceLabelRoundTrip(t *testing.T) {
	d := newTestDevice(t)

	pkt := request(t, deviceUID, param.CCSetCommand, param.PIDDeviceLabel, param.SubDeviceRoot, []byte("upstage truss"))
	h, _ := exchange(t, d, pkt)
	assert.Equal(t, param.ResponseAck, h.ResponseType)
	assert.Equal(t, "upstage truss", d.DeviceLabel())

	pkt = request(t, deviceUID, param.CCGetCommand, param.PIDDeviceLabel, param.SubDeviceRoot, nil)
	_, pdData := exchange(t, d, pkt)
	assert.Equal(t, "upstage truss", string(pdData))

	long := make([]byte, MaxLabelLen+1)
	pkt = request(t, deviceUID, param.CCSetCommand, param.PIDDeviceLabel, param.SubDeviceRoot, long)
	_, pdData = exchange(t, d, pkt)
	reason, _ := param.DecodeNackReason(pdData)
	assert.Equal(t, param.NackFormatError, reason)
}

func TestPersistenceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device.json")

	cfg := testConfig()
	cfg.Store = persistence.NewDeviceStateStore(path)
	d, err := New(cfg)
	require.NoError(t, err)

	addr, _ := param.FormatWord.EncodeRecord(uint16(200))
	pkt := request(t, deviceUID, param.CCSetCommand, param.PIDDMXStartAddress, param.SubDeviceRoot, addr)
	exchange(t, d, pkt)
	pkt = request(t, deviceUID, param.CCSetCommand, param.PIDDMXPersonality, param.SubDeviceRoot, []byte{0x02})
	exchange(t, d, pkt)

	// A fresh device over the same store resumes where the old one
	// left off.
	reborn, err := New(cfg)
	require.NoError(t, err)
	assert.Equal(t, uint16(200), reborn.StartAddress())
	assert.Equal(t, uint8(2), reborn.CurrentPersonality())
}

func TestNewRejectsBadUID(t *testing.T) {
	_, err := New(Config{UID: uid.Null})
	assert.Error(t, err)

	_, err = New(Config{UID: uid.BroadcastAll})
	assert.Error(t, err)
}
