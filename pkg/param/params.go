package param

import (
	"fmt"

	"github.com/rdm-protocol/rdm-go/pkg/pd"
	"github.com/rdm-protocol/rdm-go/pkg/uid"
)

// Compiled parameter-data formats for the well-known PIDs.
var (
	// FormatDiscUniqueBranch is the DISC_UNIQUE_BRANCH request: lower
	// and upper search bounds.
	FormatDiscUniqueBranch = pd.MustCompile("uu")

	// FormatDiscMute is the DISC_MUTE / DISC_UN_MUTE response: control
	// field plus the binding UID, present only on multi-port devices.
	FormatDiscMute = pd.MustCompile("wv")

	// FormatDeviceInfo is the DEVICE_INFO response. The literal is the
	// RDM protocol version, always 1.0.
	FormatDeviceInfo = pd.MustCompile("#0100hwwdwbbwwb")

	// FormatPIDList is one 16-bit PID, repeated per record, for
	// SUPPORTED_PARAMETERS responses.
	FormatPIDList = pd.MustCompile("w")

	// FormatText is variable-length ASCII, used by the label PIDs.
	FormatText = pd.MustCompile("a")

	// FormatWord is a single 16-bit value (DMX_START_ADDRESS).
	FormatWord = pd.MustCompile("w")

	// FormatByte is a single 8-bit value (IDENTIFY_DEVICE).
	FormatByte = pd.MustCompile("b")

	// FormatPersonality is the DMX_PERSONALITY get response: current
	// personality and personality count.
	FormatPersonality = pd.MustCompile("bb")

	// FormatParameterDescription is the PARAMETER_DESCRIPTION
	// response. The literal is the obsolete "type" octet, always zero.
	FormatParameterDescription = pd.MustCompile("wbbb#00hbbddda")
)

// DiscMute control field bits.
const (
	MuteManagedProxy  uint16 = 1 << 0
	MuteSubDevice     uint16 = 1 << 1
	MuteBootLoader    uint16 = 1 << 2
	MuteProxiedDevice uint16 = 1 << 3
)

// DiscUniqueBranch bounds an address range to search during discovery.
// Devices whose UID falls within [Lower, Upper] and are not muted
// respond.
type DiscUniqueBranch struct {
	Lower uid.UID
	Upper uid.UID
}

// Encode packs the bounds into parameter data.
func (p *DiscUniqueBranch) Encode() ([]byte, error) {
	return FormatDiscUniqueBranch.EncodeRecord(p.Lower, p.Upper)
}

// DecodeDiscUniqueBranch unpacks DISC_UNIQUE_BRANCH parameter data.
func DecodeDiscUniqueBranch(data []byte) (*DiscUniqueBranch, error) {
	rec, err := FormatDiscUniqueBranch.DecodeRecord(data)
	if err != nil {
		return nil, err
	}
	return &DiscUniqueBranch{
		Lower: rec[0].(uid.UID),
		Upper: rec[1].(uid.UID),
	}, nil
}

// Contains reports whether u falls within the branch bounds.
func (p *DiscUniqueBranch) Contains(u uid.UID) bool {
	return p.Lower.LessOrEqual(u) && u.LessOrEqual(p.Upper)
}

// DiscMute is the response parameter to DISC_MUTE and DISC_UN_MUTE.
// BindingUID is uid.Null on single-port devices, in which case the
// field is absent from the wire.
type DiscMute struct {
	ManagedProxy  bool
	SubDevice     bool
	BootLoader    bool
	ProxiedDevice bool
	BindingUID    uid.UID
}

// ControlField packs the flags into the wire control field. Bits 4-15
// are reserved and stay zero.
func (p *DiscMute) ControlField() uint16 {
	var cf uint16
	if p.ManagedProxy {
		cf |= MuteManagedProxy
	}
	if p.SubDevice {
		cf |= MuteSubDevice
	}
	if p.BootLoader {
		cf |= MuteBootLoader
	}
	if p.ProxiedDevice {
		cf |= MuteProxiedDevice
	}
	return cf
}

// Encode packs the mute parameter into parameter data.
func (p *DiscMute) Encode() ([]byte, error) {
	return FormatDiscMute.EncodeRecord(p.ControlField(), p.BindingUID)
}

// DecodeDiscMute unpacks a mute response. Presence of the binding UID
// is decided purely by the parameter-data length, per the optional
// field rule.
func DecodeDiscMute(data []byte) (*DiscMute, error) {
	rec, err := FormatDiscMute.DecodeRecord(data)
	if err != nil {
		return nil, err
	}
	cf := rec[0].(uint16)
	return &DiscMute{
		ManagedProxy:  cf&MuteManagedProxy != 0,
		SubDevice:     cf&MuteSubDevice != 0,
		BootLoader:    cf&MuteBootLoader != 0,
		ProxiedDevice: cf&MuteProxiedDevice != 0,
		BindingUID:    rec[1].(uid.UID),
	}, nil
}

// DeviceInfo is the DEVICE_INFO response parameter.
type DeviceInfo struct {
	ModelID            uint16
	ProductCategory    ProductCategory
	SoftwareVersionID  uint32
	Footprint          uint16
	CurrentPersonality uint8
	PersonalityCount   uint8
	StartAddress       uint16
	SubDeviceCount     uint16
	SensorCount        uint8
}

// Encode packs the device info into parameter data. A device with no
// DMX footprint reports DMXStartAddressNone.
func (p *DeviceInfo) Encode() ([]byte, error) {
	start := p.StartAddress
	if p.Footprint == 0 {
		start = DMXStartAddressNone
	}
	return FormatDeviceInfo.EncodeRecord(
		p.ModelID,
		uint16(p.ProductCategory),
		p.SoftwareVersionID,
		p.Footprint,
		p.CurrentPersonality,
		p.PersonalityCount,
		start,
		p.SubDeviceCount,
		p.SensorCount,
	)
}

// DecodeDeviceInfo unpacks a DEVICE_INFO response.
func DecodeDeviceInfo(data []byte) (*DeviceInfo, error) {
	rec, err := FormatDeviceInfo.DecodeRecord(data)
	if err != nil {
		return nil, err
	}
	return &DeviceInfo{
		ModelID:            rec[0].(uint16),
		ProductCategory:    ProductCategory(rec[1].(uint16)),
		SoftwareVersionID:  rec[2].(uint32),
		Footprint:          rec[3].(uint16),
		CurrentPersonality: rec[4].(uint8),
		PersonalityCount:   rec[5].(uint8),
		StartAddress:       rec[6].(uint16),
		SubDeviceCount:     rec[7].(uint16),
		SensorCount:        rec[8].(uint8),
	}, nil
}

// ParameterDescription describes a manufacturer-specific PID well
// enough for a controller to build GET and SET requests for it.
type ParameterDescription struct {
	PID          PID
	PDLSize      uint8
	DataType     DataType
	CommandClass uint8 // 0x01 GET, 0x02 SET, 0x03 both
	Unit         uint8
	Prefix       uint8
	MinValue     uint32
	MaxValue     uint32
	DefaultValue uint32
	Description  string // at most 32 characters
}

// MaxDescriptionLen is the longest description text a parameter may
// carry.
const MaxDescriptionLen = 32

// Encode packs the description into parameter data.
func (p *ParameterDescription) Encode() ([]byte, error) {
	desc := p.Description
	if len(desc) > MaxDescriptionLen {
		desc = desc[:MaxDescriptionLen]
	}
	return FormatParameterDescription.EncodeRecord(
		uint16(p.PID),
		p.PDLSize,
		uint8(p.DataType),
		p.CommandClass,
		p.Unit,
		p.Prefix,
		p.MinValue,
		p.MaxValue,
		p.DefaultValue,
		desc,
	)
}

// DecodeParameterDescription unpacks a PARAMETER_DESCRIPTION response.
func DecodeParameterDescription(data []byte) (*ParameterDescription, error) {
	rec, err := FormatParameterDescription.DecodeRecord(data)
	if err != nil {
		return nil, err
	}
	return &ParameterDescription{
		PID:          PID(rec[0].(uint16)),
		PDLSize:      rec[1].(uint8),
		DataType:     DataType(rec[2].(uint8)),
		CommandClass: rec[3].(uint8),
		Unit:         rec[4].(uint8),
		Prefix:       rec[5].(uint8),
		MinValue:     rec[6].(uint32),
		MaxValue:     rec[7].(uint32),
		DefaultValue: rec[8].(uint32),
		Description:  rec[9].(string),
	}, nil
}

// EncodePIDList packs a SUPPORTED_PARAMETERS response.
func EncodePIDList(pids []PID) ([]byte, error) {
	records := make([]pd.Record, len(pids))
	for i, p := range pids {
		records[i] = pd.Record{uint16(p)}
	}
	return FormatPIDList.Encode(records)
}

// DecodePIDList unpacks a SUPPORTED_PARAMETERS response.
func DecodePIDList(data []byte) ([]PID, error) {
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("%w: odd length %d", pd.ErrRecordShape, len(data))
	}
	records, err := FormatPIDList.Decode(data)
	if err != nil {
		return nil, err
	}
	pids := make([]PID, len(records))
	for i, rec := range records {
		pids[i] = PID(rec[0].(uint16))
	}
	return pids, nil
}

// EncodeNackReason packs the reason carried by a NACK_REASON response.
func EncodeNackReason(nr NackReason) []byte {
	out, _ := FormatWord.EncodeRecord(uint16(nr))
	return out
}

// DecodeNackReason unpacks the reason from a NACK_REASON response.
func DecodeNackReason(data []byte) (NackReason, error) {
	rec, err := FormatWord.DecodeRecord(data)
	if err != nil {
		return 0, err
	}
	return NackReason(rec[0].(uint16)), nil
}
