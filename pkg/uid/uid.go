// Package uid implements the 48-bit RDM unique identifier: a 16-bit
// ESTA manufacturer ID followed by a 32-bit device ID. UIDs are ordered
// lexicographically (manufacturer first) and encoded big-endian on the
// wire, most significant byte first.
package uid

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Size is the encoded size of a UID in bytes.
const Size = 6

// WildcardManufacturer matches every manufacturer ID in broadcast
// addressing.
const WildcardManufacturer uint16 = 0xffff

// ErrBadUID indicates a UID string or byte slice that cannot be parsed.
var ErrBadUID = errors.New("malformed UID")

// UID is an RDM unique identifier. The zero value is the null UID.
type UID struct {
	ManufacturerID uint16
	DeviceID       uint32
}

// Reserved UID values.
var (
	// Null is the unset UID. It is not a valid device address.
	Null = UID{0, 0}

	// Max is the highest UID assignable to a device. Any greater value
	// is either a broadcast address or invalid.
	Max = UID{0xffff, 0xfffffffe}

	// BroadcastAll addresses every device on the bus regardless of
	// manufacturer. Responders never reply to broadcast requests.
	BroadcastAll = UID{0xffff, 0xffffffff}
)

// Broadcast returns the broadcast UID scoped to a single manufacturer.
func Broadcast(manufacturerID uint16) UID {
	return UID{manufacturerID, 0xffffffff}
}

// New returns the UID with the given manufacturer and device IDs.
func New(manufacturerID uint16, deviceID uint32) UID {
	return UID{manufacturerID, deviceID}
}

// IsNull reports whether u is the null UID.
func (u UID) IsNull() bool {
	return u.ManufacturerID == 0 && u.DeviceID == 0
}

// IsBroadcast reports whether u is any broadcast address, including
// manufacturer-scoped broadcasts.
func (u UID) IsBroadcast() bool {
	return u.DeviceID == 0xffffffff
}

// IsBroadcastAll reports whether u is the all-devices broadcast address.
func (u UID) IsBroadcastAll() bool {
	return u == BroadcastAll
}

// IsValidDeviceAddress reports whether u may be assigned to a device:
// non-null, not a broadcast form, and no greater than Max.
func (u UID) IsValidDeviceAddress() bool {
	return !u.IsNull() && !u.IsBroadcast() && !Max.Less(u)
}

// Less reports whether u orders strictly before v.
func (u UID) Less(v UID) bool {
	if u.ManufacturerID != v.ManufacturerID {
		return u.ManufacturerID < v.ManufacturerID
	}
	return u.DeviceID < v.DeviceID
}

// LessOrEqual reports whether u orders before v or equals it.
func (u UID) LessOrEqual(v UID) bool {
	return !v.Less(u)
}

// Compare returns -1, 0, or +1 depending on whether u orders before,
// equal to, or after v.
func (u UID) Compare(v UID) int {
	switch {
	case u.Less(v):
		return -1
	case v.Less(u):
		return 1
	default:
		return 0
	}
}

// IsTarget reports whether a request addressed to dest is meant for a
// device whose own address is u. A request targets u when dest is the
// all-devices broadcast, a manufacturer broadcast matching u's
// manufacturer (or the wildcard manufacturer), or exactly u.
func (u UID) IsTarget(dest UID) bool {
	if dest.IsBroadcast() &&
		(dest.ManufacturerID == WildcardManufacturer || dest.ManufacturerID == u.ManufacturerID) {
		return true
	}
	return u == dest
}

// Uint64 returns the UID packed into the low 48 bits of a uint64.
// Useful for midpoint arithmetic during discovery.
func (u UID) Uint64() uint64 {
	return uint64(u.ManufacturerID)<<32 | uint64(u.DeviceID)
}

// FromUint64 unpacks a UID from the low 48 bits of v.
func FromUint64(v uint64) UID {
	return UID{
		ManufacturerID: uint16(v >> 32),
		DeviceID:       uint32(v),
	}
}

// Marshal appends the 6-byte big-endian wire encoding of u to dst and
// returns the extended slice.
func (u UID) Marshal(dst []byte) []byte {
	var buf [Size]byte
	binary.BigEndian.PutUint16(buf[0:2], u.ManufacturerID)
	binary.BigEndian.PutUint32(buf[2:6], u.DeviceID)
	return append(dst, buf[:]...)
}

// Unmarshal decodes a UID from the first 6 bytes of data.
func Unmarshal(data []byte) (UID, error) {
	if len(data) < Size {
		return Null, fmt.Errorf("%w: need %d bytes, have %d", ErrBadUID, Size, len(data))
	}
	return UID{
		ManufacturerID: binary.BigEndian.Uint16(data[0:2]),
		DeviceID:       binary.BigEndian.Uint32(data[2:6]),
	}, nil
}

// String formats u in the conventional manufacturer:device notation,
// e.g. "05e0:00000001".
func (u UID) String() string {
	return fmt.Sprintf("%04x:%08x", u.ManufacturerID, u.DeviceID)
}

// Parse parses the manufacturer:device notation produced by String.
func Parse(s string) (UID, error) {
	man, dev, ok := strings.Cut(s, ":")
	if !ok {
		return Null, fmt.Errorf("%w: %q", ErrBadUID, s)
	}
	m, err := strconv.ParseUint(man, 16, 16)
	if err != nil {
		return Null, fmt.Errorf("%w: %q: %v", ErrBadUID, s, err)
	}
	d, err := strconv.ParseUint(dev, 16, 32)
	if err != nil {
		return Null, fmt.Errorf("%w: %q: %v", ErrBadUID, s, err)
	}
	return UID{ManufacturerID: uint16(m), DeviceID: uint32(d)}, nil
}
