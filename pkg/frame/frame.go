// Package frame implements the two RDM wire encodings: the normal
// start-code packet with its additive checksum, and the self-clocking
// discovery-response encoding built to survive detection of bus
// collisions.
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/rdm-protocol/rdm-go/pkg/param"
	"github.com/rdm-protocol/rdm-go/pkg/pd"
	"github.com/rdm-protocol/rdm-go/pkg/uid"
)

// Wire constants. These values are fixed by ANSI E1.20 and must match
// bit for bit.
const (
	// StartCode is the RDM start code (SC_RDM).
	StartCode = 0xcc

	// SubStartCode is the RDM sub-start code (SC_SUB_MESSAGE).
	SubStartCode = 0x01

	// HeaderLen is the size of the message header, start code through
	// the parameter-data length field.
	HeaderLen = 24

	// ChecksumLen is the size of the trailing checksum.
	ChecksumLen = 2

	// MaxFrameLen is the largest possible normal packet: header, a
	// full parameter-data block, and the checksum.
	MaxFrameLen = HeaderLen + pd.MaxLen + ChecksumLen
)

// Discovery-response constants.
const (
	// PreambleByte precedes the delimiter in a discovery response. Up
	// to MaxPreambleLen of them may appear.
	PreambleByte = 0xfe

	// DelimiterByte terminates the preamble.
	DelimiterByte = 0xaa

	// MaxPreambleLen is the scan window for the delimiter.
	MaxPreambleLen = 7

	// MaskA and MaskB double each payload byte of a discovery
	// response: the byte is sent once OR-ed with each mask. A receiver
	// recovers the byte by AND-ing the pair; colliding responders
	// produce pairs that fail the checksum.
	MaskA = 0xaa
	MaskB = 0x55

	// DiscResponseLen is the fixed length of the encoded portion of a
	// discovery response: 6 doubled UID bytes plus 2 doubled checksum
	// bytes.
	DiscResponseLen = 2*uid.Size + 2*ChecksumLen
)

// Framing errors. All of them mean the packet is dropped silently at
// the protocol level; they are surfaced only for diagnostics.
var (
	// ErrTruncated indicates a buffer too short for the frame it
	// claims to hold.
	ErrTruncated = errors.New("truncated frame")

	// ErrStartCode indicates a packet that is not an RDM packet.
	ErrStartCode = errors.New("bad start code")

	// ErrChecksum indicates a checksum mismatch. During discovery this
	// is the collision signal.
	ErrChecksum = errors.New("checksum mismatch")

	// ErrLength indicates inconsistent length fields.
	ErrLength = errors.New("bad length field")

	// ErrNoDelimiter indicates a discovery response without a
	// delimiter inside the preamble scan window.
	ErrNoDelimiter = errors.New("no delimiter in preamble")
)

// Header holds the decoded fields of a normal packet, start code and
// checksum excluded. PortID and ResponseType share one wire octet:
// PortID is meaningful on requests, ResponseType on responses.
type Header struct {
	DestUID      uid.UID
	SrcUID       uid.UID
	TN           uint8
	PortID       uint8
	ResponseType param.ResponseType
	MessageCount uint8
	SubDevice    param.SubDevice
	CC           param.CommandClass
	PID          param.PID
	PDL          uint8
}

// Checksum computes the 16-bit additive checksum over data.
func Checksum(data []byte) uint16 {
	var sum uint16
	for _, b := range data {
		sum += uint16(b)
	}
	return sum
}

// Encode serializes a header and parameter data into a complete wire
// frame, filling in the start codes, message length, PDL, and checksum.
func Encode(h *Header, paramData []byte) ([]byte, error) {
	if len(paramData) > pd.MaxLen {
		return nil, fmt.Errorf("%w: pdl %d", ErrLength, len(paramData))
	}

	messageLen := HeaderLen + len(paramData)
	out := make([]byte, 0, messageLen+ChecksumLen)

	out = append(out, StartCode, SubStartCode, uint8(messageLen))
	out = h.DestUID.Marshal(out)
	out = h.SrcUID.Marshal(out)
	out = append(out, h.TN, h.portOctet(), h.MessageCount)
	out = binary.BigEndian.AppendUint16(out, uint16(h.SubDevice))
	out = append(out, uint8(h.CC))
	out = binary.BigEndian.AppendUint16(out, uint16(h.PID))
	out = append(out, uint8(len(paramData)))
	out = append(out, paramData...)

	return binary.BigEndian.AppendUint16(out, Checksum(out)), nil
}

// portOctet resolves the port-id/response-type union for the wire.
func (h *Header) portOctet() uint8 {
	if h.CC.IsResponse() {
		return uint8(h.ResponseType)
	}
	return h.PortID
}

// Decode parses a complete normal packet, verifying start codes,
// length consistency, and the checksum. The returned parameter data
// aliases the input buffer.
func Decode(data []byte) (*Header, []byte, error) {
	if len(data) < HeaderLen+ChecksumLen {
		return nil, nil, fmt.Errorf("%w: %d bytes", ErrTruncated, len(data))
	}
	if data[0] != StartCode || data[1] != SubStartCode {
		return nil, nil, fmt.Errorf("%w: %#02x %#02x", ErrStartCode, data[0], data[1])
	}

	messageLen := int(data[2])
	pdl := int(data[23])
	if messageLen != HeaderLen+pdl {
		return nil, nil, fmt.Errorf("%w: message length %d, pdl %d", ErrLength, messageLen, pdl)
	}
	if len(data) < messageLen+ChecksumLen {
		return nil, nil, fmt.Errorf("%w: have %d of %d bytes", ErrTruncated, len(data), messageLen+ChecksumLen)
	}

	want := binary.BigEndian.Uint16(data[messageLen:])
	if got := Checksum(data[:messageLen]); got != want {
		return nil, nil, fmt.Errorf("%w: computed %#04x, frame says %#04x", ErrChecksum, got, want)
	}

	dest, _ := uid.Unmarshal(data[3:9])
	src, _ := uid.Unmarshal(data[9:15])

	h := &Header{
		DestUID:      dest,
		SrcUID:       src,
		TN:           data[15],
		MessageCount: data[17],
		SubDevice:    param.SubDevice(binary.BigEndian.Uint16(data[18:20])),
		CC:           param.CommandClass(data[20]),
		PID:          param.PID(binary.BigEndian.Uint16(data[21:23])),
		PDL:          uint8(pdl),
	}
	if h.CC.IsResponse() {
		h.ResponseType = param.ResponseType(data[16])
	} else {
		h.PortID = data[16]
	}

	return h, data[HeaderLen:messageLen], nil
}

// EncodeDiscResponse builds the discovery response for a device UID:
// the full preamble, the delimiter, and every UID and checksum byte
// doubled through the two OR masks.
func EncodeDiscResponse(u uid.UID) []byte {
	out := make([]byte, 0, MaxPreambleLen+1+DiscResponseLen)
	for i := 0; i < MaxPreambleLen; i++ {
		out = append(out, PreambleByte)
	}
	out = append(out, DelimiterByte)

	raw := u.Marshal(nil)
	for _, b := range raw {
		out = append(out, b|MaskA, b|MaskB)
	}

	// The checksum covers the doubled UID bytes, not the raw ones.
	sum := Checksum(out[MaxPreambleLen+1:])
	for _, b := range []byte{uint8(sum >> 8), uint8(sum)} {
		out = append(out, b|MaskA, b|MaskB)
	}
	return out
}

// DecodeDiscResponse recovers a device UID from a discovery response.
// The delimiter is located by scanning at most MaxPreambleLen bytes. A
// checksum failure usually means several devices answered at once, so
// callers treat ErrChecksum as the collision signal rather than noise.
func DecodeDiscResponse(data []byte) (uid.UID, error) {
	start := -1
	for i := 0; i <= MaxPreambleLen && i < len(data); i++ {
		if data[i] == DelimiterByte {
			start = i + 1
			break
		}
	}
	if start < 0 {
		return uid.Null, ErrNoDelimiter
	}
	if len(data) < start+DiscResponseLen {
		return uid.Null, fmt.Errorf("%w: %d bytes after delimiter", ErrTruncated, len(data)-start)
	}

	enc := data[start : start+DiscResponseLen]

	var raw [uid.Size]byte
	for i := range raw {
		raw[i] = enc[2*i] & enc[2*i+1]
	}
	want := uint16(enc[12]&enc[13])<<8 | uint16(enc[14]&enc[15])

	if got := Checksum(enc[:2*uid.Size]); got != want {
		return uid.Null, fmt.Errorf("%w: computed %#04x, response says %#04x", ErrChecksum, got, want)
	}

	u, _ := uid.Unmarshal(raw[:])
	return u, nil
}

// IsDiscResponse reports whether data looks like a discovery response
// rather than a normal packet: it starts with preamble or delimiter
// bytes instead of the RDM start code.
func IsDiscResponse(data []byte) bool {
	return len(data) > 0 && (data[0] == PreambleByte || data[0] == DelimiterByte)
}
