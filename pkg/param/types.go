// Package param defines the RDM parameter vocabulary: command classes,
// response types, NACK reasons, parameter IDs, typed parameter records,
// and the parameter-definition registry consulted by the responder
// state machine.
package param

// PID is a 16-bit parameter identifier. PIDs 0x8000-0xffdf are
// manufacturer specific.
type PID uint16

// Parameter IDs from ANSI E1.20.
const (
	// Network management
	PIDDiscUniqueBranch PID = 0x0001
	PIDDiscMute         PID = 0x0002
	PIDDiscUnMute       PID = 0x0003
	PIDCommsStatus      PID = 0x0015

	// Status collection
	PIDQueuedMessage PID = 0x0020
	PIDStatusMessage PID = 0x0030

	// RDM information
	PIDSupportedParameters   PID = 0x0050
	PIDParameterDescription  PID = 0x0051

	// Product information
	PIDDeviceInfo              PID = 0x0060
	PIDDeviceModelDescription  PID = 0x0080
	PIDManufacturerLabel       PID = 0x0081
	PIDDeviceLabel             PID = 0x0082
	PIDSoftwareVersionLabel    PID = 0x00c0

	// DMX512 setup
	PIDDMXPersonality             PID = 0x00e0
	PIDDMXPersonalityDescription  PID = 0x00e1
	PIDDMXStartAddress            PID = 0x00f0

	// Control
	PIDIdentifyDevice PID = 0x1000
	PIDResetDevice    PID = 0x1001
)

// IsManufacturerSpecific reports whether the PID is in the
// manufacturer-specific range.
func (p PID) IsManufacturerSpecific() bool {
	return p >= 0x8000 && p <= 0xffdf
}

// IsDiscovery reports whether the PID belongs to the discovery process.
func (p PID) IsDiscovery() bool {
	return p == PIDDiscUniqueBranch || p == PIDDiscMute || p == PIDDiscUnMute
}

// CommandClass specifies the action of an RDM message.
type CommandClass uint8

const (
	CCDiscCommand         CommandClass = 0x10
	CCDiscCommandResponse CommandClass = 0x11
	CCGetCommand          CommandClass = 0x20
	CCGetCommandResponse  CommandClass = 0x21
	CCSetCommand          CommandClass = 0x30
	CCSetCommandResponse  CommandClass = 0x31
)

// IsRequest reports whether the command class is a controller-generated
// request.
func (cc CommandClass) IsRequest() bool {
	return cc == CCDiscCommand || cc == CCGetCommand || cc == CCSetCommand
}

// IsResponse reports whether the command class is a responder-generated
// response.
func (cc CommandClass) IsResponse() bool {
	return cc == CCDiscCommandResponse || cc == CCGetCommandResponse || cc == CCSetCommandResponse
}

// Response returns the response variant of a request command class.
func (cc CommandClass) Response() CommandClass {
	if cc.IsRequest() {
		return cc + 1
	}
	return cc
}

// String returns the command class name.
func (cc CommandClass) String() string {
	switch cc {
	case CCDiscCommand:
		return "DISC_COMMAND"
	case CCDiscCommandResponse:
		return "DISC_COMMAND_RESPONSE"
	case CCGetCommand:
		return "GET_COMMAND"
	case CCGetCommandResponse:
		return "GET_COMMAND_RESPONSE"
	case CCSetCommand:
		return "SET_COMMAND"
	case CCSetCommandResponse:
		return "SET_COMMAND_RESPONSE"
	default:
		return "UNKNOWN"
	}
}

// ResponseType is the acknowledgement type carried in responses.
// ResponseNone is local only: it marks the absence of a response.
type ResponseType int8

const (
	// ResponseNone indicates that no response was received or that no
	// response must be sent. It never appears on the wire.
	ResponseNone ResponseType = -1

	ResponseAck         ResponseType = 0x00
	ResponseAckTimer    ResponseType = 0x01
	ResponseNackReason  ResponseType = 0x02
	ResponseAckOverflow ResponseType = 0x03
)

// IsValid reports whether the response type is one of the four values
// legal on the wire.
func (rt ResponseType) IsValid() bool {
	return rt >= ResponseAck && rt <= ResponseAckOverflow
}

// String returns the response type name.
func (rt ResponseType) String() string {
	switch rt {
	case ResponseNone:
		return "NONE"
	case ResponseAck:
		return "ACK"
	case ResponseAckTimer:
		return "ACK_TIMER"
	case ResponseNackReason:
		return "NACK_REASON"
	case ResponseAckOverflow:
		return "ACK_OVERFLOW"
	default:
		return "UNKNOWN"
	}
}

// NackReason explains why a responder cannot comply with a request.
type NackReason uint16

const (
	NackUnknownPID               NackReason = 0x0000
	NackFormatError              NackReason = 0x0001
	NackHardwareFault            NackReason = 0x0002
	NackProxyReject              NackReason = 0x0003
	NackWriteProtect             NackReason = 0x0004
	NackUnsupportedCommandClass  NackReason = 0x0005
	NackDataOutOfRange           NackReason = 0x0006
	NackBufferFull               NackReason = 0x0007
	NackPacketSizeUnsupported    NackReason = 0x0008
	NackSubDeviceOutOfRange      NackReason = 0x0009
	NackProxyBufferFull          NackReason = 0x000a
)

// String returns the NACK reason name.
func (nr NackReason) String() string {
	switch nr {
	case NackUnknownPID:
		return "UNKNOWN_PID"
	case NackFormatError:
		return "FORMAT_ERROR"
	case NackHardwareFault:
		return "HARDWARE_FAULT"
	case NackProxyReject:
		return "PROXY_REJECT"
	case NackWriteProtect:
		return "WRITE_PROTECT"
	case NackUnsupportedCommandClass:
		return "UNSUPPORTED_COMMAND_CLASS"
	case NackDataOutOfRange:
		return "DATA_OUT_OF_RANGE"
	case NackBufferFull:
		return "BUFFER_FULL"
	case NackPacketSizeUnsupported:
		return "PACKET_SIZE_UNSUPPORTED"
	case NackSubDeviceOutOfRange:
		return "SUB_DEVICE_OUT_OF_RANGE"
	case NackProxyBufferFull:
		return "PROXY_BUFFER_FULL"
	default:
		return "UNKNOWN"
	}
}

// SubDevice addresses a logical unit within a physical device.
type SubDevice uint16

const (
	// SubDeviceRoot addresses the root device.
	SubDeviceRoot SubDevice = 0

	// SubDeviceAll addresses every sub-device. Valid only on SET.
	SubDeviceAll SubDevice = 0xffff

	// MaxSubDeviceCount is the highest sub-device number a device may
	// expose.
	MaxSubDeviceCount = 512
)

// ProductCategory reports a device's primary function in DEVICE_INFO.
type ProductCategory uint16

const (
	ProductCategoryNotDeclared ProductCategory = 0x0000
	ProductCategoryFixture     ProductCategory = 0x0100
	ProductCategoryDimmer      ProductCategory = 0x0500
	ProductCategoryData        ProductCategory = 0x0800
	ProductCategoryControl     ProductCategory = 0x7000
	ProductCategoryTest        ProductCategory = 0x7100
	ProductCategoryOther       ProductCategory = 0x7fff
)

// DataType describes the shape of a manufacturer-specific parameter in
// PARAMETER_DESCRIPTION responses.
type DataType uint8

const (
	DSNotDefined    DataType = 0x00
	DSBitField      DataType = 0x01
	DSASCII         DataType = 0x02
	DSUnsignedByte  DataType = 0x03
	DSSignedByte    DataType = 0x04
	DSUnsignedWord  DataType = 0x05
	DSSignedWord    DataType = 0x06
	DSUnsignedDWord DataType = 0x07
	DSSignedDWord   DataType = 0x08
)

// DMXStartAddressNone is reported as the start address by devices with
// a DMX footprint of zero.
const DMXStartAddressNone uint16 = 0xffff
