package log

import (
	"time"
)

// Event represents a protocol log event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// PortID uniquely identifies the bus port (UUID).
	PortID string `cbor:"2,keyasint"`

	// Direction indicates packet flow relative to the local endpoint.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// LocalRole indicates whether this endpoint is a responder or a
	// controller.
	LocalRole Role `cbor:"6,keyasint,omitempty"`

	// DeviceUID is the remote device's UID in "mmmm:dddddddd" form,
	// when one is known.
	DeviceUID string `cbor:"7,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"` // Line layer
	Message     *MessageEvent     `cbor:"11,keyasint,omitempty"` // Frame layer (decoded)
	Discovery   *DiscoveryEvent   `cbor:"12,keyasint,omitempty"` // Discovery progress
	StateChange *StateChangeEvent `cbor:"13,keyasint,omitempty"` // Port/device state
	Error       *ErrorEventData   `cbor:"14,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of packet flow.
type Direction uint8

const (
	// DirectionIn indicates an incoming packet.
	DirectionIn Direction = 0
	// DirectionOut indicates an outgoing packet.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which protocol layer captured the event.
type Layer uint8

const (
	// LayerLine is the bus layer (raw bytes, breaks, turnaround).
	LayerLine Layer = 0
	// LayerFrame is the packet encoding layer (decoded headers).
	LayerFrame Layer = 1
	// LayerEngine is the controller/responder engine layer.
	LayerEngine Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerLine:
		return "LINE"
	case LayerFrame:
		return "FRAME"
	case LayerEngine:
		return "ENGINE"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates a request or response packet.
	CategoryMessage Category = 0
	// CategoryDiscovery indicates discovery traffic or progress.
	CategoryDiscovery Category = 1
	// CategoryState indicates a state change.
	CategoryState Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryDiscovery:
		return "DISCOVERY"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Role indicates whether the local endpoint is a responder or a
// controller.
type Role uint8

const (
	// RoleResponder indicates this endpoint answers requests.
	RoleResponder Role = 0
	// RoleController indicates this endpoint originates requests.
	RoleController Role = 1
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleResponder:
		return "RESPONDER"
	case RoleController:
		return "CONTROLLER"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures raw bus data at the line layer.
type FrameEvent struct {
	// Size is the packet size in bytes on the line.
	Size int `cbor:"1,keyasint"`

	// Data is the raw bytes (may be truncated for large packets).
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"3,keyasint,omitempty"`

	// Break indicates the packet was preceded by a break condition.
	Break bool `cbor:"4,keyasint,omitempty"`
}

// MessageEvent captures a decoded packet at the frame layer.
type MessageEvent struct {
	// TN is the transaction number correlating request/response pairs.
	TN uint8 `cbor:"1,keyasint"`

	// CC is the command class octet.
	CC uint8 `cbor:"2,keyasint"`

	// PID is the parameter ID.
	PID uint16 `cbor:"3,keyasint"`

	// SubDevice is the addressed sub-device.
	SubDevice uint16 `cbor:"4,keyasint,omitempty"`

	// For responses: the response type octet.
	ResponseType *uint8 `cbor:"5,keyasint,omitempty"`

	// For NACK_REASON responses: the reason code.
	NackReason *uint16 `cbor:"6,keyasint,omitempty"`

	// PDL is the parameter-data length.
	PDL uint8 `cbor:"7,keyasint,omitempty"`

	// ProcessingTime is the duration from request receipt to response
	// send (responder side only). Stored as nanoseconds.
	ProcessingTime *time.Duration `cbor:"8,keyasint,omitempty"`
}

// DiscoveryEvent captures discovery progress at the engine layer.
type DiscoveryEvent struct {
	// Outcome of one branch probe.
	Outcome DiscoveryOutcome `cbor:"1,keyasint"`

	// Lower and Upper are the probed branch bounds.
	Lower string `cbor:"2,keyasint,omitempty"`
	Upper string `cbor:"3,keyasint,omitempty"`

	// Found is the UID recovered from a clean response.
	Found string `cbor:"4,keyasint,omitempty"`
}

// DiscoveryOutcome classifies the result of one branch probe.
type DiscoveryOutcome uint8

const (
	// DiscoverySilent means no device answered the branch.
	DiscoverySilent DiscoveryOutcome = 0
	// DiscoveryFound means exactly one device answered cleanly.
	DiscoveryFound DiscoveryOutcome = 1
	// DiscoveryCollision means several devices answered at once.
	DiscoveryCollision DiscoveryOutcome = 2
)

// String returns the outcome name.
func (o DiscoveryOutcome) String() string {
	switch o {
	case DiscoverySilent:
		return "SILENT"
	case DiscoveryFound:
		return "FOUND"
	case DiscoveryCollision:
		return "COLLISION"
	default:
		return "UNKNOWN"
	}
}

// StateChangeEvent captures port and device lifecycle events.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityPort indicates a port lifecycle change.
	StateEntityPort StateEntity = 0
	// StateEntityDevice indicates a device state change (mute,
	// identify, address).
	StateEntityDevice StateEntity = 1
	// StateEntityDiscovery indicates a discovery sweep starting or
	// ending.
	StateEntityDiscovery StateEntity = 2
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityPort:
		return "PORT"
	case StateEntityDevice:
		return "DEVICE"
	case StateEntityDiscovery:
		return "DISCOVERY"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Code is the error code (if applicable).
	Code *int `cbor:"3,keyasint,omitempty"`

	// Context describes what operation was being performed.
	Context string `cbor:"4,keyasint,omitempty"`
}
