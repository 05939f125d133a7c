// Package responder implements the device side of the RDM protocol: a
// state machine that consumes request packets addressed to one device
// UID and produces the responses ANSI E1.20 requires, including the
// discovery and mute behavior that makes the device findable on a
// shared line.
package responder

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rdm-protocol/rdm-go/pkg/log"
	"github.com/rdm-protocol/rdm-go/pkg/param"
	"github.com/rdm-protocol/rdm-go/pkg/pd"
	"github.com/rdm-protocol/rdm-go/pkg/persistence"
	"github.com/rdm-protocol/rdm-go/pkg/uid"
)

// Registration errors.
var (
	// ErrDuplicatePID indicates a parameter registered twice.
	ErrDuplicatePID = errors.New("parameter already registered")

	// ErrNoHandler indicates a definition without a handler.
	ErrNoHandler = errors.New("definition has no handler")
)

// MaxLabelLen is the longest label text a device accepts on SET.
const MaxLabelLen = 32

// Personality describes one DMX personality of a device.
type Personality struct {
	// Footprint is the number of DMX slots the personality occupies.
	Footprint uint16

	// Description names the personality, at most 32 characters.
	Description string
}

// Config describes the device being modeled.
type Config struct {
	// UID is the device's unique identifier. Required.
	UID uid.UID

	// BindingUID is reported in mute responses by multi-port devices.
	// Leave zero on single-port devices.
	BindingUID uid.UID

	// ModelID identifies the product model.
	ModelID uint16

	// ProductCategory classifies the product.
	ProductCategory param.ProductCategory

	// SoftwareVersionID is the numeric firmware version.
	SoftwareVersionID uint32

	// SoftwareVersionLabel is the firmware version text.
	SoftwareVersionLabel string

	// ManufacturerLabel names the manufacturer.
	ManufacturerLabel string

	// DeviceModelDescription names the model.
	DeviceModelDescription string

	// DeviceLabel is the initial user-assigned label.
	DeviceLabel string

	// Personalities lists the DMX personalities, in order. A device
	// with no DMX footprint may leave this empty.
	Personalities []Personality

	// StartAddress is the initial DMX start address, 1-512.
	StartAddress uint16

	// Store persists settable parameters across restarts. Optional.
	Store *persistence.DeviceStateStore

	// Logger receives protocol events. Nil disables capture.
	Logger log.Logger
}

// Request is one decoded request handed to a parameter handler.
type Request struct {
	// CC is the request's command class.
	CC param.CommandClass

	// SubDevice is the addressed sub-device.
	SubDevice param.SubDevice

	// PID is the requested parameter.
	PID param.PID

	// Data is the raw parameter data. Handlers for parameters with a
	// request format also get the decoded records.
	Data []byte

	// Records is Data decoded through the request format, when the
	// definition declares one: one value per value-consuming token.
	Records pd.Record
}

// Reply is a handler's verdict on one request.
type Reply struct {
	// Type is the response type octet.
	Type param.ResponseType

	// Reason carries the NACK reason when Type is NACK_REASON.
	Reason param.NackReason

	// Data is the response parameter data.
	Data []byte

	// Timer is the retry delay when Type is ACK_TIMER.
	Timer time.Duration
}

// Ack builds an ACK reply carrying data.
func Ack(data []byte) *Reply {
	return &Reply{Type: param.ResponseAck, Data: data}
}

// Nack builds a NACK_REASON reply.
func Nack(reason param.NackReason) *Reply {
	return &Reply{Type: param.ResponseNackReason, Reason: reason}
}

// AckTimer builds an ACK_TIMER reply telling the controller to retry
// after d.
func AckTimer(d time.Duration) *Reply {
	return &Reply{Type: param.ResponseAckTimer, Timer: d}
}

// Handler processes one request for one parameter. Returning nil
// suppresses the response entirely, which only discovery parameters
// may do.
type Handler func(req *Request) *Reply

// Definition binds a parameter ID to its wire formats and handler.
type Definition struct {
	// PID is the parameter this definition serves.
	PID param.PID

	// Get and Set state which command classes the parameter supports.
	Get bool
	Set bool

	// GetRequest and SetRequest validate inbound parameter data. A nil
	// format requires an empty parameter-data block.
	GetRequest *pd.Format
	SetRequest *pd.Format

	// GetResponse and SetResponse police outbound parameter data. A
	// nil format requires the handler to return no data.
	GetResponse *pd.Format
	SetResponse *pd.Format

	// Description backs PARAMETER_DESCRIPTION for manufacturer PIDs.
	Description *param.ParameterDescription

	// Handler produces the reply.
	Handler Handler
}

// Device is one RDM responder. Parameter registration happens before
// the device starts serving; runtime state is guarded for concurrent
// access from handlers and inspection.
type Device struct {
	cfg  Config
	defs map[param.PID]*Definition

	logger log.Logger

	mu            sync.Mutex
	muted         bool
	identify      bool
	startAddress  uint16
	personality   uint8 // 1-based, 0 when the device has none
	deviceLabel   string
	hardwareFault bool
}

// New builds a Device from cfg, registers the required parameters, and
// restores persisted state if a store is configured.
func New(cfg Config) (*Device, error) {
	if cfg.UID.IsNull() || cfg.UID.IsBroadcast() {
		return nil, fmt.Errorf("unusable device uid %s", cfg.UID)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NoopLogger{}
	}

	d := &Device{
		cfg:          cfg,
		defs:         make(map[param.PID]*Definition),
		logger:       logger,
		startAddress: cfg.StartAddress,
		deviceLabel:  cfg.DeviceLabel,
	}
	if len(cfg.Personalities) > 0 {
		d.personality = 1
		if d.startAddress == 0 {
			d.startAddress = 1
		}
	} else {
		d.startAddress = param.DMXStartAddressNone
	}

	d.registerDefaults()

	if cfg.Store != nil {
		if err := d.restore(); err != nil {
			return nil, fmt.Errorf("restore state: %w", err)
		}
	}
	return d, nil
}

// UID returns the device's unique identifier.
func (d *Device) UID() uid.UID { return d.cfg.UID }

// Register adds a manufacturer-specific parameter. Must be called
// before the device starts serving.
func (d *Device) Register(def *Definition) error {
	if def.Handler == nil {
		return fmt.Errorf("%w: pid %#04x", ErrNoHandler, uint16(def.PID))
	}
	if _, ok := d.defs[def.PID]; ok {
		return fmt.Errorf("%w: pid %#04x", ErrDuplicatePID, uint16(def.PID))
	}
	d.defs[def.PID] = def
	return nil
}

// Muted reports the discovery mute flag.
func (d *Device) Muted() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.muted
}

// SetMuted sets the discovery mute flag directly. Discovery traffic
// normally manages this; the setter exists for tests and tooling.
func (d *Device) SetMuted(muted bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.muted = muted
}

// Identify reports the identify state.
func (d *Device) Identify() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.identify
}

// StartAddress returns the current DMX start address.
func (d *Device) StartAddress() uint16 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.startAddress
}

// CurrentPersonality returns the active personality number, 1-based.
func (d *Device) CurrentPersonality() uint8 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.personality
}

// DeviceLabel returns the user-assigned label.
func (d *Device) DeviceLabel() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.deviceLabel
}

// HardwareFault reports whether a handler has misbehaved since the
// last reset.
func (d *Device) HardwareFault() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.hardwareFault
}

// footprint returns the active personality's DMX footprint.
func (d *Device) footprint() uint16 {
	if d.personality == 0 || int(d.personality) > len(d.cfg.Personalities) {
		return 0
	}
	return d.cfg.Personalities[d.personality-1].Footprint
}

// deviceInfo snapshots the DEVICE_INFO parameter.
func (d *Device) deviceInfo() *param.DeviceInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	return &param.DeviceInfo{
		ModelID:            d.cfg.ModelID,
		ProductCategory:    d.cfg.ProductCategory,
		SoftwareVersionID:  d.cfg.SoftwareVersionID,
		Footprint:          d.footprint(),
		CurrentPersonality: d.personality,
		PersonalityCount:   uint8(len(d.cfg.Personalities)),
		StartAddress:       d.startAddress,
		SubDeviceCount:     0,
		SensorCount:        0,
	}
}

// supportedParameters lists the optional PIDs the device implements,
// sorted. The parameters every responder must implement are omitted,
// as are the discovery PIDs.
func (d *Device) supportedParameters() []param.PID {
	required := map[param.PID]bool{
		param.PIDDiscUniqueBranch:     true,
		param.PIDDiscMute:             true,
		param.PIDDiscUnMute:           true,
		param.PIDSupportedParameters:  true,
		param.PIDParameterDescription: true,
		param.PIDDeviceInfo:           true,
		param.PIDSoftwareVersionLabel: true,
		param.PIDDMXStartAddress:      true,
		param.PIDIdentifyDevice:       true,
	}
	var pids []param.PID
	for pid := range d.defs {
		if !required[pid] {
			pids = append(pids, pid)
		}
	}
	sort.Slice(pids, func(i, j int) bool { return pids[i] < pids[j] })
	return pids
}

// persist writes the settable parameters through the configured store.
func (d *Device) persist() {
	if d.cfg.Store == nil {
		return
	}
	d.mu.Lock()
	state := &persistence.DeviceState{
		StartAddress: d.startAddress,
		Personality:  d.personality,
		DeviceLabel:  d.deviceLabel,
	}
	d.mu.Unlock()

	if err := d.cfg.Store.Save(state); err != nil {
		d.logger.Log(log.Event{
			Timestamp: time.Now(),
			Layer:     log.LayerEngine,
			Category:  log.CategoryError,
			LocalRole: log.RoleResponder,
			DeviceUID: d.cfg.UID.String(),
			Error: &log.ErrorEventData{
				Layer:   log.LayerEngine,
				Message: err.Error(),
				Context: "persist state",
			},
		})
	}
}

// restore loads persisted parameters, ignoring values that no longer
// fit the configuration.
func (d *Device) restore() error {
	state, err := d.cfg.Store.Load()
	if err != nil {
		return err
	}
	if state == nil {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if state.Personality >= 1 && int(state.Personality) <= len(d.cfg.Personalities) {
		d.personality = state.Personality
	}
	if d.validStartAddressLocked(state.StartAddress) {
		d.startAddress = state.StartAddress
	}
	if len(state.DeviceLabel) <= MaxLabelLen {
		d.deviceLabel = state.DeviceLabel
	}
	return nil
}

// validStartAddressLocked checks an address against the active
// footprint. Callers hold d.mu.
func (d *Device) validStartAddressLocked(addr uint16) bool {
	fp := d.footprint()
	if fp == 0 {
		return addr == param.DMXStartAddressNone
	}
	return addr >= 1 && uint32(addr)+uint32(fp)-1 <= 512
}
