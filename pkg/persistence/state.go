package persistence

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rdm-protocol/rdm-go/pkg/uid"
)

// StateVersion is the current version of the state file format.
const StateVersion = 1

// DeviceState contains the persisted parameters of an RDM responder.
// Only parameters a controller can SET are stored; volatile state such
// as the mute flag and the identify state always resets on boot.
type DeviceState struct {
	// Version is the state file format version.
	Version int `json:"version"`

	// SavedAt is when the state was last saved.
	SavedAt time.Time `json:"saved_at"`

	// StartAddress is the DMX start address, 1-512, or 0xffff when the
	// device has no footprint.
	StartAddress uint16 `json:"start_address"`

	// Personality is the current DMX personality, 1-based.
	Personality uint8 `json:"personality"`

	// DeviceLabel is the user-assigned label, at most 32 characters.
	DeviceLabel string `json:"device_label,omitempty"`
}

// DeviceStateStore manages persistence of responder state to a JSON
// file.
type DeviceStateStore struct {
	mu   sync.Mutex
	path string
}

// NewDeviceStateStore creates a new device state store.
func NewDeviceStateStore(path string) *DeviceStateStore {
	return &DeviceStateStore{path: path}
}

// Save persists the device state to disk.
func (s *DeviceStateStore) Save(state *DeviceState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Ensure parent directory exists
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	state.Version = StateVersion
	if state.SavedAt.IsZero() {
		state.SavedAt = time.Now()
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(s.path, data, 0644)
}

// Load reads the device state from disk.
// Returns nil, nil if the file doesn't exist (empty state).
func (s *DeviceStateStore) Load() (*DeviceState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	state := &DeviceState{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, err
	}

	return state, nil
}

// Clear removes the state file.
func (s *DeviceStateStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// ControllerState contains the persisted state of an RDM controller:
// the devices the last discovery sweep found.
type ControllerState struct {
	// Version is the state file format version.
	Version int `json:"version"`

	// SavedAt is when the state was last saved.
	SavedAt time.Time `json:"saved_at"`

	// Devices contains the devices found on the bus.
	Devices []KnownDevice `json:"devices,omitempty"`
}

// KnownDevice records one device found by discovery.
type KnownDevice struct {
	// UID is the device's unique identifier, in "mmmm:dddddddd" form.
	UID string `json:"uid"`

	// Model is the device model ID from DEVICE_INFO, if queried.
	Model uint16 `json:"model,omitempty"`

	// Label is the device label, if queried.
	Label string `json:"label,omitempty"`

	// FoundAt is when discovery first reported the device.
	FoundAt time.Time `json:"found_at"`

	// LastSeenAt is when the device last answered a request.
	LastSeenAt time.Time `json:"last_seen_at,omitempty"`
}

// ParseUID decodes the stored UID string.
func (d *KnownDevice) ParseUID() (uid.UID, error) {
	return uid.Parse(d.UID)
}

// ControllerStateStore manages persistence of controller state to a
// JSON file.
type ControllerStateStore struct {
	mu   sync.Mutex
	path string
}

// NewControllerStateStore creates a new controller state store.
func NewControllerStateStore(path string) *ControllerStateStore {
	return &ControllerStateStore{path: path}
}

// Save persists the controller state to disk.
func (s *ControllerStateStore) Save(state *ControllerState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	state.Version = StateVersion
	if state.SavedAt.IsZero() {
		state.SavedAt = time.Now()
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(s.path, data, 0644)
}

// Load reads the controller state from disk.
// Returns nil, nil if the file doesn't exist (empty state).
func (s *ControllerStateStore) Load() (*ControllerState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	state := &ControllerState{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, err
	}

	return state, nil
}

// Clear removes the state file.
func (s *ControllerStateStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
