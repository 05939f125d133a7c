package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/rdm-protocol/rdm-go/pkg/responder"
	"github.com/rdm-protocol/rdm-go/pkg/uid"
)

// FileConfig is the YAML device description loaded with -config.
type FileConfig struct {
	// UID is the device UID in "mmmm:dddddddd" form.
	UID string `yaml:"uid"`

	// ModelID identifies the product model.
	ModelID uint16 `yaml:"model_id"`

	// SoftwareVersionID is the numeric firmware version.
	SoftwareVersionID uint32 `yaml:"software_version_id"`

	// SoftwareVersionLabel is the firmware version text.
	SoftwareVersionLabel string `yaml:"software_version_label"`

	// ManufacturerLabel names the manufacturer.
	ManufacturerLabel string `yaml:"manufacturer_label"`

	// DeviceModelDescription names the model.
	DeviceModelDescription string `yaml:"device_model_description"`

	// DeviceLabel is the initial user-assigned label.
	DeviceLabel string `yaml:"device_label"`

	// StartAddress is the initial DMX start address.
	StartAddress uint16 `yaml:"start_address"`

	// Personalities lists the DMX personalities in order.
	Personalities []PersonalityConfig `yaml:"personalities"`
}

// PersonalityConfig describes one personality in the config file.
type PersonalityConfig struct {
	Footprint   uint16 `yaml:"footprint"`
	Description string `yaml:"description"`
}

// loadFileConfig reads and parses a YAML device description.
func loadFileConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &FileConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// apply overlays the file values onto the responder config. Flag
// values already present win over file values.
func (f *FileConfig) apply(cfg *responder.Config) error {
	if f.UID != "" && cfg.UID.IsNull() {
		u, err := uid.Parse(f.UID)
		if err != nil {
			return err
		}
		cfg.UID = u
	}
	if f.ModelID != 0 {
		cfg.ModelID = f.ModelID
	}
	if f.SoftwareVersionID != 0 {
		cfg.SoftwareVersionID = f.SoftwareVersionID
	}
	if f.SoftwareVersionLabel != "" {
		cfg.SoftwareVersionLabel = f.SoftwareVersionLabel
	}
	if f.ManufacturerLabel != "" {
		cfg.ManufacturerLabel = f.ManufacturerLabel
	}
	if f.DeviceModelDescription != "" {
		cfg.DeviceModelDescription = f.DeviceModelDescription
	}
	if f.DeviceLabel != "" {
		cfg.DeviceLabel = f.DeviceLabel
	}
	if f.StartAddress != 0 {
		cfg.StartAddress = f.StartAddress
	}
	for _, p := range f.Personalities {
		cfg.Personalities = append(cfg.Personalities, responder.Personality{
			Footprint:   p.Footprint,
			Description: p.Description,
		})
	}
	return nil
}
