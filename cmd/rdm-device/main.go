// Command rdm-device runs an RDM responder on a serial DMX port.
//
// The device answers discovery, GET, and SET requests for the standard
// parameter set and persists its settable parameters across restarts.
//
// Usage:
//
//	rdm-device -serial /dev/ttyUSB0 -uid 05e0:00000042
//	rdm-device -serial /dev/ttyUSB0 -config device.yaml -state device.json
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"

	"github.com/rdm-protocol/rdm-go/pkg/log"
	"github.com/rdm-protocol/rdm-go/pkg/param"
	"github.com/rdm-protocol/rdm-go/pkg/persistence"
	"github.com/rdm-protocol/rdm-go/pkg/responder"
	"github.com/rdm-protocol/rdm-go/pkg/transport"
	"github.com/rdm-protocol/rdm-go/pkg/uid"
)

var (
	serialPort = flag.String("serial", "", "serial port of the DMX interface (required)")
	uidFlag    = flag.String("uid", "", "device UID, e.g. 05e0:00000042")
	configPath = flag.String("config", "", "YAML device description")
	statePath  = flag.String("state", "", "JSON file for persisted device state")
	logPath    = flag.String("log", "", "protocol event log (.rdmlog)")
)

func main() {
	flag.Parse()
	stdlog.SetFlags(stdlog.Ltime | stdlog.Lmicroseconds)

	if err := run(); err != nil {
		stdlog.Fatalf("rdm-device: %v", err)
	}
}

func run() error {
	if *serialPort == "" {
		return errors.New("-serial is required")
	}

	cfg := responder.Config{
		ProductCategory:        param.ProductCategoryFixture,
		SoftwareVersionID:      0x00010000,
		SoftwareVersionLabel:   "1.0.0",
		ManufacturerLabel:      "rdm-go",
		DeviceModelDescription: "rdm-go responder",
	}

	if *uidFlag != "" {
		u, err := uid.Parse(*uidFlag)
		if err != nil {
			return err
		}
		cfg.UID = u
	}
	if *configPath != "" {
		fileCfg, err := loadFileConfig(*configPath)
		if err != nil {
			return err
		}
		if err := fileCfg.apply(&cfg); err != nil {
			return err
		}
	}
	if cfg.UID.IsNull() {
		return errors.New("no device UID: pass -uid or set uid in the config file")
	}
	if len(cfg.Personalities) == 0 {
		cfg.Personalities = []responder.Personality{{Footprint: 1, Description: "1-channel dimmer"}}
	}
	if *statePath != "" {
		cfg.Store = persistence.NewDeviceStateStore(*statePath)
	}

	if *logPath != "" {
		fileLogger, err := log.NewFileLogger(*logPath)
		if err != nil {
			return fmt.Errorf("open event log: %w", err)
		}
		defer fileLogger.Close()
		cfg.Logger = fileLogger
	}

	dev, err := responder.New(cfg)
	if err != nil {
		return err
	}

	tr, err := transport.OpenSerial(*serialPort)
	if err != nil {
		return fmt.Errorf("open %s: %w", *serialPort, err)
	}
	defer tr.Close()

	stdlog.Printf("device %s listening on %s", dev.UID(), *serialPort)
	stdlog.Printf("start address %d, label %q", dev.StartAddress(), dev.DeviceLabel())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		stdlog.Printf("received %v, shutting down", sig)
		cancel()
	}()

	if err := dev.Serve(ctx, tr); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
