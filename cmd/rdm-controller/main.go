// Command rdm-controller is an interactive console for managing RDM
// devices on a serial DMX port.
//
// Usage:
//
//	rdm-controller -serial /dev/ttyUSB0
//	rdm-controller -serial /dev/ttyUSB0 -state controller.json -log bus.rdmlog
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

	"github.com/rdm-protocol/rdm-go/pkg/controller"
	"github.com/rdm-protocol/rdm-go/pkg/log"
	"github.com/rdm-protocol/rdm-go/pkg/persistence"
	"github.com/rdm-protocol/rdm-go/pkg/port"
	"github.com/rdm-protocol/rdm-go/pkg/transport"
	"github.com/rdm-protocol/rdm-go/pkg/uid"

	"github.com/rdm-protocol/rdm-go/cmd/rdm-controller/interactive"
)

// defaultUID is the controller's source UID when none is given. The
// device ID half is arbitrary; only uniqueness on the local bus
// matters, and controllers never answer discovery.
const defaultUID = "7a70:00000001"

var (
	serialPort = flag.String("serial", "", "serial port of the DMX interface (required)")
	uidFlag    = flag.String("uid", defaultUID, "controller source UID")
	statePath  = flag.String("state", "", "JSON file for known devices")
	logPath    = flag.String("log", "", "protocol event log (.rdmlog)")
)

func main() {
	flag.Parse()
	stdlog.SetFlags(0)

	if err := run(); err != nil {
		stdlog.Fatalf("rdm-controller: %v", err)
	}
}

func run() error {
	if *serialPort == "" {
		return errors.New("-serial is required")
	}
	ctrlUID, err := uid.Parse(*uidFlag)
	if err != nil {
		return err
	}

	var logger log.Logger = log.NoopLogger{}
	if *logPath != "" {
		fileLogger, err := log.NewFileLogger(*logPath)
		if err != nil {
			return fmt.Errorf("open event log: %w", err)
		}
		defer fileLogger.Close()
		logger = fileLogger
	}

	tr, err := transport.OpenSerial(*serialPort)
	if err != nil {
		return fmt.Errorf("open %s: %w", *serialPort, err)
	}
	defer tr.Close()

	p := port.Open(port.Config{
		Transport: tr,
		Logger:    logger,
		Role:      log.RoleController,
	})
	ctrl, err := controller.New(controller.Config{
		UID:    ctrlUID,
		Port:   p,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	var store *persistence.ControllerStateStore
	if *statePath != "" {
		store = persistence.NewControllerStateStore(*statePath)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	return interactive.New(ctrl, store).Run(ctx)
}
