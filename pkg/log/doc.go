// Package log provides structured protocol logging for the RDM engine.
//
// This package defines the Logger interface and Event types for capturing
// protocol-level events at multiple layers (line, frame, engine).
// It is separate from operational logging (slog) - protocol capture provides
// a complete machine-readable event trace for debugging and analysis.
//
// # Basic Usage
//
// Applications configure logging by providing a Logger implementation:
//
//	// For development: log to console via slog
//	cfg.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//
//	// For production: write to binary file
//	cfg.ProtocolLogger, _ = log.NewFileLogger("/var/log/rdm/port1.rdmlog")
//
//	// Both: use MultiLogger
//	cfg.ProtocolLogger = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    log.NewFileLogger("/var/log/rdm/port1.rdmlog"),
//	)
//
// # Event Types
//
// Events are captured at multiple layers:
//   - Line: Raw bus bytes as sent or received (FrameEvent)
//   - Frame: Decoded packets (MessageEvent)
//   - Engine: Discovery progress and state changes (DiscoveryEvent,
//     StateChangeEvent)
//
// Errors at any layer have a dedicated event type.
//
// # File Format
//
// Log files use CBOR encoding with .rdmlog extension. The Reader type
// provides viewing and filtering.
package log
