// Package persistence provides runtime state persistence for RDM
// responders and controllers.
//
// Responders persist the settable parameters (DMX start address,
// personality, device label) so they survive a power cycle; the mute
// flag and identify state deliberately do not. Controllers persist the
// result of the last discovery sweep so a console restart does not
// force a full rescan.
package persistence
