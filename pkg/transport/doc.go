// Package transport provides half-duplex bus access for the RDM engine.
//
// A Transport owns one physical or simulated DMX512 line. Outbound
// packets are written whole, optionally preceded by a break condition;
// inbound bytes are assembled into complete packets and delivered on a
// channel. The engine above never touches partial packets: the
// transport's receive loop plays the role the UART interrupt handler
// plays on embedded hosts, and hands upward only finished frames.
//
// The serial implementation drives a real RS-485 adapter at DMX line
// settings (250 kbaud, 8N2). Tests use the in-memory bus from
// internal/busharness instead.
package transport
