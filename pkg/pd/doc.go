// Package pd implements the RDM parameter-data codec: a small
// format-string language describing the binary layout of the
// parameter-data block carried by every RDM packet.
//
// A format string is a sequence of single-field tokens:
//
//	b        8-bit unsigned integer
//	w        16-bit unsigned integer, big-endian
//	d        32-bit unsigned integer, big-endian
//	u        48-bit UID
//	v        optional UID, omitted when null; must be the final token
//	a        variable-length ASCII text; must be the final token
//	a<N>     fixed-length ASCII text, padded or truncated to N bytes
//	#<hex>h  literal constant, at most 8 bytes, embedded verbatim
//
// Formats are compiled once into a token list and reused. A compiled
// format is applied repeatedly against its input, packing one record
// per pass, which is how homogeneous arrays (such as UID lists) are
// encoded into a single parameter-data block.
package pd
