package pd

import (
	"encoding/binary"
	"fmt"

	"github.com/rdm-protocol/rdm-go/pkg/uid"
)

// Record holds the input or output values for one pass of a format,
// one value per value-consuming token. Literal tokens take no slot.
// Value types by token: 'b' uint8, 'w' uint16, 'd' uint32, 'u' and 'v'
// uid.UID, 'a' string.
type Record []any

// Encode packs records into a parameter-data block, applying the
// format once per record. Encoding fails closed: any shape or type
// error returns a nil block. Output is capped at MaxLen bytes; records
// that do not fit are not emitted.
func (f *Format) Encode(records []Record) ([]byte, error) {
	out := make([]byte, 0, min(len(records)*f.fixedSize, MaxLen))

	for _, rec := range records {
		if len(rec) != f.arity {
			return nil, fmt.Errorf("%w: format %q wants %d values, record has %d",
				ErrRecordShape, f.source, f.arity, len(rec))
		}

		encoded, err := f.appendRecord(out, rec)
		if err != nil {
			return nil, err
		}
		if len(encoded) > MaxLen {
			// The 231-byte cap: stop before the record that overflows.
			break
		}
		out = encoded
	}

	return out, nil
}

// EncodeRecord packs a single record. Shorthand for Encode with one
// record.
func (f *Format) EncodeRecord(values ...any) ([]byte, error) {
	return f.Encode([]Record{values})
}

func (f *Format) appendRecord(out []byte, rec Record) ([]byte, error) {
	slot := 0
	for _, tok := range f.tokens {
		var v any
		if tok.consumesInput() {
			v = rec[slot]
			slot++
		}

		switch tok.kind {
		case tokLiteral:
			out = append(out, tok.literal...)

		case tokUint8:
			b, ok := v.(uint8)
			if !ok {
				return nil, typeErr(f, "b", v)
			}
			out = append(out, b)

		case tokUint16:
			w, ok := v.(uint16)
			if !ok {
				return nil, typeErr(f, "w", v)
			}
			out = binary.BigEndian.AppendUint16(out, w)

		case tokUint32:
			d, ok := v.(uint32)
			if !ok {
				return nil, typeErr(f, "d", v)
			}
			out = binary.BigEndian.AppendUint32(out, d)

		case tokUID:
			u, ok := v.(uid.UID)
			if !ok {
				return nil, typeErr(f, "u", v)
			}
			out = u.Marshal(out)

		case tokOptionalUID:
			u, ok := v.(uid.UID)
			if !ok {
				return nil, typeErr(f, "v", v)
			}
			// A null UID consumes its input slot without producing
			// output: the field is simply absent from the wire.
			if !u.IsNull() {
				out = u.Marshal(out)
			}

		case tokText:
			s, ok := v.(string)
			if !ok {
				return nil, typeErr(f, "a", v)
			}
			if tok.variable {
				if room := MaxLen - len(out); len(s) > room {
					s = s[:room]
				}
				out = append(out, s...)
				break
			}
			// Fixed-length text: truncate or zero-pad to exactly the
			// declared size, no terminator stored.
			if len(s) > tok.size {
				s = s[:tok.size]
			}
			out = append(out, s...)
			for i := len(s); i < tok.size; i++ {
				out = append(out, 0)
			}
		}
	}
	return out, nil
}

// Decode splits a parameter-data block into records, the structural
// inverse of Encode. A trailing partial record is discarded rather
// than read out of bounds. An optional UID is decoded as present when
// its 6 bytes remain and as uid.Null when they do not.
func (f *Format) Decode(data []byte) ([]Record, error) {
	if len(data) > MaxLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrOverflow, len(data))
	}

	var records []Record
	pos := 0
	for pos < len(data) {
		rec, next, ok := f.decodeRecord(data, pos)
		if !ok {
			break
		}
		records = append(records, rec)
		if next == pos {
			break
		}
		pos = next
	}
	return records, nil
}

// DecodeAll decodes records and requires data to be consumed exactly:
// trailing bytes that do not form a complete record are an error, and
// an empty block is an error unless the format accepts an empty
// record (a lone variable-length text does). Use it where a partial
// or empty block signals a protocol violation rather than truncation.
func (f *Format) DecodeAll(data []byte) ([]Record, error) {
	if len(data) > MaxLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrOverflow, len(data))
	}

	if len(data) == 0 {
		rec, _, ok := f.decodeRecord(data, 0)
		if !ok {
			return nil, fmt.Errorf("%w: empty block for format %q", ErrRecordShape, f.source)
		}
		return []Record{rec}, nil
	}

	var records []Record
	pos := 0
	for pos < len(data) {
		rec, next, ok := f.decodeRecord(data, pos)
		if !ok || next == pos {
			return nil, fmt.Errorf("%w: %d trailing bytes for format %q",
				ErrRecordShape, len(data)-pos, f.source)
		}
		records = append(records, rec)
		pos = next
	}
	return records, nil
}

// DecodeRecord decodes exactly one record from data. It fails when
// data does not hold a complete record.
func (f *Format) DecodeRecord(data []byte) (Record, error) {
	rec, _, ok := f.decodeRecord(data, 0)
	if !ok {
		return nil, fmt.Errorf("%w: %d bytes for format %q", ErrRecordShape, len(data), f.source)
	}
	return rec, nil
}

func (f *Format) decodeRecord(data []byte, pos int) (Record, int, bool) {
	rec := make(Record, 0, f.arity)
	for _, tok := range f.tokens {
		switch tok.kind {
		case tokLiteral:
			// Literal bytes are part of the layout, not the values.
			if pos+tok.size > len(data) {
				return nil, pos, false
			}
			pos += tok.size

		case tokUint8:
			if pos+1 > len(data) {
				return nil, pos, false
			}
			rec = append(rec, data[pos])
			pos++

		case tokUint16:
			if pos+2 > len(data) {
				return nil, pos, false
			}
			rec = append(rec, binary.BigEndian.Uint16(data[pos:]))
			pos += 2

		case tokUint32:
			if pos+4 > len(data) {
				return nil, pos, false
			}
			rec = append(rec, binary.BigEndian.Uint32(data[pos:]))
			pos += 4

		case tokUID:
			u, err := uid.Unmarshal(data[pos:])
			if err != nil {
				return nil, pos, false
			}
			rec = append(rec, u)
			pos += uid.Size

		case tokOptionalUID:
			if pos+uid.Size > len(data) {
				rec = append(rec, uid.Null)
				break
			}
			u, _ := uid.Unmarshal(data[pos:])
			rec = append(rec, u)
			pos += uid.Size

		case tokText:
			if tok.variable {
				rec = append(rec, trimPadding(data[pos:]))
				pos = len(data)
				break
			}
			if pos+tok.size > len(data) {
				return nil, pos, false
			}
			rec = append(rec, trimPadding(data[pos:pos+tok.size]))
			pos += tok.size
		}
	}
	return rec, pos, true
}

// trimPadding converts fixed-width text to a string, dropping the
// zero padding appended by Encode.
func trimPadding(b []byte) string {
	end := len(b)
	for end > 0 && b[end-1] == 0 {
		end--
	}
	return string(b[:end])
}

func typeErr(f *Format, tok string, v any) error {
	return fmt.Errorf("%w: token %q of %q got %T", ErrValueType, tok, f.source, v)
}
