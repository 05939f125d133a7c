package pd

import (
	"errors"
	"fmt"

	"github.com/rdm-protocol/rdm-go/pkg/uid"
)

// MaxLen is the maximum length of an encoded parameter-data block.
const MaxLen = 231

// maxLiteralBytes is the maximum size of a '#' literal constant.
const maxLiteralBytes = 8

// Format compilation errors. Compile fails closed: a format that
// violates any rule produces no usable Format.
var (
	// ErrUnknownToken indicates a character that is not part of the
	// format language.
	ErrUnknownToken = errors.New("unknown format token")

	// ErrNotFinal indicates a variable-length token ('v' or bare 'a')
	// that is not the last token of the format.
	ErrNotFinal = errors.New("variable-length token must be final")

	// ErrStringSize indicates a fixed-length text token with a zero
	// size or a size that does not fit the parameter-data budget.
	ErrStringSize = errors.New("bad fixed text size")

	// ErrBadLiteral indicates a literal constant that is longer than 8
	// bytes or is missing its 'h' terminator.
	ErrBadLiteral = errors.New("bad literal constant")

	// ErrFormatTooLong indicates a format whose single-record encoding
	// cannot fit in a parameter-data block.
	ErrFormatTooLong = errors.New("format exceeds parameter-data budget")
)

// Encode/decode errors.
var (
	// ErrValueType indicates an input value whose Go type does not
	// match its format token.
	ErrValueType = errors.New("value does not match format token")

	// ErrRecordShape indicates a record with the wrong number of values
	// for the format.
	ErrRecordShape = errors.New("record does not match format shape")

	// ErrOverflow indicates encoded output that would exceed MaxLen.
	ErrOverflow = errors.New("parameter data exceeds 231 bytes")
)

type tokenKind uint8

const (
	tokUint8 tokenKind = iota
	tokUint16
	tokUint32
	tokUID
	tokOptionalUID
	tokText
	tokLiteral
)

// token is one compiled field of a format.
type token struct {
	kind     tokenKind
	size     int    // encoded size; 0 for variable-length text
	variable bool   // bare 'a': consumes the remaining space
	literal  []byte // tokLiteral only
}

// consumesInput reports whether the token consumes one input value
// per record. Literals are emitted from the format itself.
func (t token) consumesInput() bool {
	return t.kind != tokLiteral
}

// Format is a compiled parameter-data format. Compile once, reuse for
// every encode and decode of the same parameter.
type Format struct {
	source string
	tokens []token

	// fixedSize is the encoded size of one record excluding any final
	// variable-length text.
	fixedSize int

	// arity is the number of input values consumed per record.
	arity int

	variable bool // format ends in a variable-length token ('a' bare)
	optional bool // format ends in an optional UID ('v')
}

// MustCompile is like Compile but panics on error. Intended for
// package-level format variables known to be well formed.
func MustCompile(format string) *Format {
	f, err := Compile(format)
	if err != nil {
		panic(fmt.Sprintf("pd: MustCompile(%q): %v", format, err))
	}
	return f
}

// Compile parses a format string into a reusable Format. The whole
// string is validated before any Format is returned: unknown tokens, a
// variable-length token in non-final position, a zero or over-budget
// fixed text size, a malformed literal, and a total size over 231
// bytes are all rejected.
func Compile(format string) (*Format, error) {
	f := &Format{source: format}

	for i := 0; i < len(format); {
		if f.variable || f.optional {
			// A previous token claimed the final position.
			return nil, fmt.Errorf("%w: %q", ErrNotFinal, format)
		}

		var tok token
		switch c := format[i]; c {
		case 'b':
			tok = token{kind: tokUint8, size: 1}
			i++
		case 'w':
			tok = token{kind: tokUint16, size: 2}
			i++
		case 'd':
			tok = token{kind: tokUint32, size: 4}
			i++
		case 'u':
			tok = token{kind: tokUID, size: uid.Size}
			i++
		case 'v':
			tok = token{kind: tokOptionalUID, size: uid.Size}
			f.optional = true
			i++
		case 'a':
			i++
			start := i
			for i < len(format) && format[i] >= '0' && format[i] <= '9' {
				i++
			}
			if i == start {
				tok = token{kind: tokText, variable: true}
				f.variable = true
				break
			}
			size := 0
			for _, d := range format[start:i] {
				size = size*10 + int(d-'0')
				if size > MaxLen {
					break
				}
			}
			if size == 0 || size > MaxLen-f.fixedSize {
				return nil, fmt.Errorf("%w: a%s in %q", ErrStringSize, format[start:i], format)
			}
			tok = token{kind: tokText, size: size}
		case '#':
			i++
			start := i
			var lit []byte
			var hi byte
			haveHi := false
			for i < len(format) {
				d, ok := hexVal(format[i])
				if !ok {
					break
				}
				if haveHi {
					lit = append(lit, hi<<4|d)
					haveHi = false
				} else {
					hi = d
					haveHi = true
				}
				i++
			}
			digits := i - start
			if digits == 0 || digits > maxLiteralBytes*2 {
				return nil, fmt.Errorf("%w: %q", ErrBadLiteral, format)
			}
			if i >= len(format) || format[i] != 'h' {
				return nil, fmt.Errorf("%w: missing terminator in %q", ErrBadLiteral, format)
			}
			i++
			if haveHi {
				// Odd digit count rounds up to a whole byte.
				lit = append(lit, hi<<4)
			}
			tok = token{kind: tokLiteral, size: len(lit), literal: lit}
		default:
			return nil, fmt.Errorf("%w: %q in %q", ErrUnknownToken, c, format)
		}

		if f.fixedSize+tok.size > MaxLen {
			return nil, fmt.Errorf("%w: %q", ErrFormatTooLong, format)
		}
		f.fixedSize += tok.size
		if tok.consumesInput() {
			f.arity++
		}
		f.tokens = append(f.tokens, tok)
	}

	return f, nil
}

func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	default:
		return 0, false
	}
}

// String returns the source format string.
func (f *Format) String() string { return f.source }

// RecordSize returns the encoded size of one full record. For formats
// ending in variable-length text this is the size of the fixed portion.
// For formats ending in an optional UID it is the size with the UID
// present.
func (f *Format) RecordSize() int { return f.fixedSize }

// Arity returns the number of input values one record consumes.
func (f *Format) Arity() int { return f.arity }

// Variable reports whether records can differ in encoded size, either
// through variable-length text or an optional trailing UID.
func (f *Format) Variable() bool { return f.variable || f.optional }
