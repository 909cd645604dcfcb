// Package adv reads the length/type/value structures carried in LE
// advertising data and scan response payloads.
// Refer to Supplement to Bluetooth Core Specification | CSSv6, Part A.
package adv

import (
	"github.com/pkg/errors"
)

// MaxDataLength is the longest legacy advertising or scan response
// payload.
const MaxDataLength = 31

// Data types from the GAP assigned numbers.
const (
	TypeFlags            = 0x01
	TypeUUID16Inc        = 0x02
	TypeUUID16Comp       = 0x03
	TypeUUID32Inc        = 0x04
	TypeUUID32Comp       = 0x05
	TypeUUID128Inc       = 0x06
	TypeUUID128Comp      = 0x07
	TypeShortName        = 0x08
	TypeCompleteName     = 0x09
	TypeTxPower          = 0x0A
	TypeSolicitUUID16    = 0x14
	TypeSolicitUUID128   = 0x15
	TypeServiceData16    = 0x16
	TypeSolicitUUID32    = 0x1F
	TypeServiceData32    = 0x20
	TypeServiceData128   = 0x21
	TypeAppearance       = 0x19
	TypeManufacturerData = 0xFF
)

// ErrMalformed reports advertising data whose length/type structure does
// not cover the payload.
var ErrMalformed = errors.New("malformed advertising data")

// DataReader iterates over the fields of one advertising payload. The
// whole structure is validated up front, so a reader that was constructed
// successfully never yields a truncated field.
type DataReader struct {
	remaining []byte
}

// NewDataReader validates data and returns a reader over its fields. A
// zero length byte terminates the structure early; anything after it is
// ignored. Each field's declared length must fit inside the payload and
// cover at least the type byte. No upper size bound is enforced, so a
// payload concatenated with its scan response reads as one sequence.
func NewDataReader(data []byte) (*DataReader, error) {
	end := len(data)
	for i := 0; i < len(data); {
		length := int(data[i])
		if length == 0 {
			// Early termination sentinel.
			end = i
			break
		}
		if i+1+length > len(data) {
			return nil, errors.Wrapf(ErrMalformed, "field at %d wants %d bytes", i, length)
		}
		i += 1 + length
	}
	return &DataReader{remaining: data[:end]}, nil
}

// HasMoreData reports whether another field remains.
func (r *DataReader) HasMoreData() bool {
	return len(r.remaining) > 0
}

// GetNextField returns the next field's type and value. The value aliases
// the payload given to NewDataReader. ok is false once the fields are
// exhausted.
func (r *DataReader) GetNextField() (typ byte, value []byte, ok bool) {
	if len(r.remaining) == 0 {
		return 0, nil, false
	}
	length := int(r.remaining[0])
	typ = r.remaining[1]
	value = r.remaining[2 : 1+length]
	r.remaining = r.remaining[1+length:]
	return typ, value, true
}
