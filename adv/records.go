package adv

import (
	"encoding/binary"
	"strings"
)

// UUID is a service UUID in the little endian byte order used on the
// wire. Lengths are 2, 4 or 16 bytes.
type UUID []byte

// UUID16 returns a 16 bit UUID.
func UUID16(u uint16) UUID {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, u)
	return b
}

// Equal reports whether two UUIDs are byte-wise identical.
func (u UUID) Equal(v UUID) bool {
	if len(u) != len(v) {
		return false
	}
	for i := range u {
		if u[i] != v[i] {
			return false
		}
	}
	return true
}

func (u UUID) String() string {
	var sb strings.Builder
	const hex = "0123456789abcdef"
	for i := len(u) - 1; i >= 0; i-- {
		sb.WriteByte(hex[u[i]>>4])
		sb.WriteByte(hex[u[i]&0x0F])
	}
	return sb.String()
}

// ServiceData pairs a service UUID with its advertised data.
type ServiceData struct {
	UUID UUID
	Data []byte
}

// Records is the decoded view of one advertising payload, or of an
// advertisement and its scan response concatenated.
type Records struct {
	flags      byte
	hasFlags   bool
	uuids      []UUID
	shortName  string
	fullName   string
	txPower    int8
	hasTxPower bool
	mfgData    []byte
	svcData    []ServiceData
	appearance uint16
	hasAppear  bool
}

// ParseRecords decodes one or more payloads, typically an advertisement
// and its scan response, into a single typed record set. Unknown field
// types are skipped. Fields that repeat across payloads accumulate (UUID
// lists, service data) or take the last value seen.
func ParseRecords(payloads ...[]byte) (*Records, error) {
	rec := &Records{}
	for _, data := range payloads {
		r, err := NewDataReader(data)
		if err != nil {
			return nil, err
		}
		if err := rec.merge(r); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

func (rec *Records) merge(r *DataReader) error {
	for r.HasMoreData() {
		typ, v, _ := r.GetNextField()
		switch typ {
		case TypeFlags:
			if len(v) >= 1 {
				rec.flags = v[0]
				rec.hasFlags = true
			}
		case TypeUUID16Inc, TypeUUID16Comp:
			rec.uuids = appendUUIDs(rec.uuids, v, 2)
		case TypeUUID32Inc, TypeUUID32Comp:
			rec.uuids = appendUUIDs(rec.uuids, v, 4)
		case TypeUUID128Inc, TypeUUID128Comp:
			rec.uuids = appendUUIDs(rec.uuids, v, 16)
		case TypeShortName:
			rec.shortName = string(v)
		case TypeCompleteName:
			rec.fullName = string(v)
		case TypeTxPower:
			if len(v) >= 1 {
				rec.txPower = int8(v[0])
				rec.hasTxPower = true
			}
		case TypeManufacturerData:
			if len(v) >= 2 {
				rec.mfgData = cloneBytes(v)
			}
		case TypeServiceData16:
			rec.svcData = appendServiceData(rec.svcData, v, 2)
		case TypeServiceData32:
			rec.svcData = appendServiceData(rec.svcData, v, 4)
		case TypeServiceData128:
			rec.svcData = appendServiceData(rec.svcData, v, 16)
		case TypeAppearance:
			if len(v) >= 2 {
				rec.appearance = binary.LittleEndian.Uint16(v)
				rec.hasAppear = true
			}
		}
	}
	return nil
}

// Flags returns the flags octet.
func (r *Records) Flags() (byte, bool) {
	return r.flags, r.hasFlags
}

// LocalName returns the complete local name if present, otherwise the
// shortened one.
func (r *Records) LocalName() string {
	if r.fullName != "" {
		return r.fullName
	}
	return r.shortName
}

// UUIDs returns every service UUID listed, complete or incomplete, in all
// three widths.
func (r *Records) UUIDs() []UUID {
	return r.uuids
}

// TxPower returns the advertised transmit power level in dBm.
func (r *Records) TxPower() (int8, bool) {
	return r.txPower, r.hasTxPower
}

// ManufacturerData returns the raw field value: company id in the first
// two bytes, vendor payload after.
func (r *Records) ManufacturerData() []byte {
	return r.mfgData
}

// ManufacturerID returns the company identifier of the manufacturer data
// field.
func (r *Records) ManufacturerID() (uint16, bool) {
	if len(r.mfgData) < 2 {
		return 0, false
	}
	return binary.LittleEndian.Uint16(r.mfgData), true
}

// ServiceData returns the advertised service data entries.
func (r *Records) ServiceData() []ServiceData {
	return r.svcData
}

// Appearance returns the GAP appearance value.
func (r *Records) Appearance() (uint16, bool) {
	return r.appearance, r.hasAppear
}

func appendUUIDs(u []UUID, v []byte, w int) []UUID {
	for len(v) >= w {
		u = append(u, UUID(cloneBytes(v[:w])))
		v = v[w:]
	}
	return u
}

func appendServiceData(sd []ServiceData, v []byte, w int) []ServiceData {
	if len(v) < w {
		return sd
	}
	return append(sd, ServiceData{
		UUID: UUID(cloneBytes(v[:w])),
		Data: cloneBytes(v[w:]),
	})
}

func cloneBytes(b []byte) []byte {
	cp := make([]byte, len(b))
	copy(cp, b)
	return cp
}
