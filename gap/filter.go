package gap

import (
	"strings"

	"github.com/rigado/bthost/adv"
)

// RSSIInvalid marks a scan result whose RSSI the controller could not
// measure.
const RSSIInvalid int8 = 127

// baseUUID is the Bluetooth base UUID in wire order; 16 and 32 bit UUIDs
// expand into it at offset 12.
var baseUUID = [16]byte{
	0xFB, 0x34, 0x9B, 0x5F, 0x80, 0x00, 0x00, 0x80,
	0x00, 0x10, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
}

// DiscoveryFilter selects scan results during discovery. A zero filter
// matches everything; each setter narrows it. All set constraints must
// hold for a result to match, with one exception: a pathloss constraint
// that cannot be evaluated because the advertisement carries no tx power
// falls back to the RSSI constraint when one is set.
type DiscoveryFilter struct {
	flags         byte
	flagsAll      bool
	hasFlags      bool
	connectable   *bool
	serviceUUIDs  []adv.UUID
	nameSubstring string
	pathloss      *int8
	rssi          *int8
	manufacturer  *uint16
}

// SetFlags requires the advertised flags octet to share bits with f, or
// to contain every bit of f when requireAll is set.
func (f *DiscoveryFilter) SetFlags(flags byte, requireAll bool) {
	f.flags = flags
	f.flagsAll = requireAll
	f.hasFlags = true
}

// SetConnectable requires the advertisement's connectable property.
func (f *DiscoveryFilter) SetConnectable(c bool) { f.connectable = &c }

// SetServiceUUIDs requires at least one of uuids to be advertised. UUIDs
// of different widths compare equal when they expand to the same 128 bit
// value.
func (f *DiscoveryFilter) SetServiceUUIDs(uuids []adv.UUID) { f.serviceUUIDs = uuids }

// SetNameSubstring requires the local name to contain s. An empty s
// matches everything.
func (f *DiscoveryFilter) SetNameSubstring(s string) { f.nameSubstring = s }

// SetPathloss requires tx power minus RSSI to be at most p dBm.
func (f *DiscoveryFilter) SetPathloss(p int8) { f.pathloss = &p }

// SetRSSI requires a valid RSSI of at least r dBm.
func (f *DiscoveryFilter) SetRSSI(r int8) { f.rssi = &r }

// SetManufacturerCode requires manufacturer data with this company id.
func (f *DiscoveryFilter) SetManufacturerCode(id uint16) { f.manufacturer = &id }

// Reset clears every constraint.
func (f *DiscoveryFilter) Reset() { *f = DiscoveryFilter{} }

// MatchLowEnergyResult reports whether a scan result with the given
// properties and merged advertising payload passes the filter. Payloads
// that fail to parse match only the zero filter.
func (f *DiscoveryFilter) MatchLowEnergyResult(connectable bool, rssi int8, data []byte) bool {
	if f.isEmpty() {
		return true
	}

	rec, err := adv.ParseRecords(data)
	if err != nil {
		rec = nil
	}

	if f.connectable != nil && *f.connectable != connectable {
		return false
	}

	if f.hasFlags {
		if rec == nil {
			return false
		}
		advFlags, ok := rec.Flags()
		if !ok {
			return false
		}
		if f.flagsAll {
			if advFlags&f.flags != f.flags {
				return false
			}
		} else if advFlags&f.flags == 0 {
			return false
		}
	}

	if len(f.serviceUUIDs) > 0 && !f.matchesUUIDs(rec) {
		return false
	}

	if f.nameSubstring != "" {
		if rec == nil || !strings.Contains(rec.LocalName(), f.nameSubstring) {
			return false
		}
	}

	if f.manufacturer != nil {
		if rec == nil {
			return false
		}
		id, ok := rec.ManufacturerID()
		if !ok || id != *f.manufacturer {
			return false
		}
	}

	// Pathloss needs both a valid RSSI and an advertised tx power. When tx
	// power is absent the RSSI constraint, if any, decides instead; when tx
	// power is present an unsatisfied pathloss is final.
	if f.pathloss != nil {
		var txPower int8
		ok := false
		if rec != nil {
			txPower, ok = rec.TxPower()
		}
		if ok {
			if rssi == RSSIInvalid || rssi > txPower {
				return false
			}
			if txPower-rssi > *f.pathloss {
				return false
			}
			return true
		}
		if f.rssi == nil {
			return false
		}
	}

	if f.rssi != nil {
		if rssi == RSSIInvalid || rssi < *f.rssi {
			return false
		}
	}

	return true
}

func (f *DiscoveryFilter) isEmpty() bool {
	return !f.hasFlags && f.connectable == nil && len(f.serviceUUIDs) == 0 &&
		f.nameSubstring == "" && f.pathloss == nil && f.rssi == nil && f.manufacturer == nil
}

func (f *DiscoveryFilter) matchesUUIDs(rec *adv.Records) bool {
	if rec == nil {
		return false
	}
	for _, want := range f.serviceUUIDs {
		w := expandUUID(want)
		for _, got := range rec.UUIDs() {
			if w == expandUUID(got) {
				return true
			}
		}
	}
	return false
}

// expandUUID widens a UUID to its 128 bit form over the base UUID.
func expandUUID(u adv.UUID) [16]byte {
	out := baseUUID
	switch len(u) {
	case 2, 4:
		copy(out[12:], u)
	case 16:
		copy(out[:], u)
	}
	return out
}
