package gap

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rigado/bthost/adv"
)

func advField(typ byte, data ...byte) []byte {
	out := []byte{byte(len(data) + 1), typ}
	return append(out, data...)
}

func TestFilterEmptyMatchesEverything(t *testing.T) {
	var f DiscoveryFilter
	assert.True(t, f.MatchLowEnergyResult(false, RSSIInvalid, nil))
	assert.True(t, f.MatchLowEnergyResult(true, -40, advField(adv.TypeFlags, 0x05)))
}

func TestFilterFlags(t *testing.T) {
	valid := advField(adv.TypeFlags, 0b101)
	noValue := []byte{0x01, adv.TypeFlags}

	var f DiscoveryFilter

	// Default mode: any shared bit matches.
	f.SetFlags(0b100, false)
	assert.False(t, f.MatchLowEnergyResult(false, RSSIInvalid, nil))
	assert.False(t, f.MatchLowEnergyResult(false, RSSIInvalid, noValue))
	assert.True(t, f.MatchLowEnergyResult(false, RSSIInvalid, valid))

	f.SetFlags(0b111, false)
	assert.True(t, f.MatchLowEnergyResult(false, RSSIInvalid, valid))

	f.SetFlags(0b010, false)
	assert.False(t, f.MatchLowEnergyResult(false, RSSIInvalid, valid))

	// Strict mode: every filter bit must be present.
	f.SetFlags(0b101, true)
	assert.True(t, f.MatchLowEnergyResult(false, RSSIInvalid, valid))

	f.SetFlags(0b111, true)
	assert.False(t, f.MatchLowEnergyResult(false, RSSIInvalid, valid))
}

func TestFilterConnectable(t *testing.T) {
	var f DiscoveryFilter
	f.SetConnectable(true)
	assert.True(t, f.MatchLowEnergyResult(true, RSSIInvalid, nil))
	assert.False(t, f.MatchLowEnergyResult(false, RSSIInvalid, nil))

	f.SetConnectable(false)
	assert.False(t, f.MatchLowEnergyResult(true, RSSIInvalid, nil))
	assert.True(t, f.MatchLowEnergyResult(false, RSSIInvalid, nil))
}

func TestFilterServiceUUIDs(t *testing.T) {
	match16 := advField(adv.TypeUUID16Comp, 0x00, 0x01, 0x0D, 0x18)
	noMatch16 := advField(adv.TypeUUID16Inc, 0x00, 0x01)
	// 0000180d in the 128 bit base UUID form, wire order.
	match128 := advField(adv.TypeUUID128Inc,
		0xFB, 0x34, 0x9B, 0x5F, 0x80, 0x00, 0x00, 0x80,
		0x00, 0x10, 0x00, 0x00, 0x0D, 0x18, 0x00, 0x00)

	var f DiscoveryFilter
	f.SetServiceUUIDs([]adv.UUID{adv.UUID16(0x180D)})

	assert.False(t, f.MatchLowEnergyResult(false, RSSIInvalid, nil))
	assert.False(t, f.MatchLowEnergyResult(false, RSSIInvalid, noMatch16))
	assert.True(t, f.MatchLowEnergyResult(false, RSSIInvalid, match16))
	// Widths compare through base UUID expansion.
	assert.True(t, f.MatchLowEnergyResult(false, RSSIInvalid, match128))
}

func TestFilterNameSubstring(t *testing.T) {
	short := advField(adv.TypeShortName, 'T', 'e', 's', 't')
	complete := advField(adv.TypeCompleteName, 'T', 'e', 's', 't', ' ', 'C', 'o', 'm', 'p', 'l', 'e', 't', 'e')

	var f DiscoveryFilter

	f.SetNameSubstring("")
	assert.True(t, f.MatchLowEnergyResult(false, RSSIInvalid, nil))

	f.SetNameSubstring("foo")
	assert.False(t, f.MatchLowEnergyResult(false, RSSIInvalid, short))

	f.SetNameSubstring("est")
	assert.True(t, f.MatchLowEnergyResult(false, RSSIInvalid, short))
	assert.True(t, f.MatchLowEnergyResult(false, RSSIInvalid, complete))

	f.SetNameSubstring("Compl")
	assert.False(t, f.MatchLowEnergyResult(false, RSSIInvalid, short))
	assert.True(t, f.MatchLowEnergyResult(false, RSSIInvalid, complete))
}

func TestFilterRSSI(t *testing.T) {
	var f DiscoveryFilter

	// An invalid measured RSSI never matches, even against an invalid
	// threshold.
	f.SetRSSI(RSSIInvalid)
	assert.False(t, f.MatchLowEnergyResult(false, RSSIInvalid, nil))

	f.Reset()
	f.SetRSSI(60)
	assert.False(t, f.MatchLowEnergyResult(false, RSSIInvalid, nil))
	assert.True(t, f.MatchLowEnergyResult(false, 60, nil))
	assert.True(t, f.MatchLowEnergyResult(false, 61, nil))

	// Pathloss with no advertised tx power falls back to the RSSI bound.
	f.SetPathloss(5)
	assert.True(t, f.MatchLowEnergyResult(false, 61, nil))

	f.Reset()
	assert.True(t, f.MatchLowEnergyResult(false, 61, nil))
}

func TestFilterPathloss(t *testing.T) {
	withTxPower := advField(adv.TypeTxPower, 5)

	var f DiscoveryFilter
	f.SetPathloss(70)

	assert.False(t, f.MatchLowEnergyResult(false, RSSIInvalid, nil))
	assert.False(t, f.MatchLowEnergyResult(false, RSSIInvalid, withTxPower))
	assert.False(t, f.MatchLowEnergyResult(false, -65, nil))
	assert.True(t, f.MatchLowEnergyResult(false, -65, withTxPower))

	// RSSI above tx power is physically meaningless; reject.
	assert.False(t, f.MatchLowEnergyResult(false, 71, withTxPower))

	// Pathloss above threshold.
	assert.False(t, f.MatchLowEnergyResult(false, -66, withTxPower))

	// With tx power present, an unsatisfied pathloss is final even when
	// the RSSI bound alone would pass.
	f.SetRSSI(-66)
	assert.False(t, f.MatchLowEnergyResult(false, -66, withTxPower))
	assert.True(t, f.MatchLowEnergyResult(false, -66, nil))
}

func TestFilterManufacturerCode(t *testing.T) {
	match := advField(adv.TypeManufacturerData, 0xE0, 0x00)
	withPayload := advField(adv.TypeManufacturerData, 0xE0, 0x00, 0x01, 0x02, 0x03)
	truncated := advField(adv.TypeManufacturerData, 0xE0)
	other := advField(adv.TypeManufacturerData, 0x4C, 0x00)

	var f DiscoveryFilter
	f.SetManufacturerCode(0x00E0)

	assert.False(t, f.MatchLowEnergyResult(false, RSSIInvalid, nil))
	assert.True(t, f.MatchLowEnergyResult(false, RSSIInvalid, match))
	assert.True(t, f.MatchLowEnergyResult(false, RSSIInvalid, withPayload))
	assert.False(t, f.MatchLowEnergyResult(false, RSSIInvalid, truncated))
	assert.False(t, f.MatchLowEnergyResult(false, RSSIInvalid, other))
}
