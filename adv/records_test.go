package adv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRecordsTypedView(t *testing.T) {
	var b []byte
	b = append(b, field(TypeFlags, 0x06)...)
	b = append(b, field(TypeUUID16Comp, 0x0D, 0x18, 0x0F, 0x18)...)
	b = append(b, field(TypeShortName, 'H', 'R')...)
	b = append(b, field(TypeTxPower, 0xF6)...)
	b = append(b, field(TypeManufacturerData, 0xE0, 0x00, 0x01, 0x02)...)
	b = append(b, field(TypeServiceData16, 0x0D, 0x18, 0x42)...)

	rec, err := ParseRecords(b)
	require.NoError(t, err)

	flags, ok := rec.Flags()
	require.True(t, ok)
	assert.Equal(t, byte(0x06), flags)

	uuids := rec.UUIDs()
	require.Len(t, uuids, 2)
	assert.True(t, uuids[0].Equal(UUID16(0x180D)))
	assert.True(t, uuids[1].Equal(UUID16(0x180F)))
	assert.Equal(t, "180d", uuids[0].String())

	assert.Equal(t, "HR", rec.LocalName())

	power, ok := rec.TxPower()
	require.True(t, ok)
	assert.Equal(t, int8(-10), power)

	id, ok := rec.ManufacturerID()
	require.True(t, ok)
	assert.Equal(t, uint16(0x00E0), id)
	assert.Equal(t, []byte{0xE0, 0x00, 0x01, 0x02}, rec.ManufacturerData())

	sd := rec.ServiceData()
	require.Len(t, sd, 1)
	assert.True(t, sd[0].UUID.Equal(UUID16(0x180D)))
	assert.Equal(t, []byte{0x42}, sd[0].Data)
}

func TestParseRecordsMergesScanResponse(t *testing.T) {
	ad := field(TypeShortName, 'H', 'R')
	rsp := field(TypeCompleteName, 'H', 'e', 'a', 'r', 't', 'R', 'a', 't', 'e')

	rec, err := ParseRecords(ad, rsp)
	require.NoError(t, err)

	// The complete name from the scan response wins over the shortened
	// name from the advertisement.
	assert.Equal(t, "HeartRate", rec.LocalName())
}

func TestParseRecordsMalformedPayload(t *testing.T) {
	_, err := ParseRecords([]byte{0x10, TypeFlags, 0x06})
	require.Error(t, err)
}
