package hci

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandPacketRoundTrip(t *testing.T) {
	p := NewCommandPacket(0x0C03, []byte{0xAA, 0xBB})

	assert.Equal(t, uint16(0x0C03), p.OpCode())
	assert.Equal(t, []byte{0xAA, 0xBB}, p.Payload())
	require.NoError(t, p.Validate())
}

func TestCommandPacketLengthMismatch(t *testing.T) {
	p := NewCommandPacket(0x0C03, []byte{0xAA, 0xBB})

	// Declared length no longer covers the payload.
	p[2] = 5
	assert.Error(t, p.Validate())

	p[2] = 0
	assert.Error(t, p.Validate())
}

func TestEventPacketRoundTrip(t *testing.T) {
	p := NewEventPacket(0x0E, []byte{0x01, 0x03, 0x0C, 0x00})

	assert.Equal(t, uint8(0x0E), p.EventCode())
	assert.Equal(t, []byte{0x01, 0x03, 0x0C, 0x00}, p.Payload())
	require.NoError(t, p.Validate())

	assert.Error(t, EventPacket{0x0E}.Validate())
	assert.Error(t, EventPacket{0x0E, 0x02, 0x00}.Validate())
}

func TestACLDataPacketRoundTrip(t *testing.T) {
	p := NewACLDataPacket(0x0040, PbfFirstNonFlushable, 0, []byte{1, 2, 3})

	assert.Equal(t, uint16(0x0040), p.Handle())
	assert.Equal(t, uint8(PbfFirstNonFlushable), p.PacketBoundaryFlag())
	assert.Equal(t, []byte{1, 2, 3}, p.Payload())
	require.NoError(t, p.Validate())
}

func TestACLDataPacketHandleMask(t *testing.T) {
	// Handles are 12 bits; flag bits must not leak into the handle.
	p := NewACLDataPacket(0x0FFF, PbfContinuing, 0, []byte{})
	assert.Equal(t, uint16(0x0FFF), p.Handle())
	assert.Equal(t, uint8(PbfContinuing), p.PacketBoundaryFlag())

	p2 := NewACLDataPacket(0xFFFF, 0, 0, nil)
	assert.Equal(t, uint16(0x0FFF), p2.Handle())
}

func TestACLDataPacketLengthMismatch(t *testing.T) {
	p := NewACLDataPacket(0x0040, 0, 0, []byte{1, 2, 3})
	p[2] = 9
	assert.Error(t, p.Validate())
}
