package hci

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Packet framing. Each packet type is a typed overlay on a single
// caller-owned buffer: a fixed-size header immediately followed by a
// variable-length payload. The Encode/Decode helpers below are the only
// places where byte order and length fields are touched; all multi-byte
// fields are little-endian on the wire.

// CommandPacket is an HCI command packet:
//
//	opcode: u16 LE, parameter_total_size: u8, payload
type CommandPacket []byte

const commandHeaderSize = 3

// NewCommandPacket allocates a command packet with an encoded header and
// the payload copied in.
func NewCommandPacket(opcode uint16, payload []byte) CommandPacket {
	p := make(CommandPacket, commandHeaderSize+len(payload))
	binary.LittleEndian.PutUint16(p[0:2], opcode)
	p[2] = uint8(len(payload))
	copy(p[commandHeaderSize:], payload)
	return p
}

func (p CommandPacket) OpCode() uint16 {
	return binary.LittleEndian.Uint16(p[0:2])
}

func (p CommandPacket) PayloadLength() uint8 {
	return p[2]
}

func (p CommandPacket) Payload() []byte {
	return p[commandHeaderSize:]
}

// Validate checks that the buffer is large enough for the header and that
// the declared payload length matches the actual payload.
func (p CommandPacket) Validate() error {
	if len(p) < commandHeaderSize {
		return errors.Wrap(ErrMalformedPacket, "command packet too short")
	}
	if int(p[2]) != len(p)-commandHeaderSize {
		return errors.Wrapf(ErrMalformedPacket,
			"command payload length mismatch: declared %d, have %d", p[2], len(p)-commandHeaderSize)
	}
	return nil
}

// EventPacket is an HCI event packet:
//
//	event_code: u8, parameter_total_size: u8, payload
type EventPacket []byte

const eventHeaderSize = 2

// NewEventPacket allocates an event packet with an encoded header and the
// payload copied in.
func NewEventPacket(code uint8, payload []byte) EventPacket {
	p := make(EventPacket, eventHeaderSize+len(payload))
	p[0] = code
	p[1] = uint8(len(payload))
	copy(p[eventHeaderSize:], payload)
	return p
}

func (p EventPacket) EventCode() uint8 {
	return p[0]
}

func (p EventPacket) PayloadLength() uint8 {
	return p[1]
}

func (p EventPacket) Payload() []byte {
	return p[eventHeaderSize:]
}

func (p EventPacket) Validate() error {
	if len(p) < eventHeaderSize {
		return errors.Wrap(ErrMalformedPacket, "event packet too short")
	}
	if int(p[1]) != len(p)-eventHeaderSize {
		return errors.Wrapf(ErrMalformedPacket,
			"event payload length mismatch: declared %d, have %d", p[1], len(p)-eventHeaderSize)
	}
	return nil
}

// ACLDataPacket is an HCI ACL data packet:
//
//	handle (12 bits) + pb flag (2 bits) + bc flag (2 bits): u16 LE,
//	data_total_length: u16 LE, payload
type ACLDataPacket []byte

const aclHeaderSize = 4

// Packet boundary flags of an HCI ACL data packet [Vol 2, Part E, 5.4.2].
const (
	PbfFirstNonFlushable = 0x00
	PbfContinuing        = 0x01
	PbfFirstFlushable    = 0x02
	PbfComplete          = 0x03
)

// NewACLDataPacket allocates an ACL data packet with an encoded header and
// the payload copied in.
func NewACLDataPacket(handle uint16, pb, bc uint8, payload []byte) ACLDataPacket {
	p := make(ACLDataPacket, aclHeaderSize+len(payload))
	binary.LittleEndian.PutUint16(p[0:2], handle&0x0fff|uint16(pb&0x3)<<12|uint16(bc&0x3)<<14)
	binary.LittleEndian.PutUint16(p[2:4], uint16(len(payload)))
	copy(p[aclHeaderSize:], payload)
	return p
}

func (p ACLDataPacket) Handle() uint16 {
	return binary.LittleEndian.Uint16(p[0:2]) & 0x0fff
}

func (p ACLDataPacket) PacketBoundaryFlag() uint8 {
	return uint8(binary.LittleEndian.Uint16(p[0:2])>>12) & 0x3
}

func (p ACLDataPacket) BroadcastFlag() uint8 {
	return uint8(binary.LittleEndian.Uint16(p[0:2])>>14) & 0x3
}

func (p ACLDataPacket) DataLength() uint16 {
	return binary.LittleEndian.Uint16(p[2:4])
}

func (p ACLDataPacket) Payload() []byte {
	return p[aclHeaderSize:]
}

// Validate rejects a packet whose declared payload length disagrees with
// the actual number of payload bytes. A mismatch is a framing error; the
// packet must be dropped, never truncated or zero-padded.
func (p ACLDataPacket) Validate() error {
	if len(p) < aclHeaderSize {
		return errors.Wrap(ErrMalformedPacket, "acl packet too short")
	}
	if int(p.DataLength()) != len(p)-aclHeaderSize {
		return errors.Wrapf(ErrMalformedPacket,
			"acl payload length mismatch: declared %d, have %d", p.DataLength(), len(p)-aclHeaderSize)
	}
	return nil
}
