package hci

import "errors"

// errors
var (
	ErrChannelUnavailable = errors.New("channel unavailable")
	ErrNotInitialized     = errors.New("transport not initialized")
	ErrAlreadyInitialized = errors.New("already initialized")
	ErrClosed             = errors.New("hci closed")
	ErrInvalidHandle      = errors.New("unknown connection handle")
	ErrPacketTooLong      = errors.New("packet exceeds negotiated data length")
	ErrMalformedPacket    = errors.New("malformed packet")
)

// HCI command error codes [Vol 2, Part D, 1.3].
const (
	ErrUnknownCommand    ErrCommand = 0x01 // Unknown HCI Command
	ErrConnID            ErrCommand = 0x02 // Unknown Connection Identifier
	ErrHardware          ErrCommand = 0x03 // Hardware Failure
	ErrPageTimeout       ErrCommand = 0x04 // Page Timeout
	ErrAuth              ErrCommand = 0x05 // Authentication Failure
	ErrMemoryCapacity    ErrCommand = 0x07 // Memory Capacity Exceeded
	ErrConnTimeout       ErrCommand = 0x08 // Connection Timeout
	ErrConnLimit         ErrCommand = 0x09 // Connection Limit Exceeded
	ErrACLConnExists     ErrCommand = 0x0B // ACL Connection Already Exists
	ErrDisallowed        ErrCommand = 0x0C // Command Disallowed
	ErrLimitedResource   ErrCommand = 0x0D // Connection Rejected due to Limited Resources
	ErrUnsupportedParams ErrCommand = 0x11 // Unsupported Feature or Parameter Value
	ErrInvalidParams     ErrCommand = 0x12 // Invalid HCI Command Parameters
	ErrRemoteUser        ErrCommand = 0x13 // Remote User Terminated Connection
	ErrLocalHost         ErrCommand = 0x16 // Connection Terminated By Local Host
	ErrUnspecified       ErrCommand = 0x1F // Unspecified Error
	ErrControllerBusy    ErrCommand = 0x3A // Controller Busy
	ErrConnParams        ErrCommand = 0x3B // Unacceptable Connection Parameters
	ErrDirAdvTimeout     ErrCommand = 0x3C // Directed Advertising Timeout
	ErrEstablished       ErrCommand = 0x3E // Connection Failed to be Established
)

// ErrCommand is an HCI status code returned by the controller.
type ErrCommand byte

func (e ErrCommand) Error() string {
	if s, ok := errCmd[e]; ok {
		return s
	}
	// A Host shall consider any error code that it does not explicitly
	// understand equivalent to the "Unspecified Error (0x1F)."
	return errCmd[0x1F]
}

var errCmd = map[ErrCommand]string{
	0x00: "Success",
	0x01: "Unknown HCI Command",
	0x02: "Unknown Connection Identifier",
	0x03: "Hardware Failure",
	0x04: "Page Timeout",
	0x05: "Authentication Failure",
	0x07: "Memory Capacity Exceeded",
	0x08: "Connection Timeout",
	0x09: "Connection Limit Exceeded",
	0x0B: "ACL Connection Already Exists",
	0x0C: "Command Disallowed",
	0x0D: "Connection Rejected due to Limited Resources",
	0x11: "Unsupported Feature or Parameter Value",
	0x12: "Invalid HCI Command Parameters",
	0x13: "Remote User Terminated Connection",
	0x16: "Connection Terminated By Local Host",
	0x1F: "Unspecified Error",
	0x3A: "Controller Busy",
	0x3B: "Unacceptable Connection Parameters",
	0x3C: "Directed Advertising Timeout",
	0x3E: "Connection Failed to be Established",
}
