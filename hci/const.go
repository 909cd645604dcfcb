package hci

// LinkType distinguishes the logical transport a connection handle runs on.
type LinkType uint8

const (
	// LinkACL is a classic BR/EDR ACL-U link.
	LinkACL LinkType = 0x01
	// LinkLE is an LE-U link.
	LinkLE LinkType = 0x03
)

// Connection roles [Vol 2, Part E, 7.7.65.1].
const (
	RoleMaster = 0x00
	RoleSlave  = 0x01
)

// Maximum parameter payload of an event packet; the header carries a
// one-byte length field.
const maxEventPayload = 255
