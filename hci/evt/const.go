package evt

// Event codes [Vol 2, Part E, 7.7].
const (
	DisconnectionCompleteCode     = 0x05
	EncryptionChangeCode          = 0x08
	CommandCompleteCode           = 0x0E
	CommandStatusCode             = 0x0F
	HardwareErrorCode             = 0x10
	NumberOfCompletedPacketsCode  = 0x13
	DataBufferOverflowCode        = 0x1A
	LEMetaCode                    = 0x3E
)

// LE meta subevent codes [Vol 2, Part E, 7.7.65].
const (
	LEConnectionCompleteSubCode       = 0x01
	LEAdvertisingReportSubCode        = 0x02
	LEConnectionUpdateCompleteSubCode = 0x03
)

// Event overlay types. Each is the raw parameter payload of the event it
// is named after; accessors read fields in place.
type (
	CommandComplete            []byte
	CommandStatus              []byte
	DisconnectionComplete      []byte
	NumberOfCompletedPackets   []byte
	LEConnectionComplete       []byte
	LEAdvertisingReport        []byte
	LEConnectionUpdateComplete []byte
)
