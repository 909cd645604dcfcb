package evt

func (e CommandComplete) NumHCICommandPackets() uint8 {
	v, _ := e.NumHCICommandPacketsWErr()
	return v
}

func (e CommandComplete) CommandOpcode() uint16 {
	v, _ := e.CommandOpcodeWErr()
	return v
}

func (e CommandComplete) ReturnParameters() []byte {
	v, _ := e.ReturnParametersWErr()
	return v
}

func (e CommandStatus) Status() uint8 {
	v, _ := e.StatusWErr()
	return v
}

func (e CommandStatus) NumHCICommandPackets() uint8 {
	v, _ := e.NumHCICommandPacketsWErr()
	return v
}

func (e CommandStatus) CommandOpcode() uint16 {
	v, _ := e.CommandOpcodeWErr()
	return v
}

// Valid reports whether the payload is large enough to hold all fixed
// fields of a Command Status event.
func (e CommandStatus) Valid() bool {
	return len(e) >= 4
}

func (e DisconnectionComplete) Status() uint8 {
	v, _ := getByte(e, 0, 0xff)
	return v
}

func (e DisconnectionComplete) ConnectionHandle() uint16 {
	v, _ := getUint16LE(e, 1, 0xffff)
	return v
}

func (e DisconnectionComplete) Reason() uint8 {
	v, _ := getByte(e, 3, 0xff)
	return v
}

// Per-spec [Vol 2, Part E, 7.7.19], the packet structure should be:
//
//	NumOfHandle, HandleA, HandleB, CompPktNumA, CompPktNumB
//
// But actual controllers (e.g. BCM20702A1) interleave the fields instead:
//
//	NumOfHandle, HandleA, CompPktNumA, HandleB, CompPktNumB
//	         02,   40 00,       01 00,   41 00,       01 00

func (e NumberOfCompletedPackets) NumberOfHandles() uint8 {
	v, _ := e.NumberOfHandlesWErr()
	return v
}

func (e NumberOfCompletedPackets) ConnectionHandle(i int) uint16 {
	v, _ := e.ConnectionHandleWErr(i)
	return v
}

func (e NumberOfCompletedPackets) HCNumOfCompletedPackets(i int) uint16 {
	v, _ := e.HCNumOfCompletedPacketsWErr(i)
	return v
}

func (e LEConnectionComplete) SubeventCode() uint8 {
	v, _ := getByte(e, 0, 0xff)
	return v
}

func (e LEConnectionComplete) Status() uint8 {
	v, _ := getByte(e, 1, 0xff)
	return v
}

func (e LEConnectionComplete) ConnectionHandle() uint16 {
	v, _ := getUint16LE(e, 2, 0xffff)
	return v
}

func (e LEConnectionComplete) Role() uint8 {
	v, _ := getByte(e, 4, 0xff)
	return v
}

func (e LEConnectionComplete) PeerAddressType() uint8 {
	v, _ := getByte(e, 5, 0xff)
	return v
}

func (e LEConnectionComplete) PeerAddress() [6]byte {
	b, err := getBytes(e, 6, 6)
	if err != nil {
		return [6]byte{}
	}
	out := [6]byte{}
	copy(out[:], b)
	return out
}

func (e LEConnectionComplete) ConnInterval() uint16 {
	v, _ := getUint16LE(e, 12, 0)
	return v
}

func (e LEConnectionComplete) ConnLatency() uint16 {
	v, _ := getUint16LE(e, 14, 0)
	return v
}

func (e LEConnectionComplete) SupervisionTimeout() uint16 {
	v, _ := getUint16LE(e, 16, 0)
	return v
}

func (e LEConnectionComplete) MasterClockAccuracy() uint8 {
	v, _ := getByte(e, 18, 0xff)
	return v
}

func (e LEAdvertisingReport) SubeventCode() uint8 {
	v, _ := e.SubeventCodeWErr()
	return v
}

func (e LEAdvertisingReport) NumReports() uint8 {
	v, _ := e.NumReportsWErr()
	return v
}

func (e LEAdvertisingReport) EventType(i int) uint8 {
	v, _ := e.EventTypeWErr(i)
	return v
}

func (e LEAdvertisingReport) AddressType(i int) uint8 {
	v, _ := e.AddressTypeWErr(i)
	return v
}

func (e LEAdvertisingReport) Address(i int) [6]byte {
	v, _ := e.AddressWErr(i)
	return v
}

func (e LEAdvertisingReport) LengthData(i int) uint8 {
	v, _ := e.LengthDataWErr(i)
	return v
}

func (e LEAdvertisingReport) Data(i int) []byte {
	v, _ := e.DataWErr(i)
	return v
}

func (e LEAdvertisingReport) RSSI(i int) int8 {
	v, _ := e.RSSIWErr(i)
	return v
}
