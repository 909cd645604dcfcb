package bthost

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Addr represents the BD_ADDR of a controller or a remote device.
type Addr interface {
	String() string
	Bytes() []byte
}

// NewAddr creates an Addr from its colon-separated string form.
func NewAddr(s string) Addr {
	return addr(strings.ToLower(s))
}

// AddrFromBytes creates an Addr from the 6 address bytes in wire order
// (little-endian, as they appear inside HCI events).
func AddrFromBytes(b [6]byte) Addr {
	return addr(fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x",
		b[5], b[4], b[3], b[2], b[1], b[0]))
}

type addr string

func (a addr) String() string {
	return string(a)
}

func (a addr) Bytes() []byte {
	hexStr := strings.Replace(a.String(), ":", "", -1)

	out, err := hex.DecodeString(hexStr)
	if err != nil {
		GetLogger().Error("error decoding address:", err, a.String())
	}

	return out
}

// RandomAddress tags an Addr as an LE random device address rather than a
// public one.
type RandomAddress struct {
	Addr
}
