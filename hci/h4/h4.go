// Package h4 provides a DeviceWrapper over a UART speaking the H4
// transport: every packet is prefixed with a one byte type indicator and
// the stream has no other framing.
package h4

import (
	"io"
	"sync"
	"time"

	"github.com/jacobsa/go-serial/serial"
	"github.com/pkg/errors"

	"github.com/rigado/bthost/hci"
)

// H4 packet type indicators.
const (
	pktCommand = 0x01
	pktACLData = 0x02
	pktEvent   = 0x04
)

const (
	rxQueueSize  = 64
	frameTimeout = 500 * time.Millisecond
)

// Options configures the serial port.
type Options struct {
	PortName string
	BaudRate uint
}

// Open opens the UART and returns a device ready for hci.NewTransport.
func Open(opts Options) (hci.DeviceWrapper, error) {
	sp, err := serial.Open(serial.OpenOptions{
		PortName:              opts.PortName,
		BaudRate:              opts.BaudRate,
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       0,
		InterCharacterTimeout: 100,
	})
	if err != nil {
		return nil, errors.Wrap(err, "can't open serial port")
	}
	return NewDevice(sp), nil
}

// NewDevice wraps an already-open H4 byte stream. Useful for tests and
// for transports that are not serial ports.
func NewDevice(rwc io.ReadWriteCloser) *Device {
	d := &Device{
		rwc:  rwc,
		cmd:  newChannel(),
		acl:  newChannel(),
		done: make(chan struct{}),
	}
	d.cmd.dev, d.acl.dev = d, d
	d.cmd.indicator, d.acl.indicator = pktCommand, pktACLData
	go d.rxLoop()
	return d
}

// Device demuxes one H4 stream into the command/event and ACL data
// channels a Transport expects.
type Device struct {
	rwc io.ReadWriteCloser
	wmu sync.Mutex

	cmd *channel
	acl *channel

	frame   []byte
	expires time.Time

	done chan struct{}
	cmu  sync.Mutex
}

func (d *Device) CommandChannel() io.ReadWriteCloser { return d.cmd }
func (d *Device) ACLDataChannel() io.ReadWriteCloser { return d.acl }

// Close shuts the underlying stream; both channels observe EOF.
func (d *Device) Close() error {
	d.cmu.Lock()
	defer d.cmu.Unlock()
	select {
	case <-d.done:
		return nil
	default:
		close(d.done)
		return errors.Wrap(d.rwc.Close(), "can't close h4 stream")
	}
}

func (d *Device) isOpen() bool {
	select {
	case <-d.done:
		return false
	default:
		return true
	}
}

// write sends one packet with its type indicator, serialized across both
// channels.
func (d *Device) write(indicator byte, p []byte) (int, error) {
	if !d.isOpen() {
		return 0, io.EOF
	}
	b := make([]byte, 1+len(p))
	b[0] = indicator
	copy(b[1:], p)

	d.wmu.Lock()
	defer d.wmu.Unlock()
	if _, err := d.rwc.Write(b); err != nil {
		return 0, errors.Wrap(err, "can't write h4")
	}
	return len(p), nil
}

func (d *Device) rxLoop() {
	tmp := make([]byte, 512)
	for d.isOpen() {
		n, err := d.rwc.Read(tmp)
		if err != nil {
			d.cmd.shutdown()
			d.acl.shutdown()
			return
		}
		if n == 0 {
			continue
		}
		d.assemble(tmp[:n])
	}
}

// assemble accumulates stream bytes into whole packets. A stalled
// partial frame is abandoned after frameTimeout so one corrupt length
// byte cannot wedge the stream forever.
func (d *Device) assemble(b []byte) {
	if len(b) == 0 {
		return
	}
	if len(d.frame) > 0 && time.Now().After(d.expires) {
		d.frame = nil
	}

	if len(d.frame) == 0 {
		i := d.findStart(b)
		if i < 0 {
			return
		}
		b = b[i:]
		d.expires = time.Now().Add(frameTimeout)
	}
	d.frame = append(d.frame, b...)

	total, ok := d.frameLength()
	if !ok || len(d.frame) < total {
		return
	}
	packet := d.frame[:total]
	d.dispatch(packet[0], packet[1:])

	rest := d.frame[total:]
	d.frame = nil
	if len(rest) > 0 {
		d.assemble(rest)
	}
}

func (d *Device) findStart(b []byte) int {
	for i, v := range b {
		if v == pktEvent || v == pktACLData {
			return i
		}
	}
	return -1
}

// frameLength returns the full packet size including the indicator, once
// enough header bytes arrived to know it.
func (d *Device) frameLength() (int, bool) {
	switch d.frame[0] {
	case pktEvent:
		if len(d.frame) < 3 {
			return 0, false
		}
		return 3 + int(d.frame[2]), true
	case pktACLData:
		if len(d.frame) < 5 {
			return 0, false
		}
		return 5 + (int(d.frame[3]) | int(d.frame[4])<<8), true
	}
	return 0, false
}

func (d *Device) dispatch(indicator byte, packet []byte) {
	cp := make([]byte, len(packet))
	copy(cp, packet)
	switch indicator {
	case pktEvent:
		d.cmd.deliver(cp)
	case pktACLData:
		d.acl.deliver(cp)
	}
}

// channel is one message-oriented face of the device.
type channel struct {
	dev       *Device
	indicator byte

	rx   chan []byte
	done chan struct{}
	once sync.Once
}

func newChannel() *channel {
	return &channel{
		rx:   make(chan []byte, rxQueueSize),
		done: make(chan struct{}),
	}
}

func (c *channel) deliver(b []byte) {
	select {
	case c.rx <- b:
	case <-c.done:
	}
}

func (c *channel) shutdown() {
	c.once.Do(func() { close(c.done) })
}

func (c *channel) Read(p []byte) (int, error) {
	select {
	case b := <-c.rx:
		if len(p) < len(b) {
			return 0, io.ErrShortBuffer
		}
		return copy(p, b), nil
	case <-c.done:
		return 0, io.EOF
	}
}

func (c *channel) Write(p []byte) (int, error) {
	return c.dev.write(c.indicator, p)
}

func (c *channel) Close() error {
	c.shutdown()
	return c.dev.Close()
}
