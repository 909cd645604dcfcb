//go:build linux
// +build linux

package socket

import (
	"io"
	"sync"
)

// H4 packet type indicators carried on the user channel.
const (
	pktCommand = 0x01
	pktACLData = 0x02
	pktEvent   = 0x04
)

const rxQueueSize = 64

// NewDevice claims controller id and returns a device for
// hci.NewTransport. The user channel delivers whole packets, so no
// stream reassembly is needed, only demultiplexing by indicator byte.
func NewDevice(id int) (*Device, error) {
	s, err := NewSocket(id)
	if err != nil {
		return nil, err
	}
	d := &Device{
		sock: s,
		cmd:  newChannel(),
		acl:  newChannel(),
	}
	d.cmd.dev, d.acl.dev = d, d
	d.cmd.indicator, d.acl.indicator = pktCommand, pktACLData
	go d.rxLoop()
	return d, nil
}

// Device demuxes one user channel socket into the two channels a
// Transport expects.
type Device struct {
	sock *Socket
	cmd  *channel
	acl  *channel
}

func (d *Device) CommandChannel() io.ReadWriteCloser { return d.cmd }
func (d *Device) ACLDataChannel() io.ReadWriteCloser { return d.acl }

// Close releases the controller.
func (d *Device) Close() error {
	d.cmd.shutdown()
	d.acl.shutdown()
	return d.sock.Close()
}

func (d *Device) rxLoop() {
	b := make([]byte, 2048)
	for {
		n, err := d.sock.Read(b)
		if err != nil {
			d.cmd.shutdown()
			d.acl.shutdown()
			return
		}
		if n < 2 {
			continue
		}

		packet := make([]byte, n-1)
		copy(packet, b[1:n])
		switch b[0] {
		case pktEvent:
			d.cmd.deliver(packet)
		case pktACLData:
			d.acl.deliver(packet)
		default:
			// SCO and vendor packets are not carried.
		}
	}
}

// write prepends the indicator and sends one whole packet.
func (d *Device) write(indicator byte, p []byte) (int, error) {
	b := make([]byte, 1+len(p))
	b[0] = indicator
	copy(b[1:], p)
	if _, err := d.sock.Write(b); err != nil {
		return 0, err
	}
	return len(p), nil
}

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
