// Package hcitest provides an in-memory DeviceWrapper backed by a
// scriptable fake controller, for exercising the stack without hardware.
package hcitest

import (
	"encoding/binary"
	"io"
	"sync"
)

// pipe is one direction of a message-oriented byte channel: every Write
// delivers one whole packet, every Read returns one.
type pipe struct {
	ch   chan []byte
	done chan struct{}
	once sync.Once
}

func newPipe() *pipe {
	return &pipe{
		ch:   make(chan []byte, 64),
		done: make(chan struct{}),
	}
}

func (p *pipe) send(b []byte) error {
	select {
	case <-p.done:
		return io.ErrClosedPipe
	default:
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	select {
	case <-p.done:
		return io.ErrClosedPipe
	case p.ch <- cp:
		return nil
	}
}

func (p *pipe) recv(b []byte) (int, error) {
	select {
	case <-p.done:
		return 0, io.EOF
	case m := <-p.ch:
		if len(b) < len(m) {
			return 0, io.ErrShortBuffer
		}
		return copy(b, m), nil
	}
}

func (p *pipe) close() {
	p.once.Do(func() { close(p.done) })
}

// endpoint is one side of a full-duplex channel.
type endpoint struct {
	in  *pipe
	out *pipe
}

func (e *endpoint) Read(b []byte) (int, error) { return e.in.recv(b) }

func (e *endpoint) Write(b []byte) (int, error) {
	if err := e.out.send(b); err != nil {
		return 0, err
	}
	return len(b), nil
}
func (e *endpoint) Close() error {
	e.in.close()
	e.out.close()
	return nil
}

// Device implements hci.DeviceWrapper over two in-memory channels whose
// far ends belong to a Controller.
type Device struct {
	cmd *endpoint
	acl *endpoint

	// Set to simulate a device that cannot provide a channel.
	NoCommandChannel bool
	NoACLChannel     bool
}

func (d *Device) CommandChannel() io.ReadWriteCloser {
	if d.NoCommandChannel {
		return nil
	}
	return d.cmd
}

func (d *Device) ACLDataChannel() io.ReadWriteCloser {
	if d.NoACLChannel {
		return nil
	}
	return d.acl
}

// Controller is the far end of a Device. It can be scripted with canned
// command transactions and can inject arbitrary events and data packets.
type Controller struct {
	cmd *endpoint
	acl *endpoint

	mu           sync.Mutex
	transactions map[uint16][][]byte
	defaultRsp   func(opcode uint16, packet []byte) [][]byte
	cmdCb        func(opcode uint16, packet []byte)

	done chan struct{}
	wg   sync.WaitGroup
}

// New returns a connected Device/Controller pair. The controller's command
// loop starts immediately.
func New() (*Device, *Controller) {
	c2h := newPipe() // controller to host, command/event
	h2c := newPipe() // host to controller, command/event
	d2h := newPipe() // controller to host, acl
	h2d := newPipe() // host to controller, acl

	d := &Device{
		cmd: &endpoint{in: c2h, out: h2c},
		acl: &endpoint{in: d2h, out: h2d},
	}
	c := &Controller{
		cmd:          &endpoint{in: h2c, out: c2h},
		acl:          &endpoint{in: h2d, out: d2h},
		transactions: make(map[uint16][][]byte),
		done:         make(chan struct{}),
	}

	c.wg.Add(1)
	go c.commandLoop()
	return d, c
}

// Close shuts the controller side of both channels, which the host
// observes as peer closure.
func (c *Controller) Close() {
	select {
	case <-c.done:
		return
	default:
		close(c.done)
	}
	c.cmd.Close()
	c.acl.Close()
	c.wg.Wait()
}

// QueueCommandTransaction scripts the raw event packets to deliver when a
// command with the given opcode arrives. Multiple transactions for the
// same opcode are consumed in order.
func (c *Controller) QueueCommandTransaction(opcode uint16, responses ...[]byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transactions[opcode] = append(c.transactions[opcode], responses...)
}

// RespondWithDefault installs a fallback used for opcodes with no queued
// transaction. The returned packets are sent in order; nil means no
// response.
func (c *Controller) RespondWithDefault(f func(opcode uint16, packet []byte) [][]byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.defaultRsp = f
}

// SetCommandCallback observes every command the host sends.
func (c *Controller) SetCommandCallback(f func(opcode uint16, packet []byte)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cmdCb = f
}

// SendEvent injects a raw event packet on the command/event channel.
func (c *Controller) SendEvent(b []byte) error {
	return c.cmd.out.send(b)
}

// SendACL injects a raw data packet on the ACL channel.
func (c *Controller) SendACL(b []byte) error {
	return c.acl.out.send(b)
}

// ReadACL returns the next data packet the host wrote, or io.EOF after
// Close.
func (c *Controller) ReadACL() ([]byte, error) {
	b := make([]byte, 65539)
	n, err := c.acl.in.recv(b)
	if err != nil {
		return nil, err
	}
	return b[:n], nil
}

func (c *Controller) commandLoop() {
	defer c.wg.Done()

	b := make([]byte, 260)
	for {
		n, err := c.cmd.in.recv(b)
		if err != nil {
			return
		}
		if n < 3 {
			continue
		}
		opcode := binary.LittleEndian.Uint16(b[0:2])
		packet := make([]byte, n)
		copy(packet, b[:n])

		c.mu.Lock()
		if c.cmdCb != nil {
			cb := c.cmdCb
			c.mu.Unlock()
			cb(opcode, packet)
			c.mu.Lock()
		}
		var responses [][]byte
		if rr, ok := c.transactions[opcode]; ok && len(rr) > 0 {
			// One queued transaction is a burst of packets ending in the
			// terminal event; consume them all.
			responses = rr
			delete(c.transactions, opcode)
		} else if c.defaultRsp != nil {
			responses = c.defaultRsp(opcode, packet)
		}
		c.mu.Unlock()

		for _, r := range responses {
			if c.cmd.out.send(r) != nil {
				return
			}
		}
	}
}

// Event packet builders used by tests and by the controller scripts.

// CommandCompleteEvent builds a Command Complete event for opcode with the
// given return parameters.
func CommandCompleteEvent(opcode uint16, returnParams ...byte) []byte {
	payload := make([]byte, 3+len(returnParams))
	payload[0] = 1 // NumHCICommandPackets
	binary.LittleEndian.PutUint16(payload[1:3], opcode)
	copy(payload[3:], returnParams)
	return eventPacket(0x0E, payload)
}

// CommandStatusEvent builds a Command Status event.
func CommandStatusEvent(status uint8, opcode uint16) []byte {
	payload := []byte{status, 1, 0, 0}
	binary.LittleEndian.PutUint16(payload[2:4], opcode)
	return eventPacket(0x0F, payload)
}

// NumberOfCompletedPacketsEvent builds a completed-packets event for a
// single handle.
func NumberOfCompletedPacketsEvent(handle uint16, completed uint16) []byte {
	payload := make([]byte, 5)
	payload[0] = 1
	binary.LittleEndian.PutUint16(payload[1:3], handle)
	binary.LittleEndian.PutUint16(payload[3:5], completed)
	return eventPacket(0x13, payload)
}

// LEConnectionCompleteEvent builds an LE meta event carrying a connection
// complete subevent.
func LEConnectionCompleteEvent(status uint8, handle uint16, role uint8, peerAddrType uint8, peerAddr [6]byte) []byte {
	payload := make([]byte, 19)
	payload[0] = 0x01 // subevent
	payload[1] = status
	binary.LittleEndian.PutUint16(payload[2:4], handle)
	payload[4] = role
	payload[5] = peerAddrType
	copy(payload[6:12], peerAddr[:])
	binary.LittleEndian.PutUint16(payload[12:14], 0x0018) // conn interval
	binary.LittleEndian.PutUint16(payload[14:16], 0x0000) // latency
	binary.LittleEndian.PutUint16(payload[16:18], 0x0048) // supervision timeout
	payload[18] = 0x00
	return eventPacket(0x3E, payload)
}

// LEAdvertisingReportEvent builds an LE meta event carrying one
// advertising report.
func LEAdvertisingReportEvent(eventType uint8, addrType uint8, addr [6]byte, data []byte, rssi int8) []byte {
	payload := make([]byte, 0, 12+len(data))
	payload = append(payload, 0x02, 1, eventType, addrType)
	payload = append(payload, addr[:]...)
	payload = append(payload, uint8(len(data)))
	payload = append(payload, data...)
	payload = append(payload, uint8(rssi))
	return eventPacket(0x3E, payload)
}

// ACLPacket builds a raw ACL data packet.
func ACLPacket(handle uint16, payload []byte) []byte {
	b := make([]byte, 4+len(payload))
	binary.LittleEndian.PutUint16(b[0:2], handle&0x0fff)
	binary.LittleEndian.PutUint16(b[2:4], uint16(len(payload)))
	copy(b[4:], payload)
	return b
}

func eventPacket(code uint8, payload []byte) []byte {
	b := make([]byte, 2+len(payload))
	b[0] = code
	b[1] = uint8(len(payload))
	copy(b[2:], payload)
	return b
}
