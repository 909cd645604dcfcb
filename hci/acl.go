package hci

import (
	"io"
	"sync"

	"github.com/pkg/errors"
	"github.com/rigado/bthost/hci/evt"
)

// DataBufferInfo describes one of the controller's ACL buffer pools as
// reported during initialization.
type DataBufferInfo struct {
	MaxDataLength int
	MaxNumPackets int
}

// IsAvailable reports whether the controller actually has this pool.
func (i DataBufferInfo) IsAvailable() bool {
	return i.MaxDataLength != 0 && i.MaxNumPackets != 0
}

// Connection is the minimal view of a live link the data channel needs:
// which handle it is and whether it runs over BR/EDR or LE. Connection
// objects themselves live above this layer.
type Connection interface {
	Handle() uint16
	LinkType() LinkType
}

// ConnectionLookupFunc resolves a connection handle to a live connection,
// or nil if the handle is unknown.
type ConnectionLookupFunc func(handle uint16) Connection

// DataReceivedCallback receives one inbound ACL packet. The packet is a
// private copy; the channel's read buffer is reused for the next read.
type DataReceivedCallback func(p ACLDataPacket)

// creditPool tracks controller buffer credits for one link type.
// Invariant: 0 <= numSent <= info.MaxNumPackets.
type creditPool struct {
	info    DataBufferInfo
	numSent int
}

type queuedPacket struct {
	packet ACLDataPacket
	lt     LinkType
}

// ACLDataChannel is the flow-controlled data path to the controller. It
// enforces buffer credits separately for BR/EDR and LE links, falling back
// to the BR/EDR pool when the controller reported no dedicated LE buffers.
//
// The mutex guards only the send queue and the credit counters; channel
// writes always happen outside it, on the transport's I/O runner.
type ACLDataChannel struct {
	t      *Transport
	rwc    io.ReadWriteCloser
	lookup ConnectionLookupFunc

	mu    sync.Mutex
	queue []queuedPacket
	bredr creditPool
	le    creditPool

	muRx     sync.Mutex
	rxCb     DataReceivedCallback
	rxRunner *TaskRunner

	handlerID uint64

	done chan struct{}
	wg   sync.WaitGroup
}

func newACLDataChannel(t *Transport, rwc io.ReadWriteCloser,
	bredrInfo, leInfo DataBufferInfo, lookup ConnectionLookupFunc) (*ACLDataChannel, error) {

	if !bredrInfo.IsAvailable() && !leInfo.IsAvailable() {
		return nil, errors.New("need at least one usable data buffer")
	}
	if lookup == nil {
		return nil, errors.New("need a connection lookup")
	}

	c := &ACLDataChannel{
		t:      t,
		rwc:    rwc,
		lookup: lookup,
		bredr:  creditPool{info: bredrInfo},
		le:     creditPool{info: leInfo},
		done:   make(chan struct{}),
	}

	// Credit replenishment arrives as a plain HCI event on the command
	// channel.
	c.handlerID = t.cmd.AddEventHandler(evt.NumberOfCompletedPacketsCode,
		c.onNumberOfCompletedPackets, t.ioRunner)
	if c.handlerID == 0 {
		return nil, errors.New("number of completed packets handler already taken")
	}

	return c, nil
}

func (c *ACLDataChannel) start() {
	c.wg.Add(1)
	go c.readLoop()
}

func (c *ACLDataChannel) stop() {
	select {
	case <-c.done:
	default:
		close(c.done)
	}
	c.t.cmd.RemoveEventHandler(c.handlerID)
	c.rwc.Close()
	c.wg.Wait()
}

// GetBufferInfo returns the BR/EDR buffer description.
func (c *ACLDataChannel) GetBufferInfo() DataBufferInfo {
	return c.bredr.info
}

// GetLEBufferInfo returns the LE buffer description, or the BR/EDR one
// when the buffers are shared.
func (c *ACLDataChannel) GetLEBufferInfo() DataBufferInfo {
	if c.le.info.IsAvailable() {
		return c.le.info
	}
	return c.bredr.info
}

// SetDataRxHandler registers the inbound packet callback, delivered on
// runner.
func (c *ACLDataChannel) SetDataRxHandler(cb DataReceivedCallback, runner *TaskRunner) {
	c.muRx.Lock()
	c.rxCb = cb
	c.rxRunner = runner
	c.muRx.Unlock()
}

// SendPacket validates p against the destination link's negotiated data
// length, queues it and schedules a send attempt. It fails synchronously
// for a malformed packet, an unknown connection handle or an oversized
// payload; a valid packet is delivered as credits permit.
func (c *ACLDataChannel) SendPacket(p ACLDataPacket) error {
	if err := p.Validate(); err != nil {
		return err
	}

	conn := c.lookup(p.Handle())
	if conn == nil {
		return errors.Wrapf(ErrInvalidHandle, "handle 0x%04X", p.Handle())
	}

	lt := conn.LinkType()
	var max int
	if lt == LinkLE {
		max = c.GetLEBufferInfo().MaxDataLength
	} else {
		max = c.GetBufferInfo().MaxDataLength
	}
	if len(p.Payload()) > max {
		return errors.Wrapf(ErrPacketTooLong, "payload %d, max %d", len(p.Payload()), max)
	}

	c.mu.Lock()
	c.queue = append(c.queue, queuedPacket{packet: p, lt: lt})
	c.mu.Unlock()

	c.t.ioRunner.Post(c.trySendNextQueuedPackets)
	return nil
}

// poolFor maps a link type to the credit pool that backs it.
func (c *ACLDataChannel) poolFor(lt LinkType) *creditPool {
	if lt == LinkLE && c.le.info.IsAvailable() {
		return &c.le
	}
	return &c.bredr
}

// trySendNextQueuedPackets dequeues as many packets as free credits allow,
// writes them with no lock held, then re-acquires the lock only to account
// for the packets actually written. Runs on the I/O runner only.
func (c *ACLDataChannel) trySendNextQueuedPackets() {
	c.mu.Lock()
	free := map[*creditPool]int{
		&c.bredr: c.bredr.info.MaxNumPackets - c.bredr.numSent,
		&c.le:    c.le.info.MaxNumPackets - c.le.numSent,
	}

	var batch []queuedPacket
	remaining := c.queue[:0]
	for _, q := range c.queue {
		pool := c.poolFor(q.lt)
		if free[pool] > 0 {
			free[pool]--
			batch = append(batch, q)
		} else {
			remaining = append(remaining, q)
		}
	}
	c.queue = remaining
	c.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	// The blocking writes happen with no lock held.
	written := make(map[*creditPool]int)
	for _, q := range batch {
		if _, err := c.rwc.Write(q.packet); err != nil {
			// The packet is dropped rather than re-queued; whether a write
			// failure should instead tear down the link is left open.
			logger.Errorf("can't write acl packet for handle 0x%04X: %v", q.packet.Handle(), err)
			continue
		}
		written[c.poolFor(q.lt)]++
	}

	c.mu.Lock()
	for pool, n := range written {
		pool.numSent += n
		if pool.numSent > pool.info.MaxNumPackets {
			c.mu.Unlock()
			panic("acl credit counter exceeds controller buffer count")
		}
	}
	c.mu.Unlock()
}

// onNumberOfCompletedPackets replenishes credits from the controller's
// Number Of Completed Packets event and retries queued sends.
func (c *ACLDataChannel) onNumberOfCompletedPackets(p EventPacket) {
	e := evt.NumberOfCompletedPackets(p.Payload())

	nh, err := e.NumberOfHandlesWErr()
	if err != nil {
		logger.Warn("truncated number of completed packets event")
		return
	}

	for i := 0; i < int(nh); i++ {
		handle, err := e.ConnectionHandleWErr(i)
		if err != nil {
			logger.Warn("truncated number of completed packets entry")
			break
		}
		count := int(e.HCNumOfCompletedPackets(i))

		conn := c.lookup(handle)
		if conn == nil {
			logger.Warnf("completed packets for unknown handle 0x%04X", handle)
			continue
		}

		pool := c.poolFor(conn.LinkType())
		c.mu.Lock()
		pool.numSent -= count
		if pool.numSent < 0 {
			// The controller reported more completions than we have in
			// flight. Malformed input, not a logic error; clamp and move on.
			logger.Warnf("completed packets underflow for handle 0x%04X", handle)
			pool.numSent = 0
		}
		c.mu.Unlock()
	}

	c.trySendNextQueuedPackets()
}

func (c *ACLDataChannel) readLoop() {
	defer c.wg.Done()

	b := make([]byte, aclHeaderSize+65535)
	for {
		n, err := c.rwc.Read(b)
		if err != nil {
			select {
			case <-c.done:
			default:
				c.t.notifyClosed(errors.Wrap(err, "acl channel read"))
			}
			return
		}
		if n == 0 {
			continue
		}

		p := ACLDataPacket(b[:n])
		if err := p.Validate(); err != nil {
			// Drop just this packet; the data channel keeps running.
			logger.Error("dropping malformed acl packet:", err)
			continue
		}

		// Copy before crossing contexts; b is reused for the next read.
		cp := make(ACLDataPacket, n)
		copy(cp, p)

		c.muRx.Lock()
		cb, runner := c.rxCb, c.rxRunner
		c.muRx.Unlock()
		if cb == nil {
			logger.Debug("no rx handler, dropping acl packet")
			continue
		}
		runner.Post(func() { cb(cp) })
	}
}
