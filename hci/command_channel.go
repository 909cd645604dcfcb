package hci

import (
	"io"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/rigado/bthost/hci/cmd"
	"github.com/rigado/bthost/hci/evt"
)

// StatusCallback fires when a Command Status event arrives for a
// transaction, or when the command could not be written to the channel.
// A nil error is a success status; an ErrCommand is a controller-reported
// failure and terminates the transaction; any other error is a transport
// write failure, also terminal.
type StatusCallback func(id uint64, err error)

// CompleteCallback fires on the event that terminates a transaction: the
// event whose code matches the completion event code given to SendCommand.
type CompleteCallback func(id uint64, p EventPacket)

// EventCallback receives unsolicited events routed by event code or LE
// subevent code.
type EventCallback func(p EventPacket)

// Transaction and handler ids are process-wide monotonically increasing
// counters. An id is never reused while its transaction or registration is
// still tracked; wrap-around after 2^64 allocations is accepted and not
// guarded against.
var (
	txnIDCounter     uint64
	handlerIDCounter uint64
)

type transaction struct {
	id           uint64
	opcode       uint16
	completeCode uint8

	statusCb   StatusCallback
	completeCb CompleteCallback
	runner     *TaskRunner
}

type queuedCommand struct {
	txn    *transaction
	packet CommandPacket
}

type eventHandler struct {
	id         uint64
	code       uint8
	isSubevent bool
	cb         EventCallback
	runner     *TaskRunner
}

// CommandChannel serializes outbound HCI commands over the command/event
// channel, correlates status/complete events back to the originating
// transaction and fans unsolicited events out to registered handlers.
//
// At most one transaction is in flight at a time; the rest wait in a FIFO
// queue. Callbacks are always posted to the runner supplied at
// registration or send time, never invoked from inside a channel read.
type CommandChannel struct {
	t   *Transport
	rwc io.ReadWriteCloser

	muSend  sync.Mutex
	queue   []*queuedCommand
	pending *transaction

	muHandlers  sync.Mutex
	handlers    map[uint64]*eventHandler
	byEventCode map[uint8]uint64
	bySubCode   map[uint8]uint64

	done chan struct{}
	wg   sync.WaitGroup
}

func newCommandChannel(t *Transport, rwc io.ReadWriteCloser) *CommandChannel {
	return &CommandChannel{
		t:           t,
		rwc:         rwc,
		handlers:    make(map[uint64]*eventHandler),
		byEventCode: make(map[uint8]uint64),
		bySubCode:   make(map[uint8]uint64),
		done:        make(chan struct{}),
	}
}

func (c *CommandChannel) start() {
	c.wg.Add(1)
	go c.readLoop()
}

func (c *CommandChannel) stop() {
	select {
	case <-c.done:
	default:
		close(c.done)
	}
	c.rwc.Close()
	c.wg.Wait()
}

// SendCommand enqueues co and returns its transaction id immediately. The
// transaction terminates either through statusCb (failure status or write
// error, or for commands whose completion event is Command Status itself)
// or through completeCb on the event matching completeEventCode. Pass
// evt.CommandCompleteCode for ordinary commands. Returns 0 if the command
// cannot be marshaled.
func (c *CommandChannel) SendCommand(co cmd.Command, statusCb StatusCallback,
	completeCb CompleteCallback, runner *TaskRunner, completeEventCode uint8) uint64 {

	b := make([]byte, co.Len())
	if err := co.Marshal(b); err != nil {
		logger.Errorf("can't marshal command 0x%04X: %v", co.OpCode(), err)
		return 0
	}

	txn := &transaction{
		id:           atomic.AddUint64(&txnIDCounter, 1),
		opcode:       uint16(co.OpCode()),
		completeCode: completeEventCode,
		statusCb:     statusCb,
		completeCb:   completeCb,
		runner:       runner,
	}

	c.muSend.Lock()
	c.queue = append(c.queue, &queuedCommand{
		txn:    txn,
		packet: NewCommandPacket(txn.opcode, b),
	})
	c.muSend.Unlock()

	c.t.ioRunner.Post(c.trySendNext)
	return txn.id
}

// AddEventHandler registers cb for an unsolicited event code. At most one
// handler may exist per code; a duplicate registration returns 0 and
// leaves the existing handler intact. Command Complete, Command Status and
// LE Meta cannot be subscribed to directly.
func (c *CommandChannel) AddEventHandler(code uint8, cb EventCallback, runner *TaskRunner) uint64 {
	switch code {
	case evt.CommandCompleteCode, evt.CommandStatusCode, evt.LEMetaCode:
		logger.Warnf("refusing event handler for reserved code 0x%02X", code)
		return 0
	}

	c.muHandlers.Lock()
	defer c.muHandlers.Unlock()

	if _, ok := c.byEventCode[code]; ok {
		return 0
	}

	h := &eventHandler{
		id:     atomic.AddUint64(&handlerIDCounter, 1),
		code:   code,
		cb:     cb,
		runner: runner,
	}
	c.handlers[h.id] = h
	c.byEventCode[code] = h.id
	return h.id
}

// AddLEMetaEventHandler registers cb for an LE meta subevent code, with
// the same uniqueness rule as AddEventHandler.
func (c *CommandChannel) AddLEMetaEventHandler(subCode uint8, cb EventCallback, runner *TaskRunner) uint64 {
	c.muHandlers.Lock()
	defer c.muHandlers.Unlock()

	if _, ok := c.bySubCode[subCode]; ok {
		return 0
	}

	h := &eventHandler{
		id:         atomic.AddUint64(&handlerIDCounter, 1),
		code:       subCode,
		isSubevent: true,
		cb:         cb,
		runner:     runner,
	}
	c.handlers[h.id] = h
	c.bySubCode[subCode] = h.id
	return h.id
}

// RemoveEventHandler unregisters a handler. Removing an unknown id is a
// no-op.
func (c *CommandChannel) RemoveEventHandler(id uint64) {
	c.muHandlers.Lock()
	defer c.muHandlers.Unlock()

	h, ok := c.handlers[id]
	if !ok {
		return
	}
	delete(c.handlers, id)
	if h.isSubevent {
		delete(c.bySubCode, h.code)
	} else {
		delete(c.byEventCode, h.code)
	}
}

// trySendNext writes the head of the queue if no transaction is pending.
// Runs on the I/O runner only. A write failure fails that transaction
// through its status callback and moves on to the next queued command
// rather than silently stalling the queue.
func (c *CommandChannel) trySendNext() {
	for {
		c.muSend.Lock()
		if c.pending != nil || len(c.queue) == 0 {
			c.muSend.Unlock()
			return
		}
		q := c.queue[0]
		c.queue = c.queue[1:]
		c.pending = q.txn
		c.muSend.Unlock()

		_, err := c.rwc.Write(q.packet)
		if err == nil {
			return
		}

		logger.Errorf("can't write command 0x%04X: %v", q.txn.opcode, err)
		c.muSend.Lock()
		c.pending = nil
		c.muSend.Unlock()

		txn := q.txn
		if txn.statusCb != nil {
			werr := errors.Wrap(err, "send command")
			txn.runner.Post(func() { txn.statusCb(txn.id, werr) })
		}
	}
}

// failPending fails the in-flight transaction and every queued command
// through their status callbacks. Called once when the transport reports
// a fatal channel error; no completion event can arrive after that, and
// a transaction left pending would never resolve.
func (c *CommandChannel) failPending(err error) {
	c.muSend.Lock()
	pending := c.pending
	queue := c.queue
	c.pending = nil
	c.queue = nil
	c.muSend.Unlock()

	txns := make([]*transaction, 0, len(queue)+1)
	if pending != nil {
		txns = append(txns, pending)
	}
	for _, q := range queue {
		txns = append(txns, q.txn)
	}

	for _, txn := range txns {
		if txn.statusCb == nil {
			continue
		}
		txn := txn
		werr := errors.Wrapf(err, "command 0x%04X abandoned", txn.opcode)
		txn.runner.Post(func() { txn.statusCb(txn.id, werr) })
	}
}

func (c *CommandChannel) readLoop() {
	defer c.wg.Done()

	b := make([]byte, eventHeaderSize+maxEventPayload)
	for {
		n, err := c.rwc.Read(b)
		if err != nil {
			select {
			case <-c.done:
			default:
				c.t.notifyClosed(errors.Wrap(err, "command channel read"))
			}
			return
		}
		if n == 0 {
			continue
		}

		p := make(EventPacket, n)
		copy(p, b[:n])
		if err := p.Validate(); err != nil {
			// A malformed frame on the event channel means we lost sync
			// with the controller; there is no way to resynchronize.
			c.t.notifyClosed(err)
			return
		}

		c.t.ioRunner.Post(func() { c.handleEvent(p) })
	}
}

// handleEvent routes one inbound event. Runs on the I/O runner only.
func (c *CommandChannel) handleEvent(p EventPacket) {
	switch p.EventCode() {
	case evt.CommandCompleteCode:
		c.handleCommandComplete(p)
	case evt.CommandStatusCode:
		c.handleCommandStatus(p)
	case evt.LEMetaCode:
		payload := p.Payload()
		if len(payload) == 0 {
			logger.Warn("empty LE meta event")
			return
		}
		c.notifyHandler(payload[0], true, p)
	default:
		c.muSend.Lock()
		txn := c.pending
		if txn != nil && txn.completeCode == p.EventCode() {
			c.pending = nil
			c.muSend.Unlock()
			c.completeTxn(txn, p)
			c.trySendNext()
			return
		}
		c.muSend.Unlock()
		c.notifyHandler(p.EventCode(), false, p)
	}
}

func (c *CommandChannel) handleCommandComplete(p EventPacket) {
	e := evt.CommandComplete(p.Payload())
	opcode, err := e.CommandOpcodeWErr()
	if err != nil {
		logger.Warn("truncated command complete event")
		return
	}

	// NOP opcode, used by the controller for flow control only.
	if opcode == 0x0000 {
		return
	}

	c.muSend.Lock()
	txn := c.pending
	if txn == nil || txn.opcode != opcode || txn.completeCode != evt.CommandCompleteCode {
		c.muSend.Unlock()
		// Command Complete events exist solely to resolve transactions;
		// one that matches nothing is dropped, never fanned out.
		logger.Warnf("command complete for opcode 0x%04X matches no pending command", opcode)
		return
	}
	c.pending = nil
	c.muSend.Unlock()

	c.completeTxn(txn, p)
	c.trySendNext()
}

func (c *CommandChannel) handleCommandStatus(p EventPacket) {
	e := evt.CommandStatus(p.Payload())
	if !e.Valid() {
		logger.Warn("truncated command status event")
		return
	}

	opcode := e.CommandOpcode()
	status := e.Status()

	c.muSend.Lock()
	txn := c.pending
	if txn == nil || txn.opcode != opcode {
		c.muSend.Unlock()
		logger.Warnf("command status for opcode 0x%04X matches no pending command", opcode)
		return
	}

	switch {
	case txn.completeCode == evt.CommandStatusCode:
		// Command Status is this command's terminal event.
		c.pending = nil
		c.muSend.Unlock()
		c.completeTxn(txn, p)
		c.trySendNext()

	case status != 0x00:
		// Failure status ends the transaction; the real completion event
		// will never come.
		c.pending = nil
		c.muSend.Unlock()
		if txn.statusCb != nil {
			txn.runner.Post(func() { txn.statusCb(txn.id, ErrCommand(status)) })
		}
		c.trySendNext()

	default:
		// Success status; the transaction stays pending on its completion
		// event.
		c.muSend.Unlock()
		if txn.statusCb != nil {
			txn.runner.Post(func() { txn.statusCb(txn.id, nil) })
		}
	}
}

func (c *CommandChannel) completeTxn(txn *transaction, p EventPacket) {
	if txn.completeCb == nil {
		return
	}
	txn.runner.Post(func() { txn.completeCb(txn.id, p) })
}

func (c *CommandChannel) notifyHandler(code uint8, isSubevent bool, p EventPacket) {
	c.muHandlers.Lock()
	var id uint64
	var ok bool
	if isSubevent {
		id, ok = c.bySubCode[code]
	} else {
		id, ok = c.byEventCode[code]
	}
	var h *eventHandler
	if ok {
		h = c.handlers[id]
	}
	c.muHandlers.Unlock()

	if h == nil {
		logger.Debugf("no handler for event code 0x%02X (subevent: %v)", code, isSubevent)
		return
	}
	h.runner.Post(func() { h.cb(p) })
}
