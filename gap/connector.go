package gap

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rigado/bthost"
	"github.com/rigado/bthost/hci"
	"github.com/rigado/bthost/hci/cmd"
	"github.com/rigado/bthost/hci/evt"
)

// ConnectionResult classifies how a connection request ended.
type ConnectionResult int

const (
	ConnectionSuccess ConnectionResult = iota
	ConnectionFailed
	ConnectionCanceled
)

func (r ConnectionResult) String() string {
	switch r {
	case ConnectionSuccess:
		return "success"
	case ConnectionFailed:
		return "failed"
	case ConnectionCanceled:
		return "canceled"
	}
	return "unknown"
}

// ErrConnectTimeout resolves a request whose controller never answered.
var ErrConnectTimeout = errors.New("connection request timed out")

// ConnectionValues carries the link parameters from a successful LE
// Connection Complete event.
type ConnectionValues struct {
	Handle             uint16
	Role               uint8
	PeerAddress        bthost.Addr
	Interval           uint16
	Latency            uint16
	SupervisionTimeout uint16
}

// ConnectionResultCallback resolves one connection request. values is
// meaningful only for ConnectionSuccess; err only for ConnectionFailed.
type ConnectionResultCallback func(result ConnectionResult, values ConnectionValues, err error)

type pendingConnection struct {
	peer     bthost.Addr
	cb       ConnectionResultCallback
	canceled bool
	timer    *time.Timer
}

// Connector establishes outbound LE connections, one request at a time.
// A request resolves through exactly one of: the matching Connection
// Complete event, a failure Command Status, or the one-shot timeout.
// Incoming connections that match no pending request pass through to the
// incoming-connection callback untouched.
type Connector struct {
	cc     *hci.CommandChannel
	runner *hci.TaskRunner

	mu      sync.Mutex
	pending *pendingConnection

	incomingCb func(ConnectionValues)

	handlerID uint64
}

// NewConnector registers the connection complete handler and returns an
// idle connector delivering all callbacks on runner.
func NewConnector(cc *hci.CommandChannel, runner *hci.TaskRunner) (*Connector, error) {
	c := &Connector{cc: cc, runner: runner}
	c.handlerID = cc.AddLEMetaEventHandler(evt.LEConnectionCompleteSubCode, c.onConnectionComplete, runner)
	if c.handlerID == 0 {
		return nil, errors.New("connection complete handler already taken")
	}
	return c, nil
}

// Close unregisters the connector's event handler.
func (c *Connector) Close() {
	c.cc.RemoveEventHandler(c.handlerID)
}

// SetIncomingConnectionCallback registers cb for peer-initiated
// connections, delivered on the connector's runner.
func (c *Connector) SetIncomingConnectionCallback(cb func(ConnectionValues)) {
	c.mu.Lock()
	c.incomingCb = cb
	c.mu.Unlock()
}

// RequestPending reports whether a connection request is in flight.
func (c *Connector) RequestPending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending != nil
}

// CreateConnection starts a connection attempt to peer. It returns false
// without queueing if another request is already pending. timeout bounds
// the whole attempt; 0 disables the timer.
func (c *Connector) CreateConnection(peer bthost.Addr, intervalMin, intervalMax uint16,
	timeout time.Duration, cb ConnectionResultCallback) bool {

	c.mu.Lock()
	if c.pending != nil {
		c.mu.Unlock()
		return false
	}
	p := &pendingConnection{peer: peer, cb: cb}
	c.pending = p
	c.mu.Unlock()

	peerType := uint8(0x00)
	if _, random := peer.(bthost.RandomAddress); random {
		peerType = 0x01
	}
	var peerAddr [6]byte
	b := peer.Bytes()
	if len(b) == 6 {
		// Addr.Bytes is display order; the wire wants it reversed.
		for i := 0; i < 6; i++ {
			peerAddr[i] = b[5-i]
		}
	}

	id := c.cc.SendCommand(&cmd.LECreateConnection{
		LEScanInterval:     0x0010,
		LEScanWindow:       0x0010,
		PeerAddressType:    peerType,
		PeerAddress:        peerAddr,
		ConnIntervalMin:    intervalMin,
		ConnIntervalMax:    intervalMax,
		SupervisionTimeout: 0x0048,
		MaximumCELength:    0x0300,
	},
		// LE Create Connection acknowledges with Command Status; the
		// status event is the command's terminal event, the connection
		// itself arrives later as a meta event.
		nil,
		func(id uint64, p hci.EventPacket) { c.onCommandStatus(p, timeout) },
		c.runner, evt.CommandStatusCode)
	if id == 0 {
		c.resolve(ConnectionFailed, ConnectionValues{}, errors.New("can't send connection request"))
	}
	return true
}

// Cancel asks the controller to abort the pending request. The request
// resolves as ConnectionCanceled once the controller confirms, through
// either a connection complete with Unknown Connection Identifier or a
// successful completion of the cancel command racing an actual
// connection.
func (c *Connector) Cancel() {
	c.mu.Lock()
	p := c.pending
	if p == nil || p.canceled {
		c.mu.Unlock()
		return
	}
	p.canceled = true
	c.mu.Unlock()

	id := c.cc.SendCommand(&cmd.LECreateConnectionCancel{},
		func(id uint64, err error) {
			if err != nil {
				logger.Error("can't cancel connection request:", err)
			}
		},
		nil, c.runner, evt.CommandCompleteCode)
	if id == 0 {
		logger.Error("can't queue connection cancel")
	}
}

// onCommandStatus handles the immediate controller verdict. Runs on the
// runner.
func (c *Connector) onCommandStatus(p hci.EventPacket, timeout time.Duration) {
	e := evt.CommandStatus(p.Payload())
	if !e.Valid() {
		c.resolve(ConnectionFailed, ConnectionValues{}, errors.New("truncated command status"))
		return
	}
	if status := e.Status(); status != 0x00 {
		c.resolve(ConnectionFailed, ConnectionValues{}, hci.ErrCommand(status))
		return
	}

	// Accepted; arm the one-shot timeout for the pending request.
	if timeout <= 0 {
		return
	}
	c.mu.Lock()
	if c.pending != nil {
		c.pending.timer = time.AfterFunc(timeout, func() {
			c.runner.Post(c.onTimeout)
		})
	}
	c.mu.Unlock()
}

func (c *Connector) onTimeout() {
	c.mu.Lock()
	p := c.pending
	c.mu.Unlock()
	if p == nil {
		return
	}
	c.resolve(ConnectionFailed, ConnectionValues{}, ErrConnectTimeout)
}

// onConnectionComplete handles the LE Connection Complete meta event,
// resolving the pending request when the peer matches and forwarding the
// connection otherwise. Runs on the runner.
func (c *Connector) onConnectionComplete(p hci.EventPacket) {
	e := evt.LEConnectionComplete(p.Payload())
	status, err := e.StatusWErr()
	if err != nil {
		logger.Warn("truncated connection complete event")
		return
	}

	var peer bthost.Addr = bthost.AddrFromBytes(e.PeerAddress())
	if e.PeerAddressType() == 0x01 {
		peer = bthost.RandomAddress{Addr: peer}
	}

	values := ConnectionValues{
		Handle:             e.ConnectionHandle(),
		Role:               e.Role(),
		PeerAddress:        peer,
		Interval:           e.ConnInterval(),
		Latency:            e.ConnLatency(),
		SupervisionTimeout: e.SupervisionTimeout(),
	}

	c.mu.Lock()
	pending := c.pending
	var matches, canceled bool
	if pending != nil {
		canceled = pending.canceled
		// A canceled request also matches the cancellation's canonical
		// failure, which carries no peer address worth comparing.
		matches = pending.peer.String() == peer.String() ||
			(canceled && hci.ErrCommand(status) == hci.ErrConnID)
	}
	c.mu.Unlock()

	if !matches {
		if status == 0x00 {
			// Unsolicited peer-initiated connection.
			c.mu.Lock()
			cb := c.incomingCb
			c.mu.Unlock()
			if cb != nil {
				cb(values)
			} else {
				logger.Warnf("dropping unsolicited connection from %v", peer)
			}
		}
		return
	}

	switch {
	case canceled:
		c.resolve(ConnectionCanceled, ConnectionValues{}, nil)
	case status != 0x00:
		c.resolve(ConnectionFailed, ConnectionValues{}, hci.ErrCommand(status))
	default:
		c.resolve(ConnectionSuccess, values, nil)
	}
}

// resolve finishes the pending request exactly once, stopping the
// timeout timer on every path.
func (c *Connector) resolve(result ConnectionResult, values ConnectionValues, err error) {
	c.mu.Lock()
	p := c.pending
	c.pending = nil
	c.mu.Unlock()
	if p == nil {
		return
	}
	if p.timer != nil {
		p.timer.Stop()
	}
	c.runner.Post(func() { p.cb(result, values, err) })
}
