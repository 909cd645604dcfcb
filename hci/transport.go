package hci

import (
	"io"
	"sync"

	"github.com/pkg/errors"
)

// DeviceWrapper provides the two byte channels to a Bluetooth controller:
// the command/event channel and the ACL data channel. Each successful Read
// returns exactly one whole packet. A nil channel means the underlying
// device could not provide it.
type DeviceWrapper interface {
	CommandChannel() io.ReadWriteCloser
	ACLDataChannel() io.ReadWriteCloser
}

// Transport owns the byte channels to the controller and the single I/O
// task runner every other component schedules channel work on. All channel
// writes happen on that runner; reads happen on per-channel read loops
// that hand inbound packets off to it.
type Transport struct {
	dev DeviceWrapper

	ioRunner *TaskRunner

	mu          sync.Mutex
	initialized bool
	shutdown    bool

	cmd *CommandChannel
	acl *ACLDataChannel

	closedOnce   sync.Once
	closedCb     func()
	closedRunner *TaskRunner
}

// NewTransport returns an uninitialized Transport over dev.
func NewTransport(dev DeviceWrapper) *Transport {
	return &Transport{dev: dev}
}

// Initialize opens the command/event channel and starts the I/O runner.
// It fails with ErrChannelUnavailable if the device cannot provide the
// command channel.
func (t *Transport) Initialize() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.initialized {
		return ErrAlreadyInitialized
	}

	rwc := t.dev.CommandChannel()
	if rwc == nil {
		return errors.Wrap(ErrChannelUnavailable, "command channel")
	}

	t.ioRunner = NewTaskRunner()
	t.cmd = newCommandChannel(t, rwc)
	t.cmd.start()
	t.initialized = true
	return nil
}

// InitializeACLDataChannel opens the ACL data channel with the buffer
// sizes negotiated during adapter initialization. It may only be called
// after a successful Initialize.
func (t *Transport) InitializeACLDataChannel(bredrInfo, leInfo DataBufferInfo, lookup ConnectionLookupFunc) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.initialized {
		return ErrNotInitialized
	}
	if t.acl != nil {
		return ErrAlreadyInitialized
	}

	rwc := t.dev.ACLDataChannel()
	if rwc == nil {
		return errors.Wrap(ErrChannelUnavailable, "acl data channel")
	}

	acl, err := newACLDataChannel(t, rwc, bredrInfo, leInfo, lookup)
	if err != nil {
		return err
	}
	t.acl = acl
	t.acl.start()
	return nil
}

// CommandChannel returns the command channel, or nil before Initialize.
func (t *Transport) CommandChannel() *CommandChannel {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cmd
}

// ACLDataChannel returns the data channel, or nil before
// InitializeACLDataChannel.
func (t *Transport) ACLDataChannel() *ACLDataChannel {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.acl
}

// SetClosedCallback registers the callback that fires exactly once, on
// runner, when either channel signals peer closure or an I/O error. This
// is the single signal that the controller went away.
func (t *Transport) SetClosedCallback(cb func(), runner *TaskRunner) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closedCb = cb
	t.closedRunner = runner
}

// ShutDown stops the read loops, closes both channels and joins the I/O
// runner. It is idempotent and must be called from the owner's context;
// it blocks until the I/O runner has fully stopped. The closed callback
// does not fire for an explicit shutdown.
func (t *Transport) ShutDown() {
	t.mu.Lock()
	if t.shutdown || !t.initialized {
		t.mu.Unlock()
		return
	}
	t.shutdown = true
	cmd, acl, ioRunner := t.cmd, t.acl, t.ioRunner
	t.mu.Unlock()

	if acl != nil {
		acl.stop()
	}
	cmd.stop()
	ioRunner.Stop()
}

func (t *Transport) isShutDown() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.shutdown
}

// notifyClosed reports a fatal channel error. Only the first report wins;
// later ones (the second channel noticing, a read loop unwinding) are
// dropped, as is any report raced with an explicit ShutDown.
func (t *Transport) notifyClosed(err error) {
	if t.isShutDown() {
		return
	}
	t.closedOnce.Do(func() {
		logger.Error("transport closed:", err)
		t.mu.Lock()
		cmd := t.cmd
		cb, runner := t.closedCb, t.closedRunner
		t.mu.Unlock()
		// Fail whatever is in flight or queued before anyone hears about
		// the closure; those transactions can never resolve now.
		if cmd != nil {
			cmd.failPending(err)
		}
		if cb == nil {
			return
		}
		if runner != nil {
			runner.Post(cb)
		} else {
			go cb()
		}
	})
}
