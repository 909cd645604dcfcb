package hci

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/rigado/bthost/hci/cmd"
	"github.com/rigado/bthost/hci/evt"
)

// SequentialCommandRunner runs a batch of commands strictly in order:
// command N+1 is sent only after command N completed with a success
// status. The first failure aborts the remainder of the batch. Used by
// multi-phase initialization sequences where later commands depend on the
// results of earlier ones.
type SequentialCommandRunner struct {
	cc     *CommandChannel
	runner *TaskRunner

	mu       sync.Mutex
	queue    []seqCommand
	running  bool
	statusCb func(error)
}

type seqCommand struct {
	c cmd.Command
	// cb receives the return parameters (including the status byte) of a
	// successfully completed command. May be nil.
	cb func(rp []byte)
}

// NewSequentialCommandRunner returns a runner delivering all callbacks on
// runner.
func NewSequentialCommandRunner(cc *CommandChannel, runner *TaskRunner) *SequentialCommandRunner {
	return &SequentialCommandRunner{cc: cc, runner: runner}
}

// QueueCommand appends c to the batch. Must not be called while the batch
// is running.
func (r *SequentialCommandRunner) QueueCommand(c cmd.Command, cb func(rp []byte)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		logger.Error("QueueCommand while batch is running, dropped")
		return
	}
	r.queue = append(r.queue, seqCommand{c: c, cb: cb})
}

// HasQueuedCommands reports whether any commands wait to be run.
func (r *SequentialCommandRunner) HasQueuedCommands() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue) > 0
}

// IsReady reports whether a new batch may be queued and run.
func (r *SequentialCommandRunner) IsReady() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.running
}

// RunCommands starts the batch. statusCb fires exactly once, on the
// runner's context: with nil after every command completed successfully,
// or with the first error encountered. An empty batch succeeds
// immediately.
func (r *SequentialCommandRunner) RunCommands(statusCb func(error)) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		r.runner.Post(func() { statusCb(errors.New("batch already running")) })
		return
	}
	r.running = true
	r.statusCb = statusCb
	r.mu.Unlock()

	r.runNext()
}

func (r *SequentialCommandRunner) runNext() {
	r.mu.Lock()
	if len(r.queue) == 0 {
		r.mu.Unlock()
		r.finish(nil)
		return
	}
	next := r.queue[0]
	r.queue = r.queue[1:]
	r.mu.Unlock()

	id := r.cc.SendCommand(next.c,
		func(id uint64, err error) {
			if err != nil {
				r.finish(errors.Wrapf(err, "command 0x%04X", next.c.OpCode()))
			}
			// A success status for a CommandComplete-terminated command is
			// informational only; completion decides.
		},
		func(id uint64, p EventPacket) {
			rp := evt.CommandComplete(p.Payload()).ReturnParameters()
			if len(rp) > 0 && rp[0] != 0x00 {
				r.finish(errors.Wrapf(ErrCommand(rp[0]), "command 0x%04X", next.c.OpCode()))
				return
			}
			if next.cb != nil {
				next.cb(rp)
			}
			r.runNext()
		},
		r.runner, evt.CommandCompleteCode)

	if id == 0 {
		r.finish(errors.Errorf("can't send command 0x%04X", next.c.OpCode()))
	}
}

func (r *SequentialCommandRunner) finish(err error) {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.queue = nil
	cb := r.statusCb
	r.statusCb = nil
	r.mu.Unlock()

	if cb != nil {
		r.runner.Post(func() { cb(err) })
	}
}
