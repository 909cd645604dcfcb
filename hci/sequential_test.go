package hci

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rigado/bthost/hci/cmd"
	"github.com/rigado/bthost/hci/hcitest"
)

func TestSequentialRunnerRunsInOrder(t *testing.T) {
	tr, ctrl, runner := setupTransport(t)

	reset := &cmd.Reset{}
	version := &cmd.ReadLocalVersionInformation{}
	resetOp := uint16(reset.OpCode())
	versionOp := uint16(version.OpCode())

	var mu sync.Mutex
	var order []uint16
	ctrl.SetCommandCallback(func(opcode uint16, packet []byte) {
		mu.Lock()
		order = append(order, opcode)
		mu.Unlock()
	})
	ctrl.QueueCommandTransaction(resetOp, hcitest.CommandCompleteEvent(resetOp, 0x00))
	ctrl.QueueCommandTransaction(versionOp,
		hcitest.CommandCompleteEvent(versionOp, 0x00, 0x09, 0x00, 0x00, 0x07, 0x00, 0x00, 0x00))

	seq := NewSequentialCommandRunner(tr.CommandChannel(), runner)
	var rpStatus []byte
	seq.QueueCommand(reset, nil)
	seq.QueueCommand(version, func(rp []byte) { rpStatus = append([]byte(nil), rp...) })
	require.True(t, seq.HasQueuedCommands())

	done := make(chan error, 1)
	seq.RunCommands(func(err error) { done <- err })

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("batch never finished")
	}

	mu.Lock()
	assert.Equal(t, []uint16{resetOp, versionOp}, order)
	mu.Unlock()
	require.NotEmpty(t, rpStatus)
	assert.Equal(t, uint8(0x00), rpStatus[0])
	assert.True(t, seq.IsReady())
	assert.False(t, seq.HasQueuedCommands())
}

func TestSequentialRunnerAbortsOnFailure(t *testing.T) {
	tr, ctrl, runner := setupTransport(t)

	reset := &cmd.Reset{}
	version := &cmd.ReadLocalVersionInformation{}
	resetOp := uint16(reset.OpCode())

	var mu sync.Mutex
	var order []uint16
	ctrl.SetCommandCallback(func(opcode uint16, packet []byte) {
		mu.Lock()
		order = append(order, opcode)
		mu.Unlock()
	})
	// The first command fails with Command Disallowed.
	ctrl.QueueCommandTransaction(resetOp, hcitest.CommandCompleteEvent(resetOp, 0x0C))

	seq := NewSequentialCommandRunner(tr.CommandChannel(), runner)
	seq.QueueCommand(reset, nil)
	seq.QueueCommand(version, func(rp []byte) { t.Error("second command ran after failure") })

	done := make(chan error, 1)
	seq.RunCommands(func(err error) { done <- err })

	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("batch never finished")
	}

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	assert.Equal(t, []uint16{resetOp}, order)
	mu.Unlock()
	assert.True(t, seq.IsReady())
}

func TestSequentialRunnerEmptyBatch(t *testing.T) {
	tr, _, runner := setupTransport(t)

	seq := NewSequentialCommandRunner(tr.CommandChannel(), runner)
	done := make(chan error, 1)
	seq.RunCommands(func(err error) { done <- err })

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("empty batch never finished")
	}
}
