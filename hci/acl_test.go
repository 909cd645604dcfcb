package hci

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rigado/bthost/hci/hcitest"
)

type testConn struct {
	handle uint16
	lt     LinkType
}

func (c testConn) Handle() uint16     { return c.handle }
func (c testConn) LinkType() LinkType { return c.lt }

type testConns map[uint16]Connection

func (m testConns) lookup(handle uint16) Connection {
	if c, ok := m[handle]; ok {
		return c
	}
	return nil
}

func setupACL(t *testing.T, bredr, le DataBufferInfo, conns testConns) (*Transport, *hcitest.Controller, *TaskRunner) {
	t.Helper()
	tr, ctrl, runner := setupTransport(t)
	require.NoError(t, tr.InitializeACLDataChannel(bredr, le, conns.lookup))
	return tr, ctrl, runner
}

func TestACLCreditExhaustion(t *testing.T) {
	conns := testConns{
		0x0001: testConn{0x0001, LinkLE},
		0x0002: testConn{0x0002, LinkLE},
		0x0003: testConn{0x0003, LinkLE},
	}
	tr, ctrl, _ := setupACL(t,
		DataBufferInfo{}, DataBufferInfo{MaxDataLength: 27, MaxNumPackets: 2}, conns)
	acl := tr.ACLDataChannel()

	for h := uint16(1); h <= 3; h++ {
		p := NewACLDataPacket(h, PbfFirstNonFlushable, 0, []byte{byte(h)})
		require.NoError(t, acl.SendPacket(p))
	}

	// Exactly two go out; the third waits on credits.
	readPacket := func() ACLDataPacket {
		t.Helper()
		done := make(chan []byte, 1)
		go func() {
			b, err := ctrl.ReadACL()
			if err == nil {
				done <- b
			}
		}()
		select {
		case b := <-done:
			return ACLDataPacket(b)
		case <-time.After(time.Second):
			t.Fatal("no acl packet written")
			return nil
		}
	}

	first := readPacket()
	second := readPacket()
	assert.Equal(t, uint16(0x0001), first.Handle())
	assert.Equal(t, uint16(0x0002), second.Handle())

	third := make(chan []byte, 1)
	go func() {
		b, err := ctrl.ReadACL()
		if err == nil {
			third <- b
		}
	}()
	select {
	case <-third:
		t.Fatal("third packet written with no free credits")
	case <-time.After(100 * time.Millisecond):
	}

	// One completion frees one credit and releases the third packet.
	require.NoError(t, ctrl.SendEvent(hcitest.NumberOfCompletedPacketsEvent(0x0001, 1)))
	select {
	case b := <-third:
		assert.Equal(t, uint16(0x0003), ACLDataPacket(b).Handle())
	case <-time.After(time.Second):
		t.Fatal("third packet never written after credit replenish")
	}
}

func TestACLCompletedPacketsUnderflowClamped(t *testing.T) {
	conns := testConns{0x0001: testConn{0x0001, LinkLE}}
	tr, ctrl, _ := setupACL(t,
		DataBufferInfo{}, DataBufferInfo{MaxDataLength: 27, MaxNumPackets: 2}, conns)
	acl := tr.ACLDataChannel()

	// Completions with nothing in flight are malformed controller input;
	// they must clamp, not panic, and must not mint extra credits.
	require.NoError(t, ctrl.SendEvent(hcitest.NumberOfCompletedPacketsEvent(0x0001, 5)))
	time.Sleep(50 * time.Millisecond)

	for i := 0; i < 3; i++ {
		p := NewACLDataPacket(0x0001, PbfFirstNonFlushable, 0, []byte{byte(i)})
		require.NoError(t, acl.SendPacket(p))
	}
	got := 0
	deadline := time.After(300 * time.Millisecond)
	for {
		done := make(chan struct{}, 1)
		go func() {
			if _, err := ctrl.ReadACL(); err == nil {
				done <- struct{}{}
			}
		}()
		select {
		case <-done:
			got++
			if got > 2 {
				t.Fatal("credits exceeded pool maximum")
			}
		case <-deadline:
			assert.Equal(t, 2, got)
			return
		}
	}
}

func TestACLSendPacketValidation(t *testing.T) {
	conns := testConns{0x0001: testConn{0x0001, LinkLE}}
	tr, _, _ := setupACL(t,
		DataBufferInfo{}, DataBufferInfo{MaxDataLength: 4, MaxNumPackets: 2}, conns)
	acl := tr.ACLDataChannel()

	// Unknown handle.
	err := acl.SendPacket(NewACLDataPacket(0x0099, 0, 0, []byte{1}))
	require.Error(t, err)

	// Oversized payload for the negotiated data length.
	err = acl.SendPacket(NewACLDataPacket(0x0001, 0, 0, []byte{1, 2, 3, 4, 5}))
	require.Error(t, err)

	// Length mismatch in the header.
	bad := NewACLDataPacket(0x0001, 0, 0, []byte{1, 2})
	bad[2] = 7
	require.Error(t, acl.SendPacket(bad))

	require.NoError(t, acl.SendPacket(NewACLDataPacket(0x0001, 0, 0, []byte{1, 2, 3, 4})))
}

func TestACLReceivePath(t *testing.T) {
	conns := testConns{0x0001: testConn{0x0001, LinkLE}}
	tr, ctrl, runner := setupACL(t,
		DataBufferInfo{}, DataBufferInfo{MaxDataLength: 27, MaxNumPackets: 2}, conns)
	acl := tr.ACLDataChannel()

	got := make(chan ACLDataPacket, 2)
	acl.SetDataRxHandler(func(p ACLDataPacket) { got <- p }, runner)

	// A malformed inbound packet is dropped; the channel keeps running.
	bad := hcitest.ACLPacket(0x0001, []byte{1, 2, 3})
	bad[2] = 9
	require.NoError(t, ctrl.SendACL(bad))
	require.NoError(t, ctrl.SendACL(hcitest.ACLPacket(0x0001, []byte{0xAA, 0xBB})))

	select {
	case p := <-got:
		assert.Equal(t, uint16(0x0001), p.Handle())
		assert.Equal(t, []byte{0xAA, 0xBB}, p.Payload())
	case <-time.After(time.Second):
		t.Fatal("inbound packet never delivered")
	}
	select {
	case <-got:
		t.Fatal("malformed packet delivered")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestACLLEBufferFallback(t *testing.T) {
	conns := testConns{0x0001: testConn{0x0001, LinkLE}}
	bredr := DataBufferInfo{MaxDataLength: 310, MaxNumPackets: 10}
	tr, _, _ := setupACL(t, bredr, DataBufferInfo{}, conns)
	acl := tr.ACLDataChannel()

	// No dedicated LE pool reported; LE shares the BR/EDR buffers.
	assert.Equal(t, bredr, acl.GetBufferInfo())
	assert.Equal(t, bredr, acl.GetLEBufferInfo())
}
