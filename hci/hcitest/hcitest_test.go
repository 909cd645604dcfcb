package hcitest

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeviceWriteReportsFullLength(t *testing.T) {
	dev, ctrl := New()
	defer ctrl.Close()

	got := make(chan []byte, 1)
	ctrl.SetCommandCallback(func(opcode uint16, packet []byte) { got <- packet })

	packet := []byte{0x03, 0x0C, 0x00}
	n, err := dev.CommandChannel().Write(packet)
	require.NoError(t, err)
	assert.Equal(t, len(packet), n)
	assert.Equal(t, packet, <-got)
}

func TestDeviceWriteFailsAfterClose(t *testing.T) {
	dev, ctrl := New()
	ctrl.Close()

	n, err := dev.CommandChannel().Write([]byte{0x03, 0x0C, 0x00})
	assert.Equal(t, 0, n)
	assert.Equal(t, io.ErrClosedPipe, err)

	_, err = dev.CommandChannel().Read(make([]byte, 260))
	assert.Equal(t, io.EOF, err)
}
