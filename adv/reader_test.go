package adv

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func field(typ byte, data ...byte) []byte {
	out := []byte{byte(len(data) + 1), typ}
	return append(out, data...)
}

func TestDataReaderYieldsFieldsInOrder(t *testing.T) {
	var b []byte
	b = append(b, field(TypeFlags, 0x06)...)
	b = append(b, field(TypeCompleteName, 'a', 'b', 'c')...)
	b = append(b, field(TypeTxPower, 0xF6)...)

	r, err := NewDataReader(b)
	require.NoError(t, err)

	type f struct {
		typ  byte
		data []byte
	}
	var got []f
	for r.HasMoreData() {
		typ, v, ok := r.GetNextField()
		require.True(t, ok)
		got = append(got, f{typ, append([]byte(nil), v...)})
	}

	require.Len(t, got, 3)
	assert.Equal(t, f{TypeFlags, []byte{0x06}}, got[0])
	assert.Equal(t, f{TypeCompleteName, []byte("abc")}, got[1])
	assert.Equal(t, f{TypeTxPower, []byte{0xF6}}, got[2])

	_, _, ok := r.GetNextField()
	assert.False(t, ok)
}

func TestDataReaderRejectsOverrunBeforeYielding(t *testing.T) {
	// Second field declares 10 bytes but only 2 remain.
	var b []byte
	b = append(b, field(TypeFlags, 0x06)...)
	b = append(b, 0x0A, TypeCompleteName, 'x')

	_, err := NewDataReader(b)
	require.Error(t, err)
	assert.Equal(t, ErrMalformed, errors.Cause(err))
}

func TestDataReaderZeroLengthTerminates(t *testing.T) {
	var b []byte
	b = append(b, field(TypeFlags, 0x06)...)
	b = append(b, 0x00)
	// Garbage after the terminator is never looked at.
	b = append(b, 0xFF, 0xFF, 0xFF)

	r, err := NewDataReader(b)
	require.NoError(t, err)

	typ, v, ok := r.GetNextField()
	require.True(t, ok)
	assert.Equal(t, byte(TypeFlags), typ)
	assert.Equal(t, []byte{0x06}, v)
	assert.False(t, r.HasMoreData())
}

func TestDataReaderEmpty(t *testing.T) {
	r, err := NewDataReader(nil)
	require.NoError(t, err)
	assert.False(t, r.HasMoreData())
}
