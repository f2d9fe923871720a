package mmkv

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUvarintRoundTrip(t *testing.T) {
	t.Parallel()

	values := []uint64{0, 1, 127, 128, 300, 1 << 32, ^uint64(0)}
	for _, v := range values {
		buf := make([]byte, sizeofUvarint(v))
		n := putUvarint(buf, v)
		require.Equal(t, len(buf), n)

		got, consumed, err := getUvarint(buf)
		require.NoError(t, err)
		require.Equal(t, v, got)
		require.Equal(t, n, consumed)
	}
}

func TestUvarintTruncated(t *testing.T) {
	t.Parallel()

	buf := []byte{0x80, 0x80}
	_, _, err := getUvarint(buf)
	require.ErrorIs(t, err, ErrTruncated)
}

func TestUvarintMalformed(t *testing.T) {
	t.Parallel()

	buf := make([]byte, 11)
	for i := range buf {
		buf[i] = 0x80
	}
	_, _, err := getUvarint(buf)
	require.ErrorIs(t, err, ErrMalformedVarint)
}

func TestVarint32NegativeRoundTrip(t *testing.T) {
	t.Parallel()

	values := []int32{0, 1, -1, 42, -42, 1 << 30, -(1 << 30)}
	for _, v := range values {
		buf := make([]byte, sizeofVarint32(v))
		putVarint32(buf, v)

		got, _, err := getVarint32(buf)
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
}

func TestFloatRoundTrip(t *testing.T) {
	t.Parallel()

	buf32 := make([]byte, 4)
	putFloat32(buf32, 3.5)
	v32, err := getFloat32(buf32)
	require.NoError(t, err)
	require.InDelta(t, float32(3.5), v32, 0)

	buf64 := make([]byte, 8)
	putFloat64(buf64, -2.25)
	v64, err := getFloat64(buf64)
	require.NoError(t, err)
	require.InDelta(t, -2.25, v64, 0)
}

func TestBytesRoundTrip(t *testing.T) {
	t.Parallel()

	v := []byte("hello world")
	buf := make([]byte, sizeofBytes(v))
	n := putBytes(buf, v)
	require.Equal(t, len(buf), n)

	got, consumed, err := getBytes(buf)
	require.NoError(t, err)
	require.Equal(t, v, got)
	require.Equal(t, n, consumed)
}

func TestBytesTruncated(t *testing.T) {
	t.Parallel()

	buf := []byte{5, 'a', 'b'}
	_, _, err := getBytes(buf)
	require.ErrorIs(t, err, ErrTruncated)
}

func TestStringListRoundTrip(t *testing.T) {
	t.Parallel()

	v := []string{"alpha", "", "beta gamma"}
	buf := make([]byte, sizeofStringList(v))
	putStringList(buf, v)

	got, _, err := getStringList(buf)
	require.NoError(t, err)
	require.Equal(t, v, got)
}

func TestStringListEmpty(t *testing.T) {
	t.Parallel()

	var v []string
	buf := make([]byte, sizeofStringList(v))
	n := putStringList(buf, v)
	require.Equal(t, 1, n)

	got, consumed, err := getStringList(buf)
	require.NoError(t, err)
	require.Empty(t, got)
	require.Equal(t, 1, consumed)
}
