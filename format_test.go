package mmkv

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMetaInfoRoundTrip(t *testing.T) {
	t.Parallel()

	m := &metaInfo{
		crcDigest: 0xDEADBEEF,
		version:   currentMetaVersion,
		sequence:  7,
		actualSize: 1234,
		lastConfirmed: lastConfirmed{
			actualSize: 1000,
			crcDigest:  0xCAFEBABE,
		},
	}
	copy(m.vector[:], []byte("0123456789abcdef"))

	buf := make([]byte, metaStructSize)
	encodeMetaInfo(buf, m)

	got, err := decodeMetaInfo(buf)
	require.NoError(t, err)
	require.Equal(t, m, got)
}

func TestMetaInfoZeroValueMeansNoVersion(t *testing.T) {
	t.Parallel()

	buf := make([]byte, metaStructSize)
	got, err := decodeMetaInfo(buf)
	require.NoError(t, err)

	require.False(t, got.hasVector())
	require.False(t, got.hasActualSize())
	require.False(t, got.hasLastConfirmed())
}

func TestMetaInfoTruncatedBuffer(t *testing.T) {
	t.Parallel()

	_, err := decodeMetaInfo(make([]byte, metaStructSize-1))
	require.ErrorIs(t, err, ErrTruncated)
}

func TestVersionGates(t *testing.T) {
	t.Parallel()

	cases := []struct {
		version                                  uint32
		vector, actualSize, lastConfirmedExpected bool
	}{
		{metaVersion1, false, false, false},
		{metaVersion2, true, false, false},
		{metaVersion3, true, true, false},
		{metaVersion4, true, true, true},
	}

	for _, c := range cases {
		m := metaInfo{version: c.version}
		require.Equal(t, c.vector, m.hasVector())
		require.Equal(t, c.actualSize, m.hasActualSize())
		require.Equal(t, c.lastConfirmedExpected, m.hasLastConfirmed())
	}
}

func TestDataHeaderRoundTrip(t *testing.T) {
	t.Parallel()

	buf := make([]byte, dataHeaderSize)
	writeDataHeader(buf, 42)

	got, err := readDataHeader(buf)
	require.NoError(t, err)
	require.Equal(t, uint32(42), got)
}

func TestPayloadOfClampsToBufferLength(t *testing.T) {
	t.Parallel()

	buf := make([]byte, dataHeaderSize+4)
	payload := payloadOf(buf, 100)
	require.Len(t, payload, 4)
}
