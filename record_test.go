package mmkv

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecordRoundTrip(t *testing.T) {
	t.Parallel()

	key, value := []byte("name"), []byte("mmkv")
	buf := make([]byte, sizeofRecord(key, value))
	n := putRecord(buf, key, value)
	require.Equal(t, len(buf), n)

	rec, err := getRecord(buf)
	require.NoError(t, err)
	require.Equal(t, key, rec.key)
	require.Equal(t, value, rec.value)
	require.False(t, rec.tombstone)
	require.Equal(t, n, rec.consumed)
}

func TestRecordTombstone(t *testing.T) {
	t.Parallel()

	key := []byte("gone")
	buf := make([]byte, sizeofRecord(key, nil))
	putRecord(buf, key, nil)

	rec, err := getRecord(buf)
	require.NoError(t, err)
	require.True(t, rec.tombstone)
}

func TestDecodeRecordsFoldsInOrderWithTombstones(t *testing.T) {
	t.Parallel()

	var buf []byte
	appendRec := func(key, value []byte) {
		b := make([]byte, sizeofRecord(key, value))
		putRecord(b, key, value)
		buf = append(buf, b...)
	}

	appendRec([]byte("a"), []byte("1"))
	appendRec([]byte("b"), []byte("2"))
	appendRec([]byte("a"), []byte("3"))
	appendRec([]byte("b"), nil)

	dict, consumed, err := decodeRecords(buf, true)
	require.NoError(t, err)
	require.Equal(t, len(buf), consumed)
	require.Equal(t, map[string][]byte{"a": []byte("3")}, dict)
}

func TestDecodeRecordsStrictAbortsOnCorruption(t *testing.T) {
	t.Parallel()

	good := make([]byte, sizeofRecord([]byte("a"), []byte("1")))
	putRecord(good, []byte("a"), []byte("1"))

	payload := append(good, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF)

	_, _, err := decodeRecords(payload, true)
	require.Error(t, err)
}

func TestDecodeRecordsGreedyReturnsPartialPrefix(t *testing.T) {
	t.Parallel()

	good := make([]byte, sizeofRecord([]byte("a"), []byte("1")))
	putRecord(good, []byte("a"), []byte("1"))

	payload := append(append([]byte(nil), good...), 0xFF, 0xFF)

	dict, consumed, err := decodeRecords(payload, false)
	require.NoError(t, err)
	require.Equal(t, len(good), consumed)
	require.Equal(t, map[string][]byte{"a": []byte("1")}, dict)
}
