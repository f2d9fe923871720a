package mmkv

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunningCRCMatchesOneShot(t *testing.T) {
	t.Parallel()

	data := []byte("the quick brown fox jumps over the lazy dog")

	var running runningCRC
	running.reset(0)
	running.update(data[:10])
	running.update(data[10:])

	require.Equal(t, crc32Of(data), running.value())
}

func TestRunningCRCResetReseeds(t *testing.T) {
	t.Parallel()

	prefix := []byte("prefix-")
	suffix := []byte("suffix")

	seed := crc32Of(prefix)

	var running runningCRC
	running.reset(seed)
	running.update(suffix)

	require.Equal(t, crc32Of(append(append([]byte(nil), prefix...), suffix...)), running.value())
}
