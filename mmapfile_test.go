package mmkv

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenMappedFileCreatesPageAligned(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "data")
	mf, err := openMappedFile(path, 1)
	require.NoError(t, err)
	defer mf.close()

	require.Equal(t, pageSize(), mf.size)
	require.Len(t, mf.bytes(), int(pageSize()))
}

func TestMappedFileGrowZeroFillsAndPreservesContent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "data")
	mf, err := openMappedFile(path, pageSize())
	require.NoError(t, err)
	defer mf.close()

	copy(mf.bytes(), []byte("hello"))

	require.NoError(t, mf.grow(pageSize()*3))
	require.Equal(t, pageSize()*3, mf.size)

	buf := mf.bytes()
	require.Equal(t, []byte("hello"), buf[:5])
	for _, b := range buf[pageSize():] {
		require.Equal(t, byte(0), b)
	}
}

func TestMappedFileShrinkToTruncates(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "data")
	mf, err := openMappedFile(path, pageSize()*4)
	require.NoError(t, err)
	defer mf.close()

	require.NoError(t, mf.shrinkTo(pageSize()))
	require.Equal(t, pageSize(), mf.size)

	size, err := mf.diskSize()
	require.NoError(t, err)
	require.Equal(t, pageSize(), size)
}

func TestMappedFileReopenSeesPersistedContent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "data")
	mf, err := openMappedFile(path, pageSize())
	require.NoError(t, err)

	copy(mf.bytes(), []byte("persisted"))
	require.NoError(t, mf.sync(false))
	require.NoError(t, mf.close())

	reopened, err := openMappedFile(path, pageSize())
	require.NoError(t, err)
	defer reopened.close()

	require.Equal(t, []byte("persisted"), reopened.bytes()[:9])
}

func TestPageAlign(t *testing.T) {
	t.Parallel()

	require.Equal(t, pageSize(), pageAlign(1))
	require.Equal(t, pageSize(), pageAlign(pageSize()))
	require.Equal(t, pageSize()*2, pageAlign(pageSize()+1))
	require.Equal(t, int64(0), pageAlign(0))
}
