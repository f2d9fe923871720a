package mmkv

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestFD(t *testing.T) int {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lockfile")
	mf, err := openMappedFile(path, pageSize())
	require.NoError(t, err)
	t.Cleanup(func() { _ = mf.close() })
	return mf.fd()
}

func TestRecursiveFileLockSharedReentry(t *testing.T) {
	t.Parallel()

	l := newRecursiveFileLock(openTestFD(t))

	require.NoError(t, l.lockShared())
	require.NoError(t, l.lockShared())
	require.Equal(t, 2, l.sharedCount)

	require.NoError(t, l.unlockShared())
	require.Equal(t, 1, l.sharedCount)
	require.NoError(t, l.unlockShared())
	require.Equal(t, 0, l.sharedCount)
}

func TestRecursiveFileLockExclusiveReentry(t *testing.T) {
	t.Parallel()

	l := newRecursiveFileLock(openTestFD(t))

	require.NoError(t, l.lockExclusive())
	require.NoError(t, l.lockExclusive())
	require.Equal(t, 2, l.exclusiveCount)

	require.NoError(t, l.unlockExclusive())
	require.Equal(t, 1, l.exclusiveCount)
	require.NoError(t, l.unlockExclusive())
	require.Equal(t, 0, l.exclusiveCount)
}

func TestRecursiveFileLockSharedUpgradeToExclusiveRestoresShared(t *testing.T) {
	t.Parallel()

	l := newRecursiveFileLock(openTestFD(t))

	require.NoError(t, l.lockShared())
	require.NoError(t, l.lockShared())
	require.Equal(t, 2, l.sharedCount)

	require.NoError(t, l.lockExclusive())
	require.Equal(t, 0, l.sharedCount)
	require.Equal(t, 1, l.exclusiveCount)

	require.NoError(t, l.unlockExclusive())
	require.Equal(t, 2, l.sharedCount)
	require.Equal(t, 0, l.exclusiveCount)

	require.NoError(t, l.unlockShared())
	require.NoError(t, l.unlockShared())
	require.Equal(t, 0, l.sharedCount)
}

func TestRecursiveFileLockUnlockWithoutHolderErrors(t *testing.T) {
	t.Parallel()

	l := newRecursiveFileLock(openTestFD(t))

	require.Error(t, l.unlockShared())
	require.Error(t, l.unlockExclusive())
}
