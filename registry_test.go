package mmkv

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenReturnsSameHandleForSameNamespace(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	e1, err := Open(Options{RootDir: root, ID: "shared"})
	require.NoError(t, err)
	defer e1.Close()

	e2, err := Open(Options{RootDir: root, ID: "shared"})
	require.NoError(t, err)

	require.Same(t, e1, e2)
}

func TestOpenDifferentIDsGetDifferentHandles(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	e1, err := Open(Options{RootDir: root, ID: "one"})
	require.NoError(t, err)
	defer e1.Close()

	e2, err := Open(Options{RootDir: root, ID: "two"})
	require.NoError(t, err)
	defer e2.Close()

	require.NotSame(t, e1, e2)
}

func TestCloseRemovesFromRegistryAllowingReopen(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	e1, err := Open(Options{RootDir: root, ID: "ns"})
	require.NoError(t, err)
	require.NoError(t, e1.SetString("k", "v"))
	require.NoError(t, e1.Close())

	require.False(t, globalRegistry.isOpen(root, "ns"))

	e2, err := Open(Options{RootDir: root, ID: "ns"})
	require.NoError(t, err)
	defer e2.Close()

	require.NotSame(t, e1, e2)
	require.Equal(t, "v", e2.GetString("k", ""))
}
