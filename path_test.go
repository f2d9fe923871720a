package mmkv

import (
	"crypto/md5" //nolint:gosec // matches path.go's non-security-boundary hashing
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNamespacePathsPlainID(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	data, meta, err := namespacePaths(root, "config")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "config"), data)
	require.Equal(t, data+".crc", meta)
}

func TestNamespacePathsSpecialCharacterID(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	id := "a/b:c"
	data, meta, err := namespacePaths(root, id)
	require.NoError(t, err)

	sum := md5.Sum([]byte(id)) //nolint:gosec // not a security boundary
	want := filepath.Join(root, specialCharacterDir, hex.EncodeToString(sum[:]))
	require.Equal(t, want, data)
	require.Equal(t, want+".crc", meta)
}

func TestNamespacePathsRejectsEmpty(t *testing.T) {
	t.Parallel()

	_, _, err := namespacePaths("", "id")
	require.ErrorIs(t, err, ErrInvalidPath)

	_, _, err = namespacePaths("root", "")
	require.ErrorIs(t, err, ErrInvalidPath)
}

func TestIsFileValidFalseWhenMissing(t *testing.T) {
	t.Parallel()

	require.False(t, IsFileValid(t.TempDir(), "nope"))
}

func TestIsFileValidTrueAfterOpen(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	e, err := Open(Options{RootDir: root, ID: "ns"})
	require.NoError(t, err)
	defer e.Close()
	require.NoError(t, e.Sync(false))

	require.True(t, IsFileValid(root, "ns"))
}

func TestInitializeCreatesRootDir(t *testing.T) {
	t.Parallel()

	root := filepath.Join(t.TempDir(), "nested", "dir")
	require.NoError(t, Initialize(root))

	info, err := os.Stat(root)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}
