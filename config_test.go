package mmkv

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadAmbientConfigMissingFileIsZeroValue(t *testing.T) {
	t.Parallel()

	cfg := loadAmbientConfig(t.TempDir())
	require.Equal(t, AmbientConfig{}, cfg)
}

func TestLoadAmbientConfigParsesJSONC(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	body := `{
		// defaults for every namespace under this root
		"default_multi_process": true,
		"default_recover_on_corrupt": true,
		"initial_page_hint": 4,
	}`
	require.NoError(t, os.WriteFile(filepath.Join(root, AmbientConfigFileName), []byte(body), 0o644))

	cfg := loadAmbientConfig(root)
	require.True(t, cfg.DefaultMultiProcess)
	require.True(t, cfg.DefaultRecoverOnCorrupt)
	require.Equal(t, 4, cfg.InitialPageHint)
}

func TestLoadAmbientConfigMalformedIsIgnored(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, AmbientConfigFileName), []byte("{not json"), 0o644))

	cfg := loadAmbientConfig(root)
	require.Equal(t, AmbientConfig{}, cfg)
}

func TestAmbientConfigForReturnsCachedValue(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	body := `{"initial_page_hint": 8}`
	require.NoError(t, os.WriteFile(filepath.Join(root, AmbientConfigFileName), []byte(body), 0o644))

	require.NoError(t, Initialize(root))
	require.Equal(t, 8, ambientConfigFor(root).InitialPageHint)
}

func TestPolicyReflectsDefaultRecoverOnCorrupt(t *testing.T) {
	t.Parallel()

	require.Nil(t, AmbientConfig{}.Policy())

	policy := AmbientConfig{DefaultRecoverOnCorrupt: true}.Policy()
	require.Equal(t, Recover, policy(CRCMismatch))
}

// DefaultMultiProcess must actually take effect on Open, not merely parse:
// a caller that leaves Options.MultiProcess at its zero value picks up the
// ambient default, which switches on the interprocess file lock.
func TestOpenPicksUpAmbientDefaultMultiProcess(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	body := `{"default_multi_process": true}`
	require.NoError(t, os.WriteFile(filepath.Join(root, AmbientConfigFileName), []byte(body), 0o644))
	require.NoError(t, Initialize(root))

	e, err := Open(Options{RootDir: root, ID: "ns"})
	require.NoError(t, err)
	defer e.Close()

	require.NotNil(t, e.fileLock)
}
