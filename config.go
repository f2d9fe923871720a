package mmkv

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/tailscale/hujson"
)

// AmbientConfigFileName is the optional, commented-JSON config file a
// caller may drop into a namespace's root directory to override
// engine-wide defaults, per SPEC_FULL.md's ambient configuration layer.
// spec.md itself reads no environment or config file ("No environment
// variable is read by the core"); this is additive ambient plumbing, not
// a core requirement, and its absence is never an error.
//
// Grounded on the teacher's config.go (hujson.Standardize + json.Unmarshal
// JSONC loading), adapted from a process-global CLI config to a
// per-rootDir file since mmkv has no single global home directory the
// way a CLI tool does.
const AmbientConfigFileName = "mmkv.jsonc"

// AmbientConfig holds the defaults Initialize(rootDir) may load from
// <rootDir>/mmkv.jsonc. The loaded value is cached per rootDir, and Open
// consults that cache to fill in Options fields the caller left at their
// zero value (see DefaultMultiProcess for the one field a caller cannot
// override downward).
type AmbientConfig struct {
	// DefaultMultiProcess, if true, turns on multi-process mode (see
	// Options.MultiProcess) for any Open call under this rootDir that
	// leaves Options.MultiProcess at its zero value. A bool has no
	// "unset" state, so this can only ever turn multi-process mode on; an
	// explicit Options{MultiProcess: true} is a no-op here and there is no
	// way for the config file to force it off for a caller that asks for
	// it.
	DefaultMultiProcess bool `json:"default_multi_process,omitempty"` //nolint:tagliatelle // snake_case for config file
	// DefaultRecoverOnCorrupt, if true, makes a loaded AmbientConfig's
	// recovery policy (see [AmbientConfig.Policy]) return Recover instead
	// of the hard-coded Discard default for every Corrupt(*) outcome.
	DefaultRecoverOnCorrupt bool `json:"default_recover_on_corrupt,omitempty"` //nolint:tagliatelle // snake_case for config file
	// InitialPageHint is the number of OS pages to reserve for a brand-new
	// namespace's data file, instead of the single-page default.
	InitialPageHint int `json:"initial_page_hint,omitempty"` //nolint:tagliatelle // snake_case for config file
}

// Policy returns a RecoveryPolicy reflecting DefaultRecoverOnCorrupt.
func (c AmbientConfig) Policy() RecoveryPolicy {
	if !c.DefaultRecoverOnCorrupt {
		return nil
	}
	return func(CorruptKind) RecoveryDecision { return Recover }
}

var (
	ambientConfigMu    sync.Mutex
	ambientConfigCache = make(map[string]AmbientConfig)
)

// loadAmbientConfig is a best-effort read of <rootDir>/mmkv.jsonc, called
// from the static Initialize(rootDir) operation. A missing file is not an
// error; a malformed one is logged and ignored rather than propagated,
// matching spec.md §2's framing of configuration as an external,
// non-essential collaborator. The result is cached by rootDir so that a
// later Open(rootDir, ...) can apply it to fill in Options fields the
// caller left at their zero value.
func loadAmbientConfig(rootDir string) AmbientConfig {
	cfg := readAmbientConfigFile(rootDir)

	ambientConfigMu.Lock()
	ambientConfigCache[rootDir] = cfg
	ambientConfigMu.Unlock()

	return cfg
}

// ambientConfigFor returns a previously loaded AmbientConfig for rootDir,
// or the zero value if Initialize was never called for it.
func ambientConfigFor(rootDir string) AmbientConfig {
	ambientConfigMu.Lock()
	defer ambientConfigMu.Unlock()
	return ambientConfigCache[rootDir]
}

func readAmbientConfigFile(rootDir string) AmbientConfig {
	path := filepath.Join(rootDir, AmbientConfigFileName)

	data, err := os.ReadFile(path)
	if err != nil {
		return AmbientConfig{}
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		slog.Warn("mmkv: ignoring malformed ambient config", "path", path, "err", err)
		return AmbientConfig{}
	}

	var cfg AmbientConfig
	if err := json.Unmarshal(standardized, &cfg); err != nil {
		slog.Warn("mmkv: ignoring malformed ambient config", "path", path, "err", err)
		return AmbientConfig{}
	}

	return cfg
}
