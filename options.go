package mmkv

// CorruptKind classifies why validation rejected a namespace's on-disk
// state, per spec.md §7's error-kind table.
type CorruptKind int

const (
	// CRCMismatch: CRC32 over payload[0..actualSize] did not match the
	// meta file's crcDigest, and lastConfirmed did not recover it either.
	CRCMismatch CorruptKind = iota
	// LengthMismatch: actualSize+4 > fileSize. A disagreement between meta
	// actualSize and the data header alone does not produce this kind.
	LengthMismatch
)

// RecoveryDecision is the outcome of a RecoveryPolicy callback.
type RecoveryDecision int

const (
	// Discard wipes the dictionary and starts empty, bumping sequence.
	// This is the default policy (spec.md §7).
	Discard RecoveryDecision = iota
	// Recover replays greedily up to the furthest parseable prefix, then
	// compacts it with a full rewrite before Open returns.
	Recover
)

// RecoveryPolicy decides how to handle a Corrupt(*) outcome from
// validation. A nil policy defaults to always returning Discard.
type RecoveryPolicy func(kind CorruptKind) RecoveryDecision

// Options configures Open. RootDir and ID are required; everything else
// has a usable zero value.
type Options struct {
	// RootDir is the absolute directory namespaces are stored under.
	RootDir string
	// ID is the non-empty namespace identifier (spec.md §6, "open").
	ID string
	// MultiProcess enables the cross-process reload protocol (§4.5.5) and
	// the OS-level file lock: a shared hold while re-reading meta on each
	// public operation, an exclusive hold around appends, rewrites, Trim,
	// ClearAll and Backup. With it false no OS-level lock is taken and the
	// meta re-read on every call is skipped.
	MultiProcess bool
	// Key, if non-empty, enables AES-128 CFB encryption. Longer or shorter
	// keys are accepted and normalized the way streamCrypt does (truncate/
	// zero-pad to 16 bytes), matching the original's tolerant key handling.
	Key []byte
	// OnCorrupt is invoked when validation cannot cleanly recover from
	// lastConfirmed. A nil OnCorrupt behaves as a policy that always
	// returns Discard.
	OnCorrupt RecoveryPolicy
}

func (o Options) decide(kind CorruptKind) RecoveryDecision {
	if o.OnCorrupt == nil {
		return Discard
	}
	return o.OnCorrupt(kind)
}

func (o Options) encrypted() bool {
	return len(o.Key) > 0
}
