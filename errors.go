package mmkv

import "errors"

// Sentinel errors returned by mmkv operations.
//
// Callers should classify errors with [errors.Is]:
//
//	store, err := mmkv.Open(mmkv.Options{RootDir: root, ID: "prefs"})
//	if errors.Is(err, mmkv.ErrCorrupt) {
//	    // rebuild from source of truth
//	}
var (
	// ErrInvalidPath is returned when the root directory or namespace id is empty
	// or cannot be resolved to a filesystem path.
	ErrInvalidPath = errors.New("mmkv: invalid path")

	// ErrKeyEmpty is returned by set/remove when the key is the empty string.
	ErrKeyEmpty = errors.New("mmkv: key is empty")

	// ErrIoError wraps an underlying open/mmap/ftruncate/write/msync failure.
	ErrIoError = errors.New("mmkv: io error")

	// ErrCorrupt is returned by Open when a payload whose CRC verified
	// cannot be decoded into records. CRC and length failures are handled
	// by lastConfirmed and the recovery policy and do not return it.
	ErrCorrupt = errors.New("mmkv: corrupt")

	// ErrMalformedVarint indicates a varint used more than the legal 10 bytes.
	ErrMalformedVarint = errors.New("mmkv: malformed varint")

	// ErrTruncated indicates a record's buffer ended mid-field.
	ErrTruncated = errors.New("mmkv: truncated record")

	// ErrNegativeLength indicates a length prefix decoded to a value too
	// large to be a valid length (above math.MaxInt32).
	ErrNegativeLength = errors.New("mmkv: negative length prefix")

	// ErrInvalidArgument is reserved for caller-supplied invalid arguments;
	// no operation currently returns it. Empty keys yield ErrKeyEmpty and
	// empty paths ErrInvalidPath.
	ErrInvalidArgument = errors.New("mmkv: invalid argument")

	// ErrClosed is returned by any operation on an Engine after Close.
	ErrClosed = errors.New("mmkv: closed")

	// ErrBusy is returned by RestoreFromDirectory when the destination
	// namespace has an open handle in this process.
	ErrBusy = errors.New("mmkv: busy")
)
