package mmkv

import (
	"log/slog"
	"sync"
)

// itemSizeHolderLen is the padding spec.md §9 calls for on a namespace's
// first insert ("Empty-dictionary sentinel... growth computations must
// add an ItemSizeHolder padding (4 bytes) on the first insert to avoid
// pathological doubling"): without it, avgItemSize for a single small
// record is tiny and futureUsage barely reserves anything, so the very
// next insert immediately re-triggers a rewrite.
const itemSizeHolderLen = 4

// minReserveItems is the "max(8, ...)" floor spec.md §4.5.4 specifies for
// futureUsage's reserve heuristic.
const minReserveItems = 8

// Engine is one open namespace handle: the in-memory dictionary, append
// cursor, running CRC digest, and meta snapshot described in spec.md §2.
// Grounded on the teacher's Cache (pkg/slotcache/cache.go) for the overall
// handle shape (mmap'd data + separate lock/registry bookkeeping, a single
// mutex serializing public operations) and on aether-kv's KVEngine
// (internal/engine/engine.go) for the dictionary-over-append-log control
// flow (in-memory keydir, scanLogFile-style replay, Get/Put/Delete/Close).
type Engine struct {
	registryKey registryKey
	rootDir     string
	id          string
	dataPath    string
	metaPath    string

	// mu serializes every public operation. spec.md §5 calls for a
	// recursive thread mutex so internal helpers can re-enter it; Go's
	// sync.Mutex is not reentrant and goroutines (unlike OS threads) have
	// no stable identity to key reentrancy on, so this implementation
	// takes the idiomatic Go path instead: mu is acquired once at each
	// public entry point, and all internal helpers assume it is already
	// held rather than re-acquiring it. This gives the same total
	// ordering of operations spec.md §5 requires without a hand-rolled
	// per-goroutine reentrant lock (see DESIGN.md).
	mu sync.Mutex

	dataFile *mappedFile
	metaFile *mappedFile

	fileLock     *recursiveFileLock // non-nil only when multiProcess
	multiProcess bool
	policy       RecoveryPolicy

	key   []byte
	crypt *streamCrypt // nil when not encrypted

	dict       map[string][]byte
	actualSize uint64
	crc        runningCRC

	cached metaInfo // last meta this engine itself wrote or observed

	// lastFileSize is the data file's on-disk size as of the last time this
	// engine read or wrote it; checkLoadDataLocked compares the live disk
	// size against it to tell "another process appended" (size unchanged)
	// from "another process grew the file" (size changed), per spec.md
	// §4.5.5.
	lastFileSize int64

	needFullWriteback bool

	closed bool
}

// Open mounts (or returns the already-open) namespace handle for
// (opts.RootDir, opts.ID), per spec.md §6's `open` operation and §2's
// process-wide registry.
func Open(opts Options) (*Engine, error) {
	if opts.RootDir == "" || opts.ID == "" {
		return nil, ErrInvalidPath
	}

	ambient := ambientConfigFor(opts.RootDir)

	if opts.OnCorrupt == nil {
		// Ambient config only fills in what the caller left unset; an
		// explicit policy always wins (SPEC_FULL.md's "Caller-supplied
		// Options always win over the file").
		opts.OnCorrupt = ambient.Policy()
	}

	// MultiProcess has no nil/unset state to distinguish from an explicit
	// false, so the ambient default can only ever turn it on, never off: a
	// caller who explicitly passes MultiProcess: true is unaffected, and one
	// who leaves it at the zero value picks up mmkv.jsonc's
	// default_multi_process.
	opts.MultiProcess = opts.MultiProcess || ambient.DefaultMultiProcess

	return globalRegistry.getOrOpen(opts.RootDir, opts.ID, func() (*Engine, error) {
		return mountEngine(opts)
	})
}

// Close releases the namespace handle. Subsequent operations on this
// Engine that return an error return ErrClosed; read operations return
// their zero or default values. The underlying files are left in place;
// spec.md §3's "Lifecycle" says the files outlive the handle.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	globalRegistry.remove(e.registryKey)

	var firstErr error
	if err := e.dataFile.close(); err != nil {
		firstErr = err
	}
	if err := e.metaFile.close(); err != nil && firstErr == nil {
		firstErr = err
	}

	return firstErr
}

// Sync flushes both mmapped files to disk. async selects MS_ASYNC over
// MS_SYNC, per spec.md §6's `sync(async?)`.
func (e *Engine) Sync(async bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}

	return e.syncLocked(async)
}

func (e *Engine) syncLocked(async bool) error {
	if err := e.dataFile.sync(async); err != nil {
		return err
	}
	return e.metaFile.sync(async)
}

// Contains reports whether key has a live (non-tombstone) value.
func (e *Engine) Contains(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return false
	}
	e.checkLoadDataLocked()

	_, ok := e.dict[key]
	return ok
}

// Count returns the number of live keys.
func (e *Engine) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return 0
	}
	e.checkLoadDataLocked()

	return len(e.dict)
}

// TotalSize returns the current data file size in bytes, including
// reserved-but-unused capacity.
func (e *Engine) TotalSize() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return 0
	}
	e.checkLoadDataLocked()

	return e.dataFile.size
}

// AllKeys returns a snapshot of every live key. Order is unspecified, per
// spec.md §3's "Insertion order is not significant."
func (e *Engine) AllKeys() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.checkLoadDataLocked()

	keys := make([]string, 0, len(e.dict))
	for k := range e.dict {
		keys = append(keys, k)
	}
	return keys
}

// getData returns the raw encoded bytes stored for key, or (nil, false) if
// absent. Typed accessors (accessors.go) decode the result.
func (e *Engine) getData(key string) ([]byte, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, false
	}
	e.checkLoadDataLocked()

	v, ok := e.dict[key]
	return v, ok
}

// setData stores raw encoded bytes for key, per spec.md §4.5.3 `set`.
func (e *Engine) setData(key string, value []byte) error {
	if key == "" {
		return ErrKeyEmpty
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	e.checkLoadDataLocked()

	return e.appendRecordLocked([]byte(key), value)
}

// Remove deletes key by appending a tombstone record, per spec.md §6
// `remove(key)`.
func (e *Engine) Remove(key string) error {
	if key == "" {
		return ErrKeyEmpty
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	e.checkLoadDataLocked()

	if _, ok := e.dict[key]; !ok {
		// P3 idempotent remove: no-op, no error, no wasted append.
		return nil
	}

	return e.appendRecordLocked([]byte(key), nil)
}

// RemoveMany removes each key in keys, per spec.md §6 `removeMany(keys)`.
func (e *Engine) RemoveMany(keys []string) error {
	for _, k := range keys {
		if err := e.Remove(k); err != nil {
			return err
		}
	}
	return nil
}

// lockFileExclusive/unlockFileExclusive and lockFileShared/unlockFileShared
// wrap the per-handle recursiveFileLock (fslock.go), no-ops in
// single-process mode where e.fileLock is nil. Per spec.md §5: "the engine
// takes a shared lock for reads of the meta snapshot and an exclusive lock
// for the entire append/rewrite sequence."
func (e *Engine) lockFileExclusive() error {
	if e.fileLock == nil {
		return nil
	}
	return e.fileLock.lockExclusive()
}

func (e *Engine) unlockFileExclusive() {
	if e.fileLock == nil {
		return
	}
	_ = e.fileLock.unlockExclusive()
}

func (e *Engine) lockFileShared() error {
	if e.fileLock == nil {
		return nil
	}
	return e.fileLock.lockShared()
}

func (e *Engine) unlockFileShared() {
	if e.fileLock == nil {
		return
	}
	_ = e.fileLock.unlockShared()
}

// appendRecordLocked implements spec.md §4.5.3 with e.mu already held.
func (e *Engine) appendRecordLocked(key, value []byte) error {
	if err := e.lockFileExclusive(); err != nil {
		return err
	}
	defer e.unlockFileExclusive()

	recordLen := sizeofRecord(key, value)
	buf := e.dataFile.bytes()
	currentTail := int64(dataHeaderSize) + int64(e.actualSize)

	if currentTail+int64(recordLen) > int64(len(buf)) {
		// doFullWriteBackLocked folds (key, value) into the dictionary and
		// the rewrite image itself, so the record is installed as part of
		// the rewrite rather than appended afterward (spec.md §4.5.3 step 3).
		return e.doFullWriteBackLocked(key, value)
	}

	raw := make([]byte, recordLen)
	putRecord(raw, key, value)

	if e.crypt != nil {
		e.crypt.encrypt(raw, raw)
	}

	copy(buf[currentTail:currentTail+int64(recordLen)], raw)

	newDigest := e.crc.update(raw)
	e.actualSize += uint64(recordLen)

	writeDataHeader(buf, uint32(e.actualSize)) //nolint:gosec // page-aligned file sizes fit uint32 in practice; overflow is caught by the grow path long before this

	e.cached.crcDigest = newDigest
	e.cached.actualSize = e.actualSize
	encodeMetaInfo(e.metaFile.bytes(), &e.cached)

	if err := e.metaFile.sync(true); err != nil {
		return err
	}

	e.installRecordLocked(key, value)
	return nil
}

// installRecordLocked folds one decoded record into the in-memory
// dictionary: tombstone deletes, otherwise overwrite-wins (I4, P4).
func (e *Engine) installRecordLocked(key, value []byte) {
	if len(value) == 0 {
		delete(e.dict, string(key))
		return
	}
	e.dict[string(key)] = append([]byte(nil), value...)
}

// doFullWriteBackLocked implements spec.md §4.5.4. pendingKey/pendingValue,
// if non-nil, is the record that triggered this rewrite and is folded into
// the dictionary and serialized image before anything is written to disk,
// so "the record is included in the rewrite image and the append returns"
// (§4.5.3 step 3).
func (e *Engine) doFullWriteBackLocked(pendingKey, pendingValue []byte) error {
	if err := e.lockFileExclusive(); err != nil {
		return err
	}
	defer e.unlockFileExclusive()

	if pendingKey != nil {
		e.installRecordLocked(pendingKey, pendingValue)
	}

	payloadLen := itemSizeHolderLen
	for k, v := range e.dict {
		payloadLen += sizeofRecord([]byte(k), v)
	}

	payload := make([]byte, 0, payloadLen)
	offset := 0
	buf := make([]byte, 0)
	for k, v := range e.dict {
		n := sizeofRecord([]byte(k), v)
		buf = growBuf(buf, n)
		putRecord(buf[:n], []byte(k), v)
		payload = append(payload, buf[:n]...)
		offset += n
	}

	liveCount := len(e.dict)
	lenNeeded := int64(dataHeaderSize) + int64(len(payload))
	if liveCount <= 1 {
		// Empty-dictionary sentinel (spec.md §9): pad the growth estimate
		// on the first insert so avgItemSize isn't computed from a single
		// tiny record, which would otherwise reserve almost nothing and
		// force another rewrite on the very next insert.
		lenNeeded += itemSizeHolderLen
	}
	avgItemSize := lenNeeded
	if liveCount > 0 {
		avgItemSize = lenNeeded / int64(max(1, liveCount))
	}
	reserveItems := int64(liveCount+1) / 2
	if reserveItems < minReserveItems {
		reserveItems = minReserveItems
	}
	futureUsage := avgItemSize * reserveItems

	fileSize := e.dataFile.size
	if lenNeeded >= fileSize || lenNeeded+futureUsage >= fileSize {
		target := fileSize
		if target == 0 {
			target = pageSize()
		}
		for lenNeeded+futureUsage >= target {
			target *= 2
		}
		if err := e.dataFile.grow(target); err != nil {
			return err
		}
	}

	var iv [aesKeyLen]byte
	if e.crypt != nil {
		generated, err := fillRandomIV()
		if err != nil {
			return err
		}
		iv = generated
		e.crypt.reset(iv[:])
		e.crypt.encrypt(payload, payload)
	}

	buf2 := e.dataFile.bytes()
	writeDataHeader(buf2, uint32(len(payload))) //nolint:gosec // bounded by page-aligned file size
	copy(buf2[dataHeaderSize:], payload)
	clearTail(buf2[dataHeaderSize+len(payload):])

	e.crc.reset(0)
	digest := e.crc.update(payload)
	e.actualSize = uint64(len(payload))

	e.cached.crcDigest = digest
	e.cached.version = currentMetaVersion
	e.cached.sequence++
	if e.crypt != nil {
		e.cached.vector = iv
	}
	e.cached.actualSize = e.actualSize
	e.cached.lastConfirmed = lastConfirmed{actualSize: e.actualSize, crcDigest: digest}

	encodeMetaInfo(e.metaFile.bytes(), &e.cached)
	if err := e.metaFile.sync(false); err != nil {
		return err
	}

	e.needFullWriteback = false
	e.lastFileSize = e.dataFile.size

	return nil
}

// checkLoadDataLocked implements spec.md §4.5.5's cross-process reload
// protocol. It is a no-op in single-process mode.
func (e *Engine) checkLoadDataLocked() {
	if !e.multiProcess {
		return
	}

	if err := e.lockFileShared(); err != nil {
		slog.Warn("mmkv: failed to take shared file lock during checkLoadData", "id", e.id, "err", err)
		return
	}
	onDisk, err := decodeMetaInfo(e.metaFile.bytes())
	e.unlockFileShared()
	if err != nil {
		slog.Warn("mmkv: failed to read meta during checkLoadData", "id", e.id, "err", err)
		return
	}

	if onDisk.sequence != e.cached.sequence {
		e.reloadFromFileLocked()
		return
	}

	if onDisk.crcDigest != e.cached.crcDigest {
		diskSize, statErr := e.dataFile.diskSize()
		if statErr != nil || diskSize != e.lastFileSize {
			e.reloadFromFileLocked()
			return
		}

		e.partialLoadLocked(onDisk)
	}
}

// reloadFromFileLocked discards the in-memory dictionary and replays the
// whole file, for the "another process performed a full rewrite" (or
// grew the file) case. It remaps first if the file has grown on disk
// since this handle last observed it.
func (e *Engine) reloadFromFileLocked() {
	if diskSize, err := e.dataFile.diskSize(); err == nil && diskSize > e.dataFile.size {
		if err := e.dataFile.grow(diskSize); err != nil {
			slog.Warn("mmkv: reload failed to remap grown file", "id", e.id, "err", err)
			return
		}
	}

	onDisk, err := decodeMetaInfo(e.metaFile.bytes())
	if err != nil {
		slog.Warn("mmkv: reload failed to decode meta", "id", e.id, "err", err)
		return
	}

	buf := e.dataFile.bytes()
	payload := payloadOf(buf, onDisk.actualSize)

	decrypted := payload
	if e.crypt != nil {
		decrypted = append([]byte(nil), payload...)
		if onDisk.hasVector() {
			e.crypt.reset(onDisk.vector[:])
		}
		e.crypt.decrypt(decrypted, decrypted)
	}

	dict, _, err := decodeRecords(decrypted, true)
	if err != nil {
		slog.Warn("mmkv: reload strict decode failed, keeping previous dictionary", "id", e.id, "err", err)
		return
	}

	e.dict = dict
	e.actualSize = onDisk.actualSize
	e.cached = *onDisk
	e.crc.reset(0)
	e.crc.update(payload)
	e.lastFileSize = e.dataFile.size
}

// partialLoadLocked folds the delta range [cached.actualSize,
// onDisk.actualSize) into the dictionary, for the "another process
// appended records" case.
func (e *Engine) partialLoadLocked(onDisk *metaInfo) {
	buf := e.dataFile.bytes()

	start := int64(dataHeaderSize) + int64(e.cached.actualSize)
	end := int64(dataHeaderSize) + int64(onDisk.actualSize)
	if start < int64(dataHeaderSize) || end > int64(len(buf)) || start > end {
		e.reloadFromFileLocked()
		return
	}

	delta := append([]byte(nil), buf[start:end]...)

	deltaDigest := crc32Of(payloadOf(buf, onDisk.actualSize))
	if deltaDigest != onDisk.crcDigest {
		e.reloadFromFileLocked()
		return
	}

	if e.crypt != nil {
		e.crypt.decrypt(delta, delta)
	}

	if err := e.applyDeltaLocked(delta); err != nil {
		e.reloadFromFileLocked()
		return
	}

	e.actualSize = onDisk.actualSize
	e.cached = *onDisk
	e.crc.reset(0)
	e.crc.update(payloadOf(buf, onDisk.actualSize))
}

// applyDeltaLocked folds records decoded from a partial-load delta range
// directly into e.dict, record by record, rather than through
// decodeRecords: a tombstone in delta must delete a key that may have
// been set in an earlier segment already folded into e.dict, which a
// fresh per-delta dictionary (as decodeRecords builds) cannot express.
func (e *Engine) applyDeltaLocked(delta []byte) error {
	offset := 0
	for offset < len(delta) {
		rec, err := getRecord(delta[offset:])
		if err != nil {
			return err
		}
		e.installRecordLocked(rec.key, rec.value)
		offset += rec.consumed
	}
	return nil
}

func growBuf(buf []byte, n int) []byte {
	if cap(buf) >= n {
		return buf[:n]
	}
	return make([]byte, n)
}

func clearTail(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
