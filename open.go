package mmkv

import (
	"bytes"
	"fmt"
	"os"

	"github.com/natefinch/atomic"
)

// mountEngine implements spec.md §4.5.1 `loadFromFile`: open-or-create
// both files, mmap them, validate the persisted state, and replay (or
// discard) into a fresh in-memory dictionary.
//
// Grounded on the teacher's Open/createNewCache/validateAndOpenExisting
// pipeline (pkg/slotcache/open.go): open-or-create dispatch, then a
// distinct validate-existing path, mirrored here as
// validateAndLoadExisting. Brand-new meta-file creation uses
// atomic.WriteFile (DOMAIN STACK) rather than the teacher's hand-rolled
// temp-file+rename, so a concurrent opener can never observe a
// partially-written meta header.
func mountEngine(opts Options) (*Engine, error) {
	dataPath, metaPath, err := namespacePaths(opts.RootDir, opts.ID)
	if err != nil {
		return nil, err
	}

	metaIsNew, err := ensureMetaFileExists(metaPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIoError, err)
	}

	metaFile, err := openMappedFile(metaPath, pageSize())
	if err != nil {
		return nil, err
	}

	initialDataSize := int64(pageSize())
	if metaIsNew {
		// InitialPageHint only shapes the very first allocation of a
		// namespace that has never been written before; an existing file
		// keeps whatever size it already has.
		if hint := ambientConfigFor(opts.RootDir).InitialPageHint; hint > 1 {
			initialDataSize = int64(hint) * int64(pageSize())
		}
	}

	dataFile, err := openMappedFile(dataPath, initialDataSize)
	if err != nil {
		_ = metaFile.close()
		return nil, err
	}

	e := &Engine{
		rootDir:      opts.RootDir,
		id:           opts.ID,
		dataPath:     dataPath,
		metaPath:     metaPath,
		dataFile:     dataFile,
		metaFile:     metaFile,
		multiProcess: opts.MultiProcess,
		policy:       opts.OnCorrupt,
		key:          opts.Key,
		dict:         make(map[string][]byte),
	}

	if opts.MultiProcess {
		e.fileLock = newRecursiveFileLock(metaFile.fd())
	}

	meta, err := decodeMetaInfo(metaFile.bytes())
	if err != nil {
		_ = dataFile.close()
		_ = metaFile.close()
		return nil, err
	}

	if metaIsNew || meta.version == 0 {
		if err := e.initEmptyLocked(); err != nil {
			_ = dataFile.close()
			_ = metaFile.close()
			return nil, err
		}
	} else {
		if opts.encrypted() {
			iv := meta.vector[:]
			if !meta.hasVector() {
				iv = nil
			}
			crypt, cErr := newStreamCrypt(opts.Key, iv)
			if cErr != nil {
				_ = dataFile.close()
				_ = metaFile.close()
				return nil, cErr
			}
			e.crypt = crypt
		}

		if err := e.validateAndLoadExisting(meta, opts); err != nil {
			_ = dataFile.close()
			_ = metaFile.close()
			return nil, err
		}

		if e.needFullWriteback {
			// Validation recovered a parseable prefix under the Recover
			// policy; compact immediately rather than waiting for the next
			// mutation, per spec.md §4.5.1's needFullWriteback outcome.
			if err := e.doFullWriteBackLocked(nil, nil); err != nil {
				_ = dataFile.close()
				_ = metaFile.close()
				return nil, err
			}
		}
	}

	e.lastFileSize = e.dataFile.size

	return e, nil
}

// ensureMetaFileExists creates metaPath with a zeroed, page-sized body via
// atomic.WriteFile if it does not already exist. Reports whether it
// created the file (true) so the caller can skip straight to
// initEmptyLocked instead of re-decoding a meta it knows is all zero.
func ensureMetaFileExists(metaPath string) (created bool, err error) {
	if fileExists(metaPath) {
		return false, nil
	}

	if err := ensureParentDir(metaPath); err != nil {
		return false, err
	}

	zeroPage := make([]byte, pageSize())
	if err := atomic.WriteFile(metaPath, bytes.NewReader(zeroPage)); err != nil {
		return false, err
	}

	return true, nil
}

// initEmptyLocked sets up a brand-new namespace: zero actualSize, fresh
// IV if encrypted, sequence 0, version current, and commits meta. Matches
// spec.md §4.5.1 step 6 ("If discarding: zero actualSize, fresh IV, bump
// sequence, fsync meta") applied to the "never written before" case,
// except sequence starts at 0 rather than being bumped from a prior value.
func (e *Engine) initEmptyLocked() error {
	if e.key != nil {
		var iv [aesKeyLen]byte
		if gen, err := fillRandomIV(); err == nil {
			iv = gen
		}
		crypt, err := newStreamCrypt(e.key, iv[:])
		if err != nil {
			return err
		}
		e.crypt = crypt
		e.cached.vector = iv
	}

	e.cached.version = currentMetaVersion
	e.cached.sequence = 0
	e.cached.actualSize = 0
	e.crc.reset(0)
	e.cached.crcDigest = e.crc.value()
	e.cached.lastConfirmed = lastConfirmed{actualSize: 0, crcDigest: e.crc.value()}

	writeDataHeader(e.dataFile.bytes(), 0)
	encodeMetaInfo(e.metaFile.bytes(), &e.cached)

	return e.metaFile.sync(false)
}

// validateAndLoadExisting implements spec.md §4.5.2's validation algorithm
// against an already-decoded meta snapshot, then replays per §4.5.1 steps
// 5-6.
func (e *Engine) validateAndLoadExisting(meta *metaInfo, opts Options) error {
	buf := e.dataFile.bytes()
	fileSize := int64(len(buf))

	metaActualSize := meta.actualSize
	if !meta.hasActualSize() {
		if header, err := readDataHeader(buf); err == nil {
			metaActualSize = uint64(header)
		}
	}

	// Open Question #1 resolution (SPEC_FULL.md): if meta's actualSize and
	// the data header's legacy actualSize disagree by more than one
	// record's worth, re-verify with the header's value and adopt it if
	// that CRC checks out. Never expanded beyond this single re-check.
	const oneRecordHeuristic = 64
	if header, herr := readDataHeader(buf); herr == nil {
		headerSize := uint64(header)
		diff := metaActualSize - headerSize
		if metaActualSize < headerSize {
			diff = headerSize - metaActualSize
		}
		if diff > oneRecordHeuristic {
			if int64(headerSize)+dataHeaderSize <= fileSize {
				if crc32Of(payloadOf(buf, headerSize)) == meta.crcDigest {
					metaActualSize = headerSize
				}
			}
		}
	}

	if int64(metaActualSize)+dataHeaderSize <= fileSize &&
		crc32Of(payloadOf(buf, metaActualSize)) == meta.crcDigest {
		return e.replayLocked(meta, metaActualSize, true)
	}

	if meta.hasLastConfirmed() {
		lc := meta.lastConfirmed
		if int64(lc.actualSize)+dataHeaderSize <= fileSize &&
			crc32Of(payloadOf(buf, lc.actualSize)) == lc.crcDigest {
			recovered := *meta
			recovered.actualSize = lc.actualSize
			recovered.crcDigest = lc.crcDigest
			return e.replayLocked(&recovered, lc.actualSize, false)
		}
	}

	kind := CRCMismatch
	if int64(metaActualSize)+dataHeaderSize > fileSize {
		kind = LengthMismatch
	}

	if opts.decide(kind) == Recover {
		limit := metaActualSize
		if int64(limit)+dataHeaderSize > fileSize {
			limit = uint64(fileSize) - dataHeaderSize
		}
		recovered := *meta
		recovered.actualSize = limit
		if err := e.replayLocked(&recovered, limit, false); err != nil {
			return err
		}
		e.needFullWriteback = true
		return nil
	}

	// Discard: start empty, but keep sequence monotonic across the wipe.
	if err := e.initEmptyLocked(); err != nil {
		return err
	}
	e.cached.sequence = meta.sequence + 1
	encodeMetaInfo(e.metaFile.bytes(), &e.cached)
	return e.metaFile.sync(false)
}

// replayLocked decrypts (if needed) and decodes payload[0..actualSize],
// installing the result as the engine's dictionary. strict selects strict
// vs greedy decode per spec.md §4.5.1.
func (e *Engine) replayLocked(meta *metaInfo, actualSize uint64, strict bool) error {
	buf := e.dataFile.bytes()
	payload := payloadOf(buf, actualSize)

	plain := payload
	if e.crypt != nil {
		plain = append([]byte(nil), payload...)
		e.crypt.decrypt(plain, plain)
	}

	dict, consumed, err := decodeRecords(plain, strict)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	e.dict = dict
	e.actualSize = uint64(consumed)
	if strict {
		e.actualSize = actualSize
	}

	e.cached = *meta
	e.cached.actualSize = e.actualSize

	e.crc.reset(0)
	e.crc.update(payload[:min(uint64(len(payload)), e.actualSize)])

	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
