package mmkv

// Trim implements spec.md §4.5.7: while the current file size exceeds
// 2·(actualSize+4), halve it (page-aligned), then remap. A no-op when the
// file is already tight. Grounded on the teacher's growth bookkeeping in
// open.go (ftruncate + unmap/remap), run in the opposite direction.
func (e *Engine) Trim() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	e.checkLoadDataLocked()

	if err := e.lockFileExclusive(); err != nil {
		return err
	}
	defer e.unlockFileExclusive()

	needed := int64(dataHeaderSize) + int64(e.actualSize)

	target := e.dataFile.size
	for target > 2*needed {
		half := target / 2
		if half < pageSize() {
			half = pageSize()
		}
		half = pageAlign(half)
		if half >= target {
			break
		}
		target = half
	}

	if target >= e.dataFile.size {
		return nil
	}

	if err := e.dataFile.shrinkTo(target); err != nil {
		return err
	}
	e.lastFileSize = e.dataFile.size

	return nil
}

// ClearAll implements spec.md §4.5.8: with the exclusive lock, zero the
// header, truncate back to one page, generate a fresh IV, and commit with
// IncreaseSequence.
func (e *Engine) ClearAll() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}

	if err := e.lockFileExclusive(); err != nil {
		return err
	}
	defer e.unlockFileExclusive()

	e.dict = make(map[string][]byte)

	if err := e.dataFile.shrinkTo(pageSize()); err != nil {
		return err
	}

	buf := e.dataFile.bytes()
	writeDataHeader(buf, 0)
	clearTail(buf[dataHeaderSize:])

	var iv [aesKeyLen]byte
	if e.crypt != nil {
		generated, err := fillRandomIV()
		if err != nil {
			return err
		}
		iv = generated
		e.crypt.reset(iv[:])
	}

	e.crc.reset(0)
	e.actualSize = 0

	e.cached.crcDigest = e.crc.value()
	e.cached.version = currentMetaVersion
	e.cached.sequence++
	if e.crypt != nil {
		e.cached.vector = iv
	}
	e.cached.actualSize = 0
	e.cached.lastConfirmed = lastConfirmed{actualSize: 0, crcDigest: e.crc.value()}

	encodeMetaInfo(e.metaFile.bytes(), &e.cached)

	if err := e.metaFile.sync(false); err != nil {
		return err
	}
	e.lastFileSize = e.dataFile.size

	return nil
}
