package mmkv

import "hash/crc32"

// crcTable is the standard reflected Ethernet polynomial (0xEDB88320) table,
// per spec.md §4.3. mmkv's on-disk format is pinned to IEEE/Ethernet by
// spec.md and by the original's Core/crc32/Checksum.h, so crcTable is built
// from crc32.IEEE explicitly.
var crcTable = crc32.MakeTable(crc32.IEEE)

// runningCRC is an incremental CRC32 digest. The engine folds every newly
// appended byte range into it without rescanning the file; the full-file
// digest is only recomputed on load and on full rewrite (spec.md §4.3).
type runningCRC struct {
	digest uint32
}

// reset sets the running digest to seed (typically 0 for a fresh log, or
// a previously computed digest when resuming mid-file).
func (c *runningCRC) reset(seed uint32) {
	c.digest = seed
}

// update folds p into the running digest and returns the new digest.
func (c *runningCRC) update(p []byte) uint32 {
	c.digest = crc32.Update(c.digest, crcTable, p)
	return c.digest
}

// value returns the current digest without mutating it.
func (c *runningCRC) value() uint32 {
	return c.digest
}

// crc32Of computes the CRC32 of p from a zero seed in one call; used on load
// and full rewrite where the whole payload is rehashed at once.
func crc32Of(p []byte) uint32 {
	return crc32.Checksum(p, crcTable)
}
