package mmkv

import "encoding/binary"

// On-disk layout constants and the MetaInfo (CRC file) codec, per spec.md
// §3 and §6's version table. Grounded on the original's MMKVMetaInfo.hpp,
// which grows the same struct field-by-field across four schema versions
// (original_source/Android/MMKV/mmkv/src/main/cpp/MMKVMetaInfo.hpp); here
// the struct is a single fixed-offset layout and `version` gates which
// suffix of it is meaningful, rather than four separate C++ struct types.

const (
	// dataHeaderSize is the 4-byte legacy actualSize header at the front of
	// every data file (spec.md §3 "Data-file layout").
	dataHeaderSize = 4

	// metaVersion1 is the legacy layout: crcDigest + version + sequence only.
	metaVersion1 = uint32(1)
	// metaVersion2 adds the 16-byte AES-CFB IV ("vector").
	metaVersion2 = uint32(2)
	// metaVersion3 adds the authoritative 64-bit actualSize.
	metaVersion3 = uint32(3)
	// metaVersion4 adds the lastConfirmed crash-recovery anchor.
	metaVersion4 = uint32(4)

	// currentMetaVersion is written by every full rewrite performed by this
	// implementation; older files are upgraded in place on first write
	// (spec.md §6, "New versions are upgraded in place on first write").
	currentMetaVersion = metaVersion4

	// Fixed byte offsets within the meta file. Fields beyond a file's
	// persisted version are meaningless (never read) but the struct is
	// always encoded at full width when this implementation writes it, so
	// a v1 file that gets its first write here becomes a v4 file.
	offCRCDigest           = 0
	offVersion             = offCRCDigest + 4
	offSequence            = offVersion + 4
	offVector              = offSequence + 4
	offActualSize          = offVector + aesKeyLen
	offLastConfirmedSize   = offActualSize + 8
	offLastConfirmedDigest = offLastConfirmedSize + 8

	// metaStructSize is the total encoded size of a v4 MetaInfo. The meta
	// file itself always occupies one full OS page (spec.md §4.4: "mapped
	// one page"); metaStructSize is just the meaningful prefix of it.
	metaStructSize = offLastConfirmedDigest + 4
)

// lastConfirmed anchors crash recovery: the (size, crc) pair of the last
// full rewrite that completed successfully (spec.md §3, "lastConfirmed").
type lastConfirmed struct {
	actualSize uint64
	crcDigest  uint32
}

// metaInfo mirrors the persisted meta file (spec.md §3, "Metadata file").
// version controls which fields a reader should trust; this implementation
// always populates every field and writes at metaVersion4, so the
// version-gated reads only matter when decoding a file written by an older
// build (or, in tests, a deliberately truncated/legacy one).
type metaInfo struct {
	crcDigest     uint32
	version       uint32
	sequence      uint32
	vector        [aesKeyLen]byte
	actualSize    uint64
	lastConfirmed lastConfirmed
}

// hasVector reports whether m.vector should be trusted (v≥2).
func (m *metaInfo) hasVector() bool { return m.version >= metaVersion2 }

// hasActualSize reports whether m.actualSize should be trusted over the
// data file header's legacy actualSize (v≥3).
func (m *metaInfo) hasActualSize() bool { return m.version >= metaVersion3 }

// hasLastConfirmed reports whether m.lastConfirmed is a valid recovery
// anchor (v≥4).
func (m *metaInfo) hasLastConfirmed() bool { return m.version >= metaVersion4 }

// encodeMetaInfo serializes m into buf at full v4 width. buf must be at
// least metaStructSize bytes; callers pass a full page-sized buffer backed
// by the meta mmap and only the struct prefix is touched.
func encodeMetaInfo(buf []byte, m *metaInfo) {
	binary.LittleEndian.PutUint32(buf[offCRCDigest:], m.crcDigest)
	binary.LittleEndian.PutUint32(buf[offVersion:], m.version)
	binary.LittleEndian.PutUint32(buf[offSequence:], m.sequence)
	copy(buf[offVector:offVector+aesKeyLen], m.vector[:])
	binary.LittleEndian.PutUint64(buf[offActualSize:], m.actualSize)
	binary.LittleEndian.PutUint64(buf[offLastConfirmedSize:], m.lastConfirmed.actualSize)
	binary.LittleEndian.PutUint32(buf[offLastConfirmedDigest:], m.lastConfirmed.crcDigest)
}

// decodeMetaInfo reads a metaInfo from buf. A buf shorter than
// metaStructSize returns ErrTruncated. An all-zero buf (a freshly created,
// never-written meta file) decodes to the zero value with version 0,
// which hasVector/hasActualSize/hasLastConfirmed all report false for —
// callers treat that the same as "no meta file yet".
func decodeMetaInfo(buf []byte) (*metaInfo, error) {
	if len(buf) < metaStructSize {
		return nil, ErrTruncated
	}

	m := &metaInfo{
		crcDigest: binary.LittleEndian.Uint32(buf[offCRCDigest:]),
		version:   binary.LittleEndian.Uint32(buf[offVersion:]),
		sequence:  binary.LittleEndian.Uint32(buf[offSequence:]),
	}
	copy(m.vector[:], buf[offVector:offVector+aesKeyLen])
	m.actualSize = binary.LittleEndian.Uint64(buf[offActualSize:])
	m.lastConfirmed.actualSize = binary.LittleEndian.Uint64(buf[offLastConfirmedSize:])
	m.lastConfirmed.crcDigest = binary.LittleEndian.Uint32(buf[offLastConfirmedDigest:])

	return m, nil
}

// readDataHeader returns the legacy fixed32 actualSize stored at the front
// of the data file.
func readDataHeader(buf []byte) (uint32, error) {
	if len(buf) < dataHeaderSize {
		return 0, ErrTruncated
	}
	return binary.LittleEndian.Uint32(buf), nil
}

// writeDataHeader writes the legacy fixed32 actualSize header. This is
// kept in sync with meta's authoritative actualSize on every commit purely
// for backward/downgrade compatibility (spec.md §3, "written for backward
// compatibility").
func writeDataHeader(buf []byte, actualSize uint32) {
	binary.LittleEndian.PutUint32(buf, actualSize)
}

// payloadOf returns the live payload slice of a data file buffer given an
// authoritative actualSize, per spec.md's "Payload" glossary entry.
func payloadOf(buf []byte, actualSize uint64) []byte {
	end := uint64(dataHeaderSize) + actualSize
	if end > uint64(len(buf)) {
		end = uint64(len(buf))
	}
	return buf[dataHeaderSize:end]
}
