package mmkv

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Codec implements the varint/fixed-width framing used to write keys and
// values into the append log. It mirrors the wire format described in
// spec.md §4.1: base-128 little-endian varints for lengths and signed/
// unsigned integers, little-endian fixed32/fixed64 for floats, and
// length-delimited framing (varint(len) || bytes) for strings and byte
// buffers.
//
// All functions are stateless and allocation-free on the hot path; callers
// preallocate destination buffers using the sizeof* helpers.
//
// Grounded on aether-kv's internal/format/codec.go (fixed-offset binary
// framing with an explicit wire layout) and the original MiniPBCoder's
// CodedOutputData/CodedInputData varint framing
// (original_source/Win32/MMKV/MiniPBCoder.cpp).

const maxVarintBytes = 10

// putUvarint writes v into buf using base-128 varint encoding and returns the
// number of bytes written. buf must have at least sizeofUvarint(v) bytes.
func putUvarint(buf []byte, v uint64) int {
	i := 0
	for v >= 0x80 {
		buf[i] = byte(v) | 0x80
		v >>= 7
		i++
	}
	buf[i] = byte(v)
	return i + 1
}

// sizeofUvarint returns the exact number of bytes putUvarint(v) would write.
func sizeofUvarint(v uint64) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}

// getUvarint reads a base-128 varint from buf, returning the decoded value
// and the number of bytes consumed. On error it returns (0, 0, err).
//
// Errors: [ErrMalformedVarint] if the first maxVarintBytes bytes all carry
// the continuation bit and buf holds a further byte, [ErrTruncated] if buf
// ends before a terminating byte.
func getUvarint(buf []byte) (uint64, int, error) {
	var v uint64
	var shift uint

	for i := 0; i < len(buf); i++ {
		if i == maxVarintBytes {
			return 0, 0, ErrMalformedVarint
		}

		b := buf[i]
		v |= uint64(b&0x7f) << shift

		if b < 0x80 {
			return v, i + 1, nil
		}

		shift += 7
	}

	return 0, 0, ErrTruncated
}

// putVarint32 writes a signed 32-bit integer as a 10-byte sign-extended
// 64-bit varint, per spec.md §4.1 ("negative 32-bit values are written as
// 10-byte 64-bit varints"). Non-negative values use the shortest encoding.
func putVarint32(buf []byte, v int32) int {
	return putUvarint(buf, uint64(int64(v)))
}

func sizeofVarint32(v int32) int {
	return sizeofUvarint(uint64(int64(v)))
}

// getVarint32 decodes a signed 32-bit integer written by putVarint32.
// Readers consume up to the terminating byte regardless of whether the
// original encoding used 10 bytes (sign-extended) or fewer (non-negative).
func getVarint32(buf []byte) (int32, int, error) {
	v, n, err := getUvarint(buf)
	if err != nil {
		return 0, 0, err
	}
	return int32(int64(v)), n, nil
}

func putVarint64(buf []byte, v int64) int {
	return putUvarint(buf, uint64(v))
}

func sizeofVarint64(v int64) int {
	return sizeofUvarint(uint64(v))
}

func getVarint64(buf []byte) (int64, int, error) {
	v, n, err := getUvarint(buf)
	if err != nil {
		return 0, 0, err
	}
	return int64(v), n, nil
}

// Fixed32/Fixed64 --------------------------------------------------------

func putFixed32(buf []byte, v uint32) {
	binary.LittleEndian.PutUint32(buf, v)
}

func getFixed32(buf []byte) (uint32, error) {
	if len(buf) < 4 {
		return 0, ErrTruncated
	}
	return binary.LittleEndian.Uint32(buf), nil
}

func putFixed64(buf []byte, v uint64) {
	binary.LittleEndian.PutUint64(buf, v)
}

func getFixed64(buf []byte) (uint64, error) {
	if len(buf) < 8 {
		return 0, ErrTruncated
	}
	return binary.LittleEndian.Uint64(buf), nil
}

func putFloat32(buf []byte, v float32) {
	putFixed32(buf, math.Float32bits(v))
}

func getFloat32(buf []byte) (float32, error) {
	bits, err := getFixed32(buf)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(bits), nil
}

func putFloat64(buf []byte, v float64) {
	putFixed64(buf, math.Float64bits(v))
}

func getFloat64(buf []byte) (float64, error) {
	bits, err := getFixed64(buf)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(bits), nil
}

// Bool --------------------------------------------------------------------

func putBool(buf []byte, v bool) {
	if v {
		buf[0] = 1
	} else {
		buf[0] = 0
	}
}

func getBool(buf []byte) (bool, error) {
	if len(buf) < 1 {
		return false, ErrTruncated
	}
	return buf[0] != 0, nil
}

// Length-delimited bytes/strings -------------------------------------------

// putBytes writes varint(len(v)) || v into buf and returns the total bytes
// written.
func putBytes(buf []byte, v []byte) int {
	n := putUvarint(buf, uint64(len(v)))
	copy(buf[n:], v)
	return n + len(v)
}

func sizeofBytes(v []byte) int {
	return sizeofUvarint(uint64(len(v))) + len(v)
}

// getBytes reads a length-delimited byte slice. The returned slice aliases
// buf; callers that retain it beyond the lifetime of buf must copy.
//
// Errors: [ErrNegativeLength] if the length prefix decodes to a value that
// does not fit an int (defensive only; varint lengths are unsigned and
// cannot be negative on the wire, but an absurdly large value would
// overflow int on 32-bit platforms), [ErrTruncated] if fewer than the
// declared length of bytes remain.
func getBytes(buf []byte) ([]byte, int, error) {
	length, n, err := getUvarint(buf)
	if err != nil {
		return nil, 0, err
	}

	if length > uint64(len(buf)-n) {
		return nil, 0, ErrTruncated
	}

	if length > math.MaxInt32 {
		return nil, 0, fmt.Errorf("length %d exceeds maximum: %w", length, ErrNegativeLength)
	}

	return buf[n : n+int(length)], n + int(length), nil
}

func putString(buf []byte, v string) int {
	return putBytes(buf, []byte(v))
}

func sizeofString(v string) int {
	return sizeofUvarint(uint64(len(v))) + len(v)
}

func getString(buf []byte) (string, int, error) {
	b, n, err := getBytes(buf)
	if err != nil {
		return "", 0, err
	}
	return string(b), n, nil
}

// String lists --------------------------------------------------------------
//
// Encoded as varint(count) followed by count length-delimited strings, the
// same outer-container shape MiniPBCoder uses for vector<string>
// (original_source/Win32/MMKV/MiniPBCoder.cpp, prepareObjectForEncode).

func putStringList(buf []byte, v []string) int {
	n := putUvarint(buf, uint64(len(v)))
	for _, s := range v {
		n += putString(buf[n:], s)
	}
	return n
}

func sizeofStringList(v []string) int {
	n := sizeofUvarint(uint64(len(v)))
	for _, s := range v {
		n += sizeofString(s)
	}
	return n
}

func getStringList(buf []byte) ([]string, int, error) {
	count, n, err := getUvarint(buf)
	if err != nil {
		return nil, 0, err
	}

	if count > uint64(len(buf)) {
		// Each string is at least one byte (its own length prefix), so the
		// count can never legitimately exceed the remaining buffer length.
		return nil, 0, ErrTruncated
	}

	out := make([]string, 0, count)
	for i := uint64(0); i < count; i++ {
		s, sn, err := getString(buf[n:])
		if err != nil {
			return nil, 0, err
		}
		out = append(out, s)
		n += sn
	}

	return out, n, nil
}
