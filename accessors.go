package mmkv

// Typed accessors: thin wrappers over setData/getData that encode/decode
// through the Codec, per spec.md §4.6. Encoding failure is impossible
// because every buffer is sized exactly by a sizeof* helper first;
// decoding failure (a corrupted or truncated stored value) returns the
// caller's defaultValue rather than propagating an error, matching §7:
// "Typed get on a malformed record never throws upward; it returns the
// caller's default."
//
// Grounded on the original's typed set/get surface (MMKV.cpp's
// getBool/getInt32/... family) and on the Codec component already defined
// in codec.go for the wire encoding itself.

// SetBool stores a boolean under key.
func (e *Engine) SetBool(key string, v bool) error {
	buf := make([]byte, 1)
	putBool(buf, v)
	return e.setData(key, buf)
}

// GetBool retrieves a boolean stored under key, or def if absent/corrupt.
func (e *Engine) GetBool(key string, def bool) bool {
	raw, ok := e.getData(key)
	if !ok {
		return def
	}
	v, err := getBool(raw)
	if err != nil {
		return def
	}
	return v
}

// SetInt32 stores a signed 32-bit integer under key.
func (e *Engine) SetInt32(key string, v int32) error {
	buf := make([]byte, sizeofVarint32(v))
	putVarint32(buf, v)
	return e.setData(key, buf)
}

// GetInt32 retrieves a signed 32-bit integer stored under key, or def if
// absent/corrupt.
func (e *Engine) GetInt32(key string, def int32) int32 {
	raw, ok := e.getData(key)
	if !ok {
		return def
	}
	v, _, err := getVarint32(raw)
	if err != nil {
		return def
	}
	return v
}

// SetUint32 stores an unsigned 32-bit integer under key.
func (e *Engine) SetUint32(key string, v uint32) error {
	buf := make([]byte, sizeofUvarint(uint64(v)))
	putUvarint(buf, uint64(v))
	return e.setData(key, buf)
}

// GetUint32 retrieves an unsigned 32-bit integer stored under key, or def
// if absent/corrupt.
func (e *Engine) GetUint32(key string, def uint32) uint32 {
	raw, ok := e.getData(key)
	if !ok {
		return def
	}
	v, _, err := getUvarint(raw)
	if err != nil {
		return def
	}
	return uint32(v) //nolint:gosec // value was encoded from a uint32 by SetUint32
}

// SetInt64 stores a signed 64-bit integer under key.
func (e *Engine) SetInt64(key string, v int64) error {
	buf := make([]byte, sizeofVarint64(v))
	putVarint64(buf, v)
	return e.setData(key, buf)
}

// GetInt64 retrieves a signed 64-bit integer stored under key, or def if
// absent/corrupt.
func (e *Engine) GetInt64(key string, def int64) int64 {
	raw, ok := e.getData(key)
	if !ok {
		return def
	}
	v, _, err := getVarint64(raw)
	if err != nil {
		return def
	}
	return v
}

// SetUint64 stores an unsigned 64-bit integer under key.
func (e *Engine) SetUint64(key string, v uint64) error {
	buf := make([]byte, sizeofUvarint(v))
	putUvarint(buf, v)
	return e.setData(key, buf)
}

// GetUint64 retrieves an unsigned 64-bit integer stored under key, or def
// if absent/corrupt.
func (e *Engine) GetUint64(key string, def uint64) uint64 {
	raw, ok := e.getData(key)
	if !ok {
		return def
	}
	v, _, err := getUvarint(raw)
	if err != nil {
		return def
	}
	return v
}

// SetFloat32 stores a 32-bit float under key.
func (e *Engine) SetFloat32(key string, v float32) error {
	buf := make([]byte, 4)
	putFloat32(buf, v)
	return e.setData(key, buf)
}

// GetFloat32 retrieves a 32-bit float stored under key, or def if
// absent/corrupt.
func (e *Engine) GetFloat32(key string, def float32) float32 {
	raw, ok := e.getData(key)
	if !ok {
		return def
	}
	v, err := getFloat32(raw)
	if err != nil {
		return def
	}
	return v
}

// SetFloat64 stores a 64-bit float under key.
func (e *Engine) SetFloat64(key string, v float64) error {
	buf := make([]byte, 8)
	putFloat64(buf, v)
	return e.setData(key, buf)
}

// GetFloat64 retrieves a 64-bit float stored under key, or def if
// absent/corrupt.
func (e *Engine) GetFloat64(key string, def float64) float64 {
	raw, ok := e.getData(key)
	if !ok {
		return def
	}
	v, err := getFloat64(raw)
	if err != nil {
		return def
	}
	return v
}

// SetString stores a UTF-8 string under key.
func (e *Engine) SetString(key string, v string) error {
	buf := make([]byte, sizeofString(v))
	putString(buf, v)
	return e.setData(key, buf)
}

// GetString retrieves a string stored under key, or def if absent/corrupt.
func (e *Engine) GetString(key string, def string) string {
	raw, ok := e.getData(key)
	if !ok {
		return def
	}
	v, _, err := getString(raw)
	if err != nil {
		return def
	}
	return v
}

// SetBytes stores an opaque byte buffer under key.
func (e *Engine) SetBytes(key string, v []byte) error {
	buf := make([]byte, sizeofBytes(v))
	putBytes(buf, v)
	return e.setData(key, buf)
}

// GetBytes retrieves a byte buffer stored under key, or def if
// absent/corrupt. The returned slice is a fresh copy.
func (e *Engine) GetBytes(key string, def []byte) []byte {
	raw, ok := e.getData(key)
	if !ok {
		return def
	}
	v, _, err := getBytes(raw)
	if err != nil {
		return def
	}
	return append([]byte(nil), v...)
}

// SetStringList stores a list of strings under key.
func (e *Engine) SetStringList(key string, v []string) error {
	buf := make([]byte, sizeofStringList(v))
	putStringList(buf, v)
	return e.setData(key, buf)
}

// GetStringList retrieves a string list stored under key, or def if
// absent/corrupt.
func (e *Engine) GetStringList(key string, def []string) []string {
	raw, ok := e.getData(key)
	if !ok {
		return def
	}
	v, _, err := getStringList(raw)
	if err != nil {
		return def
	}
	return v
}
