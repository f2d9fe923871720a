package mmkv

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"log/slog"

	ctrdrbg "github.com/sixafter/aes-ctr-drbg"
)

// aesKeyLen is the block size and IV length for AES-128 (spec.md §3, §4.2:
// "16-byte initialization vector").
const aesKeyLen = 16

// streamCrypt implements AES-128 in CFB-128 mode with an explicit shift
// register and byte offset, matching the original's AESCrypt
// (original_source/Linux/src/aes/AESCrypt.cpp): encrypt/decrypt XOR `length`
// bytes through a 16-byte shift register seeded from the IV, refilling the
// register by re-encrypting it under the key whenever the byte offset wraps
// past 15. This is NOT the same object as Go's cipher.Stream returned by
// cipher.NewCFBEncrypter: that API has no way to resume at an arbitrary
// sub-block offset across independently-sized Encrypt/Decrypt calls (which
// the engine needs: one append can be a handful of bytes, the next a whole
// rewritten payload), so the shift register is driven by hand against
// cipher.Block.Encrypt, exactly mirroring AES_cfb128_encrypt's m_number
// bookkeeping.
//
// Two independent instances (one per direction) allow a writer and a reader
// in the same process to operate on overlapping/aliased buffers without
// cross-talk, per spec.md §4.2.
type streamCrypt struct {
	key       [aesKeyLen]byte
	block     cipher.Block
	vector    [aesKeyLen]byte // current shift register state
	keystream [aesKeyLen]byte // block.Encrypt(vector) as of the last refill
	offset    int             // 0..15, byte cursor within keystream
}

// newStreamCrypt constructs a crypter keyed by key (truncated/zero-padded to
// 16 bytes, matching AESCrypt's memcpy-with-clamp behavior) and resets it
// from iv. If iv is nil, the cipher reseeds from the key bytes themselves
// (legacy behavior for v1 files with no stored IV, per spec.md §4.2 and
// §9's "Random IV" note).
func newStreamCrypt(key []byte, iv []byte) (*streamCrypt, error) {
	c := &streamCrypt{}

	n := copy(c.key[:], key)
	_ = n // short keys are zero-padded; copy already zero-filled the rest

	block, err := aes.NewCipher(c.key[:])
	if err != nil {
		return nil, fmt.Errorf("new aes cipher: %w", err)
	}
	c.block = block

	c.reset(iv)

	return c, nil
}

// reset reseeds the shift register from iv and zeros the byte offset. With
// iv == nil, it reseeds from the key bytes (legacy, pre-v2 files).
func (c *streamCrypt) reset(iv []byte) {
	c.offset = 0

	if len(iv) > 0 {
		clear(c.vector[:])
		copy(c.vector[:], iv)
		return
	}

	c.vector = c.key
}

// crypt XORs length bytes of src into dst through the shift register,
// advancing the offset and refilling the register (by AES-encrypting it
// under the key) whenever the offset wraps past aesKeyLen. src and dst may
// alias (in-place encryption/decryption is required by the append path,
// per spec.md §4.5.3/§9).
//
// c.keystream persists on the receiver across calls rather than being a
// per-call local: a call that starts mid-block (c.offset != 0, the normal
// case once more than one record has been encrypted since the last reset)
// must keep using the same keystream bytes a prior call computed for
// positions 0..offset-1, exactly as AESCrypt.cpp's m_vector/m_number survive
// across separate AES_cfb128_encrypt calls.
//
// CFB128 is symmetric in this construction: the keystream byte is always
// block[offset] regardless of encrypt/decrypt direction; only which of
// plaintext/ciphertext feeds back into the register differs. encrypt feeds
// back the ciphertext (dst) byte; decrypt feeds back the ciphertext (src)
// byte. Both are implemented by the single crypt helper with a feedback
// selector.
func (c *streamCrypt) crypt(dst, src []byte, encrypting bool) {
	for i := 0; i < len(src); i++ {
		if c.offset == 0 {
			c.block.Encrypt(c.keystream[:], c.vector[:])
		}

		in := src[i]
		out := in ^ c.keystream[c.offset]
		dst[i] = out

		var feedback byte
		if encrypting {
			feedback = out
		} else {
			feedback = in
		}

		// Overwrite the register byte at the current offset with the
		// feedback byte rather than shifting the whole register; by the
		// time offset wraps back to 0, every byte has been replaced with
		// feedback and the next block encryption operates on the correct
		// 16-byte feedback block. Matches OpenSSL's AES_cfb128_encrypt
		// ivec[n] handling and AESCrypt.cpp's m_vector/m_number.
		c.vector[c.offset] = feedback
		c.offset = (c.offset + 1) % aesKeyLen
	}
}

func (c *streamCrypt) encrypt(dst, src []byte) { c.crypt(dst, src, true) }
func (c *streamCrypt) decrypt(dst, src []byte) { c.crypt(dst, src, false) }

// fillRandomIV generates a fresh 16-byte IV from a cryptographically
// acceptable RNG, per spec.md §4.2/§9. The AES-CTR DRBG reader is used in
// preference to a direct crypto/rand.Read the way sixafter/nanoid uses it
// for ID generation; crypto/rand remains the fallback so IV generation can
// never hard-fail the rewrite path (it is invoked deep inside
// doFullWriteBack, which has no good way to refuse to proceed).
func fillRandomIV() ([aesKeyLen]byte, error) {
	var iv [aesKeyLen]byte

	reader, err := ctrdrbg.NewReader()
	if err == nil {
		if _, readErr := reader.Read(iv[:]); readErr == nil {
			return iv, nil
		}
	}

	slog.Warn("mmkv: aes-ctr-drbg unavailable, falling back to crypto/rand for IV", "err", err)

	if _, err := rand.Read(iv[:]); err != nil {
		return iv, fmt.Errorf("generate random iv: %w", err)
	}

	return iv, nil
}
