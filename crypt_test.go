package mmkv

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStreamCryptEncryptDecryptRoundTrip(t *testing.T) {
	t.Parallel()

	key := []byte("0123456789abcdef")
	iv := []byte("fedcba9876543210")

	enc, err := newStreamCrypt(key, iv)
	require.NoError(t, err)

	dec, err := newStreamCrypt(key, iv)
	require.NoError(t, err)

	plain := []byte("the quick brown fox jumps over the lazy dog, repeatedly, to cross block boundaries")
	cipherText := make([]byte, len(plain))
	enc.encrypt(cipherText, plain)
	require.False(t, bytes.Equal(cipherText, plain))

	decoded := make([]byte, len(cipherText))
	dec.decrypt(decoded, cipherText)
	require.Equal(t, plain, decoded)
}

func TestStreamCryptResumesAtArbitraryOffset(t *testing.T) {
	t.Parallel()

	key := []byte("0123456789abcdef")
	iv := []byte("fedcba9876543210")

	plain := bytes.Repeat([]byte("x"), 40)

	whole, err := newStreamCrypt(key, iv)
	require.NoError(t, err)
	wantCipher := make([]byte, len(plain))
	whole.encrypt(wantCipher, plain)

	split, err := newStreamCrypt(key, iv)
	require.NoError(t, err)
	gotCipher := make([]byte, len(plain))
	split.encrypt(gotCipher[:17], plain[:17])
	split.encrypt(gotCipher[17:], plain[17:])

	require.Equal(t, wantCipher, gotCipher)
}

func TestStreamCryptResetReseeds(t *testing.T) {
	t.Parallel()

	key := []byte("0123456789abcdef")
	c, err := newStreamCrypt(key, bytes.Repeat([]byte{0}, aesKeyLen))
	require.NoError(t, err)

	plain := []byte("hello")
	first := make([]byte, len(plain))
	c.encrypt(first, plain)

	c.reset(bytes.Repeat([]byte{1}, aesKeyLen))
	second := make([]byte, len(plain))
	c.encrypt(second, plain)

	require.NotEqual(t, first, second)
}

func TestFillRandomIVProducesNonZeroOutput(t *testing.T) {
	t.Parallel()

	iv, err := fillRandomIV()
	require.NoError(t, err)
	require.NotEqual(t, [aesKeyLen]byte{}, iv)
}
