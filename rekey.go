package mmkv

// ReKey implements spec.md §4.5.6: for any case that changes the key
// material (plain→plain is the only no-op; plain→encrypted,
// encrypted→plain, and encrypted→newKey all force a full rewrite so the
// on-disk representation matches the new scheme, with a freshly generated
// IV). Matches spec.md §6's `reKey(newKey?)`.
//
// Grounded on the original's MMKV::reKey (original_source, the same file
// AESCrypt.cpp documents the cipher reset semantics reKey relies on): a
// rewrite under the new key/cipher state is the only way to avoid leaving
// old-key ciphertext (or plaintext) mixed with new-key ciphertext in one
// payload.
func (e *Engine) ReKey(newKey []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	e.checkLoadDataLocked()

	wasEncrypted := e.crypt != nil
	willEncrypt := len(newKey) > 0

	if !wasEncrypted && !willEncrypt {
		// plain -> plain: no representation change needed.
		return nil
	}

	if willEncrypt {
		crypt, err := newStreamCrypt(newKey, nil)
		if err != nil {
			return err
		}
		e.crypt = crypt
		e.key = newKey
	} else {
		e.crypt = nil
		e.key = nil
	}

	return e.doFullWriteBackLocked(nil, nil)
}
