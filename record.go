package mmkv

// record encode/decode: varint(keyLen) || key || varint(valueLen) || value,
// per spec.md §3 ("Each record is...") and §4.5.3 ("Encode record"). A
// value with length 0 is a tombstone.
//
// Grounded on aether-kv's internal/format.Record (length-delimited
// key+value framing with a tombstone sentinel), adapted to mmkv's
// bare varint framing (no CRC per record — the engine's running CRC
// covers the whole payload instead, per spec.md §4.3).

// sizeofRecord returns the exact encoded length of a (key, value) record.
// value == nil encodes a tombstone with valueLen 0.
func sizeofRecord(key []byte, value []byte) int {
	return sizeofBytes(key) + sizeofBytes(value)
}

// putRecord writes a (key, value) record into buf and returns the number
// of bytes written. buf must be at least sizeofRecord(key, value) long.
func putRecord(buf []byte, key []byte, value []byte) int {
	n := putBytes(buf, key)
	n += putBytes(buf[n:], value)
	return n
}

// decodedRecord is one parsed (key, value) pair together with the number
// of payload bytes it consumed.
type decodedRecord struct {
	key       []byte
	value     []byte
	tombstone bool
	consumed  int
}

// getRecord reads one record from the front of buf.
func getRecord(buf []byte) (decodedRecord, error) {
	key, kn, err := getBytes(buf)
	if err != nil {
		return decodedRecord{}, err
	}

	value, vn, err := getBytes(buf[kn:])
	if err != nil {
		return decodedRecord{}, err
	}

	return decodedRecord{
		key:       key,
		value:     value,
		tombstone: len(value) == 0,
		consumed:  kn + vn,
	}, nil
}

// decodeRecords replays payload front-to-back, folding each record into a
// fresh dictionary (later records for the same key win; tombstones
// delete), per spec.md §3's "effective dictionary is the left-fold of all
// records in file order" and I4.
//
// In strict mode, any decode error aborts and is returned. In greedy mode
// (used after lastConfirmed recovery and under the Recover policy, per
// spec.md §4.5.1 "Strict vs greedy decode"), decoding stops at the first
// malformed record and returns everything parsed so far with err == nil;
// consumed reports how many payload bytes were successfully consumed,
// which becomes the corrected actualSize for a subsequent compacting
// rewrite.
//
// Keys and values in the returned dictionary are copies and do not alias
// payload.
func decodeRecords(payload []byte, strict bool) (dict map[string][]byte, consumed int, err error) {
	dict = make(map[string][]byte)

	offset := 0
	for offset < len(payload) {
		rec, decErr := getRecord(payload[offset:])
		if decErr != nil {
			if strict {
				return nil, 0, decErr
			}
			break
		}

		if rec.tombstone {
			delete(dict, string(rec.key))
		} else {
			dict[string(rec.key)] = append([]byte(nil), rec.value...)
		}

		offset += rec.consumed
		consumed = offset
	}

	return dict, consumed, nil
}
