package store

import (
	"encoding/binary"
	"time"
)

// Records carry their expiry inline so reads can treat expired data as
// absent without consulting the expiry index. Layout: 8-byte big-endian
// expiry in unix milliseconds (0 = no expiry), then the payload.

const recordHeaderLen = 8

// EncodeRecord wraps payload with its expiry deadline.
func EncodeRecord(expiresAt time.Time, payload []byte) []byte {
	out := make([]byte, recordHeaderLen+len(payload))
	if !expiresAt.IsZero() {
		binary.BigEndian.PutUint64(out[:recordHeaderLen], uint64(expiresAt.UnixMilli()))
	}
	copy(out[recordHeaderLen:], payload)
	return out
}

// DecodeRecord splits a stored record into expiry and payload.
func DecodeRecord(b []byte) (expiresMs uint64, payload []byte, ok bool) {
	if len(b) < recordHeaderLen {
		return 0, nil, false
	}
	return binary.BigEndian.Uint64(b[:recordHeaderLen]), b[recordHeaderLen:], true
}

// recordExpired reports whether a decoded record is dead at now.
func recordExpired(expiresMs uint64, now time.Time) bool {
	return expiresMs != 0 && int64(expiresMs) < now.UnixMilli()
}
