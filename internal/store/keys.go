package store

import (
	"encoding/binary"
)

// Keyspace helpers for Pebble keys.
//
// Layout (byte-wise, lexicographically sortable):
// - ev/{id}                      event record
// - sub/{id}                     subscription record
// - usub/{userId}/{subId}        per-user subscription index marker
// - uev/{userId}                 capped recent-event-id list
// - conn/{connectionId}          connection binding -> userId
// - q/m/{prio_be4}{seq_be8}      queued serialized event
// - q/meta                       queue metadata (lastSeq)
// - exp/{expires_ms_be8}/{key}   expiry index entry pointing at a record key

var (
	sep          = byte('/')
	eventPrefix  = []byte("ev/")
	subPrefix    = []byte("sub/")
	userSubSeg   = []byte("usub/")
	userEvPrefix = []byte("uev/")
	connPrefix   = []byte("conn/")
	queueMsgSeg  = []byte("q/m/")
	queueMetaKey = []byte("q/meta")
	expirySeg    = []byte("exp/")
)

func appendBE4(dst []byte, v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return append(dst, b[:]...)
}

func appendBE8(dst []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(dst, b[:]...)
}

// KeyEvent builds the event record key.
func KeyEvent(id string) []byte {
	return append(append([]byte{}, eventPrefix...), id...)
}

// KeySubscription builds the subscription record key.
func KeySubscription(id string) []byte {
	return append(append([]byte{}, subPrefix...), id...)
}

// SubscriptionPrefix returns the prefix covering all subscription records.
func SubscriptionPrefix() []byte {
	return append([]byte{}, subPrefix...)
}

// KeyUserSubscription builds the per-user subscription index marker key.
func KeyUserSubscription(userID, subID string) []byte {
	k := make([]byte, 0, len(userSubSeg)+len(userID)+1+len(subID))
	k = append(k, userSubSeg...)
	k = append(k, userID...)
	k = append(k, sep)
	k = append(k, subID...)
	return k
}

// UserSubscriptionPrefix returns the prefix covering one user's index.
func UserSubscriptionPrefix(userID string) []byte {
	k := make([]byte, 0, len(userSubSeg)+len(userID)+1)
	k = append(k, userSubSeg...)
	k = append(k, userID...)
	k = append(k, sep)
	return k
}

// KeyUserEvents builds the capped recent-event list key.
func KeyUserEvents(userID string) []byte {
	return append(append([]byte{}, userEvPrefix...), userID...)
}

// KeyConnection builds the connection binding key.
func KeyConnection(connID string) []byte {
	return append(append([]byte{}, connPrefix...), connID...)
}

// KeyQueueMsg builds a queued message key; lower priority rank pops first,
// then enqueue order.
func KeyQueueMsg(prio uint32, seq uint64) []byte {
	k := make([]byte, 0, len(queueMsgSeg)+12)
	k = append(k, queueMsgSeg...)
	k = appendBE4(k, prio)
	k = appendBE8(k, seq)
	return k
}

// QueueMsgPrefix returns the prefix covering all queued messages.
func QueueMsgPrefix() []byte {
	return append([]byte{}, queueMsgSeg...)
}

// KeyQueueMeta returns the queue metadata key.
func KeyQueueMeta() []byte {
	return append([]byte{}, queueMetaKey...)
}

// KeyExpiry builds an expiry index entry pointing at target.
func KeyExpiry(expiresMs uint64, target []byte) []byte {
	k := make([]byte, 0, len(expirySeg)+8+1+len(target))
	k = append(k, expirySeg...)
	k = appendBE8(k, expiresMs)
	k = append(k, sep)
	k = append(k, target...)
	return k
}

// ExpiryPrefix returns the prefix covering the expiry index.
func ExpiryPrefix() []byte {
	return append([]byte{}, expirySeg...)
}

// ParseExpiryKey splits an expiry index key into its deadline and target key.
func ParseExpiryKey(key []byte) (expiresMs uint64, target []byte, ok bool) {
	if len(key) < len(expirySeg)+8+1 {
		return 0, nil, false
	}
	body := key[len(expirySeg):]
	expiresMs = binary.BigEndian.Uint64(body[:8])
	if body[8] != sep {
		return 0, nil, false
	}
	return expiresMs, body[9:], true
}

// prefixUpperBound returns the smallest key greater than every key with the
// given prefix.
func prefixUpperBound(prefix []byte) []byte {
	return append(append([]byte{}, prefix...), 0xFF)
}
