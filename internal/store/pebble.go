package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/ChitLaq/ChitLaq-sub005/internal/social"
	pebblestore "github.com/ChitLaq/ChitLaq-sub005/internal/storage/pebble"
)

// PebbleStore implements Store on a Pebble keyspace.
type PebbleStore struct {
	db    *pebblestore.DB
	clock social.Clock

	// queue state
	qmu     sync.Mutex
	lastSeq uint64

	notifyMu sync.Mutex
	notifyCh chan struct{}
}

var _ Store = (*PebbleStore)(nil)

// Open wraps db as a Store, restoring queue metadata if present.
func Open(db *pebblestore.DB, clock social.Clock) (*PebbleStore, error) {
	if clock == nil {
		clock = social.SystemClock{}
	}
	s := &PebbleStore{db: db, clock: clock, notifyCh: make(chan struct{})}
	if meta, err := db.Get(KeyQueueMeta()); err == nil && len(meta) >= 8 {
		s.lastSeq = binary.BigEndian.Uint64(meta[:8])
	}
	return s, nil
}

// Close closes the underlying database.
func (s *PebbleStore) Close() error { return s.db.Close() }

// setWithTTL writes a record and its expiry index entry in one batch.
func (s *PebbleStore) setWithTTL(ctx context.Context, key, payload []byte, expiresAt time.Time) error {
	b := s.db.NewBatch()
	defer b.Close()
	if err := b.Set(key, EncodeRecord(expiresAt, payload), nil); err != nil {
		return err
	}
	if !expiresAt.IsZero() {
		if err := b.Set(KeyExpiry(uint64(expiresAt.UnixMilli()), key), nil, nil); err != nil {
			return err
		}
	}
	return s.db.CommitBatch(ctx, b)
}

// getLive reads a record, treating expired or absent as ErrNotFound.
func (s *PebbleStore) getLive(key []byte) ([]byte, error) {
	raw, err := s.db.Get(key)
	if err != nil {
		if errors.Is(err, pebblestore.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	expMs, payload, ok := DecodeRecord(raw)
	if !ok || recordExpired(expMs, s.clock.Now()) {
		return nil, ErrNotFound
	}
	return payload, nil
}

// PutEvent persists the event under its TTL.
func (s *PebbleStore) PutEvent(ctx context.Context, ev *social.Event) error {
	payload, err := ev.Encode()
	if err != nil {
		return err
	}
	return s.setWithTTL(ctx, KeyEvent(ev.ID), payload, ev.ExpiresAt())
}

// GetEvent looks up a live event by id.
func (s *PebbleStore) GetEvent(ctx context.Context, id string) (*social.Event, error) {
	payload, err := s.getLive(KeyEvent(id))
	if err != nil {
		return nil, err
	}
	return social.DecodeEvent(payload)
}

// PutSubscription persists the subscription until its ExpiresAt.
func (s *PebbleStore) PutSubscription(ctx context.Context, sub *social.Subscription) error {
	payload, err := sub.Encode()
	if err != nil {
		return err
	}
	return s.setWithTTL(ctx, KeySubscription(sub.ID), payload, sub.ExpiresAt)
}

// GetSubscription looks up a live subscription by id.
func (s *PebbleStore) GetSubscription(ctx context.Context, id string) (*social.Subscription, error) {
	payload, err := s.getLive(KeySubscription(id))
	if err != nil {
		return nil, err
	}
	return social.DecodeSubscription(payload)
}

// DeleteSubscription removes the subscription record. Any expiry index entry
// left behind is harmless; the sweep tolerates missing targets.
func (s *PebbleStore) DeleteSubscription(ctx context.Context, id string) error {
	return s.db.Delete(KeySubscription(id))
}

const userSubIndexTTL = 24 * time.Hour

// AddUserSubscription records subID in the user's index with a sliding TTL.
func (s *PebbleStore) AddUserSubscription(ctx context.Context, userID, subID string) error {
	exp := s.clock.Now().Add(userSubIndexTTL)
	return s.setWithTTL(ctx, KeyUserSubscription(userID, subID), nil, exp)
}

// RemoveUserSubscription drops subID from the user's index.
func (s *PebbleStore) RemoveUserSubscription(ctx context.Context, userID, subID string) error {
	return s.db.Delete(KeyUserSubscription(userID, subID))
}

// UserSubscriptionIDs lists the user's index, refreshing its sliding TTL and
// skipping expired markers.
func (s *PebbleStore) UserSubscriptionIDs(ctx context.Context, userID string) ([]string, error) {
	prefix := UserSubscriptionPrefix(userID)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: prefixUpperBound(prefix)})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	now := s.clock.Now()
	var ids []string
	for ok := iter.First(); ok; ok = iter.Next() {
		expMs, _, okRec := DecodeRecord(iter.Value())
		if !okRec || recordExpired(expMs, now) {
			continue
		}
		ids = append(ids, string(iter.Key()[len(prefix):]))
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	// sliding TTL: touch live markers
	for _, id := range ids {
		_ = s.setWithTTL(ctx, KeyUserSubscription(userID, id), nil, now.Add(userSubIndexTTL))
	}
	return ids, nil
}

// ListSubscriptions scans every live subscription record.
func (s *PebbleStore) ListSubscriptions(ctx context.Context) ([]*social.Subscription, error) {
	prefix := SubscriptionPrefix()
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: prefixUpperBound(prefix)})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	now := s.clock.Now()
	var subs []*social.Subscription
	for ok := iter.First(); ok; ok = iter.Next() {
		expMs, payload, okRec := DecodeRecord(iter.Value())
		if !okRec || recordExpired(expMs, now) {
			continue
		}
		sub, err := social.DecodeSubscription(payload)
		if err != nil {
			continue
		}
		subs = append(subs, sub)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	return subs, nil
}

// AppendUserEvent pushes eventID onto the user's capped recent list, trimming
// the oldest entries beyond maxEntries.
func (s *PebbleStore) AppendUserEvent(ctx context.Context, userID, eventID string, maxEntries int, retention time.Duration) error {
	if maxEntries <= 0 {
		maxEntries = 100
	}
	key := KeyUserEvents(userID)
	var ids []string
	if payload, err := s.getLive(key); err == nil {
		if err := json.Unmarshal(payload, &ids); err != nil {
			ids = nil
		}
	}
	ids = append(ids, eventID)
	if len(ids) > maxEntries {
		ids = ids[len(ids)-maxEntries:]
	}
	payload, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return s.setWithTTL(ctx, key, payload, s.clock.Now().Add(retention))
}

// UserEventIDs returns the user's recent event ids, newest last.
func (s *PebbleStore) UserEventIDs(ctx context.Context, userID string) ([]string, error) {
	payload, err := s.getLive(KeyUserEvents(userID))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal(payload, &ids); err != nil {
		return nil, fmt.Errorf("decode user events: %w", err)
	}
	return ids, nil
}

// PutConnection records a connectionId -> userId binding.
func (s *PebbleStore) PutConnection(ctx context.Context, connID, userID string, ttl time.Duration) error {
	return s.setWithTTL(ctx, KeyConnection(connID), []byte(userID), s.clock.Now().Add(ttl))
}

// GetConnection resolves a live connection binding.
func (s *PebbleStore) GetConnection(ctx context.Context, connID string) (string, error) {
	payload, err := s.getLive(KeyConnection(connID))
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

// DeleteConnection drops the binding.
func (s *PebbleStore) DeleteConnection(ctx context.Context, connID string) error {
	return s.db.Delete(KeyConnection(connID))
}

// SweepExpired walks the expiry index up to now, deleting records whose own
// deadline has passed. Index entries pointing at rewritten or deleted records
// are discarded without touching the target.
func (s *PebbleStore) SweepExpired(ctx context.Context, now time.Time, max int) (int, error) {
	prefix := ExpiryPrefix()
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: prefixUpperBound(prefix)})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	nowMs := now.UnixMilli()
	b := s.db.NewBatch()
	defer b.Close()
	purged := 0
	scanned := 0
	for ok := iter.First(); ok; ok = iter.Next() {
		expMs, target, okKey := ParseExpiryKey(iter.Key())
		if !okKey {
			continue
		}
		if int64(expMs) > nowMs {
			break
		}
		scanned++
		if raw, err := s.db.Get(target); err == nil {
			if recExp, _, okRec := DecodeRecord(raw); okRec && recordExpired(recExp, now) {
				if err := b.Delete(target, nil); err != nil {
					return purged, err
				}
				purged++
			}
		}
		if err := b.Delete(iter.Key(), nil); err != nil {
			return purged, err
		}
		if max > 0 && purged >= max {
			break
		}
	}
	if scanned > 0 {
		if err := s.db.CommitBatch(ctx, b); err != nil {
			return purged, err
		}
	}
	return purged, nil
}
