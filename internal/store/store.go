package store

import (
	"context"
	"errors"
	"time"

	"github.com/ChitLaq/ChitLaq-sub005/internal/social"
)

// ErrNotFound is returned when a record is absent or expired.
var ErrNotFound = errors.New("store: not found")

// ErrNoEvent is returned by Dequeue when the pop timeout elapses with the
// queue empty.
var ErrNoEvent = errors.New("store: no queued event")

// Store is the Event Store collaborator contract. All methods are safe for
// concurrent use; every mutation commits atomically.
type Store interface {
	// Events.
	PutEvent(ctx context.Context, ev *social.Event) error
	GetEvent(ctx context.Context, id string) (*social.Event, error)

	// Subscriptions and the per-user index.
	PutSubscription(ctx context.Context, sub *social.Subscription) error
	GetSubscription(ctx context.Context, id string) (*social.Subscription, error)
	DeleteSubscription(ctx context.Context, id string) error
	AddUserSubscription(ctx context.Context, userID, subID string) error
	RemoveUserSubscription(ctx context.Context, userID, subID string) error
	UserSubscriptionIDs(ctx context.Context, userID string) ([]string, error)
	ListSubscriptions(ctx context.Context) ([]*social.Subscription, error)

	// Capped per-user recent-event history.
	AppendUserEvent(ctx context.Context, userID, eventID string, maxEntries int, retention time.Duration) error
	UserEventIDs(ctx context.Context, userID string) ([]string, error)

	// Connection bindings.
	PutConnection(ctx context.Context, connID, userID string, ttl time.Duration) error
	GetConnection(ctx context.Context, connID string) (string, error)
	DeleteConnection(ctx context.Context, connID string) error

	// Delivery queue. Enqueue appends under a priority rank; Dequeue blocks up
	// to timeout for the next record and hands it to exactly one caller.
	Enqueue(ctx context.Context, prio uint32, payload []byte) error
	Dequeue(ctx context.Context, timeout time.Duration) ([]byte, error)

	// SweepExpired purges up to max records whose TTL has passed. Returns the
	// number purged.
	SweepExpired(ctx context.Context, now time.Time, max int) (int, error)

	Close() error
}
