package subsvc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ChitLaq/ChitLaq-sub005/internal/social"
	"github.com/ChitLaq/ChitLaq-sub005/internal/store"
	logpkg "github.com/ChitLaq/ChitLaq-sub005/pkg/log"
)

// ErrTooManySubscriptions is returned when a subscribe would exceed the
// per-user cap. No partial subscription is created; the policy is reject,
// not evict.
var ErrTooManySubscriptions = errors.New("subscriptions: per-user cap exceeded")

// Options tunes the registry.
type Options struct {
	// Timeout bounds every subscription's lifetime.
	Timeout time.Duration
	// MaxPerUser caps concurrent subscriptions per user; 0 means unlimited.
	MaxPerUser int
}

// Live pairs a cached subscription with its compiled filter expression.
type Live struct {
	Sub    *social.Subscription
	filter celFilter
}

// EvalFilter applies the subscription's optional CEL expression to ev.
func (l *Live) EvalFilter(ev *social.Event) bool { return l.filter.Eval(ev) }

// Service is the Subscription Registry.
type Service struct {
	st     store.Store
	clock  social.Clock
	logger logpkg.Logger
	opts   Options

	mu     sync.RWMutex
	cache  map[string]*Live
	byUser map[string]map[string]struct{}
	// byType is the match-time read path. Keeping it keyed by event type is
	// the scaling knob that turns the per-event scan from all subscriptions
	// into only those interested in the type.
	byType map[string]map[string]struct{}
}

// New constructs the registry. Call Rebuild to warm the mirror from the
// store.
func New(st store.Store, clock social.Clock, logger logpkg.Logger, opts Options) *Service {
	if clock == nil {
		clock = social.SystemClock{}
	}
	if logger == nil {
		logger = logpkg.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Hour
	}
	return &Service{
		st:     st,
		clock:  clock,
		logger: logger.With(logpkg.Component("subscriptions")),
		opts:   opts,
		cache:  make(map[string]*Live),
		byUser: make(map[string]map[string]struct{}),
		byType: make(map[string]map[string]struct{}),
	}
}

// Rebuild replaces the in-process mirror with the store's live set.
func (s *Service) Rebuild(ctx context.Context) error {
	subs, err := s.st.ListSubscriptions(ctx)
	if err != nil {
		return fmt.Errorf("rebuild mirror: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]*Live, len(subs))
	s.byUser = make(map[string]map[string]struct{})
	s.byType = make(map[string]map[string]struct{})
	for _, sub := range subs {
		filter, err := newCELFilter(sub.FilterExpr)
		if err != nil {
			// a stored expression that no longer compiles fails closed
			s.logger.Warn("dropping subscription with bad filter expression",
				logpkg.Str("subscription_id", sub.ID), logpkg.Err(err))
			continue
		}
		s.cacheAddLocked(&Live{Sub: sub, filter: filter})
	}
	s.logger.Info("subscription mirror rebuilt", logpkg.Int("live", len(s.cache)))
	return nil
}

// Subscribe creates a subscription for userID expiring after the configured
// timeout.
func (s *Service) Subscribe(ctx context.Context, userID string, eventTypes []string, chans []social.ChannelKind, filters map[string]any, filterExpr string) (*social.Subscription, error) {
	now := s.clock.Now()
	sub := &social.Subscription{
		ID:         uuid.NewString(),
		UserID:     userID,
		EventTypes: eventTypes,
		Channels:   chans,
		Filters:    filters,
		FilterExpr: filterExpr,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.opts.Timeout),
	}
	if err := sub.Validate(); err != nil {
		return nil, err
	}
	filter, err := newCELFilter(filterExpr)
	if err != nil {
		return nil, fmt.Errorf("%w: bad filter expression: %v", social.ErrValidation, err)
	}

	if s.opts.MaxPerUser > 0 {
		live, err := s.userSubscriptions(ctx, userID)
		if err != nil {
			return nil, err
		}
		if len(live) >= s.opts.MaxPerUser {
			return nil, ErrTooManySubscriptions
		}
	}

	if err := s.st.PutSubscription(ctx, sub); err != nil {
		return nil, fmt.Errorf("persist subscription: %w", err)
	}
	if err := s.st.AddUserSubscription(ctx, userID, sub.ID); err != nil {
		return nil, fmt.Errorf("index subscription: %w", err)
	}

	s.mu.Lock()
	s.cacheAddLocked(&Live{Sub: sub, filter: filter})
	s.mu.Unlock()

	s.logger.Debug("subscribed", logpkg.Str("user_id", userID),
		logpkg.Str("subscription_id", sub.ID), logpkg.Int("types", len(eventTypes)))
	return sub, nil
}

// Unsubscribe removes the given event types and channels from every live
// subscription owned by userID. A subscription whose type set or channel set
// empties out is deleted entirely.
func (s *Service) Unsubscribe(ctx context.Context, userID string, eventTypes []string, chans []social.ChannelKind) error {
	subs, err := s.userSubscriptions(ctx, userID)
	if err != nil {
		return err
	}
	for _, sub := range subs {
		narrowedTypes := sub.RemoveEventTypes(eventTypes)
		narrowedChans := sub.RemoveChannels(chans)
		if err := s.applyNarrowing(ctx, sub, narrowedTypes, narrowedChans); err != nil {
			return err
		}
	}
	return nil
}

// CleanupForUser shrinks only the channel sets of userID's subscriptions,
// used on disconnect. Event types are untouched; the empty-set deletion rule
// still applies.
func (s *Service) CleanupForUser(ctx context.Context, userID string, chans []social.ChannelKind) error {
	subs, err := s.userSubscriptions(ctx, userID)
	if err != nil {
		return err
	}
	for _, sub := range subs {
		narrowedChans := sub.RemoveChannels(chans)
		if err := s.applyNarrowing(ctx, sub, sub.EventTypes, narrowedChans); err != nil {
			return err
		}
	}
	return nil
}

// applyNarrowing rewrites or deletes sub according to the narrowed sets,
// keeping the original ExpiresAt on rewrite.
func (s *Service) applyNarrowing(ctx context.Context, sub *social.Subscription, types []string, chans []social.ChannelKind) error {
	if len(types) == len(sub.EventTypes) && len(chans) == len(sub.Channels) {
		return nil // nothing removed
	}
	if len(types) == 0 || len(chans) == 0 {
		return s.delete(ctx, sub)
	}
	narrowed := *sub
	narrowed.EventTypes = types
	narrowed.Channels = chans
	if err := s.st.PutSubscription(ctx, &narrowed); err != nil {
		return fmt.Errorf("rewrite subscription: %w", err)
	}
	filter, _ := newCELFilter(narrowed.FilterExpr)
	s.mu.Lock()
	s.cacheRemoveLocked(sub.ID)
	s.cacheAddLocked(&Live{Sub: &narrowed, filter: filter})
	s.mu.Unlock()
	return nil
}

// SweepExpired deletes every subscription whose expiry has passed from the
// store, the per-user index, and the mirror. Idempotent and safe to run
// concurrently with subscribe traffic.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	now := s.clock.Now()

	// the store elides already-expired records on scan, so collect the ids to
	// purge from both the mirror and the store's physical state
	s.mu.RLock()
	var expired []*social.Subscription
	for _, l := range s.cache {
		if l.Sub.Expired(now) {
			expired = append(expired, l.Sub)
		}
	}
	s.mu.RUnlock()

	removed := 0
	for _, sub := range expired {
		if err := s.delete(ctx, sub); err != nil {
			return removed, err
		}
		removed++
	}
	if removed > 0 {
		s.logger.Info("swept expired subscriptions", logpkg.Int("removed", removed))
	}
	return removed, nil
}

// delete removes a subscription store-first, then index, then cache.
func (s *Service) delete(ctx context.Context, sub *social.Subscription) error {
	if err := s.st.DeleteSubscription(ctx, sub.ID); err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	if err := s.st.RemoveUserSubscription(ctx, sub.UserID, sub.ID); err != nil {
		return fmt.Errorf("unindex subscription: %w", err)
	}
	s.mu.Lock()
	s.cacheRemoveLocked(sub.ID)
	s.mu.Unlock()
	return nil
}

// LiveForType snapshots the live subscriptions interested in eventType.
func (s *Service) LiveForType(eventType string) []*Live {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byType[eventType]
	out := make([]*Live, 0, len(ids))
	for id := range ids {
		if l, ok := s.cache[id]; ok {
			out = append(out, l)
		}
	}
	return out
}

// LiveCount returns the size of the mirror.
func (s *Service) LiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cache)
}

// userSubscriptions reads the user's live subscriptions through the store
// index. A dangling index entry whose record is absent is treated as already
// deleted and removed from the index.
func (s *Service) userSubscriptions(ctx context.Context, userID string) ([]*social.Subscription, error) {
	ids, err := s.st.UserSubscriptionIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("read user index: %w", err)
	}
	var subs []*social.Subscription
	for _, id := range ids {
		sub, err := s.st.GetSubscription(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				// self-heal the dangling entry
				_ = s.st.RemoveUserSubscription(ctx, userID, id)
				s.mu.Lock()
				s.cacheRemoveLocked(id)
				s.mu.Unlock()
				continue
			}
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

func (s *Service) cacheAddLocked(l *Live) {
	s.cache[l.Sub.ID] = l
	u, ok := s.byUser[l.Sub.UserID]
	if !ok {
		u = make(map[string]struct{})
		s.byUser[l.Sub.UserID] = u
	}
	u[l.Sub.ID] = struct{}{}
	for _, t := range l.Sub.EventTypes {
		set, ok := s.byType[t]
		if !ok {
			set = make(map[string]struct{})
			s.byType[t] = set
		}
		set[l.Sub.ID] = struct{}{}
	}
}

func (s *Service) cacheRemoveLocked(id string) {
	l, ok := s.cache[id]
	if !ok {
		return
	}
	delete(s.cache, id)
	if u, ok := s.byUser[l.Sub.UserID]; ok {
		delete(u, id)
		if len(u) == 0 {
			delete(s.byUser, l.Sub.UserID)
		}
	}
	for _, t := range l.Sub.EventTypes {
		if set, ok := s.byType[t]; ok {
			delete(set, id)
			if len(set) == 0 {
				delete(s.byType, t)
			}
		}
	}
}
