package eventsvc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ChitLaq/ChitLaq-sub005/internal/metrics"
	"github.com/ChitLaq/ChitLaq-sub005/internal/social"
	"github.com/ChitLaq/ChitLaq-sub005/internal/store"
	"github.com/ChitLaq/ChitLaq-sub005/pkg/id"
	logpkg "github.com/ChitLaq/ChitLaq-sub005/pkg/log"
)

// ErrPublishFailed wraps any storage or queue error during publish. The
// event is not delivered; callers may retry with the same input.
var ErrPublishFailed = errors.New("events: publish failed")

// Publish defaults, applied to fields the caller leaves zero.
const (
	DefaultTTLSeconds = 3600
	DefaultPriority   = social.PriorityMedium
)

// Options tunes the publisher.
type Options struct {
	// HistoryMax caps the per-user recent-event list.
	HistoryMax int
	// HistoryRetention bounds how long the list itself survives.
	HistoryRetention time.Duration
}

// PublishInput is the caller-supplied half of an event. ID and CreatedAt are
// always assigned by the publisher.
type PublishInput struct {
	Type         string
	OriginUserID string
	TargetUserID string
	Payload      map[string]any
	Priority     social.Priority
	Channels     []social.ChannelKind
	TTLSeconds   int
}

// Service validates, persists, and enqueues events.
type Service struct {
	st     store.Store
	clock  social.Clock
	gen    *id.Generator
	logger logpkg.Logger
	sink   metrics.Sink
	opts   Options
}

// New constructs the publisher.
func New(st store.Store, clock social.Clock, logger logpkg.Logger, sink metrics.Sink, opts Options) *Service {
	if clock == nil {
		clock = social.SystemClock{}
	}
	if logger == nil {
		logger = logpkg.NewNop()
	}
	if sink == nil {
		sink = metrics.Noop{}
	}
	if opts.HistoryMax <= 0 {
		opts.HistoryMax = 100
	}
	if opts.HistoryRetention <= 0 {
		opts.HistoryRetention = 7 * 24 * time.Hour
	}
	return &Service{
		st:     st,
		clock:  clock,
		gen:    id.NewGenerator(),
		logger: logger.With(logpkg.Component("events")),
		sink:   sink,
		opts:   opts,
	}
}

// Publish validates in, fills defaults, and commits the event to the store,
// the origin user's history, and the delivery queue. Validation errors are
// returned as-is; everything downstream is wrapped in ErrPublishFailed.
func (s *Service) Publish(ctx context.Context, in PublishInput) (*social.Event, error) {
	ev := &social.Event{
		ID:           s.gen.Next().String(),
		Type:         in.Type,
		OriginUserID: in.OriginUserID,
		TargetUserID: in.TargetUserID,
		Payload:      in.Payload,
		CreatedAt:    s.clock.Now(),
		Priority:     in.Priority,
		Channels:     in.Channels,
		TTLSeconds:   in.TTLSeconds,
	}
	if ev.Priority == "" {
		ev.Priority = DefaultPriority
	}
	if len(ev.Channels) == 0 {
		ev.Channels = []social.ChannelKind{social.ChannelLivePush}
	}
	if ev.TTLSeconds == 0 {
		ev.TTLSeconds = DefaultTTLSeconds
	}
	if err := ev.Validate(); err != nil {
		return nil, err
	}

	if err := s.st.PutEvent(ctx, ev); err != nil {
		return nil, fmt.Errorf("%w: persist event: %v", ErrPublishFailed, err)
	}
	if err := s.st.AppendUserEvent(ctx, ev.OriginUserID, ev.ID, s.opts.HistoryMax, s.opts.HistoryRetention); err != nil {
		return nil, fmt.Errorf("%w: append history: %v", ErrPublishFailed, err)
	}
	payload, err := ev.Encode()
	if err != nil {
		return nil, fmt.Errorf("%w: encode event: %v", ErrPublishFailed, err)
	}
	if err := s.st.Enqueue(ctx, ev.Priority.QueueRank(), payload); err != nil {
		return nil, fmt.Errorf("%w: enqueue: %v", ErrPublishFailed, err)
	}

	s.sink.Count(fmt.Sprintf("publish.%s.%s", ev.Type, ev.Priority), 1)
	s.logger.Debug("event published",
		logpkg.Str("event_id", ev.ID),
		logpkg.Str("type", ev.Type),
		logpkg.Str("priority", string(ev.Priority)))
	return ev, nil
}

// Get looks up a live event by id.
func (s *Service) Get(ctx context.Context, eventID string) (*social.Event, error) {
	return s.st.GetEvent(ctx, eventID)
}

// UserHistory returns the user's recent events, newest last. Ids whose event
// has since expired are skipped.
func (s *Service) UserHistory(ctx context.Context, userID string) ([]*social.Event, error) {
	ids, err := s.st.UserEventIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]*social.Event, 0, len(ids))
	for _, eid := range ids {
		ev, err := s.st.GetEvent(ctx, eid)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}
