package eventsvc

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ChitLaq/ChitLaq-sub005/internal/social"
	"github.com/ChitLaq/ChitLaq-sub005/internal/store"
	pebblestore "github.com/ChitLaq/ChitLaq-sub005/internal/storage/pebble"
	logpkg "github.com/ChitLaq/ChitLaq-sub005/pkg/log"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type countingSink struct {
	mu      sync.Mutex
	buckets map[string]int
}

func (s *countingSink) Count(bucket string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.buckets == nil {
		s.buckets = make(map[string]int)
	}
	s.buckets[bucket] += n
}

func (s *countingSink) Timing(string, time.Duration) {}
func (s *countingSink) Close()                       {}

func (s *countingSink) get(bucket string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buckets[bucket]
}

func openTestPublisher(t *testing.T, clock social.Clock, opts Options) (*Service, store.Store, *countingSink) {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	st, err := store.Open(db, clock)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	sink := &countingSink{}
	return New(st, clock, logpkg.NewNop(), sink, opts), st, sink
}

func TestPublishPersistsAndEnqueues(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	svc, st, sink := openTestPublisher(t, clock, Options{})
	ctx := context.Background()

	ev, err := svc.Publish(ctx, PublishInput{
		Type:         "post_created",
		OriginUserID: "u1",
		Payload:      map[string]any{"postId": "p1"},
		Priority:     social.PriorityHigh,
		Channels:     []social.ChannelKind{social.ChannelLivePush},
		TTLSeconds:   60,
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if ev.ID == "" {
		t.Fatal("empty event id")
	}
	if !ev.CreatedAt.Equal(clock.Now()) {
		t.Fatalf("createdAt = %v, want clock time", ev.CreatedAt)
	}

	got, err := st.GetEvent(ctx, ev.ID)
	if err != nil {
		t.Fatalf("get persisted event: %v", err)
	}
	if got.Type != "post_created" || got.Payload["postId"] != "p1" {
		t.Fatalf("persisted event = %+v", got)
	}

	payload, err := st.Dequeue(ctx, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	queued, err := social.DecodeEvent(payload)
	if err != nil {
		t.Fatalf("decode queued event: %v", err)
	}
	if queued.ID != ev.ID {
		t.Fatalf("queued event id = %s, want %s", queued.ID, ev.ID)
	}

	if n := sink.get("publish.post_created.high"); n != 1 {
		t.Fatalf("publish counter = %d, want 1", n)
	}
}

func TestPublishDefaults(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	svc, _, _ := openTestPublisher(t, clock, Options{})
	ctx := context.Background()

	ev, err := svc.Publish(ctx, PublishInput{Type: "follow_added", OriginUserID: "u1"})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if ev.Priority != social.PriorityMedium {
		t.Fatalf("default priority = %s, want medium", ev.Priority)
	}
	if len(ev.Channels) != 1 || ev.Channels[0] != social.ChannelLivePush {
		t.Fatalf("default channels = %v, want [livePush]", ev.Channels)
	}
	if ev.TTLSeconds != DefaultTTLSeconds {
		t.Fatalf("default ttl = %d, want %d", ev.TTLSeconds, DefaultTTLSeconds)
	}
}

func TestPublishValidation(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	svc, st, _ := openTestPublisher(t, clock, Options{})
	ctx := context.Background()

	cases := []PublishInput{
		{OriginUserID: "u1"},                                      // no type
		{Type: "post_created"},                                    // no origin
		{Type: "post_created", OriginUserID: "u1", TTLSeconds: -5},
		{Type: "post_created", OriginUserID: "u1", Priority: "critical"},
		{Type: "post_created", OriginUserID: "u1", Channels: []social.ChannelKind{"smoke_signal"}},
	}
	for i, in := range cases {
		if _, err := svc.Publish(ctx, in); !errors.Is(err, social.ErrValidation) {
			t.Fatalf("case %d: err = %v, want ErrValidation", i, err)
		}
	}

	// nothing was queued by the rejected publishes
	if _, err := st.Dequeue(ctx, 50*time.Millisecond); !errors.Is(err, store.ErrNoEvent) {
		t.Fatalf("dequeue after rejects: err = %v, want ErrNoEvent", err)
	}
}

func TestUserHistorySkipsExpired(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	svc, _, _ := openTestPublisher(t, clock, Options{})
	ctx := context.Background()

	short, err := svc.Publish(ctx, PublishInput{Type: "post_created", OriginUserID: "u1", TTLSeconds: 30})
	if err != nil {
		t.Fatalf("publish short: %v", err)
	}
	long, err := svc.Publish(ctx, PublishInput{Type: "comment_added", OriginUserID: "u1", TTLSeconds: 3600})
	if err != nil {
		t.Fatalf("publish long: %v", err)
	}
	_ = short

	clock.Advance(time.Minute)
	hist, err := svc.UserHistory(ctx, "u1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist) != 1 || hist[0].ID != long.ID {
		t.Fatalf("history = %v, want only the long-lived event", hist)
	}
}

func TestUserHistoryCapped(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	svc, _, _ := openTestPublisher(t, clock, Options{HistoryMax: 3})
	ctx := context.Background()

	var last *social.Event
	for i := 0; i < 5; i++ {
		ev, err := svc.Publish(ctx, PublishInput{Type: "post_created", OriginUserID: "u1"})
		if err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
		last = ev
	}

	hist, err := svc.UserHistory(ctx, "u1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist) != 3 {
		t.Fatalf("history length = %d, want 3", len(hist))
	}
	if hist[len(hist)-1].ID != last.ID {
		t.Fatalf("newest history entry = %s, want %s", hist[len(hist)-1].ID, last.ID)
	}
}

func TestPublishIDsAreTimeOrdered(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	svc, _, _ := openTestPublisher(t, clock, Options{})
	ctx := context.Background()

	a, err := svc.Publish(ctx, PublishInput{Type: "post_created", OriginUserID: "u1"})
	if err != nil {
		t.Fatalf("publish a: %v", err)
	}
	b, err := svc.Publish(ctx, PublishInput{Type: "post_created", OriginUserID: "u1"})
	if err != nil {
		t.Fatalf("publish b: %v", err)
	}
	if !(a.ID < b.ID) {
		t.Fatalf("ids not ordered: %s then %s", a.ID, b.ID)
	}
}
