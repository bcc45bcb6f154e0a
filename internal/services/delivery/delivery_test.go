package delivery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ChitLaq/ChitLaq-sub005/internal/channels"
	subsvc "github.com/ChitLaq/ChitLaq-sub005/internal/services/subscriptions"
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

type sent struct {
	userID  string
	eventID string
}

type recordingSender struct {
	kind social.ChannelKind
	mu   sync.Mutex
	got  []sent
	err  error
}

func (s *recordingSender) Kind() social.ChannelKind { return s.kind }

func (s *recordingSender) Send(_ context.Context, userID string, ev *social.Event) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	s.got = append(s.got, sent{userID: userID, eventID: ev.ID})
	s.mu.Unlock()
	return nil
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

func (s *recordingSender) deliveries() []sent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sent(nil), s.got...)
}

func openTestStore(t *testing.T, clock social.Clock) store.Store {
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
	return st
}

func testEvent(clock social.Clock) *social.Event {
	return &social.Event{
		ID:           "e1",
		Type:         "post_created",
		OriginUserID: "origin",
		Payload:      map[string]any{"topic": "go"},
		CreatedAt:    clock.Now(),
		Priority:     social.PriorityMedium,
		Channels:     []social.ChannelKind{social.ChannelLivePush, social.ChannelMobilePush},
		TTLSeconds:   60,
	}
}

func TestMatches(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	ev := testEvent(clock)
	sub := &social.Subscription{
		ID:         "s1",
		UserID:     "u1",
		EventTypes: []string{"post_created"},
		Channels:   []social.ChannelKind{social.ChannelLivePush},
		CreatedAt:  clock.Now(),
		ExpiresAt:  clock.Now().Add(time.Hour),
	}

	if !Matches(clock.Now(), ev, sub) {
		t.Fatal("expected match")
	}

	other := *sub
	other.EventTypes = []string{"comment_added"}
	if Matches(clock.Now(), ev, &other) {
		t.Fatal("matched wrong event type")
	}

	if Matches(clock.Now().Add(2*time.Hour), ev, sub) {
		t.Fatal("matched expired subscription")
	}

	filtered := *sub
	filtered.Filters = map[string]any{"topic": "rust"}
	if Matches(clock.Now(), ev, &filtered) {
		t.Fatal("matched against failing key filter")
	}
	filtered.Filters = map[string]any{"topic": "go"}
	if !Matches(clock.Now(), ev, &filtered) {
		t.Fatal("rejected passing key filter")
	}
}

func TestDeliveryChannels(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	ev := testEvent(clock)
	sub := &social.Subscription{
		Channels: []social.ChannelKind{social.ChannelMobilePush, social.ChannelStreamPush},
	}
	got := DeliveryChannels(ev, sub)
	if len(got) != 1 || got[0] != social.ChannelMobilePush {
		t.Fatalf("channels = %v, want [mobilePush]", got)
	}
	if got := DeliveryChannels(ev, &social.Subscription{Channels: []social.ChannelKind{social.ChannelStreamPush}}); len(got) != 0 {
		t.Fatalf("disjoint sets produced %v", got)
	}
}

func TestDispatcherIsolatesFailingSender(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	ev := testEvent(clock)
	broken := &recordingSender{kind: social.ChannelLivePush, err: errors.New("socket gone")}
	healthy := &recordingSender{kind: social.ChannelMobilePush}
	d := NewDispatcher([]channels.Sender{broken, healthy}, nil, logpkg.NewNop(), nil)

	sentN := d.Dispatch(context.Background(), "u1", ev,
		[]social.ChannelKind{social.ChannelLivePush, social.ChannelMobilePush})
	if sentN != 1 {
		t.Fatalf("sent = %d, want 1", sentN)
	}
	if got := healthy.deliveries(); len(got) != 1 || got[0].userID != "u1" {
		t.Fatalf("healthy sender deliveries = %v", got)
	}
}

func TestDispatcherHonorsEnabledSet(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	ev := testEvent(clock)
	live := &recordingSender{kind: social.ChannelLivePush}
	mobile := &recordingSender{kind: social.ChannelMobilePush}
	d := NewDispatcher([]channels.Sender{live, mobile},
		[]social.ChannelKind{social.ChannelLivePush}, logpkg.NewNop(), nil)

	sentN := d.Dispatch(context.Background(), "u1", ev,
		[]social.ChannelKind{social.ChannelLivePush, social.ChannelMobilePush})
	if sentN != 1 {
		t.Fatalf("sent = %d, want 1", sentN)
	}
	if len(mobile.deliveries()) != 0 {
		t.Fatal("disabled channel still delivered")
	}
	if len(live.deliveries()) != 1 {
		t.Fatal("enabled channel did not deliver")
	}
}

func TestProcessOneDeliversToMatchingSubscribers(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	st := openTestStore(t, clock)
	reg := subsvc.New(st, clock, logpkg.NewNop(), subsvc.Options{Timeout: time.Hour})
	ctx := context.Background()

	if _, err := reg.Subscribe(ctx, "u1", []string{"post_created"},
		[]social.ChannelKind{social.ChannelLivePush}, nil, ""); err != nil {
		t.Fatalf("subscribe u1: %v", err)
	}
	if _, err := reg.Subscribe(ctx, "u2", []string{"comment_added"},
		[]social.ChannelKind{social.ChannelLivePush}, nil, ""); err != nil {
		t.Fatalf("subscribe u2: %v", err)
	}

	sender := &recordingSender{kind: social.ChannelLivePush}
	sink := &countingSink{}
	d := NewDispatcher([]channels.Sender{sender}, nil, logpkg.NewNop(), nil)
	p := NewProcessor(st, reg, d, clock, logpkg.NewNop(), sink, ProcessorOptions{})

	ev := testEvent(clock)
	payload, err := ev.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	p.ProcessOne(ctx, payload)

	got := sender.deliveries()
	if len(got) != 1 || got[0].userID != "u1" || got[0].eventID != "e1" {
		t.Fatalf("deliveries = %v, want one to u1", got)
	}
	if n := sink.get("delivery.delivered.post_created.medium"); n != 1 {
		t.Fatalf("delivered counter = %d, want 1", n)
	}
}

func TestProcessOneDropsExpiredAndMalformed(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	st := openTestStore(t, clock)
	reg := subsvc.New(st, clock, logpkg.NewNop(), subsvc.Options{Timeout: time.Hour})
	ctx := context.Background()

	if _, err := reg.Subscribe(ctx, "u1", []string{"post_created"},
		[]social.ChannelKind{social.ChannelLivePush}, nil, ""); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	sender := &recordingSender{kind: social.ChannelLivePush}
	d := NewDispatcher([]channels.Sender{sender}, nil, logpkg.NewNop(), nil)
	p := NewProcessor(st, reg, d, clock, logpkg.NewNop(), nil, ProcessorOptions{})

	p.ProcessOne(ctx, []byte("{not json"))

	ev := testEvent(clock)
	payload, err := ev.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	clock.Advance(2 * time.Minute) // past the 60s TTL
	p.ProcessOne(ctx, payload)

	if got := sender.deliveries(); len(got) != 0 {
		t.Fatalf("deliveries = %v, want none", got)
	}
}

func TestProcessOneRespectsFilterExpression(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	st := openTestStore(t, clock)
	reg := subsvc.New(st, clock, logpkg.NewNop(), subsvc.Options{Timeout: time.Hour})
	ctx := context.Background()

	if _, err := reg.Subscribe(ctx, "u1", []string{"post_created"},
		[]social.ChannelKind{social.ChannelLivePush}, nil, `payload.topic == "go"`); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	sender := &recordingSender{kind: social.ChannelLivePush}
	d := NewDispatcher([]channels.Sender{sender}, nil, logpkg.NewNop(), nil)
	p := NewProcessor(st, reg, d, clock, logpkg.NewNop(), nil, ProcessorOptions{})

	ev := testEvent(clock)
	payload, _ := ev.Encode()
	p.ProcessOne(ctx, payload)
	if len(sender.deliveries()) != 1 {
		t.Fatal("matching payload not delivered")
	}

	ev.ID = "e2"
	ev.Payload = map[string]any{"topic": "rust"}
	payload, _ = ev.Encode()
	p.ProcessOne(ctx, payload)
	if got := sender.deliveries(); len(got) != 1 {
		t.Fatalf("filtered payload delivered: %v", got)
	}
}

func TestSweeperPurgesExpiredState(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	st := openTestStore(t, clock)
	reg := subsvc.New(st, clock, logpkg.NewNop(), subsvc.Options{Timeout: time.Minute})
	ctx := context.Background()

	if _, err := reg.Subscribe(ctx, "u1", []string{"post_created"},
		[]social.ChannelKind{social.ChannelLivePush}, nil, ""); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	ev := testEvent(clock)
	if err := st.PutEvent(ctx, ev); err != nil {
		t.Fatalf("put event: %v", err)
	}

	clock.Advance(2 * time.Minute)
	sw := NewSweeper(st, reg, clock, logpkg.NewNop(), time.Minute)
	sw.SweepOnce(ctx)

	if n := reg.LiveCount(); n != 0 {
		t.Fatalf("live subscriptions after sweep = %d, want 0", n)
	}
	if _, err := st.GetEvent(ctx, ev.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expired event survived sweep, err = %v", err)
	}

	// An event that would have matched the swept subscription goes nowhere.
	sender := &recordingSender{kind: social.ChannelLivePush}
	d := NewDispatcher([]channels.Sender{sender}, nil, logpkg.NewNop(), nil)
	p := NewProcessor(st, reg, d, clock, logpkg.NewNop(), nil, ProcessorOptions{})
	fresh := testEvent(clock)
	fresh.ID = "e2"
	payload, err := fresh.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	p.ProcessOne(ctx, payload)
	if got := sender.deliveries(); len(got) != 0 {
		t.Fatalf("deliveries after sweep = %v, want none", got)
	}
}
