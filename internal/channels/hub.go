package channels

import (
	"context"
	"errors"
	"sync"

	"github.com/ChitLaq/ChitLaq-sub005/internal/social"
	logpkg "github.com/ChitLaq/ChitLaq-sub005/pkg/log"
)

// ErrSlowConsumer is returned when at least one attached connection had a
// full buffer and dropped the event.
var ErrSlowConsumer = errors.New("channels: dropped event for slow consumer")

const defaultConnBuffer = 64

// Hub is a per-user addressable destination set for one channel kind. Users
// attach any number of connections; Send fans an event out to all of a
// user's connections without blocking on any of them. A user with no
// attached connections is simply offline; that is not an error.
type Hub struct {
	kind   social.ChannelKind
	buf    int
	logger logpkg.Logger

	mu    sync.RWMutex
	conns map[string]map[*Conn]struct{}
}

var _ Sender = (*Hub)(nil)

// NewHub creates a hub for the given channel kind.
func NewHub(kind social.ChannelKind, logger logpkg.Logger) *Hub {
	if logger == nil {
		logger = logpkg.NewNop()
	}
	return &Hub{
		kind:   kind,
		buf:    defaultConnBuffer,
		logger: logger.With(logpkg.Component("hub"), logpkg.Str("channel", string(kind))),
		conns:  make(map[string]map[*Conn]struct{}),
	}
}

// Kind identifies the channel this hub serves.
func (h *Hub) Kind() social.ChannelKind { return h.kind }

// Attach registers a new connection for userID and returns it.
func (h *Hub) Attach(userID string) *Conn {
	c := &Conn{userID: userID, hub: h, ch: make(chan *social.Event, h.buf)}
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.conns[userID]
	if !ok {
		set = make(map[*Conn]struct{})
		h.conns[userID] = set
	}
	set[c] = struct{}{}
	return c
}

// Detach removes a connection; safe to call more than once.
func (h *Hub) Detach(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.conns[c.userID]
	if !ok {
		return
	}
	if _, attached := set[c]; !attached {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.conns, c.userID)
	}
	c.closeCh()
}

// Send fans ev out to every connection userID has on this hub. Slow
// consumers drop the event rather than block delivery.
func (h *Hub) Send(ctx context.Context, userID string, ev *social.Event) error {
	h.mu.RLock()
	set := h.conns[userID]
	targets := make([]*Conn, 0, len(set))
	for c := range set {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	dropped := 0
	for _, c := range targets {
		if !c.deliver(ev) {
			dropped++
		}
	}
	if dropped > 0 {
		h.logger.Warn("dropped event for slow consumer",
			logpkg.Str("user_id", userID), logpkg.Str("event_id", ev.ID), logpkg.Int("dropped", dropped))
		return ErrSlowConsumer
	}
	return nil
}

// ConnCount returns the number of connections attached for userID.
func (h *Hub) ConnCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID])
}

// Conn is one attached consumer of a user's channel.
type Conn struct {
	userID string
	hub    *Hub

	mu     sync.Mutex
	closed bool
	ch     chan *social.Event
}

// deliver hands ev to the connection without blocking. It reports false when
// the event was dropped, either because the buffer was full or the connection
// is already closed. The conn-level lock orders deliveries against closeCh so
// a detach racing a send can never write to a closed channel.
func (c *Conn) deliver(ev *social.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.ch <- ev:
		return true
	default:
		return false
	}
}

func (c *Conn) closeCh() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.ch)
}

// UserID returns the owner of this connection.
func (c *Conn) UserID() string { return c.userID }

// Events returns the connection's delivery stream. The channel is closed on
// Close.
func (c *Conn) Events() <-chan *social.Event { return c.ch }

// Close detaches the connection from its hub.
func (c *Conn) Close() { c.hub.Detach(c) }
