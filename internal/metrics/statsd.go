package metrics

import (
	"time"

	"github.com/alexcesaro/statsd"
)

// StatsdSink ships counters and timings to a statsd daemon. The underlying
// client buffers writes and mutes itself when the daemon is unreachable, so
// emission never blocks or errors the hot path.
type StatsdSink struct {
	c *statsd.Client
}

var _ Sink = (*StatsdSink)(nil)

// NewStatsd connects a sink to addr (host:port) under the given prefix.
// On connection failure the returned sink is muted, not nil.
func NewStatsd(addr, prefix string) (*StatsdSink, error) {
	c, err := statsd.New(statsd.Address(addr), statsd.Prefix(prefix))
	// statsd.New returns a muted client alongside the error; keep it so
	// callers can ignore transient daemon unavailability.
	return &StatsdSink{c: c}, err
}

// Count adds n to the named counter bucket.
func (s *StatsdSink) Count(bucket string, n int) {
	s.c.Count(bucket, n)
}

// Timing records a duration sample in milliseconds.
func (s *StatsdSink) Timing(bucket string, d time.Duration) {
	s.c.Timing(bucket, int(d.Milliseconds()))
}

// Close flushes buffered writes.
func (s *StatsdSink) Close() {
	s.c.Close()
}
