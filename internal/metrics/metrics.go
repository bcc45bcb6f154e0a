package metrics

import (
	"time"
)

// Sink records engine counters and timings. Implementations must be safe for
// concurrent use and must never block the caller.
type Sink interface {
	// Count adds n to the named counter bucket.
	Count(bucket string, n int)
	// Timing records a duration sample under the named bucket.
	Timing(bucket string, d time.Duration)
	// Close flushes and releases the sink.
	Close()
}

// Noop is used when no sink is configured.
type Noop struct{}

func (Noop) Count(string, int)            {}
func (Noop) Timing(string, time.Duration) {}
func (Noop) Close()                       {}

var _ Sink = Noop{}
