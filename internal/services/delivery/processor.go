package delivery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ChitLaq/ChitLaq-sub005/internal/metrics"
	subsvc "github.com/ChitLaq/ChitLaq-sub005/internal/services/subscriptions"
	"github.com/ChitLaq/ChitLaq-sub005/internal/social"
	"github.com/ChitLaq/ChitLaq-sub005/internal/store"
	logpkg "github.com/ChitLaq/ChitLaq-sub005/pkg/log"
)

// Registry is the processor's view of the subscription mirror.
type Registry interface {
	LiveForType(eventType string) []*subsvc.Live
}

// ProcessorOptions tunes the queue consumer loop.
type ProcessorOptions struct {
	// PollInterval paces the idle loop.
	PollInterval time.Duration
	// PopTimeout bounds each blocking pop; clamped to PollInterval.
	PopTimeout time.Duration
}

// Processor is the sole queue consumer. Each tick it drains the queue,
// matching every popped event against the live subscription set and handing
// the matches to the dispatcher, so a burst clears within one tick.
type Processor struct {
	st     store.Store
	reg    Registry
	disp   *Dispatcher
	clock  social.Clock
	logger logpkg.Logger
	sink   metrics.Sink
	opts   ProcessorOptions

	stopCh chan struct{}
	doneWg sync.WaitGroup
}

// NewProcessor wires the consumer loop. Start must be called to run it.
func NewProcessor(st store.Store, reg Registry, disp *Dispatcher, clock social.Clock, logger logpkg.Logger, sink metrics.Sink, opts ProcessorOptions) *Processor {
	if clock == nil {
		clock = social.SystemClock{}
	}
	if logger == nil {
		logger = logpkg.NewNop()
	}
	if sink == nil {
		sink = metrics.Noop{}
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.PopTimeout <= 0 || opts.PopTimeout > opts.PollInterval {
		opts.PopTimeout = opts.PollInterval
	}
	return &Processor{
		st:     st,
		reg:    reg,
		disp:   disp,
		clock:  clock,
		logger: logger.With(logpkg.Component("processor")),
		sink:   sink,
		opts:   opts,
		stopCh: make(chan struct{}),
	}
}

// Start launches the consumer loop.
func (p *Processor) Start() {
	p.doneWg.Add(1)
	go func() {
		defer p.doneWg.Done()
		p.logger.Info("delivery processor started",
			logpkg.Dur("poll_interval", p.opts.PollInterval))
		ticker := time.NewTicker(p.opts.PollInterval)
		defer ticker.Stop()
		for {
			p.drain()
			select {
			case <-p.stopCh:
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop halts the loop and waits for the in-flight tick to finish.
func (p *Processor) Stop() {
	close(p.stopCh)
	p.doneWg.Wait()
	p.logger.Info("delivery processor stopped")
}

// drain pops until the queue is empty or a stop is requested.
func (p *Processor) drain() {
	ctx := context.Background()
	for {
		select {
		case <-p.stopCh:
			return
		default:
		}
		payload, err := p.st.Dequeue(ctx, p.opts.PopTimeout)
		if err != nil {
			if !errors.Is(err, store.ErrNoEvent) {
				p.logger.Error("queue pop failed", logpkg.Err(err))
			}
			return
		}
		p.ProcessOne(ctx, payload)
	}
}

// ProcessOne matches and dispatches a single queued record. Malformed
// records and events that expired while queued are dropped.
func (p *Processor) ProcessOne(ctx context.Context, payload []byte) {
	ev, err := social.DecodeEvent(payload)
	if err != nil {
		p.logger.Error("dropping malformed queue record", logpkg.Err(err))
		p.sink.Count("delivery.malformed", 1)
		return
	}
	now := p.clock.Now()
	if ev.Expired(now) {
		p.logger.Debug("dropping expired event", logpkg.Str("event_id", ev.ID))
		p.sink.Count("delivery.expired", 1)
		return
	}

	delivered := 0
	for _, live := range p.reg.LiveForType(ev.Type) {
		if !Matches(now, ev, live.Sub) {
			continue
		}
		if !live.EvalFilter(ev) {
			continue
		}
		kinds := DeliveryChannels(ev, live.Sub)
		if len(kinds) == 0 {
			continue
		}
		delivered += p.disp.Dispatch(ctx, live.Sub.UserID, ev, kinds)
	}
	if delivered > 0 {
		// the increment carries the subscriber count for this event
		p.sink.Count(fmt.Sprintf("delivery.delivered.%s.%s", ev.Type, ev.Priority), delivered)
	}
	p.sink.Timing("delivery.latency_ms", p.clock.Now().Sub(ev.CreatedAt))
}
