package delivery

import (
	"context"
	"sync"
	"time"

	subsvc "github.com/ChitLaq/ChitLaq-sub005/internal/services/subscriptions"
	"github.com/ChitLaq/ChitLaq-sub005/internal/social"
	"github.com/ChitLaq/ChitLaq-sub005/internal/store"
	logpkg "github.com/ChitLaq/ChitLaq-sub005/pkg/log"
)

// sweepBatchMax bounds how many TTL'd records one pass may purge.
const sweepBatchMax = 1024

// Sweeper periodically evicts expired subscriptions from the registry and
// purges TTL'd records from the store.
type Sweeper struct {
	st       store.Store
	reg      *subsvc.Service
	clock    social.Clock
	logger   logpkg.Logger
	interval time.Duration

	stopCh chan struct{}
	doneWg sync.WaitGroup
}

// NewSweeper wires the background sweep loop.
func NewSweeper(st store.Store, reg *subsvc.Service, clock social.Clock, logger logpkg.Logger, interval time.Duration) *Sweeper {
	if clock == nil {
		clock = social.SystemClock{}
	}
	if logger == nil {
		logger = logpkg.NewNop()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		st:       st,
		reg:      reg,
		clock:    clock,
		logger:   logger.With(logpkg.Component("sweeper")),
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start launches the sweep loop.
func (s *Sweeper) Start() {
	s.doneWg.Add(1)
	go func() {
		defer s.doneWg.Done()
		s.logger.Info("sweeper started", logpkg.Dur("interval", s.interval))
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stopCh:
				return
			case <-ticker.C:
				s.SweepOnce(context.Background())
			}
		}
	}()
}

// Stop halts the loop and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	close(s.stopCh)
	s.doneWg.Wait()
	s.logger.Info("sweeper stopped")
}

// SweepOnce runs a single pass: registry first, then the store's expiry
// index. Errors are logged and the pass continues; the next tick retries.
func (s *Sweeper) SweepOnce(ctx context.Context) {
	if s.reg != nil {
		if _, err := s.reg.SweepExpired(ctx); err != nil {
			s.logger.Error("subscription sweep failed", logpkg.Err(err))
		}
	}
	purged, err := s.st.SweepExpired(ctx, s.clock.Now(), sweepBatchMax)
	if err != nil {
		s.logger.Error("store sweep failed", logpkg.Err(err))
		return
	}
	if purged > 0 {
		s.logger.Debug("purged expired records", logpkg.Int("purged", purged))
	}
}
