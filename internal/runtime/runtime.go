package runtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/ChitLaq/ChitLaq-sub005/internal/channels"
	cfgpkg "github.com/ChitLaq/ChitLaq-sub005/internal/config"
	"github.com/ChitLaq/ChitLaq-sub005/internal/metrics"
	"github.com/ChitLaq/ChitLaq-sub005/internal/services/delivery"
	eventsvc "github.com/ChitLaq/ChitLaq-sub005/internal/services/events"
	subsvc "github.com/ChitLaq/ChitLaq-sub005/internal/services/subscriptions"
	"github.com/ChitLaq/ChitLaq-sub005/internal/social"
	"github.com/ChitLaq/ChitLaq-sub005/internal/store"
	pebblestore "github.com/ChitLaq/ChitLaq-sub005/internal/storage/pebble"
	logpkg "github.com/ChitLaq/ChitLaq-sub005/pkg/log"
)

// Options for building the Runtime.
type Options struct {
	Config cfgpkg.Config
	Logger logpkg.Logger
	// Clock overrides the system clock; nil uses real time.
	Clock social.Clock
}

// Runtime wires storage, services, and background loops for a single-node
// instance.
type Runtime struct {
	config cfgpkg.Config
	logger logpkg.Logger
	clock  social.Clock

	db   *pebblestore.DB
	st   store.Store
	sink metrics.Sink

	events        *eventsvc.Service
	subscriptions *subsvc.Service
	liveHub       *channels.Hub
	streamHub     *channels.Hub

	processor *delivery.Processor
	sweeper   *delivery.Sweeper

	started bool
}

// Open initializes storage and wires every service. Background loops are not
// running until Start.
func Open(opts Options) (*Runtime, error) {
	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewNop()
	}
	clock := opts.Clock
	if clock == nil {
		clock = social.SystemClock{}
	}

	fsync, err := pebblestore.ParseFsyncMode(cfg.Fsync)
	if err != nil {
		return nil, err
	}
	db, err := pebblestore.Open(pebblestore.Options{DataDir: cfg.DataDir, Fsync: fsync})
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	st, err := store.Open(db, clock)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open store: %w", err)
	}

	var sink metrics.Sink = metrics.Noop{}
	if cfg.StatsdAddr != "" {
		s, err := metrics.NewStatsd(cfg.StatsdAddr, "chitlaq")
		if err != nil {
			logger.Warn("statsd unreachable, metrics muted", logpkg.Err(err))
		}
		sink = s
	}

	subs := subsvc.New(st, clock, logger, subsvc.Options{
		Timeout:    cfg.SubscriptionTimeout(),
		MaxPerUser: cfg.MaxSubscriptionsPerUser,
	})
	events := eventsvc.New(st, clock, logger, sink, eventsvc.Options{
		HistoryMax:       cfg.EventHistoryMax,
		HistoryRetention: cfg.EventHistoryRetention(),
	})

	liveHub := channels.NewHub(social.ChannelLivePush, logger)
	streamHub := channels.NewHub(social.ChannelStreamPush, logger)
	senders := []channels.Sender{liveHub, streamHub, channels.NewMobilePush(logger)}

	disp := delivery.NewDispatcher(senders, enabledChannels(cfg.Channels), logger, sink)
	proc := delivery.NewProcessor(st, subs, disp, clock, logger, sink, delivery.ProcessorOptions{
		PollInterval: cfg.QueuePollInterval(),
		PopTimeout:   cfg.QueuePopTimeout(),
	})
	sweep := delivery.NewSweeper(st, subs, clock, logger, cfg.SweepInterval())

	return &Runtime{
		config:        cfg,
		logger:        logger.With(logpkg.Component("runtime")),
		clock:         clock,
		db:            db,
		st:            st,
		sink:          sink,
		events:        events,
		subscriptions: subs,
		liveHub:       liveHub,
		streamHub:     streamHub,
		processor:     proc,
		sweeper:       sweep,
	}, nil
}

// Start warms the subscription mirror and launches the background loops.
func (r *Runtime) Start(ctx context.Context) error {
	if r.started {
		return nil
	}
	if err := r.subscriptions.Rebuild(ctx); err != nil {
		return err
	}
	r.processor.Start()
	r.sweeper.Start()
	r.started = true
	r.logger.Info("engine started", logpkg.Str("data_dir", r.config.DataDir))
	return nil
}

// Stop halts the background loops. Safe to call once after Start.
func (r *Runtime) Stop() {
	if !r.started {
		return
	}
	r.processor.Stop()
	r.sweeper.Stop()
	r.started = false
}

// Close releases storage and the metrics sink. Call Stop first when started.
func (r *Runtime) Close() error {
	r.Stop()
	r.sink.Close()
	if r.st == nil {
		return nil
	}
	return r.st.Close()
}

// CheckHealth verifies the storage layer answers reads.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if r.db == nil {
		return errors.New("db not open")
	}
	it, err := r.db.NewIter(nil)
	if err != nil {
		return err
	}
	return it.Close()
}

// Events returns the publisher service.
func (r *Runtime) Events() *eventsvc.Service { return r.events }

// Subscriptions returns the subscription registry.
func (r *Runtime) Subscriptions() *subsvc.Service { return r.subscriptions }

// LiveHub returns the in-process live push hub.
func (r *Runtime) LiveHub() *channels.Hub { return r.liveHub }

// StreamHub returns the SSE stream hub.
func (r *Runtime) StreamHub() *channels.Hub { return r.streamHub }

// Store exposes the underlying store for connection bindings.
func (r *Runtime) Store() store.Store { return r.st }

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config { return r.config }

func enabledChannels(flags cfgpkg.ChannelFlags) []social.ChannelKind {
	var out []social.ChannelKind
	if flags.LivePush {
		out = append(out, social.ChannelLivePush)
	}
	if flags.StreamPush {
		out = append(out, social.ChannelStreamPush)
	}
	if flags.MobilePush {
		out = append(out, social.ChannelMobilePush)
	}
	return out
}
