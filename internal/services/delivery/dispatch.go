package delivery

import (
	"context"

	"github.com/ChitLaq/ChitLaq-sub005/internal/channels"
	"github.com/ChitLaq/ChitLaq-sub005/internal/metrics"
	"github.com/ChitLaq/ChitLaq-sub005/internal/social"
	logpkg "github.com/ChitLaq/ChitLaq-sub005/pkg/log"
)

// Dispatcher routes one matched event to a user's channel senders. Channels
// can be disabled by configuration; a kind with no registered sender is
// skipped silently so partial deployments keep working.
type Dispatcher struct {
	senders map[social.ChannelKind]channels.Sender
	enabled map[social.ChannelKind]bool
	logger  logpkg.Logger
	sink    metrics.Sink
}

// NewDispatcher builds a dispatcher over the given senders. enabled lists
// the channel kinds configuration allows; nil enables every registered kind.
func NewDispatcher(senders []channels.Sender, enabled []social.ChannelKind, logger logpkg.Logger, sink metrics.Sink) *Dispatcher {
	if logger == nil {
		logger = logpkg.NewNop()
	}
	if sink == nil {
		sink = metrics.Noop{}
	}
	d := &Dispatcher{
		senders: make(map[social.ChannelKind]channels.Sender, len(senders)),
		logger:  logger.With(logpkg.Component("dispatch")),
		sink:    sink,
	}
	for _, s := range senders {
		d.senders[s.Kind()] = s
	}
	if enabled != nil {
		d.enabled = make(map[social.ChannelKind]bool, len(enabled))
		for _, k := range enabled {
			d.enabled[k] = true
		}
	}
	return d
}

// Dispatch sends ev to userID over each of kinds. A failing sender is
// logged and counted; the remaining kinds still run. Returns the number of
// successful sends.
func (d *Dispatcher) Dispatch(ctx context.Context, userID string, ev *social.Event, kinds []social.ChannelKind) int {
	sent := 0
	for _, k := range kinds {
		if d.enabled != nil && !d.enabled[k] {
			continue
		}
		sender, ok := d.senders[k]
		if !ok {
			continue
		}
		if err := sender.Send(ctx, userID, ev); err != nil {
			d.logger.Warn("channel send failed",
				logpkg.Str("channel", string(k)),
				logpkg.Str("user_id", userID),
				logpkg.Str("event_id", ev.ID),
				logpkg.Err(err))
			d.sink.Count("delivery.dropped", 1)
			continue
		}
		sent++
	}
	return sent
}
