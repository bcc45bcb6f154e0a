package channels

import (
	"context"

	"github.com/ChitLaq/ChitLaq-sub005/internal/social"
	logpkg "github.com/ChitLaq/ChitLaq-sub005/pkg/log"
)

// MobilePush is the integration point for a mobile push gateway. Deployments
// without a gateway run this stub, which accepts every send as a no-op.
type MobilePush struct {
	logger logpkg.Logger
}

var _ Sender = (*MobilePush)(nil)

// NewMobilePush creates the stub sender.
func NewMobilePush(logger logpkg.Logger) *MobilePush {
	if logger == nil {
		logger = logpkg.NewNop()
	}
	return &MobilePush{logger: logger.With(logpkg.Component("mobile-push"))}
}

// Kind identifies the mobile push channel.
func (m *MobilePush) Kind() social.ChannelKind { return social.ChannelMobilePush }

// Send accepts the event without delivering anywhere.
func (m *MobilePush) Send(ctx context.Context, userID string, ev *social.Event) error {
	m.logger.Debug("mobile push not configured, dropping",
		logpkg.Str("user_id", userID), logpkg.Str("event_id", ev.ID))
	return nil
}
