package delivery

import (
	"time"

	"github.com/ChitLaq/ChitLaq-sub005/internal/social"
)

// Matches reports whether ev should be delivered under sub at now. The
// subscription must be live, declare the event's type, and accept the
// payload under its key filters. The caller applies any compiled filter
// expression separately.
func Matches(now time.Time, ev *social.Event, sub *social.Subscription) bool {
	if sub.Expired(now) {
		return false
	}
	if !sub.HasEventType(ev.Type) {
		return false
	}
	return social.MatchFilters(ev.Payload, sub.Filters)
}

// DeliveryChannels intersects the event's requested channels with the
// subscription's channel set, preserving the event's order.
func DeliveryChannels(ev *social.Event, sub *social.Subscription) []social.ChannelKind {
	var out []social.ChannelKind
	for _, c := range ev.Channels {
		if sub.HasChannel(c) {
			out = append(out, c)
		}
	}
	return out
}
