package channels

import (
	"context"

	"github.com/ChitLaq/ChitLaq-sub005/internal/social"
)

// Sender pushes a matched event to one user over one channel. A send failure
// is isolated by the dispatcher; it never reaches the publisher or sibling
// channels.
type Sender interface {
	// Kind identifies the channel this sender serves.
	Kind() social.ChannelKind
	// Send delivers ev to the user's destinations on this channel.
	Send(ctx context.Context, userID string, ev *social.Event) error
}
