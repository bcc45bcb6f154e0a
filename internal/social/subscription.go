package social

import (
	"encoding/json"
	"fmt"
	"time"
)

// Subscription is a user's declared interest in a set of event types over a
// set of channels, optionally narrowed by payload filters, with a fixed
// expiry. The Subscription Registry is its only writer.
type Subscription struct {
	ID         string         `json:"subscriptionId"`
	UserID     string         `json:"userId"`
	EventTypes []string       `json:"eventTypes"`
	Channels   []ChannelKind  `json:"channels"`
	Filters    map[string]any `json:"filters,omitempty"`
	// FilterExpr is an optional CEL expression narrowing matches further.
	FilterExpr string    `json:"filterExpr,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// Validate checks the creation invariants: both sets non-empty and well
// formed, filter values of supported kinds.
func (s *Subscription) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("%w: subscription id is empty", ErrValidation)
	}
	if s.UserID == "" {
		return fmt.Errorf("%w: user id is empty", ErrValidation)
	}
	if len(s.EventTypes) == 0 {
		return fmt.Errorf("%w: event type set is empty", ErrValidation)
	}
	for _, et := range s.EventTypes {
		if et == "" {
			return fmt.Errorf("%w: empty event type", ErrValidation)
		}
	}
	if len(s.Channels) == 0 {
		return fmt.Errorf("%w: channel set is empty", ErrValidation)
	}
	for _, c := range s.Channels {
		if !c.Valid() {
			return fmt.Errorf("%w: unknown channel %q", ErrValidation, c)
		}
	}
	for k, v := range s.Filters {
		if !SupportedFilterValue(v) {
			return fmt.Errorf("%w: filter %q has unsupported value kind %T", ErrValidation, k, v)
		}
	}
	return nil
}

// Expired reports whether the subscription is dead at now.
func (s *Subscription) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// HasEventType reports membership in the event type set.
func (s *Subscription) HasEventType(t string) bool {
	for _, et := range s.EventTypes {
		if et == t {
			return true
		}
	}
	return false
}

// HasChannel reports membership in the channel set.
func (s *Subscription) HasChannel(k ChannelKind) bool {
	for _, c := range s.Channels {
		if c == k {
			return true
		}
	}
	return false
}

// RemoveEventTypes returns the event type set minus the given types.
func (s *Subscription) RemoveEventTypes(types []string) []string {
	drop := make(map[string]struct{}, len(types))
	for _, t := range types {
		drop[t] = struct{}{}
	}
	var kept []string
	for _, et := range s.EventTypes {
		if _, gone := drop[et]; !gone {
			kept = append(kept, et)
		}
	}
	return kept
}

// RemoveChannels returns the channel set minus the given channels.
func (s *Subscription) RemoveChannels(channels []ChannelKind) []ChannelKind {
	drop := make(map[ChannelKind]struct{}, len(channels))
	for _, c := range channels {
		drop[c] = struct{}{}
	}
	var kept []ChannelKind
	for _, c := range s.Channels {
		if _, gone := drop[c]; !gone {
			kept = append(kept, c)
		}
	}
	return kept
}

// Encode serializes the subscription for storage.
func (s *Subscription) Encode() ([]byte, error) {
	return json.Marshal(s)
}

// DecodeSubscription deserializes a subscription record.
func DecodeSubscription(b []byte) (*Subscription, error) {
	var s Subscription
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("decode subscription: %w", err)
	}
	return &s, nil
}
