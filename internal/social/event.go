package social

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrValidation marks malformed publish/subscribe input. It is surfaced
// synchronously; invalid input is never queued.
var ErrValidation = errors.New("validation failed")

// Priority orders events for delivery. Urgent pops before low.
type Priority string

// Priorities, lowest to highest.
const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// QueueRank maps a priority to a queue ordering rank; lower pops first.
func (p Priority) QueueRank() uint32 {
	switch p {
	case PriorityUrgent:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	default:
		return 3
	}
}

// ChannelKind identifies a delivery channel.
type ChannelKind string

// The closed set of delivery channels.
const (
	ChannelLivePush   ChannelKind = "livePush"
	ChannelStreamPush ChannelKind = "streamPush"
	ChannelMobilePush ChannelKind = "mobilePush"
)

// Valid reports whether k is a known channel kind.
func (k ChannelKind) Valid() bool {
	switch k {
	case ChannelLivePush, ChannelStreamPush, ChannelMobilePush:
		return true
	}
	return false
}

// Event is an immutable, timestamped social occurrence. It expires from the
// store after TTLSeconds and is logically dead once expired even if still
// queued.
type Event struct {
	ID           string         `json:"id"`
	Type         string         `json:"type"`
	OriginUserID string         `json:"originUserId"`
	TargetUserID string         `json:"targetUserId,omitempty"`
	Payload      map[string]any `json:"payload,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	Priority     Priority       `json:"priority"`
	Channels     []ChannelKind  `json:"channels"`
	TTLSeconds   int            `json:"ttlSeconds"`
}

// Validate checks the event invariants: non-empty id/type/origin, known
// priority, non-empty valid channel set, positive TTL.
func (e *Event) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("%w: event id is empty", ErrValidation)
	}
	if e.Type == "" {
		return fmt.Errorf("%w: event type is empty", ErrValidation)
	}
	if e.OriginUserID == "" {
		return fmt.Errorf("%w: origin user id is empty", ErrValidation)
	}
	if !e.Priority.Valid() {
		return fmt.Errorf("%w: unknown priority %q", ErrValidation, e.Priority)
	}
	if len(e.Channels) == 0 {
		return fmt.Errorf("%w: channel set is empty", ErrValidation)
	}
	for _, c := range e.Channels {
		if !c.Valid() {
			return fmt.Errorf("%w: unknown channel %q", ErrValidation, c)
		}
	}
	if e.TTLSeconds <= 0 {
		return fmt.Errorf("%w: ttlSeconds must be positive", ErrValidation)
	}
	return nil
}

// ExpiresAt returns the moment the event dies in the store.
func (e *Event) ExpiresAt() time.Time {
	return e.CreatedAt.Add(time.Duration(e.TTLSeconds) * time.Second)
}

// Expired reports whether the event is logically dead at now.
func (e *Event) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt())
}

// Encode serializes the event for storage and queueing.
func (e *Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// DecodeEvent deserializes an event record.
func DecodeEvent(b []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	return &e, nil
}
