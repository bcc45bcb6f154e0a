// Package eventsvc implements the publish half of the engine: it validates
// and defaults incoming events, assigns time-ordered ids, persists each event
// under its TTL, records it in the origin user's capped history, and enqueues
// it for delivery under its priority rank.
package eventsvc
