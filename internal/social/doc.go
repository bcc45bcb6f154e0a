// Package social defines the engine's domain model: events, subscriptions,
// priorities, delivery channels, payload filter semantics, and the Clock used
// to make time injectable.
package social
