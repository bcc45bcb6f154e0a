// Package store implements the engine's Event Store: durable, TTL-bounded
// records for events, subscriptions, per-user indexes, connection bindings,
// and the priority-ordered delivery queue with blocking pop.
//
// All authoritative state lives here. Per-key operations are individually
// atomic (Pebble batches under a single commit); the queue pop hands each
// record to exactly one consumer. Expired records are treated as absent on
// read and purged eagerly by SweepExpired.
package store
