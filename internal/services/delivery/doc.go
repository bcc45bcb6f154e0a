// Package delivery drains the queue and fans matched events out to channel
// senders. The processor is the queue's only consumer loop; matching is a
// pure function over the registry's live set; the dispatcher isolates
// per-channel failures so one broken channel never blocks the rest. A
// background sweeper evicts expired subscriptions and TTL'd records.
package delivery
