// Package subsvc implements the Subscription Registry: the single writer for
// subscription lifecycle (create, narrow, delete, expire) with the store as
// the source of truth and an in-process mirror for match-time reads.
//
// The mirror is a derived index over the store, rebuildable at any time; on
// divergence the store wins. Deletions run store, then per-user index, then
// cache, so a crash mid-operation leaves at worst a dangling index entry,
// which self-heals on the next read.
package subsvc
