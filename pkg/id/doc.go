// Package id generates time-ordered unique identifiers for events.
//
// An ID is 16 bytes: an 8-byte millisecond timestamp, a 4-byte per-process
// sequence, and a 4-byte random suffix, hex-encoded for transport. The
// timestamp prefix makes IDs sort roughly chronologically; the random suffix
// keeps IDs from colliding across engine instances sharing a store.
package id
