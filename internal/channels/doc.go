// Package channels defines the delivery channel contract and the in-process
// transports behind it: a per-user hub used for live and streamed push, and a
// stub mobile-push sender marking the gateway integration point. The
// dispatcher only sees the Sender interface; concrete transports are
// deployment concerns.
package channels
