package store

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/cockroachdb/pebble"
)

// The delivery queue decouples publish latency from delivery latency. Records
// are keyed by (priority rank, sequence) so urgent events pop first and order
// is stable within a rank. A notify channel wakes blocked consumers on
// enqueue, so the pop timeout is a bound rather than a fixed sleep.

// Enqueue appends payload under the given priority rank.
func (s *PebbleStore) Enqueue(ctx context.Context, prio uint32, payload []byte) error {
	s.qmu.Lock()
	defer s.qmu.Unlock()

	b := s.db.NewBatch()
	defer b.Close()

	s.lastSeq++
	seq := s.lastSeq
	if err := b.Set(KeyQueueMsg(prio, seq), payload, nil); err != nil {
		return err
	}
	var meta [8]byte
	binary.BigEndian.PutUint64(meta[:], s.lastSeq)
	if err := b.Set(KeyQueueMeta(), meta[:], nil); err != nil {
		return err
	}
	if err := s.db.CommitBatch(ctx, b); err != nil {
		return err
	}
	s.signalEnqueue()
	return nil
}

// Dequeue pops the next queued record, blocking up to timeout. Returns
// ErrNoEvent when the timeout elapses with nothing available. Each record is
// handed to exactly one caller.
func (s *PebbleStore) Dequeue(ctx context.Context, timeout time.Duration) ([]byte, error) {
	deadline := time.Now().Add(timeout)
	for {
		wait := s.enqueueSignal()
		payload, ok, err := s.popOne(ctx)
		if err != nil {
			return nil, err
		}
		if ok {
			return payload, nil
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, ErrNoEvent
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-wait:
		case <-time.After(remaining):
			return nil, ErrNoEvent
		}
	}
}

// popOne removes and returns the head of the queue, if any.
func (s *PebbleStore) popOne(ctx context.Context) ([]byte, bool, error) {
	s.qmu.Lock()
	defer s.qmu.Unlock()

	prefix := QueueMsgPrefix()
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: prefixUpperBound(prefix)})
	if err != nil {
		return nil, false, err
	}
	defer iter.Close()

	if !iter.First() {
		return nil, false, iter.Error()
	}
	payload := append([]byte(nil), iter.Value()...)
	key := append([]byte(nil), iter.Key()...)

	b := s.db.NewBatch()
	defer b.Close()
	if err := b.Delete(key, nil); err != nil {
		return nil, false, err
	}
	if err := s.db.CommitBatch(ctx, b); err != nil {
		return nil, false, err
	}
	return payload, true, nil
}

// enqueueSignal returns a channel closed by the next Enqueue.
func (s *PebbleStore) enqueueSignal() <-chan struct{} {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	return s.notifyCh
}

func (s *PebbleStore) signalEnqueue() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	close(s.notifyCh)
	s.notifyCh = make(chan struct{})
}
