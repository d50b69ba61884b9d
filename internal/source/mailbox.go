package source

import (
	"sync"
)

// mailbox is the manager's control-plane inbox: a thread-safe FIFO.
//
// The mailbox is unbounded on purpose. Contraflow (acks, fails, drain
// acknowledgments, breaker state) must always be accepted immediately: a
// bounded contraflow channel can deadlock against the bounded forward
// path when both run full. Contraflow volume per event is bounded by the
// pipeline fan-out, so the queue cannot grow without bound in practice.
//
// A buffered signal channel of size one lets the manager loop wait for
// work with a plain select, keeping it responsive to context
// cancellation.
type mailbox struct {
	mu     sync.Mutex
	msgs   []Msg
	closed bool
	signal chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{
		msgs:   make([]Msg, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue appends a message. Never blocks. Returns false if the mailbox
// is closed.
func (q *mailbox) Enqueue(m Msg) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.msgs = append(q.msgs, m)

	// Coalesced availability signal.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue pops the front message without blocking.
func (q *mailbox) TryDequeue() (Msg, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.msgs) == 0 {
		return nil, false
	}
	m := q.msgs[0]

	// Nil the slot so the backing array does not retain the message.
	q.msgs[0] = nil
	if len(q.msgs) == 1 {
		q.msgs = q.msgs[:0]
	} else {
		q.msgs = q.msgs[1:]
	}
	return m, true
}

// Wait returns a channel that fires when messages may be available.
// Combine with TryDequeue in a select against the caller's context.
func (q *mailbox) Wait() <-chan struct{} {
	return q.signal
}

// Len reports the number of queued messages.
func (q *mailbox) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.msgs)
}

// Close stops accepting messages and wakes all waiters.
func (q *mailbox) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
