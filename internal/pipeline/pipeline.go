// Package pipeline defines the address contract between a source manager
// and its downstream pipelines: a bounded event channel plus a signal
// path for control-plane broadcasts such as drain.
package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/quellstream/quell/internal/event"
)

// ErrClosed is returned by Send after the address has been closed.
var ErrClosed = errors.New("pipeline: address closed")

// MsgKind distinguishes messages on a pipeline inbox.
type MsgKind int

const (
	// MsgEvent carries one data event.
	MsgEvent MsgKind = iota + 1
	// MsgSignal carries a control-plane signal.
	MsgSignal
)

// SignalKind distinguishes control-plane signals.
type SignalKind int

const (
	// SignalDrain asks the pipeline to flush and acknowledge. ID carries
	// the draining source's identity so the acknowledgment can be routed
	// back to it.
	SignalDrain SignalKind = iota + 1
	// SignalStreamEnd marks the end of one logical stream.
	SignalStreamEnd
)

// Signal is one control-plane broadcast.
type Signal struct {
	Kind SignalKind
	ID   event.ID
}

// Msg is one message on a pipeline inbox.
type Msg struct {
	Kind   MsgKind
	Port   string
	Event  event.Event
	Signal Signal
}

// Addr is the sending side of one downstream pipeline. The event channel
// is bounded: a full inbox throttles the sender, which is how forward
// flow exerts backpressure on the manager loop.
type Addr struct {
	id string
	ch chan Msg

	mu     sync.Mutex
	closed chan struct{}
}

// NewAddr creates an address with a bounded inbox of the given capacity.
func NewAddr(id string, capacity int) *Addr {
	return &Addr{
		id:     id,
		ch:     make(chan Msg, capacity),
		closed: make(chan struct{}),
	}
}

// ID returns the pipeline identity the address points at.
func (a *Addr) ID() string { return a.id }

// Send delivers one message, blocking until the inbox accepts it, the
// context is canceled, or the address is closed.
func (a *Addr) Send(ctx context.Context, m Msg) error {
	select {
	case <-a.closed:
		return ErrClosed
	default:
	}
	select {
	case a.ch <- m:
		return nil
	case <-a.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SendEvent delivers one data event on the given port.
func (a *Addr) SendEvent(ctx context.Context, port string, ev event.Event) error {
	return a.Send(ctx, Msg{Kind: MsgEvent, Port: port, Event: ev})
}

// SendSignal delivers one control-plane signal.
func (a *Addr) SendSignal(ctx context.Context, s Signal) error {
	return a.Send(ctx, Msg{Kind: MsgSignal, Signal: s})
}

// Recv exposes the receiving side of the inbox.
func (a *Addr) Recv() <-chan Msg {
	return a.ch
}

// Close marks the address dead. Pending messages stay readable; further
// sends fail with ErrClosed.
func (a *Addr) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	select {
	case <-a.closed:
	default:
		close(a.closed)
	}
}
