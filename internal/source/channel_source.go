package source

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Default timing for channel-backed sources.
const (
	// DefaultReadTimeout bounds one blocking StreamReader read so the
	// quiescence check runs at least this often.
	DefaultReadTimeout = 10 * time.Second
	// DefaultPollInterval is suggested to the manager when the channel
	// is empty.
	DefaultPollInterval = 10 * time.Millisecond
)

// Beacon is the shared "continue reading" signal all stream readers of
// one connector watch. Stopping it quiesces every reader promptly.
type Beacon struct {
	once sync.Once
	done chan struct{}
}

// NewBeacon returns a beacon in the reading state.
func NewBeacon() *Beacon {
	return &Beacon{done: make(chan struct{})}
}

// ContinueReading reports whether readers should keep going.
func (b *Beacon) ContinueReading() bool {
	select {
	case <-b.done:
		return false
	default:
		return true
	}
}

// Stop tells all readers to wind down. Idempotent.
func (b *Beacon) Stop() {
	b.once.Do(func() { close(b.done) })
}

// StreamReader produces replies for one logical stream, typically off a
// blocking network read.
type StreamReader interface {
	// Read blocks for the next reply. The context carries the bounded
	// read timeout; a DeadlineExceeded return is not an error, it just
	// hands control back for the quiescence check.
	Read(ctx context.Context) (Reply, error)
	// OnDone runs once when the reader task ends.
	OnDone(stream uint64)
}

// ChannelSource adapts reader tasks to the pull contract: readers push
// replies into a bounded channel, PullData pops without blocking.
type ChannelSource struct {
	NopLifecycle

	ch          chan Reply
	beacon      *Beacon
	log         *slog.Logger
	readTimeout time.Duration
	poll        time.Duration
}

// NewChannelSource creates a channel source with a bounded reply buffer.
func NewChannelSource(log *slog.Logger, capacity int) *ChannelSource {
	return &ChannelSource{
		ch:          make(chan Reply, capacity),
		beacon:      NewBeacon(),
		log:         log,
		readTimeout: DefaultReadTimeout,
		poll:        DefaultPollInterval,
	}
}

// Beacon exposes the quiescence beacon so the owning connector can stop
// all readers on shutdown.
func (s *ChannelSource) Beacon() *Beacon {
	return s.beacon
}

// Send pushes one reply from outside a reader task, blocking until the
// buffer accepts it.
func (s *ChannelSource) Send(ctx context.Context, r Reply) error {
	select {
	case s.ch <- r:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PullData pops the next buffered reply, or suggests a poll interval
// when nothing is buffered.
func (s *ChannelSource) PullData(_ context.Context, _ uint64) (Reply, error) {
	select {
	case r := <-s.ch:
		return r, nil
	default:
		return ReplyEmpty{Wait: s.poll}, nil
	}
}

// IsTransactional is false: channel sources cannot replay.
func (s *ChannelSource) IsTransactional() bool { return false }

// Ack is a no-op for non-transactional sources.
func (s *ChannelSource) Ack(uint64, uint64) error { return nil }

// Fail is a no-op for non-transactional sources.
func (s *ChannelSource) Fail(uint64, uint64) error { return nil }

// OnStop stops the beacon so every reader task winds down.
func (s *ChannelSource) OnStop(context.Context) error {
	s.beacon.Stop()
	return nil
}

// RegisterStreamReader spawns the reader task for one stream. The task
// polls with a bounded timeout, re-checks the beacon each round, and
// ends on a terminal EndStream reply, a read error, or cancellation.
func (s *ChannelSource) RegisterStreamReader(ctx context.Context, stream uint64, r StreamReader) {
	go func() {
		defer r.OnDone(stream)
		for {
			if !s.beacon.ContinueReading() {
				s.trySend(ctx, ReplyEndStream{Stream: stream})
				return
			}

			rctx, cancel := context.WithTimeout(ctx, s.readTimeout)
			reply, err := r.Read(rctx)
			cancel()

			switch {
			case errors.Is(err, context.DeadlineExceeded):
				continue
			case err != nil:
				s.log.Error("stream reader failed", "stream", stream, "error", err)
				s.trySend(ctx, ReplyEndStream{Stream: stream})
				return
			}

			if err := s.Send(ctx, reply); err != nil {
				s.log.Warn("stream reader send canceled", "stream", stream, "error", err)
				return
			}
			if end, ok := reply.(ReplyEndStream); ok && end.Stream == stream {
				return
			}
		}
	}()
}

func (s *ChannelSource) trySend(ctx context.Context, r Reply) {
	if err := s.Send(ctx, r); err != nil {
		s.log.Warn("end-of-stream reply dropped", "error", err)
	}
}
