package source

import (
	"context"
)

// Source is the connector-facing contract the manager drives. PullData is
// called at most once per loop iteration; the lifecycle hooks mirror the
// control-plane messages.
type Source interface {
	// PullData fetches the next reply. pullID is the manager's pull
	// counter, handed back so sources can correlate diagnostics.
	PullData(ctx context.Context, pullID uint64) (Reply, error)

	// IsTransactional reports whether the source wants ack/fail
	// callbacks for delivered events.
	IsTransactional() bool

	// Ack acknowledges delivery up to pull on stream. May be called out
	// of order and more than once; implementations must be idempotent.
	Ack(stream, pull uint64) error
	// Fail reports failed delivery down to pull on stream. Same
	// idempotency contract as Ack.
	Fail(stream, pull uint64) error

	Lifecycle
}

// Lifecycle is the set of control-plane hooks a Source observes. Embed
// NopLifecycle to opt out of the ones a connector does not care about.
type Lifecycle interface {
	OnStart(ctx context.Context) error
	OnPause(ctx context.Context) error
	OnResume(ctx context.Context) error
	OnStop(ctx context.Context) error
	OnCbOpen(ctx context.Context) error
	OnCbClose(ctx context.Context) error
	OnConnectionLost(ctx context.Context) error
	OnConnectionEstablished(ctx context.Context) error
}

// NopLifecycle implements every hook as a no-op.
type NopLifecycle struct{}

func (NopLifecycle) OnStart(context.Context) error                 { return nil }
func (NopLifecycle) OnPause(context.Context) error                 { return nil }
func (NopLifecycle) OnResume(context.Context) error                { return nil }
func (NopLifecycle) OnStop(context.Context) error                  { return nil }
func (NopLifecycle) OnCbOpen(context.Context) error                { return nil }
func (NopLifecycle) OnCbClose(context.Context) error               { return nil }
func (NopLifecycle) OnConnectionLost(context.Context) error        { return nil }
func (NopLifecycle) OnConnectionEstablished(context.Context) error { return nil }
