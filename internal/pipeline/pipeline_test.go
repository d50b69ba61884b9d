package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quellstream/quell/internal/event"
	"github.com/quellstream/quell/internal/value"
)

func TestAddr_SendReceive(t *testing.T) {
	a := NewAddr("pipe-1", 4)
	ctx := context.Background()

	ev := event.Event{Data: value.String("snot")}
	require.NoError(t, a.SendEvent(ctx, event.PortOut, ev))

	m := <-a.Recv()
	assert.Equal(t, MsgEvent, m.Kind)
	assert.Equal(t, event.PortOut, m.Port)
	assert.Equal(t, value.String("snot"), m.Event.Data)
}

func TestAddr_SendBlocksUntilCanceled(t *testing.T) {
	a := NewAddr("pipe-1", 1)
	ctx := context.Background()

	require.NoError(t, a.SendEvent(ctx, event.PortOut, event.Event{}))

	timed, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	err := a.SendEvent(timed, event.PortOut, event.Event{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAddr_SendAfterClose(t *testing.T) {
	a := NewAddr("pipe-1", 1)
	a.Close()

	err := a.SendEvent(context.Background(), event.PortOut, event.Event{})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestAddr_CloseUnblocksSender(t *testing.T) {
	a := NewAddr("pipe-1", 1)
	ctx := context.Background()
	require.NoError(t, a.SendEvent(ctx, event.PortOut, event.Event{}))

	done := make(chan error, 1)
	go func() {
		done <- a.SendEvent(ctx, event.PortOut, event.Event{})
	}()

	a.Close()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("sender did not unblock on close")
	}
}

func TestAddr_CloseIsIdempotent(t *testing.T) {
	a := NewAddr("pipe-1", 1)
	a.Close()
	a.Close()
}

func TestAddr_SignalCarriesSourceIdentity(t *testing.T) {
	a := NewAddr("pipe-1", 1)
	id := event.NewID(7, 0, 42)

	require.NoError(t, a.SendSignal(context.Background(), Signal{Kind: SignalDrain, ID: id}))

	m := <-a.Recv()
	assert.Equal(t, MsgSignal, m.Kind)
	assert.Equal(t, SignalDrain, m.Signal.Kind)
	assert.Equal(t, uint64(7), m.Signal.ID.SourceID)
}
