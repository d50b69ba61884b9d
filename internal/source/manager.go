package source

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/quellstream/quell/internal/event"
	"github.com/quellstream/quell/internal/pipeline"
	"github.com/quellstream/quell/internal/preprocessor"
	"github.com/quellstream/quell/internal/value"
)

// State is the manager lifecycle state.
type State int32

const (
	// StateInitialized is the state before Start.
	StateInitialized State = iota
	// StateRunning pulls data.
	StateRunning
	// StatePaused holds data pulls, control plane stays live.
	StatePaused
	// StateDraining waits for the drain handshake to complete.
	StateDraining
	// StateDrained means every connected pipeline acknowledged the drain.
	StateDrained
	// StateStopped is terminal.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateInitialized:
		return "initialized"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateDraining:
		return "draining"
	case StateDrained:
		return "drained"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// Config parameterizes one manager.
type Config struct {
	// SourceID is the connector's numeric identity; event and drain ids
	// are tagged with it.
	SourceID uint64
	// Alias is the connector's human-readable name, used in logs and
	// synthetic error events.
	Alias string

	// Codec and Preprocessors select the per-stream decode chain.
	Codec         string
	Preprocessors []string

	Log  *slog.Logger
	UIDs event.UIDGenerator

	// NowNs supplies ingest timestamps. Defaults to wall clock.
	NowNs func() uint64
}

// Manager owns one Source and runs its event loop: control-plane
// messages are always drained before the next data pull, so breaker and
// backpressure changes can never starve behind a busy source.
type Manager struct {
	id    uint64
	alias string
	src   Source
	log   *slog.Logger
	uids  event.UIDGenerator
	nowNs func() uint64

	mailbox *mailbox
	streams *streams

	outs []*pipeline.Addr
	errs []*pipeline.Addr

	state atomic.Int32

	pullCounter uint64

	drainDone      chan<- struct{}
	drainSignaled  bool
	expectedDrains int
}

// NewManager wires a manager around a source. Run must be called to
// start the loop.
func NewManager(cfg Config, src Source) *Manager {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	uids := cfg.UIDs
	if uids == nil {
		uids = event.UUIDv7Generator{}
	}
	nowNs := cfg.NowNs
	if nowNs == nil {
		nowNs = func() uint64 { return uint64(time.Now().UnixNano()) }
	}
	return &Manager{
		id:      cfg.SourceID,
		alias:   cfg.Alias,
		src:     src,
		log:     log.With("connector", cfg.Alias),
		uids:    uids,
		nowNs:   nowNs,
		mailbox: newMailbox(),
		streams: newStreams(cfg.SourceID, cfg.Codec, cfg.Preprocessors),
	}
}

// State reports the current lifecycle state.
func (m *Manager) State() State {
	return State(m.state.Load())
}

func (m *Manager) setState(s State) {
	old := m.State()
	if old == s {
		return
	}
	m.state.Store(int32(s))
	m.log.Debug("state change", "from", old, "to", s)
}

// Send enqueues a control message. Never blocks; returns false once the
// manager has shut down.
func (m *Manager) Send(msg Msg) bool {
	return m.mailbox.Enqueue(msg)
}

// Run is the manager loop. It returns when a Stop message is handled or
// the context is canceled.
func (m *Manager) Run(ctx context.Context) error {
	defer m.mailbox.Close()
	m.log.Info("source manager starting")

	for {
		for {
			msg, ok := m.mailbox.TryDequeue()
			if !ok {
				break
			}
			m.handle(ctx, msg)
			if m.State() == StateStopped {
				m.log.Info("source manager stopped")
				return nil
			}
		}

		if !m.canPull() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-m.mailbox.Wait():
			}
			continue
		}

		pullID := m.pullCounter
		m.pullCounter++
		reply, err := m.src.PullData(ctx, pullID)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			m.log.Error("pull failed", "pull_id", pullID, "error", err)
			continue
		}
		if err := m.handleReply(ctx, reply, pullID); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			m.log.Error("reply handling failed", "pull_id", pullID, "error", err)
		}
	}
}

// canPull reports whether the loop may pull data this iteration: no
// control messages pending, state Running or Draining, and at least one
// out pipeline connected.
func (m *Manager) canPull() bool {
	if m.mailbox.Len() > 0 || len(m.outs) == 0 {
		return false
	}
	st := m.State()
	return st == StateRunning || st == StateDraining
}

func (m *Manager) handle(ctx context.Context, msg Msg) {
	switch msg := msg.(type) {
	case MsgLink:
		m.link(msg)
	case MsgUnlink:
		m.unlink(msg)
	case MsgStart:
		if m.State() != StateInitialized {
			m.log.Info("start ignored", "state", m.State())
			return
		}
		m.setState(StateRunning)
		m.hook("on_start", m.src.OnStart(ctx))
	case MsgPause:
		if m.State() != StateRunning {
			m.log.Info("pause ignored", "state", m.State())
			return
		}
		m.setState(StatePaused)
		m.hook("on_pause", m.src.OnPause(ctx))
	case MsgResume:
		if m.State() != StatePaused {
			m.log.Info("resume ignored", "state", m.State())
			return
		}
		m.setState(StateRunning)
		m.hook("on_resume", m.src.OnResume(ctx))
	case MsgConnectionLost:
		m.hook("on_connection_lost", m.src.OnConnectionLost(ctx))
	case MsgConnectionEstablished:
		m.hook("on_connection_established", m.src.OnConnectionEstablished(ctx))
	case MsgCb:
		m.handleCb(ctx, msg)
	case MsgDrain:
		m.beginDrain(msg)
	case MsgStop:
		err := m.src.OnStop(ctx)
		m.setState(StateStopped)
		if msg.Reply != nil {
			select {
			case msg.Reply <- err:
			default:
				m.log.Warn("stop reply dropped")
			}
		}
	}
}

func (m *Manager) link(msg MsgLink) {
	switch msg.Port {
	case event.PortOut:
		m.outs = append(m.outs, msg.Addr)
	case event.PortErr:
		m.errs = append(m.errs, msg.Addr)
	default:
		m.log.Warn("link to unknown port", "port", msg.Port)
		return
	}
	m.log.Info("pipeline linked", "port", msg.Port, "pipeline", msg.Addr.ID())
}

func (m *Manager) unlink(msg MsgUnlink) {
	remove := func(addrs []*pipeline.Addr) []*pipeline.Addr {
		out := addrs[:0]
		for _, a := range addrs {
			if a.ID() != msg.ID {
				out = append(out, a)
			}
		}
		return out
	}
	switch msg.Port {
	case event.PortOut:
		m.outs = remove(m.outs)
	case event.PortErr:
		m.errs = remove(m.errs)
	default:
		m.log.Warn("unlink from unknown port", "port", msg.Port)
	}
}

func (m *Manager) handleCb(ctx context.Context, msg MsgCb) {
	switch msg.Action {
	case event.CbClose:
		if m.State() != StateRunning {
			m.log.Info("breaker close ignored", "state", m.State())
			return
		}
		m.setState(StatePaused)
		m.hook("on_cb_close", m.src.OnCbClose(ctx))
	case event.CbOpen:
		if m.State() != StatePaused {
			m.log.Info("breaker open ignored", "state", m.State())
			return
		}
		m.setState(StateRunning)
		m.hook("on_cb_open", m.src.OnCbOpen(ctx))
	case event.CbAck:
		if !m.src.IsTransactional() {
			return
		}
		for stream, pull := range msg.ID.MaxBySource(m.id) {
			if err := m.src.Ack(stream, pull); err != nil {
				m.log.Error("ack failed", "stream", stream, "pull_id", pull, "error", err)
			}
		}
	case event.CbFail:
		if !m.src.IsTransactional() {
			return
		}
		for stream, pull := range msg.ID.MinBySource(m.id) {
			if err := m.src.Fail(stream, pull); err != nil {
				m.log.Error("fail callback failed", "stream", stream, "pull_id", pull, "error", err)
			}
		}
	case event.CbDrained:
		m.onDrained(msg.ID)
	}
}

// beginDrain enters phase one of the drain handshake: keep pulling until
// the source reports empty, then signal downstream and count
// acknowledgments.
func (m *Manager) beginDrain(msg MsgDrain) {
	st := m.State()
	m.drainDone = msg.Done
	if st == StateDrained {
		m.notifyDrainDone()
		return
	}
	if st == StateInitialized || len(m.outs)+len(m.errs) == 0 {
		m.setState(StateDrained)
		m.notifyDrainDone()
		return
	}
	m.drainSignaled = false
	m.setState(StateDraining)
}

// emitDrainSignal is phase two: the source is empty, broadcast the drain
// marker downstream and expect one acknowledgment per connected
// pipeline.
func (m *Manager) emitDrainSignal(ctx context.Context) {
	m.drainSignaled = true
	m.expectedDrains = 0
	sig := pipeline.Signal{
		Kind: pipeline.SignalDrain,
		ID:   event.NewID(m.id, event.DefaultStreamID, m.pullCounter),
	}
	for _, a := range m.outs {
		if err := a.SendSignal(ctx, sig); err != nil {
			m.log.Error("drain signal failed", "pipeline", a.ID(), "error", err)
			continue
		}
		m.expectedDrains++
	}
	for _, a := range m.errs {
		if err := a.SendSignal(ctx, sig); err != nil {
			m.log.Error("drain signal failed", "pipeline", a.ID(), "error", err)
			continue
		}
		m.expectedDrains++
	}
	m.log.Info("drain signaled", "expected", m.expectedDrains)
	if m.expectedDrains == 0 {
		m.setState(StateDrained)
		m.notifyDrainDone()
	}
}

func (m *Manager) onDrained(id event.ID) {
	if m.State() != StateDraining || !m.drainSignaled || id.SourceID != m.id {
		m.log.Info("drain ack ignored", "state", m.State(), "id", id)
		return
	}
	m.expectedDrains--
	m.log.Debug("drain ack", "remaining", m.expectedDrains)
	if m.expectedDrains <= 0 {
		m.setState(StateDrained)
		m.notifyDrainDone()
	}
}

func (m *Manager) notifyDrainDone() {
	if m.drainDone == nil {
		return
	}
	select {
	case m.drainDone <- struct{}{}:
	default:
		m.log.Warn("drain reply dropped")
	}
	m.drainDone = nil
}

func (m *Manager) hook(name string, err error) {
	if err != nil {
		m.log.Error("lifecycle hook failed", "hook", name, "error", err)
	}
}

func (m *Manager) handleReply(ctx context.Context, reply Reply, pullID uint64) error {
	switch r := reply.(type) {
	case ReplyEmpty:
		if m.State() == StateDraining && !m.drainSignaled {
			m.emitDrainSignal(ctx)
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.Wait):
		case <-m.mailbox.Wait():
		}
		return nil

	case ReplyStartStream:
		if _, err := m.streams.get(r.Stream); err != nil {
			m.log.Error("stream creation failed", "stream", r.Stream, "error", err)
		}
		return nil

	case ReplyEndStream:
		st := m.streams.end(r.Stream)
		if st == nil {
			return nil
		}
		chunks, err := preprocessor.Finish(st.chain, nil)
		if err != nil {
			return m.routeError(ctx, st, pullID, err)
		}
		for _, chunk := range chunks {
			if err := m.decodeAndRoute(ctx, st, chunk, r.Meta, r.Origin, event.PortOut, pullID); err != nil {
				return err
			}
		}
		return nil

	case ReplyData:
		st, err := m.streams.get(r.Stream)
		if err != nil {
			m.log.Error("stream creation failed", "stream", r.Stream, "error", err)
			return nil
		}
		chunks, err := preprocessor.Run(st.chain, r.Data)
		if err != nil {
			return m.routeError(ctx, st, pullID, err)
		}
		for _, chunk := range chunks {
			if err := m.decodeAndRoute(ctx, st, chunk, r.Meta, r.Origin, r.Port, pullID); err != nil {
				return err
			}
		}
		return nil

	case ReplyBatch:
		st, err := m.streams.get(r.Stream)
		if err != nil {
			m.log.Error("stream creation failed", "stream", r.Stream, "error", err)
			return nil
		}
		for _, item := range r.Items {
			chunks, err := preprocessor.Run(st.chain, item.Data)
			if err != nil {
				if rerr := m.routeError(ctx, st, pullID, err); rerr != nil {
					return rerr
				}
				continue
			}
			for _, chunk := range chunks {
				if err := m.decodeAndRoute(ctx, st, chunk, item.Meta, r.Origin, r.Port, pullID); err != nil {
					return err
				}
			}
		}
		return nil

	case ReplyStructured:
		st, err := m.streams.get(r.Stream)
		if err != nil {
			m.log.Error("stream creation failed", "stream", r.Stream, "error", err)
			return nil
		}
		ev := m.buildEvent(st, r.Payload, r.Meta, r.Origin, pullID)
		return m.routeEvent(ctx, ev, r.Port)
	}
	return nil
}

// decodeAndRoute decodes one preprocessed chunk. Decode failure becomes
// a synthetic error event on the err port, never a loop failure.
func (m *Manager) decodeAndRoute(ctx context.Context, st *streamState, chunk []byte, meta value.Value, origin event.OriginURI, port string, pullID uint64) error {
	data, ok, err := st.codec.Decode(chunk, m.nowNs())
	if err != nil {
		return m.routeError(ctx, st, pullID, err)
	}
	if !ok {
		// Codec needs more data, no event yet.
		return nil
	}
	ev := m.buildEvent(st, data, meta, origin, pullID)
	return m.routeEvent(ctx, ev, port)
}

// buildEvent assembles one event. The id carries the pull that produced
// the data so acks and fails resolve back to a pull the source knows.
func (m *Manager) buildEvent(st *streamState, data, meta value.Value, origin event.OriginURI, pullID uint64) event.Event {
	if meta == nil {
		meta = value.Object{}
	}
	return event.Event{
		ID:            st.gen.Next(pullID),
		UID:           m.uids.Generate(),
		Data:          data,
		Meta:          meta,
		IngestNs:      m.nowNs(),
		Origin:        origin,
		Transactional: m.src.IsTransactional(),
	}
}

// routeEvent delivers one event to every pipeline on its port. A failed
// delivery is logged and, for transactional sources, failed back to the
// source; it never stops the loop.
func (m *Manager) routeEvent(ctx context.Context, ev event.Event, port string) error {
	if port == "" {
		port = event.PortOut
	}
	var addrs []*pipeline.Addr
	switch port {
	case event.PortOut:
		addrs = m.outs
	case event.PortErr:
		addrs = m.errs
	default:
		m.log.Warn("event for unknown port dropped", "port", port, "id", ev.ID)
		return nil
	}
	for _, a := range addrs {
		err := a.SendEvent(ctx, port, ev)
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		m.log.Error("event delivery failed", "pipeline", a.ID(), "id", ev.ID, "error", err)
		if m.src.IsTransactional() {
			if ferr := m.src.Fail(ev.ID.StreamID, ev.ID.PullID); ferr != nil {
				m.log.Error("fail callback failed", "id", ev.ID, "error", ferr)
			}
		}
	}
	return nil
}

// routeError turns a decode or preprocess failure into a synthetic
// error event on the err port.
func (m *Manager) routeError(ctx context.Context, st *streamState, pullID uint64, cause error) error {
	m.log.Warn("decode failed", "stream", st.id, "pull_id", pullID, "error", cause)
	ev := event.Event{
		ID:  st.gen.Next(pullID),
		UID: m.uids.Generate(),
		Data: value.Object{
			"error":     value.String(cause.Error()),
			"source":    value.String(m.alias),
			"stream_id": value.Uint(st.id),
			"pull_id":   value.Uint(pullID),
		},
		Meta:          value.Object{"error": value.String(cause.Error())},
		IngestNs:      m.nowNs(),
		Transactional: m.src.IsTransactional(),
	}
	return m.routeEvent(ctx, ev, event.PortErr)
}

