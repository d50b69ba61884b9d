// Package source implements the source manager: the per-connector event
// loop that turns connector byte streams into routed events and mediates
// control-plane traffic (circuit breaker, pause/resume, drain, stop).
package source

import (
	"time"

	"github.com/quellstream/quell/internal/event"
	"github.com/quellstream/quell/internal/pipeline"
	"github.com/quellstream/quell/internal/value"
)

// Reply is what a Source hands the manager per pull. Sealed.
type Reply interface {
	reply()
}

// ReplyData carries raw bytes for one stream, to be preprocessed and
// decoded before routing.
type ReplyData struct {
	Origin event.OriginURI
	Data   []byte
	Meta   value.Value
	Stream uint64
	Port   string
}

// ReplyStructured carries an already-decoded payload, bypassing codec
// and preprocessors.
type ReplyStructured struct {
	Origin  event.OriginURI
	Payload value.Value
	Meta    value.Value
	Stream  uint64
	Port    string
}

// BatchItem is one chunk of a batched reply.
type BatchItem struct {
	Data []byte
	Meta value.Value
}

// ReplyBatch carries several raw chunks pulled at once. Each chunk is
// preprocessed and decoded independently: one bad chunk must not take
// its siblings down with it.
type ReplyBatch struct {
	Origin event.OriginURI
	Items  []BatchItem
	Stream uint64
	Port   string
}

// ReplyStartStream announces a new logical stream.
type ReplyStartStream struct {
	Stream uint64
}

// ReplyEndStream closes a logical stream. Buffered preprocessor output
// is flushed into final events before the stream state is dropped.
type ReplyEndStream struct {
	Origin event.OriginURI
	Stream uint64
	Meta   value.Value
}

// ReplyEmpty reports that the source has nothing right now and suggests
// how long to wait before the next pull.
type ReplyEmpty struct {
	Wait time.Duration
}

func (ReplyData) reply()        {}
func (ReplyStructured) reply()  {}
func (ReplyBatch) reply()       {}
func (ReplyStartStream) reply() {}
func (ReplyEndStream) reply()   {}
func (ReplyEmpty) reply()       {}

// Msg is one control-plane message to the manager. Sealed.
type Msg interface {
	controlMsg()
}

// MsgLink connects a downstream pipeline to a port.
type MsgLink struct {
	Port string
	Addr *pipeline.Addr
}

// MsgUnlink disconnects a pipeline from a port by its id.
type MsgUnlink struct {
	Port string
	ID   string
}

// MsgConnectionLost reports that the connector lost its upstream
// connection.
type MsgConnectionLost struct{}

// MsgConnectionEstablished reports that the connector (re)connected.
type MsgConnectionEstablished struct{}

// MsgCb carries a circuit-breaker or delivery signal flowing back from
// downstream. ID identifies the event(s) the signal covers.
type MsgCb struct {
	Action event.CbAction
	ID     event.ID
}

// MsgStart starts the manager loop pulling data.
type MsgStart struct{}

// MsgPause pauses data pulls.
type MsgPause struct{}

// MsgResume resumes data pulls.
type MsgResume struct{}

// MsgStop shuts the manager down. The result of the source's stop hook
// is sent on Reply.
type MsgStop struct {
	Reply chan<- error
}

// MsgDrain begins the drain handshake. Done is signaled once every
// connected pipeline has acknowledged the drain.
type MsgDrain struct {
	Done chan<- struct{}
}

func (MsgLink) controlMsg()                  {}
func (MsgUnlink) controlMsg()                {}
func (MsgConnectionLost) controlMsg()        {}
func (MsgConnectionEstablished) controlMsg() {}
func (MsgCb) controlMsg()                    {}
func (MsgStart) controlMsg()                 {}
func (MsgPause) controlMsg()                 {}
func (MsgResume) controlMsg()                {}
func (MsgStop) controlMsg()                  {}
func (MsgDrain) controlMsg()                 {}
