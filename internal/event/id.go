// Package event defines the events the source layer emits and the
// stream-scoped id scheme that acknowledgments resolve against.
package event

import (
	"fmt"
)

// DefaultStreamID is the stream used by connectors without substreams.
const DefaultStreamID uint64 = 0

// Standard ports events are routed to.
const (
	PortOut = "out"
	PortErr = "err"
)

// ID identifies one event: the connector that produced it, the stream
// within that connector, the pull that produced the data, and the
// event's index within the stream. Acknowledgments resolve against the
// pull id, which is the id the source was handed in PullData. An ID can
// additionally track the id spans of other events, which is how batches
// and derived events keep their provenance for ack and fail resolution.
type ID struct {
	SourceID uint64
	StreamID uint64
	PullID   uint64
	EventID  uint64

	tracked []span
}

type span struct {
	source  uint64
	stream  uint64
	minPull uint64
	maxPull uint64
}

// NewID builds a plain event id.
func NewID(source, stream, pull uint64) ID {
	return ID{SourceID: source, StreamID: stream, PullID: pull}
}

func (id ID) String() string {
	return fmt.Sprintf("%d:%d:%d:%d", id.SourceID, id.StreamID, id.EventID, id.PullID)
}

// Track merges the other id's own pull and all its tracked spans into this
// id's tracked set.
func (id *ID) Track(other ID) {
	id.trackSpan(other.SourceID, other.StreamID, other.PullID, other.PullID)
	for _, s := range other.tracked {
		id.trackSpan(s.source, s.stream, s.minPull, s.maxPull)
	}
}

func (id *ID) trackSpan(source, stream, minPull, maxPull uint64) {
	for i := range id.tracked {
		s := &id.tracked[i]
		if s.source == source && s.stream == stream {
			if minPull < s.minPull {
				s.minPull = minPull
			}
			if maxPull > s.maxPull {
				s.maxPull = maxPull
			}
			return
		}
	}
	id.tracked = append(id.tracked, span{source: source, stream: stream, minPull: minPull, maxPull: maxPull})
}

// StreamMinPull resolves the smallest pull id this event covers for the
// given source and stream. Failures resolve to the minimum so redelivery
// restarts at the earliest unacknowledged pull.
func (id ID) StreamMinPull(source, stream uint64) (uint64, bool) {
	min, ok := uint64(0), false
	if id.SourceID == source && id.StreamID == stream {
		min, ok = id.PullID, true
	}
	for _, s := range id.tracked {
		if s.source == source && s.stream == stream && (!ok || s.minPull < min) {
			min, ok = s.minPull, true
		}
	}
	return min, ok
}

// StreamMaxPull resolves the largest pull id this event covers for the
// given source and stream. Acknowledgments resolve to the maximum.
func (id ID) StreamMaxPull(source, stream uint64) (uint64, bool) {
	max, ok := uint64(0), false
	if id.SourceID == source && id.StreamID == stream {
		max, ok = id.PullID, true
	}
	for _, s := range id.tracked {
		if s.source == source && s.stream == stream && (!ok || s.maxPull > max) {
			max, ok = s.maxPull, true
		}
	}
	return max, ok
}

// MinBySource resolves, per stream of the given source, the smallest
// pull id this event covers. Used to fan a batched fail out to every
// affected stream.
func (id ID) MinBySource(source uint64) map[uint64]uint64 {
	out := map[uint64]uint64{}
	if id.SourceID == source {
		out[id.StreamID] = id.PullID
	}
	for _, s := range id.tracked {
		if s.source != source {
			continue
		}
		if cur, ok := out[s.stream]; !ok || s.minPull < cur {
			out[s.stream] = s.minPull
		}
	}
	return out
}

// MaxBySource resolves, per stream of the given source, the largest pull
// id this event covers. Used to fan a batched ack out to every affected
// stream.
func (id ID) MaxBySource(source uint64) map[uint64]uint64 {
	out := map[uint64]uint64{}
	if id.SourceID == source {
		out[id.StreamID] = id.PullID
	}
	for _, s := range id.tracked {
		if s.source != source {
			continue
		}
		if cur, ok := out[s.stream]; !ok || s.maxPull > cur {
			out[s.stream] = s.maxPull
		}
	}
	return out
}

// Generator hands out stream-scoped ids with strictly increasing event
// indices. The pull id is supplied per call so that every event built
// from one pull carries that pull's id. Not safe for concurrent use;
// each stream owns one.
type Generator struct {
	source uint64
	stream uint64
	next   uint64
}

// NewGenerator starts a generator for one source stream.
func NewGenerator(source, stream uint64) *Generator {
	return &Generator{source: source, stream: stream}
}

// Next returns the next id in the stream, stamped with the pull that
// produced the data.
func (g *Generator) Next(pull uint64) ID {
	id := NewID(g.source, g.stream, pull)
	id.EventID = g.next
	g.next++
	return id
}

// Last reports the most recently issued event index.
func (g *Generator) Last() (uint64, bool) {
	if g.next == 0 {
		return 0, false
	}
	return g.next - 1, true
}
