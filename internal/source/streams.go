package source

import (
	"fmt"

	"github.com/quellstream/quell/internal/codec"
	"github.com/quellstream/quell/internal/event"
	"github.com/quellstream/quell/internal/preprocessor"
)

// streamState is the decode state of one logical byte stream: its own
// codec instance, its own preprocessor chain, its own id generator.
type streamState struct {
	id    uint64
	gen   *event.Generator
	codec codec.Codec
	chain []preprocessor.Preprocessor
}

// streams is the lazy per-stream state registry of one manager.
type streams struct {
	sourceID  uint64
	codecName string
	preNames  []string

	states map[uint64]*streamState
}

func newStreams(sourceID uint64, codecName string, preNames []string) *streams {
	return &streams{
		sourceID:  sourceID,
		codecName: codecName,
		preNames:  preNames,
		states:    map[uint64]*streamState{},
	}
}

// get returns the state for a stream, creating it on first sight. A
// misconfigured codec or preprocessor fails stream creation outright.
func (s *streams) get(stream uint64) (*streamState, error) {
	if st, ok := s.states[stream]; ok {
		return st, nil
	}
	c, err := codec.Lookup(s.codecName)
	if err != nil {
		return nil, fmt.Errorf("stream %d: %w", stream, err)
	}
	chain, err := preprocessor.Chain(s.preNames)
	if err != nil {
		return nil, fmt.Errorf("stream %d: %w", stream, err)
	}
	st := &streamState{
		id:    stream,
		gen:   event.NewGenerator(s.sourceID, stream),
		codec: c,
		chain: chain,
	}
	s.states[stream] = st
	return st, nil
}

// end removes a stream's state, returning it so buffered preprocessor
// output can be flushed. Nil if the stream was never seen.
func (s *streams) end(stream uint64) *streamState {
	st := s.states[stream]
	delete(s.states, stream)
	return st
}
