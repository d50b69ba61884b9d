// Package preprocessor splits and reshapes raw byte chunks before decoding.
package preprocessor

import (
	"bytes"
	"fmt"
)

// Preprocessor transforms one incoming chunk into zero or more chunks.
// Finish flushes anything buffered when the stream ends.
type Preprocessor interface {
	Name() string
	Process(data []byte) ([][]byte, error)
	Finish() ([][]byte, error)
}

// Lookup resolves a preprocessor by name. An unknown name is fatal to
// stream creation.
func Lookup(name string) (Preprocessor, error) {
	switch name {
	case "lines":
		return &Lines{}, nil
	}
	return nil, fmt.Errorf("unknown preprocessor %q", name)
}

// Chain builds a preprocessor chain from names. Each stream gets its own
// chain instance since preprocessors are stateful.
func Chain(names []string) ([]Preprocessor, error) {
	chain := make([]Preprocessor, 0, len(names))
	for _, n := range names {
		p, err := Lookup(n)
		if err != nil {
			return nil, err
		}
		chain = append(chain, p)
	}
	return chain, nil
}

// Run feeds one chunk through a chain.
func Run(chain []Preprocessor, data []byte) ([][]byte, error) {
	chunks := [][]byte{data}
	for _, p := range chain {
		next := make([][]byte, 0, len(chunks))
		for _, c := range chunks {
			out, err := p.Process(c)
			if err != nil {
				return nil, fmt.Errorf("preprocessor %s: %w", p.Name(), err)
			}
			next = append(next, out...)
		}
		chunks = next
	}
	return chunks, nil
}

// Finish flushes a chain at end of stream. Later stages still process
// what earlier stages flush.
func Finish(chain []Preprocessor, data []byte) ([][]byte, error) {
	var chunks [][]byte
	if data != nil {
		chunks = [][]byte{data}
	}
	for _, p := range chain {
		next := make([][]byte, 0, len(chunks))
		for _, c := range chunks {
			out, err := p.Process(c)
			if err != nil {
				return nil, fmt.Errorf("preprocessor %s: %w", p.Name(), err)
			}
			next = append(next, out...)
		}
		flushed, err := p.Finish()
		if err != nil {
			return nil, fmt.Errorf("preprocessor %s: %w", p.Name(), err)
		}
		next = append(next, flushed...)
		chunks = next
	}
	return chunks, nil
}

// Lines splits input on newlines, buffering the trailing partial line
// until the next chunk or the end of the stream.
type Lines struct {
	buf []byte
}

func (*Lines) Name() string { return "lines" }

func (l *Lines) Process(data []byte) ([][]byte, error) {
	l.buf = append(l.buf, data...)

	var out [][]byte
	for {
		i := bytes.IndexByte(l.buf, '\n')
		if i < 0 {
			break
		}
		line := make([]byte, i)
		copy(line, l.buf[:i])
		out = append(out, line)
		l.buf = l.buf[i+1:]
	}
	return out, nil
}

func (l *Lines) Finish() ([][]byte, error) {
	if len(l.buf) == 0 {
		return nil, nil
	}
	last := l.buf
	l.buf = nil
	return [][]byte{last}, nil
}
