// Package codec turns raw connector bytes into structured values.
package codec

import (
	"fmt"

	"github.com/quellstream/quell/internal/value"
)

// Codec decodes one chunk of bytes into a value. A (nil, false, nil)
// result means more data is needed before an event can be produced; it is
// not an error.
type Codec interface {
	Name() string
	Decode(data []byte, ingestNs uint64) (value.Value, bool, error)
}

// Lookup resolves a codec by name. An unknown name is fatal to stream
// creation, not to the connector.
func Lookup(name string) (Codec, error) {
	switch name {
	case "json", "":
		return JSON{}, nil
	}
	return nil, fmt.Errorf("unknown codec %q", name)
}

// JSON decodes each chunk as one JSON document.
type JSON struct{}

func (JSON) Name() string { return "json" }

func (JSON) Decode(data []byte, _ uint64) (value.Value, bool, error) {
	v, err := value.FromJSON(data)
	if err != nil {
		return nil, false, fmt.Errorf("json codec: %w", err)
	}
	return v, true, nil
}
