package event

import (
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/quellstream/quell/internal/value"
)

// OriginURI names where an event entered the system.
type OriginURI struct {
	Scheme string
	Host   string
	Port   uint16
	Path   []string
}

func (o OriginURI) String() string {
	var b strings.Builder
	b.WriteString(o.Scheme)
	b.WriteString("://")
	b.WriteString(o.Host)
	if o.Port != 0 {
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(int(o.Port)))
	}
	for _, p := range o.Path {
		b.WriteByte('/')
		b.WriteString(p)
	}
	return b.String()
}

// Value renders the origin as event metadata.
func (o OriginURI) Value() value.Value {
	path := make(value.Array, len(o.Path))
	for i, p := range o.Path {
		path[i] = value.String(p)
	}
	return value.Object{
		"scheme": value.String(o.Scheme),
		"host":   value.String(o.Host),
		"port":   value.Uint(o.Port),
		"path":   path,
	}
}

// Event is one routed unit of data.
type Event struct {
	ID  ID
	UID string

	Data value.Value
	Meta value.Value

	IngestNs      uint64
	Origin        OriginURI
	Transactional bool
}

// UIDGenerator produces globally unique event uids.
type UIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable uids. Stateless and safe for
// concurrent use.
type UUIDv7Generator struct{}

// Generate returns a new UUIDv7 as a hyphenated string. Panics if UUID
// generation fails, which does not happen in practice.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedUIDGenerator returns predetermined uids for deterministic tests.
// Safe for concurrent use.
type FixedUIDGenerator struct {
	mu   sync.Mutex
	uids []string
	idx  int
}

// NewFixedUIDGenerator creates a generator that returns uids in order.
func NewFixedUIDGenerator(uids ...string) *FixedUIDGenerator {
	return &FixedUIDGenerator{uids: uids}
}

// Generate returns the next predetermined uid. Panics when exhausted so a
// miscounted test fails fast.
func (g *FixedUIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.idx >= len(g.uids) {
		panic("FixedUIDGenerator: all uids exhausted")
	}
	uid := g.uids[g.idx]
	g.idx++
	return uid
}

// CbAction is a circuit-breaker or delivery signal flowing upstream.
type CbAction int

const (
	// CbAck acknowledges delivery of an event.
	CbAck CbAction = iota
	// CbFail reports failed delivery of an event.
	CbFail
	// CbClose closes the breaker, pausing the source.
	CbClose
	// CbOpen opens the breaker, resuming the source.
	CbOpen
	// CbDrained acknowledges a drain signal.
	CbDrained
)

func (a CbAction) String() string {
	switch a {
	case CbAck:
		return "ack"
	case CbFail:
		return "fail"
	case CbClose:
		return "close"
	case CbOpen:
		return "open"
	case CbDrained:
		return "drained"
	}
	return "unknown"
}
