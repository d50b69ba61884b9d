package script

import (
	"context"
	"log/slog"

	"github.com/quellstream/quell/internal/value"
)

// DefaultRecursionLimit caps user-function recursion depth.
const DefaultRecursionLimit uint32 = 1024

// Env carries the run-scoped immutable inputs of an execution.
type Env struct {
	Context context.Context
	Log     *slog.Logger

	// Consts is the compile-time constant pool, indexed by slot.
	Consts []value.Value

	// RecursionLimit bounds Invoke depth; zero means DefaultRecursionLimit.
	RecursionLimit uint32
}

func (e *Env) recursionLimit() uint32 {
	if e.RecursionLimit == 0 {
		return DefaultRecursionLimit
	}
	return e.RecursionLimit
}

// AggrMode tells aggregate functions which phase a statement runs in.
type AggrMode int

const (
	// AggrTick accumulates without producing.
	AggrTick AggrMode = iota
	// AggrEmit produces the aggregated value.
	AggrEmit
)

// ExecOpts are per-statement execution options.
type ExecOpts struct {
	// ResultNeeded is false for all but the last statement of a block;
	// executors may skip materializing results when it is unset.
	ResultNeeded bool
	// Aggr selects the aggregate phase.
	Aggr AggrMode
}

// WithoutResult returns a copy with ResultNeeded cleared.
func (o ExecOpts) WithoutResult() ExecOpts {
	o.ResultNeeded = false
	return o
}

// WithResult returns a copy with ResultNeeded set.
func (o ExecOpts) WithResult() ExecOpts {
	o.ResultNeeded = true
	return o
}

// LocalStack is the flat local variable frame. Slots are compile-time
// assigned; a nil slot is an unset variable.
type LocalStack struct {
	Values []value.Value
}

// NewLocalStack returns a frame with size unset slots.
func NewLocalStack(size int) *LocalStack {
	return &LocalStack{Values: make([]value.Value, size)}
}

// Get returns the slot value, or an internal error for an unset or
// out-of-range slot. Name is used for diagnostics only.
func (l *LocalStack) Get(idx int, loc Location, name string) (value.Value, error) {
	if idx < 0 || idx >= len(l.Values) {
		return nil, errOops(loc, oopsLocalOOB, "local index out of bounds: "+name)
	}
	v := l.Values[idx]
	if v == nil {
		return nil, errOops(loc, oopsUnsetLocal, "access to unset local variable: "+name)
	}
	return v, nil
}

// Set writes the slot value.
func (l *LocalStack) Set(idx int, v value.Value, loc Location) error {
	if idx < 0 || idx >= len(l.Values) {
		return errOops(loc, oopsLocalOOB, "local index out of bounds")
	}
	l.Values[idx] = v
	return nil
}

// Ctx is the mutable evaluation context of a single run. Event, Meta and
// State are live references: path writes mutate them in place.
type Ctx struct {
	Env    *Env
	Event  value.Value
	Meta   value.Value
	State  value.Value
	Locals *LocalStack

	// Reserved pseudo-variable bindings. Nil when not in scope.
	Args   value.Value
	Group  value.Value
	Window value.Value

	depth uint32
}

// EnterFn tracks one level of user-function recursion.
func (c *Ctx) EnterFn(loc Location) error {
	limit := c.Env.recursionLimit()
	if c.depth >= limit {
		return errRecursionLimit(loc, limit)
	}
	c.depth++
	return nil
}

// LeaveFn undoes EnterFn.
func (c *Ctx) LeaveFn() {
	if c.depth > 0 {
		c.depth--
	}
}

// Cont is the control-flow signal yielded by statement execution.
type Cont struct {
	Kind ContKind
	Val  value.Value
	Port string
}

// ContKind discriminates Cont variants.
type ContKind int

const (
	// ContContinue carries a value to the surrounding expression.
	ContContinue ContKind = iota
	// ContEmit terminates the run emitting Val on Port.
	ContEmit
	// ContDrop terminates the run discarding the event.
	ContDrop
	// ContEmitEvent terminates the run re-emitting the current event on Port.
	ContEmitEvent
)

// cont wraps a value in a Continue signal.
func cont(v value.Value) Cont {
	return Cont{Kind: ContContinue, Val: v}
}

// IsTerminal reports whether the signal ends the run.
func (c Cont) IsTerminal() bool {
	return c.Kind != ContContinue
}

// Internal error codes for interpreter invariant violations.
const (
	oopsLocalOOB      uint32 = 0xdead_0001
	oopsUnsetLocal    uint32 = 0xdead_0002
	oopsConstOOB      uint32 = 0xdead_0003
	oopsShadowOOB     uint32 = 0xdead_0004
	oopsBadSegment    uint32 = 0xdead_0005
	oopsNestedAssign  uint32 = 0xdead_0006
	oopsDefaultAssign uint32 = 0xdead_0007
)
