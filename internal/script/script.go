package script

import (
	"github.com/quellstream/quell/internal/value"
)

// Script is a compiled script ready to run against events.
type Script struct {
	Name  string
	Stmts []Stmt

	// Locals is the frame size, counting ordinary locals and shadow slots.
	Locals int
}

// ReturnKind discriminates script run outcomes.
type ReturnKind int

const (
	// ReturnEmit emits a derived value.
	ReturnEmit ReturnKind = iota
	// ReturnDrop discards the event.
	ReturnDrop
	// ReturnEmitEvent re-emits the event itself.
	ReturnEmitEvent
)

// Return is the outcome of one script run. An empty Port means the
// default output port.
type Return struct {
	Kind ReturnKind
	Val  value.Value
	Port string
}

// NewCtx builds a run context over the given environment and live values.
// Event, Meta and State are mutated in place by assignments.
func (s *Script) NewCtx(env *Env, event, meta, state value.Value) *Ctx {
	return &Ctx{
		Env:    env,
		Event:  orNull(event),
		Meta:   orNull(meta),
		State:  orNull(state),
		Locals: NewLocalStack(s.Locals),
	}
}

// Run executes the script to completion. The final statement's value is
// emitted unless an explicit emit or drop terminated the run earlier. An
// empty script re-emits the event unchanged.
func (s *Script) Run(ctx *Ctx) (Return, error) {
	last := len(s.Stmts) - 1
	for i, st := range s.Stmts {
		opts := ExecOpts{ResultNeeded: i == last}
		c, err := execStmt(ctx, opts, st)
		if err != nil {
			return Return{}, err
		}
		switch c.Kind {
		case ContEmit:
			return Return{Kind: ReturnEmit, Val: c.Val, Port: c.Port}, nil
		case ContDrop:
			return Return{Kind: ReturnDrop}, nil
		case ContEmitEvent:
			return Return{Kind: ReturnEmitEvent, Port: c.Port}, nil
		case ContContinue:
			if i == last {
				return Return{Kind: ReturnEmit, Val: c.Val}, nil
			}
		}
	}
	return Return{Kind: ReturnEmitEvent}, nil
}
