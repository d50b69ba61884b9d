// Package script implements the run-time half of the expression language:
// path resolution, operators, pattern matching, mutation, and statement
// execution against a mutable evaluation context.
//
// The compiled forms in this file are the input contract. They are produced
// by a separate compile stage which has already performed all type and
// scope checking; the interpreter evaluates them without re-validating.
// Slot indices (locals, shadows, constants) are compile-time assigned and
// trusted: an out-of-range index is an internal error, not a user error.
package script

import (
	"github.com/quellstream/quell/internal/value"
)

// Expr is a side-effect-free expression form.
type Expr interface {
	exprForm()
}

// Stmt is a statement form yielding a control-flow signal.
// Every Expr is also usable as a statement via ExprStmt.
type Stmt interface {
	stmtForm()
}

// Literal is a constant value produced by the compile stage.
type Literal struct {
	Val value.Value
}

// RecordField is one key/value pair of a record constructor.
// Key is an expression evaluating to a string.
type RecordField struct {
	Key   Expr
	Value Expr
}

// Record constructs an object value.
type Record struct {
	Loc    Location
	Fields []RecordField
}

// List constructs an array value.
type List struct {
	Items []Expr
}

// Binary applies a binary operator.
type Binary struct {
	Loc Location
	Op  BinOp
	Lhs Expr
	Rhs Expr
}

// Unary applies a unary operator.
type Unary struct {
	Loc     Location
	Op      UnaryOp
	Operand Expr
}

// Merge produces a deep merge of Spec into a copy of Target.
type Merge struct {
	Loc    Location
	Target Expr
	Spec   Expr
}

// Patch applies patch operations to a copy of Target.
type Patch struct {
	Loc    Location
	Target Expr
	Ops    []PatchOp
}

// Present tests whether a path resolves, yielding a boolean.
type Present struct {
	Path *Path
}

// Invoke calls a user-defined or built-in function. Function recursion is
// capped by the environment's recursion limit.
type Invoke struct {
	Loc  Location
	Fn   Function
	Args []Expr
}

// Function is the capability contract for callable functions.
type Function interface {
	Name() string
	Call(ctx *Ctx, args []value.Value) (value.Value, error)
}

func (*Literal) exprForm() {}
func (*Record) exprForm()  {}
func (*List) exprForm()    {}
func (*Binary) exprForm()  {}
func (*Unary) exprForm()   {}
func (*Path) exprForm()    {}
func (*Merge) exprForm()   {}
func (*Patch) exprForm()   {}
func (*Present) exprForm() {}
func (*Invoke) exprForm()  {}

// RootKind selects the base of a path.
type RootKind int

const (
	// RootLocal addresses a local variable slot.
	RootLocal RootKind = iota
	// RootConst addresses a constant slot.
	RootConst
	// RootEvent addresses the event payload.
	RootEvent
	// RootMeta addresses the per-event metadata.
	RootMeta
	// RootState addresses the persistent state.
	RootState
	// RootExpr addresses the result of a sub-expression. Owned results are
	// parked in the compiler-assigned Shadow slot so the rest of the path
	// has a stable value to narrow into.
	RootExpr
	// RootReservedArgs addresses the reserved `args` pseudo-variable.
	RootReservedArgs
	// RootReservedGroup addresses the reserved `group` pseudo-variable.
	RootReservedGroup
	// RootReservedWindow addresses the reserved `window` pseudo-variable.
	RootReservedWindow
)

// Path addresses a value inside one of the named roots.
type Path struct {
	Loc  Location
	Root RootKind

	// Idx is the slot index for RootLocal / RootConst roots.
	Idx int
	// Name is the source-level name of the root, for error messages.
	Name string
	// Expr and Shadow serve RootExpr roots.
	Expr   Expr
	Shadow int

	Segments []Segment
}

// SegmentKind identifies a path segment variant.
type SegmentKind int

const (
	// SegID is a static field lookup.
	SegID SegmentKind = iota
	// SegIdx is a static array index.
	SegIdx
	// SegElement is a computed key: string keys address objects,
	// integer keys address arrays.
	SegElement
	// SegRange slices an array; the result is a fresh copy.
	SegRange
)

// Segment is one narrowing step of a path.
type Segment struct {
	Loc  Location
	Kind SegmentKind

	Key   string // SegID
	Idx   int    // SegIdx
	Expr  Expr   // SegElement
	Start Expr   // SegRange
	End   Expr   // SegRange
}

// BinOp is a binary operator.
type BinOp int

const (
	OpEq BinOp = iota
	OpNotEq
	OpAnd
	OpOr
	OpXor
	OpBitAnd
	OpBitOr
	OpBitXor
	OpGt
	OpGte
	OpLt
	OpLte
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpLBitShift
	OpRBitShiftSigned
	OpRBitShiftUnsigned
)

var binOpNames = map[BinOp]string{
	OpEq:                "==",
	OpNotEq:             "!=",
	OpAnd:               "and",
	OpOr:                "or",
	OpXor:               "xor",
	OpBitAnd:            "&",
	OpBitOr:             "|",
	OpBitXor:            "^",
	OpGt:                ">",
	OpGte:               ">=",
	OpLt:                "<",
	OpLte:               "<=",
	OpAdd:               "+",
	OpSub:               "-",
	OpMul:               "*",
	OpDiv:               "/",
	OpMod:               "%",
	OpLBitShift:         "<<",
	OpRBitShiftSigned:   ">>",
	OpRBitShiftUnsigned: ">>>",
}

func (op BinOp) String() string {
	if s, ok := binOpNames[op]; ok {
		return s
	}
	return "?"
}

// UnaryOp is a unary operator.
type UnaryOp int

const (
	OpMinus UnaryOp = iota
	OpPlus
	OpBitNot
	OpNot
)

var unaryOpNames = map[UnaryOp]string{
	OpMinus:  "-",
	OpPlus:   "+",
	OpBitNot: "~",
	OpNot:    "not",
}

func (op UnaryOp) String() string {
	if s, ok := unaryOpNames[op]; ok {
		return s
	}
	return "?"
}

// PatchOpKind identifies a patch operation.
type PatchOpKind int

const (
	PatchInsert PatchOpKind = iota
	PatchUpdate
	PatchUpsert
	PatchErase
	PatchCopy
	PatchMove
	PatchMerge
	PatchMergeRecord
	PatchDefault
	PatchDefaultRecord
)

// PatchOp is one operation of a patch expression. Key/From/To are
// expressions evaluating to strings. Value is absent for Erase and for
// Copy/Move. Default operations keep their Value unevaluated until the
// key is known to be missing.
type PatchOp struct {
	Loc   Location
	Kind  PatchOpKind
	Key   Expr
	From  Expr
	To    Expr
	Value Expr
}

// Statement forms.

// ExprStmt evaluates an expression for its value.
type ExprStmt struct {
	Expr Expr
}

// Assign evaluates Expr and writes the result through Path.
type Assign struct {
	Loc  Location
	Path *Path
	Expr Stmt
}

// Emit terminates the script run, emitting an expression result.
// If Expr is the bare event path with no segments, the current event
// itself is re-emitted (EmitEvent).
type Emit struct {
	Loc  Location
	Expr Expr
	Port Expr // optional, evaluates to the port name
}

// Drop terminates the script run, discarding the event.
type Drop struct {
	Loc Location
}

// Effectors is a non-empty statement block. All but the last statement run
// with the result discarded; the last yields the block value.
type Effectors struct {
	Stmts []Stmt
}

// PredicateClause is one match/if clause: pattern, optional guard, body.
type PredicateClause struct {
	Loc     Location
	Pattern Pattern
	Guard   Expr // optional
	Body    Effectors
}

// ClauseGroup is a group of clauses with an optional precondition path.
// If the precondition fails to resolve the whole group is skipped.
type ClauseGroup struct {
	Precondition []Segment // optional, applied to the match target
	Clauses      []PredicateClause
}

// DefaultKind selects the behavior when no clause matched.
type DefaultKind int

const (
	// DefaultNone makes a miss a NO_CLAUSE_HIT error.
	DefaultNone DefaultKind = iota
	// DefaultNull yields null on a miss.
	DefaultNull
	// DefaultBody executes a default body on a miss.
	DefaultBody
)

// Match is the match statement.
type Match struct {
	Loc     Location
	Target  Expr
	Groups  []ClauseGroup
	Default DefaultKind
	Body    Effectors // default body for DefaultBody
}

// IfElse is the two-armed special case of match.
type IfElse struct {
	Loc     Location
	Target  Expr
	If      PredicateClause
	Default DefaultKind
	Body    Effectors
}

// ComprehensionCase is one guarded case of a comprehension.
type ComprehensionCase struct {
	Guard Expr // optional
	Body  Effectors
}

// Comprehension iterates an object (key, value) or array (index, value)
// target, binding two compiler-assigned shadow locals per item.
type Comprehension struct {
	Loc    Location
	Target Expr
	KeyID  int // local slot for the key/index binding
	ValID  int // local slot for the value binding
	Cases  []ComprehensionCase
}

func (*ExprStmt) stmtForm()      {}
func (*Assign) stmtForm()        {}
func (*Emit) stmtForm()          {}
func (*Drop) stmtForm()          {}
func (*Match) stmtForm()         {}
func (*IfElse) stmtForm()        {}
func (*Comprehension) stmtForm() {}
