// Package compiler lowers a parsed ast.Statement plus a catalog snapshot
// into the bytecode program spec §4.5 describes, with register and
// cursor allocation. It is grounded in tinySQL's internal/engine/compile.go
// shape (a Program struct plus an instruction slice produced by walking
// the AST) but targets a register+cursor VM rather than tinySQL's
// tree-walking executor.
package compiler

import "github.com/lunarisdb/lunaris/internal/value"

// Opcode enumerates the complete instruction set of spec §4.5's table.
type Opcode int

const (
	OpOpenRead Opcode = iota
	OpOpenWrite
	OpRewind
	OpNext
	OpColumn
	OpLoadConst
	OpCompare
	OpJumpIfFalse
	OpJumpIfTrue
	OpAnd
	OpOr
	OpEmitRow
	OpMakeRow
	OpDeleteCurrent
	OpIncrCounter
	OpResultCount
	OpHalt
)

func (op Opcode) String() string {
	switch op {
	case OpOpenRead:
		return "OpenRead"
	case OpOpenWrite:
		return "OpenWrite"
	case OpRewind:
		return "Rewind"
	case OpNext:
		return "Next"
	case OpColumn:
		return "Column"
	case OpLoadConst:
		return "LoadConst"
	case OpCompare:
		return "Compare"
	case OpJumpIfFalse:
		return "JumpIfFalse"
	case OpJumpIfTrue:
		return "JumpIfTrue"
	case OpAnd:
		return "And"
	case OpOr:
		return "Or"
	case OpEmitRow:
		return "EmitRow"
	case OpMakeRow:
		return "MakeRow"
	case OpDeleteCurrent:
		return "DeleteCurrent"
	case OpIncrCounter:
		return "IncrCounter"
	case OpResultCount:
		return "ResultCount"
	case OpHalt:
		return "Halt"
	default:
		return "?"
	}
}

// CompareOp mirrors ast.CompareOp at the bytecode layer so the compiler
// package has no dependency on ast beyond statement input.
type CompareOp int

const (
	CmpEq CompareOp = iota
	CmpNe
	CmpLt
	CmpLe
	CmpGt
	CmpGe
)

// Instr is one bytecode instruction. Only the fields relevant to Op are
// meaningful; unused fields are zero. This is the same "wide instruction,
// sparse fields" shape tinySQL's exec.go uses for its opcode-like dispatch
// over AST nodes, adapted to an actual flat instruction array.
type Instr struct {
	Op    Opcode
	Cur    int        // OpenRead/OpenWrite/Rewind/Next/Column/EmitRow(unused)/MakeRow/DeleteCurrent
	Root   uint32     // OpenRead/OpenWrite: root page id
	Col    int        // Column: column ordinal
	Reg    int        // destination/primary register for Column, LoadConst, JumpIfFalse/True, IncrCounter, ResultCount; And/Or: result register
	RegB   int        // Compare: second operand; And/Or: first operand register
	RegC   int        // And/Or: second operand register
	First  int        // EmitRow/MakeRow: first register of the contiguous row
	Count  int        // EmitRow/MakeRow: number of registers/columns
	Target int        // Rewind/Next/Compare/JumpIfFalse/JumpIfTrue: instruction index to jump to
	CmpOp  CompareOp  // Compare: operator
	Const  value.Value // LoadConst: literal value
}

// StatementKind distinguishes the two shapes of result spec §4.5 names.
type StatementKind int

const (
	KindRows StatementKind = iota
	KindRowCount
)

// CursorPlan records one cursor slot's binding, resolved at compile time
// so the VM doesn't need a catalog lookup mid-execution to know a table's
// schema or primary-key strategy (spec §9's INTEGER-leading-column rule).
type CursorPlan struct {
	Table        string
	Root         uint32
	Write        bool
	Schema       value.Schema
	HasIntegerPK bool
}

// Program is the compiler's complete output: the opcode sequence plus the
// register/cursor allocation and output shape (spec glossary "Program").
type Program struct {
	Instrs       []Instr
	NumRegisters int
	Cursors      []CursorPlan
	Columns      []string // output column names, for Rows statements
	Kind         StatementKind
}
