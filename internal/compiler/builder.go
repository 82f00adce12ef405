package compiler

// builder accumulates instructions and resolves forward-referenced
// labels (Rewind/Next/Compare/JumpIfTrue/JumpIfFalse targets) in a
// single backpatching pass, the same two-phase "emit with placeholders,
// resolve at the end" shape most bytecode compilers use.
type builder struct {
	instrs   []Instr
	nextReg  int
	cursors  []CursorPlan
	labelPos []int // label id -> resolved instruction index, -1 until placed
	fixups   []fixup
}

type fixup struct {
	instrIdx int
	labelID  int
}

func newBuilder() *builder { return &builder{} }

func (b *builder) allocReg() int {
	r := b.nextReg
	b.nextReg++
	return r
}

func (b *builder) allocRegs(n int) int {
	base := b.nextReg
	b.nextReg += n
	return base
}

func (b *builder) allocCursor(plan CursorPlan) int {
	b.cursors = append(b.cursors, plan)
	return len(b.cursors) - 1
}

// newLabel reserves a label id without placing it; the label's Target
// field on any instruction emitted with it is a label id until resolve
// rewrites it to a real instruction index.
func (b *builder) newLabel() int {
	b.labelPos = append(b.labelPos, -1)
	return len(b.labelPos) - 1
}

// placeLabel binds a previously reserved label to the position of the
// next instruction to be emitted, and returns the label id for
// convenience at call sites that place immediately after reserving.
func (b *builder) placeLabel(id int) int {
	b.labelPos[id] = len(b.instrs)
	return id
}

// emit appends instr. If its Op uses Target as a label id (Rewind, Next,
// Compare, JumpIfTrue, JumpIfFalse) rather than an already-resolved
// index, callers pass the label id there and it is fixed up in resolve.
func (b *builder) emit(instr Instr) int {
	idx := len(b.instrs)
	switch instr.Op {
	case OpRewind, OpNext, OpCompare, OpJumpIfTrue, OpJumpIfFalse:
		b.fixups = append(b.fixups, fixup{instrIdx: idx, labelID: instr.Target})
	}
	b.instrs = append(b.instrs, instr)
	return idx
}

// finish resolves every label fixup and returns the completed Program.
func (b *builder) finish(kind StatementKind, columns []string) *Program {
	for _, fx := range b.fixups {
		b.instrs[fx.instrIdx].Target = b.labelPos[fx.labelID]
	}
	return &Program{
		Instrs:       b.instrs,
		NumRegisters: b.nextReg,
		Cursors:      b.cursors,
		Columns:      columns,
		Kind:         kind,
	}
}
