// Package vm executes a compiler.Program against a catalog/pager pair
// (spec §4.6): a linear register file, a small cursor table bound to
// B+ trees, and an instruction pointer. Deterministic and single
// threaded per statement, matching spec §5's "a statement runs to
// completion without yielding".
package vm

import (
	"fmt"

	"github.com/lunarisdb/lunaris/internal/btree"
	"github.com/lunarisdb/lunaris/internal/catalog"
	"github.com/lunarisdb/lunaris/internal/compiler"
	"github.com/lunarisdb/lunaris/internal/pager"
	"github.com/lunarisdb/lunaris/internal/rowcodec"
	"github.com/lunarisdb/lunaris/internal/value"
)

// ErrDuplicateKey is returned by MakeRow when a table whose first column
// is INTEGER (and is therefore its B+ tree key, spec §9) already has a
// row with the value being inserted.
type ErrDuplicateKey int64

func (e ErrDuplicateKey) Error() string {
	return fmt.Sprintf("vm: duplicate primary key %d", int64(e))
}

// Result is a statement's outcome: either a row set with its column
// names, or an affected-row count (spec §4.6 "rows or a mutation count").
type Result struct {
	Kind          compiler.StatementKind
	Columns       []string
	Rows          []value.Row
	AffectedCount int64
}

// cursorState is one program cursor's runtime binding: the tree it scans
// and, for write cursors over a synthetic-row-id table, the lazily
// loaded next-id counter (spec §9's "hidden leading value" bookkeeping).
type cursorState struct {
	plan            compiler.CursorPlan
	tree            *btree.Tree
	cur             *btree.Cursor
	nextRowID       int64
	nextRowIDLoaded bool
	nextRowIDDirty  bool
}

// Execute runs prog to completion, returning its result. Errors abort
// the program immediately (spec §4.6). Execute never flushes; the session
// calls Flush only after a successful mutating statement (spec §4.1, §7).
// Pages an aborted statement already changed are not rolled back: they
// stay dirty in the pager's cache, are visible to later statements, and
// reach disk through cache eviction or the next Flush.
func Execute(prog *compiler.Program, cat *catalog.Catalog, pg *pager.Pager) (*Result, error) {
	regs := make([]value.Value, prog.NumRegisters)
	cursors := make([]*cursorState, len(prog.Cursors))

	var rows []value.Row
	var affected int64

	pc := 0
	for pc < len(prog.Instrs) {
		instr := prog.Instrs[pc]
		switch instr.Op {
		case compiler.OpOpenRead, compiler.OpOpenWrite:
			plan := prog.Cursors[instr.Cur]
			tree := btree.Open(pg, pager.PageID(instr.Root))
			cursors[instr.Cur] = &cursorState{plan: plan, tree: tree, cur: btree.NewCursor(tree)}
			pc++

		case compiler.OpRewind:
			cs := cursors[instr.Cur]
			ok, err := cs.cur.SeekFirst()
			if err != nil {
				return nil, err
			}
			if ok {
				pc++
			} else {
				pc = instr.Target
			}

		case compiler.OpNext:
			cs := cursors[instr.Cur]
			ok, err := cs.cur.Next()
			if err != nil {
				return nil, err
			}
			if ok {
				pc = instr.Target
			} else {
				pc++
			}

		case compiler.OpColumn:
			cs := cursors[instr.Cur]
			row, err := rowcodec.Decode(cs.plan.Schema, cs.cur.Payload())
			if err != nil {
				return nil, err
			}
			regs[instr.Reg] = row[instr.Col]
			pc++

		case compiler.OpLoadConst:
			regs[instr.Reg] = instr.Const
			pc++

		case compiler.OpCompare:
			res := value.Compare(regs[instr.Reg], regs[instr.RegB])
			if compareTrue(instr.CmpOp, res) {
				pc = instr.Target
			} else {
				pc++
			}

		case compiler.OpJumpIfFalse:
			if isTrue(regs[instr.Reg]) {
				pc++
			} else {
				pc = instr.Target
			}

		case compiler.OpJumpIfTrue:
			if isTrue(regs[instr.Reg]) {
				pc = instr.Target
			} else {
				pc++
			}

		case compiler.OpAnd:
			regs[instr.Reg] = threeValuedAnd(regs[instr.RegB], regs[instr.RegC])
			pc++

		case compiler.OpOr:
			regs[instr.Reg] = threeValuedOr(regs[instr.RegB], regs[instr.RegC])
			pc++

		case compiler.OpEmitRow:
			row := make(value.Row, instr.Count)
			copy(row, regs[instr.First:instr.First+instr.Count])
			rows = append(rows, row)
			pc++

		case compiler.OpMakeRow:
			cs := cursors[instr.Cur]
			rowVals := make(value.Row, instr.Count)
			copy(rowVals, regs[instr.First:instr.First+instr.Count])
			if err := makeRow(cs, rowVals, cat); err != nil {
				return nil, err
			}
			pc++

		case compiler.OpDeleteCurrent:
			cs := cursors[instr.Cur]
			if err := cs.cur.DeleteCurrent(); err != nil {
				return nil, err
			}
			pc++

		case compiler.OpIncrCounter:
			regs[instr.Reg] = value.Integer(regs[instr.Reg].I + 1)
			pc++

		case compiler.OpResultCount:
			affected = regs[instr.Reg].I
			pc++

		case compiler.OpHalt:
			pc = len(prog.Instrs)

		default:
			return nil, fmt.Errorf("vm: unknown opcode %v", instr.Op)
		}
	}

	for _, cs := range cursors {
		if cs == nil || !cs.plan.Write {
			continue
		}
		if cs.tree.Root() != pager.PageID(cs.plan.Root) {
			if err := cat.UpdateRoot(cs.plan.Table, cs.tree.Root()); err != nil {
				return nil, err
			}
		}
		if cs.nextRowIDDirty {
			if err := cat.UpdateNextRowID(cs.plan.Table, cs.nextRowID); err != nil {
				return nil, err
			}
		}
	}

	return &Result{Kind: prog.Kind, Columns: prog.Columns, Rows: rows, AffectedCount: affected}, nil
}

// makeRow encodes rowVals and inserts it into cs's tree, assigning the
// key per spec §9: the first column's value when the table's primary key
// is an INTEGER leading column (rejecting duplicates instead of the B+
// tree's default replace-in-place), or the table's next synthetic row id
// otherwise.
func makeRow(cs *cursorState, rowVals value.Row, cat *catalog.Catalog) error {
	payload, err := rowcodec.Encode(cs.plan.Schema, rowVals)
	if err != nil {
		return err
	}

	var key int64
	if cs.plan.HasIntegerPK {
		key = rowVals[0].I
		dup := btree.NewCursor(cs.tree)
		found, err := dup.SeekEq(key)
		if err != nil {
			return err
		}
		if found {
			return ErrDuplicateKey(key)
		}
	} else {
		if !cs.nextRowIDLoaded {
			entry, err := cat.Lookup(cs.plan.Table)
			if err != nil {
				return err
			}
			cs.nextRowID = entry.NextRowID
			cs.nextRowIDLoaded = true
		}
		key = cs.nextRowID
		cs.nextRowID++
		cs.nextRowIDDirty = true
	}

	_, err = cs.tree.Insert(key, payload)
	return err
}

func isTrue(v value.Value) bool { return v.Kind == value.KindBoolean && v.B }

// compareTrue maps a Compare instruction's operator and a value.Compare
// outcome to a boolean. CmpUnordered covers both a Null operand and a
// kind mismatch (spec §3); both are treated uniformly as "the predicate
// does not hold" for every operator, not only equality, since spec §3
// only states the equality case explicitly and an ordering comparison
// between incomparable kinds has no defensible true/false answer either.
func compareTrue(op compiler.CompareOp, res value.CompareResult) bool {
	if res == value.CmpUnordered {
		return false
	}
	switch op {
	case compiler.CmpEq:
		return res == value.CmpEqual
	case compiler.CmpNe:
		return res != value.CmpEqual
	case compiler.CmpLt:
		return res == value.CmpLess
	case compiler.CmpLe:
		return res == value.CmpLess || res == value.CmpEqual
	case compiler.CmpGt:
		return res == value.CmpGreater
	case compiler.CmpGe:
		return res == value.CmpGreater || res == value.CmpEqual
	default:
		return false
	}
}

// threeValuedAnd implements spec §4.5's And opcode: Null (treated as
// unknown) only short-circuits to false when the other operand is
// false, and is otherwise "unknown" (propagated as Null).
func threeValuedAnd(a, b value.Value) value.Value {
	af, aKnown := boolOrUnknown(a)
	bf, bKnown := boolOrUnknown(b)
	switch {
	case aKnown && !af:
		return value.Boolean(false)
	case bKnown && !bf:
		return value.Boolean(false)
	case aKnown && bKnown:
		return value.Boolean(af && bf)
	default:
		return value.Null()
	}
}

// threeValuedOr implements spec §4.5's Or opcode, dually to And.
func threeValuedOr(a, b value.Value) value.Value {
	af, aKnown := boolOrUnknown(a)
	bf, bKnown := boolOrUnknown(b)
	switch {
	case aKnown && af:
		return value.Boolean(true)
	case bKnown && bf:
		return value.Boolean(true)
	case aKnown && bKnown:
		return value.Boolean(af || bf)
	default:
		return value.Null()
	}
}

func boolOrUnknown(v value.Value) (b bool, known bool) {
	if v.Kind != value.KindBoolean {
		return false, false
	}
	return v.B, true
}
