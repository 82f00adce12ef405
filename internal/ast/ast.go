// Package ast defines the parsed-statement surface the compiler consumes
// (spec §1, §4.5): the small AST the tokenizer/parser is assumed to
// produce for the dialect described in spec §6. It deliberately mirrors
// tinySQL's internal/engine AST shape (VarRef, Literal, Binary, Statement
// interface) but trimmed to the operators and statement kinds spec §4.5
// actually compiles — no joins, no aggregation, no ORDER BY.
package ast

import "github.com/lunarisdb/lunaris/internal/value"

// Expr is the root interface for WHERE-clause and literal expressions.
type Expr interface{ exprNode() }

// ColumnRef refers to a column by name within the statement's table.
type ColumnRef struct{ Name string }

// Literal holds a constant value already resolved to a value.Value.
type Literal struct{ Val value.Value }

// CompareOp enumerates the comparison operators spec §4.5 allows between
// a column reference and a literal.
type CompareOp int

const (
	OpEq CompareOp = iota
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
)

func (op CompareOp) String() string {
	switch op {
	case OpEq:
		return "="
	case OpNe:
		return "!="
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	case OpGt:
		return ">"
	case OpGe:
		return ">="
	default:
		return "?"
	}
}

// Comparison is a leaf predicate: a column compared against a literal.
// Spec §4.5 disallows column-to-column predicates, so Right is always a
// Literal.
type Comparison struct {
	Left  ColumnRef
	Op    CompareOp
	Right Literal
}

// BoolOp enumerates the two supported boolean connectives.
type BoolOp int

const (
	BoolAnd BoolOp = iota
	BoolOr
)

// BoolExpr combines two sub-expressions with AND/OR (spec §4.5); grouping
// by parentheses is represented directly by AST nesting, no explicit
// Paren node is needed.
type BoolExpr struct {
	Op          BoolOp
	Left, Right Expr
}

func (ColumnRef) exprNode()  {}
func (Literal) exprNode()    {}
func (Comparison) exprNode() {}
func (BoolExpr) exprNode()   {}

// ColumnDef describes one column of a CREATE TABLE statement.
type ColumnDef struct {
	Name       string
	Type       value.ColumnType
	VarcharMax int
}

// Statement is the root interface for all parsed statements.
type Statement interface{ stmtNode() }

// CreateTable represents CREATE TABLE name(col type, ...).
type CreateTable struct {
	Table   string
	Columns []ColumnDef
}

// InsertRow is one VALUES tuple of an INSERT statement; expressions are
// restricted to literals (spec §6 "literals" in the dialect surface).
type InsertRow []Literal

// Insert represents INSERT INTO table [(cols...)] VALUES (...), (...);
// Columns is empty when the statement omits the column list, meaning
// "all columns in declared order".
type Insert struct {
	Table   string
	Columns []string
	Rows    []InsertRow
}

// Select represents SELECT cols|* FROM table [WHERE expr];
type Select struct {
	Table   string
	Columns []string // empty means "*"
	Where   Expr     // nil means no filter
}

// Delete represents DELETE FROM table [WHERE expr];
type Delete struct {
	Table string
	Where Expr // nil means delete every row
}

func (CreateTable) stmtNode() {}
func (Insert) stmtNode()      {}
func (Select) stmtNode()      {}
func (Delete) stmtNode()      {}
