package sqlparser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lunarisdb/lunaris/internal/ast"
	"github.com/lunarisdb/lunaris/internal/value"
)

// ErrParse reports a syntax error; the session boundary classifies it as
// lunerr.CodeParse.
type ErrParse struct {
	Pos int
	Msg string
}

func (e *ErrParse) Error() string { return fmt.Sprintf("parse error at offset %d: %s", e.Pos, e.Msg) }

// Parser is a recursive-descent parser over the dialect spec §4.5/§6
// describe: CREATE TABLE, INSERT, SELECT (no joins/aggregation/ORDER BY),
// DELETE, and WHERE predicates built from comparisons, AND, OR and
// parentheses.
type Parser struct {
	lx   *lexer
	cur  token
	peek token
}

// NewParser creates a parser over sql.
func NewParser(sql string) *Parser {
	p := &Parser{lx: newLexer(sql)}
	p.advance()
	p.advance()
	return p
}

func (p *Parser) advance() { p.cur, p.peek = p.peek, p.lx.nextToken() }

func (p *Parser) errf(format string, args ...any) error {
	return &ErrParse{Pos: p.cur.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *Parser) atKeyword(kw string) bool { return p.cur.typ == tKeyword && p.cur.val == kw }
func (p *Parser) atSymbol(sym string) bool { return p.cur.typ == tSymbol && p.cur.val == sym }

func (p *Parser) expectKeyword(kw string) error {
	if !p.atKeyword(kw) {
		return p.errf("expected %s", kw)
	}
	p.advance()
	return nil
}

func (p *Parser) expectSymbol(sym string) error {
	if !p.atSymbol(sym) {
		return p.errf("expected %q", sym)
	}
	p.advance()
	return nil
}

// expectIdent returns the current identifier's text. Only tIdent tokens
// qualify: keywords, including type names such as "float", are not
// accepted as identifiers.
func (p *Parser) expectIdent() (string, error) {
	if p.cur.typ != tIdent {
		return "", p.errf("expected identifier, got %q", p.cur.val)
	}
	name := p.cur.val
	p.advance()
	return name, nil
}

// ParseStatement parses exactly one statement, with an optional trailing
// semicolon.
func (p *Parser) ParseStatement() (ast.Statement, error) {
	var (
		stmt ast.Statement
		err  error
	)
	switch {
	case p.atKeyword("CREATE"):
		stmt, err = p.parseCreateTable()
	case p.atKeyword("INSERT"):
		stmt, err = p.parseInsert()
	case p.atKeyword("SELECT"):
		stmt, err = p.parseSelect()
	case p.atKeyword("DELETE"):
		stmt, err = p.parseDelete()
	default:
		return nil, p.errf("expected CREATE, INSERT, SELECT or DELETE, got %q", p.cur.val)
	}
	if err != nil {
		return nil, err
	}
	if p.atSymbol(";") {
		p.advance()
	}
	if p.cur.typ != tEOF {
		return nil, p.errf("unexpected trailing input %q", p.cur.val)
	}
	return stmt, nil
}

// ---- CREATE TABLE ----

func (p *Parser) parseCreateTable() (ast.Statement, error) {
	if err := p.expectKeyword("CREATE"); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("TABLE"); err != nil {
		return nil, err
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectSymbol("("); err != nil {
		return nil, err
	}
	var cols []ast.ColumnDef
	for {
		colName, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		colType, varcharMax, err := p.parseColumnType()
		if err != nil {
			return nil, err
		}
		cols = append(cols, ast.ColumnDef{Name: colName, Type: colType, VarcharMax: varcharMax})
		if p.atSymbol(",") {
			p.advance()
			continue
		}
		break
	}
	if err := p.expectSymbol(")"); err != nil {
		return nil, err
	}
	return ast.CreateTable{Table: name, Columns: cols}, nil
}

func (p *Parser) parseColumnType() (value.ColumnType, int, error) {
	switch {
	case p.atKeyword("INTEGER"):
		p.advance()
		return value.TypeInteger, 0, nil
	case p.atKeyword("FLOAT"):
		p.advance()
		return value.TypeFloat, 0, nil
	case p.atKeyword("BOOLEAN"):
		p.advance()
		return value.TypeBoolean, 0, nil
	case p.atKeyword("VARCHAR"):
		p.advance()
		if err := p.expectSymbol("("); err != nil {
			return 0, 0, err
		}
		if p.cur.typ != tNumber {
			return 0, 0, p.errf("expected VARCHAR length, got %q", p.cur.val)
		}
		n, err := strconv.Atoi(p.cur.val)
		if err != nil || n < 1 {
			return 0, 0, p.errf("invalid VARCHAR length %q", p.cur.val)
		}
		p.advance()
		if err := p.expectSymbol(")"); err != nil {
			return 0, 0, err
		}
		return value.TypeVarchar, n, nil
	default:
		return 0, 0, p.errf("expected a column type, got %q", p.cur.val)
	}
}

// ---- INSERT ----

func (p *Parser) parseInsert() (ast.Statement, error) {
	if err := p.expectKeyword("INSERT"); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("INTO"); err != nil {
		return nil, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	var cols []string
	if p.atSymbol("(") {
		p.advance()
		for {
			c, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			cols = append(cols, c)
			if p.atSymbol(",") {
				p.advance()
				continue
			}
			break
		}
		if err := p.expectSymbol(")"); err != nil {
			return nil, err
		}
	}
	if err := p.expectKeyword("VALUES"); err != nil {
		return nil, err
	}
	var rows []ast.InsertRow
	for {
		row, err := p.parseValuesTuple()
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
		if p.atSymbol(",") {
			p.advance()
			continue
		}
		break
	}
	return ast.Insert{Table: table, Columns: cols, Rows: rows}, nil
}

func (p *Parser) parseValuesTuple() (ast.InsertRow, error) {
	if err := p.expectSymbol("("); err != nil {
		return nil, err
	}
	var row ast.InsertRow
	for {
		lit, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		row = append(row, lit)
		if p.atSymbol(",") {
			p.advance()
			continue
		}
		break
	}
	if err := p.expectSymbol(")"); err != nil {
		return nil, err
	}
	return row, nil
}

func (p *Parser) parseLiteral() (ast.Literal, error) {
	switch {
	case p.atKeyword("NULL"):
		p.advance()
		return ast.Literal{Val: value.Null()}, nil
	case p.atKeyword("TRUE"):
		p.advance()
		return ast.Literal{Val: value.Boolean(true)}, nil
	case p.atKeyword("FALSE"):
		p.advance()
		return ast.Literal{Val: value.Boolean(false)}, nil
	case p.cur.typ == tString:
		s := p.cur.val
		p.advance()
		return ast.Literal{Val: value.Text(s)}, nil
	case p.cur.typ == tNumber:
		return p.parseNumberLiteral(false)
	case p.atSymbol("-"):
		p.advance()
		return p.parseNumberLiteral(true)
	default:
		return ast.Literal{}, p.errf("expected a literal, got %q", p.cur.val)
	}
}

func (p *Parser) parseNumberLiteral(negative bool) (ast.Literal, error) {
	if p.cur.typ != tNumber {
		return ast.Literal{}, p.errf("expected a number, got %q", p.cur.val)
	}
	text := p.cur.val
	p.advance()
	if strings.Contains(text, ".") {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return ast.Literal{}, p.errf("invalid float literal %q", text)
		}
		if negative {
			f = -f
		}
		return ast.Literal{Val: value.Float(f)}, nil
	}
	i, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return ast.Literal{}, p.errf("invalid integer literal %q", text)
	}
	if negative {
		i = -i
	}
	return ast.Literal{Val: value.Integer(i)}, nil
}

// ---- SELECT ----

func (p *Parser) parseSelect() (ast.Statement, error) {
	if err := p.expectKeyword("SELECT"); err != nil {
		return nil, err
	}
	var cols []string
	if p.atSymbol("*") {
		p.advance()
	} else {
		for {
			c, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			cols = append(cols, c)
			if p.atSymbol(",") {
				p.advance()
				continue
			}
			break
		}
	}
	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	var where ast.Expr
	if p.atKeyword("WHERE") {
		p.advance()
		where, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	return ast.Select{Table: table, Columns: cols, Where: where}, nil
}

// ---- DELETE ----

func (p *Parser) parseDelete() (ast.Statement, error) {
	if err := p.expectKeyword("DELETE"); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	var where ast.Expr
	if p.atKeyword("WHERE") {
		p.advance()
		where, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	return ast.Delete{Table: table, Where: where}, nil
}

// ---- WHERE expressions ----
//
// Precedence, loosest to tightest: OR, AND, comparison, parenthesized
// group. Spec §4.5 allows no other operators (no NOT, no arithmetic).

func (p *Parser) parseExpr() (ast.Expr, error) { return p.parseOr() }

func (p *Parser) parseOr() (ast.Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.atKeyword("OR") {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = ast.BoolExpr{Op: ast.BoolOr, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAnd() (ast.Expr, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.atKeyword("AND") {
		p.advance()
		right, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		left = ast.BoolExpr{Op: ast.BoolAnd, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parsePrimary() (ast.Expr, error) {
	if p.atSymbol("(") {
		p.advance()
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expectSymbol(")"); err != nil {
			return nil, err
		}
		return inner, nil
	}
	return p.parseComparison()
}

func (p *Parser) parseComparison() (ast.Expr, error) {
	colName, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	op, err := p.parseCompareOp()
	if err != nil {
		return nil, err
	}
	lit, err := p.parseLiteral()
	if err != nil {
		return nil, err
	}
	return ast.Comparison{Left: ast.ColumnRef{Name: colName}, Op: op, Right: lit}, nil
}

func (p *Parser) parseCompareOp() (ast.CompareOp, error) {
	if p.cur.typ != tSymbol {
		return 0, p.errf("expected a comparison operator, got %q", p.cur.val)
	}
	switch p.cur.val {
	case "=":
		p.advance()
		return ast.OpEq, nil
	case "!=", "<>":
		p.advance()
		return ast.OpNe, nil
	case "<":
		p.advance()
		return ast.OpLt, nil
	case "<=":
		p.advance()
		return ast.OpLe, nil
	case ">":
		p.advance()
		return ast.OpGt, nil
	case ">=":
		p.advance()
		return ast.OpGe, nil
	default:
		return 0, p.errf("unknown comparison operator %q", p.cur.val)
	}
}
