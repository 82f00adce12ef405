package vm_test

import (
	"path/filepath"
	"testing"

	"github.com/lunarisdb/lunaris/internal/ast"
	"github.com/lunarisdb/lunaris/internal/catalog"
	"github.com/lunarisdb/lunaris/internal/compiler"
	"github.com/lunarisdb/lunaris/internal/pager"
	"github.com/lunarisdb/lunaris/internal/sqlparser"
	"github.com/lunarisdb/lunaris/internal/vm"
)

// openTestDB builds a fresh pager/catalog/compiler triple, the same
// trio a session's Database holds and runs every statement against.
func openTestDB(t *testing.T) (*pager.Pager, *catalog.Catalog, *compiler.Compiler) {
	t.Helper()
	pg, err := pager.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("pager.Open: %v", err)
	}
	t.Cleanup(func() { pg.Close() })
	cat := catalog.Open(pg)
	return pg, cat, compiler.New(cat)
}

func mustParse(t *testing.T, sql string) ast.Statement {
	t.Helper()
	p := sqlparser.NewParser(sql)
	stmt, err := p.ParseStatement()
	if err != nil {
		t.Fatalf("parse %q: %v", sql, err)
	}
	return stmt
}

func run(t *testing.T, cat *catalog.Catalog, comp *compiler.Compiler, pg *pager.Pager, sql string) *vm.Result {
	t.Helper()
	prog, err := comp.Compile(mustParse(t, sql))
	if err != nil {
		t.Fatalf("compile %q: %v", sql, err)
	}
	res, err := vm.Execute(prog, cat, pg)
	if err != nil {
		t.Fatalf("execute %q: %v", sql, err)
	}
	return res
}

func TestCreateInsertSelect(t *testing.T) {
	pg, cat, comp := openTestDB(t)

	run(t, cat, comp, pg, "CREATE TABLE users (id INTEGER, name VARCHAR(32), active BOOLEAN);")
	run(t, cat, comp, pg, "INSERT INTO users VALUES (1, 'alice', true);")
	run(t, cat, comp, pg, "INSERT INTO users VALUES (2, 'bob', false);")

	res := run(t, cat, comp, pg, "SELECT * FROM users WHERE active = true;")
	if res.Kind != compiler.KindRows {
		t.Fatalf("kind = %v, want KindRows", res.Kind)
	}
	if len(res.Rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(res.Rows))
	}
	if res.Rows[0][1].S != "alice" {
		t.Fatalf("name = %q, want alice", res.Rows[0][1].S)
	}
}

func TestIntegerPrimaryKeyDuplicateRejected(t *testing.T) {
	pg, cat, comp := openTestDB(t)
	run(t, cat, comp, pg, "CREATE TABLE t (id INTEGER, v INTEGER);")
	run(t, cat, comp, pg, "INSERT INTO t VALUES (1, 10);")

	prog, err := comp.Compile(mustParse(t, "INSERT INTO t VALUES (1, 20);"))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if _, err := vm.Execute(prog, cat, pg); err == nil {
		t.Fatalf("want duplicate key error, got nil")
	} else if _, ok := err.(vm.ErrDuplicateKey); !ok {
		t.Fatalf("err = %v (%T), want ErrDuplicateKey", err, err)
	}
}

func TestSyntheticRowIDForNonIntegerLeadingColumn(t *testing.T) {
	pg, cat, comp := openTestDB(t)
	run(t, cat, comp, pg, "CREATE TABLE logs (msg VARCHAR(16));")
	run(t, cat, comp, pg, "INSERT INTO logs VALUES ('a');")
	run(t, cat, comp, pg, "INSERT INTO logs VALUES ('b');")

	entry, err := cat.Lookup("logs")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if entry.NextRowID != 2 {
		t.Fatalf("NextRowID = %d, want 2", entry.NextRowID)
	}

	res := run(t, cat, comp, pg, "SELECT * FROM logs;")
	if len(res.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(res.Rows))
	}
}

func TestDeleteByKeyThenEmptyReselect(t *testing.T) {
	pg, cat, comp := openTestDB(t)
	run(t, cat, comp, pg, "CREATE TABLE t (id INTEGER, v INTEGER);")
	for i := int64(1); i <= 5; i++ {
		run(t, cat, comp, pg, "INSERT INTO t VALUES ("+itoa(i)+", "+itoa(i*10)+");")
	}

	res := run(t, cat, comp, pg, "DELETE FROM t WHERE id = 3;")
	if res.AffectedCount != 1 {
		t.Fatalf("affected = %d, want 1", res.AffectedCount)
	}

	res = run(t, cat, comp, pg, "SELECT * FROM t WHERE id = 3;")
	if len(res.Rows) != 0 {
		t.Fatalf("rows after delete = %d, want 0", len(res.Rows))
	}

	res = run(t, cat, comp, pg, "SELECT * FROM t;")
	if len(res.Rows) != 4 {
		t.Fatalf("remaining rows = %d, want 4", len(res.Rows))
	}
}

func TestDeleteWithoutWhereClearsTable(t *testing.T) {
	pg, cat, comp := openTestDB(t)
	run(t, cat, comp, pg, "CREATE TABLE t (id INTEGER, v INTEGER);")
	for i := int64(1); i <= 20; i++ {
		run(t, cat, comp, pg, "INSERT INTO t VALUES ("+itoa(i)+", 0);")
	}

	res := run(t, cat, comp, pg, "DELETE FROM t;")
	if res.AffectedCount != 20 {
		t.Fatalf("affected = %d, want 20", res.AffectedCount)
	}

	res = run(t, cat, comp, pg, "SELECT * FROM t;")
	if len(res.Rows) != 0 {
		t.Fatalf("rows after full delete = %d, want 0", len(res.Rows))
	}
}

func TestAndOrParenthesizedWhere(t *testing.T) {
	pg, cat, comp := openTestDB(t)
	run(t, cat, comp, pg, "CREATE TABLE t (id INTEGER, v INTEGER);")
	for i := int64(0); i <= 8; i++ {
		run(t, cat, comp, pg, "INSERT INTO t VALUES ("+itoa(i)+", 0);")
	}

	res := run(t, cat, comp, pg, "SELECT id FROM t WHERE (id > 3 AND id < 6) OR id = 1;")
	got := map[int64]bool{}
	for _, row := range res.Rows {
		got[row[0].I] = true
	}
	want := map[int64]bool{1: true, 4: true, 5: true}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for k := range want {
		if !got[k] {
			t.Fatalf("missing id %d in %v", k, got)
		}
	}
}

func TestNullComparisonIsFalse(t *testing.T) {
	pg, cat, comp := openTestDB(t)
	run(t, cat, comp, pg, "CREATE TABLE t (id INTEGER, v VARCHAR(8));")
	run(t, cat, comp, pg, "INSERT INTO t VALUES (1, NULL);")
	run(t, cat, comp, pg, "INSERT INTO t VALUES (2, 'x');")

	res := run(t, cat, comp, pg, "SELECT id FROM t WHERE v = 'x';")
	if len(res.Rows) != 1 || res.Rows[0][0].I != 2 {
		t.Fatalf("rows = %v, want [[2]]", res.Rows)
	}

	res = run(t, cat, comp, pg, "SELECT id FROM t WHERE v != 'x';")
	if len(res.Rows) != 0 {
		t.Fatalf("rows for v != 'x' = %v, want none (NULL never satisfies !=)", res.Rows)
	}
}

func TestLargeShuffledInsertAscendingScan(t *testing.T) {
	pg, cat, comp := openTestDB(t)
	run(t, cat, comp, pg, "CREATE TABLE big (id INTEGER, v INTEGER);")

	const n = 2000
	perm := shuffledPerm(n, 7)
	for _, k := range perm {
		run(t, cat, comp, pg, "INSERT INTO big VALUES ("+itoa(int64(k))+", "+itoa(int64(k*2))+");")
	}

	res := run(t, cat, comp, pg, "SELECT id, v FROM big;")
	if len(res.Rows) != n {
		t.Fatalf("rows = %d, want %d", len(res.Rows), n)
	}
	var prev int64 = -1
	for _, row := range res.Rows {
		if row[0].I <= prev {
			t.Fatalf("scan not ascending at id %d after %d", row[0].I, prev)
		}
		if row[1].I != row[0].I*2 {
			t.Fatalf("id=%d v=%d, want v=2*id", row[0].I, row[1].I)
		}
		prev = row[0].I
	}
}

func itoa(i int64) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}

// shuffledPerm returns a deterministic pseudo-random permutation of
// 0..n-1 via a simple linear congruential shuffle, avoiding a math/rand
// dependency in this package's tests.
func shuffledPerm(n int, seed int) []int {
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	state := uint64(seed) + 1
	for i := n - 1; i > 0; i-- {
		state = state*6364136223846793005 + 1442695040888963407
		j := int(state>>33) % (i + 1)
		if j < 0 {
			j = -j
		}
		perm[i], perm[j] = perm[j], perm[i]
	}
	return perm
}
