// Package catalog implements the distinguished B+ tree of spec §4.4
// mapping table name to root page id and schema, grounded in tinySQL's
// pager/catalog.go (CatalogEntry, PutEntry/GetEntry/catalogKey) but
// re-targeted at Lunaris's value.Schema and its own binary row format
// rather than tinySQL's richer column metadata.
package catalog

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"

	"golang.org/x/text/cases"

	"github.com/lunarisdb/lunaris/internal/btree"
	"github.com/lunarisdb/lunaris/internal/pager"
	"github.com/lunarisdb/lunaris/internal/value"
)

var foldCaser = cases.Fold()

// FoldName returns the case-folded form of an identifier used for
// catalog hashing and comparison (spec §4.4), via Unicode-aware folding
// rather than a bare strings.ToLower.
func FoldName(name string) string { return foldCaser.String(name) }

// hashName computes the stable 64-bit key used for a table's catalog row
// (spec §3 "stable 64-bit hash of the lowercase table name").
func hashName(foldedName string) int64 {
	h := fnv.New64a()
	h.Write([]byte(foldedName))
	return int64(h.Sum64())
}

// ErrNotFound is returned by Lookup for an unknown table name.
type ErrNotFound string

func (e ErrNotFound) Error() string { return fmt.Sprintf("catalog: table %q not found", string(e)) }

// ErrDuplicateTable is returned by CreateTable when the name already
// exists.
type ErrDuplicateTable string

func (e ErrDuplicateTable) Error() string {
	return fmt.Sprintf("catalog: table %q already exists", string(e))
}

// Entry is one table's catalog record.
type Entry struct {
	Name     string // original casing, for display
	Root     pager.PageID
	Schema   value.Schema
	NextRowID int64 // next synthetic row id to assign, for tables with no INTEGER leading column
}

// Catalog wraps the distinguished catalog tree rooted at the page id
// recorded in the file header.
type Catalog struct {
	pg   *pager.Pager
	tree *btree.Tree
}

// Open binds a Catalog to the pager's current catalog root, allocating a
// fresh empty tree on first use.
func Open(pg *pager.Pager) *Catalog {
	return &Catalog{pg: pg, tree: btree.Open(pg, pg.Header().CatalogRoot)}
}

// syncRoot persists the catalog tree's root page id into the file header
// if a mutation changed it (e.g. the catalog tree's own first insert).
func (c *Catalog) syncRoot() {
	if c.tree.Root() != c.pg.Header().CatalogRoot {
		c.pg.SetCatalogRoot(c.tree.Root())
	}
}

// CreateTable allocates a new table tree and registers its schema.
func (c *Catalog) CreateTable(name string, schema value.Schema) (pager.PageID, error) {
	folded := FoldName(name)
	key := hashName(folded)

	if _, err := c.lookupByKey(key); err == nil {
		return 0, ErrDuplicateTable(name)
	}

	tableTree := btree.Open(c.pg, 0)
	// force allocation of a root leaf page for the new, empty table
	rootID, err := allocateEmptyLeaf(c.pg, tableTree)
	if err != nil {
		return 0, err
	}

	entry := Entry{Name: name, Root: rootID, Schema: schema}
	if err := c.putEntry(key, entry); err != nil {
		return 0, err
	}
	c.syncRoot()
	return rootID, nil
}

// allocateEmptyLeaf gives a freshly created table a root page without
// going through Insert (which would require a dummy row).
func allocateEmptyLeaf(pg *pager.Pager, tableTree *btree.Tree) (pager.PageID, error) {
	id, buf, err := pg.Allocate(pager.KindLeaf)
	if err != nil {
		return 0, err
	}
	// buf is already a zeroed leaf page (row_count 0, next_leaf 0) courtesy
	// of Allocate; nothing further to encode.
	_ = buf
	pg.Unpin(id)
	return id, nil
}

// Lookup resolves a table name to its catalog entry.
func (c *Catalog) Lookup(name string) (Entry, error) {
	folded := FoldName(name)
	return c.lookupByKey(hashName(folded))
}

func (c *Catalog) lookupByKey(key int64) (Entry, error) {
	cur := btree.NewCursor(c.tree)
	found, err := cur.SeekEq(key)
	if err != nil {
		return Entry{}, err
	}
	if !found {
		return Entry{}, ErrNotFound("")
	}
	return decodeEntry(cur.Payload())
}

func (c *Catalog) putEntry(key int64, entry Entry) error {
	payload := encodeEntry(entry)
	if _, err := c.tree.Insert(key, payload); err != nil {
		return err
	}
	c.syncRoot()
	return nil
}

// UpdateRoot rewrites a table's stored root page id after a mutating
// statement causes the table tree's own root to split or collapse.
func (c *Catalog) UpdateRoot(name string, newRoot pager.PageID) error {
	entry, err := c.Lookup(name)
	if err != nil {
		return err
	}
	if entry.Root == newRoot {
		return nil
	}
	entry.Root = newRoot
	return c.putEntry(hashName(FoldName(name)), entry)
}

// UpdateNextRowID persists the next synthetic row id counter for a table
// that has no INTEGER leading column.
func (c *Catalog) UpdateNextRowID(name string, next int64) error {
	entry, err := c.Lookup(name)
	if err != nil {
		return err
	}
	entry.NextRowID = next
	return c.putEntry(hashName(FoldName(name)), entry)
}

// encodeEntry serializes a catalog row as
// {table_name_varchar, root_page_id u32, next_row_id i64, column_count u16,
// (name_varchar, type_tag u8, varchar_max u16)*} per spec §3.
func encodeEntry(e Entry) []byte {
	buf := make([]byte, 0, 128)
	buf = appendVarchar(buf, e.Name)
	var rootBytes [4]byte
	binary.LittleEndian.PutUint32(rootBytes[:], uint32(e.Root))
	buf = append(buf, rootBytes[:]...)
	var nextIDBytes [8]byte
	binary.LittleEndian.PutUint64(nextIDBytes[:], uint64(e.NextRowID))
	buf = append(buf, nextIDBytes[:]...)
	var ccBytes [2]byte
	binary.LittleEndian.PutUint16(ccBytes[:], uint16(len(e.Schema.Columns)))
	buf = append(buf, ccBytes[:]...)
	for _, col := range e.Schema.Columns {
		buf = appendVarchar(buf, col.Name)
		buf = append(buf, byte(col.Type))
		var vmBytes [2]byte
		binary.LittleEndian.PutUint16(vmBytes[:], uint16(col.VarcharMax))
		buf = append(buf, vmBytes[:]...)
	}
	return buf
}

func decodeEntry(buf []byte) (Entry, error) {
	name, off, err := readVarchar(buf, 0)
	if err != nil {
		return Entry{}, err
	}
	if off+14 > len(buf) {
		return Entry{}, fmt.Errorf("catalog: truncated entry header")
	}
	root := pager.PageID(binary.LittleEndian.Uint32(buf[off:]))
	off += 4
	nextRowID := int64(binary.LittleEndian.Uint64(buf[off:]))
	off += 8
	colCount := int(binary.LittleEndian.Uint16(buf[off:]))
	off += 2

	cols := make([]value.Column, 0, colCount)
	for i := 0; i < colCount; i++ {
		colName, noff, err := readVarchar(buf, off)
		if err != nil {
			return Entry{}, err
		}
		off = noff
		if off+3 > len(buf) {
			return Entry{}, fmt.Errorf("catalog: truncated column entry")
		}
		typ := value.ColumnType(buf[off])
		off++
		varcharMax := int(binary.LittleEndian.Uint16(buf[off:]))
		off += 2
		cols = append(cols, value.Column{Name: colName, Type: typ, VarcharMax: varcharMax, Ordinal: i})
	}

	return Entry{
		Name:      name,
		Root:      root,
		NextRowID: nextRowID,
		Schema:    value.Schema{Columns: cols},
	}, nil
}

func appendVarchar(buf []byte, s string) []byte {
	b := []byte(s)
	var lb [2]byte
	binary.LittleEndian.PutUint16(lb[:], uint16(len(b)))
	buf = append(buf, lb[:]...)
	return append(buf, b...)
}

func readVarchar(buf []byte, off int) (string, int, error) {
	if off+2 > len(buf) {
		return "", 0, fmt.Errorf("catalog: truncated varchar length")
	}
	l := int(binary.LittleEndian.Uint16(buf[off:]))
	off += 2
	if off+l > len(buf) {
		return "", 0, fmt.Errorf("catalog: truncated varchar payload")
	}
	return string(buf[off : off+l]), off + l, nil
}
