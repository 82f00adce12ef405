package btree

import "github.com/lunarisdb/lunaris/internal/pager"

// Cursor is a movable position within a Tree, positioned at one entry of
// one leaf page at a time (spec §4.3, §9 "cursor ↔ tree back-reference").
// Entries are decoded eagerly on each move rather than held pinned in the
// pager cache across calls.
type Cursor struct {
	tree           *Tree
	leaf           pager.PageID
	entries        []leafEntry
	next           pager.PageID
	slot           int
	valid          bool
	pendingAdvance bool // set by DeleteCurrent; resolved by the next Next call
}

// NewCursor creates an unpositioned cursor over tree.
func NewCursor(tree *Tree) *Cursor { return &Cursor{tree: tree} }

// SeekFirst positions the cursor at the leftmost entry of the tree and
// reports whether the tree is non-empty.
func (c *Cursor) SeekFirst() (bool, error) {
	c.pendingAdvance = false
	if c.tree.root == 0 {
		c.valid = false
		return false, nil
	}
	cur := c.tree.root
	for {
		buf, err := c.tree.pg.Get(cur)
		if err != nil {
			return false, err
		}
		if pager.Kind(buf[0]) == pager.KindLeaf {
			entries, next := decodeLeaf(buf)
			c.tree.pg.Unpin(cur)
			c.leaf = cur
			c.entries = entries
			c.next = next
			c.slot = 0
			if len(entries) == 0 {
				return c.advanceToNonEmptyLeaf()
			}
			c.valid = true
			return true, nil
		}
		node := decodeInterior(buf)
		c.tree.pg.Unpin(cur)
		cur = node.children[0]
	}
}

// SeekEq positions the cursor at the entry with the given key, reporting
// whether it was found. On a miss the cursor becomes invalid.
func (c *Cursor) SeekEq(key int64) (bool, error) {
	c.pendingAdvance = false
	_, leafID, err := c.tree.descendToLeaf(key)
	if err != nil {
		return false, err
	}
	if leafID == 0 {
		c.valid = false
		return false, nil
	}
	buf, err := c.tree.pg.Get(leafID)
	if err != nil {
		return false, err
	}
	entries, next := decodeLeaf(buf)
	c.tree.pg.Unpin(leafID)

	for i, e := range entries {
		if e.key == key {
			c.leaf = leafID
			c.entries = entries
			c.next = next
			c.slot = i
			c.valid = true
			return true, nil
		}
	}
	c.valid = false
	return false, nil
}

// Next advances the cursor to the next entry in ascending key order,
// following the leaf sibling chain. Returns false at end of tree.
func (c *Cursor) Next() (bool, error) {
	if c.pendingAdvance {
		c.pendingAdvance = false
		// DeleteCurrent already removed the entry from c.entries in place,
		// so c.slot (unincremented) already refers to whatever followed it,
		// if anything remains on this leaf.
		if c.slot < len(c.entries) {
			c.valid = true
			return true, nil
		}
		return c.advanceToNonEmptyLeaf()
	}
	if !c.valid {
		return false, nil
	}
	c.slot++
	if c.slot < len(c.entries) {
		return true, nil
	}
	return c.advanceToNonEmptyLeaf()
}

// advanceToNonEmptyLeaf follows next_leaf pointers until it finds a leaf
// with at least one entry, or reaches the end of the chain (id 0).
func (c *Cursor) advanceToNonEmptyLeaf() (bool, error) {
	next := c.next
	for next != 0 {
		buf, err := c.tree.pg.Get(next)
		if err != nil {
			return false, err
		}
		entries, nextNext := decodeLeaf(buf)
		c.tree.pg.Unpin(next)
		if len(entries) > 0 {
			c.leaf = next
			c.entries = entries
			c.next = nextNext
			c.slot = 0
			c.valid = true
			return true, nil
		}
		next = nextNext
	}
	c.valid = false
	return false, nil
}

// Key returns the key of the entry the cursor is positioned at. Undefined
// if the cursor is not positioned.
func (c *Cursor) Key() int64 { return c.entries[c.slot].key }

// Payload returns the payload of the current entry. Undefined if the
// cursor is not positioned.
func (c *Cursor) Payload() []byte { return c.entries[c.slot].payload }

// Valid reports whether the cursor is currently positioned at an entry.
func (c *Cursor) Valid() bool { return c.valid }

// DeleteCurrent removes the entry the cursor is positioned at. The
// cursor becomes invalid until the next Next or Seek call (spec §4.3):
// a scan that deletes every matching row as it walks forward must still
// be able to resume afterward, so the cursor keeps its cached leaf
// entries in sync with the delete rather than discarding its position.
func (c *Cursor) DeleteCurrent() error {
	if !c.valid {
		return ErrKeyNotFound(0)
	}
	key := c.entries[c.slot].key
	if err := c.tree.Delete(key); err != nil {
		return err
	}
	c.entries = append(c.entries[:c.slot], c.entries[c.slot+1:]...)
	c.valid = false
	c.pendingAdvance = true
	return nil
}
