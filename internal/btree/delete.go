package btree

import "github.com/lunarisdb/lunaris/internal/pager"

// Delete removes key's entry (spec §4.3 delete algorithm): a leaf that
// empties out and isn't the root is unlinked and freed, cascading to
// collapse any interior ancestor left with a single child, and lowering
// the tree if the root itself collapses to one child.
func (t *Tree) Delete(key int64) error {
	path, leafID, err := t.descendToLeaf(key)
	if err != nil {
		return err
	}
	if leafID == 0 {
		return ErrKeyNotFound(key)
	}

	buf, err := t.pg.Get(leafID)
	if err != nil {
		return err
	}
	entries, nextLeaf := decodeLeaf(buf)
	t.pg.Unpin(leafID)

	idx := -1
	for i, e := range entries {
		if e.key == key {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrKeyNotFound(key)
	}
	entries = append(entries[:idx], entries[idx+1:]...)

	if len(entries) > 0 || leafID == t.root {
		buf, err := t.pg.Get(leafID)
		if err != nil {
			return err
		}
		encodeLeaf(buf, entries, nextLeaf)
		t.pg.MarkDirty(leafID)
		t.pg.Unpin(leafID)
		return nil
	}

	if err := t.unlinkLeaf(leafID, nextLeaf); err != nil {
		return err
	}
	if err := t.pg.Free(leafID); err != nil {
		return err
	}
	return t.removeChildFromParent(path, leafID)
}

// unlinkLeaf finds the leaf whose next_leaf points at leafID (by walking
// the sibling chain from the tree's leftmost leaf) and repoints it at
// next, preserving the ascending traversal order.
func (t *Tree) unlinkLeaf(leafID, next pager.PageID) error {
	cur := t.root
	for {
		buf, err := t.pg.Get(cur)
		if err != nil {
			return err
		}
		if pager.Kind(buf[0]) == pager.KindLeaf {
			t.pg.Unpin(cur)
			break
		}
		node := decodeInterior(buf)
		t.pg.Unpin(cur)
		cur = node.children[0]
	}
	if cur == leafID {
		return nil // leafID was the leftmost leaf; nothing points at it
	}

	prev := cur
	for {
		buf, err := t.pg.Get(prev)
		if err != nil {
			return err
		}
		_, prevNext := decodeLeaf(buf)
		t.pg.Unpin(prev)
		if prevNext == leafID {
			buf2, err := t.pg.Get(prev)
			if err != nil {
				return err
			}
			setLeafNext(buf2, next)
			t.pg.MarkDirty(prev)
			t.pg.Unpin(prev)
			return nil
		}
		if prevNext == 0 {
			return pager.ErrCorrupt("leaf sibling chain broken during unlink")
		}
		prev = prevNext
	}
}

// removeChildFromParent drops childID from the interior page at the tail
// of path, removing one adjacent separator, then collapses or lowers the
// tree if that leaves the parent underfilled (spec §4.3 delete algorithm).
func (t *Tree) removeChildFromParent(path []ancestor, childID pager.PageID) error {
	parentAnc := path[len(path)-1]
	parentPath := path[:len(path)-1]

	buf, err := t.pg.Get(parentAnc.id)
	if err != nil {
		return err
	}
	node := decodeInterior(buf)
	t.pg.Unpin(parentAnc.id)

	slot := parentAnc.childSlot
	node.children = append(node.children[:slot], node.children[slot+1:]...)
	if slot < len(node.separators) {
		node.separators = append(node.separators[:slot], node.separators[slot+1:]...)
	} else {
		node.separators = append(node.separators[:slot-1], node.separators[slot:]...)
	}

	if len(node.children) == 1 {
		onlyChild := node.children[0]
		if parentAnc.id == t.root {
			if err := t.pg.Free(parentAnc.id); err != nil {
				return err
			}
			t.root = onlyChild
			return nil
		}
		if err := t.pg.Free(parentAnc.id); err != nil {
			return err
		}
		return t.replaceChildInParent(parentPath, parentAnc.childSlot, onlyChild)
	}

	buf2, err := t.pg.Get(parentAnc.id)
	if err != nil {
		return err
	}
	encodeInterior(buf2, node)
	t.pg.MarkDirty(parentAnc.id)
	t.pg.Unpin(parentAnc.id)
	return nil
}

// replaceChildInParent overwrites the child pointer at the given slot of
// the interior page at the tail of path with newChild, used when a lower
// interior node collapsed to a single child.
func (t *Tree) replaceChildInParent(path []ancestor, _ int, newChild pager.PageID) error {
	grandAnc := path[len(path)-1]
	buf, err := t.pg.Get(grandAnc.id)
	if err != nil {
		return err
	}
	node := decodeInterior(buf)
	t.pg.Unpin(grandAnc.id)

	node.children[grandAnc.childSlot] = newChild

	buf2, err := t.pg.Get(grandAnc.id)
	if err != nil {
		return err
	}
	encodeInterior(buf2, node)
	t.pg.MarkDirty(grandAnc.id)
	t.pg.Unpin(grandAnc.id)
	return nil
}
