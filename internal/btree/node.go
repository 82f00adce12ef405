// Package btree implements the cursor-oriented B+ tree of spec §4.3 over
// i64 keys and opaque byte payloads, built on internal/pager. It follows
// the decode-mutate-reencode idiom of tinySQL's pager/btree_page.go but
// with the plain packed-entry layout spec §3 defines, rather than a
// slotted directory with reverse-growing free space.
package btree

import (
	"encoding/binary"

	"github.com/lunarisdb/lunaris/internal/pager"
)

const (
	leafHeaderSize     = 11 // kind(1) + crc(4) + row_count(2) + next_leaf(4)
	leafRowCountOff    = 5
	leafNextLeafOff    = 7
	leafEntriesStart   = leafHeaderSize

	interiorHeaderSize  = 7 // kind(1) + crc(4) + child_count(2)
	interiorChildCntOff = 5
	interiorEntriesStart = interiorHeaderSize
)

// leafEntry is one decoded (key, payload) pair of a leaf page.
type leafEntry struct {
	key     int64
	payload []byte
}

// decodeLeaf reads every entry of a leaf page out of its packed byte form.
func decodeLeaf(buf []byte) (entries []leafEntry, nextLeaf pager.PageID) {
	rowCount := int(binary.LittleEndian.Uint16(buf[leafRowCountOff:]))
	nextLeaf = pager.PageID(binary.LittleEndian.Uint32(buf[leafNextLeafOff:]))
	entries = make([]leafEntry, 0, rowCount)
	off := leafEntriesStart
	for i := 0; i < rowCount; i++ {
		key := int64(binary.LittleEndian.Uint64(buf[off:]))
		off += 8
		plen := int(binary.LittleEndian.Uint16(buf[off:]))
		off += 2
		payload := make([]byte, plen)
		copy(payload, buf[off:off+plen])
		off += plen
		entries = append(entries, leafEntry{key: key, payload: payload})
	}
	return entries, nextLeaf
}

// setLeafNext patches only the next_leaf pointer of an already-encoded
// leaf page, leaving its entries untouched.
func setLeafNext(buf []byte, next pager.PageID) {
	binary.LittleEndian.PutUint32(buf[leafNextLeafOff:], uint32(next))
}

// leafEntrySize is the on-page byte footprint of one entry.
func leafEntrySize(e leafEntry) int { return 8 + 2 + len(e.payload) }

// leafUsedBytes is the total footprint of header + all entries.
func leafUsedBytes(entries []leafEntry) int {
	n := leafHeaderSize
	for _, e := range entries {
		n += leafEntrySize(e)
	}
	return n
}

// encodeLeaf packs entries (already sorted by key) into buf, overwriting
// its content area. Callers must verify leafUsedBytes(entries) <= PageSize
// before calling.
func encodeLeaf(buf []byte, entries []leafEntry, nextLeaf pager.PageID) {
	buf[0] = byte(pager.KindLeaf)
	binary.LittleEndian.PutUint16(buf[leafRowCountOff:], uint16(len(entries)))
	binary.LittleEndian.PutUint32(buf[leafNextLeafOff:], uint32(nextLeaf))
	off := leafEntriesStart
	for _, e := range entries {
		binary.LittleEndian.PutUint64(buf[off:], uint64(e.key))
		off += 8
		binary.LittleEndian.PutUint16(buf[off:], uint16(len(e.payload)))
		off += 2
		copy(buf[off:], e.payload)
		off += len(e.payload)
	}
	// zero any trailing bytes from a previous, larger encoding
	for i := off; i < len(buf); i++ {
		buf[i] = 0
	}
}

// interiorNode is a decoded interior page: its child page ids and the
// separator keys between them (the last child has no trailing separator).
type interiorNode struct {
	children   []pager.PageID
	separators []int64 // len(separators) == len(children) - 1
}

func decodeInterior(buf []byte) interiorNode {
	childCount := int(binary.LittleEndian.Uint16(buf[interiorChildCntOff:]))
	off := interiorEntriesStart
	children := make([]pager.PageID, childCount)
	for i := 0; i < childCount; i++ {
		children[i] = pager.PageID(binary.LittleEndian.Uint32(buf[off:]))
		off += 4
	}
	separators := make([]int64, 0, childCount-1)
	for i := 0; i < childCount-1; i++ {
		separators = append(separators, int64(binary.LittleEndian.Uint64(buf[off:])))
		off += 8
	}
	return interiorNode{children: children, separators: separators}
}

func interiorUsedBytes(n interiorNode) int {
	return interiorHeaderSize + 4*len(n.children) + 8*len(n.separators)
}

func encodeInterior(buf []byte, n interiorNode) {
	buf[0] = byte(pager.KindInterior)
	binary.LittleEndian.PutUint16(buf[interiorChildCntOff:], uint16(len(n.children)))
	off := interiorEntriesStart
	for _, c := range n.children {
		binary.LittleEndian.PutUint32(buf[off:], uint32(c))
		off += 4
	}
	for _, s := range n.separators {
		binary.LittleEndian.PutUint64(buf[off:], uint64(s))
		off += 8
	}
	for i := off; i < len(buf); i++ {
		buf[i] = 0
	}
}

// findChild returns the index of the child that key belongs under, given
// separators such that keys in children[i] are < separators[i] <= keys in
// children[i+1].
func (n interiorNode) findChild(key int64) int {
	i := 0
	for i < len(n.separators) && key >= n.separators[i] {
		i++
	}
	return i
}
