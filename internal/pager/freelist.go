package pager

import "encoding/binary"

// A free page stores the id of the next free page (0 = end of chain)
// immediately after the kind byte and checksum, forming a singly linked
// chain rooted at the file header's free-list head — a flat-file
// simplification of tinySQL's chunked FreeListPage (freelist.go), which
// Lunaris doesn't need since it has no WAL to reconcile against.
const freeNextOff = pageCRCOff + 4

func freeNextPage(buf []byte) PageID {
	return PageID(binary.LittleEndian.Uint32(buf[freeNextOff:]))
}

func setFreeNextPage(buf []byte, next PageID) {
	binary.LittleEndian.PutUint32(buf[freeNextOff:], uint32(next))
}
