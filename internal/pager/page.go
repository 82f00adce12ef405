// Package pager owns the backing file: fixed 4096-byte pages addressed by
// a u32 id, a bounded LRU buffer pool, and the on-disk free list. It
// mirrors the frame-pinning discipline of tinySQL's pager/page.go, adapted
// to Lunaris's simpler fixed page layout (no WAL, no slotted directory).
package pager

import (
	"encoding/binary"
	"hash/crc32"
)

// PageSize is the fixed size of every page in the backing file, including
// the header page.
const PageSize = 4096

// PageID addresses a page within the file. 0 is reserved for the header.
type PageID uint32

// Kind discriminates the content of a page, stored as its first byte.
type Kind byte

const (
	KindFree     Kind = 0x00
	KindInterior Kind = 0x01
	KindLeaf     Kind = 0x02
	KindOverflow Kind = 0x03 // unused by this implementation; reserved per spec §3
)

const (
	magicString   = "LUNARIS0"
	headerVersion = uint32(1)

	headerMagicOff      = 0
	headerVersionOff    = 8
	headerPageCountOff  = 12
	headerFreeListOff   = 16
	headerCatalogOff    = 20
	headerCRCOff        = 24
	headerReservedStart = 28
)

var crcTable = crc32.MakeTable(crc32.Castagnoli)

// Header is the decoded contents of page 0.
type Header struct {
	PageCount    uint32
	FreeListHead PageID // 0 means empty
	CatalogRoot  PageID // 0 means no catalog tree yet
}

// newHeaderPage builds the initial, zeroed header page for a freshly
// created database file.
func newHeaderPage() []byte {
	buf := make([]byte, PageSize)
	copy(buf[headerMagicOff:], magicString)
	binary.LittleEndian.PutUint32(buf[headerVersionOff:], headerVersion)
	binary.LittleEndian.PutUint32(buf[headerPageCountOff:], 1)
	binary.LittleEndian.PutUint32(buf[headerFreeListOff:], 0)
	binary.LittleEndian.PutUint32(buf[headerCatalogOff:], 0)
	setHeaderCRC(buf)
	return buf
}

// decodeHeader validates magic/version and extracts the Header fields. It
// returns an error wrapping ErrCorrupt if the page fails validation.
func decodeHeader(buf []byte) (Header, error) {
	if len(buf) < PageSize {
		return Header{}, ErrCorrupt("short header page")
	}
	if string(buf[headerMagicOff:headerMagicOff+8]) != magicString {
		return Header{}, ErrCorrupt("bad file magic")
	}
	if binary.LittleEndian.Uint32(buf[headerVersionOff:]) != headerVersion {
		return Header{}, ErrCorrupt("unsupported file version")
	}
	if !verifyHeaderCRC(buf) {
		return Header{}, ErrCorrupt("header checksum mismatch")
	}
	return Header{
		PageCount:    binary.LittleEndian.Uint32(buf[headerPageCountOff:]),
		FreeListHead: PageID(binary.LittleEndian.Uint32(buf[headerFreeListOff:])),
		CatalogRoot:  PageID(binary.LittleEndian.Uint32(buf[headerCatalogOff:])),
	}, nil
}

func encodeHeader(buf []byte, h Header) {
	copy(buf[headerMagicOff:], magicString)
	binary.LittleEndian.PutUint32(buf[headerVersionOff:], headerVersion)
	binary.LittleEndian.PutUint32(buf[headerPageCountOff:], h.PageCount)
	binary.LittleEndian.PutUint32(buf[headerFreeListOff:], uint32(h.FreeListHead))
	binary.LittleEndian.PutUint32(buf[headerCatalogOff:], uint32(h.CatalogRoot))
	setHeaderCRC(buf)
}

func setHeaderCRC(buf []byte) {
	binary.LittleEndian.PutUint32(buf[headerCRCOff:], headerCRC(buf))
}

func verifyHeaderCRC(buf []byte) bool {
	return binary.LittleEndian.Uint32(buf[headerCRCOff:]) == headerCRC(buf)
}

// headerCRC checksums everything except the stored checksum field itself.
func headerCRC(buf []byte) uint32 {
	crc := crc32.Checksum(buf[:headerCRCOff], crcTable)
	crc = crc32.Update(crc, crcTable, buf[headerCRCOff+4:])
	return crc
}

// pageCRCOff is the offset, within every non-header page, of its CRC32-C
// checksum, placed immediately after the 1-byte kind discriminator.
const pageCRCOff = 1

// newContentPage allocates a zeroed page buffer stamped with the given
// kind; the checksum is set by computeAndStampCRC before it is written.
func newContentPage(kind Kind) []byte {
	buf := make([]byte, PageSize)
	buf[0] = byte(kind)
	return buf
}

func pageKind(buf []byte) Kind { return Kind(buf[0]) }

// computeAndStampCRC recomputes and writes the page's checksum. writeFrame
// calls it before every write of a non-header page, so callers that mutate
// a page obtained from Get only need MarkDirty.
func computeAndStampCRC(buf []byte) {
	binary.LittleEndian.PutUint32(buf[pageCRCOff:], pageCRC(buf))
}

func verifyPageCRC(buf []byte) bool {
	return binary.LittleEndian.Uint32(buf[pageCRCOff:]) == pageCRC(buf)
}

func pageCRC(buf []byte) uint32 {
	crc := crc32.Checksum(buf[:pageCRCOff], crcTable)
	crc = crc32.Update(crc, crcTable, buf[pageCRCOff+4:])
	return crc
}
