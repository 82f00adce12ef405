package pager

import (
	"container/list"
	"fmt"
	"os"
	"sort"

	"github.com/dustin/go-humanize"
)

// CacheSize is the bounded LRU frame count (spec §4.1 policy).
const CacheSize = 128

// frame is one cached page: its decoded id, raw bytes, dirty flag, pin
// count, and its position in the LRU list for eviction ordering.
type frame struct {
	id     PageID
	buf    []byte
	dirty  bool
	pinned int
	elem   *list.Element
}

// Pager owns a single backing file and the bounded page cache over it.
// It is not safe for concurrent use; callers serialize access with the
// database-wide lock described in spec §5.
type Pager struct {
	file    *os.File
	path    string
	frames  map[PageID]*frame
	lru     *list.List // front = most recently used
	header  Header
	closed  bool
}

// Open creates the backing file if absent (initialising its header page)
// or opens an existing one, validating the header.
func Open(path string) (*Pager, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("pager: open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("pager: stat %s: %w", path, err)
	}

	p := &Pager{
		file:   f,
		path:   path,
		frames: make(map[PageID]*frame),
		lru:    list.New(),
	}

	if info.Size() == 0 {
		buf := newHeaderPage()
		if _, err := f.WriteAt(buf, 0); err != nil {
			f.Close()
			return nil, fmt.Errorf("pager: init header: %w", err)
		}
		if err := f.Sync(); err != nil {
			f.Close()
			return nil, fmt.Errorf("pager: sync header: %w", err)
		}
		p.header = Header{PageCount: 1}
		return p, nil
	}

	buf := make([]byte, PageSize)
	if _, err := f.ReadAt(buf, 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("pager: read header: %w", err)
	}
	h, err := decodeHeader(buf)
	if err != nil {
		f.Close()
		return nil, err
	}
	p.header = h
	return p, nil
}

// Header returns the current, in-memory file header.
func (p *Pager) Header() Header { return p.header }

// SetCatalogRoot updates the header's catalog root page id; the header
// page itself is written on the next Flush.
func (p *Pager) SetCatalogRoot(id PageID) {
	p.header.CatalogRoot = id
	p.markHeaderDirty()
}

func (p *Pager) markHeaderDirty() {
	fr, ok := p.frames[0]
	if !ok {
		buf := make([]byte, PageSize)
		encodeHeader(buf, p.header)
		fr = &frame{id: 0, buf: buf}
		p.frames[0] = fr
		fr.elem = p.lru.PushFront(fr)
	}
	encodeHeader(fr.buf, p.header)
	fr.dirty = true
	p.touch(fr)
}

// Get returns the raw bytes of page id, pinning it in the cache. Callers
// must call Unpin when done (typically when a cursor releases the page).
func (p *Pager) Get(id PageID) ([]byte, error) {
	if id == 0 {
		return p.getHeaderFrame().buf, nil
	}
	if fr, ok := p.frames[id]; ok {
		fr.pinned++
		p.touch(fr)
		return fr.buf, nil
	}
	if uint32(id) >= p.header.PageCount {
		return nil, ErrNotFound(id)
	}
	buf := make([]byte, PageSize)
	if _, err := p.file.ReadAt(buf, int64(id)*PageSize); err != nil {
		return nil, fmt.Errorf("pager: read page %d: %w", id, err)
	}
	if pageKind(buf) != KindFree && !verifyPageCRC(buf) {
		return nil, ErrCorrupt(fmt.Sprintf("page %d failed checksum verification", id))
	}
	fr := &frame{id: id, buf: buf, pinned: 1}
	if err := p.admit(fr); err != nil {
		return nil, err
	}
	return fr.buf, nil
}

func (p *Pager) getHeaderFrame() *frame {
	if fr, ok := p.frames[0]; ok {
		p.touch(fr)
		return fr
	}
	buf := make([]byte, PageSize)
	encodeHeader(buf, p.header)
	fr := &frame{id: 0, buf: buf}
	p.frames[0] = fr
	fr.elem = p.lru.PushFront(fr)
	return fr
}

// Unpin releases one pin previously taken by Get on page id.
func (p *Pager) Unpin(id PageID) {
	if fr, ok := p.frames[id]; ok && fr.pinned > 0 {
		fr.pinned--
	}
}

// MarkDirty flags the cached page id as modified; required before any
// mutation to its bytes is observed by Flush.
func (p *Pager) MarkDirty(id PageID) {
	if fr, ok := p.frames[id]; ok {
		fr.dirty = true
	}
}

// Allocate returns a fresh page id stamped with kind: either popped from
// the free list or created by extending the file, and pins it.
func (p *Pager) Allocate(kind Kind) (PageID, []byte, error) {
	if p.header.FreeListHead != 0 {
		id := p.header.FreeListHead
		buf, err := p.Get(id)
		if err != nil {
			return 0, nil, err
		}
		p.header.FreeListHead = freeNextPage(buf)
		p.markHeaderDirty()
		for i := range buf {
			buf[i] = 0
		}
		buf[0] = byte(kind)
		computeAndStampCRC(buf)
		p.MarkDirty(id)
		return id, buf, nil
	}

	id := PageID(p.header.PageCount)
	p.header.PageCount++
	p.markHeaderDirty()
	buf := newContentPage(kind)
	computeAndStampCRC(buf)
	fr := &frame{id: id, buf: buf, pinned: 1, dirty: true}
	if err := p.admit(fr); err != nil {
		return 0, nil, err
	}
	return id, buf, nil
}

// Free returns page id to the free list, overwriting its contents with
// the free-chain pointer.
func (p *Pager) Free(id PageID) error {
	buf, err := p.Get(id)
	if err != nil {
		return err
	}
	for i := range buf {
		buf[i] = 0
	}
	buf[0] = byte(KindFree)
	setFreeNextPage(buf, p.header.FreeListHead)
	computeAndStampCRC(buf)
	p.MarkDirty(id)
	p.Unpin(id)
	p.header.FreeListHead = id
	p.markHeaderDirty()
	return nil
}

// admit inserts a freshly read/allocated frame into the cache, evicting
// the least-recently-used unpinned frame first if the cache is full.
func (p *Pager) admit(fr *frame) error {
	for len(p.frames) >= CacheSize {
		if !p.evictOne() {
			break // every frame pinned; let the cache grow rather than deadlock
		}
	}
	p.frames[fr.id] = fr
	fr.elem = p.lru.PushFront(fr)
	return nil
}

func (p *Pager) evictOne() bool {
	for e := p.lru.Back(); e != nil; e = e.Prev() {
		victim := e.Value.(*frame)
		if victim.pinned > 0 || victim.id == 0 {
			continue
		}
		if victim.dirty {
			if err := p.writeFrame(victim); err != nil {
				continue
			}
		}
		p.lru.Remove(e)
		delete(p.frames, victim.id)
		return true
	}
	return false
}

func (p *Pager) touch(fr *frame) {
	if fr.elem != nil {
		p.lru.MoveToFront(fr.elem)
	}
}

// writeFrame stamps a fresh checksum on non-header pages (mutated bytes
// since the page was last read or allocated never carry an up-to-date
// CRC otherwise) and writes the page to the backing file.
func (p *Pager) writeFrame(fr *frame) error {
	if fr.id != 0 {
		computeAndStampCRC(fr.buf)
	}
	if _, err := p.file.WriteAt(fr.buf, int64(fr.id)*PageSize); err != nil {
		return fmt.Errorf("pager: write page %d: %w", fr.id, err)
	}
	fr.dirty = false
	return nil
}

// Flush writes every dirty page to the backing file in page-id order for
// locality, then fsyncs. Called once by the session after a mutating
// statement completes successfully (spec §4.1, §5).
func (p *Pager) Flush() error {
	dirty := make([]*frame, 0)
	for _, fr := range p.frames {
		if fr.dirty {
			dirty = append(dirty, fr)
		}
	}
	sort.Slice(dirty, func(i, j int) bool { return dirty[i].id < dirty[j].id })
	for _, fr := range dirty {
		if err := p.writeFrame(fr); err != nil {
			return err
		}
	}
	if err := p.file.Sync(); err != nil {
		return fmt.Errorf("pager: fsync: %w", err)
	}
	return nil
}

// Stats summarizes the pager's current footprint for startup/maintenance
// logging.
type Stats struct {
	PageCount    uint32
	CachedFrames int
	FileSize     string
}

// Stat reports a human-readable snapshot of the pager's footprint.
func (p *Pager) Stat() Stats {
	return Stats{
		PageCount:    p.header.PageCount,
		CachedFrames: len(p.frames),
		FileSize:     humanize.Bytes(uint64(p.header.PageCount) * PageSize),
	}
}

// Close flushes and closes the backing file.
func (p *Pager) Close() error {
	if p.closed {
		return nil
	}
	if err := p.Flush(); err != nil {
		return err
	}
	p.closed = true
	return p.file.Close()
}
