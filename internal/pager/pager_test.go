package pager

import (
	"os"
	"path/filepath"
	"testing"
)

func TestOpenInitializesHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	p, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer p.Close()

	h := p.Header()
	if h.PageCount != 1 {
		t.Fatalf("PageCount = %d, want 1", h.PageCount)
	}
	if h.FreeListHead != 0 || h.CatalogRoot != 0 {
		t.Fatalf("fresh header should have zero free list and catalog root, got %+v", h)
	}
}

func TestAllocateExtendsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	p, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer p.Close()

	id1, buf1, err := p.Allocate(KindLeaf)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if id1 != 1 {
		t.Fatalf("first allocated page = %d, want 1", id1)
	}
	if Kind(buf1[0]) != KindLeaf {
		t.Fatalf("allocated page kind = %v, want KindLeaf", Kind(buf1[0]))
	}

	id2, _, err := p.Allocate(KindInterior)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if id2 != 2 {
		t.Fatalf("second allocated page = %d, want 2", id2)
	}
}

func TestFreeAndReallocate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	p, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer p.Close()

	id1, _, err := p.Allocate(KindLeaf)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	p.Unpin(id1)
	if err := p.Free(id1); err != nil {
		t.Fatalf("Free: %v", err)
	}

	id2, buf2, err := p.Allocate(KindLeaf)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if id2 != id1 {
		t.Fatalf("Allocate after Free should reuse page %d, got %d", id1, id2)
	}
	if Kind(buf2[0]) != KindLeaf {
		t.Fatalf("reallocated page kind = %v, want KindLeaf", Kind(buf2[0]))
	}
}

func TestFlushAndReopenPreservesContents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	p, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	id, buf, err := p.Allocate(KindLeaf)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	copy(buf[11:], []byte("hello world"))
	p.MarkDirty(id)
	p.SetCatalogRoot(id)
	if err := p.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	p2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer p2.Close()

	if p2.Header().CatalogRoot != id {
		t.Fatalf("CatalogRoot after reopen = %d, want %d", p2.Header().CatalogRoot, id)
	}
	reread, err := p2.Get(id)
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if string(reread[11:22]) != "hello world" {
		t.Fatalf("page contents after reopen = %q, want %q", reread[11:22], "hello world")
	}
}

func TestGetUnknownPageFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	p, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer p.Close()

	if _, err := p.Get(99); err == nil {
		t.Fatalf("Get(99) on fresh db: want error, got nil")
	}
}

func TestCorruptMagicRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	p, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Corrupt the magic bytes directly on disk, bypassing the pager.
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read raw file: %v", err)
	}
	raw[0] = 'X'
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write raw file: %v", err)
	}

	if _, err := Open(path); err == nil {
		t.Fatalf("Open with corrupt magic: want error, got nil")
	}
}
