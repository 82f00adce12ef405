package pager

import "fmt"

// ErrCorrupt reports a structural problem with the backing file that
// cannot be recovered from: bad magic, unknown page kind, or a failed
// checksum. The caller (session boundary) maps this to
// lunerr.CodeInternalCorruption and marks the database read-only.
type ErrCorrupt string

func (e ErrCorrupt) Error() string { return fmt.Sprintf("pager: corrupt: %s", string(e)) }

// ErrNotFound is returned by Get for a page id beyond the current file
// extent.
type ErrNotFound PageID

func (e ErrNotFound) Error() string { return fmt.Sprintf("pager: page %d not found", PageID(e)) }
