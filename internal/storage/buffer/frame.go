package buffer

import (
	"github.com/bietkhonhungvandi212/clockdb/internal/storage/page"
	util "github.com/bietkhonhungvandi212/clockdb/internal/utils"
)

// FrameDesc is one slot of the buffer pool: a page-sized buffer plus the
// metadata the replacer and the manager steer by.
//
// Invariants: an invalid frame holds no meaningful bytes and has pin count
// zero; a pinned frame is never an eviction candidate; a valid frame with a
// real page id is indexed by exactly one fingerprint entry.
type FrameDesc struct {
	page      page.Page
	pageID    util.PageID
	pinCount  uint32
	dirty     bool
	valid     bool
	reference bool
}

func newFrameDesc() FrameDesc {
	return FrameDesc{pageID: util.InvalidPageID}
}

// Page returns the frame's page image.
func (f *FrameDesc) Page() *page.Page {
	return &f.page
}

// PageID returns the id of the page the frame holds.
func (f *FrameDesc) PageID() util.PageID {
	return f.pageID
}

// PinCount returns the number of outstanding pins.
func (f *FrameDesc) PinCount() uint32 {
	return f.pinCount
}

func (f *FrameDesc) IsDirty() bool { return f.dirty }
func (f *FrameDesc) IsValid() bool { return f.valid }

func (f *FrameDesc) incPin() { f.pinCount++ }
func (f *FrameDesc) decPin() { f.pinCount-- }

// copyPage overwrites the frame's image with src.
func (f *FrameDesc) copyPage(src *page.Page) {
	f.page.CopyFrom(src)
}

// reset binds the frame to pid with a single fresh pin.
func (f *FrameDesc) reset(pid util.PageID) {
	f.pageID = pid
	f.pinCount = 1
	f.dirty = false
	f.valid = true
	f.reference = true
}

// invalidate marks the frame contents meaningless.
func (f *FrameDesc) invalidate() {
	f.pageID = util.InvalidPageID
	f.pinCount = 0
	f.dirty = false
	f.valid = false
	f.reference = false
}
