package buffer

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/bietkhonhungvandi212/clockdb/internal/logging"
	"github.com/bietkhonhungvandi212/clockdb/internal/storage/disk"
	"github.com/bietkhonhungvandi212/clockdb/internal/storage/page"
	util "github.com/bietkhonhungvandi212/clockdb/internal/utils"
)

// PinMode tells PinPage how to fill the frame on a miss.
type PinMode int

const (
	// PinDiskIO reads the page from disk into the frame.
	PinDiskIO PinMode = iota
	// PinMemCpy copies caller-supplied bytes into the frame; the caller
	// asserts no disk read is needed.
	PinMemCpy
	// PinNoOp leaves the frame contents alone; the caller will fill them.
	PinNoOp
)

// Unpin arguments: whether the caller modified the page.
const (
	UnpinDirty = true
	UnpinClean = false
)

// BufMgr manages a fixed array of page frames under CLOCK replacement. It
// pins and unpins disk pages, allocates and deallocates runs through the
// disk manager, and flushes dirty frames. Callers access pinned pages
// through borrowed *page.Page views whose lifetime is the pin.
//
// The pool is single-threaded by contract; wrap calls in a critical
// section if shared between goroutines.
type BufMgr struct {
	disk    disk.Manager
	frames  []FrameDesc
	frameOf map[util.PageID]int
	repl    *clockReplacer
	log     *logrus.Entry
}

func NewBufMgr(dm disk.Manager, numFrames int) *BufMgr {
	if numFrames <= 0 {
		panic(util.ErrInvalidPoolSize)
	}

	bm := &BufMgr{
		disk:    dm,
		frames:  make([]FrameDesc, numFrames),
		frameOf: make(map[util.PageID]int, numFrames),
		log:     logging.Component("buffer"),
	}
	for i := range bm.frames {
		bm.frames[i] = newFrameDesc()
	}
	bm.repl = newClockReplacer(bm.frames)
	return bm
}

// PinPage makes pageno resident with one additional pin and returns a view
// into its frame. On a hit the pin count is incremented; PinMemCpy on a
// resident page is an error since it would clobber contents other pins may
// be using. On a miss the replacer chooses a frame, dirty contents are
// written back, and the frame is filled according to mode (init is the
// source image for PinMemCpy).
func (bm *BufMgr) PinPage(pageno util.PageID, mode PinMode, init *page.Page) (*page.Page, error) {
	if idx, ok := bm.frameOf[pageno]; ok {
		if mode == PinMemCpy {
			return nil, errors.Wrapf(util.ErrMemcpyResident, "page %d", pageno)
		}
		f := &bm.frames[idx]
		f.incPin()
		return f.Page(), nil
	}

	victim := bm.repl.pickVictim()
	if victim < 0 {
		return nil, errors.Wrapf(util.ErrPoolExhausted, "pin page %d", pageno)
	}

	f := &bm.frames[victim]
	if f.valid && f.dirty {
		if err := bm.disk.WritePage(f.pageID, f.Page()); err != nil {
			return nil, errors.Wrapf(err, "write back page %d", f.pageID)
		}
		bm.log.WithFields(logrus.Fields{"evicted": f.pageID, "for": pageno}).Debug("dirty write-back")
	}
	if f.valid {
		delete(bm.frameOf, f.pageID)
	}

	switch mode {
	case PinDiskIO:
		if err := bm.disk.ReadPage(pageno, f.Page()); err != nil {
			f.invalidate()
			return nil, errors.Wrapf(err, "read page %d", pageno)
		}
	case PinMemCpy:
		f.copyPage(init)
	case PinNoOp:
	}

	f.reset(pageno)
	bm.frameOf[pageno] = victim
	return f.Page(), nil
}

// UnpinPage releases one pin. The page must be resident and pinned. A page
// unpinned dirty stays dirty until flushed or written back on eviction;
// unpinning clean never clears an earlier dirty mark.
func (bm *BufMgr) UnpinPage(pageno util.PageID, dirty bool) error {
	idx, ok := bm.frameOf[pageno]
	if !ok {
		return errors.Wrapf(util.ErrPageNotResident, "unpin page %d", pageno)
	}
	f := &bm.frames[idx]
	if f.pinCount == 0 {
		return errors.Wrapf(util.ErrPageNotPinned, "unpin page %d", pageno)
	}
	f.decPin()
	f.dirty = f.dirty || dirty
	return nil
}

// NewPage allocates a run of runSize contiguous disk pages and pins the
// first with a copy of init. If the pin fails the whole run is deallocated
// before the error is returned, so a failed NewPage never leaks disk
// pages.
func (bm *BufMgr) NewPage(init *page.Page, runSize int) (util.PageID, *page.Page, error) {
	first, err := bm.disk.AllocateRun(runSize)
	if err != nil {
		return util.InvalidPageID, nil, err
	}

	pv, err := bm.PinPage(first, PinMemCpy, init)
	if err != nil {
		if derr := bm.disk.DeallocateRun(first, runSize); derr != nil {
			bm.log.WithError(derr).WithField("page", first).Warn("rollback of page run failed")
		}
		return util.InvalidPageID, nil, err
	}
	return first, pv, nil
}

// FreePage deallocates a disk page. A resident page must be unpinned; its
// frame is invalidated before the disk manager releases the id. A
// non-resident page goes straight to the disk manager.
func (bm *BufMgr) FreePage(pageno util.PageID) error {
	idx, ok := bm.frameOf[pageno]
	if !ok {
		return bm.disk.DeallocatePage(pageno)
	}
	f := &bm.frames[idx]
	if f.pinCount > 0 {
		return errors.Wrapf(util.ErrPagePinned, "free page %d", pageno)
	}
	f.invalidate()
	delete(bm.frameOf, pageno)
	return bm.disk.DeallocatePage(pageno)
}

// FlushPage writes a resident page to disk if it is dirty.
func (bm *BufMgr) FlushPage(pageno util.PageID) error {
	idx, ok := bm.frameOf[pageno]
	if !ok {
		return errors.Wrapf(util.ErrPageNotResident, "flush page %d", pageno)
	}
	return bm.flushFrame(&bm.frames[idx])
}

// FlushAllFrames writes every resident dirty page to disk.
func (bm *BufMgr) FlushAllFrames() error {
	var firstErr error
	for i := range bm.frames {
		if err := bm.flushFrame(&bm.frames[i]); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (bm *BufMgr) flushFrame(f *FrameDesc) error {
	if !f.valid || !f.dirty {
		return nil
	}
	if err := bm.disk.WritePage(f.pageID, f.Page()); err != nil {
		return errors.Wrapf(err, "flush page %d", f.pageID)
	}
	f.dirty = false
	bm.log.WithField("page", f.pageID).Debug("flushed page")
	return nil
}

// NumFrames returns the pool size.
func (bm *BufMgr) NumFrames() int {
	return len(bm.frames)
}

// NumUnpinned counts frames with no outstanding pins; an invalid frame is
// trivially unpinned.
func (bm *BufMgr) NumUnpinned() int {
	total := 0
	for i := range bm.frames {
		if bm.frames[i].pinCount == 0 {
			total++
		}
	}
	return total
}
