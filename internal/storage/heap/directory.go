package heap

import (
	"github.com/pkg/errors"

	"github.com/bietkhonhungvandi212/clockdb/internal/storage/buffer"
	"github.com/bietkhonhungvandi212/clockdb/internal/storage/page"
	util "github.com/bietkhonhungvandi212/clockdb/internal/utils"
)

// availPage returns a data page with room for a record of recLen bytes,
// growing the file if no existing page fits.
func (hf *HeapFile) availPage(recLen int) (util.PageID, error) {
	need := int16(recLen + page.SlotSize)
	dirID := hf.headID
	for {
		pv, err := hf.bm.PinPage(dirID, buffer.PinDiskIO, nil)
		if err != nil {
			return util.InvalidPageID, err
		}
		dp := page.NewDirPage(pv)
		for i := int16(0); i < dp.EntryCount(); i++ {
			if dp.FreeCntAt(i) >= need {
				pid := dp.PageIDAt(i)
				if err := hf.bm.UnpinPage(dirID, buffer.UnpinClean); err != nil {
					return util.InvalidPageID, err
				}
				return pid, nil
			}
		}
		next := dp.NextPage()
		if err := hf.bm.UnpinPage(dirID, buffer.UnpinClean); err != nil {
			return util.InvalidPageID, err
		}
		if next == util.InvalidPageID {
			return hf.insertPage()
		}
		dirID = next
	}
}

// findDirEntry locates the directory entry for data page pageno. On
// success the directory page is returned pinned; the caller modifies it
// and unpins. A missing entry is a broken chain, not a user error.
func (hf *HeapFile) findDirEntry(pageno util.PageID) (util.PageID, *page.DirPage, int16, error) {
	dirID := hf.headID
	for {
		pv, err := hf.bm.PinPage(dirID, buffer.PinDiskIO, nil)
		if err != nil {
			return util.InvalidPageID, nil, -1, err
		}
		dp := page.NewDirPage(pv)
		for i := int16(0); i < dp.EntryCount(); i++ {
			if dp.PageIDAt(i) == pageno {
				return dirID, dp, i, nil
			}
		}
		next := dp.NextPage()
		if err := hf.bm.UnpinPage(dirID, buffer.UnpinClean); err != nil {
			return util.InvalidPageID, nil, -1, err
		}
		if next == util.InvalidPageID {
			return util.InvalidPageID, nil, -1, errors.Wrapf(util.ErrDirCorrupt, "no directory entry for page %d", pageno)
		}
		dirID = next
	}
}

// updateDirEntry applies a record-count delta and the new free-space hint
// to the entry for pageno, then removes the data page if it went empty.
func (hf *HeapFile) updateDirEntry(pageno util.PageID, deltaRec int, freeCnt int16) error {
	dirID, dp, idx, err := hf.findDirEntry(pageno)
	if err != nil {
		return err
	}
	recCnt := dp.RecCntAt(idx) + int16(deltaRec)
	dp.SetRecCnt(idx, recCnt)
	dp.SetFreeCnt(idx, freeCnt)
	if err := hf.bm.UnpinPage(dirID, buffer.UnpinDirty); err != nil {
		return err
	}
	if recCnt < 1 {
		return hf.deletePage(pageno, dirID, idx)
	}
	return nil
}

// insertPage grows the file by one empty data page: the first directory
// page with a free entry slot gets the entry, extending the chain with a
// fresh directory page when every existing one is full. Pages are pinned
// strictly one at a time so the whole operation works against a
// single-frame pool.
func (hf *HeapFile) insertPage() (util.PageID, error) {
	dirID := hf.headID
	for {
		pv, err := hf.bm.PinPage(dirID, buffer.PinDiskIO, nil)
		if err != nil {
			return util.InvalidPageID, err
		}
		dp := page.NewDirPage(pv)
		cnt := dp.EntryCount()
		next := dp.NextPage()
		if err := hf.bm.UnpinPage(dirID, buffer.UnpinClean); err != nil {
			return util.InvalidPageID, err
		}

		if int(cnt) < page.MaxDirEntries {
			break
		}
		if next != util.InvalidPageID {
			dirID = next
			continue
		}

		nid, err := hf.appendDirPage(dirID)
		if err != nil {
			return util.InvalidPageID, err
		}
		dirID = nid
	}

	// dirID has a free entry slot; make the data page first, then record it.
	pid, err := hf.dm.AllocatePage()
	if err != nil {
		return util.InvalidPageID, err
	}
	var img page.Page
	hp := page.NewHFPage(&img)
	hp.Init(pid)
	free := hp.FreeSpace()

	if _, err := hf.bm.PinPage(pid, buffer.PinMemCpy, &img); err != nil {
		if derr := hf.dm.DeallocatePage(pid); derr != nil {
			hf.log.WithError(derr).Warn("rollback of data page failed")
		}
		return util.InvalidPageID, err
	}
	if err := hf.bm.UnpinPage(pid, buffer.UnpinDirty); err != nil {
		return util.InvalidPageID, err
	}

	pv, err := hf.bm.PinPage(dirID, buffer.PinDiskIO, nil)
	if err != nil {
		return util.InvalidPageID, err
	}
	if err := page.NewDirPage(pv).AppendEntry(pid, 0, free); err != nil {
		if uerr := hf.bm.UnpinPage(dirID, buffer.UnpinClean); uerr != nil {
			return util.InvalidPageID, uerr
		}
		return util.InvalidPageID, err
	}
	if err := hf.bm.UnpinPage(dirID, buffer.UnpinDirty); err != nil {
		return util.InvalidPageID, err
	}
	hf.log.WithField("page", pid).Debug("new data page")
	return pid, nil
}

// appendDirPage links a fresh empty directory page after tail and returns
// its id. The new page is written into the pool before the chain is
// patched to point at it.
func (hf *HeapFile) appendDirPage(tail util.PageID) (util.PageID, error) {
	nid, err := hf.dm.AllocatePage()
	if err != nil {
		return util.InvalidPageID, err
	}
	var img page.Page
	ndp := page.NewDirPage(&img)
	ndp.Init(nid)
	ndp.SetPrevPage(tail)

	if _, err := hf.bm.PinPage(nid, buffer.PinMemCpy, &img); err != nil {
		if derr := hf.dm.DeallocatePage(nid); derr != nil {
			hf.log.WithError(derr).Warn("rollback of directory page failed")
		}
		return util.InvalidPageID, err
	}
	if err := hf.bm.UnpinPage(nid, buffer.UnpinDirty); err != nil {
		return util.InvalidPageID, err
	}

	pv, err := hf.bm.PinPage(tail, buffer.PinDiskIO, nil)
	if err != nil {
		return util.InvalidPageID, err
	}
	page.NewDirPage(pv).SetNextPage(nid)
	if err := hf.bm.UnpinPage(tail, buffer.UnpinDirty); err != nil {
		return util.InvalidPageID, err
	}
	hf.log.WithField("page", nid).Debug("new directory page")
	return nid, nil
}

// deletePage frees data page pageno and removes its entry at index on
// directory page dirID. A directory page left without entries is unlinked
// from the chain and freed — except the head, which always stays so the
// file's head id remains valid.
func (hf *HeapFile) deletePage(pageno, dirID util.PageID, index int16) error {
	pv, err := hf.bm.PinPage(dirID, buffer.PinDiskIO, nil)
	if err != nil {
		return err
	}
	dp := page.NewDirPage(pv)
	prev := dp.PrevPage()
	next := dp.NextPage()

	if dp.EntryCount() >= 2 || dirID == hf.headID {
		dp.Compact(index)
		if err := hf.bm.UnpinPage(dirID, buffer.UnpinDirty); err != nil {
			return err
		}
	} else {
		if err := hf.bm.UnpinPage(dirID, buffer.UnpinClean); err != nil {
			return err
		}
		if prev != util.InvalidPageID {
			ppv, err := hf.bm.PinPage(prev, buffer.PinDiskIO, nil)
			if err != nil {
				return err
			}
			page.NewDirPage(ppv).SetNextPage(next)
			if err := hf.bm.UnpinPage(prev, buffer.UnpinDirty); err != nil {
				return err
			}
		}
		if next != util.InvalidPageID {
			npv, err := hf.bm.PinPage(next, buffer.PinDiskIO, nil)
			if err != nil {
				return err
			}
			page.NewDirPage(npv).SetPrevPage(prev)
			if err := hf.bm.UnpinPage(next, buffer.UnpinDirty); err != nil {
				return err
			}
		}
		if err := hf.bm.FreePage(dirID); err != nil {
			return err
		}
		hf.log.WithField("page", dirID).Debug("freed directory page")
	}

	return hf.bm.FreePage(pageno)
}
