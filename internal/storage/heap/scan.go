package heap

import (
	"github.com/pkg/errors"

	"github.com/bietkhonhungvandi212/clockdb/internal/storage/buffer"
	"github.com/bietkhonhungvandi212/clockdb/internal/storage/page"
	util "github.com/bietkhonhungvandi212/clockdb/internal/utils"
)

// Scan iterates over every record in the file, in directory order and slot
// order within each data page. It holds at most one directory page and one
// data page pinned at a time; Next after exhaustion and Close both leave
// the pool with no pins from the scan.
type Scan struct {
	hf *HeapFile

	dirID    util.PageID // pinned directory page, invalid once done
	dir      *page.DirPage
	entryIdx int16

	dataID util.PageID // pinned data page, invalid between entries
	data   *page.HFPage
	rid    page.RID

	done bool
}

// OpenScan starts a sequential scan of the heap file.
func (hf *HeapFile) OpenScan() (*Scan, error) {
	pv, err := hf.bm.PinPage(hf.headID, buffer.PinDiskIO, nil)
	if err != nil {
		return nil, err
	}
	return &Scan{
		hf:       hf,
		dirID:    hf.headID,
		dir:      page.NewDirPage(pv),
		entryIdx: -1,
		dataID:   util.InvalidPageID,
	}, nil
}

// Next returns the next record and its RID. After the last record it
// releases all pins and returns ErrEndOfScan.
func (s *Scan) Next() (page.RID, []byte, error) {
	if s.done {
		return page.RID{}, nil, errors.Wrap(util.ErrEndOfScan, "scan closed")
	}

	for {
		if s.data != nil {
			if rid, ok := s.data.NextRecord(s.rid); ok {
				rec, err := s.data.SelectRecord(rid)
				if err != nil {
					return page.RID{}, nil, err
				}
				s.rid = rid
				return rid, rec, nil
			}
			if err := s.hf.bm.UnpinPage(s.dataID, buffer.UnpinClean); err != nil {
				return page.RID{}, nil, err
			}
			s.data = nil
			s.dataID = util.InvalidPageID
		}

		s.entryIdx++
		if s.entryIdx >= s.dir.EntryCount() {
			next := s.dir.NextPage()
			if err := s.hf.bm.UnpinPage(s.dirID, buffer.UnpinClean); err != nil {
				return page.RID{}, nil, err
			}
			s.dir = nil
			s.dirID = util.InvalidPageID
			if next == util.InvalidPageID {
				s.done = true
				return page.RID{}, nil, errors.Wrap(util.ErrEndOfScan, "end of directory chain")
			}
			pv, err := s.hf.bm.PinPage(next, buffer.PinDiskIO, nil)
			if err != nil {
				s.done = true
				return page.RID{}, nil, err
			}
			s.dirID = next
			s.dir = page.NewDirPage(pv)
			s.entryIdx = -1
			continue
		}

		pid := s.dir.PageIDAt(s.entryIdx)
		pv, err := s.hf.bm.PinPage(pid, buffer.PinDiskIO, nil)
		if err != nil {
			return page.RID{}, nil, err
		}
		s.dataID = pid
		s.data = page.NewHFPage(pv)
		s.rid = page.RID{PageNo: pid, SlotNo: -1}
	}
}

// Close releases any pins the scan still holds. It is safe to call more
// than once and after exhaustion.
func (s *Scan) Close() error {
	if s.done {
		return nil
	}
	s.done = true
	var firstErr error
	if s.data != nil {
		if err := s.hf.bm.UnpinPage(s.dataID, buffer.UnpinClean); err != nil {
			firstErr = err
		}
		s.data = nil
		s.dataID = util.InvalidPageID
	}
	if s.dir != nil {
		if err := s.hf.bm.UnpinPage(s.dirID, buffer.UnpinClean); err != nil && firstErr == nil {
			firstErr = err
		}
		s.dir = nil
		s.dirID = util.InvalidPageID
	}
	return firstErr
}
