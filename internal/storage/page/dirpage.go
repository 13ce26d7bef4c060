package page

import (
	"encoding/binary"

	"github.com/pkg/errors"

	util "github.com/bietkhonhungvandi212/clockdb/internal/utils"
)

// Directory page layout:
//
//	0..15   header {curPage, prevPage, nextPage, entryCnt, pageType}
//	16..    entryCnt entries of 8 bytes {pageID u32, recCnt i16, freeCnt i16}
const (
	dirOffCurPage  = 0
	dirOffPrevPage = 4
	dirOffNextPage = 8
	dirOffEntryCnt = 12
	dirOffPageType = 14

	dirHeaderSize = 16
	dirEntrySize  = 8

	// MaxDirEntries is the number of data-page entries one directory page
	// can index.
	MaxDirEntries = (util.PageSize - dirHeaderSize) / dirEntrySize
)

// DirPage is a directory-page view over a Page image. Each entry locates
// one data page together with its record count and free-space hint.
type DirPage struct {
	p *Page
}

func NewDirPage(p *Page) *DirPage {
	return &DirPage{p: p}
}

// Init formats the image as an empty directory page owned by pid.
func (d *DirPage) Init(pid util.PageID) {
	d.p.CopyFrom(nil)
	d.setPageID(dirOffCurPage, pid)
	d.setPageID(dirOffPrevPage, util.InvalidPageID)
	d.setPageID(dirOffNextPage, util.InvalidPageID)
	d.setInt16(dirOffEntryCnt, 0)
	d.setInt16(dirOffPageType, TypeDirPage)
}

func (d *DirPage) CurPage() util.PageID       { return d.pageID(dirOffCurPage) }
func (d *DirPage) SetCurPage(pid util.PageID) { d.setPageID(dirOffCurPage, pid) }

func (d *DirPage) PrevPage() util.PageID       { return d.pageID(dirOffPrevPage) }
func (d *DirPage) SetPrevPage(pid util.PageID) { d.setPageID(dirOffPrevPage, pid) }

func (d *DirPage) NextPage() util.PageID       { return d.pageID(dirOffNextPage) }
func (d *DirPage) SetNextPage(pid util.PageID) { d.setPageID(dirOffNextPage, pid) }

func (d *DirPage) EntryCount() int16 {
	return d.int16(dirOffEntryCnt)
}

func (d *DirPage) PageIDAt(i int16) util.PageID {
	return d.pageID(entryBase(i))
}

func (d *DirPage) RecCntAt(i int16) int16 {
	return d.int16(entryBase(i) + 4)
}

func (d *DirPage) FreeCntAt(i int16) int16 {
	return d.int16(entryBase(i) + 6)
}

func (d *DirPage) SetRecCnt(i, recCnt int16) {
	d.setInt16(entryBase(i)+4, recCnt)
}

func (d *DirPage) SetFreeCnt(i, freeCnt int16) {
	d.setInt16(entryBase(i)+6, freeCnt)
}

// AppendEntry adds an entry for data page pid at the end of the array.
func (d *DirPage) AppendEntry(pid util.PageID, recCnt, freeCnt int16) error {
	cnt := d.EntryCount()
	if int(cnt) >= MaxDirEntries {
		return errors.Wrapf(util.ErrNoSpace, "directory page %d is full", d.CurPage())
	}
	base := entryBase(cnt)
	d.setPageID(base, pid)
	d.setInt16(base+4, recCnt)
	d.setInt16(base+6, freeCnt)
	d.setInt16(dirOffEntryCnt, cnt+1)
	return nil
}

// Compact removes the entry at index and shifts later entries down.
func (d *DirPage) Compact(index int16) {
	cnt := d.EntryCount()
	from := entryBase(index + 1)
	to := entryBase(index)
	end := entryBase(cnt)
	copy(d.p.data[to:], d.p.data[from:end])
	d.setInt16(dirOffEntryCnt, cnt-1)
}

func entryBase(i int16) int {
	return dirHeaderSize + int(i)*dirEntrySize
}

func (d *DirPage) pageID(off int) util.PageID {
	return util.PageID(binary.LittleEndian.Uint32(d.p.data[off : off+4]))
}

func (d *DirPage) setPageID(off int, pid util.PageID) {
	binary.LittleEndian.PutUint32(d.p.data[off:off+4], uint32(pid))
}

func (d *DirPage) int16(off int) int16 {
	return int16(binary.LittleEndian.Uint16(d.p.data[off : off+2]))
}

func (d *DirPage) setInt16(off int, v int16) {
	binary.LittleEndian.PutUint16(d.p.data[off:off+2], uint16(v))
}
