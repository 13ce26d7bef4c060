package page

import (
	"encoding/binary"

	"github.com/pkg/errors"

	util "github.com/bietkhonhungvandi212/clockdb/internal/utils"
)

// Slotted data page layout:
//
//	0..19    header {curPage, prevPage, nextPage, slotCnt, usedPtr, freeSpace, pageType}
//	20..     slot directory, 4 bytes per slot {offset u16, length u16}
//	usedPtr..PageSize  record data, allocated downward from the end
//
// An empty slot has offset 0; record data always lives above the header, so
// offset 0 can never belong to a live record.
const (
	hfOffCurPage   = 0
	hfOffPrevPage  = 4
	hfOffNextPage  = 8
	hfOffSlotCnt   = 12
	hfOffUsedPtr   = 14
	hfOffFreeSpace = 16
	hfOffPageType  = 18

	// HFHeaderSize is the fixed header overhead of a data page.
	HFHeaderSize = 20

	// SlotSize is the per-record slot overhead.
	SlotSize = 4

	// MaxRecordSize is the largest record a data page can hold.
	MaxRecordSize = util.PageSize - HFHeaderSize - SlotSize
)

// TypeDataPage tags slotted data pages, TypeDirPage directory pages.
const (
	TypeDataPage int16 = 11
	TypeDirPage  int16 = 10
)

// HFPage is a slotted-page view over a Page image. It does no I/O; the
// caller owns pinning the underlying page.
type HFPage struct {
	p *Page
}

func NewHFPage(p *Page) *HFPage {
	return &HFPage{p: p}
}

// Init formats the image as an empty data page owned by pid.
func (h *HFPage) Init(pid util.PageID) {
	h.p.CopyFrom(nil)
	h.setPageID(hfOffCurPage, pid)
	h.setPageID(hfOffPrevPage, util.InvalidPageID)
	h.setPageID(hfOffNextPage, util.InvalidPageID)
	h.setInt16(hfOffSlotCnt, 0)
	h.setInt16(hfOffUsedPtr, int16(util.PageSize))
	h.setInt16(hfOffFreeSpace, int16(util.PageSize-HFHeaderSize))
	h.setInt16(hfOffPageType, TypeDataPage)
}

func (h *HFPage) CurPage() util.PageID       { return h.pageID(hfOffCurPage) }
func (h *HFPage) SetCurPage(pid util.PageID) { h.setPageID(hfOffCurPage, pid) }

func (h *HFPage) PrevPage() util.PageID       { return h.pageID(hfOffPrevPage) }
func (h *HFPage) SetPrevPage(pid util.PageID) { h.setPageID(hfOffPrevPage, pid) }

func (h *HFPage) NextPage() util.PageID       { return h.pageID(hfOffNextPage) }
func (h *HFPage) SetNextPage(pid util.PageID) { h.setPageID(hfOffNextPage, pid) }

// SlotCount returns the size of the slot directory, including empty slots.
func (h *HFPage) SlotCount() int16 {
	return h.int16(hfOffSlotCnt)
}

// FreeSpace reports the space available for new records. Empty slots count
// as reusable, so an insert of length L moves this by exactly -(L+SlotSize)
// and a delete by +(L+SlotSize).
func (h *HFPage) FreeSpace() int16 {
	return h.int16(hfOffFreeSpace)
}

// contiguous is the gap between the slot directory and the record data.
func (h *HFPage) contiguous() int {
	return int(h.int16(hfOffUsedPtr)) - (HFHeaderSize + int(h.SlotCount())*SlotSize)
}

// InsertRecord stores rec on the page and returns its RID. Empty slots are
// reused before the slot directory grows.
func (h *HFPage) InsertRecord(rec []byte) (RID, error) {
	length := len(rec)
	if length > MaxRecordSize {
		return RID{}, errors.Wrapf(util.ErrRecordTooLarge, "%d bytes", length)
	}

	slot := int16(-1)
	for i := int16(0); i < h.SlotCount(); i++ {
		if h.slotEmpty(i) {
			slot = i
			break
		}
	}

	need := length
	if slot < 0 {
		need += SlotSize
	}
	if h.contiguous() < need {
		return RID{}, errors.Wrapf(util.ErrNoSpace, "page %d, record of %d bytes", h.CurPage(), length)
	}
	if slot < 0 {
		slot = h.SlotCount()
		h.setInt16(hfOffSlotCnt, slot+1)
	}

	usedPtr := h.int16(hfOffUsedPtr) - int16(length)
	copy(h.p.data[usedPtr:], rec)
	h.setInt16(hfOffUsedPtr, usedPtr)
	h.setSlot(slot, uint16(usedPtr), uint16(length))
	h.setInt16(hfOffFreeSpace, h.FreeSpace()-int16(length+SlotSize))

	return RID{PageNo: h.CurPage(), SlotNo: slot}, nil
}

// SelectRecord returns a copy of the record bytes.
func (h *HFPage) SelectRecord(rid RID) ([]byte, error) {
	off, length, err := h.slotOf(rid)
	if err != nil {
		return nil, err
	}
	rec := make([]byte, length)
	copy(rec, h.p.data[off:off+length])
	return rec, nil
}

// UpdateRecord overwrites a record in place. The new bytes must have the
// same length as the stored record.
func (h *HFPage) UpdateRecord(rid RID, rec []byte) error {
	off, length, err := h.slotOf(rid)
	if err != nil {
		return err
	}
	if len(rec) != length {
		return errors.Wrapf(util.ErrLengthMismatch, "slot holds %d bytes, got %d", length, len(rec))
	}
	copy(h.p.data[off:off+length], rec)
	return nil
}

// DeleteRecord removes a record, compacts the data area and trims trailing
// empty slots so the space becomes reusable.
func (h *HFPage) DeleteRecord(rid RID) error {
	off, length, err := h.slotOf(rid)
	if err != nil {
		return err
	}

	usedPtr := int(h.int16(hfOffUsedPtr))
	// Close the hole: shift everything stored below the record up by its
	// length, then fix the slots that pointed into the moved range.
	copy(h.p.data[usedPtr+length:off+length], h.p.data[usedPtr:off])
	for i := int16(0); i < h.SlotCount(); i++ {
		if i == rid.SlotNo || h.slotEmpty(i) {
			continue
		}
		o, l := h.slot(i)
		if int(o) < off {
			h.setSlot(i, o+uint16(length), l)
		}
	}
	h.setSlot(rid.SlotNo, 0, 0)
	h.setInt16(hfOffUsedPtr, int16(usedPtr+length))
	h.setInt16(hfOffFreeSpace, h.FreeSpace()+int16(length+SlotSize))

	cnt := h.SlotCount()
	for cnt > 0 && h.slotEmpty(cnt-1) {
		cnt--
	}
	h.setInt16(hfOffSlotCnt, cnt)
	return nil
}

// NextRecord returns the first live record after rid in slot order. Pass
// SlotNo -1 to start from the beginning.
func (h *HFPage) NextRecord(rid RID) (RID, bool) {
	for i := rid.SlotNo + 1; i < h.SlotCount(); i++ {
		if !h.slotEmpty(i) {
			return RID{PageNo: h.CurPage(), SlotNo: i}, true
		}
	}
	return RID{}, false
}

// FirstRecord returns the first live record on the page.
func (h *HFPage) FirstRecord() (RID, bool) {
	return h.NextRecord(RID{SlotNo: -1})
}

// RecordCount returns the number of live records on the page.
func (h *HFPage) RecordCount() int {
	count := 0
	for i := int16(0); i < h.SlotCount(); i++ {
		if !h.slotEmpty(i) {
			count++
		}
	}
	return count
}

func (h *HFPage) slotOf(rid RID) (off, length int, err error) {
	if rid.SlotNo < 0 || rid.SlotNo >= h.SlotCount() || h.slotEmpty(rid.SlotNo) {
		return 0, 0, errors.Wrapf(util.ErrInvalidRID, "page %d slot %d", h.CurPage(), rid.SlotNo)
	}
	o, l := h.slot(rid.SlotNo)
	return int(o), int(l), nil
}

func (h *HFPage) slotEmpty(i int16) bool {
	off, _ := h.slot(i)
	return off == 0
}

func (h *HFPage) slot(i int16) (off, length uint16) {
	base := HFHeaderSize + int(i)*SlotSize
	off = binary.LittleEndian.Uint16(h.p.data[base : base+2])
	length = binary.LittleEndian.Uint16(h.p.data[base+2 : base+4])
	return off, length
}

func (h *HFPage) setSlot(i int16, off, length uint16) {
	base := HFHeaderSize + int(i)*SlotSize
	binary.LittleEndian.PutUint16(h.p.data[base:base+2], off)
	binary.LittleEndian.PutUint16(h.p.data[base+2:base+4], length)
}

func (h *HFPage) pageID(off int) util.PageID {
	return util.PageID(binary.LittleEndian.Uint32(h.p.data[off : off+4]))
}

func (h *HFPage) setPageID(off int, pid util.PageID) {
	binary.LittleEndian.PutUint32(h.p.data[off:off+4], uint32(pid))
}

func (h *HFPage) int16(off int) int16 {
	return int16(binary.LittleEndian.Uint16(h.p.data[off : off+2]))
}

func (h *HFPage) setInt16(off int, v int16) {
	binary.LittleEndian.PutUint16(h.p.data[off:off+2], uint16(v))
}
