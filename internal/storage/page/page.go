package page

import (
	util "github.com/bietkhonhungvandi212/clockdb/internal/utils"
)

// Page is a fixed-size block that is read/written from disk verbatim. The
// buffer pool hands out borrowed *Page views into its frames; HFPage and
// DirPage interpret the same bytes through their layouts.
type Page struct {
	data [util.PageSize]byte
}

// Bytes returns the full page image.
func (p *Page) Bytes() []byte {
	return p.data[:]
}

// CopyFrom overwrites the page image with src. A nil src zeroes the page.
func (p *Page) CopyFrom(src *Page) {
	if src == nil {
		p.data = [util.PageSize]byte{}
		return
	}
	p.data = src.data
}

// RID identifies a record within a heap file. It stays stable until the
// record is deleted.
type RID struct {
	PageNo util.PageID
	SlotNo int16
}
