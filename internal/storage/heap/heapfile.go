package heap

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/bietkhonhungvandi212/clockdb/internal/logging"
	"github.com/bietkhonhungvandi212/clockdb/internal/storage/buffer"
	"github.com/bietkhonhungvandi212/clockdb/internal/storage/disk"
	"github.com/bietkhonhungvandi212/clockdb/internal/storage/page"
	util "github.com/bietkhonhungvandi212/clockdb/internal/utils"
)

// HeapFile is a named, unordered, growable collection of variable-length
// byte records addressed by RIDs. Records live on slotted data pages; a
// linked chain of directory pages starting at headID indexes the data
// pages with record counts and free-space hints.
//
// Every operation observes the pin discipline: each pin is matched by
// exactly one unpin on every exit path, and at most one page is pinned at
// a time so the file works against a single-frame pool. The exception is
// Scan, which keeps one directory page and one data page pinned together.
type HeapFile struct {
	bm     *buffer.BufMgr
	dm     disk.Manager
	name   string
	isTemp bool
	headID util.PageID
	closed bool
	log    *logrus.Entry
}

// Open opens the heap file registered under name, creating and
// registering an empty one if the name is unknown.
func Open(bm *buffer.BufMgr, dm disk.Manager, name string) (*HeapFile, error) {
	hf := &HeapFile{
		bm:   bm,
		dm:   dm,
		name: name,
		log:  logging.Component("heap").WithField("file", name),
	}

	if head, ok := dm.GetFileEntry(name); ok {
		hf.headID = head
		return hf, nil
	}

	if err := hf.createNew(); err != nil {
		return nil, err
	}
	if err := dm.AddFileEntry(name, hf.headID); err != nil {
		return nil, err
	}
	hf.log.WithField("head", hf.headID).Debug("created heap file")
	return hf, nil
}

// OpenTemp creates a temporary heap file with no name-directory entry.
// Closing the handle deletes the file.
func OpenTemp(bm *buffer.BufMgr, dm disk.Manager) (*HeapFile, error) {
	hf := &HeapFile{
		bm:     bm,
		dm:     dm,
		isTemp: true,
		log:    logging.Component("heap").WithField("file", "<temp>"),
	}
	if err := hf.createNew(); err != nil {
		return nil, err
	}
	return hf, nil
}

// Close releases the handle. Temporary files are deleted; named files keep
// their pages and name entry.
func (hf *HeapFile) Close() error {
	if hf.closed {
		return nil
	}
	if hf.isTemp {
		return hf.DeleteFile()
	}
	hf.closed = true
	return nil
}

// Name returns the file name, empty for temporary files.
func (hf *HeapFile) Name() string {
	return hf.name
}

// HeadID returns the id of the first directory page. It never changes over
// the lifetime of a non-deleted heap file.
func (hf *HeapFile) HeadID() util.PageID {
	return hf.headID
}

// createNew allocates and initializes an empty directory head page.
func (hf *HeapFile) createNew() error {
	pid, err := hf.dm.AllocatePage()
	if err != nil {
		return err
	}

	var img page.Page
	page.NewDirPage(&img).Init(pid)

	if _, err := hf.bm.PinPage(pid, buffer.PinMemCpy, &img); err != nil {
		if derr := hf.dm.DeallocatePage(pid); derr != nil {
			hf.log.WithError(derr).Warn("rollback of head page failed")
		}
		return err
	}
	hf.headID = pid
	return hf.bm.UnpinPage(pid, buffer.UnpinDirty)
}

// InsertRecord stores rec in the file and returns its RID.
func (hf *HeapFile) InsertRecord(rec []byte) (page.RID, error) {
	if len(rec) > page.MaxRecordSize {
		return page.RID{}, errors.Wrapf(util.ErrRecordTooLarge, "%d bytes, max %d", len(rec), page.MaxRecordSize)
	}

	pid, err := hf.availPage(len(rec))
	if err != nil {
		return page.RID{}, err
	}

	pv, err := hf.bm.PinPage(pid, buffer.PinDiskIO, nil)
	if err != nil {
		return page.RID{}, err
	}
	hp := page.NewHFPage(pv)
	rid, err := hp.InsertRecord(rec)
	if err != nil {
		if uerr := hf.bm.UnpinPage(pid, buffer.UnpinClean); uerr != nil {
			return page.RID{}, uerr
		}
		return page.RID{}, err
	}
	free := hp.FreeSpace()
	if err := hf.bm.UnpinPage(pid, buffer.UnpinDirty); err != nil {
		return page.RID{}, err
	}

	if err := hf.updateDirEntry(pid, 1, free); err != nil {
		return page.RID{}, err
	}
	return rid, nil
}

// SelectRecord returns a copy of the record bytes.
func (hf *HeapFile) SelectRecord(rid page.RID) ([]byte, error) {
	pv, err := hf.bm.PinPage(rid.PageNo, buffer.PinDiskIO, nil)
	if err != nil {
		return nil, err
	}
	rec, err := page.NewHFPage(pv).SelectRecord(rid)
	if uerr := hf.bm.UnpinPage(rid.PageNo, buffer.UnpinClean); uerr != nil && err == nil {
		err = uerr
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// UpdateRecord replaces the record bytes. The new record must have the
// same length as the stored one.
func (hf *HeapFile) UpdateRecord(rid page.RID, rec []byte) error {
	pv, err := hf.bm.PinPage(rid.PageNo, buffer.PinDiskIO, nil)
	if err != nil {
		return err
	}
	err = page.NewHFPage(pv).UpdateRecord(rid, rec)
	dirty := buffer.UnpinDirty
	if err != nil {
		dirty = buffer.UnpinClean
	}
	if uerr := hf.bm.UnpinPage(rid.PageNo, dirty); uerr != nil && err == nil {
		err = uerr
	}
	return err
}

// DeleteRecord removes the record. Data pages left empty are freed along
// with their directory entry, and directory pages left empty are unlinked
// from the chain.
func (hf *HeapFile) DeleteRecord(rid page.RID) error {
	pv, err := hf.bm.PinPage(rid.PageNo, buffer.PinDiskIO, nil)
	if err != nil {
		return err
	}
	hp := page.NewHFPage(pv)
	if err := hp.DeleteRecord(rid); err != nil {
		if uerr := hf.bm.UnpinPage(rid.PageNo, buffer.UnpinClean); uerr != nil {
			return uerr
		}
		return err
	}
	free := hp.FreeSpace()
	if err := hf.bm.UnpinPage(rid.PageNo, buffer.UnpinDirty); err != nil {
		return err
	}
	return hf.updateDirEntry(rid.PageNo, -1, free)
}

// RecCount returns the number of records in the file, summed over the
// directory chain.
func (hf *HeapFile) RecCount() (int, error) {
	count := 0
	dirID := hf.headID
	for dirID != util.InvalidPageID {
		pv, err := hf.bm.PinPage(dirID, buffer.PinDiskIO, nil)
		if err != nil {
			return 0, err
		}
		dp := page.NewDirPage(pv)
		for i := int16(0); i < dp.EntryCount(); i++ {
			count += int(dp.RecCntAt(i))
		}
		next := dp.NextPage()
		if err := hf.bm.UnpinPage(dirID, buffer.UnpinClean); err != nil {
			return 0, err
		}
		dirID = next
	}
	return count, nil
}

// DeleteFile frees every data and directory page and removes the name
// entry for non-temporary files. The handle is unusable afterwards.
func (hf *HeapFile) DeleteFile() error {
	dirID := hf.headID
	for dirID != util.InvalidPageID {
		pv, err := hf.bm.PinPage(dirID, buffer.PinDiskIO, nil)
		if err != nil {
			return err
		}
		dp := page.NewDirPage(pv)
		dataPages := make([]util.PageID, 0, dp.EntryCount())
		for i := int16(0); i < dp.EntryCount(); i++ {
			dataPages = append(dataPages, dp.PageIDAt(i))
		}
		// Clear the entries before freeing so no entry ever references a
		// deallocated page.
		for cnt := dp.EntryCount(); cnt > 0; cnt = dp.EntryCount() {
			dp.Compact(cnt - 1)
		}
		next := dp.NextPage()
		if err := hf.bm.UnpinPage(dirID, buffer.UnpinClean); err != nil {
			return err
		}
		if err := hf.bm.FreePage(dirID); err != nil {
			return err
		}
		for _, pid := range dataPages {
			if err := hf.bm.FreePage(pid); err != nil {
				return err
			}
		}
		dirID = next
	}

	hf.closed = true
	hf.log.Debug("deleted heap file")
	if !hf.isTemp {
		return hf.dm.DeleteFileEntry(hf.name)
	}
	return nil
}
