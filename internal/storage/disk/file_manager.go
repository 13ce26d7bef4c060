package disk

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/bietkhonhungvandi212/clockdb/internal/logging"
	"github.com/bietkhonhungvandi212/clockdb/internal/storage/page"
	util "github.com/bietkhonhungvandi212/clockdb/internal/utils"
)

// FileManager is the file-backed Manager. Pages live at pid*PageSize
// offsets in a single database file.
type FileManager struct {
	space
	file       *os.File
	path       string
	syncWrites bool
	log        *logrus.Entry
}

var _ Manager = (*FileManager)(nil)

func NewFileManager(path string, syncWrites bool) (*FileManager, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o666)
	if err != nil {
		return nil, errors.Wrapf(err, "open db file %s", path)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "stat db file %s", path)
	}

	// Pages already present in the file count as allocated.
	nextID := util.PageID(info.Size() / util.PageSize)

	fm := &FileManager{
		space:      newSpace(nextID),
		file:       f,
		path:       path,
		syncWrites: syncWrites,
		log:        logging.Component("disk"),
	}
	fm.log.WithFields(logrus.Fields{"path": path, "pages": nextID}).Debug("opened db file")
	return fm, nil
}

func (fm *FileManager) ReadPage(pid util.PageID, p *page.Page) error {
	if err := fm.checkResident(pid); err != nil {
		return err
	}
	offset := int64(pid) * util.PageSize
	n, err := fm.file.ReadAt(p.Bytes(), offset)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		// Allocated but never written; the rest of the image is zeroes.
		for i := n; i < util.PageSize; i++ {
			p.Bytes()[i] = 0
		}
		return nil
	}
	return errors.Wrapf(err, "read page %d", pid)
}

func (fm *FileManager) WritePage(pid util.PageID, p *page.Page) error {
	if err := fm.checkResident(pid); err != nil {
		return err
	}
	offset := int64(pid) * util.PageSize
	if _, err := fm.file.WriteAt(p.Bytes(), offset); err != nil {
		return errors.Wrapf(err, "write page %d", pid)
	}
	if fm.syncWrites {
		if err := fm.file.Sync(); err != nil {
			return errors.Wrapf(err, "sync after page %d", pid)
		}
	}
	return nil
}

func (fm *FileManager) Close() error {
	if fm.file == nil {
		return nil
	}
	if err := fm.file.Sync(); err != nil {
		fm.file.Close()
		fm.file = nil
		return errors.Wrapf(err, "sync db file %s", fm.path)
	}
	err := fm.file.Close()
	fm.file = nil
	fm.log.WithField("path", fm.path).Debug("closed db file")
	return errors.Wrapf(err, "close db file %s", fm.path)
}
