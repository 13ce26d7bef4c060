package disk

import (
	"io"

	"github.com/dsnet/golib/memfile"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/bietkhonhungvandi212/clockdb/internal/logging"
	"github.com/bietkhonhungvandi212/clockdb/internal/storage/page"
	util "github.com/bietkhonhungvandi212/clockdb/internal/utils"
)

// MemManager is a memory-backed Manager. It behaves like FileManager but
// keeps the database in a growable in-memory file; used for temporary
// databases and tests.
type MemManager struct {
	space
	db  *memfile.File
	log *logrus.Entry
}

var _ Manager = (*MemManager)(nil)

func NewMemManager() *MemManager {
	return &MemManager{
		space: newSpace(0),
		db:    memfile.New(make([]byte, 0)),
		log:   logging.Component("disk"),
	}
}

func (mm *MemManager) ReadPage(pid util.PageID, p *page.Page) error {
	if err := mm.checkResident(pid); err != nil {
		return err
	}
	offset := int64(pid) * util.PageSize
	n, err := mm.db.ReadAt(p.Bytes(), offset)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		for i := n; i < util.PageSize; i++ {
			p.Bytes()[i] = 0
		}
		return nil
	}
	return errors.Wrapf(err, "read page %d", pid)
}

func (mm *MemManager) WritePage(pid util.PageID, p *page.Page) error {
	if err := mm.checkResident(pid); err != nil {
		return err
	}
	offset := int64(pid) * util.PageSize
	_, err := mm.db.WriteAt(p.Bytes(), offset)
	return errors.Wrapf(err, "write page %d", pid)
}

func (mm *MemManager) Close() error {
	return nil
}
