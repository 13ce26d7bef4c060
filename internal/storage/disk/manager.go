package disk

import (
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/pkg/errors"

	"github.com/bietkhonhungvandi212/clockdb/internal/storage/page"
	util "github.com/bietkhonhungvandi212/clockdb/internal/utils"
)

// Manager is the disk layer the buffer pool reads and writes through. It
// allocates page ids, moves page-sized images to and from the backing
// store, and owns the file-name directory mapping heap-file names to their
// head pages.
type Manager interface {
	// AllocatePage reserves one page and returns its id.
	AllocatePage() (util.PageID, error)
	// AllocateRun reserves n contiguous pages and returns the first id.
	AllocateRun(n int) (util.PageID, error)
	DeallocatePage(pid util.PageID) error
	DeallocateRun(first util.PageID, n int) error

	ReadPage(pid util.PageID, p *page.Page) error
	WritePage(pid util.PageID, p *page.Page) error

	AddFileEntry(name string, head util.PageID) error
	GetFileEntry(name string) (util.PageID, bool)
	DeleteFileEntry(name string) error

	// AllocatedPages reports the number of pages currently allocated.
	AllocatedPages() int

	Close() error
}

// space tracks page allocation: a high-water next id plus the set of
// deallocated single pages. Runs are always carved off the high-water mark
// so they come out contiguous; single-page allocations reuse freed ids
// first.
type space struct {
	nextID util.PageID
	freed  mapset.Set[util.PageID]
	names  map[string]util.PageID
}

func newSpace(nextID util.PageID) space {
	return space{
		nextID: nextID,
		freed:  mapset.NewSet[util.PageID](),
		names:  make(map[string]util.PageID),
	}
}

func (s *space) AllocatePage() (util.PageID, error) {
	if pid, ok := s.freed.Pop(); ok {
		return pid, nil
	}
	pid := s.nextID
	s.nextID++
	return pid, nil
}

func (s *space) AllocateRun(n int) (util.PageID, error) {
	if n <= 0 {
		return util.InvalidPageID, errors.Wrapf(util.ErrInvalidRunSize, "%d", n)
	}
	if n == 1 {
		return s.AllocatePage()
	}
	first := s.nextID
	s.nextID += util.PageID(n)
	return first, nil
}

func (s *space) DeallocatePage(pid util.PageID) error {
	if pid < 0 || pid >= s.nextID {
		return errors.Wrapf(util.ErrInvalidPageId, "deallocate page %d", pid)
	}
	s.freed.Add(pid)
	return nil
}

func (s *space) DeallocateRun(first util.PageID, n int) error {
	if n <= 0 {
		return errors.Wrapf(util.ErrInvalidRunSize, "%d", n)
	}
	for i := 0; i < n; i++ {
		if err := s.DeallocatePage(first + util.PageID(i)); err != nil {
			return err
		}
	}
	return nil
}

func (s *space) AllocatedPages() int {
	return int(s.nextID) - s.freed.Cardinality()
}

func (s *space) AddFileEntry(name string, head util.PageID) error {
	if _, ok := s.names[name]; ok {
		return errors.Wrap(util.ErrDuplicateFile, name)
	}
	s.names[name] = head
	return nil
}

func (s *space) GetFileEntry(name string) (util.PageID, bool) {
	head, ok := s.names[name]
	return head, ok
}

func (s *space) DeleteFileEntry(name string) error {
	if _, ok := s.names[name]; !ok {
		return errors.Wrap(util.ErrUnknownFile, name)
	}
	delete(s.names, name)
	return nil
}

func (s *space) checkResident(pid util.PageID) error {
	if pid < 0 || pid >= s.nextID {
		return errors.Wrapf(util.ErrInvalidPageId, "page %d past allocation mark %d", pid, s.nextID)
	}
	return nil
}
