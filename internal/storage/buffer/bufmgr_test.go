package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bietkhonhungvandi212/clockdb/internal/storage/disk"
	"github.com/bietkhonhungvandi212/clockdb/internal/storage/page"
	util "github.com/bietkhonhungvandi212/clockdb/internal/utils"
)

func newTestPool(t *testing.T, numFrames, numPages int) (*BufMgr, disk.Manager) {
	t.Helper()
	dm := disk.NewMemManager()
	for i := 0; i < numPages; i++ {
		_, err := dm.AllocatePage()
		require.NoError(t, err)
	}
	return NewBufMgr(dm, numFrames), dm
}

func TestNewBufMgr(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		bm, _ := newTestPool(t, 3, 0)
		assert.Equal(t, 3, bm.NumFrames())
		assert.Equal(t, 3, bm.NumUnpinned())
		assert.Empty(t, bm.frameOf)
	})

	t.Run("ZeroSize", func(t *testing.T) {
		defer func() {
			if r := recover(); r == nil {
				t.Fatal("expected panic for size=0")
			}
		}()
		NewBufMgr(disk.NewMemManager(), 0)
	})
}

func TestPinPageHitAndMiss(t *testing.T) {
	bm, dm := newTestPool(t, 3, 2)

	var img page.Page
	copy(img.Bytes(), []byte("page zero"))
	require.NoError(t, dm.WritePage(0, &img))

	pv, err := bm.PinPage(0, PinDiskIO, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("page zero"), pv.Bytes()[:9])
	assert.Equal(t, 2, bm.NumUnpinned())

	// hit: same frame, pin count 2
	again, err := bm.PinPage(0, PinDiskIO, nil)
	require.NoError(t, err)
	assert.Same(t, pv, again)
	assert.Equal(t, uint32(2), bm.frames[bm.frameOf[0]].PinCount())

	require.NoError(t, bm.UnpinPage(0, UnpinClean))
	require.NoError(t, bm.UnpinPage(0, UnpinClean))
	assert.Equal(t, 3, bm.NumUnpinned())
}

func TestPinPageMemCpy(t *testing.T) {
	bm, _ := newTestPool(t, 2, 1)

	var img page.Page
	copy(img.Bytes(), []byte("supplied"))
	pv, err := bm.PinPage(0, PinMemCpy, &img)
	require.NoError(t, err)
	assert.Equal(t, []byte("supplied"), pv.Bytes()[:8])

	// memcpy on a resident page would clobber it
	_, err = bm.PinPage(0, PinMemCpy, &img)
	assert.ErrorIs(t, err, util.ErrMemcpyResident)

	require.NoError(t, bm.UnpinPage(0, UnpinDirty))
}

func TestPinPageNoOp(t *testing.T) {
	bm, dm := newTestPool(t, 2, 1)

	// the frame is handed over as-is; the caller fills it
	pv, err := bm.PinPage(0, PinNoOp, nil)
	require.NoError(t, err)
	copy(pv.Bytes(), []byte("caller filled"))
	require.NoError(t, bm.UnpinPage(0, UnpinDirty))
	require.NoError(t, bm.FlushPage(0))

	var in page.Page
	require.NoError(t, dm.ReadPage(0, &in))
	assert.Equal(t, []byte("caller filled"), in.Bytes()[:13])
}

func TestPinPageEviction(t *testing.T) {
	bm, dm := newTestPool(t, 1, 3)

	var img page.Page
	copy(img.Bytes(), []byte("p1"))
	require.NoError(t, dm.WritePage(1, &img))

	pv, err := bm.PinPage(1, PinDiskIO, nil)
	require.NoError(t, err)
	copy(pv.Bytes(), []byte("p1 modified"))
	require.NoError(t, bm.UnpinPage(1, UnpinDirty))

	// pinning another page evicts p1 and writes it back
	_, err = bm.PinPage(2, PinDiskIO, nil)
	require.NoError(t, err)
	_, resident := bm.frameOf[1]
	assert.False(t, resident, "page 1 was evicted")
	require.NoError(t, bm.UnpinPage(2, UnpinClean))

	// re-pinning p1 reads the written-back image from disk
	pv, err = bm.PinPage(1, PinDiskIO, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("p1 modified"), pv.Bytes()[:11])
	require.NoError(t, bm.UnpinPage(1, UnpinClean))
}

func TestPinPagePoolExhausted(t *testing.T) {
	bm, _ := newTestPool(t, 2, 3)

	_, err := bm.PinPage(0, PinDiskIO, nil)
	require.NoError(t, err)
	_, err = bm.PinPage(1, PinDiskIO, nil)
	require.NoError(t, err)

	_, err = bm.PinPage(2, PinDiskIO, nil)
	assert.ErrorIs(t, err, util.ErrPoolExhausted)

	require.NoError(t, bm.UnpinPage(0, UnpinClean))
	_, err = bm.PinPage(2, PinDiskIO, nil)
	assert.NoError(t, err, "freeing one pin makes room")
}

func TestUnpinPageErrors(t *testing.T) {
	bm, _ := newTestPool(t, 2, 2)

	assert.ErrorIs(t, bm.UnpinPage(0, UnpinClean), util.ErrPageNotResident)

	_, err := bm.PinPage(0, PinDiskIO, nil)
	require.NoError(t, err)
	require.NoError(t, bm.UnpinPage(0, UnpinClean))
	assert.ErrorIs(t, bm.UnpinPage(0, UnpinClean), util.ErrPageNotPinned)
}

func TestUnpinDirtySticks(t *testing.T) {
	bm, _ := newTestPool(t, 2, 1)

	_, err := bm.PinPage(0, PinDiskIO, nil)
	require.NoError(t, err)
	require.NoError(t, bm.UnpinPage(0, UnpinDirty))

	// a clean unpin never clears an earlier dirty mark
	_, err = bm.PinPage(0, PinDiskIO, nil)
	require.NoError(t, err)
	require.NoError(t, bm.UnpinPage(0, UnpinClean))
	assert.True(t, bm.frames[bm.frameOf[0]].IsDirty())
}

func TestNewPage(t *testing.T) {
	t.Run("AllocatesAndPins", func(t *testing.T) {
		bm, dm := newTestPool(t, 2, 0)

		var img page.Page
		copy(img.Bytes(), []byte("fresh"))
		pid, pv, err := bm.NewPage(&img, 3)
		require.NoError(t, err)
		assert.Equal(t, []byte("fresh"), pv.Bytes()[:5])
		assert.Equal(t, 3, dm.AllocatedPages())
		assert.Equal(t, 1, bm.NumUnpinned())

		require.NoError(t, bm.UnpinPage(pid, UnpinDirty))
	})

	t.Run("NoLeakOnPinFailure", func(t *testing.T) {
		bm, dm := newTestPool(t, 1, 1)
		_, err := bm.PinPage(0, PinDiskIO, nil)
		require.NoError(t, err)
		before := dm.AllocatedPages()

		var img page.Page
		_, _, err = bm.NewPage(&img, 4)
		assert.ErrorIs(t, err, util.ErrPoolExhausted)
		assert.Equal(t, before, dm.AllocatedPages(), "failed NewPage leaves no net allocation")

		require.NoError(t, bm.UnpinPage(0, UnpinClean))
	})
}

func TestFreePage(t *testing.T) {
	t.Run("Resident", func(t *testing.T) {
		bm, dm := newTestPool(t, 2, 2)
		_, err := bm.PinPage(0, PinDiskIO, nil)
		require.NoError(t, err)
		require.NoError(t, bm.UnpinPage(0, UnpinClean))

		require.NoError(t, bm.FreePage(0))
		_, resident := bm.frameOf[0]
		assert.False(t, resident)
		assert.Equal(t, 1, dm.AllocatedPages())
	})

	t.Run("Pinned", func(t *testing.T) {
		bm, _ := newTestPool(t, 2, 1)
		_, err := bm.PinPage(0, PinDiskIO, nil)
		require.NoError(t, err)

		assert.ErrorIs(t, bm.FreePage(0), util.ErrPagePinned)
		require.NoError(t, bm.UnpinPage(0, UnpinClean))
	})

	t.Run("NotResident", func(t *testing.T) {
		bm, dm := newTestPool(t, 2, 1)
		require.NoError(t, bm.FreePage(0), "free still reaches the disk manager")
		assert.Equal(t, 0, dm.AllocatedPages())
	})
}

func TestFlushPage(t *testing.T) {
	bm, dm := newTestPool(t, 2, 1)

	pv, err := bm.PinPage(0, PinDiskIO, nil)
	require.NoError(t, err)
	copy(pv.Bytes(), []byte("flushed bytes"))
	require.NoError(t, bm.UnpinPage(0, UnpinDirty))

	require.NoError(t, bm.FlushPage(0))
	assert.False(t, bm.frames[bm.frameOf[0]].IsDirty())

	var in page.Page
	require.NoError(t, dm.ReadPage(0, &in))
	assert.Equal(t, []byte("flushed bytes"), in.Bytes()[:13])

	assert.ErrorIs(t, bm.FlushPage(99), util.ErrPageNotResident)
}

func TestFlushAllFrames(t *testing.T) {
	bm, dm := newTestPool(t, 3, 3)

	for pid := util.PageID(0); pid < 3; pid++ {
		pv, err := bm.PinPage(pid, PinDiskIO, nil)
		require.NoError(t, err)
		pv.Bytes()[0] = byte(pid) + 1
		require.NoError(t, bm.UnpinPage(pid, UnpinDirty))
	}

	require.NoError(t, bm.FlushAllFrames())

	for pid := util.PageID(0); pid < 3; pid++ {
		var in page.Page
		require.NoError(t, dm.ReadPage(pid, &in))
		assert.Equal(t, byte(pid)+1, in.Bytes()[0])
		assert.False(t, bm.frames[bm.frameOf[pid]].IsDirty())
	}
}

// the fingerprint index and the frame metadata must agree at all times
func TestResidencyInvariant(t *testing.T) {
	bm, _ := newTestPool(t, 2, 4)

	for pid := util.PageID(0); pid < 4; pid++ {
		_, err := bm.PinPage(pid, PinDiskIO, nil)
		require.NoError(t, err)
		require.NoError(t, bm.UnpinPage(pid, UnpinClean))

		seen := make(map[util.PageID]int)
		for i := range bm.frames {
			f := &bm.frames[i]
			if f.IsValid() {
				seen[f.PageID()]++
				idx, ok := bm.frameOf[f.PageID()]
				assert.True(t, ok)
				assert.Equal(t, i, idx)
			}
		}
		for id := range bm.frameOf {
			assert.Equal(t, 1, seen[id], "page %d mapped to exactly one frame", id)
		}
	}
}
