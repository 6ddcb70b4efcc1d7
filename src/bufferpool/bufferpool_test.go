package bufferpool

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/Blackdeer1524/btredo/src"
	"github.com/Blackdeer1524/btredo/src/pkg/common"
	"github.com/Blackdeer1524/btredo/src/storage/disk"
)

func newTestPool(capacity uint64) (*Manager, *disk.Manager) {
	dm := disk.New(afero.NewMemMapFs(), map[common.RelFileID]string{
		1: "/data/index.rel",
	})
	return New(capacity, NewLRUReplacer(), dm, src.NopLogger{}), dm
}

func pid(blk common.BlockNumber) common.PageIdentity {
	return common.PageIdentity{FileID: 1, PageID: blk}
}

func TestGetPageCreatesMissingBlock(t *testing.T) {
	pool, _ := newTestPool(4)

	p, err := pool.GetPage(pid(0))
	require.NoError(t, err)
	require.True(t, p.IsNew())
	pool.Unpin(pid(0))

	_, err = pool.GetPageNoCreate(pid(1))
	require.ErrorIs(t, err, ErrNoSuchPage)
}

func TestGetPageReturnsSameFrame(t *testing.T) {
	pool, _ := newTestPool(4)

	p1, err := pool.GetPage(pid(0))
	require.NoError(t, err)
	p1.Lock()
	p1.Init()
	p1.SetLevel(3)
	p1.Unlock()

	p2, err := pool.GetPage(pid(0))
	require.NoError(t, err)
	require.EqualValues(t, 3, p2.Level())

	pool.Unpin(pid(0))
	pool.Unpin(pid(0))
}

func TestEvictionFlushesDirtyVictim(t *testing.T) {
	pool, dm := newTestPool(1)

	p, err := pool.GetPage(pid(0))
	require.NoError(t, err)
	p.Lock()
	p.Init()
	p.SetLevel(7)
	p.SetDirtiness(true)
	p.Unlock()
	pool.Unpin(pid(0))

	// Capacity one: pulling another block must evict and flush block 0.
	_, err = pool.GetPage(pid(1))
	require.NoError(t, err)
	pool.Unpin(pid(1))

	onDisk, err := dm.ReadPage(pid(0))
	require.NoError(t, err)
	require.EqualValues(t, 7, onDisk.Level())
}

func TestEvictionFailsWhenAllPinned(t *testing.T) {
	pool, _ := newTestPool(1)

	_, err := pool.GetPage(pid(0))
	require.NoError(t, err)

	_, err = pool.GetPage(pid(1))
	require.Error(t, err)

	pool.Unpin(pid(0))
}

func TestFlushAllPages(t *testing.T) {
	pool, dm := newTestPool(4)

	for blk := common.BlockNumber(0); blk < 3; blk++ {
		p, err := pool.GetPage(pid(blk))
		require.NoError(t, err)
		p.Lock()
		p.Init()
		p.SetLevel(uint32(blk))
		p.SetDirtiness(true)
		p.Unlock()
		pool.Unpin(pid(blk))
	}

	require.NoError(t, pool.FlushAllPages())

	for blk := common.BlockNumber(0); blk < 3; blk++ {
		onDisk, err := dm.ReadPage(pid(blk))
		require.NoError(t, err)
		require.EqualValues(t, uint32(blk), onDisk.Level())
	}
}

func TestNumPagesSeesUnflushedBlocks(t *testing.T) {
	pool, _ := newTestPool(4)

	n, err := pool.NumPages(1)
	require.NoError(t, err)
	require.EqualValues(t, 0, n)

	_, err = pool.GetPage(pid(5))
	require.NoError(t, err)
	pool.Unpin(pid(5))

	n, err = pool.NumPages(1)
	require.NoError(t, err)
	require.EqualValues(t, 6, n)
}

func TestLockForCleanupWaitsForSolePin(t *testing.T) {
	pool, _ := newTestPool(4)

	_, err := pool.GetPage(pid(0))
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		p, err := pool.GetPage(pid(0))
		if err == nil {
			pool.LockForCleanup(p, pid(0))
			p.Unlock()
			pool.Unpin(pid(0))
		}
		close(done)
	}()

	// The goroutine cannot take the cleanup lock while this pin is held; it
	// spins until the count drops to its own single pin.
	pool.Unpin(pid(0))
	<-done
}
