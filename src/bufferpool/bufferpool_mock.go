package bufferpool

import (
	"fmt"
	"sync"

	"github.com/go-faster/errors"

	"github.com/Blackdeer1524/btredo/src/pkg/assert"
	"github.com/Blackdeer1524/btredo/src/pkg/common"
	"github.com/Blackdeer1524/btredo/src/storage/page"
)

// BufferPoolMock keeps every page in memory and counts collaborator calls.
// Tests use the counters to check contracts that are invisible in page
// contents, e.g. that the conflict resolver's fast path touches no heap
// pages and that vacuum takes cleanup locks.
type BufferPoolMock struct {
	pagesMu sync.RWMutex
	pages   map[common.PageIdentity]*page.Page

	pinCountMu sync.RWMutex
	pinCounts  map[common.PageIdentity]int

	statsMu      sync.Mutex
	reads        map[common.RelFileID]int
	cleanupLocks map[common.PageIdentity]int
}

var _ BufferPool = &BufferPoolMock{}

func NewBufferPoolMock() *BufferPoolMock {
	return &BufferPoolMock{
		pages:        make(map[common.PageIdentity]*page.Page),
		pinCounts:    make(map[common.PageIdentity]int),
		reads:        make(map[common.RelFileID]int),
		cleanupLocks: make(map[common.PageIdentity]int),
	}
}

func (b *BufferPoolMock) noteRead(pageID common.PageIdentity) {
	b.statsMu.Lock()
	defer b.statsMu.Unlock()

	b.reads[pageID.FileID]++
}

// ReadCount returns how many times pages of the relation were acquired.
func (b *BufferPoolMock) ReadCount(fileID common.RelFileID) int {
	b.statsMu.Lock()
	defer b.statsMu.Unlock()

	return b.reads[fileID]
}

// CleanupLockCount returns how many times the page was cleanup-locked.
func (b *BufferPoolMock) CleanupLockCount(pageID common.PageIdentity) int {
	b.statsMu.Lock()
	defer b.statsMu.Unlock()

	return b.cleanupLocks[pageID]
}

func (b *BufferPoolMock) GetPage(pageID common.PageIdentity) (*page.Page, error) {
	b.noteRead(pageID)

	b.pagesMu.RLock()
	p, exists := b.pages[pageID]
	b.pagesMu.RUnlock()

	if exists {
		b.pinCountMu.Lock()
		b.pinCounts[pageID]++
		b.pinCountMu.Unlock()
		return p, nil
	}

	b.pinCountMu.Lock()
	b.pagesMu.Lock()

	p, exists = b.pages[pageID]
	if exists {
		b.pinCounts[pageID]++
		b.pagesMu.Unlock()
		b.pinCountMu.Unlock()
		return p, nil
	}

	p = page.NewPage()
	b.pages[pageID] = p
	b.pinCounts[pageID] = 1

	b.pagesMu.Unlock()
	b.pinCountMu.Unlock()
	return p, nil
}

func (b *BufferPoolMock) GetPageNoCreate(pageID common.PageIdentity) (*page.Page, error) {
	b.noteRead(pageID)

	b.pagesMu.RLock()
	p, exists := b.pages[pageID]
	b.pagesMu.RUnlock()

	if !exists {
		return nil, ErrNoSuchPage
	}

	b.pinCountMu.Lock()
	b.pinCounts[pageID]++
	b.pinCountMu.Unlock()
	return p, nil
}

func (b *BufferPoolMock) Unpin(pageID common.PageIdentity) {
	b.pinCountMu.Lock()
	defer b.pinCountMu.Unlock()

	pinCount, ok := b.pinCounts[pageID]
	assert.Assert(ok, "page %v not found in pin counts", pageID)
	assert.Assert(pinCount > 0, "page %v has already been unpinned", pageID)

	b.pinCounts[pageID] = pinCount - 1
}

func (b *BufferPoolMock) LockForCleanup(p *page.Page, pageID common.PageIdentity) {
	b.statsMu.Lock()
	b.cleanupLocks[pageID]++
	b.statsMu.Unlock()

	p.Lock()
}

func (b *BufferPoolMock) FlushPage(pageID common.PageIdentity) error {
	b.pagesMu.RLock()
	defer b.pagesMu.RUnlock()

	if _, ok := b.pages[pageID]; !ok {
		return ErrNoSuchPage
	}

	return nil
}

func (b *BufferPoolMock) FlushAllPages() error {
	return nil
}

func (b *BufferPoolMock) NumPages(fileID common.RelFileID) (common.BlockNumber, error) {
	b.pagesMu.RLock()
	defer b.pagesMu.RUnlock()

	var n common.BlockNumber
	for pageID := range b.pages {
		if pageID.FileID == fileID && pageID.PageID+1 > n {
			n = pageID.PageID + 1
		}
	}
	return n, nil
}

// EnsureAllPagesUnpinnedAndUnlocked is a test teardown check: replay must
// release everything it acquires.
func (b *BufferPoolMock) EnsureAllPagesUnpinnedAndUnlocked() error {
	b.pagesMu.Lock()
	defer b.pagesMu.Unlock()

	b.pinCountMu.RLock()
	defer b.pinCountMu.RUnlock()

	pinnedIDs := map[common.PageIdentity]int{}
	lockedPages := map[common.PageIdentity]struct{}{}

	for pageID, p := range b.pages {
		if pinCount := b.pinCounts[pageID]; pinCount != 0 {
			pinnedIDs[pageID] = pinCount
		}
		if !p.TryLock() {
			lockedPages[pageID] = struct{}{}
		} else {
			p.Unlock()
		}
	}

	var err error
	if len(pinnedIDs) > 0 {
		err = fmt.Errorf("not all pages were properly unpinned: %+v", pinnedIDs)
	}

	if len(lockedPages) > 0 {
		err = errors.Join(err, fmt.Errorf(
			"found pages that were locked and not properly unlocked: %+v",
			lockedPages,
		))
	}

	return err
}
