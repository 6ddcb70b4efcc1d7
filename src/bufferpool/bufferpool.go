package bufferpool

import (
	"sync"
	"time"

	"github.com/go-faster/errors"

	"github.com/Blackdeer1524/btredo/src"
	"github.com/Blackdeer1524/btredo/src/pkg/assert"
	"github.com/Blackdeer1524/btredo/src/pkg/common"
	"github.com/Blackdeer1524/btredo/src/storage/disk"
	"github.com/Blackdeer1524/btredo/src/storage/page"
)

var ErrNoSuchPage = errors.New("no such page")

type Replacer interface {
	Pin(pageID common.PageIdentity)
	Unpin(pageID common.PageIdentity)
	ChooseVictim() (common.PageIdentity, error)
	GetSize() uint64
}

type DiskManager interface {
	ReadPage(pageIdent common.PageIdentity) (*page.Page, error)
	WritePage(p *page.Page, pageIdent common.PageIdentity) error
	NumPages(fileID common.RelFileID) (common.BlockNumber, error)
}

// BufferPool is the page store contract replay depends on: acquire-and-pin,
// unpin, flush, the cleanup lock, and relation size queries for allocating
// fresh blocks.
type BufferPool interface {
	// GetPage pins the page, materializing an all-zero page for blocks that
	// do not exist on disk yet.
	GetPage(pageID common.PageIdentity) (*page.Page, error)

	// GetPageNoCreate pins the page or fails with ErrNoSuchPage.
	GetPageNoCreate(pageID common.PageIdentity) (*page.Page, error)

	Unpin(pageID common.PageIdentity)

	// LockForCleanup takes the page's exclusive latch and additionally
	// waits until no one else holds a pin. Required before removing items
	// a concurrent scan might be positioned on.
	LockForCleanup(p *page.Page, pageID common.PageIdentity)

	FlushPage(pageID common.PageIdentity) error
	FlushAllPages() error

	NumPages(fileID common.RelFileID) (common.BlockNumber, error)
}

type frame struct {
	page     *page.Page
	pinCount int
}

type Manager struct {
	mu       sync.Mutex
	capacity uint64
	frames   map[common.PageIdentity]*frame

	replacer    Replacer
	diskManager DiskManager

	log src.Logger
}

var _ BufferPool = &Manager{}

func New(
	capacity uint64,
	replacer Replacer,
	diskManager DiskManager,
	log src.Logger,
) *Manager {
	assert.Assert(capacity > 0, "pool capacity must be greater than zero")

	return &Manager{
		capacity:    capacity,
		frames:      make(map[common.PageIdentity]*frame, capacity),
		replacer:    replacer,
		diskManager: diskManager,
		log:         log,
	}
}

func (m *Manager) getPage(pageID common.PageIdentity, create bool) (*page.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if f, ok := m.frames[pageID]; ok {
		f.pinCount++
		m.replacer.Pin(pageID)
		return f.page, nil
	}

	if uint64(len(m.frames)) >= m.capacity {
		if err := m.evictLocked(); err != nil {
			return nil, err
		}
	}

	p, err := m.diskManager.ReadPage(pageID)
	if errors.Is(err, disk.ErrPageNotFound) {
		if !create {
			return nil, errors.Wrapf(ErrNoSuchPage, "%+v", pageID)
		}
		p = page.NewPage()
	} else if err != nil {
		return nil, err
	}

	m.frames[pageID] = &frame{page: p, pinCount: 1}
	m.replacer.Pin(pageID)

	return p, nil
}

func (m *Manager) evictLocked() error {
	victimID, err := m.replacer.ChooseVictim()
	if err != nil {
		return errors.Wrap(err, "buffer pool full")
	}

	victim, ok := m.frames[victimID]
	assert.Assert(ok, "replacer returned an unknown victim: %+v", victimID)
	assert.Assert(victim.pinCount == 0, "replacer chose a pinned victim: %+v", victimID)

	if victim.page.IsDirty() {
		if err := m.diskManager.WritePage(victim.page, victimID); err != nil {
			return errors.Wrap(err, "flush victim page")
		}
		victim.page.SetDirtiness(false)
	}

	delete(m.frames, victimID)

	return nil
}

func (m *Manager) GetPage(pageID common.PageIdentity) (*page.Page, error) {
	return m.getPage(pageID, true)
}

func (m *Manager) GetPageNoCreate(pageID common.PageIdentity) (*page.Page, error) {
	return m.getPage(pageID, false)
}

func (m *Manager) Unpin(pageID common.PageIdentity) {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.frames[pageID]
	assert.Assert(ok, "unpin of an unknown page: %+v", pageID)
	assert.Assert(f.pinCount > 0, "unpin of an unpinned page: %+v", pageID)

	f.pinCount--
	if f.pinCount == 0 {
		m.replacer.Unpin(pageID)
	}
}

// LockForCleanup spins until the caller is the only pin holder, then keeps
// the exclusive latch. Replay is single-threaded, so the wait only happens
// when a concurrent read-only scan still holds the page.
func (m *Manager) LockForCleanup(p *page.Page, pageID common.PageIdentity) {
	for {
		p.Lock()

		m.mu.Lock()
		f, ok := m.frames[pageID]
		assert.Assert(ok, "cleanup lock on an unknown page: %+v", pageID)
		sole := f.pinCount == 1
		m.mu.Unlock()

		if sole {
			return
		}

		p.Unlock()
		time.Sleep(time.Millisecond)
	}
}

func (m *Manager) FlushPage(pageID common.PageIdentity) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.frames[pageID]
	if !ok {
		return errors.Wrapf(ErrNoSuchPage, "%+v", pageID)
	}

	if !f.page.IsDirty() {
		return nil
	}

	if err := m.diskManager.WritePage(f.page, pageID); err != nil {
		return errors.Wrap(err, "failed to write page to disk")
	}

	f.page.SetDirtiness(false)

	return nil
}

func (m *Manager) FlushAllPages() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for pageID, f := range m.frames {
		if !f.page.IsDirty() {
			continue
		}

		if err := m.diskManager.WritePage(f.page, pageID); err != nil {
			return errors.Wrapf(err, "flush page %+v", pageID)
		}

		f.page.SetDirtiness(false)
	}

	return nil
}

func (m *Manager) NumPages(fileID common.RelFileID) (common.BlockNumber, error) {
	// Blocks can live in the pool without having been flushed yet, so the
	// relation extends to the highest of the two views.
	n, err := m.diskManager.NumPages(fileID)
	if err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for pageID := range m.frames {
		if pageID.FileID == fileID && pageID.PageID+1 > n {
			n = pageID.PageID + 1
		}
	}

	return n, nil
}
