package bufferpool

import (
	"container/list"
	"sync"

	"github.com/go-faster/errors"

	"github.com/Blackdeer1524/btredo/src/pkg/common"
)

type LRUReplacer struct {
	mu     sync.Mutex
	lru    *list.List
	frames map[common.PageIdentity]*list.Element
}

var _ Replacer = &LRUReplacer{}

func NewLRUReplacer() *LRUReplacer {
	return &LRUReplacer{
		lru:    list.New(),
		frames: make(map[common.PageIdentity]*list.Element),
	}
}

func (l *LRUReplacer) Pin(pageID common.PageIdentity) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if elem, ok := l.frames[pageID]; ok {
		l.lru.Remove(elem)
		delete(l.frames, pageID)
	}
}

func (l *LRUReplacer) Unpin(pageID common.PageIdentity) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.frames[pageID]; exists {
		return
	}

	elem := l.lru.PushFront(pageID)
	l.frames[pageID] = elem
}

func (l *LRUReplacer) ChooseVictim() (common.PageIdentity, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	elem := l.lru.Back()
	if elem == nil {
		return common.PageIdentity{}, errors.New("no victim available")
	}

	pageID := elem.Value.(common.PageIdentity)

	l.lru.Remove(elem)
	delete(l.frames, pageID)

	return pageID, nil
}

func (l *LRUReplacer) GetSize() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	return uint64(len(l.frames))
}
