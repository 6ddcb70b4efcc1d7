package recovery

import (
	"github.com/go-faster/errors"

	"github.com/Blackdeer1524/btredo/src/bufferpool"
	"github.com/Blackdeer1524/btredo/src/pkg/assert"
	"github.com/Blackdeer1524/btredo/src/pkg/common"
	"github.com/Blackdeer1524/btredo/src/storage/page"
)

// SafeRestartpoint reports whether recovery could restart from this point:
// only when no multi-record action is hanging mid-way. A restartpoint taken
// with pending actions would lose them, since the tracker is in-memory only.
func (r *Run) SafeRestartpoint() bool {
	if !r.tracker.empty() {
		r.mgr.log.Debugw("restartpoint unsafe",
			"run", r.id,
			"pending_splits", len(r.tracker.splits),
			"pending_deletions", len(r.tracker.deletions))
		return false
	}
	return true
}

// Cleanup finishes whatever the log left hanging: splits whose parent
// downlink never made it get one inserted now, and half-dead pages get
// unlinked. Must be called exactly once, after the last Redo of the run.
//
// Pages written here are stamped with the run's high-water LSN. There is no
// log record for these changes, so any later replay covering this window
// will redo the original actions and converge to the same state.
func (r *Run) Cleanup() error {
	defer r.heapMemo.close()

	for _, s := range r.tracker.splits {
		if err := r.finishSplit(s); err != nil {
			return errors.Wrapf(err, "finish split %d/%d of rel %d", s.leftBlk, s.rightBlk, s.rel)
		}
		r.mgr.metrics.actionFinished("split")
		r.mgr.log.Infow("finished incomplete split",
			"run", r.id, "rel", s.rel, "left", s.leftBlk, "right", s.rightBlk, "root", s.isRoot)
	}
	r.tracker.splits = nil

	// Unlinking a half-dead page can leave its parent half-dead in turn; the
	// cascade appends to the list being walked.
	for i := 0; i < len(r.tracker.deletions); i++ {
		d := r.tracker.deletions[i]
		if err := r.finishDeletion(d); err != nil {
			return errors.Wrapf(err, "finish deletion of block %d of rel %d", d.deadBlk, d.rel)
		}
		r.mgr.metrics.actionFinished("deletion")
		r.mgr.log.Infow("finished incomplete deletion",
			"run", r.id, "rel", d.rel, "block", d.deadBlk)
	}
	r.tracker.deletions = nil

	r.mgr.log.Infow("recovery run finished", "run", r.id, "max_lsn", r.maxLSN)
	return nil
}

func (m *heapPageMemo) close() {
	m.cache.Close()
}

// mustPage fetches a page that the tree structure guarantees to exist. Both
// halves of a registered split, for instance, were written by Redo in this
// very run; their absence means the store is corrupt beyond repair.
func (r *Run) mustPage(rel common.RelFileID, blk common.BlockNumber, what string) (*page.Page, common.PageIdentity) {
	pid := common.PageIdentity{FileID: rel, PageID: blk}
	p, err := r.mgr.pool.GetPageNoCreate(pid)
	assert.NoErrorWithMessage(err, what+": %v")
	return p, pid
}

func (r *Run) finishSplit(s incompleteSplit) error {
	lp, leftPID := r.mustPage(s.rel, s.leftBlk, "left half of a pending split")

	// The right half is not read, but it must be there; both halves were
	// written by Redo in this very run.
	_, rightPID := r.mustPage(s.rel, s.rightBlk, "right half of a pending split")
	r.mgr.pool.Unpin(rightPID)

	lp.RLock()
	level := lp.Level()
	assert.Assert(!lp.IsRightmost(),
		"left half %d of a pending split has no right sibling", s.leftBlk)
	hiKey := append([]byte(nil), page.IndexTupleKey(lp.Item(page.HighKeyOffset))...)
	lp.RUnlock()
	r.mgr.pool.Unpin(leftPID)

	// A root split is completed by growing a level; anything else by a
	// downlink in the existing parent.
	if s.isRoot {
		return r.growNewRoot(s, level, hiKey)
	}
	return r.insertParentDownlink(s, level, hiKey)
}

// growNewRoot allocates a fresh block one level up holding two downlinks:
// one to the left half (keyless, covering everything below the split point)
// and one to the right half under the left half's high key.
func (r *Run) growNewRoot(s incompleteSplit, level uint32, hiKey []byte) error {
	n, err := r.mgr.pool.NumPages(s.rel)
	if err != nil {
		return errors.Wrap(err, "size up relation")
	}
	rootBlk := n

	pid := common.PageIdentity{FileID: s.rel, PageID: rootBlk}
	p, err := r.mgr.pool.GetPage(pid)
	if err != nil {
		return errors.Wrap(err, "new root block")
	}

	p.Lock()
	p.Init()
	p.SetLevel(level + 1)
	p.SetFlags(page.FlagRoot)

	err = p.AddItem(page.EncodeDownlink(s.leftBlk, nil), page.HighKeyOffset)
	assert.NoErrorWithMessage(err, "new root rejected left downlink: %v")
	err = p.AddItem(page.EncodeDownlink(s.rightBlk, hiKey), page.FirstKeyOffset)
	assert.NoErrorWithMessage(err, "new root rejected right downlink: %v")

	p.SetLSN(r.maxLSN)
	p.SetDirtiness(true)
	p.Unlock()
	r.mgr.pool.Unpin(pid)

	return r.writeMetaPage(s.rel, r.maxLSN, MetaUpdate{
		Root:      rootBlk,
		Level:     level + 1,
		FastRoot:  rootBlk,
		FastLevel: level + 1,
	}, true)
}

func (r *Run) insertParentDownlink(s incompleteSplit, level uint32, hiKey []byte) error {
	parentBlk, poff, found := r.findParent(s.rel, s.leftBlk, level)
	assert.Assert(found,
		"no parent downlink for left half %d of a pending split in rel %d", s.leftBlk, s.rel)

	pp, pid := r.mustPage(s.rel, parentBlk, "parent of a pending split")
	pp.Lock()

	// The new downlink goes right after the left half's. A parent too full
	// to take it would itself have been split before the log ended, and that
	// split record would have completed this one.
	err := pp.AddItem(page.EncodeDownlink(s.rightBlk, hiKey), poff+1)
	assert.NoErrorWithMessage(err, "parent rejected downlink of a finished split: %v")

	pp.SetLSN(r.maxLSN)
	pp.SetDirtiness(true)
	pp.Unlock()
	r.mgr.pool.Unpin(pid)
	return nil
}

// findParent locates the downlink pointing at child. The descent follows the
// leftmost edge down to the child's parent level and then walks right along
// it; no key comparisons are involved, which matters because replay treats
// keys as opaque bytes.
func (r *Run) findParent(
	rel common.RelFileID,
	child common.BlockNumber,
	childLevel uint32,
) (common.BlockNumber, common.OffsetNumber, bool) {
	mp, metaPID := r.mustPage(rel, common.MetaBlock, "meta page")
	mp.RLock()
	md, err := page.ReadMeta(mp)
	mp.RUnlock()
	r.mgr.pool.Unpin(metaPID)
	assert.NoErrorWithMessage(err, "meta page unreadable: %v")

	if md.Level <= childLevel {
		return 0, 0, false
	}

	cur := md.Root
	for level := md.Level; level > childLevel+1; level-- {
		p, pid := r.mustPage(rel, cur, "inner page on the leftmost edge")
		p.RLock()
		next, _ := page.IndexTupleTID(p.Item(p.FirstDataOffset()))
		p.RUnlock()
		r.mgr.pool.Unpin(pid)
		cur = next
	}

	for cur != common.NoSibling {
		p, pid := r.mustPage(rel, cur, "page on the parent level")
		p.RLock()
		for off := p.FirstDataOffset(); off <= p.MaxOffset(); off++ {
			blk, _ := page.IndexTupleTID(p.Item(off))
			if blk == child {
				p.RUnlock()
				r.mgr.pool.Unpin(pid)
				return cur, off, true
			}
		}
		next := p.Next()
		p.RUnlock()
		r.mgr.pool.Unpin(pid)
		cur = next
	}

	return 0, 0, false
}

// finishDeletion unlinks a half-dead page the way a completed page deletion
// would have: downlink out of the parent, sibling chain bridged over it, the
// page itself marked deleted.
func (r *Run) finishDeletion(d incompleteDeletion) error {
	pid := common.PageIdentity{FileID: d.rel, PageID: d.deadBlk}
	tp, err := r.mgr.pool.GetPageNoCreate(pid)
	if errors.Is(err, bufferpool.ErrNoSuchPage) {
		// Tolerated: the block may have been truncated away after the record
		// that left it half-dead.
		r.mgr.log.Warnw("pending deletion target gone, skipped",
			"run", r.id, "rel", d.rel, "block", d.deadBlk)
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "pending deletion target")
	}
	defer r.mgr.pool.Unpin(pid)

	tp.Lock()
	if !tp.HasFlag(page.FlagHalfDead) {
		r.mgr.log.Warnw("pending deletion target is not half-dead, skipped",
			"run", r.id, "rel", d.rel, "block", d.deadBlk, "flags", tp.Flags())
		tp.Unlock()
		return nil
	}
	leftSib := tp.Prev()
	rightSib := tp.Next()
	level := tp.Level()
	tp.Unlock()

	if parentBlk, poff, found := r.findParent(d.rel, d.deadBlk, level); found {
		pp, ppid := r.mustPage(d.rel, parentBlk, "parent of a pending deletion")
		pp.Lock()
		if poff >= pp.MaxOffset() {
			assert.Assert(poff == pp.FirstDataOffset(),
				"half-dead parent %d still has children before offset %d", parentBlk, poff)
			pp.DeleteItem(poff)
			pp.AddFlag(page.FlagHalfDead)
			r.tracker.noteDeletion(incompleteDeletion{
				lsn:     d.lsn,
				rel:     d.rel,
				deadBlk: parentBlk,
			})
		} else {
			page.SetIndexTupleTID(pp.Item(poff), rightSib, page.HighKeyOffset)
			pp.DeleteItem(poff + 1)
		}
		pp.SetLSN(r.maxLSN)
		pp.SetDirtiness(true)
		pp.Unlock()
		r.mgr.pool.Unpin(ppid)
	} else {
		r.mgr.log.Warnw("pending deletion has no parent downlink",
			"run", r.id, "rel", d.rel, "block", d.deadBlk)
	}

	r.bridgeSibling(d.rel, rightSib, func(p *page.Page) { p.SetPrev(leftSib) })
	r.bridgeSibling(d.rel, leftSib, func(p *page.Page) { p.SetNext(rightSib) })

	tp.Lock()
	tp.Init()
	tp.SetPrev(leftSib)
	tp.SetNext(rightSib)
	tp.SetDeleteXact(r.maxXact)
	tp.SetFlags(page.FlagDeleted)
	tp.SetLSN(r.maxLSN)
	tp.SetDirtiness(true)
	tp.Unlock()

	return nil
}

func (r *Run) bridgeSibling(
	rel common.RelFileID,
	blk common.BlockNumber,
	fix func(p *page.Page),
) {
	if blk == common.NoSibling {
		return
	}

	pid := common.PageIdentity{FileID: rel, PageID: blk}
	p, err := r.mgr.pool.GetPageNoCreate(pid)
	if err != nil {
		r.mgr.log.Warnw("sibling of a pending deletion gone, skipped",
			"run", r.id, "rel", rel, "block", blk, "error", err)
		return
	}

	p.Lock()
	fix(p)
	p.SetLSN(r.maxLSN)
	p.SetDirtiness(true)
	p.Unlock()
	r.mgr.pool.Unpin(pid)
}
