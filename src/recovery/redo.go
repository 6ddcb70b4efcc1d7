package recovery

import (
	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/Blackdeer1524/btredo/src"
	"github.com/Blackdeer1524/btredo/src/bufferpool"
	"github.com/Blackdeer1524/btredo/src/pkg/assert"
	"github.com/Blackdeer1524/btredo/src/pkg/common"
	"github.com/Blackdeer1524/btredo/src/storage/page"
)

// BackupApplied says which of a record's block references were already
// restored from full-page images before Redo was called; replay then skips
// the incremental update for those blocks. The bit positions follow a fixed
// per-kind convention:
//
//	insert:      0 target page
//	split:       0 left half, 1 old right sibling
//	vacuum:      0 target page
//	delete:      0 target page
//	delete_page: 0 parent, 1 right sibling, 2 left sibling
//
// The right half of a split, the dead page of a deletion and meta pages are
// always rebuilt from record payload and never carry images.
type BackupApplied uint8

func (b BackupApplied) Applied(i int) bool {
	return b&(1<<i) != 0
}

// Manager holds the collaborators replay needs. One Manager serves any
// number of recovery runs, one at a time.
type Manager struct {
	pool    bufferpool.BufferPool
	standby common.StandbyRegistry
	log     src.Logger
	metrics *replayMetrics
}

func New(
	pool bufferpool.BufferPool,
	standby common.StandbyRegistry,
	log src.Logger,
) *Manager {
	assert.Assert(pool != nil, "recovery manager needs a buffer pool")
	if standby == nil {
		standby = common.NoStandby{}
	}
	if log == nil {
		log = src.NopLogger{}
	}

	return &Manager{
		pool:    pool,
		standby: standby,
		log:     log,
		metrics: newReplayMetrics(),
	}
}

// Run is one pass over the log: feed records to Redo in order, then call
// Cleanup once the log is exhausted. A Run is single-threaded.
type Run struct {
	id  uuid.UUID
	mgr *Manager

	tracker actionTracker

	// High-water marks over everything seen so far. Cleanup stamps the pages
	// it fixes with maxLSN; maxXact seeds the deletion epoch of pages it
	// marks deleted.
	maxLSN  common.LSN
	maxXact common.TxnID

	heapMemo *heapPageMemo
}

func (m *Manager) Begin() *Run {
	r := &Run{
		id:       uuid.New(),
		mgr:      m,
		heapMemo: newHeapPageMemo(),
	}
	m.log.Infow("recovery run started", "run", r.id)
	return r
}

// fresh reports whether the record at lsn still has to be applied to the
// page. Pages carry the LSN of the last record that touched them, so
// replaying an already-applied record is a no-op.
func fresh(p *page.Page, lsn common.LSN) bool {
	return lsn > p.LSN()
}

// Redo applies one log record. Decode failures and structural impossibilities
// (an item that cannot be re-added, a split left half in an impossible state)
// panic: a log that does not replay leaves nothing consistent to continue
// with. Missing pages, in contrast, are normal; they mean the block was
// truncated away after this record was written.
func (r *Run) Redo(lsn common.LSN, kind RecordKind, payload []byte, applied BackupApplied) error {
	if lsn > r.maxLSN {
		r.maxLSN = lsn
	}
	r.mgr.metrics.recordReplayed(kind)

	switch kind {
	case KindInsertLeaf, KindInsertUpper, KindInsertMeta:
		rec, err := decodeInsert(kind, payload)
		if err != nil {
			return errors.Wrapf(err, "decode %v", kind)
		}
		return r.redoInsert(lsn, kind, rec, applied)

	case KindSplitLeft, KindSplitRight, KindSplitLeftRoot, KindSplitRightRoot:
		rec, err := decodeSplit(kind, payload)
		if err != nil {
			return errors.Wrapf(err, "decode %v", kind)
		}
		return r.redoSplit(lsn, kind, rec, applied)

	case KindVacuum:
		rec, err := decodeVacuum(payload)
		if err != nil {
			return errors.Wrap(err, "decode vacuum")
		}
		return r.redoVacuum(lsn, rec, applied)

	case KindDelete:
		rec, err := decodeDelete(payload)
		if err != nil {
			return errors.Wrap(err, "decode delete")
		}
		return r.redoDelete(lsn, rec, applied)

	case KindDeletePage, KindDeletePageMeta, KindDeletePageHalf:
		rec, err := decodeDeletePage(kind, payload)
		if err != nil {
			return errors.Wrapf(err, "decode %v", kind)
		}
		return r.redoDeletePage(lsn, kind, rec, applied)

	case KindNewRoot:
		rec, err := decodeNewRoot(payload)
		if err != nil {
			return errors.Wrap(err, "decode newroot")
		}
		return r.redoNewRoot(lsn, rec)

	case KindReusePage:
		rec, err := decodeReusePage(payload)
		if err != nil {
			return errors.Wrap(err, "decode reuse_page")
		}
		return r.redoReusePage(rec)

	default:
		return errors.Wrapf(ErrBadRecord, "unknown record kind %d", kind)
	}
}

func (r *Run) forgetSplit(rel common.RelFileID, downlink common.BlockNumber) {
	s := r.tracker.forgetSplit(rel, downlink)
	if s.IsNone() {
		// The split was already complete before the log window we replay.
		r.mgr.log.Debugw("downlink matches no pending split",
			"run", r.id, "rel", rel, "downlink", downlink)
		return
	}
	sp := s.Unwrap()
	r.mgr.log.Debugw("split completed",
		"run", r.id, "rel", rel, "left", sp.leftBlk, "right", sp.rightBlk)
}

func (r *Run) redoInsert(
	lsn common.LSN,
	kind RecordKind,
	rec InsertRecord,
	applied BackupApplied,
) error {
	// An insert above the leaf level is the parent downlink that completes a
	// child split. Settle the bookkeeping before touching any page.
	if !kind.isLeafInsert() {
		r.forgetSplit(rec.Rel, rec.Downlink)
	}

	if !applied.Applied(0) {
		pid := common.PageIdentity{FileID: rec.Rel, PageID: rec.Block}
		p, err := r.mgr.pool.GetPageNoCreate(pid)
		switch {
		case errors.Is(err, bufferpool.ErrNoSuchPage):
			r.mgr.log.Debugw("insert target gone, skipped",
				"run", r.id, "rel", rec.Rel, "block", rec.Block)
		case err != nil:
			return errors.Wrap(err, "insert target")
		default:
			p.Lock()
			if fresh(p, lsn) {
				err := p.AddItem(rec.Item, rec.Offset)
				assert.NoErrorWithMessage(err, "insert replay failed to add item: %v")
				p.SetLSN(lsn)
				p.SetDirtiness(true)
			} else {
				r.mgr.metrics.pageSkipped(kind)
			}
			p.Unlock()
			r.mgr.pool.Unpin(pid)
		}
	}

	if kind.isMetaInsert() {
		return r.restoreMeta(rec.Rel, lsn, *rec.Meta)
	}
	return nil
}

func (r *Run) redoSplit(
	lsn common.LSN,
	kind RecordKind,
	rec SplitRecord,
	applied BackupApplied,
) error {
	// A split above the leaf level carries the downlink completing the child
	// split that triggered it.
	if rec.Level > 0 {
		r.forgetSplit(rec.Rel, rec.Downlink)
	}

	// The right half is always rebuilt from scratch out of the payload.
	rightPID := common.PageIdentity{FileID: rec.Rel, PageID: rec.RightSib}
	rp, err := r.mgr.pool.GetPage(rightPID)
	if err != nil {
		return errors.Wrap(err, "right half")
	}
	rp.Lock()

	rp.Init()
	rp.SetPrev(rec.LeftSib)
	rp.SetNext(rec.RNext)
	rp.SetLevel(rec.Level)
	if rec.Level == 0 {
		rp.AddFlag(page.FlagLeaf)
	}
	err = page.RestoreItems(rp, rec.RightItems)
	assert.NoErrorWithMessage(err, "split replay failed to rebuild right half: %v")
	rp.SetLSN(lsn)
	rp.SetDirtiness(true)

	// Keep the right half latched until the left one is consistent, so no
	// reader observes the half-finished state.
	if !applied.Applied(0) {
		if err := r.splitRebuildLeft(lsn, kind, rec, rp); err != nil {
			rp.Unlock()
			r.mgr.pool.Unpin(rightPID)
			return err
		}
	}

	rp.Unlock()
	r.mgr.pool.Unpin(rightPID)

	// The old right sibling now has a new left neighbor.
	if rec.RNext != common.NoSibling && !applied.Applied(1) {
		nextPID := common.PageIdentity{FileID: rec.Rel, PageID: rec.RNext}
		np, err := r.mgr.pool.GetPageNoCreate(nextPID)
		switch {
		case errors.Is(err, bufferpool.ErrNoSuchPage):
			r.mgr.log.Debugw("old right sibling gone, skipped",
				"run", r.id, "rel", rec.Rel, "block", rec.RNext)
		case err != nil:
			return errors.Wrap(err, "old right sibling")
		default:
			np.Lock()
			if fresh(np, lsn) {
				np.SetPrev(rec.RightSib)
				np.SetLSN(lsn)
				np.SetDirtiness(true)
			} else {
				r.mgr.metrics.pageSkipped(kind)
			}
			np.Unlock()
			r.mgr.pool.Unpin(nextPID)
		}
	}

	// The parent downlink for the new right half is a separate record; until
	// it arrives this split counts as incomplete.
	r.tracker.noteSplit(incompleteSplit{
		lsn:      lsn,
		rel:      rec.Rel,
		leftBlk:  rec.LeftSib,
		rightBlk: rec.RightSib,
		isRoot:   kind.splitOfRoot(),
	})

	return nil
}

// splitRebuildLeft brings the left half to its post-split state: everything
// from FirstRight on moves out, the high key is replaced, and on "item went
// left" variants the new item is put in place. rp must already be rebuilt.
func (r *Run) splitRebuildLeft(
	lsn common.LSN,
	kind RecordKind,
	rec SplitRecord,
	rp *page.Page,
) error {
	leftPID := common.PageIdentity{FileID: rec.Rel, PageID: rec.LeftSib}
	lp, err := r.mgr.pool.GetPageNoCreate(leftPID)
	if errors.Is(err, bufferpool.ErrNoSuchPage) {
		r.mgr.log.Debugw("split left half gone, skipped",
			"run", r.id, "rel", rec.Rel, "block", rec.LeftSib)
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "left half")
	}
	defer r.mgr.pool.Unpin(leftPID)

	lp.Lock()
	defer lp.Unlock()

	if !fresh(lp, lsn) {
		r.mgr.metrics.pageSkipped(kind)
		return nil
	}

	// The left half's new high key: spelled out in the record for upper
	// levels, equal to the first item moved right on leaf splits.
	hiKey := rec.LeftHighKey
	if rec.Level == 0 {
		hiKey = rp.Item(rp.FirstDataOffset())
	}

	// Drop everything that moved right, plus the old high key. The page
	// still has its pre-split state, so its rightmost-ness tells whether a
	// high key is present.
	maxOff := lp.MaxOffset()
	assert.Assert(rec.FirstRight <= maxOff,
		"split point %d beyond left half items %d", rec.FirstRight, maxOff)

	kills := make([]common.OffsetNumber, 0, int(maxOff-rec.FirstRight)+2)
	if !lp.IsRightmost() {
		kills = append(kills, page.HighKeyOffset)
	}
	for off := rec.FirstRight; off <= maxOff; off++ {
		kills = append(kills, off)
	}
	lp.MultiDelete(kills)

	err = lp.AddItem(hiKey, page.HighKeyOffset)
	assert.NoErrorWithMessage(err, "split replay failed to set left high key: %v")

	if kind.splitOnLeft() {
		err = lp.AddItem(rec.NewItem, rec.NewItemOff)
		assert.NoErrorWithMessage(err, "split replay failed to add new item: %v")
	}

	lp.SetNext(rec.RightSib)
	lp.SetLevel(rec.Level)
	if rec.Level == 0 {
		lp.SetFlags(page.FlagLeaf)
	} else {
		lp.SetFlags(0)
	}
	lp.SetCycleID(0)

	lp.SetLSN(lsn)
	lp.SetDirtiness(true)
	return nil
}

func (r *Run) redoVacuum(
	lsn common.LSN,
	rec VacuumRecord,
	applied BackupApplied,
) error {
	// In hot standby a scan may sit on any block between the previous
	// vacuum target and this one without the log saying so. Touching each
	// of those blocks with a cleanup lock fences such scans out before the
	// removal below becomes visible.
	if r.mgr.standby.InHotStandby() && rec.LastBlockVacuumed+1 != rec.Block {
		for blk := rec.LastBlockVacuumed + 1; blk < rec.Block; blk++ {
			pid := common.PageIdentity{FileID: rec.Rel, PageID: blk}
			p, err := r.mgr.pool.GetPageNoCreate(pid)
			if errors.Is(err, bufferpool.ErrNoSuchPage) {
				continue
			}
			if err != nil {
				return errors.Wrap(err, "vacuum fence")
			}
			r.mgr.pool.LockForCleanup(p, pid)
			p.Unlock()
			r.mgr.pool.Unpin(pid)
		}
	}

	if applied.Applied(0) {
		return nil
	}

	pid := common.PageIdentity{FileID: rec.Rel, PageID: rec.Block}
	p, err := r.mgr.pool.GetPageNoCreate(pid)
	if errors.Is(err, bufferpool.ErrNoSuchPage) {
		r.mgr.log.Debugw("vacuum target gone, skipped",
			"run", r.id, "rel", rec.Rel, "block", rec.Block)
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "vacuum target")
	}

	r.mgr.pool.LockForCleanup(p, pid)
	defer func() {
		p.Unlock()
		r.mgr.pool.Unpin(pid)
	}()

	if !fresh(p, lsn) {
		r.mgr.metrics.pageSkipped(KindVacuum)
		return nil
	}

	p.MultiDelete(rec.Offsets)
	p.ClearFlag(page.FlagHasGarbage)
	p.SetLSN(lsn)
	p.SetDirtiness(true)
	return nil
}

func (r *Run) redoDelete(
	lsn common.LSN,
	rec DeleteRecord,
	applied BackupApplied,
) error {
	// Conflicts are resolved before the page state is even looked at: the
	// record proves the deleted rows are gone upstream, and that holds even
	// when this particular page copy already reflects it.
	if r.mgr.standby.InHotStandby() {
		latest := r.latestRemovedXid(rec)
		if latest != common.InvalidTxn {
			r.mgr.standby.ResolveRecoveryConflict(rec.HeapRel, latest)
			r.mgr.metrics.conflictReported()
		}
	}

	if applied.Applied(0) {
		return nil
	}

	pid := common.PageIdentity{FileID: rec.Rel, PageID: rec.Block}
	p, err := r.mgr.pool.GetPageNoCreate(pid)
	if errors.Is(err, bufferpool.ErrNoSuchPage) {
		r.mgr.log.Debugw("delete target gone, skipped",
			"run", r.id, "rel", rec.Rel, "block", rec.Block)
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "delete target")
	}

	// Unlike vacuum, a plain latch suffices: every removed item is already
	// known dead, so no scan can be positioned on it.
	p.Lock()
	defer func() {
		p.Unlock()
		r.mgr.pool.Unpin(pid)
	}()

	if !fresh(p, lsn) {
		r.mgr.metrics.pageSkipped(KindDelete)
		return nil
	}

	p.MultiDelete(rec.Offsets)
	p.ClearFlag(page.FlagHasGarbage)
	p.SetLSN(lsn)
	p.SetDirtiness(true)
	return nil
}

func (r *Run) redoDeletePage(
	lsn common.LSN,
	kind RecordKind,
	rec DeletePageRecord,
	applied BackupApplied,
) error {
	if rec.DeleteXact.Follows(r.maxXact) {
		r.maxXact = rec.DeleteXact
	}

	// Parent: drop or retarget the downlink.
	if !applied.Applied(0) {
		if err := r.deletePageFixParent(lsn, kind, rec); err != nil {
			return err
		}
	}

	// Right sibling: its left neighbor changes.
	if rec.RightSib != common.NoSibling && !applied.Applied(1) {
		pid := common.PageIdentity{FileID: rec.Rel, PageID: rec.RightSib}
		p, err := r.mgr.pool.GetPageNoCreate(pid)
		switch {
		case errors.Is(err, bufferpool.ErrNoSuchPage):
			r.mgr.log.Debugw("right sibling gone, skipped",
				"run", r.id, "rel", rec.Rel, "block", rec.RightSib)
		case err != nil:
			return errors.Wrap(err, "right sibling")
		default:
			p.Lock()
			if fresh(p, lsn) {
				p.SetPrev(rec.LeftSib)
				p.SetLSN(lsn)
				p.SetDirtiness(true)
			} else {
				r.mgr.metrics.pageSkipped(kind)
			}
			p.Unlock()
			r.mgr.pool.Unpin(pid)
		}
	}

	// Left sibling: its right neighbor changes.
	if rec.LeftSib != common.NoSibling && !applied.Applied(2) {
		pid := common.PageIdentity{FileID: rec.Rel, PageID: rec.LeftSib}
		p, err := r.mgr.pool.GetPageNoCreate(pid)
		switch {
		case errors.Is(err, bufferpool.ErrNoSuchPage):
			r.mgr.log.Debugw("left sibling gone, skipped",
				"run", r.id, "rel", rec.Rel, "block", rec.LeftSib)
		case err != nil:
			return errors.Wrap(err, "left sibling")
		default:
			p.Lock()
			if fresh(p, lsn) {
				p.SetNext(rec.RightSib)
				p.SetLSN(lsn)
				p.SetDirtiness(true)
			} else {
				r.mgr.metrics.pageSkipped(kind)
			}
			p.Unlock()
			r.mgr.pool.Unpin(pid)
		}
	}

	// The dead page itself is rewritten from scratch, unconditionally; its
	// old content is garbage by definition.
	pid := common.PageIdentity{FileID: rec.Rel, PageID: rec.DeadBlock}
	dp, err := r.mgr.pool.GetPage(pid)
	if err != nil {
		return errors.Wrap(err, "dead page")
	}
	dp.Lock()
	dp.Init()
	dp.SetPrev(rec.LeftSib)
	dp.SetNext(rec.RightSib)
	dp.SetDeleteXact(rec.DeleteXact)
	dp.SetFlags(page.FlagDeleted)
	dp.SetLSN(lsn)
	dp.SetDirtiness(true)
	dp.Unlock()
	r.mgr.pool.Unpin(pid)

	if rec.Meta != nil {
		if err := r.restoreMeta(rec.Rel, lsn, *rec.Meta); err != nil {
			return err
		}
	}

	// Bookkeeping: this record finishes any pending deletion of the dead
	// block, and the half variant leaves the parent half-dead, which is a
	// new pending deletion of its own.
	if d := r.tracker.forgetDeletion(rec.Rel, rec.DeadBlock); d.IsSome() {
		r.mgr.log.Debugw("page deletion completed",
			"run", r.id, "rel", rec.Rel, "block", rec.DeadBlock)
	}
	if kind == KindDeletePageHalf {
		r.tracker.noteDeletion(incompleteDeletion{
			lsn:     lsn,
			rel:     rec.Rel,
			deadBlk: rec.ParentBlock,
		})
	}

	return nil
}

func (r *Run) deletePageFixParent(
	lsn common.LSN,
	kind RecordKind,
	rec DeletePageRecord,
) error {
	pid := common.PageIdentity{FileID: rec.Rel, PageID: rec.ParentBlock}
	pp, err := r.mgr.pool.GetPageNoCreate(pid)
	if errors.Is(err, bufferpool.ErrNoSuchPage) {
		r.mgr.log.Debugw("parent gone, skipped",
			"run", r.id, "rel", rec.Rel, "block", rec.ParentBlock)
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "parent")
	}
	defer r.mgr.pool.Unpin(pid)

	pp.Lock()
	defer pp.Unlock()

	if !fresh(pp, lsn) {
		r.mgr.metrics.pageSkipped(kind)
		return nil
	}

	poff := rec.ParentOffset
	maxOff := pp.MaxOffset()

	if poff >= maxOff {
		// The dead page was the parent's last child: the parent itself goes
		// half-dead and will be deleted next.
		assert.Assert(kind == KindDeletePageHalf,
			"downlink at %d is the last of %d but parent does not go half-dead", poff, maxOff)
		assert.Assert(poff == pp.FirstDataOffset(),
			"half-dead parent still has children before offset %d", poff)
		pp.DeleteItem(poff)
		pp.AddFlag(page.FlagHalfDead)
	} else {
		assert.Assert(kind != KindDeletePageHalf,
			"half-dead parent keeps children after offset %d of %d", poff, maxOff)
		// The downlink one past the dead page's takes over its key space:
		// retarget the dead page's downlink at the right sibling and drop
		// the now-redundant next one.
		page.SetIndexTupleTID(pp.Item(poff), rec.RightSib, page.HighKeyOffset)
		pp.DeleteItem(poff + 1)
	}

	pp.SetLSN(lsn)
	pp.SetDirtiness(true)
	return nil
}

func (r *Run) redoNewRoot(lsn common.LSN, rec NewRootRecord) error {
	pid := common.PageIdentity{FileID: rec.Rel, PageID: rec.RootBlock}
	p, err := r.mgr.pool.GetPage(pid)
	if err != nil {
		return errors.Wrap(err, "new root")
	}

	downlink := common.NoSibling

	p.Lock()
	p.Init()
	p.SetLevel(rec.Level)
	p.SetFlags(page.FlagRoot)
	if rec.Level == 0 {
		p.AddFlag(page.FlagLeaf)
	}
	if len(rec.Items) > 0 {
		// A non-empty payload means this root was made by a root split: two
		// downlinks, the second pointing at the split's right half.
		err := page.RestoreItems(p, rec.Items)
		assert.NoErrorWithMessage(err, "newroot replay failed to restore items: %v")
		assert.Assert(p.MaxOffset() == 2,
			"split-born root carries %d items instead of 2", p.MaxOffset())

		blk, off := page.IndexTupleTID(p.Item(page.FirstKeyOffset))
		assert.Assert(off == page.DownlinkOffset,
			"root item 2 is not a downlink, tid offset %d", off)
		downlink = blk
	}
	p.SetLSN(lsn)
	p.SetDirtiness(true)
	p.Unlock()
	r.mgr.pool.Unpin(pid)

	if err := r.restoreMeta(rec.Rel, lsn, MetaUpdate{
		Root:      rec.RootBlock,
		Level:     rec.Level,
		FastRoot:  rec.RootBlock,
		FastLevel: rec.Level,
	}); err != nil {
		return err
	}

	if downlink != common.NoSibling {
		r.forgetSplit(rec.Rel, downlink)
	}
	return nil
}

func (r *Run) redoReusePage(rec ReusePageRecord) error {
	// Nothing on disk changes; the record exists purely so a standby knows
	// that snapshots older than LatestRemovedXid must not walk onto the
	// recycled page.
	if rec.LatestRemovedXid.Follows(r.maxXact) {
		r.maxXact = rec.LatestRemovedXid
	}

	if r.mgr.standby.InHotStandby() && rec.LatestRemovedXid != common.InvalidTxn {
		r.mgr.standby.ResolveRecoveryConflict(rec.Rel, rec.LatestRemovedXid)
		r.mgr.metrics.conflictReported()
	}
	return nil
}

// restoreMeta rewrites the meta page wholesale, gated on the same LSN
// freshness rule as everything else.
func (r *Run) restoreMeta(rel common.RelFileID, lsn common.LSN, md MetaUpdate) error {
	return r.writeMetaPage(rel, lsn, md, false)
}

// writeMetaPage is restoreMeta without the freshness gate when force is set.
// The cleanup pass stamps pages with the run's high-water LSN, which the
// meta page may already carry; its rewrites must not be skipped for it.
func (r *Run) writeMetaPage(rel common.RelFileID, lsn common.LSN, md MetaUpdate, force bool) error {
	pid := common.PageIdentity{FileID: rel, PageID: common.MetaBlock}
	p, err := r.mgr.pool.GetPage(pid)
	if err != nil {
		return errors.Wrap(err, "meta page")
	}

	p.Lock()
	if force || fresh(p, lsn) {
		page.WriteMeta(p, page.Meta{
			Root:      md.Root,
			Level:     md.Level,
			FastRoot:  md.FastRoot,
			FastLevel: md.FastLevel,
		})
		p.SetLSN(lsn)
		p.SetDirtiness(true)
	}
	p.Unlock()
	r.mgr.pool.Unpin(pid)

	r.mgr.log.Debugw("meta restored",
		"run", r.id, "rel", rel, "root", md.Root, "level", md.Level,
		"fastroot", md.FastRoot, "fastlevel", md.FastLevel)
	return nil
}
