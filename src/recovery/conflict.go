package recovery

import (
	"github.com/dgraph-io/ristretto/v2"
	"github.com/go-faster/errors"

	"github.com/Blackdeer1524/btredo/src/bufferpool"
	"github.com/Blackdeer1524/btredo/src/pkg/assert"
	"github.com/Blackdeer1524/btredo/src/pkg/common"
	"github.com/Blackdeer1524/btredo/src/storage/page"
)

// heapPageMemo caches copies of heap pages for the duration of a single
// delete record. Dead index items of one record often point into the same
// few heap blocks, and each pool acquisition pins, latches and copies; the
// memo collapses the repeats. It must not outlive the record: the next one
// may be replayed after further heap changes.
type heapPageMemo struct {
	cache *ristretto.Cache[uint64, *page.Page]
}

func newHeapPageMemo() *heapPageMemo {
	cache, err := ristretto.NewCache(&ristretto.Config[uint64, *page.Page]{
		NumCounters: 1 << 12,
		MaxCost:     64 * page.PageSize,
		BufferItems: 64,
	})
	assert.NoErrorWithMessage(err, "heap page memo: %v")
	return &heapPageMemo{cache: cache}
}

func memoKey(rel common.RelFileID, blk common.BlockNumber) uint64 {
	return uint64(rel)<<32 | uint64(blk)
}

func (m *heapPageMemo) get(rel common.RelFileID, blk common.BlockNumber) (*page.Page, bool) {
	return m.cache.Get(memoKey(rel, blk))
}

func (m *heapPageMemo) put(rel common.RelFileID, blk common.BlockNumber, p *page.Page) {
	m.cache.Set(memoKey(rel, blk), p, page.PageSize)
	// Sets are buffered; flush so a re-lookup within this record hits.
	m.cache.Wait()
}

func (m *heapPageMemo) reset() {
	m.cache.Clear()
}

// latestRemovedXid computes the newest transaction whose row versions the
// delete record removes index entries for, by chasing each dead item's
// pointer into the heap. Read-only snapshots older than the result conflict
// with replaying the record.
//
// The computation is advisory: if any needed page cannot be read the
// function gives up and returns InvalidTxn, meaning no conflict can be
// attributed to this record. The caller then reports no conflict at all.
func (r *Run) latestRemovedXid(rec DeleteRecord) common.TxnID {
	// Fast path: no read-only sessions, nothing to conflict with. This keeps
	// crash recovery (where the registry always reports zero) from reading
	// heap pages at all.
	if r.mgr.standby.ActiveReadOnlyBackends() == 0 {
		return common.InvalidTxn
	}

	defer r.heapMemo.reset()

	indexPID := common.PageIdentity{FileID: rec.Rel, PageID: rec.Block}
	ip, err := r.mgr.pool.GetPageNoCreate(indexPID)
	if err != nil {
		r.mgr.log.Warnw("conflict check could not read index page",
			"run", r.id, "rel", rec.Rel, "block", rec.Block, "error", err)
		return common.InvalidTxn
	}
	defer r.mgr.pool.Unpin(indexPID)

	ip.RLock()
	defer ip.RUnlock()

	indexMax := ip.MaxOffset()

	latest := common.InvalidTxn
	for _, off := range rec.Offsets {
		if off < 1 || off > indexMax {
			// The page already reflects the record (a replay after restart);
			// the first replay reported the removing xids.
			continue
		}
		item := ip.Item(off)
		heapBlk, heapOff := page.IndexTupleTID(item)

		hp, ok := r.heapPage(rec.HeapRel, heapBlk)
		if !ok {
			return common.InvalidTxn
		}

		// Pruning may have turned the slot into a forwarding stub; follow it
		// to the live line pointer.
		maxOff := hp.MaxOffset()
		for {
			target, redirected := hp.ItemRedirect(heapOff)
			if !redirected {
				break
			}
			heapOff = target
		}

		if heapOff < 1 || heapOff > maxOff || !hp.ItemHasStorage(heapOff) {
			// A dead stub or an already pruned-away slot: the removing
			// transaction is known committed and carried by some earlier
			// record, nothing newer to learn here.
			continue
		}

		xmin, xmax := page.HeapTupleXids(hp.Item(heapOff))
		if xmin.Follows(latest) {
			latest = xmin
		}
		if xmax.Follows(latest) {
			latest = xmax
		}
	}

	return latest
}

// heapPage returns a private copy of the heap page, served from the memo
// when possible.
func (r *Run) heapPage(rel common.RelFileID, blk common.BlockNumber) (*page.Page, bool) {
	if p, ok := r.heapMemo.get(rel, blk); ok {
		return p, true
	}

	pid := common.PageIdentity{FileID: rel, PageID: blk}
	p, err := r.mgr.pool.GetPageNoCreate(pid)
	if errors.Is(err, bufferpool.ErrNoSuchPage) {
		r.mgr.log.Warnw("conflict check could not read heap page",
			"run", r.id, "rel", rel, "block", blk)
		return nil, false
	}
	if err != nil {
		r.mgr.log.Warnw("conflict check heap read failed",
			"run", r.id, "rel", rel, "block", blk, "error", err)
		return nil, false
	}

	p.RLock()
	cp := page.Load(p.GetData())
	p.RUnlock()
	r.mgr.pool.Unpin(pid)

	r.heapMemo.put(rel, blk, cp)
	return cp, true
}
