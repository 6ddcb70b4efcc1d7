package recovery

import (
	"github.com/Blackdeer1524/btredo/src/pkg/common"
)

// RecordKind is the operation code of one log record.
type RecordKind uint8

const (
	KindInsertLeaf RecordKind = iota + 1
	KindInsertUpper
	KindInsertMeta
	KindSplitLeft     // new item ended up on the left half
	KindSplitRight    // new item ended up on the right half
	KindSplitLeftRoot // same, the split page was the root
	KindSplitRightRoot
	KindVacuum
	KindDelete
	KindDeletePage
	KindDeletePageMeta
	KindDeletePageHalf
	KindNewRoot
	KindReusePage

	kindUnknown
)

func (k RecordKind) String() string {
	switch k {
	case KindInsertLeaf:
		return "insert_leaf"
	case KindInsertUpper:
		return "insert_upper"
	case KindInsertMeta:
		return "insert_meta"
	case KindSplitLeft:
		return "split_l"
	case KindSplitRight:
		return "split_r"
	case KindSplitLeftRoot:
		return "split_l_root"
	case KindSplitRightRoot:
		return "split_r_root"
	case KindVacuum:
		return "vacuum"
	case KindDelete:
		return "delete"
	case KindDeletePage:
		return "delete_page"
	case KindDeletePageMeta:
		return "delete_page_meta"
	case KindDeletePageHalf:
		return "delete_page_half"
	case KindNewRoot:
		return "newroot"
	case KindReusePage:
		return "reuse_page"
	default:
		return "unknown"
	}
}

func (k RecordKind) isLeafInsert() bool { return k == KindInsertLeaf }
func (k RecordKind) isMetaInsert() bool { return k == KindInsertMeta }

func (k RecordKind) splitOnLeft() bool {
	return k == KindSplitLeft || k == KindSplitLeftRoot
}

func (k RecordKind) splitOfRoot() bool {
	return k == KindSplitLeftRoot || k == KindSplitRightRoot
}

// MetaUpdate is the meta-page payload piggybacked on records that move the
// root or the fast root.
type MetaUpdate struct {
	Root      common.BlockNumber
	Level     uint32
	FastRoot  common.BlockNumber
	FastLevel uint32
}

// InsertRecord describes one item placed on one page. Upper-level inserts
// carry the downlink block of the split they complete; meta-carrying inserts
// additionally rewrite the meta page.
type InsertRecord struct {
	Rel    common.RelFileID
	Block  common.BlockNumber
	Offset common.OffsetNumber

	Downlink common.BlockNumber // valid for upper/meta variants
	Meta     *MetaUpdate        // set for the meta variant

	Item []byte
}

// SplitRecord carries everything needed to rebuild both halves of a split.
// The right sibling is always reconstructed from scratch out of RightItems;
// the left one is patched incrementally.
type SplitRecord struct {
	Rel      common.RelFileID
	LeftSib  common.BlockNumber
	RightSib common.BlockNumber
	RNext    common.BlockNumber // old right sibling of the split page
	Level    uint32
	// FirstRight is the offset of the first item moved to the right half,
	// in the pre-split numbering of the left page.
	FirstRight common.OffsetNumber

	// Upper-level splits complete a lower split and must spell out the left
	// page's new high key; on leaf splits it is implicit (first right item).
	Downlink    common.BlockNumber
	LeftHighKey []byte

	// Present when the new item landed on the left half.
	NewItemOff common.OffsetNumber
	NewItem    []byte

	RightItems []byte
}

// VacuumRecord removes dead items under a cleanup lock. LastBlockVacuumed
// drives the hot-standby pin fence over the blocks in between.
type VacuumRecord struct {
	Rel               common.RelFileID
	Block             common.BlockNumber
	LastBlockVacuumed common.BlockNumber

	Offsets []common.OffsetNumber
}

// DeleteRecord removes known-dead items without a cleanup lock. HeapRel
// names the table the dead tuples point into, for conflict resolution.
type DeleteRecord struct {
	Rel     common.RelFileID
	Block   common.BlockNumber
	HeapRel common.RelFileID

	Offsets []common.OffsetNumber
}

// DeletePageRecord unlinks a child page from the tree. ParentBlock/
// ParentOffset locate the downlink to drop or retarget.
type DeletePageRecord struct {
	Rel          common.RelFileID
	ParentBlock  common.BlockNumber
	ParentOffset common.OffsetNumber
	DeadBlock    common.BlockNumber
	LeftSib      common.BlockNumber
	RightSib     common.BlockNumber
	DeleteXact   common.TxnID

	Meta *MetaUpdate // set for the meta variant
}

// NewRootRecord establishes a new root, either empty (first leaf) or with
// the two downlinks produced by a root split.
type NewRootRecord struct {
	Rel       common.RelFileID
	RootBlock common.BlockNumber
	Level     uint32

	Items []byte
}

// ReusePageRecord mutates nothing; it is a pure conflict point emitted
// before a deleted page's space is recycled.
type ReusePageRecord struct {
	Rel              common.RelFileID
	Block            common.BlockNumber
	LatestRemovedXid common.TxnID
}
