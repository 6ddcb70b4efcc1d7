package common

// LSN is a position in the write-ahead log. Pages are stamped with the LSN of
// the last record that touched them, which is what makes replay idempotent.
type LSN uint64

const NilLSN LSN = 0

// RelFileID identifies one relation file (an index or a heap).
type RelFileID uint32

// BlockNumber addresses a fixed-size page within a relation file.
// Block 0 of an index relation is always the meta page.
type BlockNumber uint32

const (
	MetaBlock BlockNumber = 0

	// NoSibling marks the absence of a left/right sibling link. Block 0 is
	// the meta page and never appears in a sibling chain, so zero is free
	// to act as the sentinel.
	NoSibling BlockNumber = 0
)

// OffsetNumber is a 1-based position of an item within a page.
type OffsetNumber uint16

const InvalidOffset OffsetNumber = 0

// TxnID is a transaction identifier read from heap tuple headers and carried
// by page-deletion records.
type TxnID uint32

const InvalidTxn TxnID = 0

// Follows reports whether a is newer than b. InvalidTxn never follows
// anything.
func (a TxnID) Follows(b TxnID) bool {
	return a != InvalidTxn && a > b
}

// PageIdentity names one page: which relation file and which block in it.
type PageIdentity struct {
	FileID RelFileID
	PageID BlockNumber
}
