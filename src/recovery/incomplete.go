package recovery

import (
	"github.com/Blackdeer1524/btredo/src/pkg/common"
	"github.com/Blackdeer1524/btredo/src/pkg/optional"
)

// During replay a multi-record action (split, page deletion) may be cut off
// by the end of the log. Every action is registered when its first record is
// seen and forgotten when the record that completes it arrives; whatever is
// still registered at end of log gets finished by the cleanup pass.

type incompleteSplit struct {
	lsn common.LSN // of the split record

	rel      common.RelFileID
	leftBlk  common.BlockNumber
	rightBlk common.BlockNumber
	isRoot   bool
}

type incompleteDeletion struct {
	lsn common.LSN // of the half-dead record

	rel     common.RelFileID
	deadBlk common.BlockNumber
}

type actionTracker struct {
	splits    []incompleteSplit
	deletions []incompleteDeletion
}

func (t *actionTracker) noteSplit(s incompleteSplit) {
	t.splits = append(t.splits, s)
}

// forgetSplit drops the split whose right half the given downlink points at.
// A parent-level insert or split carrying a downlink is exactly the record
// that completes such a split.
func (t *actionTracker) forgetSplit(
	rel common.RelFileID,
	downlink common.BlockNumber,
) optional.Optional[incompleteSplit] {
	for i, s := range t.splits {
		if s.rel == rel && s.rightBlk == downlink {
			t.splits = append(t.splits[:i], t.splits[i+1:]...)
			return optional.Some(s)
		}
	}
	return optional.None[incompleteSplit]()
}

func (t *actionTracker) noteDeletion(d incompleteDeletion) {
	t.deletions = append(t.deletions, d)
}

func (t *actionTracker) forgetDeletion(
	rel common.RelFileID,
	deadBlk common.BlockNumber,
) optional.Optional[incompleteDeletion] {
	for i, d := range t.deletions {
		if d.rel == rel && d.deadBlk == deadBlk {
			t.deletions = append(t.deletions[:i], t.deletions[i+1:]...)
			return optional.Some(d)
		}
	}
	return optional.None[incompleteDeletion]()
}

func (t *actionTracker) empty() bool {
	return len(t.splits) == 0 && len(t.deletions) == 0
}
