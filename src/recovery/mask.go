package recovery

import (
	"github.com/Blackdeer1524/btredo/src/pkg/common"
	"github.com/Blackdeer1524/btredo/src/storage/page"
)

// Mask normalizes one index page image in place for comparison against
// another replica of the same relation. After masking, two images that
// differ only in ways replay legitimately produces compare equal.
func Mask(data []byte, blk common.BlockNumber) {
	p := page.Load(data)

	p.MaskLSNAndChecksum()
	p.MaskHintBits()
	p.MaskUnusedSpace()

	// The split-end marker and the vacuum cycle id only steer an in-flight
	// vacuum and may legitimately survive on one side only. Garbage is a
	// hint.
	p.ClearFlag(page.FlagSplitEnd | page.FlagHasGarbage)
	p.SetCycleID(0)

	switch {
	case blk == common.MetaBlock:
		// Meta fields themselves must match; nothing more to blank.
	case p.HasFlag(page.FlagDeleted):
		// A deleted page's content is dead weight; only the trailer state
		// is meaningful.
		p.MaskContent()
	case p.HasFlag(page.FlagLeaf):
		// Leaf item flags are dead hints set lazily by scans.
		p.MaskItemFlags()
	}

	copy(data, p.GetData())
}
