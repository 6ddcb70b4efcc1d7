package recovery

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Blackdeer1524/btredo/src/pkg/common"
	"github.com/Blackdeer1524/btredo/src/storage/page"
)

func maskedCopy(t *testing.T, p *page.Page, blk uint32) []byte {
	t.Helper()
	data := append([]byte(nil), p.GetData()...)
	Mask(data, common.BlockNumber(blk))
	return data
}

func TestMaskHidesReplayableDifferences(t *testing.T) {
	build := func() *page.Page {
		p := page.NewPage()
		p.Init()
		p.AddFlag(page.FlagLeaf)
		require.NoError(t, p.AddItem(leafItem(1), 1))
		require.NoError(t, p.AddItem(leafItem(2), 2))
		return p
	}

	primary := build()
	primary.SetLSN(100)
	primary.SetHintBits(5)
	primary.AddFlag(page.FlagHasGarbage)
	primary.SetCycleID(7)

	replica := build()
	replica.SetLSN(250)

	require.NotEqual(t, primary.GetData(), replica.GetData())
	require.Equal(t, maskedCopy(t, primary, 4), maskedCopy(t, replica, 4))
}

func TestMaskBlanksDeletedPageContent(t *testing.T) {
	build := func(item []byte) *page.Page {
		p := page.NewPage()
		p.Init()
		require.NoError(t, p.AddItem(item, 1))
		p.AddFlag(page.FlagDeleted)
		p.SetDeleteXact(55)
		return p
	}

	// Deleted pages may carry different leftover content; only the trailer
	// state has to match.
	a := build(leafItem(1))
	b := build(leafItem(9))

	require.Equal(t, maskedCopy(t, a, 2), maskedCopy(t, b, 2))
}

func TestMaskKeepsMetaFields(t *testing.T) {
	build := func(root uint32) *page.Page {
		p := page.NewPage()
		page.WriteMeta(p, page.Meta{Root: common.BlockNumber(root), Level: 1, FastRoot: common.BlockNumber(root), FastLevel: 1})
		return p
	}

	same := build(3)
	same.SetLSN(10)
	other := build(4)

	require.Equal(t, maskedCopy(t, build(3), 0), maskedCopy(t, same, 0))
	require.NotEqual(t, maskedCopy(t, build(3), 0), maskedCopy(t, other, 0))
}
