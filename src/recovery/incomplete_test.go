package recovery

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTrackerMatchesSplitByRightBlock(t *testing.T) {
	var tr actionTracker
	tr.noteSplit(incompleteSplit{lsn: 10, rel: 1, leftBlk: 2, rightBlk: 3})
	tr.noteSplit(incompleteSplit{lsn: 20, rel: 1, leftBlk: 4, rightBlk: 5})
	tr.noteSplit(incompleteSplit{lsn: 30, rel: 2, leftBlk: 2, rightBlk: 3})

	// Left blocks never match; only the downlink target does.
	require.True(t, tr.forgetSplit(1, 2).IsNone())

	// The relation is part of the key.
	got := tr.forgetSplit(2, 3)
	require.True(t, got.IsSome())
	require.EqualValues(t, 30, got.Unwrap().lsn)

	got = tr.forgetSplit(1, 3)
	require.True(t, got.IsSome())
	require.EqualValues(t, 10, got.Unwrap().lsn)

	// A forgotten split stays forgotten.
	require.True(t, tr.forgetSplit(1, 3).IsNone())

	require.False(t, tr.empty())
	require.True(t, tr.forgetSplit(1, 5).IsSome())
	require.True(t, tr.empty())
}

func TestTrackerDeletionsKeepOrder(t *testing.T) {
	var tr actionTracker
	tr.noteDeletion(incompleteDeletion{lsn: 10, rel: 1, deadBlk: 7})
	tr.noteDeletion(incompleteDeletion{lsn: 20, rel: 1, deadBlk: 8})
	tr.noteDeletion(incompleteDeletion{lsn: 30, rel: 1, deadBlk: 9})

	require.True(t, tr.forgetDeletion(1, 8).IsSome())
	require.True(t, tr.forgetDeletion(1, 8).IsNone())

	// Survivors keep their registration order; the cleanup cascade depends
	// on walking them oldest first.
	require.Len(t, tr.deletions, 2)
	require.EqualValues(t, 7, tr.deletions[0].deadBlk)
	require.EqualValues(t, 9, tr.deletions[1].deadBlk)
}
