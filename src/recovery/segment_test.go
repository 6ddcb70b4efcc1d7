package recovery

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Blackdeer1524/btredo/src/pkg/common"
	"github.com/Blackdeer1524/btredo/src/storage/page"
)

func TestSegmentRoundTrip(t *testing.T) {
	img := make([]byte, page.PageSize)
	img[0] = 0xAB

	entries := []Entry{
		{
			LSN:     10,
			Kind:    KindNewRoot,
			Payload: (&NewRootRecord{Rel: testRel, RootBlock: 1}).Marshal(),
		},
		{
			LSN:     20,
			Kind:    KindInsertLeaf,
			Payload: (&InsertRecord{Rel: testRel, Block: 1, Offset: 1, Item: leafItem(1)}).Marshal(KindInsertLeaf),
			Backups: []BackupBlock{{Index: 0, Rel: testRel, Block: 1, Image: img}},
		},
	}

	var buf bytes.Buffer
	w := NewSegmentWriter(&buf)
	for _, e := range entries {
		require.NoError(t, w.Append(e))
	}
	require.NoError(t, w.Flush())

	it := NewSegmentIterator(&buf)
	var got []Entry
	for it.MoveForward() {
		got = append(got, it.Entry())
	}
	require.NoError(t, it.Err())
	require.Equal(t, entries, got)
}

func TestSegmentIteratorRejectsTruncatedFrame(t *testing.T) {
	var buf bytes.Buffer
	w := NewSegmentWriter(&buf)
	require.NoError(t, w.Append(Entry{
		LSN:     10,
		Kind:    KindReusePage,
		Payload: (&ReusePageRecord{Rel: testRel, Block: 2, LatestRemovedXid: 5}).Marshal(),
	}))
	require.NoError(t, w.Flush())

	cut := bytes.NewReader(buf.Bytes()[:buf.Len()-3])
	it := NewSegmentIterator(cut)
	require.False(t, it.MoveForward())
	require.Error(t, it.Err())
}

func TestSegmentWriterRejectsShortImage(t *testing.T) {
	w := NewSegmentWriter(&bytes.Buffer{})
	err := w.Append(Entry{
		LSN:     10,
		Kind:    KindInsertLeaf,
		Payload: (&InsertRecord{Rel: testRel, Block: 1, Offset: 1, Item: leafItem(1)}).Marshal(KindInsertLeaf),
		Backups: []BackupBlock{{Index: 0, Rel: testRel, Block: 1, Image: []byte{1, 2, 3}}},
	})
	require.ErrorIs(t, err, ErrBadSegment)
}

// TestReplayBuildsTreeFromSegment drives the full pipeline over a short
// history: an index is born, filled, and its root split, all through framed
// records.
func TestReplayBuildsTreeFromSegment(t *testing.T) {
	r, pool := newTestRun(t, nil)

	a, b := leafItem(1), leafItem(2)

	var buf bytes.Buffer
	w := NewSegmentWriter(&buf)
	for _, e := range []Entry{
		{
			LSN: 10, Kind: KindNewRoot,
			Payload: (&NewRootRecord{Rel: testRel, RootBlock: 1, Level: 0}).Marshal(),
		},
		{
			LSN: 20, Kind: KindInsertLeaf,
			Payload: (&InsertRecord{Rel: testRel, Block: 1, Offset: 1, Item: a}).Marshal(KindInsertLeaf),
		},
		{
			LSN: 30, Kind: KindInsertLeaf,
			Payload: (&InsertRecord{Rel: testRel, Block: 1, Offset: 2, Item: b}).Marshal(KindInsertLeaf),
		},
		{
			LSN: 40, Kind: KindSplitRightRoot,
			Payload: (&SplitRecord{
				Rel:        testRel,
				LeftSib:    1,
				RightSib:   2,
				RNext:      common.NoSibling,
				Level:      0,
				FirstRight: 2,
				RightItems: b,
			}).Marshal(KindSplitRightRoot),
		},
		{
			LSN: 50, Kind: KindNewRoot,
			Payload: (&NewRootRecord{
				Rel:       testRel,
				RootBlock: 3,
				Level:     1,
				Items: concat(
					page.EncodeDownlink(1, nil),
					page.EncodeDownlink(2, page.IndexTupleKey(b)),
				),
			}).Marshal(),
		},
	} {
		require.NoError(t, w.Append(e))
	}
	require.NoError(t, w.Flush())

	require.NoError(t, r.Replay(NewSegmentIterator(&buf)))
	require.True(t, r.SafeRestartpoint())
	require.NoError(t, r.Cleanup())

	md, err := page.ReadMeta(readPage(t, pool, pid(common.MetaBlock)))
	require.NoError(t, err)
	require.Equal(t, page.Meta{Root: 3, Level: 1, FastRoot: 3, FastLevel: 1}, md)

	root := readPage(t, pool, pid(3))
	require.True(t, root.HasFlag(page.FlagRoot))
	require.EqualValues(t, 2, root.MaxOffset())

	left := readPage(t, pool, pid(1))
	require.True(t, left.HasFlag(page.FlagLeaf))
	require.False(t, left.HasFlag(page.FlagRoot))
	require.EqualValues(t, 2, left.Next())
	requireItemEqual(t, left, 1, b) // high key
	requireItemEqual(t, left, 2, a)

	right := readPage(t, pool, pid(2))
	require.True(t, right.IsRightmost())
	requireItemEqual(t, right, 1, b)
}

func TestRestoreBackupBlocksShortCircuitsRedo(t *testing.T) {
	r, pool := newTestRun(t, nil)

	// The image already contains the insert's outcome; replay must take it
	// verbatim and not add the item a second time.
	donor := page.NewPage()
	donor.Init()
	donor.AddFlag(page.FlagLeaf)
	require.NoError(t, donor.AddItem(leafItem(1), 1))

	img := append([]byte(nil), donor.GetData()...)

	rec := InsertRecord{Rel: testRel, Block: 4, Offset: 1, Item: leafItem(1)}
	applied, err := r.RestoreBackupBlocks(20, KindInsertLeaf, []BackupBlock{
		{Index: 0, Rel: testRel, Block: 4, Image: img},
	})
	require.NoError(t, err)
	require.True(t, applied.Applied(0))

	require.NoError(t, r.Redo(20, KindInsertLeaf, rec.Marshal(KindInsertLeaf), applied))

	got := readPage(t, pool, pid(4))
	require.EqualValues(t, 1, got.MaxOffset())
	requireItemEqual(t, got, 1, leafItem(1))
	require.EqualValues(t, 20, got.LSN())

	require.NoError(t, r.Cleanup())
}
