package app

import (
	"bytes"
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/Blackdeer1524/btredo/src"
	"github.com/Blackdeer1524/btredo/src/pkg/common"
	"github.com/Blackdeer1524/btredo/src/recovery"
	"github.com/Blackdeer1524/btredo/src/storage/disk"
	"github.com/Blackdeer1524/btredo/src/storage/page"
)

func testConfig() Config {
	return Config{Env: "dev", LogLevel: "info", PoolCapacity: 64, VerifyWorkers: 2}
}

func writeSegment(t *testing.T, fs afero.Fs, path string, entries []recovery.Entry) {
	t.Helper()

	f, err := fs.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := recovery.NewSegmentWriter(f)
	for _, e := range entries {
		require.NoError(t, w.Append(e))
	}
	require.NoError(t, w.Flush())
}

func item(k byte) []byte {
	return page.EncodeIndexTuple(77, common.OffsetNumber(k), []byte{'k', k})
}

func TestReplayEndToEnd(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/data", 0o755))
	require.NoError(t, afero.WriteFile(fs, "/data/1.rel", nil, 0o644))

	a, b := item(1), item(2)
	writeSegment(t, fs, "/wal.seg", []recovery.Entry{
		{LSN: 10, Kind: recovery.KindNewRoot, Payload: (&recovery.NewRootRecord{Rel: 1, RootBlock: 1, Level: 0}).Marshal()},
		{LSN: 20, Kind: recovery.KindInsertLeaf, Payload: (&recovery.InsertRecord{Rel: 1, Block: 1, Offset: 1, Item: a}).Marshal(recovery.KindInsertLeaf)},
		{LSN: 30, Kind: recovery.KindInsertLeaf, Payload: (&recovery.InsertRecord{Rel: 1, Block: 1, Offset: 2, Item: b}).Marshal(recovery.KindInsertLeaf)},
		{LSN: 40, Kind: recovery.KindSplitRightRoot, Payload: (&recovery.SplitRecord{
			Rel: 1, LeftSib: 1, RightSib: 2, RNext: common.NoSibling, Level: 0, FirstRight: 2, RightItems: b,
		}).Marshal(recovery.KindSplitRightRoot)},
		// The completing newroot never made it into the segment; cleanup
		// must grow the root on its own.
	})

	app := New(testConfig(), fs, src.NopLogger{})
	require.NoError(t, app.OpenStore("/data"))
	require.NoError(t, app.Replay(context.Background(), "/wal.seg"))

	// Everything must have been flushed back to the relation file.
	dm := disk.New(fs, map[common.RelFileID]string{1: "/data/1.rel"})

	metaPage, err := dm.ReadPage(common.PageIdentity{FileID: 1, PageID: 0})
	require.NoError(t, err)
	md, err := page.ReadMeta(metaPage)
	require.NoError(t, err)
	require.Equal(t, page.Meta{Root: 3, Level: 1, FastRoot: 3, FastLevel: 1}, md)

	root, err := dm.ReadPage(common.PageIdentity{FileID: 1, PageID: 3})
	require.NoError(t, err)
	require.True(t, root.HasFlag(page.FlagRoot))
	require.EqualValues(t, 2, root.MaxOffset())

	left, err := dm.ReadPage(common.PageIdentity{FileID: 1, PageID: 1})
	require.NoError(t, err)
	require.EqualValues(t, 2, left.Next())
	require.Equal(t, b, left.Item(1))
	require.Equal(t, a, left.Item(2))
}

func TestDescribeListsRecords(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeSegment(t, fs, "/wal.seg", []recovery.Entry{
		{LSN: 10, Kind: recovery.KindNewRoot, Payload: (&recovery.NewRootRecord{Rel: 1, RootBlock: 1}).Marshal()},
		{LSN: 20, Kind: recovery.KindReusePage, Payload: (&recovery.ReusePageRecord{Rel: 1, Block: 4, LatestRemovedXid: 9}).Marshal()},
	})

	app := New(testConfig(), fs, src.NopLogger{})

	var out bytes.Buffer
	require.NoError(t, app.Describe("/wal.seg", &out))

	require.Contains(t, out.String(), "newroot: rel 1; root 1; level 0")
	require.Contains(t, out.String(), "reuse_page: rel 1; block 4; latestRemovedXid 9")
}

func TestVerifyMasksReplayableDifferences(t *testing.T) {
	fs := afero.NewMemMapFs()

	build := func(lsn common.LSN) []byte {
		p := page.NewPage()
		p.Init()
		p.AddFlag(page.FlagLeaf)
		require.NoError(t, p.AddItem(item(1), 1))
		p.SetLSN(lsn)
		return append([]byte(nil), p.GetData()...)
	}

	require.NoError(t, afero.WriteFile(fs, "/a.rel", build(100), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/b.rel", build(200), 0o644))

	app := New(testConfig(), fs, src.NopLogger{})
	require.NoError(t, app.Verify("/a.rel", "/b.rel"))

	// A real content difference must be reported.
	p := page.Load(build(100))
	require.NoError(t, p.AddItem(item(2), 2))
	require.NoError(t, afero.WriteFile(fs, "/b.rel", p.GetData(), 0o644))

	err := app.Verify("/a.rel", "/b.rel")
	require.Error(t, err)
	require.Contains(t, err.Error(), "1 blocks differ")
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("BTREDO_POOL_CAPACITY", "8")
	t.Setenv("BTREDO_LOG_LEVEL", "debug")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	require.EqualValues(t, 8, cfg.PoolCapacity)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, "prod", cfg.Env)
}
