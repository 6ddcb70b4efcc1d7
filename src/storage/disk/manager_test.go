package disk

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/Blackdeer1524/btredo/src/pkg/common"
	"github.com/Blackdeer1524/btredo/src/storage/page"
)

func newTestManager() *Manager {
	return New(afero.NewMemMapFs(), map[common.RelFileID]string{
		1: "/data/index.rel",
	})
}

func TestWriteThenReadPage(t *testing.T) {
	m := newTestManager()

	p := page.NewPage()
	p.Init()
	require.NoError(t, p.AddItem(page.EncodeIndexTuple(3, 1, []byte("k")), 1))

	pid := common.PageIdentity{FileID: 1, PageID: 2}
	require.NoError(t, m.WritePage(p, pid))

	got, err := m.ReadPage(pid)
	require.NoError(t, err)
	require.Equal(t, p.GetData(), got.GetData())
}

func TestReadMissingPage(t *testing.T) {
	m := newTestManager()

	_, err := m.ReadPage(common.PageIdentity{FileID: 1, PageID: 0})
	require.ErrorIs(t, err, ErrPageNotFound)

	// The file exists but is shorter than the requested block.
	p := page.NewPage()
	p.Init()
	require.NoError(t, m.WritePage(p, common.PageIdentity{FileID: 1, PageID: 0}))

	_, err = m.ReadPage(common.PageIdentity{FileID: 1, PageID: 5})
	require.ErrorIs(t, err, ErrPageNotFound)
}

func TestReadTruncatedBlock(t *testing.T) {
	fs := afero.NewMemMapFs()
	m := New(fs, map[common.RelFileID]string{1: "/data/index.rel"})

	// One full block plus a partial second one, as left by a torn write.
	buf := make([]byte, page.PageSize+100)
	require.NoError(t, afero.WriteFile(fs, "/data/index.rel", buf, 0o644))

	_, err := m.ReadPage(common.PageIdentity{FileID: 1, PageID: 0})
	require.NoError(t, err)

	_, err = m.ReadPage(common.PageIdentity{FileID: 1, PageID: 1})
	require.ErrorIs(t, err, ErrPageNotFound)

	_, err = m.ReadPage(common.PageIdentity{FileID: 1, PageID: 7})
	require.ErrorIs(t, err, ErrPageNotFound)
}

func TestReadUnknownRelation(t *testing.T) {
	m := newTestManager()

	_, err := m.ReadPage(common.PageIdentity{FileID: 42, PageID: 0})
	require.Error(t, err)

	m.InsertToFileMap(42, "/data/other.rel")
	_, err = m.ReadPage(common.PageIdentity{FileID: 42, PageID: 0})
	require.ErrorIs(t, err, ErrPageNotFound)
}

func TestNumPages(t *testing.T) {
	m := newTestManager()

	n, err := m.NumPages(1)
	require.NoError(t, err)
	require.EqualValues(t, 0, n)

	p := page.NewPage()
	p.Init()
	require.NoError(t, m.WritePage(p, common.PageIdentity{FileID: 1, PageID: 3}))

	n, err = m.NumPages(1)
	require.NoError(t, err)
	require.EqualValues(t, 4, n)
}

func TestFileIDs(t *testing.T) {
	m := newTestManager()
	m.InsertToFileMap(7, "/data/heap.rel")

	ids := m.FileIDs()
	require.ElementsMatch(t, []common.RelFileID{1, 7}, ids)
}
