package recovery

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Blackdeer1524/btredo/src/pkg/common"
	"github.com/Blackdeer1524/btredo/src/storage/page"
)

func TestSplitRecordRoundTripsWithOptionalParts(t *testing.T) {
	hiKey := page.EncodeIndexTuple(4, page.DownlinkOffset, []byte("sep"))
	newItem := leafItem(7)

	rec := SplitRecord{
		Rel:         testRel,
		LeftSib:     3,
		RightSib:    9,
		RNext:       12,
		Level:       1,
		FirstRight:  5,
		Downlink:    8,
		LeftHighKey: hiKey,
		NewItemOff:  2,
		NewItem:     newItem,
		RightItems:  concat(leafItem(1), leafItem(2)),
	}

	got, err := decodeSplit(KindSplitLeft, rec.Marshal(KindSplitLeft))
	require.NoError(t, err)
	require.Equal(t, rec, got)
}

func TestSplitRecordLeafOmitsHighKey(t *testing.T) {
	rec := SplitRecord{
		Rel:        testRel,
		LeftSib:    1,
		RightSib:   2,
		RNext:      common.NoSibling,
		Level:      0,
		FirstRight: 2,
		RightItems: leafItem(2),
	}

	payload := rec.Marshal(KindSplitRight)
	got, err := decodeSplit(KindSplitRight, payload)
	require.NoError(t, err)
	require.Nil(t, got.LeftHighKey)
	require.Nil(t, got.NewItem)
	require.Equal(t, rec.RightItems, got.RightItems)
}

func TestDecodeSplitRejectsTruncation(t *testing.T) {
	rec := SplitRecord{
		Rel:        testRel,
		LeftSib:    1,
		RightSib:   2,
		Level:      0,
		FirstRight: 2,
		RightItems: leafItem(2),
	}
	payload := rec.Marshal(KindSplitRight)

	_, err := decodeSplit(KindSplitRight, payload[:10])
	require.ErrorIs(t, err, ErrBadRecord)
}

func TestDecodeDeleteChecksItemCount(t *testing.T) {
	rec := DeleteRecord{
		Rel:     testRel,
		Block:   4,
		HeapRel: 9,
		Offsets: []common.OffsetNumber{1, 2},
	}
	payload := rec.Marshal()

	got, err := decodeDelete(payload)
	require.NoError(t, err)
	require.Equal(t, rec, got)

	// Chop off one offset: the declared count no longer matches.
	_, err = decodeDelete(payload[:len(payload)-2])
	require.ErrorIs(t, err, ErrBadRecord)
}

func TestDecodeReusePageRejectsTrailingBytes(t *testing.T) {
	rec := ReusePageRecord{Rel: testRel, Block: 5, LatestRemovedXid: 7}
	payload := append(rec.Marshal(), 0xFF)

	_, err := decodeReusePage(payload)
	require.ErrorIs(t, err, ErrBadRecord)
}

func TestInsertMetaRoundTrip(t *testing.T) {
	rec := InsertRecord{
		Rel:      testRel,
		Block:    3,
		Offset:   2,
		Downlink: 6,
		Meta:     &MetaUpdate{Root: 4, Level: 2, FastRoot: 5, FastLevel: 1},
		Item:     leafItem(3),
	}

	got, err := decodeInsert(KindInsertMeta, rec.Marshal(KindInsertMeta))
	require.NoError(t, err)
	require.Equal(t, rec, got)
}

func TestDeletePageMetaRoundTrip(t *testing.T) {
	rec := DeletePageRecord{
		Rel:          testRel,
		ParentBlock:  3,
		ParentOffset: 1,
		DeadBlock:    2,
		LeftSib:      1,
		RightSib:     4,
		DeleteXact:   99,
		Meta:         &MetaUpdate{Root: 3, Level: 1, FastRoot: 3, FastLevel: 1},
	}

	got, err := decodeDeletePage(KindDeletePageMeta, rec.Marshal(KindDeletePageMeta))
	require.NoError(t, err)
	require.Equal(t, rec, got)
}

func TestRedoRejectsUndecodablePayload(t *testing.T) {
	r, _ := newTestRun(t, nil)

	err := r.Redo(10, KindDeletePage, []byte{1, 2, 3}, 0)
	require.ErrorIs(t, err, ErrBadRecord)

	err = r.Redo(10, kindUnknown, nil, 0)
	require.ErrorIs(t, err, ErrBadRecord)

	require.NoError(t, r.Cleanup())
}
