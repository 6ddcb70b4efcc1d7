package recovery

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Blackdeer1524/btredo/src/pkg/common"
)

func TestDescribeRecords(t *testing.T) {
	insert := InsertRecord{Rel: 1, Block: 4, Offset: 2, Item: leafItem(1)}
	require.Equal(t,
		"insert_leaf: rel 1; block 4; off 2; item 10 bytes",
		Describe(KindInsertLeaf, insert.Marshal(KindInsertLeaf)))

	vacuum := VacuumRecord{
		Rel:               1,
		Block:             5,
		LastBlockVacuumed: 2,
		Offsets:           []common.OffsetNumber{1, 3},
	}
	require.Equal(t,
		"vacuum: rel 1; block 5; lastBlockVacuumed 2; 2 items",
		Describe(KindVacuum, vacuum.Marshal()))

	reuse := ReusePageRecord{Rel: 1, Block: 7, LatestRemovedXid: 42}
	require.Equal(t,
		"reuse_page: rel 1; block 7; latestRemovedXid 42",
		Describe(KindReusePage, reuse.Marshal()))
}

func TestDescribeSurvivesGarbage(t *testing.T) {
	out := Describe(KindDeletePage, []byte{1, 2})
	require.Contains(t, out, "delete_page")
	require.Contains(t, out, "UNDECODABLE")

	out = Describe(kindUnknown, []byte{1, 2, 3})
	require.Contains(t, out, "unknown record kind")
}
