package page

import (
	"encoding/binary"

	"github.com/Blackdeer1524/btredo/src/pkg/common"
)

// Heap tuple header layout, big-endian:
//
//	xmin u32 | xmax u32 | infomask u16 | row bytes
//
// Replay only ever looks at the transaction ids: the conflict resolver reads
// them to work out the newest transaction whose rows an index deletion
// removes. Row contents are opaque here.
const HeapTupleHeaderSize = 10

func EncodeHeapTuple(xmin, xmax common.TxnID, row []byte) []byte {
	buf := make([]byte, HeapTupleHeaderSize+len(row))
	binary.BigEndian.PutUint32(buf[0:], uint32(xmin))
	binary.BigEndian.PutUint32(buf[4:], uint32(xmax))
	copy(buf[HeapTupleHeaderSize:], row)
	return buf
}

func HeapTupleXids(b []byte) (xmin, xmax common.TxnID) {
	return common.TxnID(binary.BigEndian.Uint32(b[0:])),
		common.TxnID(binary.BigEndian.Uint32(b[4:]))
}
