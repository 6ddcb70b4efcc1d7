package page

import (
	"encoding/binary"

	"github.com/go-faster/errors"

	"github.com/Blackdeer1524/btredo/src/pkg/common"
)

// Index tuple layout, big-endian:
//
//	block u32 | offset u16 | size u16 | key bytes
//
// The (block, offset) pair is the tuple identifier. On leaf pages it points
// at a heap row; on upper pages the block is a child page and the tuple is a
// downlink. Size covers the whole tuple including this header, so a stream
// of tuples is self-delimiting.
const IndexTupleHeaderSize = 8

// DownlinkOffset is the offset value stored in a downlink's TID. It carries
// no positional meaning; it only marks the tuple as a child pointer.
const DownlinkOffset = HighKeyOffset

var ErrBadItemStream = errors.New("malformed index item stream")

func EncodeIndexTuple(blk common.BlockNumber, off common.OffsetNumber, key []byte) []byte {
	buf := make([]byte, IndexTupleHeaderSize+len(key))
	binary.BigEndian.PutUint32(buf[0:], uint32(blk))
	binary.BigEndian.PutUint16(buf[4:], uint16(off))
	binary.BigEndian.PutUint16(buf[6:], uint16(len(buf)))
	copy(buf[IndexTupleHeaderSize:], key)
	return buf
}

// EncodeDownlink builds a child pointer carrying the given separator key.
func EncodeDownlink(child common.BlockNumber, key []byte) []byte {
	return EncodeIndexTuple(child, DownlinkOffset, key)
}

func IndexTupleSize(b []byte) int {
	return int(binary.BigEndian.Uint16(b[6:]))
}

func IndexTupleTID(b []byte) (common.BlockNumber, common.OffsetNumber) {
	return common.BlockNumber(binary.BigEndian.Uint32(b[0:])),
		common.OffsetNumber(binary.BigEndian.Uint16(b[4:]))
}

func IndexTupleKey(b []byte) []byte {
	return b[IndexTupleHeaderSize:IndexTupleSize(b)]
}

// SetIndexTupleTID rewrites the tuple identifier in place. Page deletion
// uses it to retarget a parent downlink at the dead page's right sibling.
func SetIndexTupleTID(b []byte, blk common.BlockNumber, off common.OffsetNumber) {
	binary.BigEndian.PutUint32(b[0:], uint32(blk))
	binary.BigEndian.PutUint16(b[4:], uint16(off))
}

// RestoreItems re-enters a verbatim stream of index tuples onto a freshly
// initialized page, in item order.
func RestoreItems(p *Page, stream []byte) error {
	for len(stream) > 0 {
		if len(stream) < IndexTupleHeaderSize {
			return errors.Wrapf(ErrBadItemStream, "%d trailing bytes", len(stream))
		}
		sz := IndexTupleSize(stream)
		if sz < IndexTupleHeaderSize || sz > len(stream) {
			return errors.Wrapf(ErrBadItemStream, "tuple size %d of %d remaining", sz, len(stream))
		}
		if err := p.AddItem(stream[:sz], p.MaxOffset()+1); err != nil {
			return errors.Wrap(err, "restore item")
		}
		stream = stream[sz:]
	}
	return nil
}
