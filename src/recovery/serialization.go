package recovery

import (
	"bytes"
	"encoding/binary"

	"github.com/go-faster/errors"

	"github.com/Blackdeer1524/btredo/src/pkg/assert"
	"github.com/Blackdeer1524/btredo/src/pkg/common"
	"github.com/Blackdeer1524/btredo/src/storage/page"
)

// Record payloads are big-endian: fixed scalar fields first, then
// variable-size parts. Index tuples inside payloads are self-delimiting
// (their header carries the total size), so no extra length prefixes are
// needed; a trailing item stream simply runs to the end of the payload.

var ErrBadRecord = errors.New("malformed log record")

func putU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func putU16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

type payloadReader struct {
	buf []byte
	pos int
}

func (r *payloadReader) remaining() int { return len(r.buf) - r.pos }

func (r *payloadReader) u32() (uint32, error) {
	if r.remaining() < 4 {
		return 0, errors.Wrap(ErrBadRecord, "truncated u32")
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *payloadReader) u16() (uint16, error) {
	if r.remaining() < 2 {
		return 0, errors.Wrap(ErrBadRecord, "truncated u16")
	}
	v := binary.BigEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

// tuple consumes one self-delimited index tuple.
func (r *payloadReader) tuple() ([]byte, error) {
	if r.remaining() < page.IndexTupleHeaderSize {
		return nil, errors.Wrap(ErrBadRecord, "truncated tuple header")
	}
	sz := page.IndexTupleSize(r.buf[r.pos:])
	if sz < page.IndexTupleHeaderSize || sz > r.remaining() {
		return nil, errors.Wrapf(ErrBadRecord, "tuple size %d of %d remaining", sz, r.remaining())
	}
	t := r.buf[r.pos : r.pos+sz]
	r.pos += sz
	return t, nil
}

// rest consumes everything left in the payload.
func (r *payloadReader) rest() []byte {
	t := r.buf[r.pos:]
	r.pos = len(r.buf)
	return t
}

func (r *payloadReader) offsets() ([]common.OffsetNumber, error) {
	if r.remaining()%2 != 0 {
		return nil, errors.Wrapf(ErrBadRecord, "odd offset array tail of %d bytes", r.remaining())
	}
	offs := make([]common.OffsetNumber, 0, r.remaining()/2)
	for r.remaining() > 0 {
		v, err := r.u16()
		if err != nil {
			return nil, err
		}
		offs = append(offs, common.OffsetNumber(v))
	}
	return offs, nil
}

func putMeta(buf *bytes.Buffer, md *MetaUpdate) {
	putU32(buf, uint32(md.Root))
	putU32(buf, md.Level)
	putU32(buf, uint32(md.FastRoot))
	putU32(buf, md.FastLevel)
}

func (r *payloadReader) meta() (*MetaUpdate, error) {
	var md MetaUpdate
	var err error
	var v uint32

	if v, err = r.u32(); err != nil {
		return nil, err
	}
	md.Root = common.BlockNumber(v)
	if md.Level, err = r.u32(); err != nil {
		return nil, err
	}
	if v, err = r.u32(); err != nil {
		return nil, err
	}
	md.FastRoot = common.BlockNumber(v)
	if md.FastLevel, err = r.u32(); err != nil {
		return nil, err
	}
	return &md, nil
}

func (rec *InsertRecord) Marshal(kind RecordKind) []byte {
	assert.Assert(kind == KindInsertLeaf || kind == KindInsertUpper || kind == KindInsertMeta,
		"insert marshalled with kind %v", kind)
	assert.Assert((rec.Meta != nil) == (kind == KindInsertMeta),
		"meta presence does not match kind %v", kind)

	var buf bytes.Buffer
	putU32(&buf, uint32(rec.Rel))
	putU32(&buf, uint32(rec.Block))
	putU16(&buf, uint16(rec.Offset))
	if !kind.isLeafInsert() {
		putU32(&buf, uint32(rec.Downlink))
	}
	if kind.isMetaInsert() {
		putMeta(&buf, rec.Meta)
	}
	buf.Write(rec.Item)
	return buf.Bytes()
}

func decodeInsert(kind RecordKind, payload []byte) (InsertRecord, error) {
	r := payloadReader{buf: payload}
	var rec InsertRecord

	rel, err := r.u32()
	if err != nil {
		return rec, err
	}
	blk, err := r.u32()
	if err != nil {
		return rec, err
	}
	off, err := r.u16()
	if err != nil {
		return rec, err
	}
	rec.Rel = common.RelFileID(rel)
	rec.Block = common.BlockNumber(blk)
	rec.Offset = common.OffsetNumber(off)

	if !kind.isLeafInsert() {
		dl, err := r.u32()
		if err != nil {
			return rec, err
		}
		rec.Downlink = common.BlockNumber(dl)
	}
	if kind.isMetaInsert() {
		if rec.Meta, err = r.meta(); err != nil {
			return rec, err
		}
	}
	rec.Item = r.rest()
	return rec, nil
}

func (rec *SplitRecord) Marshal(kind RecordKind) []byte {
	assert.Assert(kind == KindSplitLeft || kind == KindSplitRight ||
		kind == KindSplitLeftRoot || kind == KindSplitRightRoot,
		"split marshalled with kind %v", kind)
	assert.Assert((rec.Level > 0) == (rec.LeftHighKey != nil),
		"upper-level splits must spell out the left high key")
	assert.Assert(kind.splitOnLeft() == (rec.NewItem != nil),
		"new item presence does not match kind %v", kind)

	var buf bytes.Buffer
	putU32(&buf, uint32(rec.Rel))
	putU32(&buf, uint32(rec.LeftSib))
	putU32(&buf, uint32(rec.RightSib))
	putU32(&buf, uint32(rec.RNext))
	putU32(&buf, rec.Level)
	putU16(&buf, uint16(rec.FirstRight))
	if rec.Level > 0 {
		putU32(&buf, uint32(rec.Downlink))
		buf.Write(rec.LeftHighKey)
	}
	if kind.splitOnLeft() {
		putU16(&buf, uint16(rec.NewItemOff))
		buf.Write(rec.NewItem)
	}
	buf.Write(rec.RightItems)
	return buf.Bytes()
}

func decodeSplit(kind RecordKind, payload []byte) (SplitRecord, error) {
	r := payloadReader{buf: payload}
	var rec SplitRecord

	rel, err := r.u32()
	if err != nil {
		return rec, err
	}
	left, err := r.u32()
	if err != nil {
		return rec, err
	}
	right, err := r.u32()
	if err != nil {
		return rec, err
	}
	rnext, err := r.u32()
	if err != nil {
		return rec, err
	}
	rec.Rel = common.RelFileID(rel)
	rec.LeftSib = common.BlockNumber(left)
	rec.RightSib = common.BlockNumber(right)
	rec.RNext = common.BlockNumber(rnext)

	if rec.Level, err = r.u32(); err != nil {
		return rec, err
	}
	fr, err := r.u16()
	if err != nil {
		return rec, err
	}
	rec.FirstRight = common.OffsetNumber(fr)

	if rec.Level > 0 {
		dl, err := r.u32()
		if err != nil {
			return rec, err
		}
		rec.Downlink = common.BlockNumber(dl)
		if rec.LeftHighKey, err = r.tuple(); err != nil {
			return rec, errors.Wrap(err, "left high key")
		}
	}
	if kind.splitOnLeft() {
		off, err := r.u16()
		if err != nil {
			return rec, err
		}
		rec.NewItemOff = common.OffsetNumber(off)
		if rec.NewItem, err = r.tuple(); err != nil {
			return rec, errors.Wrap(err, "new item")
		}
	}
	rec.RightItems = r.rest()
	return rec, nil
}

func (rec *VacuumRecord) Marshal() []byte {
	var buf bytes.Buffer
	putU32(&buf, uint32(rec.Rel))
	putU32(&buf, uint32(rec.Block))
	putU32(&buf, uint32(rec.LastBlockVacuumed))
	for _, off := range rec.Offsets {
		putU16(&buf, uint16(off))
	}
	return buf.Bytes()
}

func decodeVacuum(payload []byte) (VacuumRecord, error) {
	r := payloadReader{buf: payload}
	var rec VacuumRecord

	rel, err := r.u32()
	if err != nil {
		return rec, err
	}
	blk, err := r.u32()
	if err != nil {
		return rec, err
	}
	last, err := r.u32()
	if err != nil {
		return rec, err
	}
	rec.Rel = common.RelFileID(rel)
	rec.Block = common.BlockNumber(blk)
	rec.LastBlockVacuumed = common.BlockNumber(last)

	if rec.Offsets, err = r.offsets(); err != nil {
		return rec, err
	}
	return rec, nil
}

func (rec *DeleteRecord) Marshal() []byte {
	var buf bytes.Buffer
	putU32(&buf, uint32(rec.Rel))
	putU32(&buf, uint32(rec.Block))
	putU32(&buf, uint32(rec.HeapRel))
	putU16(&buf, uint16(len(rec.Offsets)))
	for _, off := range rec.Offsets {
		putU16(&buf, uint16(off))
	}
	return buf.Bytes()
}

func decodeDelete(payload []byte) (DeleteRecord, error) {
	r := payloadReader{buf: payload}
	var rec DeleteRecord

	rel, err := r.u32()
	if err != nil {
		return rec, err
	}
	blk, err := r.u32()
	if err != nil {
		return rec, err
	}
	heapRel, err := r.u32()
	if err != nil {
		return rec, err
	}
	rec.Rel = common.RelFileID(rel)
	rec.Block = common.BlockNumber(blk)
	rec.HeapRel = common.RelFileID(heapRel)

	n, err := r.u16()
	if err != nil {
		return rec, err
	}
	if int(n)*2 != r.remaining() {
		return rec, errors.Wrapf(ErrBadRecord, "%d offsets declared, %d bytes remain", n, r.remaining())
	}
	if rec.Offsets, err = r.offsets(); err != nil {
		return rec, err
	}
	return rec, nil
}

func (rec *DeletePageRecord) Marshal(kind RecordKind) []byte {
	assert.Assert(kind == KindDeletePage || kind == KindDeletePageMeta || kind == KindDeletePageHalf,
		"page deletion marshalled with kind %v", kind)
	assert.Assert((rec.Meta != nil) == (kind == KindDeletePageMeta),
		"meta presence does not match kind %v", kind)

	var buf bytes.Buffer
	putU32(&buf, uint32(rec.Rel))
	putU32(&buf, uint32(rec.ParentBlock))
	putU16(&buf, uint16(rec.ParentOffset))
	putU32(&buf, uint32(rec.DeadBlock))
	putU32(&buf, uint32(rec.LeftSib))
	putU32(&buf, uint32(rec.RightSib))
	putU32(&buf, uint32(rec.DeleteXact))
	if rec.Meta != nil {
		putMeta(&buf, rec.Meta)
	}
	return buf.Bytes()
}

func decodeDeletePage(kind RecordKind, payload []byte) (DeletePageRecord, error) {
	r := payloadReader{buf: payload}
	var rec DeletePageRecord

	rel, err := r.u32()
	if err != nil {
		return rec, err
	}
	parent, err := r.u32()
	if err != nil {
		return rec, err
	}
	poff, err := r.u16()
	if err != nil {
		return rec, err
	}
	dead, err := r.u32()
	if err != nil {
		return rec, err
	}
	left, err := r.u32()
	if err != nil {
		return rec, err
	}
	right, err := r.u32()
	if err != nil {
		return rec, err
	}
	xact, err := r.u32()
	if err != nil {
		return rec, err
	}

	rec.Rel = common.RelFileID(rel)
	rec.ParentBlock = common.BlockNumber(parent)
	rec.ParentOffset = common.OffsetNumber(poff)
	rec.DeadBlock = common.BlockNumber(dead)
	rec.LeftSib = common.BlockNumber(left)
	rec.RightSib = common.BlockNumber(right)
	rec.DeleteXact = common.TxnID(xact)

	if kind == KindDeletePageMeta {
		if rec.Meta, err = r.meta(); err != nil {
			return rec, err
		}
	}
	if r.remaining() != 0 {
		return rec, errors.Wrapf(ErrBadRecord, "%d trailing bytes", r.remaining())
	}
	return rec, nil
}

func (rec *NewRootRecord) Marshal() []byte {
	var buf bytes.Buffer
	putU32(&buf, uint32(rec.Rel))
	putU32(&buf, uint32(rec.RootBlock))
	putU32(&buf, rec.Level)
	buf.Write(rec.Items)
	return buf.Bytes()
}

func decodeNewRoot(payload []byte) (NewRootRecord, error) {
	r := payloadReader{buf: payload}
	var rec NewRootRecord

	rel, err := r.u32()
	if err != nil {
		return rec, err
	}
	root, err := r.u32()
	if err != nil {
		return rec, err
	}
	rec.Rel = common.RelFileID(rel)
	rec.RootBlock = common.BlockNumber(root)
	if rec.Level, err = r.u32(); err != nil {
		return rec, err
	}
	rec.Items = r.rest()
	return rec, nil
}

func (rec *ReusePageRecord) Marshal() []byte {
	var buf bytes.Buffer
	putU32(&buf, uint32(rec.Rel))
	putU32(&buf, uint32(rec.Block))
	putU32(&buf, uint32(rec.LatestRemovedXid))
	return buf.Bytes()
}

func decodeReusePage(payload []byte) (ReusePageRecord, error) {
	r := payloadReader{buf: payload}
	var rec ReusePageRecord

	rel, err := r.u32()
	if err != nil {
		return rec, err
	}
	blk, err := r.u32()
	if err != nil {
		return rec, err
	}
	xid, err := r.u32()
	if err != nil {
		return rec, err
	}
	rec.Rel = common.RelFileID(rel)
	rec.Block = common.BlockNumber(blk)
	rec.LatestRemovedXid = common.TxnID(xid)

	if r.remaining() != 0 {
		return rec, errors.Wrapf(ErrBadRecord, "%d trailing bytes", r.remaining())
	}
	return rec, nil
}
