package recovery

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/go-faster/errors"

	"github.com/Blackdeer1524/btredo/src/pkg/common"
	"github.com/Blackdeer1524/btredo/src/storage/page"
)

// A log segment is a flat sequence of frames, big-endian:
//
//	lsn u64 | kind u8 | nbackup u8 | payload len u32 | payload |
//	nbackup x ( block ref index u8 | rel u32 | block u32 | full page image )
//
// Full-page images ride next to the record that logged them; the replayer
// restores them first and tells Redo which block references they covered.

const maxPayloadLen = 1 << 20

var ErrBadSegment = errors.New("malformed log segment")

// BackupBlock is one full-page image attached to a record.
type BackupBlock struct {
	// Index is the record's block reference number this image stands in
	// for, as listed in the BackupApplied convention.
	Index uint8

	Rel   common.RelFileID
	Block common.BlockNumber
	Image []byte
}

// Entry is one framed record with its attached images.
type Entry struct {
	LSN     common.LSN
	Kind    RecordKind
	Payload []byte
	Backups []BackupBlock
}

type SegmentWriter struct {
	w *bufio.Writer
}

func NewSegmentWriter(w io.Writer) *SegmentWriter {
	return &SegmentWriter{w: bufio.NewWriter(w)}
}

func (s *SegmentWriter) Append(e Entry) error {
	var hdr [14]byte
	binary.BigEndian.PutUint64(hdr[0:], uint64(e.LSN))
	hdr[8] = byte(e.Kind)
	hdr[9] = byte(len(e.Backups))
	binary.BigEndian.PutUint32(hdr[10:], uint32(len(e.Payload)))

	if _, err := s.w.Write(hdr[:]); err != nil {
		return errors.Wrap(err, "frame header")
	}
	if _, err := s.w.Write(e.Payload); err != nil {
		return errors.Wrap(err, "payload")
	}

	for _, b := range e.Backups {
		if len(b.Image) != page.PageSize {
			return errors.Wrapf(ErrBadSegment, "image of %d bytes", len(b.Image))
		}
		var bh [9]byte
		bh[0] = b.Index
		binary.BigEndian.PutUint32(bh[1:], uint32(b.Rel))
		binary.BigEndian.PutUint32(bh[5:], uint32(b.Block))
		if _, err := s.w.Write(bh[:]); err != nil {
			return errors.Wrap(err, "image header")
		}
		if _, err := s.w.Write(b.Image); err != nil {
			return errors.Wrap(err, "image")
		}
	}
	return nil
}

func (s *SegmentWriter) Flush() error {
	return s.w.Flush()
}

// SegmentIterator walks a segment frame by frame. Usage follows the usual
// pattern: for it.MoveForward() { e := it.Entry() ... }; it.Err().
type SegmentIterator struct {
	r     *bufio.Reader
	entry Entry
	err   error
}

func NewSegmentIterator(r io.Reader) *SegmentIterator {
	return &SegmentIterator{r: bufio.NewReader(r)}
}

func (it *SegmentIterator) MoveForward() bool {
	if it.err != nil {
		return false
	}

	var hdr [14]byte
	if _, err := io.ReadFull(it.r, hdr[:]); err != nil {
		if !errors.Is(err, io.EOF) {
			it.err = errors.Wrap(err, "frame header")
		}
		return false
	}

	e := Entry{
		LSN:  common.LSN(binary.BigEndian.Uint64(hdr[0:])),
		Kind: RecordKind(hdr[8]),
	}
	nBackup := int(hdr[9])
	payloadLen := binary.BigEndian.Uint32(hdr[10:])
	if payloadLen > maxPayloadLen {
		it.err = errors.Wrapf(ErrBadSegment, "payload of %d bytes", payloadLen)
		return false
	}

	e.Payload = make([]byte, payloadLen)
	if _, err := io.ReadFull(it.r, e.Payload); err != nil {
		it.err = errors.Wrap(err, "payload")
		return false
	}

	for i := 0; i < nBackup; i++ {
		var bh [9]byte
		if _, err := io.ReadFull(it.r, bh[:]); err != nil {
			it.err = errors.Wrap(err, "image header")
			return false
		}
		b := BackupBlock{
			Index: bh[0],
			Rel:   common.RelFileID(binary.BigEndian.Uint32(bh[1:])),
			Block: common.BlockNumber(binary.BigEndian.Uint32(bh[5:])),
			Image: make([]byte, page.PageSize),
		}
		if _, err := io.ReadFull(it.r, b.Image); err != nil {
			it.err = errors.Wrap(err, "image")
			return false
		}
		e.Backups = append(e.Backups, b)
	}

	it.entry = e
	return true
}

func (it *SegmentIterator) Entry() Entry {
	return it.entry
}

func (it *SegmentIterator) Err() error {
	return it.err
}

// RestoreBackupBlocks writes a record's full-page images into the store and
// returns the bitmask telling Redo which block references are already
// settled. Images are applied unconditionally: a full copy of the page at
// the record's LSN is authoritative regardless of what the block holds now.
//
// Vacuum images take the cleanup lock, for the same reason vacuum replay
// itself does.
func (r *Run) RestoreBackupBlocks(lsn common.LSN, kind RecordKind, backups []BackupBlock) (BackupApplied, error) {
	var applied BackupApplied

	for _, b := range backups {
		if len(b.Image) != page.PageSize {
			return applied, errors.Wrapf(ErrBadSegment, "image of %d bytes", len(b.Image))
		}

		pid := common.PageIdentity{FileID: b.Rel, PageID: b.Block}
		p, err := r.mgr.pool.GetPage(pid)
		if err != nil {
			return applied, errors.Wrapf(err, "image target %+v", pid)
		}

		if kind == KindVacuum {
			r.mgr.pool.LockForCleanup(p, pid)
		} else {
			p.Lock()
		}
		p.SetData(b.Image)
		p.SetLSN(lsn)
		p.SetDirtiness(true)
		p.Unlock()
		r.mgr.pool.Unpin(pid)

		applied |= 1 << b.Index
	}

	return applied, nil
}

// Replay consumes a whole segment: images first, then the record itself,
// frame by frame. It is the combination the CLI and tests drive.
func (r *Run) Replay(it *SegmentIterator) error {
	for it.MoveForward() {
		e := it.Entry()

		applied, err := r.RestoreBackupBlocks(e.LSN, e.Kind, e.Backups)
		if err != nil {
			return errors.Wrapf(err, "restore images at lsn %d", e.LSN)
		}
		if err := r.Redo(e.LSN, e.Kind, e.Payload, applied); err != nil {
			return errors.Wrapf(err, "redo at lsn %d", e.LSN)
		}
	}
	return it.Err()
}
