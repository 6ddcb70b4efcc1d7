package page

import (
	"encoding/binary"
	"sync"

	"github.com/go-faster/errors"

	"github.com/Blackdeer1524/btredo/src/pkg/assert"
	"github.com/Blackdeer1524/btredo/src/pkg/common"
)

// On-page layout, all integers big-endian:
//
//	header:        lsn u64 | checksum u16 | hints u16 | lower u16 | upper u16 | special u16
//	line pointers: 1-based array growing up from the header, 6 bytes each:
//	               item offset u16 | item length u16 | flags u16
//	item data:     grows down from the special trailer
//	trailer:       prev u32 | next u32 | level u32 | xact u32 | flags u16 | cycleid u16
//
// The trailer mirrors what the original stores in the page "special space":
// sibling links, tree level, page state flags and the deletion epoch.
const (
	PageSize = 8192

	headerSize  = 18
	lpSize      = 6
	specialSize = 20

	specialStart = PageSize - specialSize
)

// Positions within the header.
const (
	posLSN      = 0
	posChecksum = 8
	posHints    = 10
	posLower    = 12
	posUpper    = 14
	posSpecial  = 16
)

// Positions within the special trailer, relative to specialStart.
const (
	posPrev    = 0
	posNext    = 4
	posLevel   = 8
	posXact    = 12
	posFlags   = 16
	posCycleID = 18
)

// Flag is a page state bit kept in the special trailer.
type Flag uint16

const (
	FlagRoot Flag = 1 << iota
	FlagLeaf
	FlagDeleted
	FlagMeta
	FlagHalfDead
	FlagSplitEnd
	FlagHasGarbage
)

// Line pointer flag bits. A zero-flag pointer with nonzero length is a normal
// item with storage.
const (
	lpDead     uint16 = 1 << 0
	lpRedirect uint16 = 1 << 1
)

// Well-known item positions. On a non-rightmost page offset 1 holds the high
// key; real data starts at offset 2. On a rightmost page there is no high key
// and data starts at offset 1.
const (
	HighKeyOffset  common.OffsetNumber = 1
	FirstKeyOffset common.OffsetNumber = 2
)

var (
	ErrNoSpace       = errors.New("not enough free space on page")
	ErrInvalidOffset = errors.New("invalid item offset")
)

// Page is one fixed-size block of an index or heap relation. The latch and
// dirty bit live outside the data array: they are runtime state, never
// written to disk.
type Page struct {
	latch sync.RWMutex
	dirty bool

	data [PageSize]byte
}

func NewPage() *Page {
	return &Page{}
}

// Load makes an independent page over a copy of raw block bytes.
func Load(data []byte) *Page {
	p := &Page{}
	copy(p.data[:], data)
	return p
}

// IsNew reports whether the block has never been initialized (all-zero
// header, as produced by extending a relation file).
func (p *Page) IsNew() bool {
	return binary.BigEndian.Uint16(p.data[posUpper:]) == 0
}

// Init formats the page as empty: no items, full free space, zeroed trailer.
// Replay calls this when it reconstructs a page from scratch.
func (p *Page) Init() {
	clear(p.data[:])
	binary.BigEndian.PutUint16(p.data[posLower:], headerSize)
	binary.BigEndian.PutUint16(p.data[posUpper:], specialStart)
	binary.BigEndian.PutUint16(p.data[posSpecial:], specialStart)
}

// HintBits are advisory header bits (all-visible style hints); replay never
// depends on them and masking blanks them.
func (p *Page) HintBits() uint16 {
	return binary.BigEndian.Uint16(p.data[posHints:])
}

func (p *Page) SetHintBits(v uint16) {
	binary.BigEndian.PutUint16(p.data[posHints:], v)
}

func (p *Page) LSN() common.LSN {
	return common.LSN(binary.BigEndian.Uint64(p.data[posLSN:]))
}

func (p *Page) SetLSN(lsn common.LSN) {
	binary.BigEndian.PutUint64(p.data[posLSN:], uint64(lsn))
}

func (p *Page) lower() uint16 { return binary.BigEndian.Uint16(p.data[posLower:]) }
func (p *Page) upper() uint16 { return binary.BigEndian.Uint16(p.data[posUpper:]) }

func (p *Page) setLower(v uint16) { binary.BigEndian.PutUint16(p.data[posLower:], v) }
func (p *Page) setUpper(v uint16) { binary.BigEndian.PutUint16(p.data[posUpper:], v) }

// MaxOffset returns the number of the last item on the page, 0 when empty.
func (p *Page) MaxOffset() common.OffsetNumber {
	lo := p.lower()
	if lo < headerSize {
		return 0
	}
	return common.OffsetNumber((lo - headerSize) / lpSize)
}

func lpPos(off common.OffsetNumber) int {
	return headerSize + int(off-1)*lpSize
}

func (p *Page) lpFields(off common.OffsetNumber) (itemOff, itemLen, flags uint16) {
	pos := lpPos(off)
	return binary.BigEndian.Uint16(p.data[pos:]),
		binary.BigEndian.Uint16(p.data[pos+2:]),
		binary.BigEndian.Uint16(p.data[pos+4:])
}

func (p *Page) setLP(off common.OffsetNumber, itemOff, itemLen, flags uint16) {
	pos := lpPos(off)
	binary.BigEndian.PutUint16(p.data[pos:], itemOff)
	binary.BigEndian.PutUint16(p.data[pos+2:], itemLen)
	binary.BigEndian.PutUint16(p.data[pos+4:], flags)
}

// Item returns the live bytes of the item at the given 1-based offset.
func (p *Page) Item(off common.OffsetNumber) []byte {
	assert.Assert(off >= 1 && off <= p.MaxOffset(),
		"item offset %d out of range, page has %d items", off, p.MaxOffset())
	itemOff, itemLen, _ := p.lpFields(off)
	return p.data[itemOff : itemOff+itemLen]
}

// ItemDead reports whether the item's line pointer carries the dead hint.
func (p *Page) ItemDead(off common.OffsetNumber) bool {
	_, _, flags := p.lpFields(off)
	return flags&lpDead != 0
}

// ItemRedirect returns the redirect target when the line pointer was turned
// into a forwarding stub by heap pruning.
func (p *Page) ItemRedirect(off common.OffsetNumber) (common.OffsetNumber, bool) {
	itemOff, _, flags := p.lpFields(off)
	if flags&lpRedirect == 0 {
		return 0, false
	}
	return common.OffsetNumber(itemOff), true
}

// ItemHasStorage reports whether the item still has backing bytes. Dead
// stubs and redirects do not.
func (p *Page) ItemHasStorage(off common.OffsetNumber) bool {
	_, itemLen, flags := p.lpFields(off)
	return itemLen > 0 && flags == 0
}

func (p *Page) SetItemDead(off common.OffsetNumber) {
	assert.Assert(off >= 1 && off <= p.MaxOffset(), "offset %d out of range", off)
	itemOff, _, _ := p.lpFields(off)
	p.setLP(off, itemOff, 0, lpDead)
}

func (p *Page) SetItemRedirect(off, target common.OffsetNumber) {
	assert.Assert(off >= 1 && off <= p.MaxOffset(), "offset %d out of range", off)
	p.setLP(off, uint16(target), 0, lpRedirect)
}

// AddItem inserts item bytes at the given offset, shifting later line
// pointers up by one, exactly like the original's PageAddItem. Offsets are
// 1-based; off may be at most MaxOffset()+1.
func (p *Page) AddItem(data []byte, off common.OffsetNumber) error {
	assert.Assert(!p.IsNew(), "AddItem on an uninitialized page")

	maxOff := p.MaxOffset()
	if off < 1 || off > maxOff+1 {
		return errors.Wrapf(ErrInvalidOffset, "offset %d, page has %d items", off, maxOff)
	}

	lo, up := p.lower(), p.upper()
	if int(up)-int(lo) < len(data)+lpSize {
		return ErrNoSpace
	}

	// Make room in the line pointer array.
	if off <= maxOff {
		copy(p.data[lpPos(off)+lpSize:int(lo)+lpSize], p.data[lpPos(off):lo])
	}

	newUp := up - uint16(len(data))
	copy(p.data[newUp:up], data)
	p.setLP(off, newUp, uint16(len(data)), 0)
	p.setLower(lo + lpSize)
	p.setUpper(newUp)

	return nil
}

// DeleteItem removes a single item, renumbering the ones after it.
func (p *Page) DeleteItem(off common.OffsetNumber) {
	p.MultiDelete([]common.OffsetNumber{off})
}

// MultiDelete removes the listed items in one pass, preserving the relative
// order of the survivors. The page content is rebuilt compactly, which also
// reclaims the freed item space.
func (p *Page) MultiDelete(offs []common.OffsetNumber) {
	if len(offs) == 0 {
		return
	}

	maxOff := p.MaxOffset()
	kill := make(map[common.OffsetNumber]struct{}, len(offs))
	for _, off := range offs {
		assert.Assert(off >= 1 && off <= maxOff,
			"delete offset %d out of range, page has %d items", off, maxOff)
		kill[off] = struct{}{}
	}

	type savedItem struct {
		data  []byte
		flags uint16
		raw   uint16 // line pointer offset field, meaningful for redirects
	}

	survivors := make([]savedItem, 0, int(maxOff)-len(kill))
	for off := common.OffsetNumber(1); off <= maxOff; off++ {
		if _, dead := kill[off]; dead {
			continue
		}
		itemOff, itemLen, flags := p.lpFields(off)
		it := savedItem{flags: flags, raw: itemOff}
		if itemLen > 0 {
			it.data = append([]byte(nil), p.data[itemOff:itemOff+itemLen]...)
		}
		survivors = append(survivors, it)
	}

	// Rebuild the content region; header LSN/hints and the special trailer
	// stay as they were.
	var trailer [specialSize]byte
	copy(trailer[:], p.data[specialStart:])
	lsn := p.LSN()
	hints := binary.BigEndian.Uint16(p.data[posHints:])

	p.Init()
	p.SetLSN(lsn)
	binary.BigEndian.PutUint16(p.data[posHints:], hints)
	copy(p.data[specialStart:], trailer[:])

	for i, it := range survivors {
		off := common.OffsetNumber(i + 1)
		if it.flags == 0 {
			err := p.AddItem(it.data, off)
			assert.NoErrorWithMessage(err, "page rebuild lost an item: %v")
			continue
		}
		// Dead and redirect stubs keep their line pointer but carry no
		// storage.
		lo := p.lower()
		p.setLP(off, it.raw, 0, it.flags)
		p.setLower(lo + lpSize)
	}
}

// FreeSpace returns the bytes available for one more item plus its line
// pointer.
func (p *Page) FreeSpace() int {
	free := int(p.upper()) - int(p.lower()) - lpSize
	if free < 0 {
		return 0
	}
	return free
}

// Special trailer accessors.

func (p *Page) Prev() common.BlockNumber {
	return common.BlockNumber(binary.BigEndian.Uint32(p.data[specialStart+posPrev:]))
}

func (p *Page) SetPrev(b common.BlockNumber) {
	binary.BigEndian.PutUint32(p.data[specialStart+posPrev:], uint32(b))
}

func (p *Page) Next() common.BlockNumber {
	return common.BlockNumber(binary.BigEndian.Uint32(p.data[specialStart+posNext:]))
}

func (p *Page) SetNext(b common.BlockNumber) {
	binary.BigEndian.PutUint32(p.data[specialStart+posNext:], uint32(b))
}

func (p *Page) Level() uint32 {
	return binary.BigEndian.Uint32(p.data[specialStart+posLevel:])
}

func (p *Page) SetLevel(l uint32) {
	binary.BigEndian.PutUint32(p.data[specialStart+posLevel:], l)
}

// DeleteXact is the transaction that deleted the page, recorded so a later
// vacuum can tell when the block may be recycled.
func (p *Page) DeleteXact() common.TxnID {
	return common.TxnID(binary.BigEndian.Uint32(p.data[specialStart+posXact:]))
}

func (p *Page) SetDeleteXact(x common.TxnID) {
	binary.BigEndian.PutUint32(p.data[specialStart+posXact:], uint32(x))
}

func (p *Page) Flags() Flag {
	return Flag(binary.BigEndian.Uint16(p.data[specialStart+posFlags:]))
}

func (p *Page) SetFlags(f Flag) {
	binary.BigEndian.PutUint16(p.data[specialStart+posFlags:], uint16(f))
}

func (p *Page) HasFlag(f Flag) bool {
	return p.Flags()&f != 0
}

func (p *Page) AddFlag(f Flag) {
	p.SetFlags(p.Flags() | f)
}

func (p *Page) ClearFlag(f Flag) {
	p.SetFlags(p.Flags() &^ f)
}

func (p *Page) CycleID() uint16 {
	return binary.BigEndian.Uint16(p.data[specialStart+posCycleID:])
}

func (p *Page) SetCycleID(c uint16) {
	binary.BigEndian.PutUint16(p.data[specialStart+posCycleID:], c)
}

// IsRightmost reports whether the page has no right sibling, i.e. carries no
// high key.
func (p *Page) IsRightmost() bool {
	return p.Next() == common.NoSibling
}

func (p *Page) IsLeftmost() bool {
	return p.Prev() == common.NoSibling
}

// FirstDataOffset is where real data starts: past the high key on
// non-rightmost pages.
func (p *Page) FirstDataOffset() common.OffsetNumber {
	if p.IsRightmost() {
		return HighKeyOffset
	}
	return FirstKeyOffset
}

// Latch and dirtiness, the contract the buffer pool relies on.

func (p *Page) Lock()    { p.latch.Lock() }
func (p *Page) Unlock()  { p.latch.Unlock() }
func (p *Page) RLock()   { p.latch.RLock() }
func (p *Page) RUnlock() { p.latch.RUnlock() }

func (p *Page) TryLock() bool { return p.latch.TryLock() }

func (p *Page) SetDirtiness(val bool) { p.dirty = val }
func (p *Page) IsDirty() bool         { return p.dirty }

func (p *Page) GetData() []byte {
	return p.data[:]
}

func (p *Page) SetData(data []byte) {
	copy(p.data[:], data)
}
