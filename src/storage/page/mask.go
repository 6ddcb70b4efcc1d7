package page

import (
	"encoding/binary"

	"github.com/Blackdeer1524/btredo/src/pkg/common"
)

// Masking helpers for byte-wise page comparison. A primary and a replica
// that replayed the same log may still differ in fields replay is allowed
// to leave behind: the LSN of unlogged cleanups, hint bits, leftover bytes
// in unused space. Each helper blanks one such class of differences.

func (p *Page) MaskLSNAndChecksum() {
	binary.BigEndian.PutUint64(p.data[posLSN:], 0)
	binary.BigEndian.PutUint16(p.data[posChecksum:], 0)
}

func (p *Page) MaskHintBits() {
	binary.BigEndian.PutUint16(p.data[posHints:], 0)
}

// MaskUnusedSpace blanks the hole between the line pointer array and the
// item data. Deleted items leave their old bytes there.
func (p *Page) MaskUnusedSpace() {
	lo, up := p.lower(), p.upper()
	if lo < headerSize || up > specialStart || lo > up {
		// Not a sane item layout (new or meta page); nothing to blank.
		return
	}
	clear(p.data[lo:up])
}

// MaskContent blanks everything between the header and the special trailer,
// for pages whose content is irrelevant as long as the state flags match.
func (p *Page) MaskContent() {
	clear(p.data[headerSize:specialStart])
	p.setLower(0)
	p.setUpper(0)
}

// MaskItemFlags blanks the per-item flag bits, which carry only hints.
func (p *Page) MaskItemFlags() {
	for off := common.OffsetNumber(1); off <= p.MaxOffset(); off++ {
		itemOff, itemLen, _ := p.lpFields(off)
		p.setLP(off, itemOff, itemLen, 0)
	}
}
