package page

import (
	"encoding/binary"

	"github.com/go-faster/errors"

	"github.com/Blackdeer1524/btredo/src/pkg/common"
)

// The meta page is always block 0 of an index relation. It records where the
// root currently is, plus the fast root: a cached pointer to the effective
// top of the tree that lets searches skip levels collapsed down to a single
// child.
const (
	MetaMagic   uint32 = 0x053162
	MetaVersion uint32 = 1

	metaStart = headerSize
	metaSize  = 24
)

var ErrNotMeta = errors.New("page is not a valid meta page")

type Meta struct {
	Root      common.BlockNumber
	Level     uint32
	FastRoot  common.BlockNumber
	FastLevel uint32
}

// WriteMeta rewrites the page wholesale as a meta page. Replay restores meta
// state this way on every root change rather than patching fields.
func WriteMeta(p *Page, m Meta) {
	p.Init()
	binary.BigEndian.PutUint32(p.data[metaStart+0:], MetaMagic)
	binary.BigEndian.PutUint32(p.data[metaStart+4:], MetaVersion)
	binary.BigEndian.PutUint32(p.data[metaStart+8:], uint32(m.Root))
	binary.BigEndian.PutUint32(p.data[metaStart+12:], m.Level)
	binary.BigEndian.PutUint32(p.data[metaStart+16:], uint32(m.FastRoot))
	binary.BigEndian.PutUint32(p.data[metaStart+20:], m.FastLevel)

	// Nothing past the meta fields is meaningful; pull lower up so the rest
	// of the page reads as unused space.
	p.setLower(metaStart + metaSize)
	p.SetFlags(FlagMeta)
}

func ReadMeta(p *Page) (Meta, error) {
	if binary.BigEndian.Uint32(p.data[metaStart+0:]) != MetaMagic {
		return Meta{}, errors.Wrap(ErrNotMeta, "bad magic")
	}
	if v := binary.BigEndian.Uint32(p.data[metaStart+4:]); v != MetaVersion {
		return Meta{}, errors.Wrapf(ErrNotMeta, "version %d", v)
	}
	return Meta{
		Root:      common.BlockNumber(binary.BigEndian.Uint32(p.data[metaStart+8:])),
		Level:     binary.BigEndian.Uint32(p.data[metaStart+12:]),
		FastRoot:  common.BlockNumber(binary.BigEndian.Uint32(p.data[metaStart+16:])),
		FastLevel: binary.BigEndian.Uint32(p.data[metaStart+20:]),
	}, nil
}
