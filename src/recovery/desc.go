package recovery

import (
	"fmt"
	"strings"
)

// Describe renders a one-line human-readable summary of a record, for log
// inspection tooling. Undecodable payloads are reported, not fatal: the
// describer must stay usable on exactly the logs that fail to replay.
func Describe(kind RecordKind, payload []byte) string {
	switch kind {
	case KindInsertLeaf, KindInsertUpper, KindInsertMeta:
		rec, err := decodeInsert(kind, payload)
		if err != nil {
			return badRecord(kind, err)
		}
		s := fmt.Sprintf("%s: rel %d; block %d; off %d; item %d bytes",
			kind, rec.Rel, rec.Block, rec.Offset, len(rec.Item))
		if !kind.isLeafInsert() {
			s += fmt.Sprintf("; downlink %d", rec.Downlink)
		}
		if rec.Meta != nil {
			s += metaSuffix(rec.Meta)
		}
		return s

	case KindSplitLeft, KindSplitRight, KindSplitLeftRoot, KindSplitRightRoot:
		rec, err := decodeSplit(kind, payload)
		if err != nil {
			return badRecord(kind, err)
		}
		s := fmt.Sprintf("%s: rel %d; left %d; right %d; rnext %d; level %d; firstright %d",
			kind, rec.Rel, rec.LeftSib, rec.RightSib, rec.RNext, rec.Level, rec.FirstRight)
		if rec.Level > 0 {
			s += fmt.Sprintf("; downlink %d", rec.Downlink)
		}
		if rec.NewItem != nil {
			s += fmt.Sprintf("; newitemoff %d", rec.NewItemOff)
		}
		return s

	case KindVacuum:
		rec, err := decodeVacuum(payload)
		if err != nil {
			return badRecord(kind, err)
		}
		return fmt.Sprintf("%s: rel %d; block %d; lastBlockVacuumed %d; %d items",
			kind, rec.Rel, rec.Block, rec.LastBlockVacuumed, len(rec.Offsets))

	case KindDelete:
		rec, err := decodeDelete(payload)
		if err != nil {
			return badRecord(kind, err)
		}
		return fmt.Sprintf("%s: rel %d; block %d; heap rel %d; %d items",
			kind, rec.Rel, rec.Block, rec.HeapRel, len(rec.Offsets))

	case KindDeletePage, KindDeletePageMeta, KindDeletePageHalf:
		rec, err := decodeDeletePage(kind, payload)
		if err != nil {
			return badRecord(kind, err)
		}
		s := fmt.Sprintf("%s: rel %d; dead %d; parent %d/%d; left %d; right %d; xact %d",
			kind, rec.Rel, rec.DeadBlock, rec.ParentBlock, rec.ParentOffset,
			rec.LeftSib, rec.RightSib, rec.DeleteXact)
		if rec.Meta != nil {
			s += metaSuffix(rec.Meta)
		}
		return s

	case KindNewRoot:
		rec, err := decodeNewRoot(payload)
		if err != nil {
			return badRecord(kind, err)
		}
		return fmt.Sprintf("%s: rel %d; root %d; level %d; %d item bytes",
			kind, rec.Rel, rec.RootBlock, rec.Level, len(rec.Items))

	case KindReusePage:
		rec, err := decodeReusePage(payload)
		if err != nil {
			return badRecord(kind, err)
		}
		return fmt.Sprintf("%s: rel %d; block %d; latestRemovedXid %d",
			kind, rec.Rel, rec.Block, rec.LatestRemovedXid)

	default:
		return fmt.Sprintf("unknown record kind %d, %d payload bytes", kind, len(payload))
	}
}

func badRecord(kind RecordKind, err error) string {
	msg := err.Error()
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	return fmt.Sprintf("%s: UNDECODABLE: %s", kind, msg)
}

func metaSuffix(md *MetaUpdate) string {
	return fmt.Sprintf("; meta root %d level %d fastroot %d fastlevel %d",
		md.Root, md.Level, md.FastRoot, md.FastLevel)
}
