// Package analyze implements the two read-only passes spec.md §4.6
// describes: Stats, a per-kind census of a tree file, and Rescue, a
// from-scratch rebuild that reinserts every live record into a fresh
// tree. Neither trusts the free-page stack or the hierarchy's own
// invariants; both work directly off the physical page scan.
package analyze

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"uuidbtree/node"
	"uuidbtree/pager"
)

// fileMeta mirrors tree's unexported meta decode. The scans here do not
// open the input through tree: rescue and stats must survive a tree file
// whose hierarchy is damaged, so they read the meta block and pages
// directly rather than going through the engine's own validated open path
// (rescue uses tree only to build its fresh output file).
type fileMeta struct {
	Kind      byte
	Root      int32
	FreeHead  int32
	Order     uint32
	RefOrder  uint32
	ValueSize uint32
}

const fileMetaSize = 1 + 4 + 4 + 4 + 4 + 4

func decodeFileMeta(buf []byte) (fileMeta, error) {
	if len(buf) < fileMetaSize {
		return fileMeta{}, fmt.Errorf("analyze: meta buffer too short")
	}
	return fileMeta{
		Kind:      buf[0],
		Root:      int32(binary.BigEndian.Uint32(buf[1:5])),
		FreeHead:  int32(binary.BigEndian.Uint32(buf[5:9])),
		Order:     binary.BigEndian.Uint32(buf[9:13]),
		RefOrder:  binary.BigEndian.Uint32(buf[13:17]),
		ValueSize: binary.BigEndian.Uint32(buf[17:21]),
	}, nil
}

// Options configures how a tree file is opened for analysis: the page and
// meta sizes it was created with, since neither is recoverable from the
// file's contents alone.
type Options struct {
	PageSize int
	MetaSize int
	Logger   *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.MetaSize == 0 {
		o.MetaSize = 64
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Stats is the result of one physical scan: a per-kind page census plus
// aggregate record/reference counts and a non-authoritative per-page
// fingerprint.
type Stats struct {
	Kind        byte
	PageSize    int
	TotalPages  int32
	Root        int32
	FreeHead    int32
	Records     int
	References  int
	PagesByKind map[node.Kind][]int32
	Unknown     []int32
	// Fingerprints is a non-authoritative xxhash.Sum64 digest per page,
	// useful for spotting byte-identical pages (e.g. an under-initialized
	// or duplicated recycle) without treating the hash as authoritative:
	// the per-record one-byte checksum in node.Checksum remains the only
	// authoritative corruption signal.
	Fingerprints map[int32]uint64
}

// ComputeStats opens path read-only under opts and classifies every page.
func ComputeStats(path string, opts Options) (*Stats, error) {
	opts = opts.withDefaults()
	pgr, err := pager.Open(path, opts.PageSize, opts.MetaSize, opts.Logger)
	if err != nil {
		return nil, fmt.Errorf("analyze: stats: %w", err)
	}
	defer pgr.Close()

	rawMeta, err := pgr.Meta()
	if err != nil {
		return nil, fmt.Errorf("analyze: stats: read meta: %w", err)
	}
	m, err := decodeFileMeta(rawMeta)
	if err != nil {
		return nil, fmt.Errorf("analyze: stats: %w", err)
	}

	st := &Stats{
		Kind:         m.Kind,
		PageSize:     opts.PageSize,
		TotalPages:   pgr.NumPages(),
		Root:         m.Root,
		FreeHead:     m.FreeHead,
		PagesByKind:  make(map[node.Kind][]int32),
		Fingerprints: make(map[int32]uint64, pgr.NumPages()),
	}

	err = pgr.ForEach(func(idx int32, data []byte) error {
		st.Fingerprints[idx] = xxhash.Sum64(data)

		kind, kErr := node.PeekKind(data)
		if kErr != nil {
			st.Unknown = append(st.Unknown, idx)
			opts.Logger.Warn("unreadable page kind", zap.Int32("page", idx), zap.Error(kErr))
			return nil
		}
		st.PagesByKind[kind] = append(st.PagesByKind[kind], idx)

		h, hErr := node.PeekHeader(data)
		if hErr != nil {
			opts.Logger.Warn("unreadable page header", zap.Int32("page", idx), zap.Error(hErr))
			return nil
		}
		switch {
		case kind.IsRecordBearing():
			st.Records += int(h.Count)
		case kind.IsInterior():
			st.References += int(h.Count)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("analyze: stats: scan: %w", err)
	}

	return st, nil
}
