package tree

import (
	"encoding/binary"
	"fmt"

	"go.uber.org/zap"
)

// treeKind tags which public variant a file holds, stored as the meta
// block's first byte.
type treeKind byte

const (
	kindSimple treeKind = 'S'
	kindMulti  treeKind = 'M'
)

// metaSize is the fixed on-disk size of the meta block: kind(1) |
// root(i32) | empty(i32) | order(u32) | ref_order(u32) | value_size(u32).
const metaSize = 1 + 4 + 4 + 4 + 4 + 4

// meta is the decoded form of the file's fixed meta block at offset zero.
type meta struct {
	Kind      treeKind
	Root      int32
	FreeHead  int32
	Order     uint32
	RefOrder  uint32
	ValueSize uint32
}

func encodeMeta(m meta) []byte {
	buf := make([]byte, metaSize)
	buf[0] = byte(m.Kind)
	binary.BigEndian.PutUint32(buf[1:5], uint32(m.Root))
	binary.BigEndian.PutUint32(buf[5:9], uint32(m.FreeHead))
	binary.BigEndian.PutUint32(buf[9:13], m.Order)
	binary.BigEndian.PutUint32(buf[13:17], m.RefOrder)
	binary.BigEndian.PutUint32(buf[17:21], m.ValueSize)
	return buf
}

func decodeMeta(buf []byte) (meta, error) {
	if len(buf) < metaSize {
		return meta{}, fmt.Errorf("tree: decode meta: buffer too short")
	}
	return meta{
		Kind:      treeKind(buf[0]),
		Root:      int32(binary.BigEndian.Uint32(buf[1:5])),
		FreeHead:  int32(binary.BigEndian.Uint32(buf[5:9])),
		Order:     binary.BigEndian.Uint32(buf[9:13]),
		RefOrder:  binary.BigEndian.Uint32(buf[13:17]),
		ValueSize: binary.BigEndian.Uint32(buf[17:21]),
	}, nil
}

// Config supplies the parameters needed to open or create a tree file.
// Order and ValueSize (the item width, for the multi-tree) are required;
// PageSize, Logger, and MetaSize all have sane defaults.
type Config struct {
	// Order is the maximum number of records per leaf, and the default for
	// RefOrder and ItemOrder; must be >= 4.
	Order uint32
	// ValueSize is the fixed value width for a simple tree, or the fixed
	// item width for a multi tree.
	ValueSize uint32
	// RefOrder is the maximum number of references per interior node. If
	// zero, it is computed to match Order.
	RefOrder uint32
	// ItemOrder bounds how many fixed-width items an Items ('I') chain page
	// holds, for the multi-tree only. If zero, it defaults to Order.
	ItemOrder uint32
	// PageSize, if non-zero, pins the page size. It must be large enough
	// to hold HeaderSize plus the largest of Order records, RefOrder refs,
	// or ItemOrder items; otherwise ConfigSizeError. If zero, it is computed from Order and
	// entry sizes.
	PageSize int
	// MetaSize pads the stored meta block; defaults to 64 bytes.
	MetaSize int
	// Logger receives lifecycle, split/promote/recycle, and structural
	// warning events. Defaults to a no-op logger.
	Logger *zap.Logger
}

func (c Config) withDefaults() Config {
	if c.MetaSize == 0 {
		c.MetaSize = 64
	}
	if c.RefOrder == 0 {
		c.RefOrder = c.Order
	}
	if c.ItemOrder == 0 {
		c.ItemOrder = c.Order
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

func (c Config) validate() error {
	if c.Order < 4 {
		return &ConfigError{Field: "order", Err: ErrConfigOrderError}
	}
	return nil
}

// minPageSize returns the smallest page size able to hold one node's worth
// of the largest of (records at Order), (references at RefOrder), or (for
// the multi-tree) (items at ItemOrder).
func minPageSize(c Config, recordSize int) int {
	best := nodeHeaderSize + int(c.Order)*recordSize
	if refsBytes := nodeHeaderSize + int(c.RefOrder)*referenceSize; refsBytes > best {
		best = refsBytes
	}
	if itemsBytes := nodeHeaderSize + int(c.ItemOrder)*int(c.ValueSize); itemsBytes > best {
		best = itemsBytes
	}
	return best
}

const nodeHeaderSize = 9
const referenceSize = 24
