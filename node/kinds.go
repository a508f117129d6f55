// Package node implements the on-disk node codec: the seven page kinds
// (start, leaf, structure, root, data, items, empty), their exact byte
// layouts, and the encode/decode functions that pad every node out to a
// full page. The tagged kind byte stands in for the duck-typed Node
// hierarchy of the original implementation this engine is descended from;
// decode dispatches on that byte the way a class registry would.
package node

import "fmt"

// Kind tags the role a page plays, stored as the first byte of every page.
type Kind byte

const (
	KindStart     Kind = 'S' // record-bearing root, tree has exactly one node
	KindLeaf      Kind = 'L' // record-bearing leaf, non-root
	KindStructure Kind = 'F' // interior reference node, non-root
	KindRoot      Kind = 'R' // interior reference node that is the root
	KindData      Kind = 'D' // single-blob auxiliary node (multi-tree, legacy layout)
	KindItems     Kind = 'I' // fixed-size-item array auxiliary node (multi-tree)
	KindEmpty     Kind = 'E' // recycled page in the free stack
)

func (k Kind) String() string {
	switch k {
	case KindStart:
		return "start"
	case KindLeaf:
		return "leaf"
	case KindStructure:
		return "structure"
	case KindRoot:
		return "root"
	case KindData:
		return "data"
	case KindItems:
		return "items"
	case KindEmpty:
		return "empty"
	default:
		return fmt.Sprintf("unknown(%q)", byte(k))
	}
}

// Valid reports whether k is one of the seven defined kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindStart, KindLeaf, KindStructure, KindRoot, KindData, KindItems, KindEmpty:
		return true
	default:
		return false
	}
}

// IsRecordBearing reports whether k holds leaf-level key/value records
// (the simple tree's Record entries, or the multi tree's item-chain
// headers).
func (k Kind) IsRecordBearing() bool {
	return k == KindStart || k == KindLeaf
}

// IsInterior reports whether k holds Reference entries.
func (k Kind) IsInterior() bool {
	return k == KindStructure || k == KindRoot
}

// PeekKind reads the kind byte out of a raw page buffer without otherwise
// decoding it, validating it against the seven defined kinds.
func PeekKind(page []byte) (Kind, error) {
	if len(page) == 0 {
		return 0, fmt.Errorf("node: peek kind: %w", ErrPageLengthInvalid)
	}
	k := Kind(page[0])
	if !k.Valid() {
		return 0, fmt.Errorf("node: peek kind %q: %w", byte(k), ErrWrongNodeKind)
	}
	return k, nil
}
