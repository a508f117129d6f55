package node

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// ReferenceSize is the fixed on-disk size of one Reference entry:
// before(i32) | after(i32) | key(16).
const ReferenceSize = 4 + 4 + 16

// Reference is one interior-node entry. Descend into Before for keys less
// than Key, and into After for keys greater than or equal to Key.
type Reference struct {
	Before int32
	After  int32
	Key    uuid.UUID
}

func encodeReference(buf []byte, r Reference) {
	binary.BigEndian.PutUint32(buf[0:4], uint32(r.Before))
	binary.BigEndian.PutUint32(buf[4:8], uint32(r.After))
	copy(buf[8:24], r.Key[:])
}

func decodeReference(buf []byte) Reference {
	return Reference{
		Before: int32(binary.BigEndian.Uint32(buf[0:4])),
		After:  int32(binary.BigEndian.Uint32(buf[4:8])),
		Key:    uuid.UUID(buf[8:24]),
	}
}

// StructureNode is the decoded form of a Structure ('F') or Root ('R')
// page: a Header plus its ordered References.
type StructureNode struct {
	Kind Kind // KindStructure or KindRoot
	Refs []Reference
}

// EncodeStructure packs a structure/root node into exactly pageSize bytes.
func EncodeStructure(n StructureNode, pageSize int, refOrder int) ([]byte, error) {
	if !n.Kind.IsInterior() {
		return nil, fmt.Errorf("node: encode structure: %w", ErrWrongNodeKind)
	}
	if len(n.Refs) > refOrder {
		return nil, fmt.Errorf("node: encode structure: %d refs > order %d: %w", len(n.Refs), refOrder, ErrEntryCountError)
	}
	need := HeaderSize + len(n.Refs)*ReferenceSize
	if need > pageSize {
		return nil, fmt.Errorf("node: encode structure: %w", ErrDataTooLarge)
	}

	buf := make([]byte, pageSize)
	encodeHeader(buf, Header{Kind: n.Kind, Next: NoPage, Count: uint32(len(n.Refs))})
	off := HeaderSize
	for _, r := range n.Refs {
		encodeReference(buf[off:off+ReferenceSize], r)
		off += ReferenceSize
	}
	zeroPad(buf, off)
	return buf, nil
}

// DecodeStructure unpacks a structure/root page.
func DecodeStructure(page []byte, pageSize int, refOrder int) (StructureNode, error) {
	if len(page) != pageSize {
		return StructureNode{}, fmt.Errorf("node: decode structure: %w", ErrPageLengthInvalid)
	}
	h, err := decodeHeader(page)
	if err != nil {
		return StructureNode{}, err
	}
	if !h.Kind.IsInterior() {
		return StructureNode{}, fmt.Errorf("node: decode structure: got %s: %w", h.Kind, ErrWrongNodeKind)
	}
	if int(h.Count) > refOrder {
		return StructureNode{}, fmt.Errorf("node: decode structure: %d refs > order %d: %w", h.Count, refOrder, ErrEntryCountError)
	}

	refs := make([]Reference, h.Count)
	off := HeaderSize
	for i := range refs {
		if off+ReferenceSize > len(page) {
			return StructureNode{}, fmt.Errorf("node: decode structure: truncated reference %d: %w", i, ErrPageLengthInvalid)
		}
		refs[i] = decodeReference(page[off : off+ReferenceSize])
		off += ReferenceSize
	}
	return StructureNode{Kind: h.Kind, Refs: refs}, nil
}

// NoPage mirrors pager.NoPage without importing the pager package, to
// keep node dependency-free of the storage layer above it.
const NoPage int32 = -1
