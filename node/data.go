package node

import (
	"encoding/binary"
	"fmt"
)

// DataNode is the decoded form of a Data ('D') page: the legacy single-blob
// layout, a 4-byte length prefix followed by raw bytes, with Header.Next
// available to chain a following Data page. Neither tree variant writes
// Data pages; values are always stored in the leaf record itself.
type DataNode struct {
	Next   int32
	Length uint32
	Blob   []byte
}

// EncodeDataNode packs a data page into exactly pageSize bytes. blob must
// fit in the space remaining after the header and the 4-byte length
// prefix.
func EncodeDataNode(n DataNode, pageSize int) ([]byte, error) {
	need := HeaderSize + 4 + len(n.Blob)
	if need > pageSize {
		return nil, fmt.Errorf("node: encode data node: %w", ErrDataTooLarge)
	}

	buf := make([]byte, pageSize)
	encodeHeader(buf, Header{Kind: KindData, Next: n.Next, Count: 1})
	binary.BigEndian.PutUint32(buf[HeaderSize:HeaderSize+4], uint32(len(n.Blob)))
	off := HeaderSize + 4
	copy(buf[off:off+len(n.Blob)], n.Blob)
	zeroPad(buf, off+len(n.Blob))
	return buf, nil
}

// DecodeDataNode unpacks a data page.
func DecodeDataNode(page []byte, pageSize int) (DataNode, error) {
	if len(page) != pageSize {
		return DataNode{}, fmt.Errorf("node: decode data node: %w", ErrPageLengthInvalid)
	}
	h, err := decodeHeader(page)
	if err != nil {
		return DataNode{}, err
	}
	if h.Kind != KindData {
		return DataNode{}, fmt.Errorf("node: decode data node: got %s: %w", h.Kind, ErrWrongNodeKind)
	}
	if HeaderSize+4 > len(page) {
		return DataNode{}, fmt.Errorf("node: decode data node: %w", ErrPageLengthInvalid)
	}
	length := binary.BigEndian.Uint32(page[HeaderSize : HeaderSize+4])
	off := HeaderSize + 4
	if int(length) > len(page)-off {
		return DataNode{}, fmt.Errorf("node: decode data node: length %d exceeds page: %w", length, ErrBlobSizeInvalid)
	}
	blob := append([]byte(nil), page[off:off+int(length)]...)
	return DataNode{Next: h.Next, Length: length, Blob: blob}, nil
}
