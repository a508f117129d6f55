package node

import (
	"fmt"
)

// ItemsNode is the decoded form of an Items ('I') page: one link in the
// fixed-width item chain a multi-tree leaf record points at. Header.Next
// chains to the following page, or NoPage at the tail.
type ItemsNode struct {
	Next  int32
	Items [][]byte
}

// EncodeItemsNode packs an item-chain page into exactly pageSize bytes.
// itemSize is the fixed width of one item, and capacity bounds how many
// items a page may hold (the tree passes its configured item order;
// ItemsCapacity gives the most that fit in pageSize).
func EncodeItemsNode(n ItemsNode, pageSize, itemSize, capacity int) ([]byte, error) {
	if len(n.Items) > capacity {
		return nil, fmt.Errorf("node: encode items node: %d items > capacity %d: %w", len(n.Items), capacity, ErrItemCountError)
	}
	need := HeaderSize + len(n.Items)*itemSize
	if need > pageSize {
		return nil, fmt.Errorf("node: encode items node: %w", ErrDataTooLarge)
	}

	buf := make([]byte, pageSize)
	encodeHeader(buf, Header{Kind: KindItems, Next: n.Next, Count: uint32(len(n.Items))})
	off := HeaderSize
	for i, item := range n.Items {
		if len(item) != itemSize {
			return nil, fmt.Errorf("node: encode items node: item %d is %d bytes, want %d: %w", i, len(item), itemSize, ErrItemWrongSize)
		}
		copy(buf[off:off+itemSize], item)
		off += itemSize
	}
	zeroPad(buf, off)
	return buf, nil
}

// DecodeItemsNode unpacks an item-chain page.
func DecodeItemsNode(page []byte, pageSize, itemSize, capacity int) (ItemsNode, error) {
	if len(page) != pageSize {
		return ItemsNode{}, fmt.Errorf("node: decode items node: %w", ErrPageLengthInvalid)
	}
	h, err := decodeHeader(page)
	if err != nil {
		return ItemsNode{}, err
	}
	if h.Kind != KindItems {
		return ItemsNode{}, fmt.Errorf("node: decode items node: got %s: %w", h.Kind, ErrWrongNodeKind)
	}
	if int(h.Count) > capacity {
		return ItemsNode{}, fmt.Errorf("node: decode items node: %d items > capacity %d: %w", h.Count, capacity, ErrItemCountError)
	}

	items := make([][]byte, h.Count)
	off := HeaderSize
	for i := range items {
		if off+itemSize > len(page) {
			return ItemsNode{}, fmt.Errorf("node: decode items node: truncated item %d: %w", i, ErrPageLengthInvalid)
		}
		items[i] = append([]byte(nil), page[off:off+itemSize]...)
		off += itemSize
	}
	return ItemsNode{Next: h.Next, Items: items}, nil
}

// ItemsCapacity returns how many fixed-width items of itemSize fit after
// the header in a page of pageSize bytes.
func ItemsCapacity(pageSize, itemSize int) int {
	if itemSize <= 0 {
		return 0
	}
	avail := pageSize - HeaderSize
	if avail < 0 {
		return 0
	}
	return avail / itemSize
}
