package node

import "fmt"

// EmptyNode is the decoded form of an Empty ('E') page: a reclaimed page
// sitting on the free-page stack. Next points at the previous head of the
// stack (NoPage if this was the only free page), so the stack can be
// popped and pushed in LIFO order without a separate free-list structure.
type EmptyNode struct {
	Next int32
}

// EncodeEmptyNode packs a free-stack entry into exactly pageSize bytes.
// The body past the header is unused and zeroed.
func EncodeEmptyNode(n EmptyNode, pageSize int) ([]byte, error) {
	if HeaderSize > pageSize {
		return nil, fmt.Errorf("node: encode empty node: %w", ErrDataTooLarge)
	}
	buf := make([]byte, pageSize)
	encodeHeader(buf, Header{Kind: KindEmpty, Next: n.Next, Count: 0})
	zeroPad(buf, HeaderSize)
	return buf, nil
}

// DecodeEmptyNode unpacks a free-stack entry.
func DecodeEmptyNode(page []byte, pageSize int) (EmptyNode, error) {
	if len(page) != pageSize {
		return EmptyNode{}, fmt.Errorf("node: decode empty node: %w", ErrPageLengthInvalid)
	}
	h, err := decodeHeader(page)
	if err != nil {
		return EmptyNode{}, err
	}
	if h.Kind != KindEmpty {
		return EmptyNode{}, fmt.Errorf("node: decode empty node: got %s: %w", h.Kind, ErrWrongNodeKind)
	}
	return EmptyNode{Next: h.Next}, nil
}
