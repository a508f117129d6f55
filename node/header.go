package node

import (
	"encoding/binary"
	"fmt"
)

// HeaderSize is the fixed size, in bytes, of every page's leading header:
// kind(1) | next(i32 BE) | count(u32 BE).
const HeaderSize = 1 + 4 + 4

// Header is the common leading structure of every page, regardless of
// kind. Next chains leaves, item-chain pages, and free-stack entries;
// Count is the number of entries (records, references, or items)
// immediately following it.
type Header struct {
	Kind  Kind
	Next  int32
	Count uint32
}

func encodeHeader(buf []byte, h Header) {
	buf[0] = byte(h.Kind)
	binary.BigEndian.PutUint32(buf[1:5], uint32(h.Next))
	binary.BigEndian.PutUint32(buf[5:9], h.Count)
}

// PeekHeader decodes just the common header of a page, without the
// per-variant entry-count/order validation full decode performs. Used by
// read-only tooling (see the analyze package) that wants to classify pages
// even when their bodies may not decode cleanly.
func PeekHeader(page []byte) (Header, error) {
	return decodeHeader(page)
}

func decodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, fmt.Errorf("node: decode header: %w", ErrPageLengthInvalid)
	}
	k := Kind(buf[0])
	if !k.Valid() {
		return Header{}, fmt.Errorf("node: decode header kind %q: %w", buf[0], ErrWrongNodeKind)
	}
	return Header{
		Kind:  k,
		Next:  int32(binary.BigEndian.Uint32(buf[1:5])),
		Count: binary.BigEndian.Uint32(buf[5:9]),
	}, nil
}

// Checksum computes the one-byte corruption-detection digest used by
// record entries: a running XOR over every byte of every part, in order.
// It is deliberately weak (one byte of XOR) and is only ever meant to
// catch accidental corruption, never to authenticate content.
func Checksum(parts ...[]byte) byte {
	var sum byte
	for _, part := range parts {
		for _, b := range part {
			sum ^= b
		}
	}
	return sum
}

func zeroPad(buf []byte, from int) {
	for i := from; i < len(buf); i++ {
		buf[i] = 0
	}
}
