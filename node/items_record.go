package node

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// ItemsRecord is one leaf entry in the multi-item tree: the head page of
// an item chain (or NoPage if empty) plus the chain's total item count.
type ItemsRecord struct {
	Page     int32
	Key      uuid.UUID
	Count    uint32
	Checksum byte
}

// ItemsRecordSize is the on-disk size of one multi-tree leaf record:
// page(i32) | key(16) | count(u32) | checksum(1).
const ItemsRecordSize = 4 + 16 + 4 + 1

// NewItemsRecord builds a record with its checksum filled in.
func NewItemsRecord(key uuid.UUID, page int32, count uint32) ItemsRecord {
	r := ItemsRecord{Page: page, Key: key, Count: count}
	r.Checksum = r.checksumOf()
	return r
}

func (r ItemsRecord) checksumOf() byte {
	var countBuf [4]byte
	binary.BigEndian.PutUint32(countBuf[:], r.Count)
	return Checksum(r.Key[:], countBuf[:])
}

func encodeItemsRecord(buf []byte, r ItemsRecord) {
	binary.BigEndian.PutUint32(buf[0:4], uint32(r.Page))
	copy(buf[4:20], r.Key[:])
	binary.BigEndian.PutUint32(buf[20:24], r.Count)
	buf[24] = r.Checksum
}

func decodeItemsRecord(buf []byte) (ItemsRecord, error) {
	r := ItemsRecord{
		Page:  int32(binary.BigEndian.Uint32(buf[0:4])),
		Key:   uuid.UUID(buf[4:20]),
		Count: binary.BigEndian.Uint32(buf[20:24]),
	}
	r.Checksum = buf[24]
	if r.Checksum != r.checksumOf() {
		return ItemsRecord{}, fmt.Errorf("node: decode items record %s: %w", r.Key, ErrChecksumError)
	}
	return r, nil
}

// ItemsRecordNode is the decoded form of a Start ('S') or Leaf ('L') page
// in the multi-item tree.
type ItemsRecordNode struct {
	Kind    Kind
	Next    int32
	Records []ItemsRecord
}

// EncodeItemsRecordNode packs a multi-tree start/leaf node into exactly
// pageSize bytes.
func EncodeItemsRecordNode(n ItemsRecordNode, pageSize, order int) ([]byte, error) {
	if !n.Kind.IsRecordBearing() {
		return nil, fmt.Errorf("node: encode items record node: %w", ErrWrongNodeKind)
	}
	if len(n.Records) > order {
		return nil, fmt.Errorf("node: encode items record node: %d records > order %d: %w", len(n.Records), order, ErrEntryCountError)
	}
	need := HeaderSize + len(n.Records)*ItemsRecordSize
	if need > pageSize {
		return nil, fmt.Errorf("node: encode items record node: %w", ErrDataTooLarge)
	}

	buf := make([]byte, pageSize)
	encodeHeader(buf, Header{Kind: n.Kind, Next: n.Next, Count: uint32(len(n.Records))})
	off := HeaderSize
	for _, r := range n.Records {
		encodeItemsRecord(buf[off:off+ItemsRecordSize], r)
		off += ItemsRecordSize
	}
	zeroPad(buf, off)
	return buf, nil
}

// DecodeItemsRecordNode unpacks a multi-tree start/leaf page.
func DecodeItemsRecordNode(page []byte, pageSize, order int) (ItemsRecordNode, error) {
	if len(page) != pageSize {
		return ItemsRecordNode{}, fmt.Errorf("node: decode items record node: %w", ErrPageLengthInvalid)
	}
	h, err := decodeHeader(page)
	if err != nil {
		return ItemsRecordNode{}, err
	}
	if !h.Kind.IsRecordBearing() {
		return ItemsRecordNode{}, fmt.Errorf("node: decode items record node: got %s: %w", h.Kind, ErrWrongNodeKind)
	}
	if int(h.Count) > order {
		return ItemsRecordNode{}, fmt.Errorf("node: decode items record node: %d records > order %d: %w", h.Count, order, ErrEntryCountError)
	}

	records := make([]ItemsRecord, h.Count)
	off := HeaderSize
	for i := range records {
		if off+ItemsRecordSize > len(page) {
			return ItemsRecordNode{}, fmt.Errorf("node: decode items record node: truncated record %d: %w", i, ErrPageLengthInvalid)
		}
		rec, err := decodeItemsRecord(page[off : off+ItemsRecordSize])
		if err != nil {
			return ItemsRecordNode{}, err
		}
		records[i] = rec
		off += ItemsRecordSize
	}
	return ItemsRecordNode{Kind: h.Kind, Next: h.Next, Records: records}, nil
}
