package node

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// SimpleRecord is one leaf entry in the simple tree: a fixed-width value
// keyed by a UUID, with an optional out-of-line page reference (unused by
// the simple tree today, but present for on-disk compatibility with the
// record-entry layout spec.md describes) and a one-byte checksum over
// key ∥ value.
type SimpleRecord struct {
	Page     int32
	Key      uuid.UUID
	Value    []byte
	Checksum byte
}

// SimpleRecordSize returns the on-disk size of one record for the given
// fixed value width.
func SimpleRecordSize(valueSize int) int {
	return 4 + 16 + valueSize + 1
}

// NewSimpleRecord builds a record with its checksum filled in. value must
// already be exactly valueSize bytes (zero-padded by the caller).
func NewSimpleRecord(key uuid.UUID, value []byte) SimpleRecord {
	return SimpleRecord{
		Page:     NoPage,
		Key:      key,
		Value:    value,
		Checksum: Checksum(key[:], value),
	}
}

func encodeSimpleRecord(buf []byte, r SimpleRecord, valueSize int) {
	binary.BigEndian.PutUint32(buf[0:4], uint32(r.Page))
	copy(buf[4:20], r.Key[:])
	copy(buf[20:20+valueSize], r.Value)
	buf[20+valueSize] = r.Checksum
}

func decodeSimpleRecord(buf []byte, valueSize int) (SimpleRecord, error) {
	r := SimpleRecord{
		Page:  int32(binary.BigEndian.Uint32(buf[0:4])),
		Key:   uuid.UUID(buf[4:20]),
		Value: append([]byte(nil), buf[20:20+valueSize]...),
	}
	r.Checksum = buf[20+valueSize]
	want := Checksum(r.Key[:], r.Value)
	if r.Checksum != want {
		return SimpleRecord{}, fmt.Errorf("node: decode record %s: %w", r.Key, ErrChecksumError)
	}
	return r, nil
}

// RecordNode is the decoded form of a Start ('S') or Leaf ('L') page in
// the simple tree: a Header plus its ordered, strictly-key-ascending
// records.
type RecordNode struct {
	Kind    Kind // KindStart or KindLeaf
	Next    int32
	Records []SimpleRecord
}

// EncodeRecordNode packs a start/leaf node into exactly pageSize bytes.
func EncodeRecordNode(n RecordNode, pageSize, order, valueSize int) ([]byte, error) {
	if !n.Kind.IsRecordBearing() {
		return nil, fmt.Errorf("node: encode record node: %w", ErrWrongNodeKind)
	}
	if len(n.Records) > order {
		return nil, fmt.Errorf("node: encode record node: %d records > order %d: %w", len(n.Records), order, ErrEntryCountError)
	}
	recSize := SimpleRecordSize(valueSize)
	need := HeaderSize + len(n.Records)*recSize
	if need > pageSize {
		return nil, fmt.Errorf("node: encode record node: %w", ErrDataTooLarge)
	}

	buf := make([]byte, pageSize)
	encodeHeader(buf, Header{Kind: n.Kind, Next: n.Next, Count: uint32(len(n.Records))})
	off := HeaderSize
	for _, r := range n.Records {
		encodeSimpleRecord(buf[off:off+recSize], r, valueSize)
		off += recSize
	}
	zeroPad(buf, off)
	return buf, nil
}

// DecodeRecordNode unpacks a start/leaf page.
func DecodeRecordNode(page []byte, pageSize, order, valueSize int) (RecordNode, error) {
	if len(page) != pageSize {
		return RecordNode{}, fmt.Errorf("node: decode record node: %w", ErrPageLengthInvalid)
	}
	h, err := decodeHeader(page)
	if err != nil {
		return RecordNode{}, err
	}
	if !h.Kind.IsRecordBearing() {
		return RecordNode{}, fmt.Errorf("node: decode record node: got %s: %w", h.Kind, ErrWrongNodeKind)
	}
	if int(h.Count) > order {
		return RecordNode{}, fmt.Errorf("node: decode record node: %d records > order %d: %w", h.Count, order, ErrEntryCountError)
	}

	recSize := SimpleRecordSize(valueSize)
	records := make([]SimpleRecord, h.Count)
	off := HeaderSize
	for i := range records {
		if off+recSize > len(page) {
			return RecordNode{}, fmt.Errorf("node: decode record node: truncated record %d: %w", i, ErrPageLengthInvalid)
		}
		rec, err := decodeSimpleRecord(page[off:off+recSize], valueSize)
		if err != nil {
			return RecordNode{}, err
		}
		records[i] = rec
		off += recSize
	}
	return RecordNode{Kind: h.Kind, Next: h.Next, Records: records}, nil
}
