package node

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPageSize = 256

func mustKey(t *testing.T) uuid.UUID {
	t.Helper()
	k, err := uuid.NewRandom()
	require.NoError(t, err)
	return k
}

func TestPeekKind(t *testing.T) {
	page := make([]byte, testPageSize)
	page[0] = byte(KindLeaf)
	k, err := PeekKind(page)
	require.NoError(t, err)
	assert.Equal(t, KindLeaf, k)

	page[0] = 'Z'
	_, err = PeekKind(page)
	assert.ErrorIs(t, err, ErrWrongNodeKind)
}

func TestHeaderRoundTrip(t *testing.T) {
	buf := make([]byte, HeaderSize)
	encodeHeader(buf, Header{Kind: KindRoot, Next: 7, Count: 3})
	h, err := decodeHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, Header{Kind: KindRoot, Next: 7, Count: 3}, h)
}

func TestChecksumDiffersOnContent(t *testing.T) {
	a := Checksum([]byte("ab"), []byte("cd"))
	b := Checksum([]byte("ab"), []byte("ce"))
	assert.NotEqual(t, a, b)
}

func TestSimpleRecordRoundTrip(t *testing.T) {
	key := mustKey(t)
	value := []byte("0123456789ABCDEF")
	rec := NewSimpleRecord(key, value)

	buf := make([]byte, SimpleRecordSize(len(value)))
	encodeSimpleRecord(buf, rec, len(value))

	got, err := decodeSimpleRecord(buf, len(value))
	require.NoError(t, err)
	assert.Equal(t, key, got.Key)
	assert.Equal(t, value, got.Value)
}

func TestSimpleRecordChecksumMismatch(t *testing.T) {
	key := mustKey(t)
	value := []byte("0123456789ABCDEF")
	rec := NewSimpleRecord(key, value)

	buf := make([]byte, SimpleRecordSize(len(value)))
	encodeSimpleRecord(buf, rec, len(value))
	buf[5] ^= 0xFF // corrupt a key byte

	_, err := decodeSimpleRecord(buf, len(value))
	assert.ErrorIs(t, err, ErrChecksumError)
}

func TestRecordNodeRoundTrip(t *testing.T) {
	const valueSize = 8
	const order = 4
	recs := []SimpleRecord{
		NewSimpleRecord(mustKey(t), []byte("aaaaaaaa")),
		NewSimpleRecord(mustKey(t), []byte("bbbbbbbb")),
	}
	n := RecordNode{Kind: KindLeaf, Next: 42, Records: recs}

	page, err := EncodeRecordNode(n, testPageSize, order, valueSize)
	require.NoError(t, err)
	assert.Len(t, page, testPageSize)

	got, err := DecodeRecordNode(page, testPageSize, order, valueSize)
	require.NoError(t, err)
	assert.Equal(t, KindLeaf, got.Kind)
	assert.EqualValues(t, 42, got.Next)
	require.Len(t, got.Records, 2)
	assert.Equal(t, recs[0].Key, got.Records[0].Key)
}

func TestRecordNodeRejectsWrongKind(t *testing.T) {
	n := RecordNode{Kind: KindStructure}
	_, err := EncodeRecordNode(n, testPageSize, 4, 8)
	assert.ErrorIs(t, err, ErrWrongNodeKind)
}

func TestRecordNodeRejectsTooManyRecords(t *testing.T) {
	recs := make([]SimpleRecord, 5)
	for i := range recs {
		recs[i] = NewSimpleRecord(mustKey(t), []byte("aaaaaaaa"))
	}
	n := RecordNode{Kind: KindLeaf, Next: NoPage, Records: recs}
	_, err := EncodeRecordNode(n, testPageSize, 4, 8)
	assert.ErrorIs(t, err, ErrEntryCountError)
}

func TestRecordNodeRejectsOversizedPayload(t *testing.T) {
	recs := []SimpleRecord{NewSimpleRecord(mustKey(t), make([]byte, 500))}
	n := RecordNode{Kind: KindLeaf, Next: NoPage, Records: recs}
	_, err := EncodeRecordNode(n, testPageSize, 4, 500)
	assert.ErrorIs(t, err, ErrDataTooLarge)
}

func TestStructureRoundTrip(t *testing.T) {
	refs := []Reference{
		{Before: 1, After: 2, Key: mustKey(t)},
		{Before: 2, After: 3, Key: mustKey(t)},
	}
	n := StructureNode{Kind: KindRoot, Refs: refs}

	page, err := EncodeStructure(n, testPageSize, 8)
	require.NoError(t, err)

	got, err := DecodeStructure(page, testPageSize, 8)
	require.NoError(t, err)
	assert.Equal(t, KindRoot, got.Kind)
	require.Len(t, got.Refs, 2)
	assert.Equal(t, refs[1].Key, got.Refs[1].Key)
}

func TestItemsRecordRoundTrip(t *testing.T) {
	key := mustKey(t)
	rec := NewItemsRecord(key, 9, 3)

	buf := make([]byte, ItemsRecordSize)
	encodeItemsRecord(buf, rec)

	got, err := decodeItemsRecord(buf)
	require.NoError(t, err)
	assert.Equal(t, key, got.Key)
	assert.EqualValues(t, 9, got.Page)
	assert.EqualValues(t, 3, got.Count)
}

func TestItemsRecordNodeRoundTrip(t *testing.T) {
	recs := []ItemsRecord{
		NewItemsRecord(mustKey(t), 1, 2),
		NewItemsRecord(mustKey(t), 2, 0),
	}
	n := ItemsRecordNode{Kind: KindStart, Next: NoPage, Records: recs}

	page, err := EncodeItemsRecordNode(n, testPageSize, 4)
	require.NoError(t, err)

	got, err := DecodeItemsRecordNode(page, testPageSize, 4)
	require.NoError(t, err)
	assert.Equal(t, KindStart, got.Kind)
	require.Len(t, got.Records, 2)
	assert.EqualValues(t, 2, got.Records[0].Count)
}

func TestItemsCapacity(t *testing.T) {
	assert.Equal(t, (testPageSize-HeaderSize)/16, ItemsCapacity(testPageSize, 16))
	assert.Equal(t, 0, ItemsCapacity(testPageSize, 0))
}

func TestItemsNodeRoundTrip(t *testing.T) {
	const itemSize = 16
	capacity := ItemsCapacity(testPageSize, itemSize)
	items := [][]byte{
		[]byte("item-one--------")[:itemSize],
		[]byte("item-two--------")[:itemSize],
	}
	n := ItemsNode{Next: 11, Items: items}

	page, err := EncodeItemsNode(n, testPageSize, itemSize, capacity)
	require.NoError(t, err)

	got, err := DecodeItemsNode(page, testPageSize, itemSize, capacity)
	require.NoError(t, err)
	assert.EqualValues(t, 11, got.Next)
	require.Len(t, got.Items, 2)
	assert.Equal(t, items[0], got.Items[0])
}

func TestItemsNodeRejectsWrongItemSize(t *testing.T) {
	n := ItemsNode{Next: NoPage, Items: [][]byte{[]byte("short")}}
	_, err := EncodeItemsNode(n, testPageSize, 16, 10)
	assert.ErrorIs(t, err, ErrItemWrongSize)
}

func TestItemsNodeRejectsOverCapacity(t *testing.T) {
	items := make([][]byte, 3)
	for i := range items {
		items[i] = make([]byte, 16)
	}
	n := ItemsNode{Next: NoPage, Items: items}
	_, err := EncodeItemsNode(n, testPageSize, 16, 2)
	assert.ErrorIs(t, err, ErrItemCountError)
}

func TestDataNodeRoundTrip(t *testing.T) {
	blob := []byte("a value too large for one record, spilled out of line")
	n := DataNode{Next: 5, Blob: blob}

	page, err := EncodeDataNode(n, testPageSize)
	require.NoError(t, err)

	got, err := DecodeDataNode(page, testPageSize)
	require.NoError(t, err)
	assert.EqualValues(t, 5, got.Next)
	assert.Equal(t, blob, got.Blob)
	assert.EqualValues(t, len(blob), got.Length)
}

func TestDataNodeRejectsOversizedBlob(t *testing.T) {
	n := DataNode{Next: NoPage, Blob: make([]byte, testPageSize)}
	_, err := EncodeDataNode(n, testPageSize)
	assert.ErrorIs(t, err, ErrDataTooLarge)
}

func TestDataNodeDecodeRejectsBadLength(t *testing.T) {
	page, err := EncodeDataNode(DataNode{Next: NoPage, Blob: []byte("ok")}, testPageSize)
	require.NoError(t, err)
	// Corrupt the length prefix to claim more bytes than the page holds.
	page[HeaderSize] = 0x7F
	_, err = DecodeDataNode(page, testPageSize)
	assert.ErrorIs(t, err, ErrBlobSizeInvalid)
}

func TestEmptyNodeRoundTrip(t *testing.T) {
	page, err := EncodeEmptyNode(EmptyNode{Next: 3}, testPageSize)
	require.NoError(t, err)

	got, err := DecodeEmptyNode(page, testPageSize)
	require.NoError(t, err)
	assert.EqualValues(t, 3, got.Next)
}

func TestEmptyNodeRejectsWrongKind(t *testing.T) {
	page, err := EncodeRecordNode(RecordNode{Kind: KindLeaf, Next: NoPage}, testPageSize, 4, 8)
	require.NoError(t, err)
	_, err = DecodeEmptyNode(page, testPageSize)
	assert.ErrorIs(t, err, ErrWrongNodeKind)
}
