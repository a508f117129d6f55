package analyze

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uuidbtree/tree"
)

func TestRescueRebuildsEveryLiveRecord(t *testing.T) {
	dir := t.TempDir()
	inPath := filepath.Join(dir, "damaged.db")
	outPath := filepath.Join(dir, "rescued.db")

	keys := buildSimpleTree(t, inPath, 30)

	result, err := Rescue(inPath, outPath, RescueOptions{
		PageSize:  testTreePageSize,
		MetaSize:  64,
		Kind:      'S',
		Order:     4,
		ValueSize: 4,
	})
	require.NoError(t, err)
	assert.Equal(t, 30, result.Inserted)
	assert.Equal(t, 0, result.Skipped)

	out, err := tree.OpenSimple(outPath, tree.Config{Order: 4, ValueSize: 4, PageSize: testTreePageSize})
	require.NoError(t, err)
	defer out.Close()
	for _, k := range keys {
		_, err := out.Get(k)
		assert.NoError(t, err, "rescued tree should still contain %s", k)
	}
}

// Rescuing a rescue output must produce an identical record set.
func TestRescueIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	inPath := filepath.Join(dir, "in.db")
	oncePath := filepath.Join(dir, "once.db")
	twicePath := filepath.Join(dir, "twice.db")

	keys := buildSimpleTree(t, inPath, 25)
	opts := RescueOptions{PageSize: testTreePageSize, MetaSize: 64, Kind: 'S', Order: 4, ValueSize: 4}

	first, err := Rescue(inPath, oncePath, opts)
	require.NoError(t, err)
	second, err := Rescue(oncePath, twicePath, opts)
	require.NoError(t, err)
	assert.Equal(t, first.Inserted, second.Inserted)
	assert.Equal(t, 0, second.Skipped)

	out, err := tree.OpenSimple(twicePath, tree.Config{Order: 4, ValueSize: 4, PageSize: testTreePageSize})
	require.NoError(t, err)
	defer out.Close()
	for _, k := range keys {
		_, err := out.Get(k)
		assert.NoError(t, err)
	}
}

func TestRescueMultiRebuildsItemChains(t *testing.T) {
	dir := t.TempDir()
	inPath := filepath.Join(dir, "damaged_multi.db")
	outPath := filepath.Join(dir, "rescued_multi.db")

	in, err := tree.OpenMulti(inPath, tree.Config{Order: 4, ValueSize: 4, ItemOrder: 4, PageSize: testTreePageSize})
	require.NoError(t, err)
	key1 := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	key2 := uuid.MustParse("00000000-0000-0000-0000-000000000002")
	require.NoError(t, in.Insert(key1, [][]byte{{1, 0, 0, 0}, {2, 0, 0, 0}, {3, 0, 0, 0}}))
	require.NoError(t, in.Insert(key2, [][]byte{{4, 0, 0, 0}}))
	require.NoError(t, in.Close())

	result, err := Rescue(inPath, outPath, RescueOptions{
		PageSize:  testTreePageSize,
		MetaSize:  64,
		Kind:      'M',
		Order:     4,
		ValueSize: 4,
		ItemOrder: 4,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Inserted)

	out, err := tree.OpenMulti(outPath, tree.Config{Order: 4, ValueSize: 4, ItemOrder: 4, PageSize: testTreePageSize})
	require.NoError(t, err)
	defer out.Close()

	items1, err := out.Get(key1)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{{1, 0, 0, 0}, {2, 0, 0, 0}, {3, 0, 0, 0}}, items1)

	items2, err := out.Get(key2)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{{4, 0, 0, 0}}, items2)
}
