package analyze

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uuidbtree/node"
	"uuidbtree/tree"
)

const testTreePageSize = 4096

func buildSimpleTree(t *testing.T, path string, n int) []uuid.UUID {
	t.Helper()
	tr, err := tree.OpenSimple(path, tree.Config{Order: 4, ValueSize: 4, PageSize: testTreePageSize})
	require.NoError(t, err)
	defer tr.Close()

	var keys []uuid.UUID
	for i := 0; i < n; i++ {
		k := uuid.New()
		keys = append(keys, k)
		require.NoError(t, tr.Insert(k, []byte{byte(i), 0, 0, 0}))
	}
	require.NoError(t, tr.Flush())
	return keys
}

func TestComputeStatsClassifiesPages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.db")
	buildSimpleTree(t, path, 20)

	st, err := ComputeStats(path, Options{PageSize: testTreePageSize, MetaSize: 64})
	require.NoError(t, err)

	assert.EqualValues(t, 'S', st.Kind)
	assert.Greater(t, st.TotalPages, int32(0))
	assert.Equal(t, 20, st.Records)
	assert.Greater(t, st.References, 0, "splitting 20 keys at order 4 should have promoted at least one reference")
	assert.NotEmpty(t, st.PagesByKind[node.KindLeaf])
	assert.Empty(t, st.Unknown)
	assert.Len(t, st.Fingerprints, int(st.TotalPages))
}

func TestComputeStatsSinglePageTreeHasNoReferences(t *testing.T) {
	path := filepath.Join(t.TempDir(), "small.db")
	buildSimpleTree(t, path, 2)

	st, err := ComputeStats(path, Options{PageSize: testTreePageSize, MetaSize: 64})
	require.NoError(t, err)
	assert.Equal(t, 2, st.Records)
	assert.Equal(t, 0, st.References)
	assert.NotEmpty(t, st.PagesByKind[node.KindStart])
}
