package sqlitedelegate_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qt "github.com/couchbase/couchbase-lite-core-sub003"
	"github.com/couchbase/couchbase-lite-core-sub003/internal/sqlitedelegate"
)

func openTestDelegate(t *testing.T, opts ...sqlitedelegate.Option) *sqlitedelegate.Delegate {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.sqlite")
	d, err := sqlitedelegate.Open(path, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestCollectionTableNameDefaultsScopeAndCollection(t *testing.T) {
	d := openTestDelegate(t)
	name, err := d.CollectionTableName("", "", qt.LiveDocs)
	require.NoError(t, err)
	assert.Equal(t, "kv__default__default", name)
}

func TestCollectionTableNameNamedCollection(t *testing.T) {
	d := openTestDelegate(t)
	name, err := d.CollectionTableName("inventory", "items", qt.LiveDocs)
	require.NoError(t, err)
	assert.Equal(t, "kv_inventory_items", name)
}

func TestCollectionTableNameSharesTableAcrossDeletionStatus(t *testing.T) {
	d := openTestDelegate(t)
	live, err := d.CollectionTableName("", "", qt.LiveDocs)
	require.NoError(t, err)
	both, err := d.CollectionTableName("", "", qt.LiveAndDeletedDocs)
	require.NoError(t, err)
	assert.Equal(t, live, both)
}

func TestFTSTableNameSanitizesPropertyPath(t *testing.T) {
	d := openTestDelegate(t)
	name, err := d.FTSTableName("kv_default", `title["en"]`)
	require.NoError(t, err)
	assert.Equal(t, `kv_default::title_en`, name)
}

func TestPredictiveTableNameRequiresFeatureGate(t *testing.T) {
	d := openTestDelegate(t)
	_, err := d.PredictiveTableName("kv_default", "embedding")
	assert.Error(t, err)

	withPredictive := openTestDelegate(t, sqlitedelegate.WithPredictiveQueries())
	name, err := withPredictive.PredictiveTableName("kv_default", "embedding")
	require.NoError(t, err)
	assert.Contains(t, name, "predictive")
}

func TestVectorTableNameRequiresFeatureGate(t *testing.T) {
	d := openTestDelegate(t)
	_, err := d.VectorTableName("", "", "embedding", "cosine")
	assert.Error(t, err)

	withVector := openTestDelegate(t, sqlitedelegate.WithVectorSearch())
	name, err := withVector.VectorTableName("", "", "embedding", "cosine")
	require.NoError(t, err)
	assert.Contains(t, name, "cosine")
}

func TestTableExistsFalseForUnknownTable(t *testing.T) {
	d := openTestDelegate(t)
	assert.False(t, d.TableExists("nonexistent_table"))
}

func TestCollatorCachesPerLocale(t *testing.T) {
	d := openTestDelegate(t)
	c1 := d.Collator("en_US")
	c2 := d.Collator("en_US")
	assert.Same(t, c1, c2)

	c3 := d.Collator("fr_FR")
	assert.NotSame(t, c1, c3)
}

func TestNewDocumentKeyIsNonEmptyAndUnique(t *testing.T) {
	a := sqlitedelegate.NewDocumentKey()
	b := sqlitedelegate.NewDocumentKey()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}
