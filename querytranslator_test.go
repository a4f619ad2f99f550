package qt_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qt "github.com/couchbase/couchbase-lite-core-sub003"
	"github.com/couchbase/couchbase-lite-core-sub003/ast"
)

// fakeDelegate is a minimal in-memory qt.Delegate for exercising the
// façade without a real SQLite database, in the teacher's table-driven
// testify style.
type fakeDelegate struct {
	predictive, vector bool
}

func (f *fakeDelegate) TableExists(name string) bool { return true }

func (f *fakeDelegate) CollectionTableName(scope, collection string, status qt.DeletionStatus) (string, error) {
	if scope == "" {
		scope = "_default"
	}
	if collection == "" {
		collection = "_default"
	}
	return fmt.Sprintf("kv_%s_%s", scope, collection), nil
}

func (f *fakeDelegate) FTSTableName(onTable, property string) (string, error) {
	return onTable + "::" + property, nil
}

func (f *fakeDelegate) UnnestedTableName(onTable, property string) (string, error) {
	return onTable + "::unnest::" + property, nil
}

func (f *fakeDelegate) PredictiveTableName(onTable, property string) (string, error) {
	if !f.predictive {
		return "", fmt.Errorf("predictive queries not enabled")
	}
	return onTable + "::predictive::" + property, nil
}

func (f *fakeDelegate) VectorTableName(scope, collection, propertyJSON, metric string) (string, error) {
	if !f.vector {
		return "", fmt.Errorf("vector search not enabled")
	}
	return fmt.Sprintf("kv_%s_%s::vector::%s::%s", scope, collection, propertyJSON, metric), nil
}

func mustParse(t *testing.T, tr *qt.QueryTranslator, json string) {
	t.Helper()
	require.NoError(t, tr.ParseJSON([]byte(json)))
}

func TestParseSimpleWhere(t *testing.T) {
	tr := qt.New(&fakeDelegate{})
	mustParse(t, tr, `{"WHAT": ["name"], "WHERE": ["=", [".", "type"], "user"]}`)
	defer tr.Release()

	assert.Contains(t, tr.SQL(), "SELECT")
	assert.Contains(t, tr.SQL(), "WHERE")
	assert.Equal(t, []string{"kv__default__default"}, tr.CollectionTablesUsed())
	assert.False(t, tr.IsAggregateQuery())
	assert.Equal(t, []string{"name"}, tr.ColumnTitles())
}

func TestParseBareExpressionFallback(t *testing.T) {
	tr := qt.New(&fakeDelegate{})
	mustParse(t, tr, `["=", [".", "type"], "user"]`)
	defer tr.Release()

	assert.Equal(t, []string{"_id", "_sequence"}, tr.ColumnTitles())
}

func TestParseAggregateGroupBy(t *testing.T) {
	tr := qt.New(&fakeDelegate{})
	mustParse(t, tr, `{
		"WHAT": [["AS", ["COUNT()", [".", "x"]], "n"], "type"],
		"GROUP_BY": ["type"]
	}`)
	defer tr.Release()

	assert.True(t, tr.IsAggregateQuery())
	assert.Contains(t, tr.SQL(), "GROUP BY")
}

func TestParseParametersCollected(t *testing.T) {
	tr := qt.New(&fakeDelegate{})
	mustParse(t, tr, `{"WHERE": ["=", [".", "name"], ["$", "name"]]}`)
	defer tr.Release()

	assert.Equal(t, []string{"name"}, tr.Parameters())
}

func TestParseJoin(t *testing.T) {
	tr := qt.New(&fakeDelegate{})
	mustParse(t, tr, `{
		"FROM": [
			{"COLLECTION": "orders", "AS": "o"},
			{"COLLECTION": "lines", "AS": "l", "ON": ["=", [".", "l", "orderID"], [".", "o", "id"]]}
		],
		"WHAT": ["o.id"]
	}`)
	defer tr.Release()

	assert.Contains(t, tr.SQL(), "JOIN")
	assert.ElementsMatch(t, []string{"kv__default_orders", "kv__default_lines"}, tr.CollectionTablesUsed())
}

func TestParseDuplicateAliasFails(t *testing.T) {
	tr := qt.New(&fakeDelegate{})
	err := tr.ParseJSON([]byte(`{
		"FROM": [
			{"COLLECTION": "orders", "AS": "x"},
			{"COLLECTION": "lines", "AS": "x", "ON": true}
		]
	}`))
	require.Error(t, err)
	assert.True(t, qt.IsInvalidQuery(err))
}

func TestParseRankWithoutMatchFails(t *testing.T) {
	tr := qt.New(&fakeDelegate{})
	err := tr.ParseJSON([]byte(`{"WHERE": [">", ["RANK()", [".", "idx"]], 0]}`))
	require.Error(t, err)
	assert.True(t, qt.IsInvalidQuery(err))
}

func TestDeletedDocRewriteOnDefaultCollection(t *testing.T) {
	tr := qt.New(&fakeDelegate{})
	mustParse(t, tr, `{"WHERE": ["=", [".", "type"], "user"]}`)
	defer tr.Release()

	assert.Contains(t, tr.SQL(), "_doc.flags & 1 = 0")
}

func TestExpressionSQLSubPath(t *testing.T) {
	tr := qt.New(&fakeDelegate{})
	v, err := ast.ParseJSONValue([]byte(`["+", [".", "a"], 1]`))
	require.NoError(t, err)
	sql, err := tr.ExpressionSQL(v, "new")
	require.NoError(t, err)
	assert.Contains(t, sql, "+")
}

func TestWriteCreateIndex(t *testing.T) {
	tr := qt.New(&fakeDelegate{})
	what, err := ast.ParseJSONValue([]byte(`[".", "name"]`))
	require.NoError(t, err)
	sql, err := tr.WriteCreateIndex("name_idx", "kv_default", []ast.Value{what}, ast.Value{}, false)
	require.NoError(t, err)
	assert.Contains(t, sql, "CREATE INDEX")
	assert.Contains(t, sql, "name_idx")
}
