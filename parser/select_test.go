package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchbase/couchbase-lite-core-sub003/ast"
)

func mustParseJSON(t *testing.T, src string) ast.Value {
	t.Helper()
	v, err := ast.ParseJSONValue([]byte(src))
	require.NoError(t, err)
	return v
}

func TestParseDefaultWhat(t *testing.T) {
	root := ast.NewRootContext()
	defer root.Release()
	sel, err := Parse(root, mustParseJSON(t, `{"WHERE": true}`))
	require.NoError(t, err)
	require.Len(t, sel.What, 2)
	assert.Equal(t, "_doc", sel.From.AliasName)
}

func TestParseExplicitAliasWins(t *testing.T) {
	root := ast.NewRootContext()
	defer root.Release()
	sel, err := Parse(root, mustParseJSON(t, `{
		"WHAT": [["AS", [".", "_id"], "id"]]
	}`))
	require.NoError(t, err)
	require.Len(t, sel.What, 1)
	assert.Equal(t, "id", sel.What[0].ColumnName)
}

func TestParseCrossJoinRejectsOn(t *testing.T) {
	root := ast.NewRootContext()
	defer root.Release()
	_, err := Parse(root, mustParseJSON(t, `{
		"FROM": [
			{"COLLECTION": "a", "AS": "a"},
			{"COLLECTION": "b", "AS": "b", "JOIN": "CROSS", "ON": true}
		]
	}`))
	require.Error(t, err)
}

func TestParseMissingOnForJoinFails(t *testing.T) {
	root := ast.NewRootContext()
	defer root.Release()
	_, err := Parse(root, mustParseJSON(t, `{
		"FROM": [
			{"COLLECTION": "a", "AS": "a"},
			{"COLLECTION": "b", "AS": "b", "JOIN": "LEFT"}
		]
	}`))
	require.Error(t, err)
}

func TestParseLimitWrapsNonLiteralInGreatest(t *testing.T) {
	root := ast.NewRootContext()
	defer root.Release()
	sel, err := Parse(root, mustParseJSON(t, `{"LIMIT": ["$", "n"]}`))
	require.NoError(t, err)
	fn, ok := sel.Limit.(*ast.FunctionCall)
	require.True(t, ok)
	assert.Equal(t, "greatest", fn.Def.Name)
}

func TestParseNegativeLimitLiteralFails(t *testing.T) {
	root := ast.NewRootContext()
	defer root.Release()
	_, err := Parse(root, mustParseJSON(t, `{"LIMIT": -1}`))
	require.Error(t, err)
}

func TestParseIndexSourceSharedByIdentity(t *testing.T) {
	root := ast.NewRootContext()
	defer root.Release()
	sel, err := Parse(root, mustParseJSON(t, `{
		"WHERE": ["AND",
			["MATCH()", [".", "titleIdx"], "hello"],
			["RANK()", [".", "titleIdx"]]
		]
	}`))
	require.NoError(t, err)
	require.Len(t, sel.IndexSources, 1)
	assert.Equal(t, "<idx1>", sel.IndexSources[0].Alias)
}
