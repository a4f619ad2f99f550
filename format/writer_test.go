package format_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchbase/couchbase-lite-core-sub003/ast"
	"github.com/couchbase/couchbase-lite-core-sub003/format"
	"github.com/couchbase/couchbase-lite-core-sub003/parser"
)

func parseWhere(t *testing.T, json string) ast.Expr {
	t.Helper()
	root := ast.NewRootContext()
	t.Cleanup(root.Release)
	v, err := ast.ParseJSONValue([]byte(json))
	require.NoError(t, err)
	sel, err := parser.Parse(root, v)
	require.NoError(t, err)
	return sel.Where
}

func countRune(s string, r rune) int {
	n := 0
	for _, c := range s {
		if c == r {
			n++
		}
	}
	return n
}

func TestParenthesizationMinimality(t *testing.T) {
	// (a + b) * c needs one extra pair of parens around the lower-precedence
	// "+" nested inside "*", beyond the three fl_value(...) calls' own parens
	// and the "(_doc.flags & 1 = 0)" term the deleted-doc rewrite ANDs on.
	e := parseWhere(t, `{"WHERE": ["=", ["*", ["+", [".", "a"], [".", "b"]], [".", "c"]], 0]}`)
	sql := format.String(e)
	assert.Equal(t, 5, countRune(sql, '('))

	// a + b * c needs no grouping parens: "*" already binds tighter than "+";
	// only the three fl_value(...) calls and the deleted-doc term add parens.
	e2 := parseWhere(t, `{"WHERE": ["=", ["+", [".", "a"], ["*", [".", "b"], [".", "c"]]], 0]}`)
	sql2 := format.String(e2)
	assert.Equal(t, 4, countRune(sql2, '('))
}

// TestAnySatisfiesEqualsRewriteUsesGetterForm guards against ANY...SATISFIES
// "= value" regressing to wrapping its collection Property in fl_value(...):
// the original's writeFnGetter unpacks a bare property directly into its
// (alias.col, 'path') pair instead of nesting it inside fl_contains(...).
func TestAnySatisfiesEqualsRewriteUsesGetterForm(t *testing.T) {
	e := parseWhere(t, `{"WHERE": ["ANY", "X", [".", "names"], ["=", ["?", "X"], "Smith"]]}`)
	sql := format.String(e)
	assert.Contains(t, sql, "fl_contains(_doc.body, 'names', 'Smith')")
	assert.NotContains(t, sql, "fl_value")
}

// TestUnnestVirtualSourceUsesGetterForm guards against a non-materialized
// UNNEST FROM-item regressing to fl_each(fl_value(...)): fl_each over a bare
// property must unpack to (alias.col, 'path') rather than wrap in
// fl_value(...).
func TestUnnestVirtualSourceUsesGetterForm(t *testing.T) {
	root := ast.NewRootContext()
	defer root.Release()
	v, err := ast.ParseJSONValue([]byte(`{
		"FROM": [
			{"COLLECTION": "_", "AS": "_doc"},
			{"UNNEST": [".", "names"], "AS": "name"}
		]
	}`))
	require.NoError(t, err)
	sel, err := parser.Parse(root, v)
	require.NoError(t, err)
	var unnestSrc *ast.Source
	for _, src := range sel.Sources {
		if src.Unnest != nil {
			unnestSrc = src
		}
	}
	require.NotNil(t, unnestSrc)
	assert.False(t, unnestSrc.UnnestMaterialized)

	w := format.NewWriter()
	w.WriteSource(unnestSrc)
	sql := w.String()
	assert.Contains(t, sql, "fl_each(_doc.body, 'names')")
	assert.NotContains(t, sql, "fl_value")
}

func TestSelectStringEmitsFromAndWhere(t *testing.T) {
	root := ast.NewRootContext()
	defer root.Release()
	v, err := ast.ParseJSONValue([]byte(`{"WHERE": ["=", [".", "type"], "user"]}`))
	require.NoError(t, err)
	sel, err := parser.Parse(root, v)
	require.NoError(t, err)
	sel.From.TableName = "kv_default"

	sql := format.SelectString(sel)
	assert.Contains(t, sql, "SELECT")
	assert.Contains(t, sql, "FROM")
	assert.Contains(t, sql, "kv_default")
	assert.Contains(t, sql, "WHERE")
}
