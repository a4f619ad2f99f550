package ast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchbase/couchbase-lite-core-sub003/token"
)

// TestDetectAggregateFromFunctionFlag guards against the aggregate-flag
// regressing to never being set: a bare COUNT() call anywhere in the tree,
// with no DISTINCT/GROUP_BY, must still mark the Select aggregate.
func TestDetectAggregateFromFunctionFlag(t *testing.T) {
	countDef, ok := token.FunctionByName("count")
	require.True(t, ok)

	fn := &FunctionCall{Def: countDef}
	w := &What{Expression: fn}
	sel := &Select{What: []*What{w}}
	fn.SetParent(w)

	sel.detectAggregate()
	assert.True(t, sel.IsAggregate)
}

func TestDetectAggregateFalseByDefault(t *testing.T) {
	sel := &Select{}
	sel.detectAggregate()
	assert.False(t, sel.IsAggregate)
}

// TestIndexSourceAliasIsMinted guards against IndexSource.Alias regressing
// to the empty string: every IndexSource created through
// findOrCreateIndexSource must receive a distinct "<idxN>" alias from the
// owning RootContext.
func TestIndexSourceAliasIsMinted(t *testing.T) {
	root := NewRootContext()
	sel := &Select{}
	m1 := &Match{IndexProperty: &Property{Path: KeyPath{Components: []PathComponent{{Key: "title"}}}}}
	idx := sel.findOrCreateIndexSource(root, m1, indexKey(m1))
	assert.Equal(t, "<idx1>", idx.Alias)

	m2 := &Match{IndexProperty: &Property{Path: KeyPath{Components: []PathComponent{{Key: "body"}}}}}
	idx2 := sel.findOrCreateIndexSource(root, m2, indexKey(m2))
	assert.Equal(t, "<idx2>", idx2.Alias)
	assert.NotSame(t, idx, idx2)
}

func TestIndexSourceReusedByIdentity(t *testing.T) {
	root := NewRootContext()
	sel := &Select{}
	path := KeyPath{Components: []PathComponent{{Key: "title"}}}
	m1 := &Match{IndexProperty: &Property{Path: path}}
	m2 := &Match{IndexProperty: &Property{Path: path}}
	idx1 := sel.findOrCreateIndexSource(root, m1, indexKey(m1))
	idx2 := sel.findOrCreateIndexSource(root, m2, indexKey(m2))
	assert.Same(t, idx1, idx2)
}
