package visitor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/couchbase/couchbase-lite-core-sub003/ast"
	"github.com/couchbase/couchbase-lite-core-sub003/token"
	"github.com/couchbase/couchbase-lite-core-sub003/visitor"
)

func numOp(operands ...ast.Expr) *ast.Op {
	def, ok := token.LookupOpByType(token.OpPlus)
	if !ok {
		panic("OpPlus missing from operation table")
	}
	return &ast.Op{Def: def, Operands: operands}
}

func lit(n float64) *ast.Literal {
	return &ast.Literal{Kind: ast.LitNumber, Num: n}
}

func TestWalkFuncVisitsEveryNode(t *testing.T) {
	tree := numOp(lit(1), numOp(lit(2), lit(3)))

	var count int
	visitor.WalkFunc(tree, func(n ast.Node) bool {
		count++
		return true
	})

	// top Op + lit(1) + nested Op + lit(2) + lit(3) = 5
	assert.Equal(t, 5, count)
}

func TestWalkFuncSkipsChildrenWhenFalse(t *testing.T) {
	tree := numOp(lit(1), numOp(lit(2), lit(3)))

	var visited []ast.Node
	visitor.WalkFunc(tree, func(n ast.Node) bool {
		visited = append(visited, n)
		if _, ok := n.(*ast.Op); ok && n != tree {
			return false // skip descending into the nested Op
		}
		return true
	})

	// top Op, lit(1), nested Op (not descended into) = 3
	assert.Len(t, visited, 3)
}

func TestRewriteReplacesLiterals(t *testing.T) {
	tree := numOp(lit(1), lit(2))

	visitor.Rewrite(tree, func(n ast.Node) ast.Node {
		if l, ok := n.(*ast.Literal); ok && l.Kind == ast.LitNumber {
			return &ast.Literal{Kind: ast.LitNumber, Num: l.Num * 10}
		}
		return n
	})

	assert.Equal(t, float64(10), tree.Operands[0].(*ast.Literal).Num)
	assert.Equal(t, float64(20), tree.Operands[1].(*ast.Literal).Num)
}

func TestInspectMatchesWalkFunc(t *testing.T) {
	tree := numOp(lit(1), lit(2))

	var inspected, walked int
	visitor.Inspect(tree, func(ast.Node) bool { inspected++; return true })
	visitor.WalkFunc(tree, func(ast.Node) bool { walked++; return true })

	assert.Equal(t, walked, inspected)
}
