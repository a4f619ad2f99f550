// Package visitor implements generic AST traversal (Walk/Rewrite/Inspect)
// over the ast package's node types, adapted from the teacher's
// visitor/visitor.go: a preorder Walk driven by a Visitor interface, plus a
// WalkFunc/Inspect convenience wrapper. Tree shape comes from a single
// source of truth, ast.Children, rather than a duplicated type switch.
package visitor

import "github.com/couchbase/couchbase-lite-core-sub003/ast"

// Visitor is called with each node in the tree; if Visit returns false,
// that node's children are not visited.
type Visitor interface {
	Visit(n ast.Node) bool
}

// VisitorFunc adapts a plain function to the Visitor interface.
type VisitorFunc func(ast.Node) bool

func (f VisitorFunc) Visit(n ast.Node) bool { return f(n) }

// Walk traverses the AST preorder, calling v.Visit on n and (if it returns
// true) each descendant.
func Walk(v Visitor, n ast.Node) {
	if n == nil || !v.Visit(n) {
		return
	}
	for _, c := range ast.Children(n) {
		Walk(v, c)
	}
}

// WalkFunc traverses the AST calling fn for each node; if fn returns false
// for a node, its children are skipped.
func WalkFunc(n ast.Node, fn func(ast.Node) bool) {
	Walk(VisitorFunc(fn), n)
}

// Inspect is WalkFunc under the go/ast name; the return convention is the
// same (fn returning false stops descent into that node's children).
func Inspect(n ast.Node, fn func(ast.Node) bool) {
	WalkFunc(n, fn)
}
