// Package ast defines the abstract syntax tree the parser builds from a
// decoded query Value and the SQL writer renders. Node types are plain
// structs (no virtual writeSQL method): SQL emission is a type switch that
// lives entirely in the format package, so this package has no dependency
// on it, mirroring the teacher's ast/format split.
package ast

// Node is the base interface for all AST nodes: every node knows its
// parent, for the handful of callers (property/meta resolution, index-scope
// checks) that need to walk upward instead of downward.
type Node interface {
	Parent() Node
	SetParent(Node)
}

// Expr is any node that can appear in expression position.
type Expr interface {
	Node
	exprNode()
}

// Aliased is the common behavior of WhatNode and SourceNode: a named node
// that can be the target of a property-path resolution.
type Aliased interface {
	Node
	Alias() string
	HasExplicitAlias() bool
	MatchPath(path *KeyPath) bool
}

// base is embedded by every node to provide the parent back-reference.
type base struct {
	parent Node
}

func (b *base) Parent() Node     { return b.parent }
func (b *base) SetParent(p Node) { b.parent = p }

// setChild sets a child's parent pointer to owner, for any Node. Mirrors
// the original's Node::setChild helper.
func setChild(owner Node, child Node) {
	if child == nil {
		return
	}
	child.SetParent(owner)
}
