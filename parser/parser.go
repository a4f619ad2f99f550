// Package parser compiles a decoded query ast.Value into an ast.Select,
// implementing spec.md §4.1's recursive-descent grammar. It is the Go
// analogue of litecore::qt::SelectNode::parse / ExprNode::parse, split
// across this file (the panic/recover boundary), select.go (the SELECT
// statement grammar), expression.go (the expression grammar), and path.go
// (alias/path resolution).
package parser

import (
	"strings"

	"github.com/couchbase/couchbase-lite-core-sub003/ast"
)

// Parse compiles a root query value into a fully parsed and postprocessed
// Select, recovering any internal fail() panic into a returned error. root
// owns every node allocated during this call; the caller releases it (via
// root.Release()) once done with the result.
func Parse(root *ast.RootContext, v ast.Value) (sel *ast.Select, err error) {
	defer func() {
		if r := recover(); r != nil {
			if pe, ok := r.(parseError); ok {
				err = pe
				return
			}
			panic(r)
		}
	}()
	ctx := ast.NewParseContext(root, nil)
	sel = parseSelect(ctx, v)
	return sel, nil
}

// ParseExpr compiles a standalone expression (used by the façade's
// index-creation sub-paths: expression_sql, where_clause_sql,
// fts_expression_sql, vector_to_index_expression_sql) against an existing
// ParseContext that already has its stub Source(s) registered.
func ParseExpr(ctx *ast.ParseContext, v ast.Value) (e ast.Expr, err error) {
	defer func() {
		if r := recover(); r != nil {
			if pe, ok := r.(parseError); ok {
				err = pe
				return
			}
			panic(r)
		}
	}()
	e = parseExpr(ctx, v)
	return e, nil
}

// NewStubContext builds a ParseContext for the index-creation sub-paths
// described in spec.md §4.6: a single synthetic Source with the caller's
// alias, no FROM parsing, no deleted-doc rewriting.
func NewStubContext(root *ast.RootContext, alias string) *ast.ParseContext {
	ctx := ast.NewParseContext(root, nil)
	src := ast.NewSource(ctx)
	src.AliasName = alias
	src.ExplicitAlias = true
	src.ColumnName = alias
	ctx.From = src
	ctx.Sources = append(ctx.Sources, src)
	ctx.Aliases[strings.ToLower(alias)] = src
	return ctx
}
