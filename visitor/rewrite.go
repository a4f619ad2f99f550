package visitor

import "github.com/couchbase/couchbase-lite-core-sub003/ast"

// Rewrite traverses the AST post-order (children first, then the node
// itself), letting fn replace any node. Returns the (possibly replaced)
// root. Adapted from the teacher's visitor/rewrite.go; since this AST's
// node types are heterogeneous structs rather than a single tagged union,
// replacement is spliced back into the known container fields (Op operands,
// FunctionCall args, Select's What/Sources/Where/etc.) via a type switch,
// mirroring ast.Children's own type switch.
func Rewrite(n ast.Node, fn func(ast.Node) ast.Node) ast.Node {
	if n == nil {
		return n
	}
	switch v := n.(type) {
	case *ast.Op:
		for i, op := range v.Operands {
			if r := Rewrite(op, fn); r != nil {
				v.Operands[i], _ = r.(ast.Expr)
			}
		}
		if v.CaseOperand != nil {
			if r := Rewrite(v.CaseOperand, fn); r != nil {
				v.CaseOperand, _ = r.(ast.Expr)
			}
		}
		for i := range v.Whens {
			if r := Rewrite(v.Whens[i].Cond, fn); r != nil {
				v.Whens[i].Cond, _ = r.(ast.Expr)
			}
			if r := Rewrite(v.Whens[i].Result, fn); r != nil {
				v.Whens[i].Result, _ = r.(ast.Expr)
			}
		}
		if v.Else != nil {
			if r := Rewrite(v.Else, fn); r != nil {
				v.Else, _ = r.(ast.Expr)
			}
		}
	case *ast.FunctionCall:
		for i, a := range v.Args {
			if r := Rewrite(a, fn); r != nil {
				v.Args[i], _ = r.(ast.Expr)
			}
		}
	case *ast.AnyEvery:
		if r := Rewrite(v.Collection, fn); r != nil {
			v.Collection, _ = r.(ast.Expr)
		}
		if r := Rewrite(v.Predicate, fn); r != nil {
			v.Predicate, _ = r.(ast.Expr)
		}
	case *ast.What:
		if r := Rewrite(v.Expression, fn); r != nil {
			v.Expression, _ = r.(ast.Expr)
		}
	case *ast.Source:
		if v.JoinOn != nil {
			if r := Rewrite(v.JoinOn, fn); r != nil {
				v.JoinOn, _ = r.(ast.Expr)
			}
		}
		if v.Unnest != nil {
			if r := Rewrite(v.Unnest, fn); r != nil {
				v.Unnest, _ = r.(ast.Expr)
			}
		}
	case *ast.Select:
		for _, w := range v.What {
			Rewrite(w, fn)
		}
		for _, s := range v.Sources {
			Rewrite(s, fn)
		}
		if v.Where != nil {
			if r := Rewrite(v.Where, fn); r != nil {
				v.Where, _ = r.(ast.Expr)
			}
		}
		for i, g := range v.GroupBy {
			if r := Rewrite(g, fn); r != nil {
				v.GroupBy[i], _ = r.(ast.Expr)
			}
		}
		if v.Having != nil {
			if r := Rewrite(v.Having, fn); r != nil {
				v.Having, _ = r.(ast.Expr)
			}
		}
		for i := range v.OrderBy {
			if r := Rewrite(v.OrderBy[i].Expr, fn); r != nil {
				v.OrderBy[i].Expr, _ = r.(ast.Expr)
			}
		}
	}
	return fn(n)
}
