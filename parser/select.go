package parser

import (
	"strings"

	"github.com/couchbase/couchbase-lite-core-sub003/ast"
	"github.com/couchbase/couchbase-lite-core-sub003/token"
)

// forbiddenAliasChars implements spec.md §4.1 step 1's "validate AS
// identifiers against ['\"\\:]" rule.
const forbiddenAliasChars = `'":\`

func validAliasName(alias string) bool {
	return alias != "" && !strings.ContainsAny(alias, forbiddenAliasChars)
}

// parseSelect is the top-level entry point for a root query value: a dict,
// a ["SELECT", {…}] array, or (per spec.md §4.1's fallback) a bare
// expression treated as a WHERE clause against the default "_doc" source.
func parseSelect(ctx *ast.ParseContext, v ast.Value) *ast.Select {
	sel := &ast.Select{}
	ctx.Select = sel

	dict, isDict := asSelectDict(v)
	if isDict {
		parseSelectDict(ctx, sel, dict)
	} else {
		addSource(ctx, sel, defaultDocSource(ctx))
		sel.Where = parseExpr(ctx, v)
		attach(sel, sel.Where)
	}

	if len(sel.What) == 0 {
		addDefaultWhat(ctx, sel, token.MetaID)
		addDefaultWhat(ctx, sel, token.MetaSequence)
	}

	if err := sel.Postprocess(ctx.Root); err != nil {
		fail("%v", err)
	}
	return sel
}

// parseNestedSelect implements spec.md §4.1's "SELECT" / "ALL" rule: a
// fresh ParseContext so the nested statement's aliases don't leak into (or
// see) the enclosing one, inheriting only the current collation.
func parseNestedSelect(parent *ast.ParseContext, v ast.Value) *ast.Select {
	nested := ast.NewParseContext(parent.Root, parent)
	return parseSelect(nested, v)
}

// asSelectDict recognizes a bare dict or a ["SELECT", {…}] / ["ALL", {…}]
// wrapper around one, per SelectNodes.cc's SelectNode::parse.
func asSelectDict(v ast.Value) (ast.Dict, bool) {
	if d, ok := v.AsDict(); ok {
		return d, true
	}
	if opName, args, ok := v.IsOperatorArray(); ok && len(args) == 1 {
		if strings.EqualFold(opName, "SELECT") || strings.EqualFold(opName, "SELECT()") ||
			strings.EqualFold(opName, "ALL") || strings.EqualFold(opName, "ALL()") {
			if d, ok := args[0].AsDict(); ok {
				return d, true
			}
		}
	}
	return ast.Dict{}, false
}

// pendingSourceExpr holds a Source's deferred ON/UNNEST value between step 1
// (FROM parsing) and step 4 (child-expression parsing), per spec.md §4.1.
type pendingSourceExpr struct {
	src          *ast.Source
	on, unnest   ast.Value
	hasOn, hasUnnest bool
}

func parseSelectDict(ctx *ast.ParseContext, sel *ast.Select, d ast.Dict) {
	// Step 1: FROM list -> Source nodes. Parsed first because later property
	// resolution depends on the declared sources and aliases.
	var pending []pendingSourceExpr
	if fromVal, ok := d.GetCaseInsensitive("FROM"); ok {
		items, ok := fromVal.AsArray()
		if !ok {
			fail("FROM must be an array")
		}
		for _, item := range items {
			itemDict, ok := item.AsDict()
			if !ok {
				fail("FROM item must be an object")
			}
			src, p := parseSourceDict(ctx, itemDict)
			addSource(ctx, sel, src)
			pending = append(pending, p)
		}
	}
	if len(sel.Sources) == 0 {
		addSource(ctx, sel, defaultDocSource(ctx))
	}
	if ctx.From == nil {
		fail("query has no primary FROM source")
	}

	// Step 2 is folded into addSource above (alias registration happens as
	// each source is added, matching SelectNode::addSource).

	// Step 3: WHAT list -> What wrappers, registering any explicit aliases;
	// expressions are deferred to step 5.
	var whatRaw []ast.Value
	if whatVal, ok := d.GetCaseInsensitive("WHAT"); ok {
		items, ok := whatVal.AsArray()
		if !ok {
			fail("WHAT must be an array")
		}
		for _, item := range items {
			w := ast.NewWhat(ctx)
			if opName, args, ok := item.IsOperatorArray(); ok && strings.EqualFold(opName, "AS") {
				if len(args) != 2 {
					fail("AS must have 2 operands")
				}
				alias, ok := args[1].AsString()
				if !ok || !validAliasName(alias) {
					fail("invalid identifier in AS")
				}
				w.ExplicitAlias = true
				w.ColumnName = alias
				whatRaw = append(whatRaw, args[0])
				registerAlias(ctx, w.ColumnName, w)
			} else {
				whatRaw = append(whatRaw, item)
			}
			w.SetParent(sel)
			sel.What = append(sel.What, w)
		}
	}

	// Step 4: parse each Source's ON/UNNEST expression, now that every
	// alias (source and result-column) is registered.
	for _, p := range pending {
		parseSourceChildExprs(ctx, p)
	}

	// Step 5: parse each What's expression. A bare string is a property-path
	// shortcut, per WhatNode::parseChildExprs.
	for i, w := range sel.What {
		raw := whatRaw[i]
		if s, ok := raw.AsString(); ok && !w.ExplicitAlias {
			kp, err := ast.ParsePath(s, nil)
			if err != nil {
				fail("%v", err)
			}
			w.Expression = buildPropertyNode(ctx, kp)
		} else {
			w.Expression = parseExpr(ctx, raw)
		}
		attach(w, w.Expression)
	}

	// Step 6: WHERE, ORDER_BY, DISTINCT, GROUP_BY, HAVING, LIMIT, OFFSET.
	if whereVal, ok := d.GetCaseInsensitive("WHERE"); ok {
		sel.Where = parseExpr(ctx, whereVal)
		attach(sel, sel.Where)
	}

	if orderVal, ok := d.GetCaseInsensitive("ORDER_BY"); ok {
		items, ok := orderVal.AsArray()
		if !ok {
			fail("ORDER_BY must be an array")
		}
		for _, item := range items {
			desc := false
			expr := item
			if opName, args, ok := item.IsOperatorArray(); ok && len(args) == 1 {
				switch {
				case strings.EqualFold(opName, "ASC"):
					expr = args[0]
				case strings.EqualFold(opName, "DESC"):
					desc = true
					expr = args[0]
				}
			}
			e := parseExpr(ctx, expr)
			attach(sel, e)
			sel.OrderBy = append(sel.OrderBy, ast.OrderTerm{Expr: e, Desc: desc})
		}
	}

	if distinctVal, ok := d.GetCaseInsensitive("DISTINCT"); ok {
		sel.Distinct, _ = distinctVal.AsBool()
	}

	if groupVal, ok := d.GetCaseInsensitive("GROUP_BY"); ok {
		items, ok := groupVal.AsArray()
		if !ok {
			fail("GROUP_BY must be an array")
		}
		for _, item := range items {
			var g ast.Expr
			if s, ok := item.AsString(); ok {
				kp, err := ast.ParsePath(s, nil)
				if err != nil {
					fail("%v", err)
				}
				g = buildPropertyNode(ctx, kp)
			} else {
				g = parseExpr(ctx, item)
			}
			if p, ok := g.(*ast.Property); ok {
				p.InGroupBy = true
			}
			attach(sel, g)
			sel.GroupBy = append(sel.GroupBy, g)
		}
	}

	if havingVal, ok := d.GetCaseInsensitive("HAVING"); ok {
		sel.Having = parseExpr(ctx, havingVal)
		attach(sel, sel.Having)
	}

	if limitVal, ok := d.GetCaseInsensitive("LIMIT"); ok {
		sel.Limit = parseLimitOrOffset(ctx, limitVal, "LIMIT")
		attach(sel, sel.Limit)
	}
	if offsetVal, ok := d.GetCaseInsensitive("OFFSET"); ok {
		sel.Offset = parseLimitOrOffset(ctx, offsetVal, "OFFSET")
		attach(sel, sel.Offset)
	}
}

// parseLimitOrOffset implements spec.md §4.1 step 6's "wrap a non-literal
// LIMIT/OFFSET in GREATEST(expr, 0)" rule.
func parseLimitOrOffset(ctx *ast.ParseContext, v ast.Value, name string) ast.Expr {
	expr := parseExpr(ctx, v)
	if lit, ok := expr.(*ast.Literal); ok {
		if lit.Kind != ast.LitNumber || lit.Num < 0 {
			fail("%s must be a non-negative integer", name)
		}
		return expr
	}
	fnDef, _ := token.FunctionByName("greatest")
	zero := ast.NewLiteral(ctx)
	zero.Kind, zero.Num = ast.LitNumber, 0
	fn := ast.NewFunctionCall(ctx)
	fn.Def = fnDef
	fn.Args = []ast.Expr{expr, zero}
	attachAll(fn, fn.Args)
	return fn
}

func addDefaultWhat(ctx *ast.ParseContext, sel *ast.Select, prop token.MetaProperty) {
	w := ast.NewWhat(ctx)
	w.Expression = &ast.MetaNode{Property: prop, Src: sel.From}
	attach(w, w.Expression)
	w.SetParent(sel)
	sel.What = append(sel.What, w)
}

func defaultDocSource(ctx *ast.ParseContext) *ast.Source {
	src := ast.NewSource(ctx)
	src.AliasName = "_doc"
	src.ColumnName = "_doc"
	return src
}

// parseSourceDict builds one FROM item's Source, deferring its ON/UNNEST
// expression (parseSourceChildExprs does that once every alias is known).
// Grounded on SelectNodes.cc's SourceNode(Dict, ParseContext&) constructor.
func parseSourceDict(ctx *ast.ParseContext, d ast.Dict) (*ast.Source, pendingSourceExpr) {
	src := ast.NewSource(ctx)

	explicitScope, explicitCollection := false, false
	if v, ok := d.GetCaseInsensitive("SCOPE"); ok {
		if s, ok := v.AsString(); ok && s != "" {
			explicitScope = true
			src.Scope = canonicalScope(s)
		}
	}
	if v, ok := d.GetCaseInsensitive("COLLECTION"); ok {
		if s, ok := v.AsString(); ok && s != "" {
			explicitCollection = true
			if s == "_" || s == "_default" {
				src.Collection = ""
				src.ColumnName = s
			} else {
				coll := s
				if i := strings.IndexByte(coll, '.'); i >= 0 {
					if src.Scope != "" {
						fail("if SCOPE is given, COLLECTION cannot contain a scope")
					}
					src.Scope, coll = canonicalScope(coll[:i]), canonicalScope(coll[i+1:])
					if src.Scope == "" || coll == "" {
						fail("%q is not a valid collection name", s)
					}
				}
				src.Collection = coll
				src.ColumnName = coll
			}
		}
	}
	if !explicitScope && !explicitCollection && ctx.From != nil {
		src.Scope, src.Collection = ctx.From.Scope, ctx.From.Collection
	}

	if v, ok := d.GetCaseInsensitive("AS"); ok {
		if alias, ok := v.AsString(); ok {
			if !validAliasName(alias) {
				fail("invalid alias 'AS %s'", alias)
			}
			src.ExplicitAlias = true
			src.AliasName = alias
			src.ColumnName = alias
		}
	} else {
		if !explicitCollection {
			fail("missing AS and COLLECTION in FROM item")
		}
		alias := src.ColumnName
		if src.Scope != "" {
			alias = src.Scope + "." + alias
		}
		src.AliasName = alias
	}

	if v, ok := d.GetCaseInsensitive("JOIN"); ok {
		if name, ok := v.AsString(); ok {
			src.Join = token.LookupJoin(name)
			if src.Join == token.JoinNone {
				fail("invalid JOIN type %q", name)
			}
		}
	}

	p := pendingSourceExpr{src: src}
	if v, ok := d.GetCaseInsensitive("UNNEST"); ok {
		p.unnest, p.hasUnnest = v, true
		// Placeholder until parseSourceChildExprs parses the real expression,
		// so addSource and alias resolution already treat this as an UNNEST.
		src.Unnest = &ast.RawSQL{}
		if src.Join != token.JoinNone {
			fail("UNNEST cannot accept a JOIN clause")
		}
	}
	if v, ok := d.GetCaseInsensitive("ON"); ok {
		p.on, p.hasOn = v, true
		if src.Join == token.JoinCross {
			fail("CROSS JOIN cannot accept an ON clause")
		}
		if p.hasUnnest {
			fail("UNNEST cannot accept an ON clause")
		}
		if src.Join == token.JoinNone {
			src.Join = token.JoinInner
		}
	} else if src.Join != token.JoinNone && src.Join != token.JoinCross {
		fail("missing ON for JOIN")
	}

	return src, p
}

// parseSourceChildExprs parses a Source's deferred ON/UNNEST expression.
func parseSourceChildExprs(ctx *ast.ParseContext, p pendingSourceExpr) {
	if p.hasOn {
		p.src.JoinOn = parseExpr(ctx, p.on)
		attach(p.src, p.src.JoinOn)
	}
	if p.hasUnnest {
		p.src.Unnest = parseExpr(ctx, p.unnest)
		attach(p.src, p.src.Unnest)
		p.src.UnnestMaterialized = isMaterializedUnnest(p.src.Unnest)
	}
}

// isMaterializedUnnest reports whether an UNNEST expression is a bare
// property path (eligible for a precomputed unnest-table JOIN) rather than
// an arbitrary expression, which always uses the virtual fl_each() form.
func isMaterializedUnnest(e ast.Expr) bool {
	_, ok := e.(*ast.Property)
	return ok
}

// addSource registers a Source's alias and, for the first non-join
// collection, establishes it as the Select's primary source. Grounded on
// SelectNode::addSource.
func addSource(ctx *ast.ParseContext, sel *ast.Select, src *ast.Source) *ast.Source {
	registerAlias(ctx, src.AliasName, src)
	if src.IsCollection() && !src.IsJoin() {
		if ctx.From != nil {
			fail("multiple non-join FROM items")
		}
		ctx.From = src
		sel.From = src
	} else if ctx.From == nil {
		fail("first FROM item must be primary source")
	}
	ctx.Sources = append(ctx.Sources, src)
	sel.Sources = append(sel.Sources, src)
	src.SetParent(sel)
	return src
}

func registerAlias(ctx *ast.ParseContext, alias string, node ast.Aliased) {
	key := strings.ToLower(alias)
	if _, exists := ctx.Aliases[key]; exists {
		fail("duplicate alias %q", alias)
	}
	ctx.Aliases[key] = node
}
