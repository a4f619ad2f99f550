package parser

import (
	"fmt"
	"strings"

	"github.com/couchbase/couchbase-lite-core-sub003/ast"
	"github.com/couchbase/couchbase-lite-core-sub003/format"
	"github.com/couchbase/couchbase-lite-core-sub003/token"
)

// parseExpr is the recursive value -> Expr compiler, dispatching exactly as
// spec.md §4.1 describes. Grounded on TranslatorUtils.cc's ParseNode/
// parseExpr and the teacher's own recursive-descent expression parser
// (parser/expression.go), generalized from SQL tokens to decoded JSON
// values.
func parseExpr(ctx *ast.ParseContext, v ast.Value) ast.Expr {
	if v.Kind() == ast.KindDict {
		return parseDictLiteral(ctx, v)
	}
	if v.Kind() != ast.KindArray {
		return newLiteralValue(ctx, v)
	}
	arr, _ := v.AsArray()
	if len(arr) == 0 {
		fail(`empty array is not a valid query expression; use ["[]"] for an empty array literal`)
	}
	opName, ok := arr[0].AsString()
	if !ok {
		fail("array expression must begin with a string operator name")
	}
	return parseOperatorArray(ctx, opName, arr[1:])
}

func parseExprList(ctx *ast.ParseContext, vals []ast.Value) []ast.Expr {
	out := make([]ast.Expr, len(vals))
	for i, v := range vals {
		out[i] = parseExpr(ctx, v)
	}
	return out
}

func attach(parent ast.Node, child ast.Node) {
	if child == nil {
		return
	}
	child.SetParent(parent)
}

func attachAll(parent ast.Node, children []ast.Expr) {
	for _, c := range children {
		attach(parent, c)
	}
}

func newLiteralValue(ctx *ast.ParseContext, v ast.Value) *ast.Literal {
	lit := ast.NewLiteral(ctx)
	switch v.Kind() {
	case ast.KindBool:
		b, _ := v.AsBool()
		lit.Kind, lit.B = ast.LitBool, b
	case ast.KindNumber:
		n, _ := v.AsNumber()
		lit.Kind, lit.Num = ast.LitNumber, n
	case ast.KindString:
		s, _ := v.AsString()
		lit.Kind, lit.Str = ast.LitString, s
	default:
		lit.Kind = ast.LitNull
	}
	return lit
}

// parseDictLiteral implements spec.md §4.1 rule 1: a bare dict literal
// becomes a dict_of(k1,v1,k2,v2,…) call.
func parseDictLiteral(ctx *ast.ParseContext, v ast.Value) ast.Expr {
	d, _ := v.AsDict()
	fnDef, _ := token.FunctionByName("dict_of")
	fn := ast.NewFunctionCall(ctx)
	fn.Def = fnDef
	args := make([]ast.Expr, 0, d.Len()*2)
	for _, k := range d.Keys() {
		val, _ := d.Get(k)
		keyLit := ast.NewLiteral(ctx)
		keyLit.Kind, keyLit.Str = ast.LitString, k
		args = append(args, keyLit, parseExpr(ctx, val))
	}
	fn.Args = args
	attachAll(fn, args)
	return fn
}

// parseOperatorArray implements spec.md §4.1 rules 2-4: table lookup first,
// then the "."/"_."/"$"/"?"/"()" prefix-suffix fallbacks.
func parseOperatorArray(ctx *ast.ParseContext, opName string, rest []ast.Value) ast.Expr {
	capped := len(rest)
	if capped > 9 {
		capped = 9
	}
	if def, nameMatched, arityOK := token.LookupOp(opName, capped); nameMatched {
		if !arityOK {
			fail("wrong number of arguments to %q", opName)
		}
		return dispatchOp(ctx, def, rest)
	}
	// Shorthand forms: the op string itself carries the "." path, "_."
	// object-property key, "$" parameter name, or "?" variable name,
	// instead of supplying it as a separate array element. Grounded on
	// spec.md §4.1's worked examples (e.g. [".book.library"], ["$AUTHOR"]).
	switch {
	case strings.HasPrefix(opName, "_.") && len(opName) > 2:
		if len(rest) < 1 {
			fail(`%q requires a value`, opName)
		}
		return buildObjectProp(ctx, rest[0], opName[2:])
	case strings.HasPrefix(opName, "."):
		kp, err := ast.ParsePath(opName, rest)
		if err != nil {
			fail("%v", err)
		}
		return buildPropertyNode(ctx, kp)
	case strings.HasPrefix(opName, "$") && len(opName) > 1:
		name := opName[1:]
		if !isAlnumUnderscore(name) {
			fail("invalid parameter name %q", name)
		}
		return &ast.Parameter{Name: name}
	case strings.HasPrefix(opName, "?") && len(opName) > 1:
		name := opName[1:]
		var result ast.Expr = &ast.Variable{Name: name}
		objDef, _ := token.LookupOpByType(token.OpObjectProp)
		for _, e := range rest {
			keyExpr := parseExpr(ctx, e)
			result = binaryOp(ctx, objDef, result, keyExpr)
		}
		return result
	case strings.HasSuffix(opName, "()"):
		fname := strings.TrimSuffix(opName, "()")
		if fn, nameMatched2, arityOK2 := token.LookupFn(fname, capped); nameMatched2 {
			if !arityOK2 {
				fail("wrong number of arguments to %q", opName)
			}
			return buildFunctionCall(ctx, fn, rest)
		}
		fail("unknown function %q", fname)
	}
	fail("unknown operator %q", opName)
	return nil
}

func buildFunctionCall(ctx *ast.ParseContext, def token.FunctionSpec, rest []ast.Value) ast.Expr {
	args := parseExprList(ctx, rest)
	if strings.EqualFold(def.Name, "array_count") && len(args) == 1 {
		if prop, ok := args[0].(*ast.Property); ok {
			prop.SQLFn = "fl_count"
			return prop
		}
	}
	fn := ast.NewFunctionCall(ctx)
	fn.Def = def
	fn.Args = args
	if def.Flags&token.FlagWantsCollate != 0 {
		c := ctx.Collation
		fn.Collation = &c
	}
	attachAll(fn, args)
	return fn
}

func binaryOp(ctx *ast.ParseContext, def token.Operation, lhs, rhs ast.Expr) *ast.Op {
	op := ast.NewOp(ctx)
	op.Def = def
	op.Operands = []ast.Expr{lhs, rhs}
	attach(op, lhs)
	attach(op, rhs)
	return op
}

// dispatchOp builds the AST node for a table-matched operator, per each
// operator-specific parse rule in spec.md §4.1.
func dispatchOp(ctx *ast.ParseContext, def token.Operation, rest []ast.Value) ast.Expr {
	switch def.Type {
	case token.OpSelect, token.OpAll:
		if len(rest) == 0 {
			fail("%s requires a body", def.Name)
		}
		return parseNestedSelect(ctx, rest[0])

	case token.OpAnd, token.OpOr:
		op := ast.NewOp(ctx)
		op.Def = def
		op.Operands = parseExprList(ctx, rest)
		attachAll(op, op.Operands)
		return op

	case token.OpNot:
		inner := parseExpr(ctx, rest[0])
		op := ast.NewOp(ctx)
		op.Def = def
		op.Operands = []ast.Expr{inner}
		attach(op, inner)
		return op

	case token.OpEq, token.OpNotEq, token.OpLess, token.OpLessEq, token.OpGreater, token.OpGreaterEq,
		token.OpIs, token.OpIsNot:
		return binaryOp(ctx, def, parseExpr(ctx, rest[0]), parseExpr(ctx, rest[1]))

	case token.OpLike, token.OpNotLike:
		op := binaryOp(ctx, def, parseExpr(ctx, rest[0]), parseExpr(ctx, rest[1]))
		if ctx.CollationApplied {
			op.Collation = ctx.Collation
		}
		return op

	case token.OpIn, token.OpNotIn:
		return parseInOp(ctx, def, rest)

	case token.OpBetween, token.OpNotBetween:
		op := ast.NewOp(ctx)
		op.Def = def
		op.Operands = []ast.Expr{parseExpr(ctx, rest[0]), parseExpr(ctx, rest[1]), parseExpr(ctx, rest[2])}
		attachAll(op, op.Operands)
		return op

	case token.OpPlus, token.OpMinus, token.OpMultiply, token.OpDivide, token.OpModulo, token.OpConcat:
		op := ast.NewOp(ctx)
		op.Def = def
		op.Operands = parseExprList(ctx, rest)
		attachAll(op, op.Operands)
		return op

	case token.OpExists:
		inner := parseExpr(ctx, rest[0])
		if prop, ok := inner.(*ast.Property); ok {
			prop.SQLFn = "fl_exists"
			return prop
		}
		op := ast.NewOp(ctx)
		op.Def = def
		op.Operands = []ast.Expr{inner}
		attach(op, inner)
		return op

	case token.OpMissing:
		return &ast.Op{Def: def}

	case token.OpIsValued:
		inner := parseExpr(ctx, rest[0])
		op := ast.NewOp(ctx)
		op.Def = def
		op.Operands = []ast.Expr{inner}
		attach(op, inner)
		return op

	case token.OpCase:
		return parseCase(ctx, def, rest)

	case token.OpAny, token.OpEvery, token.OpAnyAndEvery:
		return parseAnyEvery(ctx, def, rest)

	case token.OpProperty:
		return parsePropertyOp(ctx, rest)

	case token.OpObjectProp:
		return parseObjectProp(ctx, rest)

	case token.OpParameter:
		name, ok := rest[0].AsString()
		if !ok || !isAlnumUnderscore(name) {
			fail("invalid parameter name")
		}
		return &ast.Parameter{Name: name}

	case token.OpVariable:
		return parseVariableOp(ctx, rest)

	case token.OpArrayOf:
		fnDef, _ := token.FunctionByName("array_of")
		fn := ast.NewFunctionCall(ctx)
		fn.Def = fnDef
		fn.Args = parseExprList(ctx, rest)
		attachAll(fn, fn.Args)
		return fn

	case token.OpBlob:
		inner := parseExpr(ctx, rest[0])
		prop, ok := inner.(*ast.Property)
		if !ok {
			fail("BLOB requires a property argument")
		}
		op := ast.NewOp(ctx)
		op.Def = def
		op.BlobProp = prop
		attach(op, prop)
		return op

	case token.OpMeta:
		src := resolveMetaSource(ctx, rest)
		return &ast.MetaNode{Property: token.MetaNone, Src: src}

	case token.OpMatch:
		indexProp := parseExpr(ctx, rest[0])
		text := parseExpr(ctx, rest[1])
		m := &ast.Match{IndexProperty: indexProp, Text: text}
		attach(m, indexProp)
		attach(m, text)
		return m

	case token.OpRank:
		indexProp := parseExpr(ctx, rest[0])
		r := &ast.Rank{IndexProperty: indexProp}
		attach(r, indexProp)
		return r

	case token.OpVectorDist:
		return parseVectorDistance(ctx, rest)

	case token.OpCollate:
		return parseCollate(ctx, rest)

	default:
		fail("unsupported operator %q", def.Name)
		return nil
	}
}

func parseInOp(ctx *ast.ParseContext, def token.Operation, rest []ast.Value) ast.Expr {
	lhs := parseExpr(ctx, rest[0])
	var items []ast.Value
	if len(rest) > 2 {
		items = rest[1:]
	} else if opName, elems, ok := rest[1].IsOperatorArray(); ok && opName == "[]" {
		items = elems
	}
	if items != nil {
		op := ast.NewOp(ctx)
		op.Def = def
		op.Operands = append([]ast.Expr{lhs}, parseExprList(ctx, items)...)
		attachAll(op, op.Operands)
		return op
	}
	rhs := parseExpr(ctx, rest[1])
	fnDef, _ := token.FunctionByName("array_contains")
	fn := ast.NewFunctionCall(ctx)
	fn.Def = fnDef
	fn.Args = []ast.Expr{rhs, lhs}
	attach(fn, rhs)
	attach(fn, lhs)
	if def.Type == token.OpNotIn {
		notDef, _ := token.LookupOpByType(token.OpNot)
		op := ast.NewOp(ctx)
		op.Def = notDef
		op.Operands = []ast.Expr{fn}
		attach(op, fn)
		return op
	}
	return fn
}

func parseCase(ctx *ast.ParseContext, def token.Operation, rest []ast.Value) ast.Expr {
	if len(rest) < 1 {
		fail("CASE requires at least an expression list")
	}
	var caseOperand ast.Expr
	if !rest[0].IsNull() {
		caseOperand = parseExpr(ctx, rest[0])
	}
	whenThens := rest[1:]
	var elseExpr ast.Expr
	if len(whenThens)%2 == 1 {
		elseExpr = parseExpr(ctx, whenThens[len(whenThens)-1])
		whenThens = whenThens[:len(whenThens)-1]
	}
	op := ast.NewOp(ctx)
	op.Def = def
	op.CaseOperand = caseOperand
	for i := 0; i+1 < len(whenThens); i += 2 {
		op.Whens = append(op.Whens, ast.CaseWhen{
			Cond:   parseExpr(ctx, whenThens[i]),
			Result: parseExpr(ctx, whenThens[i+1]),
		})
	}
	op.Else = elseExpr
	attach(op, caseOperand)
	for _, w := range op.Whens {
		attach(op, w.Cond)
		attach(op, w.Result)
	}
	attach(op, elseExpr)
	return op
}

// parseAnyEvery implements spec.md §4.1's ANY/EVERY/ANY AND EVERY rule,
// including the "ANY v IN array SATISFIES v = expr" -> array_contains
// special case.
func parseAnyEvery(ctx *ast.ParseContext, def token.Operation, rest []ast.Value) ast.Expr {
	if len(rest) != 3 {
		fail("%s requires a variable, collection, and predicate", def.Name)
	}
	varName, ok := rest[0].AsString()
	if !ok {
		fail("%s variable name must be a string", def.Name)
	}
	collection := parseExpr(ctx, rest[1])
	predicate := parseExpr(ctx, rest[2])
	if def.Type == token.OpAny {
		if eqOp, ok := predicate.(*ast.Op); ok && eqOp.Def.Type == token.OpEq && len(eqOp.Operands) == 2 {
			for i, operand := range eqOp.Operands {
				if vr, ok := operand.(*ast.Variable); ok && strings.EqualFold(vr.Name, varName) {
					other := eqOp.Operands[1-i]
					fnDef, _ := token.FunctionByName("array_contains")
					fn := ast.NewFunctionCall(ctx)
					fn.Def = fnDef
					fn.Args = []ast.Expr{collection, other}
					attach(fn, collection)
					attach(fn, other)
					return fn
				}
			}
		}
	}
	node := &ast.AnyEvery{Op: def.Type, Var: ast.Variable{Name: varName}, Collection: collection, Predicate: predicate}
	attach(node, collection)
	attach(node, predicate)
	return node
}

func parsePropertyOp(ctx *ast.ParseContext, rest []ast.Value) ast.Expr {
	if len(rest) == 0 {
		fail(`"." requires a path string`)
	}
	pathStr, ok := rest[0].AsString()
	if !ok {
		fail(`"." path must be a string`)
	}
	kp, err := ast.ParsePath(pathStr, rest[1:])
	if err != nil {
		fail("%v", err)
	}
	return buildPropertyNode(ctx, kp)
}

// buildPropertyNode resolves a path against the ParseContext (spec.md
// §4.2) and builds the resulting Property, Meta, or alias-bound node.
func buildPropertyNode(ctx *ast.ParseContext, kp ast.KeyPath) ast.Expr {
	path := kp
	src, what, meta := resolvePropertyPath(ctx, &path)
	if meta != token.MetaNone {
		metaSrc := src
		if metaSrc == nil {
			metaSrc = ctx.From
		}
		return &ast.MetaNode{Property: meta, Src: metaSrc}
	}
	if what != nil {
		// A property path bound to a result-column alias is rendered by
		// embedding that column's own expression SQL, nested into via
		// fl_nested_value for any remaining path components.
		inner := format.String(what.Expression)
		if path.Empty() {
			return &ast.RawSQL{SQL: inner}
		}
		return &ast.RawSQL{SQL: fmt.Sprintf("fl_nested_value(%s, %s)", inner, quoteSQL(path.String()))}
	}
	prop := ast.NewProperty(ctx)
	prop.Src = src
	prop.Path = path
	return prop
}

func parseObjectProp(ctx *ast.ParseContext, rest []ast.Value) ast.Expr {
	if len(rest) < 2 {
		fail(`"_." requires a value and a key`)
	}
	keyStr, ok := rest[1].AsString()
	if !ok {
		fail(`"_." key must be a string`)
	}
	return buildObjectProp(ctx, rest[0], keyStr)
}

// buildObjectProp implements spec.md §4.1's "_.key, value -> Function
// (fl_nested_value, value, key)" rule, including the special case that
// folds ["_.", ["META()"], key] (or its shorthand "_.key" form) back into
// a typed Meta property instead of a generic objectProperty Op.
func buildObjectProp(ctx *ast.ParseContext, valueRaw ast.Value, keyStr string) ast.Expr {
	if opName, margs, ok := valueRaw.IsOperatorArray(); ok && strings.EqualFold(opName, "META()") {
		src := resolveMetaSource(ctx, margs)
		m := token.LookupMeta(strings.TrimPrefix(keyStr, "_"))
		return &ast.MetaNode{Property: m, Src: src}
	}
	valueExpr := parseExpr(ctx, valueRaw)
	objDef, _ := token.LookupOpByType(token.OpObjectProp)
	keyLit := ast.NewLiteral(ctx)
	keyLit.Kind, keyLit.Str = ast.LitString, keyStr
	return binaryOp(ctx, objDef, valueExpr, keyLit)
}

func resolveMetaSource(ctx *ast.ParseContext, args []ast.Value) *ast.Source {
	if len(args) == 0 {
		if ctx.From == nil || hasMultipleCollections(ctx) {
			fail("META() with no argument does not begin with a declared 'AS' alias")
		}
		return ctx.From
	}
	aliasName, ok := args[0].AsString()
	if !ok {
		fail("META() argument must be a source alias")
	}
	if aliased, found := ctx.Aliases[strings.ToLower(aliasName)]; found {
		if src, ok := aliased.(*ast.Source); ok {
			return src
		}
	}
	fail("META(%q): no such source alias", aliasName)
	return nil
}

func parseVariableOp(ctx *ast.ParseContext, rest []ast.Value) ast.Expr {
	if len(rest) == 0 {
		fail(`"?" requires a variable name`)
	}
	name, ok := rest[0].AsString()
	if !ok {
		fail(`"?" variable name must be a string`)
	}
	var result ast.Expr = &ast.Variable{Name: name}
	objDef, _ := token.LookupOpByType(token.OpObjectProp)
	for _, extra := range rest[1:] {
		keyExpr := parseExpr(ctx, extra)
		result = binaryOp(ctx, objDef, result, keyExpr)
	}
	return result
}

func parseVectorDistance(ctx *ast.ParseContext, rest []ast.Value) ast.Expr {
	vectorExpr := parseExpr(ctx, rest[0])
	query := parseExpr(ctx, rest[1])
	vd := &ast.VectorDistance{VectorExpr: vectorExpr, Query: query}
	if len(rest) >= 3 {
		if m, ok := rest[2].AsString(); ok {
			vd.Metric = m
		}
	}
	if len(rest) >= 4 && !rest[3].IsNull() {
		vd.NumProbes = parseExpr(ctx, rest[3])
	}
	if len(rest) >= 5 {
		if accurate, ok := rest[4].AsBool(); ok && accurate {
			fail("APPROX_VECTOR_DISTANCE: accurate=true is not supported")
		}
	}
	attach(vd, vectorExpr)
	attach(vd, query)
	attach(vd, vd.NumProbes)
	return vd
}

// parseCollate implements spec.md §4.1's COLLATE rule: the options dict
// mutates the context's current collation for the scope of parsing expr,
// restoring it afterward, and the subtree is wrapped in a Collate node.
// Simplification: always wraps in a Collate node rather than detecting
// whether a nested COLLATE already emitted one (see DESIGN.md).
func parseCollate(ctx *ast.ParseContext, rest []ast.Value) ast.Expr {
	if len(rest) != 2 {
		fail("COLLATE requires an options dict and an expression")
	}
	saved, savedApplied := ctx.Collation, ctx.CollationApplied
	newColl := ctx.Collation
	if d, ok := rest[0].AsDict(); ok {
		if v, found := d.GetCaseInsensitive("CASE"); found {
			if b, ok2 := v.AsBool(); ok2 {
				newColl.CaseSensitive = b
			}
		}
		if v, found := d.GetCaseInsensitive("DIAC"); found {
			if b, ok2 := v.AsBool(); ok2 {
				newColl.DiacriticSensitive = b
			}
		}
		if v, found := d.GetCaseInsensitive("UNICODE"); found {
			if b, ok2 := v.AsBool(); ok2 {
				newColl.UnicodeAware = b
			}
		}
		if v, found := d.GetCaseInsensitive("LOCALE"); found {
			if s, ok2 := v.AsString(); ok2 {
				newColl.Locale = s
			}
		}
	}
	ctx.Collation = newColl
	ctx.CollationApplied = true
	inner := parseExpr(ctx, rest[1])
	ctx.Collation, ctx.CollationApplied = saved, savedApplied
	ce := &ast.CollateExpr{Inner: inner, Collation: newColl}
	attach(ce, inner)
	return ce
}

func isAlnumUnderscore(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_') {
			return false
		}
	}
	return true
}

func quoteSQL(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
