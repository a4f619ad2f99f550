// Package format implements the precedence-aware SQL writer: the only
// place SQL text is assembled from the AST. Kept separate from ast, just
// like the teacher's format package is kept separate from its ast package,
// so ast has no dependency on how (or whether) it gets printed.
package format

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/couchbase/couchbase-lite-core-sub003/ast"
	"github.com/couchbase/couchbase-lite-core-sub003/token"
)

// Writer accumulates SQL text with precedence-aware parenthesization. The
// body-column name is overridable so the same writer can emit trigger
// bodies that refer to "new.body"/"old.body" instead of "body" (spec.md
// §4.6's index-creation sub-paths).
type Writer struct {
	sb         strings.Builder
	BodyColumn string
}

// NewWriter creates a Writer with the default body column name "body".
func NewWriter() *Writer {
	return &Writer{BodyColumn: "body"}
}

func (w *Writer) String() string { return w.sb.String() }

func (w *Writer) lit(s string) *Writer { w.sb.WriteString(s); return w }

// quoteIdent double-quotes an identifier, doubling embedded quotes, for
// identifiers that need it (index aliases and table names containing ':').
func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// needsQuoting reports whether an identifier must be double-quoted to be a
// valid unquoted-looking SQLite identifier (i.e. it isn't already a plain
// word).
func needsQuoting(s string) bool {
	if s == "" {
		return true
	}
	for i, r := range s {
		isAlpha := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_'
		isDigit := r >= '0' && r <= '9'
		if i == 0 && !isAlpha {
			return true
		}
		if !isAlpha && !isDigit {
			return true
		}
	}
	return false
}

func ident(s string) string {
	if needsQuoting(s) {
		return quoteIdent(s)
	}
	return s
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// exprPrecedence returns the SQL precedence of an expression node, per
// spec.md §4.5's table. Unary "-" and NOT share a higher precedence than
// their binary/n-ary siblings of the same table entry.
func exprPrecedence(e ast.Expr) int {
	switch v := e.(type) {
	case *ast.Literal, *ast.Parameter, *ast.Variable, *ast.MetaNode, *ast.Property,
		*ast.FunctionCall, *ast.Rank, *ast.VectorDistance:
		return token.PrecCall
	case *ast.Match:
		return token.PrecCompareEq
	case *ast.CollateExpr:
		return token.PrecCollate
	case *ast.AnyEvery, *ast.Select:
		return token.PrecSelect
	case *ast.Op:
		if v.Def.Type == token.OpMinus && len(v.Operands) == 1 {
			return token.PrecUnary
		}
		if v.Def.Type == token.OpCase || v.Def.Type == token.OpBlob || v.Def.Type == token.OpObjectProp || v.Def.Type == token.OpMissing {
			return token.PrecCall
		}
		return v.Def.Precedence
	}
	return token.PrecCall
}

// WriteExpr writes e, parenthesizing it iff its precedence does not
// strictly exceed parentPrec (spec.md's parenthesization-minimality rule).
func (w *Writer) WriteExpr(e ast.Expr, parentPrec int) {
	if e == nil {
		return
	}
	prec := exprPrecedence(e)
	paren := prec <= parentPrec
	if paren {
		w.lit("(")
	}
	w.writeExprBody(e, prec)
	if paren {
		w.lit(")")
	}
}

func (w *Writer) writeExprBody(e ast.Expr, prec int) {
	switch v := e.(type) {
	case *ast.Literal:
		w.writeLiteral(v)
	case *ast.MetaNode:
		w.writeMeta(v)
	case *ast.Parameter:
		w.lit("$_").lit(v.Name)
	case *ast.Property:
		w.writeProperty(v)
	case *ast.Variable:
		if v.ReturnsBody {
			w.lit("_").lit(v.Name).lit(".body")
		} else {
			w.lit("_").lit(v.Name).lit(".value")
		}
	case *ast.CollateExpr:
		w.WriteExpr(v.Inner, token.PrecCollate)
		w.lit(" COLLATE ").lit(v.Collation.Name())
	case *ast.RawSQL:
		w.lit(v.SQL)
	case *ast.Op:
		w.writeOp(v, prec)
	case *ast.AnyEvery:
		w.writeAnyEvery(v)
	case *ast.FunctionCall:
		w.writeFunctionCall(v)
	case *ast.Match:
		w.writeMatch(v)
	case *ast.Rank:
		w.writeRank(v)
	case *ast.VectorDistance:
		w.writeVectorDistance(v)
	case *ast.Select:
		w.WriteSelect(v)
	default:
		panic(fmt.Sprintf("format: unhandled expr type %T", e))
	}
}

func (w *Writer) writeLiteral(l *ast.Literal) {
	switch l.Kind {
	case ast.LitNull:
		w.lit("fl_null()")
	case ast.LitBool:
		if l.B {
			w.lit("fl_bool(1)")
		} else {
			w.lit("fl_bool(0)")
		}
	case ast.LitNumber:
		w.lit(strconv.FormatFloat(l.Num, 'g', -1, 64))
	case ast.LitString:
		w.lit(quoteString(l.Str))
	}
}

func (w *Writer) writeMeta(m *ast.MetaNode) {
	alias := ""
	if m.Src != nil {
		alias = m.Src.AliasName + "."
	}
	switch m.Property {
	case token.MetaID:
		w.lit(alias).lit("key")
	case token.MetaSequence:
		w.lit(alias).lit("sequence")
	case token.MetaExpiration:
		w.lit(alias).lit("expiration")
	case token.MetaRowID:
		w.lit(alias).lit("rowid")
	case token.MetaDeleted:
		w.lit("(").lit(alias).lit("flags & 1 != 0)")
	case token.MetaNotDeleted:
		w.lit("(").lit(alias).lit("flags & 1 = 0)")
	case token.MetaRevisionID:
		w.lit("fl_version(").lit(alias).lit("version)")
	default: // bare meta(): dict_of all properties
		w.lit("dict_of('id', ").lit(alias).lit("key, 'sequence', ").lit(alias).lit("sequence")
		w.lit(", 'deleted', (").lit(alias).lit("flags & 1 != 0), 'expiration', ").lit(alias).lit("expiration")
		w.lit(", 'revisionID', fl_version(").lit(alias).lit("version), 'rowid', ").lit(alias).lit("rowid)")
	}
}

func (w *Writer) writeProperty(p *ast.Property) {
	w.writePropertyAs(p, p.SQLFn, nil)
}

// writePropertyAs renders a Property's (alias.col, 'path') accessor pair
// using fn in place of p.SQLFn, with extra (if non-nil) appended as a
// trailing argument. This is the Go analogue of PropertyNode::writeSQL(ctx,
// sqliteFnName, param) in TranslatorUtils.cc/NodesToSQL.cc, used wherever a
// getter function (fl_contains, fl_count, fl_each) takes a property's
// underlying collection/array directly rather than its fl_value(...)
// wrapping.
func (w *Writer) writePropertyAs(p *ast.Property, fn string, extra ast.Expr) {
	if fn == "" {
		fn = "fl_value"
	}
	bodyCol := w.BodyColumn
	unnest := p.Src != nil && p.Src.IsUnnest()
	if unnest {
		switch fn {
		case "fl_value":
			fn = "fl_unnested_value"
		case "fl_root":
			fn = "fl_unnested_value"
		}
	}
	col := bodyCol
	if p.InGroupBy {
		col = "data"
	}
	alias := ""
	if p.Src != nil {
		alias = p.Src.AliasName + "."
	}
	pathStr := p.Path.String()
	if pathStr == "" && fn == "fl_value" {
		fn = "fl_root"
	}
	w.lit(fn).lit("(").lit(alias).lit(col)
	if pathStr != "" {
		w.lit(", ").lit(quoteString(pathStr))
	}
	if p.ExtraArg != nil {
		w.lit(", ")
		w.WriteExpr(p.ExtraArg, token.PrecArgList)
	}
	if extra != nil {
		w.lit(", ")
		w.WriteExpr(extra, token.PrecArgList)
	}
	w.lit(")")
}

// writeGetter renders the "getter" call form used for fl_contains/fl_count/
// fl_each: when expr is a bare Property, fnName replaces its usual
// fl_value(...) wrapping and operates directly on its (alias.col, 'path')
// pair, with extra (if non-nil) appended as a trailing argument; otherwise
// it falls back to a plain fnName(expr[, NULL, extra]) call over the
// computed collection value. Grounded on TranslatorUtils.cc's
// writeFnGetter.
func (w *Writer) writeGetter(fnName string, expr ast.Expr, extra ast.Expr) {
	if p, ok := expr.(*ast.Property); ok {
		w.writePropertyAs(p, fnName, extra)
		return
	}
	w.lit(fnName).lit("(")
	w.WriteExpr(expr, token.PrecArgList)
	if extra != nil {
		w.lit(", NULL, ")
		w.WriteExpr(extra, token.PrecArgList)
	}
	w.lit(")")
}

func (w *Writer) writeArgList(args []ast.Expr) {
	w.lit("(")
	for i, a := range args {
		if i > 0 {
			w.lit(", ")
		}
		w.WriteExpr(a, token.PrecArgList)
	}
	w.lit(")")
}

func (w *Writer) writeOp(op *ast.Op, prec int) {
	switch op.Def.Type {
	case token.OpAnd, token.OpOr:
		for i, operand := range op.Operands {
			if i > 0 {
				w.lit(" ").lit(op.Def.SQLOp).lit(" ")
			}
			w.WriteExpr(operand, prec)
		}
	case token.OpNot:
		w.lit("NOT ")
		w.WriteExpr(op.Operands[0], prec)
	case token.OpMinus:
		if len(op.Operands) == 1 {
			w.lit("-")
			w.WriteExpr(op.Operands[0], prec)
			return
		}
		w.writeInfixChain(op, prec)
	case token.OpPlus, token.OpMultiply, token.OpDivide, token.OpModulo, token.OpConcat:
		w.writeInfixChain(op, prec)
	case token.OpEq, token.OpNotEq, token.OpLess, token.OpLessEq, token.OpGreater, token.OpGreaterEq:
		w.WriteExpr(op.Operands[0], prec)
		w.lit(" ").lit(op.Def.SQLOp).lit(" ")
		w.WriteExpr(op.Operands[1], prec)
	case token.OpIs:
		w.WriteExpr(op.Operands[0], prec)
		w.lit(" IS ")
		w.WriteExpr(op.Operands[1], prec)
	case token.OpIsNot:
		w.WriteExpr(op.Operands[0], prec)
		w.lit(" IS NOT ")
		w.WriteExpr(op.Operands[1], prec)
	case token.OpLike, token.OpNotLike:
		if op.Collation != (ast.Collation{}) {
			if op.Def.Type == token.OpNotLike {
				w.lit("NOT ")
			}
			w.lit("fl_like(")
			w.WriteExpr(op.Operands[0], token.PrecArgList)
			w.lit(", ")
			w.WriteExpr(op.Operands[1], token.PrecArgList)
			w.lit(", ").lit(quoteString(op.Collation.Name())).lit(")")
			return
		}
		w.WriteExpr(op.Operands[0], prec)
		if op.Def.Type == token.OpNotLike {
			w.lit(" NOT LIKE ")
		} else {
			w.lit(" LIKE ")
		}
		w.WriteExpr(op.Operands[1], prec)
		w.lit(" ESCAPE '\\'")
	case token.OpIn, token.OpNotIn:
		w.WriteExpr(op.Operands[0], prec)
		if op.Def.Type == token.OpNotIn {
			w.lit(" NOT IN ")
		} else {
			w.lit(" IN ")
		}
		w.writeArgList(op.Operands[1:])
	case token.OpBetween, token.OpNotBetween:
		w.WriteExpr(op.Operands[0], prec)
		if op.Def.Type == token.OpNotBetween {
			w.lit(" NOT BETWEEN ")
		} else {
			w.lit(" BETWEEN ")
		}
		w.WriteExpr(op.Operands[1], token.PrecCompareOrd)
		w.lit(" AND ")
		w.WriteExpr(op.Operands[2], token.PrecCompareOrd)
	case token.OpExists:
		w.lit("EXISTS ")
		w.WriteExpr(op.Operands[0], prec)
	case token.OpIsValued:
		w.WriteExpr(op.Operands[0], prec)
		w.lit(" IS NOT NULL")
	case token.OpMissing:
		w.lit("NULL")
	case token.OpCase:
		w.lit("CASE ")
		if op.CaseOperand != nil {
			w.WriteExpr(op.CaseOperand, token.PrecArgList)
			w.lit(" ")
		}
		for _, when := range op.Whens {
			w.lit("WHEN ")
			w.WriteExpr(when.Cond, token.PrecArgList)
			w.lit(" THEN ")
			w.WriteExpr(when.Result, token.PrecArgList)
			w.lit(" ")
		}
		if op.Else != nil {
			w.lit("ELSE ")
			w.WriteExpr(op.Else, token.PrecArgList)
			w.lit(" ")
		}
		w.lit("END")
	case token.OpBlob:
		w.lit("fl_blob(").lit(w.BodyColumn).lit(", ").lit(quoteString(op.BlobProp.Path.String())).lit(")")
	case token.OpObjectProp:
		w.lit("fl_nested_value(")
		w.WriteExpr(op.Operands[0], token.PrecArgList)
		w.lit(", ")
		w.WriteExpr(op.Operands[1], token.PrecArgList)
		w.lit(")")
	default:
		w.writeInfixChain(op, prec)
	}
}

func (w *Writer) writeInfixChain(op *ast.Op, prec int) {
	sep := op.Def.SQLOp
	if sep == "" {
		sep = op.Def.Name
	}
	for i, operand := range op.Operands {
		if i > 0 {
			w.lit(" ").lit(sep).lit(" ")
		}
		w.WriteExpr(operand, prec)
	}
}

// writeAnyEvery renders ANY/EVERY/ANY AND EVERY as EXISTS subqueries over
// fl_each(): ANY is a plain EXISTS; EVERY is NOT EXISTS(... WHERE NOT pred),
// vacuously true for an empty collection; ANY AND EVERY is their
// conjunction, requiring both a non-empty collection and no failing element.
func (w *Writer) writeAnyEvery(a *ast.AnyEvery) {
	existsClause := func(negatePred bool) {
		w.lit("EXISTS (SELECT 1 FROM ")
		w.writeGetter("fl_each", a.Collection, nil)
		w.lit(" AS _").lit(a.Var.Name).lit(" WHERE ")
		if negatePred {
			w.lit("NOT (")
			w.WriteExpr(a.Predicate, token.PrecArgList)
			w.lit(")")
		} else {
			w.WriteExpr(a.Predicate, token.PrecArgList)
		}
		w.lit(")")
	}
	switch a.Op {
	case token.OpEvery:
		w.lit("NOT ")
		existsClause(true)
	case token.OpAnyAndEvery:
		existsClause(false)
		w.lit(" AND NOT ")
		existsClause(true)
	default: // token.OpAny
		existsClause(false)
	}
}

func (w *Writer) writeFunctionCall(f *ast.FunctionCall) {
	// array_contains(collection, value) is the getter form built by the
	// ANY...SATISFIES-equals special case (parser's parseAnyEvery): its
	// collection argument is unpacked into its (body, 'path') pair rather
	// than wrapped in fl_value(...), per TranslatorUtils.cc's writeFnGetter.
	if f.Def.Name == "array_contains" && len(f.Args) == 2 {
		w.writeGetter(f.Def.SQLName(), f.Args[0], f.Args[1])
		return
	}
	w.lit(f.Def.SQLName())
	w.lit("(")
	for i, a := range f.Args {
		if i > 0 {
			w.lit(", ")
		}
		w.WriteExpr(a, token.PrecArgList)
	}
	if f.Collation != nil {
		if len(f.Args) > 0 {
			w.lit(", ")
		}
		w.lit(quoteString(f.Collation.Name()))
	}
	w.lit(")")
}

func (w *Writer) writeMatch(m *ast.Match) {
	w.lit(ident(m.IndexSrc.Alias)).lit(".").lit(ident(m.IndexSrc.TableName)).lit(" MATCH ")
	w.WriteExpr(m.Text, token.PrecCompareEq)
}

func (w *Writer) writeRank(r *ast.Rank) {
	w.lit("rank(matchinfo(").lit(ident(r.IndexSrc.Alias)).lit(".").lit(ident(r.IndexSrc.TableName)).lit("))")
}

func (w *Writer) writeVectorDistance(v *ast.VectorDistance) {
	if v.IndexSrc != nil && v.IndexSrc.VectorSimple {
		w.lit(ident(v.IndexSrc.Alias)).lit(".distance")
		return
	}
	w.lit("vector_distance(")
	w.WriteExpr(v.VectorExpr, token.PrecArgList)
	w.lit(", ")
	w.WriteExpr(v.Query, token.PrecArgList)
	if v.Metric != "" {
		w.lit(", ").lit(quoteString(v.Metric))
	}
	w.lit(")")
}

// WriteWhat emits one result column: wrapped in fl_result/fl_boolean_result
// unless the expression's result type is numeric/string/aggregate (passed
// through raw), with "AS alias" appended only for explicit aliases.
func (w *Writer) WriteWhat(item *ast.What) {
	flags := resultFlags(item.Expression)
	switch {
	case flags&token.FlagBoolResult != 0:
		w.lit("fl_boolean_result(")
		w.WriteExpr(item.Expression, token.PrecArgList)
		w.lit(")")
	case flags&(token.FlagNumResult|token.FlagStrResult|token.FlagAggregate) != 0:
		w.WriteExpr(item.Expression, token.PrecArgList)
	default:
		w.lit("fl_result(")
		w.WriteExpr(item.Expression, token.PrecArgList)
		w.lit(")")
	}
	if item.ExplicitAlias {
		w.lit(" AS ").lit(ident(item.ColumnName))
	}
}

func resultFlags(e ast.Expr) token.OpFlags {
	switch v := e.(type) {
	case *ast.Op:
		return v.Def.Flags
	case *ast.FunctionCall:
		return v.Def.Flags
	case *ast.Match:
		return token.FlagBoolResult
	case *ast.Rank, *ast.VectorDistance:
		return token.FlagNumResult
	}
	return token.FlagNone
}

// WriteSource emits one FROM/JOIN item.
func (w *Writer) WriteSource(s *ast.Source) {
	switch {
	case s.IsJoin():
		w.lit(s.Join.String()).lit(" ")
	case s.Unnest != nil:
		w.lit("JOIN ")
	default:
		w.lit("FROM ")
	}
	switch {
	case s.Unnest != nil && !s.UnnestMaterialized:
		w.writeGetter("fl_each", s.Unnest, nil)
	default:
		w.lit(ident(s.TableName))
	}
	w.lit(" AS ").lit(ident(s.AliasName))
	if s.JoinOn != nil {
		w.lit(" ON ")
		w.WriteExpr(s.JoinOn, token.PrecStatement)
	} else if s.Unnest != nil && s.UnnestMaterialized {
		w.lit(" ON ").lit(ident(s.AliasName)).lit(".docid = ")
		if s.Parent() != nil {
			if sel, ok := s.Parent().(*ast.Select); ok && sel.From != nil {
				w.lit(ident(sel.From.AliasName)).lit(".rowid")
			}
		}
	}
}

// WriteIndexSource emits the implicit JOIN for an index source, in either
// the plain MATCH-join form or (for a "simple" vector query) the nested
// SELECT form, per spec.md §4.4 step 4.
func (w *Writer) WriteIndexSource(idx *ast.IndexSource, primaryAlias string) {
	if idx.Type == token.IndexVector && idx.VectorSimple {
		w.lit("INNER JOIN (SELECT docid, distance FROM ").lit(ident(idx.TableName))
		w.lit(" WHERE vector MATCH encode_vector(")
		vd := idx.Nodes[0].(*ast.VectorDistance)
		w.WriteExpr(vd.Query, token.PrecArgList)
		w.lit(")")
		if vd.NumProbes != nil {
			w.lit(" AND vectorsearch_probes(vector, ")
			w.WriteExpr(vd.NumProbes, token.PrecArgList)
			w.lit(")")
		}
		w.lit(" LIMIT ")
		w.WriteExpr(idx.VectorLimit, token.PrecArgList)
		w.lit(") AS ").lit(ident(idx.Alias))
		w.lit(" ON ").lit(ident(idx.Alias)).lit(".docid = ").lit(primaryAlias).lit(".rowid")
		return
	}
	w.lit("INNER JOIN ").lit(ident(idx.TableName)).lit(" AS ").lit(ident(idx.Alias))
	if idx.Type == token.IndexVector {
		w.lit(" ON ").lit(ident(idx.Alias)).lit(".vector MATCH encode_vector(")
		vd := idx.Nodes[0].(*ast.VectorDistance)
		w.WriteExpr(vd.Query, token.PrecArgList)
		w.lit(")")
		return
	}
	w.lit(" ON ").lit(ident(idx.Alias)).lit(".docid = ").lit(primaryAlias).lit(".rowid")
}

// WriteSelect emits a full SELECT statement.
func (w *Writer) WriteSelect(s *ast.Select) {
	w.lit("SELECT ")
	if s.Distinct {
		w.lit("DISTINCT ")
	}
	first := true
	if s.NumPrependedColumns > 0 && s.From != nil {
		w.lit(s.From.AliasName).lit(".rowid")
		first = false
		for _, idx := range s.IndexSources {
			if idx.Type != token.IndexFTS {
				continue
			}
			w.lit(", offsets(").lit(ident(idx.Alias)).lit(".").lit(ident(idx.TableName)).lit(")")
		}
	}
	for _, item := range s.What {
		if !first {
			w.lit(", ")
		}
		first = false
		w.WriteWhat(item)
	}
	for _, src := range s.Sources {
		w.lit(" ")
		w.WriteSource(src)
	}
	primaryAlias := ""
	if s.From != nil {
		primaryAlias = s.From.AliasName
	}
	for _, idx := range s.IndexSources {
		w.lit(" ")
		w.WriteIndexSource(idx, primaryAlias)
	}
	if s.Where != nil {
		w.lit(" WHERE ")
		w.WriteExpr(s.Where, token.PrecStatement)
	}
	if len(s.GroupBy) > 0 {
		w.lit(" GROUP BY ")
		for i, g := range s.GroupBy {
			if i > 0 {
				w.lit(", ")
			}
			w.WriteExpr(g, token.PrecArgList)
		}
	}
	if s.Having != nil {
		w.lit(" HAVING ")
		w.WriteExpr(s.Having, token.PrecStatement)
	}
	if len(s.OrderBy) > 0 {
		w.lit(" ORDER BY ")
		for i, o := range s.OrderBy {
			if i > 0 {
				w.lit(", ")
			}
			w.WriteExpr(o.Expr, token.PrecArgList)
			if o.Desc {
				w.lit(" DESC")
			}
		}
	}
	if s.Limit == nil && s.Offset != nil {
		w.lit(" LIMIT -1")
	}
	if s.Limit != nil {
		w.lit(" LIMIT ")
		w.WriteExpr(s.Limit, token.PrecArgList)
	}
	if s.Offset != nil {
		w.lit(" OFFSET ")
		w.WriteExpr(s.Offset, token.PrecArgList)
	}
}

// String renders a standalone expression to SQL at statement precedence,
// used by the index-creation sub-paths (ExpressionSQL etc.).
func String(e ast.Expr) string {
	w := NewWriter()
	w.WriteExpr(e, token.PrecStatement)
	return w.String()
}

// SelectString renders a full SELECT to SQL.
func SelectString(s *ast.Select) string {
	w := NewWriter()
	w.WriteSelect(s)
	return w.String()
}
