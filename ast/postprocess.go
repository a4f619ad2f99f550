package ast

import (
	"fmt"
	"strings"

	"github.com/couchbase/couchbase-lite-core-sub003/token"
)

// Postprocess implements spec.md §4.3/§4.4: deleted-document visibility
// rewriting, implicit index-source JOIN injection, FTS prepended-column
// counting, vector simple/hybrid detection, and unique result-column
// titles. Grounded on SelectNodes.cc's SelectNode::postprocess and
// IndexedNodes.cc's SelectNode::addIndexes/writeFTSColumns.
//
// Nested SELECTs must already have been postprocessed (the parser does
// this bottom-up, immediately after building each nested Select), so this
// method only looks at the current Select's own direct expression trees.
func (s *Select) Postprocess(root *RootContext) error {
	s.detectAggregate()
	s.markDeletedDocUsage()
	if err := s.applyDeletedDocRewrite(); err != nil {
		return err
	}
	if err := s.injectIndexSources(root); err != nil {
		return err
	}
	s.countPrependedColumns()
	s.assignUniqueTitles()
	return nil
}

// detectAggregate implements spec.md's "is_aggregate" rule: a query with
// DISTINCT or a non-empty GROUP_BY is aggregate, and so is any query that
// calls an aggregate function (count/sum/avg/min/max) anywhere in its
// expression trees. Grounded on SelectNode::postprocess.
func (s *Select) detectAggregate() {
	s.IsAggregate = s.Distinct || len(s.GroupBy) > 0
	visit(s, func(n Node) {
		if fn, ok := n.(*FunctionCall); ok && fn.Def.Flags&token.FlagAggregate != 0 {
			s.IsAggregate = true
		}
	})
}

// markDeletedDocUsage scans every expression tree for a reference to
// meta().deleted or a bare meta() (which includes deleted in its dict_of)
// and marks the referenced Source as using deleted docs.
func (s *Select) markDeletedDocUsage() {
	visit(s, func(n Node) {
		m, ok := n.(*MetaNode)
		if !ok {
			return
		}
		if m.Property == token.MetaDeleted || m.Property == token.MetaNone {
			if m.Src != nil {
				m.Src.UsesDeleted = true
			}
		}
	})
}

// applyDeletedDocRewrite injects "(alias.flags & 1 = 0)" for every source
// on the DEFAULT collection that doesn't use deleted docs. Per the original
// source (not a literal reading of a looser property-wording), the rewrite
// only fires for default-collection sources; named collections rely on the
// Delegate choosing the correctly scoped physical table instead. See
// DESIGN.md's Open Question log.
func (s *Select) applyDeletedDocRewrite() error {
	for _, src := range s.Sources {
		if src.IsUnnest() || src.UsesDeleted || src.Collection != "" {
			continue
		}
		pred := &RawSQL{SQL: fmt.Sprintf("(%s.flags & 1 = 0)", src.AliasName)}
		if src.IsJoin() {
			src.JoinOn = andExpr(s, src.JoinOn, pred)
		} else {
			s.Where = andExpr(s, s.Where, pred)
		}
	}
	return nil
}

func andExpr(owner Node, existing Expr, add Expr) Expr {
	if existing == nil {
		setChild(owner, add)
		return add
	}
	op := &Op{Def: token.Operation{Name: "AND", Type: token.OpAnd, SQLOp: "AND", Precedence: token.PrecAndOr}, Operands: []Expr{existing, add}}
	setChild(owner, op)
	setChild(op, existing)
	setChild(op, add)
	return op
}

// visit runs fn on n and every descendant, preorder.
func visit(n Node, fn func(Node)) {
	if n == nil {
		return
	}
	fn(n)
	for _, c := range Children(n) {
		visit(c, fn)
	}
}

type indexOccurrence struct {
	node      IndexedNode
	inAndChain bool
	underOr   bool
}

// injectIndexSources finds every Match/Rank/VectorDistance, resolves or
// creates its IndexSource by canonical identity, validates placement
// rules, and records the resulting sources on the Select for the writer.
func (s *Select) injectIndexSources(root *RootContext) error {
	occurrences := collectIndexOccurrences(s)
	for _, occ := range occurrences {
		switch n := occ.node.(type) {
		case *Match:
			if !occ.inAndChain {
				return fmt.Errorf("MATCH can only appear at the top level of WHERE or inside a top-level AND")
			}
		case *VectorDistance:
			if occ.underOr {
				return fmt.Errorf("APPROX_VECTOR_DISTANCE may not appear within an OR")
			}
			_ = n
		}
		key := indexKey(occ.node)
		src := s.findOrCreateIndexSource(root, occ.node, key)
		occ.node.setIndexSource(src)
		src.Nodes = append(src.Nodes, occ.node)
	}

	// RANK() must co-occur with a non-auxiliary MATCH() on the same index.
	for _, idx := range s.IndexSources {
		if idx.Type != token.IndexFTS {
			continue
		}
		hasMatch := false
		for _, n := range idx.Nodes {
			if _, ok := n.(*Match); ok {
				hasMatch = true
			}
		}
		if !hasMatch {
			return fmt.Errorf("RANK() cannot be used without MATCH() on the same index")
		}
	}

	s.detectVectorSimpleForm()
	return nil
}

// indexIdentity is the canonical (type, alias-stripped-expression) pair two
// IndexedNodes must share to reuse one IndexSource.
type indexIdentity struct {
	t token.IndexType
	k string
}

func indexKey(n IndexedNode) indexIdentity {
	switch v := n.(type) {
	case *Match:
		return indexIdentity{token.IndexFTS, propertyKeyString(v.IndexProperty)}
	case *Rank:
		return indexIdentity{token.IndexFTS, propertyKeyString(v.IndexProperty)}
	case *VectorDistance:
		return indexIdentity{token.IndexVector, propertyKeyString(v.VectorExpr)}
	}
	return indexIdentity{}
}

// propertyKeyString renders a canonical, alias-stripped identity for the
// indexed expression, so that the same property accessed via different
// aliases still collides to the same index, per spec.md §4.4 step 1.
func propertyKeyString(e Expr) string {
	if p, ok := e.(*Property); ok {
		return p.Path.String()
	}
	return fmt.Sprintf("%v", e)
}

func (s *Select) findOrCreateIndexSource(root *RootContext, n IndexedNode, key indexIdentity) *IndexSource {
	for _, idx := range s.IndexSources {
		if idx.Type == key.t && idx.PropertyKey == key.k {
			return idx
		}
	}
	idx := &IndexSource{Type: key.t, PropertyKey: key.k, Collection: s.From, Alias: root.NextIndexAlias()}
	s.IndexSources = append(s.IndexSources, idx)
	return idx
}

// detectVectorSimpleForm implements spec.md §4.4 step 4: when the WHERE
// clause is empty, or is solely a comparison between an
// APPROX_VECTOR_DISTANCE() call and a constant, the vector index is joined
// via a nested SELECT with a LIMIT instead of a plain MATCH join.
func (s *Select) detectVectorSimpleForm() {
	for _, idx := range s.IndexSources {
		if idx.Type != token.IndexVector {
			continue
		}
		if len(idx.Nodes) != 1 {
			continue
		}
		vd, ok := idx.Nodes[0].(*VectorDistance)
		if !ok {
			continue
		}
		isSoleComparison := false
		if op, ok := s.Where.(*Op); ok {
			switch op.Def.Type {
			case token.OpLess, token.OpLessEq, token.OpGreater, token.OpGreaterEq:
				for _, operand := range op.Operands {
					if operand == Expr(vd) {
						isSoleComparison = true
					}
				}
			}
		}
		if (s.Where == nil || isSoleComparison) && s.Limit != nil {
			idx.VectorSimple = true
			idx.VectorLimit = s.Limit
			if isSoleComparison {
				s.Where = nil
			}
		}
	}
}

func collectIndexOccurrences(s *Select) []indexOccurrence {
	var out []indexOccurrence
	var walkTop func(e Expr, chainOK, underOr bool)
	walkTop = func(e Expr, chainOK, underOr bool) {
		if e == nil {
			return
		}
		switch v := e.(type) {
		case *Match:
			out = append(out, indexOccurrence{node: v, inAndChain: chainOK, underOr: underOr})
		case *Rank:
			out = append(out, indexOccurrence{node: v, inAndChain: chainOK, underOr: underOr})
		case *VectorDistance:
			out = append(out, indexOccurrence{node: v, inAndChain: chainOK, underOr: underOr})
		case *Op:
			childChainOK := chainOK && v.Def.Type == token.OpAnd
			childUnderOr := underOr || v.Def.Type == token.OpOr
			for _, operand := range v.Operands {
				walkTop(operand, childChainOK, childUnderOr)
			}
		}
		// also search non-top-level positions (WHAT, ORDER BY, HAVING) for
		// VectorDistance and Rank, which are legal there; MATCH is only
		// legal in WHERE per spec.md §4.4 step 5 and is simply rejected by
		// the inAndChain check above when found elsewhere (callers pass
		// chainOK=false, underOr=false for those trees).
	}
	walkTop(s.Where, true, false)
	for _, w := range s.What {
		walkTop(w.Expression, false, false)
	}
	for _, o := range s.OrderBy {
		walkTop(o.Expr, false, false)
	}
	walkTop(s.Having, false, false)
	for _, src := range s.Sources {
		walkTop(src.JoinOn, false, false)
	}
	return out
}

// countPrependedColumns implements spec.md §4.4 step 3: for a non-aggregate
// query using FTS, the writer must emit "<primary>.rowid, offsets(idx)..."
// leading columns.
func (s *Select) countPrependedColumns() {
	if s.IsAggregate {
		return
	}
	n := 0
	for _, idx := range s.IndexSources {
		if idx.Type == token.IndexFTS {
			n++
		}
	}
	if n > 0 {
		s.NumPrependedColumns = 1 + n // primary.rowid + one offsets() column per FTS index
	}
}

// assignUniqueTitles implements spec.md's "Unique titles" property:
// explicit aliases are preserved exactly; anonymous columns get a title
// derived from their expression, de-duplicated with "#2", "#3", ... or
// "$1", "$2" for columns with no derivable base name.
func (s *Select) assignUniqueTitles() {
	anon := 0
	for _, w := range s.What {
		if w.ColumnName != "" {
			continue
		}
		anon++
		base := deriveColumnName(w.Expression)
		if base == "" {
			base = fmt.Sprintf("$%d", anon)
		}
		w.ColumnName = base
	}
	// second pass: dedupe case-insensitively in list order
	titles := make([]string, len(s.What))
	for i, w := range s.What {
		titles[i] = w.ColumnName
	}
	lower := func(x string) string { return strings.ToLower(x) }
	counts := map[string]int{}
	for _, t := range titles {
		counts[lower(t)]++
	}
	idx := map[string]int{}
	for i, w := range s.What {
		key := lower(w.ColumnName)
		if counts[key] <= 1 {
			continue
		}
		idx[key]++
		if idx[key] == 1 {
			continue // first occurrence keeps the bare name
		}
		w.ColumnName = fmt.Sprintf("%s #%d", w.ColumnName, idx[key])
	}
}

func deriveColumnName(e Expr) string {
	switch v := e.(type) {
	case *Property:
		if last, ok := lastComponent(v.Path); ok {
			return last
		}
	case *MetaNode:
		switch v.Property {
		case token.MetaID:
			return "_id"
		case token.MetaSequence:
			return "_sequence"
		case token.MetaDeleted:
			return "_deleted"
		case token.MetaExpiration:
			return "_expiration"
		case token.MetaRevisionID:
			return "_revisionID"
		case token.MetaRowID:
			return "_rowid"
		}
	}
	return ""
}

func lastComponent(p KeyPath) (string, bool) {
	if len(p.Components) == 0 {
		return "", false
	}
	last := p.Components[len(p.Components)-1]
	if last.IsIndex {
		return "", false
	}
	return last.Key, true
}
