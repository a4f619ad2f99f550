package ast

import "github.com/couchbase/couchbase-lite-core-sub003/token"

func (*What) selectExprNode()   {}
func (*Source) tableExprNode()  {}
func (*IndexSource) tableExprNode() {}

// What is a projection: one item of the SELECT's WHAT/result-column list.
type What struct {
	base
	Expression   Expr
	ColumnName   string
	ExplicitAlias bool
}

func (w *What) Alias() string           { return w.ColumnName }
func (w *What) HasExplicitAlias() bool  { return w.ExplicitAlias }
func (w *What) MatchPath(path *KeyPath) bool {
	if !w.ExplicitAlias {
		return false
	}
	first, ok := path.First()
	if !ok {
		return false
	}
	if !equalFold(first, w.ColumnName) {
		return false
	}
	path.DropComponents(1)
	return true
}

// Source is a FROM-clause item: a collection, a join, an UNNEST, or an
// (implicitly added) index table.
type Source struct {
	base
	AliasName        string
	ExplicitAlias    bool
	Scope            string // canonicalized: "_"/"_default" -> ""
	Collection       string // canonicalized: "_"/"_default" -> ""
	ColumnName       string // name to use if this source is referenced as a bare result column
	TableName        string // physical SQLite table name, set by the façade from the Delegate
	Join             token.JoinType
	JoinOn           Expr
	Unnest           Expr // non-nil for an UNNEST source
	UnnestMaterialized bool
	IndexedNodes     []IndexedNode // set when this Source is (or becomes) an index source's owner list
	UsesDeleted      bool
}

func (s *Source) Alias() string           { return s.AliasName }
func (s *Source) HasExplicitAlias() bool  { return s.ExplicitAlias }
func (s *Source) IsJoin() bool            { return s.Join != token.JoinNone }
func (s *Source) IsUnnest() bool          { return s.Unnest != nil }
func (s *Source) IsCollection() bool      { return !s.IsUnnest() }

func (s *Source) MatchPath(path *KeyPath) bool {
	first, ok := path.First()
	if !ok {
		return false
	}
	if !equalFold(first, s.AliasName) {
		return false
	}
	path.DropComponents(1)
	return true
}

// IndexSource is the implicit FROM item synthesized for an indexed
// expression (FTS or vector). Several IndexedNodes referring to the same
// canonical index identity share one IndexSource.
type IndexSource struct {
	base
	Type        token.IndexType
	Collection  *Source // the collection this index is defined over
	PropertyKey string  // alias-stripped path string of the indexed expression (see propertyKeyString)
	Alias       string  // synthesized alias, "<idx1>", "<idx2>", ...
	TableName   string  // physical index table name, from the Delegate
	Nodes       []IndexedNode
	VectorSimple bool // true if this vector index uses the nested-SELECT "simple" form
	VectorLimit  Expr
}

// identity returns the canonical (type, collection, property) key used to
// detect when two IndexedNodes should share an IndexSource.
func (i *IndexSource) identity() (token.IndexType, string, string) {
	coll := ""
	if i.Collection != nil {
		coll = i.Collection.Scope + "." + i.Collection.Collection
	}
	return i.Type, coll, i.PropertyKey
}

// Select is a SELECT statement, top-level or nested.
type Select struct {
	base
	What               []*What
	Sources            []*Source
	From               *Source // the primary (first non-join, non-unnest) source
	Where              Expr
	GroupBy            []Expr
	Having             Expr
	OrderBy            []OrderTerm
	Limit              Expr
	Offset             Expr
	Distinct           bool
	IsAggregate        bool
	NumPrependedColumns int
	IndexSources       []*IndexSource
}

type OrderTerm struct {
	Expr Expr
	Desc bool
}

// Query is the root node of a top-level translation: a simple wrapper
// around Select that also holds the parsed value tree alive (in Go this is
// implicit via GC, so Query adds nothing beyond documenting the root).
type Query struct {
	*Select
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
