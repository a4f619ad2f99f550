package ast

import "github.com/couchbase/couchbase-lite-core-sub003/token"

func (*Literal) exprNode()        {}
func (*MetaNode) exprNode()       {}
func (*Parameter) exprNode()      {}
func (*Property) exprNode()       {}
func (*Variable) exprNode()       {}
func (*CollateExpr) exprNode()    {}
func (*RawSQL) exprNode()         {}
func (*Op) exprNode()             {}
func (*AnyEvery) exprNode()       {}
func (*FunctionCall) exprNode()   {}
func (*Match) exprNode()          {}
func (*Rank) exprNode()           {}
func (*VectorDistance) exprNode() {}
func (*Select) exprNode()         {}

// LiteralKind tags which Go type a Literal wraps.
type LiteralKind int

const (
	LitNull LiteralKind = iota
	LitBool
	LitNumber
	LitString
)

// Literal is a null/bool/number/string constant.
type Literal struct {
	base
	Kind LiteralKind
	B    bool
	Num  float64
	Str  string
}

// MetaNode represents meta() / meta(alias) or one of its virtual
// properties (id, sequence, deleted, expiration, revisionID, rowid).
type MetaNode struct {
	base
	Property token.MetaProperty
	Src      *Source // the source this meta() refers to
}

func (m *MetaNode) Source() *Source { return m.Src }

// Parameter is a "$name" placeholder.
type Parameter struct {
	base
	Name string
}

// Property is a dotted document-property access.
type Property struct {
	base
	Src       *Source // the source (collection/join/unnest) this resolves against
	Path      KeyPath
	SQLFn     string // accessor function: fl_value, fl_root, fl_exists, fl_count, fl_blob...
	ExtraArg  Expr   // e.g. the key argument to fl_nested_value's NULL,key form
	InGroupBy bool   // true if this Property sits in a GROUP BY context (uses "data" not "value" column)
}

func (p *Property) Source() *Source { return p.Src }

// Variable is a "?name" bound by ANY/EVERY.
type Variable struct {
	base
	Name       string
	ReturnsBody bool
}

// CollateExpr wraps an expression with an explicit collation scope.
type CollateExpr struct {
	base
	Inner     Expr
	Collation Collation
}

// RawSQL is an emitter-inserted SQL literal (used for synthesized
// predicates like the deleted-doc liveness test).
type RawSQL struct {
	base
	SQL string
}

// Op is a generic operator-table-driven node: AND/OR/NOT, comparisons,
// arithmetic, IN/NOT IN, BETWEEN, LIKE, EXISTS, CASE, BLOB, object-property,
// and MISSING.
type Op struct {
	base
	Def      token.Operation
	Operands []Expr

	// CASE-specific (Def.Type == token.OpCase)
	CaseOperand Expr // may be nil ("no test expression" form)
	Whens       []CaseWhen
	Else        Expr

	// LIKE-specific
	Collation Collation

	// BLOB-specific: the wrapped Property
	BlobProp *Property
}

type CaseWhen struct {
	Cond   Expr
	Result Expr
}

// AnyEvery is ANY/EVERY/ANY AND EVERY.
type AnyEvery struct {
	base
	Op         token.OpType // OpAny, OpEvery, or OpAnyAndEvery
	Var        Variable
	Collection Expr
	Predicate  Expr
}

// FunctionCall is a call from the function table.
type FunctionCall struct {
	base
	Def       token.FunctionSpec
	Args      []Expr
	Collation *Collation // non-nil once a collation argument has been appended
}

// Match is an FTS match(index, text) predicate. IndexProperty identifies
// which indexed property/index this MATCH uses (its first argument); Text
// is the search string (its second argument).
type Match struct {
	base
	IndexSrc     *IndexSource
	IndexProperty Expr
	Text         Expr
}

func (m *Match) Source() *Source { return nil }

// Rank is an FTS rank(index) score accessor. Auxiliary: it must co-occur
// with a non-auxiliary Match on the same index.
type Rank struct {
	base
	IndexSrc     *IndexSource
	IndexProperty Expr
}

// VectorDistance is approx_vector_distance(expr, query, metric?, probes?).
type VectorDistance struct {
	base
	IndexSrc  *IndexSource
	VectorExpr Expr
	Query      Expr
	Metric     string
	NumProbes  Expr
	Hybrid     bool // true => nested-SELECT "simple" form; false => JOIN-with-MATCH form
}

// IndexedNode is implemented by Match, Rank, and VectorDistance: all three
// reference an (possibly shared) IndexSource synthesized by post-processing.
type IndexedNode interface {
	Expr
	indexType() token.IndexType
	indexedProperty() Expr
	setIndexSource(*IndexSource)
}

func (m *Match) indexType() token.IndexType          { return token.IndexFTS }
func (m *Match) indexedProperty() Expr               { return nil }
func (m *Match) setIndexSource(s *IndexSource)        { m.IndexSrc = s }

func (r *Rank) indexType() token.IndexType          { return token.IndexFTS }
func (r *Rank) indexedProperty() Expr               { return nil }
func (r *Rank) setIndexSource(s *IndexSource)        { r.IndexSrc = s }

func (v *VectorDistance) indexType() token.IndexType   { return token.IndexVector }
func (v *VectorDistance) indexedProperty() Expr        { return v.VectorExpr }
func (v *VectorDistance) setIndexSource(s *IndexSource) { v.IndexSrc = s }
