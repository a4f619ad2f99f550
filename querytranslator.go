// Package qt is the façade for the Query Translator: it ties the ast,
// token, parser, and format packages together into the public API a caller
// uses to compile a JSON query into SQLite-flavor SQL, mirroring the
// teacher's root sqlparser.go façade file (here renamed querytranslator.go)
// that ties together its own ast/lexer/parser/format/visitor packages.
package qt

import (
	"fmt"
	"strings"

	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/couchbase/couchbase-lite-core-sub003/ast"
	"github.com/couchbase/couchbase-lite-core-sub003/format"
	"github.com/couchbase/couchbase-lite-core-sub003/parser"
	"github.com/couchbase/couchbase-lite-core-sub003/token"
	"github.com/couchbase/couchbase-lite-core-sub003/visitor"
)

// ErrInvalidQuery is the single error kind spec.md §7 calls for: every
// rejected query surfaces as this one sentinel, annotated with a
// human-readable reason via juju/errors so callers can still read the
// detail while testing errors.Is(err, ErrInvalidQuery)-style with
// IsInvalidQuery.
var ErrInvalidQuery = errors.New("invalid query")

// IsInvalidQuery reports whether err (or its cause, per juju/errors'
// unwrapping) is ErrInvalidQuery.
func IsInvalidQuery(err error) bool {
	return errors.Cause(err) == ErrInvalidQuery
}

// DeletionStatus selects which of a collection's physical table shapes a
// Delegate should name, per spec.md §6.
type DeletionStatus int

const (
	LiveDocs DeletionStatus = iota
	LiveAndDeletedDocs
	DeletedDocs
)

// Delegate supplies the physical table names the translator has no business
// knowing on its own, mirroring spec.md §6's required capabilities.
type Delegate interface {
	TableExists(name string) bool
	CollectionTableName(scope, collection string, status DeletionStatus) (string, error)
	FTSTableName(onTable, property string) (string, error)
	UnnestedTableName(onTable, property string) (string, error)
	PredictiveTableName(onTable, property string) (string, error)
	VectorTableName(scope, collection, propertyJSON, metric string) (string, error)
}

// QueryTranslator compiles one query at a time. It is not safe for
// concurrent use (spec.md §5); independent instances are fully isolated.
type QueryTranslator struct {
	delegate Delegate
	logger   *zap.Logger

	root *ast.RootContext
	sel  *ast.Select

	sql                     string
	parameters              []string
	collectionTablesUsed    []string
	ftsTablesUsed           []string
	firstCustomResultColumn int
	columnTitles            []string
	isAggregate             bool
	usesExpiration          bool
}

// Option configures a QueryTranslator at construction.
type Option func(*QueryTranslator)

// WithLogger injects a zap logger; the default is a no-op logger so library
// consumers who don't want logging pay nothing, per SPEC_FULL.md §7a.
func WithLogger(l *zap.Logger) Option {
	return func(t *QueryTranslator) { t.logger = l }
}

// New creates a QueryTranslator backed by the given Delegate.
func New(delegate Delegate, opts ...Option) *QueryTranslator {
	t := &QueryTranslator{delegate: delegate, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// fail logs a structured warning and returns a juju/errors-annotated
// ErrInvalidQuery, mirroring TranslatorUtils.cc's Warn-then-throw idiom
// (SPEC_FULL.md §7).
func (t *QueryTranslator) fail(reason string, args ...any) error {
	msg := fmt.Sprintf(reason, args...)
	t.logger.Warn("invalid query", zap.String("reason", msg))
	return errors.Annotate(ErrInvalidQuery, msg)
}

// ParseJSON decodes a JSON query body and compiles it to SQL.
func (t *QueryTranslator) ParseJSON(data []byte) error {
	v, err := ast.ParseJSONValue(data)
	if err != nil {
		return t.fail("%v", err)
	}
	return t.Parse(v)
}

// Parse compiles an already-decoded query value to SQL, resolving physical
// table names through the Delegate and collecting the façade outputs
// spec.md §6 describes.
func (t *QueryTranslator) Parse(v ast.Value) error {
	root := ast.NewRootContext()
	sel, err := parser.Parse(root, v)
	if err != nil {
		root.Release()
		return t.fail("%v", err)
	}
	if err := t.resolveTableNames(root, sel); err != nil {
		root.Release()
		return t.fail("%v", err)
	}

	t.root = root
	t.sel = sel
	t.collectOutputs(sel)
	t.sql = format.SelectString(sel)
	return nil
}

// Release returns every AST node allocated during the last Parse call to
// its sync.Pool. Safe to call once the SQL and side outputs have been read.
func (t *QueryTranslator) Release() {
	if t.root != nil {
		t.root.Release()
		t.root = nil
	}
}

// SQL returns the SQL generated by the last successful Parse.
func (t *QueryTranslator) SQL() string { return t.sql }

// Parameters returns the names of the "$"-parameters referenced, in
// first-reference order.
func (t *QueryTranslator) Parameters() []string { return t.parameters }

// CollectionTablesUsed returns the physical collection tables the query
// reads, in first-reference order.
func (t *QueryTranslator) CollectionTablesUsed() []string { return t.collectionTablesUsed }

// FTSTablesUsed returns the FTS index tables referenced, in first-reference
// order.
func (t *QueryTranslator) FTSTablesUsed() []string { return t.ftsTablesUsed }

// FirstCustomResultColumn returns the number of implicit leading result
// columns (FTS rowid + offsets) prepended to the WHAT list.
func (t *QueryTranslator) FirstCustomResultColumn() int { return t.firstCustomResultColumn }

// ColumnTitles returns the unique, human-readable result-column names.
func (t *QueryTranslator) ColumnTitles() []string { return t.columnTitles }

// IsAggregateQuery reports whether the top-level SELECT is an aggregate
// query (DISTINCT, GROUP BY, or an aggregate function call).
func (t *QueryTranslator) IsAggregateQuery() bool { return t.isAggregate }

// UsesExpiration reports whether the query references meta().expiration.
func (t *QueryTranslator) UsesExpiration() bool { return t.usesExpiration }

func (t *QueryTranslator) collectOutputs(sel *ast.Select) {
	t.firstCustomResultColumn = sel.NumPrependedColumns
	t.isAggregate = sel.IsAggregate

	t.columnTitles = t.columnTitles[:0]
	for _, w := range sel.What {
		t.columnTitles = append(t.columnTitles, w.ColumnName)
	}

	seenParam := map[string]bool{}
	seenColl := map[string]bool{}
	seenFTS := map[string]bool{}
	t.parameters = t.parameters[:0]
	t.collectionTablesUsed = t.collectionTablesUsed[:0]
	t.ftsTablesUsed = t.ftsTablesUsed[:0]

	eachSelect(sel, func(s *ast.Select) {
		for _, src := range s.Sources {
			if src.IsCollection() && src.TableName != "" && !seenColl[src.TableName] {
				seenColl[src.TableName] = true
				t.collectionTablesUsed = append(t.collectionTablesUsed, src.TableName)
			}
		}
		for _, idx := range s.IndexSources {
			if idx.Type == token.IndexFTS && idx.TableName != "" && !seenFTS[idx.TableName] {
				seenFTS[idx.TableName] = true
				t.ftsTablesUsed = append(t.ftsTablesUsed, idx.TableName)
			}
		}
		visitor.WalkFunc(s, func(n ast.Node) bool {
			switch v := n.(type) {
			case *ast.Parameter:
				if !seenParam[v.Name] {
					seenParam[v.Name] = true
					t.parameters = append(t.parameters, v.Name)
				}
			case *ast.MetaNode:
				if v.Property == token.MetaExpiration {
					t.usesExpiration = true
				}
			}
			return true
		})
	})
}

// eachSelect calls fn for sel and every nested Select reachable from it
// (a nested SELECT appears directly as an Expr in the tree, per
// ast.Select's own exprNode()).
func eachSelect(sel *ast.Select, fn func(*ast.Select)) {
	fn(sel)
	visitor.WalkFunc(sel, func(n ast.Node) bool {
		if nested, ok := n.(*ast.Select); ok && nested != sel {
			eachSelect(nested, fn)
			return false
		}
		return true
	})
}

// resolveTableNames asks the Delegate for every Source's and IndexSource's
// physical table name, across the top-level Select and every nested one.
func (t *QueryTranslator) resolveTableNames(root *ast.RootContext, sel *ast.Select) error {
	var outerErr error
	eachSelect(sel, func(s *ast.Select) {
		if outerErr != nil {
			return
		}
		for _, src := range s.Sources {
			if src.IsUnnest() {
				if src.UnnestMaterialized && s.From != nil {
					name, err := t.delegate.UnnestedTableName(s.From.TableName, unnestPropertyKey(src.Unnest))
					if err != nil {
						outerErr = err
						return
					}
					src.TableName = name
				}
				continue
			}
			status := LiveDocs
			if src.UsesDeleted {
				status = LiveAndDeletedDocs
			}
			name, err := t.delegate.CollectionTableName(src.Scope, src.Collection, status)
			if err != nil {
				outerErr = err
				return
			}
			src.TableName = name
		}
		for _, idx := range s.IndexSources {
			var (
				name string
				err  error
			)
			switch idx.Type {
			case token.IndexFTS:
				name, err = t.delegate.FTSTableName(sourceTableName(idx.Collection), idx.PropertyKey)
			case token.IndexVector:
				metric := ""
				if len(idx.Nodes) > 0 {
					if vd, ok := idx.Nodes[0].(*ast.VectorDistance); ok {
						metric = vd.Metric
					}
				}
				name, err = t.delegate.VectorTableName(scopeOf(idx.Collection), collectionOf(idx.Collection), idx.PropertyKey, metric)
			}
			if err != nil {
				outerErr = err
				return
			}
			idx.TableName = name
		}
	})
	return outerErr
}

func sourceTableName(s *ast.Source) string {
	if s == nil {
		return ""
	}
	return s.TableName
}

func scopeOf(s *ast.Source) string {
	if s == nil {
		return ""
	}
	return s.Scope
}

func collectionOf(s *ast.Source) string {
	if s == nil {
		return ""
	}
	return s.Collection
}

// unnestPropertyKey renders the UNNEST expression's property path, the key
// the Delegate's unnested-table naming keys off of.
func unnestPropertyKey(e ast.Expr) string {
	if p, ok := e.(*ast.Property); ok {
		return p.Path.String()
	}
	return ""
}

// --- §4.6 index-creation sub-paths ---
//
// These share the same expression parser and SQL writer as Parse, but start
// from a stub ParseContext (parser.NewStubContext): a single synthetic
// Source named by alias, no FROM parsing, no deleted-doc rewriting. They
// are used by external index-creation code to generate triggers whose
// bodies refer to new.body/old.body rather than body.

// ExpressionSQL parses v as a standalone expression against a stub source
// named alias and renders it to SQL.
func (t *QueryTranslator) ExpressionSQL(v ast.Value, alias string) (string, error) {
	root := ast.NewRootContext()
	defer root.Release()
	ctx := parser.NewStubContext(root, alias)
	e, err := parser.ParseExpr(ctx, v)
	if err != nil {
		return "", t.fail("%v", err)
	}
	return format.String(e), nil
}

// WhereClauseSQL parses v as a standalone expression and renders it with
// bodyColumn substituted for the stub source's body-column references
// (e.g. "new.body"/"old.body" for a trigger body), per spec.md §4.6.
func (t *QueryTranslator) WhereClauseSQL(v ast.Value, alias, bodyColumn string) (string, error) {
	root := ast.NewRootContext()
	defer root.Release()
	ctx := parser.NewStubContext(root, alias)
	e, err := parser.ParseExpr(ctx, v)
	if err != nil {
		return "", t.fail("%v", err)
	}
	w := format.NewWriter()
	w.BodyColumn = bodyColumn
	w.WriteExpr(e, token.PrecStatement)
	return w.String(), nil
}

// FTSExpressionSQL parses v as the indexed expression of a full-text index
// definition and renders it to SQL (the column expression stored in the
// FTS virtual table's CREATE VIRTUAL TABLE statement).
func (t *QueryTranslator) FTSExpressionSQL(v ast.Value, alias string) (string, error) {
	return t.ExpressionSQL(v, alias)
}

// FTSColumnName derives the FTS index's column name from its indexed
// expression: the last path component of a property access, or "expr" for
// anything else (deriveColumnName in ast/postprocess.go uses the same
// last-component rule for Property columns).
func (t *QueryTranslator) FTSColumnName(v ast.Value) (string, error) {
	root := ast.NewRootContext()
	defer root.Release()
	ctx := parser.NewStubContext(root, "_")
	e, err := parser.ParseExpr(ctx, v)
	if err != nil {
		return "", t.fail("%v", err)
	}
	if p, ok := e.(*ast.Property); ok {
		if last, ok := lastPathComponent(p.Path); ok {
			return last, nil
		}
	}
	return "expr", nil
}

func lastPathComponent(p ast.KeyPath) (string, bool) {
	if p.Empty() {
		return "", false
	}
	last := p.Components[len(p.Components)-1]
	if last.IsIndex {
		return "", false
	}
	return last.Key, true
}

// VectorToIndexExpressionSQL parses v as a vector index's indexed
// expression and renders it wrapped in encode_vector(), validating the
// caller-supplied dimensionality against the literal vector's length when
// the expression is a literal array.
func (t *QueryTranslator) VectorToIndexExpressionSQL(v ast.Value, alias string, dimensions int) (string, error) {
	if arr, ok := v.AsArray(); ok && len(arr) > 0 {
		if _, isOp := v.IsOperatorArray(); !isOp && len(arr) != dimensions {
			return "", t.fail("vector literal has %d dimensions, index expects %d", len(arr), dimensions)
		}
	}
	sql, err := t.ExpressionSQL(v, alias)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("encode_vector(%s)", sql), nil
}

// WriteCreateIndex emits a CREATE INDEX (or, for isUnnested, an index over
// the unnested shadow table) statement for a secondary index definition.
func (t *QueryTranslator) WriteCreateIndex(name, onTable string, what []ast.Value, where ast.Value, isUnnested bool) (string, error) {
	alias := "_"
	cols := make([]string, 0, len(what))
	for _, w := range what {
		sql, err := t.ExpressionSQL(w, alias)
		if err != nil {
			return "", err
		}
		cols = append(cols, sql)
	}

	var sb strings.Builder
	sb.WriteString("CREATE INDEX ")
	sb.WriteString(quoteIdentifier(name))
	sb.WriteString(" ON ")
	table := onTable
	if isUnnested {
		table = onTable + "::unnest"
	}
	sb.WriteString(quoteIdentifier(table))
	sb.WriteString("(")
	sb.WriteString(strings.Join(cols, ", "))
	sb.WriteString(")")

	if !where.IsNull() {
		whereSQL, err := t.ExpressionSQL(where, alias)
		if err != nil {
			return "", err
		}
		sb.WriteString(" WHERE ")
		sb.WriteString(whereSQL)
	}
	return sb.String(), nil
}

func quoteIdentifier(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
