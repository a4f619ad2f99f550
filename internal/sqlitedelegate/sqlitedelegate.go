// Package sqlitedelegate is a worked-example qt.Delegate backed by
// modernc.org/sqlite: it names collection/FTS/unnested/vector tables after
// LiteCore's own naming convention and registers a subset of the
// fl_*/encode_vector SQL functions the generated SQL calls (see
// registerFunctions). It registers no SQLite collations.
package sqlitedelegate

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	_ "modernc.org/sqlite"

	qt "github.com/couchbase/couchbase-lite-core-sub003"
)

// Delegate resolves physical table names against one open SQLite database
// and keeps a small cache of per-locale collators so repeated Collator
// calls for the same locale don't re-resolve golang.org/x/text/language
// tags.
type Delegate struct {
	db         *sql.DB
	collators  map[string]*collate.Collator
	predictive bool // feature gate: predictive_table_name support
	vector     bool // feature gate: vector_table_name support
}

// Option configures a Delegate at construction.
type Option func(*Delegate)

// WithPredictiveQueries enables PredictiveTableName.
func WithPredictiveQueries() Option { return func(d *Delegate) { d.predictive = true } }

// WithVectorSearch enables VectorTableName.
func WithVectorSearch() Option { return func(d *Delegate) { d.vector = true } }

// Open opens (or creates) a SQLite database at path and registers the
// custom SQL functions listed in registerFunctions, mirroring LiteCore's
// SQLiteFleeceFunctions.cc registration. No collations are registered.
func Open(path string, opts ...Option) (*Delegate, error) {
	if err := registerFunctions(); err != nil {
		return nil, fmt.Errorf("registering sql functions: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	d := &Delegate{db: db, collators: map[string]*collate.Collator{}}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Close closes the underlying database.
func (d *Delegate) Close() error { return d.db.Close() }

// TableExists reports whether name is a real table in sqlite_master.
func (d *Delegate) TableExists(name string) bool {
	var n int
	err := d.db.QueryRow(`SELECT count(*) FROM sqlite_master WHERE type='table' AND name=?`, name).Scan(&n)
	return err == nil && n > 0
}

// CollectionTableName names a collection's physical table following
// LiteCore's "kv_<scope>_<collection>" convention, with "_default" used for
// the unnamed default scope/collection (DataFile.cc's kDefaultCollectionName).
func (d *Delegate) CollectionTableName(scope, collection string, status qt.DeletionStatus) (string, error) {
	scope = orDefault(scope)
	collection = orDefault(collection)
	name := fmt.Sprintf("kv_%s_%s", scope, collection)
	switch status {
	case qt.LiveDocs:
		return name, nil
	case qt.LiveAndDeletedDocs, qt.DeletedDocs:
		// LiteCore stores live and tombstoned docs in the same physical
		// table, distinguished by the flags column, so both statuses resolve
		// to the same table here. The translator's deleted-doc rewrite
		// (ast.Select.applyDeletedDocRewrite) filters on flags only for
		// default-collection sources, so named-collection queries through
		// this delegate also return deleted docs.
		return name, nil
	default:
		return "", fmt.Errorf("unknown deletion status %v", status)
	}
}

// FTSTableName names a full-text index table, e.g. "kv_default::title".
func (d *Delegate) FTSTableName(onTable, property string) (string, error) {
	return fmt.Sprintf("%s::%s", onTable, sanitizeIndexSuffix(property)), nil
}

// UnnestedTableName names a materialized UNNEST shadow table.
func (d *Delegate) UnnestedTableName(onTable, property string) (string, error) {
	return fmt.Sprintf("%s::unnest::%s", onTable, sanitizeIndexSuffix(property)), nil
}

// PredictiveTableName names a predictive-index cache table.
func (d *Delegate) PredictiveTableName(onTable, property string) (string, error) {
	if !d.predictive {
		return "", fmt.Errorf("predictive queries are not enabled on this delegate")
	}
	return fmt.Sprintf("%s::predictive::%s", onTable, sanitizeIndexSuffix(property)), nil
}

// VectorTableName names a vector index table.
func (d *Delegate) VectorTableName(scope, collection, propertyJSON, metric string) (string, error) {
	if !d.vector {
		return "", fmt.Errorf("vector search is not enabled on this delegate")
	}
	scope, collection = orDefault(scope), orDefault(collection)
	return fmt.Sprintf("kv_%s_%s::vector::%s::%s", scope, collection, sanitizeIndexSuffix(propertyJSON), metric), nil
}

// Collator returns (creating and caching if necessary) the collator for the
// named UNICODE/UNICODE_<locale> collation, resolving locale via
// golang.org/x/text/language the way ast.Collation.Name renders it.
func (d *Delegate) Collator(locale string) *collate.Collator {
	if c, ok := d.collators[locale]; ok {
		return c
	}
	tag := language.Und
	if locale != "" {
		if t, err := language.Parse(locale); err == nil {
			tag = t
		}
	}
	c := collate.New(tag)
	d.collators[locale] = c
	return c
}

// NewDocumentKey mints a synthetic document key for fixture/test data,
// mirroring LiteCore's UUID-derived document ID scheme.
func NewDocumentKey() string {
	return uuid.NewString()
}

func orDefault(s string) string {
	if s == "" {
		return "_default"
	}
	return s
}

func sanitizeIndexSuffix(s string) string {
	s = strings.Trim(s, `.[]"`)
	return strings.NewReplacer(".", "_", "[", "_", "]", "", `"`, "").Replace(s)
}
