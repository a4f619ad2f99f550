package token

import "strings"

// MetaProperty enumerates the virtual properties of N1QL's meta() object,
// mirroring litecore::qt::MetaProperty exactly including its ordinal
// values (used as an array index by callers).
type MetaProperty int

const (
	MetaNone MetaProperty = iota
	MetaID
	MetaSequence
	MetaDeleted
	MetaExpiration
	MetaRevisionID
	MetaRowID

	// MetaNotDeleted is an internal-only pseudo-property used to emit the
	// "(flags & 1 = 0)" liveness test; it is never produced by parsing a
	// user-supplied meta-property name.
	MetaNotDeleted MetaProperty = -1
)

// metaPropertyNames is kNumMetaProperties-long, index i holds the name for
// MetaProperty(i+1).
var metaPropertyNames = []string{
	"id",
	"sequence",
	"deleted",
	"expiration",
	"revisionID",
	"rowid",
}

// LookupMeta matches a bare key name (without its leading underscore) such
// as "id", "sequence", "deleted" etc. against the meta-property name table.
func LookupMeta(key string) MetaProperty {
	for i, name := range metaPropertyNames {
		if strings.EqualFold(key, name) {
			return MetaProperty(i + 1)
		}
	}
	return MetaNone
}

// JoinType mirrors litecore::qt::JoinType.
type JoinType int

const (
	JoinNone JoinType = iota - 1
	JoinInner
	JoinLeft
	JoinLeftOuter
	JoinCross
)

var joinTypeNames = []string{"INNER", "LEFT", "LEFT OUTER", "CROSS"}

// LookupJoin matches the JOIN-type name from a FROM item's "JOIN" key.
func LookupJoin(name string) JoinType {
	for i, n := range joinTypeNames {
		if strings.EqualFold(name, n) {
			return JoinType(i)
		}
	}
	return JoinNone
}

// String renders the SQL keyword(s) for a join type.
func (j JoinType) String() string {
	switch j {
	case JoinInner:
		return "INNER JOIN"
	case JoinLeft:
		return "LEFT JOIN"
	case JoinLeftOuter:
		return "LEFT OUTER JOIN"
	case JoinCross:
		return "CROSS JOIN"
	default:
		return "JOIN"
	}
}

// IndexType mirrors litecore::qt::IndexType.
type IndexType int

const (
	IndexFTS IndexType = iota
	IndexVector
)
