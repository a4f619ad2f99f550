package parser

import (
	"strings"

	"github.com/couchbase/couchbase-lite-core-sub003/ast"
	"github.com/couchbase/couchbase-lite-core-sub003/token"
)

// canonicalScope normalizes a scope/collection name per spec.md §4.2: the
// default is "_default", and any "_" in scope or collection is normalized
// to empty. Grounded on SelectNodes.cc's constructor behavior.
func canonicalScope(s string) string {
	if s == "_" || s == "_default" || s == "" {
		return ""
	}
	return s
}

// parseCollectionPath splits a "scope.collection" or bare "collection"
// string into its canonicalized (scope, collection) pair.
func parseCollectionPath(s string) (scope, collection string) {
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return canonicalScope(s[:i]), canonicalScope(s[i+1:])
	}
	return "", canonicalScope(s)
}

// hasMultipleCollections reports whether more than one non-UNNEST Source is
// declared, per spec.md §4.2 step 3 ("else, if there is more than one
// usable collection source, fail").
func hasMultipleCollections(ctx *ast.ParseContext) bool {
	n := 0
	for _, s := range ctx.Sources {
		if !s.IsUnnest() {
			n++
		}
	}
	return n > 1
}

// resolvePropertyPath implements spec.md §4.2's alias-resolution algorithm,
// grounded on TranslatorUtils.cc's resolvePropertyPath. It consumes leading
// path components that name a declared alias (source or result-column), or
// a meta-property key, leaving the remainder for the Property/Meta node.
//
// Returns exactly one of: (src, nil, MetaNone) for a property bound to a
// Source, (nil, nil, meta) for a meta-property reference (meta !=
// MetaNone), or (nil, what, MetaNone) when the path binds to a result-column
// alias. A consumed leading component is removed from path in place; what
// remains is the property path (for a result-column alias, the key path
// into that column).
func resolvePropertyPath(ctx *ast.ParseContext, path *ast.KeyPath) (src *ast.Source, what *ast.What, meta token.MetaProperty) {
	first, ok := path.First()
	if ok {
		// A declared alias — source or result-column — always shadows a
		// same-named meta property (spec.md §9's second Open Question).
		if aliased, found := ctx.Aliases[strings.ToLower(first)]; found {
			switch v := aliased.(type) {
			case *ast.Source:
				v.MatchPath(path)
				return v, nil, token.MetaNone
			case *ast.What:
				v.MatchPath(path)
				return nil, v, token.MetaNone
			}
		}
		if strings.HasPrefix(first, "_") {
			if m := token.LookupMeta(first[1:]); m != token.MetaNone {
				path.DropComponents(1)
				return nil, nil, m
			}
		}
		// Step 2: the path's leading segment names the primary source's bare
		// collection name, and that source has no explicit alias.
		if ctx.From != nil && !ctx.From.HasExplicitAlias() && equalFoldStr(first, ctx.From.Collection) {
			path.DropComponents(1)
			return ctx.From, nil, token.MetaNone
		}
	}
	// Step 3: bind to the primary source if it's the only usable one.
	if hasMultipleCollections(ctx) {
		fail("property path %q does not begin with a declared 'AS' alias", path.String())
	}
	return ctx.From, nil, token.MetaNone
}

func equalFoldStr(a, b string) bool {
	return strings.EqualFold(a, b)
}
