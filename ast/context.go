package ast

import "sync"

// Collation is the 4-tuple attached to string comparisons: {locale,
// case-sensitive, diacritic-sensitive, unicode-aware}. Mirrors the
// Collation value in original_source's UnicodeCollator.hh, simplified to
// the fields the writer and the demo SQLite delegate actually need.
type Collation struct {
	Locale           string
	CaseSensitive    bool
	DiacriticSensitive bool
	UnicodeAware     bool
}

// Name renders the SQLite COLLATE name for this collation (NOCASE, BINARY,
// or UNICODE[_<locale>][_CS][_DS]).
func (c Collation) Name() string {
	name := "NOCASE"
	if c.CaseSensitive {
		name = "BINARY"
	}
	if c.UnicodeAware || c.Locale != "" {
		name = "UNICODE"
		if c.Locale != "" {
			name += "_" + c.Locale
		}
		if c.CaseSensitive {
			name += "_CS"
		}
		if c.DiacriticSensitive {
			name += "_DS"
		}
	}
	return name
}

// ParseContext carries state down through the recursive-descent parse of
// one Select (and is replaced by a fresh instance for each nested Select,
// per spec.md §4.1's "SELECT" rule). It plays the role of
// litecore::qt::ParseContext.
type ParseContext struct {
	Root      *RootContext
	Select    *Select // enclosing SELECT, nil at the outermost expression-only entry points
	Aliases   map[string]Aliased // case-insensitive: keys are lower-cased
	Sources   []*Source
	From      *Source // the primary (first non-join) source
	Collation Collation
	CollationApplied bool // set true by NewParseContext and by each COLLATE scope, never false; LIKE takes Collation when it is set. It does not track whether a COLLATE was emitted.
}

// NewParseContext creates a context for a nested SELECT or a sub-expression,
// inheriting the current collation but starting with fresh alias/source
// bookkeeping so aliases don't leak across SELECT boundaries.
func NewParseContext(root *RootContext, parent *ParseContext) *ParseContext {
	ctx := &ParseContext{
		Root:             root,
		Aliases:          make(map[string]Aliased),
		CollationApplied: true,
	}
	if parent != nil {
		ctx.Collation = parent.Collation
	}
	return ctx
}

// RootContext owns every node allocated during one Parse call and is the Go
// analogue of the spec's arena: nodes are returned to their sync.Pools
// collectively when Release is called, giving the same "nothing outlives
// the compile" lifetime without needing an unsafe bump allocator.
type RootContext struct {
	mu        sync.Mutex
	allocated []any
	indexAliasCounter int
}

// NewRootContext creates a fresh arena-equivalent for one Parse call.
func NewRootContext() *RootContext {
	return &RootContext{}
}

// track records a pooled node so Release can return it later. Cheap,
// unpooled node types don't need to call this.
func (r *RootContext) track(n any) {
	r.mu.Lock()
	r.allocated = append(r.allocated, n)
	r.mu.Unlock()
}

// NextIndexAlias returns the next synthesized index-source alias,
// "<idx1>", "<idx2>", ... matching spec.md §4.4 step 2 / example #5 and #6.
// The angle brackets are part of the alias itself (IndexedNodes.cc mints
// them the same way: format("<idx%d>", n++)) and force the writer to
// double-quote every reference to it.
func (r *RootContext) NextIndexAlias() string {
	r.indexAliasCounter++
	return "<idx" + itoa(r.indexAliasCounter) + ">"
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	neg := n < 0
	if neg {
		n = -n
	}
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// Release returns all pooled nodes allocated from this context back to
// their sync.Pools. Safe to call once, after the façade is done with the
// generated SQL and side outputs.
func (r *RootContext) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.allocated {
		releasePooled(n)
	}
	r.allocated = nil
}
