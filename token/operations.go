// Package token holds the compile-time static tables the parser and writer
// dispatch through: the operation table, the function table, and the small
// fixed name tables for meta-properties and join types. These are modeled
// directly on kOperationList / kFunctionList in the original LiteCore Query
// Translator (TranslatorTables.hh) and on the teacher's own keyword-table
// idiom of a flat slice of POD records searched linearly at parse time.
package token

import "strings"

// OpType identifies an operator recognized by name in the operation table.
// A handful of names get dedicated AST node types; the rest become generic
// Op nodes driven entirely by the table.
type OpType int

const (
	OpUnknown OpType = iota
	OpSelect
	OpAll // "ALL" nested select quantifier, handled like Select
	OpAnd
	OpOr
	OpNot
	OpEq
	OpNotEq
	OpLess
	OpLessEq
	OpGreater
	OpGreaterEq
	OpIs
	OpIsNot
	OpLike
	OpNotLike
	OpIn
	OpNotIn
	OpBetween
	OpNotBetween
	OpPlus
	OpMinus
	OpUnaryMinus
	OpMultiply
	OpDivide
	OpModulo
	OpConcat
	OpExists
	OpCase
	OpAny
	OpEvery
	OpAnyAndEvery
	OpProperty     // "."
	OpObjectProp   // "_."
	OpParameter    // "$"
	OpVariable     // "?"
	OpArrayOf      // "[]"
	OpBlob         // "BLOB"
	OpMeta         // "META()"
	OpMatch        // "MATCH()"
	OpRank         // "RANK()"
	OpVectorDist   // "APPROX_VECTOR_DISTANCE()"
	OpCollate      // "COLLATE"
	OpMissing      // "MISSING"
	OpIsValued     // "ISVALUED"
	OpArrayCount   // "array_count" special-cased in parse
)

// Precedence classes, mirroring spec.md §4.5 verbatim.
const (
	PrecExprList  = -3
	PrecArgList   = -2
	PrecStatement = -1
	PrecSelect    = 1
	PrecAndOr     = 2
	PrecCompareEq = 3 // =, !=, IS, IN, LIKE, BETWEEN, ||, MATCH
	PrecCompareOrd = 4 // <, <=, >, >=
	PrecAdd       = 6
	PrecMul       = 7
	PrecExists    = 8
	PrecUnary     = 9
	PrecCollate   = 10
	PrecCall      = 99
)

// Operation is one entry of the operation table: an operator's name, arity
// range, SQL precedence, and result-type/aggregate flags.
type Operation struct {
	Name       string
	Type       OpType
	MinArgs    int
	MaxArgs    int
	Precedence int
	SQLOp      string // infix/prefix spelling, when generic
	Flags      OpFlags
}

// OpFlags mirrors litecore::qt::OpFlags.
type OpFlags uint8

const (
	FlagNone        OpFlags = 0
	FlagBoolResult  OpFlags = 0x02
	FlagNumResult   OpFlags = 0x04
	FlagStrResult   OpFlags = 0x08
	FlagAggregate   OpFlags = 0x10
	FlagWantsCollate OpFlags = 0x20
)

const maxOpArgs = 9

// Operations is the operation table, in match order (first match by name
// wins the name-matched check; arity is checked per-entry exactly like
// lookupOp in TranslatorUtils.cc, which also allows overloaded arity ranges
// under the same name).
var Operations = []Operation{
	{Name: "SELECT", Type: OpSelect, MinArgs: 0, MaxArgs: 1, Precedence: PrecSelect},
	{Name: "ALL", Type: OpAll, MinArgs: 0, MaxArgs: 1, Precedence: PrecSelect},

	{Name: "AND", Type: OpAnd, MinArgs: 2, MaxArgs: maxOpArgs, Precedence: PrecAndOr, SQLOp: "AND", Flags: FlagBoolResult},
	{Name: "OR", Type: OpOr, MinArgs: 2, MaxArgs: maxOpArgs, Precedence: PrecAndOr, SQLOp: "OR", Flags: FlagBoolResult},
	{Name: "NOT", Type: OpNot, MinArgs: 1, MaxArgs: 1, Precedence: PrecUnary, SQLOp: "NOT", Flags: FlagBoolResult},

	{Name: "=", Type: OpEq, MinArgs: 2, MaxArgs: 2, Precedence: PrecCompareEq, SQLOp: "=", Flags: FlagBoolResult},
	{Name: "!=", Type: OpNotEq, MinArgs: 2, MaxArgs: 2, Precedence: PrecCompareEq, SQLOp: "!=", Flags: FlagBoolResult},
	{Name: "<>", Type: OpNotEq, MinArgs: 2, MaxArgs: 2, Precedence: PrecCompareEq, SQLOp: "!=", Flags: FlagBoolResult},
	{Name: "<", Type: OpLess, MinArgs: 2, MaxArgs: 2, Precedence: PrecCompareOrd, SQLOp: "<", Flags: FlagBoolResult},
	{Name: "<=", Type: OpLessEq, MinArgs: 2, MaxArgs: 2, Precedence: PrecCompareOrd, SQLOp: "<=", Flags: FlagBoolResult},
	{Name: ">", Type: OpGreater, MinArgs: 2, MaxArgs: 2, Precedence: PrecCompareOrd, SQLOp: ">", Flags: FlagBoolResult},
	{Name: ">=", Type: OpGreaterEq, MinArgs: 2, MaxArgs: 2, Precedence: PrecCompareOrd, SQLOp: ">=", Flags: FlagBoolResult},
	{Name: "IS", Type: OpIs, MinArgs: 2, MaxArgs: 2, Precedence: PrecCompareEq, SQLOp: "IS", Flags: FlagBoolResult},
	{Name: "IS NOT", Type: OpIsNot, MinArgs: 2, MaxArgs: 2, Precedence: PrecCompareEq, SQLOp: "IS NOT", Flags: FlagBoolResult},

	{Name: "LIKE", Type: OpLike, MinArgs: 2, MaxArgs: 2, Precedence: PrecCompareEq, SQLOp: "LIKE", Flags: FlagBoolResult | FlagWantsCollate},
	{Name: "NOT LIKE", Type: OpNotLike, MinArgs: 2, MaxArgs: 2, Precedence: PrecCompareEq, SQLOp: "NOT LIKE", Flags: FlagBoolResult | FlagWantsCollate},

	{Name: "IN", Type: OpIn, MinArgs: 2, MaxArgs: maxOpArgs, Precedence: PrecCompareEq, Flags: FlagBoolResult},
	{Name: "NOT IN", Type: OpNotIn, MinArgs: 2, MaxArgs: maxOpArgs, Precedence: PrecCompareEq, Flags: FlagBoolResult},

	{Name: "BETWEEN", Type: OpBetween, MinArgs: 3, MaxArgs: 3, Precedence: PrecCompareEq, Flags: FlagBoolResult},
	{Name: "NOT BETWEEN", Type: OpNotBetween, MinArgs: 3, MaxArgs: 3, Precedence: PrecCompareEq, Flags: FlagBoolResult},

	{Name: "+", Type: OpPlus, MinArgs: 1, MaxArgs: maxOpArgs, Precedence: PrecAdd, SQLOp: "+", Flags: FlagNumResult},
	{Name: "-", Type: OpMinus, MinArgs: 1, MaxArgs: maxOpArgs, Precedence: PrecAdd, SQLOp: "-", Flags: FlagNumResult},
	{Name: "*", Type: OpMultiply, MinArgs: 2, MaxArgs: maxOpArgs, Precedence: PrecMul, SQLOp: "*", Flags: FlagNumResult},
	{Name: "/", Type: OpDivide, MinArgs: 2, MaxArgs: maxOpArgs, Precedence: PrecMul, SQLOp: "/", Flags: FlagNumResult},
	{Name: "%", Type: OpModulo, MinArgs: 2, MaxArgs: 2, Precedence: PrecMul, SQLOp: "%", Flags: FlagNumResult},
	{Name: "||", Type: OpConcat, MinArgs: 2, MaxArgs: maxOpArgs, Precedence: PrecCompareEq, SQLOp: "||", Flags: FlagStrResult},

	{Name: "EXISTS", Type: OpExists, MinArgs: 1, MaxArgs: 1, Precedence: PrecExists, SQLOp: "EXISTS", Flags: FlagBoolResult},
	{Name: "MISSING", Type: OpMissing, MinArgs: 0, MaxArgs: 0, Precedence: PrecCall},
	{Name: "ISVALUED", Type: OpIsValued, MinArgs: 1, MaxArgs: 1, Precedence: PrecExists, Flags: FlagBoolResult},

	{Name: "CASE", Type: OpCase, MinArgs: 1, MaxArgs: maxOpArgs, Precedence: PrecCall},

	{Name: "ANY", Type: OpAny, MinArgs: 3, MaxArgs: 3, Precedence: PrecSelect, Flags: FlagBoolResult},
	{Name: "EVERY", Type: OpEvery, MinArgs: 3, MaxArgs: 3, Precedence: PrecSelect, Flags: FlagBoolResult},
	{Name: "ANY AND EVERY", Type: OpAnyAndEvery, MinArgs: 3, MaxArgs: 3, Precedence: PrecSelect, Flags: FlagBoolResult},

	{Name: ".", Type: OpProperty, MinArgs: 0, MaxArgs: maxOpArgs, Precedence: PrecCall},
	{Name: "_.", Type: OpObjectProp, MinArgs: 1, MaxArgs: 2, Precedence: PrecCall},
	{Name: "$", Type: OpParameter, MinArgs: 1, MaxArgs: 1, Precedence: PrecCall},
	{Name: "?", Type: OpVariable, MinArgs: 1, MaxArgs: maxOpArgs, Precedence: PrecCall},
	{Name: "[]", Type: OpArrayOf, MinArgs: 0, MaxArgs: maxOpArgs, Precedence: PrecCall},
	{Name: "BLOB", Type: OpBlob, MinArgs: 1, MaxArgs: 1, Precedence: PrecCall},

	{Name: "META()", Type: OpMeta, MinArgs: 0, MaxArgs: 1, Precedence: PrecCall},
	{Name: "MATCH()", Type: OpMatch, MinArgs: 2, MaxArgs: 2, Precedence: PrecCompareEq, Flags: FlagBoolResult},
	{Name: "RANK()", Type: OpRank, MinArgs: 1, MaxArgs: 1, Precedence: PrecCall, Flags: FlagNumResult},
	{Name: "APPROX_VECTOR_DISTANCE()", Type: OpVectorDist, MinArgs: 2, MaxArgs: 5, Precedence: PrecCall, Flags: FlagNumResult},

	{Name: "COLLATE", Type: OpCollate, MinArgs: 2, MaxArgs: 2, Precedence: PrecCollate},
}

// LookupOp finds the operation with the given name and checks arity exactly
// like litecore::qt::lookupOp: if the name matches at all but arity is
// wrong, nameMatched is true and arityOK is false. If the name never
// matches, both are false so the caller falls through to other dispatch
// rules.
func LookupOp(name string, nArgs int) (op Operation, nameMatched bool, arityOK bool) {
	for _, def := range Operations {
		if strings.EqualFold(def.Name, name) {
			nameMatched = true
			if nArgs >= def.MinArgs && nArgs <= def.MaxArgs {
				return def, true, true
			}
		}
	}
	return Operation{}, nameMatched, false
}

// LookupOpByType returns the table entry with the given OpType.
func LookupOpByType(t OpType) (Operation, bool) {
	for _, def := range Operations {
		if def.Type == t {
			return def, true
		}
	}
	return Operation{}, false
}
