package token

import "strings"

// FunctionSpec is one entry of the function table (kFunctionList in the
// original), describing a callable function name, its arity range, the
// SQLite-side name to emit (when it differs from the query-language name),
// and its result/aggregate/collation flags.
type FunctionSpec struct {
	Name       string
	SQLiteName string // emitted name; defaults to Name if empty
	MinArgs    int
	MaxArgs    int
	Flags      OpFlags
}

// SQLName returns the name to emit in generated SQL.
func (f FunctionSpec) SQLName() string {
	if f.SQLiteName != "" {
		return f.SQLiteName
	}
	return f.Name
}

// Functions is the function table. Names are matched case-insensitively,
// mirroring kFunctionList's slice.caseEquivalent comparisons.
var Functions = []FunctionSpec{
	{Name: "abs", MinArgs: 1, MaxArgs: 1, Flags: FlagNumResult},
	{Name: "array_avg", SQLiteName: "fl_array_avg", MinArgs: 1, MaxArgs: 1, Flags: FlagNumResult},
	{Name: "array_contains", SQLiteName: "fl_contains", MinArgs: 2, MaxArgs: 2, Flags: FlagBoolResult},
	{Name: "array_count", SQLiteName: "fl_count", MinArgs: 1, MaxArgs: 1, Flags: FlagNumResult},
	{Name: "array_ifnull", MinArgs: 1, MaxArgs: 1},
	{Name: "array_length", MinArgs: 1, MaxArgs: 1, Flags: FlagNumResult},
	{Name: "array_max", MinArgs: 1, MaxArgs: 1, Flags: FlagNumResult},
	{Name: "array_min", MinArgs: 1, MaxArgs: 1, Flags: FlagNumResult},
	{Name: "array_of", MinArgs: 0, MaxArgs: maxOpArgs},
	{Name: "array_sum", MinArgs: 1, MaxArgs: 1, Flags: FlagNumResult},
	{Name: "avg", MinArgs: 1, MaxArgs: 1, Flags: FlagNumResult | FlagAggregate},
	{Name: "ceil", MinArgs: 1, MaxArgs: 1, Flags: FlagNumResult},
	{Name: "coalesce", MinArgs: 1, MaxArgs: maxOpArgs},
	{Name: "concat", SQLiteName: "fl_concat", MinArgs: 1, MaxArgs: maxOpArgs, Flags: FlagStrResult},
	{Name: "contains", SQLiteName: "fl_contains", MinArgs: 2, MaxArgs: 2, Flags: FlagBoolResult | FlagWantsCollate},
	{Name: "count", MinArgs: 1, MaxArgs: 1, Flags: FlagNumResult | FlagAggregate},
	{Name: "dict_of", MinArgs: 0, MaxArgs: maxOpArgs},
	{Name: "exists", MinArgs: 1, MaxArgs: 1, Flags: FlagBoolResult},
	{Name: "floor", MinArgs: 1, MaxArgs: 1, Flags: FlagNumResult},
	{Name: "greatest", MinArgs: 2, MaxArgs: maxOpArgs, Flags: FlagNumResult},
	{Name: "least", MinArgs: 2, MaxArgs: maxOpArgs, Flags: FlagNumResult},
	{Name: "length", SQLiteName: "fl_length", MinArgs: 1, MaxArgs: 1, Flags: FlagNumResult},
	{Name: "lower", SQLiteName: "fl_lower", MinArgs: 1, MaxArgs: 1, Flags: FlagStrResult | FlagWantsCollate},
	{Name: "ltrim", MinArgs: 1, MaxArgs: 2, Flags: FlagStrResult},
	{Name: "max", MinArgs: 1, MaxArgs: 1, Flags: FlagNumResult | FlagAggregate},
	{Name: "min", MinArgs: 1, MaxArgs: 1, Flags: FlagNumResult | FlagAggregate},
	{Name: "millis_to_str", MinArgs: 1, MaxArgs: 1, Flags: FlagStrResult},
	{Name: "millis_to_utc", MinArgs: 1, MaxArgs: 1, Flags: FlagStrResult},
	{Name: "now_millis", MinArgs: 0, MaxArgs: 0, Flags: FlagNumResult},
	{Name: "power", MinArgs: 2, MaxArgs: 2, Flags: FlagNumResult},
	{Name: "round", MinArgs: 1, MaxArgs: 2, Flags: FlagNumResult},
	{Name: "rtrim", MinArgs: 1, MaxArgs: 2, Flags: FlagStrResult},
	{Name: "sign", MinArgs: 1, MaxArgs: 1, Flags: FlagNumResult},
	{Name: "str_to_millis", MinArgs: 1, MaxArgs: 1, Flags: FlagNumResult},
	{Name: "str_to_utc", MinArgs: 1, MaxArgs: 1, Flags: FlagStrResult},
	{Name: "sum", MinArgs: 1, MaxArgs: 1, Flags: FlagNumResult | FlagAggregate},
	{Name: "trim", MinArgs: 1, MaxArgs: 2, Flags: FlagStrResult},
	{Name: "trunc", MinArgs: 1, MaxArgs: 2, Flags: FlagNumResult},
	{Name: "upper", SQLiteName: "fl_upper", MinArgs: 1, MaxArgs: 1, Flags: FlagStrResult | FlagWantsCollate},
}

// LookupFn finds the function with the given name, checking arity the same
// way LookupOp does: if the name matches but arity is wrong, nameMatched is
// true and arityOK is false so the caller can distinguish "unknown function" from
// "wrong arg count".
func LookupFn(name string, nArgs int) (fn FunctionSpec, nameMatched bool, arityOK bool) {
	for _, def := range Functions {
		if strings.EqualFold(def.Name, name) {
			nameMatched = true
			if nArgs >= def.MinArgs && nArgs <= def.MaxArgs {
				return def, true, true
			}
		}
	}
	return FunctionSpec{}, nameMatched, false
}

// FunctionByName finds a function spec by name alone, ignoring its arity
// range. Used when the parser synthesizes a call directly (dict_of/array_of
// built from a literal dict/array, whose argument count is driven by the
// input's size rather than a call site the arity check is meant to guard).
func FunctionByName(name string) (FunctionSpec, bool) {
	for _, def := range Functions {
		if strings.EqualFold(def.Name, name) {
			return def, true
		}
	}
	return FunctionSpec{}, false
}
