package sqlitedelegate

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"modernc.org/sqlite"
)

// registerOnce guards sqlite.RegisterDeterministicScalarFunction, which is
// process-global in modernc.org/sqlite: every *Delegate in the process
// shares one registration, matching how a real LiteCore process registers
// its fl_* functions exactly once against the sqlite3 C API.
var registerOnce sync.Once
var registerErr error

// registerFunctions wires up the fl_*/encode_vector/dict_of/array_of
// callback functions the generated SQL invokes, grounded on
// SQLiteFleeceFunctions.cc's registration table. The real implementation
// operates on LiteCore's Fleece binary encoding; this demo delegate works
// against a thin JSON stand-in. Only the functions listed below are
// registered; others the writer can emit (fl_result, fl_boolean_result,
// fl_null, fl_bool, fl_nested_value, fl_unnested_value, fl_each, fl_blob,
// fl_like, fl_version) are not.
func registerFunctions() error {
	registerOnce.Do(func() {
		registerErr = firstErr(
			sqlite.RegisterDeterministicScalarFunction("fl_value", 2, flValue),
			sqlite.RegisterDeterministicScalarFunction("fl_root", 1, flIdentity),
			sqlite.RegisterDeterministicScalarFunction("fl_exists", 2, flExists),
			sqlite.RegisterDeterministicScalarFunction("fl_count", 1, flCount),
			sqlite.RegisterDeterministicScalarFunction("fl_contains", -1, flContains),
			sqlite.RegisterDeterministicScalarFunction("fl_concat", -1, flConcat),
			sqlite.RegisterDeterministicScalarFunction("fl_length", 1, flLength),
			sqlite.RegisterDeterministicScalarFunction("fl_lower", 1, flLower),
			sqlite.RegisterDeterministicScalarFunction("fl_upper", 1, flUpper),
			sqlite.RegisterDeterministicScalarFunction("fl_array_avg", 1, flArrayAvg),
			sqlite.RegisterDeterministicScalarFunction("fl_array_sum", 1, flArraySum),
			sqlite.RegisterDeterministicScalarFunction("dict_of", -1, dictOf),
			sqlite.RegisterDeterministicScalarFunction("array_of", -1, arrayOf),
			sqlite.RegisterDeterministicScalarFunction("encode_vector", -1, encodeVector),
		)
	})
	return registerErr
}

func firstErr(errs ...error) error {
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}

func flIdentity(ctx *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if len(args) == 0 {
		return nil, nil
	}
	return args[0], nil
}

// flValue extracts a dotted property path from a JSON document blob,
// standing in for fl_value's Fleece path traversal.
func flValue(ctx *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	doc, path, err := docAndPath(args)
	if err != nil {
		return nil, err
	}
	v, ok := navigate(doc, path)
	if !ok {
		return nil, nil
	}
	return jsonScalar(v), nil
}

func flExists(ctx *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	doc, path, err := docAndPath(args)
	if err != nil {
		return nil, err
	}
	_, ok := navigate(doc, path)
	return boolToInt(ok), nil
}

func flCount(ctx *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	v, err := decodeArg(args, 0)
	if err != nil {
		return nil, err
	}
	switch t := v.(type) {
	case []any:
		return int64(len(t)), nil
	case map[string]any:
		return int64(len(t)), nil
	default:
		return nil, nil
	}
}

// flContains backs both call shapes the writer emits for ARRAY_CONTAINS()/
// the ANY...SATISFIES "= value" rewrite (format/writer.go's writeGetter):
// fl_contains(array, value) when the collection is an arbitrary expression,
// and fl_contains(body, 'path', value) when it's a bare property, unpacked
// directly rather than wrapped in fl_value(...).
func flContains(ctx *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	var hay any
	var needleArg driver.Value
	switch len(args) {
	case 2:
		v, err := decodeArg(args, 0)
		if err != nil {
			return nil, err
		}
		hay, needleArg = v, args[1]
	case 3:
		doc, err := decodeArg(args, 0)
		if err != nil {
			return nil, err
		}
		path, _ := args[1].(string)
		v, ok := navigate(doc, path)
		if !ok {
			return boolToInt(false), nil
		}
		hay, needleArg = v, args[2]
	default:
		return nil, fmt.Errorf("fl_contains expects 2 or 3 arguments, got %d", len(args))
	}
	arr, ok := hay.([]any)
	if !ok {
		return boolToInt(false), nil
	}
	needle, err := decodeValue(needleArg)
	if err != nil {
		return nil, err
	}
	for _, el := range arr {
		if fmt.Sprint(el) == fmt.Sprint(needle) {
			return boolToInt(true), nil
		}
	}
	return boolToInt(false), nil
}

func flConcat(ctx *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	var sb strings.Builder
	for _, a := range args {
		if a == nil {
			return nil, nil
		}
		sb.WriteString(fmt.Sprint(a))
	}
	return sb.String(), nil
}

func flLength(ctx *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	v, err := decodeArg(args, 0)
	if err != nil {
		return nil, err
	}
	s, ok := v.(string)
	if !ok {
		return nil, nil
	}
	return int64(len([]rune(s))), nil
}

func flLower(ctx *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	return transformString(args, strings.ToLower)
}

func flUpper(ctx *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	return transformString(args, strings.ToUpper)
}

func transformString(args []driver.Value, f func(string) string) (driver.Value, error) {
	v, err := decodeArg(args, 0)
	if err != nil {
		return nil, err
	}
	s, ok := v.(string)
	if !ok {
		return nil, nil
	}
	return f(s), nil
}

func flArrayAvg(ctx *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	nums, ok := numArray(args)
	if !ok || len(nums) == 0 {
		return nil, nil
	}
	var sum float64
	for _, n := range nums {
		sum += n
	}
	return sum / float64(len(nums)), nil
}

func flArraySum(ctx *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	nums, ok := numArray(args)
	if !ok {
		return nil, nil
	}
	var sum float64
	for _, n := range nums {
		sum += n
	}
	return sum, nil
}

// dictOf and arrayOf implement the DICT_OF()/ARRAY_OF() literal
// constructors by re-encoding their (alternating key, value) / (values...)
// SQLite arguments back into a JSON blob, standing in for Fleece encoding.
func dictOf(ctx *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if len(args)%2 != 0 {
		return nil, fmt.Errorf("dict_of requires an even number of arguments")
	}
	m := make(map[string]any, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		key := fmt.Sprint(args[i])
		m[key] = args[i+1]
	}
	return jsonEncode(m)
}

func arrayOf(ctx *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	arr := make([]any, len(args))
	for i, a := range args {
		arr[i] = a
	}
	return jsonEncode(arr)
}

// encodeVector packs its numeric arguments into a JSON array, standing in
// for the binary vector encoding approx_vector_distance() expects.
func encodeVector(ctx *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	vec := make([]float64, len(args))
	for i, a := range args {
		f, ok := toFloat(a)
		if !ok {
			return nil, fmt.Errorf("encode_vector argument %d is not numeric", i)
		}
		vec[i] = f
	}
	return jsonEncode(vec)
}

func docAndPath(args []driver.Value) (any, string, error) {
	if len(args) != 2 {
		return nil, "", fmt.Errorf("expected 2 arguments, got %d", len(args))
	}
	doc, err := decodeArg(args, 0)
	if err != nil {
		return nil, "", err
	}
	path, _ := args[1].(string)
	return doc, path, nil
}

func decodeArg(args []driver.Value, i int) (any, error) {
	if i >= len(args) {
		return nil, nil
	}
	return decodeValue(args[i])
}

func decodeValue(arg driver.Value) (any, error) {
	if arg == nil {
		return nil, nil
	}
	s, ok := arg.(string)
	if !ok {
		return arg, nil
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s, nil
	}
	return v, nil
}

func navigate(doc any, path string) (any, bool) {
	cur := doc
	for _, part := range strings.Split(strings.TrimPrefix(path, "."), ".") {
		if part == "" {
			continue
		}
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func jsonScalar(v any) driver.Value {
	switch t := v.(type) {
	case string, int64, float64, bool, nil:
		return t
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return nil
		}
		return string(b)
	}
}

func jsonEncode(v any) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func numArray(args []driver.Value) ([]float64, bool) {
	v, err := decodeArg(args, 0)
	if err != nil {
		return nil, false
	}
	arr, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]float64, 0, len(arr))
	for _, el := range arr {
		f, ok := toFloat(el)
		if !ok {
			return nil, false
		}
		out = append(out, f)
	}
	return out, true
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int64:
		return float64(t), true
	case int:
		return float64(t), true
	default:
		return 0, false
	}
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
