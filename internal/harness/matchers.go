package harness

import (
	"fmt"
	"reflect"
	"slices"

	"github.com/samber/lo"

	"github.com/roach88/doubles/internal/double"
)

// kinds maps the names accepted by {kind: ...} to reflect kinds. YAML
// decodes integers as int, decimals as float64, sequences as []any and
// mappings as map[string]any.
var kinds = map[string]reflect.Kind{
	"string": reflect.String,
	"int":    reflect.Int,
	"float":  reflect.Float64,
	"bool":   reflect.Bool,
	"list":   reflect.Slice,
	"map":    reflect.Map,
}

// buildMatchers converts matcher specs to matchers:
//
//	{any: true}        any value
//	{kind: string}     any value of a kind (string, int, float, bool, list, map)
//	{expr: "arg > 1"}  CEL expression over arg
//	{eq: value}        exact value, for literal maps with a reserved key
//	anything else      exact value
func buildMatchers(specs []any) ([]double.Matcher, error) {
	out := make([]double.Matcher, len(specs))
	for i, spec := range specs {
		m, err := buildMatcher(spec)
		if err != nil {
			return nil, fmt.Errorf("args[%d]: %w", i, err)
		}
		out[i] = m
	}
	return out, nil
}

func buildMatcher(spec any) (double.Matcher, error) {
	m, ok := spec.(map[string]any)
	if !ok || len(m) != 1 {
		return double.Eq(spec), nil
	}

	for key, val := range m {
		switch key {
		case "any":
			if b, ok := val.(bool); !ok || !b {
				return nil, fmt.Errorf("any must be true")
			}
			return double.Any(), nil
		case "kind":
			name, _ := val.(string)
			kind, ok := kinds[name]
			if !ok {
				return nil, fmt.Errorf("unknown kind %v (want one of %v)", val, kindNames())
			}
			return double.OfKind(kind), nil
		case "expr":
			src, ok := val.(string)
			if !ok {
				return nil, fmt.Errorf("expr must be a string")
			}
			return double.Expr(src)
		case "eq":
			return double.Eq(val), nil
		}
	}
	return double.Eq(spec), nil
}

// anyArgs matches every argument of a method with the declared arity.
func anyArgs(d *double.Double, method string) ([]double.Matcher, error) {
	arity, ok := d.Descriptor().Arity(method)
	if !ok {
		return nil, fmt.Errorf("%s.%s: args are required when the descriptor does not declare the method", d.Name(), method)
	}
	return lo.Times(arity, func(int) double.Matcher { return double.Any() }), nil
}

func kindNames() []string {
	names := lo.Keys(kinds)
	slices.Sort(names)
	return names
}
