package double

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/google/cel-go/cel"
)

// Matcher is a predicate over a single argument position.
// Matchers are stateless and may be shared between rules and queries.
type Matcher interface {
	Match(v any) bool
	String() string
}

// Matches reports whether m accepts v. A nil matcher accepts nothing.
func Matches(m Matcher, v any) bool {
	if m == nil {
		return false
	}
	return m.Match(v)
}

// matchAll checks every positional matcher against its argument.
//
// The counts must agree: a rule with fewer matchers than arguments never
// matches a prefix. arityOK is false on a count mismatch.
func matchAll(matchers []Matcher, args []any) (matched, arityOK bool) {
	if len(matchers) != len(args) {
		return false, false
	}
	for i, m := range matchers {
		if !Matches(m, args[i]) {
			return false, true
		}
	}
	return true, true
}

// toMatchers wraps raw values in Eq; values that already are matchers pass through.
func toMatchers(args []any) []Matcher {
	out := make([]Matcher, len(args))
	for i, a := range args {
		if m, ok := a.(Matcher); ok {
			out[i] = m
			continue
		}
		out[i] = Eq(a)
	}
	return out
}

type eqMatcher struct {
	want any
}

// Eq matches arguments deeply equal to v.
func Eq(v any) Matcher {
	return eqMatcher{want: v}
}

func (m eqMatcher) Match(v any) bool {
	return reflect.DeepEqual(m.want, v)
}

func (m eqMatcher) String() string {
	return formatArg(m.want)
}

type anyMatcher struct{}

// Any matches every argument, including nil.
func Any() Matcher {
	return anyMatcher{}
}

func (anyMatcher) Match(any) bool { return true }

func (anyMatcher) String() string { return "any" }

type typeMatcher struct {
	typ reflect.Type
}

// AnyOf matches non-nil arguments of type T. When T is an interface type,
// any value implementing it matches.
func AnyOf[T any]() Matcher {
	return typeMatcher{typ: reflect.TypeFor[T]()}
}

func (m typeMatcher) Match(v any) bool {
	if v == nil {
		return false
	}
	actual := reflect.TypeOf(v)
	if m.typ.Kind() == reflect.Interface {
		return actual.Implements(m.typ)
	}
	return actual == m.typ
}

func (m typeMatcher) String() string {
	return "any(" + m.typ.String() + ")"
}

type kindMatcher struct {
	kind reflect.Kind
}

// OfKind matches non-nil arguments whose reflect.Kind is k.
func OfKind(k reflect.Kind) Matcher {
	return kindMatcher{kind: k}
}

func (m kindMatcher) Match(v any) bool {
	if v == nil {
		return false
	}
	return reflect.TypeOf(v).Kind() == m.kind
}

func (m kindMatcher) String() string {
	return "any(" + m.kind.String() + ")"
}

type funcMatcher struct {
	desc string
	pred func(any) bool
}

// Func matches arguments accepted by pred. desc names the predicate in
// failure messages.
func Func(desc string, pred func(any) bool) Matcher {
	return funcMatcher{desc: desc, pred: pred}
}

func (m funcMatcher) Match(v any) bool {
	return m.pred(v)
}

func (m funcMatcher) String() string {
	return m.desc
}

// Satisfies is the typed form of Func. Arguments that are not a T never match.
func Satisfies[T any](desc string, pred func(T) bool) Matcher {
	return Func(desc, func(v any) bool {
		t, ok := v.(T)
		return ok && pred(t)
	})
}

type exprMatcher struct {
	src string
	prg cel.Program
}

// Expr compiles a CEL expression into a matcher. The argument is bound to
// the variable "arg" and the expression must evaluate to a bool:
//
//	double.Expr(`arg.endsWith("@example.com")`)
//	double.Expr(`arg.Email.endsWith("@example.com")`)
//	double.Expr(`arg.quantity > 0`)
//
// Structs, pointers, slices and maps are evaluated in their JSON form, so
// fields are selected by their JSON names and numbers inside them are
// doubles. Evaluation errors and non-bool results count as a mismatch.
func Expr(src string) (Matcher, error) {
	env, err := cel.NewEnv(
		cel.Variable("arg", cel.DynType),
		cel.CrossTypeNumericComparisons(true),
	)
	if err != nil {
		return nil, fmt.Errorf("create cel env: %w", err)
	}
	ast, iss := env.Compile(src)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("compile %q: %w", src, iss.Err())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program %q: %w", src, err)
	}
	return exprMatcher{src: src, prg: prg}, nil
}

// MustExpr is like Expr but panics if the expression does not compile.
func MustExpr(src string) Matcher {
	m, err := Expr(src)
	if err != nil {
		panic(err)
	}
	return m
}

func (m exprMatcher) Match(v any) bool {
	out, _, err := m.prg.Eval(map[string]any{"arg": celValue(v)})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}

func (m exprMatcher) String() string {
	return "expr(" + m.src + ")"
}

// celValue converts composite Go values to the maps and lists CEL can
// select into. Scalars and byte slices are passed through. A value that does
// not marshal is passed through unchanged.
func celValue(v any) any {
	if v == nil {
		return nil
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Struct, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Array:
	default:
		return v
	}
	if _, ok := v.([]byte); ok {
		return v
	}
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}

// formatArg renders a value for call listings and failure messages.
func formatArg(v any) string {
	switch val := v.(type) {
	case nil:
		return "nil"
	case string:
		return fmt.Sprintf("%q", val)
	case error:
		return fmt.Sprintf("error(%q)", val.Error())
	default:
		return fmt.Sprintf("%+v", val)
	}
}

func formatArgs(args []any) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = formatArg(a)
	}
	return strings.Join(parts, ", ")
}

func formatMatchers(matchers []Matcher) string {
	parts := make([]string, len(matchers))
	for i, m := range matchers {
		if m == nil {
			parts[i] = "<nil matcher>"
			continue
		}
		parts[i] = m.String()
	}
	return strings.Join(parts, ", ")
}
