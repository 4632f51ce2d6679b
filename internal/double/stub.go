package double

import (
	"fmt"
	"slices"
)

// ResponseKind selects how a rule answers a call.
type ResponseKind int

const (
	// ResponseValues returns fixed values.
	ResponseValues ResponseKind = iota
	// ResponseFailure returns a configured error as the call's failure.
	ResponseFailure
	// ResponseComputed derives return values from the call's arguments.
	ResponseComputed
)

// String returns the kind name used in traces.
func (k ResponseKind) String() string {
	switch k {
	case ResponseValues:
		return "values"
	case ResponseFailure:
		return "failure"
	case ResponseComputed:
		return "computed"
	default:
		return fmt.Sprintf("ResponseKind(%d)", int(k))
	}
}

// Response is the payload of a rule.
type Response struct {
	Kind    ResponseKind
	Values  []any
	Failure error
	Compute func(args []any) []any
}

func (r Response) outcome(args []any) Outcome {
	switch r.Kind {
	case ResponseFailure:
		return Outcome{failure: r.Failure}
	case ResponseComputed:
		if r.Compute == nil {
			return Outcome{}
		}
		return Outcome{values: r.Compute(slices.Clone(args))}
	default:
		return Outcome{values: slices.Clone(r.Values)}
	}
}

// Rule associates a call pattern with a response. Rules are created by
// Double.On and answered in registration order.
type Rule struct {
	Method   string
	Matchers []Matcher
	Response Response

	double string
}

// Return answers matching calls with values.
func (r *Rule) Return(values ...any) *Rule {
	r.Response = Response{Kind: ResponseValues, Values: values}
	return r
}

// Fail answers matching calls with err. The double hands err back through
// Outcome.Failure so callers can wrap it and errors.Is still reaches it.
func (r *Rule) Fail(err error) *Rule {
	r.Response = Response{Kind: ResponseFailure, Failure: err}
	return r
}

// Answer computes return values from a copy of the call's arguments.
func (r *Rule) Answer(fn func(args []any) []any) *Rule {
	r.Response = Response{Kind: ResponseComputed, Compute: fn}
	return r
}

// String renders the rule's call pattern.
func (r *Rule) String() string {
	return fmt.Sprintf("%s.%s(%s)", r.double, r.Method, formatMatchers(r.Matchers))
}

// registry holds the rules of one double in registration order.
type registry struct {
	rules []*Rule
}

func (reg *registry) add(r *Rule) {
	reg.rules = append(reg.rules, r)
}

// resolve returns the first rule for method whose matchers all accept args.
// A nil rule with a nil error means nothing matched. The first rule for
// method whose matcher count differs from len(args) is an
// ArityMismatchError, even if a later rule has the right count.
func (reg *registry) resolve(double, method string, args []any) (*Rule, error) {
	for _, r := range reg.rules {
		if r.Method != method {
			continue
		}
		matched, arityOK := matchAll(r.Matchers, args)
		if !arityOK {
			return nil, NewArityMismatchError(double, method, len(r.Matchers), len(args))
		}
		if matched {
			return r, nil
		}
	}
	return nil, nil
}

func (reg *registry) len() int {
	return len(reg.rules)
}

func (reg *registry) reset() {
	reg.rules = nil
}
