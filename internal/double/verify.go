package double

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/samber/lo"
)

type countKind int

const (
	countExactly countKind = iota
	countAtLeastOnce
)

// CountPolicy is the expected number of matching calls.
type CountPolicy struct {
	kind countKind
	n    int
}

// Exactly expects n matching calls.
func Exactly(n int) CountPolicy {
	return CountPolicy{kind: countExactly, n: n}
}

// AtLeastOnce expects one or more matching calls.
func AtLeastOnce() CountPolicy {
	return CountPolicy{kind: countAtLeastOnce}
}

// Never expects no matching call.
func Never() CountPolicy {
	return Exactly(0)
}

// Allows reports whether n matching calls satisfy the policy.
func (p CountPolicy) Allows(n int) bool {
	if p.kind == countAtLeastOnce {
		return n >= 1
	}
	return n == p.n
}

// String describes the policy.
func (p CountPolicy) String() string {
	switch {
	case p.kind == countAtLeastOnce:
		return "at least once"
	case p.n == 0:
		return "never"
	case p.n == 1:
		return "exactly 1 time"
	default:
		return fmt.Sprintf("exactly %d times", p.n)
	}
}

// Query describes the calls a verification looks for.
type Query struct {
	Double   *Double
	Method   string
	Matchers []Matcher
	Count    CountPolicy
}

// Call builds a Query expecting exactly one call of method on d with
// arguments accepted by args. Raw values are matched with Eq.
func Call(d *Double, method string, args ...any) Query {
	return Query{
		Double:   d,
		Method:   method,
		Matchers: toMatchers(args),
		Count:    Exactly(1),
	}
}

// Times returns a copy of q expecting exactly n calls.
func (q Query) Times(n int) Query {
	q.Count = Exactly(n)
	return q
}

// Never returns a copy of q expecting no call.
func (q Query) Never() Query {
	q.Count = Never()
	return q
}

// AtLeastOnce returns a copy of q expecting one or more calls.
func (q Query) AtLeastOnce() Query {
	q.Count = AtLeastOnce()
	return q
}

// String renders the call pattern.
func (q Query) String() string {
	name := "<nil>"
	if q.Double != nil {
		name = q.Double.Name()
	}
	return fmt.Sprintf("%s.%s(%s)", name, q.Method, formatMatchers(q.Matchers))
}

// collect returns the invocations of q.Method that q's matchers accept.
// Rules never contribute: only recorded invocations count.
func (q Query) collect() ([]Invocation, error) {
	if q.Double == nil {
		return nil, fmt.Errorf("verify %s: nil double", q.Method)
	}
	var matched []Invocation
	for inv := range q.Double.History(q.Method) {
		ok, arityOK := matchAll(q.Matchers, inv.Args)
		if !arityOK {
			return nil, NewArityMismatchError(q.Double.Name(), q.Method, len(q.Matchers), len(inv.Args))
		}
		if ok {
			matched = append(matched, inv)
		}
	}
	return matched, nil
}

// VerificationResult is the outcome of a verification.
type VerificationResult struct {
	Satisfied   bool
	ActualCount int
	Failure     *VerificationFailure
}

// Verify checks that the calls matching q satisfy q.Count. An unsatisfied
// verification fails the test with a VerificationFailure.
func (s *Set) Verify(q Query) VerificationResult {
	s.t.Helper()

	matched, err := q.collect()
	if err != nil {
		s.report(err)
		return VerificationResult{}
	}
	q.Double.advance(StateVerified)
	s.markVerified(matched)

	res := VerificationResult{
		Satisfied:   q.Count.Allows(len(matched)),
		ActualCount: len(matched),
	}
	if !res.Satisfied {
		res.Failure = s.countFailure(q, matched)
		s.t.Errorf("%s", res.Failure.Error())
	}
	return res
}

// VerifyOrder checks that the queries matched in the given order: for each
// consecutive pair (A, B) the last call matching A precedes the first call
// matching B. A query without any matching call fails the verification.
//
// Sequence numbers are shared by every double of the set, so the queries
// may span several doubles.
func (s *Set) VerifyOrder(qs ...Query) VerificationResult {
	s.t.Helper()

	type span struct {
		q           Query
		first, last int64
	}
	spans := make([]span, 0, len(qs))
	var missing []string

	for _, q := range qs {
		matched, err := q.collect()
		if err != nil {
			s.report(err)
			return VerificationResult{}
		}
		q.Double.advance(StateVerified)
		if len(matched) == 0 {
			missing = append(missing, q.String())
			continue
		}
		s.markVerified(matched)
		spans = append(spans, span{q: q, first: matched[0].Seq, last: matched[len(matched)-1].Seq})
	}

	res := VerificationResult{Satisfied: true, ActualCount: len(spans)}

	expected := lo.Map(qs, func(q Query, _ int) string { return q.String() })
	observed := slices.Clone(spans)
	slices.SortStableFunc(observed, func(a, b span) int { return cmp.Compare(a.first, b.first) })
	actual := lo.Map(observed, func(sp span, _ int) string { return sp.q.String() })

	if len(missing) > 0 {
		res.Satisfied = false
		res.Failure = &VerificationFailure{
			Kind:     "verify_order",
			Expected: fmt.Sprintf("calls in order: %v", expected),
			Actual:   fmt.Sprintf("no matching call for: %v", missing),
			Diff:     unifiedDiff(expected, actual),
		}
		s.t.Errorf("%s", res.Failure.Error())
		return res
	}

	for i := 1; i < len(spans); i++ {
		prev, curr := spans[i-1], spans[i]
		if prev.last >= curr.first {
			res.Satisfied = false
			res.Failure = &VerificationFailure{
				Kind:     "verify_order",
				Expected: fmt.Sprintf("calls in order: %v", expected),
				Actual: fmt.Sprintf("%s (last seq %d) should be before %s (first seq %d)",
					prev.q.String(), prev.last, curr.q.String(), curr.first),
				Diff: unifiedDiff(expected, actual),
			}
			s.t.Errorf("%s", res.Failure.Error())
			return res
		}
	}

	return res
}

// VerifyNoMoreInteractions fails the test if any invocation on ds was not
// matched by an earlier Verify or VerifyOrder.
func (s *Set) VerifyNoMoreInteractions(ds ...*Double) VerificationResult {
	s.t.Helper()

	var unverified []Invocation
	for _, d := range ds {
		d.advance(StateVerified)
		for inv := range d.History("") {
			if !s.verified[inv.Seq] {
				unverified = append(unverified, inv)
			}
		}
	}
	slices.SortFunc(unverified, func(a, b Invocation) int { return cmp.Compare(a.Seq, b.Seq) })

	res := VerificationResult{Satisfied: len(unverified) == 0, ActualCount: len(unverified)}
	if !res.Satisfied {
		lines := lo.Map(unverified, func(inv Invocation, _ int) string { return inv.String() })
		res.Failure = &VerificationFailure{
			Kind:     "no_more_interactions",
			Expected: "no unverified calls",
			Actual:   fmt.Sprintf("%d unverified calls", len(unverified)),
			Diff:     unifiedDiff(nil, lines),
		}
		s.t.Errorf("%s", res.Failure.Error())
	}
	return res
}

// CaptureArgument returns argument position of the last invocation of
// method on d. It returns a NoInvocationRecordedError when d has no such
// invocation and an ArityMismatchError when position is out of range.
func (s *Set) CaptureArgument(d *Double, method string, position int) (any, error) {
	var (
		last  Invocation
		found bool
	)
	for inv := range d.History(method) {
		last, found = inv, true
	}
	if !found {
		return nil, NewNoInvocationRecordedError(d.Name(), method)
	}
	v, ok := last.Arg(position)
	if !ok {
		return nil, NewArityMismatchError(d.Name(), method, position+1, len(last.Args))
	}
	d.advance(StateVerified)
	return v, nil
}

// CaptureAll returns argument position of every invocation of method on d,
// in recorded order.
func (s *Set) CaptureAll(d *Double, method string, position int) ([]any, error) {
	var values []any
	for inv := range d.History(method) {
		v, ok := inv.Arg(position)
		if !ok {
			return nil, NewArityMismatchError(d.Name(), method, position+1, len(inv.Args))
		}
		values = append(values, v)
	}
	if len(values) == 0 {
		return nil, NewNoInvocationRecordedError(d.Name(), method)
	}
	d.advance(StateVerified)
	return values, nil
}

// Capture is the typed form of CaptureArgument.
func Capture[T any](s *Set, d *Double, method string, position int) (T, error) {
	var zero T
	v, err := s.CaptureArgument(d, method, position)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("capture %s.%s argument %d: have %T, want %T", d.Name(), method, position, v, zero)
	}
	return t, nil
}

func (s *Set) markVerified(invs []Invocation) {
	for _, inv := range invs {
		s.verified[inv.Seq] = true
	}
}

// countFailure builds the failure for an unsatisfied Verify. Matching calls
// are listed under the query's pattern so the diff lines up with the
// expected listing; other calls of the method show their arguments.
func (s *Set) countFailure(q Query, matched []Invocation) *VerificationFailure {
	want := 1
	if q.Count.kind == countExactly {
		want = q.Count.n
	}
	expected := lo.Times(want, func(int) string { return q.String() })

	isMatch := make(map[int64]bool, len(matched))
	for _, inv := range matched {
		isMatch[inv.Seq] = true
	}
	var actual []string
	for inv := range q.Double.History(q.Method) {
		if isMatch[inv.Seq] {
			actual = append(actual, q.String())
			continue
		}
		actual = append(actual, inv.Call())
	}

	return &VerificationFailure{
		Kind:     "verify",
		Expected: fmt.Sprintf("%s %s", q.String(), q.Count.String()),
		Actual:   fmt.Sprintf("%d matching calls", len(matched)),
		Diff:     unifiedDiff(expected, actual),
	}
}

// unifiedDiff renders expected and actual call listings as a unified diff.
func unifiedDiff(expected, actual []string) string {
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        toLines(expected),
		B:        toLines(actual),
		FromFile: "expected",
		ToFile:   "actual",
		Context:  3,
	})
	if err != nil {
		return ""
	}
	return diff
}

func toLines(items []string) []string {
	return lo.Map(items, func(s string, _ int) string { return s + "\n" })
}
