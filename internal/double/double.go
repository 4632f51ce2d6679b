package double

import (
	"fmt"
	"io"
	"log/slog"
)

// TestingT is the subset of *testing.T a Set reports through.
type TestingT interface {
	Helper()
	Errorf(format string, args ...any)
	Cleanup(func())
}

// Method declares one method of a collaborator interface.
type Method struct {
	Name  string
	Arity int
}

// M is shorthand for Method{Name: name, Arity: arity}.
func M(name string, arity int) Method {
	return Method{Name: name, Arity: arity}
}

// Descriptor names a collaborator interface and, optionally, its methods.
// A descriptor without methods accepts calls to any method name.
type Descriptor struct {
	Name    string
	Methods []Method
}

// Describe builds a Descriptor.
func Describe(name string, methods ...Method) Descriptor {
	return Descriptor{Name: name, Methods: methods}
}

// Arity returns the declared arity of method. ok is false when the
// descriptor does not declare it.
func (d Descriptor) Arity(method string) (arity int, ok bool) {
	for _, m := range d.Methods {
		if m.Name == method {
			return m.Arity, true
		}
	}
	return 0, false
}

// Check reports whether a call to method with n arguments fits the
// descriptor. Open descriptors accept everything.
func (d Descriptor) Check(method string, n int) error {
	return d.checkMethod(method, n)
}

func (d Descriptor) checkMethod(method string, n int) error {
	if len(d.Methods) == 0 {
		return nil
	}
	arity, ok := d.Arity(method)
	if !ok {
		return NewUnknownMethodError(d.Name, method)
	}
	if arity != n {
		return NewArityMismatchError(d.Name, method, arity, n)
	}
	return nil
}

// State is the lifecycle position of a double.
type State int

const (
	StateUnconfigured State = iota
	StateConfigured
	StateExercised
	StateVerified
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUnconfigured:
		return "unconfigured"
	case StateConfigured:
		return "configured"
	case StateExercised:
		return "exercised"
	case StateVerified:
		return "verified"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Option configures a Set.
type Option func(*Set)

// WithStrict makes calls that no rule matches fail with an UnstubbedCallError
// instead of returning zero values.
func WithStrict(strict bool) Option {
	return func(s *Set) { s.strict = strict }
}

// WithLogger sets the logger. The default discards output.
func WithLogger(l *slog.Logger) Option {
	return func(s *Set) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithDefaultAnswer answers unmatched calls of a non-strict set.
func WithDefaultAnswer(fn func(inv Invocation) []any) Option {
	return func(s *Set) { s.defaultAnswer = fn }
}

// Set owns the doubles of one test: their rules, their histories and the
// sequence that orders calls across them.
type Set struct {
	t      TestingT
	seq    *Sequence
	logger *slog.Logger

	strict        bool
	defaultAnswer func(inv Invocation) []any

	doubles  []*Double
	log      []Invocation
	verified map[int64]bool
}

// NewSet creates a Set bound to t and registers its disposal with t.Cleanup.
func NewSet(t TestingT, opts ...Option) *Set {
	s := &Set{
		t:        t,
		seq:      NewSequence(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		verified: make(map[int64]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	t.Cleanup(s.Dispose)
	return s
}

// Strict reports whether unmatched calls fail.
func (s *Set) Strict() bool {
	return s.strict
}

// Sequence returns the set's logical clock.
func (s *Set) Sequence() *Sequence {
	return s.seq
}

// NewDouble creates a double for desc (createDouble).
func (s *Set) NewDouble(desc Descriptor) *Double {
	d := &Double{desc: desc, set: s}
	s.doubles = append(s.doubles, d)
	s.logger.Debug("double created", "double", desc.Name, "methods", len(desc.Methods))
	return d
}

// Double returns the double named name.
func (s *Set) Double(name string) (*Double, bool) {
	for _, d := range s.doubles {
		if d.desc.Name == name {
			return d, true
		}
	}
	return nil, false
}

// Doubles returns the doubles of the set in creation order.
func (s *Set) Doubles() []*Double {
	out := make([]*Double, len(s.doubles))
	copy(out, s.doubles)
	return out
}

// Dispose drops every rule and invocation and rewinds the sequence.
// NewSet registers it with t.Cleanup; calling it again is harmless.
func (s *Set) Dispose() {
	for _, d := range s.doubles {
		d.rules.reset()
		d.calls = nil
		d.state = StateUnconfigured
	}
	s.log = nil
	s.verified = make(map[int64]bool)
	s.seq.Reset()
}

// report surfaces a harness error to the test.
func (s *Set) report(err error) {
	s.t.Helper()
	s.t.Errorf("%v", err)
}

// Double is a test double for one collaborator interface. Hand-written
// implementations of the interface forward each call to Called.
type Double struct {
	desc  Descriptor
	set   *Set
	rules registry
	calls []Invocation
	state State
}

// Name returns the collaborator name.
func (d *Double) Name() string {
	return d.desc.Name
}

// Descriptor returns the descriptor the double was created from.
func (d *Double) Descriptor() Descriptor {
	return d.desc
}

// State returns the lifecycle state.
func (d *Double) State() State {
	return d.state
}

// Rules returns the number of registered rules.
func (d *Double) Rules() int {
	return d.rules.len()
}

// advance moves the state forward; it never moves back.
func (d *Double) advance(to State) {
	if to > d.state {
		d.state = to
	}
}

// On registers a rule for method (configure). Raw values in args are
// matched with Eq; Matcher values are used as given.
//
// Rules are answered first-match-wins: a later rule with the same matchers
// as an earlier one never answers a call. Arity is checked in the same
// pass, so on a descriptor without declared methods an earlier rule with a
// different matcher count fails the call with ARITY_MISMATCH before a later
// rule is tried.
//
// Registering after the double has been exercised is allowed and logged as
// late stubbing. A method or matcher count that disagrees with the
// descriptor is reported to the test and the returned rule is not
// registered.
func (d *Double) On(method string, args ...any) *Rule {
	s := d.set
	s.t.Helper()

	r := &Rule{Method: method, Matchers: toMatchers(args), double: d.desc.Name}
	if err := d.desc.checkMethod(method, len(args)); err != nil {
		s.report(err)
		return r
	}

	if d.state >= StateExercised {
		s.logger.Warn("late stubbing",
			"double", d.desc.Name,
			"method", method,
			"state", d.state.String(),
		)
	}

	d.rules.add(r)
	d.advance(StateConfigured)

	s.logger.Debug("rule registered",
		"double", d.desc.Name,
		"rule", r.String(),
		"position", d.rules.len(),
	)
	return r
}

// Called records a call and resolves its outcome. Hand-written doubles
// call it from every method.
//
// Harness errors (unknown method, arity mismatch, unstubbed call on a
// strict set) are reported to the test and also returned as the outcome's
// failure.
func (d *Double) Called(method string, args ...any) Outcome {
	s := d.set
	s.t.Helper()

	inv := s.record(d, method, args)

	if err := d.desc.checkMethod(method, len(args)); err != nil {
		s.report(err)
		return Outcome{failure: err}
	}

	rule, err := d.rules.resolve(d.desc.Name, method, inv.Args)
	if err != nil {
		s.report(err)
		return Outcome{failure: err}
	}

	if rule == nil {
		if s.strict {
			err := NewUnstubbedCallError(d.desc.Name, method, inv.Args)
			s.report(err)
			return Outcome{failure: err}
		}
		s.logger.Debug("unstubbed call", "invocation", inv.String())
		if s.defaultAnswer != nil {
			return Outcome{values: s.defaultAnswer(inv)}
		}
		return Outcome{}
	}

	s.logger.Debug("call answered",
		"invocation", inv.String(),
		"rule", rule.String(),
		"response", rule.Response.Kind.String(),
	)
	return rule.Response.outcome(inv.Args)
}
