package harness

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"strings"

	"github.com/samber/lo"

	"github.com/roach88/doubles/internal/descriptor"
	"github.com/roach88/doubles/internal/double"
)

// Option configures a run.
type Option func(*Harness)

// WithLogger sets the logger. Runs discard log output by default.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithStrict forces strict mode regardless of the scenario setting.
func WithStrict() Option {
	return func(h *Harness) { h.forceStrict = true }
}

// Harness executes one scenario against a fresh set of doubles.
type Harness struct {
	set      *double.Set
	reporter *reporter
	doubles  map[string]*double.Double
	specs    map[string]double.Descriptor
	logger   *slog.Logger

	forceStrict bool
}

// reporter collects what the set reports so a run fails softly.
type reporter struct {
	messages []string
	cleanups []func()
}

func (r *reporter) Helper() {}

func (r *reporter) Errorf(format string, args ...any) {
	r.messages = append(r.messages, strings.TrimRight(fmt.Sprintf(format, args...), "\n"))
}

func (r *reporter) Cleanup(fn func()) {
	r.cleanups = append(r.cleanups, fn)
}

// drain returns and clears the collected messages.
func (r *reporter) drain() []string {
	msgs := r.messages
	r.messages = nil
	return msgs
}

func (r *reporter) close() {
	for i := len(r.cleanups) - 1; i >= 0; i-- {
		r.cleanups[i]()
	}
}

// Run executes a scenario and returns the result.
//
// Execution flow:
//  1. Load descriptors from scenario.Specs and create doubles
//  2. Register stubs in order
//  3. Execute flow steps and validate expect clauses
//  4. Evaluate assertions against the recorded calls
//
// A returned error means the scenario could not be executed. Stubs,
// expectations and assertions that do not hold are reported in
// Result.Errors instead.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	h := &Harness{
		reporter: &reporter{},
		doubles:  make(map[string]*double.Double),
		specs:    make(map[string]double.Descriptor),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}

	descs, err := descriptor.LoadFiles(scenario.Specs...)
	if err != nil {
		return nil, fmt.Errorf("failed to load specs: %w", err)
	}
	for _, d := range descs {
		h.specs[d.Name] = d
	}

	h.set = double.NewSet(h.reporter,
		double.WithStrict(scenario.Strict || h.forceStrict),
		double.WithLogger(h.logger),
	)
	defer h.reporter.close()

	result := NewResult(scenario.Name)
	result.RunID = scenario.RunID

	if err := h.registerStubs(scenario.Stubs, result); err != nil {
		return nil, fmt.Errorf("failed to register stubs: %w", err)
	}

	if err := h.executeFlow(scenario.Flow, result); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}

	for _, msg := range h.evaluateAssertions(scenario.Assertions, result.Trace) {
		result.AddError(msg)
	}

	h.logger.Info("scenario finished",
		"scenario", scenario.Name,
		"pass", result.Pass,
		"calls", len(result.Trace),
		"errors", len(result.Errors),
	)
	return result, nil
}

// double returns the double named name, creating it on first use.
func (h *Harness) double(name string) *double.Double {
	if d, ok := h.doubles[name]; ok {
		return d
	}
	desc, ok := h.specs[name]
	if !ok {
		desc = double.Describe(name)
	}
	d := h.set.NewDouble(desc)
	h.doubles[name] = d
	return d
}

// lookup returns an existing double. Assertions never create doubles.
func (h *Harness) lookup(name string) (*double.Double, error) {
	if d, ok := h.doubles[name]; ok {
		return d, nil
	}
	if _, ok := h.specs[name]; ok {
		return h.double(name), nil
	}
	return nil, fmt.Errorf("unknown double %q", name)
}

// registerStubs registers each stub as a rule. Descriptor violations are
// reported by the set and land in the result.
func (h *Harness) registerStubs(stubs []Stub, result *Result) error {
	for i, stub := range stubs {
		matchers, err := buildMatchers(stub.Args)
		if err != nil {
			return fmt.Errorf("stubs[%d]: %w", i, err)
		}

		rule := h.double(stub.Double).On(stub.Method, lo.ToAnySlice(matchers)...)
		switch {
		case stub.Fail != "":
			rule.Fail(errors.New(stub.Fail))
		case stub.Echo != nil:
			pos := *stub.Echo
			rule.Answer(func(args []any) []any {
				return []any{args[pos]}
			})
		default:
			rule.Return(stub.Return...)
		}

		for _, msg := range h.reporter.drain() {
			result.AddError(fmt.Sprintf("stubs[%d]: %s", i, msg))
		}
		h.logger.Debug("stub registered", "index", i, "rule", rule.String())
	}
	return nil
}

// executeFlow makes each call and validates its expect clause.
func (h *Harness) executeFlow(flow []FlowStep, result *Result) error {
	for i, step := range flow {
		dblName, method, err := splitCall(step.Call)
		if err != nil {
			return fmt.Errorf("flow step %d: %w", i, err)
		}
		d := h.double(dblName)

		out := d.Called(method, step.Args...)
		reported := h.reporter.drain()

		invs := h.set.Invocations()
		inv := invs[len(invs)-1]
		result.AddCallTrace(inv, out)

		if step.Expect != nil {
			if msg := checkExpect(step.Expect, out); msg != "" {
				result.AddError(fmt.Sprintf("flow[%d] %s: %s", i, step.Call, msg))
			} else if step.Expect.Fail != "" {
				// The expected failure was the harness error itself.
				reported = nil
			}
		}
		for _, msg := range reported {
			result.AddError(fmt.Sprintf("flow[%d] %s: %s", i, step.Call, msg))
		}

		h.logger.Info("flow step completed",
			"step", i,
			"call", step.Call,
			"seq", inv.Seq,
			"failed", out.Failure() != nil,
		)
	}
	return nil
}

// checkExpect returns a description of the mismatch, or "" when out
// satisfies expect.
func checkExpect(expect *ExpectClause, out double.Outcome) string {
	if expect.Fail != "" {
		if out.Failure() == nil {
			return fmt.Sprintf("expected failure containing %q, got values %v", expect.Fail, out.Values())
		}
		if !strings.Contains(out.Failure().Error(), expect.Fail) {
			return fmt.Sprintf("expected failure containing %q, got %q", expect.Fail, out.Failure().Error())
		}
		return ""
	}

	if out.Failure() != nil {
		return fmt.Sprintf("unexpected failure: %v", out.Failure())
	}
	if expect.Return != nil && !valuesEqual(out.Values(), expect.Return) {
		return fmt.Sprintf("expected return %v, got %v", expect.Return, out.Values())
	}
	return ""
}

// valuesEqual compares returned values with expected ones. A nil and an
// empty list are equal.
func valuesEqual(actual, expected []any) bool {
	if len(actual) == 0 && len(expected) == 0 {
		return true
	}
	return reflect.DeepEqual(actual, expected)
}

// query builds a verification query for call with args. Nil args match
// any arguments of the declared arity.
func (h *Harness) query(call string, args []any) (double.Query, error) {
	dblName, method, err := splitCall(call)
	if err != nil {
		return double.Query{}, err
	}
	d, err := h.lookup(dblName)
	if err != nil {
		return double.Query{}, err
	}

	var matchers []double.Matcher
	if args == nil {
		matchers, err = anyArgs(d, method)
	} else {
		matchers, err = buildMatchers(args)
	}
	if err != nil {
		return double.Query{}, err
	}
	return double.Call(d, method, lo.ToAnySlice(matchers)...), nil
}

// doublesNamed resolves names in the order given, rejecting duplicates.
func (h *Harness) doublesNamed(names []string) ([]*double.Double, error) {
	if dup := lo.FindDuplicates(names); len(dup) > 0 {
		return nil, fmt.Errorf("duplicate doubles: %v", dup)
	}
	out := make([]*double.Double, 0, len(names))
	for _, name := range names {
		d, err := h.lookup(name)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}
