package harness

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/roach88/doubles/internal/double"
)

// AssertionError is returned when a capture or setup assertion fails.
// Verification failures come from the double package and carry a diff.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  %s\n", event.String())
		}
	}

	return strings.TrimRight(buf.String(), "\n")
}

// evaluateAssertions runs every assertion and returns the failure
// messages, prefixed with the assertion index.
func (h *Harness) evaluateAssertions(assertions []Assertion, trace []TraceEvent) []string {
	var failures []string

	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertVerify:
			err = h.assertVerify(a)
		case AssertVerifyOrder:
			err = h.assertVerifyOrder(a)
		case AssertCapture:
			err = h.assertCapture(a, trace)
		case AssertNoMoreInteractions:
			err = h.assertNoMoreInteractions(a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}

		if err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
		for _, msg := range h.reporter.drain() {
			failures = append(failures, fmt.Sprintf("assertions[%d]: %s", i, msg))
		}
	}

	return failures
}

// assertVerify checks the count of matching calls. Failures are reported
// by the set.
func (h *Harness) assertVerify(a Assertion) error {
	q, err := h.query(a.Call, a.Args)
	if err != nil {
		return err
	}
	switch {
	case a.Never:
		q = q.Never()
	case a.AtLeastOnce:
		q = q.AtLeastOnce()
	case a.Times != nil:
		q = q.Times(*a.Times)
	}
	h.set.Verify(q)
	return nil
}

// assertVerifyOrder checks relative order across doubles.
func (h *Harness) assertVerifyOrder(a Assertion) error {
	qs := make([]double.Query, 0, len(a.Calls))
	for _, ref := range a.Calls {
		q, err := h.query(ref.Call, ref.Args)
		if err != nil {
			return err
		}
		qs = append(qs, q)
	}
	h.set.VerifyOrder(qs...)
	return nil
}

// assertCapture compares the argument of the last matching call with
// a.Expect, or checks that capturing fails with a.Error.
func (h *Harness) assertCapture(a Assertion, trace []TraceEvent) error {
	dblName, method, err := splitCall(a.Call)
	if err != nil {
		return err
	}
	d, err := h.lookup(dblName)
	if err != nil {
		return err
	}

	got, err := h.set.CaptureArgument(d, method, a.Position)
	if a.Error != "" {
		var de *double.Error
		switch {
		case err == nil:
			return &AssertionError{
				Type:     AssertCapture,
				Expected: fmt.Sprintf("%s error", a.Error),
				Actual:   fmt.Sprintf("captured %v", got),
				Trace:    trace,
			}
		case !errors.As(err, &de) || string(de.Code) != a.Error:
			return &AssertionError{
				Type:     AssertCapture,
				Expected: fmt.Sprintf("%s error", a.Error),
				Actual:   err.Error(),
				Trace:    trace,
			}
		}
		return nil
	}
	if err != nil {
		return err
	}

	if !reflect.DeepEqual(got, a.Expect) {
		return &AssertionError{
			Type:     AssertCapture,
			Expected: fmt.Sprintf("%s argument %d = %v", a.Call, a.Position, a.Expect),
			Actual:   fmt.Sprintf("%v", got),
			Trace:    trace,
		}
	}
	return nil
}

// assertNoMoreInteractions fails on calls no earlier assertion verified.
func (h *Harness) assertNoMoreInteractions(a Assertion) error {
	ds, err := h.doublesNamed(a.Doubles)
	if err != nil {
		return err
	}
	h.set.VerifyNoMoreInteractions(ds...)
	return nil
}
