package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/doubles/internal/double"
)

// TraceEvent is one recorded call and its outcome.
type TraceEvent struct {
	Seq    int64  `json:"seq"`
	Double string `json:"double"`
	Method string `json:"method"`
	Args   []any  `json:"args"`

	// Return holds the returned values; Fail the failure message.
	Return []any  `json:"return,omitempty"`
	Fail   string `json:"fail,omitempty"`
}

// Call renders the event as Double.method.
func (e TraceEvent) Call() string {
	return e.Double + "." + e.Method
}

// String renders the event for failure output.
func (e TraceEvent) String() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "#%d %s%v", e.Seq, e.Call(), e.Args)
	if e.Fail != "" {
		fmt.Fprintf(&buf, " -> fail %q", e.Fail)
	} else if len(e.Return) > 0 {
		fmt.Fprintf(&buf, " -> %v", e.Return)
	}
	return buf.String()
}

// Result is the outcome of a scenario execution.
type Result struct {
	Scenario string `json:"scenario"`
	RunID    string `json:"run_id,omitempty"`

	// Pass is true when no stub, expectation or assertion failed.
	Pass bool `json:"pass"`

	// Trace contains every call in sequence order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult(scenario string) *Result {
	return &Result{
		Scenario: scenario,
		Pass:     true,
		Trace:    []TraceEvent{},
		Errors:   []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddCallTrace appends inv and its outcome to the trace.
func (r *Result) AddCallTrace(inv double.Invocation, out double.Outcome) {
	event := TraceEvent{
		Seq:    inv.Seq,
		Double: inv.Double,
		Method: inv.Method,
		Args:   inv.Args,
	}
	if event.Args == nil {
		event.Args = []any{}
	}
	if err := out.Failure(); err != nil {
		event.Fail = err.Error()
	} else {
		event.Return = out.Values()
	}
	r.Trace = append(r.Trace, event)
}
