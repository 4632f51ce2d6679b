package harness

import (
	"fmt"

	"github.com/roach88/doubles/internal/double"
)

// Lint checks the calls a scenario names against descriptors without
// running it. Doubles that no descriptor declares are not checked.
// Assertion patterns with omitted args are checked for the method only.
func Lint(s *Scenario, descs []double.Descriptor) []string {
	byName := make(map[string]double.Descriptor, len(descs))
	for _, d := range descs {
		byName[d.Name] = d
	}

	var problems []string
	check := func(where, dbl, method string, args []any) {
		d, ok := byName[dbl]
		if !ok {
			return
		}
		n := len(args)
		if args == nil {
			if arity, ok := d.Arity(method); ok {
				n = arity
			}
		}
		if err := d.Check(method, n); err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", where, err))
		}
	}
	checkCall := func(where, call string, args []any) {
		dbl, method, err := splitCall(call)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", where, err))
			return
		}
		check(where, dbl, method, args)
	}

	for i, st := range s.Stubs {
		args := st.Args
		if args == nil {
			args = []any{}
		}
		check(fmt.Sprintf("stubs[%d]", i), st.Double, st.Method, args)
	}
	for i, step := range s.Flow {
		args := step.Args
		if args == nil {
			args = []any{}
		}
		checkCall(fmt.Sprintf("flow[%d]", i), step.Call, args)
	}
	for i, a := range s.Assertions {
		where := fmt.Sprintf("assertions[%d]", i)
		if a.Call != "" {
			checkCall(where, a.Call, a.Args)
		}
		for j, ref := range a.Calls {
			checkCall(fmt.Sprintf("%s.calls[%d]", where, j), ref.Call, ref.Args)
		}
	}
	return problems
}
