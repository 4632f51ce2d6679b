package double

import (
	"fmt"
	"iter"
	"slices"
)

// Invocation is one recorded call on a double. It is immutable once
// recorded; History hands out copies of the argument slice.
type Invocation struct {
	Double string
	Method string
	Args   []any

	// Seq orders the invocation among every call in the Set.
	Seq int64

	// Index is the position within the owning double's history.
	Index int
}

// Arg returns argument i and whether it exists.
func (inv Invocation) Arg(i int) (any, bool) {
	if i < 0 || i >= len(inv.Args) {
		return nil, false
	}
	return inv.Args[i], true
}

// Call renders the invocation as Double.Method(args).
func (inv Invocation) Call() string {
	return fmt.Sprintf("%s.%s(%s)", inv.Double, inv.Method, formatArgs(inv.Args))
}

// String renders the invocation with its sequence number.
func (inv Invocation) String() string {
	return fmt.Sprintf("#%d %s", inv.Seq, inv.Call())
}

func (inv Invocation) clone() Invocation {
	inv.Args = slices.Clone(inv.Args)
	return inv
}

// record appends an invocation to d and to the set-wide log.
func (s *Set) record(d *Double, method string, args []any) Invocation {
	inv := Invocation{
		Double: d.desc.Name,
		Method: method,
		Args:   slices.Clone(args),
		Seq:    s.seq.Next(),
		Index:  len(d.calls),
	}
	d.calls = append(d.calls, inv)
	s.log = append(s.log, inv)
	d.advance(StateExercised)
	return inv.clone()
}

// History yields the recorded invocations of method in recorded order.
// An empty method yields every invocation of the double.
//
// The sequence is lazy and may be ranged over any number of times; each
// pass reflects the calls recorded so far.
func (d *Double) History(method string) iter.Seq[Invocation] {
	return func(yield func(Invocation) bool) {
		for _, inv := range d.calls {
			if method != "" && inv.Method != method {
				continue
			}
			if !yield(inv.clone()) {
				return
			}
		}
	}
}

// Invocations returns every invocation of the set in seq order.
func (s *Set) Invocations() []Invocation {
	out := make([]Invocation, len(s.log))
	for i, inv := range s.log {
		out[i] = inv.clone()
	}
	return out
}
