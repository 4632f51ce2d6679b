package double

// Outcome is what a double hands back to its caller: either the values of
// the winning rule or a failure.
//
// Accessors return the zero value when the position is out of range or holds
// a value of another type, so an unstubbed call yields zero values.
type Outcome struct {
	values  []any
	failure error
}

// Failure returns the configured failure, or the harness error for an
// unanswerable call. The configured error value is returned unchanged.
func (o Outcome) Failure() error {
	return o.failure
}

// Values returns the configured return values. Each call gets its own
// copy, so writing into it does not change the rule.
func (o Outcome) Values() []any {
	return o.values
}

// Len returns the number of configured return values.
func (o Outcome) Len() int {
	return len(o.values)
}

// Get returns the value at position i, or nil.
func (o Outcome) Get(i int) any {
	if i < 0 || i >= len(o.values) {
		return nil
	}
	return o.values[i]
}

// Error returns the value at position i as an error.
func (o Outcome) Error(i int) error {
	err, _ := o.Get(i).(error)
	return err
}

// Bool returns the value at position i as a bool.
func (o Outcome) Bool(i int) bool {
	b, _ := o.Get(i).(bool)
	return b
}

// String returns the value at position i as a string.
func (o Outcome) String(i int) string {
	s, _ := o.Get(i).(string)
	return s
}

// Int returns the value at position i as an int.
func (o Outcome) Int(i int) int {
	n, _ := o.Get(i).(int)
	return n
}

// Value returns position i of o as a T, or the zero T.
func Value[T any](o Outcome, i int) T {
	v, _ := o.Get(i).(T)
	return v
}
