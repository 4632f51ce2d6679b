package double

// Sequence is the logical clock shared by every double in a Set.
//
// Each recorded invocation gets a strictly increasing seq from Next, which
// makes call order comparable across doubles. Unlike a wall clock it never
// ties and replays identically.
//
// Sequence is not safe for concurrent use.
type Sequence struct {
	seq int64
}

// NewSequence creates a sequence starting at 0.
//
// The first call to Next returns 1.
func NewSequence() *Sequence {
	return &Sequence{}
}

// Next increments and returns the next sequence number.
func (s *Sequence) Next() int64 {
	s.seq++
	return s.seq
}

// Current returns the last issued sequence number without incrementing.
func (s *Sequence) Current() int64 {
	return s.seq
}

// Reset rewinds the sequence to 0.
func (s *Sequence) Reset() {
	s.seq = 0
}
