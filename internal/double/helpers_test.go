package double

import (
	"fmt"
	"strings"
)

// fakeT captures what a Set reports so tests can assert on failures.
type fakeT struct {
	errors   []string
	cleanups []func()
}

func (f *fakeT) Helper() {}

func (f *fakeT) Errorf(format string, args ...any) {
	f.errors = append(f.errors, fmt.Sprintf(format, args...))
}

func (f *fakeT) Cleanup(fn func()) {
	f.cleanups = append(f.cleanups, fn)
}

func (f *fakeT) runCleanups() {
	for i := len(f.cleanups) - 1; i >= 0; i-- {
		f.cleanups[i]()
	}
}

func (f *fakeT) failed() bool {
	return len(f.errors) > 0
}

func (f *fakeT) output() string {
	return strings.Join(f.errors, "\n")
}

// newTestSet creates a set reporting into a fakeT.
func newTestSet(opts ...Option) (*Set, *fakeT) {
	ft := &fakeT{}
	return NewSet(ft, opts...), ft
}

func repoDescriptor() Descriptor {
	return Describe("UserRepository",
		M("ExistsByEmail", 1),
		M("Save", 1),
		M("FindByID", 1),
	)
}

func mailerDescriptor() Descriptor {
	return Describe("EmailService", M("SendWelcome", 1))
}
