// Package double provides test doubles with stubbing, call recording and
// verification.
//
// A Set owns every double created for one test. Doubles are hand-written per
// collaborator interface: each method forwards to Double.Called, which records
// the invocation and resolves the configured response.
//
// # Arrange
//
//	set := double.NewSet(t, double.WithStrict(true))
//	repo := set.NewDouble(double.Describe("UserRepository",
//	    double.M("ExistsByEmail", 1),
//	    double.M("Save", 1),
//	))
//	repo.On("ExistsByEmail", "x@y.com").Return(false)
//	repo.On("Save", double.AnyOf[User]()).Fail(errDown)
//
// Rules are evaluated in registration order and the first rule whose matchers
// all accept the arguments wins. Registering a second rule with identical
// matchers does not override the first one. On a descriptor without declared
// methods, the first rule whose matcher count differs from the call's
// argument count fails the call with ARITY_MISMATCH.
//
// # Act
//
// A hand-written double forwards its calls. Contexts are not recorded:
//
//	func (r *repoDouble) ExistsByEmail(_ context.Context, email string) (bool, error) {
//	    out := r.d.Called("ExistsByEmail", email)
//	    return out.Bool(0), out.Failure()
//	}
//
// # Assert
//
//	set.Verify(double.Call(repo, "Save", double.Any()))
//	set.Verify(double.Call(mailer, "SendWelcome", double.Any()).Never())
//	set.VerifyOrder(
//	    double.Call(repo, "ExistsByEmail", double.Any()),
//	    double.Call(repo, "Save", double.Any()),
//	)
//	saved, err := double.Capture[User](set, repo, "Save", 0)
//
// # Ordering
//
// Every invocation is stamped from the Set's Sequence, so seq values are
// comparable across all doubles of the Set. VerifyOrder relies on this.
//
// A Set is not safe for concurrent use. Calling doubles from several
// goroutines inside one test is unsupported.
package double
