// Package harness runs declarative test-double scenarios.
//
// A scenario creates doubles from CUE descriptors, registers stubs, makes
// a flow of calls through the doubles and verifies what was recorded.
//
// # Scenario Format
//
//	name: create_user_happy_path
//	description: "Email is checked before the user is saved"
//	specs:
//	  - specs/users.cue
//	strict: true
//	stubs:
//	  - double: UserRepository
//	    method: ExistsByEmail
//	    args: ["x@y.com"]
//	    return: [false]
//	  - double: UserRepository
//	    method: Save
//	    args: [{any: true}]
//	    echo: 0
//	flow:
//	  - call: UserRepository.ExistsByEmail
//	    args: ["x@y.com"]
//	    expect: {return: [false]}
//	  - call: UserRepository.Save
//	    args: [{email: "x@y.com"}]
//	assertions:
//	  - type: verify
//	    call: UserRepository.Save
//	  - type: verify_order
//	    calls: [UserRepository.ExistsByEmail, UserRepository.Save]
//	  - type: capture
//	    call: UserRepository.Save
//	    position: 0
//	    expect: {email: "x@y.com"}
//
// # Matcher Specs
//
// Stub and assertion args are matcher specs. A single-key mapping selects
// a matcher: {any: true}, {kind: string}, {expr: "arg.size() > 3"} or
// {eq: value}. Any other value matches by equality. Assertions that omit
// args match any arguments of the arity the descriptor declares.
//
// # Assertion Types
//
//   - verify: the number of matching calls is times (default 1), zero with
//     never, or one or more with at_least_once
//   - verify_order: the last call matching each entry precedes the first
//     call matching the next one
//   - capture: the argument at position of the last matching call equals
//     expect, or capturing fails with the error code in error
//   - no_more_interactions: every call on the listed doubles was verified
//
// # Deterministic Testing
//
// Calls are numbered by the set's sequence, starting at 1, so identical
// scenarios produce identical traces. RunWithGolden compares the
// canonical JSON trace with testdata/golden/{name}.golden.
package harness
