package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const specScenario = `name: create_user
description: calls checked against the UserRepository descriptor
specs: [specs/users.cue]
stubs:
  - {double: UserRepository, method: ExistsByEmail, args: [a@example.com], return: [false]}
flow:
  - call: UserRepository.ExistsByEmail
    args: [a@example.com]
assertions:
  - {type: verify, call: UserRepository.ExistsByEmail}
`

func TestValidateCommandMissingArgs(t *testing.T) {
	_, _, err := execute(NewValidateCommand(newTestCmd()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestValidateCommandNonExistentDir(t *testing.T) {
	_, _, err := execute(NewValidateCommand(newTestCmd()), "/nonexistent/dir")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestValidateCommandValid(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "specs/users.cue", usersSpec)
	writeFile(t, dir, "create_user.yaml", specScenario)
	writeFile(t, dir, "lookup.yaml", lookupScenario)

	out, _, err := execute(NewValidateCommand(newTestCmd()), dir)
	require.NoError(t, err)
	assert.Contains(t, out, "2 scenario(s) valid, 1 descriptor(s) checked")
}

func TestValidateCommandLintProblems(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "specs/users.cue", usersSpec)
	writeFile(t, dir, "bad.yaml", `name: bad
description: calls a method the descriptor does not declare
specs: [specs/users.cue]
flow:
  - call: UserRepository.Purge
    args: []
assertions:
  - {type: verify, call: UserRepository.Save, args: [a, b]}
`)

	out, _, err := execute(NewValidateCommand(newTestCmd()), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "flow[0]: UNKNOWN_METHOD")
	assert.Contains(t, out, "assertions[0]: ARITY_MISMATCH")
	assert.Contains(t, out, "Validation failed: 2 problem(s)")
}

func TestValidateCommandDescriptorSyntaxError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "specs/users.cue", "interface: UserRepository: methods: {\n\tSave: args: [\n}\n")
	writeFile(t, dir, "create_user.yaml", specScenario)

	out, _, err := execute(NewValidateCommand(newTestCmd()), dir)
	require.Error(t, err)
	assert.Contains(t, out, "users.cue:")
}

func TestValidateCommandJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.yaml", "description: no name\nflow: []\nassertions: []\n")

	out, _, err := execute(NewValidateCommand(&RootOptions{Format: "json"}), dir)
	require.Error(t, err)

	var response struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &response))
	assert.Equal(t, "error", response.Status)
	assert.False(t, response.Data.Valid)
	require.Len(t, response.Data.Errors, 1)
	assert.Contains(t, response.Data.Errors[0].Message, "name is required")
	assert.Equal(t, ErrCodeValidationFailed, response.Error.Code)
}
