package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario is a declarative test: it arranges stubs on doubles, exercises
// them through a flow of calls and asserts on what was recorded.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Specs lists CUE descriptor files, relative to the scenario file.
	// Doubles not declared by any spec accept calls to any method.
	Specs []string `yaml:"specs,omitempty"`

	// Strict makes calls that no stub matches fail.
	Strict bool `yaml:"strict,omitempty"`

	// RunID is an optional fixed run identifier for golden snapshots.
	RunID string `yaml:"run_id,omitempty"`

	// Stubs are registered in order before the flow runs.
	Stubs []Stub `yaml:"stubs,omitempty"`

	// Flow contains the calls made through the doubles.
	Flow []FlowStep `yaml:"flow"`

	// Assertions verify the recorded calls after the flow.
	Assertions []Assertion `yaml:"assertions"`
}

// Stub configures one rule. Exactly one of Return, Fail and Echo is set.
type Stub struct {
	Double string `yaml:"double"`
	Method string `yaml:"method"`

	// Args are matcher specs; see the package documentation.
	Args []any `yaml:"args"`

	Return []any  `yaml:"return,omitempty"`
	Fail   string `yaml:"fail,omitempty"`

	// Echo answers with the argument at this position.
	Echo *int `yaml:"echo,omitempty"`
}

// FlowStep is one call through a double.
type FlowStep struct {
	// Call is "Double.method".
	Call string `yaml:"call"`

	Args []any `yaml:"args"`

	// Expect validates the outcome. If nil, any outcome is accepted.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause is the expected outcome of a flow step. Fail is matched as
// a substring of the failure message.
type ExpectClause struct {
	Return []any  `yaml:"return,omitempty"`
	Fail   string `yaml:"fail,omitempty"`
}

// CallRef names a call pattern. In YAML it is either "Double.method" or a
// mapping with call and args. Omitted args match any argument, using the
// arity the descriptor declares.
type CallRef struct {
	Call string `yaml:"call"`
	Args []any  `yaml:"args,omitempty"`
}

// UnmarshalYAML accepts the scalar shorthand.
func (c *CallRef) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		c.Call = node.Value
		return nil
	}
	type plain CallRef
	return node.Decode((*plain)(c))
}

// Assertion verifies the recorded calls.
type Assertion struct {
	// Type is one of verify, verify_order, capture, no_more_interactions.
	Type string `yaml:"type"`

	// Call and Args select the calls (verify, capture).
	Call string `yaml:"call,omitempty"`
	Args []any  `yaml:"args,omitempty"`

	// Times, Never and AtLeastOnce set the expected count for verify.
	// With none of them set, exactly one call is expected.
	Times       *int `yaml:"times,omitempty"`
	Never       bool `yaml:"never,omitempty"`
	AtLeastOnce bool `yaml:"at_least_once,omitempty"`

	// Calls is the expected order (verify_order).
	Calls []CallRef `yaml:"calls,omitempty"`

	// Position, Expect and Error configure capture. Error is the expected
	// error code when the capture should fail.
	Position int    `yaml:"position,omitempty"`
	Expect   any    `yaml:"expect,omitempty"`
	Error    string `yaml:"error,omitempty"`

	// Doubles lists the doubles checked by no_more_interactions.
	Doubles []string `yaml:"doubles,omitempty"`
}

// Assertion type constants.
const (
	AssertVerify             = "verify"
	AssertVerifyOrder        = "verify_order"
	AssertCapture            = "capture"
	AssertNoMoreInteractions = "no_more_interactions"
)

// LoadScenario reads and parses a scenario YAML file. Spec paths are
// resolved relative to the file's directory. Unknown fields are rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	base := filepath.Dir(path)
	for i, specPath := range scenario.Specs {
		if !filepath.IsAbs(specPath) {
			scenario.Specs[i] = filepath.Join(base, specPath)
		}
	}

	if err := validateSpecPaths(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return scenario, nil
}

// ParseScenario decodes and validates a scenario without touching the
// filesystem.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// FindScenarios returns the .yaml and .yml files under dir, sorted.
func FindScenarios(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		ext := filepath.Ext(path)
		if !d.IsDir() && (ext == ".yaml" || ext == ".yml") {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func validateSpecPaths(s *Scenario) error {
	for _, specPath := range s.Specs {
		if _, err := os.Stat(specPath); os.IsNotExist(err) {
			return fmt.Errorf("spec file not found: %s", specPath)
		}
	}
	return nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, stub := range s.Stubs {
		if stub.Double == "" || stub.Method == "" {
			return fmt.Errorf("stubs[%d]: double and method are required", i)
		}
		responses := 0
		if stub.Return != nil {
			responses++
		}
		if stub.Fail != "" {
			responses++
		}
		if stub.Echo != nil {
			responses++
		}
		if responses != 1 {
			return fmt.Errorf("stubs[%d]: exactly one of return, fail or echo is required", i)
		}
		if stub.Echo != nil && (*stub.Echo < 0 || *stub.Echo >= len(stub.Args)) {
			return fmt.Errorf("stubs[%d]: echo position %d out of range", i, *stub.Echo)
		}
	}

	for i, step := range s.Flow {
		if _, _, err := splitCall(step.Call); err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
		if step.Expect != nil && step.Expect.Return != nil && step.Expect.Fail != "" {
			return fmt.Errorf("flow[%d].expect: return and fail are exclusive", i)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertVerify:
		if _, _, err := splitCall(a.Call); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
		set := 0
		if a.Times != nil {
			set++
			if *a.Times < 0 {
				return fmt.Errorf("assertions[%d]: times must be non-negative", index)
			}
		}
		if a.Never {
			set++
		}
		if a.AtLeastOnce {
			set++
		}
		if set > 1 {
			return fmt.Errorf("assertions[%d]: times, never and at_least_once are exclusive", index)
		}
	case AssertVerifyOrder:
		if len(a.Calls) < 2 {
			return fmt.Errorf("assertions[%d]: verify_order needs at least two calls", index)
		}
		for j, ref := range a.Calls {
			if _, _, err := splitCall(ref.Call); err != nil {
				return fmt.Errorf("assertions[%d].calls[%d]: %w", index, j, err)
			}
		}
	case AssertCapture:
		if _, _, err := splitCall(a.Call); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
		if a.Position < 0 {
			return fmt.Errorf("assertions[%d]: position must be non-negative", index)
		}
	case AssertNoMoreInteractions:
		if len(a.Doubles) == 0 {
			return fmt.Errorf("assertions[%d]: doubles list is required for no_more_interactions", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

// splitCall splits "Double.method".
func splitCall(call string) (dbl, method string, err error) {
	dbl, method, ok := strings.Cut(call, ".")
	if !ok || dbl == "" || method == "" || strings.Contains(method, ".") {
		return "", "", fmt.Errorf("call %q must have the form Double.method", call)
	}
	return dbl, method, nil
}
