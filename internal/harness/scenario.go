// Package harness runs declarative dispatch scenarios: YAML files that set
// up worker object tables, drive a flow of invocations through a client
// hook, and assert on the results and the recorded trace. Golden files pin
// the exact trace a scenario produces.
package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario defines one dispatch test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario exercises.
	Description string `yaml:"description,omitempty"`

	// Workers lists the virtual workers to stand up. The client hook is
	// implicit and always present.
	Workers []string `yaml:"workers"`

	// Setup seeds worker object tables before the flow runs.
	Setup []SetupStep `yaml:"setup,omitempty"`

	// Flow is the sequence of invocations driven through the client hook.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate results and worker state after the flow.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// SetupStep registers one tensor in a worker's object table.
type SetupStep struct {
	Worker string  `yaml:"worker"`
	Object string  `yaml:"object"`
	Data   []int64 `yaml:"data"`
}

// FlowStep is one invocation. Exactly one of Invoke (method dispatch) or
// Call (free function) must be set.
type FlowStep struct {
	// Invoke names a method operation, dispatched on Receiver.
	Invoke string `yaml:"invoke,omitempty"`

	// Call names a qualified free function, e.g. "tensor.cat".
	Call string `yaml:"call,omitempty"`

	// Receiver is "worker/object" for a pointer, or "$name" for a saved
	// result. Required with Invoke, forbidden with Call.
	Receiver string `yaml:"receiver,omitempty"`

	// Args are operand references: integer or boolean literals,
	// "worker/object" pointers, or "$name" saved results.
	Args []string `yaml:"args,omitempty"`

	// Save stores the step's result under a name for later steps and
	// assertions.
	Save string `yaml:"save,omitempty"`

	// ExpectError, when set, requires the step to fail with an error
	// whose message contains this substring.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Assertion types.
const (
	AssertResultData   = "result_data"   // saved result resolves to this tensor
	AssertResultScalar = "result_scalar" // saved result is this scalar
	AssertLocation     = "location"      // saved result points at this worker
	AssertObjectCount  = "object_count"  // worker table holds N objects
	AssertCommandCount = "command_count" // worker logged N received commands
)

// Assertion validates one property of the final state.
type Assertion struct {
	Type string `yaml:"type"`

	// Ref names a saved result (result_data, result_scalar, location).
	Ref string `yaml:"ref,omitempty"`

	// Data is the expected tensor payload (result_data).
	Data []int64 `yaml:"data,omitempty"`

	// Scalar is the expected integer (result_scalar).
	Scalar int64 `yaml:"scalar,omitempty"`

	// Worker names a worker (location, object_count, command_count).
	Worker string `yaml:"worker,omitempty"`

	// Count is the expected number (object_count, command_count).
	Count int `yaml:"count,omitempty"`
}

// ScenarioError reports a scenario file that fails validation.
type ScenarioError struct {
	Scenario string
	Message  string
}

func (e *ScenarioError) Error() string {
	return fmt.Sprintf("scenario %s: %s", e.Scenario, e.Message)
}

// LoadScenario parses and validates a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var s Scenario
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadScenarioDir loads every *.yaml scenario in dir, sorted by filename.
func LoadScenarioDir(dir string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read scenario dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".yaml") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	out := make([]*Scenario, 0, len(names))
	for _, name := range names {
		s, err := LoadScenario(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		out = append(out, s)
	}
	return out, nil
}

func (s *Scenario) validate() error {
	if s.Name == "" {
		return &ScenarioError{Scenario: "(unnamed)", Message: "name is required"}
	}
	if len(s.Workers) == 0 {
		return &ScenarioError{Scenario: s.Name, Message: "at least one worker is required"}
	}
	known := make(map[string]bool, len(s.Workers))
	for _, w := range s.Workers {
		if known[w] {
			return &ScenarioError{Scenario: s.Name, Message: fmt.Sprintf("duplicate worker %q", w)}
		}
		known[w] = true
	}
	for i, st := range s.Setup {
		if !known[st.Worker] {
			return &ScenarioError{Scenario: s.Name,
				Message: fmt.Sprintf("setup[%d]: unknown worker %q", i, st.Worker)}
		}
		if st.Object == "" {
			return &ScenarioError{Scenario: s.Name,
				Message: fmt.Sprintf("setup[%d]: object is required", i)}
		}
	}
	if len(s.Flow) == 0 {
		return &ScenarioError{Scenario: s.Name, Message: "flow is empty"}
	}
	saved := make(map[string]bool)
	for i, step := range s.Flow {
		switch {
		case step.Invoke != "" && step.Call != "":
			return &ScenarioError{Scenario: s.Name,
				Message: fmt.Sprintf("flow[%d]: invoke and call are mutually exclusive", i)}
		case step.Invoke == "" && step.Call == "":
			return &ScenarioError{Scenario: s.Name,
				Message: fmt.Sprintf("flow[%d]: one of invoke or call is required", i)}
		case step.Invoke != "" && step.Receiver == "":
			return &ScenarioError{Scenario: s.Name,
				Message: fmt.Sprintf("flow[%d]: invoke requires a receiver", i)}
		case step.Call != "" && step.Receiver != "":
			return &ScenarioError{Scenario: s.Name,
				Message: fmt.Sprintf("flow[%d]: call takes no receiver", i)}
		}
		if ref, ok := strings.CutPrefix(step.Receiver, "$"); ok && !saved[ref] {
			return &ScenarioError{Scenario: s.Name,
				Message: fmt.Sprintf("flow[%d]: receiver $%s not saved by an earlier step", i, ref)}
		}
		for _, a := range step.Args {
			if ref, ok := strings.CutPrefix(a, "$"); ok && !saved[ref] {
				return &ScenarioError{Scenario: s.Name,
					Message: fmt.Sprintf("flow[%d]: arg $%s not saved by an earlier step", i, ref)}
			}
		}
		if step.Save != "" {
			saved[step.Save] = true
		}
	}
	for i, a := range s.Assertions {
		switch a.Type {
		case AssertResultData, AssertResultScalar, AssertLocation:
			if a.Ref == "" || !saved[a.Ref] {
				return &ScenarioError{Scenario: s.Name,
					Message: fmt.Sprintf("assertions[%d]: ref %q is not a saved result", i, a.Ref)}
			}
			if a.Type == AssertLocation && !known[a.Worker] {
				return &ScenarioError{Scenario: s.Name,
					Message: fmt.Sprintf("assertions[%d]: unknown worker %q", i, a.Worker)}
			}
		case AssertObjectCount, AssertCommandCount:
			if !known[a.Worker] {
				return &ScenarioError{Scenario: s.Name,
					Message: fmt.Sprintf("assertions[%d]: unknown worker %q", i, a.Worker)}
			}
		default:
			return &ScenarioError{Scenario: s.Name,
				Message: fmt.Sprintf("assertions[%d]: unknown type %q", i, a.Type)}
		}
	}
	return nil
}
