package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario is one multi-peer simulation.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	Description string `yaml:"description"`

	// Peers is the number of simulated peers. Zero means the configured default.
	Peers int `yaml:"peers,omitempty"`

	// Debug enables debug-only sync methods on every peer.
	Debug bool `yaml:"debug,omitempty"`

	// Disabled lists groups switched off on every peer.
	Disabled []string `yaml:"disabled,omitempty"`

	// Hosts varies the loaded mods of individual peers.
	Hosts []HostVariant `yaml:"hosts,omitempty"`

	// Setup builds the world before the runtime is installed. Setup actions
	// are local and never replicated.
	Setup []SetupStep `yaml:"setup,omitempty"`

	// Steps are player actions taken on one peer each.
	Steps []Step `yaml:"steps"`

	Assertions []Assertion `yaml:"assertions"`
}

// HostVariant hides or renames symbols on one peer.
type HostVariant struct {
	Peer    int               `yaml:"peer"`
	Without []string          `yaml:"without,omitempty"`
	Renamed map[string]string `yaml:"renamed,omitempty"`
}

// SetupStep runs a setup action on the listed peers, or on all of them.
type SetupStep struct {
	Do    string         `yaml:"do"`
	Peers []int          `yaml:"peers,omitempty"`
	Args  map[string]any `yaml:"args,omitempty"`
}

// Step runs a player action on one peer. The action "settle" applies every
// pending operation on every peer instead.
type Step struct {
	Do   string         `yaml:"do"`
	Peer int            `yaml:"peer,omitempty"`
	Args map[string]any `yaml:"args,omitempty"`
}

// Assertion checks the simulation outcome.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Peer restricts peer-level assertions. Nil means every peer.
	Peer *int `yaml:"peer,omitempty"`

	Group string `yaml:"group,omitempty"` // group_state
	State string `yaml:"state,omitempty"` // group_state
	Count *int   `yaml:"count,omitempty"` // submitted, applied, failed
	Probe string `yaml:"probe,omitempty"` // host_state
	// Equals is compared to the probed value by its printed form.
	Equals any `yaml:"equals,omitempty"`
}

// Assertion types.
const (
	AssertConverged  = "converged"
	AssertDiverged   = "diverged"
	AssertSubmitted  = "submitted"
	AssertApplied    = "applied"
	AssertFailed     = "failed"
	AssertGroupState = "group_state"
	AssertHostState  = "host_state"
)

// StepSettle is the built-in step that drains every peer.
const StepSettle = "settle"

// LoadScenario reads a scenario file. Unknown fields are rejected so typos
// surface instead of being ignored.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Peers < 0 {
		return fmt.Errorf("peers must be non-negative")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, h := range s.Hosts {
		if h.Peer < 0 {
			return fmt.Errorf("hosts[%d]: peer must be non-negative", i)
		}
	}
	for i, step := range s.Setup {
		if _, ok := setupActions[step.Do]; !ok {
			return fmt.Errorf("setup[%d]: unknown action %q (known: %v)", i, step.Do, actionNames(setupActions))
		}
	}
	for i, step := range s.Steps {
		if step.Do == StepSettle {
			continue
		}
		if _, ok := stepActions[step.Do]; !ok {
			return fmt.Errorf("steps[%d]: unknown action %q (known: %v)", i, step.Do, actionNames(stepActions))
		}
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertConverged, AssertDiverged:
	case AssertSubmitted, AssertApplied, AssertFailed:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for %s", index, a.Type)
		}
	case AssertGroupState:
		if a.Group == "" || a.State == "" {
			return fmt.Errorf("assertions[%d]: group and state are required for %s", index, a.Type)
		}
	case AssertHostState:
		if a.Probe == "" {
			return fmt.Errorf("assertions[%d]: probe is required for %s", index, a.Type)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
