package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/cubist/internal/mdx"
)

// Scenario is one statement run with its expected outcome.
type Scenario struct {
	// Name uniquely identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	Description string `yaml:"description"`

	// Cube is the cube definition file. Relative paths are resolved
	// against the scenario file's directory.
	Cube string `yaml:"cube"`

	Parameters []ParameterDecl `yaml:"parameters,omitempty"`

	// Bindings set parameter values before execution, by name.
	Bindings map[string]any `yaml:"bindings,omitempty"`

	// Timeout bounds the execution. Zero means unlimited.
	Timeout time.Duration `yaml:"timeout,omitempty"`

	Expression *mdx.Node `yaml:"expression"`

	Expect Expect `yaml:"expect"`

	// TraceID fixes the trace id of the execution. Defaults to the
	// scenario name.
	TraceID string `yaml:"trace_id,omitempty"`
}

// ParameterDecl declares a statement parameter.
type ParameterDecl struct {
	Name string `yaml:"name"`

	// Type is one of the parameter type names.
	Type string `yaml:"type"`

	// Hierarchy is required for member and set parameters.
	Hierarchy string `yaml:"hierarchy,omitempty"`

	Default *mdx.Node `yaml:"default,omitempty"`

	Description string `yaml:"description,omitempty"`
}

// Expect is the subset of the outcome a scenario asserts. Empty fields
// are not checked.
type Expect struct {
	State  string `yaml:"state,omitempty"`
	Result string `yaml:"result,omitempty"`

	// Error is a compile error code such as E204.
	Error string `yaml:"error,omitempty"`
}

// Parameter type names.
const (
	TypeNumeric  = "numeric"
	TypeInteger  = "integer"
	TypeString   = "string"
	TypeBoolean  = "boolean"
	TypeDateTime = "datetime"
	TypeMember   = "member"
	TypeSet      = "set"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	s, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	if s.Cube != "" && !filepath.IsAbs(s.Cube) {
		s.Cube = filepath.Join(filepath.Dir(path), s.Cube)
	}
	if _, err := os.Stat(s.Cube); err != nil {
		return nil, fmt.Errorf("invalid scenario: cube file: %w", err)
	}
	return s, nil
}

// ParseScenario decodes and validates a scenario. The cube path is left
// as written.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
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
	if s.Cube == "" {
		return fmt.Errorf("cube is required")
	}
	if s.Expression == nil {
		return fmt.Errorf("expression is required")
	}
	if s.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}

	seen := make(map[string]bool)
	for i, p := range s.Parameters {
		if p.Name == "" {
			return fmt.Errorf("parameters[%d]: name is required", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("parameters[%d]: duplicate parameter %q", i, p.Name)
		}
		seen[p.Name] = true

		switch p.Type {
		case TypeNumeric, TypeInteger, TypeString, TypeBoolean, TypeDateTime:
		case TypeMember, TypeSet:
			if p.Hierarchy == "" {
				return fmt.Errorf("parameters[%d]: hierarchy is required for %s parameters", i, p.Type)
			}
		default:
			return fmt.Errorf("parameters[%d]: unknown type %q", i, p.Type)
		}
	}

	if s.Expect.Error != "" && (s.Expect.State != "" || s.Expect.Result != "") {
		return fmt.Errorf("expect: error excludes state and result")
	}
	return nil
}
