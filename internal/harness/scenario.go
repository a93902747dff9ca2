package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/catom/internal/atomerr"
	"github.com/roach88/catom/internal/change"
)

// Scenario defines a scripted run against one instance of a compiled type.
// The harness records every change the instance emits and asserts on the
// resulting trace and final state.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schema is the CUE file or directory declaring the types.
	// A relative path is resolved against the scenario file location.
	Schema string `yaml:"schema"`

	// Type is the name of the type to instantiate.
	Type string `yaml:"type"`

	// Init holds construction assignments, applied in ascending key order.
	Init map[string]any `yaml:"init,omitempty"`

	// Steps run in order after construction.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and state.
	// Supported types: trace_count, trace_contains, trace_order, final_value
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one operation on the instance. Exactly one of Set, Get, Delete,
// Observe, Unobserve or Container names the action.
type Step struct {
	// Set writes Value to the named member.
	Set string `yaml:"set,omitempty"`

	// Get reads the named member and compares it with Expect when given.
	Get string `yaml:"get,omitempty"`

	// Delete deletes the named member.
	Delete string `yaml:"delete,omitempty"`

	// Observe registers a named watcher.
	Observe *ObserveStep `yaml:"observe,omitempty"`

	// Unobserve removes the watcher registered under this name.
	Unobserve string `yaml:"unobserve,omitempty"`

	// Container runs an in-place operation on a list, dict or set member.
	Container *ContainerStep `yaml:"container,omitempty"`

	// Value is the value written by a set step.
	Value any `yaml:"value,omitempty"`

	// Expect is the value a get or container step must produce.
	// An absent key skips the comparison; an explicit null expects nil.
	Expect yaml.Node `yaml:"expect,omitempty"`

	// Error is the error code the step must fail with, e.g. VALIDATION.
	Error string `yaml:"error,omitempty"`
}

// ObserveStep registers a watcher whose notifications join the trace under
// its name.
type ObserveStep struct {
	// Name identifies the watcher in the trace and in unobserve steps.
	Name string `yaml:"name"`

	// Member is the observed member.
	Member string `yaml:"member"`

	// Kinds restricts the watcher to these change kinds. Empty means all.
	Kinds []string `yaml:"kinds,omitempty"`

	// Then runs inside the watcher each time it fires.
	Then *Step `yaml:"then,omitempty"`
}

// ContainerStep names a container operation and its arguments.
type ContainerStep struct {
	// Member is the container member.
	Member string `yaml:"member"`

	// Op is the operation, using the change record op names
	// (append, insert, extend, setitem, delitem, pop, remove, clear, sort,
	// reverse, update, setdefault, popitem, add, discard).
	Op string `yaml:"op"`

	// Args are the positional arguments of the operation.
	Args []any `yaml:"args,omitempty"`
}

// Assertion validates the trace or the final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_count": events matching the filter occur exactly Count times
	// - "trace_contains": at least one event matches the filter and values
	// - "trace_order": Members appear in the trace in this relative order
	// - "final_value": the member reads as Expect after the last step
	Type string `yaml:"type"`

	// Member filters events by member, or names the member read by final_value.
	Member string `yaml:"member,omitempty"`

	// Kind filters events by change kind.
	Kind string `yaml:"kind,omitempty"`

	// Op filters container events by operation.
	Op string `yaml:"op,omitempty"`

	// Observer filters events by watcher name. "trace" selects the
	// harness's own recorder.
	Observer string `yaml:"observer,omitempty"`

	// Old and New are compared with the event values (trace_contains).
	Old yaml.Node `yaml:"old,omitempty"`
	New yaml.Node `yaml:"new,omitempty"`

	// Expect is the final value (final_value).
	Expect yaml.Node `yaml:"expect,omitempty"`

	// Count is the expected number of matching events (trace_count).
	Count int `yaml:"count,omitempty"`

	// Members is the expected member order (trace_order).
	Members []string `yaml:"members,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceCount    = "trace_count"
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertFinalValue    = "final_value"
)

// Step action names, as reported by Step.Action.
const (
	ActionSet       = "set"
	ActionGet       = "get"
	ActionDelete    = "delete"
	ActionObserve   = "observe"
	ActionUnobserve = "unobserve"
	ActionContainer = "container"
)

var errorCodes = []atomerr.Code{
	atomerr.CodeSchema,
	atomerr.CodeValidation,
	atomerr.CodeAccess,
	atomerr.CodeLookup,
}

// Action returns the name of the action this step performs, or "" when no
// action is set.
func (s *Step) Action() string {
	names := s.actions()
	if len(names) != 1 {
		return ""
	}
	return names[0]
}

func (s *Step) actions() []string {
	var names []string
	if s.Set != "" {
		names = append(names, ActionSet)
	}
	if s.Get != "" {
		names = append(names, ActionGet)
	}
	if s.Delete != "" {
		names = append(names, ActionDelete)
	}
	if s.Observe != nil {
		names = append(names, ActionObserve)
	}
	if s.Unobserve != "" {
		names = append(names, ActionUnobserve)
	}
	if s.Container != nil {
		names = append(names, ActionContainer)
	}
	return names
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields, or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	s, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if s.Schema != "" && !filepath.IsAbs(s.Schema) {
		s.Schema = filepath.Join(filepath.Dir(path), s.Schema)
	}
	return s, nil
}

// ParseScenario decodes and validates scenario YAML. Unknown fields are
// rejected so a misspelled key fails loudly.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadDir loads every *.yaml and *.yml scenario in dir, sorted by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario directory: %w", err)
	}
	var out []*Scenario
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		s, err := LoadScenario(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("scenario missing required field: name")
	}
	if s.Schema == "" {
		return fmt.Errorf("scenario %q missing required field: schema", s.Name)
	}
	if s.Type == "" {
		return fmt.Errorf("scenario %q missing required field: type", s.Name)
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("scenario %q has no steps", s.Name)
	}
	watchers := map[string]bool{}
	for i := range s.Steps {
		if err := validateStep(&s.Steps[i], watchers); err != nil {
			return fmt.Errorf("scenario %q step %d: %w", s.Name, i, err)
		}
	}
	for i := range s.Assertions {
		if err := validateAssertion(&s.Assertions[i]); err != nil {
			return fmt.Errorf("scenario %q assertion %d: %w", s.Name, i, err)
		}
	}
	return nil
}

func validateStep(step *Step, watchers map[string]bool) error {
	names := step.actions()
	switch len(names) {
	case 0:
		return fmt.Errorf("no action (want one of set, get, delete, observe, unobserve, container)")
	case 1:
	default:
		return fmt.Errorf("more than one action: %s", strings.Join(names, ", "))
	}
	if step.Error != "" && !slices.Contains(errorCodes, atomerr.Code(step.Error)) {
		return fmt.Errorf("unknown error code %q", step.Error)
	}
	if step.Expect.Kind != 0 && names[0] != ActionGet && names[0] != ActionContainer {
		return fmt.Errorf("%s step cannot have expect", names[0])
	}
	switch names[0] {
	case ActionObserve:
		o := step.Observe
		if o.Name == "" || o.Member == "" {
			return fmt.Errorf("observe requires name and member")
		}
		if watchers[o.Name] {
			return fmt.Errorf("duplicate watcher %q", o.Name)
		}
		watchers[o.Name] = true
		for _, k := range o.Kinds {
			if _, err := change.ParseKind(k); err != nil {
				return err
			}
		}
		if o.Then != nil {
			if err := validateStep(o.Then, watchers); err != nil {
				return fmt.Errorf("then: %w", err)
			}
		}
	case ActionUnobserve:
		if !watchers[step.Unobserve] {
			return fmt.Errorf("unobserve of unknown watcher %q", step.Unobserve)
		}
	case ActionContainer:
		if step.Container.Member == "" || step.Container.Op == "" {
			return fmt.Errorf("container requires member and op")
		}
	}
	return nil
}

func validateAssertion(a *Assertion) error {
	if a.Kind != "" {
		if _, err := change.ParseKind(a.Kind); err != nil {
			return err
		}
	}
	switch a.Type {
	case AssertTraceCount:
		if a.Count < 0 {
			return fmt.Errorf("trace_count requires a non-negative count")
		}
	case AssertTraceContains:
		if a.Member == "" {
			return fmt.Errorf("trace_contains requires member")
		}
	case AssertTraceOrder:
		if len(a.Members) < 2 {
			return fmt.Errorf("trace_order requires at least 2 members")
		}
	case AssertFinalValue:
		if a.Member == "" || a.Expect.Kind == 0 {
			return fmt.Errorf("final_value requires member and expect")
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

// decodeNode decodes an optional YAML value. ok is false when the key was
// absent from the document.
func decodeNode(n *yaml.Node) (v any, ok bool, err error) {
	if n.Kind == 0 {
		return nil, false, nil
	}
	if err := n.Decode(&v); err != nil {
		return nil, true, err
	}
	return v, true, nil
}
