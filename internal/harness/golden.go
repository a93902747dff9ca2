package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/catom/internal/canon"
)

// TraceSnapshot captures the trace and final state of a scenario run.
type TraceSnapshot struct {
	ScenarioName string
	InstanceID   string
	Trace        []TraceEvent
	Final        map[string]any
}

// toCanonicalMap converts the snapshot to plain maps so canon.Marshal emits
// snake_case keys.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, e := range s.Trace {
		traceList[i] = e.canonicalMap()
	}
	return map[string]any{
		"scenario_name": s.ScenarioName,
		"instance_id":   s.InstanceID,
		"trace":         traceList,
		"final":         s.Final,
	}
}

// MarshalSnapshot returns the canonical JSON form of a run, as stored in
// golden files.
func MarshalSnapshot(name string, r *Result) ([]byte, error) {
	s := TraceSnapshot{
		ScenarioName: name,
		InstanceID:   r.InstanceID,
		Trace:        r.Trace,
		Final:        r.Final,
	}
	return canon.Marshal(s.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...Option) (*Result, error) {
	t.Helper()

	result, err := Run(scenario, opts...)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against the golden file for
// name without re-running the scenario.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := MarshalSnapshot(name, result)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
