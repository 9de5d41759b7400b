package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/possync/internal/canonical"
)

// TraceSnapshot captures everything a scenario run made observable.
// It is serialized as canonical JSON for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName  string       `json:"scenario_name"`
	Trace         []TraceEvent `json:"trace"`
	RemoteCalls   []RemoteCall `json:"remote_calls"`
	Notifications []string     `json:"notifications"`
	Pending       int          `json:"pending"`
}

// Snapshot builds the golden snapshot of a result.
func Snapshot(name string, result *Result) TraceSnapshot {
	return TraceSnapshot{
		ScenarioName:  name,
		Trace:         result.Trace,
		RemoteCalls:   result.RemoteCalls,
		Notifications: result.Notifications,
		Pending:       result.Pending,
	}
}

// Canonical returns the canonical JSON form stored in golden files.
func (s TraceSnapshot) Canonical() ([]byte, error) {
	return canonical.Marshal(s)
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails. A mismatch fails t via goldie.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result against its golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := Snapshot(scenarioName, result).Canonical()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
