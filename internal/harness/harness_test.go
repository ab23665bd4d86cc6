package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tethergrid/tether/internal/value"
)

func TestScenarioGoldenTraces(t *testing.T) {
	scenarios, err := LoadScenarioDir("testdata/scenarios")
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)

	h := New(nil)
	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			RunWithGolden(t, h, s)
		})
	}
}

func TestRunSavesResults(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/remote_add.yaml")
	require.NoError(t, err)

	result, err := New(nil).Run(context.Background(), s)
	require.NoError(t, err)

	require.Contains(t, result.Saved, "r1")
	require.Contains(t, result.Saved, "total")
	assert.Equal(t, value.Int(12), result.Saved["total"])

	pv, ok := result.Saved["r1"].(value.ProxyValue)
	require.True(t, ok)
	rep, ok := pv.Proxy.Rep().(*value.Remote)
	require.True(t, ok)
	assert.Equal(t, value.WorkerID("alice"), rep.Pointer.Location)
}

func TestRunIsDeterministic(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/concat.yaml")
	require.NoError(t, err)

	h := New(nil)
	first, err := h.Run(context.Background(), s)
	require.NoError(t, err)
	second, err := h.Run(context.Background(), s)
	require.NoError(t, err)

	assert.Equal(t, first.Trace, second.Trace)
}

func TestRunFailsOnUnexpectedError(t *testing.T) {
	s := &Scenario{
		Name:    "missing_object",
		Workers: []string{"alice"},
		Flow: []FlowStep{
			{Invoke: "neg", Receiver: "alice/ghost"},
		},
	}
	require.NoError(t, s.validate())

	result, err := New(nil).Run(context.Background(), s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "object not found")
	require.Len(t, result.Trace, 1)
	assert.NotEmpty(t, result.Trace[0].Error)
}

func TestRunFailsWhenExpectedErrorMissing(t *testing.T) {
	s := &Scenario{
		Name:    "expected_error_missing",
		Workers: []string{"alice"},
		Setup:   []SetupStep{{Worker: "alice", Object: "a", Data: []int64{1}}},
		Flow: []FlowStep{
			{Invoke: "neg", Receiver: "alice/a", ExpectError: "lengths differ"},
		},
	}
	require.NoError(t, s.validate())

	_, err := New(nil).Run(context.Background(), s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected error")
}

func TestAssertionFailureShowsTrace(t *testing.T) {
	s := &Scenario{
		Name:    "wrong_data",
		Workers: []string{"alice"},
		Setup:   []SetupStep{{Worker: "alice", Object: "a", Data: []int64{1, 2}}},
		Flow: []FlowStep{
			{Invoke: "neg", Receiver: "alice/a", Save: "r"},
		},
		Assertions: []Assertion{
			{Type: AssertResultData, Ref: "r", Data: []int64{9, 9}},
		},
	}
	require.NoError(t, s.validate())

	_, err := New(nil).Run(context.Background(), s)
	require.Error(t, err)
	var aerr *AssertionError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, AssertResultData, aerr.Type)
	assert.Contains(t, aerr.Error(), "trace:")
}
