package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/tethergrid/tether/internal/value"
)

// RunWithGolden executes a scenario and compares its trace against the
// golden file testdata/golden/{scenario.Name}.golden. Regenerate with:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, h *Harness, s *Scenario) *Result {
	t.Helper()

	result, err := h.Run(context.Background(), s)
	if err != nil {
		t.Fatalf("scenario %s: %v", s.Name, err)
	}

	snap, err := traceSnapshot(s, result)
	if err != nil {
		t.Fatalf("scenario %s: snapshot: %v", s.Name, err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, s.Name, snap)
	return result
}

// traceSnapshot serializes a run's trace as canonical JSON.
func traceSnapshot(s *Scenario, result *Result) ([]byte, error) {
	trace := make([]any, len(result.Trace))
	for i, ev := range result.Trace {
		m := map[string]any{
			"seq": int64(ev.Seq),
			"op":  ev.Op,
		}
		if ev.Result != "" {
			m["result"] = ev.Result
		}
		if ev.Error != "" {
			m["error"] = ev.Error
		}
		trace[i] = m
	}
	return value.MarshalCanonical(map[string]any{
		"scenario": s.Name,
		"trace":    trace,
	})
}
