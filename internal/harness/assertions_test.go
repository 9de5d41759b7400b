package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateAssertions_ResultOnly(t *testing.T) {
	r := NewResult()
	r.Pending = 2
	r.RemoteCalls = []RemoteCall{{ID: "op-0001", Kind: "start_selling"}}
	r.Notifications = []string{"sync failed"}

	errs := EvaluateAssertions(r, []Assertion{
		{Type: AssertPendingCount, Count: 2},
		{Type: AssertRemoteCalls, Kinds: []string{"start_selling"}},
		{Type: AssertNotification, Messages: []string{"sync failed"}},
	}, nil)
	assert.Empty(t, errs)

	errs = EvaluateAssertions(r, []Assertion{
		{Type: AssertPendingCount, Count: 0},
		{Type: AssertRemoteCalls},
	}, nil)
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "Expected: 0")
	assert.Contains(t, errs[0], "Actual: 2")
	assert.Contains(t, errs[1], "Assertion failed: remote_calls")
}

func TestAssertionError_IncludesTrace(t *testing.T) {
	err := &AssertionError{
		Type:     AssertPendingCount,
		Expected: "0",
		Actual:   "3",
		Trace: []TraceEvent{
			{Seq: 1, Action: ActionCheckout, Outcome: OutcomeOK, Pending: 3, Network: "offline"},
		},
	}
	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: pending_count")
	assert.Contains(t, msg, "[1] checkout map[] -> ok (pending 3, offline)")
}
