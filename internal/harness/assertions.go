package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/possync/internal/model"
	"github.com/roach88/possync/internal/report"
	"github.com/roach88/possync/internal/selling"
	"github.com/roach88/possync/internal/store"
)

// AssertionContext gives assertions access to the till's final state.
type AssertionContext struct {
	Ctx     context.Context
	Store   *store.Store
	StoreID string
	Selling *selling.Manager
}

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, ev := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s %v -> %s (pending %d, %s)\n", ev.Seq, ev.Action, ev.Args, ev.Outcome, ev.Pending, ev.Network)
	}
	return buf.String()
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for _, a := range assertions {
		if err := evaluate(result, a, actx); err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

func evaluate(result *Result, a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertPendingCount:
		return assertEqual(result, a.Type, a.Count, result.Pending)

	case AssertRemoteCalls:
		kinds := make([]string, len(result.RemoteCalls))
		for i, c := range result.RemoteCalls {
			kinds[i] = c.Kind
		}
		want := a.Kinds
		if want == nil {
			want = []string{}
		}
		return assertEqual(result, a.Type, want, kinds)

	case AssertNotification:
		want := a.Messages
		if want == nil {
			want = []string{}
		}
		return assertEqual(result, a.Type, want, result.Notifications)

	case AssertMenuStock:
		menu, err := actx.Selling.MenuItems(actx.Ctx, actx.StoreID)
		if err != nil {
			return err
		}
		idx := slices.IndexFunc(menu, func(m model.MenuItem) bool { return m.ID == a.Item })
		if idx < 0 {
			return notFound(result, a)
		}
		return assertEqual(result, a.Type+" "+a.Item, *a.Quantity, menu[idx].Stock)

	case AssertStockItem:
		stock, err := actx.Selling.StockItems(actx.Ctx, actx.StoreID)
		if err != nil {
			return err
		}
		idx := model.FindStockItem(stock, a.Item)
		if idx < 0 {
			return notFound(result, a)
		}
		return assertEqual(result, a.Type+" "+a.Item, *a.Quantity, stock[idx].CurrentStock)

	case AssertSessionState:
		state, err := actx.Selling.State(actx.Ctx, actx.StoreID)
		if err != nil {
			return err
		}
		return assertEqual(result, a.Type, a.State, string(state))

	case AssertTransactionCount:
		txns, err := report.Transactions(actx.Ctx, actx.Store, actx.StoreID)
		if err != nil {
			return err
		}
		return assertEqual(result, a.Type, a.Count, len(txns))
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

func assertEqual[T any](result *Result, typ string, want, got T) error {
	if fmt.Sprint(want) == fmt.Sprint(got) {
		return nil
	}
	return &AssertionError{
		Type:     typ,
		Expected: fmt.Sprint(want),
		Actual:   fmt.Sprint(got),
		Trace:    result.Trace,
	}
}

func notFound(result *Result, a Assertion) error {
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("item %s", a.Item),
		Actual:   "not found",
		Trace:    result.Trace,
	}
}
