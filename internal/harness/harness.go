package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/roach88/possync/internal/apperr"
	"github.com/roach88/possync/internal/catalog"
	"github.com/roach88/possync/internal/clock"
	"github.com/roach88/possync/internal/ids"
	"github.com/roach88/possync/internal/model"
	"github.com/roach88/possync/internal/netstatus"
	"github.com/roach88/possync/internal/notify"
	"github.com/roach88/possync/internal/ops"
	"github.com/roach88/possync/internal/pos"
	"github.com/roach88/possync/internal/reconcile"
	"github.com/roach88/possync/internal/selling"
	"github.com/roach88/possync/internal/store"
	"github.com/roach88/possync/internal/testutil"
)

// Harness is one wired till under test.
type Harness struct {
	store      *store.Store
	clock      *clock.Manual
	monitor    *netstatus.Monitor
	remote     *testutil.FakeRemote
	notes      *notify.Recorder
	reconciler *reconcile.Reconciler
	selling    *selling.Manager
	settings   *pos.Settings
	engine     *pos.Engine
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh SQLite file in a temporary directory,
// so the queue and the local data are the production ones. Scenario-level
// failures (expectations, assertions) are reported in the Result; the error
// is reserved for a scenario that could not be run at all.
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()

	dir, err := os.MkdirTemp("", "possync-harness-")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	st, err := store.Open(filepath.Join(dir, "till.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	cat, err := catalog.LoadDir(scenario.Catalog)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	if err := catalog.Seed(ctx, st, cat); err != nil {
		return nil, fmt.Errorf("failed to seed catalog: %w", err)
	}

	h, err := newHarness(st, scenario)
	if err != nil {
		return nil, err
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.runStep(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, step.Action, err)
		}
	}

	for _, c := range h.remote.Calls() {
		result.RemoteCalls = append(result.RemoteCalls, RemoteCall{ID: c.ID, Kind: string(c.Kind)})
	}
	for _, n := range h.notes.All() {
		result.Notifications = append(result.Notifications, n.Message)
	}
	result.Pending, err = st.PendingCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count pending operations: %w", err)
	}

	actx := &AssertionContext{
		Ctx:     ctx,
		Store:   st,
		StoreID: h.engine.StoreID(),
		Selling: h.selling,
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

func newHarness(st *store.Store, scenario *Scenario) (*Harness, error) {
	start, err := scenario.StartTime()
	if err != nil {
		return nil, fmt.Errorf("start time: %w", err)
	}

	h := &Harness{
		store:   st,
		clock:   clock.NewManual(start),
		monitor: netstatus.NewMonitor(netstatus.Online),
		remote:  testutil.NewFakeRemote(),
		notes:   &notify.Recorder{},
	}
	if scenario.Network == string(netstatus.Offline) {
		h.goOffline()
	}

	user := scenario.User.Session()
	repl := reconcile.NewReplicator(h.monitor, h.remote,
		reconcile.WithReplicatorNotifier(h.notes),
		reconcile.WithIDGenerator(ids.NewSequence("op")),
		reconcile.WithReplicatorClock(h.clock.Now))
	h.reconciler = reconcile.NewReconciler(st, h.remote,
		reconcile.WithNotifier(h.notes),
		reconcile.WithClock(h.clock.Now))
	h.selling = selling.NewManager(st, repl, h.clock, user)
	h.settings = pos.NewSettings(st, repl, user)
	h.engine = pos.NewEngine(st, h.selling, repl, user,
		pos.WithClock(h.clock),
		pos.WithIDGenerator(ids.NewSequence("txn")),
		pos.WithHolidayChecker(h.settings))
	return h, nil
}

// runStep executes one step, records it and checks its expect clause.
// Errors from the core are outcomes; only malformed steps return an error.
func (h *Harness) runStep(ctx context.Context, index int, step Step, result *Result) error {
	res, err := h.execute(ctx, step)
	var argErr *argError
	if errors.As(err, &argErr) {
		return err
	}

	outcome := outcomeOf(err)
	pending, perr := h.store.PendingCount(ctx)
	if perr != nil {
		return perr
	}
	result.AddTrace(TraceEvent{
		Action:  step.Action,
		Args:    step.Args,
		Outcome: outcome,
		Result:  res,
		Pending: pending,
		Network: string(h.monitor.Status()),
	})

	log.Debug().
		Int("step", index).
		Str("action", step.Action).
		Str("outcome", outcome).
		Int("pending", pending).
		Msg("step completed")

	want := OutcomeOK
	if step.Expect != nil && step.Expect.Error != "" {
		want = step.Expect.Error
	}
	if outcome != want {
		result.AddError(fmt.Sprintf("steps[%d] %s: expected outcome %s, got %s (%v)", index, step.Action, want, outcome, err))
		return nil
	}
	if step.Expect != nil {
		for k, v := range step.Expect.Result {
			got, ok := res[k]
			if !ok {
				result.AddError(fmt.Sprintf("steps[%d] %s: result has no field %q", index, step.Action, k))
				continue
			}
			if !sameValue(got, v) {
				result.AddError(fmt.Sprintf("steps[%d] %s: result.%s = %v, expected %v", index, step.Action, k, got, v))
			}
		}
	}
	return nil
}

func (h *Harness) execute(ctx context.Context, step Step) (map[string]any, error) {
	a := args(step.Args)
	storeID := h.engine.StoreID()

	switch step.Action {
	case ActionStartSelling:
		sess, err := h.selling.StartSelling(ctx, storeID)
		if err != nil {
			return nil, err
		}
		return map[string]any{"date": sess.Date, "state": string(selling.StateActive)}, nil

	case ActionEndSelling:
		sess, err := h.selling.EndSelling(ctx, storeID)
		if err != nil {
			return nil, err
		}
		return map[string]any{"date": sess.Date, "state": string(selling.StateClosed)}, nil

	case ActionAdjustStock:
		item, err := a.str("item")
		if err != nil {
			return nil, err
		}
		qty, err := a.integer("qty")
		if err != nil {
			return nil, err
		}
		got, err := h.selling.AdjustStock(ctx, storeID, item, qty)
		if err != nil {
			return nil, err
		}
		return map[string]any{"item": got.ID, "quantity": got.CurrentStock}, nil

	case ActionAddToCart, ActionUpdateQuantity:
		item, err := a.str("item")
		if err != nil {
			return nil, err
		}
		qty, err := a.integer("qty")
		if err != nil {
			return nil, err
		}
		if step.Action == ActionAddToCart {
			err = h.engine.AddToCart(ctx, item, qty)
		} else {
			err = h.engine.UpdateQuantity(ctx, item, qty)
		}
		if err != nil {
			return nil, err
		}
		return h.cartResult(), nil

	case ActionSetPayment:
		method, err := a.str("method")
		if err != nil {
			return nil, err
		}
		if err := h.engine.SetPaymentMethod(model.PaymentMethod(method)); err != nil {
			return nil, err
		}
		return h.cartResult(), nil

	case ActionClearCart:
		h.engine.ClearCart()
		return h.cartResult(), nil

	case ActionCheckout:
		txn, err := h.engine.Checkout(ctx)
		if err != nil {
			return nil, err
		}
		pending, err := h.store.PendingCount(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"transaction_id": txn.ID,
			"total":          txn.Total,
			"payment_method": string(txn.PaymentMethod),
			"queued":         pending > 0,
		}, nil

	case ActionSetHoliday:
		on, err := a.flag("on")
		if err != nil {
			return nil, err
		}
		if err := h.settings.SetHoliday(ctx, storeID, on); err != nil {
			return nil, err
		}
		return map[string]any{"holiday": on}, nil

	case ActionGoOffline:
		h.goOffline()
		return nil, nil

	case ActionGoOnline:
		h.remote.Recover()
		h.monitor.Set(netstatus.Online)
		return h.reconcile(ctx)

	case ActionReconcile:
		return h.reconcile(ctx)

	case ActionFailNext:
		n, err := a.integer("count")
		if err != nil {
			return nil, err
		}
		for i := int64(0); i < n; i++ {
			h.remote.FailNext(nil)
		}
		return nil, nil

	case ActionConflictOn:
		kind, err := a.str("kind")
		if err != nil {
			return nil, err
		}
		h.remote.ConflictOn(ops.Kind(kind))
		return nil, nil

	case ActionAdvance:
		text, err := a.str("duration")
		if err != nil {
			return nil, err
		}
		d, err := time.ParseDuration(text)
		if err != nil {
			return nil, &argError{key: "duration", err: err}
		}
		h.clock.Advance(d)
		return map[string]any{"now": h.clock.Now().Format(time.RFC3339)}, nil
	}
	return nil, &argError{key: "action", err: fmt.Errorf("unknown action %q", step.Action)}
}

// goOffline flips the switch and makes the fake back-office unreachable, so
// an explicit reconcile while offline fails the way a real one would.
func (h *Harness) goOffline() {
	h.monitor.Set(netstatus.Offline)
	h.remote.FailAlways(nil)
}

func (h *Harness) reconcile(ctx context.Context) (map[string]any, error) {
	res, err := h.reconciler.Reconcile(ctx)
	out := map[string]any{
		"synced":    res.Succeeded,
		"remaining": res.Remaining,
		"skipped":   res.Skipped,
	}
	return out, err
}

func (h *Harness) cartResult() map[string]any {
	lines := 0
	for _, c := range h.engine.Cart() {
		lines += int(c.Quantity)
	}
	return map[string]any{
		"cart_total": h.engine.ComputeTotal(),
		"cart_items": lines,
	}
}

// outcomeOf maps a step error to its trace outcome.
func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case selling.IsAlreadyActive(err):
		return "ALREADY_ACTIVE"
	}
	if code := apperr.CodeOf(err); code != "" {
		return string(code)
	}
	return "ERROR"
}

// argError reports a malformed step argument.
type argError struct {
	key string
	err error
}

func (e *argError) Error() string {
	return fmt.Sprintf("argument %q: %v", e.key, e.err)
}

func (e *argError) Unwrap() error {
	return e.err
}

// args reads typed values from YAML-decoded step arguments.
type args map[string]any

func (a args) str(key string) (string, error) {
	v, ok := a[key].(string)
	if !ok {
		return "", &argError{key: key, err: fmt.Errorf("want string, got %T", a[key])}
	}
	return v, nil
}

func (a args) integer(key string) (int64, error) {
	switch v := a[key].(type) {
	case nil:
		return 0, nil
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		if v == float64(int64(v)) {
			return int64(v), nil
		}
	}
	return 0, &argError{key: key, err: fmt.Errorf("want integer, got %v", a[key])}
}

func (a args) flag(key string) (bool, error) {
	v, ok := a[key].(bool)
	if !ok {
		return false, &argError{key: key, err: fmt.Errorf("want bool, got %T", a[key])}
	}
	return v, nil
}

// sameValue compares a result value with a YAML-decoded one after a JSON
// round trip, so 42000 as int and as int64 are equal.
func sameValue(got, want any) bool {
	return reflect.DeepEqual(jsonValue(got), jsonValue(want))
}

func jsonValue(v any) any {
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out
}
