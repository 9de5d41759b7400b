// Package testutil provides fakes shared by package tests and the scenario
// harness.
package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/roach88/possync/internal/apperr"
	"github.com/roach88/possync/internal/ops"
)

// ErrUnreachable is the default failure injected by FakeRemote.
var ErrUnreachable = errors.New("remote unreachable")

// Call is one mutation the fake back-office applied.
type Call struct {
	Kind    ops.Kind
	ID      string
	Payload ops.Payload
}

// FakeRemote is an in-memory back-office.
//
// It applies each operation id at most once, acknowledging resubmissions
// without recording them again. Failures can be injected for the next call
// or for every call until Recover.
//
// Thread-safety: safe for concurrent use via internal mutex.
type FakeRemote struct {
	mu       sync.Mutex
	calls    []Call
	attempts int
	seen     map[string]bool
	next     []error
	always   error
	conflict map[ops.Kind]bool
}

// NewFakeRemote creates an empty fake.
func NewFakeRemote() *FakeRemote {
	return &FakeRemote{
		seen:     make(map[string]bool),
		conflict: make(map[ops.Kind]bool),
	}
}

// FailNext makes the next call fail with err (ErrUnreachable if nil).
// Repeated calls queue further failures.
func (f *FakeRemote) FailNext(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		err = ErrUnreachable
	}
	f.next = append(f.next, err)
}

// FailAlways makes every call fail with err (ErrUnreachable if nil).
func (f *FakeRemote) FailAlways(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		err = ErrUnreachable
	}
	f.always = err
}

// ConflictOn makes every call of kind fail with a conflict.
func (f *FakeRemote) ConflictOn(kind ops.Kind) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conflict[kind] = true
}

// Recover clears every injected failure.
func (f *FakeRemote) Recover() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next = nil
	f.always = nil
	f.conflict = make(map[ops.Kind]bool)
}

// Calls returns the applied mutations in order.
func (f *FakeRemote) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// Kinds returns the kinds of the applied mutations in order.
func (f *FakeRemote) Kinds() []ops.Kind {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]ops.Kind, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.Kind
	}
	return out
}

// Attempts returns how many calls were made, failed ones included.
func (f *FakeRemote) Attempts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts
}

// Ping fails while FailAlways is in effect.
func (f *FakeRemote) Ping(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.always
}

func (f *FakeRemote) record(ctx context.Context, meta ops.Meta, p ops.Payload) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.attempts++
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.always != nil {
		return f.always
	}
	if len(f.next) > 0 {
		err := f.next[0]
		f.next = f.next[1:]
		return err
	}
	if f.conflict[p.Kind()] {
		return apperr.Conflict(string(p.Kind()) + " conflicts with back-office state")
	}
	if f.seen[meta.ID] {
		return nil
	}
	f.seen[meta.ID] = true
	f.calls = append(f.calls, Call{Kind: p.Kind(), ID: meta.ID, Payload: p})
	return nil
}

func (f *FakeRemote) StartSelling(ctx context.Context, meta ops.Meta, p ops.StartSelling) error {
	return f.record(ctx, meta, p)
}

func (f *FakeRemote) EndSelling(ctx context.Context, meta ops.Meta, p ops.EndSelling) error {
	return f.record(ctx, meta, p)
}

func (f *FakeRemote) UpdateStockItem(ctx context.Context, meta ops.Meta, p ops.UpdateStockItem) error {
	return f.record(ctx, meta, p)
}

func (f *FakeRemote) CreateTransaction(ctx context.Context, meta ops.Meta, p ops.CreateTransaction) error {
	return f.record(ctx, meta, p)
}

func (f *FakeRemote) UpdateStock(ctx context.Context, meta ops.Meta, p ops.UpdateStock) error {
	return f.record(ctx, meta, p)
}

func (f *FakeRemote) UpdateMenuItem(ctx context.Context, meta ops.Meta, p ops.UpdateMenuItem) error {
	return f.record(ctx, meta, p)
}

func (f *FakeRemote) UpdateCategory(ctx context.Context, meta ops.Meta, p ops.UpdateCategory) error {
	return f.record(ctx, meta, p)
}

func (f *FakeRemote) UpdateBranch(ctx context.Context, meta ops.Meta, p ops.UpdateBranch) error {
	return f.record(ctx, meta, p)
}

func (f *FakeRemote) UpdateStore(ctx context.Context, meta ops.Meta, p ops.UpdateStore) error {
	return f.record(ctx, meta, p)
}

func (f *FakeRemote) UpdateUser(ctx context.Context, meta ops.Meta, p ops.UpdateUser) error {
	return f.record(ctx, meta, p)
}
