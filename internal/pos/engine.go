// Package pos implements the till's transaction engine: cart, pricing,
// stock validation and atomic checkout.
//
// The engine is used by one till at a time. Its cart is guarded by a mutex
// so a UI goroutine and a background one cannot interleave a checkout with
// a cart edit.
package pos

import (
	"context"
	"math"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/roach88/possync/internal/apperr"
	"github.com/roach88/possync/internal/clock"
	"github.com/roach88/possync/internal/ids"
	"github.com/roach88/possync/internal/model"
	"github.com/roach88/possync/internal/ops"
	"github.com/roach88/possync/internal/reconcile"
	"github.com/roach88/possync/internal/selling"
	"github.com/roach88/possync/internal/session"
	"github.com/roach88/possync/internal/store"
)

// Engine is the transaction engine of one signed-in user at one store.
type Engine struct {
	store    *store.Store
	sessions *selling.Manager
	repl     *reconcile.Replicator
	holiday  HolidayChecker
	ids      ids.Generator
	clock    clock.Clock
	user     session.Context
	storeID  string

	mu     sync.Mutex
	cart   []model.CartItem
	method model.PaymentMethod
}

// Option configures an Engine.
type Option func(*Engine)

// WithHolidayChecker overrides the holiday source (default: local settings).
func WithHolidayChecker(h HolidayChecker) Option {
	return func(e *Engine) { e.holiday = h }
}

// WithIDGenerator sets the transaction id source (default: UUIDv7).
func WithIDGenerator(g ids.Generator) Option {
	return func(e *Engine) { e.ids = g }
}

// WithClock sets the clock (default: system clock).
func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithStore makes the engine sell at storeID instead of the user's store.
// Used by owners, who are not assigned to a store.
func WithStore(storeID string) Option {
	return func(e *Engine) { e.storeID = storeID }
}

// NewEngine creates an engine. The payment method starts as cash.
func NewEngine(st *store.Store, sessions *selling.Manager, repl *reconcile.Replicator, user session.Context, opts ...Option) *Engine {
	e := &Engine{
		store:    st,
		sessions: sessions,
		repl:     repl,
		ids:      ids.UUIDv7{},
		clock:    clock.System{},
		user:     user,
		storeID:  user.StoreID,
		method:   model.PaymentCash,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.holiday == nil {
		e.holiday = NewSettings(st, repl, user)
	}
	return e
}

// StoreID returns the store this engine sells at.
func (e *Engine) StoreID() string {
	return e.storeID
}

// AddToCart adds qty of a menu item (1 if qty is 0) or increments its line.
//
// Returns OUT_OF_STOCK if the item has no stock (always the case while the
// selling session is closed) and STOCK_LIMIT_EXCEEDED if the resulting line
// would exceed stock. The cart is unchanged on error.
func (e *Engine) AddToCart(ctx context.Context, itemID string, qty int64) error {
	if qty == 0 {
		qty = 1
	}
	if qty < 0 {
		return apperr.Validation("quantity %d is negative", qty)
	}

	item, err := e.lookup(ctx, itemID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if item.Stock <= 0 {
		return apperr.OutOfStock(itemID)
	}
	idx := e.line(itemID)
	current := int64(0)
	if idx >= 0 {
		current = e.cart[idx].Quantity
	}
	if qty > item.Stock-current {
		requested := int64(math.MaxInt64)
		if qty <= math.MaxInt64-current {
			requested = current + qty
		}
		return apperr.StockLimitExceeded(itemID, requested, item.Stock)
	}

	if idx >= 0 {
		e.cart[idx].Item = item
		e.cart[idx].Quantity += qty
	} else {
		e.cart = append(e.cart, model.CartItem{Item: item, Quantity: qty})
	}
	return nil
}

// UpdateQuantity sets a line's quantity. qty <= 0 removes the line.
// Returns VALIDATION for an item not in the cart and STOCK_LIMIT_EXCEEDED
// (cart unchanged) if qty exceeds stock.
func (e *Engine) UpdateQuantity(ctx context.Context, itemID string, qty int64) error {
	if qty <= 0 {
		e.mu.Lock()
		defer e.mu.Unlock()
		idx := e.line(itemID)
		if idx < 0 {
			return apperr.Validation("item %q is not in the cart", itemID)
		}
		e.cart = append(e.cart[:idx], e.cart[idx+1:]...)
		return nil
	}

	item, err := e.lookup(ctx, itemID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	idx := e.line(itemID)
	if idx < 0 {
		return apperr.Validation("item %q is not in the cart", itemID)
	}
	if qty > item.Stock {
		return apperr.StockLimitExceeded(itemID, qty, item.Stock)
	}
	e.cart[idx].Item = item
	e.cart[idx].Quantity = qty
	return nil
}

// SetPaymentMethod selects which price column applies.
func (e *Engine) SetPaymentMethod(m model.PaymentMethod) error {
	if !m.Valid() {
		return apperr.Validation("unknown payment method %q", m)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.method = m
	return nil
}

// PaymentMethod returns the selected payment method.
func (e *Engine) PaymentMethod() model.PaymentMethod {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.method
}

// ComputeTotal returns the cart total under the selected payment method.
func (e *Engine) ComputeTotal() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return total(e.cart, e.method)
}

// Cart returns a copy of the cart lines.
func (e *Engine) Cart() []model.CartItem {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]model.CartItem, len(e.cart))
	copy(out, e.cart)
	return out
}

// ClearCart empties the cart.
func (e *Engine) ClearCart() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cart = nil
}

func (e *Engine) lookup(ctx context.Context, itemID string) (model.MenuItem, error) {
	menu, err := e.sessions.MenuItems(ctx, e.storeID)
	if err != nil {
		return model.MenuItem{}, err
	}
	idx := model.FindMenuItem(menu, itemID)
	if idx < 0 {
		return model.MenuItem{}, apperr.Validation("unknown menu item %q", itemID)
	}
	return menu[idx], nil
}

// line returns the cart index of itemID or -1. Caller holds e.mu.
func (e *Engine) line(itemID string) int {
	for i := range e.cart {
		if e.cart[i].Item.ID == itemID {
			return i
		}
	}
	return -1
}

func total(cart []model.CartItem, method model.PaymentMethod) int64 {
	var sum int64
	for _, c := range cart {
		sum += c.Quantity * c.Item.PriceFor(method)
	}
	return sum
}

// logCheckout records a completed sale.
func logCheckout(txn model.Transaction, staged reconcile.Staged) {
	log.Info().
		Str("store_id", txn.StoreID).
		Str("txn_id", txn.ID).
		Str("payment", string(txn.PaymentMethod)).
		Int64("total", txn.Total).
		Bool("queued", staged.Queued()).
		Msg("checkout complete")
}

// checkoutOps builds the operations of a sale in replay order.
func checkoutOps(txn model.Transaction, menuLevels, stockLevels []ops.StockLevel) []ops.Payload {
	return []ops.Payload{
		ops.CreateTransaction{Transaction: txn},
		ops.UpdateStock{
			StoreID:       txn.StoreID,
			TransactionID: txn.ID,
			MenuItems:     menuLevels,
			StockItems:    stockLevels,
		},
	}
}
