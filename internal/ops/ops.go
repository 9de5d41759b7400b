// Package ops defines the closed set of mutation kinds the till replicates
// to the back-office and the queue entry that carries them.
//
// Each kind has exactly one payload type. Payload is sealed: only types in
// this package implement it, so a type switch over Payload is exhaustive
// and a new kind cannot be queued without a matching dispatch branch.
package ops

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/roach88/possync/internal/model"
	"github.com/roach88/possync/internal/session"
)

// Kind names an operation kind on the wire and in the queue table.
type Kind string

const (
	KindStartSelling      Kind = "start_selling"
	KindEndSelling        Kind = "end_selling"
	KindUpdateStockItem   Kind = "update_stock_item"
	KindCreateTransaction Kind = "create_transaction"
	KindUpdateStock       Kind = "update_stock"
	KindUpdateMenuItem    Kind = "update_menu_item"
	KindUpdateCategory    Kind = "update_category"
	KindUpdateBranch      Kind = "update_branch"
	KindUpdateStore       Kind = "update_store"
	KindUpdateUser        Kind = "update_user"
)

// Kinds lists every kind in declaration order.
var Kinds = []Kind{
	KindStartSelling,
	KindEndSelling,
	KindUpdateStockItem,
	KindCreateTransaction,
	KindUpdateStock,
	KindUpdateMenuItem,
	KindUpdateCategory,
	KindUpdateBranch,
	KindUpdateStore,
	KindUpdateUser,
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Payload is the typed body of an operation.
type Payload interface {
	Kind() Kind
	sealed()
}

// StockSnapshot is one stock item's quantity at session start.
type StockSnapshot struct {
	StockItemID string `json:"stock_item_id" validate:"required"`
	Quantity    int64  `json:"quantity" validate:"gte=0"`
}

// StartSelling opens a store's selling session with a full stock snapshot.
type StartSelling struct {
	StoreID   string          `json:"store_id" validate:"required"`
	Date      string          `json:"date" validate:"required,datetime=2006-01-02"`
	StartedBy string          `json:"started_by" validate:"required"`
	StartedAt time.Time       `json:"started_at"`
	Items     []StockSnapshot `json:"items" validate:"dive"`
}

// EndSelling closes a store's selling session.
type EndSelling struct {
	StoreID string    `json:"store_id" validate:"required"`
	Date    string    `json:"date" validate:"required,datetime=2006-01-02"`
	EndedBy string    `json:"ended_by" validate:"required"`
	EndedAt time.Time `json:"ended_at"`
}

// UpdateStockItem overwrites one stock item's current quantity.
type UpdateStockItem struct {
	StoreID     string `json:"store_id" validate:"required"`
	StockItemID string `json:"stock_item_id" validate:"required"`
	Quantity    int64  `json:"quantity" validate:"gte=0"`
	AdjustedBy  string `json:"adjusted_by" validate:"required"`
}

// CreateTransaction records a completed sale.
type CreateTransaction struct {
	Transaction model.Transaction `json:"transaction"`
}

// StockLevel is a post-checkout stock value. Stock is absolute so replay on
// the back-office is idempotent; Delta is informational.
type StockLevel struct {
	ID    string `json:"id" validate:"required"`
	Delta int64  `json:"delta"`
	Stock int64  `json:"stock" validate:"gte=0"`
}

// UpdateStock carries the stock effect of one transaction.
type UpdateStock struct {
	StoreID       string       `json:"store_id" validate:"required"`
	TransactionID string       `json:"transaction_id" validate:"required"`
	MenuItems     []StockLevel `json:"menu_items" validate:"dive"`
	StockItems    []StockLevel `json:"stock_items" validate:"dive"`
}

// UpdateMenuItem upserts a menu item of a store.
type UpdateMenuItem struct {
	StoreID string         `json:"store_id" validate:"required"`
	Item    model.MenuItem `json:"item"`
}

// UpdateCategory upserts a category.
type UpdateCategory struct {
	Category model.Category `json:"category"`
}

// UpdateBranch upserts a branch.
type UpdateBranch struct {
	Branch model.Branch `json:"branch"`
}

// UpdateStore upserts a store and its settings.
type UpdateStore struct {
	Store    model.Store         `json:"store"`
	Settings model.StoreSettings `json:"settings"`
}

// UpdateUser upserts a user.
type UpdateUser struct {
	User model.User `json:"user"`
}

func (StartSelling) Kind() Kind      { return KindStartSelling }
func (EndSelling) Kind() Kind        { return KindEndSelling }
func (UpdateStockItem) Kind() Kind   { return KindUpdateStockItem }
func (CreateTransaction) Kind() Kind { return KindCreateTransaction }
func (UpdateStock) Kind() Kind       { return KindUpdateStock }
func (UpdateMenuItem) Kind() Kind    { return KindUpdateMenuItem }
func (UpdateCategory) Kind() Kind    { return KindUpdateCategory }
func (UpdateBranch) Kind() Kind      { return KindUpdateBranch }
func (UpdateStore) Kind() Kind       { return KindUpdateStore }
func (UpdateUser) Kind() Kind        { return KindUpdateUser }

func (StartSelling) sealed()      {}
func (EndSelling) sealed()        {}
func (UpdateStockItem) sealed()   {}
func (CreateTransaction) sealed() {}
func (UpdateStock) sealed()       {}
func (UpdateMenuItem) sealed()    {}
func (UpdateCategory) sealed()    {}
func (UpdateBranch) sealed()      {}
func (UpdateStore) sealed()       {}
func (UpdateUser) sealed()        {}

// StoreOf returns the store a payload is scoped to, or "" for brand-wide
// entities (categories, branches, users).
func StoreOf(p Payload) string {
	switch v := p.(type) {
	case StartSelling:
		return v.StoreID
	case EndSelling:
		return v.StoreID
	case UpdateStockItem:
		return v.StoreID
	case CreateTransaction:
		return v.Transaction.StoreID
	case UpdateStock:
		return v.StoreID
	case UpdateMenuItem:
		return v.StoreID
	case UpdateStore:
		return v.Store.ID
	case UpdateCategory, UpdateBranch, UpdateUser:
		return ""
	default:
		return ""
	}
}

// ActionOf returns the permission a payload needs. Records without a store
// are brand-wide.
func ActionOf(p Payload) session.Action {
	switch p.(type) {
	case CreateTransaction, UpdateStock:
		return session.ActionCheckout
	case StartSelling, EndSelling, UpdateStockItem:
		return session.ActionManageSelling
	case UpdateMenuItem, UpdateStore:
		return session.ActionManageCatalog
	default:
		return session.ActionManageBrand
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks a payload's required fields.
func Validate(p Payload) error {
	if p == nil {
		return fmt.Errorf("nil payload")
	}
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("invalid %s payload: %w", p.Kind(), err)
	}
	switch v := p.(type) {
	case CreateTransaction:
		if v.Transaction.ID == "" || v.Transaction.StoreID == "" {
			return fmt.Errorf("invalid %s payload: transaction id and store id are required", p.Kind())
		}
		if len(v.Transaction.Items) == 0 {
			return fmt.Errorf("invalid %s payload: transaction has no items", p.Kind())
		}
	case UpdateMenuItem:
		if v.Item.ID == "" {
			return fmt.Errorf("invalid %s payload: item id is required", p.Kind())
		}
	case UpdateCategory:
		if v.Category.ID == "" {
			return fmt.Errorf("invalid %s payload: category id is required", p.Kind())
		}
	case UpdateBranch:
		if v.Branch.ID == "" {
			return fmt.Errorf("invalid %s payload: branch id is required", p.Kind())
		}
	case UpdateStore:
		if v.Store.ID == "" {
			return fmt.Errorf("invalid %s payload: store id is required", p.Kind())
		}
	case UpdateUser:
		if v.User.ID == "" {
			return fmt.Errorf("invalid %s payload: user id is required", p.Kind())
		}
	}
	return nil
}
