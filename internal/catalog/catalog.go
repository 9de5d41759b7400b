// Package catalog loads a seed catalog from CUE files.
//
// A catalog directory holds one CUE package with top-level structs keyed by
// id:
//
//	stores: "store-1": {name: "Dago", branch_id: "branch-1"}
//	menu: "store-1": "kopi-susu": {name: "Kopi Susu", cash_price: 20000}
//	stock: "store-1": "cup-kopi": {name: "Cup", initial_stock: 10, menu_item_ids: ["kopi-susu"]}
//
// The files are unified with an embedded schema, so prices and stock are
// non-negative integers and unknown fields are rejected. Cross references
// (stores, categories, linked menu items) are checked after decoding.
package catalog

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"github.com/rs/zerolog/log"

	"github.com/roach88/possync/internal/model"
	"github.com/roach88/possync/internal/store"
)

//go:embed schema.cue
var schemaSrc string

// Catalog is a decoded, cross-checked seed catalog.
type Catalog struct {
	Branches   []model.Branch
	Stores     []model.Store
	Settings   []model.StoreSettings
	Categories []model.Category
	Menu       map[string][]model.MenuItem
	Stock      map[string][]model.StockItem
}

// Error is a catalog error with its CUE position when known.
type Error struct {
	Path    string
	Message string
	Pos     string
}

func (e *Error) Error() string {
	if e.Pos != "" {
		return fmt.Sprintf("%s: %s: %s", e.Pos, e.Path, e.Message)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

type storeDoc struct {
	ID       string `json:"id"`
	BranchID string `json:"branch_id"`
	Name     string `json:"name"`
	Holiday  bool   `json:"holiday"`
}

type document struct {
	Branches   map[string]model.Branch               `json:"branches"`
	Stores     map[string]storeDoc                   `json:"stores"`
	Categories map[string]model.Category             `json:"categories"`
	Menu       map[string]map[string]model.MenuItem  `json:"menu"`
	Stock      map[string]map[string]model.StockItem `json:"stock"`
}

// LoadDir loads the CUE package in dir.
func LoadDir(dir string) (*Catalog, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, &Error{Message: fmt.Sprintf("catalog directory: %v", err)}
	}
	if !info.IsDir() {
		return nil, &Error{Message: fmt.Sprintf("not a directory: %s", dir)}
	}
	files, err := filepath.Glob(filepath.Join(dir, "*.cue"))
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, &Error{Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, &Error{Message: "no CUE instances loaded"}
	}
	if err := instances[0].Err; err != nil {
		return nil, cueError(err)
	}
	v := ctx.BuildInstance(instances[0])
	c, err := decode(ctx, v)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("dir", dir).Int("files", len(files)).Int("stores", len(c.Stores)).Msg("catalog loaded")
	return c, nil
}

// LoadString loads a catalog from CUE source.
func LoadString(src string) (*Catalog, error) {
	ctx := cuecontext.New()
	return decode(ctx, ctx.CompileString(src, cue.Filename("catalog.cue")))
}

func decode(ctx *cue.Context, v cue.Value) (*Catalog, error) {
	if err := v.Err(); err != nil {
		return nil, cueError(err)
	}
	schema := ctx.CompileString(schemaSrc, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, cueError(err)
	}

	unified := schema.Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, cueError(err)
	}

	var doc document
	if err := unified.Decode(&doc); err != nil {
		return nil, cueError(err)
	}
	c := fromDocument(doc)
	if err := c.check(); err != nil {
		return nil, err
	}
	return c, nil
}

func fromDocument(doc document) *Catalog {
	c := &Catalog{
		Menu:  make(map[string][]model.MenuItem, len(doc.Menu)),
		Stock: make(map[string][]model.StockItem, len(doc.Stock)),
	}
	for _, id := range sortedKeys(doc.Branches) {
		c.Branches = append(c.Branches, doc.Branches[id])
	}
	for _, id := range sortedKeys(doc.Stores) {
		s := doc.Stores[id]
		c.Stores = append(c.Stores, model.Store{ID: s.ID, BranchID: s.BranchID, Name: s.Name})
		c.Settings = append(c.Settings, model.StoreSettings{StoreID: id, Holiday: s.Holiday})
	}
	for _, id := range sortedKeys(doc.Categories) {
		c.Categories = append(c.Categories, doc.Categories[id])
	}
	for storeID, items := range doc.Menu {
		for _, id := range sortedKeys(items) {
			c.Menu[storeID] = append(c.Menu[storeID], items[id])
		}
	}
	for storeID, items := range doc.Stock {
		for _, id := range sortedKeys(items) {
			item := items[id]
			item.CurrentStock = 0
			if item.MenuItemIDs == nil {
				item.MenuItemIDs = []string{}
			}
			c.Stock[storeID] = append(c.Stock[storeID], item)
		}
	}
	return c
}

// check verifies references between sections.
func (c *Catalog) check() error {
	branches := make(map[string]bool, len(c.Branches))
	for _, b := range c.Branches {
		branches[b.ID] = true
	}
	stores := make(map[string]bool, len(c.Stores))
	for _, s := range c.Stores {
		stores[s.ID] = true
		if s.BranchID != "" && !branches[s.BranchID] {
			return &Error{Path: "stores." + s.ID, Message: fmt.Sprintf("unknown branch %q", s.BranchID)}
		}
	}
	categories := make(map[string]bool, len(c.Categories))
	for _, cat := range c.Categories {
		categories[cat.ID] = true
	}

	for storeID, menu := range c.Menu {
		if !stores[storeID] {
			return &Error{Path: "menu." + storeID, Message: "unknown store"}
		}
		for _, m := range menu {
			if m.CategoryID != "" && !categories[m.CategoryID] {
				return &Error{Path: fmt.Sprintf("menu.%s.%s", storeID, m.ID), Message: fmt.Sprintf("unknown category %q", m.CategoryID)}
			}
		}
	}
	for storeID, stock := range c.Stock {
		if !stores[storeID] {
			return &Error{Path: "stock." + storeID, Message: "unknown store"}
		}
		menu := c.Menu[storeID]
		for _, s := range stock {
			for _, id := range s.MenuItemIDs {
				if model.FindMenuItem(menu, id) < 0 {
					return &Error{Path: fmt.Sprintf("stock.%s.%s", storeID, s.ID), Message: fmt.Sprintf("linked menu item %q not in the store's menu", id)}
				}
			}
		}
	}
	return nil
}

// Seed writes the catalog to st in one transaction. Existing entries under
// the same keys are replaced; stock starts at zero until a selling session
// opens.
func Seed(ctx context.Context, st *store.Store, c *Catalog) error {
	err := st.Update(ctx, func(tx *store.Tx) error {
		for key, v := range map[string]any{
			model.BranchesKey:   c.Branches,
			model.StoresKey:     c.Stores,
			model.CategoriesKey: c.Categories,
		} {
			if err := tx.Set(ctx, key, v); err != nil {
				return err
			}
		}
		for _, s := range c.Settings {
			if err := tx.Set(ctx, model.StoreSettingsKey(s.StoreID), s); err != nil {
				return err
			}
		}
		for _, storeID := range sortedKeys(c.Menu) {
			if err := tx.Set(ctx, model.MenuItemsKey(storeID), c.Menu[storeID]); err != nil {
				return err
			}
		}
		for _, storeID := range sortedKeys(c.Stock) {
			if err := tx.Set(ctx, model.StockItemsKey(storeID), c.Stock[storeID]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("seed catalog: %w", err)
	}
	log.Info().Int("stores", len(c.Stores)).Int("categories", len(c.Categories)).Msg("catalog seeded")
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// cueError keeps the first CUE error with its position.
func cueError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &Error{Message: err.Error()}
	}
	first := errs[0]
	e := &Error{Message: first.Error()}
	if pos := errors.Positions(first); len(pos) > 0 {
		e.Pos = pos[0].String()
	}
	return e
}
