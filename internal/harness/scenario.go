package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/possync/internal/session"
)

// Scenario defines one till's day as a sequence of actions.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Catalog is the CUE catalog directory seeded into the store.
	// Relative paths are resolved against the scenario file.
	Catalog string `yaml:"catalog"`

	// User is the signed-in user driving every step.
	User User `yaml:"user"`

	// Start is the initial clock time (RFC 3339). Its offset fixes the
	// location used for selling dates.
	Start string `yaml:"start"`

	// Network is the initial status: online (default) or offline.
	Network string `yaml:"network,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state.
	Assertions []Assertion `yaml:"assertions"`
}

// User names the signed-in user of a scenario.
type User struct {
	UserID   string `yaml:"user_id"`
	Role     string `yaml:"role"`
	StoreID  string `yaml:"store_id,omitempty"`
	BranchID string `yaml:"branch_id,omitempty"`
}

// Session converts u to a session context.
func (u User) Session() session.Context {
	return session.Context{
		UserID:   u.UserID,
		Role:     session.Role(u.Role),
		StoreID:  u.StoreID,
		BranchID: u.BranchID,
	}
}

// Step is one action and its optional expectation.
type Step struct {
	Action string         `yaml:"action"`
	Args   map[string]any `yaml:"args,omitempty"`
	Expect *ExpectClause  `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of a step.
type ExpectClause struct {
	// Error is the expected error code. Empty means the step must succeed.
	Error string `yaml:"error,omitempty"`

	// Result is a subset match against the step's result fields.
	Result map[string]any `yaml:"result,omitempty"`
}

// Assertion validates state after the last step.
type Assertion struct {
	Type string `yaml:"type"`

	// Count is used by pending_count and transaction_count.
	Count int `yaml:"count,omitempty"`

	// Kinds is the expected sequence of accepted remote mutations (remote_calls).
	Kinds []string `yaml:"kinds,omitempty"`

	// Item is the menu or stock item id (menu_stock, stock_item).
	Item string `yaml:"item,omitempty"`

	// Quantity is the expected level (menu_stock, stock_item).
	Quantity *int64 `yaml:"quantity,omitempty"`

	// State is the expected selling state (session_state).
	State string `yaml:"state,omitempty"`

	// Messages are the expected notifications, in order (notification).
	Messages []string `yaml:"messages,omitempty"`
}

// Assertion type constants.
const (
	AssertPendingCount     = "pending_count"
	AssertRemoteCalls      = "remote_calls"
	AssertMenuStock        = "menu_stock"
	AssertStockItem        = "stock_item"
	AssertSessionState     = "session_state"
	AssertNotification     = "notification"
	AssertTransactionCount = "transaction_count"
)

// Action names.
const (
	ActionStartSelling   = "start_selling"
	ActionEndSelling     = "end_selling"
	ActionAdjustStock    = "adjust_stock"
	ActionAddToCart      = "add_to_cart"
	ActionUpdateQuantity = "update_quantity"
	ActionSetPayment     = "set_payment"
	ActionClearCart      = "clear_cart"
	ActionCheckout       = "checkout"
	ActionSetHoliday     = "set_holiday"
	ActionGoOffline      = "go_offline"
	ActionGoOnline       = "go_online"
	ActionReconcile      = "reconcile"
	ActionFailNext       = "fail_next"
	ActionConflictOn     = "conflict_on"
	ActionAdvance        = "advance"
)

var knownActions = map[string]bool{
	ActionStartSelling:   true,
	ActionEndSelling:     true,
	ActionAdjustStock:    true,
	ActionAddToCart:      true,
	ActionUpdateQuantity: true,
	ActionSetPayment:     true,
	ActionClearCart:      true,
	ActionCheckout:       true,
	ActionSetHoliday:     true,
	ActionGoOffline:      true,
	ActionGoOnline:       true,
	ActionReconcile:      true,
	ActionFailNext:       true,
	ActionConflictOn:     true,
	ActionAdvance:        true,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	s, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	if s.Catalog != "" && !filepath.IsAbs(s.Catalog) {
		s.Catalog = filepath.Join(filepath.Dir(path), s.Catalog)
	}
	if _, err := os.Stat(s.Catalog); err != nil {
		return nil, fmt.Errorf("invalid scenario: catalog: %w", err)
	}
	return s, nil
}

// ParseScenario parses scenario YAML without touching the filesystem.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict decoding catches typos like "assertion:" vs "assertions:".
	var s Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

// StartTime parses Start.
func (s *Scenario) StartTime() (time.Time, error) {
	return time.Parse(time.RFC3339, s.Start)
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Catalog == "" {
		return fmt.Errorf("catalog is required")
	}
	if err := s.User.Session().Validate(); err != nil {
		return fmt.Errorf("user: %w", err)
	}
	if _, err := s.StartTime(); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	switch s.Network {
	case "", "online", "offline":
	default:
		return fmt.Errorf("network must be online or offline, got %q", s.Network)
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if !knownActions[step.Action] {
			return fmt.Errorf("steps[%d]: unknown action %q", i, step.Action)
		}
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertPendingCount, AssertTransactionCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertRemoteCalls:
		// An empty list asserts that nothing reached the back-office.
	case AssertMenuStock, AssertStockItem:
		if a.Item == "" || a.Quantity == nil {
			return fmt.Errorf("assertions[%d]: item and quantity are required for %s", index, a.Type)
		}
	case AssertSessionState:
		if a.State == "" {
			return fmt.Errorf("assertions[%d]: state is required for session_state", index)
		}
	case AssertNotification:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
