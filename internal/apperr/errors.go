// Package apperr defines the typed errors surfaced by the POS core.
//
// Every error carries a Code so callers (CLI, back-office handlers, the
// reconciler) can branch on category with errors.As instead of string
// matching. Validation and stock errors never mutate state; sync errors are
// reported through notifications and never roll back local writes;
// persistence errors surface immediately.
package apperr

import (
	"errors"
	"fmt"
)

// Code categorizes application errors.
type Code string

const (
	// CodeValidation indicates bad input (negative quantity, unknown item, wrong state).
	CodeValidation Code = "VALIDATION"

	// CodeEmptyCart indicates checkout was attempted with no lines.
	CodeEmptyCart Code = "EMPTY_CART"

	// CodeOutOfStock indicates the item has no stock at all.
	CodeOutOfStock Code = "OUT_OF_STOCK"

	// CodeStockLimitExceeded indicates the requested quantity exceeds stock.
	CodeStockLimitExceeded Code = "STOCK_LIMIT_EXCEEDED"

	// CodeTransactionBlocked indicates checkout is disabled (holiday mode or closed session).
	CodeTransactionBlocked Code = "TRANSACTION_BLOCKED"

	// CodeForbidden indicates the signed-in role may not perform the action.
	CodeForbidden Code = "FORBIDDEN"

	// CodeSyncFailed indicates a remote mutation failed during replication.
	CodeSyncFailed Code = "SYNC_FAILED"

	// CodeConflict indicates the remote rejected an operation as conflicting.
	CodeConflict Code = "CONFLICT"

	// CodePersistence indicates the local durable store failed.
	CodePersistence Code = "PERSISTENCE"
)

// Error is the single error type of the application layer.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Message is a human-readable description.
	Message string

	// Details contains additional context (item ids, quantities).
	Details map[string]string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the cause to errors.Is / errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error with the given code.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates an error with the given code and cause.
func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// Validation creates a VALIDATION error with a formatted message.
func Validation(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// EmptyCart creates an EMPTY_CART error.
func EmptyCart() *Error {
	return &Error{Code: CodeEmptyCart, Message: "cart is empty"}
}

// OutOfStock creates an OUT_OF_STOCK error for a menu item.
func OutOfStock(itemID string) *Error {
	return &Error{
		Code:    CodeOutOfStock,
		Message: fmt.Sprintf("item %q is out of stock", itemID),
		Details: map[string]string{"item_id": itemID},
	}
}

// StockLimitExceeded creates a STOCK_LIMIT_EXCEEDED error.
func StockLimitExceeded(itemID string, requested, available int64) *Error {
	return &Error{
		Code:    CodeStockLimitExceeded,
		Message: fmt.Sprintf("item %q: requested %d, only %d in stock", itemID, requested, available),
		Details: map[string]string{
			"item_id":   itemID,
			"requested": fmt.Sprintf("%d", requested),
			"available": fmt.Sprintf("%d", available),
		},
	}
}

// TransactionBlocked creates a TRANSACTION_BLOCKED error.
func TransactionBlocked(storeID, reason string) *Error {
	return &Error{
		Code:    CodeTransactionBlocked,
		Message: reason,
		Details: map[string]string{"store_id": storeID},
	}
}

// Forbidden creates a FORBIDDEN error.
func Forbidden(role, action string) *Error {
	return &Error{
		Code:    CodeForbidden,
		Message: fmt.Sprintf("role %q may not %s", role, action),
		Details: map[string]string{"role": role, "action": action},
	}
}

// Sync creates a SYNC_FAILED error wrapping a remote failure.
func Sync(message string, err error) *Error {
	return &Error{Code: CodeSyncFailed, Message: message, Err: err}
}

// Conflict creates a CONFLICT error.
func Conflict(message string) *Error {
	return &Error{Code: CodeConflict, Message: message}
}

// Persistence wraps a store failure. Errors that already carry a code pass
// through unchanged so a validation failure raised inside a store
// transaction is not reported as a persistence failure.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	return &Error{Code: CodePersistence, Message: op, Err: err}
}

// CodeOf returns the code of the outermost *Error in err's chain, or "".
func CodeOf(err error) Code {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// IsValidation returns true for VALIDATION and EMPTY_CART errors.
func IsValidation(err error) bool {
	c := CodeOf(err)
	return c == CodeValidation || c == CodeEmptyCart
}

// IsStockConstraint returns true for OUT_OF_STOCK and STOCK_LIMIT_EXCEEDED errors.
func IsStockConstraint(err error) bool {
	c := CodeOf(err)
	return c == CodeOutOfStock || c == CodeStockLimitExceeded
}

// IsTransactionBlocked returns true for TRANSACTION_BLOCKED errors.
func IsTransactionBlocked(err error) bool {
	return Is(err, CodeTransactionBlocked)
}

// IsForbidden returns true for FORBIDDEN errors.
func IsForbidden(err error) bool {
	return Is(err, CodeForbidden)
}

// IsSync returns true for SYNC_FAILED and CONFLICT errors.
// A conflict is a sync failure for retry purposes.
func IsSync(err error) bool {
	c := CodeOf(err)
	return c == CodeSyncFailed || c == CodeConflict
}

// IsConflict returns true if a CONFLICT error is anywhere in the chain.
func IsConflict(err error) bool {
	for err != nil {
		var ae *Error
		if !errors.As(err, &ae) {
			return false
		}
		if ae.Code == CodeConflict {
			return true
		}
		err = ae.Err
	}
	return false
}

// IsPersistence returns true for PERSISTENCE errors.
func IsPersistence(err error) bool {
	return Is(err, CodePersistence)
}
