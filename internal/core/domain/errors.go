// internal/core/domain/errors.go
package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds surfaced by the sale engine. Match with errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrLockTimeout       = errors.New("lock timeout")
	ErrValidation        = errors.New("validation error")
	ErrPersistence       = errors.New("persistence failure")
)

// Conflict reasons reported per batch item
const (
	ReasonInsufficientStock = "insufficient_stock"
	ReasonNotFound          = "not_found"
	ReasonValidation        = "validation_error"
	ReasonLockTimeout       = "lock_timeout"
	ReasonPersistence       = "persistence_failure"
	ReasonUnknown           = "unknown"
	// ReasonNotProcessed marks entries an aborted batch never attempted.
	ReasonNotProcessed = "not_processed"
)

// SaleError describes why a sale (or one of its lines) was rejected.
type SaleError struct {
	Kind      error
	Line      int // zero-based line index, -1 when not line specific
	ProductID int64
	SKU       string
	Message   string
	Err       error
}

func (e *SaleError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.SKU != "" {
		fmt.Fprintf(&b, " (sku %s)", e.SKU)
	} else if e.ProductID != 0 {
		fmt.Fprintf(&b, " (product %d)", e.ProductID)
	}
	if e.Line >= 0 {
		fmt.Fprintf(&b, " [line %d]", e.Line+1)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the underlying cause.
func (e *SaleError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewValidationError returns a validation failure for the given line.
func NewValidationError(line int, format string, args ...any) *SaleError {
	return &SaleError{
		Kind:    ErrValidation,
		Line:    line,
		Message: fmt.Sprintf(format, args...),
	}
}

// NewInsufficientStockError reports a line whose quantity exceeds stock.
func NewInsufficientStockError(line int, p *Product, requested int) *SaleError {
	return &SaleError{
		Kind:      ErrInsufficientStock,
		Line:      line,
		ProductID: p.ID,
		SKU:       p.SKU,
		Message:   fmt.Sprintf("requested %d, available %d", requested, p.StockQuantity),
	}
}

// NewNotFoundError reports a product reference that did not resolve.
func NewNotFoundError(line int, ref ProductRef) *SaleError {
	e := &SaleError{
		Kind:    ErrNotFound,
		Line:    line,
		SKU:     ref.SKU,
		Message: "product does not exist",
	}
	if ref.ID != nil {
		e.ProductID = *ref.ID
	}
	return e
}

// IsConflict reports whether err is a business rule failure that a batch
// records per item instead of aborting.
func IsConflict(err error) bool {
	return errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrLockTimeout)
}

func isConflictReason(reason string) bool {
	switch reason {
	case ReasonInsufficientStock, ReasonNotFound, ReasonValidation, ReasonLockTimeout:
		return true
	}
	return false
}

// Reason maps an error to its conflict reason code.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInsufficientStock):
		return ReasonInsufficientStock
	case errors.Is(err, ErrNotFound):
		return ReasonNotFound
	case errors.Is(err, ErrValidation):
		return ReasonValidation
	case errors.Is(err, ErrLockTimeout):
		return ReasonLockTimeout
	case errors.Is(err, ErrPersistence):
		return ReasonPersistence
	default:
		return ReasonUnknown
	}
}
