package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// Error kinds surfaced by the inventory core. Callers match them with errors.Is.
var (
	ErrEmptyCart           = errors.New("no line items")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrProductNotFound     = errors.New("product not found")
	ErrDuplicateIdentifier = errors.New("duplicate identifier")
	ErrNotFound            = errors.New("not found")
	ErrStorageFailure      = errors.New("storage failure")
	ErrInvalidQuantity     = errors.New("invalid quantity")
	ErrInvalidInput        = errors.New("invalid input")
)

// InsufficientStockError reports the (product, branch) row that rejected a delta.
type InsufficientStockError struct {
	ProductID uuid.UUID
	BranchID  uuid.UUID
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s at branch %s (available: %d, requested: %d)",
		e.ProductID, e.BranchID, e.Available, e.Requested)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// Storage wraps a persistence error so it reports as ErrStorageFailure while
// keeping the driver error in the chain. Errors that already carry a kind pass through.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	if Kind(err) != nil {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStorageFailure, err)
}

var kinds = []error{
	ErrEmptyCart,
	ErrInsufficientStock,
	ErrProductNotFound,
	ErrDuplicateIdentifier,
	ErrNotFound,
	ErrStorageFailure,
	ErrInvalidQuantity,
	ErrInvalidInput,
}

// Kind returns the sentinel kind carried by err, or nil when err has none.
func Kind(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// HTTPStatus maps an error kind onto the status code used by the HTTP layer.
func HTTPStatus(err error) int {
	switch Kind(err) {
	case ErrEmptyCart, ErrInvalidQuantity, ErrInvalidInput:
		return http.StatusBadRequest
	case ErrProductNotFound, ErrNotFound:
		return http.StatusNotFound
	case ErrInsufficientStock, ErrDuplicateIdentifier:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Code is the stable machine-readable name of err's kind.
func Code(err error) string {
	switch Kind(err) {
	case ErrEmptyCart:
		return "EMPTY_CART"
	case ErrInsufficientStock:
		return "INSUFFICIENT_STOCK"
	case ErrProductNotFound:
		return "PRODUCT_NOT_FOUND"
	case ErrDuplicateIdentifier:
		return "DUPLICATE_IDENTIFIER"
	case ErrNotFound:
		return "NOT_FOUND"
	case ErrInvalidQuantity:
		return "INVALID_QUANTITY"
	case ErrInvalidInput:
		return "INVALID_INPUT"
	default:
		return "STORAGE_FAILURE"
	}
}
