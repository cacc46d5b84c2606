package pos

import (
	"errors"
	"fmt"
)

// Kind is the closed set of domain error categories. Callers branch on the
// kind, never on error text.
type Kind string

const (
	KindValidation        Kind = "VALIDATION"
	KindNotFound          Kind = "NOT_FOUND"
	KindConflict          Kind = "CONFLICT"
	KindInsufficientStock Kind = "INSUFFICIENT_STOCK"
	KindExternal          Kind = "EXTERNAL_SERVICE"
	KindInvalidSignature  Kind = "INVALID_SIGNATURE"
	KindInternal          Kind = "INTERNAL"
)

type Error struct {
	Kind      Kind
	Msg       string
	ProductID string // set for NOT_FOUND / INSUFFICIENT_STOCK on a product
	Available int    // set for INSUFFICIENT_STOCK
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match on kind: errors.Is(err, &Error{Kind: KindConflict}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func Errf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func WrapErr(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func NotFound(productID string) *Error {
	return &Error{Kind: KindNotFound, Msg: "product not found: " + productID, ProductID: productID}
}

func InsufficientStock(productID string, available int) *Error {
	return &Error{
		Kind:      KindInsufficientStock,
		Msg:       fmt.Sprintf("insufficient stock for product %s (available %d)", productID, available),
		ProductID: productID,
		Available: available,
	}
}

// KindOf classifies any error; non-domain errors come back as KindInternal.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}
