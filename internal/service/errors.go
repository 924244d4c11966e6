package service

import "errors"

// Sentinel errors shared across the service layer. Handlers map these to
// HTTP statuses with errors.Is.
var (
	ErrValidation          = errors.New("validation")              // 400
	ErrNotFound            = errors.New("not found")               // 404
	ErrConflict            = errors.New("conflict")                // 409
	ErrEmptyCart           = errors.New("cart is empty")           // 400
	ErrInvalidStatus       = errors.New("invalid order status")    // 400
	ErrPaymentNotCompleted = errors.New("payment not completed")   // 400
	ErrAmountMismatch      = errors.New("payment amount mismatch") // 400
)
