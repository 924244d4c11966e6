// Package payment defines the capability surface shared by the two payment
// providers: a redirect-flow one (PayPal) and a webhook-flow one (Stripe).
// The finalizer verifies captures only through this interface.
package payment

import (
	"context"
	"errors"
)

// ErrUnavailable marks timeouts and unexpected provider responses. Callers
// may retry finalize safely behind the idempotency guard.
var ErrUnavailable = errors.New("payment provider unavailable")

// Capture is the provider-side truth about a single payment.
type Capture struct {
	Reference string
	Status    string
	Amount    float64
	Currency  string
	Completed bool
}

type Provider interface {
	Name() string
	VerifyCapture(ctx context.Context, reference string) (Capture, error)
}
