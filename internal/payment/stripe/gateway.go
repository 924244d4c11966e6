package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	stripego "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/tshop/backend/internal/payment"
)

type Gateway struct {
	api           *client.API
	webhookSecret string
	currency      string
}

func New(secretKey, webhookSecret, currency string) *Gateway {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &Gateway{
		api:           api,
		webhookSecret: webhookSecret,
		currency:      strings.ToLower(currency),
	}
}

func (g *Gateway) Name() string { return "stripe" }

// IntentMetadata is the self-describing snapshot embedded in a payment intent
// so the asynchronous webhook can finalize the order without extra context.
type IntentMetadata struct {
	UserID      uint   `json:"user_id,string"`
	Street      string `json:"street"`
	City        string `json:"city"`
	Country     string `json:"country"`
	PostalCode  string `json:"postal_code"`
	PhoneNumber string `json:"phone_number"`
}

// CreateIntent creates a payment intent sized to amount (major currency
// units), embedding the user id and address snapshot as opaque metadata.
func (g *Gateway) CreateIntent(ctx context.Context, amount float64, meta IntentMetadata, cartSnapshot any) (clientSecret, intentID string, err error) {
	cents := int64(math.Round(amount * 100))

	params := &stripego.PaymentIntentParams{
		Params:   stripego.Params{Context: ctx},
		Amount:   stripego.Int64(cents),
		Currency: stripego.String(g.currency),
		AutomaticPaymentMethods: &stripego.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripego.Bool(true),
		},
	}
	params.AddMetadata("user_id", fmt.Sprint(meta.UserID))

	addr, err := json.Marshal(meta)
	if err != nil {
		return "", "", fmt.Errorf("marshal address metadata: %w", err)
	}
	params.AddMetadata("address", string(addr))

	cart, err := json.Marshal(cartSnapshot)
	if err != nil {
		return "", "", fmt.Errorf("marshal cart metadata: %w", err)
	}
	params.AddMetadata("cart", string(cart))

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return "", "", fmt.Errorf("%w: create payment intent: %v", payment.ErrUnavailable, err)
	}
	return pi.ClientSecret, pi.ID, nil
}

// ParseWebhook verifies the event signature against the shared secret before
// trusting the payload. An invalid signature is rejected outright.
func (g *Gateway) ParseWebhook(payload []byte, signatureHeader string) (stripego.Event, error) {
	return webhook.ConstructEvent(payload, signatureHeader, g.webhookSecret)
}

// MetadataFromIntent decodes the address snapshot stored by CreateIntent.
func MetadataFromIntent(pi *stripego.PaymentIntent) (IntentMetadata, error) {
	var meta IntentMetadata
	raw, ok := pi.Metadata["address"]
	if !ok {
		return meta, fmt.Errorf("payment intent %s has no address metadata", pi.ID)
	}
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return meta, fmt.Errorf("decode address metadata: %w", err)
	}
	return meta, nil
}

// VerifyCapture implements payment.Provider by fetching the authoritative
// intent state from Stripe.
func (g *Gateway) VerifyCapture(ctx context.Context, reference string) (payment.Capture, error) {
	pi, err := g.api.PaymentIntents.Get(reference, &stripego.PaymentIntentParams{
		Params: stripego.Params{Context: ctx},
	})
	if err != nil {
		return payment.Capture{}, fmt.Errorf("%w: get payment intent: %v", payment.ErrUnavailable, err)
	}

	return payment.Capture{
		Reference: pi.ID,
		Status:    string(pi.Status),
		Amount:    float64(pi.Amount) / 100,
		Currency:  string(pi.Currency),
		Completed: pi.Status == stripego.PaymentIntentStatusSucceeded,
	}, nil
}
