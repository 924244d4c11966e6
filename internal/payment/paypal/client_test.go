package paypal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tshop/backend/internal/payment"
)

type fakePayPal struct {
	mu          sync.Mutex
	tokenCalls  int32
	captureHits map[string]int

	captureStatus string
	orderStatus   string
}

func newFakePayPal(t *testing.T) (*fakePayPal, *Client) {
	t.Helper()

	f := &fakePayPal{
		captureHits:   map[string]int{},
		captureStatus: "COMPLETED",
		orderStatus:   "COMPLETED",
	}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	client := NewClient(Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		Currency:     "USD",
		BrandName:    "T-Shop",
		BaseURL:      srv.URL,
	})
	return f, client
}

func (f *fakePayPal) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/v1/oauth2/token":
		atomic.AddInt32(&f.tokenCalls, 1)
		user, pass, ok := r.BasicAuth()
		if !ok || user != "client-id" || pass != "client-secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "token-1",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})

	case r.URL.Path == "/v2/checkout/orders" && r.Method == http.MethodPost:
		var payload map[string]any
		json.NewDecoder(r.Body).Decode(&payload)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"id": "ORDER-1", "status": "CREATED"})

	case r.URL.Path == "/v2/checkout/orders/ORDER-1/capture":
		f.mu.Lock()
		f.captureHits["ORDER-1"]++
		hits := f.captureHits["ORDER-1"]
		f.mu.Unlock()
		if hits > 1 {
			w.WriteHeader(http.StatusUnprocessableEntity)
			json.NewEncoder(w).Encode(map[string]any{
				"name":    "UNPROCESSABLE_ENTITY",
				"details": []map[string]string{{"issue": "ORDER_ALREADY_CAPTURED"}},
			})
			return
		}
		w.WriteHeader(http.StatusCreated)
		f.writeOrder(w)

	case r.URL.Path == "/v2/checkout/orders/ORDER-1" && r.Method == http.MethodGet:
		f.writeOrder(w)

	case r.URL.Path == "/v2/payments/captures/CAP-1":
		json.NewEncoder(w).Encode(map[string]any{
			"id":     "CAP-1",
			"status": f.captureStatus,
			"amount": map[string]string{"currency_code": "USD", "value": "25.50"},
		})

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakePayPal) writeOrder(w http.ResponseWriter) {
	json.NewEncoder(w).Encode(map[string]any{
		"id":     "ORDER-1",
		"status": f.orderStatus,
		"purchase_units": []map[string]any{{
			"payments": map[string]any{
				"captures": []map[string]any{{
					"id":     "CAP-1",
					"status": f.captureStatus,
					"amount": map[string]string{"currency_code": "USD", "value": "25.50"},
				}},
			},
		}},
	})
}

func TestClient_AccessToken_Cached(t *testing.T) {
	t.Parallel()

	f, client := newFakePayPal(t)
	ctx := context.Background()

	token, err := client.AccessToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "token-1", token)

	_, err = client.AccessToken(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&f.tokenCalls))
}

func TestClient_AccessToken_RefreshesAfterExpiry(t *testing.T) {
	t.Parallel()

	f, client := newFakePayPal(t)
	ctx := context.Background()

	_, err := client.AccessToken(ctx)
	require.NoError(t, err)

	// jump past the 3600s lifetime minus slack
	base := time.Now()
	client.now = func() time.Time { return base.Add(2 * time.Hour) }

	_, err = client.AccessToken(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&f.tokenCalls))
}

func TestClient_AccessToken_ConcurrentCallersShareOneFetch(t *testing.T) {
	t.Parallel()

	f, client := newFakePayPal(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.AccessToken(ctx)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, atomic.LoadInt32(&f.tokenCalls))
}

func TestClient_CreateOrder(t *testing.T) {
	t.Parallel()

	_, client := newFakePayPal(t)

	order, err := client.CreateOrder(context.Background(), 7, "25.50", ShippingAddress{
		FullName:   "Ada Lovelace",
		Street:     "12 Baker St",
		City:       "London",
		Country:    "GB",
		PostalCode: "NW1 6XE",
	})
	require.NoError(t, err)
	assert.Equal(t, "ORDER-1", order.ID)
	assert.Equal(t, "CREATED", order.Status)
}

func TestClient_CaptureOrder_ReplayReturnsExistingCapture(t *testing.T) {
	t.Parallel()

	_, client := newFakePayPal(t)
	ctx := context.Background()

	first, err := client.CaptureOrder(ctx, "ORDER-1")
	require.NoError(t, err)
	capture, ok := first.FirstCapture()
	require.True(t, ok)
	assert.Equal(t, "CAP-1", capture.ID)

	// the second capture hits the 422 path and falls back to the stored order
	second, err := client.CaptureOrder(ctx, "ORDER-1")
	require.NoError(t, err)
	replay, ok := second.FirstCapture()
	require.True(t, ok)
	assert.Equal(t, capture.ID, replay.ID)
	assert.True(t, second.Completed())
}

func TestClient_VerifyCapture(t *testing.T) {
	t.Parallel()

	_, client := newFakePayPal(t)

	capture, err := client.VerifyCapture(context.Background(), "CAP-1")
	require.NoError(t, err)
	assert.Equal(t, "CAP-1", capture.Reference)
	assert.True(t, capture.Completed)
	assert.InDelta(t, 25.50, capture.Amount, 0.001)
	assert.Equal(t, "USD", capture.Currency)
}

func TestClient_VerifyCapture_NotCompleted(t *testing.T) {
	t.Parallel()

	f, client := newFakePayPal(t)
	f.captureStatus = "PENDING"

	capture, err := client.VerifyCapture(context.Background(), "CAP-1")
	require.NoError(t, err)
	assert.False(t, capture.Completed)
	assert.Equal(t, "PENDING", capture.Status)
}

func TestClient_ServerErrorsWrapUnavailable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/oauth2/token" {
			json.NewEncoder(w).Encode(map[string]any{"access_token": "t", "expires_in": 3600})
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	client := NewClient(Config{ClientID: "id", ClientSecret: "secret", BaseURL: srv.URL})

	_, err := client.GetCapture(context.Background(), "CAP-X")
	require.ErrorIs(t, err, payment.ErrUnavailable)
}
