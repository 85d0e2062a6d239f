package mollie

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sort"
	"sync/atomic"
	"testing"

	"github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/payment"
	"github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/token"
	"github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/ucp"
)

func testSigner(t *testing.T) *token.Signer {
	t.Helper()
	signer, err := token.NewSigner("test-secret")
	if err != nil {
		t.Fatalf("NewSigner() error: %v", err)
	}
	return signer
}

func testSession() payment.SessionView {
	return payment.SessionView{
		ID:          "sess-1",
		ShopID:      "shop-1",
		Currency:    "EUR",
		AmountMinor: 12485,
		Description: "Order sess-1",
	}
}

type countingClient struct {
	calls int64
	inner apiClient
}

func (c *countingClient) CreatePayment(ctx context.Context, req createPaymentRequest) (*Payment, error) {
	atomic.AddInt64(&c.calls, 1)
	return c.inner.CreatePayment(ctx, req)
}

func (c *countingClient) GetPayment(ctx context.Context, id string) (*Payment, error) {
	atomic.AddInt64(&c.calls, 1)
	return c.inner.GetPayment(ctx, id)
}

func TestProcessPaymentValidationMakesNoNetworkCall(t *testing.T) {
	t.Parallel()

	counting := &countingClient{inner: newMockAPIClient()}
	adapter := newWithClient(Config{Mock: true, PublicBaseURL: "https://ucp.example"}, testSigner(t), counting)

	result := adapter.ProcessPayment(context.Background(), testSession(), ucp.PaymentData{})

	if result.Success || result.Status != ucp.ResultFailed {
		t.Fatalf("expected failed result, got %+v", result)
	}
	if result.ErrorCode != ucp.ErrCodeValidation {
		t.Fatalf("error code = %q, want %q", result.ErrorCode, ucp.ErrCodeValidation)
	}
	if calls := atomic.LoadInt64(&counting.calls); calls != 0 {
		t.Fatalf("expected zero processor calls, got %d", calls)
	}
}

func TestProcessPaymentRedirectMethodMock(t *testing.T) {
	t.Parallel()

	adapter := New(Config{Mock: true, PublicBaseURL: "https://ucp.example"}, testSigner(t))

	result := adapter.ProcessPayment(context.Background(), testSession(), ucp.PaymentData{Method: "ideal"})

	if result.Status != ucp.ResultRequiresAction {
		t.Fatalf("ideal must always require action, got %+v", result)
	}
	if result.RedirectURL == "" {
		t.Fatal("requires_action result must carry a redirect url")
	}
	if result.TransactionID == "" {
		t.Fatal("expected a transaction id on the requires_action result")
	}
}

func TestProcessPaymentRedirectMethodLive(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer key_live" {
			t.Errorf("missing bearer auth, got %q", r.Header.Get("Authorization"))
		}
		var req createPaymentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if req.Amount.Value != "124.85" || req.Amount.Currency != "EUR" {
			t.Errorf("amount = %+v, want 124.85 EUR", req.Amount)
		}
		if req.Method != "ideal" {
			t.Errorf("method = %q, want ideal", req.Method)
		}
		if req.WebhookURL == "" || req.RedirectURL == "" {
			t.Errorf("callback urls missing: %+v", req)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "tr_live_1",
			"status": "open",
			"_links": map[string]any{
				"checkout": map[string]string{"href": "https://www.mollie.com/checkout/tr_live_1"},
			},
		})
	}))
	defer server.Close()

	adapter := New(Config{APIKey: "key_live", APIBase: server.URL, PublicBaseURL: "https://ucp.example"}, testSigner(t))

	result := adapter.ProcessPayment(context.Background(), testSession(), ucp.PaymentData{Method: "ideal"})

	if result.Status != ucp.ResultRequiresAction {
		t.Fatalf("expected requires_action, got %+v", result)
	}
	if result.RedirectURL != "https://www.mollie.com/checkout/tr_live_1" {
		t.Fatalf("redirect url = %q", result.RedirectURL)
	}
	if result.TransactionID != "tr_live_1" {
		t.Fatalf("transaction id = %q", result.TransactionID)
	}
}

func TestProcessPaymentCardMockSucceeds(t *testing.T) {
	t.Parallel()

	adapter := New(Config{Mock: true, PublicBaseURL: "https://ucp.example"}, testSigner(t))

	result := adapter.ProcessPayment(context.Background(), testSession(), ucp.PaymentData{Method: "card", Token: "tok_1"})

	if !result.Success || result.Status != ucp.ResultSucceeded {
		t.Fatalf("expected immediate capture in mock mode, got %+v", result)
	}
	if result.TransactionID == "" {
		t.Fatal("succeeded result must carry a transaction id")
	}
}

func TestProcessPaymentUnknownMethodFallsBack(t *testing.T) {
	t.Parallel()

	mock := newMockAPIClient()
	adapter := newWithClient(Config{Mock: true, PublicBaseURL: "https://ucp.example"}, testSigner(t), mock)

	// Unrecognized method names map to the default instead of failing.
	result := adapter.ProcessPayment(context.Background(), testSession(), ucp.PaymentData{Method: "carrier-pigeon"})
	if result.Status != ucp.ResultSucceeded {
		t.Fatalf("expected fallback to the default direct method, got %+v", result)
	}
}

func TestProcessPaymentDeclinedKeepsTransactionID(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "tr_declined", "status": "failed"})
	}))
	defer server.Close()

	adapter := New(Config{APIKey: "key_live", APIBase: server.URL, PublicBaseURL: "https://ucp.example"}, testSigner(t))

	result := adapter.ProcessPayment(context.Background(), testSession(), ucp.PaymentData{Method: "card"})

	if result.Success || result.ErrorCode != ucp.ErrCodePaymentFailed {
		t.Fatalf("expected payment_failed, got %+v", result)
	}
	if result.TransactionID != "tr_declined" {
		t.Fatalf("declined result must keep the transaction id for reconciliation, got %q", result.TransactionID)
	}
}

func TestProcessPaymentNetworkFaultIsProcessorError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer server.Close()

	adapter := New(Config{APIKey: "key_live", APIBase: server.URL, PublicBaseURL: "https://ucp.example"}, testSigner(t))

	result := adapter.ProcessPayment(context.Background(), testSession(), ucp.PaymentData{Method: "card"})

	if result.Success || result.ErrorCode != "mollie_error" {
		t.Fatalf("expected mollie_error, got %+v", result)
	}
}

func TestHandleWebhookIdempotent(t *testing.T) {
	t.Parallel()

	mock := newMockAPIClient()
	adapter := newWithClient(Config{Mock: true, PublicBaseURL: "https://ucp.example"}, testSigner(t), mock)

	created := adapter.ProcessPayment(context.Background(), testSession(), ucp.PaymentData{Method: "ideal"})
	if created.TransactionID == "" {
		t.Fatalf("setup failed: %+v", created)
	}

	first, err := adapter.HandleWebhook(context.Background(), created.TransactionID)
	if err != nil {
		t.Fatalf("HandleWebhook() error: %v", err)
	}
	second, err := adapter.HandleWebhook(context.Background(), created.TransactionID)
	if err != nil {
		t.Fatalf("HandleWebhook() error: %v", err)
	}
	if first != second {
		t.Fatalf("unchanged processor state must yield identical results: %+v vs %+v", first, second)
	}

	mock.completePayment(created.TransactionID, statusPaid)
	confirmed, err := adapter.HandleWebhook(context.Background(), created.TransactionID)
	if err != nil {
		t.Fatalf("HandleWebhook() error: %v", err)
	}
	if confirmed.Status != ucp.ResultSucceeded || !confirmed.Paid {
		t.Fatalf("expected paid confirmation, got %+v", confirmed)
	}
}

func TestDescriptorIsStable(t *testing.T) {
	t.Parallel()

	adapter := New(Config{Mock: true}, testSigner(t))

	first := adapter.Descriptor()
	if !sort.StringsAreSorted(first.SupportedMethods) {
		t.Fatalf("supported methods must be sorted, got %v", first.SupportedMethods)
	}
	for i := 0; i < 10; i++ {
		next := adapter.Descriptor()
		if !reflect.DeepEqual(first, next) {
			t.Fatalf("descriptor changed between calls: %v vs %v", first, next)
		}
	}
}

func TestConfigured(t *testing.T) {
	t.Parallel()

	if !New(Config{Mock: true}, testSigner(t)).Configured() {
		t.Error("mock adapter should count as configured")
	}
	if New(Config{}, testSigner(t)).Configured() {
		t.Error("adapter without an API key must not be configured")
	}
	if !New(Config{APIKey: "key_live"}, testSigner(t)).Configured() {
		t.Error("adapter with an API key should be configured")
	}
}
