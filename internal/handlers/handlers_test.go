package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	stripeapi "github.com/stripe/stripe-go/v84"

	"github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/cache"
	"github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/config"
	"github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/db"
	"github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/mapper"
	"github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/models"
	"github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/payment"
	"github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/services"
	"github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/token"
	"github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/ucp"
)

type memSessionStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*models.CheckoutSession
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{sessions: make(map[uuid.UUID]*models.CheckoutSession)}
}

func (s *memSessionStore) Create(ctx context.Context, session *models.CheckoutSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *session
	s.sessions[session.ID] = &clone
	return nil
}

func (s *memSessionStore) GetByID(ctx context.Context, id uuid.UUID) (*models.CheckoutSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, db.ErrSessionNotFound
	}
	clone := *session
	return &clone, nil
}

func (s *memSessionStore) ApplyChange(ctx context.Context, id uuid.UUID, change db.SessionChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return db.ErrSessionNotFound
	}

	allowed := false
	for _, from := range change.From {
		if session.Status == from {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("%w: session is %s", db.ErrInvalidStatusTransition, session.Status)
	}

	session.Status = change.Status
	if change.HandlerID != "" {
		session.HandlerID = change.HandlerID
	}
	if change.TransactionID != "" {
		session.TransactionID = change.TransactionID
	}
	session.FailureReason = change.FailureReason
	return nil
}

type memConfigStore struct {
	configs []models.PaymentHandlerConfig
}

func (s *memConfigStore) ListByShop(ctx context.Context, shopID string) ([]models.PaymentHandlerConfig, error) {
	return s.configs, nil
}

type scriptedHandler struct {
	id            string
	result        ucp.PaymentResult
	webhookStatus ucp.WebhookStatus
	webhookCalls  int
}

func (h *scriptedHandler) ID() string         { return h.id }
func (h *scriptedHandler) Name() string       { return h.id }
func (h *scriptedHandler) UCPVersion() string { return ucp.Version }
func (h *scriptedHandler) Configured() bool   { return true }

func (h *scriptedHandler) Descriptor() ucp.HandlerDescriptor {
	return ucp.HandlerDescriptor{ID: h.id, Name: h.id, UCPVersion: ucp.Version}
}

func (h *scriptedHandler) ProcessPayment(ctx context.Context, session payment.SessionView, data ucp.PaymentData) ucp.PaymentResult {
	return h.result
}

func (h *scriptedHandler) HandleWebhook(ctx context.Context, transactionID string) (ucp.WebhookStatus, error) {
	h.webhookCalls++
	return h.webhookStatus, nil
}

type fixture struct {
	handlers *Handlers
	router   *mux.Router
	store    *memSessionStore
	signer   *token.Signer
	handler  *scriptedHandler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := newMemSessionStore()
	scripted := &scriptedHandler{id: "mollie", result: payment.Succeeded("tr_1")}

	registry, err := payment.NewRegistry(scripted)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	seen, err := cache.NewMemoryProvider()
	if err != nil {
		t.Fatalf("NewMemoryProvider: %v", err)
	}
	signer, err := token.NewSigner("test-secret")
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	configs := &memConfigStore{configs: []models.PaymentHandlerConfig{{
		ShopID: "shop-1", HandlerID: "mollie", Enabled: true, Priority: 1,
	}}}
	checkout := services.NewCheckoutService(store, configs, registry, mapper.New(), seen, logger)

	h, err := New(Dependencies{
		Config:   &config.Config{PublicBaseURL: "https://checkout.example.com", Port: "8080"},
		Checkout: checkout,
		Registry: registry,
		Signer:   signer,
		Logger:   logger,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	r := mux.NewRouter()
	r.HandleFunc("/ucp/checkout-sessions", h.CreateCheckoutSession).Methods("POST")
	r.HandleFunc("/ucp/checkout-sessions/{id}", h.GetCheckoutSession).Methods("GET")
	r.HandleFunc("/ucp/checkout-sessions/{id}/complete", h.CompleteCheckoutSession).Methods("POST")
	r.HandleFunc("/ucp/handlers", h.ListHandlers).Methods("GET")
	r.HandleFunc("/webhooks/payment/{handler}", h.PaymentWebhook).Methods("POST")
	r.HandleFunc("/webhooks/stripe", h.StripeWebhook).Methods("POST")
	r.HandleFunc("/checkout/return", h.CheckoutReturn).Methods("GET")

	return &fixture{handlers: h, router: r, store: store, signer: signer, handler: scripted}
}

const createBody = `{
	"shop_id": "shop-1",
	"cart": {
		"token": "cart-1",
		"currency": "EUR",
		"lineItems": [
			{"id": "l1", "referencedId": "p1", "type": "product", "label": "Widget",
			 "quantity": 2, "good": true,
			 "price": {"unitPrice": 50.0, "totalPrice": 100.0, "quantity": 2}}
		],
		"price": {"netPrice": 100.0, "totalPrice": 104.9, "positionPrice": 100.0}
	}
}`

func (f *fixture) createSession(t *testing.T) models.CheckoutSession {
	t.Helper()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/ucp/checkout-sessions", strings.NewReader(createBody))
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var session models.CheckoutSession
	if err := json.Unmarshal(rec.Body.Bytes(), &session); err != nil {
		t.Fatalf("failed to decode session: %v", err)
	}
	return session
}

func TestCreateCheckoutSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	session := f.createSession(t)

	if session.Status != models.StatusCreated {
		t.Errorf("expected created, got %s", session.Status)
	}
	if session.Cart.Currency != "EUR" {
		t.Errorf("unexpected currency %q", session.Cart.Currency)
	}
	if got := session.Cart.TotalAmount(ucp.TotalTypeTotal); got != 10490 {
		t.Errorf("expected total 10490, got %d", got)
	}
}

func TestCreateCheckoutSessionValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{`},
		{"missing shop id", `{"cart": {"currency": "EUR"}}`},
		{"missing currency", `{"shop_id": "shop-1", "cart": {}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			rec := httptest.NewRecorder()
			req := httptest.NewRequest("POST", "/ucp/checkout-sessions", strings.NewReader(tt.body))
			f.router.ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}

			var envelope errorEnvelope
			if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
				t.Fatalf("failed to decode error: %v", err)
			}
			if envelope.Error.Code != ucp.ErrCodeValidation {
				t.Errorf("expected validation_error, got %s", envelope.Error.Code)
			}
		})
	}
}

func TestGetCheckoutSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	session := f.createSession(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/ucp/checkout-sessions/"+session.ID.String(), nil)
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestGetCheckoutSessionNotFound(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/ucp/checkout-sessions/"+uuid.NewString(), nil)
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestCompleteCheckoutSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	session := f.createSession(t)

	body := `{"payment": {"method": "card", "token": "tok_1"}}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/ucp/checkout-sessions/"+session.ID.String()+"/complete", strings.NewReader(body))
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp completeSessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Result.Status != ucp.ResultSucceeded {
		t.Errorf("expected succeeded result, got %s", resp.Result.Status)
	}
	if resp.Session.Status != models.StatusSucceeded {
		t.Errorf("expected succeeded session, got %s", resp.Session.Status)
	}
}

func TestCompleteCheckoutSessionStateConflict(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	session := f.createSession(t)

	body := `{"payment": {"method": "card", "token": "tok_1"}}`
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/ucp/checkout-sessions/"+session.ID.String()+"/complete", strings.NewReader(body))
		f.router.ServeHTTP(rec, req)

		if i == 0 && rec.Code != http.StatusOK {
			t.Fatalf("first completion failed: %d", rec.Code)
		}
		if i == 1 {
			if rec.Code != http.StatusConflict {
				t.Fatalf("expected 409, got %d", rec.Code)
			}
			var envelope errorEnvelope
			if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
				t.Fatalf("failed to decode error: %v", err)
			}
			if envelope.Error.Code != ucp.ErrCodeStateConflict {
				t.Errorf("expected state_conflict, got %s", envelope.Error.Code)
			}
		}
	}
}

func TestListHandlers(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/ucp/handlers", nil)
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), ucp.Version) {
		t.Errorf("handler listing should carry the UCP version: %s", rec.Body.String())
	}
}

func TestPaymentWebhookSettlesSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.handler.result = payment.Pending("tr_1")
	f.handler.webhookStatus = ucp.WebhookStatus{Status: ucp.ResultSucceeded, Paid: true}

	session := f.createSession(t)

	body := `{"payment": {"method": "ideal", "token": ""}}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/ucp/checkout-sessions/"+session.ID.String()+"/complete", strings.NewReader(body))
	f.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("complete failed: %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest("POST", "/webhooks/payment/mollie?session="+session.ID.String(), strings.NewReader("id=tr_1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	stored, _ := f.store.GetByID(context.Background(), session.ID)
	if stored.Status != models.StatusSucceeded {
		t.Errorf("expected succeeded, got %s", stored.Status)
	}
}

func TestPaymentWebhookRejectsBadSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/webhooks/payment/mollie?session=not-a-uuid", nil)
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCheckoutReturn(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.handler.result = payment.RequiresAction("tr_1", "https://pay.example.com/r/1", "mollie_error")
	f.handler.webhookStatus = ucp.WebhookStatus{Status: ucp.ResultSucceeded, Paid: true}

	session := f.createSession(t)

	body := `{"payment": {"method": "ideal"}}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/ucp/checkout-sessions/"+session.ID.String()+"/complete", strings.NewReader(body))
	f.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("complete failed: %d %s", rec.Code, rec.Body.String())
	}

	returnToken, err := f.signer.Mint(session.ID.String(), "mollie")
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/checkout/return?token="+returnToken, nil)
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var returned models.CheckoutSession
	if err := json.Unmarshal(rec.Body.Bytes(), &returned); err != nil {
		t.Fatalf("failed to decode session: %v", err)
	}
	if returned.Status != models.StatusSucceeded {
		t.Errorf("expected reconciled succeeded session, got %s", returned.Status)
	}
}

func TestCheckoutReturnRejectsBadToken(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/checkout/return?token=garbage", nil)
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

// fakeStripeReader skips signature verification and returns a canned event.
type fakeStripeReader struct {
	event *stripeapi.Event
	err   error
}

func (f *fakeStripeReader) ReadWebhookEvent(r *http.Request, body []byte) (*stripeapi.Event, error) {
	return f.event, f.err
}

func TestStripeWebhookSettlesSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	stripeHandler := &scriptedHandler{
		id:            "stripe",
		result:        payment.Pending("pi_1"),
		webhookStatus: ucp.WebhookStatus{Status: ucp.ResultSucceeded, Paid: true},
	}
	registry, err := payment.NewRegistry(f.handler, stripeHandler)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	store := newMemSessionStore()
	seen, _ := cache.NewMemoryProvider()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	configs := &memConfigStore{configs: []models.PaymentHandlerConfig{{
		ShopID: "shop-1", HandlerID: "stripe", Enabled: true, Priority: 1,
	}}}
	checkout := services.NewCheckoutService(store, configs, registry, mapper.New(), seen, logger)

	session := &models.CheckoutSession{
		ID:     uuid.New(),
		ShopID: "shop-1",
		Status: models.StatusPending,
		Cart: models.CartSnapshot{
			Currency: "EUR",
			Totals:   []ucp.Total{{Type: ucp.TotalTypeTotal, Amount: 10490, Currency: "EUR"}},
		},
		HandlerID:     "stripe",
		TransactionID: "pi_1",
	}
	if err := store.Create(context.Background(), session); err != nil {
		t.Fatalf("Create: %v", err)
	}

	raw, _ := json.Marshal(map[string]any{
		"id": "pi_1",
		"metadata": map[string]string{
			"checkout_session_id": session.ID.String(),
		},
	})
	event := &stripeapi.Event{
		ID:   "evt_1",
		Type: "payment_intent.succeeded",
		Data: &stripeapi.EventData{Raw: raw},
	}

	h, err := New(Dependencies{
		Config:       &config.Config{PublicBaseURL: "https://checkout.example.com"},
		Checkout:     checkout,
		Registry:     registry,
		Signer:       f.signer,
		StripeEvents: &fakeStripeReader{event: event},
		Logger:       logger,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/webhooks/stripe", bytes.NewReader(raw))
	h.StripeWebhook(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	stored, _ := store.GetByID(context.Background(), session.ID)
	if stored.Status != models.StatusSucceeded {
		t.Errorf("expected succeeded, got %s", stored.Status)
	}
	if stripeHandler.webhookCalls != 1 {
		t.Errorf("expected one processor probe, got %d", stripeHandler.webhookCalls)
	}
}

func TestStripeWebhookIgnoresForeignIntents(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	raw, _ := json.Marshal(map[string]any{"id": "pi_other", "metadata": map[string]string{}})
	event := &stripeapi.Event{
		ID:   "evt_2",
		Type: "payment_intent.succeeded",
		Data: &stripeapi.EventData{Raw: raw},
	}
	f.handlers.stripeEvents = &fakeStripeReader{event: event}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/webhooks/stripe", bytes.NewReader(raw))
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("foreign intents should be acknowledged, got %d", rec.Code)
	}
}
