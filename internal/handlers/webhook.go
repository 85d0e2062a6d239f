package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	stripeapi "github.com/stripe/stripe-go/v84"

	"github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/db"
	"github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/payment"
)

// stripeEventReader verifies a Stripe webhook signature and decodes the event.
type stripeEventReader interface {
	ReadWebhookEvent(r *http.Request, body []byte) (*stripeapi.Event, error)
}

// PaymentWebhook handles processor notifications on
// /webhooks/payment/{handler}?session=<id>. The notification itself is
// untrusted: the session's transaction is re-read from the processor.
func (h *Handlers) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	handlerID := mux.Vars(r)["handler"]

	sessionID, err := uuid.Parse(r.URL.Query().Get("session"))
	if err != nil {
		logger.Warn("webhook with invalid session reference", "handler", handlerID)
		http.Error(w, "Invalid session reference", http.StatusBadRequest)
		return
	}

	// Some processors send a unique event id; when present it deduplicates
	// redelivery. Mollie-style notifications carry only the payment id,
	// which repeats across status changes and must not be deduplicated.
	eventID := strings.TrimSpace(r.Header.Get("X-Event-Id"))

	if err := h.checkout.ReconcileWebhook(ctx, handlerID, sessionID, eventID); err != nil {
		switch {
		case errors.Is(err, db.ErrSessionNotFound):
			http.Error(w, "Unknown session", http.StatusNotFound)
		case errors.Is(err, payment.ErrNoHandlerAvailable):
			http.Error(w, "Unknown handler", http.StatusNotFound)
		default:
			logger.Error("failed to reconcile webhook", "error", err, "handler", handlerID)
			http.Error(w, "Processing failed", http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
}

// stripeIntentPayload is the slice of a payment_intent event we act on.
type stripeIntentPayload struct {
	ID       string `json:"id"`
	Metadata struct {
		CheckoutSessionID string `json:"checkout_session_id"`
	} `json:"metadata"`
}

// StripeWebhook handles signed Stripe events. The session reference travels
// in the intent metadata rather than the URL.
func (h *Handlers) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)

	if h.stripeEvents == nil {
		logger.Error("stripe webhook received but stripe is not configured")
		http.Error(w, "Webhook handler not configured", http.StatusInternalServerError)
		return
	}

	body, err := readBody(w, r)
	if err != nil {
		http.Error(w, "Invalid body", http.StatusBadRequest)
		return
	}

	event, err := h.stripeEvents.ReadWebhookEvent(r, body)
	if err != nil {
		logger.Error("failed to read stripe webhook payload", "error", err)
		http.Error(w, "Invalid webhook", http.StatusBadRequest)
		return
	}
	if event.ID == "" {
		http.Error(w, "Missing event ID", http.StatusBadRequest)
		return
	}

	if !strings.HasPrefix(string(event.Type), "payment_intent.") {
		logger.Debug("ignoring stripe event", "type", event.Type)
		w.WriteHeader(http.StatusOK)
		return
	}

	var intent stripeIntentPayload
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		logger.Error("failed to decode payment intent payload", "error", err)
		http.Error(w, "Invalid payload", http.StatusBadRequest)
		return
	}

	sessionID, err := uuid.Parse(intent.Metadata.CheckoutSessionID)
	if err != nil {
		// Intents created outside this service have no session reference.
		logger.Info("stripe event without session reference", "event_id", event.ID)
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := h.checkout.ReconcileWebhook(ctx, "stripe", sessionID, event.ID); err != nil {
		if errors.Is(err, db.ErrSessionNotFound) {
			logger.Warn("stripe event references unknown session", "event_id", event.ID)
			w.WriteHeader(http.StatusOK)
			return
		}
		logger.Error("failed to reconcile stripe webhook", "error", err, "event_id", event.ID)
		http.Error(w, "Processing failed", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()
	return io.ReadAll(r.Body)
}
