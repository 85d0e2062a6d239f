package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/db"
	"github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/models"
	"github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/payment"
	"github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/platform"
	"github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/services"
	"github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/ucp"
)

type createSessionRequest struct {
	ShopID             string                    `json:"shop_id"`
	Cart               platform.Cart             `json:"cart"`
	ShippingMethods    []platform.ShippingMethod `json:"shipping_methods,omitempty"`
	SelectedShippingID string                    `json:"selected_shipping_id,omitempty"`
}

type completeSessionRequest struct {
	Payment   ucp.PaymentData `json:"payment"`
	HandlerID string          `json:"handler_id,omitempty"`
}

type completeSessionResponse struct {
	Session *models.CheckoutSession `json:"session"`
	Result  ucp.PaymentResult       `json:"result"`
}

// CreateCheckoutSession maps the posted storefront cart into a new session.
func (h *Handlers) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerFromContext(r.Context())
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, ucp.ErrCodeValidation, "invalid request body")
		return
	}
	if req.ShopID == "" {
		h.writeError(w, r, http.StatusBadRequest, ucp.ErrCodeValidation, "shop_id is required")
		return
	}
	if req.Cart.Currency == "" {
		h.writeError(w, r, http.StatusBadRequest, ucp.ErrCodeValidation, "cart.currency is required")
		return
	}

	session, err := h.checkout.CreateSession(r.Context(), services.CreateSessionInput{
		ShopID:             req.ShopID,
		Cart:               req.Cart,
		ShippingMethods:    req.ShippingMethods,
		SelectedShippingID: req.SelectedShippingID,
	})
	if err != nil {
		logger.Error("failed to create checkout session", "error", err)
		h.writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to create checkout session")
		return
	}

	h.writeJSON(w, r, http.StatusCreated, session)
}

// GetCheckoutSession returns the current session state.
func (h *Handlers) GetCheckoutSession(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionIDFromRequest(w, r)
	if !ok {
		return
	}

	session, err := h.checkout.GetSession(r.Context(), id)
	if err != nil {
		if errors.Is(err, db.ErrSessionNotFound) {
			h.writeError(w, r, http.StatusNotFound, "not_found", "checkout session not found")
			return
		}
		h.loggerFromContext(r.Context()).Error("failed to load checkout session", "error", err)
		h.writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to load checkout session")
		return
	}

	h.writeJSON(w, r, http.StatusOK, session)
}

// CompleteCheckoutSession runs payment for the session. The processor outcome
// is returned in the body; transport-level problems use the error envelope.
func (h *Handlers) CompleteCheckoutSession(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerFromContext(r.Context())
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	id, ok := h.sessionIDFromRequest(w, r)
	if !ok {
		return
	}

	var req completeSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, ucp.ErrCodeValidation, "invalid request body")
		return
	}

	session, result, err := h.checkout.ProcessPayment(r.Context(), id, req.Payment, req.HandlerID)
	if err != nil {
		switch {
		case errors.Is(err, db.ErrSessionNotFound):
			h.writeError(w, r, http.StatusNotFound, "not_found", "checkout session not found")
		case errors.Is(err, payment.ErrNoHandlerAvailable):
			h.writeError(w, r, http.StatusConflict, ucp.ErrCodeNoHandlerAvailable, "no payment handler available for this shop")
		case errors.Is(err, services.ErrStateConflict):
			h.writeError(w, r, http.StatusConflict, ucp.ErrCodeStateConflict, err.Error())
		default:
			logger.Error("failed to process payment", "error", err)
			h.writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to process payment")
		}
		return
	}

	h.writeJSON(w, r, http.StatusOK, completeSessionResponse{Session: session, Result: result})
}

func (h *Handlers) sessionIDFromRequest(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := mux.Vars(r)["id"]
	id, err := uuid.Parse(raw)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, ucp.ErrCodeValidation, "invalid session id")
		return uuid.Nil, false
	}
	return id, true
}
