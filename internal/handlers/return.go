package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/db"
)

// CheckoutReturn is where the shopper lands after a redirect flow. The signed
// token pins the session and handler; the processor is queried once more so
// the response reflects the settled state even if the webhook is still in
// flight.
func (h *Handlers) CheckoutReturn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)

	claims, err := h.signer.Verify(r.URL.Query().Get("token"))
	if err != nil {
		logger.Warn("checkout return with invalid token", "error", err)
		http.Error(w, "Invalid or expired return token", http.StatusUnauthorized)
		return
	}

	sessionID, err := uuid.Parse(claims.SessionID)
	if err != nil {
		http.Error(w, "Invalid session reference", http.StatusBadRequest)
		return
	}

	if err := h.checkout.ReconcileWebhook(ctx, claims.HandlerID, sessionID, ""); err != nil {
		if !errors.Is(err, db.ErrSessionNotFound) {
			// Reconciliation is best-effort here: the webhook path will
			// settle the session even if this probe fails.
			logger.Warn("return reconciliation failed", "error", err, "session_id", sessionID)
		}
	}

	session, err := h.checkout.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, db.ErrSessionNotFound) {
			h.writeError(w, r, http.StatusNotFound, "not_found", "checkout session not found")
			return
		}
		logger.Error("failed to load session on return", "error", err)
		h.writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to load checkout session")
		return
	}

	h.writeJSON(w, r, http.StatusOK, session)
}
