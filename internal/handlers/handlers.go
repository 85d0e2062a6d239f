package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/config"
	"github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/logging"
	"github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/payment"
	"github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/services"
	"github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/token"
	"github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/ucp"
)

const maxBodyBytes = 1 << 20 // 1 MB

// Handlers provides the HTTP surface of the checkout service: the UCP
// session endpoints, processor webhooks and the shopper return URL.
type Handlers struct {
	config       *config.Config
	db           *pgxpool.Pool
	checkout     *services.CheckoutService
	registry     *payment.Registry
	signer       *token.Signer
	stripeEvents stripeEventReader
	logger       *slog.Logger
}

type Dependencies struct {
	Config       *config.Config
	DB           *pgxpool.Pool
	Checkout     *services.CheckoutService
	Registry     *payment.Registry
	Signer       *token.Signer
	StripeEvents stripeEventReader
	Logger       *slog.Logger
}

func New(deps Dependencies) (*Handlers, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if deps.Config == nil {
		return nil, fmt.Errorf("handlers dependencies: config is required")
	}
	if deps.Checkout == nil {
		return nil, fmt.Errorf("handlers dependencies: checkout service is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("handlers dependencies: registry is required")
	}
	if deps.Signer == nil {
		return nil, fmt.Errorf("handlers dependencies: signer is required")
	}

	return &Handlers{
		config:       deps.Config,
		db:           deps.DB,
		checkout:     deps.Checkout,
		registry:     deps.Registry,
		signer:       deps.Signer,
		stripeEvents: deps.StripeEvents,
		logger:       logger.With("component", "handlers"),
	}, nil
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)

	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			logger.Error("database health check failed", "error", err)
			http.Error(w, "Database unhealthy", http.StatusServiceUnavailable)
			return
		}
	}

	h.writeJSON(w, r, http.StatusOK, map[string]string{"status": "healthy"})
}

// ListHandlers exposes the registered payment handler descriptors.
func (h *Handlers) ListHandlers(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, map[string]any{
		"ucp_version": ucp.Version,
		"handlers":    h.registry.Descriptors(),
	})
}

func (h *Handlers) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, h.logger)
}

func (h *Handlers) writeJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.loggerFromContext(r.Context()).Error("failed to encode response", "error", err)
	}
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	h.writeJSON(w, r, status, errorEnvelope{Error: errorBody{Code: code, Message: message}})
}
