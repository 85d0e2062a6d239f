package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/config"
	"github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/handlers"
)

type Server struct {
	cfg        *config.Config
	logger     *slog.Logger
	handlers   *handlers.Handlers
	httpServer *http.Server
}

func New(cfg *config.Config, logger *slog.Logger, h *handlers.Handlers) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if h == nil {
		return nil, fmt.Errorf("handlers are required")
	}

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		handlers: h,
	}

	router := s.buildRouter()
	s.httpServer = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	return s, nil
}

func (s *Server) Run() error {
	s.logger.Info("server starting", "port", s.cfg.Port)

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Close(ctx context.Context) error {
	if s == nil || s.httpServer == nil {
		return nil
	}

	s.logger.Info("server shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) buildRouter() *mux.Router {
	h := s.handlers

	r := mux.NewRouter()
	r.Use(h.RequestLogger)
	r.Use(h.MetricsContext)
	r.Use(h.SecurityHeaders)

	r.HandleFunc("/health", h.Health).Methods("GET").Name("health")

	// UCP checkout surface consumed by the storefront.
	ucpRouter := r.PathPrefix("/ucp").Subrouter()
	ucpRouter.HandleFunc("/handlers", h.ListHandlers).Methods("GET").Name("ucp.handlers")
	ucpRouter.HandleFunc("/checkout-sessions", h.CreateCheckoutSession).Methods("POST").Name("ucp.sessions.create")
	ucpRouter.HandleFunc("/checkout-sessions/{id}", h.GetCheckoutSession).Methods("GET").Name("ucp.sessions.get")
	ucpRouter.HandleFunc("/checkout-sessions/{id}/complete", h.CompleteCheckoutSession).Methods("POST").Name("ucp.sessions.complete")

	// Processor callbacks.
	r.HandleFunc("/webhooks/payment/{handler}", h.PaymentWebhook).Methods("POST").Name("webhooks.payment")
	r.HandleFunc("/webhooks/stripe", h.StripeWebhook).Methods("POST").Name("webhooks.stripe")
	r.HandleFunc("/checkout/return", h.CheckoutReturn).Methods("GET").Name("checkout.return")

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Not Found", http.StatusNotFound)
	})

	return r
}
