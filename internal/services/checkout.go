package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"
	"github.com/google/uuid"

	"github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/cache"
	"github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/db"
	"github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/logging"
	"github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/mapper"
	"github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/models"
	"github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/observability"
	"github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/payment"
	"github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/platform"
	"github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/ucp"
)

var (
	// ErrStateConflict is returned when a payment or webhook arrives for a
	// session that already reached a different terminal state.
	ErrStateConflict = errors.New("checkout session state conflict")
)

// webhookSeenTTL bounds how long processed webhook event IDs are remembered.
const webhookSeenTTL = 24 * time.Hour

type sessionStore interface {
	Create(ctx context.Context, session *models.CheckoutSession) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.CheckoutSession, error)
	ApplyChange(ctx context.Context, id uuid.UUID, change db.SessionChange) error
}

type handlerConfigStore interface {
	ListByShop(ctx context.Context, shopID string) ([]models.PaymentHandlerConfig, error)
}

// CheckoutService drives a checkout session from cart mapping through payment
// and webhook reconciliation.
type CheckoutService struct {
	sessions sessionStore
	configs  handlerConfigStore
	registry *payment.Registry
	mapper   *mapper.Mapper
	seen     cache.Provider
	logger   *slog.Logger
}

func NewCheckoutService(sessions sessionStore, configs handlerConfigStore, registry *payment.Registry, cartMapper *mapper.Mapper, seen cache.Provider, logger *slog.Logger) *CheckoutService {
	return &CheckoutService{
		sessions: sessions,
		configs:  configs,
		registry: registry,
		mapper:   cartMapper,
		seen:     seen,
		logger:   logger,
	}
}

func (s *CheckoutService) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

// CreateSessionInput carries the storefront cart a new session is built from.
type CreateSessionInput struct {
	ShopID             string
	Cart               platform.Cart
	ShippingMethods    []platform.ShippingMethod
	SelectedShippingID string
}

// CreateSession maps the storefront cart into UCP shape and persists the
// session in status created.
func (s *CheckoutService) CreateSession(ctx context.Context, input CreateSessionInput) (*models.CheckoutSession, error) {
	span := sentry.StartSpan(
		ctx,
		"service.checkout.create_session",
		sentry.WithOpName("service.checkout"),
		sentry.WithDescription("CreateSession"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	if input.ShopID == "" {
		return nil, fmt.Errorf("shop id is required")
	}
	if input.Cart.Currency == "" {
		return nil, fmt.Errorf("cart currency is required")
	}

	cart := input.Cart
	snapshot := models.CartSnapshot{
		Currency:  cart.Currency,
		LineItems: s.mapper.MapLineItems(&cart, cart.Currency),
		Totals:    s.mapper.MapCartTotals(&cart, cart.Currency),
	}
	if len(input.ShippingMethods) > 0 {
		fulfillment := s.mapper.MapFulfillment(input.ShippingMethods, cart.Deliveries, input.SelectedShippingID, cart.Currency)
		snapshot.Fulfillment = &fulfillment
	}

	session := &models.CheckoutSession{
		ID:     uuid.New(),
		ShopID: input.ShopID,
		Cart:   snapshot,
		Status: models.StatusCreated,
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	meter := observability.MeterFromContext(ctx)
	meter.Count("checkout.session.created", 1, sentry.WithAttributes(
		attribute.String("shop_id", input.ShopID),
	))

	s.loggerFromContext(ctx).Info("checkout session created",
		"session_id", session.ID,
		"shop_id", session.ShopID,
		"currency", session.Cart.Currency)

	return session, nil
}

// GetSession loads a session by ID.
func (s *CheckoutService) GetSession(ctx context.Context, id uuid.UUID) (*models.CheckoutSession, error) {
	return s.sessions.GetByID(ctx, id)
}

// ProcessPayment selects a handler for the session's shop, invokes it, and
// records the outcome. A requested handler ID narrows selection; empty means
// highest-priority configured handler.
func (s *CheckoutService) ProcessPayment(ctx context.Context, sessionID uuid.UUID, data ucp.PaymentData, requestedHandlerID string) (*models.CheckoutSession, ucp.PaymentResult, error) {
	span := sentry.StartSpan(
		ctx,
		"service.checkout.process_payment",
		sentry.WithOpName("service.checkout"),
		sentry.WithDescription("ProcessPayment"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	logger := s.loggerFromContext(ctx)
	meter := observability.MeterFromContext(ctx)

	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, ucp.PaymentResult{}, err
	}

	if session.Status.IsTerminal() {
		return session, ucp.PaymentResult{}, fmt.Errorf("%w: session is %s", ErrStateConflict, session.Status)
	}

	configs, err := s.configs.ListByShop(ctx, session.ShopID)
	if err != nil {
		return nil, ucp.PaymentResult{}, fmt.Errorf("failed to load handler configs: %w", err)
	}

	handler, err := s.registry.Select(configs, requestedHandlerID)
	if err != nil {
		meter.Count("checkout.payment.no_handler", 1)
		return session, ucp.PaymentResult{}, err
	}

	view := payment.ViewOf(session, fmt.Sprintf("Checkout %s", session.ID))
	result := handler.ProcessPayment(ctx, view, data)

	meter.Count("checkout.payment.processed", 1, sentry.WithAttributes(
		attribute.String("handler", handler.ID()),
		attribute.String("status", string(result.Status)),
	))
	logger.Info("payment processed",
		"session_id", session.ID,
		"handler", handler.ID(),
		"status", result.Status,
		"transaction_id", result.TransactionID)

	// Failures without a processor verdict leave the session untouched.
	// Validation errors are retryable with corrected payment data, and
	// processor faults (network error, non-2xx, malformed body) are
	// retryable once the processor recovers. Only an explicit decline
	// moves the session to failed.
	if result.Status == ucp.ResultFailed && result.ErrorCode != ucp.ErrCodePaymentFailed {
		return session, result, nil
	}

	change := changeForResult(handler.ID(), result)
	if err := s.sessions.ApplyChange(ctx, session.ID, change); err != nil {
		if errors.Is(err, db.ErrInvalidStatusTransition) {
			return session, result, fmt.Errorf("%w: %v", ErrStateConflict, err)
		}
		return session, result, err
	}

	session, err = s.sessions.GetByID(ctx, session.ID)
	if err != nil {
		return nil, result, err
	}
	return session, result, nil
}

// changeForResult maps a processor outcome to a session transition. Payment
// attempts start from created or from a requires_action round the client is
// retrying; failed is terminal.
func changeForResult(handlerID string, result ucp.PaymentResult) db.SessionChange {
	change := db.SessionChange{
		HandlerID:     handlerID,
		TransactionID: result.TransactionID,
		From: []models.SessionStatus{
			models.StatusCreated,
			models.StatusRequiresAction,
		},
	}

	switch result.Status {
	case ucp.ResultSucceeded:
		change.Status = models.StatusSucceeded
		change.From = append(change.From, models.StatusPending)
	case ucp.ResultPending:
		change.Status = models.StatusPending
	case ucp.ResultRequiresAction:
		change.Status = models.StatusRequiresAction
	default:
		change.Status = models.StatusFailed
		change.FailureReason = failureReason(result)
	}
	return change
}

func failureReason(result ucp.PaymentResult) string {
	if result.ErrorCode == "" {
		return result.ErrorMessage
	}
	if result.ErrorMessage == "" {
		return result.ErrorCode
	}
	return fmt.Sprintf("%s: %s", result.ErrorCode, result.ErrorMessage)
}

// ReconcileWebhook applies a processor notification to a session. Duplicate
// events are dropped via the idempotency cache; notifications that would
// regress a terminal session are logged and ignored.
func (s *CheckoutService) ReconcileWebhook(ctx context.Context, handlerID string, sessionID uuid.UUID, eventID string) error {
	span := sentry.StartSpan(
		ctx,
		"service.checkout.reconcile_webhook",
		sentry.WithOpName("service.checkout"),
		sentry.WithDescription("ReconcileWebhook"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	logger := s.loggerFromContext(ctx)
	meter := observability.MeterFromContext(ctx)

	if eventID != "" {
		key := cache.WebhookKey(handlerID, eventID)
		if _, err := s.seen.Get(ctx, key); err == nil {
			meter.Count("checkout.webhook.duplicate", 1, sentry.WithAttributes(
				attribute.String("handler", handlerID),
			))
			logger.Info("duplicate webhook skipped", "handler", handlerID, "event_id", eventID)
			return nil
		}
	}

	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}

	handler, ok := s.registry.Get(handlerID)
	if !ok {
		return fmt.Errorf("%w: %s", payment.ErrNoHandlerAvailable, handlerID)
	}
	if session.TransactionID == "" {
		return fmt.Errorf("session %s has no transaction to reconcile", sessionID)
	}

	status, err := handler.HandleWebhook(ctx, session.TransactionID)
	if err != nil {
		return fmt.Errorf("failed to query processor state: %w", err)
	}

	if err := s.applyWebhookStatus(ctx, session, handlerID, status, logger); err != nil {
		return err
	}

	if eventID != "" {
		key := cache.WebhookKey(handlerID, eventID)
		if err := s.seen.Set(ctx, key, "processed", webhookSeenTTL); err != nil {
			logger.Warn("failed to record webhook event id", "error", err)
		}
	}

	meter.Count("checkout.webhook.reconciled", 1, sentry.WithAttributes(
		attribute.String("handler", handlerID),
		attribute.String("status", string(status.Status)),
	))
	return nil
}

func (s *CheckoutService) applyWebhookStatus(ctx context.Context, session *models.CheckoutSession, handlerID string, status ucp.WebhookStatus, logger *slog.Logger) error {
	var change db.SessionChange
	switch {
	case status.Paid || status.Status == ucp.ResultSucceeded:
		change = db.SessionChange{
			Status: models.StatusSucceeded,
			From: []models.SessionStatus{
				models.StatusCreated, models.StatusRequiresAction,
				models.StatusPending, models.StatusSucceeded,
			},
		}
	case status.Status == ucp.ResultFailed:
		change = db.SessionChange{
			Status:        models.StatusFailed,
			FailureReason: ucp.ErrCodePaymentFailed,
			From: []models.SessionStatus{
				models.StatusCreated, models.StatusRequiresAction,
				models.StatusPending, models.StatusFailed,
			},
		}
	default:
		// Still in flight on the processor side; nothing to record.
		return nil
	}

	err := s.sessions.ApplyChange(ctx, session.ID, change)
	if err == nil {
		return nil
	}
	if errors.Is(err, db.ErrInvalidStatusTransition) {
		// A late webhook for a session that already settled differently.
		// The stored outcome wins; surface the conflict in the logs only.
		logger.Warn("webhook conflicts with terminal session state",
			"session_id", session.ID,
			"handler", handlerID,
			"session_status", session.Status,
			"webhook_status", status.Status)
		return nil
	}
	return err
}
