// Package payment defines the polymorphic payment-handler contract every
// processor adapter implements, the shared result-construction helpers, and
// the registry the checkout service selects handlers from.
package payment

import (
	"context"
	"errors"

	"github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/models"
	"github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/ucp"
)

// ErrNoHandlerAvailable is returned by Select when no enabled, configured
// handler matches the request. The session itself stays retryable.
var ErrNoHandlerAvailable = errors.New("no payment handler available")

// SessionView is the read-only view of a checkout session a handler receives.
// Handlers report results; they never mutate session state.
type SessionView struct {
	ID          string
	ShopID      string
	Currency    string
	AmountMinor int64
	Description string
}

// ViewOf derives the handler-facing view from a session. The amount is always
// the session's mapped total, never a caller-supplied value.
func ViewOf(session *models.CheckoutSession, description string) SessionView {
	return SessionView{
		ID:          session.ID.String(),
		ShopID:      session.ShopID,
		Currency:    session.Cart.Currency,
		AmountMinor: session.Cart.TotalAmount(ucp.TotalTypeTotal),
		Description: description,
	}
}

// Handler is implemented by every processor adapter.
//
// ProcessPayment is the sole side-effecting operation. Implementations must
// validate paymentData before any network call: invalid input yields a failed
// result with code validation_error and zero external side effects. On
// success exactly one of three outcomes is returned: requires_action with a
// non-empty redirect URL, succeeded with a transaction id, or pending/failed
// carrying the processor transaction id when one exists. Faults never escape;
// internal errors are downgraded to a <processor>_error result.
type Handler interface {
	ID() string
	Name() string
	UCPVersion() string

	ProcessPayment(ctx context.Context, session SessionView, data ucp.PaymentData) ucp.PaymentResult

	// HandleWebhook queries the processor-side state of a payment for
	// reconciliation. It is idempotent: repeated calls with the same id
	// return the same result until the processor-side state changes.
	HandleWebhook(ctx context.Context, processorPaymentID string) (ucp.WebhookStatus, error)

	// Descriptor is the static capability advertisement. No side effects,
	// never varies with session state.
	Descriptor() ucp.HandlerDescriptor

	// Configured reports whether the handler holds the minimum credentials
	// needed to operate. Unconfigured handlers are excluded from selection.
	Configured() bool
}
