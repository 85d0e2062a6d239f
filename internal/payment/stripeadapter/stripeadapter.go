// Package stripeadapter processes card payments through Stripe PaymentIntents.
//
// Unlike the redirect-first processors, Stripe confirms a tokenized payment
// method inline and only falls back to a redirect when the issuer demands
// additional authentication (3DS). The adapter therefore produces all three
// result shapes: succeeded, pending and requires_action.
package stripeadapter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	stripeapi "github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/payment"
	"github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/ucp"
)

// HandlerID is the registry identifier for the Stripe adapter.
const HandlerID = "stripe"

// Config holds the credentials the adapter is constructed with. Nothing is
// read from the environment here; the caller resolves configuration up front.
type Config struct {
	SecretKey     string
	WebhookSecret string
	PublicBaseURL string
	Mock          bool
}

// Adapter implements payment.Handler on top of Stripe PaymentIntents.
type Adapter struct {
	cfg     Config
	intents intentsAPI
}

// New builds the adapter. In mock mode no Stripe client is constructed and
// every intent is settled locally.
func New(cfg Config) *Adapter {
	if cfg.Mock {
		return &Adapter{cfg: cfg, intents: newMockIntents()}
	}
	return &Adapter{cfg: cfg, intents: &liveIntents{client: stripeapi.NewClient(cfg.SecretKey)}}
}

// newWithIntents is a test seam.
func newWithIntents(cfg Config, intents intentsAPI) *Adapter {
	return &Adapter{cfg: cfg, intents: intents}
}

func (a *Adapter) ID() string         { return HandlerID }
func (a *Adapter) Name() string       { return "Stripe" }
func (a *Adapter) UCPVersion() string { return ucp.Version }

// Configured reports whether the adapter has enough credentials to charge.
func (a *Adapter) Configured() bool {
	if a.cfg.Mock {
		return true
	}
	return a.cfg.SecretKey != ""
}

func (a *Adapter) Descriptor() ucp.HandlerDescriptor {
	return ucp.HandlerDescriptor{
		ID:               HandlerID,
		Name:             "Stripe",
		UCPVersion:       ucp.Version,
		SupportedMethods: []string{"card"},
		RequiresRedirect: false,
	}
}

// ProcessPayment confirms a PaymentIntent for the tokenized payment method.
// Validation happens before any network call is made.
func (a *Adapter) ProcessPayment(ctx context.Context, session payment.SessionView, data ucp.PaymentData) (result ucp.PaymentResult) {
	defer payment.Guard(HandlerID, &result)

	if data.Token == "" {
		return payment.ValidationFailed("stripe requires a tokenized payment method")
	}
	if session.AmountMinor <= 0 {
		return payment.ValidationFailed("payment amount must be positive")
	}

	params := &stripeapi.PaymentIntentCreateParams{
		Amount:        stripeapi.Int64(session.AmountMinor),
		Currency:      stripeapi.String(strings.ToLower(session.Currency)),
		PaymentMethod: stripeapi.String(data.Token),
		Confirm:       stripeapi.Bool(true),
		Description:   stripeapi.String(session.Description),
		ReturnURL:     stripeapi.String(a.cfg.PublicBaseURL + "/checkout/return"),
		Metadata: map[string]string{
			"checkout_session_id": session.ID,
			"shop_id":             session.ShopID,
		},
	}

	intent, err := a.intents.Create(ctx, params)
	if err != nil {
		var stripeErr *stripeapi.Error
		if errors.As(err, &stripeErr) && stripeErr.Type == stripeapi.ErrorTypeCard {
			txID := ""
			if stripeErr.PaymentIntent != nil {
				txID = stripeErr.PaymentIntent.ID
			}
			return payment.Failed(ucp.ErrCodePaymentFailed, declineMessage(stripeErr), txID)
		}
		return payment.Failed(payment.ProcessorErrorCode(HandlerID),
			fmt.Sprintf("stripe payment intent failed: %v", err), "")
	}

	return a.interpret(intent)
}

func (a *Adapter) interpret(intent *stripeapi.PaymentIntent) ucp.PaymentResult {
	switch intent.Status {
	case stripeapi.PaymentIntentStatusSucceeded:
		return payment.Succeeded(intent.ID)
	case stripeapi.PaymentIntentStatusProcessing:
		return payment.Pending(intent.ID)
	case stripeapi.PaymentIntentStatusRequiresAction:
		return payment.RequiresAction(intent.ID, redirectURL(intent), payment.ProcessorErrorCode(HandlerID))
	case stripeapi.PaymentIntentStatusRequiresPaymentMethod, stripeapi.PaymentIntentStatusCanceled:
		msg := "payment was declined"
		if intent.LastPaymentError != nil && intent.LastPaymentError.Msg != "" {
			msg = intent.LastPaymentError.Msg
		}
		return payment.Failed(ucp.ErrCodePaymentFailed, msg, intent.ID)
	default:
		return payment.Failed(payment.ProcessorErrorCode(HandlerID),
			fmt.Sprintf("unexpected payment intent status %q", intent.Status), intent.ID)
	}
}

// HandleWebhook re-reads the intent referenced by a webhook and reports its
// settled state. Stripe webhooks carry the full object, but re-fetching keeps
// the notification untrusted.
func (a *Adapter) HandleWebhook(ctx context.Context, transactionID string) (ucp.WebhookStatus, error) {
	intent, err := a.intents.Get(ctx, transactionID)
	if err != nil {
		return ucp.WebhookStatus{}, fmt.Errorf("failed to fetch payment intent %s: %w", transactionID, err)
	}

	switch intent.Status {
	case stripeapi.PaymentIntentStatusSucceeded:
		return ucp.WebhookStatus{Status: ucp.ResultSucceeded, Paid: true}, nil
	case stripeapi.PaymentIntentStatusProcessing:
		return ucp.WebhookStatus{Status: ucp.ResultPending}, nil
	case stripeapi.PaymentIntentStatusRequiresAction:
		return ucp.WebhookStatus{Status: ucp.ResultRequiresAction}, nil
	case stripeapi.PaymentIntentStatusRequiresPaymentMethod, stripeapi.PaymentIntentStatusCanceled:
		return ucp.WebhookStatus{Status: ucp.ResultFailed}, nil
	default:
		return ucp.WebhookStatus{Status: ucp.ResultPending}, nil
	}
}

// ReadWebhookEvent validates the Stripe-Signature header against the
// configured webhook secret and decodes the event payload.
func (a *Adapter) ReadWebhookEvent(r *http.Request, body []byte) (*stripeapi.Event, error) {
	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		return nil, fmt.Errorf("missing stripe signature header")
	}

	event, err := webhook.ConstructEvent(body, signature, a.cfg.WebhookSecret)
	if err != nil {
		return nil, fmt.Errorf("webhook signature validation failed: %w", err)
	}
	return &event, nil
}

func redirectURL(intent *stripeapi.PaymentIntent) string {
	if intent.NextAction != nil && intent.NextAction.RedirectToURL != nil {
		return intent.NextAction.RedirectToURL.URL
	}
	return ""
}

func declineMessage(err *stripeapi.Error) string {
	if err.Msg != "" {
		return err.Msg
	}
	return "payment was declined"
}

var _ payment.Handler = (*Adapter)(nil)
