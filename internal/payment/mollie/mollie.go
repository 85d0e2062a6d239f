// Package mollie implements the payment-handler contract for the Mollie
// hosted-checkout processor. Mollie is redirect-based: most payments send the
// customer to a hosted page and confirm asynchronously through a webhook.
package mollie

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"time"

	"github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/money"
	"github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/observability"
	"github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/payment"
	"github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/token"
	"github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/ucp"
)

const (
	HandlerID   = "mollie"
	handlerName = "Mollie"

	errCode = HandlerID + "_error"
)

// methodTable maps UCP payment method names to Mollie method names.
// Unrecognized input falls back to creditcard instead of failing hard.
var methodTable = map[string]string{
	"card":         "creditcard",
	"ideal":        "ideal",
	"paypal":       "paypal",
	"bancontact":   "bancontact",
	"banktransfer": "banktransfer",
}

const defaultMethod = "creditcard"

// Redirect-only methods require customer interaction in every mode, mock
// included.
var redirectMethods = map[string]bool{
	"ideal":        true,
	"paypal":       true,
	"bancontact":   true,
	"banktransfer": true,
}

func methodRequiresRedirect(mollieMethod string) bool {
	return redirectMethods[mollieMethod]
}

// Config carries the credentials and URL scheme for the adapter, resolved
// once at startup. The adapter never reads the process environment.
type Config struct {
	APIKey  string
	APIBase string
	// PublicBaseURL is the externally reachable base of this service, used
	// for the templated redirect and webhook URLs.
	PublicBaseURL string
	Mock          bool
}

type Adapter struct {
	cfg    Config
	client apiClient
	signer *token.Signer
}

func New(cfg Config, signer *token.Signer) *Adapter {
	var client apiClient
	if cfg.Mock {
		client = newMockAPIClient()
	} else {
		client = newHTTPAPIClient(cfg.APIKey, cfg.APIBase, observability.NewHTTPClient(15*time.Second))
	}
	return &Adapter{cfg: cfg, client: client, signer: signer}
}

// newWithClient is the test seam for injecting a counting or scripted client.
func newWithClient(cfg Config, signer *token.Signer, client apiClient) *Adapter {
	return &Adapter{cfg: cfg, client: client, signer: signer}
}

func (a *Adapter) ID() string         { return HandlerID }
func (a *Adapter) Name() string       { return handlerName }
func (a *Adapter) UCPVersion() string { return ucp.Version }

func (a *Adapter) Configured() bool {
	return a.cfg.Mock || a.cfg.APIKey != ""
}

func (a *Adapter) Descriptor() ucp.HandlerDescriptor {
	methods := make([]string, 0, len(methodTable))
	for name := range methodTable {
		methods = append(methods, name)
	}
	sort.Strings(methods)
	return ucp.HandlerDescriptor{
		ID:               HandlerID,
		Name:             handlerName,
		UCPVersion:       ucp.Version,
		SupportedMethods: methods,
		RequiresRedirect: true,
	}
}

func (a *Adapter) ProcessPayment(ctx context.Context, session payment.SessionView, data ucp.PaymentData) (result ucp.PaymentResult) {
	defer payment.Guard(HandlerID, &result)

	// Validation happens before anything touches the network.
	if data.Method == "" && data.Token == "" {
		return payment.ValidationFailed("payment data requires a method or a token")
	}
	if session.AmountMinor <= 0 {
		return payment.ValidationFailed("session amount must be positive")
	}

	method := methodTable[data.Method]
	if method == "" {
		method = defaultMethod
	}

	redirectURL, err := a.returnURL(session.ID)
	if err != nil {
		return payment.Failed(errCode, fmt.Sprintf("failed to build return url: %v", err), "")
	}

	created, err := a.client.CreatePayment(ctx, createPaymentRequest{
		Amount: paymentAmount{
			Currency: session.Currency,
			Value:    money.FormatMajor(session.AmountMinor),
		},
		Description: session.Description,
		RedirectURL: redirectURL,
		WebhookURL:  a.webhookURL(session.ID),
		Method:      method,
		Metadata: map[string]string{
			"session_id": session.ID,
			"shop_id":    session.ShopID,
		},
	})
	if err != nil {
		return payment.Failed(errCode, err.Error(), "")
	}

	return interpret(created)
}

// interpret classifies a Mollie payment into the three-outcome model.
func interpret(p *Payment) ucp.PaymentResult {
	switch p.Status {
	case statusPaid:
		return payment.Succeeded(p.ID)
	case statusOpen:
		return payment.RequiresAction(p.ID, p.checkoutURL(), errCode)
	case statusPending, statusAuthorized:
		if url := p.checkoutURL(); url != "" {
			return payment.RequiresAction(p.ID, url, errCode)
		}
		return payment.Pending(p.ID)
	case statusFailed, statusCanceled, statusExpired:
		return payment.Failed(ucp.ErrCodePaymentFailed, fmt.Sprintf("payment %s", p.Status), p.ID)
	default:
		return payment.Failed(errCode, fmt.Sprintf("unknown mollie status %q", p.Status), p.ID)
	}
}

func (a *Adapter) HandleWebhook(ctx context.Context, processorPaymentID string) (ucp.WebhookStatus, error) {
	p, err := a.client.GetPayment(ctx, processorPaymentID)
	if err != nil {
		return ucp.WebhookStatus{}, fmt.Errorf("failed to query mollie payment: %w", err)
	}

	status := ucp.WebhookStatus{Paid: p.Status == statusPaid}
	switch p.Status {
	case statusPaid:
		status.Status = ucp.ResultSucceeded
	case statusOpen:
		status.Status = ucp.ResultRequiresAction
	case statusPending, statusAuthorized:
		status.Status = ucp.ResultPending
	default:
		status.Status = ucp.ResultFailed
	}
	return status, nil
}

func (a *Adapter) returnURL(sessionID string) (string, error) {
	returnToken, err := a.signer.Mint(sessionID, HandlerID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/checkout/return?token=%s", a.cfg.PublicBaseURL, url.QueryEscape(returnToken)), nil
}

func (a *Adapter) webhookURL(sessionID string) string {
	return fmt.Sprintf("%s/webhooks/payment/%s?session=%s", a.cfg.PublicBaseURL, HandlerID, url.QueryEscape(sessionID))
}

var _ payment.Handler = (*Adapter)(nil)
