// Package googlepay implements the payment-handler contract for Google Pay
// wallet tokens. The adapter validates the wallet token envelope locally and
// submits it as a direct charge; there is no hosted checkout page, so the only
// redirect outcome is a 3-D Secure escalation reported by the gateway.
package googlepay

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/money"
	"github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/observability"
	"github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/payment"
	"github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/ucp"
)

const (
	HandlerID   = "google_pay"
	handlerName = "Google Pay"

	errCode = HandlerID + "_error"
)

// tokenEnvelope is the outer shape of a Google Pay payment token.
type tokenEnvelope struct {
	ProtocolVersion string `json:"protocolVersion"`
	Signature       string `json:"signature"`
	SignedMessage   string `json:"signedMessage"`
}

// Config carries gateway credentials, resolved once at startup.
type Config struct {
	MerchantID        string
	GatewayMerchantID string
	GatewayAPIKey     string
	GatewayBase       string
	PublicBaseURL     string
	Mock              bool
}

type Adapter struct {
	cfg     Config
	gateway chargeGateway
}

func New(cfg Config) *Adapter {
	var gateway chargeGateway
	if cfg.Mock {
		gateway = newMockGateway()
	} else {
		gateway = newHTTPGateway(cfg.GatewayAPIKey, cfg.GatewayBase, observability.NewHTTPClient(15*time.Second))
	}
	return &Adapter{cfg: cfg, gateway: gateway}
}

func newWithGateway(cfg Config, gateway chargeGateway) *Adapter {
	return &Adapter{cfg: cfg, gateway: gateway}
}

func (a *Adapter) ID() string         { return HandlerID }
func (a *Adapter) Name() string       { return handlerName }
func (a *Adapter) UCPVersion() string { return ucp.Version }

func (a *Adapter) Configured() bool {
	if a.cfg.Mock {
		return a.cfg.GatewayMerchantID != ""
	}
	return a.cfg.GatewayMerchantID != "" && a.cfg.GatewayAPIKey != ""
}

func (a *Adapter) Descriptor() ucp.HandlerDescriptor {
	return ucp.HandlerDescriptor{
		ID:               HandlerID,
		Name:             handlerName,
		UCPVersion:       ucp.Version,
		SupportedMethods: []string{"card"},
		RequiresRedirect: false,
	}
}

func (a *Adapter) ProcessPayment(ctx context.Context, session payment.SessionView, data ucp.PaymentData) (result ucp.PaymentResult) {
	defer payment.Guard(HandlerID, &result)

	envelope, err := decodeToken(data.Token)
	if err != nil {
		return payment.ValidationFailed(err.Error())
	}
	if session.AmountMinor <= 0 {
		return payment.ValidationFailed("session amount must be positive")
	}

	charge, err := a.gateway.Charge(ctx, chargeRequest{
		MerchantID:  a.cfg.GatewayMerchantID,
		Amount:      money.FormatMajor(session.AmountMinor),
		Currency:    session.Currency,
		Description: session.Description,
		WalletToken: envelope.SignedMessage,
		Reference:   session.ID,
	})
	if err != nil {
		return payment.Failed(errCode, err.Error(), "")
	}

	switch charge.Status {
	case chargeStatusCaptured:
		return payment.Succeeded(charge.TransactionID)
	case chargeStatusProcessing:
		return payment.Pending(charge.TransactionID)
	case chargeStatusChallenge:
		return payment.RequiresAction(charge.TransactionID, charge.ChallengeURL, errCode)
	case chargeStatusDeclined:
		return payment.Failed(ucp.ErrCodePaymentFailed, charge.Reason, charge.TransactionID)
	default:
		return payment.Failed(errCode, fmt.Sprintf("unknown gateway status %q", charge.Status), charge.TransactionID)
	}
}

func (a *Adapter) HandleWebhook(ctx context.Context, processorPaymentID string) (ucp.WebhookStatus, error) {
	charge, err := a.gateway.GetCharge(ctx, processorPaymentID)
	if err != nil {
		return ucp.WebhookStatus{}, fmt.Errorf("failed to query gateway charge: %w", err)
	}

	status := ucp.WebhookStatus{Paid: charge.Status == chargeStatusCaptured}
	switch charge.Status {
	case chargeStatusCaptured:
		status.Status = ucp.ResultSucceeded
	case chargeStatusProcessing:
		status.Status = ucp.ResultPending
	case chargeStatusChallenge:
		status.Status = ucp.ResultRequiresAction
	default:
		status.Status = ucp.ResultFailed
	}
	return status, nil
}

// decodeToken unwraps and structurally validates a wallet token. No network
// involved; cryptographic verification happens gateway-side.
func decodeToken(raw string) (*tokenEnvelope, error) {
	if raw == "" {
		return nil, fmt.Errorf("payment data requires a wallet token")
	}

	decoded := []byte(raw)
	if b, err := base64.StdEncoding.DecodeString(raw); err == nil {
		decoded = b
	}

	var envelope tokenEnvelope
	if err := json.Unmarshal(decoded, &envelope); err != nil {
		return nil, fmt.Errorf("wallet token is not a valid token envelope")
	}
	if envelope.ProtocolVersion == "" || envelope.Signature == "" || envelope.SignedMessage == "" {
		return nil, fmt.Errorf("wallet token envelope is missing required fields")
	}
	return &envelope, nil
}

var _ payment.Handler = (*Adapter)(nil)
