package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/models"
	"github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/ucp"
)

type fakeHandler struct {
	id         string
	configured bool
}

func (f *fakeHandler) ID() string         { return f.id }
func (f *fakeHandler) Name() string       { return f.id }
func (f *fakeHandler) UCPVersion() string { return ucp.Version }
func (f *fakeHandler) Configured() bool   { return f.configured }

func (f *fakeHandler) ProcessPayment(_ context.Context, _ SessionView, _ ucp.PaymentData) ucp.PaymentResult {
	return Succeeded("tx-" + f.id)
}

func (f *fakeHandler) HandleWebhook(_ context.Context, _ string) (ucp.WebhookStatus, error) {
	return ucp.WebhookStatus{Status: ucp.ResultSucceeded, Paid: true}, nil
}

func (f *fakeHandler) Descriptor() ucp.HandlerDescriptor {
	return ucp.HandlerDescriptor{ID: f.id, Name: f.id, UCPVersion: ucp.Version}
}

func TestRegistrySelect(t *testing.T) {
	t.Parallel()

	registry, err := NewRegistry(
		&fakeHandler{id: "mollie", configured: true},
		&fakeHandler{id: "google_pay", configured: true},
		&fakeHandler{id: "stripe", configured: false},
	)
	if err != nil {
		t.Fatalf("NewRegistry() error: %v", err)
	}

	configs := []models.PaymentHandlerConfig{
		{HandlerID: "google_pay", Enabled: true, Priority: 2},
		{HandlerID: "mollie", Enabled: true, Priority: 1},
		{HandlerID: "stripe", Enabled: true, Priority: 3},
	}

	tests := []struct {
		name      string
		configs   []models.PaymentHandlerConfig
		requested string
		wantID    string
		wantErr   error
	}{
		{
			name:    "no preference picks lowest priority",
			configs: configs,
			wantID:  "mollie",
		},
		{
			name:      "requested handler is honored",
			configs:   configs,
			requested: "google_pay",
			wantID:    "google_pay",
		},
		{
			name: "disabled handler is skipped",
			configs: []models.PaymentHandlerConfig{
				{HandlerID: "mollie", Enabled: false, Priority: 1},
				{HandlerID: "google_pay", Enabled: true, Priority: 2},
			},
			wantID: "google_pay",
		},
		{
			name:      "unconfigured handler never matches",
			configs:   configs,
			requested: "stripe",
			wantErr:   ErrNoHandlerAvailable,
		},
		{
			name:      "unknown request yields no handler",
			configs:   configs,
			requested: "paypal",
			wantErr:   ErrNoHandlerAvailable,
		},
		{
			name:    "empty config set yields no handler",
			wantErr: ErrNoHandlerAvailable,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			handler, err := registry.Select(tc.configs, tc.requested)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("Select() error = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Select() unexpected error: %v", err)
			}
			if handler.ID() != tc.wantID {
				t.Fatalf("Select() = %q, want %q", handler.ID(), tc.wantID)
			}
		})
	}
}

func TestNewRegistryRejectsDuplicates(t *testing.T) {
	t.Parallel()

	_, err := NewRegistry(
		&fakeHandler{id: "mollie", configured: true},
		&fakeHandler{id: "mollie", configured: true},
	)
	if err == nil {
		t.Fatal("expected error for duplicate handler id")
	}
}

func TestResultConstructors(t *testing.T) {
	t.Parallel()

	if res := Succeeded("tr_1"); !res.Success || res.Status != ucp.ResultSucceeded || res.TransactionID != "tr_1" {
		t.Errorf("Succeeded() = %+v", res)
	}

	if res := ValidationFailed("missing token"); res.Success || res.Status != ucp.ResultFailed || res.ErrorCode != ucp.ErrCodeValidation {
		t.Errorf("ValidationFailed() = %+v", res)
	}

	if res := Failed("mollie_error", "boom", "tr_2"); res.Success || res.TransactionID != "tr_2" {
		t.Errorf("Failed() must keep the transaction id: %+v", res)
	}

	if res := RequiresAction("tr_3", "https://pay.example/3ds", "mollie_error"); res.Status != ucp.ResultRequiresAction || res.RedirectURL == "" {
		t.Errorf("RequiresAction() = %+v", res)
	}

	// A redirect demand without a URL is a processor fault, not a valid outcome.
	if res := RequiresAction("tr_4", "", "mollie_error"); res.Status != ucp.ResultFailed || res.ErrorCode != "mollie_error" {
		t.Errorf("RequiresAction() without url = %+v", res)
	}

	if res := Pending("tr_5"); res.Status != ucp.ResultPending || res.Success {
		t.Errorf("Pending() = %+v", res)
	}
}

func TestGuardConvertsPanicToResult(t *testing.T) {
	t.Parallel()

	run := func() (result ucp.PaymentResult) {
		defer Guard("mollie", &result)
		panic("nil dereference in response parsing")
	}

	res := run()
	if res.Success || res.Status != ucp.ResultFailed {
		t.Fatalf("Guard() produced %+v, want failed result", res)
	}
	if res.ErrorCode != "mollie_error" {
		t.Fatalf("Guard() error code = %q, want mollie_error", res.ErrorCode)
	}
}
