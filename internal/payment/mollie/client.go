package mollie

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
)

const defaultAPIBaseURL = "https://api.mollie.com/v2"

// Mollie payment statuses as returned by the payments API.
const (
	statusOpen       = "open"
	statusPending    = "pending"
	statusAuthorized = "authorized"
	statusPaid       = "paid"
	statusFailed     = "failed"
	statusCanceled   = "canceled"
	statusExpired    = "expired"
)

type paymentAmount struct {
	Currency string `json:"currency"`
	Value    string `json:"value"`
}

type createPaymentRequest struct {
	Amount      paymentAmount     `json:"amount"`
	Description string            `json:"description"`
	RedirectURL string            `json:"redirectUrl"`
	WebhookURL  string            `json:"webhookUrl"`
	Method      string            `json:"method,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type paymentLinks struct {
	Checkout *struct {
		Href string `json:"href"`
	} `json:"checkout"`
}

type Payment struct {
	ID     string       `json:"id"`
	Status string       `json:"status"`
	Links  paymentLinks `json:"_links"`
}

func (p *Payment) checkoutURL() string {
	if p.Links.Checkout == nil {
		return ""
	}
	return p.Links.Checkout.Href
}

// apiClient is the processor-call strategy. The live implementation talks to
// the Mollie API; the mock implementation synthesizes deterministic responses
// so mapping and state transitions can be exercised without the processor.
type apiClient interface {
	CreatePayment(ctx context.Context, req createPaymentRequest) (*Payment, error)
	GetPayment(ctx context.Context, paymentID string) (*Payment, error)
}

type httpAPIClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func newHTTPAPIClient(apiKey, baseURL string, client *http.Client) *httpAPIClient {
	if baseURL == "" {
		baseURL = defaultAPIBaseURL
	}
	return &httpAPIClient{apiKey: apiKey, baseURL: baseURL, httpClient: client}
}

func (c *httpAPIClient) CreatePayment(ctx context.Context, req createPaymentRequest) (*Payment, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payment request: %w", err)
	}
	return c.do(ctx, http.MethodPost, c.baseURL+"/payments", bytes.NewReader(body))
}

func (c *httpAPIClient) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	return c.do(ctx, http.MethodGet, c.baseURL+"/payments/"+paymentID, nil)
}

func (c *httpAPIClient) do(ctx context.Context, method, url string, body io.Reader) (*Payment, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mollie request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("mollie returned status %d: %s", resp.StatusCode, raw)
	}

	var p Payment
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("malformed mollie response: %w", err)
	}
	if p.ID == "" {
		return nil, fmt.Errorf("mollie response missing payment id")
	}
	return &p, nil
}

// mockAPIClient never reaches the network. Created payments get a
// deterministic id; redirect methods come back open with a checkout link and
// direct methods come back paid, matching the live status model.
type mockAPIClient struct {
	mu       sync.Mutex
	seq      int
	payments map[string]*Payment
}

func newMockAPIClient() *mockAPIClient {
	return &mockAPIClient{payments: make(map[string]*Payment)}
}

func (c *mockAPIClient) CreatePayment(_ context.Context, req createPaymentRequest) (*Payment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	p := &Payment{ID: fmt.Sprintf("tr_mock_%04d", c.seq)}
	if methodRequiresRedirect(req.Method) {
		p.Status = statusOpen
		p.Links.Checkout = &struct {
			Href string `json:"href"`
		}{Href: "https://pay.mollie.test/checkout/" + p.ID}
	} else {
		p.Status = statusPaid
	}
	c.payments[p.ID] = p
	return clonePayment(p), nil
}

func (c *mockAPIClient) GetPayment(_ context.Context, paymentID string) (*Payment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.payments[paymentID]
	if !ok {
		return nil, fmt.Errorf("mollie payment %s not found", paymentID)
	}
	return clonePayment(p), nil
}

// completePayment flips a mock payment to its terminal state. Tests use it to
// simulate the customer finishing (or abandoning) the hosted checkout.
func (c *mockAPIClient) completePayment(paymentID, status string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.payments[paymentID]; ok {
		p.Status = status
	}
}

func clonePayment(p *Payment) *Payment {
	copied := *p
	return &copied
}
