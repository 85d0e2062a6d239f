package googlepay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
)

const defaultGatewayBase = "https://gateway.example.com/v1"

const (
	chargeStatusCaptured   = "captured"
	chargeStatusProcessing = "processing"
	chargeStatusChallenge  = "challenge_required"
	chargeStatusDeclined   = "declined"
)

type chargeRequest struct {
	MerchantID  string `json:"merchant_id"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description"`
	WalletToken string `json:"wallet_token"`
	Reference   string `json:"reference"`
}

type charge struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	ChallengeURL  string `json:"challenge_url,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

// chargeGateway is the processor-call strategy for wallet charges.
type chargeGateway interface {
	Charge(ctx context.Context, req chargeRequest) (*charge, error)
	GetCharge(ctx context.Context, transactionID string) (*charge, error)
}

type httpGateway struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func newHTTPGateway(apiKey, baseURL string, client *http.Client) *httpGateway {
	if baseURL == "" {
		baseURL = defaultGatewayBase
	}
	return &httpGateway{apiKey: apiKey, baseURL: baseURL, httpClient: client}
}

func (g *httpGateway) Charge(ctx context.Context, req chargeRequest) (*charge, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode charge request: %w", err)
	}
	return g.do(ctx, http.MethodPost, g.baseURL+"/charges", bytes.NewReader(body))
}

func (g *httpGateway) GetCharge(ctx context.Context, transactionID string) (*charge, error) {
	return g.do(ctx, http.MethodGet, g.baseURL+"/charges/"+transactionID, nil)
}

func (g *httpGateway) do(ctx context.Context, method, url string, body io.Reader) (*charge, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, raw)
	}

	var c charge
	if err := json.NewDecoder(resp.Body).Decode(&c); err != nil {
		return nil, fmt.Errorf("malformed gateway response: %w", err)
	}
	if c.TransactionID == "" {
		return nil, fmt.Errorf("gateway response missing transaction id")
	}
	return &c, nil
}

// mockGateway captures every structurally valid token immediately and never
// reaches the network.
type mockGateway struct {
	mu      sync.Mutex
	seq     int
	charges map[string]*charge
}

func newMockGateway() *mockGateway {
	return &mockGateway{charges: make(map[string]*charge)}
}

func (g *mockGateway) Charge(_ context.Context, req chargeRequest) (*charge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.seq++
	c := &charge{
		TransactionID: fmt.Sprintf("ch_mock_%04d", g.seq),
		Status:        chargeStatusCaptured,
	}
	g.charges[c.TransactionID] = c
	return cloneCharge(c), nil
}

func (g *mockGateway) GetCharge(_ context.Context, transactionID string) (*charge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	c, ok := g.charges[transactionID]
	if !ok {
		return nil, fmt.Errorf("charge %s not found", transactionID)
	}
	return cloneCharge(c), nil
}

func cloneCharge(c *charge) *charge {
	copied := *c
	return &copied
}
