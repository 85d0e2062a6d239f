package stripeadapter

import (
	"context"
	"fmt"
	"strings"
	"sync"

	stripeapi "github.com/stripe/stripe-go/v84"
)

// intentsAPI is the slice of the Stripe client the adapter depends on.
type intentsAPI interface {
	Create(ctx context.Context, params *stripeapi.PaymentIntentCreateParams) (*stripeapi.PaymentIntent, error)
	Get(ctx context.Context, id string) (*stripeapi.PaymentIntent, error)
}

type liveIntents struct {
	client *stripeapi.Client
}

func (l *liveIntents) Create(ctx context.Context, params *stripeapi.PaymentIntentCreateParams) (*stripeapi.PaymentIntent, error) {
	return l.client.V1PaymentIntents.Create(ctx, params)
}

func (l *liveIntents) Get(ctx context.Context, id string) (*stripeapi.PaymentIntent, error) {
	return l.client.V1PaymentIntents.Retrieve(ctx, id, nil)
}

// mockIntents settles payment intents in memory. Tokens containing "3ds"
// require a redirect step, tokens containing "declined" fail; everything else
// succeeds immediately.
type mockIntents struct {
	mu      sync.Mutex
	counter int
	intents map[string]*stripeapi.PaymentIntent
}

func newMockIntents() *mockIntents {
	return &mockIntents{intents: make(map[string]*stripeapi.PaymentIntent)}
}

func (m *mockIntents) Create(ctx context.Context, params *stripeapi.PaymentIntentCreateParams) (*stripeapi.PaymentIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.counter++
	intent := &stripeapi.PaymentIntent{
		ID:     fmt.Sprintf("pi_mock_%04d", m.counter),
		Status: stripeapi.PaymentIntentStatusSucceeded,
	}
	if params.Amount != nil {
		intent.Amount = *params.Amount
	}

	token := ""
	if params.PaymentMethod != nil {
		token = *params.PaymentMethod
	}
	switch {
	case containsFold(token, "3ds"):
		intent.Status = stripeapi.PaymentIntentStatusRequiresAction
		intent.NextAction = &stripeapi.PaymentIntentNextAction{
			RedirectToURL: &stripeapi.PaymentIntentNextActionRedirectToURL{
				URL: "https://hooks.stripe.com/redirect/authenticate/" + intent.ID,
			},
		}
	case containsFold(token, "declined"):
		intent.Status = stripeapi.PaymentIntentStatusRequiresPaymentMethod
		intent.LastPaymentError = &stripeapi.Error{Msg: "Your card was declined."}
	}

	m.intents[intent.ID] = intent
	return cloneIntent(intent), nil
}

func (m *mockIntents) Get(ctx context.Context, id string) (*stripeapi.PaymentIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	intent, ok := m.intents[id]
	if !ok {
		return nil, fmt.Errorf("no such payment intent: %s", id)
	}
	return cloneIntent(intent), nil
}

// settleIntent marks a stored intent as succeeded, standing in for the
// customer completing authentication. Test hook only.
func (m *mockIntents) settleIntent(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if intent, ok := m.intents[id]; ok {
		intent.Status = stripeapi.PaymentIntentStatusSucceeded
		intent.NextAction = nil
	}
}

func cloneIntent(intent *stripeapi.PaymentIntent) *stripeapi.PaymentIntent {
	clone := *intent
	return &clone
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), substr)
}
