package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/ucp"
)

type SessionStatus string

const (
	StatusCreated        SessionStatus = "created"
	StatusRequiresAction SessionStatus = "requires_action"
	StatusPending        SessionStatus = "pending"
	StatusSucceeded      SessionStatus = "succeeded"
	StatusFailed         SessionStatus = "failed"
	StatusCanceled       SessionStatus = "canceled"
)

// IsTerminal reports whether no further transitions are accepted.
func (s SessionStatus) IsTerminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCanceled
}

// CartSnapshot is the mapped UCP view of the platform cart, frozen at session
// creation. Currency is immutable for the session lifetime.
type CartSnapshot struct {
	Currency    string                `json:"currency"`
	LineItems   []ucp.LineItem        `json:"line_items"`
	Totals      []ucp.Total           `json:"totals"`
	Fulfillment *ucp.FulfillmentGroup `json:"fulfillment,omitempty"`
}

// TotalAmount returns the minor-unit amount of the given summary component.
func (c CartSnapshot) TotalAmount(t ucp.TotalType) int64 {
	for _, total := range c.Totals {
		if total.Type == t {
			return total.Amount
		}
	}
	return 0
}

// CheckoutSession is one in-progress or completed purchase attempt. It is
// owned exclusively by the checkout service; payment handlers only ever see a
// read view of it.
type CheckoutSession struct {
	ID            uuid.UUID     `json:"id"`
	ShopID        string        `json:"shop_id"`
	Cart          CartSnapshot  `json:"cart"`
	Status        SessionStatus `json:"status"`
	HandlerID     string        `json:"handler_id,omitempty"`
	TransactionID string        `json:"transaction_id,omitempty"`
	FailureReason string        `json:"failure_reason,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}
