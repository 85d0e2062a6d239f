// Package ucp defines the Unified Checkout Protocol contract: the uniform
// shapes every commerce-platform cart and every payment processor response is
// normalized into. All monetary fields are minor-unit integers in the session
// currency.
package ucp

// Version is the protocol version advertised by every payment handler.
const Version = "2024-10"

// TotalType names one monetary component of the order summary.
type TotalType string

const (
	TotalTypeSubtotal    TotalType = "subtotal"
	TotalTypeFulfillment TotalType = "fulfillment"
	TotalTypeTax         TotalType = "tax"
	TotalTypeTotal       TotalType = "total"
)

// Item is the purchasable unit referenced by a line item.
type Item struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	UnitPrice int64  `json:"unit_price"`
	Currency  string `json:"currency"`
}

// LineItem is one goods position of a checkout session.
type LineItem struct {
	ID       string `json:"id"`
	Item     Item   `json:"item"`
	Quantity int    `json:"quantity"`
	Total    int64  `json:"total"`
}

// Total is a named monetary component of the order summary.
type Total struct {
	Type     TotalType `json:"type"`
	Amount   int64     `json:"amount"`
	Currency string    `json:"currency"`
}

// FulfillmentOption is one selectable shipping method.
type FulfillmentOption struct {
	ID              string `json:"id"`
	Label           string `json:"label"`
	Price           int64  `json:"price"`
	Currency        string `json:"currency"`
	DeliveryMinDays int    `json:"delivery_min_days"`
	DeliveryMaxDays int    `json:"delivery_max_days"`
}

// FulfillmentGroup bundles the available options with at most one selection.
type FulfillmentGroup struct {
	Options          []FulfillmentOption `json:"options"`
	SelectedOptionID string              `json:"selected_option_id,omitempty"`
}

// Address is the UCP postal-address shape.
type Address struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Street      string `json:"street"`
	StreetExtra string `json:"street_extra,omitempty"`
	Locality    string `json:"locality"`
	PostalCode  string `json:"postal_code"`
	Region      string `json:"region,omitempty"`
	Country     string `json:"country"`
	Phone       string `json:"phone,omitempty"`
}

// PaymentData is the caller-supplied payment input for a complete call.
type PaymentData struct {
	Method string `json:"method,omitempty"`
	Token  string `json:"token,omitempty"`
}

// ResultStatus is the outcome classification of one processor invocation.
type ResultStatus string

const (
	ResultSucceeded      ResultStatus = "succeeded"
	ResultPending        ResultStatus = "pending"
	ResultRequiresAction ResultStatus = "requires_action"
	ResultFailed         ResultStatus = "failed"
)

// Stable error codes surfaced on failed payment results.
const (
	ErrCodeValidation         = "validation_error"
	ErrCodePaymentFailed      = "payment_failed"
	ErrCodeNoHandlerAvailable = "no_handler_available"
	ErrCodeStateConflict      = "state_conflict"
)

// PaymentResult is the normalized outcome of one processor call.
type PaymentResult struct {
	Success       bool         `json:"success"`
	Status        ResultStatus `json:"status"`
	TransactionID string       `json:"transaction_id,omitempty"`
	RedirectURL   string       `json:"redirect_url,omitempty"`
	ErrorCode     string       `json:"error_code,omitempty"`
	ErrorMessage  string       `json:"error_message,omitempty"`
}

// WebhookStatus is the processor-side state queried during reconciliation.
type WebhookStatus struct {
	Status ResultStatus `json:"status"`
	Paid   bool         `json:"paid"`
}

// HandlerDescriptor is the static capability advertisement of one payment
// handler, served to discovery clients. It never varies with session state.
type HandlerDescriptor struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	UCPVersion       string   `json:"ucp_version"`
	SupportedMethods []string `json:"supported_methods"`
	RequiresRedirect bool     `json:"requires_redirect"`
}
