// Package platform holds the Shopware-shaped structures this service consumes
// at its commerce-platform boundary. Fields mirror the store API payloads; the
// mapper converts them into UCP shapes.
package platform

import "github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/money"

// Line item types as reported by the platform. Anything other than goods
// (promotions, discounts) is folded into totals instead of the line-item set.
const (
	LineItemTypeProduct   = "product"
	LineItemTypePromotion = "promotion"
)

// CalculatedPrice is a platform price breakdown in major units.
type CalculatedPrice struct {
	UnitPrice       float64         `json:"unitPrice"`
	TotalPrice      float64         `json:"totalPrice"`
	Quantity        int             `json:"quantity"`
	CalculatedTaxes []money.TaxLine `json:"calculatedTaxes"`
}

// CartLineItem is one entry of a platform cart.
type CartLineItem struct {
	ID           string          `json:"id"`
	ReferencedID string          `json:"referencedId"`
	Type         string          `json:"type"`
	Label        string          `json:"label"`
	Quantity     int             `json:"quantity"`
	Good         bool            `json:"good"`
	Price        CalculatedPrice `json:"price"`
}

// CartPrice is the platform order summary.
type CartPrice struct {
	NetPrice        float64         `json:"netPrice"`
	TotalPrice      float64         `json:"totalPrice"`
	PositionPrice   float64         `json:"positionPrice"`
	CalculatedTaxes []money.TaxLine `json:"calculatedTaxes"`
}

// DeliveryTime is the platform shipping-method delivery estimate.
type DeliveryTime struct {
	Min  int    `json:"min"`
	Max  int    `json:"max"`
	Unit string `json:"unit"`
}

// ShippingMethod is one selectable platform shipping method.
type ShippingMethod struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Description  string        `json:"description"`
	DeliveryTime *DeliveryTime `json:"deliveryTime"`
}

// Delivery carries the shipping costs calculated for a shipping method.
type Delivery struct {
	ShippingMethodID string          `json:"shippingMethodId"`
	ShippingCosts    CalculatedPrice `json:"shippingCosts"`
}

// Cart is the platform cart snapshot handed to the mapper.
type Cart struct {
	Token      string         `json:"token"`
	Currency   string         `json:"currency"`
	LineItems  []CartLineItem `json:"lineItems"`
	Price      CartPrice      `json:"price"`
	Deliveries []Delivery     `json:"deliveries"`
}

// Address is the platform customer-address record. The three identifier
// fields reference platform entities and are resolved by a lookup
// collaborator, never by the mapper.
type Address struct {
	FirstName              string `json:"firstName"`
	LastName               string `json:"lastName"`
	Street                 string `json:"street"`
	AdditionalAddressLine1 string `json:"additionalAddressLine1"`
	City                   string `json:"city"`
	Zipcode                string `json:"zipcode"`
	PhoneNumber            string `json:"phoneNumber"`
	CountryID              string `json:"countryId"`
	CountryStateID         string `json:"countryStateId"`
	SalutationID           string `json:"salutationId"`
}
