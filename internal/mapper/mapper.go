// Package mapper converts Shopware cart, price and shipping structures into
// UCP line items, totals, fulfillment options and address records. Conversion
// never loses monetary precision: every emitted amount is a minor-unit integer
// in the session currency. The mapper performs no currency conversion and no
// platform lookups.
package mapper

import (
	"github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/money"
	"github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/platform"
	"github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/ucp"
)

type Mapper struct{}

func New() *Mapper {
	return &Mapper{}
}

// MapLineItems converts platform cart line items to UCP line items. Promotion
// and discount lines are excluded; they surface through totals instead. Input
// order is preserved. An empty cart maps to an empty sequence.
func (m *Mapper) MapLineItems(cart *platform.Cart, currency string) []ucp.LineItem {
	items := make([]ucp.LineItem, 0, len(cart.LineItems))
	for _, line := range cart.LineItems {
		if !isGoods(line) {
			continue
		}

		unitPrice := money.ToMinor(line.Price.UnitPrice)
		quantity := line.Quantity
		if quantity <= 0 {
			quantity = 1
		}

		items = append(items, ucp.LineItem{
			ID: line.ID,
			Item: ucp.Item{
				ID:        line.ReferencedID,
				Title:     line.Label,
				UnitPrice: unitPrice,
				Currency:  currency,
			},
			Quantity: quantity,
			Total:    unitPrice * int64(quantity),
		})
	}
	return items
}

// MapCartTotals produces the four order-summary components. All four are
// always emitted, zero amounts included.
func (m *Mapper) MapCartTotals(cart *platform.Cart, currency string) []ucp.Total {
	subtotal := money.ToMinor(cart.Price.PositionPrice)

	var fulfillment int64
	taxLines := append([]money.TaxLine(nil), cart.Price.CalculatedTaxes...)
	for _, delivery := range cart.Deliveries {
		fulfillment += money.ToMinor(delivery.ShippingCosts.TotalPrice)
		taxLines = append(taxLines, delivery.ShippingCosts.CalculatedTaxes...)
	}

	return []ucp.Total{
		{Type: ucp.TotalTypeSubtotal, Amount: subtotal, Currency: currency},
		{Type: ucp.TotalTypeFulfillment, Amount: fulfillment, Currency: currency},
		{Type: ucp.TotalTypeTax, Amount: money.SumTax(taxLines), Currency: currency},
		{Type: ucp.TotalTypeTotal, Amount: money.ToMinor(cart.Price.TotalPrice), Currency: currency},
	}
}

// MapToShopwareAddress renames UCP address fields into the platform record and
// injects the externally resolved country, salutation and state identifiers.
// Identifier resolution is the lookup collaborator's job, not the mapper's.
func (m *Mapper) MapToShopwareAddress(addr ucp.Address, countryID, salutationID, stateID string) platform.Address {
	return platform.Address{
		FirstName:              addr.FirstName,
		LastName:               addr.LastName,
		Street:                 addr.Street,
		AdditionalAddressLine1: addr.StreetExtra,
		City:                   addr.Locality,
		Zipcode:                addr.PostalCode,
		PhoneNumber:            addr.Phone,
		CountryID:              countryID,
		SalutationID:           salutationID,
		CountryStateID:         stateID,
	}
}

// MapFulfillment builds one option per shipping method, pricing each from the
// matching delivery's shipping costs. A method without a matching delivery
// yields a zero-price option. A selectedID that matches no option leaves the
// selection empty; the caller decides whether that is an error.
func (m *Mapper) MapFulfillment(methods []platform.ShippingMethod, deliveries []platform.Delivery, selectedID, currency string) ucp.FulfillmentGroup {
	costs := make(map[string]int64, len(deliveries))
	for _, delivery := range deliveries {
		costs[delivery.ShippingMethodID] += money.ToMinor(delivery.ShippingCosts.TotalPrice)
	}

	group := ucp.FulfillmentGroup{
		Options: make([]ucp.FulfillmentOption, 0, len(methods)),
	}
	for _, method := range methods {
		option := ucp.FulfillmentOption{
			ID:       method.ID,
			Label:    method.Name,
			Price:    costs[method.ID],
			Currency: currency,
		}
		if method.DeliveryTime != nil {
			option.DeliveryMinDays = method.DeliveryTime.Min
			option.DeliveryMaxDays = method.DeliveryTime.Max
		}
		group.Options = append(group.Options, option)
		if method.ID == selectedID {
			group.SelectedOptionID = selectedID
		}
	}
	return group
}

func isGoods(line platform.CartLineItem) bool {
	if line.Type == platform.LineItemTypePromotion {
		return false
	}
	return line.Good || line.Type == platform.LineItemTypeProduct
}
