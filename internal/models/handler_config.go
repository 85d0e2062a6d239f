package models

import "time"

// PaymentHandlerConfig is one per-shop, per-handler configuration row. The
// Config blob is opaque to the checkout service and interpreted only by the
// matching payment adapter; it is encrypted at rest. Unique per
// (shop, handler). Written by shop administration, read-only here.
type PaymentHandlerConfig struct {
	ShopID      string            `json:"shop_id" yaml:"shop_id"`
	HandlerID   string            `json:"handler_id" yaml:"handler_id"`
	DisplayName string            `json:"display_name" yaml:"display_name"`
	Enabled     bool              `json:"enabled" yaml:"enabled"`
	Priority    int               `json:"priority" yaml:"priority"`
	Config      map[string]string `json:"config" yaml:"config"`
	UpdatedAt   time.Time         `json:"updated_at" yaml:"-"`
}
