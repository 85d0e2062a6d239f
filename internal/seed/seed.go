package seed

// Package seed loads initial per-shop payment handler configuration from a
// YAML file. It covers installations that want handler setup checked into
// ops config instead of managed through the API.

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/models"
)

type File struct {
	Shops []ShopSeed `yaml:"shops"`
}

type ShopSeed struct {
	ShopID   string        `yaml:"shop_id"`
	Handlers []HandlerSeed `yaml:"handlers"`
}

type HandlerSeed struct {
	HandlerID   string            `yaml:"handler_id"`
	DisplayName string            `yaml:"display_name"`
	Enabled     bool              `yaml:"enabled"`
	Priority    int               `yaml:"priority"`
	Config      map[string]string `yaml:"config"`
}

// Load reads and validates a seed file, returning flattened handler configs
// ready for the store.
func Load(path string) ([]models.PaymentHandlerConfig, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return Parse(content)
}

func Parse(content []byte) ([]models.PaymentHandlerConfig, error) {
	var file File
	if err := yaml.Unmarshal(content, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validate(&file); err != nil {
		return nil, err
	}

	var configs []models.PaymentHandlerConfig
	for _, shop := range file.Shops {
		for _, handler := range shop.Handlers {
			cfg := models.PaymentHandlerConfig{
				ShopID:      shop.ShopID,
				HandlerID:   handler.HandlerID,
				DisplayName: handler.DisplayName,
				Enabled:     handler.Enabled,
				Priority:    handler.Priority,
				Config:      handler.Config,
			}
			if cfg.Config == nil {
				cfg.Config = map[string]string{}
			}
			configs = append(configs, cfg)
		}
	}
	return configs, nil
}

func validate(file *File) error {
	if len(file.Shops) == 0 {
		return fmt.Errorf("at least one shop is required")
	}

	for i, shop := range file.Shops {
		if strings.TrimSpace(shop.ShopID) == "" {
			return fmt.Errorf("shop %d: shop_id is required", i)
		}
		if len(shop.Handlers) == 0 {
			return fmt.Errorf("shop %s: at least one handler is required", shop.ShopID)
		}

		seen := make(map[string]bool)
		for _, handler := range shop.Handlers {
			if strings.TrimSpace(handler.HandlerID) == "" {
				return fmt.Errorf("shop %s: handler_id is required", shop.ShopID)
			}
			if handler.Priority <= 0 {
				return fmt.Errorf("shop %s: handler %s: priority must be positive", shop.ShopID, handler.HandlerID)
			}
			if seen[handler.HandlerID] {
				return fmt.Errorf("shop %s: duplicate handler: %s", shop.ShopID, handler.HandlerID)
			}
			seen[handler.HandlerID] = true
		}
	}
	return nil
}
