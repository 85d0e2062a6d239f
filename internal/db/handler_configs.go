package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/crypto"
	"github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/models"
)

// HandlerConfigStore persists per-shop payment handler configuration. The
// config blob may carry processor credentials, so it is encrypted at rest.
type HandlerConfigStore struct {
	pool   *pgxpool.Pool
	crypto crypto.Encryptor
}

func NewHandlerConfigStore(pool *pgxpool.Pool, encryptor crypto.Encryptor) (*HandlerConfigStore, error) {
	if encryptor == nil {
		return nil, fmt.Errorf("encryptor is required")
	}

	return &HandlerConfigStore{
		pool:   pool,
		crypto: encryptor,
	}, nil
}

func (s *HandlerConfigStore) Upsert(ctx context.Context, cfg *models.PaymentHandlerConfig) error {
	blob, err := s.encodeConfig(cfg.Config)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO payment_handler_configs (shop_id, handler_id, display_name, enabled, priority, config, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (shop_id, handler_id) DO UPDATE
		SET display_name = EXCLUDED.display_name,
		    enabled = EXCLUDED.enabled,
		    priority = EXCLUDED.priority,
		    config = EXCLUDED.config,
		    updated_at = NOW()
	`
	_, err = s.pool.Exec(ctx, query,
		cfg.ShopID, cfg.HandlerID, cfg.DisplayName, cfg.Enabled, cfg.Priority, blob)
	if err != nil {
		return fmt.Errorf("failed to upsert handler config: %w", err)
	}
	return nil
}

// ListByShop returns all handler configurations for a shop ordered by
// priority, lowest value first.
func (s *HandlerConfigStore) ListByShop(ctx context.Context, shopID string) ([]models.PaymentHandlerConfig, error) {
	query := `
		SELECT shop_id, handler_id, display_name, enabled, priority, config, updated_at
		FROM payment_handler_configs
		WHERE shop_id = $1
		ORDER BY priority ASC, handler_id ASC
	`
	rows, err := s.pool.Query(ctx, query, shopID)
	if err != nil {
		return nil, fmt.Errorf("failed to list handler configs: %w", err)
	}
	defer rows.Close()

	var configs []models.PaymentHandlerConfig
	for rows.Next() {
		var (
			cfg  models.PaymentHandlerConfig
			blob string
		)
		if err := rows.Scan(&cfg.ShopID, &cfg.HandlerID, &cfg.DisplayName,
			&cfg.Enabled, &cfg.Priority, &blob, &cfg.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan handler config: %w", err)
		}

		cfg.Config, err = s.decodeConfig(blob)
		if err != nil {
			return nil, err
		}
		configs = append(configs, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read handler configs: %w", err)
	}
	return configs, nil
}

func (s *HandlerConfigStore) encodeConfig(config map[string]string) (string, error) {
	if config == nil {
		config = map[string]string{}
	}

	plaintext, err := json.Marshal(config)
	if err != nil {
		return "", fmt.Errorf("failed to marshal handler config: %w", err)
	}

	ciphertext, err := s.crypto.Encrypt(string(plaintext))
	if err != nil {
		return "", fmt.Errorf("failed to encrypt handler config: %w", err)
	}
	return ciphertext, nil
}

func (s *HandlerConfigStore) decodeConfig(blob string) (map[string]string, error) {
	if blob == "" {
		return map[string]string{}, nil
	}

	plaintext, err := s.crypto.Decrypt(blob)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt handler config: %w", err)
	}

	var config map[string]string
	if err := json.Unmarshal([]byte(plaintext), &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal handler config: %w", err)
	}
	return config, nil
}
