package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/models"
)

var (
	ErrSessionNotFound         = errors.New("checkout session not found")
	ErrInvalidStatusTransition = errors.New("invalid checkout session status transition")
)

// SessionStore persists checkout sessions. Status changes go through
// ApplyChange, which performs a compare-and-set on the current status so
// concurrent webhooks and payment calls cannot regress a terminal session.
type SessionStore struct {
	pool *pgxpool.Pool
}

func NewSessionStore(pool *pgxpool.Pool) *SessionStore {
	return &SessionStore{pool: pool}
}

func (s *SessionStore) Create(ctx context.Context, session *models.CheckoutSession) error {
	cartJSON, err := json.Marshal(session.Cart)
	if err != nil {
		return fmt.Errorf("failed to marshal cart snapshot: %w", err)
	}

	query := `
		INSERT INTO checkout_sessions (id, shop_id, cart, status, handler_id, transaction_id, failure_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
	`
	_, err = s.pool.Exec(ctx, query,
		session.ID, session.ShopID, cartJSON, session.Status,
		session.HandlerID, session.TransactionID, session.FailureReason)
	if err != nil {
		return fmt.Errorf("failed to insert checkout session: %w", err)
	}
	return nil
}

func (s *SessionStore) GetByID(ctx context.Context, id uuid.UUID) (*models.CheckoutSession, error) {
	query := `
		SELECT id, shop_id, cart, status, handler_id, transaction_id, failure_reason, created_at, updated_at
		FROM checkout_sessions
		WHERE id = $1
	`

	var (
		session  models.CheckoutSession
		cartJSON []byte
	)
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&session.ID, &session.ShopID, &cartJSON, &session.Status,
		&session.HandlerID, &session.TransactionID, &session.FailureReason,
		&session.CreatedAt, &session.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load checkout session: %w", err)
	}

	if err := json.Unmarshal(cartJSON, &session.Cart); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cart snapshot: %w", err)
	}
	return &session, nil
}

// SessionChange describes one status transition. From lists the statuses the
// session must currently be in for the change to apply. Empty HandlerID and
// TransactionID leave the stored values untouched.
type SessionChange struct {
	Status        models.SessionStatus
	HandlerID     string
	TransactionID string
	FailureReason string
	From          []models.SessionStatus
}

func (s *SessionStore) ApplyChange(ctx context.Context, id uuid.UUID, change SessionChange) error {
	if len(change.From) == 0 {
		return fmt.Errorf("session change requires at least one source status")
	}

	from := make([]string, len(change.From))
	for i, status := range change.From {
		from[i] = string(status)
	}

	query := `
		UPDATE checkout_sessions
		SET status = $1,
		    handler_id = COALESCE(NULLIF($2, ''), handler_id),
		    transaction_id = COALESCE(NULLIF($3, ''), transaction_id),
		    failure_reason = $4,
		    updated_at = NOW()
		WHERE id = $5 AND status = ANY($6)
	`
	cmdTag, err := s.pool.Exec(ctx, query,
		change.Status, change.HandlerID, change.TransactionID, change.FailureReason, id, from)
	if err != nil {
		return fmt.Errorf("failed to update checkout session status: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: expected %s", ErrInvalidStatusTransition, strings.Join(from, "/"))
	}
	return nil
}
