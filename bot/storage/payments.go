// Package storage persists an audit trail of verified payments and completed
// delivery runs. Conversation sessions themselves are never persisted.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/replybot/core/logger"
)

// Payment is one verified purchase.
type Payment struct {
	ID             int64      `db:"id"`
	UserID         int64      `db:"user_id"`
	TokenAddress   string     `db:"token_address"`
	MessageCount   int        `db:"message_count"`
	AmountLamports int64      `db:"amount_lamports"`
	SenderAddress  string     `db:"sender_address"`
	TxSignature    string     `db:"tx_signature"`
	VerifiedAt     time.Time  `db:"verified_at"`
	DeliveredAt    *time.Time `db:"delivered_at"`
}

// PaymentStore reads and writes the payments audit table.
type PaymentStore struct {
	db *sqlx.DB
}

// NewPaymentStore wraps the shared database handle.
func NewPaymentStore(db *sqlx.DB) *PaymentStore {
	return &PaymentStore{db: db}
}

// RecordVerified inserts a verified payment and returns its id.
func (s *PaymentStore) RecordVerified(ctx context.Context, p Payment) (int64, error) {
	const q = `
		INSERT INTO payments (user_id, token_address, message_count, amount_lamports, sender_address, tx_signature)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	start := time.Now()
	var id int64
	err := s.db.GetContext(ctx, &id, q,
		p.UserID, p.TokenAddress, p.MessageCount, p.AmountLamports, p.SenderAddress, p.TxSignature,
	)
	if err != nil {
		return 0, fmt.Errorf("storage: record payment: %w", err)
	}
	logger.Debug(ctx, "service.payments", "payment.recorded",
		slog.Int64("user_id", p.UserID),
		slog.Int64("amount_lamports", p.AmountLamports),
		slog.Duration("duration", logger.Took(start)),
	)
	return id, nil
}

// MarkDelivered stamps the payment's delivery completion time.
func (s *PaymentStore) MarkDelivered(ctx context.Context, id int64) error {
	const q = `UPDATE payments SET delivered_at = now() WHERE id = $1`
	if _, err := s.db.ExecContext(ctx, q, id); err != nil {
		return fmt.Errorf("storage: mark delivered: %w", err)
	}
	return nil
}

// RecentByUser lists the user's most recent verified payments.
func (s *PaymentStore) RecentByUser(ctx context.Context, userID int64, limit int) ([]Payment, error) {
	if limit <= 0 {
		limit = 10
	}
	const q = `
		SELECT id, user_id, token_address, message_count, amount_lamports, sender_address, tx_signature, verified_at, delivered_at
		FROM payments
		WHERE user_id = $1
		ORDER BY verified_at DESC
		LIMIT $2`

	var out []Payment
	if err := s.db.SelectContext(ctx, &out, q, userID, limit); err != nil {
		return nil, fmt.Errorf("storage: list payments: %w", err)
	}
	return out, nil
}
