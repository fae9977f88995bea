package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"megatrade-web/models"
)

const createPaymentEventsTable = `
	CREATE TABLE IF NOT EXISTS payment_events (
		id              CHAR(36)     NOT NULL PRIMARY KEY,
		user_id         VARCHAR(64)  NOT NULL,
		kind            VARCHAR(32)  NOT NULL,
		plan_id         VARCHAR(256) NOT NULL DEFAULT '',
		order_id        VARCHAR(64)  NOT NULL DEFAULT '',
		subscription_id VARCHAR(64)  NOT NULL DEFAULT '',
		message         TEXT,
		created_at      DATETIME     NOT NULL,
		INDEX idx_payment_events_user (user_id, created_at)
	)
`

// EnsureSchema creates the ledger table when it does not exist yet.
func (c *Connection) EnsureSchema(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, createPaymentEventsTable); err != nil {
		return fmt.Errorf("error creating payment_events table: %w", err)
	}
	return nil
}

// SavePaymentEvent stores a ledger entry. Saving the same ID twice is a no-op so
// that a retried job never duplicates a row.
func (c *Connection) SavePaymentEvent(ctx context.Context, event *models.PaymentEvent) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	query := `
		INSERT IGNORE INTO payment_events (
			id, user_id, kind, plan_id, order_id, subscription_id, message, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.ExecContext(ctx, query,
		event.ID,
		event.UserID,
		string(event.Kind),
		event.PlanID,
		event.OrderID,
		event.SubscriptionID,
		event.Message,
		event.CreatedAt.UTC(),
	)
	if err != nil {
		log.Printf("Error saving payment event %s: %v", event.ID, err)
		return fmt.Errorf("failed to save payment event: %w", err)
	}

	log.WithFields(log.Fields{"event_id": event.ID, "kind": event.Kind}).Debug("Saved payment event")
	return nil
}

// ListPaymentEvents returns the most recent ledger entries, optionally for one user.
func (c *Connection) ListPaymentEvents(ctx context.Context, userID string, limit int) ([]models.PaymentEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := `
		SELECT id, user_id, kind, plan_id, order_id, subscription_id, COALESCE(message, ''), created_at
		FROM payment_events
	`
	args := []interface{}{}
	if userID != "" {
		query += ` WHERE user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing payment events: %w", err)
	}
	defer rows.Close()

	events := []models.PaymentEvent{}
	for rows.Next() {
		var event models.PaymentEvent
		var kind string
		var message sql.NullString
		if err := rows.Scan(
			&event.ID,
			&event.UserID,
			&kind,
			&event.PlanID,
			&event.OrderID,
			&event.SubscriptionID,
			&message,
			&event.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("error scanning payment event: %w", err)
		}
		event.Kind = models.PaymentEventKind(kind)
		event.Message = message.String
		events = append(events, event)
	}

	return events, rows.Err()
}
