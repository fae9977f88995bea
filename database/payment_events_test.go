package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"megatrade-web/models"
)

func newMockConnection(t *testing.T) (*Connection, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewConnectionFromDB(db), mock
}

func TestSavePaymentEvent(t *testing.T) {
	conn, mock := newMockConnection(t)

	event := &models.PaymentEvent{
		ID:             "2b1f7c4e-0000-4000-8000-000000000001",
		UserID:         "user-1",
		Kind:           models.EventPaymentApproved,
		PlanID:         "P-123",
		OrderID:        "ORDER-9",
		SubscriptionID: "I-77",
		Message:        "Subscription created",
		CreatedAt:      time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}

	mock.ExpectExec("INSERT IGNORE INTO payment_events").
		WithArgs(event.ID, "user-1", "approved", "P-123", "ORDER-9", "I-77", "Subscription created", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, conn.SavePaymentEvent(context.Background(), event))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSavePaymentEventWrapsDriverError(t *testing.T) {
	conn, mock := newMockConnection(t)
	driverErr := errors.New("connection reset")

	mock.ExpectExec("INSERT IGNORE INTO payment_events").WillReturnError(driverErr)

	err := conn.SavePaymentEvent(context.Background(), &models.PaymentEvent{ID: "x", Kind: models.EventProviderError})
	require.Error(t, err)
	assert.ErrorIs(t, err, driverErr)
}

func TestListPaymentEventsForUser(t *testing.T) {
	conn, mock := newMockConnection(t)
	created := time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "user_id", "kind", "plan_id", "order_id", "subscription_id", "message", "created_at"}).
		AddRow("e1", "user-1", "sponsor_redeemed", "", "", "", "Code applied", created).
		AddRow("e2", "user-1", "cancelled", "P-1", "", "", "", created.Add(-time.Hour))

	mock.ExpectQuery("SELECT (.+) FROM payment_events WHERE user_id = \\? ORDER BY created_at DESC LIMIT \\?").
		WithArgs("user-1", 100).
		WillReturnRows(rows)

	events, err := conn.ListPaymentEvents(context.Background(), "user-1", 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, models.EventSponsorRedeemed, events[0].Kind)
	assert.Equal(t, "Code applied", events[0].Message)
	assert.Equal(t, models.EventPaymentCancelled, events[1].Kind)
	assert.Equal(t, "P-1", events[1].PlanID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListPaymentEventsAllUsers(t *testing.T) {
	conn, mock := newMockConnection(t)

	mock.ExpectQuery("SELECT (.+) FROM payment_events ORDER BY created_at DESC LIMIT \\?").
		WithArgs(25).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "kind", "plan_id", "order_id", "subscription_id", "message", "created_at"}))

	events, err := conn.ListPaymentEvents(context.Background(), "", 25)
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema(t *testing.T) {
	conn, mock := newMockConnection(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS payment_events").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, conn.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
