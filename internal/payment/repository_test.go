package payment

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var paymentCols = []string{
	"id", "order_id", "amount_cents", "refunded_cents", "status", "mode",
	"charge_id", "idempotency_key", "failure_reason", "created_at", "updated_at",
}

func newMockRepo(t *testing.T) (Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRepository(db), mock
}

func TestRepository_CreatePayment(t *testing.T) {
	orderID := uuid.New()
	now := time.Now()

	t.Run("Success", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		key := "key-1"
		p := &Payment{OrderID: orderID, AmountCents: 4200, Mode: ModeSimulated, IdempotencyKey: &key}

		mock.ExpectQuery(`INSERT INTO payments \(id, order_id, amount_cents, status, mode, idempotency_key\) SELECT \$1, o.id, \$3, \$4, \$5, \$6 FROM orders o WHERE o.id = \$2 AND o.status = \$7 FOR UPDATE OF o`).
			WithArgs(sqlmock.AnyArg(), orderID, int64(4200), StatusPending, ModeSimulated, key, "CREATED").
			WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

		err := repo.CreatePayment(context.Background(), p)
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, p.ID)
		assert.Equal(t, StatusPending, p.Status)
		assert.Equal(t, now, p.CreatedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("OrderNoLongerCreated", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectQuery(`INSERT INTO payments`).
			WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}))

		err := repo.CreatePayment(context.Background(), &Payment{OrderID: orderID, AmountCents: 4200})
		assert.ErrorIs(t, err, ErrOrderNotPayable)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("PendingAttemptExists", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectQuery(`INSERT INTO payments`).
			WillReturnError(&pq.Error{Code: "23505", Constraint: onePendingPaymentConstraint})

		err := repo.CreatePayment(context.Background(), &Payment{OrderID: orderID, AmountCents: 4200})
		assert.ErrorIs(t, err, ErrPaymentInFlight)
	})

	t.Run("DBError", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectQuery(`INSERT INTO payments`).WillReturnError(errors.New("database error"))

		err := repo.CreatePayment(context.Background(), &Payment{OrderID: orderID, AmountCents: 4200})
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrPaymentInFlight)
	})
}

func TestRepository_GetSucceededPayment(t *testing.T) {
	orderID := uuid.New()
	paymentID := uuid.New()
	now := time.Now()

	t.Run("Found", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery(`SELECT (.+) FROM payments WHERE order_id = \$1 AND status = \$2`).
			WithArgs(orderID, StatusSucceeded).
			WillReturnRows(sqlmock.NewRows(paymentCols).
				AddRow(paymentID.String(), orderID.String(), 4200, 1000, "SUCCEEDED", "simulated", "sim_ch_1", nil, nil, now, now))

		p, err := repo.GetSucceededPayment(context.Background(), orderID)
		require.NoError(t, err)
		assert.Equal(t, paymentID, p.ID)
		assert.Equal(t, StatusSucceeded, p.Status)
		require.NotNil(t, p.ChargeID)
		assert.Equal(t, "sim_ch_1", *p.ChargeID)
		assert.Nil(t, p.IdempotencyKey)
		assert.Equal(t, int64(3200), p.RefundableCents())
	})

	t.Run("NotFound", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery(`SELECT (.+) FROM payments`).WillReturnError(sql.ErrNoRows)

		_, err := repo.GetSucceededPayment(context.Background(), orderID)
		assert.ErrorIs(t, err, ErrPaymentNotFound)
	})
}

func TestRepository_GetByIdempotencyKey(t *testing.T) {
	repo, mock := newMockRepo(t)
	orderID := uuid.New()

	mock.ExpectQuery(`SELECT (.+) FROM payments WHERE order_id = \$1 AND idempotency_key = \$2`).
		WithArgs(orderID, "key-1").
		WillReturnRows(sqlmock.NewRows(paymentCols))

	_, err := repo.GetByIdempotencyKey(context.Background(), orderID, "key-1")
	assert.ErrorIs(t, err, ErrPaymentNotFound)
}

func TestRepository_ListByOrder(t *testing.T) {
	repo, mock := newMockRepo(t)
	orderID := uuid.New()
	now := time.Now()

	mock.ExpectQuery(`SELECT (.+) FROM payments WHERE order_id = \$1 ORDER BY created_at ASC`).
		WithArgs(orderID).
		WillReturnRows(sqlmock.NewRows(paymentCols).
			AddRow(uuid.NewString(), orderID.String(), 4200, 0, "FAILED", "simulated", nil, nil, "card_declined", now, now).
			AddRow(uuid.NewString(), orderID.String(), 4200, 0, "SUCCEEDED", "simulated", "sim_ch_2", nil, nil, now, now))

	payments, err := repo.ListByOrder(context.Background(), orderID)
	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.Equal(t, StatusFailed, payments[0].Status)
	assert.Equal(t, "card_declined", *payments[0].FailureReason)
	assert.Equal(t, StatusSucceeded, payments[1].Status)
}

func TestRepository_MarkFailed(t *testing.T) {
	id := uuid.New()

	t.Run("Success", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectExec(`UPDATE payments SET status = \$1, failure_reason = \$2`).
			WithArgs(StatusFailed, "card_declined", id, StatusPending).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.MarkFailed(context.Background(), id, "card_declined"))
	})

	t.Run("NotPending", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectExec(`UPDATE payments`).WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, repo.MarkFailed(context.Background(), id, "card_declined"), ErrStalePayment)
	})
}

func TestRepository_BeginRefund(t *testing.T) {
	paymentID := uuid.New()
	now := time.Now()

	t.Run("Success", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		ref := &Refund{PaymentID: paymentID, AmountCents: 1500}

		mock.ExpectQuery(`INSERT INTO refunds (.+) SELECT (.+) FROM payments p`).
			WithArgs(sqlmock.AnyArg(), paymentID, int64(1500), RefundPending, StatusSucceeded).
			WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

		require.NoError(t, repo.BeginRefund(context.Background(), ref))
		assert.NotEqual(t, uuid.Nil, ref.ID)
		assert.Equal(t, RefundPending, ref.Status)
	})

	t.Run("ExceedsCharge", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery(`INSERT INTO refunds`).
			WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}))

		err := repo.BeginRefund(context.Background(), &Refund{PaymentID: paymentID, AmountCents: 9999})
		assert.ErrorIs(t, err, ErrRefundExceedsCharge)
	})

	t.Run("InFlight", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery(`INSERT INTO refunds`).
			WillReturnError(&pq.Error{Code: "23505", Constraint: onePendingRefundConstraint})

		err := repo.BeginRefund(context.Background(), &Refund{PaymentID: paymentID, AmountCents: 1})
		assert.ErrorIs(t, err, ErrRefundInFlight)
	})
}

func TestRepository_FailRefund(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()

	mock.ExpectExec(`UPDATE refunds`).
		WithArgs(RefundFailed, "charge_already_refunded", id, RefundPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE refunds`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, repo.FailRefund(context.Background(), id, "charge_already_refunded"))
	assert.ErrorIs(t, repo.FailRefund(context.Background(), id, "again"), ErrRefundNotFound)
}

func TestRepository_ListRefunds(t *testing.T) {
	repo, mock := newMockRepo(t)
	orderID := uuid.New()
	now := time.Now()

	mock.ExpectQuery(`SELECT (.+) FROM refunds WHERE order_id = \$1`).
		WithArgs(orderID).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "payment_id", "order_id", "amount_cents", "status",
			"gateway_refund_id", "failure_reason", "created_at", "updated_at",
		}).AddRow(uuid.NewString(), uuid.NewString(), orderID.String(), 1500, "SUCCEEDED", "sim_re_1", nil, now, now))

	refunds, err := repo.ListRefunds(context.Background(), orderID)
	require.NoError(t, err)
	require.Len(t, refunds, 1)
	assert.Equal(t, RefundSucceeded, refunds[0].Status)
	assert.Equal(t, "sim_re_1", *refunds[0].GatewayRefundID)
}
