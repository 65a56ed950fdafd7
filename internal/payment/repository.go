package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"storefront-be/internal/db"

	"github.com/google/uuid"
)

// Unique indexes that encode the at-most-one-pending rules.
const (
	onePendingPaymentConstraint = "payments_one_pending_per_order"
	idempotencyKeyConstraint    = "payments_order_idempotency_key"
	onePendingRefundConstraint  = "refunds_one_pending_per_payment"
)

// payableOrderStatus is the only order status an attempt may be recorded for.
const payableOrderStatus = "CREATED"

type Repository interface {
	CreatePayment(ctx context.Context, p *Payment) error
	GetPayment(ctx context.Context, id uuid.UUID) (*Payment, error)
	GetByIdempotencyKey(ctx context.Context, orderID uuid.UUID, key string) (*Payment, error)
	GetSucceededPayment(ctx context.Context, orderID uuid.UUID) (*Payment, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]Payment, error)
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error

	BeginRefund(ctx context.Context, r *Refund) error
	FailRefund(ctx context.Context, id uuid.UUID, reason string) error
	ListRefunds(ctx context.Context, orderID uuid.UUID) ([]Refund, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

const paymentColumns = `id, order_id, amount_cents, refunded_cents, status, mode,
	charge_id, idempotency_key, failure_reason, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPayment(row rowScanner) (*Payment, error) {
	var p Payment
	err := row.Scan(
		&p.ID, &p.OrderID, &p.AmountCents, &p.RefundedCents, &p.Status, &p.Mode,
		&p.ChargeID, &p.IdempotencyKey, &p.FailureReason, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreatePayment inserts p as PENDING, provided the stored order is still
// CREATED; otherwise ErrOrderNotPayable. The order row is locked for the
// insert, so an attempt never lands on an order a concurrent writer just paid
// or cancelled. At most one pending attempt may exist per order; a second one
// fails with ErrPaymentInFlight.
func (r *repository) CreatePayment(ctx context.Context, p *Payment) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.Status = StatusPending

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO payments (id, order_id, amount_cents, status, mode, idempotency_key)
		SELECT $1, o.id, $3, $4, $5, $6
		FROM orders o
		WHERE o.id = $2 AND o.status = $7
		FOR UPDATE OF o
		RETURNING created_at, updated_at
	`, p.ID, p.OrderID, p.AmountCents, p.Status, p.Mode, p.IdempotencyKey, payableOrderStatus,
	).Scan(&p.CreatedAt, &p.UpdatedAt)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return ErrOrderNotPayable
	case db.IsUniqueViolation(err, onePendingPaymentConstraint),
		db.IsUniqueViolation(err, idempotencyKeyConstraint):
		return ErrPaymentInFlight
	default:
		return fmt.Errorf("insert payment: %w", err)
	}
}

func (r *repository) GetPayment(ctx context.Context, id uuid.UUID) (*Payment, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)

	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	return p, err
}

func (r *repository) GetByIdempotencyKey(ctx context.Context, orderID uuid.UUID, key string) (*Payment, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE order_id = $1 AND idempotency_key = $2
	`, orderID, key)

	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	return p, err
}

// GetSucceededPayment returns the authoritative charge of an order: the most
// recent SUCCEEDED attempt. Fully refunded payments are not returned.
func (r *repository) GetSucceededPayment(ctx context.Context, orderID uuid.UUID) (*Payment, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE order_id = $1 AND status = $2
		ORDER BY created_at DESC
		LIMIT 1
	`, orderID, StatusSucceeded)

	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	return p, err
}

func (r *repository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]Payment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE order_id = $1
		ORDER BY created_at ASC
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := []Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}

// MarkFailed records a definitive decline. Only a PENDING attempt can fail.
func (r *repository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE payments
		SET status = $1, failure_reason = $2, updated_at = now()
		WHERE id = $3 AND status = $4
	`, StatusFailed, reason, id, StatusPending)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrStalePayment
	}
	return nil
}

// BeginRefund claims a refund of r.AmountCents against its payment. The insert
// only happens while the payment is SUCCEEDED and the cumulative refunded total
// stays within the charge.
func (r *repository) BeginRefund(ctx context.Context, ref *Refund) error {
	if ref.ID == uuid.Nil {
		ref.ID = uuid.New()
	}
	ref.Status = RefundPending

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO refunds (id, payment_id, order_id, amount_cents, status)
		SELECT $1, p.id, p.order_id, $3, $4
		FROM payments p
		WHERE p.id = $2
		  AND p.status = $5
		  AND p.refunded_cents + $3 <= p.amount_cents
		RETURNING created_at, updated_at
	`, ref.ID, ref.PaymentID, ref.AmountCents, ref.Status, StatusSucceeded,
	).Scan(&ref.CreatedAt, &ref.UpdatedAt)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return ErrRefundExceedsCharge
	case db.IsUniqueViolation(err, onePendingRefundConstraint):
		return ErrRefundInFlight
	default:
		return fmt.Errorf("insert refund: %w", err)
	}
}

func (r *repository) FailRefund(ctx context.Context, id uuid.UUID, reason string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE refunds
		SET status = $1, failure_reason = $2, updated_at = now()
		WHERE id = $3 AND status = $4
	`, RefundFailed, reason, id, RefundPending)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrRefundNotFound
	}
	return nil
}

func (r *repository) ListRefunds(ctx context.Context, orderID uuid.UUID) ([]Refund, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, payment_id, order_id, amount_cents, status,
		       gateway_refund_id, failure_reason, created_at, updated_at
		FROM refunds
		WHERE order_id = $1
		ORDER BY created_at ASC
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	refunds := []Refund{}
	for rows.Next() {
		var rf Refund
		if err := rows.Scan(
			&rf.ID, &rf.PaymentID, &rf.OrderID, &rf.AmountCents, &rf.Status,
			&rf.GatewayRefundID, &rf.FailureReason, &rf.CreatedAt, &rf.UpdatedAt,
		); err != nil {
			return nil, err
		}
		refunds = append(refunds, rf)
	}
	return refunds, rows.Err()
}
