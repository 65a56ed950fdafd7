package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"storefront-be/internal/logger"
	"storefront-be/internal/payment"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

type Repository interface {
	CreateOrder(ctx context.Context, userID uint, items []CheckoutItem) (*Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*Order, error)
	ListOrders(ctx context.Context, filter ListFilter) ([]Order, error)

	// TransitionStatus moves the order from -> to only if it is still in from.
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to OrderStatus) error
	Ship(ctx context.Context, id uuid.UUID, delivery Delivery) error
	MarkDelivered(ctx context.Context, id uuid.UUID) error

	MarkPaid(ctx context.Context, in MarkPaidInput) error
	CompleteRefund(ctx context.Context, in RefundCompletion) (fullyRefunded bool, err error)
	CancelOrder(ctx context.Context, id uuid.UUID, from OrderStatus) error
}

// MarkPaidInput records a confirmed charge and the order's move to PAID.
type MarkPaidInput struct {
	OrderID       uuid.UUID
	PaymentID     uuid.UUID
	ChargeID      string
	InvoiceNumber string
}

// RefundCompletion records a refund the gateway accepted. When UpdateOrder is
// set and the payment becomes fully refunded, the order moves from OrderFrom
// to REFUNDED in the same transaction.
type RefundCompletion struct {
	RefundID        uuid.UUID
	PaymentID       uuid.UUID
	OrderID         uuid.UUID
	AmountCents     int64
	GatewayRefundID string
	OrderFrom       OrderStatus
	UpdateOrder     bool
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

// CreateOrder locks the products in id order, prices the items from the
// catalogue, decrements stock and inserts the order in CREATED.
func (r *repository) CreateOrder(ctx context.Context, userID uint, items []CheckoutItem) (*Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID.String())
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT id, price_cents, stock
		FROM products
		WHERE id = ANY($1::uuid[])
		ORDER BY id
		FOR UPDATE
	`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("lock products: %w", err)
	}

	type stockRow struct {
		price int64
		stock int
	}
	catalogue := make(map[uuid.UUID]stockRow, len(items))
	for rows.Next() {
		var (
			id  uuid.UUID
			row stockRow
		)
		if err := rows.Scan(&id, &row.price, &row.stock); err != nil {
			rows.Close()
			return nil, err
		}
		catalogue[id] = row
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	order := &Order{
		ID:     uuid.New(),
		UserID: userID,
		Status: StatusCreated,
		Items:  make([]OrderItem, 0, len(items)),
	}

	for _, it := range items {
		p, ok := catalogue[it.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrProductNotFound, it.ProductID)
		}
		if p.stock < it.Quantity {
			return nil, fmt.Errorf("%w: product %s has %d left", ErrOutOfStock, it.ProductID, p.stock)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE products SET stock = stock - $1 WHERE id = $2
		`, it.Quantity, it.ProductID); err != nil {
			return nil, fmt.Errorf("decrement stock: %w", err)
		}

		order.Items = append(order.Items, OrderItem{
			ProductID:      it.ProductID,
			Quantity:       it.Quantity,
			UnitPriceCents: p.price,
		})
	}
	order.TotalCents = totalOf(order.Items)

	err = tx.QueryRowContext(ctx, `
		INSERT INTO orders (id, user_id, status, total_cents)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`, order.ID, order.UserID, order.Status, order.TotalCents).Scan(&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}

	for _, it := range order.Items {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, product_id, quantity, unit_price_cents)
			VALUES ($1, $2, $3, $4)
		`, order.ID, it.ProductID, it.Quantity, it.UnitPriceCents); err != nil {
			return nil, fmt.Errorf("insert order item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	logger.FromCtx(ctx).Info("order created",
		zap.String("order_id", order.ID.String()),
		zap.Uint("user_id", userID),
		zap.Int64("total_cents", order.TotalCents),
	)

	return order, nil
}

const orderColumns = `id, user_id, status, total_cents, invoice_number,
	delivery_carrier, delivery_tracking_number, delivery_status, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*Order, error) {
	var (
		o              Order
		carrier        *string
		trackingNumber *string
		deliveryStatus *string
	)
	if err := row.Scan(
		&o.ID, &o.UserID, &o.Status, &o.TotalCents, &o.InvoiceNumber,
		&carrier, &trackingNumber, &deliveryStatus, &o.CreatedAt, &o.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if carrier != nil {
		o.Delivery = &Delivery{Carrier: *carrier}
		if trackingNumber != nil {
			o.Delivery.TrackingNumber = *trackingNumber
		}
		if deliveryStatus != nil {
			o.Delivery.Status = DeliveryStatus(*deliveryStatus)
		}
	}
	return &o, nil
}

func (r *repository) GetOrder(ctx context.Context, id uuid.UUID) (*Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT product_id, quantity, unit_price_cents
		FROM order_items
		WHERE order_id = $1
		ORDER BY id
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	o.Items = []OrderItem{}
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ProductID, &it.Quantity, &it.UnitPriceCents); err != nil {
			return nil, err
		}
		o.Items = append(o.Items, it)
	}
	return o, rows.Err()
}

// ListOrders returns orders newest first, without items.
func (r *repository) ListOrders(ctx context.Context, filter ListFilter) ([]Order, error) {
	var (
		where []string
		args  []any
	)
	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	args = append(args, limit, max(filter.Offset, 0))
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := []Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

func (r *repository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to OrderStatus) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders SET status = $1, updated_at = now()
		WHERE id = $2 AND status = $3
	`, to, id, from)
	if err != nil {
		return err
	}
	return requireOneRow(res, ErrStaleStatus)
}

func (r *repository) Ship(ctx context.Context, id uuid.UUID, d Delivery) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $1,
		    delivery_carrier = $2,
		    delivery_tracking_number = $3,
		    delivery_status = $4,
		    updated_at = now()
		WHERE id = $5 AND status = $6
	`, StatusShipped, d.Carrier, d.TrackingNumber, DeliveryInTransit, id, StatusValidated)
	if err != nil {
		return err
	}
	return requireOneRow(res, ErrStaleStatus)
}

func (r *repository) MarkDelivered(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $1, delivery_status = $2, updated_at = now()
		WHERE id = $3 AND status = $4
	`, StatusDelivered, DeliveryDelivered, id, StatusShipped)
	if err != nil {
		return err
	}
	return requireOneRow(res, ErrStaleStatus)
}

// MarkPaid writes the payment's SUCCEEDED status and charge id first, then
// moves the order CREATED -> PAID. If the order has moved meanwhile the payment
// update is still committed, so the charge id is never lost, and
// ErrStaleStatus is returned. The order row is locked before the payment row,
// the same order CreatePayment takes them in.
func (r *repository) MarkPaid(ctx context.Context, in MarkPaidInput) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT 1 FROM orders WHERE id = $1 FOR UPDATE`, in.OrderID); err != nil {
		return fmt.Errorf("lock order: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE payments
		SET status = $1, charge_id = $2, updated_at = now()
		WHERE id = $3 AND status = $4
	`, payment.StatusSucceeded, in.ChargeID, in.PaymentID, payment.StatusPending)
	if err != nil {
		return fmt.Errorf("mark payment succeeded: %w", err)
	}
	if err := requireOneRow(res, payment.ErrStalePayment); err != nil {
		return err
	}

	res, err = tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $1, invoice_number = $2, updated_at = now()
		WHERE id = $3 AND status = $4
	`, StatusPaid, in.InvoiceNumber, in.OrderID, StatusCreated)
	if err != nil {
		return fmt.Errorf("mark order paid: %w", err)
	}
	orderErr := requireOneRow(res, ErrStaleStatus)

	if err := tx.Commit(); err != nil {
		return err
	}
	return orderErr
}

// CompleteRefund settles a PENDING refund. The cumulative cap is checked again
// in the payment update.
func (r *repository) CompleteRefund(ctx context.Context, in RefundCompletion) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE refunds
		SET status = $1, gateway_refund_id = $2, updated_at = now()
		WHERE id = $3 AND status = $4
	`, payment.RefundSucceeded, in.GatewayRefundID, in.RefundID, payment.RefundPending)
	if err != nil {
		return false, fmt.Errorf("mark refund succeeded: %w", err)
	}
	if err := requireOneRow(res, payment.ErrRefundNotFound); err != nil {
		return false, err
	}

	var refunded, amount int64
	err = tx.QueryRowContext(ctx, `
		UPDATE payments
		SET refunded_cents = refunded_cents + $1,
		    status = CASE WHEN refunded_cents + $1 = amount_cents THEN $2 ELSE status END,
		    updated_at = now()
		WHERE id = $3 AND status = $4 AND refunded_cents + $1 <= amount_cents
		RETURNING refunded_cents, amount_cents
	`, in.AmountCents, payment.StatusRefunded, in.PaymentID, payment.StatusSucceeded).Scan(&refunded, &amount)
	if errors.Is(err, sql.ErrNoRows) {
		return false, payment.ErrRefundExceedsCharge
	}
	if err != nil {
		return false, fmt.Errorf("apply refund to payment: %w", err)
	}

	fully := refunded == amount

	var orderErr error
	if fully && in.UpdateOrder {
		res, err := tx.ExecContext(ctx, `
			UPDATE orders SET status = $1, updated_at = now()
			WHERE id = $2 AND status = $3
		`, StatusRefunded, in.OrderID, in.OrderFrom)
		if err != nil {
			return false, fmt.Errorf("mark order refunded: %w", err)
		}
		orderErr = requireOneRow(res, ErrStaleStatus)
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return fully, orderErr
}

// CancelOrder moves the order from -> CANCELLED and puts its items back in stock.
func (r *repository) CancelOrder(ctx context.Context, id uuid.UUID, from OrderStatus) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE orders SET status = $1, updated_at = now()
		WHERE id = $2 AND status = $3
	`, StatusCancelled, id, from)
	if err != nil {
		return err
	}
	if err := requireOneRow(res, ErrStaleStatus); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE products p
		SET stock = p.stock + oi.quantity
		FROM order_items oi
		WHERE oi.order_id = $1 AND oi.product_id = p.id
	`, id); err != nil {
		return fmt.Errorf("restock: %w", err)
	}

	return tx.Commit()
}

func requireOneRow(res sql.Result, zero error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return zero
	}
	return nil
}
