package mapper

// Response models of the REST API. Timestamps are RFC 3339 strings and money
// is integer cents.

type OrderItem struct {
	ProductID      string `json:"product_id"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	SubtotalCents  int64  `json:"subtotal_cents"`
}

type Delivery struct {
	Carrier        string `json:"carrier"`
	TrackingNumber string `json:"tracking_number"`
	Status         string `json:"status"`
}

type Order struct {
	ID            string      `json:"id"`
	UserID        uint        `json:"user_id"`
	Status        string      `json:"status"`
	TotalCents    int64       `json:"total_cents"`
	InvoiceNumber *string     `json:"invoice_number,omitempty"`
	Delivery      *Delivery   `json:"delivery,omitempty"`
	Items         []OrderItem `json:"items,omitempty"`
	CreatedAt     string      `json:"created_at"`
	UpdatedAt     string      `json:"updated_at"`
}

type CheckoutResponse struct {
	OrderID    string `json:"order_id"`
	TotalCents int64  `json:"total_cents"`
	Status     string `json:"status"`
}

type PayResponse struct {
	Status        string  `json:"status"`
	PaymentID     string  `json:"payment_id"`
	ChargeID      *string `json:"charge_id,omitempty"`
	Reason        *string `json:"reason,omitempty"`
	OrderStatus   string  `json:"order_status"`
	InvoiceNumber *string `json:"invoice_number,omitempty"`
	Replayed      bool    `json:"replayed,omitempty"`
}

type Payment struct {
	ID             string  `json:"id"`
	AmountCents    int64   `json:"amount_cents"`
	RefundedCents  int64   `json:"refunded_cents"`
	Status         string  `json:"status"`
	Mode           string  `json:"mode"`
	ChargeID       *string `json:"charge_id,omitempty"`
	IdempotencyKey *string `json:"idempotency_key,omitempty"`
	FailureReason  *string `json:"failure_reason,omitempty"`
	CreatedAt      string  `json:"created_at"`
}

type Refund struct {
	ID              string  `json:"id"`
	PaymentID       string  `json:"payment_id"`
	AmountCents     int64   `json:"amount_cents"`
	Status          string  `json:"status"`
	GatewayRefundID *string `json:"gateway_refund_id,omitempty"`
	FailureReason   *string `json:"failure_reason,omitempty"`
	CreatedAt       string  `json:"created_at"`
}

type PaymentsResponse struct {
	Payments []Payment `json:"payments"`
	Refunds  []Refund  `json:"refunds"`
}

type RefundResponse struct {
	Order         Order  `json:"order"`
	Refund        Refund `json:"refund"`
	FullyRefunded bool   `json:"fully_refunded"`
}

type CheckoutSessionResponse struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

type Product struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	Stock      int    `json:"stock"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}
