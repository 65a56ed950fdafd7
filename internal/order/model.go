package order

import (
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	StatusCreated   OrderStatus = "CREATED"
	StatusPaid      OrderStatus = "PAID"
	StatusValidated OrderStatus = "VALIDATED"
	StatusShipped   OrderStatus = "SHIPPED"
	StatusDelivered OrderStatus = "DELIVERED"
	StatusCancelled OrderStatus = "CANCELLED"
	StatusRefunded  OrderStatus = "REFUNDED"
)

type DeliveryStatus string

const (
	DeliveryInTransit DeliveryStatus = "IN_TRANSIT"
	DeliveryDelivered DeliveryStatus = "DELIVERED"
)

type Order struct {
	ID            uuid.UUID
	UserID        uint
	Items         []OrderItem
	TotalCents    int64
	Status        OrderStatus
	InvoiceNumber *string
	Delivery      *Delivery
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type OrderItem struct {
	ProductID      uuid.UUID
	Quantity       int
	UnitPriceCents int64
}

func (i OrderItem) SubtotalCents() int64 {
	return i.UnitPriceCents * int64(i.Quantity)
}

// Delivery is the tracking information attached when an order ships.
type Delivery struct {
	Carrier        string
	TrackingNumber string
	Status         DeliveryStatus
}

// CheckoutItem is one line of the cart snapshot submitted at checkout. Prices
// come from the catalogue, never from the client.
type CheckoutItem struct {
	ProductID uuid.UUID
	Quantity  int
}

// ListFilter narrows ListOrders. A nil UserID lists every user's orders.
type ListFilter struct {
	UserID *uint
	Status *OrderStatus
	Limit  int
	Offset int
}

func totalOf(items []OrderItem) int64 {
	var total int64
	for _, it := range items {
		total += it.SubtotalCents()
	}
	return total
}
