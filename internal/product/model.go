package product

import (
	"time"

	"github.com/google/uuid"
)

// Product is the catalogue record checkout prices and reserves stock from.
type Product struct {
	ID         uuid.UUID
	Name       string
	PriceCents int64
	Stock      int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type NewProduct struct {
	Name       string
	PriceCents int64
	Stock      int
}

type ListOptions struct {
	Limit  int
	Offset int
	// InStock hides products with no stock left.
	InStock bool
}
