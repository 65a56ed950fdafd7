package product

import "errors"

var (
	ErrProductNotFound = errors.New("product not found")
	ErrInvalidName     = errors.New("product name is required")
	ErrInvalidPrice    = errors.New("price must be positive")
	ErrNegativeStock   = errors.New("initial stock cannot be negative")
	ErrInvalidStock    = errors.New("stock cannot go below zero")
)
