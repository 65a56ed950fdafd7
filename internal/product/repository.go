package product

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, p *Product) error
	Get(ctx context.Context, id uuid.UUID) (*Product, error)
	List(ctx context.Context, opts ListOptions) ([]Product, error)
	// AdjustStock adds delta to the stock, refusing to go below zero.
	AdjustStock(ctx context.Context, id uuid.UUID, delta int) (*Product, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

const productColumns = `id, name, price_cents, stock, created_at, updated_at`

func scanProduct(row interface{ Scan(dest ...any) error }) (*Product, error) {
	var p Product
	if err := row.Scan(&p.ID, &p.Name, &p.PriceCents, &p.Stock, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repository) Create(ctx context.Context, p *Product) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return r.db.QueryRowContext(ctx, `
		INSERT INTO products (id, name, price_cents, stock)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`, p.ID, p.Name, p.PriceCents, p.Stock).Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (*Product, error) {
	p, err := scanProduct(r.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	return p, err
}

func (r *repository) List(ctx context.Context, opts ListOptions) ([]Product, error) {
	query := `SELECT ` + productColumns + ` FROM products`
	if opts.InStock {
		query += ` WHERE stock > 0`
	}
	query += ` ORDER BY name, id LIMIT $1 OFFSET $2`

	rows, err := r.db.QueryContext(ctx, query, opts.Limit, opts.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

func (r *repository) AdjustStock(ctx context.Context, id uuid.UUID, delta int) (*Product, error) {
	p, err := scanProduct(r.db.QueryRowContext(ctx, `
		UPDATE products
		SET stock = stock + $1, updated_at = now()
		WHERE id = $2 AND stock + $1 >= 0
		RETURNING `+productColumns, delta, id))
	if !errors.Is(err, sql.ErrNoRows) {
		return p, err
	}

	if _, err := r.Get(ctx, id); err != nil {
		return nil, err
	}
	return nil, ErrInvalidStock
}
