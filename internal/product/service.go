package product

import (
	"context"
	"strings"

	"storefront-be/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type Service interface {
	Create(ctx context.Context, input NewProduct) (*Product, error)
	Get(ctx context.Context, id uuid.UUID) (*Product, error)
	List(ctx context.Context, opts ListOptions) ([]Product, error)
	Restock(ctx context.Context, id uuid.UUID, delta int) (*Product, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) Create(ctx context.Context, input NewProduct) (*Product, error) {
	name := strings.TrimSpace(input.Name)
	switch {
	case name == "":
		return nil, ErrInvalidName
	case input.PriceCents <= 0:
		return nil, ErrInvalidPrice
	case input.Stock < 0:
		return nil, ErrNegativeStock
	}

	p := &Product{Name: name, PriceCents: input.PriceCents, Stock: input.Stock}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}

	logger.FromCtx(ctx).Info("product created",
		zap.String("product_id", p.ID.String()),
		zap.Int64("price_cents", p.PriceCents),
		zap.Int("stock", p.Stock),
	)
	return p, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*Product, error) {
	return s.repo.Get(ctx, id)
}

func (s *service) List(ctx context.Context, opts ListOptions) ([]Product, error) {
	if opts.Limit <= 0 || opts.Limit > maxListLimit {
		opts.Limit = defaultListLimit
	}
	opts.Offset = max(opts.Offset, 0)
	return s.repo.List(ctx, opts)
}

// Restock applies a manual stock correction; delta may be negative.
func (s *service) Restock(ctx context.Context, id uuid.UUID, delta int) (*Product, error) {
	p, err := s.repo.AdjustStock(ctx, id, delta)
	if err != nil {
		return nil, err
	}

	logger.FromCtx(ctx).Info("stock adjusted",
		zap.String("product_id", id.String()),
		zap.Int("delta", delta),
		zap.Int("stock", p.Stock),
	)
	return p, nil
}
