package mapper

import "storefront-be/internal/product"

func MapProduct(p *product.Product) Product {
	return Product{
		ID:         p.ID.String(),
		Name:       p.Name,
		PriceCents: p.PriceCents,
		Stock:      p.Stock,
		CreatedAt:  formatTime(p.CreatedAt),
		UpdatedAt:  formatTime(p.UpdatedAt),
	}
}

func MapProducts(products []product.Product) []Product {
	res := make([]Product, 0, len(products))
	for i := range products {
		res = append(res, MapProduct(&products[i]))
	}
	return res
}
