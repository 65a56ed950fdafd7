package transport

import (
	"fmt"
	"net/http"
	"strconv"

	"storefront-be/internal/mapper"
	"storefront-be/internal/product"
	"storefront-be/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type ProductHandler struct {
	svc product.Service
}

type createProductRequest struct {
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	Stock      int    `json:"stock"`
}

type restockRequest struct {
	Delta int `json:"delta"`
}

func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := product.ListOptions{InStock: q.Get("in_stock") == "true"}

	for _, p := range []struct {
		name string
		dst  *int
	}{{"limit", &opts.Limit}, {"offset", &opts.Offset}} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeBadRequest(w, fmt.Sprintf("%s must be a non-negative integer", p.name))
			return
		}
		*p.dst = n
	}

	products, err := h.svc.List(r.Context(), opts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, mapper.MapProducts(products))
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := productIDParam(w, r)
	if !ok {
		return
	}

	p, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, mapper.MapProduct(p))
}

func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	p, err := h.svc.Create(r.Context(), product.NewProduct{
		Name:       req.Name,
		PriceCents: req.PriceCents,
		Stock:      req.Stock,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, mapper.MapProduct(p))
}

func (h *ProductHandler) Restock(w http.ResponseWriter, r *http.Request) {
	id, ok := productIDParam(w, r)
	if !ok {
		return
	}

	var req restockRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if req.Delta == 0 {
		writeBadRequest(w, "delta must not be zero")
		return
	}

	p, err := h.svc.Restock(r.Context(), id, req.Delta)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, mapper.MapProduct(p))
}

func productIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeBadRequest(w, "product id is not a valid id")
		return uuid.Nil, false
	}
	return id, true
}
