package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"storefront-be/internal/mapper"
	"storefront-be/internal/order"
	"storefront-be/internal/utils"
	"storefront-be/internal/validation"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	maxBodyBytes         = 1 << 20
	idempotencyKeyHeader = "Idempotency-Key"
	maxIdempotencyKeyLen = 255
)

type OrderHandler struct {
	svc order.Service
}

type checkoutItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type checkoutRequest struct {
	Items []checkoutItemRequest `json:"items"`
}

type payRequest struct {
	CardNumber string `json:"card_number"`
	ExpMonth   int    `json:"exp_month"`
	ExpYear    int    `json:"exp_year"`
	CVC        string `json:"cvc"`
	Street     string `json:"street"`
	PostalCode string `json:"postal_code"`
	Phone      string `json:"phone"`
}

type shipRequest struct {
	Carrier        string `json:"carrier"`
	TrackingNumber string `json:"tracking_number"`
}

type refundRequest struct {
	AmountCents *int64 `json:"amount_cents"`
}

// declinedResponse is the 402 body: the error fields plus the attempt itself.
type declinedResponse struct {
	utils.ErrorBody
	mapper.PayResponse
}

func (h *OrderHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	items := make([]order.CheckoutItem, 0, len(req.Items))
	for i, it := range req.Items {
		productID, err := uuid.Parse(it.ProductID)
		if err != nil {
			writeBadRequest(w, fmt.Sprintf("items[%d].product_id is not a valid id", i))
			return
		}
		items = append(items, order.CheckoutItem{ProductID: productID, Quantity: it.Quantity})
	}

	userID, _ := utils.GetUserIDFromContext(r.Context())
	o, err := h.svc.Checkout(r.Context(), userID, items)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, mapper.MapCheckout(o))
}

func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter order.ListFilter

	if s := q.Get("status"); s != "" {
		status := order.OrderStatus(strings.ToUpper(s))
		if !order.IsKnownStatus(status) {
			writeBadRequest(w, fmt.Sprintf("unknown status %q", s))
			return
		}
		filter.Status = &status
	}
	for _, p := range []struct {
		name string
		dst  *int
	}{{"limit", &filter.Limit}, {"offset", &filter.Offset}} {
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

	userID, _ := utils.GetUserIDFromContext(r.Context())
	orders, err := h.svc.ListOrders(r.Context(), userID, utils.IsAdmin(r.Context()), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, mapper.MapOrders(orders))
}

func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	userID, _ := utils.GetUserIDFromContext(r.Context())
	o, err := h.svc.GetOrder(r.Context(), userID, utils.IsAdmin(r.Context()), orderID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, mapper.MapOrder(o))
}

func (h *OrderHandler) Pay(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	var req payRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	key := strings.TrimSpace(r.Header.Get(idempotencyKeyHeader))
	if len(key) > maxIdempotencyKeyLen {
		writeBadRequest(w, fmt.Sprintf("%s must be at most %d characters", idempotencyKeyHeader, maxIdempotencyKeyLen))
		return
	}

	userID, _ := utils.GetUserIDFromContext(r.Context())
	res, err := h.svc.Pay(r.Context(), userID, orderID, order.PayInput{
		Form: validation.PaymentForm{
			CardNumber: req.CardNumber,
			ExpMonth:   req.ExpMonth,
			ExpYear:    req.ExpYear,
			CVC:        req.CVC,
			Street:     req.Street,
			PostalCode: req.PostalCode,
			Phone:      req.Phone,
		},
		IdempotencyKey: key,
	})

	var declined *order.PaymentDeclinedError
	switch {
	case errors.As(err, &declined) && res != nil:
		status, body := classify(err)
		utils.WriteJSON(w, status, declinedResponse{ErrorBody: body, PayResponse: mapper.MapPayResult(res)})
	case err != nil:
		writeError(w, r, err)
	default:
		utils.WriteJSON(w, http.StatusOK, mapper.MapPayResult(res))
	}
}

func (h *OrderHandler) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	userID, _ := utils.GetUserIDFromContext(r.Context())
	session, err := h.svc.CreateCheckoutSession(r.Context(), userID, orderID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, mapper.CheckoutSessionResponse{SessionID: session.ID, URL: session.URL})
}

func (h *OrderHandler) VerifyCheckoutSession(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))

	userID, _ := utils.GetUserIDFromContext(r.Context())
	o, err := h.svc.VerifyCheckoutSession(r.Context(), userID, utils.IsAdmin(r.Context()), sessionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, mapper.MapOrder(o))
}

func (h *OrderHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	payments, refunds, err := h.svc.ListPayments(r.Context(), orderID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, mapper.MapPayments(payments, refunds))
}

func (h *OrderHandler) Validate(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Validate)
}

func (h *OrderHandler) MarkDelivered(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.MarkDelivered)
}

func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Cancel)
}

func (h *OrderHandler) Ship(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	var req shipRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	o, err := h.svc.Ship(r.Context(), orderID, order.Delivery{
		Carrier:        strings.TrimSpace(req.Carrier),
		TrackingNumber: strings.TrimSpace(req.TrackingNumber),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, mapper.MapOrder(o))
}

func (h *OrderHandler) Refund(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	var req refundRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	out, err := h.svc.Refund(r.Context(), orderID, req.AmountCents)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, mapper.MapRefundOutcome(out))
}

func (h *OrderHandler) transition(
	w http.ResponseWriter,
	r *http.Request,
	apply func(ctx context.Context, orderID uuid.UUID) (*order.Order, error),
) {
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	o, err := apply(r.Context(), orderID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, mapper.MapOrder(o))
}

func orderIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeBadRequest(w, "order id is not a valid id")
		return uuid.Nil, false
	}
	return id, true
}

// decodeJSON reads one JSON object from the body. With optional set an empty
// body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any, optional bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			if optional {
				return nil
			}
			return errors.New("request body is required")
		}
		return fmt.Errorf("invalid request body: %v", err)
	}
	return nil
}
