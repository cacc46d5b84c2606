package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-pos-settlement.git/internal/pos"
	"github.com/ariefcatur/go-pos-settlement.git/internal/redisx"
)

type PosHandler struct {
	Service *pos.Service
	Repo    *pos.Repo
	Redis   *redis.Client
	Log     *zap.Logger
}

type CheckoutReq struct {
	Items         []pos.ItemInput `json:"items"`
	CustomerID    string          `json:"customer_id,omitempty"`
	CustomerName  string          `json:"customer_name,omitempty"`
	CashierID     string          `json:"cashier_id"`
	CashierName   string          `json:"cashier_name"`
	PaymentMethod string          `json:"payment_method"`
}

type ConfirmReq struct {
	GatewayOrderID   string `json:"gateway_order_id"`
	GatewayPaymentID string `json:"gateway_payment_id"`
	Signature        string `json:"signature"`
	InvoiceID        string `json:"invoice_id"`
}

func (h *PosHandler) Register(r *chi.Mux) {
	r.Post("/checkout", h.checkout)
	r.Post("/payments/confirm", h.confirmPayment)
	r.Get("/orders/{invoiceID}", h.getOrder)
	r.Get("/products", h.listProducts)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

var kindStatus = map[pos.Kind]int{
	pos.KindValidation:        http.StatusBadRequest,
	pos.KindInvalidSignature:  http.StatusBadRequest,
	pos.KindNotFound:          http.StatusNotFound,
	pos.KindConflict:          http.StatusConflict,
	pos.KindInsufficientStock: http.StatusConflict,
	pos.KindExternal:          http.StatusBadGateway,
	pos.KindInternal:          http.StatusInternalServerError,
}

// writeErr maps a domain error kind to a status code. Internal errors are
// logged in full but reach the client as a generic failure.
func (h *PosHandler) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	kind := pos.KindOf(err)
	code, ok := kindStatus[kind]
	if !ok {
		code = http.StatusInternalServerError
	}
	msg := err.Error()
	if kind == pos.KindInternal {
		h.Log.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err))
		msg = "internal error"
	}
	writeJSON(w, code, map[string]string{"error": msg, "kind": string(kind)})
}

func (h *PosHandler) checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	order, err := h.Service.Checkout(ctx, pos.CheckoutInput{
		Items:         req.Items,
		CustomerID:    req.CustomerID,
		CustomerName:  req.CustomerName,
		CashierID:     req.CashierID,
		CashierName:   req.CashierName,
		PaymentMethod: pos.PaymentMethod(req.PaymentMethod),
		TraceID:       r.Header.Get("X-Request-Id"),
	})
	if err != nil {
		h.writeErr(w, r, err)
		return
	}

	h.cacheOrder(ctx, order)
	writeJSON(w, http.StatusCreated, order)
}

func (h *PosHandler) confirmPayment(w http.ResponseWriter, r *http.Request) {
	var req ConfirmReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	order, err := h.Service.Confirm(ctx, pos.ConfirmInput{
		GatewayOrderID:   req.GatewayOrderID,
		GatewayPaymentID: req.GatewayPaymentID,
		Signature:        req.Signature,
		InvoiceID:        req.InvoiceID,
		TraceID:          r.Header.Get("X-Request-Id"),
	})
	if err != nil {
		h.writeErr(w, r, err)
		return
	}

	h.cacheOrder(ctx, order)
	writeJSON(w, http.StatusOK, order)
}

func (h *PosHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	invoiceID := chi.URLParam(r, "invoiceID")
	if invoiceID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing invoice id"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// cache first, DB as truth
	if s, err := h.Redis.Get(ctx, redisx.OrderKey(invoiceID)).Result(); err == nil && s != "" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(s))
		return
	}

	order, err := h.Repo.GetByInvoiceID(ctx, invoiceID)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.cacheOrder(ctx, order)
	writeJSON(w, http.StatusOK, order)
}

func (h *PosHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Repo.ListProducts(ctx)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *PosHandler) cacheOrder(ctx context.Context, o *pos.Order) {
	b, err := json.Marshal(o)
	if err != nil {
		return
	}
	if err := h.Redis.Set(ctx, redisx.OrderKey(o.InvoiceID), b, redisx.TTLOrderCache).Err(); err != nil {
		h.Log.Debug("order cache write failed", zap.String("invoice_id", o.InvoiceID), zap.Error(err))
	}
}
