package pos

import (
	"context"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	kafkax "github.com/ariefcatur/go-pos-settlement.git/internal/kafka"
)

// Ports. The concrete implementations are ReservationRepo, Repo, the gateway
// client and verifier; tests plug in fakes.

type Ledger interface {
	ReserveAll(ctx context.Context, orderID string, items []ItemInput) ([]OrderItem, error)
	ReleaseAll(ctx context.Context, orderID string) error
}

type OrderStore interface {
	InsertOrder(ctx context.Context, o *Order) error
	GetByInvoiceID(ctx context.Context, invoiceID string) (*Order, error)
	MarkSettled(ctx context.Context, invoiceID, gatewayPaymentID, signature string) (bool, error)
	MarkPaymentFailed(ctx context.Context, invoiceID string) (bool, error)
}

type IntentCreator interface {
	CreateIntent(ctx context.Context, amountCents int64, receiptID string) (gatewayOrderID string, err error)
}

type SignatureVerifier interface {
	Verify(gatewayOrderID, gatewayPaymentID, signature string) bool
}

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// Service drives an order through its lifecycle: reserve stock, settle cash
// immediately, open a gateway intent for electronic payments, and apply the
// asynchronous confirmation exactly once.
type Service struct {
	Store       OrderStore
	Ledger      Ledger
	Gateway     IntentCreator
	Verifier    SignatureVerifier
	Created     Publisher // pos.order.created
	Settled     Publisher // pos.order.settled
	Failed      Publisher // pos.order.failed
	ServiceName string
	Log         *zap.Logger
}

type CheckoutInput struct {
	Items         []ItemInput
	CustomerID    string
	CustomerName  string
	CashierID     string
	CashierName   string
	PaymentMethod PaymentMethod
	TraceID       string
}

type ConfirmInput struct {
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
	InvoiceID        string
	TraceID          string
}

func (s *Service) Checkout(ctx context.Context, in CheckoutInput) (*Order, error) {
	if err := validateCheckout(in); err != nil {
		return nil, err
	}

	orderID := uuid.NewString()

	items, err := s.Ledger.ReserveAll(ctx, orderID, in.Items)
	if err != nil {
		return nil, err
	}

	var total int64
	for _, it := range items {
		if it.UnitPriceCents < 0 {
			s.compensate(ctx, orderID, "negative catalog price")
			return nil, Errf(KindValidation, "negative price for product %s", it.ProductID)
		}
		total += it.LineTotalCents
	}

	now := time.Now().UTC()
	o := &Order{
		ID:            orderID,
		InvoiceID:     NewInvoiceID(now),
		Items:         items,
		TotalCents:    total,
		CustomerID:    in.CustomerID,
		CustomerName:  in.CustomerName,
		CashierID:     in.CashierID,
		CashierName:   in.CashierName,
		PaymentMethod: in.PaymentMethod,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if in.PaymentMethod == MethodCash {
		o.Status = OrderCompleted
		o.PaymentStatus = PaymentPaid
	} else {
		gwOrderID, err := s.Gateway.CreateIntent(ctx, total, o.InvoiceID)
		if err != nil {
			// A checkout that cannot proceed must not leave inventory
			// silently reserved.
			s.compensate(ctx, orderID, "gateway intent failed")
			return nil, err
		}
		o.Status = OrderPending
		o.PaymentStatus = PaymentPending
		o.GatewayOrderID = gwOrderID
	}

	if err := s.Store.InsertOrder(ctx, o); err != nil {
		s.compensate(ctx, orderID, "order persist failed")
		return nil, err
	}

	s.publish(s.Created, EventOrderCreated, o.ID, in.TraceID, OrderCreatedPayload{
		OrderID:       o.ID,
		InvoiceID:     o.InvoiceID,
		PaymentMethod: o.PaymentMethod,
		TotalCents:    o.TotalCents,
		Items:         in.Items,
	})
	if o.PaymentStatus == PaymentPaid {
		s.publish(s.Settled, EventOrderSettled, o.ID, in.TraceID, OrderSettledPayload{
			OrderID: o.ID, InvoiceID: o.InvoiceID, TotalCents: o.TotalCents,
		})
	}
	return o, nil
}

// Confirm applies the asynchronous payment confirmation. Keyed on invoice id
// and guarded by the conditional settle update, replays observe the terminal
// order and change nothing.
func (s *Service) Confirm(ctx context.Context, in ConfirmInput) (*Order, error) {
	if in.InvoiceID == "" {
		return nil, Errf(KindValidation, "invoice_id is required")
	}

	o, err := s.Store.GetByInvoiceID(ctx, in.InvoiceID)
	if err != nil {
		return nil, err
	}
	if o.Terminal() {
		return o, nil
	}
	if o.PaymentMethod != MethodElectronic {
		return nil, Errf(KindValidation, "order %s is not an electronic payment", in.InvoiceID)
	}

	authentic := o.GatewayOrderID == in.GatewayOrderID &&
		s.Verifier.Verify(in.GatewayOrderID, in.GatewayPaymentID, in.Signature)
	if !authentic {
		if _, err := s.Store.MarkPaymentFailed(ctx, in.InvoiceID); err != nil {
			return nil, err
		}
		s.publish(s.Failed, EventOrderFailed, o.ID, in.TraceID, OrderFailedPayload{
			OrderID: o.ID, InvoiceID: o.InvoiceID, Reason: "INVALID_SIGNATURE",
		})
		if s.Log != nil {
			s.Log.Warn("payment confirmation rejected",
				zap.String("invoice_id", in.InvoiceID),
				zap.String("gateway_order_id", in.GatewayOrderID))
		}
		return nil, Errf(KindInvalidSignature, "signature verification failed for %s", in.InvoiceID)
	}

	updated, err := s.Store.MarkSettled(ctx, in.InvoiceID, in.GatewayPaymentID, in.Signature)
	if err != nil {
		return nil, err
	}
	o, err = s.Store.GetByInvoiceID(ctx, in.InvoiceID)
	if err != nil {
		return nil, err
	}
	if updated {
		s.publish(s.Settled, EventOrderSettled, o.ID, in.TraceID, OrderSettledPayload{
			OrderID:          o.ID,
			InvoiceID:        o.InvoiceID,
			TotalCents:       o.TotalCents,
			GatewayPaymentID: in.GatewayPaymentID,
		})
	}
	// If another delivery won the race, updated is false and the re-read
	// already shows the terminal order.
	return o, nil
}

func (s *Service) compensate(ctx context.Context, orderID, reason string) {
	if err := s.Ledger.ReleaseAll(ctx, orderID); err != nil && s.Log != nil {
		s.Log.Error("stock release failed",
			zap.String("order_id", orderID),
			zap.String("reason", reason),
			zap.Error(err))
	}
}

func (s *Service) publish(p Publisher, eventType, orderID, trace string, payload any) {
	publishEvent(p, s.ServiceName, eventType, orderID, trace, payload)
}

func publishEvent(p Publisher, producer, eventType, orderID, trace string, payload any) {
	if p == nil {
		return
	}
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		TraceID:       trace,
		CorrelationID: orderID,
		Payload:       kafkax.MustMarshal(payload),
	}
	p.Publish(PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func validateCheckout(in CheckoutInput) error {
	if len(in.Items) == 0 {
		return Errf(KindValidation, "item list is empty")
	}
	for _, it := range in.Items {
		if it.ProductID == "" {
			return Errf(KindValidation, "item missing product_id")
		}
		if it.Qty <= 0 {
			return Errf(KindValidation, "invalid qty %d for product %s", it.Qty, it.ProductID)
		}
	}
	if in.CashierID == "" {
		return Errf(KindValidation, "cashier_id is required")
	}
	if !in.PaymentMethod.Valid() {
		return Errf(KindValidation, "unknown payment method %q", in.PaymentMethod)
	}
	return nil
}
