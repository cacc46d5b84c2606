package pos_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-pos-settlement.git/internal/gateway"
	"github.com/ariefcatur/go-pos-settlement.git/internal/pos"
)

// fakeLedger mirrors ReservationRepo semantics in memory: all-or-nothing
// reserve, conditional per-product decrement, idempotent release.

type fakeProduct struct {
	name       string
	priceCents int64
	stock      int
}

type fakeLedger struct {
	mu           sync.Mutex
	products     map[string]*fakeProduct
	reservations map[string][]pos.ItemInput
	releaseCalls int
}

func newFakeLedger(products map[string]*fakeProduct) *fakeLedger {
	return &fakeLedger{
		products:     products,
		reservations: make(map[string][]pos.ItemInput),
	}
}

func (l *fakeLedger) ReserveAll(_ context.Context, orderID string, items []pos.ItemInput) ([]pos.OrderItem, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, it := range items {
		p, ok := l.products[it.ProductID]
		if !ok {
			return nil, pos.NotFound(it.ProductID)
		}
		if p.stock < it.Qty {
			return nil, pos.InsufficientStock(it.ProductID, p.stock)
		}
	}

	out := make([]pos.OrderItem, 0, len(items))
	for _, it := range items {
		p := l.products[it.ProductID]
		p.stock -= it.Qty
		out = append(out, pos.OrderItem{
			ProductID:      it.ProductID,
			Name:           p.name,
			UnitPriceCents: p.priceCents,
			Qty:            it.Qty,
			LineTotalCents: p.priceCents * int64(it.Qty),
		})
	}
	l.reservations[orderID] = items
	return out, nil
}

func (l *fakeLedger) ReleaseAll(_ context.Context, orderID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.releaseCalls++

	items, ok := l.reservations[orderID]
	if !ok {
		return nil // nothing reserved or already released
	}
	for _, it := range items {
		l.products[it.ProductID].stock += it.Qty
	}
	delete(l.reservations, orderID)
	return nil
}

func (l *fakeLedger) stock(productID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.products[productID].stock
}

type fakeStore struct {
	mu          sync.Mutex
	orders      map[string]*pos.Order
	insertErr   error
	inserts     int
	settlements int
}

func newFakeStore() *fakeStore {
	return &fakeStore{orders: make(map[string]*pos.Order)}
}

func (s *fakeStore) InsertOrder(_ context.Context, o *pos.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		err := s.insertErr
		s.insertErr = nil
		return err
	}
	if _, ok := s.orders[o.InvoiceID]; ok {
		return pos.Errf(pos.KindConflict, "invoice id already exists: %s", o.InvoiceID)
	}
	cp := *o
	s.orders[o.InvoiceID] = &cp
	s.inserts++
	return nil
}

func (s *fakeStore) GetByInvoiceID(_ context.Context, invoiceID string) (*pos.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[invoiceID]
	if !ok {
		return nil, pos.Errf(pos.KindNotFound, "order not found: %s", invoiceID)
	}
	cp := *o
	return &cp, nil
}

func (s *fakeStore) MarkSettled(_ context.Context, invoiceID, gatewayPaymentID, signature string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[invoiceID]
	if !ok || o.PaymentStatus != pos.PaymentPending {
		return false, nil
	}
	o.Status = pos.OrderCompleted
	o.PaymentStatus = pos.PaymentPaid
	o.GatewayPaymentID = gatewayPaymentID
	o.GatewaySignature = signature
	s.settlements++
	return true, nil
}

func (s *fakeStore) MarkPaymentFailed(_ context.Context, invoiceID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[invoiceID]
	if !ok || o.PaymentStatus != pos.PaymentPending {
		return false, nil
	}
	o.PaymentStatus = pos.PaymentFailed
	return true, nil
}

type fakeGateway struct {
	mu      sync.Mutex
	err     error
	amounts []int64
}

func (g *fakeGateway) CreateIntent(_ context.Context, amountCents int64, receiptID string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return "", g.err
	}
	g.amounts = append(g.amounts, amountCents)
	return "gw_order_1", nil
}

const testSecret = "test-secret"

func newService(ledger *fakeLedger, store *fakeStore, gw *fakeGateway) *pos.Service {
	return &pos.Service{
		Store:       store,
		Ledger:      ledger,
		Gateway:     gw,
		Verifier:    gateway.NewVerifier(testSecret),
		ServiceName: "pos-test",
		Log:         zap.NewNop(),
	}
}

func catalog() map[string]*fakeProduct {
	return map[string]*fakeProduct{
		"p1": {name: "Americano", priceCents: 2500, stock: 10},
		"p2": {name: "Croissant", priceCents: 1800, stock: 4},
	}
}

func checkoutInput(method pos.PaymentMethod, items ...pos.ItemInput) pos.CheckoutInput {
	return pos.CheckoutInput{
		Items:         items,
		CashierID:     "c1",
		CashierName:   "Ari",
		PaymentMethod: method,
	}
}

func TestCheckout_CashSettlesImmediately(t *testing.T) {
	ledger := newFakeLedger(catalog())
	store := newFakeStore()
	svc := newService(ledger, store, &fakeGateway{})

	o, err := svc.Checkout(context.Background(), checkoutInput(pos.MethodCash,
		pos.ItemInput{ProductID: "p1", Qty: 2},
		pos.ItemInput{ProductID: "p2", Qty: 1},
	))
	require.NoError(t, err)

	assert.Equal(t, pos.OrderCompleted, o.Status)
	assert.Equal(t, pos.PaymentPaid, o.PaymentStatus)
	assert.Equal(t, int64(2*2500+1800), o.TotalCents)
	assert.Equal(t, 8, ledger.stock("p1"))
	assert.Equal(t, 3, ledger.stock("p2"))

	// snapshot totals hold even if the catalog moves later
	ledger.products["p1"].priceCents = 9999
	stored, err := store.GetByInvoiceID(context.Background(), o.InvoiceID)
	require.NoError(t, err)
	assert.Equal(t, int64(2500), stored.Items[0].UnitPriceCents)

	var sum int64
	for _, it := range stored.Items {
		sum += it.LineTotalCents
	}
	assert.Equal(t, stored.TotalCents, sum)
}

func TestCheckout_Validation(t *testing.T) {
	svc := newService(newFakeLedger(catalog()), newFakeStore(), &fakeGateway{})
	ctx := context.Background()

	_, err := svc.Checkout(ctx, checkoutInput(pos.MethodCash))
	assert.Equal(t, pos.KindValidation, pos.KindOf(err))

	_, err = svc.Checkout(ctx, checkoutInput(pos.MethodCash, pos.ItemInput{ProductID: "p1", Qty: 0}))
	assert.Equal(t, pos.KindValidation, pos.KindOf(err))

	_, err = svc.Checkout(ctx, checkoutInput("CHEQUE", pos.ItemInput{ProductID: "p1", Qty: 1}))
	assert.Equal(t, pos.KindValidation, pos.KindOf(err))

	in := checkoutInput(pos.MethodCash, pos.ItemInput{ProductID: "p1", Qty: 1})
	in.CashierID = ""
	_, err = svc.Checkout(ctx, in)
	assert.Equal(t, pos.KindValidation, pos.KindOf(err))
}

func TestCheckout_InsufficientStockAbortsWhole(t *testing.T) {
	ledger := newFakeLedger(catalog())
	store := newFakeStore()
	svc := newService(ledger, store, &fakeGateway{})

	_, err := svc.Checkout(context.Background(), checkoutInput(pos.MethodCash,
		pos.ItemInput{ProductID: "p1", Qty: 1},
		pos.ItemInput{ProductID: "p2", Qty: 99},
	))

	require.Error(t, err)
	assert.Equal(t, pos.KindInsufficientStock, pos.KindOf(err))
	var de *pos.Error
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "p2", de.ProductID)

	// nothing decremented, nothing persisted
	assert.Equal(t, 10, ledger.stock("p1"))
	assert.Equal(t, 4, ledger.stock("p2"))
	assert.Equal(t, 0, store.inserts)
}

func TestCheckout_UnknownProduct(t *testing.T) {
	svc := newService(newFakeLedger(catalog()), newFakeStore(), &fakeGateway{})

	_, err := svc.Checkout(context.Background(), checkoutInput(pos.MethodCash,
		pos.ItemInput{ProductID: "ghost", Qty: 1}))
	assert.Equal(t, pos.KindNotFound, pos.KindOf(err))
}

func TestCheckout_ElectronicOpensIntent(t *testing.T) {
	ledger := newFakeLedger(catalog())
	store := newFakeStore()
	gw := &fakeGateway{}
	svc := newService(ledger, store, gw)

	o, err := svc.Checkout(context.Background(), checkoutInput(pos.MethodElectronic,
		pos.ItemInput{ProductID: "p1", Qty: 1}))
	require.NoError(t, err)

	assert.Equal(t, pos.OrderPending, o.Status)
	assert.Equal(t, pos.PaymentPending, o.PaymentStatus)
	assert.Equal(t, "gw_order_1", o.GatewayOrderID)
	assert.Equal(t, []int64{2500}, gw.amounts)
	assert.Equal(t, 9, ledger.stock("p1"))
}

func TestCheckout_GatewayFailureReleasesStock(t *testing.T) {
	ledger := newFakeLedger(catalog())
	store := newFakeStore()
	gw := &fakeGateway{err: pos.Errf(pos.KindExternal, "gateway down")}
	svc := newService(ledger, store, gw)

	_, err := svc.Checkout(context.Background(), checkoutInput(pos.MethodElectronic,
		pos.ItemInput{ProductID: "p1", Qty: 3}))

	require.Error(t, err)
	assert.Equal(t, pos.KindExternal, pos.KindOf(err))
	assert.Equal(t, 10, ledger.stock("p1"))
	assert.Equal(t, 1, ledger.releaseCalls)
	assert.Equal(t, 0, store.inserts)
}

func TestCheckout_PersistConflictReleasesStock(t *testing.T) {
	ledger := newFakeLedger(catalog())
	store := newFakeStore()
	store.insertErr = pos.Errf(pos.KindConflict, "invoice id already exists")
	svc := newService(ledger, store, &fakeGateway{})

	_, err := svc.Checkout(context.Background(), checkoutInput(pos.MethodCash,
		pos.ItemInput{ProductID: "p1", Qty: 2}))

	require.Error(t, err)
	assert.Equal(t, pos.KindConflict, pos.KindOf(err))
	assert.Equal(t, 10, ledger.stock("p1"))
	assert.Equal(t, 0, store.inserts)
}

func TestCheckout_ConcurrentContentionExactlyOneSuccess(t *testing.T) {
	ledger := newFakeLedger(map[string]*fakeProduct{
		"p1": {name: "Americano", priceCents: 2500, stock: 5},
	})
	store := newFakeStore()
	svc := newService(ledger, store, &fakeGateway{})

	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := svc.Checkout(context.Background(), checkoutInput(pos.MethodCash,
				pos.ItemInput{ProductID: "p1", Qty: 3}))
			results <- err
		}()
	}

	var ok, insufficient int
	for i := 0; i < 2; i++ {
		err := <-results
		if err == nil {
			ok++
		} else if pos.KindOf(err) == pos.KindInsufficientStock {
			insufficient++
		} else {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, insufficient)
	assert.Equal(t, 2, ledger.stock("p1"))
}

func electronicOrder(t *testing.T, svc *pos.Service) *pos.Order {
	t.Helper()
	o, err := svc.Checkout(context.Background(), checkoutInput(pos.MethodElectronic,
		pos.ItemInput{ProductID: "p1", Qty: 1}))
	require.NoError(t, err)
	return o
}

func TestConfirm_ValidSignatureSettles(t *testing.T) {
	ledger := newFakeLedger(catalog())
	store := newFakeStore()
	svc := newService(ledger, store, &fakeGateway{})
	o := electronicOrder(t, svc)

	sig := gateway.NewVerifier(testSecret).Sign(o.GatewayOrderID, "pay_1")
	got, err := svc.Confirm(context.Background(), pos.ConfirmInput{
		GatewayOrderID:   o.GatewayOrderID,
		GatewayPaymentID: "pay_1",
		Signature:        sig,
		InvoiceID:        o.InvoiceID,
	})
	require.NoError(t, err)

	assert.Equal(t, pos.OrderCompleted, got.Status)
	assert.Equal(t, pos.PaymentPaid, got.PaymentStatus)
	assert.Equal(t, "pay_1", got.GatewayPaymentID)
	// settled order keeps its reservation; stock stays decremented
	assert.Equal(t, 9, ledger.stock("p1"))
}

func TestConfirm_Idempotent(t *testing.T) {
	ledger := newFakeLedger(catalog())
	store := newFakeStore()
	svc := newService(ledger, store, &fakeGateway{})
	o := electronicOrder(t, svc)

	in := pos.ConfirmInput{
		GatewayOrderID:   o.GatewayOrderID,
		GatewayPaymentID: "pay_1",
		Signature:        gateway.NewVerifier(testSecret).Sign(o.GatewayOrderID, "pay_1"),
		InvoiceID:        o.InvoiceID,
	}

	first, err := svc.Confirm(context.Background(), in)
	require.NoError(t, err)
	second, err := svc.Confirm(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, store.settlements)
	assert.Equal(t, 9, ledger.stock("p1"))
}

func TestConfirm_TamperedSignatureFails(t *testing.T) {
	ledger := newFakeLedger(catalog())
	store := newFakeStore()
	svc := newService(ledger, store, &fakeGateway{})
	o := electronicOrder(t, svc)

	in := pos.ConfirmInput{
		GatewayOrderID:   o.GatewayOrderID,
		GatewayPaymentID: "pay_1",
		Signature:        gateway.NewVerifier("wrong-secret").Sign(o.GatewayOrderID, "pay_1"),
		InvoiceID:        o.InvoiceID,
	}

	// retried deliveries never settle it
	for i := 0; i < 3; i++ {
		_, err := svc.Confirm(context.Background(), in)
		if i == 0 {
			assert.Equal(t, pos.KindInvalidSignature, pos.KindOf(err))
		}
	}

	got, err := store.GetByInvoiceID(context.Background(), o.InvoiceID)
	require.NoError(t, err)
	assert.Equal(t, pos.PaymentFailed, got.PaymentStatus)
	assert.Equal(t, pos.OrderPending, got.Status) // order status untouched
	assert.Equal(t, 0, store.settlements)
}

func TestConfirm_MismatchedGatewayOrderFails(t *testing.T) {
	store := newFakeStore()
	svc := newService(newFakeLedger(catalog()), store, &fakeGateway{})
	o := electronicOrder(t, svc)

	// signature is authentic but for a different gateway order
	sig := gateway.NewVerifier(testSecret).Sign("gw_order_other", "pay_1")
	_, err := svc.Confirm(context.Background(), pos.ConfirmInput{
		GatewayOrderID:   "gw_order_other",
		GatewayPaymentID: "pay_1",
		Signature:        sig,
		InvoiceID:        o.InvoiceID,
	})
	assert.Equal(t, pos.KindInvalidSignature, pos.KindOf(err))
}

func TestConfirm_UnknownInvoice(t *testing.T) {
	svc := newService(newFakeLedger(catalog()), newFakeStore(), &fakeGateway{})

	_, err := svc.Confirm(context.Background(), pos.ConfirmInput{InvoiceID: "INV-none"})
	assert.Equal(t, pos.KindNotFound, pos.KindOf(err))
}

func TestConfirm_CashOrderIsTerminalNoop(t *testing.T) {
	store := newFakeStore()
	svc := newService(newFakeLedger(catalog()), store, &fakeGateway{})

	o, err := svc.Checkout(context.Background(), checkoutInput(pos.MethodCash,
		pos.ItemInput{ProductID: "p1", Qty: 1}))
	require.NoError(t, err)

	// cash orders are already terminal; replays are no-ops
	got, err := svc.Confirm(context.Background(), pos.ConfirmInput{InvoiceID: o.InvoiceID})
	require.NoError(t, err)
	assert.Equal(t, pos.PaymentPaid, got.PaymentStatus)
	assert.Equal(t, 0, store.settlements)
}

func TestReleaseAll_DoubleReleaseDoesNotOverCredit(t *testing.T) {
	ledger := newFakeLedger(catalog())
	_, err := ledger.ReserveAll(context.Background(), "o1", []pos.ItemInput{{ProductID: "p1", Qty: 4}})
	require.NoError(t, err)
	assert.Equal(t, 6, ledger.stock("p1"))

	require.NoError(t, ledger.ReleaseAll(context.Background(), "o1"))
	require.NoError(t, ledger.ReleaseAll(context.Background(), "o1"))
	assert.Equal(t, 10, ledger.stock("p1"))
}
