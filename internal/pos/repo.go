package pos

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// InsertOrder persists the order and its line-item snapshots in one
// transaction. A duplicate invoice_id surfaces as Conflict and leaves the
// existing order untouched.
func (r *Repo) InsertOrder(ctx context.Context, o *Order) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return WrapErr(KindInternal, "begin tx", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO orders(id, invoice_id, customer_id, customer_name, cashier_id, cashier_name,
		                   status, payment_status, payment_method, total_cents,
		                   gateway_order_id, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$12)`,
		o.ID, o.InvoiceID, o.CustomerID, o.CustomerName, o.CashierID, o.CashierName,
		o.Status, o.PaymentStatus, o.PaymentMethod, o.TotalCents,
		o.GatewayOrderID, o.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return Errf(KindConflict, "invoice id already exists: %s", o.InvoiceID)
		}
		return WrapErr(KindInternal, "insert order", err)
	}

	for _, it := range o.Items {
		_, err = tx.Exec(ctx, `
			INSERT INTO order_items(order_id, product_id, name, unit_price_cents, qty, line_total_cents)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			o.ID, it.ProductID, it.Name, it.UnitPriceCents, it.Qty, it.LineTotalCents)
		if err != nil {
			return WrapErr(KindInternal, "insert order item", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return WrapErr(KindInternal, "commit order", err)
	}
	return nil
}

func (r *Repo) GetByInvoiceID(ctx context.Context, invoiceID string) (*Order, error) {
	var o Order
	err := r.DB.QueryRow(ctx, `
		SELECT id, invoice_id, customer_id, customer_name, cashier_id, cashier_name,
		       status, payment_status, payment_method, total_cents,
		       gateway_order_id, gateway_payment_id, gateway_signature, created_at, updated_at
		FROM orders WHERE invoice_id=$1`, invoiceID).Scan(
		&o.ID, &o.InvoiceID, &o.CustomerID, &o.CustomerName, &o.CashierID, &o.CashierName,
		&o.Status, &o.PaymentStatus, &o.PaymentMethod, &o.TotalCents,
		&o.GatewayOrderID, &o.GatewayPaymentID, &o.GatewaySignature, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, Errf(KindNotFound, "order not found: %s", invoiceID)
		}
		return nil, WrapErr(KindInternal, "get order", err)
	}

	rows, err := r.DB.Query(ctx, `
		SELECT product_id, name, unit_price_cents, qty, line_total_cents
		FROM order_items WHERE order_id=$1`, o.ID)
	if err != nil {
		return nil, WrapErr(KindInternal, "get order items", err)
	}
	defer rows.Close()
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ProductID, &it.Name, &it.UnitPriceCents, &it.Qty, &it.LineTotalCents); err != nil {
			return nil, WrapErr(KindInternal, "scan order item", err)
		}
		o.Items = append(o.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, WrapErr(KindInternal, "iterate order items", err)
	}
	return &o, nil
}

// MarkSettled flips a pending order to COMPLETED/PAID. The WHERE clause is
// the idempotency guard: a second confirmation matches zero rows.
func (r *Repo) MarkSettled(ctx context.Context, invoiceID, gatewayPaymentID, signature string) (bool, error) {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders
		SET status=$2, payment_status=$3, gateway_payment_id=$4, gateway_signature=$5, updated_at=now()
		WHERE invoice_id=$1 AND payment_status=$6`,
		invoiceID, OrderCompleted, PaymentPaid, gatewayPaymentID, signature, PaymentPending)
	if err != nil {
		return false, WrapErr(KindInternal, "mark settled", err)
	}
	return ct.RowsAffected() == 1, nil
}

// MarkPaymentFailed moves only payment_status; the order itself stays PENDING
// so a cashier can still see what was attempted.
func (r *Repo) MarkPaymentFailed(ctx context.Context, invoiceID string) (bool, error) {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET payment_status=$2, updated_at=now()
		WHERE invoice_id=$1 AND payment_status=$3`,
		invoiceID, PaymentFailed, PaymentPending)
	if err != nil {
		return false, WrapErr(KindInternal, "mark payment failed", err)
	}
	return ct.RowsAffected() == 1, nil
}

// MarkExpired cancels a long-pending electronic order. Conditional on both
// statuses still pending so it cannot race a confirmation.
func (r *Repo) MarkExpired(ctx context.Context, orderID string) (bool, error) {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET status=$2, payment_status=$3, updated_at=now()
		WHERE id=$1 AND status=$4 AND payment_status=$5`,
		orderID, OrderCancelled, PaymentFailed, OrderPending, PaymentPending)
	if err != nil {
		return false, WrapErr(KindInternal, "mark expired", err)
	}
	return ct.RowsAffected() == 1, nil
}

// ListPendingBefore returns electronic orders still awaiting confirmation
// that were created before cutoff.
func (r *Repo) ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, invoice_id, total_cents, created_at
		FROM orders
		WHERE status=$1 AND payment_status=$2 AND created_at < $3
		ORDER BY created_at
		LIMIT $4`,
		OrderPending, PaymentPending, cutoff, limit)
	if err != nil {
		return nil, WrapErr(KindInternal, "list pending", err)
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.InvoiceID, &o.TotalCents, &o.CreatedAt); err != nil {
			return nil, WrapErr(KindInternal, "scan pending order", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *Repo) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, sku, name, stock, price_cents, created_at, updated_at
		FROM products ORDER BY sku`)
	if err != nil {
		return nil, WrapErr(KindInternal, "list products", err)
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.Stock, &p.PriceCents, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, WrapErr(KindInternal, "scan product", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
