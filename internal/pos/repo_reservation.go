package pos

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ReservationRepo struct{ DB *pgxpool.Pool }

// ReserveAll decrements stock for every item inside one transaction and
// records a reservation row per item. The decrement is a single conditional
// write (stock >= qty), so concurrent checkouts on the same product cannot
// drive stock negative. Any shortfall rolls the whole set back and returns
// InsufficientStock for the first failing product.
//
// On success it returns the priced line-item snapshots, read under the same
// row locks that guarded the decrement.
func (r *ReservationRepo) ReserveAll(ctx context.Context, orderID string, items []ItemInput) ([]OrderItem, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, WrapErr(KindInternal, "begin reserve tx", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	snapshots := make([]OrderItem, 0, len(items))
	for _, it := range items {
		var name string
		var price int64
		var stock int
		err := tx.QueryRow(ctx,
			`SELECT name, price_cents, stock FROM products WHERE id=$1 FOR UPDATE`,
			it.ProductID).Scan(&name, &price, &stock)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, NotFound(it.ProductID)
			}
			return nil, WrapErr(KindInternal, "lock product", err)
		}

		ct, err := tx.Exec(ctx,
			`UPDATE products SET stock = stock - $2, updated_at = now() WHERE id=$1 AND stock >= $2`,
			it.ProductID, it.Qty)
		if err != nil {
			return nil, WrapErr(KindInternal, "decrement stock", err)
		}
		if ct.RowsAffected() != 1 {
			return nil, InsufficientStock(it.ProductID, stock)
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO reservations(order_id, product_id, qty, status)
			VALUES ($1,$2,$3,'RESERVED')
			ON CONFLICT (order_id, product_id) DO NOTHING`,
			orderID, it.ProductID, it.Qty); err != nil {
			return nil, WrapErr(KindInternal, "record reservation", err)
		}

		snapshots = append(snapshots, OrderItem{
			ProductID:      it.ProductID,
			Name:           name,
			UnitPriceCents: price,
			Qty:            it.Qty,
			LineTotalCents: price * int64(it.Qty),
		})
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, WrapErr(KindInternal, "commit reserve", err)
	}
	return snapshots, nil
}

// ReleaseAll restores stock for an order's reservations. The claiming UPDATE
// flips RESERVED rows to RELEASED and only the claimed rows are credited
// back, so calling this twice cannot over-credit stock.
func (r *ReservationRepo) ReleaseAll(ctx context.Context, orderID string) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return WrapErr(KindInternal, "begin release tx", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
		UPDATE reservations SET status='RELEASED'
		WHERE order_id=$1 AND status='RESERVED'
		RETURNING product_id, qty`, orderID)
	if err != nil {
		return WrapErr(KindInternal, "claim reservations", err)
	}
	type claimed struct {
		pid string
		qty int
	}
	var recs []claimed
	for rows.Next() {
		var c claimed
		if err := rows.Scan(&c.pid, &c.qty); err != nil {
			rows.Close()
			return WrapErr(KindInternal, "scan reservation", err)
		}
		recs = append(recs, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return WrapErr(KindInternal, "iterate reservations", err)
	}

	for _, c := range recs {
		if _, err := tx.Exec(ctx,
			`UPDATE products SET stock = stock + $2, updated_at = now() WHERE id=$1`,
			c.pid, c.qty); err != nil {
			return WrapErr(KindInternal, "restore stock", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return WrapErr(KindInternal, "commit release", err)
	}
	return nil
}
