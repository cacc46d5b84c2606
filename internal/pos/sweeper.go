package pos

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type PendingStore interface {
	ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]Order, error)
	MarkExpired(ctx context.Context, orderID string) (bool, error)
}

// Sweeper reclaims stock from electronic orders whose confirmation never
// arrived: pending orders older than TTL go to CANCELLED/FAILED and their
// reservations are released. The conditional MarkExpired keeps it from racing
// a late confirmation.
type Sweeper struct {
	Store       PendingStore
	Ledger      Ledger
	Expired     Publisher // pos.order.expired
	TTL         time.Duration
	Interval    time.Duration
	BatchSize   int
	ServiceName string
	Log         *zap.Logger
}

func (s *Sweeper) Run(ctx context.Context) error {
	t := time.NewTicker(s.Interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			n, err := s.SweepOnce(ctx)
			if err != nil {
				s.Log.Error("sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				s.Log.Info("expired pending orders", zap.Int("count", n))
			}
		}
	}
}

// SweepOnce expires one batch and returns how many orders it cancelled.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	batch := s.BatchSize
	if batch <= 0 {
		batch = 100
	}
	cutoff := time.Now().UTC().Add(-s.TTL)
	pending, err := s.Store.ListPendingBefore(ctx, cutoff, batch)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, o := range pending {
		ok, err := s.Store.MarkExpired(ctx, o.ID)
		if err != nil {
			return expired, err
		}
		if !ok {
			// settled between the scan and the update, leave it alone
			continue
		}
		if err := s.Ledger.ReleaseAll(ctx, o.ID); err != nil {
			s.Log.Error("release after expiry failed",
				zap.String("order_id", o.ID), zap.Error(err))
			continue
		}
		expired++
		s.publishExpired(&o)
	}
	return expired, nil
}

func (s *Sweeper) publishExpired(o *Order) {
	if s.Expired == nil {
		return
	}
	publishEvent(s.Expired, s.ServiceName, EventOrderExpired, o.ID, "", OrderExpiredPayload{
		OrderID:    o.ID,
		InvoiceID:  o.InvoiceID,
		PendingFor: s.TTL.String(),
		ExpiredAt:  time.Now().UTC(),
	})
}
