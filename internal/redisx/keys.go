package redisx

import (
	"fmt"
	"time"
)

const (
	// Cached order snapshot: order:{invoice_id} -> order JSON
	keyOrder = "order:%s"

	// Consumer dedup: dedup:{consumer}:{event_id}
	keyDedup = "dedup:%s:%s"
)

var (
	TTLOrderCache = 5 * time.Minute
	TTLDedup      = 48 * time.Hour
)

func OrderKey(invoiceID string) string { return fmt.Sprintf(keyOrder, invoiceID) }

func DedupKey(consumer, eventID string) string { return fmt.Sprintf(keyDedup, consumer, eventID) }
