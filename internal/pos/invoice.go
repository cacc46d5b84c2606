package pos

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// NewInvoiceID returns an invoice code like INV-20250114-4f9c2d81aa. The
// random suffix makes concurrent issuance collision-free; the unique index on
// orders.invoice_id is the backstop.
func NewInvoiceID(now time.Time) string {
	buf := make([]byte, 5)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the platform RNG is gone; nothing
		// sane to fall back to.
		panic(err)
	}
	return fmt.Sprintf("INV-%s-%s", now.UTC().Format("20060102"), hex.EncodeToString(buf))
}
