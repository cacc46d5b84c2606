package pos

import "time"

type Product struct {
	ID         string    `json:"id"`
	SKU        string    `json:"sku"`
	Name       string    `json:"name"`
	Stock      int       `json:"stock"`
	PriceCents int64     `json:"price_cents"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// OrderItem is a snapshot taken at checkout; price changes on the catalog
// never touch it.
type OrderItem struct {
	ProductID      string `json:"product_id"`
	Name           string `json:"name"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	Qty            int    `json:"qty"`
	LineTotalCents int64  `json:"line_total_cents"`
}

type Order struct {
	ID               string        `json:"id"`
	InvoiceID        string        `json:"invoice_id"`
	Items            []OrderItem   `json:"items"`
	TotalCents       int64         `json:"total_cents"`
	CustomerID       string        `json:"customer_id,omitempty"`
	CustomerName     string        `json:"customer_name,omitempty"`
	CashierID        string        `json:"cashier_id"`
	CashierName      string        `json:"cashier_name"`
	Status           OrderStatus   `json:"status"`
	PaymentStatus    PaymentStatus `json:"payment_status"`
	PaymentMethod    PaymentMethod `json:"payment_method"`
	GatewayOrderID   string        `json:"gateway_order_id,omitempty"`
	GatewayPaymentID string        `json:"gateway_payment_id,omitempty"`
	GatewaySignature string        `json:"gateway_signature,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// Terminal reports whether the order's payment can still move. Once terminal,
// confirmations are no-ops.
func (o *Order) Terminal() bool {
	return o.PaymentStatus == PaymentPaid || o.PaymentStatus == PaymentFailed
}

type Reservation struct {
	OrderID   string    `json:"order_id"`
	ProductID string    `json:"product_id"`
	Qty       int       `json:"qty"`
	Status    string    `json:"status"` // RESERVED | RELEASED
	CreatedAt time.Time `json:"created_at"`
}

type ItemInput struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}
