package pos

type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderCompleted OrderStatus = "COMPLETED"
	OrderCancelled OrderStatus = "CANCELLED"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentPaid    PaymentStatus = "PAID"
	PaymentFailed  PaymentStatus = "FAILED"
)

type PaymentMethod string

const (
	MethodCash       PaymentMethod = "CASH"
	MethodElectronic PaymentMethod = "ELECTRONIC"
)

func (m PaymentMethod) Valid() bool {
	return m == MethodCash || m == MethodElectronic
}

// validNext encodes the payment lifecycle: PAID and FAILED are terminal.
var validNext = map[PaymentStatus]map[PaymentStatus]bool{
	PaymentPending: {PaymentPaid: true, PaymentFailed: true},
	PaymentPaid:    {},
	PaymentFailed:  {},
}

func CanTransition(from, to PaymentStatus) bool {
	return validNext[from][to]
}
