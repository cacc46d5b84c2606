package pos

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(PaymentPending, PaymentPaid))
	assert.True(t, CanTransition(PaymentPending, PaymentFailed))

	// terminal states never move again
	assert.False(t, CanTransition(PaymentPaid, PaymentPending))
	assert.False(t, CanTransition(PaymentPaid, PaymentFailed))
	assert.False(t, CanTransition(PaymentFailed, PaymentPaid))
	assert.False(t, CanTransition(PaymentFailed, PaymentPending))
}

func TestOrderTerminal(t *testing.T) {
	assert.False(t, (&Order{PaymentStatus: PaymentPending}).Terminal())
	assert.True(t, (&Order{PaymentStatus: PaymentPaid}).Terminal())
	assert.True(t, (&Order{PaymentStatus: PaymentFailed}).Terminal())
}

func TestPaymentMethodValid(t *testing.T) {
	assert.True(t, MethodCash.Valid())
	assert.True(t, MethodElectronic.Valid())
	assert.False(t, PaymentMethod("CARD").Valid())
	assert.False(t, PaymentMethod("").Valid())
}
