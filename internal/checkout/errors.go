package checkout

import "errors"

var (
	ErrIncompleteForm    = errors.New("checkout form is incomplete")
	ErrInvalidTransition = errors.New("illegal transition of checkout stage")
	ErrEmptyCart         = errors.New("cart is empty, nothing to checkout")
	ErrPaymentFailed     = errors.New("payment failed")
	ErrUnknownField      = errors.New("unknown checkout field")
	ErrCheckoutCompleted = errors.New("checkout already completed")
)

// FailureMessage is what a customer sees after a declined or failed payment.
const FailureMessage = "Payment failed. Please try again."
