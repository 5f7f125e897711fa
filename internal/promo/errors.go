package promo

import (
	"errors"
	"fmt"
	"time"
)

// ErrCodeNotFound is returned by RedeemCode when no record holds the code.
// It is a business outcome, not an infrastructure failure.
var ErrCodeNotFound = errors.New("promo code not found")

// ErrRecordInvariant signals that the store accepted a write that cannot be
// read back. The request must fail; the condition is logged for alerting.
var ErrRecordInvariant = errors.New("promo record not readable after write")

// AlreadyRedeemedError is returned by RedeemCode when the code was redeemed
// earlier. It carries the original issue/redeem metadata for display to
// staff; the stored record is left untouched.
type AlreadyRedeemedError struct {
	Code         string
	Discount     string
	Source       string
	DateIssued   time.Time
	DateRedeemed time.Time
	RedeemedBy   string
}

func (e *AlreadyRedeemedError) Error() string {
	return fmt.Sprintf("promo code %s already redeemed by %s", e.Code, e.RedeemedBy)
}
