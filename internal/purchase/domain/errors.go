package domain

import "errors"

var (
	ErrInvalidBuyer   = errors.New("invalid_buyer")
	ErrInvalidStory   = errors.New("invalid_story")
	ErrInvalidAmount  = errors.New("invalid_amount")
	ErrAmountTooHigh  = errors.New("amount_exceeds_limit")
	ErrAmountMismatch = errors.New("amount_mismatch")

	ErrAlreadyInitiated = errors.New("purchase_already_initiated")
	ErrPurchaseNotPaid  = errors.New("purchase_not_paid")
)
