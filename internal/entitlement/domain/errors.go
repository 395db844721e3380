package domain

import "errors"

var (
	ErrInvalidUser    = errors.New("invalid_user")
	ErrInvalidStory   = errors.New("invalid_story")
	ErrInvalidAmount  = errors.New("invalid_amount")
	ErrInvalidStatus  = errors.New("invalid_status")
	ErrInvalidOrderID = errors.New("invalid_order_id")

	ErrActivePurchaseExists = errors.New("purchase_already_active")
	ErrPurchaseNotFound     = errors.New("purchase_not_found")
)
