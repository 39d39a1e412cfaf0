package domain

import "errors"

var (
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrOutOfStock      = errors.New("product is out of stock")
	ErrLineNotFound    = errors.New("line not found in cart")
	ErrInvalidAddress  = errors.New("invalid address")
)
