package tracker

import "errors"

var (
	ErrNotTracked     = errors.New("not tracked")
	ErrAlreadyTracked = errors.New("already tracked")
	ErrInvalidSymbol  = errors.New("invalid symbol")
	ErrInvalidPrice   = errors.New("invalid price")
)
