package service

import (
	"errors"
	"fmt"

	"batchauction/domain/auction"
)

var (
	ErrUnknownAuction = errors.New("service: unknown auction")
	ErrNotOwner       = errors.New("service: caller is not the house owner")
	ErrJournal        = errors.New("service: journal write failed")
	ErrOutbox         = errors.New("service: outbox unavailable")
)

// guard turns an arithmetic panic inside a command into an error.
func guard(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%w: %v", auction.ErrAmountOverflow, r)
	}
}
