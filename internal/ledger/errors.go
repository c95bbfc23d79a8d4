package ledger

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicateUser     = errors.New("user already registered")
	ErrAlreadyResolved   = errors.New("withdrawal already resolved")
	ErrInsufficientFunds = errors.New("insufficient balance")
	ErrReferralExists    = errors.New("user already has a referrer")
)

// ConsistencyError reports ledger state that the atomicity rules should have
// made impossible. It is never recoverable by the caller.
type ConsistencyError struct {
	Op     string
	Detail string
	Err    error
}

func (e *ConsistencyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ledger consistency fault in %s: %s: %v", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("ledger consistency fault in %s: %s", e.Op, e.Detail)
}

func (e *ConsistencyError) Unwrap() error {
	return e.Err
}
