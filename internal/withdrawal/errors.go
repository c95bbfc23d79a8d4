package withdrawal

import "fmt"

type Reason string

const (
	ReasonBelowMinimum     Reason = "below_minimum"
	ReasonUnknownMethod    Reason = "unknown_method"
	ReasonEmptyDetails     Reason = "empty_details"
	ReasonInvalidAmount    Reason = "invalid_amount"
	ReasonAmountOutOfRange Reason = "amount_out_of_range"
)

// PolicyError is a request the rules refuse. It is shown to the user as a
// corrective prompt. For ReasonBelowMinimum and ReasonAmountOutOfRange, Min is
// the minimum withdrawal and Max the current balance.
type PolicyError struct {
	Reason Reason
	Min    int64
	Max    int64
}

func (e *PolicyError) Error() string {
	switch e.Reason {
	case ReasonBelowMinimum:
		return fmt.Sprintf("balance %d is below the minimum withdrawal %d", e.Max, e.Min)
	case ReasonAmountOutOfRange:
		return fmt.Sprintf("amount must be between %d and %d", e.Min, e.Max)
	default:
		return string(e.Reason)
	}
}
