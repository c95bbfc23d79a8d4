// Package withdrawal drives the cash-out dialogue and resolves submitted
// requests.
package withdrawal

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type State string

const (
	StateAwaitingMethod  State = "awaiting_method"
	StateAwaitingDetails State = "awaiting_details"
	StateAwaitingAmount  State = "awaiting_amount"
)

var (
	ErrNoDialogue = errors.New("no withdrawal in progress")
	ErrWrongStep  = errors.New("input does not match the current withdrawal step")
)

// Dialogue is one user's in-progress withdrawal. Transitions return a new
// value and never touch the ledger.
type Dialogue struct {
	UserID    int64     `json:"user_id"`
	State     State     `json:"state"`
	Method    string    `json:"method,omitempty"`
	Details   string    `json:"details,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

func NewDialogue(userID int64, now time.Time) Dialogue {
	return Dialogue{
		UserID:    userID,
		State:     StateAwaitingMethod,
		StartedAt: now,
	}
}

func (d Dialogue) WithMethod(method string) (Dialogue, error) {
	if d.State != StateAwaitingMethod {
		return d, fmt.Errorf("select method in state %s: %w", d.State, ErrWrongStep)
	}
	d.Method = method
	d.State = StateAwaitingDetails
	return d, nil
}

// WithDetails stores the destination verbatim apart from surrounding
// whitespace. Empty details are refused.
func (d Dialogue) WithDetails(details string) (Dialogue, error) {
	if d.State != StateAwaitingDetails {
		return d, fmt.Errorf("submit details in state %s: %w", d.State, ErrWrongStep)
	}
	details = strings.TrimSpace(details)
	if details == "" {
		return d, &PolicyError{Reason: ReasonEmptyDetails}
	}
	d.Details = details
	d.State = StateAwaitingAmount
	return d, nil
}
