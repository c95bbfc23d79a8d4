package models

import (
	"time"
)

type WithdrawalStatus string

const (
	WithdrawalPending  WithdrawalStatus = "pending"
	WithdrawalApproved WithdrawalStatus = "approved"
	WithdrawalRejected WithdrawalStatus = "rejected"
)

// Terminal reports whether no further transition is allowed.
func (s WithdrawalStatus) Terminal() bool {
	return s == WithdrawalApproved || s == WithdrawalRejected
}

// Withdrawal is a cash-out request. The owner's balance was debited by Amount
// when the row was created.
type Withdrawal struct {
	ID        int64            `gorm:"primaryKey"`
	UserID    int64            `gorm:"not null;index"`
	User      User             `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;"`
	Method    string           `gorm:"size:50;not null"`
	Details   string           `gorm:"size:255;not null"`
	Amount    int64            `gorm:"not null;check:chk_withdrawals_amount_positive,amount > 0"`
	Status    WithdrawalStatus `gorm:"size:20;not null;default:'pending';index"`
	CreatedAt time.Time
}
