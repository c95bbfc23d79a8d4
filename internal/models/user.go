package models

import (
	"time"
)

// User is a registered participant. ID is the chat platform's user id.
type User struct {
	ID         int64   `gorm:"primaryKey;autoIncrement:false"`
	Name       string  `gorm:"size:255"`
	Contact    string  `gorm:"size:32"`
	IP         *string `gorm:"size:45"`
	ReferredBy *int64  `gorm:"index"`
	Referrer   *User   `gorm:"foreignKey:ReferredBy;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;"`
	Balance    int64   `gorm:"not null;default:0;check:chk_users_balance_non_negative,balance >= 0"`
	CreatedAt  time.Time
}
