package models

import (
	"time"
)

// Referral is the immutable edge recording that ReferrerID brought ReferredID in.
// A user is referred at most once.
type Referral struct {
	ID         uint  `gorm:"primaryKey"`
	ReferrerID int64 `gorm:"not null;index"`
	Referrer   User  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;"`
	ReferredID int64 `gorm:"not null;uniqueIndex"`
	Referred   User  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;"`
	CreatedAt  time.Time
}

func (Referral) TableName() string {
	return "referral_edges"
}

// TopReferrer is a row of the referral leaderboard.
type TopReferrer struct {
	UserID        int64
	Name          string
	ReferralCount int64
	Balance       int64
}
