// Package ledger is the single source of truth for users, referral edges,
// withdrawal requests and balances.
package ledger

import (
	"context"
	"time"

	"referral-bot/internal/models"
)

// Ledger is the storage contract used by the referral engine, the withdrawal
// state machine and the moderation gateway. Balance changes are always
// relative and applied by the store in a single statement.
type Ledger interface {
	// InTx runs fn inside one transaction. The Ledger passed to fn is bound to
	// that transaction; fn returning an error rolls everything back.
	InTx(ctx context.Context, fn func(tx Ledger) error) error

	UserExists(ctx context.Context, id int64) (bool, error)
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id int64) (*models.User, error)
	AdjustBalance(ctx context.Context, id int64, delta int64) (int64, error)
	GetBalance(ctx context.Context, id int64) (int64, error)
	CountUsers(ctx context.Context) (int64, error)
	ListAllUserIDs(ctx context.Context) ([]int64, error)

	RecordReferral(ctx context.Context, referrerID, referredID int64) error
	CountReferrals(ctx context.Context, referrerID int64) (int64, error)
	ListReferrals(ctx context.Context, referrerID int64, limit int) ([]models.User, error)
	TopReferrers(ctx context.Context, limit int) ([]models.TopReferrer, error)

	CreateWithdrawal(ctx context.Context, userID int64, method, details string, amount int64) (*models.Withdrawal, error)
	GetWithdrawal(ctx context.Context, id int64) (*models.Withdrawal, error)
	PendingWithdrawals(ctx context.Context) ([]models.Withdrawal, error)
	PendingOlderThan(ctx context.Context, cutoff time.Time) ([]models.Withdrawal, error)
	SetWithdrawalStatus(ctx context.Context, id int64, status models.WithdrawalStatus) error
	WithdrawalOwnerAndAmount(ctx context.Context, id int64) (userID int64, amount int64, err error)
}
