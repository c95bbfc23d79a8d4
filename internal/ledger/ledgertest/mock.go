// Package ledgertest provides test doubles and a containerized database for
// code built on the ledger.
package ledgertest

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"referral-bot/internal/ledger"
	"referral-bot/internal/models"
)

// MockLedger is a testify mock of ledger.Ledger. InTx runs fn against the
// same mock so expectations cover calls made inside the transaction.
type MockLedger struct {
	mock.Mock
}

var _ ledger.Ledger = (*MockLedger)(nil)

func (m *MockLedger) InTx(ctx context.Context, fn func(tx ledger.Ledger) error) error {
	args := m.Called(ctx)
	if err := args.Error(0); err != nil {
		return err
	}
	return fn(m)
}

func (m *MockLedger) UserExists(ctx context.Context, id int64) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockLedger) CreateUser(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockLedger) GetUser(ctx context.Context, id int64) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockLedger) AdjustBalance(ctx context.Context, id int64, delta int64) (int64, error) {
	args := m.Called(ctx, id, delta)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLedger) GetBalance(ctx context.Context, id int64) (int64, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLedger) CountUsers(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLedger) ListAllUserIDs(ctx context.Context) ([]int64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

func (m *MockLedger) RecordReferral(ctx context.Context, referrerID, referredID int64) error {
	args := m.Called(ctx, referrerID, referredID)
	return args.Error(0)
}

func (m *MockLedger) CountReferrals(ctx context.Context, referrerID int64) (int64, error) {
	args := m.Called(ctx, referrerID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLedger) ListReferrals(ctx context.Context, referrerID int64, limit int) ([]models.User, error) {
	args := m.Called(ctx, referrerID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockLedger) TopReferrers(ctx context.Context, limit int) ([]models.TopReferrer, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.TopReferrer), args.Error(1)
}

func (m *MockLedger) CreateWithdrawal(ctx context.Context, userID int64, method, details string, amount int64) (*models.Withdrawal, error) {
	args := m.Called(ctx, userID, method, details, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Withdrawal), args.Error(1)
}

func (m *MockLedger) GetWithdrawal(ctx context.Context, id int64) (*models.Withdrawal, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Withdrawal), args.Error(1)
}

func (m *MockLedger) PendingWithdrawals(ctx context.Context) ([]models.Withdrawal, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Withdrawal), args.Error(1)
}

func (m *MockLedger) PendingOlderThan(ctx context.Context, cutoff time.Time) ([]models.Withdrawal, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Withdrawal), args.Error(1)
}

func (m *MockLedger) SetWithdrawalStatus(ctx context.Context, id int64, status models.WithdrawalStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockLedger) WithdrawalOwnerAndAmount(ctx context.Context, id int64) (int64, int64, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(int64), args.Get(1).(int64), args.Error(2)
}
