package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"referral-bot/internal/models"
)

// Store implements Ledger on gorm/postgres.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

var _ Ledger = (*Store)(nil)

func (s *Store) InTx(ctx context.Context, fn func(tx Ledger) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

func (s *Store) UserExists(ctx context.Context, id int64) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check user %d: %w", id, err)
	}
	return count > 0, nil
}

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	err := s.db.WithContext(ctx).Omit(clause.Associations).Create(user).Error
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("user %d: %w", user.ID, ErrDuplicateUser)
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return fmt.Errorf("referrer of user %d: %w", user.ID, ErrNotFound)
	default:
		return fmt.Errorf("failed to create user %d: %w", user.ID, err)
	}
}

func (s *Store) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", id, err)
	}
	return &user, nil
}

// AdjustBalance applies delta in one statement and returns the new balance.
// A change that would take the balance below zero is refused with
// ErrInsufficientFunds.
func (s *Store) AdjustBalance(ctx context.Context, id int64, delta int64) (int64, error) {
	var balance int64
	result := s.db.WithContext(ctx).Raw(
		`UPDATE users SET balance = balance + ? WHERE id = ? AND balance + ? >= 0 RETURNING balance`,
		delta, id, delta,
	).Scan(&balance)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to adjust balance of user %d by %d: %w", id, delta, result.Error)
	}

	if result.RowsAffected == 0 {
		exists, err := s.UserExists(ctx, id)
		if err != nil {
			return 0, err
		}
		if !exists {
			return 0, fmt.Errorf("user %d: %w", id, ErrNotFound)
		}
		return 0, fmt.Errorf("user %d cannot be adjusted by %d: %w", id, delta, ErrInsufficientFunds)
	}

	log.WithFields(log.Fields{
		"user_id":     id,
		"delta":       delta,
		"new_balance": balance,
	}).Debug("Balance adjusted")

	return balance, nil
}

// GetBalance returns 0 for unknown users.
func (s *Store) GetBalance(ctx context.Context, id int64) (int64, error) {
	var balances []int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Pluck("balance", &balances).Error; err != nil {
		return 0, fmt.Errorf("failed to get balance of user %d: %w", id, err)
	}
	if len(balances) == 0 {
		return 0, nil
	}
	return balances[0], nil
}

func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

func (s *Store) ListAllUserIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Order("id ASC").Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to list user ids: %w", err)
	}
	return ids, nil
}

func (s *Store) RecordReferral(ctx context.Context, referrerID, referredID int64) error {
	edge := models.Referral{ReferrerID: referrerID, ReferredID: referredID}
	err := s.db.WithContext(ctx).Omit(clause.Associations).Create(&edge).Error
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("user %d: %w", referredID, ErrReferralExists)
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return fmt.Errorf("referral %d -> %d: %w", referrerID, referredID, ErrNotFound)
	default:
		return fmt.Errorf("failed to record referral %d -> %d: %w", referrerID, referredID, err)
	}
}

func (s *Store) CountReferrals(ctx context.Context, referrerID int64) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Referral{}).Where("referrer_id = ?", referrerID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count referrals of user %d: %w", referrerID, err)
	}
	return count, nil
}

// ListReferrals returns the users referred by referrerID, earliest first.
func (s *Store) ListReferrals(ctx context.Context, referrerID int64, limit int) ([]models.User, error) {
	var users []models.User
	err := s.db.WithContext(ctx).
		Select("users.*").
		Joins("JOIN referral_edges r ON r.referred_id = users.id").
		Where("r.referrer_id = ?", referrerID).
		Order("r.created_at ASC, r.id ASC").
		Limit(limit).
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list referrals of user %d: %w", referrerID, err)
	}
	return users, nil
}

// TopReferrers ranks users with at least one referral by referral count,
// then balance.
func (s *Store) TopReferrers(ctx context.Context, limit int) ([]models.TopReferrer, error) {
	var rows []models.TopReferrer
	err := s.db.WithContext(ctx).Raw(`
		SELECT u.id AS user_id, u.name, COUNT(r.id) AS referral_count, u.balance
		FROM users u
		JOIN referral_edges r ON r.referrer_id = u.id
		GROUP BY u.id, u.name, u.balance
		ORDER BY referral_count DESC, u.balance DESC, u.id ASC
		LIMIT ?`, limit).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get top referrers: %w", err)
	}
	return rows, nil
}

// CreateWithdrawal debits the owner and inserts the pending request in one
// transaction. Neither is persisted without the other.
func (s *Store) CreateWithdrawal(ctx context.Context, userID int64, method, details string, amount int64) (*models.Withdrawal, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("withdrawal amount must be positive, got %d", amount)
	}

	withdrawal := models.Withdrawal{
		UserID:  userID,
		Method:  method,
		Details: details,
		Amount:  amount,
		Status:  models.WithdrawalPending,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txStore := &Store{db: tx}
		if _, err := txStore.AdjustBalance(ctx, userID, -amount); err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Create(&withdrawal).Error; err != nil {
			return fmt.Errorf("failed to insert withdrawal for user %d: %w", userID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &withdrawal, nil
}

func (s *Store) GetWithdrawal(ctx context.Context, id int64) (*models.Withdrawal, error) {
	var withdrawal models.Withdrawal
	err := s.db.WithContext(ctx).Preload("User").Where("id = ?", id).First(&withdrawal).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("withdrawal %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get withdrawal %d: %w", id, err)
	}
	return &withdrawal, nil
}

// PendingWithdrawals lists pending requests oldest first, with owners loaded.
func (s *Store) PendingWithdrawals(ctx context.Context) ([]models.Withdrawal, error) {
	var withdrawals []models.Withdrawal
	err := s.db.WithContext(ctx).
		Preload("User").
		Where("status = ?", models.WithdrawalPending).
		Order("created_at ASC, id ASC").
		Find(&withdrawals).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list pending withdrawals: %w", err)
	}
	return withdrawals, nil
}

func (s *Store) PendingOlderThan(ctx context.Context, cutoff time.Time) ([]models.Withdrawal, error) {
	var withdrawals []models.Withdrawal
	err := s.db.WithContext(ctx).
		Preload("User").
		Where("status = ? AND created_at < ?", models.WithdrawalPending, cutoff).
		Order("created_at ASC, id ASC").
		Find(&withdrawals).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list stale pending withdrawals: %w", err)
	}
	return withdrawals, nil
}

// SetWithdrawalStatus moves a pending request to a terminal status. Only one
// caller can win; the others get ErrAlreadyResolved.
func (s *Store) SetWithdrawalStatus(ctx context.Context, id int64, status models.WithdrawalStatus) error {
	if !status.Terminal() {
		return fmt.Errorf("invalid target status %q for withdrawal %d", status, id)
	}

	result := s.db.WithContext(ctx).
		Model(&models.Withdrawal{}).
		Where("id = ? AND status = ?", id, models.WithdrawalPending).
		Update("status", status)
	if result.Error != nil {
		return fmt.Errorf("failed to set withdrawal %d to %s: %w", id, status, result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Withdrawal{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check withdrawal %d: %w", id, err)
	}
	if count == 0 {
		return fmt.Errorf("withdrawal %d: %w", id, ErrNotFound)
	}
	return fmt.Errorf("withdrawal %d: %w", id, ErrAlreadyResolved)
}

func (s *Store) WithdrawalOwnerAndAmount(ctx context.Context, id int64) (int64, int64, error) {
	var withdrawal models.Withdrawal
	err := s.db.WithContext(ctx).Select("user_id", "amount").Where("id = ?", id).First(&withdrawal).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, 0, fmt.Errorf("withdrawal %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return 0, 0, fmt.Errorf("failed to get withdrawal %d: %w", id, err)
	}
	return withdrawal.UserID, withdrawal.Amount, nil
}
