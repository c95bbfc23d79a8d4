package withdrawal

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"referral-bot/internal/ledger"
	"referral-bot/internal/models"
)

// Approve marks a pending request approved. The reserved amount stays
// debited.
func (s *Service) Approve(ctx context.Context, id int64) (*models.Withdrawal, error) {
	if err := s.ledger.SetWithdrawalStatus(ctx, id, models.WithdrawalApproved); err != nil {
		if errors.Is(err, ledger.ErrAlreadyResolved) {
			log.WithField("withdrawal_id", id).Warn("Approve lost to an earlier decision")
		}
		return nil, err
	}

	w := s.resolved(ctx, id, models.WithdrawalApproved)
	log.WithFields(log.Fields{
		"withdrawal_id": id,
		"user_id":       w.UserID,
		"amount":        w.Amount,
		"status":        w.Status,
	}).Info("Withdrawal approved")

	if s.notifier != nil && w.UserID != 0 {
		if err := s.notifier.WithdrawalApproved(ctx, *w); err != nil {
			log.WithField("withdrawal_id", id).WithError(err).Warn("Failed to notify owner of approval")
		}
	}
	return w, nil
}

// Reject marks a pending request rejected and refunds its amount to the owner
// in the same transaction. Only the caller that wins the status change
// refunds.
func (s *Service) Reject(ctx context.Context, id int64) (*models.Withdrawal, error) {
	var ownerID, amount int64

	err := s.ledger.InTx(ctx, func(tx ledger.Ledger) error {
		if err := tx.SetWithdrawalStatus(ctx, id, models.WithdrawalRejected); err != nil {
			return err
		}

		var err error
		ownerID, amount, err = tx.WithdrawalOwnerAndAmount(ctx, id)
		if err != nil {
			return err
		}

		if _, err := tx.AdjustBalance(ctx, ownerID, amount); err != nil {
			if errors.Is(err, ledger.ErrNotFound) {
				return &ledger.ConsistencyError{
					Op:     "reject",
					Detail: fmt.Sprintf("owner %d of withdrawal %d does not exist, refund of %d impossible", ownerID, id, amount),
					Err:    err,
				}
			}
			return err
		}
		return nil
	})

	var consistencyErr *ledger.ConsistencyError
	switch {
	case err == nil:
	case errors.As(err, &consistencyErr):
		log.WithFields(log.Fields{
			"withdrawal_id": id,
			"user_id":       ownerID,
			"amount":        amount,
		}).WithError(err).Error("ALERT: ledger inconsistency, rejection rolled back")
		return nil, err
	case errors.Is(err, ledger.ErrAlreadyResolved):
		log.WithField("withdrawal_id", id).Warn("Reject lost to an earlier decision")
		return nil, err
	default:
		return nil, err
	}

	w := s.resolved(ctx, id, models.WithdrawalRejected)
	w.UserID, w.Amount = ownerID, amount
	log.WithFields(log.Fields{
		"withdrawal_id": id,
		"user_id":       ownerID,
		"amount":        amount,
		"status":        w.Status,
	}).Info("Withdrawal rejected and refunded")

	if s.notifier != nil {
		if err := s.notifier.WithdrawalRejected(ctx, *w); err != nil {
			log.WithField("withdrawal_id", id).WithError(err).Warn("Failed to notify owner of rejection")
		}
	}
	return w, nil
}

// resolved reloads a request after its decision committed. A failed read only
// loses detail for the notification.
func (s *Service) resolved(ctx context.Context, id int64, status models.WithdrawalStatus) *models.Withdrawal {
	w, err := s.ledger.GetWithdrawal(ctx, id)
	if err != nil {
		log.WithField("withdrawal_id", id).WithError(err).Warn("Failed to reload resolved withdrawal")
		return &models.Withdrawal{ID: id, Status: status}
	}
	return w
}
